package poly

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNonAffine is returned when an operation would require nesting
// floordiv terms, which this engine does not need and does not support.
var ErrNonAffine = errors.New("poly: expression is not affine enough (nested floordiv)")

// divTerm is one coef * floor((num . x + cst) / den) summand of an Aff.
// The numerator is strictly linear.
type divTerm struct {
	coef int64
	num  []int64
	cst  int64
	den  int64
}

func (d divTerm) clone() divTerm {
	n := make([]int64, len(d.num))
	copy(n, d.num)
	d.num = n
	return d
}

// Aff is a quasi-affine expression over the dimensions of one space:
//
//	coeffs . x + cst + sum_i coef_i * floor((num_i . x + cst_i) / den_i)
type Aff struct {
	space  Space
	coeffs []int64
	cst    int64
	divs   []divTerm
}

// Zero returns the zero expression over sp.
func Zero(sp Space) Aff {
	return Aff{space: sp, coeffs: make([]int64, sp.NDim())}
}

// Constant returns the constant expression c over sp.
func Constant(sp Space, c int64) Aff {
	a := Zero(sp)
	a.cst = c
	return a
}

// Var returns the expression selecting dimension i of sp.
func Var(sp Space, i int) Aff {
	a := Zero(sp)
	a.coeffs[i] = 1
	return a
}

func (a Aff) clone() Aff {
	c := make([]int64, len(a.coeffs))
	copy(c, a.coeffs)
	a.coeffs = c
	if len(a.divs) > 0 {
		d := make([]divTerm, len(a.divs))
		for i := range a.divs {
			d[i] = a.divs[i].clone()
		}
		a.divs = d
	}
	return a
}

// Space returns the space the expression is defined over.
func (a Aff) Space() Space { return a.space }

// Coeff returns the coefficient of dimension i.
func (a Aff) Coeff(i int) int64 { return a.coeffs[i] }

// ConstVal returns the constant term.
func (a Aff) ConstVal() int64 { return a.cst }

// IsConstant reports whether the expression has no variable or div terms.
func (a Aff) IsConstant() bool {
	for _, c := range a.coeffs {
		if c != 0 {
			return false
		}
	}
	return len(a.divs) == 0
}

// Add returns a + b. Both expressions must share a space.
func (a Aff) Add(b Aff) Aff {
	r := a.clone()
	for i, c := range b.coeffs {
		r.coeffs[i] += c
	}
	r.cst += b.cst
	for _, d := range b.divs {
		r.divs = append(r.divs, d.clone())
	}
	return r
}

// Sub returns a - b.
func (a Aff) Sub(b Aff) Aff { return a.Add(b.Neg()) }

// Neg returns -a.
func (a Aff) Neg() Aff { return a.Scale(-1) }

// Scale returns k * a.
func (a Aff) Scale(k int64) Aff {
	r := a.clone()
	for i := range r.coeffs {
		r.coeffs[i] *= k
	}
	r.cst *= k
	for i := range r.divs {
		r.divs[i].coef *= k
	}
	return r
}

// AddConst returns a + k.
func (a Aff) AddConst(k int64) Aff {
	r := a.clone()
	r.cst += k
	return r
}

// FloorDiv returns floor(a / den). The receiver must be purely linear;
// den must be positive.
func (a Aff) FloorDiv(den int64) (Aff, error) {
	if len(a.divs) != 0 {
		return Aff{}, ErrNonAffine
	}
	if den <= 0 {
		return Aff{}, errors.New("poly: floordiv by non-positive denominator")
	}
	num := make([]int64, len(a.coeffs))
	copy(num, a.coeffs)
	r := Zero(a.space)
	r.divs = []divTerm{{coef: 1, num: num, cst: a.cst, den: den}}
	return r, nil
}

// Mod returns a - den*floor(a/den), the non-negative residue of a
// modulo den. The receiver must be purely linear.
func (a Aff) Mod(den int64) (Aff, error) {
	fl, err := a.FloorDiv(den)
	if err != nil {
		return Aff{}, err
	}
	return a.Sub(fl.Scale(den)), nil
}

// NDiv returns the number of floordiv terms.
func (a Aff) NDiv() int { return len(a.divs) }

// DivCoef returns the coefficient of floordiv term i.
func (a Aff) DivCoef(i int) int64 { return a.divs[i].coef }

// DivDen returns the denominator of floordiv term i.
func (a Aff) DivDen(i int) int64 { return a.divs[i].den }

// DivNumCoeff returns the coefficient of dimension d in the numerator
// of floordiv term i.
func (a Aff) DivNumCoeff(i, d int) int64 { return a.divs[i].num[d] }

// DivNumConst returns the constant term of the numerator of floordiv
// term i.
func (a Aff) DivNumConst(i int) int64 { return a.divs[i].cst }

// Pullback substitutes args[d] for dimension d, yielding an expression
// over the args' space. The args must be free of floordiv terms so the
// result stays quasi-affine.
func (a Aff) Pullback(args []Aff) (Aff, error) {
	if len(args) < len(a.coeffs) {
		return Aff{}, errors.New("poly: pullback needs one argument per dimension")
	}
	var sp Space
	for _, g := range args {
		if g.NDiv() != 0 {
			return Aff{}, ErrNonAffine
		}
		sp = g.space
	}
	r := Constant(sp, a.cst)
	for d, c := range a.coeffs {
		if c != 0 {
			r = r.Add(args[d].Scale(c))
		}
	}
	for _, dv := range a.divs {
		num := Constant(sp, dv.cst)
		for d, c := range dv.num {
			if c != 0 {
				num = num.Add(args[d].Scale(c))
			}
		}
		fl, err := num.FloorDiv(dv.den)
		if err != nil {
			return Aff{}, err
		}
		r = r.Add(fl.Scale(dv.coef))
	}
	return r, nil
}

// Eval evaluates the expression at the given coordinates.
func (a Aff) Eval(coords []int64) int64 {
	v := a.cst
	for i, c := range a.coeffs {
		v += c * coords[i]
	}
	for _, d := range a.divs {
		n := d.cst
		for i, c := range d.num {
			n += c * coords[i]
		}
		v += d.coef * floorDiv(n, d.den)
	}
	return v
}

func (a Aff) String() string {
	var b strings.Builder
	first := true
	term := func(c int64, s string) {
		if c == 0 {
			return
		}
		if !first && c > 0 {
			b.WriteByte('+')
		}
		switch {
		case c == 1 && s != "":
			b.WriteString(s)
		case c == -1 && s != "":
			b.WriteString("-" + s)
		case s == "":
			b.WriteString(strconv.FormatInt(c, 10))
		default:
			b.WriteString(strconv.FormatInt(c, 10) + "*" + s)
		}
		first = false
	}
	for i, c := range a.coeffs {
		term(c, a.space.DimName(i))
	}
	for _, d := range a.divs {
		inner := Aff{space: a.space, coeffs: d.num, cst: d.cst}
		term(d.coef, "floor(("+inner.String()+")/"+strconv.FormatInt(d.den, 10)+")")
	}
	term(a.cst, "")
	if first {
		return "0"
	}
	return b.String()
}

// floorDiv returns floor(a/b) for b > 0.
func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// ceilDiv returns ceil(a/b) for b > 0.
func ceilDiv(a, b int64) int64 {
	return -floorDiv(-a, b)
}

func gcd64(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
