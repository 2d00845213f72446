package astgen

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/stencilkit/polytile/internal/poly"
)

// Expr is a C integer expression.
type Expr interface {
	emit(b *strings.Builder)
}

// AffExpr prints a quasi-affine expression over loop variables, with
// floordiv terms lowered to the floord macro.
type AffExpr struct {
	Aff   poly.Aff
	Names []string
}

func (e AffExpr) emit(b *strings.Builder) {
	n := e.Aff.Space().NDim()
	first := true
	writeTerm := func(c int64, s string) {
		if c == 0 {
			return
		}
		if !first && c > 0 {
			b.WriteByte('+')
		}
		switch {
		case s == "":
			b.WriteString(strconv.FormatInt(c, 10))
		case c == 1:
			b.WriteString(s)
		case c == -1:
			b.WriteString("-" + s)
		default:
			b.WriteString(strconv.FormatInt(c, 10) + "*" + s)
		}
		first = false
	}
	for d := 0; d < n; d++ {
		writeTerm(e.Aff.Coeff(d), e.Names[d])
	}
	for i := 0; i < e.Aff.NDiv(); i++ {
		var num strings.Builder
		inner := AffExpr{Aff: divNumerator(e.Aff, i), Names: e.Names}
		inner.emit(&num)
		writeTerm(e.Aff.DivCoef(i),
			"floord("+num.String()+","+strconv.FormatInt(e.Aff.DivDen(i), 10)+")")
	}
	writeTerm(e.Aff.ConstVal(), "")
	if first {
		b.WriteByte('0')
	}
}

func divNumerator(a poly.Aff, i int) poly.Aff {
	sp := a.Space()
	num := poly.Constant(sp, a.DivNumConst(i))
	for d := 0; d < sp.NDim(); d++ {
		if c := a.DivNumCoeff(i, d); c != 0 {
			num = num.Add(poly.Var(sp, d).Scale(c))
		}
	}
	return num
}

// MinMax prints min(...) or max(...) over its arguments, folding a
// single argument to itself.
type MinMax struct {
	Max  bool
	Args []Expr
}

func (e MinMax) emit(b *strings.Builder) {
	if len(e.Args) == 1 {
		e.Args[0].emit(b)
		return
	}
	name := "min"
	if e.Max {
		name = "max"
	}
	// Nested two-argument calls keep the macros simple.
	for i := 0; i < len(e.Args)-1; i++ {
		b.WriteString(name + "(")
	}
	e.Args[0].emit(b)
	for i := 1; i < len(e.Args); i++ {
		b.WriteString(",")
		e.Args[i].emit(b)
		b.WriteString(")")
	}
}

// Stmt is a C statement.
type Stmt interface {
	print(w io.Writer, p *Printer, indent int)
}

// StrideAlign rounds its argument up to the next multiple of Stride.
type StrideAlign struct {
	Arg    Expr
	Stride int64
}

func (e StrideAlign) emit(b *strings.Builder) {
	var arg strings.Builder
	e.Arg.emit(&arg)
	s := strconv.FormatInt(e.Stride, 10)
	b.WriteString(s + "*floord(" + arg.String() + "+" + strconv.FormatInt(e.Stride-1, 10) + "," + s + ")")
}

// For is a loop over one schedule dimension. Step is greater than one
// for tile loops that run over multiples of the tile size.
type For struct {
	Var      string
	Lower    Expr
	Upper    Expr
	Step     int64
	Parallel bool
	Body     []Stmt
}

func (f *For) print(w io.Writer, p *Printer, indent int) {
	pad := strings.Repeat("  ", indent)
	if f.Parallel {
		fmt.Fprintf(w, "%s#pragma omp parallel for\n", pad)
	}
	step := f.Step
	if step == 0 {
		step = 1
	}
	var lo, hi strings.Builder
	f.Lower.emit(&lo)
	f.Upper.emit(&hi)
	fmt.Fprintf(w, "%sfor (int %s = %s; %s <= %s; %s += %d) {\n",
		pad, f.Var, lo.String(), f.Var, hi.String(), f.Var, step)
	for _, s := range f.Body {
		s.print(w, p, indent+1)
	}
	fmt.Fprintf(w, "%s}\n", pad)
}

// Cond is one conjunct of a guard: Expr >= 0, or Expr == 0 when Eq.
type Cond struct {
	Expr Expr
	Eq   bool
}

// If guards its body with a conjunction of conditions.
type If struct {
	Conds []Cond
	Body  []Stmt
}

func (f *If) print(w io.Writer, p *Printer, indent int) {
	pad := strings.Repeat("  ", indent)
	var b strings.Builder
	for i, c := range f.Conds {
		if i > 0 {
			b.WriteString(" && ")
		}
		c.Expr.emit(&b)
		if c.Eq {
			b.WriteString(" == 0")
		} else {
			b.WriteString(" >= 0")
		}
	}
	fmt.Fprintf(w, "%sif (%s) {\n", pad, b.String())
	for _, s := range f.Body {
		s.print(w, p, indent+1)
	}
	fmt.Fprintf(w, "%s}\n", pad)
}

// Call executes one statement instance.
type Call struct {
	Name string
	Args []Expr
}

func (c *Call) print(w io.Writer, p *Printer, indent int) {
	pad := strings.Repeat("  ", indent)
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		var b strings.Builder
		a.emit(&b)
		args[i] = b.String()
	}
	if p != nil && p.StmtText != nil {
		fmt.Fprintf(w, "%s%s\n", pad, p.StmtText(c.Name, args))
		return
	}
	fmt.Fprintf(w, "%s%s(%s);\n", pad, c.Name, strings.Join(args, ", "))
}

// Program is a generated loop nest.
type Program struct {
	Body []Stmt
}

// Printer controls how a program is written out. StmtText, when set,
// renders a statement instance from its name and index expressions;
// the default renders a macro-style call.
type Printer struct {
	StmtText func(name string, args []string) string
}

// Preamble is emitted before the loop nest and defines the helper
// macros the generated expressions use.
const Preamble = `#define floord(n,d) (((n) < 0) ? -((-(n)+(d)-1)/(d)) : (n)/(d))
#define min(a,b) (((a) < (b)) ? (a) : (b))
#define max(a,b) (((a) > (b)) ? (a) : (b))
`

// Print writes the program as C to w.
func (p *Printer) Print(w io.Writer, prog *Program) {
	for _, s := range prog.Body {
		s.print(w, p, 0)
	}
}
