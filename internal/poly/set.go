package poly

import (
	"errors"
	"sort"
	"strconv"
	"strings"
)

// ErrEmptySample is returned when a sample point is requested from an
// empty set.
var ErrEmptySample = errors.New("poly: cannot sample a point from an empty set")

// ErrUnbounded is returned when a lexicographic extremum is requested
// along an unbounded direction.
var ErrUnbounded = errors.New("poly: set is unbounded in the requested direction")

// maxScan bounds the search for an integer point near a rational bound.
const maxScan = 1 << 16

// BasicSet is a conjunction of affine constraints over one space.
type BasicSet struct {
	space Space
	t     table
}

// UniverseSet returns the unconstrained set over sp.
func UniverseSet(sp Space) BasicSet {
	return BasicSet{space: sp, t: newTable(sp.NDim())}
}

// Space returns the set's space.
func (b BasicSet) Space() Space { return b.space }

// NDim returns the dimensionality of the set.
func (b BasicSet) NDim() int { return b.space.NDim() }

// Constrain returns the set with the additional constraint a >= 0
// (a == 0 when eq is set). a must be an expression over the set's space.
func (b BasicSet) Constrain(a Aff, eq bool) BasicSet {
	t := b.t.clone()
	t.addAff(a, eq, func(d int) int { return d })
	return BasicSet{space: b.space, t: t}
}

// ConstrainGE is shorthand for Constrain(a, false).
func (b BasicSet) ConstrainGE(a Aff) BasicSet { return b.Constrain(a, false) }

// ConstrainEQ is shorthand for Constrain(a, true).
func (b BasicSet) ConstrainEQ(a Aff) BasicSet { return b.Constrain(a, true) }

// IsEmpty reports whether the set has no integer points.
func (b BasicSet) IsEmpty() bool { return !b.t.feasible() }

// Constraint is one constraint of a basic set: Expr >= 0, or Expr == 0
// when Eq is set.
type Constraint struct {
	Expr Aff
	Eq   bool
}

// Constraints returns the set's constraints as expressions. complete is
// false when rows involving existential columns had to be skipped.
func (b BasicSet) Constraints() (cons []Constraint, complete bool) {
	complete = true
	for _, r := range b.t.rows {
		if involvesDiv(r, b.t.nVar) {
			complete = false
			continue
		}
		cons = append(cons, Constraint{
			Expr: Aff{space: b.space, coeffs: append([]int64(nil), r.coef[:b.t.nVar]...), cst: r.cst},
			Eq:   r.eq,
		})
	}
	return cons, complete
}

// Contains reports whether the set contains the given coordinates.
func (b BasicSet) Contains(coords []int64) bool {
	t := b.t.clone()
	for i := b.NDim() - 1; i >= 0; i-- {
		t = t.fix(i, coords[i])
	}
	return t.feasible()
}

// intersectBasic conjoins two basic sets over equal spaces.
func intersectBasic(a, b BasicSet) BasicSet {
	t := table{nVar: a.t.nVar, nDiv: a.t.nDiv + b.t.nDiv}
	for _, r := range a.t.rows {
		c := make([]int64, t.nCol())
		copy(c, r.coef)
		t.rows = append(t.rows, row{coef: c, cst: r.cst, eq: r.eq})
	}
	for _, r := range b.t.rows {
		c := make([]int64, t.nCol())
		copy(c, r.coef[:b.t.nVar])
		for k := 0; k < b.t.nDiv; k++ {
			c[a.t.nCol()+k] = r.coef[b.t.nVar+k]
		}
		t.rows = append(t.rows, row{coef: c, cst: r.cst, eq: r.eq})
	}
	return BasicSet{space: a.space, t: t}
}

// subtractBasic returns a list of basic sets covering a \ b.
// When b carries existential columns the difference cannot be expressed
// without quantifier elimination; in that case a itself is returned,
// which is a sound over-approximation of the difference.
func subtractBasic(a, b BasicSet) []BasicSet {
	if !a.space.Equal(b.space) {
		return []BasicSet{a}
	}
	if b.t.nDiv != 0 {
		return []BasicSet{a}
	}
	var out []BasicSet
	prefix := a
	for _, r := range b.t.rows {
		aff := Aff{space: a.space, coeffs: append([]int64(nil), r.coef[:b.t.nVar]...), cst: r.cst}
		if r.eq {
			// not(e == 0) splits into e <= -1 and e >= 1.
			lo := prefix.ConstrainGE(aff.Neg().AddConst(-1))
			hi := prefix.ConstrainGE(aff.AddConst(-1))
			if !lo.IsEmpty() {
				out = append(out, lo)
			}
			if !hi.IsEmpty() {
				out = append(out, hi)
			}
			prefix = prefix.ConstrainEQ(aff)
		} else {
			// not(e >= 0) is -e - 1 >= 0.
			frag := prefix.ConstrainGE(aff.Neg().AddConst(-1))
			if !frag.IsEmpty() {
				out = append(out, frag)
			}
			prefix = prefix.ConstrainGE(aff)
		}
	}
	return out
}

// Set is a finite union of basic sets, possibly over several statement
// tuples.
type Set struct {
	pieces []BasicSet
}

// EmptySet returns a set with no pieces.
func EmptySet() Set { return Set{} }

// SetFrom builds a union set from basic pieces.
func SetFrom(pieces ...BasicSet) Set {
	p := make([]BasicSet, len(pieces))
	copy(p, pieces)
	return Set{pieces: p}
}

// Pieces returns the basic sets making up the union.
func (s Set) Pieces() []BasicSet {
	p := make([]BasicSet, len(s.pieces))
	copy(p, s.pieces)
	return p
}

// TupleNames returns the sorted distinct tuple names in the union.
func (s Set) TupleNames() []string {
	seen := map[string]bool{}
	var names []string
	for _, p := range s.pieces {
		if !seen[p.space.Tuple()] {
			seen[p.space.Tuple()] = true
			names = append(names, p.space.Tuple())
		}
	}
	sort.Strings(names)
	return names
}

// NSet returns the number of distinct statement tuples, matching
// isl_union_set_n_set for domains partitioned by statement.
func (s Set) NSet() int { return len(s.TupleNames()) }

// PiecesFor returns the pieces belonging to the named tuple.
func (s Set) PiecesFor(tuple string) []BasicSet {
	var out []BasicSet
	for _, p := range s.pieces {
		if p.space.Tuple() == tuple {
			out = append(out, p)
		}
	}
	return out
}

// Union returns s ∪ o.
func (s Set) Union(o Set) Set {
	return Set{pieces: append(s.Pieces(), o.Pieces()...)}
}

// Intersect returns s ∩ o. Pieces over mismatched spaces contribute
// nothing.
func (s Set) Intersect(o Set) Set {
	var out []BasicSet
	for _, a := range s.pieces {
		for _, b := range o.pieces {
			if !a.space.Equal(b.space) {
				continue
			}
			c := intersectBasic(a, b)
			if !c.IsEmpty() {
				out = append(out, c)
			}
		}
	}
	return Set{pieces: out}
}

// Subtract returns a sound over-approximation of s \ o (exact when o has
// no existential columns, which holds for all uses in this engine).
func (s Set) Subtract(o Set) Set {
	frags := s.Pieces()
	for _, b := range o.pieces {
		var next []BasicSet
		for _, a := range frags {
			if a.space.Equal(b.space) {
				next = append(next, subtractBasic(a, b)...)
			} else {
				next = append(next, a)
			}
		}
		frags = next
	}
	return Set{pieces: frags}
}

// IsEmpty reports whether the union contains no integer points.
func (s Set) IsEmpty() bool {
	for _, p := range s.pieces {
		if !p.IsEmpty() {
			return false
		}
	}
	return true
}

// IsSubset reports whether s ⊆ o. May report false negatives when o
// carries existential columns; never false positives.
func (s Set) IsSubset(o Set) bool {
	return s.Subtract(o).IsEmpty()
}

// Universe returns the union of the unconstrained spaces of s's pieces.
func (s Set) Universe() Set {
	seen := map[string]bool{}
	var out []BasicSet
	for _, p := range s.pieces {
		if seen[p.space.Tuple()] {
			continue
		}
		seen[p.space.Tuple()] = true
		out = append(out, UniverseSet(p.space))
	}
	return Set{pieces: out}
}

// Coalesce drops empty pieces and pieces contained in another piece.
func (s Set) Coalesce() Set {
	var kept []BasicSet
	for _, p := range s.pieces {
		if !p.IsEmpty() {
			kept = append(kept, p)
		}
	}
	var out []BasicSet
	for i, p := range kept {
		redundant := false
		for j, q := range kept {
			if i == j {
				continue
			}
			if j < i && setCovers(q, p) && setCovers(p, q) {
				redundant = true // exact duplicate, keep first
				break
			}
			if setCovers(q, p) && !setCovers(p, q) {
				redundant = true
				break
			}
		}
		if !redundant {
			out = append(out, p)
		}
	}
	return Set{pieces: out}
}

func setCovers(outer, inner BasicSet) bool {
	return SetFrom(inner).IsSubset(SetFrom(outer))
}

// Gist simplifies s relative to ctx: constraints implied by ctx are
// dropped. Rows involving existential columns are kept as is.
func (s Set) Gist(ctx Set) Set {
	var out []BasicSet
	for _, p := range s.pieces {
		out = append(out, gistBasic(p, ctx))
	}
	return Set{pieces: out}
}

func gistBasic(p BasicSet, ctx Set) BasicSet {
	res := BasicSet{space: p.space, t: table{nVar: p.t.nVar, nDiv: p.t.nDiv}}
	for _, r := range p.t.rows {
		implied := false
		if !involvesDiv(r, p.t.nVar) {
			cons := UniverseSet(p.space).Constrain(
				Aff{space: p.space, coeffs: append([]int64(nil), r.coef[:p.t.nVar]...), cst: r.cst}, r.eq)
			implied = ctx.IsSubset(SetFrom(cons))
		}
		if !implied {
			res.t.addRow(r.coef, r.cst, r.eq)
		}
	}
	return res
}

func involvesDiv(r row, nVar int) bool {
	for _, c := range r.coef[nVar:] {
		if c != 0 {
			return true
		}
	}
	return false
}

// Point is a single integer instance of a statement tuple.
type Point struct {
	Space  Space
	Coords []int64
}

// Coord returns coordinate i.
func (p Point) Coord(i int) int64 { return p.Coords[i] }

func (p Point) String() string {
	parts := make([]string, len(p.Coords))
	for i, c := range p.Coords {
		parts[i] = strconv.FormatInt(c, 10)
	}
	return p.Space.Tuple() + "[" + strings.Join(parts, ",") + "]"
}

// FromPoint returns the singleton set containing p.
func FromPoint(p Point) Set {
	b := UniverseSet(p.Space)
	for i, v := range p.Coords {
		b = b.ConstrainEQ(Var(p.Space, i).AddConst(-v))
	}
	return SetFrom(b)
}

// lexPoint finds the lexicographic extreme integer point of a basic set.
func (b BasicSet) lexPoint(max bool) (Point, bool, error) {
	cur := b.t.clone()
	coords := make([]int64, b.NDim())
	for i := 0; i < b.NDim(); i++ {
		lb, ub, hasLb, hasUb, feas := cur.colBounds(0)
		if !feas {
			return Point{}, false, nil
		}
		var v, step, stop int64
		if max {
			if !hasUb {
				return Point{}, false, ErrUnbounded
			}
			v, step = ub, -1
			stop = v - maxScan
			if hasLb && lb > stop {
				stop = lb
			}
		} else {
			if !hasLb {
				return Point{}, false, ErrUnbounded
			}
			v, step = lb, 1
			stop = v + maxScan
			if hasUb && ub < stop {
				stop = ub
			}
		}
		found := false
		for {
			f := cur.fix(0, v)
			if f.feasible() {
				cur = f
				coords[i] = v
				found = true
				break
			}
			if v == stop {
				break
			}
			v += step
		}
		if !found {
			return Point{}, false, nil
		}
	}
	return Point{Space: b.space, Coords: coords}, true, nil
}

// LexMinPoint returns the lexicographically smallest point of the union.
// Pieces are compared coordinate-wise; ties between statement tuples are
// broken by tuple name, giving a deterministic result.
func (s Set) LexMinPoint() (Point, error) { return s.lexExtreme(false) }

// LexMaxPoint returns the lexicographically largest point of the union.
func (s Set) LexMaxPoint() (Point, error) { return s.lexExtreme(true) }

// SamplePoint returns some point of the set (the lexicographic minimum,
// for determinism).
func (s Set) SamplePoint() (Point, error) { return s.LexMinPoint() }

func (s Set) lexExtreme(max bool) (Point, error) {
	var best Point
	have := false
	for _, p := range s.pieces {
		pt, ok, err := p.lexPoint(max)
		if err != nil {
			return Point{}, err
		}
		if !ok {
			continue
		}
		if !have {
			best, have = pt, true
			continue
		}
		if max {
			if lexLess(best, pt) {
				best = pt
			}
		} else if lexLess(pt, best) {
			best = pt
		}
	}
	if !have {
		return Point{}, ErrEmptySample
	}
	return best, nil
}

func lexLess(a, b Point) bool {
	n := len(a.Coords)
	if len(b.Coords) < n {
		n = len(b.Coords)
	}
	for i := 0; i < n; i++ {
		if a.Coords[i] != b.Coords[i] {
			return a.Coords[i] < b.Coords[i]
		}
	}
	if len(a.Coords) != len(b.Coords) {
		return len(a.Coords) < len(b.Coords)
	}
	return a.Space.Tuple() < b.Space.Tuple()
}
