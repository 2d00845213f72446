package astgen

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-logr/logr"

	"github.com/stencilkit/polytile/internal/poly"
	"github.com/stencilkit/polytile/internal/schedtree"
)

// ErrUnsupported is returned when the schedule tree uses expressions
// the instance reconstruction cannot invert.
var ErrUnsupported = errors.New("astgen: schedule shape not supported")

// ErrUnbounded is returned when a schedule dimension has no finite
// bound to generate a loop from.
var ErrUnbounded = errors.New("astgen: schedule dimension is unbounded")

// Options configures code generation.
type Options struct {
	// OpenMP enables parallel-for classification and pragmas.
	OpenMP bool

	Log logr.Logger
}

// Build lowers the schedule tree to a loop nest. deps carries the
// dependences used to classify loops as parallel.
func Build(tree *schedtree.Node, deps poly.Map, opts Options) (*Program, error) {
	if tree.Kind != schedtree.KindDomain {
		return nil, fmt.Errorf("%w: tree root is %v, want domain", ErrUnsupported, tree.Kind)
	}
	st := state{
		origDom: tree.Domain,
		dom:     tree.Domain,
		rel:     zeroRel(tree.Domain),
		deps:    deps.IntersectDomain(tree.Domain).IntersectRange(tree.Domain),
		opts:    opts,
	}
	body, err := walk(tree.Child(0), st)
	if err != nil {
		return nil, err
	}
	return &Program{Body: body}, nil
}

// state is the per-subtree generation context. It is passed by value;
// slices are copied before growing so siblings stay independent.
//
// rel maps the active instances to the loop counters generated so far.
// It cannot be rebuilt from the member expressions alone: below an
// expansion node the outer loop counters belong to the instance that
// originated a copy, not to the copy's own coordinates.
type state struct {
	origDom poly.Set
	dom     poly.Set
	rel     poly.Map
	deps    poly.Map
	prefix  []map[string]poly.Aff
	inPar   bool
	opts    Options
}

// zeroRel maps every instance to the empty loop prefix.
func zeroRel(dom poly.Set) poly.Map {
	var pieces []poly.BasicMap
	for _, sp := range spacesOf(dom) {
		pieces = append(pieces, poly.UniverseBasicMap(sp, poly.AnonSpace(0)))
	}
	return poly.MapFrom(pieces...).IntersectDomain(dom)
}

func walk(n *schedtree.Node, st state) ([]Stmt, error) {
	if st.dom.IsEmpty() {
		return nil, nil
	}
	switch n.Kind {
	case schedtree.KindBand:
		// Classify against the dependences as seen below this node:
		// expansions further down replace instances by copies, and an
		// empty contraction severs the dependences entirely.
		contr := schedtree.SubtreeContraction(n, st.dom)
		classDeps := contr.ApplyRange(st.deps).ApplyRange(contr.Reverse())
		return band(n, 0, st, classDeps)
	case schedtree.KindSequence:
		var out []Stmt
		for _, c := range n.Children {
			s, err := walk(c, st)
			if err != nil {
				return nil, err
			}
			out = append(out, s...)
		}
		return out, nil
	case schedtree.KindFilter:
		st.dom = st.dom.Intersect(n.Filter)
		st.rel = st.rel.IntersectDomain(n.Filter)
		st.deps = st.deps.IntersectDomain(n.Filter).IntersectRange(n.Filter)
		return walk(n.Child(0), st)
	case schedtree.KindExpansion:
		st.dom = st.dom.Apply(n.Expansion)
		// A copy inherits the outer loop coordinates of the instance
		// that expanded into it.
		st.rel = n.Expansion.Reverse().ApplyRange(st.rel)
		st.deps = n.Contraction.ApplyRange(st.deps).ApplyRange(n.Contraction.Reverse())
		return walk(n.Child(0), st)
	case schedtree.KindContext:
		return walk(n.Child(0), st)
	case schedtree.KindLeaf:
		return leaf(st)
	case schedtree.KindDomain:
		st.dom = st.dom.Intersect(n.Domain)
		return walk(n.Child(0), st)
	}
	return nil, fmt.Errorf("%w: node kind %v", ErrUnsupported, n.Kind)
}

// band generates the loop for member j and recurses into the remaining
// members and then the child subtree.
func band(n *schedtree.Node, j int, st state, classDeps poly.Map) ([]Stmt, error) {
	m := n.Band.Members[j]
	idx := len(st.prefix)

	prefix := make([]map[string]poly.Aff, idx+1)
	copy(prefix, st.prefix)
	prefix[idx] = m.Sched

	rel := st.rel.RangeProduct(memberSchedMap(m.Sched, spacesOf(st.dom)))
	img := rel.Range()
	if img.IsEmpty() {
		return nil, nil
	}
	lower, upper, err := loopBounds(img, idx)
	if err != nil {
		return nil, err
	}
	// A scaled tile loop only visits multiples of the tile size; the
	// relaxed projection bounds must be realigned to that grid.
	stride := memberStride(m.Sched)
	if stride > 1 {
		lower = StrideAlign{Arg: lower, Stride: stride}
	}

	parallel := false
	if st.opts.OpenMP && !st.inPar && m.Coincident {
		parallel = parallelAt(classDeps, rel, idx)
	}

	inner := st
	inner.prefix = prefix
	inner.rel = rel
	if parallel {
		inner.inPar = true
	}
	var body []Stmt
	if j+1 < n.Band.NMember() {
		body, err = band(n, j+1, inner, classDeps)
	} else {
		body, err = walk(n.Child(0), inner)
	}
	if err != nil {
		return nil, err
	}
	return []Stmt{&For{
		Var:      loopVar(idx),
		Lower:    lower,
		Upper:    upper,
		Step:     stride,
		Parallel: parallel,
		Body:     body,
	}}, nil
}

// memberStride reports the common stride of a band member's values: a
// member of the form size*floor(x/size) only takes multiples of size.
func memberStride(sched map[string]poly.Aff) int64 {
	stride := int64(0)
	for _, a := range sched {
		s := int64(1)
		if a.NDiv() == 1 && a.DivCoef(0) == a.DivDen(0) {
			lin := false
			for d := 0; d < a.Space().NDim(); d++ {
				if a.Coeff(d) != 0 {
					lin = true
				}
			}
			if !lin && a.ConstVal() == 0 {
				s = a.DivDen(0)
			}
		}
		if stride == 0 {
			stride = s
		} else if stride != s {
			return 1
		}
	}
	if stride == 0 {
		return 1
	}
	return stride
}

func loopVar(idx int) string { return "c" + strconv.Itoa(idx) }

func loopNames(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = loopVar(i)
	}
	return names
}

// memberSchedMap maps statement instances to the one-dimensional image
// of a single band member.
func memberSchedMap(sched map[string]poly.Aff, spaces map[string]poly.Space) poly.Map {
	var pieces []poly.BasicMap
	for name, sp := range spaces {
		a, ok := sched[name]
		if !ok {
			a = poly.Constant(sp, 0)
		}
		m := poly.UniverseBasicMap(sp, poly.AnonSpace(1))
		m = m.ConstrainEQ(m.OutVar(0).Sub(m.LiftIn(a)))
		pieces = append(pieces, m)
	}
	return poly.MapFrom(pieces...)
}

func spacesOf(dom poly.Set) map[string]poly.Space {
	out := map[string]poly.Space{}
	for _, name := range dom.TupleNames() {
		out[name] = dom.PiecesFor(name)[0].Space()
	}
	return out
}

// loopBounds projects the scheduled set onto dimension d and renders
// covering bounds: the loosest lower and tightest-covering upper across
// the union's pieces.
func loopBounds(img poly.Set, d int) (Expr, Expr, error) {
	names := loopNames(d)
	var lows, ups []Expr
	for _, piece := range img.Pieces() {
		if piece.IsEmpty() {
			continue
		}
		lbs, ubs, ok := piece.DimBounds(d)
		if !ok {
			continue
		}
		if len(lbs) == 0 || len(ubs) == 0 {
			return nil, nil, ErrUnbounded
		}
		lo, err := boundExprs(lbs, names, true)
		if err != nil {
			return nil, nil, err
		}
		up, err := boundExprs(ubs, names, false)
		if err != nil {
			return nil, nil, err
		}
		lows = append(lows, MinMax{Max: true, Args: lo})
		ups = append(ups, MinMax{Max: false, Args: up})
	}
	if len(lows) == 0 {
		return nil, nil, ErrUnbounded
	}
	return MinMax{Max: false, Args: lows}, MinMax{Max: true, Args: ups}, nil
}

func boundExprs(bs []poly.DimBound, names []string, lower bool) ([]Expr, error) {
	out := make([]Expr, len(bs))
	for i, b := range bs {
		a := b.Expr
		if b.Den != 1 {
			var err error
			if lower {
				a, err = a.AddConst(b.Den - 1).FloorDiv(b.Den)
			} else {
				a, err = a.FloorDiv(b.Den)
			}
			if err != nil {
				return nil, err
			}
		}
		out[i] = AffExpr{Aff: a, Names: names}
	}
	return out, nil
}

// parallelAt reports whether loop d carries no dependence once the
// outer loop counters are fixed: no dependence pair may differ at
// dimension d while agreeing on all outer dimensions.
func parallelAt(deps poly.Map, sched poly.Map, d int) bool {
	sd := deps.ApplyDomain(sched).ApplyRange(sched)
	for j := 0; j < d; j++ {
		sd = sd.Equate(j)
	}
	for _, p := range sd.Pieces() {
		if d >= p.In().NDim() || d >= p.Out().NDim() {
			continue
		}
		fwd := p.ConstrainGE(p.OutVar(d).Sub(p.InVar(d)).AddConst(-1))
		back := p.ConstrainGE(p.InVar(d).Sub(p.OutVar(d)).AddConst(-1))
		if !fwd.IsEmpty() || !back.IsEmpty() {
			return false
		}
	}
	return true
}

// leaf emits the statement calls with their domain guards.
func leaf(st state) ([]Stmt, error) {
	names := loopNames(len(st.prefix))
	var out []Stmt
	for _, name := range st.dom.TupleNames() {
		sp := st.dom.PiecesFor(name)[0].Space()
		inst, err := instanceExprs(st.prefix, name, sp)
		if err != nil {
			return nil, err
		}
		args := make([]Expr, len(inst))
		for i, a := range inst {
			args[i] = AffExpr{Aff: a, Names: names}
		}
		call := &Call{Name: name, Args: args}
		for _, piece := range st.origDom.PiecesFor(name) {
			cons, _ := piece.Constraints()
			if len(cons) == 0 {
				out = append(out, call)
				continue
			}
			guard := &If{Body: []Stmt{call}}
			for _, c := range cons {
				pulled, err := c.Expr.Pullback(inst)
				if err != nil {
					return nil, err
				}
				guard.Conds = append(guard.Conds, Cond{
					Expr: AffExpr{Aff: pulled, Names: names},
					Eq:   c.Eq,
				})
			}
			out = append(out, guard)
		}
	}
	return out, nil
}

// instanceExprs recovers the statement's iteration coordinates from the
// loop counters. Supported member shapes are the ones the tiling pass
// produces: the coordinate itself, a floor of it (tile loop, scaled or
// not), and the within-tile remainder (shifted point loop).
func instanceExprs(prefix []map[string]poly.Aff, name string, sp poly.Space) ([]poly.Aff, error) {
	loopSp := poly.AnonSpace(len(prefix))
	type tileRef struct {
		idx    int
		size   int64
		scaled bool
	}
	direct := map[int]int{}
	tiles := map[int]tileRef{}
	points := map[int]int{}

	for j, mem := range prefix {
		a, ok := mem[name]
		if !ok {
			continue
		}
		d, nLin := singleLinearDim(a, sp.NDim())
		switch a.NDiv() {
		case 0:
			switch {
			case nLin == 0:
				// Padding constant.
			case nLin == 1 && a.Coeff(d) == 1 && a.ConstVal() == 0:
				direct[d] = j
			default:
				return nil, fmt.Errorf("%w: member %d of %s", ErrUnsupported, j, name)
			}
		case 1:
			dd, ok := singleUnitNumerator(a, sp.NDim())
			if !ok {
				return nil, fmt.Errorf("%w: member %d of %s", ErrUnsupported, j, name)
			}
			den := a.DivDen(0)
			switch {
			case nLin == 0 && a.ConstVal() == 0 && a.DivCoef(0) == den:
				tiles[dd] = tileRef{idx: j, size: den, scaled: true}
			case nLin == 0 && a.ConstVal() == 0 && a.DivCoef(0) == 1:
				tiles[dd] = tileRef{idx: j, size: den, scaled: false}
			case nLin == 1 && d == dd && a.Coeff(d) == 1 && a.ConstVal() == 0 && a.DivCoef(0) == -den:
				points[dd] = j
			default:
				return nil, fmt.Errorf("%w: member %d of %s", ErrUnsupported, j, name)
			}
		default:
			return nil, fmt.Errorf("%w: member %d of %s", ErrUnsupported, j, name)
		}
	}

	out := make([]poly.Aff, sp.NDim())
	for d := 0; d < sp.NDim(); d++ {
		switch {
		case hasKey(direct, d):
			out[d] = poly.Var(loopSp, direct[d])
		case hasKey(tiles, d) && hasKey(points, d):
			t := tiles[d]
			if t.scaled {
				out[d] = poly.Var(loopSp, t.idx).Add(poly.Var(loopSp, points[d]))
			} else {
				out[d] = poly.Var(loopSp, t.idx).Scale(t.size).Add(poly.Var(loopSp, points[d]))
			}
		default:
			return nil, fmt.Errorf("%w: no loop determines dimension %d of %s",
				ErrUnsupported, d, name)
		}
	}
	return out, nil
}

func singleLinearDim(a poly.Aff, n int) (dim, count int) {
	dim = -1
	for d := 0; d < n; d++ {
		if a.Coeff(d) != 0 {
			dim = d
			count++
		}
	}
	return dim, count
}

func singleUnitNumerator(a poly.Aff, n int) (int, bool) {
	if a.DivNumConst(0) != 0 {
		return 0, false
	}
	dim := -1
	for d := 0; d < n; d++ {
		switch a.DivNumCoeff(0, d) {
		case 0:
		case 1:
			if dim >= 0 {
				return 0, false
			}
			dim = d
		default:
			return 0, false
		}
	}
	if dim < 0 {
		return 0, false
	}
	return dim, true
}

func hasKey[V any](m map[int]V, k int) bool {
	_, ok := m[k]
	return ok
}
