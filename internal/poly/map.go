package poly

// BasicMap is a conjunction of affine constraints relating an input
// tuple to an output tuple. Table columns are laid out as the input
// dimensions, then the output dimensions, then existential columns.
type BasicMap struct {
	in, out Space
	t       table
}

// UniverseBasicMap returns the unconstrained relation between in and out.
func UniverseBasicMap(in, out Space) BasicMap {
	return BasicMap{in: in, out: out, t: newTable(in.NDim() + out.NDim())}
}

// IdentityBasicMap returns {x -> x} over sp.
func IdentityBasicMap(sp Space) BasicMap {
	m := UniverseBasicMap(sp, sp)
	for i := 0; i < sp.NDim(); i++ {
		m = m.ConstrainEQ(m.OutVar(i).Sub(m.InVar(i)))
	}
	return m
}

// OffsetsBasicMap returns {x -> x + off} over sp.
func OffsetsBasicMap(sp Space, off []int64) BasicMap {
	m := UniverseBasicMap(sp, sp)
	for i := 0; i < sp.NDim(); i++ {
		m = m.ConstrainEQ(m.OutVar(i).Sub(m.InVar(i)).AddConst(-off[i]))
	}
	return m
}

// In returns the input space.
func (m BasicMap) In() Space { return m.in }

// Out returns the output space.
func (m BasicMap) Out() Space { return m.out }

// CombinedSpace returns the anonymous space over which constraint
// expressions for this map are written: input dimensions followed by
// output dimensions.
func (m BasicMap) CombinedSpace() Space {
	dims := make([]string, 0, m.in.NDim()+m.out.NDim())
	dims = append(dims, m.in.DimNames()...)
	for _, d := range m.out.DimNames() {
		dims = append(dims, d+"'")
	}
	return Space{dims: dims}
}

// InVar returns the expression selecting input dimension i, over the
// combined space.
func (m BasicMap) InVar(i int) Aff { return Var(m.CombinedSpace(), i) }

// OutVar returns the expression selecting output dimension i, over the
// combined space.
func (m BasicMap) OutVar(i int) Aff { return Var(m.CombinedSpace(), m.in.NDim()+i) }

// Const returns the constant expression c over the combined space.
func (m BasicMap) Const(c int64) Aff { return Constant(m.CombinedSpace(), c) }

// LiftIn re-expresses an expression over the input space as one over
// the combined space.
func (m BasicMap) LiftIn(a Aff) Aff { return m.lift(a, 0) }

// LiftOut re-expresses an expression over the output space as one over
// the combined space.
func (m BasicMap) LiftOut(a Aff) Aff { return m.lift(a, m.in.NDim()) }

func (m BasicMap) lift(a Aff, off int) Aff {
	sp := m.CombinedSpace()
	r := Zero(sp)
	for i, c := range a.coeffs {
		r.coeffs[off+i] = c
	}
	r.cst = a.cst
	for _, d := range a.divs {
		num := make([]int64, sp.NDim())
		for i, c := range d.num {
			num[off+i] = c
		}
		r.divs = append(r.divs, divTerm{coef: d.coef, num: num, cst: d.cst, den: d.den})
	}
	return r
}

// Constrain returns the map with the additional constraint a >= 0
// (a == 0 when eq is set). a must be over the combined space.
func (m BasicMap) Constrain(a Aff, eq bool) BasicMap {
	t := m.t.clone()
	t.addAff(a, eq, func(d int) int { return d })
	return BasicMap{in: m.in, out: m.out, t: t}
}

// ConstrainGE is shorthand for Constrain(a, false).
func (m BasicMap) ConstrainGE(a Aff) BasicMap { return m.Constrain(a, false) }

// ConstrainEQ is shorthand for Constrain(a, true).
func (m BasicMap) ConstrainEQ(a Aff) BasicMap { return m.Constrain(a, true) }

// IsEmpty reports whether the relation holds for no pair of points.
func (m BasicMap) IsEmpty() bool { return !m.t.feasible() }

// Reverse returns {y -> x : x -> y in m}.
func (m BasicMap) Reverse() BasicMap {
	nIn, nOut := m.in.NDim(), m.out.NDim()
	t := table{nVar: m.t.nVar, nDiv: m.t.nDiv}
	for _, r := range m.t.rows {
		c := make([]int64, len(r.coef))
		for i := 0; i < nIn; i++ {
			c[nOut+i] = r.coef[i]
		}
		for j := 0; j < nOut; j++ {
			c[j] = r.coef[nIn+j]
		}
		copy(c[nIn+nOut:], r.coef[nIn+nOut:])
		t.rows = append(t.rows, row{coef: c, cst: r.cst, eq: r.eq})
	}
	return BasicMap{in: m.out, out: m.in, t: t}
}

// Wrap flattens the relation into a set over the combined dimensions.
func (m BasicMap) Wrap() BasicSet {
	sp := Space{tuple: m.in.Tuple() + "->" + m.out.Tuple(), dims: m.CombinedSpace().DimNames()}
	return BasicSet{space: sp, t: m.t.clone()}
}

// project moves either the output (keepIn) or input dimensions into
// existential columns and returns the remaining dimensions as a set.
func (m BasicMap) project(keepIn bool) BasicSet {
	nIn, nOut := m.in.NDim(), m.out.NDim()
	keepN, dropN, keepOff, dropOff := nIn, nOut, 0, nIn
	sp := m.in
	if !keepIn {
		keepN, dropN, keepOff, dropOff = nOut, nIn, nIn, 0
		sp = m.out
	}
	t := table{nVar: keepN, nDiv: m.t.nDiv + dropN}
	for _, r := range m.t.rows {
		c := make([]int64, t.nCol())
		for i := 0; i < keepN; i++ {
			c[i] = r.coef[keepOff+i]
		}
		for k := 0; k < m.t.nDiv; k++ {
			c[keepN+k] = r.coef[nIn+nOut+k]
		}
		for i := 0; i < dropN; i++ {
			c[keepN+m.t.nDiv+i] = r.coef[dropOff+i]
		}
		t.rows = append(t.rows, row{coef: c, cst: r.cst, eq: r.eq})
	}
	return BasicSet{space: sp, t: t}
}

// Domain returns the set of inputs related to some output.
func (m BasicMap) Domain() BasicSet { return m.project(true) }

// Range returns the set of outputs related to some input.
func (m BasicMap) Range() BasicSet { return m.project(false) }

// applyBasic computes {y : x in s, x -> y in m}.
func applyBasic(s BasicSet, m BasicMap) (BasicSet, bool) {
	if !s.space.Equal(m.in) {
		return BasicSet{}, false
	}
	nIn, nOut := m.in.NDim(), m.out.NDim()
	t := table{nVar: nOut, nDiv: nIn + s.t.nDiv + m.t.nDiv}
	inCol := func(i int) int { return nOut + i }
	sDiv := func(k int) int { return nOut + nIn + k }
	mDiv := func(k int) int { return nOut + nIn + s.t.nDiv + k }
	for _, r := range s.t.rows {
		c := make([]int64, t.nCol())
		for i := 0; i < nIn; i++ {
			c[inCol(i)] = r.coef[i]
		}
		for k := 0; k < s.t.nDiv; k++ {
			c[sDiv(k)] = r.coef[nIn+k]
		}
		t.rows = append(t.rows, row{coef: c, cst: r.cst, eq: r.eq})
	}
	for _, r := range m.t.rows {
		c := make([]int64, t.nCol())
		for i := 0; i < nIn; i++ {
			c[inCol(i)] = r.coef[i]
		}
		for j := 0; j < nOut; j++ {
			c[j] = r.coef[nIn+j]
		}
		for k := 0; k < m.t.nDiv; k++ {
			c[mDiv(k)] = r.coef[nIn+nOut+k]
		}
		t.rows = append(t.rows, row{coef: c, cst: r.cst, eq: r.eq})
	}
	return BasicSet{space: m.out, t: t}, true
}

// composeBasic computes {x -> z : x -> y in m1, y -> z in m2}.
func composeBasic(m1, m2 BasicMap) (BasicMap, bool) {
	if !m1.out.Equal(m2.in) {
		return BasicMap{}, false
	}
	nA, nB, nC := m1.in.NDim(), m1.out.NDim(), m2.out.NDim()
	t := table{nVar: nA + nC, nDiv: nB + m1.t.nDiv + m2.t.nDiv}
	bCol := func(i int) int { return nA + nC + i }
	d1 := func(k int) int { return nA + nC + nB + k }
	d2 := func(k int) int { return nA + nC + nB + m1.t.nDiv + k }
	for _, r := range m1.t.rows {
		c := make([]int64, t.nCol())
		for i := 0; i < nA; i++ {
			c[i] = r.coef[i]
		}
		for j := 0; j < nB; j++ {
			c[bCol(j)] = r.coef[nA+j]
		}
		for k := 0; k < m1.t.nDiv; k++ {
			c[d1(k)] = r.coef[nA+nB+k]
		}
		t.rows = append(t.rows, row{coef: c, cst: r.cst, eq: r.eq})
	}
	for _, r := range m2.t.rows {
		c := make([]int64, t.nCol())
		for i := 0; i < nB; i++ {
			c[bCol(i)] = r.coef[i]
		}
		for j := 0; j < nC; j++ {
			c[nA+j] = r.coef[nB+j]
		}
		for k := 0; k < m2.t.nDiv; k++ {
			c[d2(k)] = r.coef[nB+nC+k]
		}
		t.rows = append(t.rows, row{coef: c, cst: r.cst, eq: r.eq})
	}
	return BasicMap{in: m1.in, out: m2.out, t: t}, true
}

func intersectBasicMap(a, b BasicMap) BasicMap {
	as := BasicSet{space: a.CombinedSpace(), t: a.t}
	bs := BasicSet{space: b.CombinedSpace(), t: b.t}
	return BasicMap{in: a.in, out: a.out, t: intersectBasic(as, bs).t}
}

// Map is a finite union of basic relations.
type Map struct {
	pieces []BasicMap
}

// EmptyMap returns a relation with no pieces.
func EmptyMap() Map { return Map{} }

// MapFrom builds a union relation from basic pieces.
func MapFrom(pieces ...BasicMap) Map {
	p := make([]BasicMap, len(pieces))
	copy(p, pieces)
	return Map{pieces: p}
}

// Pieces returns the basic relations making up the union.
func (m Map) Pieces() []BasicMap {
	p := make([]BasicMap, len(m.pieces))
	copy(p, m.pieces)
	return p
}

// Union returns m ∪ o.
func (m Map) Union(o Map) Map {
	return Map{pieces: append(m.Pieces(), o.Pieces()...)}
}

// Intersect returns m ∩ o.
func (m Map) Intersect(o Map) Map {
	var out []BasicMap
	for _, a := range m.pieces {
		for _, b := range o.pieces {
			if !a.in.Equal(b.in) || !a.out.Equal(b.out) {
				continue
			}
			c := intersectBasicMap(a, b)
			if !c.IsEmpty() {
				out = append(out, c)
			}
		}
	}
	return Map{pieces: out}
}

// Subtract returns a sound over-approximation of m \ o, exact when o's
// pieces carry no existential columns.
func (m Map) Subtract(o Map) Map {
	frags := m.Pieces()
	for _, b := range o.pieces {
		var next []BasicMap
		for _, a := range frags {
			if a.in.Equal(b.in) && a.out.Equal(b.out) {
				for _, w := range subtractBasic(a.Wrap(), b.Wrap()) {
					next = append(next, BasicMap{in: a.in, out: a.out, t: w.t})
				}
			} else {
				next = append(next, a)
			}
		}
		frags = next
	}
	return Map{pieces: frags}
}

// IsEmpty reports whether the relation holds for no pair of points.
func (m Map) IsEmpty() bool {
	for _, p := range m.pieces {
		if !p.IsEmpty() {
			return false
		}
	}
	return true
}

// IsSubset reports whether m ⊆ o. May report false negatives when o
// carries existential columns; never false positives.
func (m Map) IsSubset(o Map) bool { return m.Subtract(o).IsEmpty() }

// Reverse returns {y -> x : x -> y in m}.
func (m Map) Reverse() Map {
	out := make([]BasicMap, len(m.pieces))
	for i, p := range m.pieces {
		out[i] = p.Reverse()
	}
	return Map{pieces: out}
}

// Domain returns the set of inputs related to some output.
func (m Map) Domain() Set {
	var out []BasicSet
	for _, p := range m.pieces {
		out = append(out, p.Domain())
	}
	return Set{pieces: out}
}

// Range returns the set of outputs related to some input.
func (m Map) Range() Set {
	var out []BasicSet
	for _, p := range m.pieces {
		out = append(out, p.Range())
	}
	return Set{pieces: out}
}

// Wrap flattens the relation into a union set.
func (m Map) Wrap() Set {
	var out []BasicSet
	for _, p := range m.pieces {
		out = append(out, p.Wrap())
	}
	return Set{pieces: out}
}

// Apply returns {y : x in s, x -> y in m}.
func (s Set) Apply(m Map) Set {
	var out []BasicSet
	for _, sp := range s.pieces {
		for _, mp := range m.pieces {
			r, ok := applyBasic(sp, mp)
			if ok && !r.IsEmpty() {
				out = append(out, r)
			}
		}
	}
	return Set{pieces: out}
}

// ApplyRange composes o after m: {x -> z : x -> y in m, y -> z in o}.
func (m Map) ApplyRange(o Map) Map {
	var out []BasicMap
	for _, a := range m.pieces {
		for _, b := range o.pieces {
			c, ok := composeBasic(a, b)
			if ok && !c.IsEmpty() {
				out = append(out, c)
			}
		}
	}
	return Map{pieces: out}
}

// RangeProduct pairs the outputs of two relations over a shared input:
// {x -> (y, z) : x -> y in m, x -> z in o}, with the output dimensions
// of m preceding those of o in a flat anonymous space.
func (m Map) RangeProduct(o Map) Map {
	var out []BasicMap
	for _, a := range m.pieces {
		for _, b := range o.pieces {
			if !a.in.Equal(b.in) {
				continue
			}
			c := rangeProductBasic(a, b)
			if !c.IsEmpty() {
				out = append(out, c)
			}
		}
	}
	return Map{pieces: out}
}

func rangeProductBasic(a, b BasicMap) BasicMap {
	nIn, nA, nB := a.in.NDim(), a.out.NDim(), b.out.NDim()
	t := table{nVar: nIn + nA + nB, nDiv: a.t.nDiv + b.t.nDiv}
	for _, r := range a.t.rows {
		c := make([]int64, t.nCol())
		copy(c, r.coef[:nIn+nA])
		for k := 0; k < a.t.nDiv; k++ {
			c[t.nVar+k] = r.coef[nIn+nA+k]
		}
		t.rows = append(t.rows, row{coef: c, cst: r.cst, eq: r.eq})
	}
	for _, r := range b.t.rows {
		c := make([]int64, t.nCol())
		copy(c, r.coef[:nIn])
		for j := 0; j < nB; j++ {
			c[nIn+nA+j] = r.coef[nIn+j]
		}
		for k := 0; k < b.t.nDiv; k++ {
			c[t.nVar+a.t.nDiv+k] = r.coef[nIn+nB+k]
		}
		t.rows = append(t.rows, row{coef: c, cst: r.cst, eq: r.eq})
	}
	return BasicMap{in: a.in, out: AnonSpace(nA + nB), t: t}
}

// ApplyDomain transforms the inputs of m through o:
// {y -> z : x -> z in m, x -> y in o}.
func (m Map) ApplyDomain(o Map) Map {
	return o.Reverse().ApplyRange(m)
}

// IntersectDomain restricts the inputs of m to s.
func (m Map) IntersectDomain(s Set) Map {
	var out []BasicMap
	for _, p := range m.pieces {
		for _, b := range s.pieces {
			if !b.space.Equal(p.in) {
				continue
			}
			c := p.withSetRows(b, true)
			if !c.IsEmpty() {
				out = append(out, c)
			}
		}
	}
	return Map{pieces: out}
}

// IntersectRange restricts the outputs of m to s.
func (m Map) IntersectRange(s Set) Map {
	return m.Reverse().IntersectDomain(s).Reverse()
}

// withSetRows conjoins a set's constraints onto the input (or output)
// dimensions of a basic map.
func (p BasicMap) withSetRows(b BasicSet, onIn bool) BasicMap {
	off := 0
	if !onIn {
		off = p.in.NDim()
	}
	nDim := b.t.nVar
	t := table{nVar: p.t.nVar, nDiv: p.t.nDiv + b.t.nDiv}
	for _, r := range p.t.rows {
		c := make([]int64, t.nCol())
		copy(c, r.coef)
		t.rows = append(t.rows, row{coef: c, cst: r.cst, eq: r.eq})
	}
	for _, r := range b.t.rows {
		c := make([]int64, t.nCol())
		for i := 0; i < nDim; i++ {
			c[off+i] = r.coef[i]
		}
		for k := 0; k < b.t.nDiv; k++ {
			c[p.t.nCol()+k] = r.coef[nDim+k]
		}
		t.rows = append(t.rows, row{coef: c, cst: r.cst, eq: r.eq})
	}
	return BasicMap{in: p.in, out: p.out, t: t}
}

// SubtractDomain removes pairs whose input lies in s.
func (m Map) SubtractDomain(s Set) Map {
	frags := m.Pieces()
	for _, b := range s.pieces {
		if b.t.nDiv != 0 {
			continue // conservative: keep the pairs
		}
		var next []BasicMap
		for _, a := range frags {
			if !a.in.Equal(b.space) {
				next = append(next, a)
				continue
			}
			lifted := UniverseBasicMap(a.in, a.out).withSetRows(b, true)
			for _, w := range subtractBasic(a.Wrap(), lifted.Wrap()) {
				next = append(next, BasicMap{in: a.in, out: a.out, t: w.t})
			}
		}
		frags = next
	}
	return Map{pieces: frags}
}

// Equate adds the constraint out_i == in_i to every piece whose spaces
// have dimension i.
func (m Map) Equate(i int) Map {
	var out []BasicMap
	for _, p := range m.pieces {
		if i >= p.in.NDim() || i >= p.out.NDim() {
			out = append(out, p)
			continue
		}
		out = append(out, p.ConstrainEQ(p.OutVar(i).Sub(p.InVar(i))))
	}
	return Map{pieces: out}
}

// Coalesce drops empty pieces and pieces contained in another piece.
func (m Map) Coalesce() Map {
	coalesced := m.Wrap().Coalesce()
	var out []BasicMap
	for _, p := range m.pieces {
		w := p.Wrap()
		for _, k := range coalesced.pieces {
			if samePiece(w, k) {
				out = append(out, p)
				break
			}
		}
	}
	return Map{pieces: out}
}

func samePiece(a, b BasicSet) bool {
	if !a.space.Equal(b.space) || len(a.t.rows) != len(b.t.rows) {
		return false
	}
	for i := range a.t.rows {
		ra, rb := a.t.rows[i], b.t.rows[i]
		if ra.eq != rb.eq || ra.cst != rb.cst || len(ra.coef) != len(rb.coef) {
			return false
		}
		for j := range ra.coef {
			if ra.coef[j] != rb.coef[j] {
				return false
			}
		}
	}
	return true
}

// GistDomain drops constraints on the input dimensions that are implied
// by ctx.
func (m Map) GistDomain(ctx Set) Map {
	var out []BasicMap
	for _, p := range m.pieces {
		res := BasicMap{in: p.in, out: p.out, t: table{nVar: p.t.nVar, nDiv: p.t.nDiv}}
		nIn := p.in.NDim()
		for _, r := range p.t.rows {
			if onlyDomainDims(r, nIn) {
				aff := Aff{space: p.in, coeffs: append([]int64(nil), r.coef[:nIn]...), cst: r.cst}
				cons := UniverseSet(p.in).Constrain(aff, r.eq)
				if ctx.IsSubset(SetFrom(cons)) {
					continue
				}
			}
			res.t.addRow(r.coef, r.cst, r.eq)
		}
		out = append(out, res)
	}
	return Map{pieces: out}
}

func onlyDomainDims(r row, nIn int) bool {
	for _, c := range r.coef[nIn:] {
		if c != 0 {
			return false
		}
	}
	return true
}

// ConstantOffsets reports, for a basic piece between equal-arity spaces,
// the per-dimension constant distance out_i - in_i, if every pair in the
// piece has the same distance.
func (p BasicMap) ConstantOffsets() ([]int64, bool) {
	nIn, nOut := p.in.NDim(), p.out.NDim()
	if nIn != nOut || p.IsEmpty() {
		return nil, false
	}
	off := make([]int64, nIn)
	for d := 0; d < nIn; d++ {
		t := p.t.clone()
		e := t.addDivCol()
		c := make([]int64, t.nCol())
		c[nIn+d] = 1
		c[d] = -1
		c[e] = -1
		t.addRow(c, 0, true) // out_d - in_d - e == 0
		lb, ub, hasLb, hasUb, feas := t.colBounds(e)
		if !feas || !hasLb || !hasUb || lb != ub {
			return nil, false
		}
		off[d] = lb
	}
	return off, true
}
