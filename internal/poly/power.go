package poly

// powerCap bounds how many compositions the power operations perform
// before they give up on an exact answer.
const powerCap = 64

// FixedPower returns m composed with itself k times (k >= 1). The bool
// reports whether the result is exact; it is false only when k exceeds
// the composition cap and an over-approximation had to be used.
func (m Map) FixedPower(k int) (Map, bool) {
	if k <= 1 {
		return m, true
	}
	if k <= powerCap {
		res := m
		for i := 1; i < k; i++ {
			res = res.ApplyRange(m)
			if res.IsEmpty() {
				return res, true
			}
		}
		return res, true
	}
	// Uniform relations scale exactly apart from intermediate domain
	// constraints, which makes the scaled map an over-approximation.
	var out []BasicMap
	for _, p := range m.pieces {
		off, ok := p.ConstantOffsets()
		if !ok {
			return Map{}, false
		}
		scaled := make([]int64, len(off))
		for i, o := range off {
			scaled[i] = o * int64(k)
		}
		out = append(out, OffsetsBasicMap(p.in, scaled))
	}
	return Map{pieces: out}, false
}

// BoundedPower returns the union of m^1 .. m^maxLen. The bool reports
// exactness: false when maxLen exceeded the composition cap before the
// chain died out.
func (m Map) BoundedPower(maxLen int) (Map, bool) {
	if maxLen < 1 {
		return EmptyMap(), true
	}
	acc := m
	p := m
	n := maxLen
	if n > powerCap {
		n = powerCap
	}
	for i := 2; i <= n; i++ {
		p = p.ApplyRange(m)
		if p.IsEmpty() {
			return acc, true
		}
		acc = acc.Union(p)
	}
	return acc, maxLen <= powerCap
}

// TransitiveClosure returns a superset of the transitive closure of m.
// The bool reports whether the result is known to be exact: true when
// the composition chain dies out within the cap, false otherwise.
func (m Map) TransitiveClosure() (Map, bool) {
	acc := m
	p := m
	for i := 2; i <= powerCap; i++ {
		p = p.ApplyRange(m)
		if p.IsEmpty() {
			return acc, true
		}
		acc = acc.Union(p)
	}
	// The chain is still alive. Fall back to an unconstrained multiple
	// of the uniform offsets when possible, a universe map otherwise.
	var out []BasicMap
	for _, p := range m.pieces {
		off, ok := p.ConstantOffsets()
		if !ok {
			out = append(out, UniverseBasicMap(p.in, p.out))
			continue
		}
		u := UniverseBasicMap(p.in, p.out)
		// out_i - in_i == off_i * n for some n >= 1.
		nCol := -1
		for i := 0; i < p.in.NDim(); i++ {
			t := u.t.clone()
			if nCol < 0 {
				nCol = t.addDivCol()
			}
			c := make([]int64, t.nCol())
			c[p.in.NDim()+i] = 1
			c[i] = -1
			c[nCol] = -off[i]
			t.addRow(c, 0, true)
			u.t = t
		}
		if nCol >= 0 {
			t := u.t.clone()
			c := make([]int64, t.nCol())
			c[nCol] = 1
			t.addRow(c, -1, false) // n >= 1
			u.t = t
		}
		out = append(out, u)
	}
	return Map{pieces: out}, false
}
