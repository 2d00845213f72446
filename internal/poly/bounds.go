package poly

// DimBound is one bound on a dimension in terms of the dimensions
// preceding it. A lower bound reads d >= ceil(Expr/Den), an upper bound
// d <= floor(Expr/Den). Den is 1 for the unit-coefficient constraints
// the engine emits for stencil code.
type DimBound struct {
	Expr Aff
	Den  int64
}

// DimBounds projects the set onto dimensions 0..d and returns the lower
// and upper bounds of dimension d as expressions over the outer
// dimensions. ok is false when the projection detects infeasibility.
func (b BasicSet) DimBounds(d int) (lower, upper []DimBound, ok bool) {
	cur := b.t.clone()
	feasible := true
	for c := cur.nCol() - 1; c > d; c-- {
		cur, feasible = cur.eliminateCol(c)
		if !feasible {
			return nil, nil, false
		}
	}
	prefix := Space{tuple: b.space.tuple, dims: b.space.DimNames()[:d]}
	for _, r := range cur.rows {
		a := r.coef[d]
		if a == 0 {
			continue
		}
		rest := Aff{space: prefix, coeffs: append([]int64(nil), r.coef[:d]...), cst: r.cst}
		if a > 0 || r.eq {
			den := a
			if den < 0 {
				den = -den
			}
			e := rest.Neg()
			if a < 0 {
				e = rest
			}
			lower = append(lower, DimBound{Expr: e, Den: den})
		}
		if a < 0 || r.eq {
			den := a
			if den < 0 {
				den = -den
			}
			e := rest
			if a > 0 {
				e = rest.Neg()
			}
			upper = append(upper, DimBound{Expr: e, Den: den})
		}
	}
	return lower, upper, true
}
