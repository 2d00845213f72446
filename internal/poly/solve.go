package poly

// row is one affine constraint over the columns of a table:
// coef . x + cst >= 0, or == 0 when eq is set.
type row struct {
	coef []int64
	cst  int64
	eq   bool
}

func (r row) clone() row {
	c := make([]int64, len(r.coef))
	copy(c, r.coef)
	r.coef = c
	return r
}

// table is a conjunction of constraints over nVar real dimensions
// followed by nDiv existential (floordiv) columns. It is the shared
// machinery behind BasicSet and BasicMap.
type table struct {
	nVar int
	nDiv int
	rows []row
}

func newTable(nVar int) table { return table{nVar: nVar} }

func (t table) nCol() int { return t.nVar + t.nDiv }

func (t table) clone() table {
	rows := make([]row, len(t.rows))
	for i := range t.rows {
		rows[i] = t.rows[i].clone()
	}
	t.rows = rows
	return t
}

// addDivCol appends an existential column and returns its index.
func (t *table) addDivCol() int {
	col := t.nCol()
	t.nDiv++
	for i := range t.rows {
		t.rows[i].coef = append(t.rows[i].coef, 0)
	}
	return col
}

func (t *table) addRow(coef []int64, cst int64, eq bool) {
	c := make([]int64, t.nCol())
	copy(c, coef)
	t.rows = append(t.rows, row{coef: c, cst: cst, eq: eq})
}

// addAff lowers a quasi-affine constraint aff >= 0 (or == 0) into rows.
// colOf maps a dimension index of aff's space to a table column. Each
// floordiv term introduces an existential column q with
// 0 <= num - den*q <= den-1.
func (t *table) addAff(a Aff, eq bool, colOf func(dim int) int) {
	main := make([]int64, t.nCol())
	for i, c := range a.coeffs {
		if c != 0 {
			main[colOf(i)] += c
		}
	}
	cst := a.cst
	for _, d := range a.divs {
		q := t.addDivCol()
		main = append(main, 0)
		main[q] += d.coef

		num := make([]int64, t.nCol())
		for i, c := range d.num {
			if c != 0 {
				num[colOf(i)] += c
			}
		}
		num[q] = -d.den
		t.addRow(num, d.cst, false) // num - den*q >= 0
		neg := make([]int64, t.nCol())
		for i, c := range num {
			neg[i] = -c
		}
		t.addRow(neg, -d.cst+d.den-1, false) // den*q + den-1 - num >= 0
	}
	t.addRow(main, cst, eq)
}

// normalizeRow tightens a row by its content gcd. It reports false when
// the row is unsatisfiable on its own, and sets drop when the row is
// trivially true and can be removed.
func normalizeRow(r *row) (ok, drop bool) {
	var g int64
	for _, c := range r.coef {
		g = gcd64(g, c)
	}
	if g == 0 {
		if r.eq {
			return r.cst == 0, true
		}
		return r.cst >= 0, true
	}
	if g > 1 {
		if r.eq && r.cst%g != 0 {
			return false, false
		}
		for i := range r.coef {
			r.coef[i] /= g
		}
		if r.eq {
			r.cst /= g
		} else {
			r.cst = floorDiv(r.cst, g)
		}
	}
	return true, false
}

func (t table) normalize() (table, bool) {
	out := t.rows[:0:0]
	for _, r := range t.rows {
		r = r.clone()
		ok, drop := normalizeRow(&r)
		if !ok {
			return t, false
		}
		if !drop {
			out = append(out, r)
		}
	}
	t.rows = out
	return t, true
}

// eliminateCol removes column col, projecting the constraint system onto
// the remaining columns. Equality substitution is used when available,
// Fourier-Motzkin pairing otherwise. Exact for unit coefficients on the
// eliminated column; otherwise a sound over-approximation.
// Reports false when the system is detectably infeasible.
func (t table) eliminateCol(col int) (table, bool) {
	t, ok := t.clone().normalize()
	if !ok {
		return t, false
	}
	// Prefer an equality with a unit coefficient on col.
	eqIdx := -1
	for i, r := range t.rows {
		if !r.eq || r.coef[col] == 0 {
			continue
		}
		if eqIdx < 0 || abs64(r.coef[col]) < abs64(t.rows[eqIdx].coef[col]) {
			eqIdx = i
		}
		if abs64(r.coef[col]) == 1 {
			break
		}
	}
	var out []row
	if eqIdx >= 0 {
		e := t.rows[eqIdx]
		a := e.coef[col]
		sign := int64(1)
		if a < 0 {
			sign = -1
		}
		for i, r := range t.rows {
			if i == eqIdx {
				continue
			}
			b := r.coef[col]
			if b == 0 {
				out = append(out, r)
				continue
			}
			// |a|*r - sign(a)*b*e has zero coefficient on col.
			n := row{coef: make([]int64, len(r.coef)), eq: r.eq}
			for j := range r.coef {
				n.coef[j] = abs64(a)*r.coef[j] - sign*b*e.coef[j]
			}
			n.cst = abs64(a)*r.cst - sign*b*e.cst
			out = append(out, n)
		}
	} else {
		var pos, neg []row
		for _, r := range t.rows {
			switch {
			case r.coef[col] > 0:
				pos = append(pos, r)
			case r.coef[col] < 0:
				neg = append(neg, r)
			default:
				out = append(out, r)
			}
		}
		for _, p := range pos {
			for _, n := range neg {
				a, b := p.coef[col], n.coef[col] // a>0, b<0
				c := row{coef: make([]int64, len(p.coef))}
				for j := range p.coef {
					c.coef[j] = -b*p.coef[j] + a*n.coef[j]
				}
				c.cst = -b*p.cst + a*n.cst
				out = append(out, c)
			}
		}
	}
	// Drop the column.
	res := table{nVar: t.nVar, nDiv: t.nDiv}
	if col < t.nVar {
		res.nVar--
	} else {
		res.nDiv--
	}
	for _, r := range out {
		r.coef = append(r.coef[:col:col], r.coef[col+1:]...)
		ok, drop := normalizeRow(&r)
		if !ok {
			return res, false
		}
		if !drop {
			res.rows = append(res.rows, r)
		}
	}
	return res, true
}

// fix substitutes the integer value v for column col and removes it.
func (t table) fix(col int, v int64) table {
	res := table{nVar: t.nVar, nDiv: t.nDiv}
	if col < t.nVar {
		res.nVar--
	} else {
		res.nDiv--
	}
	for _, r := range t.rows {
		r = r.clone()
		r.cst += r.coef[col] * v
		r.coef = append(r.coef[:col:col], r.coef[col+1:]...)
		res.rows = append(res.rows, r)
	}
	return res
}

// feasible reports whether the system has an integer solution. The test
// is exact for the unit-coefficient class and errs on the side of
// reporting feasible otherwise.
func (t table) feasible() bool {
	cur := t.clone()
	ok := true
	for cur.nCol() > 0 {
		// Eliminate existential columns first so equality
		// substitution sees the div definitions.
		col := cur.nCol() - 1
		cur, ok = cur.eliminateCol(col)
		if !ok {
			return false
		}
	}
	for _, r := range cur.rows {
		if r.eq && r.cst != 0 {
			return false
		}
		if !r.eq && r.cst < 0 {
			return false
		}
	}
	return true
}

// colBounds projects the system onto a single column and returns its
// integer bounds there. hasLb/hasUb report one-sided unboundedness.
// The final bool is false when the system is infeasible.
func (t table) colBounds(col int) (lb, ub int64, hasLb, hasUb, feas bool) {
	cur := t.clone()
	ok := true
	for c := cur.nCol() - 1; c >= 0; c-- {
		if c == col {
			continue
		}
		cur, ok = cur.eliminateCol(c)
		if !ok {
			return 0, 0, false, false, false
		}
		if c < col {
			col--
		}
	}
	for _, r := range cur.rows {
		a := r.coef[col]
		switch {
		case a == 0:
			if (r.eq && r.cst != 0) || (!r.eq && r.cst < 0) {
				return 0, 0, false, false, false
			}
		case a > 0:
			v := ceilDiv(-r.cst, a)
			if !hasLb || v > lb {
				lb, hasLb = v, true
			}
			if r.eq {
				w := floorDiv(-r.cst, a)
				if !hasUb || w < ub {
					ub, hasUb = w, true
				}
			}
		default: // a < 0
			v := floorDiv(r.cst, -a)
			if !hasUb || v < ub {
				ub, hasUb = v, true
			}
			if r.eq {
				w := ceilDiv(r.cst, -a)
				if !hasLb || w > lb {
					lb, hasLb = w, true
				}
			}
		}
	}
	if hasLb && hasUb && lb > ub {
		return 0, 0, false, false, false
	}
	return lb, ub, hasLb, hasUb, true
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
