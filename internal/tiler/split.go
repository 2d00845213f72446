package tiler

import (
	"fmt"

	"github.com/stencilkit/polytile/internal/poly"
	"github.com/stencilkit/polytile/internal/schedtree"
)

// split tiles the band so that each time tile row executes as a
// sequence of phases. Iterations drift against the space tile grid by
// the dependence slope as time advances; the phase of an iteration is
// how many tile widths its drifted position is ahead of its own tile.
// Data only ever flows toward higher phases, so the space tiles within
// one phase are independent.
//
// With several statements the dependences are folded onto one macro
// statement for the reachability computation, and zero-time-distance
// dependences between statements turn into per-statement constants on
// the drifted offset so the phase order still follows the data flow.
func split(c *schedtree.Cursor, deps poly.Map, dom poly.Set, sizes []int64, opts Options) (*schedtree.Node, error) {
	band := c.Node().Band
	n := band.NMember()
	if n < 2 {
		return nil, fmt.Errorf("%w: split tiling needs a time and a space dimension", ErrUnsupported)
	}

	T, S := sizes[0], sizes[1]
	if opts.MinimizeSync {
		extent, unbounded, err := dimExtent(dom, 0)
		if err != nil {
			return nil, err
		}
		if !unbounded && extent > T {
			T = extent
			opts.Log.V(1).Info("enlarged time tile to minimize synchronization", "timeTile", T)
		}
	}

	timeDeps, offs, zeros, err := splitOffsets(deps)
	if err != nil {
		return nil, err
	}
	mins, maxs, err := slopes(timeDeps, 1)
	if err != nil {
		return nil, err
	}
	if mins[0] < 0 && maxs[0] > 0 {
		return nil, fmt.Errorf("%w: dependences flow in both space directions", ErrUnsupported)
	}
	drift, dir := -mins[0], int64(1)
	if maxs[0] > 0 {
		drift, dir = maxs[0], -1
	}
	if drift == 0 {
		for _, z := range zeros {
			if z.off[1] > 0 {
				dir = -1
				break
			}
		}
	}
	for _, z := range zeros {
		if z.off[1]*dir > 0 {
			return nil, fmt.Errorf("%w: zero-time dependence flows against the drift direction", ErrUnsupported)
		}
	}

	stmtShift, err := statementShifts(dom, offs, drift, dir)
	if err != nil {
		return nil, err
	}
	var spread int64
	for _, v := range stmtShift {
		if v > spread {
			spread = v
		}
	}

	delta := T - 1
	if extent, unbounded, err := dimExtent(dom, 0); err != nil {
		return nil, err
	} else if !unbounded && extent-1 < delta {
		delta = extent - 1
	}
	reach := drift * delta
	exact := true
	if len(offs) > 0 && delta > 0 {
		pow, pexact := macroPower(offs, int(delta))
		if r, ok := maxSpaceDrop(pow, dir); !ok {
			pexact = false
		} else if r > reach {
			reach = r
		}
		exact = exact && pexact
	}
	if len(zeros) > 0 {
		// Zero-time chains cost no time steps, so their accumulated
		// shift is bounded by the closure, not by the time budget.
		zc, zexact := zeroClosure(zeros)
		if zr, ok := maxSpaceDrop(zc, dir); !ok {
			zexact = false
		} else if zr > spread {
			spread = zr
		}
		exact = exact && zexact
	}
	if !exact {
		opts.Log.Info("dependence reachability is inexact, over-approximating the phase count")
	}
	nPhases := (S-1+reach+spread)/S + 1

	// Tile the first two members; deeper members stay as an inner band.
	work := band
	var rest *schedtree.BandInfo
	if n > 2 {
		var serr error
		work, rest, serr = band.Split(2)
		if serr != nil {
			return nil, serr
		}
	}
	mySizes := []int64{T, S}
	tile2, point2, err := work.Tile(mySizes, opts.ScaleTileLoops, opts.ShiftPointLoops)
	if err != nil {
		return nil, err
	}
	tt, st, err := tile2.Split(1)
	if err != nil {
		return nil, err
	}
	st.Members[0].Coincident = true

	child := c.Node().Child(0)
	if rest != nil {
		child = schedtree.NewBand(rest, child)
	}
	inner := func() *schedtree.Node {
		return schedtree.NewBand(st.Clone(), schedtree.NewBand(point2.Clone(), child))
	}

	if nPhases <= 1 {
		opts.Log.V(1).Info("split tiling degenerated to a single phase", "sizes", mySizes)
		return c.Replace(schedtree.NewBand(tt, inner())), nil
	}

	filters := make([]*schedtree.Node, 0, int(nPhases))
	for k := int64(0); k < nPhases; k++ {
		f, err := phaseFilter(dom, k, nPhases, T, S, drift, dir, stmtShift)
		if err != nil {
			return nil, err
		}
		filters = append(filters, schedtree.NewFilter(f, inner()))
	}
	opts.Log.V(1).Info("split tiling applied",
		"sizes", mySizes, "phases", nPhases, "drift", drift*dir)
	return c.Replace(schedtree.NewBand(tt, schedtree.NewSequence(filters...))), nil
}

// depOffset is one uniform dependence piece reduced to its constant
// per-dimension distances.
type depOffset struct {
	in, out poly.Space
	off     []int64
}

// splitOffsets classifies the dependence pieces. Time-advancing pieces
// feed the slope derivation; zero-time pieces with a distance on the
// tiled space dimension become per-statement phase shifts. Pieces with
// no distance at all are dropped.
func splitOffsets(deps poly.Map) (timeDeps poly.Map, offs, zeros []depOffset, err error) {
	var timePieces []poly.BasicMap
	for _, p := range deps.Pieces() {
		if p.IsEmpty() {
			continue
		}
		off, ok := p.ConstantOffsets()
		if !ok {
			return poly.Map{}, nil, nil, ErrUnsupported
		}
		o := depOffset{in: p.In(), out: p.Out(), off: off}
		dt := off[0]
		switch {
		case dt < 0:
			return poly.Map{}, nil, nil, ErrUnsupported
		case dt == 0:
			zero := true
			for _, d := range off[1:] {
				if d != 0 {
					zero = false
				}
			}
			// A zero-time distance on an untiled inner dimension stays
			// inside one space tile and needs no phase separation.
			if zero || off[1] == 0 {
				continue
			}
			zeros = append(zeros, o)
			offs = append(offs, o)
		default:
			timePieces = append(timePieces, p)
			offs = append(offs, o)
		}
	}
	return poly.MapFrom(timePieces...), offs, zeros, nil
}

// statementShifts solves, per statement, the constant added to its
// drifted offset so that every dependence lands in the same or a later
// phase. A dependence src->dst with distances (dt, ds) requires
// shift[dst] - shift[src] >= -(dir*ds + drift*dt); the longest-path
// solution keeps the shifts minimal. A cycle of binding constraints has
// no solution and the pattern is rejected.
func statementShifts(dom poly.Set, offs []depOffset, drift, dir int64) (map[string]int64, error) {
	shift := make(map[string]int64)
	for _, name := range dom.TupleNames() {
		shift[name] = 0
	}
	n := len(shift)
	for iter := 0; ; iter++ {
		changed := false
		for _, o := range offs {
			var ds int64
			if len(o.off) > 1 {
				ds = o.off[1]
			}
			w := -(dir*ds + drift*o.off[0])
			if shift[o.in.Tuple()]+w > shift[o.out.Tuple()] {
				shift[o.out.Tuple()] = shift[o.in.Tuple()] + w
				changed = true
			}
		}
		if !changed {
			return shift, nil
		}
		if iter >= n {
			return nil, fmt.Errorf("%w: zero-time dependence cycle between statements", ErrUnsupported)
		}
	}
}

// macroPower folds every dependence onto one anonymous macro statement
// of the time and the tiled space dimension, then bounds its
// reachability by maxLen applications.
func macroPower(offs []depOffset, maxLen int) (poly.Map, bool) {
	sp := poly.AnonSpace(2)
	var pieces []poly.BasicMap
	for _, o := range offs {
		var ds int64
		if len(o.off) > 1 {
			ds = o.off[1]
		}
		pieces = append(pieces, poly.OffsetsBasicMap(sp, []int64{o.off[0], ds}))
	}
	return poly.MapFrom(pieces...).BoundedPower(maxLen)
}

// zeroClosure rebuilds the zero-time pieces as unrestricted relations
// between their statement tuples and takes the transitive closure.
func zeroClosure(zeros []depOffset) (poly.Map, bool) {
	var pieces []poly.BasicMap
	for _, o := range zeros {
		m := poly.UniverseBasicMap(o.in, o.out)
		for i, c := range o.off {
			m = m.ConstrainEQ(m.OutVar(i).Sub(m.InVar(i)).AddConst(-c))
		}
		pieces = append(pieces, m)
	}
	return poly.MapFrom(pieces...).TransitiveClosure()
}

// maxSpaceDrop returns the largest distance against the drift direction
// on the tiled space dimension over the pieces of m. It fails when a
// piece has no constant distances.
func maxSpaceDrop(m poly.Map, dir int64) (int64, bool) {
	var r int64
	for _, p := range m.Pieces() {
		if p.IsEmpty() {
			continue
		}
		off, ok := p.ConstantOffsets()
		if !ok {
			return 0, false
		}
		var ds int64
		if len(off) > 1 {
			ds = off[1]
		}
		if d := -dir * ds; d > r {
			r = d
		}
	}
	return r, true
}

// phaseFilter builds the instance set of phase k. With e the drifted
// offset of an iteration within its space tile, plus the statement's
// shift constant, phase k holds the iterations with e in
// [k*S, k*S+S-1]. The outermost bound of the first and last phase is
// trivially true and omitted.
func phaseFilter(dom poly.Set, k, nPhases, T, S, drift, dir int64, shift map[string]int64) (poly.Set, error) {
	var pieces []poly.BasicSet
	for _, name := range dom.TupleNames() {
		sp := dom.PiecesFor(name)[0].Space()
		if sp.NDim() < 2 {
			if k == 0 {
				pieces = append(pieces, poly.UniverseSet(sp))
			}
			continue
		}
		r, err := poly.Var(sp, 0).Mod(T)
		if err != nil {
			return poly.Set{}, err
		}
		smod, err := poly.Var(sp, 1).Mod(S)
		if err != nil {
			return poly.Set{}, err
		}
		e := smod.Add(r.Scale(drift * dir)).Scale(dir)
		if dir < 0 {
			// Mirroring flips the within-tile offset; shift it back
			// onto the [k*S, k*S+S-1] grid.
			e = e.AddConst(S - 1)
		}
		e = e.AddConst(shift[name])
		b := poly.UniverseSet(sp)
		if k > 0 {
			b = b.ConstrainGE(e.AddConst(-k * S))
		}
		if k < nPhases-1 {
			b = b.ConstrainGE(e.Neg().AddConst(k*S + S - 1))
		}
		pieces = append(pieces, b)
	}
	return poly.SetFrom(pieces...).Intersect(dom), nil
}
