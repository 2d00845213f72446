package tiler

import (
	"fmt"

	"github.com/stencilkit/polytile/internal/poly"
	"github.com/stencilkit/polytile/internal/schedtree"
)

// overlapped tiles the band with independent space tiles. Each tile
// recomputes a halo of iterations owned by its neighbors, wide enough
// that no data flows between tiles of the same time tile row. The
// redundant instances are recorded as an expansion node between the
// tile band and the point band; the point band keeps the original
// iteration coordinates.
func overlapped(c *schedtree.Cursor, deps poly.Map, dom poly.Set, sizes []int64, opts Options) (*schedtree.Node, error) {
	band := c.Node().Band
	n := band.NMember()
	if n < 2 {
		return nil, fmt.Errorf("%w: overlapped tiling needs a time and a space dimension", ErrUnsupported)
	}
	nSpace := n - 1

	mins, maxs, err := slopes(deps, nSpace)
	if err != nil {
		return nil, err
	}

	haloL := make([]int64, nSpace)
	haloR := make([]int64, nSpace)
	anyHalo := false
	for i := 0; i < nSpace; i++ {
		if maxs[i] > 0 {
			haloL[i] = maxs[i]
		}
		if mins[i] < 0 {
			haloR[i] = -mins[i]
		}
		if haloL[i] != 0 || haloR[i] != 0 {
			anyHalo = true
		}
	}
	if !anyHalo {
		return nil, fmt.Errorf("%w: no dependence crosses space tiles", ErrUnsupported)
	}

	// A tile covering the whole extent of a dimension gains nothing
	// from overlap.
	for i := 0; i < nSpace; i++ {
		extent, unbounded, err := dimExtent(dom, 1+i)
		if err != nil {
			return nil, err
		}
		if !unbounded && sizes[1+i] >= extent {
			return nil, fmt.Errorf("%w: tile size %d covers the extent %d of space dimension %d",
				ErrUnsupported, sizes[1+i], extent, i)
		}
	}

	tile, point, err := band.Tile(sizes, opts.ScaleTileLoops, false)
	if err != nil {
		return nil, err
	}
	// Space tiles no longer exchange data within a time tile row.
	for i := 1; i < n; i++ {
		tile.Members[i].Coincident = true
	}

	exp, err := overlapExpansion(dom, n, sizes, haloL, haloR)
	if err != nil {
		return nil, err
	}

	child := c.Node().Child(0)
	sub := schedtree.NewBand(tile,
		schedtree.NewExpansion(exp, poly.EmptyMap(),
			schedtree.NewBand(point, child)))
	opts.Log.V(1).Info("overlapped tiling applied",
		"sizes", sizes, "haloLeft", haloL, "haloRight", haloR)
	return c.Replace(sub), nil
}

// overlapExpansion builds the relation from tile anchor instances to
// the instances their tile computes, halo included. The halo narrows as
// time advances through the tile: at time offset r within a time tile
// of size T, a slope sigma still needs sigma*(T-1-r) extra columns.
func overlapExpansion(dom poly.Set, n int, sizes []int64, haloL, haloR []int64) (poly.Map, error) {
	T := sizes[0]
	var pieces []poly.BasicMap
	for _, name := range dom.TupleNames() {
		sp := dom.PiecesFor(name)[0].Space()
		if sp.NDim() < n {
			pieces = append(pieces, poly.IdentityBasicMap(sp))
			continue
		}
		m := poly.UniverseBasicMap(sp, sp)
		m = m.ConstrainEQ(m.OutVar(0).Sub(m.InVar(0)))
		for j := n; j < sp.NDim(); j++ {
			m = m.ConstrainEQ(m.OutVar(j).Sub(m.InVar(j)))
		}
		r, err := m.InVar(0).Mod(T)
		if err != nil {
			return poly.Map{}, err
		}
		for i := 0; i < n-1; i++ {
			d := 1 + i
			S := sizes[d]
			lo, err := dimLow(dom, name, d)
			if err != nil {
				return poly.Map{}, err
			}
			anchor, err := m.InVar(d).AddConst(-lo).Mod(S)
			if err != nil {
				return poly.Map{}, err
			}
			m = m.ConstrainEQ(anchor)
			m = m.ConstrainGE(m.OutVar(d).Sub(m.InVar(d)).
				AddConst(haloL[i] * (T - 1)).
				Sub(r.Scale(haloL[i])))
			m = m.ConstrainGE(m.InVar(d).Sub(m.OutVar(d)).
				AddConst(S - 1 + haloR[i]*(T-1)).
				Sub(r.Scale(haloR[i])))
		}
		pieces = append(pieces, m)
	}
	exp := poly.MapFrom(pieces...).IntersectDomain(dom).IntersectRange(dom)
	return exp, nil
}
