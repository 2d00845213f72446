package tiler

import (
	"errors"

	"github.com/stencilkit/polytile/internal/poly"
)

// ErrUnsupported is returned when the dependence pattern is outside the
// class a tiling strategy can handle.
var ErrUnsupported = errors.New("tiler: dependence pattern not supported by this strategy")

// slopes extracts, per space dimension, the minimum and maximum
// dependence slope ds/dt across all dependence pieces. The supported
// class is uniform dependences with dt >= 1, slope magnitude at most 1
// and ds divisible by dt. Zero-distance pieces are ignored.
func slopes(deps poly.Map, nSpace int) (mins, maxs []int64, err error) {
	mins = make([]int64, nSpace)
	maxs = make([]int64, nSpace)
	seen := false
	for _, p := range deps.Pieces() {
		if p.IsEmpty() {
			continue
		}
		off, ok := p.ConstantOffsets()
		if !ok {
			return nil, nil, ErrUnsupported
		}
		dt := off[0]
		if dt == 0 {
			zero := true
			for _, d := range off[1:] {
				if d != 0 {
					zero = false
				}
			}
			if zero {
				continue
			}
			return nil, nil, ErrUnsupported
		}
		if dt < 0 {
			return nil, nil, ErrUnsupported
		}
		for i := 0; i < nSpace && i < len(off)-1; i++ {
			ds := off[1+i]
			if ds%dt != 0 {
				return nil, nil, ErrUnsupported
			}
			s := ds / dt
			if s > 1 || s < -1 {
				return nil, nil, ErrUnsupported
			}
			if !seen || s < mins[i] {
				mins[i] = s
			}
			if !seen || s > maxs[i] {
				maxs[i] = s
			}
		}
		seen = true
	}
	return mins, maxs, nil
}

// dimExtent returns the number of iterations spanned by dimension d of
// the domain, or unbounded=true when the dimension has no finite bound.
func dimExtent(dom poly.Set, d int) (extent int64, unbounded bool, err error) {
	var pieces []poly.BasicMap
	for _, p := range dom.Pieces() {
		sp := p.Space()
		if d >= sp.NDim() {
			continue
		}
		sel := poly.UniverseBasicMap(sp, poly.AnonSpace(1))
		sel = sel.ConstrainEQ(sel.OutVar(0).Sub(sel.InVar(d)))
		pieces = append(pieces, sel)
	}
	img := dom.Apply(poly.MapFrom(pieces...))
	min, err := img.LexMinPoint()
	if errors.Is(err, poly.ErrUnbounded) {
		return 0, true, nil
	}
	if err != nil {
		return 0, false, err
	}
	max, err := img.LexMaxPoint()
	if errors.Is(err, poly.ErrUnbounded) {
		return 0, true, nil
	}
	if err != nil {
		return 0, false, err
	}
	return max.Coord(0) - min.Coord(0) + 1, false, nil
}

// dimLow returns the smallest value of dimension d over the pieces of
// the named statement.
func dimLow(dom poly.Set, tuple string, d int) (int64, error) {
	sub := poly.SetFrom(dom.PiecesFor(tuple)...)
	var pieces []poly.BasicMap
	for _, p := range sub.Pieces() {
		sp := p.Space()
		sel := poly.UniverseBasicMap(sp, poly.AnonSpace(1))
		sel = sel.ConstrainEQ(sel.OutVar(0).Sub(sel.InVar(d)))
		pieces = append(pieces, sel)
	}
	min, err := sub.Apply(poly.MapFrom(pieces...)).LexMinPoint()
	if err != nil {
		return 0, err
	}
	return min.Coord(0), nil
}
