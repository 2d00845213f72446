package schedtree

import (
	"errors"

	"github.com/stencilkit/polytile/internal/poly"
)

// ErrNotBand is returned when a band operation is applied to a node of
// a different kind.
var ErrNotBand = errors.New("schedtree: node is not a band")

// ErrFewMembers is returned when a band has too few members for the
// requested operation.
var ErrFewMembers = errors.New("schedtree: band has too few members")

// BandMember is one dimension of a band's partial schedule: a per-
// statement affine expression plus a coincidence flag.
type BandMember struct {
	// Sched maps a statement tuple name to the schedule expression
	// over that statement's iteration space.
	Sched map[string]poly.Aff

	// Coincident records that instances mapped to the same value by
	// this member carry no dependence between them.
	Coincident bool
}

// Clone deep-copies the member.
func (m BandMember) Clone() BandMember {
	s := make(map[string]poly.Aff, len(m.Sched))
	for k, v := range m.Sched {
		s[k] = v
	}
	m.Sched = s
	return m
}

// BandInfo is the payload of a band node.
type BandInfo struct {
	Members []BandMember

	// Atomic requests that the generated loops for this band not be
	// separated or unrolled, matching the isl "atomic" ast build
	// option the tile loops are marked with.
	Atomic bool
}

// Clone deep-copies the band.
func (b *BandInfo) Clone() *BandInfo {
	c := &BandInfo{Atomic: b.Atomic}
	c.Members = make([]BandMember, len(b.Members))
	for i, m := range b.Members {
		c.Members[i] = m.Clone()
	}
	return c
}

// NMember returns the number of schedule dimensions.
func (b *BandInfo) NMember() int { return len(b.Members) }

// Statements returns the tuple names scheduled by the band, from its
// first member.
func (b *BandInfo) Statements() []string {
	if len(b.Members) == 0 {
		return nil
	}
	names := make([]string, 0, len(b.Members[0].Sched))
	for k := range b.Members[0].Sched {
		names = append(names, k)
	}
	return names
}

// Tile splits the band into a tile band and a point band following the
// isl tiling options: with scale set, tile loops run over multiples of
// the tile size, otherwise over tile numbers; with shift set, point
// loops are shifted to start at zero within each tile, otherwise they
// keep the original iteration coordinates.
func (b *BandInfo) Tile(sizes []int64, scale, shift bool) (tile, point *BandInfo, err error) {
	if len(sizes) < len(b.Members) {
		return nil, nil, ErrFewMembers
	}
	tile = &BandInfo{Atomic: true}
	point = &BandInfo{}
	for i, m := range b.Members {
		size := sizes[i]
		tm := BandMember{Sched: map[string]poly.Aff{}, Coincident: m.Coincident}
		pm := BandMember{Sched: map[string]poly.Aff{}, Coincident: m.Coincident}
		for stmt, a := range m.Sched {
			fl, ferr := a.FloorDiv(size)
			if ferr != nil {
				return nil, nil, ferr
			}
			if scale {
				tm.Sched[stmt] = fl.Scale(size)
			} else {
				tm.Sched[stmt] = fl
			}
			if shift {
				pm.Sched[stmt] = a.Sub(fl.Scale(size))
			} else {
				pm.Sched[stmt] = a
			}
		}
		tile.Members = append(tile.Members, tm)
		point.Members = append(point.Members, pm)
	}
	return tile, point, nil
}

// Split cuts the band after member n, returning the outer and inner
// halves.
func (b *BandInfo) Split(n int) (outer, inner *BandInfo, err error) {
	if n <= 0 || n >= len(b.Members) {
		return nil, nil, ErrFewMembers
	}
	c := b.Clone()
	outer = &BandInfo{Members: c.Members[:n], Atomic: b.Atomic}
	inner = &BandInfo{Members: c.Members[n:], Atomic: b.Atomic}
	return outer, inner, nil
}

// SchedMap builds the relation from statement instances to the band's
// schedule image, restricted to members [from, to).
func (b *BandInfo) SchedMap(stmtSpaces map[string]poly.Space, from, to int) poly.Map {
	var pieces []poly.BasicMap
	for stmt, sp := range stmtSpaces {
		out := poly.AnonSpace(to - from)
		m := poly.UniverseBasicMap(sp, out)
		for j := from; j < to; j++ {
			a, ok := b.Members[j].Sched[stmt]
			if !ok {
				continue
			}
			// out_j == a(in).
			m = m.ConstrainEQ(m.OutVar(j - from).Sub(m.LiftIn(a)))
		}
		pieces = append(pieces, m)
	}
	return poly.MapFrom(pieces...)
}
