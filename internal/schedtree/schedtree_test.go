package schedtree

import (
	"testing"

	"github.com/stencilkit/polytile/internal/poly"
)

func identityBand(t *testing.T, sp poly.Space) *BandInfo {
	t.Helper()
	b := &BandInfo{}
	for i := 0; i < sp.NDim(); i++ {
		b.Members = append(b.Members, BandMember{
			Sched: map[string]poly.Aff{sp.Tuple(): poly.Var(sp, i)},
		})
	}
	return b
}

func TestTileScaledShifted(t *testing.T) {
	sp := poly.NewSpace("S", "t", "s")
	b := identityBand(t, sp)
	tile, point, err := b.Tile([]int64{4, 8}, true, true)
	if err != nil {
		t.Fatal(err)
	}
	if !tile.Atomic {
		t.Error("tile band not marked atomic")
	}
	coords := []int64{7, 19}
	if got := tile.Members[0].Sched["S"].Eval(coords); got != 4 {
		t.Errorf("scaled tile coord 0 at t=7: got %d, want 4", got)
	}
	if got := tile.Members[1].Sched["S"].Eval(coords); got != 16 {
		t.Errorf("scaled tile coord 1 at s=19: got %d, want 16", got)
	}
	if got := point.Members[0].Sched["S"].Eval(coords); got != 3 {
		t.Errorf("shifted point coord 0 at t=7: got %d, want 3", got)
	}
	if got := point.Members[1].Sched["S"].Eval(coords); got != 3 {
		t.Errorf("shifted point coord 1 at s=19: got %d, want 3", got)
	}
}

func TestTileUnshiftedPoints(t *testing.T) {
	sp := poly.NewSpace("S", "t", "s")
	b := identityBand(t, sp)
	_, point, err := b.Tile([]int64{4, 8}, true, false)
	if err != nil {
		t.Fatal(err)
	}
	coords := []int64{7, 19}
	if got := point.Members[1].Sched["S"].Eval(coords); got != 19 {
		t.Errorf("unshifted point coord 1 at s=19: got %d, want 19", got)
	}
}

func TestTileUnscaled(t *testing.T) {
	sp := poly.NewSpace("S", "t")
	b := identityBand(t, sp)
	tile, _, err := b.Tile([]int64{4}, false, true)
	if err != nil {
		t.Fatal(err)
	}
	if got := tile.Members[0].Sched["S"].Eval([]int64{7}); got != 1 {
		t.Errorf("unscaled tile coord at t=7: got %d, want 1", got)
	}
}

func TestTileCoincidencePropagates(t *testing.T) {
	sp := poly.NewSpace("S", "t", "s")
	b := identityBand(t, sp)
	b.Members[1].Coincident = true
	tile, point, err := b.Tile([]int64{4, 4}, true, true)
	if err != nil {
		t.Fatal(err)
	}
	if tile.Members[0].Coincident || !tile.Members[1].Coincident {
		t.Error("tile band coincidence flags wrong")
	}
	if point.Members[0].Coincident || !point.Members[1].Coincident {
		t.Error("point band coincidence flags wrong")
	}
}

func TestTileTooFewSizes(t *testing.T) {
	sp := poly.NewSpace("S", "t", "s")
	b := identityBand(t, sp)
	if _, _, err := b.Tile([]int64{4}, true, true); err != ErrFewMembers {
		t.Fatalf("err = %v, want ErrFewMembers", err)
	}
}

func TestSplit(t *testing.T) {
	sp := poly.NewSpace("S", "t", "s", "u")
	b := identityBand(t, sp)
	outer, inner, err := b.Split(1)
	if err != nil {
		t.Fatal(err)
	}
	if outer.NMember() != 1 || inner.NMember() != 2 {
		t.Fatalf("split sizes %d/%d, want 1/2", outer.NMember(), inner.NMember())
	}
	if _, _, err := b.Split(0); err != ErrFewMembers {
		t.Fatalf("split at 0: err = %v, want ErrFewMembers", err)
	}
	if _, _, err := b.Split(3); err != ErrFewMembers {
		t.Fatalf("split at width: err = %v, want ErrFewMembers", err)
	}
}

func TestSchedMapImage(t *testing.T) {
	sp := poly.NewSpace("S", "t", "s")
	b := identityBand(t, sp)
	dom := poly.SetFrom(rect(sp, []int64{0, 0}, []int64{9, 9}))
	m := b.SchedMap(map[string]poly.Space{"S": sp}, 0, 2)
	img := dom.Apply(m)
	max, err := img.LexMaxPoint()
	if err != nil {
		t.Fatal(err)
	}
	if max.Coord(0) != 9 || max.Coord(1) != 9 {
		t.Errorf("identity schedule image lexmax = %v, want [9,9]", max.Coords)
	}
}

func TestSchedMapTiledImage(t *testing.T) {
	sp := poly.NewSpace("S", "t")
	b := identityBand(t, sp)
	tile, _, err := b.Tile([]int64{4}, true, true)
	if err != nil {
		t.Fatal(err)
	}
	dom := poly.SetFrom(rect(sp, []int64{0}, []int64{9}))
	img := dom.Apply(tile.SchedMap(map[string]poly.Space{"S": sp}, 0, 1))
	max, merr := img.LexMaxPoint()
	if merr != nil {
		t.Fatal(merr)
	}
	if max.Coord(0) != 8 {
		t.Errorf("tile image lexmax = %d, want 8", max.Coord(0))
	}
}

func TestCursorReplaceSharesSiblings(t *testing.T) {
	sp := poly.NewSpace("S", "t")
	dom := poly.SetFrom(rect(sp, []int64{0}, []int64{9}))
	band := NewBand(identityBand(t, sp), NewLeaf())
	root := NewDomain(dom, band)

	c, ok := FindBand(root)
	if !ok {
		t.Fatal("band not found")
	}
	tile, point, err := c.Node().Band.Tile([]int64{4}, true, true)
	if err != nil {
		t.Fatal(err)
	}
	newRoot := c.Replace(NewBand(tile, NewBand(point, NewLeaf())))

	if root.Child(0).Band.NMember() != 1 || root.Child(0).Child(0).Kind != KindLeaf {
		t.Error("original tree modified by Replace")
	}
	if newRoot.Child(0).Child(0).Kind != KindBand {
		t.Error("replacement missing point band")
	}
	if newRoot.Kind != KindDomain {
		t.Error("replacement lost the domain root")
	}
}

func TestSubtreeContractionIdentity(t *testing.T) {
	sp := poly.NewSpace("S", "t")
	dom := poly.SetFrom(rect(sp, []int64{0}, []int64{4}))
	root := NewDomain(dom, NewBand(identityBand(t, sp), NewLeaf()))
	contr := SubtreeContraction(root, dom)
	pt := poly.FromPoint(poly.Point{Space: sp, Coords: []int64{3}})
	img := pt.Apply(contr)
	if !img.IsSubset(pt) || !pt.IsSubset(img) {
		t.Error("contraction of expansion-free tree is not the identity")
	}
}

func TestSubtreeContractionEmpty(t *testing.T) {
	sp := poly.NewSpace("S", "t")
	dom := poly.SetFrom(rect(sp, []int64{0}, []int64{4}))
	exp := NewExpansion(poly.EmptyMap(), poly.EmptyMap(),
		NewBand(identityBand(t, sp), NewLeaf()))
	root := NewDomain(dom, exp)
	contr := SubtreeContraction(root, dom)
	if !contr.IsEmpty() {
		t.Error("contraction through an empty-contraction expansion is not empty")
	}
}

func rect(sp poly.Space, lo, hi []int64) poly.BasicSet {
	b := poly.UniverseSet(sp)
	for i := range lo {
		b = b.ConstrainGE(poly.Var(sp, i).AddConst(-lo[i]))
		b = b.ConstrainGE(poly.Var(sp, i).Neg().AddConst(hi[i]))
	}
	return b
}
