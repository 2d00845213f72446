package tiler

import (
	"testing"

	"github.com/go-logr/logr"

	"github.com/stencilkit/polytile/internal/poly"
	"github.com/stencilkit/polytile/internal/schedtree"
)

func rect(sp poly.Space, lo, hi []int64) poly.BasicSet {
	b := poly.UniverseSet(sp)
	for i := range lo {
		b = b.ConstrainGE(poly.Var(sp, i).AddConst(-lo[i]))
		b = b.ConstrainGE(poly.Var(sp, i).Neg().AddConst(hi[i]))
	}
	return b
}

func stencilTree() (*schedtree.Node, poly.Space) {
	sp := poly.NewSpace("S", "t", "s")
	dom := poly.SetFrom(rect(sp, []int64{0, 0}, []int64{7, 15}))
	band := &schedtree.BandInfo{Members: []schedtree.BandMember{
		{Sched: map[string]poly.Aff{"S": poly.Var(sp, 0)}},
		{Sched: map[string]poly.Aff{"S": poly.Var(sp, 1)}, Coincident: true},
	}}
	return schedtree.NewDomain(dom, schedtree.NewBand(band, schedtree.NewLeaf())), sp
}

func uniformDeps(sp poly.Space, off ...int64) poly.Map {
	return poly.MapFrom(poly.OffsetsBasicMap(sp, off))
}

func twoStatementTree() (*schedtree.Node, poly.Space, poly.Space) {
	spS := poly.NewSpace("S", "t", "s")
	spP := poly.NewSpace("P", "t", "s")
	dom := poly.SetFrom(
		rect(spS, []int64{0, 0}, []int64{7, 15}),
		rect(spP, []int64{0, 0}, []int64{7, 15}),
	)
	band := &schedtree.BandInfo{Members: []schedtree.BandMember{
		{Sched: map[string]poly.Aff{"S": poly.Var(spS, 0), "P": poly.Var(spP, 0)}},
		{Sched: map[string]poly.Aff{"S": poly.Var(spS, 1), "P": poly.Var(spP, 1)}, Coincident: true},
	}}
	return schedtree.NewDomain(dom, schedtree.NewBand(band, schedtree.NewLeaf())), spS, spP
}

func crossDeps(in, out poly.Space, off ...int64) poly.Map {
	m := poly.UniverseBasicMap(in, out)
	for i, o := range off {
		m = m.ConstrainEQ(m.OutVar(i).Sub(m.InVar(i)).AddConst(-o))
	}
	return poly.MapFrom(m)
}

func contains(s poly.Set, sp poly.Space, coords ...int64) bool {
	return !poly.FromPoint(poly.Point{Space: sp, Coords: coords}).Intersect(s).IsEmpty()
}

func TestParallelogram(t *testing.T) {
	tree, _ := stencilTree()
	out, err := Apply(tree, poly.EmptyMap(), Options{
		Sizes: []int64{4, 4}, Strategy: Parallelogram,
		ScaleTileLoops: true, ShiftPointLoops: true, Log: logr.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	tile := out.Child(0)
	point := tile.Child(0)
	if tile.Kind != schedtree.KindBand || point.Kind != schedtree.KindBand {
		t.Fatal("expected tile band over point band")
	}
	if !tile.Band.Atomic {
		t.Error("tile band not atomic")
	}
	if got := tile.Band.Members[0].Sched["S"].Eval([]int64{6, 0}); got != 4 {
		t.Errorf("tile coord at t=6: got %d, want 4", got)
	}
	if got := point.Band.Members[0].Sched["S"].Eval([]int64{6, 0}); got != 2 {
		t.Errorf("point coord at t=6: got %d, want 2", got)
	}
}

func TestApplyLeavesShallowNests(t *testing.T) {
	sp := poly.NewSpace("S", "i")
	dom := poly.SetFrom(rect(sp, []int64{0}, []int64{7}))
	band := &schedtree.BandInfo{Members: []schedtree.BandMember{
		{Sched: map[string]poly.Aff{"S": poly.Var(sp, 0)}},
	}}
	tree := schedtree.NewDomain(dom, schedtree.NewBand(band, schedtree.NewLeaf()))
	if _, err := Apply(tree, poly.EmptyMap(), Options{
		Sizes: []int64{4}, Log: logr.Discard(),
	}); err != schedtree.ErrFewMembers {
		t.Fatalf("err = %v, want ErrFewMembers", err)
	}
}

func TestNormSizes(t *testing.T) {
	got := normSizes(3, []int64{4})
	for i, want := range []int64{4, 4, 4} {
		if got[i] != want {
			t.Errorf("normSizes[%d] = %d, want %d", i, got[i], want)
		}
	}
	got = normSizes(2, nil)
	if got[0] != DefaultTileSize || got[1] != DefaultTileSize {
		t.Errorf("normSizes with no sizes = %v", got)
	}
}

func TestOverlappedExpansion(t *testing.T) {
	tree, sp := stencilTree()
	out, err := Apply(tree, uniformDeps(sp, 1, 1), Options{
		Sizes: []int64{4, 4}, Strategy: Overlapped,
		ScaleTileLoops: true, Log: logr.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	exp := out.Child(0).Child(0)
	if exp.Kind != schedtree.KindExpansion {
		t.Fatalf("node under tile band is %v, want expansion", exp.Kind)
	}
	if !exp.Contraction.IsEmpty() {
		t.Error("overlapped contraction not empty")
	}

	// The anchor at (0,4) starts a tile with three halo columns on the
	// left: slope 1 times the three remaining time steps.
	img := poly.FromPoint(poly.Point{Space: sp, Coords: []int64{0, 4}}).Apply(exp.Expansion)
	min, err := img.LexMinPoint()
	if err != nil {
		t.Fatal(err)
	}
	if min.Coord(1) != 1 {
		t.Errorf("halo start at (0,4): got s'=%d, want 1", min.Coord(1))
	}
	max, err := img.LexMaxPoint()
	if err != nil {
		t.Fatal(err)
	}
	if max.Coord(1) != 7 {
		t.Errorf("tile end at (0,4): got s'=%d, want 7", max.Coord(1))
	}

	// At the last time step of the tile the halo has shrunk to nothing.
	img = poly.FromPoint(poly.Point{Space: sp, Coords: []int64{3, 4}}).Apply(exp.Expansion)
	min, err = img.LexMinPoint()
	if err != nil {
		t.Fatal(err)
	}
	if min.Coord(1) != 4 {
		t.Errorf("halo at (3,4): got s'=%d, want 4", min.Coord(1))
	}

	// Non-anchor columns expand to nothing.
	img = poly.FromPoint(poly.Point{Space: sp, Coords: []int64{0, 5}}).Apply(exp.Expansion)
	if !img.IsEmpty() {
		t.Error("non-anchor column produced copies")
	}
}

func TestOverlappedCoversDomain(t *testing.T) {
	tree, sp := stencilTree()
	out, err := Apply(tree, uniformDeps(sp, 1, 1), Options{
		Sizes: []int64{4, 4}, Strategy: Overlapped,
		ScaleTileLoops: true, Log: logr.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	exp := out.Child(0).Child(0)
	img := out.RootDomain().Apply(exp.Expansion)
	for ti := int64(0); ti <= 7; ti++ {
		for s := int64(0); s <= 15; s++ {
			if !contains(img, sp, ti, s) {
				t.Fatalf("instance (%d,%d) not covered by the expansion", ti, s)
			}
		}
	}
}

func TestOverlappedFallsBackOnWideTiles(t *testing.T) {
	tree, sp := stencilTree()
	out, err := Apply(tree, uniformDeps(sp, 1, 1), Options{
		Sizes: []int64{4, 32}, Strategy: Overlapped,
		ScaleTileLoops: true, Log: logr.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, found := findExpansion(out); found {
		t.Error("expected plain tiling when the tile covers the extent")
	}
}

func TestOverlappedFallsBackWithoutDeps(t *testing.T) {
	tree, _ := stencilTree()
	out, err := Apply(tree, poly.EmptyMap(), Options{
		Sizes: []int64{4, 4}, Strategy: Overlapped,
		ScaleTileLoops: true, Log: logr.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, found := findExpansion(out); found {
		t.Error("expected plain tiling without dependences")
	}
}

func TestSplitTwoPhases(t *testing.T) {
	tree, sp := stencilTree()
	out, err := Apply(tree, uniformDeps(sp, 1, -1), Options{
		Sizes: []int64{4, 4}, Strategy: Split,
		ScaleTileLoops: true, ShiftPointLoops: true, Log: logr.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	tt := out.Child(0)
	if tt.Kind != schedtree.KindBand || tt.Band.NMember() != 1 {
		t.Fatal("expected a one-member time tile band at the top")
	}
	seq := tt.Child(0)
	if seq.Kind != schedtree.KindSequence {
		t.Fatalf("node under time tile is %v, want sequence", seq.Kind)
	}
	if seq.NChildren() != 2 {
		t.Fatalf("got %d phases, want 2", seq.NChildren())
	}

	phase0 := seq.Child(0).Filter
	phase1 := seq.Child(1).Filter
	// At row start nothing has drifted.
	if !contains(phase0, sp, 0, 0) {
		t.Error("(0,0) not in phase 0")
	}
	// One step into the row, the last column of a tile has drifted
	// into the next phase.
	if !contains(phase1, sp, 1, 3) {
		t.Error("(1,3) not in phase 1")
	}
	if contains(phase0, sp, 1, 3) {
		t.Error("(1,3) also in phase 0")
	}
	if !contains(phase0, sp, 1, 2) {
		t.Error("(1,2) not in phase 0")
	}

	// Each phase's space tile band is marked coincident.
	st := seq.Child(0).Child(0)
	if st.Kind != schedtree.KindBand || !st.Band.Members[0].Coincident {
		t.Error("space tile band of phase 0 not coincident")
	}
}

func TestSplitPhasesPartitionDomain(t *testing.T) {
	tree, sp := stencilTree()
	out, err := Apply(tree, uniformDeps(sp, 1, -1), Options{
		Sizes: []int64{4, 4}, Strategy: Split,
		ScaleTileLoops: true, ShiftPointLoops: true, Log: logr.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	seq := out.Child(0).Child(0)
	for ti := int64(0); ti <= 7; ti++ {
		for s := int64(0); s <= 15; s++ {
			n := 0
			for i := 0; i < seq.NChildren(); i++ {
				if contains(seq.Child(i).Filter, sp, ti, s) {
					n++
				}
			}
			if n != 1 {
				t.Fatalf("instance (%d,%d) in %d phases, want exactly 1", ti, s, n)
			}
		}
	}
}

func TestSplitCrossStatementShift(t *testing.T) {
	tree, spS, spP := twoStatementTree()
	deps := uniformDeps(spS, 1, -1).Union(crossDeps(spS, spP, 0, -1))
	out, err := Apply(tree, deps, Options{
		Sizes: []int64{4, 4}, Strategy: Split,
		ScaleTileLoops: true, ShiftPointLoops: true, Log: logr.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	seq := out.Child(0).Child(0)
	if seq.Kind != schedtree.KindSequence {
		t.Fatalf("node under time tile is %v, want a phase sequence", seq.Kind)
	}
	if seq.NChildren() != 2 {
		t.Fatalf("got %d phases, want 2", seq.NChildren())
	}

	phase0 := seq.Child(0).Filter
	phase1 := seq.Child(1).Filter
	// P consumes S one column down within the same time step, so P
	// runs one column ahead on the phase grid: at s=3 the producer is
	// still in phase 0 while the consumer has crossed into phase 1.
	if !contains(phase0, spS, 0, 3) {
		t.Error("S(0,3) not in phase 0")
	}
	if !contains(phase1, spP, 0, 3) {
		t.Error("P(0,3) not in phase 1")
	}
	if !contains(phase0, spP, 0, 2) {
		t.Error("P(0,2) not in phase 0")
	}
	// The consumer of S(0,4) sits in the next tile down; it must not
	// share S's phase.
	if !contains(phase0, spS, 0, 4) {
		t.Error("S(0,4) not in phase 0")
	}
	if contains(phase0, spP, 0, 3) {
		t.Error("P(0,3) shares phase 0 with its producer's tile row")
	}
}

func TestSplitMultiStatementPartition(t *testing.T) {
	tree, spS, spP := twoStatementTree()
	deps := uniformDeps(spS, 1, -1).Union(crossDeps(spS, spP, 0, -1))
	out, err := Apply(tree, deps, Options{
		Sizes: []int64{4, 4}, Strategy: Split,
		ScaleTileLoops: true, ShiftPointLoops: true, Log: logr.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	seq := out.Child(0).Child(0)
	for _, sp := range []poly.Space{spS, spP} {
		for ti := int64(0); ti <= 7; ti++ {
			for s := int64(0); s <= 15; s++ {
				n := 0
				for i := 0; i < seq.NChildren(); i++ {
					if contains(seq.Child(i).Filter, sp, ti, s) {
						n++
					}
				}
				if n != 1 {
					t.Fatalf("%s(%d,%d) in %d phases, want exactly 1", sp.Tuple(), ti, s, n)
				}
			}
		}
	}
}

func TestSplitZeroTimeAgainstDriftFallsBack(t *testing.T) {
	tree, spS, spP := twoStatementTree()
	deps := uniformDeps(spS, 1, -1).Union(crossDeps(spS, spP, 0, 1))
	out, err := Apply(tree, deps, Options{
		Sizes: []int64{4, 4}, Strategy: Split,
		ScaleTileLoops: true, ShiftPointLoops: true, Log: logr.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	walk(out, func(n *schedtree.Node) {
		if n.Kind == schedtree.KindSequence {
			found = true
		}
	})
	if found {
		t.Error("expected parallelogram fallback when the shift opposes the drift")
	}
}

func TestOverlappedMultiStatement(t *testing.T) {
	tree, spS, spP := twoStatementTree()
	deps := uniformDeps(spS, 1, 1).Union(crossDeps(spS, spP, 1, 1))
	out, err := Apply(tree, deps, Options{
		Sizes: []int64{4, 4}, Strategy: Overlapped,
		ScaleTileLoops: true, Log: logr.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	exp, found := findExpansion(out)
	if !found {
		t.Fatal("no expansion node for a two-statement stencil")
	}
	img := out.RootDomain().Apply(exp.Expansion)
	for _, sp := range []poly.Space{spS, spP} {
		for ti := int64(0); ti <= 7; ti++ {
			for s := int64(0); s <= 15; s++ {
				if !contains(img, sp, ti, s) {
					t.Fatalf("instance %s(%d,%d) not covered by the expansion", sp.Tuple(), ti, s)
				}
			}
		}
	}
	// Both statements get the same left halo at the anchor column.
	for _, sp := range []poly.Space{spS, spP} {
		pimg := poly.FromPoint(poly.Point{Space: sp, Coords: []int64{0, 4}}).Apply(exp.Expansion)
		min, err := pimg.LexMinPoint()
		if err != nil {
			t.Fatal(err)
		}
		if min.Coord(1) != 1 {
			t.Errorf("halo start of %s at (0,4): got s'=%d, want 1", sp.Tuple(), min.Coord(1))
		}
	}
}

func TestSplitSinglePhaseWithoutDrift(t *testing.T) {
	tree, sp := stencilTree()
	out, err := Apply(tree, uniformDeps(sp, 1, 0), Options{
		Sizes: []int64{4, 4}, Strategy: Split,
		ScaleTileLoops: true, ShiftPointLoops: true, Log: logr.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if out.Child(0).Child(0).Kind == schedtree.KindSequence {
		t.Error("expected no sequence for drift-free dependences")
	}
}

func TestSplitBothDirectionsFallsBack(t *testing.T) {
	tree, sp := stencilTree()
	deps := uniformDeps(sp, 1, -1).Union(uniformDeps(sp, 1, 1))
	out, err := Apply(tree, deps, Options{
		Sizes: []int64{4, 4}, Strategy: Split,
		ScaleTileLoops: true, ShiftPointLoops: true, Log: logr.Discard(),
	})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	walk(out, func(n *schedtree.Node) {
		if n.Kind == schedtree.KindSequence {
			found = true
		}
	})
	if found {
		t.Error("expected parallelogram fallback for two-sided dependences")
	}
}

func TestSlopesRejectNonUniform(t *testing.T) {
	sp := poly.NewSpace("S", "t", "s")
	nu := poly.UniverseBasicMap(sp, sp)
	nu = nu.ConstrainEQ(nu.OutVar(0).Sub(nu.InVar(0)).AddConst(-1))
	nu = nu.ConstrainGE(nu.OutVar(1).Sub(nu.InVar(1)))
	nu = nu.ConstrainGE(nu.OutVar(1).Sub(nu.InVar(1)).Neg().AddConst(2))
	if _, _, err := slopes(poly.MapFrom(nu), 1); err == nil {
		t.Fatal("non-uniform dependence accepted")
	}
}

func TestSlopesRejectNonUnit(t *testing.T) {
	sp := poly.NewSpace("S", "t", "s")
	if _, _, err := slopes(uniformDeps(sp, 1, 2), 1); err == nil {
		t.Fatal("slope 2 accepted")
	}
}

func findExpansion(n *schedtree.Node) (*schedtree.Node, bool) {
	var found *schedtree.Node
	walk(n, func(m *schedtree.Node) {
		if m.Kind == schedtree.KindExpansion && found == nil {
			found = m
		}
	})
	return found, found != nil
}

func walk(n *schedtree.Node, f func(*schedtree.Node)) {
	f(n)
	for _, c := range n.Children {
		walk(c, f)
	}
}
