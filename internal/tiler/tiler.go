package tiler

import (
	"errors"

	"github.com/go-logr/logr"

	"github.com/stencilkit/polytile/internal/poly"
	"github.com/stencilkit/polytile/internal/schedtree"
)

// Strategy selects how a band is tiled.
type Strategy int

const (
	// Parallelogram blocks the band directly.
	Parallelogram Strategy = iota

	// Overlapped recomputes tile edges so space tiles are independent.
	Overlapped

	// Split sequences each time tile row into phases of independent
	// space tiles.
	Split
)

func (s Strategy) String() string {
	switch s {
	case Parallelogram:
		return "parallelogram"
	case Overlapped:
		return "overlapped"
	case Split:
		return "split"
	}
	return "unknown"
}

// DefaultTileSize pads missing tile sizes.
const DefaultTileSize = 32

// Options configures a tiling run.
type Options struct {
	Sizes    []int64
	Strategy Strategy

	// ScaleTileLoops makes tile loops iterate over multiples of the
	// tile size instead of tile numbers.
	ScaleTileLoops bool

	// ShiftPointLoops shifts point loops to start at zero within each
	// tile. Overlapped tiling forces this off for its point band.
	ShiftPointLoops bool

	// MinimizeSync enlarges the time tile to the full time extent so
	// split tiling produces a single row of phases.
	MinimizeSync bool

	Log logr.Logger
}

// Apply tiles the first band of the tree according to the options.
// Overlapped and split tiling fall back to parallelogram tiling when
// the dependences are outside their supported class; deps carries the
// flow dependences they read slopes from.
func Apply(tree *schedtree.Node, deps poly.Map, opts Options) (*schedtree.Node, error) {
	c, ok := schedtree.FindBand(tree)
	if !ok {
		return nil, schedtree.ErrNotBand
	}
	if c.Node().Band.NMember() < 2 {
		return nil, schedtree.ErrFewMembers
	}
	sizes := normSizes(c.Node().Band.NMember(), opts.Sizes)

	dom := tree.RootDomain()
	restricted := deps.IntersectDomain(dom).IntersectRange(dom)

	var out *schedtree.Node
	var err error
	switch opts.Strategy {
	case Overlapped:
		out, err = overlapped(c, restricted, dom, sizes, opts)
	case Split:
		out, err = split(c, restricted, dom, sizes, opts)
	default:
		return parallelogram(c, sizes, opts)
	}
	if errors.Is(err, ErrUnsupported) {
		opts.Log.Info("falling back to parallelogram tiling",
			"strategy", opts.Strategy.String(), "reason", err.Error())
		return parallelogram(c, sizes, opts)
	}
	return out, err
}

// normSizes pads or truncates the size list to n entries. Missing
// entries repeat the last given size, or the default when none was.
func normSizes(n int, sizes []int64) []int64 {
	out := make([]int64, n)
	for i := 0; i < n; i++ {
		switch {
		case i < len(sizes) && sizes[i] > 0:
			out[i] = sizes[i]
		case i > 0:
			out[i] = out[i-1]
		default:
			out[i] = DefaultTileSize
		}
	}
	return out
}

// parallelogram replaces the band with a tile band over a point band.
func parallelogram(c *schedtree.Cursor, sizes []int64, opts Options) (*schedtree.Node, error) {
	band := c.Node().Band
	tile, point, err := band.Tile(sizes, opts.ScaleTileLoops, opts.ShiftPointLoops)
	if err != nil {
		return nil, err
	}
	child := c.Node().Child(0)
	return c.Replace(schedtree.NewBand(tile, schedtree.NewBand(point, child))), nil
}
