// Package tiler rewrites a schedule tree so that the loops it describes
// execute in tiles.
//
// Three strategies are implemented. Parallelogram tiling blocks the
// band directly and is always applicable. Overlapped tiling trades
// redundant recomputation at tile edges for fully parallel space tile
// loops, recorded as an expansion node in the tree. Split tiling cuts
// each time tile row into phases that execute in sequence, with the
// space tiles of one phase independent of each other.
//
// Overlapped and split tiling read the dependence slopes off uniform
// flow dependences. Dependence patterns outside the supported class
// make the strategy fall back to parallelogram tiling.
package tiler
