// Package poly implements the integer set and relation algebra that the
// scheduling and tiling passes are built on.
//
// Values mirror the isl concepts the original C pass consumed: a Space
// names a statement tuple and its dimensions, an Aff is a quasi-affine
// expression (linear terms plus floordiv terms), a BasicSet/BasicMap is a
// conjunction of affine constraints, and Set/Map are finite unions of
// those. All values are immutable: every operation returns a new value
// and never mutates its receiver or arguments, which is what lets the
// transformation passes keep old schedule trees around for fallback.
//
// Exactness: elimination and emptiness testing are exact for constraints
// whose variable coefficients are units (the stencil class this engine
// supports) and conservative otherwise. Operations that can
// over-approximate (TransitiveClosure, BoundedPower on non-uniform
// relations) report an exactness flag instead of guessing.
package poly
