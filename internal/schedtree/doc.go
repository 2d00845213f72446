// Package schedtree models schedules as trees, the way the downstream
// code generator wants to consume them.
//
// A tree starts at a domain node holding the statement instances, and
// describes their execution order through band nodes (partial schedules
// with per-dimension coincidence flags), sequence and filter nodes
// (ordered partitions of the instances), expansion nodes (redundant
// recomputation of instances) and context nodes. Trees are built and
// rewritten functionally: every transformation returns a new tree and
// leaves the input intact, so a failed tiling attempt can fall back to
// the schedule it started from.
package schedtree
