// Package scheduler turns a statement domain and its dependences into
// an initial schedule tree.
//
// The schedules it produces are identity schedules validated against
// the dependences: every dependence must run lexicographically forward
// under the original loop order, with ties between statements broken by
// their declaration order. Skewing and blocking are left to the tiling
// pass, which owns the transformed shapes. What the scheduler does
// compute is the per-dimension coincidence flags the later passes rely
// on to classify loops as parallel.
package scheduler
