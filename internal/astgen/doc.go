// Package astgen lowers a schedule tree to a C loop nest.
//
// Loops are generated per band member by projecting the scheduled
// domain onto that member, with lower and upper bounds combined through
// min/max/floord expressions. Statement instances are recovered from
// the point loops and emitted as macro calls guarded by their domain
// constraints, so partial tiles and phase boundaries stay exact.
//
// The OpenMP classification follows the dependences, not annotations: a
// loop gets a parallel pragma when it is the outermost loop whose
// iterations, with all enclosing loop counters fixed, are unrelated by
// any dependence.
package astgen
