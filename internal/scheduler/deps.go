package scheduler

import (
	"github.com/stencilkit/polytile/internal/poly"
)

// Deps groups the dependence relations of a scop by kind. Relations the
// caller did not compute are simply empty.
type Deps struct {
	// Flow are read-after-write dependences.
	Flow poly.Map

	// False are write-after-write and write-after-read dependences.
	False poly.Map

	// Order are dependences forced by statement ordering between
	// accesses to the same memory, used when live range reordering
	// is enabled.
	Order poly.Map

	// Forced are dependences that must be respected even under live
	// range reordering, such as those involving external values.
	Forced poly.Map
}

// Constraints is the dependence information reorganized by the role it
// plays during scheduling.
type Constraints struct {
	// Validity relations must run forward in the final schedule.
	Validity poly.Map

	// Proximity relations should span as little schedule distance as
	// possible; the tiling pass reads slopes off them.
	Proximity poly.Map

	// Coincidence relations decide which schedule dimensions can be
	// marked parallel.
	Coincidence poly.Map

	// ConditionalValidity relations only need to run forward when the
	// corresponding live range is not reordered away.
	ConditionalValidity poly.Map
}

// Build reorganizes dependences into scheduling constraints. With live
// range reordering enabled, false dependences are dropped from validity
// and replaced by order dependences, letting overwritten live ranges be
// rescheduled; otherwise false dependences constrain the schedule
// directly.
func (d Deps) Build(liveRangeReordering bool) Constraints {
	c := Constraints{Proximity: d.Flow}
	if liveRangeReordering {
		c.Validity = d.Flow.Union(d.Forced)
		c.Coincidence = d.Flow.Union(d.Order).Union(d.Forced)
		c.ConditionalValidity = d.Order
	} else {
		all := d.Flow.Union(d.False)
		c.Validity = all
		c.Coincidence = all
		c.ConditionalValidity = poly.EmptyMap()
	}
	return c
}
