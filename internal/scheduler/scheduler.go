package scheduler

import (
	"errors"

	"github.com/go-logr/logr"

	"github.com/stencilkit/polytile/internal/poly"
	"github.com/stencilkit/polytile/internal/schedtree"
)

// ErrInfeasible is returned when the dependences cannot be honored by
// the original loop order.
var ErrInfeasible = errors.New("scheduler: dependences cannot run forward under the original loop order")

// Scop is the scheduler's view of the input program: the statement
// instances, their spaces, and the textual order of the statements.
type Scop struct {
	Domain poly.Set
	Spaces map[string]poly.Space

	// Order lists statement tuple names in declaration order. Ties in
	// the schedule are broken by this order.
	Order []string
}

// Compute builds the initial schedule tree: a band of identity members
// over the domain, with coincidence flags derived from the constraints,
// followed by a sequence over the statements when there are several.
func Compute(scop Scop, cons Constraints, log logr.Logger) (*schedtree.Node, error) {
	depth := maxDepth(scop)
	validity := cons.Validity.Union(cons.ConditionalValidity).
		IntersectDomain(scop.Domain).IntersectRange(scop.Domain)
	if err := validate(validity, scop.Order, depth); err != nil {
		return nil, err
	}
	return build(scop, cons, depth, log), nil
}

// Identity builds the same tree as Compute without checking the
// validity constraints. The caller asserts the original order is legal.
func Identity(scop Scop, cons Constraints, log logr.Logger) *schedtree.Node {
	return build(scop, cons, maxDepth(scop), log)
}

func maxDepth(scop Scop) int {
	depth := 0
	for _, sp := range scop.Spaces {
		if sp.NDim() > depth {
			depth = sp.NDim()
		}
	}
	return depth
}

func build(scop Scop, cons Constraints, depth int, log logr.Logger) *schedtree.Node {
	coincidence := cons.Coincidence.
		IntersectDomain(scop.Domain).IntersectRange(scop.Domain)
	flags := coincidenceFlags(coincidence, depth)

	band := &schedtree.BandInfo{}
	for d := 0; d < depth; d++ {
		m := schedtree.BandMember{Sched: map[string]poly.Aff{}, Coincident: flags[d]}
		for name, sp := range scop.Spaces {
			if d < sp.NDim() {
				m.Sched[name] = poly.Var(sp, d)
			} else {
				m.Sched[name] = poly.Constant(sp, 0)
			}
		}
		band.Members = append(band.Members, m)
	}

	var child *schedtree.Node
	if len(scop.Order) > 1 {
		var filters []*schedtree.Node
		for _, name := range scop.Order {
			f := poly.SetFrom(scop.Domain.PiecesFor(name)...)
			filters = append(filters, schedtree.NewFilter(f, schedtree.NewLeaf()))
		}
		child = schedtree.NewSequence(filters...)
	} else {
		child = schedtree.NewLeaf()
	}

	log.V(1).Info("computed initial schedule",
		"statements", len(scop.Order), "depth", depth, "coincident", flags)
	return schedtree.NewDomain(scop.Domain, schedtree.NewBand(band, child))
}

// validate checks that every dependence runs lexicographically forward,
// with zero-distance dependences between distinct statements required
// to follow declaration order.
func validate(deps poly.Map, order []string, depth int) error {
	cur := deps
	for d := 0; d < depth; d++ {
		if !backwardAt(cur, d).IsEmpty() {
			return ErrInfeasible
		}
		cur = cur.Equate(d)
	}
	// cur now holds only zero-distance dependences.
	idx := map[string]int{}
	for i, name := range order {
		idx[name] = i
	}
	for _, p := range cur.Pieces() {
		if p.IsEmpty() {
			continue
		}
		a, b := p.In().Tuple(), p.Out().Tuple()
		if a != b && idx[b] <= idx[a] {
			return ErrInfeasible
		}
	}
	return nil
}

// backwardAt restricts deps to pairs where the sink precedes the source
// at dimension d.
func backwardAt(deps poly.Map, d int) poly.Map {
	var out []poly.BasicMap
	for _, p := range deps.Pieces() {
		if d >= p.In().NDim() || d >= p.Out().NDim() {
			continue
		}
		out = append(out, p.ConstrainGE(p.InVar(d).Sub(p.OutVar(d)).AddConst(-1)))
	}
	return poly.MapFrom(out...)
}

// coincidenceFlags marks dimension d coincident when every dependence
// with equal outer dimensions also has equal values at d.
func coincidenceFlags(deps poly.Map, depth int) []bool {
	flags := make([]bool, depth)
	cur := deps
	for d := 0; d < depth; d++ {
		flags[d] = cur.IsSubset(cur.Equate(d))
		cur = cur.Equate(d)
	}
	return flags
}
