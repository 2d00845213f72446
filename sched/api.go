// Package sched provides the public pipeline for polytile.
//
// See doc.go for detailed documentation and examples.
package sched

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-logr/logr"

	"github.com/stencilkit/polytile/internal/astgen"
	"github.com/stencilkit/polytile/internal/poly"
	"github.com/stencilkit/polytile/internal/schedtree"
	"github.com/stencilkit/polytile/internal/scheduler"
	"github.com/stencilkit/polytile/internal/tiler"
)

// ErrInvalidScop is returned when the scop description is inconsistent:
// duplicate statement names, mismatched dimension counts, or
// dependences referring to unknown statements.
var ErrInvalidScop = errors.New("sched: invalid scop")

// ErrInfeasible is returned when the dependences cannot run forward
// under the original loop order.
var ErrInfeasible = scheduler.ErrInfeasible

// Statement is one statement of the input program: its name, its loop
// dimensions with inclusive bounds, and optionally its C body text.
// Dimension names may appear in the body and are substituted with the
// generated loop expressions.
type Statement struct {
	Name   string
	Dims   []string
	Bounds [][2]int64
	Body   string
}

// DepKind classifies a dependence.
type DepKind int

const (
	// DepFlow is a read-after-write dependence.
	DepFlow DepKind = iota

	// DepFalse is a write-after-write or write-after-read dependence.
	DepFalse

	// DepOrder is an ordering dependence used under live range
	// reordering.
	DepOrder

	// DepForced must be respected even under live range reordering.
	DepForced
)

// Dependence is a uniform dependence between two statements: target
// instance = source instance + Offset, componentwise.
type Dependence struct {
	Source string
	Target string
	Offset []int64
	Kind   DepKind
}

// Scop describes the input program.
type Scop struct {
	Name        string
	Statements  []Statement
	Dependences []Dependence
}

// Strategy selects the tiling scheme.
type Strategy int

const (
	// Plain tiles the loop nest into parallelogram tiles.
	Plain Strategy = iota

	// Overlapped recomputes tile edges so space tiles run in parallel
	// within one time tile row.
	Overlapped

	// Split sequences each time tile row into phases of independent
	// space tiles.
	Split
)

func (s Strategy) String() string {
	switch s {
	case Plain:
		return "plain"
	case Overlapped:
		return "overlapped"
	case Split:
		return "split"
	}
	return "unknown"
}

// ParseStrategy converts a strategy name as accepted on the command
// line. "parallelogram" is an alias for "plain".
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "plain", "parallelogram", "":
		return Plain, nil
	case "overlapped":
		return Overlapped, nil
	case "split":
		return Split, nil
	}
	return Plain, fmt.Errorf("%w: unknown strategy %q", ErrInvalidScop, name)
}

// Config controls the pipeline. The zero value disables tiling and
// parallel annotation; start from DefaultConfig for the usual setup.
type Config struct {
	// TileSizes are the per-dimension tile sizes. Tiling only runs when
	// at least one size is given; missing entries repeat the last one.
	TileSizes []int64

	Strategy Strategy

	// MinimizeSync enlarges the time tile to the full time extent so
	// split tiling produces a single row of phases.
	MinimizeSync bool

	// ScaleTileLoops makes tile loops iterate over multiples of the
	// tile size instead of tile numbers.
	ScaleTileLoops bool

	// ShiftPointLoops shifts point loops to start at zero within each
	// tile.
	ShiftPointLoops bool

	// ReorderingEnabled turns on live range reordering when building
	// scheduling constraints.
	ReorderingEnabled bool

	// Coincidence enables the parallel loop classification and the
	// OpenMP pragmas it produces.
	Coincidence bool

	// Reschedule validates the original loop order against the
	// dependences. When off, the identity schedule is used as is.
	Reschedule bool

	Logger logr.Logger
}

// DefaultConfig returns the configuration used by the command line
// tool before flags are applied.
func DefaultConfig() Config {
	return Config{
		ScaleTileLoops:  true,
		ShiftPointLoops: true,
		Coincidence:     true,
		Reschedule:      true,
		Logger:          logr.Discard(),
	}
}

// Result is the output of a pipeline run.
type Result struct {
	// Code is the generated C text, including the macro preamble.
	Code string

	// Warnings lists conditions that changed the requested
	// transformation, such as a fallback to plain tiling.
	Warnings []string
}

// Generate runs the full pipeline: scheduling constraints, base
// schedule, tiling, parallel classification, and C emission.
func Generate(scop Scop, cfg Config) (Result, error) {
	log := cfg.Logger
	if log.GetSink() == nil {
		log = logr.Discard()
	}

	in, err := buildScop(scop)
	if err != nil {
		return Result{}, err
	}
	deps, err := buildDeps(scop, in.Spaces)
	if err != nil {
		return Result{}, err
	}
	cons := deps.Build(cfg.ReorderingEnabled)

	var tree *schedtree.Node
	if cfg.Reschedule {
		tree, err = scheduler.Compute(in, cons, log)
		if err != nil {
			return Result{}, err
		}
	} else {
		tree = scheduler.Identity(in, cons, log)
	}

	var res Result
	if len(cfg.TileSizes) > 0 {
		tiled, err := tiler.Apply(tree, deps.Flow, tiler.Options{
			Sizes:           cfg.TileSizes,
			Strategy:        tilerStrategy(cfg.Strategy),
			ScaleTileLoops:  cfg.ScaleTileLoops,
			ShiftPointLoops: cfg.ShiftPointLoops,
			MinimizeSync:    cfg.MinimizeSync,
			Log:             log,
		})
		switch {
		case errors.Is(err, schedtree.ErrFewMembers):
			res.Warnings = append(res.Warnings,
				"nest too shallow to tile, emitting the untiled schedule")
		case err != nil:
			return Result{}, err
		default:
			tree = tiled
		}
		if cfg.Strategy == Overlapped && !hasExpansion(tree) {
			res.Warnings = append(res.Warnings,
				"overlapped tiling fell back to plain tiling")
		}
	}

	classDeps := deps.Flow.Union(deps.False)
	if cfg.ReorderingEnabled {
		classDeps = classDeps.Union(deps.Order)
	}
	prog, err := astgen.Build(tree, classDeps, astgen.Options{
		OpenMP: cfg.Coincidence,
		Log:    log,
	})
	if err != nil {
		return Result{}, err
	}

	bodies := map[string]Statement{}
	for _, st := range scop.Statements {
		bodies[st.Name] = st
	}
	var b strings.Builder
	b.WriteString("/* polytile generated CPU code */\n\n")
	b.WriteString(astgen.Preamble)
	b.WriteString("\n")
	p := &astgen.Printer{StmtText: func(name string, args []string) string {
		st := bodies[name]
		if st.Body == "" {
			return name + "(" + strings.Join(args, ", ") + ");"
		}
		return instantiate(st.Body, st.Dims, args)
	}}
	p.Print(&b, prog)
	res.Code = b.String()
	return res, nil
}

func tilerStrategy(s Strategy) tiler.Strategy {
	switch s {
	case Overlapped:
		return tiler.Overlapped
	case Split:
		return tiler.Split
	}
	return tiler.Parallelogram
}

func buildScop(scop Scop) (scheduler.Scop, error) {
	if len(scop.Statements) == 0 {
		return scheduler.Scop{}, fmt.Errorf("%w: no statements", ErrInvalidScop)
	}
	spaces := map[string]poly.Space{}
	var order []string
	var pieces []poly.BasicSet
	for _, st := range scop.Statements {
		if st.Name == "" {
			return scheduler.Scop{}, fmt.Errorf("%w: statement without a name", ErrInvalidScop)
		}
		if _, dup := spaces[st.Name]; dup {
			return scheduler.Scop{}, fmt.Errorf("%w: duplicate statement %q", ErrInvalidScop, st.Name)
		}
		if len(st.Bounds) != len(st.Dims) {
			return scheduler.Scop{}, fmt.Errorf("%w: statement %q has %d dims but %d bounds",
				ErrInvalidScop, st.Name, len(st.Dims), len(st.Bounds))
		}
		sp := poly.NewSpace(st.Name, st.Dims...)
		b := poly.UniverseSet(sp)
		for i, bd := range st.Bounds {
			b = b.ConstrainGE(poly.Var(sp, i).AddConst(-bd[0]))
			b = b.ConstrainGE(poly.Var(sp, i).Neg().AddConst(bd[1]))
		}
		spaces[st.Name] = sp
		order = append(order, st.Name)
		pieces = append(pieces, b)
	}
	return scheduler.Scop{
		Domain: poly.SetFrom(pieces...),
		Spaces: spaces,
		Order:  order,
	}, nil
}

func buildDeps(scop Scop, spaces map[string]poly.Space) (scheduler.Deps, error) {
	byKind := map[DepKind][]poly.BasicMap{}
	for _, d := range scop.Dependences {
		src, ok := spaces[d.Source]
		if !ok {
			return scheduler.Deps{}, fmt.Errorf("%w: dependence source %q is not a statement",
				ErrInvalidScop, d.Source)
		}
		dst, ok := spaces[d.Target]
		if !ok {
			return scheduler.Deps{}, fmt.Errorf("%w: dependence target %q is not a statement",
				ErrInvalidScop, d.Target)
		}
		if len(d.Offset) != src.NDim() || src.NDim() != dst.NDim() {
			return scheduler.Deps{}, fmt.Errorf("%w: dependence %s->%s offset has %d entries",
				ErrInvalidScop, d.Source, d.Target, len(d.Offset))
		}
		m := poly.UniverseBasicMap(src, dst)
		for i, off := range d.Offset {
			m = m.ConstrainEQ(m.OutVar(i).Sub(m.InVar(i)).AddConst(-off))
		}
		byKind[d.Kind] = append(byKind[d.Kind], m)
	}
	return scheduler.Deps{
		Flow:   poly.MapFrom(byKind[DepFlow]...),
		False:  poly.MapFrom(byKind[DepFalse]...),
		Order:  poly.MapFrom(byKind[DepOrder]...),
		Forced: poly.MapFrom(byKind[DepForced]...),
	}, nil
}

func hasExpansion(n *schedtree.Node) bool {
	if n.Kind == schedtree.KindExpansion {
		return true
	}
	for _, c := range n.Children {
		if hasExpansion(c) {
			return true
		}
	}
	return false
}

// instantiate substitutes the statement's dimension names in its body
// text with the generated loop expressions, parenthesized.
func instantiate(body string, dims, args []string) string {
	repl := map[string]string{}
	for i, d := range dims {
		if i < len(args) {
			repl[d] = "(" + args[i] + ")"
		}
	}
	var out strings.Builder
	for i := 0; i < len(body); {
		if !identStart(body[i]) {
			out.WriteByte(body[i])
			i++
			continue
		}
		j := i + 1
		for j < len(body) && identChar(body[j]) {
			j++
		}
		word := body[i:j]
		if r, ok := repl[word]; ok {
			out.WriteString(r)
		} else {
			out.WriteString(word)
		}
		i = j
	}
	return out.String()
}

func identStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func identChar(c byte) bool {
	return identStart(c) || (c >= '0' && c <= '9')
}
