// Package sched turns a polyhedral description of a stencil loop nest
// into tiled, OpenMP-annotated C code.
//
// The input is a Scop: statements with rectangular iteration domains
// and uniform dependences between them. The pipeline builds scheduling
// constraints from the dependences, validates the original loop order,
// tiles the nest with one of three strategies, classifies loops as
// parallel, and prints the result as C text.
//
// # Quick Start
//
//	scop := sched.Scop{
//		Name: "jacobi1d",
//		Statements: []sched.Statement{{
//			Name:   "S",
//			Dims:   []string{"t", "i"},
//			Bounds: [][2]int64{{0, 99}, {0, 999}},
//			Body:   "A[(t+1)%2][i] = 0.33 * (A[t%2][i-1] + A[t%2][i] + A[t%2][i+1]);",
//		}},
//		Dependences: []sched.Dependence{
//			{Source: "S", Target: "S", Offset: []int64{1, -1}},
//			{Source: "S", Target: "S", Offset: []int64{1, 0}},
//			{Source: "S", Target: "S", Offset: []int64{1, 1}},
//		},
//	}
//	cfg := sched.DefaultConfig()
//	cfg.TileSizes = []int64{32, 32}
//	cfg.Strategy = sched.Split
//	res, err := sched.Generate(scop, cfg)
//
// res.Code holds the generated C, including a macro preamble and
// #pragma omp parallel for annotations on loops whose iterations are
// independent.
//
// # Tiling Strategies
//
//   - Plain: parallelogram tiles. Tiles in the same time row depend on
//     each other, so only the innermost point loop runs parallel.
//   - Overlapped: each space tile redundantly recomputes a halo region
//     sloping into its neighbors, which makes the space tile loop
//     itself parallel at the cost of duplicated work.
//   - Split: each time tile row is split into phases such that the
//     space tiles within a phase are independent; phases run in
//     sequence, tiles within a phase in parallel.
//
// Overlapped and split tiling require uniform dependences with unit
// slopes. Anything outside that class falls back to plain tiling and
// is reported through Result.Warnings or the configured logger.
//
// # Command Line
//
// The polytile tool wraps this package, reading a YAML scop
// description and writing a .gen.c file:
//
//	$ polytile generate jacobi1d.yaml --strategy split --tile 32,32
package sched
