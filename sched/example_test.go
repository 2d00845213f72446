package sched_test

import (
	"fmt"
	"strings"

	"github.com/stencilkit/polytile/sched"
)

// Example generates parallel C for a one-dimensional stencil sweep.
func Example() {
	scop := sched.Scop{
		Name: "jacobi1d",
		Statements: []sched.Statement{{
			Name:   "S",
			Dims:   []string{"t", "i"},
			Bounds: [][2]int64{{0, 7}, {0, 15}},
		}},
		Dependences: []sched.Dependence{
			{Source: "S", Target: "S", Offset: []int64{1, -1}},
			{Source: "S", Target: "S", Offset: []int64{1, 1}},
		},
	}

	res, err := sched.Generate(scop, sched.DefaultConfig())
	if err != nil {
		fmt.Println(err)
		return
	}

	lines := strings.SplitN(res.Code, "\n", 2)
	fmt.Println(lines[0])
	fmt.Println("parallel loops:", strings.Count(res.Code, "#pragma omp parallel for"))

	// Output:
	// /* polytile generated CPU code */
	// parallel loops: 1
}
