// Package main implements the polytile CLI tool.
//
// polytile reads a YAML description of a stencil loop nest (its
// statements, iteration bounds, and uniform dependences) and emits
// tiled, OpenMP-annotated C code:
//
//	polytile generate jacobi1d.yaml --strategy split --tile 4,4
//	polytile version
//
// The generated file is named after the input (jacobi1d.gen.c) unless
// -o is given.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbosity int
	root := &cobra.Command{
		Use:           "polytile",
		Short:         "Polyhedral tiling and OpenMP code generation for stencil loop nests",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity")
	root.AddCommand(newGenerateCmd(&verbosity))
	root.AddCommand(newVersionCmd())
	return root
}

// newLogger writes log lines to stderr, filtered by the -v count.
func newLogger(verbosity int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintln(os.Stderr, prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: verbosity})
}
