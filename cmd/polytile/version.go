package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stencilkit/polytile/sched"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			info := sched.GetInfo()
			fmt.Fprintf(cmd.OutOrStdout(), "polytile %s\nstrategies: %s\n",
				info.Version, strings.Join(info.Strategies, ", "))
		},
	}
}
