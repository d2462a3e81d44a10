package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/copyleftdev/sharksmell/internal/optimization/benchmark"
)

func newBenchmarksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "benchmarks",
		Short: "List the test cases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TC\tNAME\tGOAL\tBOUNDS\tOPTIMUM")
			for _, c := range benchmark.Catalog() {
				p := c.Problem
				fmt.Fprintf(tw, "%d\t%s\t%s\t[%g, %g]\t%g at %v\n",
					c.Index, p.Name, p.Goal, p.Low, p.High, c.Optimum.Value, []float64(c.Optimum.Point))
			}
			return tw.Flush()
		},
	}
}
