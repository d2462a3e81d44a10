package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	apperrors "github.com/copyleftdev/sharksmell/internal/errors"
	"github.com/copyleftdev/sharksmell/internal/optimization"
	"github.com/copyleftdev/sharksmell/internal/optimization/benchmark"
	"github.com/copyleftdev/sharksmell/internal/optimization/cluster"
	"github.com/copyleftdev/sharksmell/internal/optimization/runner"
)

type runOptions struct {
	workers   int
	seed      int64
	reduction string
}

func newRunCmd(a *app) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run NP TC",
		Short: "Optimize one test case",
		Long: `Runs the optimizer with NP candidates on test case TC and prints the
best solution, its objective value and the elapsed time. Use the benchmarks
command to list the test cases.`,
		Example: "  sso run 40 0 --workers 4 --seed 1",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.workers, "workers", "w", 0, "Number of workers (default SSO_WORKERS, at most NP)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Base random seed, 0 seeds from the clock (default SSO_SEED)")
	cmd.Flags().StringVar(&opts.reduction, "reduction", "", "Reduction of worker results: tree or gather (default SSO_REDUCTION)")
	return cmd
}

// parseRunArgs converts the NP and TC arguments.
func parseRunArgs(args []string) (np, tc int, err error) {
	if np, err = strconv.Atoi(args[0]); err != nil {
		return 0, 0, apperrors.Errorf("NP must be an integer, got %q", args[0])
	}
	if np < 1 {
		return 0, 0, apperrors.Errorf("NP must be at least 1, got %d", np)
	}
	if tc, err = strconv.Atoi(args[1]); err != nil {
		return 0, 0, apperrors.Errorf("TC must be an integer, got %q", args[1])
	}
	if tc < 0 || tc >= benchmark.Count() {
		return 0, 0, apperrors.Errorf("TC must be between 0 and %d, got %d", benchmark.Count()-1, tc)
	}
	return np, tc, nil
}

func (a *app) run(cmd *cobra.Command, args []string, opts *runOptions) error {
	np, tc, err := parseRunArgs(args)
	if err != nil {
		return err
	}
	c, err := benchmark.Lookup(tc)
	if err != nil {
		return err
	}

	rcfg := runner.Config{
		Problem:      &c.Problem,
		Population:   np,
		Workers:      opts.workers,
		Seed:         opts.seed,
		Reduction:    cluster.Reduction(opts.reduction),
		GradientStep: a.cfg.Optimization.GradientStep,
		MaxElements:  a.cfg.Optimization.MaxElements,
	}
	if !cmd.Flags().Changed("workers") {
		rcfg.Workers = min(a.cfg.Optimization.Workers, np)
	}
	if !cmd.Flags().Changed("seed") {
		rcfg.Seed = a.cfg.Optimization.Seed
	}
	if rcfg.Reduction == "" {
		rcfg.Reduction = cluster.Reduction(a.cfg.Optimization.Reduction)
	}

	r, err := runner.New(rcfg, runner.WithLogger(a.logger))
	if err != nil {
		return err
	}

	// Arguments are valid; failures from here on are not usage errors.
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := r.Optimize(ctx)
	if err != nil {
		return err
	}
	printResult(cmd.OutOrStdout(), c, res)
	return nil
}

func printResult(w io.Writer, c benchmark.Case, res *optimization.OptimizationResult) {
	coords := make([]string, len(res.Best.Solution))
	for i, v := range res.Best.Solution {
		coords[i] = strconv.FormatFloat(v, 'f', 6, 64)
	}

	fmt.Fprintf(w, "Test case: %d (%s, %s)\n", c.Index, c.Description, c.Problem.Goal)
	fmt.Fprintf(w, "Workers: %d, seed: %d\n", res.Workers, res.Seed)
	fmt.Fprintf(w, "Best solution: [%s]\n", strings.Join(coords, ", "))
	fmt.Fprintf(w, "Best value: %f\n", res.Best.Value)
	fmt.Fprintf(w, "Total elapsed time (s): %8.6f\n", res.Elapsed.Seconds())
}
