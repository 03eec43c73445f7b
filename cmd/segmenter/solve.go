package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/internal/observability"
	"github.com/signalsfoundry/trajectory-segmenter/internal/progress"
	"github.com/signalsfoundry/trajectory-segmenter/solver"
	"github.com/signalsfoundry/trajectory-segmenter/window"
)

var errNoConstraint = errors.New("query has no constraint")

func newSolveCmd(a *app) *cobra.Command {
	var output, timeFormat string

	cmd := &cobra.Command{
		Use:   "solve QUERY",
		Short: "Solve the constraint of a query document",
		Long:  "Solve reads a query document (\"-\" for stdin), searches its window and prints the intervals where the constraint holds.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, err := window.ParseTimeFormat(timeFormat)
			if err != nil {
				return err
			}
			render, err := rendererFor(output)
			if err != nil {
				return err
			}

			q, err := a.compile(cmd, args[0])
			if err != nil {
				return err
			}
			if q.Condition == nil {
				return fmt.Errorf("%s: %w", args[0], errNoConstraint)
			}

			ctx, _ := logging.EnsureSolveID(cmd.Context())
			tc := a.cfg.TracingConfig()
			tc.Version = version
			shutdown, err := observability.InitTracing(ctx, tc, a.log)
			if err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.ShutdownWithTimeout(context.Background(), shutdown, a.log)

			cfg := q.Solver.Apply(a.cfg.SolverConfig())
			cfg.Reporter = progress.New(a.cfg.Progress, a.log, os.Stderr)
			d, err := solver.NewDispatcher(q.Engine, solver.WithConfig(cfg), solver.WithLogger(a.log))
			if err != nil {
				return err
			}

			a.log.Debug(ctx, "solving", logging.String("condition", q.Condition.String()))
			start := time.Now()
			res, err := d.Solve(ctx, q.Condition, q.Window)
			if err != nil {
				return err
			}
			a.log.Info(ctx, "solve finished",
				logging.Int("intervals", res.Len()),
				logging.Duration("elapsed", time.Since(start)),
			)
			return render(cmd.OutOrStdout(), res, format)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format: table, markdown, csv or json")
	cmd.Flags().StringVar(&timeFormat, "time-format", string(window.FormatISO), "time format: iso or et")
	return cmd
}
