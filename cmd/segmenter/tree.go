package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/trajectory-segmenter/core"
)

func newTreeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tree QUERY",
		Short: "Print the compiled constraint tree of a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := a.compile(cmd, args[0])
			if err != nil {
				return err
			}
			if q.Condition == nil {
				return fmt.Errorf("%s: %w", args[0], errNoConstraint)
			}
			out := cmd.OutOrStdout()
			if _, err := io.WriteString(out, core.Format(q.Condition)); err != nil {
				return err
			}
			for _, leaf := range core.Leaves(q.Condition) {
				if leaf.Degraded() {
					fmt.Fprintf(out, "note: %q solved as %q\n", leaf.RequestedOperator(), leaf.Operator())
				}
			}
			return nil
		},
	}
}
