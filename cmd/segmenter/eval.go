package main

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/signalsfoundry/trajectory-segmenter/core"
	"github.com/signalsfoundry/trajectory-segmenter/epoch"
)

func newEvalCmd(a *app) *cobra.Command {
	var at []string
	var markdown bool

	cmd := &cobra.Command{
		Use:   "eval QUERY --at TIME [--at TIME...]",
		Short: "Evaluate every property of a query at given times",
		Long:  "Eval prints the value of each declared property, and of the constraint when there is one, at every --at time. Times are ISO strings or ET seconds.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(at) == 0 {
				return fmt.Errorf("eval needs at least one --at time")
			}
			times := make([]float64, len(at))
			for i, s := range at {
				et, err := epoch.ToET(s)
				if err != nil {
					return fmt.Errorf("--at %q: %w", s, err)
				}
				times[i] = et
			}

			q, err := a.compile(cmd, args[0])
			if err != nil {
				return err
			}

			type named struct {
				name string
				prop core.Property
			}
			props := make([]named, 0, len(q.Properties)+1)
			for _, name := range q.PropertyNames() {
				props = append(props, named{name, q.Properties[name]})
			}
			if q.Condition != nil {
				props = append(props, named{"constraint", q.Condition})
			}

			w := table.NewWriter()
			w.SetStyle(table.StyleLight)
			w.AppendHeader(table.Row{"time", "property", "value", "unit"})
			for _, t := range times {
				for _, p := range props {
					v, err := p.prop.ValueAt(t)
					switch {
					case errors.Is(err, core.ErrUnsupportedOperation):
						// extremum constraints have no pointwise value
						w.AppendRow(table.Row{epoch.FormatISO(t), p.name, "n/a", ""})
						continue
					case err != nil:
						return fmt.Errorf("evaluate %s at %s: %w", p.name, epoch.FormatISO(t), err)
					}
					w.AppendRow(table.Row{epoch.FormatISO(t), p.name, v.String(), p.prop.Unit().String()})
				}
				w.AppendSeparator()
			}

			if markdown {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), w.RenderMarkdown())
			} else {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), w.Render())
			}
			return err
		},
	}

	cmd.Flags().StringArrayVar(&at, "at", nil, "evaluation time, ISO8601 or ET seconds (repeatable)")
	cmd.Flags().BoolVar(&markdown, "markdown", false, "render a Markdown table")
	return cmd
}
