package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/trajectory-segmenter/internal/config"
	"github.com/signalsfoundry/trajectory-segmenter/internal/logging"
	"github.com/signalsfoundry/trajectory-segmenter/internal/query"
)

// app carries the state shared by every subcommand once the persistent
// pre-run has loaded configuration.
type app struct {
	cfgFile string
	cfg     config.Config
	log     logging.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{log: logging.Noop()}

	root := &cobra.Command{
		Use:           "segmenter",
		Short:         "Find the time intervals where trajectory constraints hold",
		Long:          "segmenter compiles a YAML query of bodies, properties and a constraint tree, then searches a confinement window for the intervals where the constraint is satisfied.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default .segmenter.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: text or json")
	flags.String("progress", "", "search progress: off, log or bar")
	flags.Float64("step", 0, "coarse search step in seconds")
	flags.Float64("tolerance", 0, "boundary convergence tolerance in seconds")
	flags.Bool("parallel", false, "solve both sides of boolean combinations concurrently")

	root.AddCommand(
		newSolveCmd(a),
		newEvalCmd(a),
		newTreeCmd(a),
		newVersionCmd(),
	)
	return root
}

var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"progress":   "progress",
	"step":       "solver.step",
	"tolerance":  "solver.tolerance",
	"parallel":   "solver.parallel_branches",
}

func (a *app) load(cmd *cobra.Command) error {
	v, err := config.New(a.cfgFile)
	if err != nil {
		return err
	}
	for name, key := range flagKeys {
		// only flags the user set override file and environment values
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("bind --%s: %w", name, err)
			}
		}
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = cfg.Logger(cmd.ErrOrStderr())
	return nil
}

// compile parses and compiles the query document at path; "-" reads stdin.
func (a *app) compile(cmd *cobra.Command, path string) (*query.Query, error) {
	in := cmd.InOrStdin()
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open query: %w", err)
		}
		defer f.Close()
		in = f
	}
	doc, err := query.Parse(in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	q, err := query.Compile(doc, a.log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return q, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the segmenter version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "segmenter %s\n", version)
		},
	}
}
