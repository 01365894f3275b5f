// Command timerbench searches a grid of timer settings for the one with the
// most precise sleeps, showing live progress and the best candidate so far.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/runningwild/timerbench/pkg/eta"
	"github.com/runningwild/timerbench/pkg/logger"
	"github.com/runningwild/timerbench/pkg/report"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(stdout *os.File) *cobra.Command {
	var flags Flags

	runE := func(cmd *cobra.Command, _ []string) error {
		log := logger.ForFormat(flags.LogFormat, flags.LogLevel)
		cfg, err := flags.LoadConfig(cmd.Flags())
		if err != nil {
			return err
		}
		if err := flags.MaybeWriteConfig(cfg); err != nil {
			return err
		}
		smp, err := buildSampler(cfg, log)
		if err != nil {
			return err
		}

		var term report.Capability = report.DetectCapability(stdout)
		if flags.Plain {
			term = report.Fixed{}
		}
		_, err = run(cmd.Context(), cfg, smp, stdout, term, log)
		return err
	}

	root := &cobra.Command{
		Use:   "timerbench",
		Short: "Find the timer resolution with the most precise sleeps",
		Long: `timerbench measures sleep precision at every setting of a grid of timer
resolutions, keeps the best candidate visible while the search runs and
ranks all measured settings at the end.

Press Ctrl-C to stop after the grid point being measured; the summary and
any result files still cover what was measured.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          runE,
	}
	flags.Bind(root.PersistentFlags())

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Scan the grid (the default when no command is given)",
			Args:  cobra.NoArgs,
			RunE:  runE,
		},
		newEstimateCmd(&flags, stdout),
		newWriteConfigCmd(&flags),
	)
	return root
}

func newEstimateCmd(flags *Flags, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate",
		Short: "Print the grid size and the initial time estimate without measuring",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			msgs := messages(cfg, logger.ForFormat(flags.LogFormat, flags.LogLevel))
			points := cfg.Grid.Points()
			est := eta.Initial(len(points), cfg.Settings.AssumedPerPoint)
			if len(points) == 0 {
				_, err = fmt.Fprintln(out, msgs.Progress(0, 0))
				return err
			}
			_, err = fmt.Fprintf(out, "%s: %.4f .. %.4f ms\n%s\n",
				msgs.Progress(0, len(points)), points[0], points[len(points)-1], msgs.InitialEstimate(est.Value))
			return err
		},
	}
}

func newWriteConfigCmd(flags *Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "write-config PATH",
		Short: "Write the effective configuration to a YAML file and exit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.LoadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return writeConfig(args[0], cfg)
		},
	}
}
