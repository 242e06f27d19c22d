package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cjy5507/csmh/internal/daemon"
	"github.com/cjy5507/csmh/internal/workspace"
)

func newStartCmd() *cobra.Command {
	var reportPath string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "start <mission>",
		Short: "Run a mission detached in the background",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.FromCwd()
			if err != nil {
				return err
			}

			m, err := daemon.Start(ws, args[0], reportPath, quiet)
			if err != nil {
				if errors.Is(err, daemon.ErrAlreadyRunning) {
					return &exitError{code: 1, msg: err.Error()}
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "started mission pid=%d\n", m.PID)
			fmt.Fprintf(cmd.OutOrStdout(), "log=%s\n", m.Log)
			fmt.Fprintf(cmd.OutOrStdout(), "report=%s\n", m.Report)
			return nil
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", "", "report output path (default: workspace reports dir)")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress progress output in the run log")
	return cmd
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel",
		Short: "Stop the active background mission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.FromCwd()
			if err != nil {
				return err
			}

			outcome, m, err := daemon.Cancel(ws)
			if err != nil {
				return err
			}

			switch outcome {
			case daemon.CancelNone:
				fmt.Fprintln(cmd.OutOrStdout(), "no active mission to cancel")
			case daemon.CancelStopped:
				fmt.Fprintf(cmd.OutOrStdout(), "stopped mission pid=%d\n", m.PID)
			case daemon.CancelStale:
				fmt.Fprintln(cmd.OutOrStdout(), "process not running; cleaned stale marker")
			}
			return nil
		},
	}
}
