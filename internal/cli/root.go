// Package cli implements the csmh command surface on top of cobra.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

// exitError carries a specific process exit code out of a command. The
// message, if any, has already been printed by the command.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// exitCode returns a bare exit code with no message.
func exitCode(code int) error {
	return &exitError{code: code}
}

var verbose bool

// NewRootCmd builds the csmh command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "csmh",
		Short: "Dependency- and lock-aware mission orchestrator",
		Long: `csmh runs declarative missions: graphs of shell tasks with dependencies,
exclusive write-targets, timeouts, and retries. Tasks run concurrently up to
a cap, tasks sharing a write-target never overlap, and the outcome is written
as a machine-readable report.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.Version = Version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newRunCmd(),
		newStartCmd(),
		newCancelCmd(),
		newVerifyCmd(),
		newDoctorCmd(),
		newHistoryCmd(),
	)
	return root
}

// Execute runs the command tree and returns the process exit code.
func Execute(ctx context.Context) int {
	err := NewRootCmd().ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.msg != "" {
			fmt.Fprintln(os.Stderr, ee.msg)
		}
		return ee.code
	}

	fmt.Fprintln(os.Stderr, err)
	return 2
}

// newLogger builds the diagnostics logger shared by commands.
func newLogger() hclog.Logger {
	level := hclog.Warn
	if verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "csmh",
		Level:  level,
		Output: os.Stderr,
	})
}
