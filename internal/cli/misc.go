package cli

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/cjy5507/csmh/internal/daemon"
	"github.com/cjy5507/csmh/internal/history"
	"github.com/cjy5507/csmh/internal/verify"
	"github.com/cjy5507/csmh/internal/workspace"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), Version)
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the .csmh workspace layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.FromCwd()
			if err != nil {
				return err
			}
			if err := ws.Init(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "initialized: %s\n", ws.Dir())
			return nil
		},
	}
}

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <mode>",
		Short: "Run runtime verification",
		Long:  "Runs the bundled reference mission and asserts it succeeds.\nSupported modes: parallel",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := "parallel"
			if len(args) > 0 {
				mode = args[0]
			}
			if mode != "parallel" {
				return &exitError{code: 2, msg: fmt.Sprintf("unsupported verify mode: %s (supported: parallel)", mode)}
			}

			rep, err := verify.Parallel(cmd.Context(), newLogger())
			if err != nil {
				return &exitError{code: 1, msg: err.Error()}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verify parallel: %s (duration_sec: %g)\n", rep.Status, rep.DurationSec)
			return nil
		},
	}
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check local dependencies and workspace state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if _, err := exec.LookPath("sh"); err != nil {
				return &exitError{code: 1, msg: "missing dependency: sh"}
			}
			fmt.Fprintln(out, "ok: required dependencies found")

			ws, err := workspace.FromCwd()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "workspace: %s\n", ws.Dir())

			m, err := daemon.ReadMarker(ws.MarkerPath())
			if err != nil {
				return err
			}
			if m != nil {
				fmt.Fprintf(out, "active run: pid=%d mission=%s\n", m.PID, m.Mission)
			} else {
				fmt.Fprintln(out, "active run: none")
			}
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.FromCwd()
			if err != nil {
				return err
			}

			store, err := history.Open(cmd.Context(), ws.HistoryDBPath())
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no recorded runs")
				return nil
			}

			for _, r := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %6.1fs  %s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Status, r.DurationSec, r.MissionPath)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}
