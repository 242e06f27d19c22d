package cli

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/cjy5507/csmh/internal/daemon"
	"github.com/cjy5507/csmh/internal/engine"
	"github.com/cjy5507/csmh/internal/events"
	"github.com/cjy5507/csmh/internal/history"
	"github.com/cjy5507/csmh/internal/mission"
	"github.com/cjy5507/csmh/internal/report"
	"github.com/cjy5507/csmh/internal/workspace"
)

// defaultReportName is where run writes its report when --report is omitted.
const defaultReportName = "csmh-report.json"

func newRunCmd() *cobra.Command {
	var reportPath string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run <mission>",
		Short: "Run a mission in the foreground",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := workspace.FromCwd()
			if err != nil {
				return err
			}
			return runMission(cmd, ws, args[0], reportPath, quiet)
		},
	}
	cmd.Flags().StringVar(&reportPath, "report", defaultReportName, "report output path")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "suppress progress output")
	return cmd
}

// runMission is the foreground run path, shared with `verify parallel` only
// in spirit; validation errors exit 2 before any task executes.
func runMission(cmd *cobra.Command, ws *workspace.Workspace, missionPath, reportPath string, quiet bool) error {
	logger := newLogger()

	cfg, err := ws.LoadConfig()
	if err != nil {
		return &exitError{code: 2, msg: err.Error()}
	}

	m, err := mission.Load(missionPath, cfg.MissionDefaults())
	if err != nil {
		var verr *mission.ValidationError
		if errors.As(err, &verr) {
			return &exitError{code: 2, msg: fmt.Sprintf("mission error: %v", verr)}
		}
		return &exitError{code: 2, msg: err.Error()}
	}

	bus := events.NewBus()
	var printers sync.WaitGroup
	if !quiet {
		startProgressPrinter(cmd, bus, &printers)
	}

	opts := []engine.Option{engine.WithBus(bus), engine.WithLogger(logger)}

	// Run history is recorded only in initialized workspaces.
	if _, statErr := os.Stat(ws.StateDir()); statErr == nil {
		store, openErr := history.Open(cmd.Context(), ws.HistoryDBPath())
		if openErr != nil {
			logger.Warn("run history unavailable", "error", openErr)
		} else {
			defer store.Close()
			opts = append(opts, engine.WithStore(store))
		}
	}

	eng := engine.New(opts...)
	rep, err := eng.Run(cmd.Context(), m)

	bus.Close()
	printers.Wait()

	if err != nil {
		return &exitError{code: 2, msg: fmt.Sprintf("mission error: %v", err)}
	}

	if werr := rep.Write(reportPath); werr != nil {
		return &exitError{code: 1, msg: werr.Error()}
	}

	// A detached run cleans up its own marker on natural completion.
	if cerr := daemon.ClearIfOwner(ws.MarkerPath()); cerr != nil {
		logger.Warn("clearing run marker failed", "error", cerr)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n", rep.Status)
	fmt.Fprintf(cmd.OutOrStdout(), "duration_sec: %g\n", rep.DurationSec)
	fmt.Fprintf(cmd.OutOrStdout(), "report: %s\n", reportPath)

	if rep.Status != report.StatusSucceeded {
		return exitCode(1)
	}
	return nil
}

// startProgressPrinter mirrors scheduler and phase events onto stdout as the
// human-readable progress lines.
func startProgressPrinter(cmd *cobra.Command, bus *events.Bus, wg *sync.WaitGroup) {
	out := cmd.OutOrStdout()
	taskCh := bus.Subscribe(events.TopicTask, 0)
	missionCh := bus.Subscribe(events.TopicMission, 0)

	wg.Add(2)
	go func() {
		defer wg.Done()
		for ev := range taskCh {
			switch e := ev.(type) {
			case events.TaskStarted:
				fmt.Fprintf(out, "[start] %s\n", e.ID)
			case events.TaskFinished:
				fmt.Fprintf(out, "[done] %s status=%s attempts=%d duration=%gs\n",
					e.ID, e.Status, e.Attempts, e.DurationSec)
			case events.TaskBlocked:
				fmt.Fprintf(out, "[blocked] %s: %s\n", e.ID, e.Reason)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for ev := range missionCh {
			switch e := ev.(type) {
			case events.PhaseStarted:
				fmt.Fprintf(out, "[phase:start] %s\n", e.Name)
			case events.PhaseFinished:
				fmt.Fprintf(out, "[phase:done] %s status=%s attempts=%d duration=%gs\n",
					e.Name, e.Status, e.Attempts, e.DurationSec)
			}
		}
	}()
}
