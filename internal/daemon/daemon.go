package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/cjy5507/csmh/internal/workspace"
)

// ErrAlreadyRunning is returned by Start when the marker names a live run.
var ErrAlreadyRunning = fmt.Errorf("an active mission is already running")

// Start launches a mission detached from the calling terminal: the tool
// re-execs itself as `run` in a new session, appends its output to the
// workspace's active log, and records the child in the run marker.
func Start(ws *workspace.Workspace, missionPath, reportPath string, quiet bool) (*Marker, error) {
	for _, dir := range []string{ws.StateDir(), ws.LogsDir(), ws.ReportsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	markerPath := ws.MarkerPath()
	if old, err := ReadMarker(markerPath); err != nil {
		return nil, err
	} else if old != nil && processAlive(old.PID) {
		return nil, fmt.Errorf("%w (pid: %d)", ErrAlreadyRunning, old.PID)
	}

	if reportPath == "" {
		reportPath = ws.DefaultReportPath()
	}

	self, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolving executable: %w", err)
	}

	logPath := ws.ActiveLogPath()
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log %s: %w", logPath, err)
	}
	defer logFile.Close()

	args := []string{"run", missionPath, "--report", reportPath}
	if quiet {
		args = append(args, "--quiet")
	}

	cmd := exec.Command(self, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	// New session: the child becomes its own process-group leader, so cancel
	// can signal the whole tree with one negative-pid kill.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting detached run: %w", err)
	}

	m := &Marker{
		PID:       cmd.Process.Pid,
		Mission:   missionPath,
		Report:    reportPath,
		Log:       logPath,
		StartedAt: time.Now().UTC(),
	}
	if err := WriteMarker(markerPath, m); err != nil {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		return nil, err
	}

	// Detach: the child outlives this invocation.
	if err := cmd.Process.Release(); err != nil {
		return nil, fmt.Errorf("releasing detached run: %w", err)
	}
	return m, nil
}

// CancelOutcome describes what Cancel found and did.
type CancelOutcome int

const (
	// CancelNone means no marker existed; nothing to cancel.
	CancelNone CancelOutcome = iota
	// CancelStopped means a live run was signalled and stopped.
	CancelStopped
	// CancelStale means the marker named a dead process and was cleaned up.
	CancelStale
)

// Cancel stops the tracked background run. The process group first gets
// SIGTERM so the engine can cancel cooperatively (halting admission,
// terminating running attempts, writing its report); after a grace period it
// is killed outright. A missing marker is a no-op, not an error.
func Cancel(ws *workspace.Workspace) (CancelOutcome, *Marker, error) {
	markerPath := ws.MarkerPath()
	m, err := ReadMarker(markerPath)
	if err != nil {
		return CancelNone, nil, err
	}
	if m == nil {
		return CancelNone, nil, nil
	}

	outcome := CancelStale
	if processAlive(m.PID) {
		outcome = CancelStopped
		_ = syscall.Kill(-m.PID, syscall.SIGTERM)

		deadline := time.Now().Add(time.Second)
		for time.Now().Before(deadline) && processAlive(m.PID) {
			time.Sleep(100 * time.Millisecond)
		}
		if processAlive(m.PID) {
			_ = syscall.Kill(-m.PID, syscall.SIGKILL)
		}
	}

	if err := RemoveMarker(markerPath); err != nil {
		return outcome, m, err
	}
	return outcome, m, nil
}
