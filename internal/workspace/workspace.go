// Package workspace manages the persisted state layout rooted at .csmh in a
// project directory: state, missions, reports, logs, and locks directories
// plus the workspace configuration file.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the workspace directory created under a project root.
const DirName = ".csmh"

// Workspace locates the persisted state layout for one project.
type Workspace struct {
	root string // project root; the layout lives at root/.csmh
}

// New returns the workspace rooted at dir.
func New(dir string) *Workspace {
	return &Workspace{root: dir}
}

// FromCwd returns the workspace rooted at the current working directory.
func FromCwd() (*Workspace, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("resolving working directory: %w", err)
	}
	return New(cwd), nil
}

// Dir returns the workspace directory itself.
func (w *Workspace) Dir() string { return filepath.Join(w.root, DirName) }

// StateDir holds the active-run marker and the run-history database.
func (w *Workspace) StateDir() string { return filepath.Join(w.Dir(), "state") }

// MissionsDir holds mission definitions.
func (w *Workspace) MissionsDir() string { return filepath.Join(w.Dir(), "missions") }

// ReportsDir holds mission reports.
func (w *Workspace) ReportsDir() string { return filepath.Join(w.Dir(), "reports") }

// LogsDir holds the active detached run's log.
func (w *Workspace) LogsDir() string { return filepath.Join(w.Dir(), "logs") }

// LocksDir is reserved for lock-table persistence across restarts.
func (w *Workspace) LocksDir() string { return filepath.Join(w.Dir(), "locks") }

// ConfigPath is the workspace configuration file.
func (w *Workspace) ConfigPath() string { return filepath.Join(w.Dir(), "config.json") }

// MarkerPath is the active-run marker for detached runs.
func (w *Workspace) MarkerPath() string { return filepath.Join(w.StateDir(), "active.json") }

// ActiveLogPath is where a detached run's output is captured.
func (w *Workspace) ActiveLogPath() string { return filepath.Join(w.LogsDir(), "active.log") }

// DefaultReportPath is where a detached run writes its report when the
// caller does not choose one.
func (w *Workspace) DefaultReportPath() string {
	return filepath.Join(w.ReportsDir(), "active-report.json")
}

// HistoryDBPath is the run-history database.
func (w *Workspace) HistoryDBPath() string { return filepath.Join(w.StateDir(), "history.db") }

// Init idempotently creates the full layout and, if absent, a default
// configuration file. Existing files are never overwritten.
func (w *Workspace) Init() error {
	for _, dir := range []string{
		w.StateDir(), w.MissionsDir(), w.ReportsDir(), w.LogsDir(), w.LocksDir(),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	if _, err := os.Stat(w.ConfigPath()); os.IsNotExist(err) {
		if err := SaveConfig(w.ConfigPath(), DefaultConfig()); err != nil {
			return err
		}
	}
	return nil
}
