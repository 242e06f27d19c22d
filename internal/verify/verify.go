// Package verify runs the bundled reference mission used by `csmh verify
// parallel` to prove the scheduler honors dependency order and write-target
// exclusion on the host it is installed on.
package verify

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/cjy5507/csmh/internal/engine"
	"github.com/cjy5507/csmh/internal/mission"
	"github.com/cjy5507/csmh/internal/report"
)

// bundledMission is the reference mission: a diamond (a, b feed c, c feeds d)
// plus a pair of unrelated tasks contending on one logical write-target.
const bundledMission = `{
  "objective": "runtime verification: dependency order and write-target exclusion",
  "mode": "balanced",
  "max_concurrency": 4,
  "default_timeout_sec": 30,
  "default_retries": 0,
  "tasks": [
    {"id": "a", "command": "sleep 0.1 && echo a", "depends_on": [], "writes": ["logical:a"]},
    {"id": "b", "command": "sleep 0.1 && echo b", "depends_on": [], "writes": ["logical:b"]},
    {"id": "c", "command": "echo c", "depends_on": ["a", "b"], "writes": ["logical:c"]},
    {"id": "d", "command": "echo d", "depends_on": ["c"], "writes": ["logical:d"]},
    {"id": "w1", "command": "sleep 0.2 && echo w1", "depends_on": [], "writes": ["logical:shared"]},
    {"id": "w2", "command": "sleep 0.2 && echo w2", "depends_on": [], "writes": ["logical:shared"]}
  ],
  "integrate": {"command": "echo integrate"},
  "verify": {"command": "echo verify"}
}`

// Mission parses the bundled reference mission.
func Mission() (*mission.Mission, error) {
	return mission.Parse("<bundled:parallel>", []byte(bundledMission), mission.Defaults{})
}

// Parallel runs the bundled mission and returns its report, failing unless
// the mission succeeded with an empty failed_or_blocked set.
func Parallel(ctx context.Context, logger hclog.Logger) (*report.Report, error) {
	m, err := Mission()
	if err != nil {
		return nil, fmt.Errorf("bundled mission is invalid: %w", err)
	}

	eng := engine.New(engine.WithLogger(logger))
	rep, err := eng.Run(ctx, m)
	if err != nil {
		return nil, err
	}

	if rep.Status != report.StatusSucceeded {
		return rep, fmt.Errorf("verification mission ended %s (failed_or_blocked: %v)",
			rep.Status, rep.FailedOrBlocked)
	}
	if len(rep.FailedOrBlocked) != 0 {
		return rep, fmt.Errorf("verification mission reported failed_or_blocked: %v", rep.FailedOrBlocked)
	}
	return rep, nil
}
