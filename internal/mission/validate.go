package mission

import (
	"fmt"
	"strings"

	"github.com/gammazero/toposort"
)

// ValidationError aggregates every violation found in a mission definition so
// a caller can fix the mission in one pass. No task executes while any
// violation exists.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid mission: %s", strings.Join(e.Issues, "; "))
}

// validator collects violations during resolution.
type validator struct {
	issues []string
}

func newValidator() *validator {
	return &validator{}
}

func (v *validator) addf(format string, args ...any) {
	v.issues = append(v.issues, fmt.Sprintf(format, args...))
}

func (v *validator) err() error {
	if len(v.issues) == 0 {
		return nil
	}
	return &ValidationError{Issues: v.issues}
}

// checkTask validates one task's scalar fields. Graph-level checks live in
// checkGraph.
func (v *validator) checkTask(t *Task, raw rawTask, seen map[string]bool) {
	if t.ID == "" {
		v.addf("task.id must be a non-empty string")
	} else if seen[t.ID] {
		v.addf("duplicate task id: %s", t.ID)
	}
	if strings.TrimSpace(t.Command) == "" {
		v.addf("task.command is required for task: %s", t.ID)
	}
	for _, dep := range t.DependsOn {
		if dep == t.ID && t.ID != "" {
			v.addf("task %q depends on itself", t.ID)
		}
	}
	for _, w := range raw.Writes {
		if strings.TrimSpace(w) == "" {
			v.addf("task.writes entries must be non-empty strings: %s", t.ID)
		}
	}
	if t.TimeoutSec < 0 {
		v.addf("task.timeout_sec must be a positive integer: %s", t.ID)
	}
	if raw.TimeoutSec != nil && *raw.TimeoutSec <= 0 {
		v.addf("task.timeout_sec must be a positive integer: %s", t.ID)
	}
	if t.Retries < 0 {
		v.addf("task.retries must be an integer >= 0: %s", t.ID)
	}
}

// checkGraph verifies every dependency resolves to a declared task and that
// the dependency relation is acyclic. The cycle check runs over the full
// graph up front, never lazily during scheduling.
func (v *validator) checkGraph(m *Mission) {
	ids := make(map[string]bool, len(m.Tasks))
	for _, t := range m.Tasks {
		ids[t.ID] = true
	}

	unresolved := false
	for _, t := range m.Tasks {
		for _, dep := range t.DependsOn {
			if !ids[dep] {
				v.addf("task %q depends on unknown task %q", t.ID, dep)
				unresolved = true
			}
		}
	}
	if unresolved {
		// Cycle detection over dangling edges would only produce noise.
		return
	}

	var edges []toposort.Edge
	for _, t := range m.Tasks {
		if len(t.DependsOn) == 0 {
			edges = append(edges, toposort.Edge{nil, t.ID})
			continue
		}
		for _, dep := range t.DependsOn {
			edges = append(edges, toposort.Edge{dep, t.ID})
		}
	}

	if _, err := toposort.Toposort(edges); err != nil {
		v.addf("dependency graph contains a cycle: %v", err)
	}
}
