package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/errgroup"

	"github.com/cjy5507/csmh/internal/events"
	"github.com/cjy5507/csmh/internal/mission"
	"github.com/cjy5507/csmh/internal/runner"
)

// Executor runs one task to its final outcome (all attempts included). The
// production implementation is runner.Runner; tests inject fakes.
type Executor interface {
	Execute(ctx context.Context, t mission.Task) *runner.TaskResult
}

// Scheduler is the dependency- and lock-aware admission loop. A single
// goroutine (the one inside Run) owns the state table and the lock table;
// task attempts run concurrently as child processes but report back through
// a channel, so no other code ever touches scheduler state.
type Scheduler struct {
	mission *mission.Mission
	exec    Executor
	graph   *graph
	locks   *LockTable
	states  map[string]State
	results map[string]*runner.TaskResult
	bus     *events.Bus
	logger  hclog.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBus attaches an event bus for task lifecycle events.
func WithBus(bus *events.Bus) Option {
	return func(s *Scheduler) { s.bus = bus }
}

// WithLogger attaches a logger for scheduling diagnostics.
func WithLogger(logger hclog.Logger) Option {
	return func(s *Scheduler) { s.logger = logger }
}

// New creates a Scheduler for a validated mission.
func New(m *mission.Mission, exec Executor, opts ...Option) *Scheduler {
	s := &Scheduler{
		mission: m,
		exec:    exec,
		graph:   newGraph(m),
		locks:   NewLockTable(),
		states:  make(map[string]State, len(m.Tasks)),
		results: make(map[string]*runner.TaskResult, len(m.Tasks)),
	}
	for _, t := range m.Tasks {
		s.states[t.ID] = StatePending
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = hclog.NewNullLogger()
	}
	return s
}

type attemptDone struct {
	id     string
	result *runner.TaskResult
}

// Run drives the mission until every task is terminal. On every state
// transition it recomputes the ready frontier and admits tasks up to the
// concurrency cap, in declaration order. Cancelling ctx stops new admissions,
// terminates running attempts, and marks waiting tasks cancelled; tasks
// already terminal keep their recorded outcome.
func (s *Scheduler) Run(ctx context.Context) (map[string]*runner.TaskResult, error) {
	done := make(chan attemptDone, len(s.mission.Tasks))
	g, gctx := errgroup.WithContext(ctx)
	running := 0

	for {
		s.propagateBlocked()
		if ctx.Err() != nil {
			s.cancelWaiting()
		}
		if running == 0 && s.allTerminal() {
			break
		}

		if ctx.Err() != nil {
			// Drain: running attempts are being killed via gctx; collect
			// their completions without admitting anything new.
			res := <-done
			running--
			s.complete(res)
			continue
		}

		s.admit(gctx, g, done, &running)

		if running == 0 {
			if s.allTerminal() {
				break
			}
			// Validation guarantees an acyclic graph and locks are released
			// on completion, so this is unreachable unless state is corrupt.
			remaining := s.nonTerminal()
			_ = g.Wait()
			return s.results, fmt.Errorf("no runnable tasks remain: %s", strings.Join(remaining, ", "))
		}

		select {
		case res := <-done:
			running--
			s.complete(res)
		case <-ctx.Done():
		}
	}

	_ = g.Wait()
	return s.results, nil
}

// admit walks tasks in declaration order, refreshing the ready frontier and
// starting attempts while capacity remains. A task is ready when every
// dependency succeeded and none of its write-targets are held.
func (s *Scheduler) admit(ctx context.Context, g *errgroup.Group, done chan<- attemptDone, running *int) {
	for _, t := range s.mission.Tasks {
		st := s.states[t.ID]
		if st != StatePending && st != StateReady {
			continue
		}

		if !s.depsSucceeded(t) {
			continue
		}
		if !s.locks.Free(t.ID, t.Writes) {
			// An earlier-declared admission this pass may have claimed one
			// of our targets; fall back to pending until release.
			s.states[t.ID] = StatePending
			continue
		}
		s.states[t.ID] = StateReady

		if *running >= s.mission.MaxConcurrency {
			continue
		}
		// Strict mode refuses to open a novel branch while related work is
		// still in flight.
		if s.mission.Mode == mission.ModeStrict && *running > 0 && s.relatedToRunning(t.ID) {
			continue
		}

		s.locks.TryAcquire(t.ID, t.Writes)
		s.states[t.ID] = StateRunning
		*running++

		s.logger.Debug("admitting task", "task", t.ID, "running", *running)
		s.publish(events.TopicTask, events.TaskStarted{ID: t.ID, Timestamp: time.Now().UTC()})

		task := t
		g.Go(func() error {
			done <- attemptDone{id: task.ID, result: s.exec.Execute(ctx, task)}
			return nil
		})
	}
}

// complete records a finished attempt: releases the task's locks atomically
// with the state transition, then stores the result.
func (s *Scheduler) complete(res attemptDone) {
	t, _ := s.mission.Get(res.id)
	s.locks.Release(res.id, t.Writes)

	switch res.result.Status {
	case runner.StatusSucceeded:
		s.states[res.id] = StateSucceeded
	case runner.StatusCancelled:
		s.states[res.id] = StateCancelled
	default:
		s.states[res.id] = StateFailed
	}
	s.results[res.id] = res.result

	s.logger.Debug("task finished", "task", res.id, "status", res.result.Status, "attempts", res.result.Attempts)
	s.publish(events.TopicTask, events.TaskFinished{
		ID:          res.id,
		Status:      res.result.Status,
		Attempts:    res.result.Attempts,
		DurationSec: res.result.DurationSec,
	})
}

// propagateBlocked marks every waiting task with a failed, blocked, or
// cancelled dependency as blocked, without attempting it. Runs to fixpoint
// since declaration order need not be topological.
func (s *Scheduler) propagateBlocked() {
	for changed := true; changed; {
		changed = false
		for _, t := range s.mission.Tasks {
			st := s.states[t.ID]
			if st != StatePending && st != StateReady {
				continue
			}
			for _, dep := range t.DependsOn {
				switch s.states[dep] {
				case StateFailed, StateBlocked, StateCancelled:
					s.states[t.ID] = StateBlocked
					s.results[t.ID] = runner.BlockedResult(t.ID, "blocked by failed dependency")
					s.publish(events.TopicTask, events.TaskBlocked{ID: t.ID, Reason: "blocked by failed dependency"})
					changed = true
				}
				if s.states[t.ID] == StateBlocked {
					break
				}
			}
		}
	}
}

// cancelWaiting marks every non-terminal, non-running task cancelled.
func (s *Scheduler) cancelWaiting() {
	for _, t := range s.mission.Tasks {
		switch s.states[t.ID] {
		case StatePending, StateReady:
			s.states[t.ID] = StateCancelled
			s.results[t.ID] = runner.CancelledResult(t.ID)
		}
	}
}

func (s *Scheduler) depsSucceeded(t mission.Task) bool {
	for _, dep := range t.DependsOn {
		if s.states[dep] != StateSucceeded {
			return false
		}
	}
	return true
}

func (s *Scheduler) relatedToRunning(id string) bool {
	for other, st := range s.states {
		if st == StateRunning && s.graph.Related(id, other) {
			return true
		}
	}
	return false
}

func (s *Scheduler) allTerminal() bool {
	for _, st := range s.states {
		if !st.Terminal() {
			return false
		}
	}
	return true
}

func (s *Scheduler) nonTerminal() []string {
	var out []string
	for _, t := range s.mission.Tasks {
		if !s.states[t.ID].Terminal() {
			out = append(out, t.ID)
		}
	}
	return out
}

// States returns a copy of the current task state table.
func (s *Scheduler) States() map[string]State {
	out := make(map[string]State, len(s.states))
	for id, st := range s.states {
		out[id] = st
	}
	return out
}

func (s *Scheduler) publish(topic string, event events.Event) {
	if s.bus != nil {
		s.bus.Publish(topic, event)
	}
}
