package events

import "time"

// Event is the base interface for all orchestrator events.
type Event interface {
	EventType() string
}

// Topic constants
const (
	TopicTask    = "task"
	TopicMission = "mission"
)

// Event type constants
const (
	EventTypeTaskStarted     = "task.started"
	EventTypeTaskFinished    = "task.finished"
	EventTypeTaskBlocked     = "task.blocked"
	EventTypePhaseStarted    = "phase.started"
	EventTypePhaseFinished   = "phase.finished"
	EventTypeMissionFinished = "mission.finished"
)

// TaskStarted is published when a task attempt sequence begins.
type TaskStarted struct {
	ID        string
	Timestamp time.Time
}

func (e TaskStarted) EventType() string { return EventTypeTaskStarted }

// TaskFinished is published when a task reaches a terminal state after
// running (succeeded, failed, or cancelled mid-attempt).
type TaskFinished struct {
	ID          string
	Status      string
	Attempts    int
	DurationSec float64
}

func (e TaskFinished) EventType() string { return EventTypeTaskFinished }

// TaskBlocked is published when a task is marked blocked without being
// attempted.
type TaskBlocked struct {
	ID     string
	Reason string
}

func (e TaskBlocked) EventType() string { return EventTypeTaskBlocked }

// PhaseStarted is published when the integrate or verify gate begins.
type PhaseStarted struct {
	Name string
}

func (e PhaseStarted) EventType() string { return EventTypePhaseStarted }

// PhaseFinished is published when the integrate or verify gate completes.
type PhaseFinished struct {
	Name        string
	Status      string
	Attempts    int
	DurationSec float64
}

func (e PhaseFinished) EventType() string { return EventTypePhaseFinished }

// MissionFinished is published once when the mission reaches its terminal
// status.
type MissionFinished struct {
	Status      string
	DurationSec float64
}

func (e MissionFinished) EventType() string { return EventTypeMissionFinished }
