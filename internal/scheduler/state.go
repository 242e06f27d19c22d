package scheduler

// State is the run state of a task within a mission. It is owned exclusively
// by the scheduler loop and mutated only on attempt completion or upstream
// failure propagation.
type State int

const (
	StatePending   State = iota // waiting for dependencies
	StateReady                  // dependencies succeeded, awaiting admission
	StateRunning                // attempt in flight
	StateSucceeded              // some attempt exited zero
	StateFailed                 // attempts exhausted without a zero exit
	StateBlocked                // never attempted, ancestor failed
	StateCancelled              // mission cancelled before or during attempt
)

var stateNames = map[State]string{
	StatePending:   "pending",
	StateReady:     "ready",
	StateRunning:   "running",
	StateSucceeded: "succeeded",
	StateFailed:    "failed",
	StateBlocked:   "blocked",
	StateCancelled: "cancelled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether a task in this state can never transition again.
func (s State) Terminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateBlocked, StateCancelled:
		return true
	}
	return false
}
