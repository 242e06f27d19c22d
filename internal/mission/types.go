package mission

// Mode selects the scheduler's admission aggressiveness and, when the mission
// omits them, the defaults for max_concurrency and retries.
type Mode string

const (
	ModeFast     Mode = "fast"
	ModeBalanced Mode = "balanced"
	ModeStrict   Mode = "strict"
)

// Mission is a validated, resolved mission definition. All defaults (mode
// table, workspace config, mission-level overrides) have already been folded
// into the task fields, so consumers never consult fallback chains.
type Mission struct {
	Path           string
	Objective      string
	Mode           Mode
	MaxConcurrency int
	Tasks          []Task // declaration order; admission tie-break
	Integrate      *Phase
	Verify         *Phase
}

// Task is one unit of external command execution.
type Task struct {
	ID         string
	Command    string
	DependsOn  []string
	Writes     []string // normalized write-target keys
	TimeoutSec int      // 0 means no timeout
	Retries    int
}

// Phase is an integrate or verify gate command, run after all tasks are
// terminal and none failed.
type Phase struct {
	Name       string
	Command    string
	TimeoutSec int
	Retries    int
}

// Get returns the task with the given id.
func (m *Mission) Get(id string) (Task, bool) {
	for _, t := range m.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// modeDefaults maps a mode to the max_concurrency and retries used when the
// mission leaves them unset.
type modeDefault struct {
	maxConcurrency int
	retries        int
}

var modeDefaults = map[Mode]modeDefault{
	ModeFast:     {maxConcurrency: 6, retries: 0},
	ModeBalanced: {maxConcurrency: 4, retries: 1},
	ModeStrict:   {maxConcurrency: 3, retries: 1},
}
