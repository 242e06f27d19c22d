package mission

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Defaults supplies workspace-level fallbacks applied when a mission omits a
// field. The zero value means "use the mode table".
type Defaults struct {
	Mode           Mode
	MaxConcurrency int
	TimeoutSec     int
	Retries        *int
}

// rawMission mirrors the on-disk mission schema. Optional integers are
// pointers so that an explicit zero can be told apart from an absent field.
type rawMission struct {
	Objective         string     `json:"objective" yaml:"objective"`
	Mode              string     `json:"mode" yaml:"mode"`
	MaxConcurrency    *int       `json:"max_concurrency" yaml:"max_concurrency"`
	DefaultTimeoutSec *int       `json:"default_timeout_sec" yaml:"default_timeout_sec"`
	DefaultRetries    *int       `json:"default_retries" yaml:"default_retries"`
	Tasks             []rawTask  `json:"tasks" yaml:"tasks"`
	Integrate         *rawPhase  `json:"integrate" yaml:"integrate"`
	Verify            *rawPhase  `json:"verify" yaml:"verify"`
}

type rawTask struct {
	ID         string   `json:"id" yaml:"id"`
	Command    string   `json:"command" yaml:"command"`
	DependsOn  []string `json:"depends_on" yaml:"depends_on"`
	Writes     []string `json:"writes" yaml:"writes"`
	TimeoutSec *int     `json:"timeout_sec" yaml:"timeout_sec"`
	Retries    *int     `json:"retries" yaml:"retries"`
}

type rawPhase struct {
	Command    string `json:"command" yaml:"command"`
	TimeoutSec *int   `json:"timeout_sec" yaml:"timeout_sec"`
	Retries    *int   `json:"retries" yaml:"retries"`
}

// Load reads a mission definition from path (JSON, or YAML for .yaml/.yml
// files), applies workspace defaults and the mode table, then validates the
// result. All validation violations are aggregated into one ValidationError.
func Load(path string, defaults Defaults) (*Mission, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("mission file not found: %s", path)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("mission path is not a file: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mission %s: %w", path, err)
	}

	var raw rawMission
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing mission %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing mission %s: %w", path, err)
		}
	}

	return resolve(path, &raw, defaults)
}

// Parse resolves an already-decoded raw mission. Exposed for callers that
// build missions in memory (the bundled verify mission, tests).
func Parse(path string, data []byte, defaults Defaults) (*Mission, error) {
	var raw rawMission
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing mission: %w", err)
	}
	return resolve(path, &raw, defaults)
}

// resolve folds the fallback chain (task field, mission field, workspace
// default, mode table) into concrete task fields and validates the result.
func resolve(path string, raw *rawMission, defaults Defaults) (*Mission, error) {
	v := newValidator()

	mode := Mode(raw.Mode)
	if mode == "" {
		mode = defaults.Mode
	}
	if mode == "" {
		mode = ModeBalanced
	}
	md, knownMode := modeDefaults[mode]
	if !knownMode {
		v.addf("mode must be one of: fast, balanced, strict (got %q)", raw.Mode)
		md = modeDefaults[ModeBalanced]
	}

	maxConcurrency := md.maxConcurrency
	if defaults.MaxConcurrency > 0 {
		maxConcurrency = defaults.MaxConcurrency
	}
	if raw.MaxConcurrency != nil {
		maxConcurrency = *raw.MaxConcurrency
	}
	if maxConcurrency < 1 {
		v.addf("max_concurrency must be an integer >= 1 (got %d)", maxConcurrency)
	}

	defaultTimeout := defaults.TimeoutSec
	if raw.DefaultTimeoutSec != nil {
		defaultTimeout = *raw.DefaultTimeoutSec
		if defaultTimeout <= 0 {
			v.addf("default_timeout_sec must be a positive integer (got %d)", defaultTimeout)
		}
	}

	defaultRetries := md.retries
	if defaults.Retries != nil {
		defaultRetries = *defaults.Retries
	}
	if raw.DefaultRetries != nil {
		defaultRetries = *raw.DefaultRetries
		if defaultRetries < 0 {
			v.addf("default_retries must be an integer >= 0 (got %d)", defaultRetries)
		}
	}

	if len(raw.Tasks) == 0 {
		v.addf("mission.tasks must be a non-empty list")
	}

	m := &Mission{
		Path:           path,
		Objective:      raw.Objective,
		Mode:           mode,
		MaxConcurrency: maxConcurrency,
	}

	seen := make(map[string]bool, len(raw.Tasks))
	for _, rt := range raw.Tasks {
		t := Task{
			ID:         rt.ID,
			Command:    rt.Command,
			DependsOn:  append([]string(nil), rt.DependsOn...),
			TimeoutSec: defaultTimeout,
			Retries:    defaultRetries,
		}
		if rt.TimeoutSec != nil {
			t.TimeoutSec = *rt.TimeoutSec
		}
		if rt.Retries != nil {
			t.Retries = *rt.Retries
		}

		v.checkTask(&t, rt, seen)

		for _, w := range rt.Writes {
			if strings.TrimSpace(w) == "" {
				continue // reported by checkTask
			}
			t.Writes = append(t.Writes, NormalizeWriteTarget(w))
		}

		m.Tasks = append(m.Tasks, t)
		if t.ID != "" {
			seen[t.ID] = true
		}
	}

	v.checkGraph(m)

	m.Integrate = resolvePhase(v, "integrate", raw.Integrate, defaultTimeout)
	m.Verify = resolvePhase(v, "verify", raw.Verify, defaultTimeout)

	if err := v.err(); err != nil {
		return nil, err
	}
	return m, nil
}

// resolvePhase resolves an integrate/verify gate. Phase timeout inherits the
// mission default; phase retries default to zero, both overridable per phase.
func resolvePhase(v *validator, name string, raw *rawPhase, defaultTimeout int) *Phase {
	if raw == nil {
		return nil
	}

	p := &Phase{Name: name, Command: raw.Command, TimeoutSec: defaultTimeout}
	if strings.TrimSpace(p.Command) == "" {
		v.addf("%s.command must be a non-empty string", name)
	}
	if raw.TimeoutSec != nil {
		p.TimeoutSec = *raw.TimeoutSec
		if p.TimeoutSec <= 0 {
			v.addf("%s.timeout_sec must be a positive integer", name)
		}
	}
	if raw.Retries != nil {
		p.Retries = *raw.Retries
		if p.Retries < 0 {
			v.addf("%s.retries must be an integer >= 0", name)
		}
	}
	return p
}
