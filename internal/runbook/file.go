// Package runbook defines the task file model: tasks, inputs and the
// metadata that drives sequenced execution.
package runbook

import "time"

// File is a parsed task file.
type File struct {
	Version string            `yaml:"version,omitempty" json:"version,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Dotenv  []string          `yaml:"dotenv,omitempty" json:"dotenv,omitempty"`
	Inputs  []Input           `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Tasks   map[string]*Task  `yaml:"tasks" json:"tasks"`

	// Path is the absolute location the file was loaded from. The
	// containing directory is the workspace root.
	Path string `yaml:"-" json:"-"`
}

// Task is a single runnable step. Exactly one of Run or Command may be
// set; a task with neither must declare deps.
type Task struct {
	Description string            `yaml:"description,omitempty" json:"description,omitempty"`
	Run         string            `yaml:"run,omitempty" json:"run,omitempty"`
	Command     string            `yaml:"command,omitempty" json:"command,omitempty"`
	Args        []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Dir         string            `yaml:"dir,omitempty" json:"dir,omitempty"`
	Env         map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
	Deps        []string          `yaml:"deps,omitempty" json:"deps,omitempty"`
	Order       string            `yaml:"order,omitempty" json:"order,omitempty"`
	Timeout     string            `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Retry       *RetryPolicy      `yaml:"retry,omitempty" json:"retry,omitempty"`
	Produces    []string          `yaml:"produces,omitempty" json:"produces,omitempty"`
	Consumes    []string          `yaml:"consumes,omitempty" json:"consumes,omitempty"`
	Watch       []string          `yaml:"watch,omitempty" json:"watch,omitempty"`
}

// Input is a user-supplied value declared by the task file.
type Input struct {
	ID          string   `yaml:"id" json:"id"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Type        string   `yaml:"type,omitempty" json:"type,omitempty"`
	Options     []string `yaml:"options,omitempty" json:"options,omitempty"`
	Default     string   `yaml:"default,omitempty" json:"default,omitempty"`
}

// RetryPolicy controls re-execution of a failing task.
type RetryPolicy struct {
	Attempts int    `yaml:"attempts" json:"attempts"`
	Delay    string `yaml:"delay,omitempty" json:"delay,omitempty"`
}

const (
	OrderSequence = "sequence"
	OrderParallel = "parallel"

	InputPick = "pick"
	InputText = "text"
)

// HasCommand reports whether the task runs anything itself (as opposed
// to being a pure aggregation of deps).
func (t *Task) HasCommand() bool {
	return t.Run != "" || t.Command != ""
}

// TimeoutDuration returns the parsed per-task timeout, zero when unset.
// Validation guarantees the string parses, so errors only surface for
// hand-built tasks.
func (t *Task) TimeoutDuration() (time.Duration, error) {
	if t.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(t.Timeout)
}

// DelayDuration returns the base backoff delay, defaulting to one second.
func (p *RetryPolicy) DelayDuration() (time.Duration, error) {
	if p == nil || p.Delay == "" {
		return time.Second, nil
	}
	return time.ParseDuration(p.Delay)
}

// Input lookup by ID; nil when not declared.
func (f *File) Input(id string) *Input {
	for i := range f.Inputs {
		if f.Inputs[i].ID == id {
			return &f.Inputs[i]
		}
	}
	return nil
}

// EffectiveType resolves the input type default: pick when options are
// declared, text otherwise.
func (in *Input) EffectiveType() string {
	if in.Type != "" {
		return in.Type
	}
	if len(in.Options) > 0 {
		return InputPick
	}
	return InputText
}

// HasOption reports whether value is one of the declared options.
func (in *Input) HasOption(value string) bool {
	for _, opt := range in.Options {
		if opt == value {
			return true
		}
	}
	return false
}
