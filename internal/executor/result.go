package executor

import "time"

// Status is the terminal state of a planned task.
type Status string

const (
	StatusRun     Status = "run"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
	StatusTimeout Status = "timeout"
)

// Runner process exit codes for non-command failures.
const (
	ExitTimeout   = 124
	ExitInterrupt = 130
)

// tailLimit bounds the output kept for failure reports.
const tailLimit = 2048

// Result captures the execution outcome of one task.
type Result struct {
	Task       string `json:"task"`
	Status     Status `json:"status"`
	ExitCode   int    `json:"exit_code"`
	Attempts   int    `json:"attempts"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
	Tail       string `json:"tail,omitempty"`

	duration time.Duration
}

// Duration is the wall time across all attempts.
func (r *Result) Duration() time.Duration { return r.duration }

func (r *Result) setDuration(d time.Duration) {
	r.duration = d
	r.DurationMS = d.Milliseconds()
}

// Summary is the outcome of a whole run, results in plan order.
type Summary struct {
	Results  []Result `json:"results"`
	ExitCode int      `json:"exit_code"`
}

// Failed returns the first failed or timed out result, nil on success.
func (s *Summary) Failed() *Result {
	for i := range s.Results {
		switch s.Results[i].Status {
		case StatusFailed, StatusTimeout:
			return &s.Results[i]
		}
	}
	return nil
}

// OK reports whether every planned task ran to completion.
func (s *Summary) OK() bool { return s.ExitCode == 0 }
