package schemas

import "time"

// Status is the outcome of a scenario or one of its steps.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
	StatusSkipped Status = "skipped"
)

// StepResult records a single action sequence inside a scenario.
type StepResult struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Result is the recorded outcome of one scenario.
type Result struct {
	ScenarioID string        `json:"scenario_id"`
	Group      string        `json:"group"`
	Title      string        `json:"title"`
	Status     Status        `json:"status"`
	Detail     string        `json:"detail,omitempty"`
	Steps      []StepResult  `json:"steps,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration_ns"`
	Screenshot string        `json:"screenshot,omitempty"`
}

// Report is everything one run of a suite produced.
type Report struct {
	RunID      string    `json:"run_id"`
	Suite      string    `json:"suite"`
	BaseURL    string    `json:"base_url"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Results    []Result  `json:"results"`
}

// Summary counts results by status.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
}

// OK reports whether no scenario failed or errored.
func (s Summary) OK() bool { return s.Failed == 0 && s.Errored == 0 }

// Summary tallies the report's results.
func (r *Report) Summary() Summary {
	s := Summary{Total: len(r.Results)}
	for _, res := range r.Results {
		switch res.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed:
			s.Failed++
		case StatusErrored:
			s.Errored++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
