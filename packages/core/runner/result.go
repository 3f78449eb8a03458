package runner

import (
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/failure"
	"github.com/abdul-hamid-achik/uispec/packages/intercept"
)

// Status is the outcome of a scenario.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

type RunResult struct {
	Suite    string
	File     string
	BaseURL  string
	Results  []*ScenarioResult
	Duration time.Duration
	Passed   int
	Failed   int
	Skipped  int
	Latency  LatencySummary
}

// OK reports whether no scenario failed.
func (r *RunResult) OK() bool {
	return r.Failed == 0
}

func (r *RunResult) add(sr *ScenarioResult) {
	r.Results = append(r.Results, sr)
	switch sr.Status {
	case StatusPassed:
		r.Passed++
	case StatusFailed:
		r.Failed++
	case StatusSkipped:
		r.Skipped++
	}
}

type ScenarioResult struct {
	Name       string
	Tags       []string
	Line       int
	Status     Status
	SkipReason string
	Duration   time.Duration
	Steps      []*StepResult
	// Error is the failure that ended the scenario.
	Error error
	// Kind classifies Error.
	Kind      failure.Kind
	SessionID string
	Calls     []intercept.Call
}

func (r *ScenarioResult) Passed() bool {
	return r.Status == StatusPassed
}

// FailedStep returns the step that failed, or nil.
func (r *ScenarioResult) FailedStep() *StepResult {
	for _, st := range r.Steps {
		if st.Error != nil {
			return st
		}
	}
	return nil
}

type StepResult struct {
	Index    int
	Step     string
	Line     int
	Duration time.Duration
	Error    error
}
