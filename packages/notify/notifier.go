// Package notify tells chat channels how a run went.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when scenarios fail
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when every scenario passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first green run after one
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn parses a policy name.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(s); on {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	case "":
		return NotifyFailure, nil
	default:
		return "", fmt.Errorf("unknown notify policy %q (use always, failure, success or recovery)", s)
	}
}

// RunSummary represents the summary of a run for notifications
type RunSummary struct {
	Suites        []string         `json:"suites"`
	BaseURL       string           `json:"base_url,omitempty"`
	TotalTests    int              `json:"total_scenarios"`
	PassedTests   int              `json:"passed_scenarios"`
	FailedTests   int              `json:"failed_scenarios"`
	SkippedTests  int              `json:"skipped_scenarios"`
	Duration      time.Duration    `json:"duration"`
	Environment   string           `json:"environment,omitempty"`
	FailedResults []FailedScenario `json:"failed_results,omitempty"`
	Flaky         []string         `json:"flaky,omitempty"`
	IsRecovery    bool             `json:"is_recovery,omitempty"`
}

// FailedScenario represents a failed scenario for notifications
type FailedScenario struct {
	Name  string `json:"name"`
	Suite string `json:"suite"`
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error,omitempty"`
}

// OK reports whether nothing failed.
func (s *RunSummary) OK() bool {
	return s.FailedTests == 0
}

// Summarize folds run results into one summary.
func Summarize(results []*runner.RunResult, duration time.Duration) *RunSummary {
	s := &RunSummary{Duration: duration}
	for _, r := range results {
		s.Suites = append(s.Suites, r.Suite)
		if s.BaseURL == "" {
			s.BaseURL = r.BaseURL
		}
		s.PassedTests += r.Passed
		s.FailedTests += r.Failed
		s.SkippedTests += r.Skipped
		for _, sr := range r.Results {
			if sr.Status != runner.StatusFailed {
				continue
			}
			fs := FailedScenario{Name: sr.Name, Suite: r.Suite, Kind: string(sr.Kind)}
			if sr.Error != nil {
				fs.Error = sr.Error.Error()
			}
			s.FailedResults = append(s.FailedResults, fs)
		}
	}
	s.TotalTests = s.PassedTests + s.FailedTests + s.SkippedTests
	return s
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about a run
	Notify(ctx context.Context, summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager manages multiple notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true,
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// SetLastState records how the previous run went, typically from history,
// so a recovery is detected across processes.
func (m *Manager) SetLastState(ok bool) {
	m.lastState = ok
}

// Notify sends notifications based on the configured policy. It reports
// whether anything was sent.
func (m *Manager) Notify(ctx context.Context, summary *RunSummary) (bool, error) {
	shouldNotify := false
	currentSuccess := summary.OK()

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !currentSuccess
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		if !currentSuccess {
			shouldNotify = true
		}
	}

	m.lastState = currentSuccess

	if !shouldNotify || len(m.notifiers) == 0 {
		return false, nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return true, errors.Join(errs...)
}
