package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary    `json:"summary"`
	Tests    []JSONScenario `json:"scenarios"`
	Latency  *JSONLatency   `json:"latency,omitempty"`
	Duration float64        `json:"duration"`
	Time     string         `json:"time"`
}

// JSONSummary represents the run summary
type JSONSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// JSONScenario represents a single scenario result
type JSONScenario struct {
	Name       string     `json:"name"`
	Suite      string     `json:"suite"`
	File       string     `json:"file"`
	Tags       []string   `json:"tags,omitempty"`
	Status     string     `json:"status"`
	SkipReason string     `json:"skipReason,omitempty"`
	Duration   float64    `json:"duration"`
	Kind       string     `json:"kind,omitempty"`
	Error      string     `json:"error,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"`
	Steps      []JSONStep `json:"steps,omitempty"`
	Calls      []JSONCall `json:"calls,omitempty"`
}

// JSONStep represents one executed step
type JSONStep struct {
	Step     string  `json:"step"`
	Line     int     `json:"line,omitempty"`
	Duration float64 `json:"duration"`
	Error    string  `json:"error,omitempty"`
}

// JSONCall represents one intercepted request
type JSONCall struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Rule   string `json:"rule,omitempty"`
	Status int    `json:"status,omitempty"`
	Mocked bool   `json:"mocked"`
}

// JSONLatency summarizes driver waits in milliseconds
type JSONLatency struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Max   float64 `json:"max"`
}

// JSONFormatter formats run results as JSON
type JSONFormatter struct {
	writer  io.Writer
	results []JSONScenario
	latency *JSONLatency
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]JSONScenario, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	for _, r := range result.Results {
		sc := JSONScenario{
			Name:       r.Name,
			Suite:      result.Suite,
			File:       result.File,
			Tags:       r.Tags,
			Status:     string(r.Status),
			SkipReason: reportedSkip(r),
			Duration:   float64(r.Duration.Milliseconds()),
			Kind:       string(r.Kind),
			SessionID:  r.SessionID,
		}
		if r.Error != nil {
			sc.Error = r.Error.Error()
		}
		for _, st := range r.Steps {
			js := JSONStep{Step: st.Step, Line: st.Line, Duration: float64(st.Duration.Milliseconds())}
			if st.Error != nil {
				js.Error = st.Error.Error()
			}
			sc.Steps = append(sc.Steps, js)
		}
		for _, c := range r.Calls {
			sc.Calls = append(sc.Calls, JSONCall{Method: c.Method, Path: c.Path, Rule: c.Rule, Status: c.Status, Mocked: c.Mocked})
		}
		f.results = append(f.results, sc)
	}

	if l := result.Latency; l.Count > 0 {
		f.latency = &JSONLatency{
			Count: l.Count,
			Mean:  ms(l.Mean),
			P50:   ms(l.P50),
			P95:   ms(l.P95),
			P99:   ms(l.P99),
			Max:   ms(l.Max),
		}
	}
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are included in individual scenario results
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var passed, failed, skipped int
	for _, t := range f.results {
		switch runner.Status(t.Status) {
		case runner.StatusSkipped:
			skipped++
		case runner.StatusPassed:
			passed++
		default:
			failed++
		}
	}

	output := JSONOutput{
		Summary: JSONSummary{
			Total:   len(f.results),
			Passed:  passed,
			Failed:  failed,
			Skipped: skipped,
		},
		Tests:    f.results,
		Latency:  f.latency,
		Duration: float64(totalDuration.Milliseconds()),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}
