package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
)

// Formatter renders run results.
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable is implemented by formatters that accumulate results and write
// them at the end of a run.
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// Names lists the supported formats.
var Names = []string{"console", "json", "junit", "tap"}

// Options configure New.
type Options struct {
	Writer  io.Writer
	Verbose bool
	NoColor bool
}

// New returns the formatter registered under name.
func New(name string, opts Options) (Formatter, error) {
	switch strings.ToLower(name) {
	case "", "console":
		consoleOpts := []ConsoleOption{WithVerbose(opts.Verbose), WithNoColor(opts.NoColor)}
		if opts.Writer != nil {
			consoleOpts = append(consoleOpts, WithWriter(opts.Writer))
		}
		return NewConsoleFormatter(consoleOpts...), nil
	case "json":
		var jsonOpts []JSONOption
		if opts.Writer != nil {
			jsonOpts = append(jsonOpts, JSONWithWriter(opts.Writer))
		}
		return NewJSONFormatter(jsonOpts...), nil
	case "junit":
		var junitOpts []JUnitOption
		if opts.Writer != nil {
			junitOpts = append(junitOpts, JUnitWithWriter(opts.Writer))
		}
		return NewJUnitFormatter(junitOpts...), nil
	case "tap":
		var tapOpts []TAPOption
		if opts.Writer != nil {
			tapOpts = append(tapOpts, TAPWithWriter(opts.Writer))
		}
		return NewTAPFormatter(tapOpts...), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (use %s)", name, strings.Join(Names, ", "))
	}
}

// reportedSkip returns the skip reason worth showing, hiding filter noise.
func reportedSkip(r *runner.ScenarioResult) string {
	if r.SkipReason == "filtered out" {
		return ""
	}
	return r.SkipReason
}

// failureLines splits a scenario error into one line per joined failure.
func failureLines(err error) []string {
	if err == nil {
		return nil
	}
	var lines []string
	for _, l := range strings.Split(err.Error(), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
