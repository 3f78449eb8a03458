package output

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
	"github.com/fatih/color"
)

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	name := result.Suite
	if result.File != "" {
		name += " (" + result.File + ")"
	}
	fmt.Fprintf(f.writer, "\n%s\n", bold("Running: "+name))
	if f.verbose && result.BaseURL != "" {
		fmt.Fprintf(f.writer, "  against %s\n", result.BaseURL)
	}
	fmt.Fprintf(f.writer, "\n")

	for _, r := range result.Results {
		switch r.Status {
		case runner.StatusSkipped:
			fmt.Fprintf(f.writer, "  %s %s", yellow("-"), r.Name)
			if reason := reportedSkip(r); reason != "" {
				fmt.Fprintf(f.writer, " (%s)", reason)
			}
			fmt.Fprintf(f.writer, "\n")
			continue

		case runner.StatusPassed:
			fmt.Fprintf(f.writer, "  %s %s %s\n", green("✓"), r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))

		default:
			fmt.Fprintf(f.writer, "  %s %s %s\n", red("✗"), r.Name, cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds())))
			if step := r.FailedStep(); step != nil {
				fmt.Fprintf(f.writer, "    %s step %d: %s", red("→"), step.Index+1, step.Step)
				if step.Line > 0 {
					fmt.Fprintf(f.writer, " (line %d)", step.Line)
				}
				fmt.Fprintf(f.writer, "\n")
			}
			if r.Kind != "" {
				fmt.Fprintf(f.writer, "      %s\n", yellow(string(r.Kind)))
			}
			for _, line := range failureLines(r.Error) {
				fmt.Fprintf(f.writer, "      %s\n", line)
			}
		}

		if f.verbose {
			for _, st := range r.Steps {
				mark := green("✓")
				if st.Error != nil {
					mark = red("✗")
				}
				fmt.Fprintf(f.writer, "      %s %s %s\n", mark, st.Step, cyan(fmt.Sprintf("(%dms)", st.Duration.Milliseconds())))
			}
			for _, c := range r.Calls {
				source := c.Rule
				if !c.Mocked {
					source = "not mocked"
				}
				fmt.Fprintf(f.writer, "      %s %s %s -> %s\n", cyan("↳"), c.Method, c.Path, source)
			}
		}
	}

	fmt.Fprintf(f.writer, "\n")
	fmt.Fprintf(f.writer, "Scenarios: ")
	if result.Passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", result.Passed)))
	}
	if result.Failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", result.Failed)))
	}
	if result.Skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", result.Skipped)))
	}
	total := result.Passed + result.Failed + result.Skipped
	fmt.Fprintf(f.writer, "%d total\n", total)
	fmt.Fprintf(f.writer, "Time:      %dms\n", result.Duration.Milliseconds())

	if l := result.Latency; f.verbose && l.Count > 0 {
		fmt.Fprintf(f.writer, "Waits:     %d (p50 %dms, p95 %dms, p99 %dms, max %dms)\n",
			l.Count, l.P50.Milliseconds(), l.P95.Milliseconds(), l.P99.Milliseconds(), l.Max.Milliseconds())
		ops := make([]string, 0, len(l.ByOp))
		for op := range l.ByOp {
			ops = append(ops, op)
		}
		sort.Strings(ops)
		for _, op := range ops {
			fmt.Fprintf(f.writer, "           %s: %d\n", op, l.ByOp[op])
		}
	}
	fmt.Fprintf(f.writer, "\n")
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("uispec"), version)
}
