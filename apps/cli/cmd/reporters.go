package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
	"github.com/abdul-hamid-achik/uispec/packages/output"
)

type reporterOptions struct {
	outputFile string
	outputDir  string
	verbose    bool
	noColor    bool
	quiet      bool
}

// reporters fans results out to every configured formatter.
type reporters []output.Formatter

func (rs reporters) FormatHeader(v string) {
	for _, f := range rs {
		f.FormatHeader(v)
	}
}

func (rs reporters) FormatResult(result *runner.RunResult) {
	for _, f := range rs {
		f.FormatResult(result)
	}
}

func (rs reporters) FormatError(err error) {
	for _, f := range rs {
		f.FormatError(err)
	}
}

func (rs reporters) Flush(d time.Duration) error {
	var errs []error
	for _, f := range rs {
		if fl, ok := f.(output.Flushable); ok {
			errs = append(errs, fl.Flush(d))
		}
	}
	return errors.Join(errs...)
}

// reportFile names the file a format is written to inside the output dir.
func reportFile(format string) string {
	switch strings.ToLower(format) {
	case "junit":
		return "uispec-junit.xml"
	case "tap":
		return "uispec.tap"
	default:
		return "uispec." + strings.ToLower(format)
	}
}

// openReporters builds the formatters for formats. The console always
// writes to stdout; with a single format, --output-file redirects it;
// otherwise file formats go to the output dir, or stdout when none is set.
func openReporters(formats []string, stdout io.Writer, opts reporterOptions) (reporters, func(), error) {
	if len(formats) == 0 {
		formats = []string{"console"}
	}

	var (
		rs    reporters
		files []*os.File
	)
	closeAll := func() {
		for _, f := range files {
			_ = f.Close()
		}
	}

	for _, name := range formats {
		w := stdout
		switch {
		case len(formats) == 1 && opts.outputFile != "":
			f, err := os.Create(opts.outputFile)
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("cannot create output file: %w", err)
			}
			files = append(files, f)
			w = f
		case strings.EqualFold(name, "console"):
			if opts.quiet {
				w = io.Discard
			}
		case opts.outputDir != "":
			if err := os.MkdirAll(opts.outputDir, 0o755); err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("cannot create output dir: %w", err)
			}
			f, err := os.Create(filepath.Join(opts.outputDir, reportFile(name)))
			if err != nil {
				closeAll()
				return nil, nil, fmt.Errorf("cannot create report: %w", err)
			}
			files = append(files, f)
			w = f
		}

		fm, err := output.New(name, output.Options{
			Writer:  w,
			Verbose: opts.verbose,
			NoColor: opts.noColor || opts.quiet || w != stdout,
		})
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		rs = append(rs, fm)
	}
	return rs, closeAll, nil
}
