package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/core/env"
	"github.com/abdul-hamid-achik/uispec/packages/driver"
	"github.com/abdul-hamid-achik/uispec/packages/intercept"
	"github.com/abdul-hamid-achik/uispec/packages/scenario"
	"github.com/abdul-hamid-achik/uispec/packages/session"
)

const (
	// DefaultConcurrency is the default number of concurrent scenarios in parallel mode
	DefaultConcurrency = 4
	// DefaultScenarioTimeout bounds a whole scenario including setup and teardown
	DefaultScenarioTimeout = time.Minute
)

// Page is one isolated browser context.
type Page interface {
	driver.DOM
	session.Store
	Intercept(set *intercept.RuleSet) error
	Close() error
}

// Launcher opens a fresh page for every scenario.
type Launcher interface {
	NewPage(ctx context.Context) (Page, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context) (Page, error)

func (fn LauncherFunc) NewPage(ctx context.Context) (Page, error) {
	return fn(ctx)
}

type Runner struct {
	launcher Launcher
	config   *Config
	logger   *slog.Logger
}

type Config struct {
	// BaseURL overrides the suite's baseUrl and is exposed as {{baseUrl}}.
	BaseURL   string
	Variables map[string]any
	// Timeout bounds each wait; zero uses the suite timeout, then the driver default.
	Timeout         time.Duration
	ScenarioTimeout time.Duration
	PollInterval    time.Duration
	// Unmocked is the mode for suites that do not set one.
	Unmocked intercept.Mode
	// Scope overrides the suite's strict path prefix when set.
	Scope       *string
	Bail        bool
	NameFilter  string
	TagsFilter  []string
	Parallel    bool
	Concurrency int
	Logger      *slog.Logger
}

func NewRunner(launcher Launcher, cfg *Config) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{
		launcher: launcher,
		config:   cfg,
		logger:   logger,
	}
}

// RunFile loads, validates and runs a suite file.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	suite, err := scenario.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading suite: %w", err)
	}
	return r.RunSuite(ctx, suite)
}

// RunSuite runs the selected scenarios of a parsed suite. The returned error
// covers problems that prevent any scenario from running, such as a missing
// fixture; scenario failures are reported in the result.
func (r *Runner) RunSuite(ctx context.Context, suite *scenario.Suite) (*RunResult, error) {
	if r.launcher == nil {
		return nil, errors.New("runner has no browser launcher")
	}

	p, err := r.prepare(suite)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := &RunResult{
		Suite:   suite.Name,
		File:    suite.Path,
		BaseURL: p.baseURL,
	}

	selected := make(map[*scenario.Scenario]bool)
	for _, sc := range suite.Select(scenario.Filter{Name: r.config.NameFilter, Tags: r.config.TagsFilter}) {
		selected[sc] = true
	}

	var runnable []*scenario.Scenario
	for _, sc := range suite.Scenarios {
		switch {
		case !selected[sc]:
			result.add(skipped(sc, "filtered out"))
		case sc.Skip != "":
			result.add(skipped(sc, sc.Skip))
		default:
			runnable = append(runnable, sc)
		}
	}

	r.logger.Info("running suite", "suite", suite.Name, "scenarios", len(runnable), "base_url", p.baseURL, "parallel", r.config.Parallel)

	if r.config.Parallel {
		for _, sr := range r.runParallel(ctx, p, runnable) {
			result.add(sr)
		}
	} else {
		for _, sc := range runnable {
			sr := r.runScenario(ctx, p, sc)
			result.add(sr)
			if sr.Status == StatusFailed && r.config.Bail {
				break
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	result.Duration = time.Since(start)
	result.Latency = p.latency.summary()
	return result, nil
}

func (r *Runner) runParallel(ctx context.Context, p *plan, scenarios []*scenario.Scenario) []*ScenarioResult {
	concurrency := r.config.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]*ScenarioResult, len(scenarios))
	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	for i, sc := range scenarios {
		wg.Add(1)
		sem <- struct{}{}

		go func(idx int, sc *scenario.Scenario) {
			defer wg.Done()
			defer func() { <-sem }()

			results[idx] = r.runScenario(ctx, p, sc)
		}(i, sc)
	}

	wg.Wait()
	return results
}

func skipped(sc *scenario.Scenario, reason string) *ScenarioResult {
	return &ScenarioResult{
		Name:       sc.Name,
		Tags:       sc.Tags,
		Line:       sc.Line,
		Status:     StatusSkipped,
		SkipReason: reason,
	}
}

// newResolver builds the resolver of one suite run. An explicit base URL is
// also available to the suite as {{baseUrl}}.
func (r *Runner) newResolver() *env.Resolver {
	res := env.NewResolver()
	res.SetWarnFunc(func(format string, args ...any) {
		r.logger.Warn(fmt.Sprintf(format, args...))
	})
	res.SetVariables(r.config.Variables)
	if r.config.BaseURL != "" {
		res.SetVariable("baseUrl", r.config.BaseURL)
	}
	return res
}
