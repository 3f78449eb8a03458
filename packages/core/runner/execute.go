package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/driver"
	"github.com/abdul-hamid-achik/uispec/packages/failure"
	"github.com/abdul-hamid-achik/uispec/packages/intercept"
	"github.com/abdul-hamid-achik/uispec/packages/modal"
	"github.com/abdul-hamid-achik/uispec/packages/scenario"
	"github.com/abdul-hamid-achik/uispec/packages/session"
)

// execution is the state of one running scenario. Nothing in it is shared
// with other scenarios.
type execution struct {
	plan   *plan
	sc     *scenario.Scenario
	drv    *driver.Driver
	set    *intercept.RuleSet
	modals map[string]*modal.Modal
	logger *slog.Logger
	result *ScenarioResult
}

func (r *Runner) runScenario(ctx context.Context, p *plan, sc *scenario.Scenario) *ScenarioResult {
	result := &ScenarioResult{
		Name: sc.Name,
		Tags: sc.Tags,
		Line: sc.Line,
	}
	start := time.Now()

	timeout := r.config.ScenarioTimeout
	if timeout <= 0 {
		timeout = DefaultScenarioTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := r.logger.With("scenario", sc.Name)
	err := r.execute(ctx, p, sc, result, logger)

	result.Duration = time.Since(start)
	if err != nil {
		result.Status = StatusFailed
		result.Error = err
		result.Kind = failure.Classify(err)
		logger.Info("scenario failed", "kind", result.Kind, "error", err, "duration", result.Duration)
	} else {
		result.Status = StatusPassed
		logger.Info("scenario passed", "duration", result.Duration)
	}
	return result
}

func (r *Runner) execute(ctx context.Context, p *plan, sc *scenario.Scenario, result *ScenarioResult, logger *slog.Logger) (err error) {
	page, err := r.launcher.NewPage(ctx)
	if err != nil {
		return fmt.Errorf("opening page: %w", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.Warn("closing page", "error", cerr)
		}
	}()

	set := p.ruleSet(intercept.WithLogger(logger))
	defer func() {
		result.Calls = set.Calls()
	}()
	if err := page.Intercept(set); err != nil {
		return fmt.Errorf("attaching intercepts: %w", err)
	}

	x := &execution{
		plan: p,
		sc:   sc,
		drv: driver.New(page, driver.Options{
			BaseURL:      p.baseURL,
			Timeout:      p.timeout,
			PollInterval: r.config.PollInterval,
			Observer:     p.latency,
			Logger:       logger,
		}),
		set:    set,
		modals: make(map[string]*modal.Modal),
		logger: logger,
		result: result,
	}

	if p.creds == nil {
		return x.steps(ctx)
	}
	return session.With(ctx, page, p.binding, *p.creds, func(ctx context.Context, s *session.Session) error {
		result.SessionID = s.ID
		return x.steps(ctx)
	}, session.WithLogger(logger))
}

// steps runs the start visit and every step in order, stopping at the first
// failure. An unmocked request fails the scenario even when the step that
// triggered it passed.
func (x *execution) steps(ctx context.Context) error {
	if start := x.plan.suite.StartPath; start != "" {
		if err := x.step(ctx, -1, &scenario.Step{Visit: start}); err != nil {
			return err
		}
	}
	for i, st := range x.sc.Steps {
		if err := x.step(ctx, i, st); err != nil {
			return err
		}
	}
	return nil
}

func (x *execution) step(ctx context.Context, idx int, st *scenario.Step) error {
	sr := &StepResult{Index: idx, Step: st.String(), Line: st.Line}
	if idx >= 0 {
		x.result.Steps = append(x.result.Steps, sr)
	}

	start := time.Now()
	err := x.exec(ctx, st)
	if unmocked := x.set.Err(); unmocked != nil {
		if err == nil {
			err = unmocked
		} else {
			err = errors.Join(unmocked, err)
		}
	}
	sr.Duration = time.Since(start)

	if err != nil {
		sr.Error = err
		x.logger.Debug("step failed", "step", sr.Step, "line", st.Line, "error", err)
		if idx < 0 {
			return fmt.Errorf("start %s: %w", sr.Step, err)
		}
		return fmt.Errorf("step %d (%s): %w", idx+1, sr.Step, err)
	}
	x.logger.Debug("step passed", "step", sr.Step, "duration", sr.Duration)
	return nil
}

func (x *execution) exec(ctx context.Context, st *scenario.Step) error {
	switch st.Kind() {
	case scenario.KindVisit:
		path, err := x.resolve(st.Visit)
		if err != nil {
			return err
		}
		if err := x.drv.Visit(ctx, path); err != nil {
			return err
		}
		for _, m := range x.modals {
			m.Reset()
		}
		return nil

	case scenario.KindClick:
		target, err := x.resolve(st.Click.Target)
		if err != nil {
			return err
		}
		return x.drv.Interact(ctx, x.plan.suite.Selector(target), driver.Click{
			Force:    st.Click.Force,
			Multiple: st.Click.Multiple,
		})

	case scenario.KindAssert:
		return x.assert(ctx, st.Assert)

	case scenario.KindModal:
		return x.modal(ctx, st.Modal)

	case scenario.KindRequest:
		return x.request(ctx, st.Request)

	default:
		return fmt.Errorf("invalid step: %v", st.Kinds())
	}
}

func (x *execution) assert(ctx context.Context, a *scenario.AssertStep) error {
	resolved := *a
	for _, field := range []*string{&resolved.Target, &resolved.Find, &resolved.Contains, &resolved.Equals, &resolved.Matches} {
		v, err := x.resolve(*field)
		if err != nil {
			return err
		}
		*field = v
	}
	pred, err := resolved.Predicate()
	if err != nil {
		return err
	}
	return x.drv.Assert(ctx, x.plan.suite.AssertSelector(&resolved), pred)
}

func (x *execution) modal(ctx context.Context, ms *scenario.ModalStep) error {
	m, ok := x.modals[ms.Name]
	if !ok {
		def, found := x.plan.suite.Modal(ms.Name)
		if !found {
			return fmt.Errorf("unknown modal %q", ms.Name)
		}
		m = modal.New(x.drv, def)
		x.modals[ms.Name] = m
	}

	expect := make([]string, 0, len(ms.Expect))
	for _, e := range ms.Expect {
		v, err := x.resolve(e)
		if err != nil {
			return err
		}
		expect = append(expect, v)
	}

	switch {
	case ms.Open != "":
		trigger, err := x.resolve(ms.Open)
		if err != nil {
			return err
		}
		return m.OpenWith(ctx, x.plan.suite.Selector(trigger), driver.Click{Force: ms.Force, Multiple: ms.Multiple}, expect...)
	case ms.Close != "":
		via, err := modal.ParseCloseVia(ms.Close)
		if err != nil {
			return err
		}
		return m.Close(ctx, via)
	case ms.Bypass != "":
		path, err := x.resolve(ms.Bypass)
		if err != nil {
			return err
		}
		content := driver.CSS("body")
		if ms.Content != "" {
			content = x.plan.suite.Selector(ms.Content)
		}
		if err := m.Bypass(ctx, path, content, expect...); err != nil {
			return err
		}
		for name, other := range x.modals {
			if name != ms.Name {
				other.Reset()
			}
		}
		return nil
	default:
		return m.AssertClosed(ctx)
	}
}

func (x *execution) request(ctx context.Context, rs *scenario.RequestStep) error {
	path, err := x.resolve(rs.Path)
	if err != nil {
		return err
	}
	want := driver.AtLeastOne
	if rs.Count != nil {
		want = driver.Exactly(*rs.Count)
	}
	return waitForCalls(ctx, x.set, rs.Method, path, want, x.drv.Timeout(), x.plan.latency)
}

func (x *execution) resolve(s string) (string, error) {
	return x.plan.resolver.ResolveStrict(s)
}
