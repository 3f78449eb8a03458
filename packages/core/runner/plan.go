package runner

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/builtin"
	"github.com/abdul-hamid-achik/uispec/packages/core/env"
	"github.com/abdul-hamid-achik/uispec/packages/fixture"
	"github.com/abdul-hamid-achik/uispec/packages/intercept"
	"github.com/abdul-hamid-achik/uispec/packages/scenario"
	"github.com/abdul-hamid-achik/uispec/packages/session"
)

// plan is everything scenarios of one suite share. It is read-only once
// built; per-scenario state lives in execution.
type plan struct {
	suite    *scenario.Suite
	store    *fixture.Store
	resolver *env.Resolver
	rules    []*intercept.Rule
	mode     intercept.Mode
	scope    string
	baseURL  string
	timeout  time.Duration
	creds    *session.Credentials
	binding  session.Binding
	latency  *latencyRecorder
}

func (r *Runner) prepare(suite *scenario.Suite) (*plan, error) {
	p, err := r.compile(suite)
	if err != nil {
		return nil, err
	}

	if p.timeout = r.config.Timeout; p.timeout == 0 {
		if p.timeout, err = suite.WaitTimeout(0); err != nil {
			return nil, err
		}
	}

	p.baseURL = r.config.BaseURL
	if p.baseURL == "" && suite.BaseURL != "" {
		if p.baseURL, err = p.resolver.ResolveStrict(suite.BaseURL); err != nil {
			return nil, fmt.Errorf("base URL: %w", err)
		}
	}
	if p.baseURL == "" {
		return nil, errors.New("no base URL: set baseUrl in the suite or pass one to the runner")
	}

	if s := suite.Session; s != nil {
		f, err := p.store.Load(s.Fixture)
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		creds, err := session.CredentialsFromFixture(f, s.AccessPath, s.RefreshPath)
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		p.creds = &creds
		p.binding = session.DefaultBinding()
		if s.Cookie != "" {
			p.binding.CookieName = s.Cookie
		}
		if s.LocalStorage != "" {
			p.binding.LocalKey = s.LocalStorage
		}
	}

	return p, nil
}

// compile builds the parts of a plan that do not depend on the browser:
// the resolver, the unmocked mode and the intercept rules.
func (r *Runner) compile(suite *scenario.Suite) (*plan, error) {
	p := &plan{
		suite:    suite,
		store:    fixture.NewStore(suite.FixturesDir()),
		resolver: r.newResolver(),
		scope:    suite.ScopePrefix(),
		latency:  newLatencyRecorder(),
	}
	p.resolver.Funcs().Register("fixture", builtin.Fixture(p.store))
	if r.config.Scope != nil {
		p.scope = *r.config.Scope
	}

	fallback := r.config.Unmocked
	if fallback == "" {
		fallback = intercept.ModeFail
	}
	mode, err := suite.UnmockedMode(fallback)
	if err != nil {
		return nil, err
	}
	p.mode = mode

	var errs []error
	for _, ic := range suite.Intercepts {
		rule, err := p.buildRule(ic)
		if err != nil {
			errs = append(errs, fmt.Errorf("line %d: %w", ic.Line, err))
			continue
		}
		p.rules = append(p.rules, rule)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return p, nil
}

// RuleSet compiles the intercepts of suite into a rule set without opening
// a browser. It backs the standalone mock server.
func (r *Runner) RuleSet(suite *scenario.Suite, opts ...intercept.Option) (*intercept.RuleSet, error) {
	p, err := r.compile(suite)
	if err != nil {
		return nil, err
	}
	return p.ruleSet(opts...), nil
}

// buildRule loads the fixture or generator behind an intercept. Fixtures are
// loaded here, once per run, so a missing file fails before any browser work.
func (p *plan) buildRule(ic *scenario.Intercept) (*intercept.Rule, error) {
	path, err := p.resolver.ResolveStrict(ic.Path)
	if err != nil {
		return nil, fmt.Errorf("intercept path: %w", err)
	}

	var src intercept.Source
	switch {
	case ic.Fixture != "":
		f, err := p.store.Load(ic.Fixture)
		if err != nil {
			return nil, err
		}
		if ic.Schema != "" {
			schema := ic.Schema
			if !filepath.IsAbs(schema) {
				schema = filepath.Join(p.suite.Dir(), schema)
			}
			if err := p.store.Validate(ic.Fixture, schema); err != nil {
				return nil, err
			}
		}
		src = intercept.Static(withStatus(f, ic.Status))
	case ic.Generate != "":
		g, ok := fixture.LookupGenerator(ic.Generate)
		if !ok {
			return nil, fmt.Errorf("unknown generator %q (available: %v)", ic.Generate, fixture.GeneratorNames())
		}
		status := ic.Status
		src = intercept.SourceFunc(func(*intercept.Request) (*fixture.Fixture, error) {
			f, err := g.Generate()
			if err != nil {
				return nil, err
			}
			return withStatus(f, status), nil
		})
	default:
		return nil, fmt.Errorf("intercept %s %s has no response source", ic.Method, ic.Path)
	}

	return intercept.NewRule(ic.Method, path, src)
}

// withStatus returns f answered with status instead of its own, or f when
// status is unset.
func withStatus(f *fixture.Fixture, status int) *fixture.Fixture {
	if status == 0 || status == f.Status() {
		return f
	}
	opts := []fixture.Option{
		fixture.WithStatus(status),
		fixture.WithHeader("Content-Type", f.ContentType()),
	}
	for k, v := range f.Headers() {
		opts = append(opts, fixture.WithHeader(k, v))
	}
	return fixture.New(f.Name(), f.Body(), opts...)
}

// ruleSet builds the fresh rule set of one scenario.
func (p *plan) ruleSet(opts ...intercept.Option) *intercept.RuleSet {
	set := intercept.NewRuleSet(p.mode, append([]intercept.Option{intercept.WithScope(p.scope)}, opts...)...)
	for _, rule := range p.rules {
		set.Add(rule)
	}
	return set
}
