// Package intercept answers an application's outbound HTTP calls from
// fixtures so scenarios never depend on a live backend.
//
// A RuleSet holds the rules of one scenario. Rules are matched newest first,
// so when two rules overlap the one registered last wins. Requests that no
// rule answers are journaled; inside the strict scope they are refused when
// the set runs in ModeFail and forwarded in ModePassthrough.
package intercept

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/failure"
	"github.com/abdul-hamid-achik/uispec/packages/fixture"
)

// Mode decides what happens to requests no rule matches.
type Mode string

const (
	// ModeFail refuses unmatched in-scope requests and fails the scenario.
	ModeFail Mode = "fail"
	// ModePassthrough lets unmatched requests reach the network.
	ModePassthrough Mode = "passthrough"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeFail, "strict":
		return ModeFail, nil
	case ModePassthrough, "pass":
		return ModePassthrough, nil
	default:
		return "", fmt.Errorf("unknown unmocked mode %q (use fail or passthrough)", s)
	}
}

// DefaultScope is the path prefix that strict mode guards.
const DefaultScope = "/api/"

const maxRequestBody = 1 << 20

// Request is the part of an outbound request the rules look at.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Params map[string]string
}

// Call is a journal entry for one intercepted request.
type Call struct {
	Time   time.Time `json:"time"`
	Method string    `json:"method"`
	Path   string    `json:"path"`
	Rule   string    `json:"rule,omitempty"`
	Status int       `json:"status,omitempty"`
	Mocked bool      `json:"mocked"`
	Scoped bool      `json:"scoped"`
}

// Outcome tells the transport what to do with a request.
type Outcome struct {
	Rule    *Rule
	Fixture *fixture.Fixture
	// Blocked is set for unmatched in-scope requests in ModeFail.
	Blocked bool
	// Preflight is set for a CORS preflight to a path some rule serves.
	Preflight bool
	Err       error
}

// Matched reports whether a rule produced a response.
func (o Outcome) Matched() bool {
	return o.Fixture != nil
}

// RuleSet is the per-scenario collection of intercept rules.
type RuleSet struct {
	mu      sync.RWMutex
	rules   []*Rule
	calls   []Call
	mode    Mode
	scope   string
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Option configures a RuleSet.
type Option func(*RuleSet)

// WithMode sets the unmatched-request mode.
func WithMode(m Mode) Option {
	return func(s *RuleSet) {
		s.mode = m
	}
}

// WithScope sets the path prefix guarded by ModeFail. An empty scope guards
// every path.
func WithScope(prefix string) Option {
	return func(s *RuleSet) {
		s.scope = prefix
	}
}

// WithLogger sets the logger used for match decisions.
func WithLogger(l *slog.Logger) Option {
	return func(s *RuleSet) {
		s.logger = l
	}
}

// NewRuleSet creates an empty rule set. The mode must be chosen explicitly.
func NewRuleSet(mode Mode, opts ...Option) *RuleSet {
	s := &RuleSet{
		mode:    mode,
		scope:   DefaultScope,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode returns the unmatched-request mode.
func (s *RuleSet) Mode() Mode {
	return s.mode
}

// Register adds a rule.
func (s *RuleSet) Register(method, pattern string, src Source) error {
	rule, err := NewRule(method, pattern, src)
	if err != nil {
		return err
	}
	s.Add(rule)
	return nil
}

// RegisterFixture adds a rule serving a static fixture.
func (s *RuleSet) RegisterFixture(method, pattern string, f *fixture.Fixture) error {
	return s.Register(method, pattern, Static(f))
}

// Add appends a compiled rule.
func (s *RuleSet) Add(rule *Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule)
}

// Rules returns the registered rules in registration order.
func (s *RuleSet) Rules() []*Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Rule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Reset removes every rule and clears the journal.
func (s *RuleSet) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = nil
	s.calls = nil
}

// ClearCalls empties the journal and keeps the rules.
func (s *RuleSet) ClearCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// Match finds the newest rule matching method and path.
func (s *RuleSet) Match(method, path string) (*Rule, map[string]string) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.rules) - 1; i >= 0; i-- {
		if params, ok := s.rules[i].Match(method, path); ok {
			return s.rules[i], params
		}
	}
	return nil, nil
}

// servesPath reports whether any rule matches path regardless of method.
func (s *RuleSet) servesPath(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rules {
		if r.regex.MatchString(normalizePath(path)) {
			return true
		}
	}
	return false
}

// InScope reports whether strict mode guards path.
func (s *RuleSet) InScope(path string) bool {
	return s.scope == "" || strings.HasPrefix(normalizePath(path)+"/", normalizePath(s.scope)+"/")
}

// Resolve decides the response for req and journals the call.
func (s *RuleSet) Resolve(req *Request) Outcome {
	path := normalizePath(extractPath(req.Path))
	call := Call{
		Time:   s.nowFunc(),
		Method: strings.ToUpper(req.Method),
		Path:   path,
		Scoped: s.InScope(path),
	}

	rule, params := s.Match(req.Method, path)
	if rule == nil && call.Method == http.MethodOptions && s.servesPath(path) {
		call.Mocked = true
		call.Rule = "preflight"
		call.Status = http.StatusNoContent
		s.record(call)
		return Outcome{Preflight: true}
	}
	if rule == nil {
		out := Outcome{Blocked: s.mode == ModeFail && call.Scoped}
		s.record(call)
		if call.Scoped {
			s.logger.Warn("unmocked request", "method", call.Method, "path", path, "mode", string(s.mode))
		}
		return out
	}

	req.Params = params
	f, err := rule.Source.Respond(req)
	call.Rule = rule.String()
	if err != nil {
		s.record(call)
		return Outcome{Rule: rule, Err: fmt.Errorf("rule %s: %w", rule, err)}
	}

	call.Mocked = true
	call.Status = f.Status()
	s.record(call)
	s.logger.Debug("intercepted", "method", call.Method, "path", path, "rule", call.Rule, "status", call.Status)
	return Outcome{Rule: rule, Fixture: f}
}

func (s *RuleSet) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

// Calls returns the journal in arrival order.
func (s *RuleSet) Calls() []Call {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Count returns how many journaled calls match method and pattern.
func (s *RuleSet) Count(method, pattern string) (int, error) {
	probe, err := NewRule(method, pattern, Static(fixture.New("probe", nil)))
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range s.Calls() {
		if _, ok := probe.Match(c.Method, c.Path); ok {
			n++
		}
	}
	return n, nil
}

// Unmocked returns in-scope calls no rule answered.
func (s *RuleSet) Unmocked() []Call {
	var out []Call
	for _, c := range s.Calls() {
		if !c.Mocked && c.Rule == "" && c.Scoped {
			out = append(out, c)
		}
	}
	return out
}

// Err returns an UnmockedRequestFailure for every unanswered in-scope call
// when the set runs in ModeFail, or nil.
func (s *RuleSet) Err() error {
	if s.mode != ModeFail {
		return nil
	}
	var errs []error
	for _, c := range s.Unmocked() {
		errs = append(errs, &failure.UnmockedRequestFailure{Method: c.Method, Path: c.Path})
	}
	return errors.Join(errs...)
}

// ServeHTTP answers requests from the rule set, so a RuleSet can back a
// standalone mock server or an httptest.Server.
func (s *RuleSet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	}

	out := s.Resolve(&Request{Method: r.Method, Path: r.URL.Path, Body: body})
	switch {
	case out.Err != nil:
		http.Error(w, out.Err.Error(), http.StatusInternalServerError)
	case out.Matched():
		WriteFixture(w, out.Fixture)
	case out.Preflight:
		writePreflight(w)
	default:
		http.Error(w, (&failure.UnmockedRequestFailure{Method: r.Method, Path: r.URL.Path}).Error(), http.StatusNotImplemented)
	}
}

// WriteFixture writes a fixture as an HTTP response.
func WriteFixture(w http.ResponseWriter, f *fixture.Fixture) {
	for k, v := range f.Headers() {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.WriteHeader(f.Status())
	_, _ = w.Write(f.Body())
}

func writePreflight(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")
	w.WriteHeader(http.StatusNoContent)
}
