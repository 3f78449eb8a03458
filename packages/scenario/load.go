package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/driver"
	"github.com/abdul-hamid-achik/uispec/packages/intercept"
	"github.com/abdul-hamid-achik/uispec/packages/modal"
	"gopkg.in/yaml.v3"
)

// Extensions are the file extensions of suite files.
var Extensions = []string{".yaml", ".yml"}

// IsSuiteFile reports whether path has a suite extension.
func IsSuiteFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Load reads and validates a suite file.
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.Path = path
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a suite without validating it. Unknown top-level keys are
// rejected.
func Parse(data []byte) (*Suite, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Suite
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty suite")
		}
		return nil, err
	}
	return &s, nil
}

// Dir is the directory relative paths in the suite resolve against.
func (s *Suite) Dir() string {
	if s.Path == "" {
		return "."
	}
	return filepath.Dir(s.Path)
}

// FixturesDir returns the fixture directory.
func (s *Suite) FixturesDir() string {
	dir := s.Fixtures
	if dir == "" {
		dir = "fixtures"
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(s.Dir(), dir)
}

// UnmockedMode returns the configured mode, or fallback when unset.
func (s *Suite) UnmockedMode(fallback intercept.Mode) (intercept.Mode, error) {
	if s.Unmocked == "" {
		return fallback, nil
	}
	return intercept.ParseMode(s.Unmocked)
}

// ScopePrefix returns the strict-mode scope.
func (s *Suite) ScopePrefix() string {
	if s.Scope == nil {
		return intercept.DefaultScope
	}
	return *s.Scope
}

// WaitTimeout returns the per-wait bound, or fallback when unset.
func (s *Suite) WaitTimeout(fallback time.Duration) (time.Duration, error) {
	if s.Timeout == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
	}
	return d, nil
}

// Selector resolves a target: a selector alias, or raw CSS otherwise.
func (s *Suite) Selector(target string) driver.Selector {
	if target == "" {
		return driver.Selector{}
	}
	if def, ok := s.Selectors[target]; ok {
		return driver.Selector{Name: target, TestID: def.TestID, CSS: def.CSS}
	}
	return driver.CSS(target)
}

// AssertSelector returns the selector an assert step checks.
func (s *Suite) AssertSelector(a *AssertStep) driver.Selector {
	sel := s.Selector(a.Target)
	if a.Find != "" {
		sel = sel.Within(s.Selector(a.Find))
	}
	return sel
}

// Modal returns the definition of a named modal.
func (s *Suite) Modal(name string) (modal.Definition, bool) {
	def, ok := s.Modals[name]
	if !ok {
		return modal.Definition{}, false
	}
	return modal.Definition{
		Name:      name,
		Container: s.Selector(def.Container),
		Close:     s.Selector(def.Close),
		Overlay:   s.Selector(def.Overlay),
	}, true
}

// Predicate builds the driver predicate of an assert step.
func (a *AssertStep) Predicate() (driver.Predicate, error) {
	var preds []driver.Predicate
	if a.Exists != nil {
		if *a.Exists {
			preds = append(preds, driver.Exists())
		} else {
			preds = append(preds, driver.NotExists())
		}
	}
	if a.Count != nil {
		preds = append(preds, driver.Count(*a.Count))
	}
	if a.Contains != "" {
		preds = append(preds, driver.Contains(a.Contains))
	}
	if a.Equals != "" {
		preds = append(preds, driver.TextEquals(a.Equals))
	}
	if a.Matches != "" {
		re, err := regexp.Compile(a.Matches)
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", a.Matches, err)
		}
		preds = append(preds, driver.Matches(re))
	}
	if len(preds) == 0 {
		return driver.Exists(), nil
	}
	return driver.All(preds...), nil
}

// Filter selects scenarios to run.
type Filter struct {
	Name string
	Tags []string
}

// Select returns the scenarios to run in file order. When any scenario is
// marked only, the others are dropped. Skipped scenarios are kept so they
// can be reported.
func (s *Suite) Select(f Filter) []*Scenario {
	hasOnly := false
	for _, sc := range s.Scenarios {
		if sc.Only {
			hasOnly = true
			break
		}
	}

	var out []*Scenario
	for _, sc := range s.Scenarios {
		if hasOnly && !sc.Only {
			continue
		}
		if f.Name != "" && !matchesPattern(sc.Name, f.Name) {
			continue
		}
		if len(f.Tags) > 0 && !hasAnyTag(sc, f.Tags) {
			continue
		}
		out = append(out, sc)
	}
	return out
}

// matchesPattern matches name against a glob with * wildcards, or a
// case-insensitive substring when the pattern has none.
func matchesPattern(name, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return strings.Contains(strings.ToLower(name), strings.ToLower(pattern))
	}
	parts := strings.Split(pattern, "*")
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = regexp.QuoteMeta(p)
	}
	re, err := regexp.Compile("(?i)^" + strings.Join(quoted, ".*") + "$")
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

func hasAnyTag(sc *Scenario, tags []string) bool {
	for _, t := range tags {
		if sc.HasTag(t) {
			return true
		}
	}
	return false
}
