package scenario

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Suite struct {
	Name       string                 `yaml:"name"`
	BaseURL    string                 `yaml:"baseUrl,omitempty"`
	StartPath  string                 `yaml:"startPath,omitempty"`
	Fixtures   string                 `yaml:"fixtures,omitempty"`
	Unmocked   string                 `yaml:"unmocked,omitempty"`
	Scope      *string                `yaml:"scope,omitempty"`
	Timeout    string                 `yaml:"timeout,omitempty"`
	Intercepts []*Intercept           `yaml:"intercepts,omitempty"`
	Session    *Session               `yaml:"session,omitempty"`
	Selectors  map[string]SelectorDef `yaml:"selectors,omitempty"`
	Modals     map[string]ModalDef    `yaml:"modals,omitempty"`
	Scenarios  []*Scenario            `yaml:"scenarios"`

	// Path is the file the suite was loaded from.
	Path string `yaml:"-"`
}

// Intercept binds a request pattern to a fixture file or a generator.
type Intercept struct {
	Method   string `yaml:"method"`
	Path     string `yaml:"path"`
	Fixture  string `yaml:"fixture,omitempty"`
	Generate string `yaml:"generate,omitempty"`
	Status   int    `yaml:"status,omitempty"`
	// Schema is a JSON schema the fixture must satisfy.
	Schema string `yaml:"schema,omitempty"`
	Line   int    `yaml:"-"`
}

func (i *Intercept) UnmarshalYAML(value *yaml.Node) error {
	type plain Intercept
	if err := value.Decode((*plain)(i)); err != nil {
		return err
	}
	i.Line = value.Line
	return nil
}

// Session seeds credentials from a token fixture.
type Session struct {
	Fixture      string `yaml:"fixture"`
	Cookie       string `yaml:"cookie,omitempty"`
	LocalStorage string `yaml:"localStorage,omitempty"`
	AccessPath   string `yaml:"accessPath,omitempty"`
	RefreshPath  string `yaml:"refreshPath,omitempty"`
}

// SelectorDef is a selector alias. In YAML it is either a CSS string or a
// mapping with a test id and CSS fallbacks.
type SelectorDef struct {
	TestID string   `yaml:"testid,omitempty"`
	CSS    []string `yaml:"css,omitempty"`
}

func (d *SelectorDef) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		d.CSS = []string{value.Value}
		return nil
	}
	type plain SelectorDef
	return value.Decode((*plain)(d))
}

// ModalDef locates a modal. Each field is a target.
type ModalDef struct {
	Container string `yaml:"container"`
	Close     string `yaml:"close"`
	Overlay   string `yaml:"overlay,omitempty"`
}

type Scenario struct {
	Name  string   `yaml:"name"`
	Tags  []string `yaml:"tags,omitempty"`
	Skip  string   `yaml:"skip,omitempty"`
	Only  bool     `yaml:"only,omitempty"`
	Steps []*Step  `yaml:"steps"`
	Line  int      `yaml:"-"`
}

func (s *Scenario) UnmarshalYAML(value *yaml.Node) error {
	type plain Scenario
	if err := value.Decode((*plain)(s)); err != nil {
		return err
	}
	s.Line = value.Line
	return nil
}

// HasTag reports whether the scenario carries tag.
func (s *Scenario) HasTag(tag string) bool {
	for _, t := range s.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Step is one interaction or assertion. Exactly one field is set.
type Step struct {
	Visit   string       `yaml:"visit,omitempty"`
	Click   *ClickStep   `yaml:"click,omitempty"`
	Assert  *AssertStep  `yaml:"assert,omitempty"`
	Modal   *ModalStep   `yaml:"modal,omitempty"`
	Request *RequestStep `yaml:"request,omitempty"`
	Line    int          `yaml:"-"`
}

func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	type plain Step
	if err := value.Decode((*plain)(s)); err != nil {
		return err
	}
	s.Line = value.Line
	return nil
}

const (
	KindVisit   = "visit"
	KindClick   = "click"
	KindAssert  = "assert"
	KindModal   = "modal"
	KindRequest = "request"
)

// Kinds returns the kinds set on the step.
func (s *Step) Kinds() []string {
	var kinds []string
	if s.Visit != "" {
		kinds = append(kinds, KindVisit)
	}
	if s.Click != nil {
		kinds = append(kinds, KindClick)
	}
	if s.Assert != nil {
		kinds = append(kinds, KindAssert)
	}
	if s.Modal != nil {
		kinds = append(kinds, KindModal)
	}
	if s.Request != nil {
		kinds = append(kinds, KindRequest)
	}
	return kinds
}

// Kind returns the step kind, or "" unless exactly one is set.
func (s *Step) Kind() string {
	if k := s.Kinds(); len(k) == 1 {
		return k[0]
	}
	return ""
}

func (s *Step) String() string {
	switch s.Kind() {
	case KindVisit:
		return "visit " + s.Visit
	case KindClick:
		return "click " + s.Click.Target
	case KindAssert:
		return "assert " + s.Assert.String()
	case KindModal:
		return "modal " + s.Modal.String()
	case KindRequest:
		return fmt.Sprintf("request %s %s", s.Request.Method, s.Request.Path)
	default:
		return "invalid step"
	}
}

// ClickStep clicks a target. "click: target" is shorthand for a plain click.
type ClickStep struct {
	Target   string `yaml:"target"`
	Force    bool   `yaml:"force,omitempty"`
	Multiple bool   `yaml:"multiple,omitempty"`
}

func (c *ClickStep) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		c.Target = value.Value
		return nil
	}
	type plain ClickStep
	return value.Decode((*plain)(c))
}

// AssertStep waits for a predicate on a target, or on Find descendants of
// the target. Without a predicate it asserts the target exists.
type AssertStep struct {
	Target   string `yaml:"target"`
	Find     string `yaml:"find,omitempty"`
	Count    *int   `yaml:"count,omitempty"`
	Exists   *bool  `yaml:"exists,omitempty"`
	Contains string `yaml:"contains,omitempty"`
	Equals   string `yaml:"equals,omitempty"`
	Matches  string `yaml:"matches,omitempty"`
}

func (a *AssertStep) String() string {
	target := a.Target
	if a.Find != "" {
		target += " " + a.Find
	}
	switch {
	case a.Count != nil:
		return fmt.Sprintf("%s count %d", target, *a.Count)
	case a.Exists != nil && !*a.Exists:
		return target + " absent"
	case a.Contains != "":
		return fmt.Sprintf("%s contains %q", target, a.Contains)
	case a.Equals != "":
		return fmt.Sprintf("%s equals %q", target, a.Equals)
	case a.Matches != "":
		return fmt.Sprintf("%s matches /%s/", target, a.Matches)
	default:
		return target + " exists"
	}
}

// ModalStep drives a named modal. Exactly one of Open, Close, Bypass or
// Closed is set.
type ModalStep struct {
	Name string `yaml:"name"`
	// Open is the trigger target.
	Open        string   `yaml:"open,omitempty"`
	Force       bool     `yaml:"force,omitempty"`
	Multiple    bool     `yaml:"multiple,omitempty"`
	Expect      []string `yaml:"expect,omitempty"`
	Close       string   `yaml:"close,omitempty"`
	Bypass      string   `yaml:"bypass,omitempty"`
	Content     string   `yaml:"content,omitempty"`
	Closed      bool     `yaml:"closed,omitempty"`
}

func (m *ModalStep) actions() int {
	n := 0
	for _, set := range []bool{m.Open != "", m.Close != "", m.Bypass != "", m.Closed} {
		if set {
			n++
		}
	}
	return n
}

func (m *ModalStep) String() string {
	switch {
	case m.Open != "":
		return fmt.Sprintf("%s open via %s", m.Name, m.Open)
	case m.Close != "":
		return fmt.Sprintf("%s close via %s", m.Name, m.Close)
	case m.Bypass != "":
		return fmt.Sprintf("%s bypass %s", m.Name, m.Bypass)
	default:
		return m.Name + " closed"
	}
}

// RequestStep checks how many journaled calls match an endpoint. Without a
// count it requires at least one.
type RequestStep struct {
	Method string `yaml:"method"`
	Path   string `yaml:"path"`
	Count  *int   `yaml:"count,omitempty"`
}
