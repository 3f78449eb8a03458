package intercept

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/abdul-hamid-achik/uispec/packages/fixture"
)

// Source produces the response for a matched request.
type Source interface {
	Respond(req *Request) (*fixture.Fixture, error)
}

type staticSource struct {
	fixture *fixture.Fixture
}

func (s staticSource) Respond(*Request) (*fixture.Fixture, error) {
	return s.fixture, nil
}

// Static serves the same fixture for every matching request.
func Static(f *fixture.Fixture) Source {
	return staticSource{fixture: f}
}

type generatedSource struct {
	gen fixture.Generator
}

func (s generatedSource) Respond(*Request) (*fixture.Fixture, error) {
	return s.gen.Generate()
}

// Generated builds a fresh fixture for every matching request.
func Generated(g fixture.Generator) Source {
	return generatedSource{gen: g}
}

// SourceFunc adapts a function to Source.
type SourceFunc func(req *Request) (*fixture.Fixture, error)

func (fn SourceFunc) Respond(req *Request) (*fixture.Fixture, error) {
	return fn(req)
}

// Rule binds a method and path pattern to a response source.
type Rule struct {
	Method  string
	Pattern string
	Source  Source
	regex   *regexp.Regexp
}

// NewRule compiles a rule. Method "*" or "" matches any verb.
//
// Pattern syntax:
//
//	/api/ingredients      exact path
//	/api/orders/*         one path segment
//	/api/**               any remaining path
//	/ingredients/{{id}}   named segment, also written /ingredients/:id
func NewRule(method, pattern string, src Source) (*Rule, error) {
	if src == nil {
		return nil, fmt.Errorf("rule %s %s: missing response source", method, pattern)
	}
	pattern = normalizePath(extractPath(pattern))
	regex, err := compilePattern(pattern)
	if err != nil {
		return nil, fmt.Errorf("rule %s %s: %w", method, pattern, err)
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "*"
	}
	return &Rule{
		Method:  method,
		Pattern: pattern,
		Source:  src,
		regex:   regex,
	}, nil
}

func (r *Rule) String() string {
	return r.Method + " " + r.Pattern
}

// Match reports whether the rule applies and returns named path parameters.
func (r *Rule) Match(method, path string) (map[string]string, bool) {
	if r.Method != "*" && !strings.EqualFold(r.Method, method) {
		return nil, false
	}

	matches := r.regex.FindStringSubmatch(normalizePath(path))
	if matches == nil {
		return nil, false
	}

	params := make(map[string]string)
	for i, name := range r.regex.SubexpNames() {
		if i > 0 && name != "" {
			params[name] = matches[i]
		}
	}
	return params, true
}

var paramPattern = regexp.MustCompile(`^(?:\{\{\s*(\w+)\s*\}\}|:(\w+))$`)

func compilePattern(pattern string) (*regexp.Regexp, error) {
	segments := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	var b strings.Builder
	b.WriteString("^")
	for i, seg := range segments {
		if seg == "**" {
			if i != len(segments)-1 {
				return nil, fmt.Errorf("** must be the last path segment")
			}
			b.WriteString("(?:/.*)?")
			continue
		}
		b.WriteString("/")
		switch {
		case seg == "*":
			b.WriteString("[^/]+")
		case paramPattern.MatchString(seg):
			m := paramPattern.FindStringSubmatch(seg)
			name := m[1]
			if name == "" {
				name = m[2]
			}
			b.WriteString("(?P<" + name + ">[^/]+)")
		default:
			b.WriteString(regexp.QuoteMeta(seg))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// extractPath strips scheme, host and query from a URL-ish pattern.
func extractPath(url string) string {
	if idx := strings.Index(url, "://"); idx != -1 {
		url = url[idx+3:]
		if idx := strings.Index(url, "/"); idx != -1 {
			url = url[idx:]
		} else {
			url = "/"
		}
	}

	if idx := strings.Index(url, "?"); idx != -1 {
		url = url[:idx]
	}

	if !strings.HasPrefix(url, "/") {
		url = "/" + url
	}

	return url
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}
