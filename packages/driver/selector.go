package driver

import (
	"fmt"
	"strings"
)

// TestIDAttribute is the attribute stable selectors are built on.
const TestIDAttribute = "data-testid"

// Selector addresses one UI element or list of elements.
//
// The test id is tried first, then each structural CSS fallback in order.
// The first candidate that matches anything wins.
type Selector struct {
	Name   string
	TestID string
	CSS    []string
}

// CSS returns a selector made only of structural candidates.
func CSS(css ...string) Selector {
	return Selector{CSS: css}
}

// TestID returns a selector on a stable test id with optional fallbacks.
func TestID(id string, fallback ...string) Selector {
	return Selector{TestID: id, CSS: fallback}
}

// Named returns a copy of s labelled for diagnostics.
func (s Selector) Named(name string) Selector {
	s.Name = name
	return s
}

// IsZero reports whether s has no candidates.
func (s Selector) IsZero() bool {
	return s.TestID == "" && len(s.CSS) == 0
}

// Candidates returns the CSS queries tried in order.
func (s Selector) Candidates() []string {
	var out []string
	if s.TestID != "" {
		out = append(out, fmt.Sprintf("[%s=%q]", TestIDAttribute, s.TestID))
	}
	for _, c := range s.CSS {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// Within scopes child to descendants of s. Every pairing of parent and child
// candidates is kept, parent-major, so the preference order survives.
func (s Selector) Within(child Selector) Selector {
	var css []string
	for _, p := range s.Candidates() {
		for _, c := range child.Candidates() {
			css = append(css, p+" "+c)
		}
	}
	return Selector{Name: s.String() + " " + child.String(), CSS: css}
}

func (s Selector) String() string {
	if s.Name != "" {
		return s.Name
	}
	return strings.Join(s.Candidates(), ", ")
}

// Cardinality is the number of matches a query expects.
type Cardinality struct {
	Min int
	// Max is the upper bound, or -1 for none.
	Max int
}

var (
	// AtLeastOne is satisfied by any non-empty match.
	AtLeastOne = Cardinality{Min: 1, Max: -1}
	// None is satisfied only by an empty match.
	None = Cardinality{Min: 0, Max: 0}
)

// Exactly expects n matches.
func Exactly(n int) Cardinality {
	return Cardinality{Min: n, Max: n}
}

// Satisfied reports whether n matches are acceptable.
func (c Cardinality) Satisfied(n int) bool {
	return n >= c.Min && (c.Max < 0 || n <= c.Max)
}

func (c Cardinality) String() string {
	switch {
	case c.Max < 0:
		return "at least " + elements(c.Min)
	case c.Min == c.Max:
		return elements(c.Min)
	default:
		return fmt.Sprintf("%d to %s", c.Min, elements(c.Max))
	}
}

func elements(n int) string {
	if n == 1 {
		return "1 element"
	}
	return fmt.Sprintf("%d elements", n)
}
