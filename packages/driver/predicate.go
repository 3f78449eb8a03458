package driver

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Predicate is a condition over the elements a selector matched.
type Predicate interface {
	// Check evaluates the predicate and describes what was observed.
	Check(ctx context.Context, nodes []Node) (ok bool, actual string, err error)
	// String describes the expected state.
	String() string
}

type countPredicate struct {
	want Cardinality
}

func (p countPredicate) Check(_ context.Context, nodes []Node) (bool, string, error) {
	return p.want.Satisfied(len(nodes)), elements(len(nodes)), nil
}

func (p countPredicate) String() string {
	return p.want.String()
}

// Exists holds when at least one element matches.
func Exists() Predicate {
	return countPredicate{want: AtLeastOne}
}

// NotExists holds when nothing matches. Unmounted markup satisfies it; hidden
// markup does not.
func NotExists() Predicate {
	return countPredicate{want: None}
}

// Count holds when exactly n elements match.
func Count(n int) Predicate {
	return countPredicate{want: Exactly(n)}
}

// Matching holds when the number of matches satisfies c.
func Matching(c Cardinality) Predicate {
	return countPredicate{want: c}
}

type textPredicate struct {
	desc  string
	match func(text string) bool
}

func (p textPredicate) Check(ctx context.Context, nodes []Node) (bool, string, error) {
	if len(nodes) == 0 {
		return false, "no elements", nil
	}
	var seen []string
	for _, n := range nodes {
		text, err := n.Text(ctx)
		if err != nil {
			return false, "", err
		}
		if p.match(text) {
			return true, quote(text), nil
		}
		seen = append(seen, quote(text))
	}
	return false, strings.Join(seen, ", "), nil
}

func (p textPredicate) String() string {
	return p.desc
}

// Contains holds when any matched element's text contains s.
func Contains(s string) Predicate {
	return textPredicate{
		desc:  fmt.Sprintf("text containing %q", s),
		match: func(text string) bool { return strings.Contains(text, s) },
	}
}

// TextEquals holds when any matched element's trimmed text equals s.
func TextEquals(s string) Predicate {
	want := strings.TrimSpace(s)
	return textPredicate{
		desc:  fmt.Sprintf("text %q", want),
		match: func(text string) bool { return strings.TrimSpace(text) == want },
	}
}

// Matches holds when any matched element's text matches re.
func Matches(re *regexp.Regexp) Predicate {
	return textPredicate{
		desc:  fmt.Sprintf("text matching /%s/", re),
		match: re.MatchString,
	}
}

type allPredicate []Predicate

func (ps allPredicate) Check(ctx context.Context, nodes []Node) (bool, string, error) {
	for _, p := range ps {
		ok, actual, err := p.Check(ctx, nodes)
		if err != nil || !ok {
			return ok, actual, err
		}
	}
	return true, elements(len(nodes)), nil
}

func (ps allPredicate) String() string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = p.String()
	}
	return strings.Join(parts, " and ")
}

// All holds when every predicate holds.
func All(ps ...Predicate) Predicate {
	if len(ps) == 1 {
		return ps[0]
	}
	return allPredicate(ps)
}

const maxQuoted = 80

func quote(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > maxQuoted {
		s = string(r[:maxQuoted]) + "..."
	}
	return fmt.Sprintf("%q", s)
}
