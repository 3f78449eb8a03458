package env

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/abdul-hamid-achik/uispec/packages/builtin"
	"github.com/abdul-hamid-achik/uispec/packages/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver_Resolve(t *testing.T) {
	t.Setenv("UISPEC_TEST_HOST", "localhost:4000")

	tests := []struct {
		name      string
		input     string
		variables map[string]any
		expected  string
	}{
		{"no expressions", "Соберите бургер", nil, "Соберите бургер"},
		{"variable", "{{baseUrl}}/", map[string]any{"baseUrl": "http://localhost:4000"}, "http://localhost:4000/"},
		{"spaces inside braces", "{{ id }}", map[string]any{"id": 42}, "42"},
		{"env var", "http://{{$UISPEC_TEST_HOST}}", nil, "http://localhost:4000"},
		{"function", "{{base64(a)}}", nil, "YQ=="},
		{"unresolved stays", "{{missing}}", nil, "{{missing}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver()
			r.SetVariables(tt.variables)
			assert.Equal(t, tt.expected, r.Resolve(tt.input))
		})
	}
}

func TestResolver_WarnsOnUnresolved(t *testing.T) {
	r := NewResolver()
	var mu sync.Mutex
	var warnings []string
	r.SetWarnFunc(func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		warnings = append(warnings, fmt.Sprintf(format, args...))
	})

	r.Resolve("{{nope}} {{$UISPEC_TEST_SURELY_UNSET}}")

	assert.Equal(t, []string{
		"unresolved expression: nope",
		"unresolved expression: $UISPEC_TEST_SURELY_UNSET",
	}, warnings)
}

func TestResolver_ResolveStrict(t *testing.T) {
	r := NewResolver()
	r.SetVariable("orderNumber", 35927)

	got, err := r.ResolveStrict("№ {{orderNumber}}")
	require.NoError(t, err)
	assert.Equal(t, "№ 35927", got)

	_, err = r.ResolveStrict("{{a}} {{b}}")
	assert.ErrorContains(t, err, "unresolved expression {{a}}")
	assert.ErrorContains(t, err, "unresolved expression {{b}}")

	_, err = r.ResolveStrict("{{random(x, 1)}}")
	assert.ErrorContains(t, err, "random()")
}

func TestResolver_FixtureFunction(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "order.json"), []byte(`{"order":{"number":35927}}`), 0o644))

	r := NewResolver()
	r.Funcs().Register("fixture", builtin.Fixture(fixture.NewStore(dir)))

	got, err := r.ResolveStrict("{{fixture(order.json, order.number)}}")
	require.NoError(t, err)
	assert.Equal(t, "35927", got)
}

func TestResolver_Unresolved(t *testing.T) {
	r := NewResolver()
	r.SetVariable("bar", "middle")

	assert.Nil(t, r.Unresolved("plain"))
	assert.Equal(t, []string{"foo", "baz"}, r.Unresolved("{{foo}} {{bar}} {{baz}}"))
	assert.True(t, r.HasUnresolved("{{foo}}"))
	assert.False(t, r.HasUnresolved("{{bar}}"))
}

func TestResolver_CloneIsIndependent(t *testing.T) {
	r := NewResolver()
	r.SetVariable("a", "1")

	c := r.Clone()
	c.SetVariable("a", "2")
	c.SetVariable("b", "3")

	assert.Equal(t, "1", r.Resolve("{{a}}"))
	assert.Equal(t, "{{b}}", r.Resolve("{{b}}"))
	assert.Equal(t, "2 3", c.Resolve("{{a}} {{b}}"))
}

func TestLoadSystemEnv(t *testing.T) {
	t.Setenv(Prefix+"baseUrl", "http://localhost:4000")

	vars := LoadSystemEnv(Prefix)
	assert.Equal(t, "http://localhost:4000", vars["baseUrl"])
}

func TestMergeVariables(t *testing.T) {
	got := MergeVariables(
		map[string]any{"a": 1, "b": 1},
		StringVariables(map[string]string{"b": "2"}),
		Select(map[string]map[string]any{"ci": {"c": 3}}, "ci"),
	)
	assert.Equal(t, map[string]any{"a": 1, "b": "2", "c": 3}, got)
}
