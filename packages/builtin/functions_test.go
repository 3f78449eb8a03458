package builtin

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/fixture"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Call(t *testing.T) {
	r := NewRegistry()
	r.now = func() time.Time { return time.Date(2024, 3, 11, 13, 56, 43, 0, time.UTC) }

	tests := []struct {
		expr string
		want any
	}{
		{"now()", "2024-03-11T13:56:43Z"},
		{"timestamp()", int64(1710165403)},
		{"date()", "2024-03-11"},
		{"date('02.01.2006')", "11.03.2024"},
		{"base64(burger)", "YnVyZ2Vy"},
		{`urlEncode("a b")`, "a+b"},
		{"env(UISPEC_TEST_UNSET_VAR, fallback)", "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, ok, err := r.Call(tt.expr)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_UUID(t *testing.T) {
	got, ok, err := NewRegistry().Call("uuid()")
	require.NoError(t, err)
	require.True(t, ok)
	_, err = uuid.Parse(got.(string))
	assert.NoError(t, err)
}

func TestRegistry_Random(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < 20; i++ {
		got, _, err := r.Call("random(3, 5)")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, got.(int), 3)
		assert.LessOrEqual(t, got.(int), 5)
	}

	_, ok, err := r.Call("random(a, 5)")
	assert.True(t, ok)
	assert.Error(t, err)

	s, _, err := r.Call("randomString(12)")
	require.NoError(t, err)
	assert.Len(t, s, 12)
}

func TestRegistry_Unknown(t *testing.T) {
	r := NewRegistry()
	_, ok, err := r.Call("nope()")
	assert.False(t, ok)
	assert.NoError(t, err)

	_, ok, _ = r.Call("not a call")
	assert.False(t, ok)
}

func TestRegistry_EnvMissing(t *testing.T) {
	_, ok, err := NewRegistry().Call("env(UISPEC_TEST_UNSET_VAR)")
	assert.True(t, ok)
	assert.ErrorContains(t, err, "env(): UISPEC_TEST_UNSET_VAR is not set")
}

func TestFixture(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ingredients.json"),
		[]byte(`{"data":[{"_id":"643d69a5c3f7b9001cfa093c","name":"Краторная булка N-200i"}]}`), 0o644))

	r := NewRegistry()
	r.Register("fixture", Fixture(fixture.NewStore(dir)))

	got, ok, err := r.Call("fixture(ingredients.json, data.0.name)")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Краторная булка N-200i", got)

	_, _, err = r.Call("fixture(ingredients.json, data.9.name)")
	assert.Error(t, err)

	_, _, err = r.Call("fixture(ingredients.json)")
	assert.ErrorContains(t, err, "want 2 arguments")
}

func TestParseArgs(t *testing.T) {
	assert.Equal(t, []string{"a", "b, c", "d"}, parseArgs(`a, "b, c", 'd'`))
	assert.Nil(t, parseArgs(""))
}
