package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	c := DefaultConfig()
	assert.True(t, c.IsDefault())
	assert.True(t, c.GetHeadless())
	assert.True(t, c.GetNoSandbox())
	assert.False(t, c.GetParallel())
	assert.Equal(t, "fail", c.Unmocked)
	assert.Equal(t, int64(4000), c.TimeoutDuration().Milliseconds())
}

func TestFindAndLoadConfig_NoFile(t *testing.T) {
	c, err := FindAndLoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, c.IsDefault())
}

func TestFindAndLoadConfig_JSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".uispec.config.json"), []byte(`{
		"baseUrl": "http://localhost:4000",
		"timeout": 8000,
		"headless": false,
		"unmocked": "passthrough",
		"environments": {"ci": {"baseUrl": "http://frontend:4000"}}
	}`), 0o644))

	c, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000", c.BaseURL)
	assert.Equal(t, 8000, c.Timeout)
	assert.False(t, c.GetHeadless())
	assert.Equal(t, "passthrough", c.Unmocked)
	assert.Equal(t, "http://frontend:4000", c.Environments["ci"]["baseUrl"])
	assert.Equal(t, 50, c.PollInterval, "defaults survive for unset keys")
}

func TestFindAndLoadConfig_YAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uispec.yaml"), []byte(`
baseUrl: http://localhost:4000
parallel: true
concurrency: 2
scope: /api/v1/
notify:
  on: recovery
  slackWebhook: https://hooks.slack.com/services/x
`), 0o644))

	c, err := FindAndLoadConfig(dir)
	require.NoError(t, err)
	assert.True(t, c.GetParallel())
	assert.Equal(t, 2, c.Concurrency)
	require.NotNil(t, c.Scope)
	assert.Equal(t, "/api/v1/", *c.Scope)
	require.NotNil(t, c.Notify)
	assert.Equal(t, "recovery", c.Notify.On)
}

func TestLoadConfig_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "uispec.config.json")

	require.NoError(t, os.WriteFile(path, []byte(`{"unmocked": "sometimes"}`), 0o644))
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "unmocked must be fail or passthrough")

	require.NoError(t, os.WriteFile(path, []byte(`{`), 0o644))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "parsing")

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	base.Variables = map[string]any{"a": 1, "b": 1}
	base.Headless = BoolPtr(true)

	merged := base.Merge(&Config{
		BaseURL:   "http://localhost:5173",
		Headless:  BoolPtr(false),
		Variables: map[string]any{"b": 2},
		Scope:     StringPtr(""),
	})

	assert.Equal(t, "http://localhost:5173", merged.BaseURL)
	assert.False(t, merged.GetHeadless())
	assert.Equal(t, map[string]any{"a": 1, "b": 2}, merged.Variables)
	assert.Equal(t, 4000, merged.Timeout)
	require.NotNil(t, merged.Scope)
	assert.Empty(t, *merged.Scope)

	assert.Equal(t, map[string]any{"a": 1, "b": 1}, base.Variables, "merge must not mutate the receiver")
	assert.Same(t, base, base.Merge(nil))
}

func TestSaveConfig_RoundTripsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "uispec.yml")
	c := DefaultConfig()
	c.BaseURL = "http://localhost:4000"
	require.NoError(t, c.SaveConfig(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, c.BaseURL, loaded.BaseURL)
	assert.Equal(t, c.Timeout, loaded.Timeout)
}

func TestIsConfigFile(t *testing.T) {
	assert.True(t, IsConfigFile("suites/uispec.yaml"))
	assert.False(t, IsConfigFile("suites/burger.yaml"))
}
