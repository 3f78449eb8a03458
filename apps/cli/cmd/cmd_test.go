package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/uispec/packages/core/config"
	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
	"github.com/abdul-hamid-achik/uispec/packages/intercept"
)

const exampleDir = "../../../examples/burger"

func testCommand() (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	c := &cobra.Command{}
	c.SetOut(&out)
	c.SetErr(&errOut)
	return c, &out, &errOut
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, exitCode(nil))
	assert.Equal(t, ExitUsageError, exitCode(errors.New("unknown flag")))
	assert.Equal(t, ExitBrowserError, exitCode(withExitCode(ExitBrowserError, errors.New("no chrome"))))

	err := withExitCode(ExitTestFailure, nil)
	require.Error(t, err)
	assert.Equal(t, ExitTestFailure, exitCode(err))
	assert.Equal(t, "exit status 1", err.Error())
	assert.Equal(t, ExitParseError, exitCode(withExitCode(ExitParseError, nil)))
}

func TestEnvHelpers(t *testing.T) {
	t.Setenv("UISPEC_TEST_STRING", "junit")
	t.Setenv("UISPEC_TEST_BOOL", "yes")
	t.Setenv("UISPEC_TEST_INT", "7")
	t.Setenv("UISPEC_TEST_BAD_INT", "seven")

	assert.Equal(t, "junit", getEnvString("UISPEC_TEST_STRING", "console"))
	assert.Equal(t, "console", getEnvString("UISPEC_TEST_UNSET", "console"))
	assert.True(t, getEnvBool("UISPEC_TEST_BOOL", false))
	assert.Equal(t, 7, getEnvInt("UISPEC_TEST_INT", 4))
	assert.Equal(t, 4, getEnvInt("UISPEC_TEST_BAD_INT", 4))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"smoke", "modal"}, splitList(" smoke, ,modal "))
	assert.Nil(t, splitList(""))
}

func TestFlagMillis(t *testing.T) {
	ms, ok := flagMillis("1.5s")
	assert.True(t, ok)
	assert.Equal(t, 1500, ms)

	_, ok = flagMillis("")
	assert.False(t, ok)
	_, ok = flagMillis("soon")
	assert.False(t, ok)
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml", "uispec.yml", "notes.txt", "fixtures/data.yaml", ".cache/c.yaml", "nested/d.yaml"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("name: x\n"), 0o644))
	}

	files, err := collectFiles([]string{dir})
	require.NoError(t, err)

	var rel []string
	for _, f := range files {
		r, err := filepath.Rel(dir, f)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	assert.ElementsMatch(t, []string{"a.yaml", "b.yml", "nested/d.yaml"}, rel)

	_, err = collectFiles([]string{filepath.Join(dir, "missing")})
	assert.Error(t, err)
}

func TestValidateCommand(t *testing.T) {
	c, out, _ := testCommand()
	require.NoError(t, validateCommand(c, []string{exampleDir}))
	assert.Contains(t, out.String(), "Valid: ")
	assert.Contains(t, out.String(), "(7 scenarios, 4 intercepts)")
}

func TestValidateCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: bad\nscenarios: []\n"), 0o644))

	c, _, errOut := testCommand()
	err := validateCommand(c, []string{bad})
	require.Error(t, err)
	assert.Equal(t, ExitParseError, exitCode(err))
	assert.Contains(t, errOut.String(), "Error in")

	missing := filepath.Join(dir, "missing.yaml")
	require.NoError(t, os.WriteFile(missing, []byte(`name: missing
baseUrl: http://app.test
intercepts:
  - {method: GET, path: /api/ingredients, fixture: nope.json}
scenarios:
  - name: one
    steps:
      - visit: /
`), 0o644))
	c, _, _ = testCommand()
	err = validateCommand(c, []string{missing})
	require.Error(t, err)
	assert.Equal(t, ExitConfigError, exitCode(err))
}

func TestListCommand(t *testing.T) {
	c, out, _ := testCommand()
	require.NoError(t, listCommand(c, []string{filepath.Join(exampleDir, "burger.yaml")}))
	assert.Contains(t, out.String(), "(burgerConstructor):")
	assert.Contains(t, out.String(), "  - ingredient listing\n    tags: smoke, catalog")
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	forceInit = false

	c, out, _ := testCommand()
	require.NoError(t, initCommand(c, []string{dir}))
	assert.Contains(t, out.String(), "uispec project initialized!")

	cfg, err := config.LoadConfig(filepath.Join(dir, "uispec.yml"))
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", cfg.Environments["local"]["baseUrl"])

	c, _, _ = testCommand()
	require.NoError(t, validateCommand(c, []string{dir}), "the scaffold validates, fixtures included")

	c, _, _ = testCommand()
	err = initCommand(c, []string{dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestMockRuleSet(t *testing.T) {
	files, err := collectFiles([]string{exampleDir})
	require.NoError(t, err)

	set, err := mockRuleSet(files, nil)
	require.NoError(t, err)
	assert.Len(t, set.Rules(), 4)

	out := set.Resolve(&intercept.Request{Method: "POST", Path: "/api/orders"})
	require.True(t, out.Matched())
	assert.Contains(t, string(out.Fixture.Body()), "35927")
}

func TestDryRun(t *testing.T) {
	var out bytes.Buffer
	opts := &runOptions{runner: &runner.Config{TagsFilter: []string{"modal"}}}

	require.NoError(t, dryRun(&out, []string{filepath.Join(exampleDir, "burger.yaml")}, opts))
	assert.Contains(t, out.String(), "Would run: ")
	assert.Contains(t, out.String(), "  - ingredient modal closes via control\n")
	assert.NotContains(t, out.String(), "placing an order")
}

func TestLoadVariables(t *testing.T) {
	t.Setenv("UISPEC_VAR_token", "from-env")
	varFlags = []string{"baseUrl=http://localhost:4000"}
	envFileFlag = ""
	defer func() { varFlags = nil }()

	cfg := &config.Config{
		DefaultEnvironment: "ci",
		Variables:          map[string]any{"baseUrl": "http://config", "lang": "ru"},
		Environments:       map[string]map[string]any{"ci": {"lang": "en"}},
	}
	vars, err := loadVariables(cfg)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:4000", vars["baseUrl"])
	assert.Equal(t, "en", vars["lang"])
	assert.Equal(t, "from-env", vars["token"])

	varFlags = []string{"novalue"}
	_, err = loadVariables(cfg)
	assert.Error(t, err)
}

func TestOpenReporters(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer

	rs, closeAll, err := openReporters([]string{"console", "junit", "json"}, &stdout, reporterOptions{outputDir: dir, noColor: true})
	require.NoError(t, err)
	require.Len(t, rs, 3)

	rs.FormatHeader("test")
	rs.FormatResult(&runner.RunResult{
		Suite: "burger",
		Results: []*runner.ScenarioResult{
			{Name: "lists buns", Status: runner.StatusPassed, Duration: time.Millisecond},
		},
		Passed: 1,
	})
	require.NoError(t, rs.Flush(time.Second))
	closeAll()

	assert.Contains(t, stdout.String(), "lists buns")
	junit, err := os.ReadFile(filepath.Join(dir, "uispec-junit.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(junit), "lists buns")
	_, err = os.Stat(filepath.Join(dir, "uispec.json"))
	assert.NoError(t, err)

	_, _, err = openReporters([]string{"html"}, &stdout, reporterOptions{})
	assert.Error(t, err)
}

func TestWatchedFile(t *testing.T) {
	assert.True(t, watchedFile("e2e/burger.yaml"))
	assert.True(t, watchedFile("e2e/fixtures/order.json"))
	assert.False(t, watchedFile("e2e/README.md"))
}
