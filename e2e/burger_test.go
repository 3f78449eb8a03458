//go:build e2e

package e2e

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
	"github.com/abdul-hamid-achik/uispec/packages/failure"
	"github.com/abdul-hamid-achik/uispec/packages/intercept"
)

// TestBurgerSuite runs every example scenario. Each one pins down one
// behaviour of the constructor: the closed modal after load, fixture to
// render count fidelity, order-independent addition, the modal round trip
// through both close paths, the deep link bypass and the order flow.
func TestBurgerSuite(t *testing.T) {
	baseURL := os.Getenv("UISPEC_E2E_BASE_URL")
	if baseURL == "" {
		baseURL = newBurgerApp(t).URL
	}
	b := launchBrowser(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	r := runner.NewRunner(pages(b, baseURL), &runner.Config{BaseURL: baseURL})
	result, err := r.RunSuite(ctx, loadSuite(t))
	require.NoError(t, err)

	for _, sr := range result.Results {
		t.Run(sr.Name, func(t *testing.T) {
			assert.Equal(t, runner.StatusPassed, sr.Status, "%v", sr.Error)
			assert.NotEmpty(t, sr.SessionID)
		})
	}
	assert.Equal(t, 7, result.Passed)
	assert.True(t, result.OK())

	for _, sr := range result.Results {
		if sr.Name != "placing an order" {
			continue
		}
		var orders int
		for _, c := range sr.Calls {
			if c.Method == "POST" && c.Path == "/api/orders" {
				orders++
				assert.True(t, c.Mocked)
			}
		}
		assert.Equal(t, 1, orders)
	}
}

func TestScenariosInParallel(t *testing.T) {
	app := newBurgerApp(t)
	b := launchBrowser(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	r := runner.NewRunner(pages(b, app.URL), &runner.Config{
		BaseURL:     app.URL,
		Parallel:    true,
		Concurrency: 3,
		TagsFilter:  []string{"constructor", "modal"},
	})
	result, err := r.RunSuite(ctx, loadSuite(t))
	require.NoError(t, err)

	assert.Equal(t, 5, result.Passed)
	assert.Equal(t, 2, result.Skipped)
	assert.Zero(t, result.Failed)
}

func TestUnmockedRequestFailsScenario(t *testing.T) {
	app := newBurgerApp(t)
	b := launchBrowser(t)

	suite := loadSuite(t)
	only(t, suite, "ingredient listing")
	withoutIntercept(suite, "GET", "/api/ingredients")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	r := runner.NewRunner(pages(b, app.URL), &runner.Config{BaseURL: app.URL, Timeout: 2 * time.Second})
	result, err := r.RunSuite(ctx, suite)
	require.NoError(t, err)
	require.Len(t, result.Results, 1)

	sr := result.Results[0]
	assert.Equal(t, runner.StatusFailed, sr.Status)
	assert.Equal(t, failure.KindUnmocked, sr.Kind)
	assert.ErrorContains(t, sr.Error, "unmocked request: GET /api/ingredients")
	assert.Zero(t, app.apiHits.Load(), "a blocked request must not reach the backend")
}

func TestPassthroughReachesBackend(t *testing.T) {
	app := newBurgerApp(t)
	b := launchBrowser(t)

	suite := loadSuite(t)
	only(t, suite, "ingredient listing")
	withoutIntercept(suite, "GET", "/api/ingredients")
	suite.Unmocked = string(intercept.ModePassthrough)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	r := runner.NewRunner(pages(b, app.URL), &runner.Config{BaseURL: app.URL})
	result, err := r.RunSuite(ctx, suite)
	require.NoError(t, err)
	require.Len(t, result.Results, 1)

	sr := result.Results[0]
	assert.Equal(t, runner.StatusPassed, sr.Status, "%v", sr.Error)
	assert.Positive(t, app.apiHits.Load())
}

func TestCardinalityMismatchFailsClearly(t *testing.T) {
	app := newBurgerApp(t)
	b := launchBrowser(t)

	suite := loadSuite(t)
	only(t, suite, "ingredient listing")
	three := 3
	for _, st := range suite.Scenarios[0].Steps {
		if st.Assert != nil && st.Assert.Target == "buns" {
			st.Assert.Count = &three
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	r := runner.NewRunner(pages(b, app.URL), &runner.Config{BaseURL: app.URL, Timeout: time.Second})
	result, err := r.RunSuite(ctx, suite)
	require.NoError(t, err)
	require.Len(t, result.Results, 1)

	sr := result.Results[0]
	assert.Equal(t, runner.StatusFailed, sr.Status)
	assert.Equal(t, failure.KindAssertion, sr.Kind)
	assert.ErrorContains(t, sr.Error, "expected 3 elements")
	require.NotNil(t, sr.FailedStep())
	assert.Equal(t, 3, sr.FailedStep().Index)
}
