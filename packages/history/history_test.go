package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/core/runner"
	"github.com/abdul-hamid-achik/uispec/packages/failure"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return s
}

func result(suite string, outcomes map[string]runner.Status) *runner.RunResult {
	r := &runner.RunResult{Suite: suite, File: suite + ".yaml", BaseURL: "http://localhost:3000", Duration: 2 * time.Second}
	for _, name := range []string{"listing", "modal", "order"} {
		status, ok := outcomes[name]
		if !ok {
			continue
		}
		sr := &runner.ScenarioResult{Name: name, Status: status, Duration: 100 * time.Millisecond}
		if status == runner.StatusFailed {
			sr.Error = errors.New(name + " broke")
			sr.Kind = failure.KindAssertion
			r.Failed++
		} else if status == runner.StatusPassed {
			r.Passed++
		} else {
			r.Skipped++
		}
		r.Results = append(r.Results, sr)
	}
	return r
}

func TestRecordAndLastRun(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	_, err := s.LastRun(ctx, "burger")
	assert.ErrorIs(t, err, ErrNoRuns)

	first, err := s.Record(ctx, result("burger", map[string]runner.Status{"listing": runner.StatusPassed}))
	require.NoError(t, err)
	second, err := s.Record(ctx, result("burger", map[string]runner.Status{
		"listing": runner.StatusPassed,
		"modal":   runner.StatusFailed,
		"order":   runner.StatusSkipped,
	}))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	last, err := s.LastRun(ctx, "burger")
	require.NoError(t, err)
	assert.Equal(t, second.ID, last.ID)
	assert.False(t, last.OK())
	assert.Equal(t, 1, last.Passed)
	assert.Equal(t, 1, last.Failed)
	assert.Equal(t, 1, last.Skipped)
	assert.Equal(t, 2*time.Second, last.Duration)
	assert.Equal(t, "http://localhost:3000", last.BaseURL)

	recs, err := s.Scenarios(ctx, last.ID)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "modal", recs[1].Name)
	assert.Equal(t, runner.StatusFailed, recs[1].Status)
	assert.Equal(t, "assertion", recs[1].Kind)
	assert.Equal(t, "modal broke", recs[1].Error)
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for i := 0; i < 3; i++ {
		_, err := s.Record(ctx, result("burger", map[string]runner.Status{"listing": runner.StatusPassed}))
		require.NoError(t, err)
	}
	_, err := s.Record(ctx, result("profile", map[string]runner.Status{"listing": runner.StatusPassed}))
	require.NoError(t, err)

	runs, err := s.Runs(ctx, "burger", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.True(t, runs[0].StartedAt.After(runs[1].StartedAt))

	all, err := s.Runs(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	assert.Equal(t, "profile", all[0].Suite)
}

func TestFlaky(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	history := []map[string]runner.Status{
		{"listing": runner.StatusPassed, "modal": runner.StatusPassed, "order": runner.StatusFailed},
		{"listing": runner.StatusPassed, "modal": runner.StatusFailed, "order": runner.StatusFailed},
		{"listing": runner.StatusPassed, "modal": runner.StatusPassed, "order": runner.StatusFailed},
		{"listing": runner.StatusSkipped, "modal": runner.StatusFailed, "order": runner.StatusFailed},
	}
	for _, h := range history {
		_, err := s.Record(ctx, result("burger", h))
		require.NoError(t, err)
	}

	flaky, err := s.Flaky(ctx, "burger", 10)
	require.NoError(t, err)
	require.Len(t, flaky, 1, "always-failing and always-passing scenarios are not flaky")
	assert.Equal(t, "modal", flaky[0].Name)
	assert.Equal(t, 4, flaky[0].Runs)
	assert.Equal(t, 2, flaky[0].Failures)
	assert.InDelta(t, 0.5, flaky[0].FailureRate(), 0.001)
	assert.Equal(t, "modal broke", flaky[0].LastError)

	recent, err := s.Flaky(ctx, "burger", 1)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for i := 0; i < 5; i++ {
		_, err := s.Record(ctx, result("burger", map[string]runner.Status{"listing": runner.StatusPassed}))
		require.NoError(t, err)
	}
	_, err := s.Record(ctx, result("profile", map[string]runner.Status{"listing": runner.StatusPassed}))
	require.NoError(t, err)

	n, err := s.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	runs, err := s.Runs(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	var scenarios int
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scenarios`).Scan(&scenarios))
	assert.Equal(t, 3, scenarios, "scenario rows cascade")
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Record(context.Background(), result("burger", map[string]runner.Status{"listing": runner.StatusPassed}))
	assert.NoError(t, err)
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "sqlite://runs/history.db", want: "runs/history.db"},
		{in: "sqlite:./history.db", want: "./history.db"},
		{in: ".uispec/history.db", want: ".uispec/history.db"},
		{in: "postgres://localhost/history", wantErr: true},
		{in: "  ", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseLocation(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}
}
