package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/failure"
	"github.com/abdul-hamid-achik/uispec/packages/fixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu        sync.Mutex
	cookies   map[string]string
	local     map[string]string
	failSet   error
	failClear error
	ctxErrs   []error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{cookies: map[string]string{}, local: map[string]string{}}
}

func (m *memoryStore) SetCookie(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cookies[name] = value
	return nil
}

func (m *memoryStore) DeleteCookie(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	if m.failClear != nil {
		return m.failClear
	}
	delete(m.cookies, name)
	return nil
}

func (m *memoryStore) SetLocalValue(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.local[key] = value
	return nil
}

func (m *memoryStore) RemoveLocalValue(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ctxErrs = append(m.ctxErrs, ctx.Err())
	delete(m.local, key)
	return nil
}

func (m *memoryStore) empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cookies) == 0 && len(m.local) == 0
}

var creds = Credentials{AccessToken: "Bearer abc", RefreshToken: "r-123"}

func TestCredentialsFromFixture(t *testing.T) {
	f, err := fixture.Parse("token", []byte(`{"success":true,"accessToken":"Bearer abc","refreshToken":"r-123"}`))
	require.NoError(t, err)

	got, err := CredentialsFromFixture(f, "", "")
	require.NoError(t, err)
	assert.Equal(t, creds, got)

	_, err = CredentialsFromFixture(f, "data.token", "")
	assert.Error(t, err)
}

func TestWith_SeedsAndReleases(t *testing.T) {
	store := newMemoryStore()

	err := With(context.Background(), store, DefaultBinding(), creds, func(_ context.Context, s *Session) error {
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, "Bearer abc", store.cookies["accessToken"])
		assert.Equal(t, "r-123", store.local["refreshToken"])
		return nil
	})

	require.NoError(t, err)
	assert.True(t, store.empty())
}

func TestWith_ReleasesOnFailure(t *testing.T) {
	store := newMemoryStore()
	af := &failure.AssertionFailure{Selector: "#modals > div", Expected: "0 elements", Actual: "1 element"}

	err := With(context.Background(), store, DefaultBinding(), creds, func(context.Context, *Session) error {
		return af
	})

	assert.ErrorIs(t, err, af)
	assert.True(t, store.empty())
}

func TestWith_ReleasesOnTimeout(t *testing.T) {
	store := newMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	err := With(ctx, store, DefaultBinding(), creds, func(ctx context.Context, _ *Session) error {
		cancel()
		return &failure.TimeoutFailure{Condition: "page load", Cause: ctx.Err()}
	})

	assert.Equal(t, failure.KindTimeout, failure.Classify(err))
	assert.True(t, store.empty())
	for _, e := range store.ctxErrs {
		assert.NoError(t, e, "release must not see the cancelled context")
	}
}

func TestWith_ReleasesOnPanic(t *testing.T) {
	store := newMemoryStore()

	assert.PanicsWithValue(t, "boom", func() {
		_ = With(context.Background(), store, DefaultBinding(), creds, func(context.Context, *Session) error {
			panic("boom")
		})
	})
	assert.True(t, store.empty())
}

func TestWith_JoinsReleaseError(t *testing.T) {
	store := newMemoryStore()
	store.failClear = errors.New("target closed")
	bodyErr := errors.New("step failed")

	err := With(context.Background(), store, DefaultBinding(), creds, func(context.Context, *Session) error {
		return bodyErr
	})

	assert.ErrorIs(t, err, bodyErr)
	assert.ErrorContains(t, err, "clear cookie accessToken: target closed")
}

func TestAcquire_PartialSeedIsReleased(t *testing.T) {
	store := newMemoryStore()
	store.failSet = errors.New("storage disabled")

	s, err := Acquire(context.Background(), store, DefaultBinding(), creds)

	assert.Nil(t, s)
	assert.ErrorContains(t, err, "seed local value refreshToken")
	assert.True(t, store.empty())
}

func TestSession_ReleaseIsIdempotent(t *testing.T) {
	store := newMemoryStore()
	s, err := Acquire(context.Background(), store, DefaultBinding(), creds)
	require.NoError(t, err)

	require.NoError(t, s.Release(context.Background()))
	require.NoError(t, s.Release(context.Background()))
	assert.Len(t, store.ctxErrs, 2)
}

func TestAcquire_UniqueIDs(t *testing.T) {
	store := newMemoryStore()
	a, err := Acquire(context.Background(), store, Binding{CookieName: "accessToken"}, creds)
	require.NoError(t, err)
	b, err := Acquire(context.Background(), store, Binding{CookieName: "accessToken"}, creds)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Empty(t, store.local)
}

// stuckStore never answers until its context ends, like a wedged browser.
type stuckStore struct {
	*memoryStore
}

func (s stuckStore) DeleteCookie(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func (s stuckStore) RemoveLocalValue(ctx context.Context, _ string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestWith_ReleaseIsBounded(t *testing.T) {
	store := stuckStore{newMemoryStore()}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- With(ctx, store, DefaultBinding(), creds, func(ctx context.Context, _ *Session) error {
			<-ctx.Done()
			return ctx.Err()
		}, WithReleaseTimeout(100*time.Millisecond))
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.ErrorContains(t, err, "clear cookie accessToken")
		assert.ErrorContains(t, err, "clear local value refreshToken")
	case <-time.After(3 * time.Second):
		t.Fatal("release did not return after its timeout")
	}
}

func TestWithReleaseTimeout_IgnoresNonPositive(t *testing.T) {
	s, err := Acquire(context.Background(), newMemoryStore(), DefaultBinding(), creds, WithReleaseTimeout(0))
	require.NoError(t, err)
	assert.Equal(t, ReleaseTimeout, s.releaseTimeout)
	require.NoError(t, s.Release(context.Background()))
}
