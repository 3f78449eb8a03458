// Package session seeds and clears the credentials a scenario runs with.
//
// Credentials are a scoped resource: With acquires them before the body runs
// and releases them on every exit path, including failures, timeouts and
// panics. Nothing is kept in package state.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/uispec/packages/fixture"
	"github.com/google/uuid"
)

const (
	DefaultCookieName  = "accessToken"
	DefaultLocalKey    = "refreshToken"
	DefaultAccessPath  = "accessToken"
	DefaultRefreshPath = "refreshToken"

	// ReleaseTimeout bounds clearing the credentials.
	ReleaseTimeout = 10 * time.Second
)

// Credentials are the tokens of one scenario's session.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// CredentialsFromFixture reads credentials from a token fixture. Empty paths
// default to accessToken and refreshToken.
func CredentialsFromFixture(f *fixture.Fixture, accessPath, refreshPath string) (Credentials, error) {
	if accessPath == "" {
		accessPath = DefaultAccessPath
	}
	if refreshPath == "" {
		refreshPath = DefaultRefreshPath
	}
	access, err := f.String(accessPath)
	if err != nil {
		return Credentials{}, err
	}
	refresh, err := f.String(refreshPath)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{AccessToken: access, RefreshToken: refresh}, nil
}

// Binding names where credentials live in the browser.
type Binding struct {
	// CookieName holds the access token.
	CookieName string
	// LocalKey is the local storage key holding the refresh token.
	LocalKey string
}

// DefaultBinding is the accessToken cookie plus the refreshToken key.
func DefaultBinding() Binding {
	return Binding{CookieName: DefaultCookieName, LocalKey: DefaultLocalKey}
}

// Store is the browser state a session is written to.
type Store interface {
	SetCookie(ctx context.Context, name, value string) error
	DeleteCookie(ctx context.Context, name string) error
	SetLocalValue(ctx context.Context, key, value string) error
	RemoveLocalValue(ctx context.Context, key string) error
}

// Session is an acquired set of credentials.
type Session struct {
	ID      string
	store   Store
	binding Binding
	logger  *slog.Logger

	releaseTimeout time.Duration
	once           sync.Once
	releaseErr     error
}

// Option configures Acquire.
type Option func(*Session)

// WithLogger sets the logger for acquire and release events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// WithReleaseTimeout bounds Release. Non-positive values keep ReleaseTimeout.
func WithReleaseTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.releaseTimeout = d
		}
	}
}

// Acquire seeds creds into store. If seeding fails part way, whatever was
// written is released before returning.
func Acquire(ctx context.Context, store Store, binding Binding, creds Credentials, opts ...Option) (*Session, error) {
	s := &Session{
		ID:      uuid.NewString(),
		store:   store,
		binding: binding,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),

		releaseTimeout: ReleaseTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if binding.CookieName != "" {
		if err := store.SetCookie(ctx, binding.CookieName, creds.AccessToken); err != nil {
			return nil, errors.Join(fmt.Errorf("seed cookie %s: %w", binding.CookieName, err), s.Release(ctx))
		}
	}
	if binding.LocalKey != "" {
		if err := store.SetLocalValue(ctx, binding.LocalKey, creds.RefreshToken); err != nil {
			return nil, errors.Join(fmt.Errorf("seed local value %s: %w", binding.LocalKey, err), s.Release(ctx))
		}
	}
	s.logger.Debug("session acquired", "session", s.ID)
	return s, nil
}

// Release clears the cookie and the local value. It runs once; later calls
// return the first result. Cancellation of ctx does not stop it; it is
// bounded by ReleaseTimeout instead.
func (s *Session) Release(ctx context.Context) error {
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.releaseTimeout)
		defer cancel()
		var errs []error
		if s.binding.CookieName != "" {
			if err := s.store.DeleteCookie(ctx, s.binding.CookieName); err != nil {
				errs = append(errs, fmt.Errorf("clear cookie %s: %w", s.binding.CookieName, err))
			}
		}
		if s.binding.LocalKey != "" {
			if err := s.store.RemoveLocalValue(ctx, s.binding.LocalKey); err != nil {
				errs = append(errs, fmt.Errorf("clear local value %s: %w", s.binding.LocalKey, err))
			}
		}
		s.releaseErr = errors.Join(errs...)
		s.logger.Debug("session released", "session", s.ID, "error", s.releaseErr)
	})
	return s.releaseErr
}

// With runs fn inside an acquired session and always releases it. A panic in
// fn is re-raised after the release.
func With(ctx context.Context, store Store, binding Binding, creds Credentials, fn func(ctx context.Context, s *Session) error, opts ...Option) (err error) {
	s, err := Acquire(ctx, store, binding, creds, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = s.Release(ctx)
			panic(r)
		}
		err = errors.Join(err, s.Release(ctx))
	}()
	return fn(ctx, s)
}
