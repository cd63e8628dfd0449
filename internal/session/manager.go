// Package session manages the authenticated broker session: one cached
// token reused while its TTL holds, a fresh login + TOTP exchange when it
// does not. Acquire is called exactly once per execution; the returned
// session is shared read-only by every leg placement and never refreshed
// mid-execution.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pquerna/otp/totp"

	"execution-systemv1/internal/model"
)

// Credentials are the login inputs for the broker. TOTPSecret is the
// base32 seed the broker issued at 2FA enrolment; the manager generates
// the one-time code from it at login time.
type Credentials struct {
	ClientCode string
	Password   string
	TOTPSecret string
}

// Counter is the subset of a Prometheus counter the manager needs. A nil
// counter is never incremented.
type Counter interface {
	Inc()
}

// Manager acquires and caches the broker session.
type Manager struct {
	mu        sync.Mutex
	auth      model.Authenticator
	store     model.SessionStore
	creds     Credentials
	log       *slog.Logger
	now       func() time.Time
	logins    Counter
	cacheHits Counter
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithCounters wires login and cache-hit counters.
func WithCounters(logins, cacheHits Counter) Option {
	return func(m *Manager) {
		m.logins = logins
		m.cacheHits = cacheHits
	}
}

// NewManager creates a session manager.
func NewManager(auth model.Authenticator, store model.SessionStore, creds Credentials, log *slog.Logger, opts ...Option) *Manager {
	m := &Manager{auth: auth, store: store, creds: creds, log: log, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Acquire returns a valid session: the cached one when its TTL holds,
// otherwise the result of a fresh login + TOTP exchange, which is cached
// before being returned. Login failures are fatal to the caller.
func (m *Manager) Acquire(ctx context.Context) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cached, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("session cache load: %w", err)
	}
	if cached != nil && cached.Status(m.now()) == model.SessionActive {
		m.log.Debug("session cache hit",
			slog.Time("expires_at", cached.ExpiresAt()))
		if m.cacheHits != nil {
			m.cacheHits.Inc()
		}
		return cached, nil
	}

	code, err := totp.GenerateCode(m.creds.TOTPSecret, m.now())
	if err != nil {
		return nil, fmt.Errorf("totp generation: %w", err)
	}

	sess, err := m.auth.GenerateSession(ctx, m.creds.ClientCode, m.creds.Password, code)
	if err != nil {
		return nil, err
	}
	if err := m.store.Save(ctx, sess); err != nil {
		// Session is still usable for this execution; only caching failed.
		m.log.Warn("session cache save failed", slog.String("error", err.Error()))
	}
	if m.logins != nil {
		m.logins.Inc()
	}
	m.log.Info("session acquired",
		slog.String("client_code", sess.ClientCode),
		slog.Time("expires_at", sess.ExpiresAt()))
	return sess, nil
}

// Invalidate drops the cached session so the next Acquire logs in again.
func (m *Manager) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Clear(ctx)
}
