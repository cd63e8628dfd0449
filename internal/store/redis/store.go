// Package redis persists the broker session cache and the account risk
// state in Redis, so a restart inside a token's TTL reuses the session and
// a tripped circuit breaker stays tripped until an explicit reset.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"execution-systemv1/internal/model"
)

const (
	sessionKey = "exec:session"
	riskKey    = "exec:risk"
)

// Config configures the Redis connection.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Store implements model.SessionStore and model.RiskStore on Redis.
type Store struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (s *Store) Client() *goredis.Client { return s.client }

// New connects to Redis and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Store{client: client}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.client.Close() }

// ── SessionStore ──

// Load returns the cached session, or nil when none is cached. The Redis
// key expires with the session TTL, so a stale token is never served.
func (s *Store) Load(ctx context.Context) (*model.Session, error) {
	raw, err := s.client.Get(ctx, sessionKey).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}
	var sess model.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("redis decode session: %w", err)
	}
	return &sess, nil
}

// Save caches the session with an expiry matching its TTL.
func (s *Store) Save(ctx context.Context, sess *model.Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("redis encode session: %w", err)
	}
	ttl := time.Until(sess.ExpiresAt())
	if ttl <= 0 {
		return fmt.Errorf("redis save session: already expired")
	}
	if err := s.client.Set(ctx, sessionKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

// Clear drops the cached session.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, sessionKey).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}

// ── RiskStore ──

// RiskStore adapts the same connection to the risk-state port. Separate
// type so one *Store can serve both ports without method name clashes.
type RiskStore struct {
	client *goredis.Client
}

// Risk returns the risk-state view of the store.
func (s *Store) Risk() *RiskStore { return &RiskStore{client: s.client} }

// Load returns the persisted risk state, or nil when none exists. No
// expiry: a latched breaker outlives any restart.
func (r *RiskStore) Load(ctx context.Context) (*model.RiskState, error) {
	raw, err := r.client.Get(ctx, riskKey).Bytes()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get risk state: %w", err)
	}
	var st model.RiskState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("redis decode risk state: %w", err)
	}
	return &st, nil
}

// Save persists the risk state without expiry.
func (r *RiskStore) Save(ctx context.Context, st *model.RiskState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("redis encode risk state: %w", err)
	}
	if err := r.client.Set(ctx, riskKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("redis set risk state: %w", err)
	}
	return nil
}
