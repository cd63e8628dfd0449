// Package memory provides in-process implementations of the session and
// risk stores, used in tests and when Redis is not configured. State does
// not survive a restart.
package memory

import (
	"context"
	"sync"

	"execution-systemv1/internal/model"
)

// SessionStore caches the broker session in memory.
type SessionStore struct {
	mu      sync.Mutex
	session *model.Session
}

// NewSessionStore creates an empty in-memory session cache.
func NewSessionStore() *SessionStore { return &SessionStore{} }

func (s *SessionStore) Load(ctx context.Context) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return nil, nil
	}
	cp := *s.session
	return &cp, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.session = &cp
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = nil
	return nil
}

// RiskStore holds the risk state in memory.
type RiskStore struct {
	mu    sync.Mutex
	state *model.RiskState
}

// NewRiskStore creates an empty in-memory risk store.
func NewRiskStore() *RiskStore { return &RiskStore{} }

func (s *RiskStore) Load(ctx context.Context) (*model.RiskState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return nil, nil
	}
	cp := *s.state
	return &cp, nil
}

func (s *RiskStore) Save(ctx context.Context, st *model.RiskState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *st
	s.state = &cp
	return nil
}
