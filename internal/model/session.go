package model

import "time"

// SessionStatus represents the lifecycle state of a broker session.
type SessionStatus string

const (
	SessionActive  SessionStatus = "ACTIVE"
	SessionExpired SessionStatus = "EXPIRED"
	SessionInvalid SessionStatus = "INVALID"
)

// Session holds the tokens issued by the broker after a successful
// login + TOTP exchange. It is acquired once per execution and shared
// read-only by every concurrent leg placement; nothing mutates it after
// issue.
type Session struct {
	ClientCode   string        `json:"client_code"`
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	FeedToken    string        `json:"feed_token"`
	IssuedAt     time.Time     `json:"issued_at"`
	TTL          time.Duration `json:"ttl"`
}

// Status reports the session state at time t. A zero AccessToken is INVALID;
// a token past IssuedAt+TTL is EXPIRED.
func (s *Session) Status(t time.Time) SessionStatus {
	if s == nil || s.AccessToken == "" {
		return SessionInvalid
	}
	if t.After(s.IssuedAt.Add(s.TTL)) {
		return SessionExpired
	}
	return SessionActive
}

// ExpiresAt returns the instant the session token stops being usable.
func (s *Session) ExpiresAt() time.Time {
	return s.IssuedAt.Add(s.TTL)
}
