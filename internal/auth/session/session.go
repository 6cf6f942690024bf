// Package session holds authenticated sessions and notifies subscribers of
// every sign-in, sign-out and token refresh.
package session

import (
	"time"

	"github.com/clytar/clytar-backend/internal/users/domain"
)

// Session wraps one signed-in user. The token is opaque.
type Session struct {
	Token     string      `json:"token"`
	User      domain.User `json:"user"`
	IssuedAt  time.Time   `json:"issued_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsAdmin projects the stored role of the session's user. A nil session is
// never an admin.
func IsAdmin(s *Session) bool {
	return s != nil && s.User.IsAdmin()
}

type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
	Refreshed EventKind = "refreshed"
)

// Event describes one session transition.
type Event struct {
	Kind    EventKind
	Session Session
	At      time.Time
}
