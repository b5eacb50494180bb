// Package session manages server-side login sessions.
//
// A session is identified to the client by an opaque bearer token. Only the
// SHA-256 digest of the token is persisted; the plaintext exists in the
// value returned by Create and in the value echoed back by Get. Revocation
// is a soft delete (IsActive=false) and is permanent. Expiry is fixed at
// creation and only moves through an explicit Extend.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by a Store when no matching session exists.
var ErrNotFound = errors.New("session not found")

// Session is one authenticated device or browser instance.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	// Token is the plaintext bearer token. It is never persisted.
	Token          string    `json:"-"`
	TokenHash      string    `json:"-"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	IsActive       bool      `json:"is_active"`
}

// Usable reports whether s is active and unexpired at now.
func (s *Session) Usable(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

// Device is the coarse client description derived from a user agent.
type Device struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"device_type"`
}

// View is a session as shown to its owner.
type View struct {
	ID             string    `json:"id"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	Device         Device    `json:"device"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	IsCurrent      bool      `json:"is_current"`
}

// Stats summarises the session table.
type Stats struct {
	TotalActive       int64 `json:"total_active"`
	TotalInactive     int64 `json:"total_inactive"`
	ActiveLast24Hours int64 `json:"active_last_24_hours"`
	ActiveLast7Days   int64 `json:"active_last_7_days"`
}

// CreateOptions describes a new session.
type CreateOptions struct {
	UserID    string
	IPAddress string
	UserAgent string
	// ExpiresInDays overrides the default lifetime when positive.
	ExpiresInDays int
	// RememberMe selects the long lifetime when ExpiresInDays is unset.
	RememberMe bool
}

// Store persists sessions. Implementations must apply every predicate in a
// single operation: a session that is inactive, expired, or owned by a
// different user is simply not matched.
type Store interface {
	// Insert stores a new session. The Token field is ignored.
	Insert(ctx context.Context, s *Session) error
	// FindActiveByTokenHash returns the active session with tokenHash that
	// expires after now, or ErrNotFound.
	FindActiveByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*Session, error)
	// TouchActivity sets LastActivityAt on an active session. A missing or
	// inactive session is not an error.
	TouchActivity(ctx context.Context, id string, at time.Time) error
	// ListActive returns the user's active sessions that expire after now.
	ListActive(ctx context.Context, userID string, now time.Time) ([]*Session, error)
	// Deactivate revokes one session owned by userID and reports how many
	// rows changed.
	Deactivate(ctx context.Context, id, userID string) (int64, error)
	// DeactivateAll revokes every active session of userID except
	// exceptID (when non-empty).
	DeactivateAll(ctx context.Context, userID, exceptID string) (int64, error)
	// DeleteStale hard-deletes sessions that expired before now and
	// inactive sessions created before inactiveBefore.
	DeleteStale(ctx context.Context, now, inactiveBefore time.Time) (int64, error)
	// ExtendExpiry pushes ExpiresAt of an active, unexpired session
	// forward by d. It reports whether a session was changed.
	ExtendExpiry(ctx context.Context, id string, d time.Duration, now time.Time) (bool, error)
	// CountActive counts the user's active sessions that expire after now.
	CountActive(ctx context.Context, userID string, now time.Time) (int64, error)
	// OldestActive returns the user's active, unexpired session with the
	// earliest LastActivityAt, or ErrNotFound.
	OldestActive(ctx context.Context, userID string, now time.Time) (*Session, error)
	// Stats aggregates the table at now.
	Stats(ctx context.Context, now time.Time) (Stats, error)
}
