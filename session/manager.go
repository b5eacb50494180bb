package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/ashley-ai/sentinel/internal/uuid"
)

const (
	// DefaultMaxSessions is the per-user cap on concurrent sessions.
	DefaultMaxSessions = 5
	// DefaultLifetime applies when neither RememberMe nor ExpiresInDays is set.
	DefaultLifetime = 7 * 24 * time.Hour
	// RememberMeLifetime applies when RememberMe is set.
	RememberMeLifetime = 30 * 24 * time.Hour
	// DefaultExtendDays is used by Extend when days is not positive.
	DefaultExtendDays = 7
	// staleAfter is how long revoked sessions are kept before cleanup.
	staleAfter = 30 * 24 * time.Hour
)

// ErrUserRequired is returned by Create when no user id is given.
var ErrUserRequired = errors.New("session: user id is required")

// Manager is the sole mutator of sessions.
type Manager struct {
	store       Store
	now         func() time.Time
	logger      *slog.Logger
	maxSessions int
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMaxSessions sets the default per-user session cap.
func WithMaxSessions(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// NewManager creates a Manager over store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store:       store,
		now:         time.Now,
		maxSessions: DefaultMaxSessions,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	m.logger = m.logger.With("component", "session")
	return m
}

// MaxSessions returns the configured per-user cap.
func (m *Manager) MaxSessions() int { return m.maxSessions }

// Create issues a new session. The returned value is the only place the
// plaintext token appears.
func (m *Manager) Create(ctx context.Context, opts CreateOptions) (*Session, error) {
	if opts.UserID == "" {
		return nil, ErrUserRequired
	}

	lifetime := DefaultLifetime
	if opts.RememberMe {
		lifetime = RememberMeLifetime
	}
	if opts.ExpiresInDays > 0 {
		lifetime = time.Duration(opts.ExpiresInDays) * 24 * time.Hour
	}

	token, err := NewToken()
	if err != nil {
		return nil, fmt.Errorf("generating session token: %w", err)
	}

	now := m.now()
	s := &Session{
		ID:             uuid.New(),
		UserID:         opts.UserID,
		TokenHash:      HashToken(token),
		IPAddress:      opts.IPAddress,
		UserAgent:      opts.UserAgent,
		CreatedAt:      now,
		ExpiresAt:      now.Add(lifetime),
		LastActivityAt: now,
		IsActive:       true,
	}
	if err := m.store.Insert(ctx, s); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}

	out := *s
	out.Token = token
	return &out, nil
}

// Get resolves a bearer token. It returns nil, nil when the token does not
// match an active, unexpired session; callers cannot tell an unknown token
// from a revoked or expired one. A successful lookup records activity on a
// best-effort basis.
func (m *Manager) Get(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	now := m.now()
	s, err := m.store.FindActiveByTokenHash(ctx, HashToken(token), now)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("looking up session: %w", err)
	}

	if err := m.store.TouchActivity(ctx, s.ID, now); err != nil {
		m.logger.Warn("failed to record session activity", "session_id", s.ID, "error", err)
	} else {
		s.LastActivityAt = now
	}
	s.Token = token
	return s, nil
}

// List returns the user's active sessions, most recently active first.
// The session whose token is currentToken is flagged IsCurrent.
func (m *Manager) List(ctx context.Context, userID, currentToken string) ([]View, error) {
	sessions, err := m.store.ListActive(ctx, userID, m.now())
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	slices.SortStableFunc(sessions, func(a, b *Session) int {
		return b.LastActivityAt.Compare(a.LastActivityAt)
	})

	var currentHash string
	if currentToken != "" {
		currentHash = HashToken(currentToken)
	}

	views := make([]View, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, View{
			ID:             s.ID,
			IPAddress:      s.IPAddress,
			UserAgent:      s.UserAgent,
			Device:         ParseUserAgent(s.UserAgent),
			CreatedAt:      s.CreatedAt,
			LastActivityAt: s.LastActivityAt,
			ExpiresAt:      s.ExpiresAt,
			IsCurrent:      currentHash != "" && s.TokenHash == currentHash,
		})
	}
	return views, nil
}

// Revoke deactivates one session owned by userID. Revoking a session that
// does not exist, is already revoked, or belongs to someone else succeeds
// without effect.
func (m *Manager) Revoke(ctx context.Context, sessionID, userID string) error {
	if _, err := m.store.Deactivate(ctx, sessionID, userID); err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	return nil
}

// RevokeAll deactivates every active session of userID except
// exceptSessionID, and returns how many were revoked.
func (m *Manager) RevokeAll(ctx context.Context, userID, exceptSessionID string) (int64, error) {
	n, err := m.store.DeactivateAll(ctx, userID, exceptSessionID)
	if err != nil {
		return 0, fmt.Errorf("revoking sessions: %w", err)
	}
	return n, nil
}

// ForceLogout revokes every session of userID.
func (m *Manager) ForceLogout(ctx context.Context, userID string) (int64, error) {
	return m.RevokeAll(ctx, userID, "")
}

// CleanupExpired hard-deletes expired sessions and revoked sessions older
// than 30 days.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	now := m.now()
	n, err := m.store.DeleteStale(ctx, now, now.Add(-staleAfter))
	if err != nil {
		return 0, fmt.Errorf("cleaning up sessions: %w", err)
	}
	return n, nil
}

// Extend pushes the expiry of an active, unexpired session forward by
// days (DefaultExtendDays when days is not positive).
func (m *Manager) Extend(ctx context.Context, sessionID string, days int) (bool, error) {
	if days <= 0 {
		days = DefaultExtendDays
	}
	ok, err := m.store.ExtendExpiry(ctx, sessionID, time.Duration(days)*24*time.Hour, m.now())
	if err != nil {
		return false, fmt.Errorf("extending session: %w", err)
	}
	return ok, nil
}

// ActiveCount counts the user's active, unexpired sessions.
func (m *Manager) ActiveCount(ctx context.Context, userID string) (int64, error) {
	n, err := m.store.CountActive(ctx, userID, m.now())
	if err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return n, nil
}

// HasMaxSessions reports whether userID already holds max sessions. A
// non-positive max uses the manager's cap.
func (m *Manager) HasMaxSessions(ctx context.Context, userID string, max int) (bool, error) {
	if max <= 0 {
		max = m.maxSessions
	}
	n, err := m.ActiveCount(ctx, userID)
	if err != nil {
		return false, err
	}
	return n >= int64(max), nil
}

// RevokeOldest revokes the user's least recently active session. It
// reports whether a session was revoked.
func (m *Manager) RevokeOldest(ctx context.Context, userID string) (bool, error) {
	s, err := m.store.OldestActive(ctx, userID, m.now())
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("finding oldest session: %w", err)
	}
	n, err := m.store.Deactivate(ctx, s.ID, userID)
	if err != nil {
		return false, fmt.Errorf("revoking session: %w", err)
	}
	return n > 0, nil
}

// EnforceCap makes room for one more session by revoking least recently
// active sessions while the user is at the cap. It returns how many were
// revoked.
func (m *Manager) EnforceCap(ctx context.Context, userID string) (int, error) {
	revoked := 0
	for {
		full, err := m.HasMaxSessions(ctx, userID, 0)
		if err != nil {
			return revoked, err
		}
		if !full {
			return revoked, nil
		}
		ok, err := m.RevokeOldest(ctx, userID)
		if err != nil {
			return revoked, err
		}
		if !ok {
			return revoked, nil
		}
		revoked++
	}
}

// Touch records activity on a session without resolving its token.
// Failures are logged and not returned.
func (m *Manager) Touch(ctx context.Context, sessionID string) {
	if err := m.store.TouchActivity(ctx, sessionID, m.now()); err != nil {
		m.logger.Warn("failed to record session activity", "session_id", sessionID, "error", err)
	}
}

// Stats aggregates the session table.
func (m *Manager) Stats(ctx context.Context) (Stats, error) {
	st, err := m.store.Stats(ctx, m.now())
	if err != nil {
		return Stats{}, fmt.Errorf("session stats: %w", err)
	}
	return st, nil
}

// RunCleanup calls CleanupExpired every interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := m.CleanupExpired(ctx)
			if err != nil {
				m.logger.Error("session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				m.logger.Info("removed stale sessions", "count", n)
			}
		}
	}
}
