package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ashley-ai/sentinel/session"
)

const sessionColumns = `id, user_id, token_hash, ip_address, user_agent, created_at, expires_at, last_activity_at, is_active`

// SessionStore implements session.Store.
type SessionStore struct {
	db DB
}

var _ session.Store = (*SessionStore)(nil)

// NewSessionStore returns a SessionStore using db.
func NewSessionStore(db DB) *SessionStore {
	return &SessionStore{db: db}
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var s session.Session
	err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &s.IPAddress, &s.UserAgent,
		&s.CreatedAt, &s.ExpiresAt, &s.LastActivityAt, &s.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *SessionStore) Insert(ctx context.Context, sess *session.Session) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO sessions (`+sessionColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sess.ID, sess.UserID, sess.TokenHash, sess.IPAddress, sess.UserAgent,
		sess.CreatedAt, sess.ExpiresAt, sess.LastActivityAt, sess.IsActive)
	return err
}

func (s *SessionStore) FindActiveByTokenHash(ctx context.Context, tokenHash string, now time.Time) (*session.Session, error) {
	return scanSession(s.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE token_hash = $1 AND is_active AND expires_at > $2`,
		tokenHash, now))
}

func (s *SessionStore) TouchActivity(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.Exec(ctx,
		`UPDATE sessions SET last_activity_at = $2 WHERE id = $1 AND is_active`,
		id, at)
	return err
}

func (s *SessionStore) ListActive(ctx context.Context, userID string, now time.Time) ([]*session.Session, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND is_active AND expires_at > $2
		 ORDER BY last_activity_at DESC`,
		userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*session.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

func (s *SessionStore) Deactivate(ctx context.Context, id, userID string) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE sessions SET is_active = FALSE WHERE id = $1 AND user_id = $2 AND is_active`,
		id, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *SessionStore) DeactivateAll(ctx context.Context, userID, exceptID string) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE sessions SET is_active = FALSE
		 WHERE user_id = $1 AND is_active AND ($2 = '' OR id <> $2)`,
		userID, exceptID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *SessionStore) DeleteStale(ctx context.Context, now, inactiveBefore time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM sessions WHERE expires_at < $1 OR (NOT is_active AND created_at < $2)`,
		now, inactiveBefore)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *SessionStore) ExtendExpiry(ctx context.Context, id string, d time.Duration, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE sessions SET expires_at = expires_at + make_interval(secs => $2)
		 WHERE id = $1 AND is_active AND expires_at > $3`,
		id, d.Seconds(), now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *SessionStore) CountActive(ctx context.Context, userID string, now time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND is_active AND expires_at > $2`,
		userID, now).Scan(&n)
	return n, err
}

func (s *SessionStore) OldestActive(ctx context.Context, userID string, now time.Time) (*session.Session, error) {
	return scanSession(s.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions
		 WHERE user_id = $1 AND is_active AND expires_at > $2
		 ORDER BY last_activity_at ASC LIMIT 1`,
		userID, now))
}

func (s *SessionStore) Stats(ctx context.Context, now time.Time) (session.Stats, error) {
	var st session.Stats
	err := s.db.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE is_active AND expires_at > $1),
		   COUNT(*) FILTER (WHERE NOT (is_active AND expires_at > $1)),
		   COUNT(*) FILTER (WHERE is_active AND last_activity_at > $2),
		   COUNT(*) FILTER (WHERE is_active AND last_activity_at > $3)
		 FROM sessions`,
		now, now.Add(-24*time.Hour), now.Add(-7*24*time.Hour)).
		Scan(&st.TotalActive, &st.TotalInactive, &st.ActiveLast24Hours, &st.ActiveLast7Days)
	return st, err
}
