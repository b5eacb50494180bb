package bbolt

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.etcd.io/bbolt"

	"github.com/ashley-ai/sentinel/session"
)

const sessionKind = "session"

// sessionRecord is the stored form of a session. The plaintext token is
// not part of it.
type sessionRecord struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	TokenHash      string    `json:"token_hash"`
	IPAddress      string    `json:"ip_address,omitempty"`
	UserAgent      string    `json:"user_agent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	IsActive       bool      `json:"is_active"`
}

func toRecord(s *session.Session) sessionRecord {
	return sessionRecord{
		ID:             s.ID,
		UserID:         s.UserID,
		TokenHash:      s.TokenHash,
		IPAddress:      s.IPAddress,
		UserAgent:      s.UserAgent,
		CreatedAt:      s.CreatedAt,
		ExpiresAt:      s.ExpiresAt,
		LastActivityAt: s.LastActivityAt,
		IsActive:       s.IsActive,
	}
}

func (r sessionRecord) session() *session.Session {
	return &session.Session{
		ID:             r.ID,
		UserID:         r.UserID,
		TokenHash:      r.TokenHash,
		IPAddress:      r.IPAddress,
		UserAgent:      r.UserAgent,
		CreatedAt:      r.CreatedAt,
		ExpiresAt:      r.ExpiresAt,
		LastActivityAt: r.LastActivityAt,
		IsActive:       r.IsActive,
	}
}

// SessionStore implements session.Store.
type SessionStore struct {
	db *bbolt.DB
}

var _ session.Store = (*SessionStore)(nil)

func getSession(tx *bbolt.Tx, id string) (*session.Session, error) {
	raw := tx.Bucket(sessionsBucket).Get([]byte(id))
	if raw == nil {
		return nil, session.ErrNotFound
	}
	var rec sessionRecord
	if err := open(raw, sessionKind, &rec); err != nil {
		return nil, err
	}
	return rec.session(), nil
}

func putSession(tx *bbolt.Tx, s *session.Session) error {
	data, err := seal(sessionKind, toRecord(s))
	if err != nil {
		return err
	}
	return tx.Bucket(sessionsBucket).Put([]byte(s.ID), data)
}

// userSessions loads every session indexed under userID.
func userSessions(tx *bbolt.Tx, userID string) ([]*session.Session, error) {
	ub := tx.Bucket(usersBucket).Bucket([]byte(userID))
	if ub == nil {
		return nil, nil
	}
	var out []*session.Session
	err := ub.ForEach(func(k, _ []byte) error {
		s, err := getSession(tx, string(k))
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func deleteSession(tx *bbolt.Tx, s *session.Session) error {
	if err := tx.Bucket(sessionsBucket).Delete([]byte(s.ID)); err != nil {
		return err
	}
	tokens := tx.Bucket(tokensBucket)
	if id := tokens.Get([]byte(s.TokenHash)); string(id) == s.ID {
		if err := tokens.Delete([]byte(s.TokenHash)); err != nil {
			return err
		}
	}
	if ub := tx.Bucket(usersBucket).Bucket([]byte(s.UserID)); ub != nil {
		return ub.Delete([]byte(s.ID))
	}
	return nil
}

func (s *SessionStore) Insert(_ context.Context, sess *session.Session) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := putSession(tx, sess); err != nil {
			return err
		}
		if err := tx.Bucket(tokensBucket).Put([]byte(sess.TokenHash), []byte(sess.ID)); err != nil {
			return err
		}
		ub, err := tx.Bucket(usersBucket).CreateBucketIfNotExists([]byte(sess.UserID))
		if err != nil {
			return err
		}
		return ub.Put([]byte(sess.ID), nil)
	})
}

func (s *SessionStore) FindActiveByTokenHash(_ context.Context, tokenHash string, now time.Time) (*session.Session, error) {
	var found *session.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		id := tx.Bucket(tokensBucket).Get([]byte(tokenHash))
		if id == nil {
			return session.ErrNotFound
		}
		sess, err := getSession(tx, string(id))
		if err != nil {
			return err
		}
		if !sess.Usable(now) {
			return session.ErrNotFound
		}
		found = sess
		return nil
	})
	return found, err
}

func (s *SessionStore) TouchActivity(_ context.Context, id string, at time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		sess, err := getSession(tx, id)
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !sess.IsActive {
			return nil
		}
		sess.LastActivityAt = at
		return putSession(tx, sess)
	})
}

func (s *SessionStore) ListActive(_ context.Context, userID string, now time.Time) ([]*session.Session, error) {
	var out []*session.Session
	err := s.db.View(func(tx *bbolt.Tx) error {
		all, err := userSessions(tx, userID)
		if err != nil {
			return err
		}
		for _, sess := range all {
			if sess.Usable(now) {
				out = append(out, sess)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *session.Session) int {
		return b.LastActivityAt.Compare(a.LastActivityAt)
	})
	return out, err
}

func (s *SessionStore) Deactivate(_ context.Context, id, userID string) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		sess, err := getSession(tx, id)
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if sess.UserID != userID || !sess.IsActive {
			return nil
		}
		sess.IsActive = false
		n = 1
		return putSession(tx, sess)
	})
	return n, err
}

func (s *SessionStore) DeactivateAll(_ context.Context, userID, exceptID string) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		all, err := userSessions(tx, userID)
		if err != nil {
			return err
		}
		for _, sess := range all {
			if !sess.IsActive || (exceptID != "" && sess.ID == exceptID) {
				continue
			}
			sess.IsActive = false
			if err := putSession(tx, sess); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (s *SessionStore) DeleteStale(_ context.Context, now, inactiveBefore time.Time) (int64, error) {
	var n int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var stale []*session.Session
		err := tx.Bucket(sessionsBucket).ForEach(func(_, v []byte) error {
			var rec sessionRecord
			if err := open(v, sessionKind, &rec); err != nil {
				return err
			}
			if rec.ExpiresAt.Before(now) || (!rec.IsActive && rec.CreatedAt.Before(inactiveBefore)) {
				stale = append(stale, rec.session())
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, sess := range stale {
			if err := deleteSession(tx, sess); err != nil {
				return err
			}
		}
		n = int64(len(stale))
		return nil
	})
	return n, err
}

func (s *SessionStore) ExtendExpiry(_ context.Context, id string, d time.Duration, now time.Time) (bool, error) {
	var ok bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		sess, err := getSession(tx, id)
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !sess.Usable(now) {
			return nil
		}
		sess.ExpiresAt = sess.ExpiresAt.Add(d)
		ok = true
		return putSession(tx, sess)
	})
	return ok, err
}

func (s *SessionStore) CountActive(ctx context.Context, userID string, now time.Time) (int64, error) {
	active, err := s.ListActive(ctx, userID, now)
	return int64(len(active)), err
}

func (s *SessionStore) OldestActive(ctx context.Context, userID string, now time.Time) (*session.Session, error) {
	active, err := s.ListActive(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	if len(active) == 0 {
		return nil, session.ErrNotFound
	}
	return active[len(active)-1], nil
}

func (s *SessionStore) Stats(_ context.Context, now time.Time) (session.Stats, error) {
	var st session.Stats
	day := now.Add(-24 * time.Hour)
	week := now.Add(-7 * 24 * time.Hour)
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(sessionsBucket).ForEach(func(_, v []byte) error {
			var rec sessionRecord
			if err := open(v, sessionKind, &rec); err != nil {
				return err
			}
			sess := rec.session()
			if sess.Usable(now) {
				st.TotalActive++
			} else {
				st.TotalInactive++
			}
			if sess.IsActive && sess.LastActivityAt.After(day) {
				st.ActiveLast24Hours++
			}
			if sess.IsActive && sess.LastActivityAt.After(week) {
				st.ActiveLast7Days++
			}
			return nil
		})
	})
	return st, err
}
