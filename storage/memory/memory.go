// Package memory provides thread-safe in-memory session and audit stores.
// Suitable for tests, demos and single-process use.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/ashley-ai/sentinel/audit"
	"github.com/ashley-ai/sentinel/session"
)

// SessionStore is an in-memory session.Store.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

var _ session.Store = (*SessionStore)(nil)

// NewSessionStore creates an empty SessionStore.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*session.Session)}
}

func cloneSession(s *session.Session) *session.Session {
	c := *s
	c.Token = ""
	return &c
}

func (m *SessionStore) Insert(_ context.Context, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = cloneSession(s)
	return nil
}

func (m *SessionStore) FindActiveByTokenHash(_ context.Context, tokenHash string, now time.Time) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.TokenHash == tokenHash && s.Usable(now) {
			return cloneSession(s), nil
		}
	}
	return nil, session.ErrNotFound
}

func (m *SessionStore) TouchActivity(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && s.IsActive {
		s.LastActivityAt = at
	}
	return nil
}

func (m *SessionStore) ListActive(_ context.Context, userID string, now time.Time) ([]*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*session.Session
	for _, s := range m.sessions {
		if s.UserID == userID && s.Usable(now) {
			out = append(out, cloneSession(s))
		}
	}
	slices.SortFunc(out, func(a, b *session.Session) int {
		return b.LastActivityAt.Compare(a.LastActivityAt)
	})
	return out, nil
}

func (m *SessionStore) Deactivate(_ context.Context, id, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.UserID != userID || !s.IsActive {
		return 0, nil
	}
	s.IsActive = false
	return 1, nil
}

func (m *SessionStore) DeactivateAll(_ context.Context, userID, exceptID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.UserID != userID || !s.IsActive || (exceptID != "" && id == exceptID) {
			continue
		}
		s.IsActive = false
		n++
	}
	return n, nil
}

func (m *SessionStore) DeleteStale(_ context.Context, now, inactiveBefore time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(now) || (!s.IsActive && s.CreatedAt.Before(inactiveBefore)) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *SessionStore) ExtendExpiry(_ context.Context, id string, d time.Duration, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || !s.Usable(now) {
		return false, nil
	}
	s.ExpiresAt = s.ExpiresAt.Add(d)
	return true, nil
}

func (m *SessionStore) CountActive(_ context.Context, userID string, now time.Time) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, s := range m.sessions {
		if s.UserID == userID && s.Usable(now) {
			n++
		}
	}
	return n, nil
}

func (m *SessionStore) OldestActive(_ context.Context, userID string, now time.Time) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var oldest *session.Session
	for _, s := range m.sessions {
		if s.UserID != userID || !s.Usable(now) {
			continue
		}
		if oldest == nil || s.LastActivityAt.Before(oldest.LastActivityAt) {
			oldest = s
		}
	}
	if oldest == nil {
		return nil, session.ErrNotFound
	}
	return cloneSession(oldest), nil
}

func (m *SessionStore) Stats(_ context.Context, now time.Time) (session.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var st session.Stats
	day := now.Add(-24 * time.Hour)
	week := now.Add(-7 * 24 * time.Hour)
	for _, s := range m.sessions {
		if s.Usable(now) {
			st.TotalActive++
		} else {
			st.TotalInactive++
		}
		if s.IsActive && s.LastActivityAt.After(day) {
			st.ActiveLast24Hours++
		}
		if s.IsActive && s.LastActivityAt.After(week) {
			st.ActiveLast7Days++
		}
	}
	return st, nil
}

// AuditStore is an in-memory audit.Store.
type AuditStore struct {
	mu      sync.RWMutex
	records []audit.Record
}

var _ audit.Store = (*AuditStore)(nil)

// NewAuditStore creates an empty AuditStore.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

func (m *AuditStore) Append(_ context.Context, r audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return nil
}

func (m *AuditStore) matching(f audit.Filter) []audit.Record {
	var out []audit.Record
	for _, r := range m.records {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

func (m *AuditStore) Query(_ context.Context, f audit.Filter) ([]audit.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.matching(f)
	audit.SortNewestFirst(out)
	return f.Page(out), nil
}

func (m *AuditStore) Count(_ context.Context, f audit.Filter) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.matching(f))), nil
}

func (m *AuditStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	var n int64
	for _, r := range m.records {
		if r.CreatedAt.Before(cutoff) && r.Severity != audit.SeverityCritical {
			n++
			continue
		}
		kept = append(kept, r)
	}
	clear(m.records[len(kept):])
	m.records = kept
	return n, nil
}

func (m *AuditStore) Aggregate(_ context.Context, since time.Time) (audit.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := audit.NewStats()
	for _, r := range m.records {
		if !r.CreatedAt.Before(since) {
			st.Add(r.Action, r.Severity, r.CreatedAt)
		}
	}
	return st, nil
}
