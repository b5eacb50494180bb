package postgres_test

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashley-ai/sentinel/audit"
	"github.com/ashley-ai/sentinel/session"
	"github.com/ashley-ai/sentinel/storage/postgres"
)

var (
	now            = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	sessionColumns = []string{"id", "user_id", "token_hash", "ip_address", "user_agent", "created_at", "expires_at", "last_activity_at", "is_active"}
	auditColumns   = []string{"id", "user_id", "action", "resource", "resource_id", "details", "before_data", "after_data", "ip_address", "user_agent", "severity", "created_at"}
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return mock
}

func TestSessionInsert(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewSessionStore(mock)
	sess := &session.Session{
		ID: "s1", UserID: "u1", Token: "plaintext", TokenHash: "h1", IPAddress: "192.0.2.1", UserAgent: "ua",
		CreatedAt: now, ExpiresAt: now.Add(time.Hour), LastActivityAt: now, IsActive: true,
	}

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs("s1", "u1", "h1", "192.0.2.1", "ua", now, now.Add(time.Hour), now, true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Insert(context.Background(), sess))
}

func TestSessionFindActiveByTokenHash(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock := newMock(t)
		s := postgres.NewSessionStore(mock)
		mock.ExpectQuery(regexp.QuoteMeta("WHERE token_hash = $1 AND is_active AND expires_at > $2")).
			WithArgs("h1", now).
			WillReturnRows(pgxmock.NewRows(sessionColumns).
				AddRow("s1", "u1", "h1", "192.0.2.1", "ua", now, now.Add(time.Hour), now, true))

		got, err := s.FindActiveByTokenHash(ctx, "h1", now)
		require.NoError(t, err)
		assert.Equal(t, "s1", got.ID)
		assert.Equal(t, "u1", got.UserID)
		assert.Empty(t, got.Token)
	})

	t.Run("not found", func(t *testing.T) {
		mock := newMock(t)
		s := postgres.NewSessionStore(mock)
		mock.ExpectQuery("SELECT (.+) FROM sessions").
			WithArgs("missing", now).
			WillReturnError(pgx.ErrNoRows)

		_, err := s.FindActiveByTokenHash(ctx, "missing", now)
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("database error", func(t *testing.T) {
		mock := newMock(t)
		s := postgres.NewSessionStore(mock)
		mock.ExpectQuery("SELECT (.+) FROM sessions").
			WithArgs("h1", now).
			WillReturnError(errors.New("connection reset"))

		_, err := s.FindActiveByTokenHash(ctx, "h1", now)
		assert.Error(t, err)
		assert.NotErrorIs(t, err, session.ErrNotFound)
	})
}

func TestSessionDeactivateIsOwnershipScoped(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewSessionStore(mock)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE sessions SET is_active = FALSE WHERE id = $1 AND user_id = $2 AND is_active")).
		WithArgs("s1", "intruder").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	n, err := s.Deactivate(context.Background(), "s1", "intruder")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSessionDeactivateAll(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewSessionStore(mock)

	mock.ExpectExec("UPDATE sessions SET is_active = FALSE").
		WithArgs("u1", "keep").
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))

	n, err := s.DeactivateAll(context.Background(), "u1", "keep")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestSessionExtendExpiry(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewSessionStore(mock)

	mock.ExpectExec("UPDATE sessions SET expires_at").
		WithArgs("s1", float64(7*24*3600), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE sessions SET expires_at").
		WithArgs("gone", float64(7*24*3600), now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	ok, err := s.ExtendExpiry(context.Background(), "s1", 7*24*time.Hour, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.ExtendExpiry(context.Background(), "gone", 7*24*time.Hour, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSessionListActive(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewSessionStore(mock)

	mock.ExpectQuery("ORDER BY last_activity_at DESC").
		WithArgs("u1", now).
		WillReturnRows(pgxmock.NewRows(sessionColumns).
			AddRow("b", "u1", "hb", "", "", now, now.Add(time.Hour), now.Add(-time.Minute), true).
			AddRow("a", "u1", "ha", "", "", now, now.Add(time.Hour), now.Add(-time.Hour), true))

	got, err := s.ListActive(context.Background(), "u1", now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}

func TestSessionStats(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewSessionStore(mock)

	mock.ExpectQuery("FILTER").
		WithArgs(now, now.Add(-24*time.Hour), now.Add(-7*24*time.Hour)).
		WillReturnRows(pgxmock.NewRows([]string{"active", "inactive", "day", "week"}).
			AddRow(int64(4), int64(2), int64(1), int64(3)))

	st, err := s.Stats(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, session.Stats{TotalActive: 4, TotalInactive: 2, ActiveLast24Hours: 1, ActiveLast7Days: 3}, st)
}

func TestAuditAppend(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewAuditStore(mock)

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs("r1", nil, "LOGIN", "", "", nil, nil, `{"a":1}`, "198.51.100.7", "ua", "INFO", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Append(context.Background(), audit.Record{
		ID: "r1", Action: audit.ActionLogin, After: json.RawMessage(`{"a":1}`),
		IPAddress: "198.51.100.7", UserAgent: "ua", Severity: audit.SeverityInfo, CreatedAt: now,
	})
	require.NoError(t, err)
}

func TestAuditQuery(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewAuditStore(mock)
	f := audit.Filter{
		UserID:   "u1",
		Actions:  []audit.Action{audit.ActionLogin, audit.ActionLogout},
		Severity: audit.SeverityInfo,
		Start:    now.Add(-time.Hour),
		Limit:    10,
		Offset:   20,
	}

	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND action = ANY($2) AND severity = $3 AND created_at >= $4 ORDER BY created_at DESC, id DESC LIMIT $5 OFFSET $6")).
		WithArgs("u1", []string{"LOGIN", "LOGOUT"}, "INFO", now.Add(-time.Hour), 10, 20).
		WillReturnRows(pgxmock.NewRows(auditColumns).
			AddRow("r2", "u1", "LOGOUT", "", "", "", "", "", "", "", "INFO", now).
			AddRow("r1", "u1", "LOGIN", "session", "s1", `{"remember":true}`, "", `{"x":1}`, "192.0.2.1", "ua", "INFO", now.Add(-time.Minute)))

	got, err := s.Query(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, audit.ActionLogout, got[0].Action)
	assert.Nil(t, got[0].Details)
	assert.Nil(t, got[0].After)
	assert.Equal(t, true, got[1].Details["remember"])
	assert.JSONEq(t, `{"x":1}`, string(got[1].After))
	assert.Nil(t, got[1].Before)
}

func TestAuditCountWithoutFilter(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewAuditStore(mock)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM audit_logs")).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(42)))

	n, err := s.Count(context.Background(), audit.Filter{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestAuditDeleteBeforeKeepsCritical(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewAuditStore(mock)
	cutoff := now.Add(-90 * 24 * time.Hour)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM audit_logs WHERE created_at < $1 AND severity <> $2")).
		WithArgs(cutoff, "CRITICAL").
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	n, err := s.DeleteBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestAuditAggregate(t *testing.T) {
	mock := newMock(t)
	s := postgres.NewAuditStore(mock)
	since := now.Add(-30 * 24 * time.Hour)

	mock.ExpectQuery("GROUP BY").
		WithArgs(since).
		WillReturnRows(pgxmock.NewRows([]string{"action", "severity", "day", "count"}).
			AddRow("LOGIN", "INFO", "2025-03-09", int64(2)).
			AddRow("LOGIN", "INFO", "2025-03-10", int64(1)).
			AddRow("LOGIN_FAILED", "WARNING", "2025-03-10", int64(4)))

	st, err := s.Aggregate(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, int64(7), st.Total)
	assert.Equal(t, map[audit.Action]int64{audit.ActionLogin: 3, audit.ActionLoginFailed: 4}, st.ByAction)
	assert.Equal(t, map[audit.Severity]int64{audit.SeverityInfo: 3, audit.SeverityWarning: 4}, st.BySeverity)
	assert.Equal(t, map[string]int64{"2025-03-09": 2, "2025-03-10": 5}, st.ByDay)
}

func TestEnsureSchema(t *testing.T) {
	mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sessions").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, postgres.EnsureSchema(context.Background(), mock))
}
