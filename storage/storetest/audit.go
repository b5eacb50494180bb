package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashley-ai/sentinel/audit"
)

func record(id string, action audit.Action, sev audit.Severity, at time.Time) audit.Record {
	return audit.Record{
		ID:        id,
		UserID:    "u1",
		Action:    action,
		Resource:  "orders",
		Severity:  sev,
		IPAddress: "198.51.100.7",
		UserAgent: "test-agent",
		CreatedAt: at,
	}
}

// RunAuditStore exercises an audit.Store. newStore must return an empty
// store.
func RunAuditStore(t *testing.T, newStore func(t *testing.T) audit.Store) {
	ctx := context.Background()

	t.Run("AppendAndQueryRoundTrip", func(t *testing.T) {
		s := newStore(t)
		r := record("r1", audit.ActionUpdate, audit.SeverityInfo, base)
		r.ResourceID = "order-9"
		r.Details = map[string]any{"reason": "price fix"}
		r.Before = json.RawMessage(`{"price":10}`)
		r.After = json.RawMessage(`{"price":12}`)
		require.NoError(t, s.Append(ctx, r))

		got, err := s.Query(ctx, audit.Filter{Limit: 10})
		require.NoError(t, err)
		require.Len(t, got, 1)
		g := got[0]
		assert.Equal(t, "r1", g.ID)
		assert.Equal(t, "u1", g.UserID)
		assert.Equal(t, audit.ActionUpdate, g.Action)
		assert.Equal(t, "orders", g.Resource)
		assert.Equal(t, "order-9", g.ResourceID)
		assert.Equal(t, "price fix", g.Details["reason"])
		assert.JSONEq(t, `{"price":10}`, string(g.Before))
		assert.JSONEq(t, `{"price":12}`, string(g.After))
		assert.Equal(t, "198.51.100.7", g.IPAddress)
		assert.Equal(t, "test-agent", g.UserAgent)
		assert.Equal(t, audit.SeverityInfo, g.Severity)
		assert.True(t, g.CreatedAt.Equal(base))
	})

	t.Run("NullSnapshotsStayEmpty", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Append(ctx, record("r1", audit.ActionLogin, audit.SeverityInfo, base)))
		got, err := s.Query(ctx, audit.Filter{Limit: 10})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Empty(t, got[0].Before)
		assert.Empty(t, got[0].After)
		assert.Empty(t, got[0].Details)
	})

	t.Run("FilterAndOrder", func(t *testing.T) {
		s := newStore(t)
		r1 := record("r1", audit.ActionLogin, audit.SeverityInfo, base)
		r2 := record("r2", audit.ActionLoginFailed, audit.SeverityWarning, base.Add(time.Minute))
		r3 := record("r3", audit.ActionDelete, audit.SeverityWarning, base.Add(2*time.Minute))
		r3.Resource = "invoices"
		r4 := record("r4", audit.ActionLogin, audit.SeverityInfo, base.Add(3*time.Minute))
		r4.UserID = "u2"
		for _, r := range []audit.Record{r1, r2, r3, r4} {
			require.NoError(t, s.Append(ctx, r))
		}

		ids := func(f audit.Filter) []string {
			t.Helper()
			if f.Limit == 0 {
				f.Limit = 100
			}
			got, err := s.Query(ctx, f)
			require.NoError(t, err)
			out := make([]string, 0, len(got))
			for _, r := range got {
				out = append(out, r.ID)
			}
			n, err := s.Count(ctx, f)
			require.NoError(t, err)
			assert.Equal(t, int64(len(out)), n, "count mirrors the query filter")
			return out
		}

		assert.Equal(t, []string{"r4", "r3", "r2", "r1"}, ids(audit.Filter{}))
		assert.Equal(t, []string{"r3", "r2", "r1"}, ids(audit.Filter{UserID: "u1"}))
		assert.Equal(t, []string{"r4", "r2", "r1"}, ids(audit.Filter{Actions: []audit.Action{audit.ActionLogin, audit.ActionLoginFailed}}))
		assert.Equal(t, []string{"r3"}, ids(audit.Filter{Resource: "invoices"}))
		assert.Equal(t, []string{"r3", "r2"}, ids(audit.Filter{Severity: audit.SeverityWarning}))
		assert.Equal(t, []string{"r3", "r2"}, ids(audit.Filter{Start: base.Add(time.Minute), End: base.Add(2 * time.Minute)}))
	})

	t.Run("Pagination", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 5; i++ {
			require.NoError(t, s.Append(ctx, record(fmt.Sprintf("r%d", i), audit.ActionRead, audit.SeverityInfo, base.Add(time.Duration(i)*time.Second))))
		}

		page, err := s.Query(ctx, audit.Filter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "r3", page[0].ID)
		assert.Equal(t, "r2", page[1].ID)

		page, err = s.Query(ctx, audit.Filter{Limit: 2, Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, page)

		n, err := s.Count(ctx, audit.Filter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(5), n, "count ignores pagination")
	})

	t.Run("DeleteBeforeKeepsCritical", func(t *testing.T) {
		s := newStore(t)
		old := base.Add(-100 * 24 * time.Hour)
		require.NoError(t, s.Append(ctx, record("old-info", audit.ActionRead, audit.SeverityInfo, old)))
		require.NoError(t, s.Append(ctx, record("old-error", audit.ActionUpdate, audit.SeverityError, old)))
		require.NoError(t, s.Append(ctx, record("old-critical", audit.ActionSecurityAlert, audit.SeverityCritical, old)))
		require.NoError(t, s.Append(ctx, record("new-info", audit.ActionRead, audit.SeverityInfo, base)))

		n, err := s.DeleteBefore(ctx, base.Add(-90*24*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		got, err := s.Query(ctx, audit.Filter{Limit: 10})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "new-info", got[0].ID)
		assert.Equal(t, "old-critical", got[1].ID)
	})

	t.Run("Aggregate", func(t *testing.T) {
		s := newStore(t)
		day1 := time.Date(2025, 3, 8, 23, 30, 0, 0, time.UTC)
		day2 := time.Date(2025, 3, 9, 0, 30, 0, 0, time.UTC)
		require.NoError(t, s.Append(ctx, record("a", audit.ActionLogin, audit.SeverityInfo, day1)))
		require.NoError(t, s.Append(ctx, record("b", audit.ActionLogin, audit.SeverityInfo, day2)))
		require.NoError(t, s.Append(ctx, record("c", audit.ActionLoginFailed, audit.SeverityWarning, day2)))
		require.NoError(t, s.Append(ctx, record("too-old", audit.ActionLogin, audit.SeverityInfo, day1.Add(-48*time.Hour))))

		st, err := s.Aggregate(ctx, day1.Add(-time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(3), st.Total)
		assert.Equal(t, map[audit.Action]int64{audit.ActionLogin: 2, audit.ActionLoginFailed: 1}, st.ByAction)
		assert.Equal(t, map[audit.Severity]int64{audit.SeverityInfo: 2, audit.SeverityWarning: 1}, st.BySeverity)
		assert.Equal(t, map[string]int64{"2025-03-08": 1, "2025-03-09": 2}, st.ByDay)
	})
}
