package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/ashley-ai/sentinel/audit"
	"github.com/ashley-ai/sentinel/session"
	"github.com/ashley-ai/sentinel/storage/storetest"
)

// newTestPool connects to the database named by SENTINEL_TEST_POSTGRES_DSN
// and empties both tables.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("SENTINEL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("SENTINEL_TEST_POSTGRES_DSN not set; skipping PostgreSQL tests")
	}

	ctx := context.Background()
	pool, err := Connect(ctx, dsn)
	require.NoError(t, err)

	truncate := func() {
		pool.Exec(ctx, "DELETE FROM sessions")   //nolint:errcheck
		pool.Exec(ctx, "DELETE FROM audit_logs") //nolint:errcheck
	}
	truncate()
	t.Cleanup(func() {
		truncate()
		pool.Close()
	})
	return pool
}

func TestPostgresSessionStore(t *testing.T) {
	storetest.RunSessionStore(t, func(t *testing.T) session.Store {
		return NewSessionStore(newTestPool(t))
	})
}

func TestPostgresAuditStore(t *testing.T) {
	storetest.RunAuditStore(t, func(t *testing.T) audit.Store {
		return NewAuditStore(newTestPool(t))
	})
}
