package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashley-ai/sentinel/session"
	"github.com/ashley-ai/sentinel/storage"
)

func TestOpenMemory(t *testing.T) {
	b, err := storage.Open(context.Background(), storage.Options{InMemory: true, DataDir: t.TempDir()})
	require.NoError(t, err)
	defer b.Close()
	assert.Equal(t, storage.BackendMemory, b.Name)
	assert.NotNil(t, b.Sessions)
	assert.NotNil(t, b.Audit)
}

func TestOpenBBolt(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested", "data")

	b, err := storage.Open(ctx, storage.Options{DataDir: dir})
	require.NoError(t, err)
	assert.Equal(t, storage.BackendBBolt, b.Name)
	assert.FileExists(t, filepath.Join(dir, storage.DBFileName))

	now := time.Now().UTC()
	require.NoError(t, b.Sessions.Insert(ctx, &session.Session{
		ID: "s1", UserID: "u1", TokenHash: "h1", CreatedAt: now,
		ExpiresAt: now.Add(time.Hour), LastActivityAt: now, IsActive: true,
	}))
	require.NoError(t, b.Close())

	b, err = storage.Open(ctx, storage.Options{DataDir: dir})
	require.NoError(t, err)
	defer b.Close()
	n, err := b.Sessions.CountActive(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestOpenNothing(t *testing.T) {
	_, err := storage.Open(context.Background(), storage.Options{})
	assert.ErrorIs(t, err, storage.ErrNoBackend)
}
