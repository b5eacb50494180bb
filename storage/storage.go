// Package storage selects and opens the session and audit persistence
// backend.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ashley-ai/sentinel/audit"
	"github.com/ashley-ai/sentinel/session"
	"github.com/ashley-ai/sentinel/storage/bbolt"
	"github.com/ashley-ai/sentinel/storage/memory"
	"github.com/ashley-ai/sentinel/storage/postgres"
)

// Backend names.
const (
	BackendMemory   = "memory"
	BackendBBolt    = "bbolt"
	BackendPostgres = "postgres"
)

// DBFileName is the BBolt file created inside the data directory.
const DBFileName = "sentinel.db"

// ErrNoBackend is returned when Options selects nothing.
var ErrNoBackend = errors.New("no storage backend configured")

// Options selects a backend. A PostgreSQL DSN wins over InMemory, which
// wins over a BBolt file in DataDir.
type Options struct {
	PostgresDSN string
	InMemory    bool
	DataDir     string
}

// Backend is an opened pair of stores.
type Backend struct {
	Name     string
	Sessions session.Store
	Audit    audit.Store

	close func() error
}

// Close releases the backend's resources.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// Open opens the backend selected by opts.
func Open(ctx context.Context, opts Options) (*Backend, error) {
	switch {
	case opts.PostgresDSN != "":
		pool, err := postgres.Connect(ctx, opts.PostgresDSN)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Name:     BackendPostgres,
			Sessions: postgres.NewSessionStore(pool),
			Audit:    postgres.NewAuditStore(pool),
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil

	case opts.InMemory:
		return &Backend{
			Name:     BackendMemory,
			Sessions: memory.NewSessionStore(),
			Audit:    memory.NewAuditStore(),
		}, nil

	case opts.DataDir != "":
		if err := os.MkdirAll(opts.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		db, err := bbolt.Open(filepath.Join(opts.DataDir, DBFileName), nil)
		if err != nil {
			return nil, err
		}
		return &Backend{
			Name:     BackendBBolt,
			Sessions: db.Sessions(),
			Audit:    db.Audit(),
			close:    db.Close,
		}, nil
	}
	return nil, ErrNoBackend
}
