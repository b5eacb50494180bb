// Package bbolt provides session and audit stores backed by an embedded
// BBolt database file.
//
// Sessions live in one bucket keyed by ID with two secondary indexes: token
// hash to ID, and a nested bucket per user listing that user's session IDs.
// Audit records are keyed by big-endian creation time followed by the
// record ID, so a cursor walks them in chronological order.
package bbolt

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	sessionsBucket = []byte("sessions")
	tokensBucket   = []byte("session_tokens")
	usersBucket    = []byte("session_users")
	auditBucket    = []byte("audit")
)

// DefaultOpenTimeout bounds how long Open waits for the file lock.
const DefaultOpenTimeout = time.Second

// DB wraps an open BBolt database holding both stores.
type DB struct {
	db *bbolt.DB
}

// New prepares the buckets in an already open database.
func New(db *bbolt.DB) (*DB, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{sessionsBucket, tokensBucket, usersBucket, auditBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &DB{db: db}, nil
}

// Open opens or creates the database file at path.
func Open(path string, options *bbolt.Options) (*DB, error) {
	if options == nil {
		options = &bbolt.Options{Timeout: DefaultOpenTimeout}
	}
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	d, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// Sessions returns the session store.
func (d *DB) Sessions() *SessionStore {
	return &SessionStore{db: d.db}
}

// Audit returns the audit store.
func (d *DB) Audit() *AuditStore {
	return &AuditStore{db: d.db}
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}
