package bbolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"time"

	"go.etcd.io/bbolt"

	"github.com/ashley-ai/sentinel/audit"
)

const auditKind = "audit"

// auditKey orders records by creation time, then ID.
func auditKey(at time.Time, id string) []byte {
	k := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(k, uint64(at.UnixNano()))
	return append(k, id...)
}

func timeKey(at time.Time) []byte {
	return auditKey(at, "")
}

// AuditStore implements audit.Store.
type AuditStore struct {
	db *bbolt.DB
}

var _ audit.Store = (*AuditStore)(nil)

func (s *AuditStore) Append(_ context.Context, r audit.Record) error {
	data, err := seal(auditKind, r)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(auditBucket).Put(auditKey(r.CreatedAt, r.ID), data)
	})
}

// scanNewest walks records newest first until fn returns false.
func (s *AuditStore) scanNewest(f audit.Filter, fn func(audit.Record) bool) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(auditBucket).Cursor()
		var k, v []byte
		if f.End.IsZero() {
			k, v = c.Last()
		} else {
			// Position just past every record at or before End.
			end := timeKey(f.End.Add(time.Nanosecond))
			k, v = c.Seek(end)
			if k == nil {
				k, v = c.Last()
			} else {
				k, v = c.Prev()
			}
		}
		var start []byte
		if !f.Start.IsZero() {
			start = timeKey(f.Start)
		}
		for ; k != nil; k, v = c.Prev() {
			if start != nil && bytes.Compare(k, start) < 0 {
				return nil
			}
			var r audit.Record
			if err := open(v, auditKind, &r); err != nil {
				return err
			}
			if !f.Matches(r) {
				continue
			}
			if !fn(r) {
				return nil
			}
		}
		return nil
	})
}

func (s *AuditStore) Query(_ context.Context, f audit.Filter) ([]audit.Record, error) {
	var (
		out     []audit.Record
		skipped int
	)
	err := s.scanNewest(f, func(r audit.Record) bool {
		if skipped < f.Offset {
			skipped++
			return true
		}
		out = append(out, r)
		return f.Limit <= 0 || len(out) < f.Limit
	})
	return out, err
}

func (s *AuditStore) Count(_ context.Context, f audit.Filter) (int64, error) {
	var n int64
	err := s.scanNewest(f, func(audit.Record) bool {
		n++
		return true
	})
	return n, err
}

func (s *AuditStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	limit := timeKey(cutoff)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(auditBucket)
		var doomed [][]byte
		c := b.Cursor()
		for k, v := c.First(); k != nil && bytes.Compare(k, limit) < 0; k, v = c.Next() {
			var r audit.Record
			if err := open(v, auditKind, &r); err != nil {
				return err
			}
			if r.Severity == audit.SeverityCritical {
				continue
			}
			doomed = append(doomed, bytes.Clone(k))
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		n = int64(len(doomed))
		return nil
	})
	return n, err
}

func (s *AuditStore) Aggregate(_ context.Context, since time.Time) (audit.Stats, error) {
	st := audit.NewStats()
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(auditBucket).Cursor()
		for k, v := c.Seek(timeKey(since)); k != nil; k, v = c.Next() {
			var r audit.Record
			if err := open(v, auditKind, &r); err != nil {
				return err
			}
			st.Add(r.Action, r.Severity, r.CreatedAt)
		}
		return nil
	})
	return st, err
}
