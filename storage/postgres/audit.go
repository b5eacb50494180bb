package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ashley-ai/sentinel/audit"
)

const auditColumns = `id, COALESCE(user_id, ''), action, resource, resource_id,
	COALESCE(details::text, ''), COALESCE(before_data::text, ''), COALESCE(after_data::text, ''),
	ip_address, user_agent, severity, created_at`

// AuditStore implements audit.Store.
type AuditStore struct {
	db DB
}

var _ audit.Store = (*AuditStore)(nil)

// NewAuditStore returns an AuditStore using db.
func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, r audit.Record) error {
	var details []byte
	if len(r.Details) > 0 {
		b, err := json.Marshal(r.Details)
		if err != nil {
			return fmt.Errorf("encoding details: %w", err)
		}
		details = b
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO audit_logs (id, user_id, action, resource, resource_id, details, before_data, after_data, ip_address, user_agent, severity, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8::jsonb, $9, $10, $11, $12)`,
		r.ID, nullIfEmpty(r.UserID), string(r.Action), r.Resource, r.ResourceID,
		jsonArg(details), jsonArg(r.Before), jsonArg(r.After),
		r.IPAddress, r.UserAgent, string(r.Severity), r.CreatedAt)
	return err
}

// where renders the predicates of f and their arguments.
func where(f audit.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if len(f.Actions) > 0 {
		actions := make([]string, len(f.Actions))
		for i, a := range f.Actions {
			actions[i] = string(a)
		}
		add("action = ANY($%d)", actions)
	}
	if f.Resource != "" {
		add("resource = $%d", f.Resource)
	}
	if f.Severity != "" {
		add("severity = $%d", string(f.Severity))
	}
	if !f.Start.IsZero() {
		add("created_at >= $%d", f.Start)
	}
	if !f.End.IsZero() {
		add("created_at <= $%d", f.End)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *AuditStore) Query(ctx context.Context, f audit.Filter) ([]audit.Record, error) {
	clause, args := where(f)
	sql := `SELECT ` + auditColumns + ` FROM audit_logs` + clause + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		sql += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		sql += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []audit.Record
	for rows.Next() {
		var (
			r                      audit.Record
			action, severity       string
			details, before, after string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &action, &r.Resource, &r.ResourceID,
			&details, &before, &after, &r.IPAddress, &r.UserAgent, &severity, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Action = audit.Action(action)
		r.Severity = audit.Severity(severity)
		if details != "" {
			if err := json.Unmarshal([]byte(details), &r.Details); err != nil {
				return nil, fmt.Errorf("decoding details of %s: %w", r.ID, err)
			}
		}
		if before != "" {
			r.Before = json.RawMessage(before)
		}
		if after != "" {
			r.After = json.RawMessage(after)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *AuditStore) Count(ctx context.Context, f audit.Filter) (int64, error) {
	clause, args := where(f)
	var n int64
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM audit_logs`+clause, args...).Scan(&n)
	return n, err
}

func (s *AuditStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM audit_logs WHERE created_at < $1 AND severity <> $2`,
		cutoff, string(audit.SeverityCritical))
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *AuditStore) Aggregate(ctx context.Context, since time.Time) (audit.Stats, error) {
	rows, err := s.db.Query(ctx,
		`SELECT action, severity, to_char(created_at AT TIME ZONE 'UTC', 'YYYY-MM-DD'), COUNT(*)
		 FROM audit_logs WHERE created_at >= $1
		 GROUP BY 1, 2, 3`,
		since)
	if err != nil {
		return audit.Stats{}, err
	}
	defer rows.Close()

	st := audit.NewStats()
	for rows.Next() {
		var (
			action, severity, day string
			n                     int64
		)
		if err := rows.Scan(&action, &severity, &day, &n); err != nil {
			return audit.Stats{}, err
		}
		st.Total += n
		st.ByAction[audit.Action(action)] += n
		st.BySeverity[audit.Severity(severity)] += n
		st.ByDay[day] += n
	}
	return st, rows.Err()
}
