// Package audit records who did what, to which resource, from where.
//
// Writes are best effort: a failing store is reported through slog and
// never surfaces to the caller, so auditing cannot abort the action it
// describes. Records are immutable once written; the only deletion path is
// the retention sweep, which keeps CRITICAL records forever.
package audit

import (
	"context"
	"encoding/json"
	"slices"
	"time"
)

// Action identifies what happened.
type Action string

const (
	ActionLogin            Action = "LOGIN"
	ActionLogout           Action = "LOGOUT"
	ActionLoginFailed      Action = "LOGIN_FAILED"
	ActionPasswordChange   Action = "PASSWORD_CHANGE"
	Action2FAEnable        Action = "2FA_ENABLE"
	Action2FADisable       Action = "2FA_DISABLE"
	ActionSessionCreated   Action = "SESSION_CREATED"
	ActionSessionDestroyed Action = "SESSION_DESTROYED"

	ActionCreate     Action = "CREATE"
	ActionRead       Action = "READ"
	ActionUpdate     Action = "UPDATE"
	ActionDelete     Action = "DELETE"
	ActionBulkDelete Action = "BULK_DELETE"
	ActionBulkUpdate Action = "BULK_UPDATE"

	ActionPermissionGranted Action = "PERMISSION_GRANTED"
	ActionPermissionRevoked Action = "PERMISSION_REVOKED"
	ActionAccessDenied      Action = "ACCESS_DENIED"
	ActionRoleChanged       Action = "ROLE_CHANGED"

	ActionExport   Action = "EXPORT"
	ActionDownload Action = "DOWNLOAD"
	ActionPrint    Action = "PRINT"

	ActionSettingsChange Action = "SETTINGS_CHANGE"
	ActionConfigChange   Action = "CONFIG_CHANGE"

	ActionSecurityAlert      Action = "SECURITY_ALERT"
	ActionSuspiciousActivity Action = "SUSPICIOUS_ACTIVITY"
	ActionRateLimitExceeded  Action = "RATE_LIMIT_EXCEEDED"
)

// Severity classifies a record. CRITICAL records survive retention.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityError    Severity = "ERROR"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}

// Entry is what callers hand to Log. Before and After are arbitrary values
// that are JSON-encoded as snapshots.
type Entry struct {
	UserID     string
	Action     Action
	Resource   string
	ResourceID string
	Details    map[string]any
	Before     any
	After      any
	IPAddress  string
	UserAgent  string
	Severity   Severity
	// CreatedAt defaults to the logger's clock.
	CreatedAt time.Time
}

// Record is a stored audit entry.
type Record struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id,omitempty"`
	Action     Action          `json:"action"`
	Resource   string          `json:"resource,omitempty"`
	ResourceID string          `json:"resource_id,omitempty"`
	Details    map[string]any  `json:"details,omitempty"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	IPAddress  string          `json:"ip_address,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	Severity   Severity        `json:"severity"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Filter selects records. Zero fields do not constrain.
type Filter struct {
	UserID   string
	Actions  []Action
	Resource string
	Severity Severity
	// Start and End bound CreatedAt inclusively.
	Start time.Time
	End   time.Time
	// Limit defaults to DefaultQueryLimit.
	Limit  int
	Offset int
}

// Matches reports whether r passes every predicate of f. Limit and Offset
// are not considered.
func (f Filter) Matches(r Record) bool {
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if len(f.Actions) > 0 && !slices.Contains(f.Actions, r.Action) {
		return false
	}
	if f.Resource != "" && r.Resource != f.Resource {
		return false
	}
	if f.Severity != "" && r.Severity != f.Severity {
		return false
	}
	if !f.Start.IsZero() && r.CreatedAt.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && r.CreatedAt.After(f.End) {
		return false
	}
	return true
}

// Page applies Offset and Limit to records that are already filtered and
// ordered.
func (f Filter) Page(records []Record) []Record {
	if f.Offset >= len(records) {
		return nil
	}
	records = records[f.Offset:]
	if f.Limit > 0 && len(records) > f.Limit {
		records = records[:f.Limit]
	}
	return records
}

// SortNewestFirst orders records by CreatedAt descending, breaking ties by
// ID so pagination is stable.
func SortNewestFirst(records []Record) {
	slices.SortFunc(records, func(a, b Record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})
}

// Stats aggregates records over a trailing window.
type Stats struct {
	Total      int64              `json:"total"`
	ByAction   map[Action]int64   `json:"by_action"`
	BySeverity map[Severity]int64 `json:"by_severity"`
	// ByDay is keyed by UTC calendar day, "2006-01-02".
	ByDay map[string]int64 `json:"by_day"`
}

// DayLayout is the key format of Stats.ByDay.
const DayLayout = "2006-01-02"

// NewStats returns an empty Stats with allocated maps.
func NewStats() Stats {
	return Stats{
		ByAction:   make(map[Action]int64),
		BySeverity: make(map[Severity]int64),
		ByDay:      make(map[string]int64),
	}
}

// Add counts one record.
func (s *Stats) Add(action Action, severity Severity, at time.Time) {
	s.Total++
	s.ByAction[action]++
	s.BySeverity[severity]++
	s.ByDay[at.UTC().Format(DayLayout)]++
}

// Store persists audit records.
type Store interface {
	// Append stores one record.
	Append(ctx context.Context, r Record) error
	// Query returns records matching f, newest first, paginated by
	// f.Limit and f.Offset.
	Query(ctx context.Context, f Filter) ([]Record, error)
	// Count returns how many records match f, ignoring pagination.
	Count(ctx context.Context, f Filter) (int64, error)
	// DeleteBefore removes non-CRITICAL records created before cutoff.
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	// Aggregate tallies records created at or after since.
	Aggregate(ctx context.Context, since time.Time) (Stats, error)
}
