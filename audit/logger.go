package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/ashley-ai/sentinel/internal/uuid"
	"github.com/ashley-ai/sentinel/kv"
)

const (
	// DefaultQueryLimit applies when Filter.Limit is not positive.
	DefaultQueryLimit = 100
	// MaxQueryLimit caps Filter.Limit.
	MaxQueryLimit = 1000
	// DefaultRetentionDays applies when Cleanup is given no positive value.
	DefaultRetentionDays = 90
	// DefaultStatsDays applies when Statistics is given no positive value.
	DefaultStatsDays = 30
	// DefaultStatsTTL is how long Statistics results are cached.
	DefaultStatsTTL = time.Minute

	statsCachePrefix = "stats:"
)

// Logger writes and reads audit records.
type Logger struct {
	store    Store
	now      func() time.Time
	logger   *slog.Logger
	detector *Detector
	cache    *kv.Cache
	statsTTL time.Duration
}

// Option configures a Logger.
type Option func(*Logger)

// WithLogger sets the logger that receives write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) { l.logger = logger }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// WithAnomalyDetector feeds every written record to d and records a
// CRITICAL SECURITY_ALERT whenever d raises an alert.
func WithAnomalyDetector(d *Detector) Option {
	return func(l *Logger) { l.detector = d }
}

// WithStatsCache caches Statistics results in c for ttl.
func WithStatsCache(c *kv.Cache, ttl time.Duration) Option {
	return func(l *Logger) {
		l.cache = c
		if ttl > 0 {
			l.statsTTL = ttl
		}
	}
}

// New creates a Logger over store.
func New(store Store, opts ...Option) *Logger {
	l := &Logger{
		store:    store,
		now:      time.Now,
		statsTTL: DefaultStatsTTL,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.logger == nil {
		l.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	l.logger = l.logger.With("component", "audit")
	return l
}

// Log records e. It never fails: encoding and storage problems are logged
// locally and the entry is dropped. The write is not cancelled when ctx is.
func (l *Logger) Log(ctx context.Context, e Entry) {
	ctx = context.WithoutCancel(ctx)
	rec := l.record(e)
	if err := l.store.Append(ctx, rec); err != nil {
		l.logger.ErrorContext(ctx, "failed to write audit record",
			"action", rec.Action, "resource", rec.Resource, "user_id", rec.UserID, "error", err)
	}

	if alert := l.detector.Observe(rec); alert != nil {
		l.Log(ctx, Entry{
			Action:   ActionSecurityAlert,
			Severity: SeverityCritical,
			Details: map[string]any{
				"message":   alert.Message,
				"type":      string(alert.Type),
				"count":     alert.Count,
				"threshold": alert.Threshold,
				"window":    alert.Window,
			},
		})
	}
}

func (l *Logger) record(e Entry) Record {
	rec := Record{
		ID:         uuid.New(),
		UserID:     e.UserID,
		Action:     e.Action,
		Resource:   e.Resource,
		ResourceID: e.ResourceID,
		Details:    e.Details,
		IPAddress:  e.IPAddress,
		UserAgent:  e.UserAgent,
		Severity:   e.Severity,
		CreatedAt:  e.CreatedAt,
	}
	if !rec.Severity.Valid() {
		rec.Severity = SeverityInfo
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.now()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.Before = l.snapshot(e.Before, "before")
	rec.After = l.snapshot(e.After, "after")
	return rec
}

func (l *Logger) snapshot(v any, field string) json.RawMessage {
	if v == nil {
		return nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		return raw
	}
	data, err := json.Marshal(v)
	if err != nil {
		l.logger.Warn("dropping unencodable audit snapshot", "field", field, "error", err)
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	return data
}

// Query returns records matching f, newest first.
func (l *Logger) Query(ctx context.Context, f Filter) ([]Record, error) {
	f = normalizeFilter(f)
	records, err := l.store.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("querying audit records: %w", err)
	}
	return records, nil
}

// Count returns how many records match f.
func (l *Logger) Count(ctx context.Context, f Filter) (int64, error) {
	n, err := l.store.Count(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("counting audit records: %w", err)
	}
	return n, nil
}

func normalizeFilter(f Filter) Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultQueryLimit
	}
	if f.Limit > MaxQueryLimit {
		f.Limit = MaxQueryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// Cleanup deletes non-CRITICAL records older than daysToKeep days
// (DefaultRetentionDays when not positive).
func (l *Logger) Cleanup(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep <= 0 {
		daysToKeep = DefaultRetentionDays
	}
	cutoff := l.now().Add(-time.Duration(daysToKeep) * 24 * time.Hour)
	n, err := l.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("deleting audit records: %w", err)
	}
	if n > 0 && l.cache != nil {
		if _, err := l.cache.InvalidatePrefix(ctx, statsCachePrefix); err != nil {
			l.logger.Warn("failed to invalidate audit stats cache", "error", err)
		}
	}
	return n, nil
}

// Statistics tallies records from the trailing days days
// (DefaultStatsDays when not positive).
func (l *Logger) Statistics(ctx context.Context, days int) (Stats, error) {
	if days <= 0 {
		days = DefaultStatsDays
	}
	key := statsCachePrefix + strconv.Itoa(days)
	return kv.Remember(ctx, l.cache, key, l.statsTTL, func(ctx context.Context) (Stats, error) {
		since := l.now().Add(-time.Duration(days) * 24 * time.Hour)
		st, err := l.store.Aggregate(ctx, since)
		if err != nil {
			return Stats{}, fmt.Errorf("aggregating audit records: %w", err)
		}
		return st, nil
	})
}

// RunRetention calls Cleanup every interval until ctx is done.
func (l *Logger) RunRetention(ctx context.Context, interval time.Duration, daysToKeep int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := l.Cleanup(ctx, daysToKeep)
			if err != nil {
				l.logger.Error("audit retention failed", "error", err)
				continue
			}
			if n > 0 {
				l.logger.Info("removed expired audit records", "count", n)
			}
		}
	}
}
