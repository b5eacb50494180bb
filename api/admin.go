package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashley-ai/sentinel/audit"
)

// ListAuditRecords returns audit records, newest first. Supported filters
// are user_id, action (repeatable or comma separated), resource, severity,
// and start/end as RFC 3339 timestamps.
func (a *API) ListAuditRecords(w http.ResponseWriter, r *http.Request) {
	f, err := parseAuditFilter(r)
	if err != nil {
		mapError(w, err)
		return
	}
	pg, err := parsePage(r, audit.MaxQueryLimit)
	if err != nil {
		mapError(w, err)
		return
	}
	f.Limit, f.Offset = pg.Limit, pg.Offset

	total, err := a.audit.Count(r.Context(), f)
	if err != nil {
		a.logger.Error("counting audit records failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	records, err := a.audit.Query(r.Context(), f)
	if err != nil {
		a.logger.Error("querying audit records failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if records == nil {
		records = []audit.Record{}
	}

	writeJSON(w, http.StatusOK, AuditListResponse{
		Records:        records,
		PaginationMeta: pg.meta(int(total), len(records)),
	})
}

func parseAuditFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	f := audit.Filter{
		UserID:   q.Get("user_id"),
		Resource: q.Get("resource"),
		Severity: audit.Severity(strings.ToUpper(q.Get("severity"))),
	}
	if f.Severity != "" && !f.Severity.Valid() {
		return f, badRequest("unknown severity %q", q.Get("severity"))
	}
	for _, v := range q["action"] {
		for _, act := range strings.Split(v, ",") {
			if act = strings.TrimSpace(act); act != "" {
				f.Actions = append(f.Actions, audit.Action(strings.ToUpper(act)))
			}
		}
	}

	var err error
	if f.Start, err = parseTime(q.Get("start")); err != nil {
		return f, badRequest("invalid start: %v", err)
	}
	if f.End, err = parseTime(q.Get("end")); err != nil {
		return f, badRequest("invalid end: %v", err)
	}
	return f, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

// AuditStats tallies audit records over the trailing "days" days.
func (a *API) AuditStats(w http.ResponseWriter, r *http.Request) {
	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = n
	}
	st, err := a.audit.Statistics(r.Context(), days)
	if err != nil {
		a.logger.Error("audit statistics failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// SessionStats summarises the session table.
func (a *API) SessionStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.sessions.Stats(r.Context())
	if err != nil {
		a.logger.Error("session statistics failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ForceLogout revokes every session of the user named in the path.
func (a *API) ForceLogout(w http.ResponseWriter, r *http.Request, rec audit.Recorder) error {
	target := chi.URLParam(r, "userID")
	n, err := a.sessions.ForceLogout(r.Context(), target)
	if err != nil {
		return err
	}
	rec(r.Context(), audit.Entry{
		UserID:     userIDFromRequest(r),
		ResourceID: target,
		Details:    map[string]any{"count": n},
		Severity:   audit.SeverityWarning,
	})
	writeJSON(w, http.StatusOK, RevokeResponse{Revoked: n})
	return nil
}
