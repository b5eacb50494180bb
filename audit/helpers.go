package audit

import (
	"context"
	"net/http"
	"net/netip"

	"github.com/ashley-ai/sentinel/internal/clientip"
)

// RequestInfo carries the origin of an audited request.
type RequestInfo struct {
	IPAddress string
	UserAgent string
}

// RequestInfoFrom extracts the client address and user agent of r.
func RequestInfoFrom(r *http.Request, trustedProxies []netip.Prefix) RequestInfo {
	return RequestInfo{
		IPAddress: clientip.FromRequest(r, trustedProxies),
		UserAgent: clientip.UserAgent(r),
	}
}

// Login records a successful (LOGIN, INFO) or failed (LOGIN_FAILED,
// WARNING) login.
func (l *Logger) Login(ctx context.Context, userID string, success bool, info RequestInfo) {
	e := Entry{
		UserID:    userID,
		Action:    ActionLogin,
		Severity:  SeverityInfo,
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
	}
	if !success {
		e.Action = ActionLoginFailed
		e.Severity = SeverityWarning
	}
	l.Log(ctx, e)
}

// Logout records a LOGOUT.
func (l *Logger) Logout(ctx context.Context, userID string, info RequestInfo) {
	l.Log(ctx, Entry{
		UserID:    userID,
		Action:    ActionLogout,
		Severity:  SeverityInfo,
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
	})
}

// Create records a CREATE with data as the after snapshot.
func (l *Logger) Create(ctx context.Context, userID, resource, resourceID string, data any, info RequestInfo) {
	l.Log(ctx, Entry{
		UserID:     userID,
		Action:     ActionCreate,
		Resource:   resource,
		ResourceID: resourceID,
		Severity:   SeverityInfo,
		After:      data,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
	})
}

// Update records an UPDATE with both snapshots.
func (l *Logger) Update(ctx context.Context, userID, resource, resourceID string, before, after any, info RequestInfo) {
	l.Log(ctx, Entry{
		UserID:     userID,
		Action:     ActionUpdate,
		Resource:   resource,
		ResourceID: resourceID,
		Severity:   SeverityInfo,
		Before:     before,
		After:      after,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
	})
}

// Delete records a DELETE (WARNING) with data as the before snapshot.
func (l *Logger) Delete(ctx context.Context, userID, resource, resourceID string, data any, info RequestInfo) {
	l.Log(ctx, Entry{
		UserID:     userID,
		Action:     ActionDelete,
		Resource:   resource,
		ResourceID: resourceID,
		Severity:   SeverityWarning,
		Before:     data,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
	})
}

// AccessDenied records an ACCESS_DENIED (WARNING) for attemptedAction on
// resource.
func (l *Logger) AccessDenied(ctx context.Context, userID, resource, attemptedAction string, info RequestInfo) {
	l.Log(ctx, Entry{
		UserID:    userID,
		Action:    ActionAccessDenied,
		Resource:  resource,
		Severity:  SeverityWarning,
		Details:   map[string]any{"attempted_action": attemptedAction},
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
	})
}

// SecurityAlert records a CRITICAL SECURITY_ALERT. message is merged into
// details under "message".
func (l *Logger) SecurityAlert(ctx context.Context, userID, message string, details map[string]any, info RequestInfo) {
	d := make(map[string]any, len(details)+1)
	for k, v := range details {
		d[k] = v
	}
	d["message"] = message
	l.Log(ctx, Entry{
		UserID:    userID,
		Action:    ActionSecurityAlert,
		Severity:  SeverityCritical,
		Details:   d,
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
	})
}

// Export records an EXPORT of recordCount records in format.
func (l *Logger) Export(ctx context.Context, userID, resource, format string, recordCount int, info RequestInfo) {
	l.Log(ctx, Entry{
		UserID:    userID,
		Action:    ActionExport,
		Resource:  resource,
		Severity:  SeverityInfo,
		Details:   map[string]any{"format": format, "record_count": recordCount},
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
	})
}

// RateLimitExceeded records a rejected request for identifier on tier.
func (l *Logger) RateLimitExceeded(ctx context.Context, userID, identifier, tier string, info RequestInfo) {
	l.Log(ctx, Entry{
		UserID:    userID,
		Action:    ActionRateLimitExceeded,
		Resource:  "rate_limit",
		Severity:  SeverityWarning,
		Details:   map[string]any{"identifier": identifier, "tier": tier},
		IPAddress: info.IPAddress,
		UserAgent: info.UserAgent,
	})
}

// SessionCreated records a new session for userID.
func (l *Logger) SessionCreated(ctx context.Context, userID, sessionID string, info RequestInfo) {
	l.Log(ctx, Entry{
		UserID:     userID,
		Action:     ActionSessionCreated,
		Resource:   "session",
		ResourceID: sessionID,
		Severity:   SeverityInfo,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
	})
}

// SessionRevoked records that actorID ended sessionID. An empty sessionID
// with a positive count records a bulk revocation.
func (l *Logger) SessionRevoked(ctx context.Context, actorID, sessionID string, count int64, info RequestInfo) {
	e := Entry{
		UserID:     actorID,
		Action:     ActionSessionDestroyed,
		Resource:   "session",
		ResourceID: sessionID,
		Severity:   SeverityInfo,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
	}
	if sessionID == "" {
		e.Details = map[string]any{"revoked_count": count}
	}
	l.Log(ctx, e)
}
