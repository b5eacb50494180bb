package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ashley-ai/sentinel/audit"
	"github.com/ashley-ai/sentinel/ratelimit"
	"github.com/ashley-ai/sentinel/session"
)

// Login verifies credentials against the directory and opens a session. A
// successful login clears the client's auth tier counter and revokes the
// least recently active sessions when the user is at the session cap.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	ctx := r.Context()
	info := audit.RequestInfoFrom(r, a.trusted)

	p, err := a.directory.Authenticate(ctx, req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		a.audit.Log(ctx, audit.Entry{
			Action:    audit.ActionLoginFailed,
			Severity:  audit.SeverityWarning,
			Details:   map[string]any{"username": req.Username},
			IPAddress: info.IPAddress,
			UserAgent: info.UserAgent,
		})
		writeError(w, http.StatusUnauthorized, ErrInvalidCredentials.Error())
		return
	}
	if err != nil {
		a.logger.Error("authentication failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	tier := a.tiers.Get(ratelimit.TierAuth)
	if err := a.limiter.Reset(ctx, tier.Name+":"+ratelimit.ByIP(r, a.trusted), tier.Config); err != nil {
		a.logger.Warn("failed to reset login rate limit", "error", err)
	}

	revoked, err := a.sessions.EnforceCap(ctx, p.UserID)
	if err != nil {
		a.logger.Error("enforcing session cap failed", "user_id", p.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if revoked > 0 {
		a.audit.SessionRevoked(ctx, p.UserID, "", int64(revoked), info)
	}

	s, err := a.sessions.Create(ctx, session.CreateOptions{
		UserID:     p.UserID,
		IPAddress:  info.IPAddress,
		UserAgent:  info.UserAgent,
		RememberMe: req.RememberMe,
	})
	if err != nil {
		a.logger.Error("creating session failed", "user_id", p.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	a.audit.Login(ctx, p.UserID, true, info)
	a.audit.SessionCreated(ctx, p.UserID, s.ID, info)

	writeSessionCookie(w, r, s.Token, s.ExpiresAt)
	writeCSRFCookie(w, r, s.ExpiresAt)
	writeJSON(w, http.StatusOK, LoginResponse{
		Token:           s.Token,
		SessionID:       s.ID,
		ExpiresAt:       s.ExpiresAt,
		RevokedSessions: revoked,
	})
}

// Logout revokes the session that authenticated the request.
func (a *API) Logout(w http.ResponseWriter, r *http.Request, rec audit.Recorder) error {
	st := authFromContext(r.Context())
	if err := a.sessions.Revoke(r.Context(), st.session.ID, st.session.UserID); err != nil {
		return err
	}
	rec(r.Context(), audit.Entry{
		UserID:     st.session.UserID,
		ResourceID: st.session.ID,
		Severity:   audit.SeverityInfo,
	})
	clearSessionCookie(w, r)
	clearCSRFCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
	return nil
}
