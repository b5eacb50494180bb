package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ashley-ai/sentinel/audit"
	"github.com/ashley-ai/sentinel/session"
)

type contextKey int

const authKey contextKey = iota

const sessionCookieName = "sentinel_session"

type authState struct {
	session   *session.Session
	principal Principal
}

// authenticate resolves the bearer token or session cookie, if any, and
// stores the caller on the request context. Requests without a usable
// session pass through anonymously; requireAuth rejects them.
func (a *API) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}

		s, err := a.sessions.Get(r.Context(), token)
		if err != nil {
			a.logger.Error("session lookup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if s == nil {
			next.ServeHTTP(w, r)
			return
		}

		p, err := a.directory.Lookup(r.Context(), s.UserID)
		if errors.Is(err, ErrUnknownUser) {
			next.ServeHTTP(w, r)
			return
		}
		if err != nil {
			a.logger.Error("user lookup failed", "user_id", s.UserID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), authKey, &authState{session: s, principal: p})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if authFromContext(r.Context()) == nil {
			writeError(w, http.StatusUnauthorized, errAuthRequired.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *API) requireAdmin(next http.Handler) http.Handler {
	return a.requireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		st := authFromContext(r.Context())
		if !st.principal.Admin {
			a.audit.AccessDenied(r.Context(), st.principal.UserID, "admin", r.Method+" "+r.URL.Path,
				audit.RequestInfoFrom(r, a.trusted))
			writeError(w, http.StatusForbidden, errAdminRequired.Error())
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func authFromContext(ctx context.Context) *authState {
	st, _ := ctx.Value(authKey).(*authState)
	return st
}

func userIDFromRequest(r *http.Request) string {
	if st := authFromContext(r.Context()); st != nil {
		return st.principal.UserID
	}
	return ""
}

// tokenFromRequest prefers an Authorization bearer token over the session
// cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

func writeSessionCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}
