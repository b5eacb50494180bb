package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// DenyFunc is called after a request has been rejected.
type DenyFunc func(r *http.Request, identifier string, res Result)

type middlewareOptions struct {
	onDeny  DenyFunc
	message string
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareOptions)

// OnDeny registers a hook that runs for every rejected request.
func OnDeny(fn DenyFunc) MiddlewareOption {
	return func(o *middlewareOptions) { o.onDeny = fn }
}

// WithMessage overrides the error text of the 429 body.
func WithMessage(msg string) MiddlewareOption {
	return func(o *middlewareOptions) { o.message = msg }
}

type deniedResponse struct {
	Error             string `json:"error"`
	Code              string `json:"code"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
	ResetAt           string `json:"reset_at"`
}

// Middleware limits requests to tier, keyed by keyFn. Every response carries
// the X-RateLimit-* headers. Rejected requests get 429 with a Retry-After
// header and never reach next.
func Middleware(l *Limiter, tier Tier, keyFn KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	o := middlewareOptions{message: "Too many requests, please try again later."}
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := keyFn(r)
			res := l.Check(r.Context(), tier.Name+":"+identifier, tier.Config)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if res.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			secs := int(res.RetryAfter / time.Second)
			h.Set("Retry-After", strconv.Itoa(secs))
			h.Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(deniedResponse{
				Error:             o.message,
				Code:              "RATE_LIMIT_EXCEEDED",
				RetryAfterSeconds: secs,
				ResetAt:           res.ResetAt.UTC().Format(time.RFC3339),
			})

			if o.onDeny != nil {
				o.onDeny(r, identifier, res)
			}
		})
	}
}
