package api

import (
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-openapi/runtime/middleware"

	"github.com/ashley-ai/sentinel/audit"
	"github.com/ashley-ai/sentinel/password"
	"github.com/ashley-ai/sentinel/ratelimit"
	"github.com/ashley-ai/sentinel/session"
	"github.com/ashley-ai/sentinel/upload"
)

// API holds the dependencies needed by the REST handlers.
type API struct {
	directory    Directory
	sessions     *session.Manager
	audit        *audit.Logger
	limiter      *ratelimit.Limiter
	tiers        ratelimit.Tiers
	uploads      *upload.Validator
	breach       *password.BreachChecker
	requirements password.Requirements
	trusted      []netip.Prefix
	logger       *slog.Logger
}

//go:embed openapi.yaml
var openapiSpec []byte

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithTiers replaces the rate limit tiers.
func WithTiers(t ratelimit.Tiers) Option {
	return func(a *API) {
		a.tiers = t
	}
}

// WithTrustedProxies sets the proxies whose forwarding headers are used to
// resolve the client address.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) {
		a.trusted = prefixes
	}
}

// WithUploadValidator sets the validator used by the upload routes.
func WithUploadValidator(v *upload.Validator) Option {
	return func(a *API) {
		a.uploads = v
	}
}

// WithBreachChecker enables breach lookups on password assessment.
func WithBreachChecker(b *password.BreachChecker) Option {
	return func(a *API) {
		a.breach = b
	}
}

// WithPasswordRequirements overrides the password policy.
func WithPasswordRequirements(req password.Requirements) Option {
	return func(a *API) {
		a.requirements = req
	}
}

// New creates a new API instance.
func New(dir Directory, sessions *session.Manager, auditLog *audit.Logger, limiter *ratelimit.Limiter, opts ...Option) *API {
	a := &API{
		directory:    dir,
		sessions:     sessions,
		audit:        auditLog,
		limiter:      limiter,
		tiers:        ratelimit.DefaultTiers(),
		requirements: password.DefaultRequirements(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	a.logger = a.logger.With("component", "api")
	if a.uploads == nil {
		a.uploads = upload.NewValidator(upload.WithLogger(a.logger))
	}
	return a
}

// Router returns a chi.Router with all API routes mounted.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(SecurityHeaders)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", middleware.SwaggerUI(middleware.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", middleware.Redoc(middleware.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Group(func(r chi.Router) {
		r.Use(a.authenticate)
		r.Use(a.limit(ratelimit.TierAPI, ratelimit.UserOrIP(userIDFromRequest, a.trusted)))

		r.With(a.limit(ratelimit.TierAuth, ratelimit.IPKey(a.trusted))).Post("/auth/login", a.Login)
		r.With(a.limit(ratelimit.TierPasswordCheck, ratelimit.IPKey(a.trusted))).Post("/password/assess", a.AssessPassword)

		r.Group(func(r chi.Router) {
			r.Use(a.CSRFMiddleware)

			r.With(a.requireAuth).Method(http.MethodPost, "/auth/logout",
				a.audited(audit.ActionLogout, "session", a.Logout))

			r.Route("/sessions", func(r chi.Router) {
				r.Use(a.requireAuth)
				r.Get("/", a.ListSessions)
				r.Method(http.MethodPost, "/revoke-others",
					a.audited(audit.ActionSessionDestroyed, "session", a.RevokeOtherSessions))
				r.Method(http.MethodDelete, "/{sessionID}",
					a.audited(audit.ActionSessionDestroyed, "session", a.RevokeSession))
				r.Method(http.MethodPost, "/{sessionID}/extend",
					a.audited(audit.ActionUpdate, "session", a.ExtendSession))
			})

			r.With(a.requireAuth, a.limit(ratelimit.TierUpload, ratelimit.UserOrIP(userIDFromRequest, a.trusted))).
				Post("/uploads/validate", a.ValidateUpload)

			r.Route("/admin", func(r chi.Router) {
				r.Use(a.requireAdmin)
				r.Get("/audit", a.ListAuditRecords)
				r.Get("/audit/stats", a.AuditStats)
				r.Get("/sessions/stats", a.SessionStats)
				r.Method(http.MethodPost, "/users/{userID}/logout",
					a.audited(audit.ActionSessionDestroyed, "user", a.ForceLogout))
			})
		})
	})

	return r
}

// audited wraps h so that every failure leaves an audit record behind:
// WARNING for 4xx outcomes, ERROR for 5xx and panics.
func (a *API) audited(action audit.Action, resource string, h audit.HandlerFunc) http.Handler {
	return audit.WithAudit(a.audit, action, resource, h,
		audit.WithTrustedProxies(a.trusted),
		audit.WithUser(userIDFromRequest),
		audit.WithErrorSeverity(errorSeverity),
		audit.WithErrorSink(func(w http.ResponseWriter, _ *http.Request, err error) {
			mapError(w, err)
		}),
	)
}

// limit applies the named tier. Rejections are written to the audit log.
func (a *API) limit(tierName string, keyFn ratelimit.KeyFunc) func(http.Handler) http.Handler {
	tier := a.tiers.Get(tierName)
	return ratelimit.Middleware(a.limiter, tier, keyFn,
		ratelimit.OnDeny(func(r *http.Request, identifier string, _ ratelimit.Result) {
			info := audit.RequestInfoFrom(r, a.trusted)
			a.audit.RateLimitExceeded(r.Context(), userIDFromRequest(r), identifier, tier.Name, info)
		}),
	)
}
