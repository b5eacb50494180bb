package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/netip"
)

// Recorder writes an entry pre-filled with the wrapped route's action,
// resource, client address and user agent. Non-zero fields of e win.
type Recorder func(ctx context.Context, e Entry)

// HandlerFunc is an audited handler. A returned error is recorded and then
// handed to the error sink.
type HandlerFunc func(w http.ResponseWriter, r *http.Request, rec Recorder) error

// ErrorSink writes the response for an error returned by a HandlerFunc.
type ErrorSink func(w http.ResponseWriter, r *http.Request, err error)

type middlewareOptions struct {
	trusted  []netip.Prefix
	userFrom func(*http.Request) string
	sink     ErrorSink
	severity func(error) Severity
}

// MiddlewareOption configures WithAudit.
type MiddlewareOption func(*middlewareOptions)

// WithTrustedProxies sets the proxies whose forwarding headers are honoured.
func WithTrustedProxies(prefixes []netip.Prefix) MiddlewareOption {
	return func(o *middlewareOptions) { o.trusted = prefixes }
}

// WithUser resolves the acting user for failure records.
func WithUser(fn func(*http.Request) string) MiddlewareOption {
	return func(o *middlewareOptions) { o.userFrom = fn }
}

// WithErrorSink replaces the default 500 response for handler errors.
func WithErrorSink(sink ErrorSink) MiddlewareOption {
	return func(o *middlewareOptions) { o.sink = sink }
}

// WithErrorSeverity classifies returned errors, for example to record
// client mistakes as WARNING. Errors default to ERROR; panics are always
// ERROR.
func WithErrorSeverity(fn func(error) Severity) MiddlewareOption {
	return func(o *middlewareOptions) { o.severity = fn }
}

// WithAudit wraps h so that it can record entries for action on resource
// and so that any failure leaves a record behind (ERROR unless
// WithErrorSeverity says otherwise). Errors are passed
// on to the error sink; panics are recorded and re-raised.
func WithAudit(l *Logger, action Action, resource string, h HandlerFunc, opts ...MiddlewareOption) http.Handler {
	o := middlewareOptions{sink: defaultErrorSink}
	for _, opt := range opts {
		opt(&o)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := RequestInfoFrom(r, o.trusted)
		base := Entry{
			Action:    action,
			Resource:  resource,
			IPAddress: info.IPAddress,
			UserAgent: info.UserAgent,
		}
		rec := func(ctx context.Context, e Entry) {
			l.Log(ctx, merge(base, e))
		}

		failed := func(sev Severity, cause string) {
			e := base
			e.Severity = sev
			e.Details = map[string]any{"error": cause}
			if o.userFrom != nil {
				e.UserID = o.userFrom(r)
			}
			l.Log(r.Context(), e)
		}

		defer func() {
			if p := recover(); p != nil {
				failed(SeverityError, fmt.Sprint(p))
				panic(p)
			}
		}()

		if err := h(w, r, rec); err != nil {
			sev := SeverityError
			if o.severity != nil {
				sev = o.severity(err)
			}
			failed(sev, err.Error())
			o.sink(w, r, err)
		}
	})
}

func merge(base, e Entry) Entry {
	out := e
	if out.Action == "" {
		out.Action = base.Action
	}
	if out.Resource == "" {
		out.Resource = base.Resource
	}
	if out.IPAddress == "" {
		out.IPAddress = base.IPAddress
	}
	if out.UserAgent == "" {
		out.UserAgent = base.UserAgent
	}
	return out
}

func defaultErrorSink(w http.ResponseWriter, _ *http.Request, _ error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
