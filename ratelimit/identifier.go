package ratelimit

import (
	"net/http"
	"net/netip"
	"strings"

	"github.com/ashley-ai/sentinel/internal/clientip"
	"github.com/ashley-ai/sentinel/internal/util"
)

// KeyFunc derives the rate limit identifier for a request.
type KeyFunc func(r *http.Request) string

// ByIP returns "ip:<addr>" for the client of r. See clientip.FromRequest
// for how forwarding headers are treated.
func ByIP(r *http.Request, trustedProxies []netip.Prefix) string {
	return "ip:" + clientip.FromRequest(r, trustedProxies)
}

// ByAPIKey returns "apikey:<digest>" for the X-API-Key header, or
// "apikey:anonymous" when it is absent. Only a digest of the key reaches
// the store.
func ByAPIKey(r *http.Request) string {
	key := strings.TrimSpace(r.Header.Get("X-API-Key"))
	if key == "" {
		return "apikey:anonymous"
	}
	return "apikey:" + util.SHA256Hex([]byte(key))[:16]
}

// ByUser returns "user:<id>".
func ByUser(userID string) string {
	return "user:" + userID
}

// IPKey adapts ByIP to a KeyFunc.
func IPKey(trustedProxies []netip.Prefix) KeyFunc {
	return func(r *http.Request) string { return ByIP(r, trustedProxies) }
}

// APIKey is ByAPIKey as a KeyFunc.
var APIKey KeyFunc = ByAPIKey

// UserOrIP keys authenticated requests by user id and everything else by
// client address. userFromRequest returns "" for anonymous requests.
func UserOrIP(userFromRequest func(*http.Request) string, trustedProxies []netip.Prefix) KeyFunc {
	return func(r *http.Request) string {
		if userFromRequest != nil {
			if id := userFromRequest(r); id != "" {
				return ByUser(id)
			}
		}
		return ByIP(r, trustedProxies)
	}
}
