// Package clientip resolves the originating address of an HTTP request.
package clientip

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// Unknown is returned when no address can be determined.
const Unknown = "unknown"

// FromRequest resolves the client address of r.
//
// Forwarding headers (the first X-Forwarded-For entry, then X-Real-IP) are
// honoured when trusted is empty or when the direct peer falls inside one
// of the trusted prefixes. Otherwise, or when the headers do not parse, the
// peer address is used. Unknown is returned when nothing parses.
func FromRequest(r *http.Request, trusted []netip.Prefix) string {
	remoteIP, _ := parse(r.RemoteAddr)

	if headersTrusted(remoteIP, trusted) {
		if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip, ok := parse(first); ok {
				return ip
			}
		}
		if ip, ok := parse(r.Header.Get("X-Real-IP")); ok {
			return ip
		}
	}

	if remoteIP != "" {
		return remoteIP
	}
	return Unknown
}

// UserAgent returns the User-Agent header or Unknown.
func UserAgent(r *http.Request) string {
	if ua := r.UserAgent(); ua != "" {
		return ua
	}
	return Unknown
}

func headersTrusted(remoteIP string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return true
	}
	addr, err := netip.ParseAddr(remoteIP)
	if err != nil {
		return false
	}
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// ParsePrefixes parses CIDRs or bare addresses. Bare addresses become
// single-host prefixes.
func ParsePrefixes(values []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.Contains(v, "/") {
			p, err := netip.ParsePrefix(v)
			if err != nil {
				return nil, err
			}
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(v)
		if err != nil {
			return nil, err
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

func parse(raw string) (string, bool) {
	s := strings.Trim(strings.TrimSpace(raw), "\"")
	if s == "" {
		return "", false
	}
	// RFC 7239 style values may carry a port: [::1]:1234.
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
	// Drop the zone (fe80::1%eth0).
	if i := strings.IndexByte(s, '%'); i >= 0 {
		s = s[:i]
	}
	if addr, err := netip.ParseAddr(s); err == nil {
		return addr.Unmap().String(), true
	}
	return "", false
}
