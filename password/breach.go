package password

import (
	"bufio"
	"context"
	"crypto/sha1"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/ashley-ai/sentinel/internal/util"
)

const (
	// DefaultBreachURL is the public k-anonymity range endpoint.
	DefaultBreachURL = "https://api.pwnedpasswords.com"
	// prefixLen is how many hex characters of the SHA-1 digest are sent.
	prefixLen = 5

	defaultBreachTimeout   = 5 * time.Second
	defaultBreachRate      = rate.Limit(10)
	defaultBreachBurst     = 10
	defaultBreachCacheSize = 1024
	defaultBreachCacheTTL  = 1 * time.Hour
	maxRangeBody           = 4 << 20
)

// BreachResult is the outcome of a breach check. Checked is false when the
// lookup could not be completed, in which case Pwned is always false.
type BreachResult struct {
	Pwned   bool `json:"pwned"`
	Count   int  `json:"count"`
	Checked bool `json:"checked"`
}

// BreachChecker queries a range API with the first five hex characters of
// a password's SHA-1 digest and matches the returned suffixes locally.
type BreachChecker struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	cache   *expirable.LRU[string, map[string]int]
	logger  *slog.Logger
}

// BreachOption configures a BreachChecker.
type BreachOption func(*BreachChecker)

// WithBaseURL points the checker at another range API host.
func WithBaseURL(u string) BreachOption {
	return func(b *BreachChecker) { b.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) BreachOption {
	return func(b *BreachChecker) { b.client = c }
}

// WithRateLimit throttles outbound range requests.
func WithRateLimit(r rate.Limit, burst int) BreachOption {
	return func(b *BreachChecker) { b.limiter = rate.NewLimiter(r, burst) }
}

// WithCache sizes the per-prefix response cache. A size of zero disables it.
func WithCache(size int, ttl time.Duration) BreachOption {
	return func(b *BreachChecker) {
		if size <= 0 {
			b.cache = nil
			return
		}
		b.cache = expirable.NewLRU[string, map[string]int](size, nil, ttl)
	}
}

// WithBreachLogger sets the structured logger.
func WithBreachLogger(l *slog.Logger) BreachOption {
	return func(b *BreachChecker) { b.logger = l }
}

// NewBreachChecker returns a checker for the public range API.
func NewBreachChecker(opts ...BreachOption) *BreachChecker {
	b := &BreachChecker{
		baseURL: DefaultBreachURL,
		client:  &http.Client{Timeout: defaultBreachTimeout},
		limiter: rate.NewLimiter(defaultBreachRate, defaultBreachBurst),
		cache:   expirable.NewLRU[string, map[string]int](defaultBreachCacheSize, nil, defaultBreachCacheTTL),
		logger:  slog.New(slog.NewJSONHandler(os.Stderr, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "password")
	return b
}

// Check looks pw up. Any failure is logged and reported as not pwned.
func (b *BreachChecker) Check(ctx context.Context, pw string) BreachResult {
	sum := sha1.Sum([]byte(pw))
	digest := strings.ToUpper(util.HexEncode(sum[:]))
	util.WipeBytes(sum[:])
	prefix, suffix := digest[:prefixLen], digest[prefixLen:]

	suffixes, err := b.lookup(ctx, prefix)
	if err != nil {
		b.logger.Warn("breach check failed, treating password as not pwned", "error", err)
		return BreachResult{}
	}
	count := suffixes[suffix]
	return BreachResult{Pwned: count > 0, Count: count, Checked: true}
}

func (b *BreachChecker) lookup(ctx context.Context, prefix string) (map[string]int, error) {
	if b.cache != nil {
		if m, ok := b.cache.Get(prefix); ok {
			return m, nil
		}
	}
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/range/"+prefix, nil)
	if err != nil {
		return nil, fmt.Errorf("building range request: %w", err)
	}
	req.Header.Set("Add-Padding", "true")
	req.Header.Set("User-Agent", "sentinel-password-check")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting range %s: %w", prefix, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("range %s: unexpected status %d", prefix, resp.StatusCode)
	}

	m, err := parseRange(io.LimitReader(resp.Body, maxRangeBody))
	if err != nil {
		return nil, fmt.Errorf("reading range %s: %w", prefix, err)
	}
	if b.cache != nil {
		b.cache.Add(prefix, m)
	}
	return m, nil
}

// parseRange reads "SUFFIX:COUNT" lines. Padding entries with a zero count
// are dropped.
func parseRange(r io.Reader) (map[string]int, error) {
	m := make(map[string]int)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		suffix, count, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n <= 0 {
			continue
		}
		m[strings.ToUpper(suffix)] = n
	}
	return m, sc.Err()
}
