package password_test

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/ashley-ai/sentinel/password"
)

func sha1Upper(s string) string {
	sum := sha1.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

type rangeServer struct {
	*httptest.Server
	hits     atomic.Int32
	prefixes chan string
}

func newRangeServer(t *testing.T, counts map[string]int) *rangeServer {
	t.Helper()
	rs := &rangeServer{prefixes: make(chan string, 16)}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.hits.Add(1)
		prefix := strings.TrimPrefix(r.URL.Path, "/range/")
		rs.prefixes <- prefix
		assert.Equal(t, "true", r.Header.Get("Add-Padding"))

		var b strings.Builder
		for pw, n := range counts {
			d := sha1Upper(pw)
			if d[:5] == prefix {
				fmt.Fprintf(&b, "%s:%d\r\n", d[5:], n)
			}
		}
		b.WriteString("0000000000000000000000000000000000A:0\r\n")
		_, _ = io.WriteString(w, b.String())
	}))
	t.Cleanup(rs.Close)
	return rs
}

func newChecker(url string, opts ...password.BreachOption) *password.BreachChecker {
	base := []password.BreachOption{
		password.WithBaseURL(url),
		password.WithRateLimit(rate.Inf, 1),
		password.WithBreachLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return password.NewBreachChecker(append(base, opts...)...)
}

func TestBreachCheckPwned(t *testing.T) {
	srv := newRangeServer(t, map[string]int{"password123": 251682})
	c := newChecker(srv.URL)

	res := c.Check(context.Background(), "password123")
	assert.Equal(t, password.BreachResult{Pwned: true, Count: 251682, Checked: true}, res)

	// Only the five-character prefix leaves the process.
	assert.Equal(t, sha1Upper("password123")[:5], <-srv.prefixes)
}

func TestBreachCheckNotPwned(t *testing.T) {
	srv := newRangeServer(t, map[string]int{"password123": 10})
	c := newChecker(srv.URL)

	res := c.Check(context.Background(), "UniqueP@ssw0rd#2026!")
	assert.Equal(t, password.BreachResult{Checked: true}, res)
}

func TestBreachCheckCachesPrefix(t *testing.T) {
	srv := newRangeServer(t, map[string]int{"password123": 3})
	c := newChecker(srv.URL, password.WithCache(16, time.Minute))

	for range 3 {
		assert.True(t, c.Check(context.Background(), "password123").Pwned)
	}
	assert.Equal(t, int32(1), srv.hits.Load())
}

func TestBreachCheckFailsOpen(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		res := newChecker(srv.URL).Check(context.Background(), "password123")
		assert.Equal(t, password.BreachResult{}, res)
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		res := newChecker(url).Check(context.Background(), "password123")
		assert.False(t, res.Checked)
		assert.False(t, res.Pwned)
	})

	t.Run("canceled", func(t *testing.T) {
		srv := newRangeServer(t, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := newChecker(srv.URL, password.WithCache(0, 0)).Check(ctx, "password123")
		assert.False(t, res.Checked)
	})
}
