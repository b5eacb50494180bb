package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ashley-ai/sentinel/audit"
	"github.com/ashley-ai/sentinel/internal/config"
	"github.com/ashley-ai/sentinel/internal/logging"
	"github.com/ashley-ai/sentinel/kv"
	kvmemory "github.com/ashley-ai/sentinel/kv/memory"
	kvredis "github.com/ashley-ai/sentinel/kv/redis"
	"github.com/ashley-ai/sentinel/password"
	"github.com/ashley-ai/sentinel/ratelimit"
	"github.com/ashley-ai/sentinel/session"
	"github.com/ashley-ai/sentinel/storage"
)

// services is everything a command needs, opened from one Config.
type services struct {
	cfg      config.Config
	logger   *slog.Logger
	backend  *storage.Backend
	kv       kv.Store
	sessions *session.Manager
	audit    *audit.Logger
	limiter  *ratelimit.Limiter

	closers []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newLogger(cfg config.Config) (*slog.Logger, io.Closer, error) {
	return logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
}

// openServices opens storage and the key-value store and builds the
// managers on top of them. inMemory selects the process-local backend
// when no PostgreSQL DSN is configured.
func openServices(ctx context.Context, cfg config.Config, inMemory bool) (*services, error) {
	logger, logCloser, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	s := &services{cfg: cfg, logger: logger, closers: []io.Closer{logCloser}}

	s.backend, err = storage.Open(ctx, storage.Options{
		PostgresDSN: cfg.PostgresDSN,
		InMemory:    inMemory,
		DataDir:     cfg.DataDir,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	s.closers = append(s.closers, closerFunc(s.backend.Close))
	logger.Info("storage opened", "backend", s.backend.Name)

	if cfg.RedisURL != "" {
		rs, err := kvredis.NewFromURL(ctx, cfg.RedisURL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.kv = rs
		s.closers = append(s.closers, rs)
		logger.Info("using redis for rate limits and caches")
	} else {
		ms := kvmemory.New()
		s.kv = ms
		s.closers = append(s.closers, ms)
	}

	sessOpts := []session.Option{session.WithLogger(logger)}
	if cfg.Sessions.MaxPerUser > 0 {
		sessOpts = append(sessOpts, session.WithMaxSessions(cfg.Sessions.MaxPerUser))
	}
	s.sessions = session.NewManager(s.backend.Sessions, sessOpts...)

	detOpts := []audit.DetectorOption{
		audit.OnAlert(func(a audit.Alert) {
			logger.Warn("security alert", "type", a.Type, "message", a.Message, "count", a.Count)
		}),
	}
	if cfg.Audit.LoginFailureThreshold > 0 && cfg.Audit.LoginFailureWindow > 0 {
		detOpts = append(detOpts, audit.WithLoginFailureThreshold(cfg.Audit.LoginFailureThreshold, cfg.Audit.LoginFailureWindow))
	}
	s.audit = audit.New(s.backend.Audit,
		audit.WithLogger(logger),
		audit.WithAnomalyDetector(audit.NewDetector(detOpts...)),
		audit.WithStatsCache(kv.NewCache(s.kv, "cache:", logger), cfg.Audit.StatsCacheTTL),
	)

	s.limiter = ratelimit.New(s.kv, ratelimit.WithLogger(logger))
	return s, nil
}

func (s *services) breachChecker() *password.BreachChecker {
	return password.NewBreachChecker(
		password.WithBaseURL(s.cfg.Breach.BaseURL),
		password.WithBreachLogger(s.logger),
	)
}

// Close releases resources in reverse order of acquisition.
func (s *services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
