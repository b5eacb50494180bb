package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/ashley-ai/sentinel/api"
	"github.com/ashley-ai/sentinel/internal/clientip"
	"github.com/ashley-ai/sentinel/internal/directory"
	"github.com/ashley-ai/sentinel/upload"
)

var (
	port           int
	trustedProxies []string
	inMemory       bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("port") {
			cfg.Port = port
		}
		if cmd.Flags().Changed("trusted-proxies") {
			cfg.TrustedProxies = trustedProxies
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		trusted, err := clientip.ParsePrefixes(cfg.TrustedProxies)
		if err != nil {
			return fmt.Errorf("invalid trusted proxies: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := openServices(ctx, cfg, inMemory)
		if err != nil {
			return err
		}
		defer svc.Close()
		logger := svc.logger

		dir, err := directory.New(cfg.Users)
		if err != nil {
			return fmt.Errorf("loading users: %w", err)
		}
		if dir.Len() == 0 {
			logger.Warn("no users configured; every login will fail")
		}

		opts := []api.Option{
			api.WithLogger(logger),
			api.WithTiers(cfg.Tiers()),
			api.WithTrustedProxies(trusted),
			api.WithPasswordRequirements(cfg.Password),
			api.WithUploadValidator(upload.NewValidator(upload.WithLogger(logger))),
		}
		if cfg.Breach.Enabled {
			opts = append(opts, api.WithBreachChecker(svc.breachChecker()))
		}
		a := api.New(dir, svc.sessions, svc.audit, svc.limiter, opts...)

		r := chi.NewRouter()
		r.Use(middleware.Logger)
		r.Use(middleware.Recoverer)

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		r.Mount("/api/v1", a.Router())

		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		}

		go svc.sessions.RunCleanup(ctx, cfg.Sessions.CleanupInterval)
		go svc.audit.RunRetention(ctx, cfg.Audit.RetentionInterval, cfg.Audit.RetentionDays)

		done := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("server failed: %w", err)
				return
			}
			done <- nil
		}()

		printBanner(cmd.OutOrStdout())
		logger.Info("server started", "port", cfg.Port, "storage", svc.backend.Name, "users", dir.Len())

		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringSliceVar(&trustedProxies, "trusted-proxies", nil,
		"CIDRs or addresses of proxies whose forwarding headers are trusted")
	serverCmd.Flags().BoolVar(&inMemory, "in-memory", false,
		"Keep sessions and audit records in memory (lost on exit)")
}
