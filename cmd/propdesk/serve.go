// Copyright 2026 The PropDesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/propdesk/propdesk/internal/auth"
	"github.com/propdesk/propdesk/internal/billing"
	"github.com/propdesk/propdesk/internal/observability/logger"
	"github.com/propdesk/propdesk/internal/observability/metrics"
	transportHTTP "github.com/propdesk/propdesk/internal/transport/http"
	"github.com/spf13/cobra"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the scheduled billing recompute",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply database migrations before serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	slog.Info("starting propdesk", logger.String("version", cfg.Observability.ServiceVersion))

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if migrateOnStart {
		if err := a.db.Migrate(ctx); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	var runner *billing.Runner
	if cfg.Billing.RecomputeEnabled {
		runner = billing.NewRunner(a.billing, a.recomputeLease(), billing.RunnerConfig{
			Interval:   cfg.Billing.RecomputeInterval,
			Timeout:    cfg.Billing.RecomputeTimeout,
			RunOnStart: true,
		})
		runner.Start()
	}

	rateLimiter := transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	defer rateLimiter.Stop()

	handler := transportHTTP.NewHandler(
		auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.Leeway),
		a.identity,
		a.tenants,
		a.guard,
		a.billing,
		a.apiKeys,
		a.audit,
		a.db,
		cfg.Billing.WebhookToken,
	)

	router := transportHTTP.NewRouter(handler, transportHTTP.RouterOptions{
		RateLimiter:    rateLimiter,
		Metrics:        metrics.NewHTTPMetrics(cfg.Observability.ServiceName),
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		slog.Info("shutting down server", logger.String("signal", sig.String()))
	case err, ok := <-serverErr:
		if ok {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", logger.Error(err))
	}
	if runner != nil {
		runner.Stop()
	}

	slog.Info("server stopped")
	return runErr
}
