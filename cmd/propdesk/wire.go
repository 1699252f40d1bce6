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
	"fmt"
	"log/slog"

	"github.com/propdesk/propdesk/internal/apikey"
	"github.com/propdesk/propdesk/internal/audit"
	"github.com/propdesk/propdesk/internal/billing"
	"github.com/propdesk/propdesk/internal/events"
	"github.com/propdesk/propdesk/internal/identity"
	"github.com/propdesk/propdesk/internal/observability/logger"
	"github.com/propdesk/propdesk/internal/observability/metrics"
	"github.com/propdesk/propdesk/internal/observability/tracing"
	"github.com/propdesk/propdesk/internal/ownership"
	"github.com/propdesk/propdesk/internal/store/postgres"
	"github.com/propdesk/propdesk/internal/store/redis"
	"github.com/propdesk/propdesk/internal/tenant"
)

// app holds the wired services shared by the sub-commands
type app struct {
	db        *postgres.DB
	tracer    *tracing.Tracer
	publisher events.Publisher
	lease     *redis.Client

	identity *identity.Service
	tenants  *tenant.Service
	guard    *ownership.Guard
	billing  *billing.Service
	apiKeys  *apikey.Service
	audit    audit.Logger

	closers []func()
}

func connectDB(ctx context.Context) (*postgres.DB, error) {
	db, err := postgres.New(ctx, postgres.Config{
		Host:         cfg.Database.Host,
		Port:         cfg.Database.Port,
		User:         cfg.Database.User,
		Password:     cfg.Database.Password,
		Database:     cfg.Database.Database,
		SSLMode:      cfg.Database.SSLMode,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("connected to database")
	return db, nil
}

// newApp connects the backing stores and builds every service.
// Optional dependencies that are disabled fall back to no-op implementations.
func newApp(ctx context.Context) (*app, error) {
	a := &app{audit: audit.NewSlogLogger()}

	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		slog.Error("failed to initialize tracer, continuing without tracing", logger.Error(err))
		tracer = tracing.NewNoop()
	}
	a.tracer = tracer
	a.closers = append(a.closers, func() { _ = tracer.Shutdown(context.Background()) })

	meter, err := metrics.New(ctx, metrics.Config{Enabled: cfg.Observability.OTELEnabled}, cfg.Observability.ServiceName)
	if err != nil {
		slog.Error("failed to initialize meter, continuing without metrics", logger.Error(err))
		meter = metrics.NewNoop()
	}

	a.db, err = connectDB(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, a.db.Close)

	a.publisher = events.NoopPublisher{}
	if cfg.NATS.Enabled {
		pub, err := events.NewNATSPublisher(events.NATSConfig{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
			Name:          cfg.Observability.ServiceName,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.publisher = pub
		a.closers = append(a.closers, func() { _ = pub.Close() })
		slog.Info("connected to NATS", logger.String("url", cfg.NATS.URL))
	}

	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, redis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.lease = client
		a.closers = append(a.closers, func() { _ = client.Close() })
		slog.Info("connected to Redis")
	}

	tenantRepo := postgres.NewTenantRepository(a.db)

	a.identity = identity.NewService(postgres.NewUserRepository(a.db))
	a.tenants = tenant.NewService(tenantRepo, a.audit)
	a.guard = ownership.NewGuard(postgres.OwnershipLoaders(a.db), cfg.Billing.HideForeignResources)
	a.apiKeys = apikey.NewService(
		postgres.NewAPIKeyRepository(a.db),
		apikey.NewHasher(
			cfg.APIKey.Argon2Memory,
			cfg.APIKey.Argon2Iterations,
			cfg.APIKey.Argon2Parallelism,
			cfg.APIKey.Argon2SaltLength,
			cfg.APIKey.Argon2KeyLength,
		),
		a.audit,
	)

	a.billing, err = billing.NewService(
		postgres.NewInvoiceRepository(a.db),
		tenantRepo,
		a.publisher,
		a.audit,
		meter,
		tracer,
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize billing service: %w", err)
	}

	return a, nil
}

// recomputeLease returns the distributed lease, or nil when Redis is disabled
func (a *app) recomputeLease() billing.Lease {
	if a.lease == nil {
		return nil
	}
	return a.lease
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
