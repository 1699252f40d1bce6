// @title PropDesk API
// @version 1.0.0
// @description Multi-tenant real estate back office: tenant authorization and billing reconciliation

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-Api-Key

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

package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/propdesk/propdesk/internal/apikey"
	"github.com/propdesk/propdesk/internal/audit"
	"github.com/propdesk/propdesk/internal/auth"
	"github.com/propdesk/propdesk/internal/billing"
	"github.com/propdesk/propdesk/internal/identity"
	"github.com/propdesk/propdesk/internal/observability/logger"
	"github.com/propdesk/propdesk/internal/observability/metrics"
	"github.com/propdesk/propdesk/internal/ownership"
	"github.com/propdesk/propdesk/internal/tenant"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// maxRequestBody bounds JSON request bodies
const maxRequestBody = 1 << 20

// HealthChecker reports whether a backing dependency is reachable
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Handler holds HTTP handlers and dependencies
type Handler struct {
	verifier        TokenVerifier
	identityService *identity.Service
	tenantService   *tenant.Service
	guard           OwnershipChecker
	billingService  *billing.Service
	apiKeyService   *apikey.Service
	auditLogger     audit.Logger
	health          HealthChecker
	webhookToken    string
}

// NewHandler creates a new HTTP handler
func NewHandler(
	verifier TokenVerifier,
	identityService *identity.Service,
	tenantService *tenant.Service,
	guard OwnershipChecker,
	billingService *billing.Service,
	apiKeyService *apikey.Service,
	auditLogger audit.Logger,
	health HealthChecker,
	webhookToken string,
) *Handler {
	return &Handler{
		verifier:        verifier,
		identityService: identityService,
		tenantService:   tenantService,
		guard:           guard,
		billingService:  billingService,
		apiKeyService:   apiKeyService,
		auditLogger:     auditLogger,
		health:          health,
		webhookToken:    webhookToken,
	}
}

// RouterOptions holds cross-cutting router settings
type RouterOptions struct {
	RateLimiter    *RateLimiter
	Metrics        *metrics.HTTPMetrics
	RequestTimeout time.Duration
}

// NewRouter creates a new HTTP router
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	if opts.RateLimiter != nil {
		r.Use(RateLimitMiddleware(opts.RateLimiter))
	}
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(opts.RequestTimeout))

	r.Get("/health", h.HealthCheck)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		// Called by the payment gateway; no bearer token.
		r.Post("/webhooks/payments", h.PaymentWebhook)

		r.Group(func(r chi.Router) {
			var keys KeyAuthenticator
			if h.apiKeyService != nil {
				keys = h.apiKeyService
			}
			r.Use(Authenticate(h.verifier, keys))

			// Platform administration
			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireRole(auth.RoleSuperAdmin))

				r.Get("/tenants", h.ListTenants)
				r.Post("/tenants", h.CreateTenant)
				r.Post("/tenants/{tenantID}/activate", h.ActivateTenant)
				r.Post("/tenants/{tenantID}/deactivate", h.DeactivateTenant)
				r.Post("/tenants/{tenantID}/invoices", h.CreateInvoice)
				r.Post("/invoices/{invoiceID}/mark-paid", h.MarkInvoicePaid)
				r.Post("/billing/recompute", h.RecomputeBilling)
			})

			// Tenant-scoped
			r.Group(func(r chi.Router) {
				r.Use(ResolveTenant(h.identityService, h.auditLogger))
				r.Use(AdmitTenant(h.tenantService))

				r.Get("/tenant", h.GetCurrentTenant)
				r.Get("/invoices", h.ListInvoices)
				r.With(RequireOwnership(h.guard, h.auditLogger, ownership.KindInvoice, "invoiceID")).
					Get("/invoices/{invoiceID}", h.GetInvoice)
			})

			// Tenant administration; the role gate runs before tenant resolution
			r.Route("/api-keys", func(r chi.Router) {
				r.Use(RequireRole(auth.RoleAdmin))
				r.Use(ResolveTenant(h.identityService, h.auditLogger))
				r.Use(AdmitTenant(h.tenantService))

				r.Get("/", h.ListAPIKeys)
				r.Post("/", h.CreateAPIKey)
				r.With(RequireOwnership(h.guard, h.auditLogger, ownership.KindAPIKey, "apiKeyID")).
					Delete("/{apiKeyID}", h.RevokeAPIKey)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service and its database are reachable
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			slog.WarnContext(r.Context(), "health check failed", logger.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":  "unhealthy",
				"service": "propdesk",
			})
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "propdesk",
	})
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code string) {
	respondJSON(w, status, map[string]string{
		"error": code,
	})
}

// decodeJSON decodes a bounded JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return errInvalidRequest
	}
	return nil
}
