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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/propdesk/propdesk/internal/apikey"
	"github.com/propdesk/propdesk/internal/audit"
	"github.com/propdesk/propdesk/internal/auth"
	"github.com/propdesk/propdesk/internal/observability/logger"
	"github.com/propdesk/propdesk/internal/ownership"
	"github.com/propdesk/propdesk/internal/tenant"
)

// apiKeyHeader carries a tenant API key for machine clients
const apiKeyHeader = "X-Api-Key"

// apiKeySubjectPrefix marks identities derived from an API key
const apiKeySubjectPrefix = "apikey:"

// Tenant id sources, highest precedence first
const (
	tenantHeader     = "x-tenant-id"
	tenantQueryParam = "tenantId"
	tenantBodyField  = "tenantId"
)

// maxTenantBodyPeek bounds how much of a request body is buffered to look for the tenant field.
const maxTenantBodyPeek = 1 << 20

// TokenVerifier decodes an Authorization header into a caller identity
type TokenVerifier interface {
	Verify(header string) (*auth.Identity, error)
}

// KeyAuthenticator resolves a presented API key to its stored record
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, plaintext string) (*apikey.Key, error)
}

// HomeTenantLookup resolves a caller's own tenant
type HomeTenantLookup interface {
	HomeTenant(ctx context.Context, userID string) (string, error)
}

// TenantAdmitter decides whether a resolved tenant may be served
type TenantAdmitter interface {
	Admit(ctx context.Context, id string) (*tenant.Tenant, error)
}

// OwnershipChecker decides whether a resource belongs to a tenant
type OwnershipChecker interface {
	Check(ctx context.Context, kind ownership.Kind, id, tenantID string) error
}

// LoggingMiddleware logs HTTP requests
func LoggingMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				slog.InfoContext(r.Context(), "http_request",
					logger.RequestID(middleware.GetReqID(r.Context())),
					logger.Method(r.Method),
					logger.Path(r.URL.Path),
					logger.RemoteAddr(r.RemoteAddr),
					logger.UserAgent(r.UserAgent()),
					logger.StatusCode(ww.Status()),
					logger.Duration(time.Since(start).Milliseconds()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Authenticate verifies the caller and places its identity in context.
//
// A bearer token in Authorization wins. Without one, an X-Api-Key header is
// resolved through keys (when non-nil) to a BROKER identity pinned to the
// key's tenant. Missing credentials yield token_missing; anything else that
// fails yields token_invalid.
func Authenticate(verifier TokenVerifier, keys KeyAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if plaintext := r.Header.Get(apiKeyHeader); header == "" && plaintext != "" && keys != nil {
				key, err := keys.Authenticate(r.Context(), plaintext)
				if err != nil {
					slog.InfoContext(r.Context(), "api key authentication failed",
						logger.RemoteAddr(getClientIP(r)),
						logger.Error(err),
					)
					respondDomainError(w, r, err)
					return
				}
				id := &auth.Identity{
					SubjectID: apiKeySubjectPrefix + key.ID,
					Role:      auth.RoleBroker,
					TenantID:  key.TenantID,
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}

			id, err := verifier.Verify(header)
			if err != nil {
				slog.DebugContext(r.Context(), "authentication failed", logger.Error(err))
				respondDomainError(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireRole admits callers whose role satisfies required.
func RequireRole(required auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := GetIdentity(r.Context())
			if id == nil {
				respondDomainError(w, r, auth.ErrUnauthenticated)
				return
			}
			if !id.Role.Satisfies(required) {
				slog.InfoContext(r.Context(), "role check failed",
					logger.UserID(id.SubjectID),
					logger.Role(string(id.Role)),
					logger.String("required_role", string(required)),
				)
				respondDomainError(w, r, auth.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ResolveTenant determines which tenant a request targets and stores the id in context.
//
// Sources in precedence order: the x-tenant-id header, the tenantId query
// parameter, a tenantId field in a JSON body, and finally the caller's own
// tenant. Only the id is determined here; whether it may be served is
// AdmitTenant's decision. A request may leave this stage tenant-less.
//
// A caller pinned to a tenant (API keys) always gets that tenant, and naming
// any other one is forbidden. An explicit id that differs from a user's home
// tenant is served but recorded as cross_tenant_access.
func ResolveTenant(lookup HomeTenantLookup, auditLogger audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, source, err := explicitTenant(r)
			if err != nil {
				slog.ErrorContext(r.Context(), "failed to read request body", logger.Error(err))
				respondError(w, http.StatusInternalServerError, codeServerError)
				return
			}

			caller := GetIdentity(r.Context())
			switch {
			case caller != nil && caller.TenantID != "":
				if tenantID != "" && tenantID != caller.TenantID {
					auditCrossTenant(r, auditLogger, tenantID, caller.TenantID, source, true)
					respondDomainError(w, r, auth.ErrForbidden)
					return
				}
				tenantID = caller.TenantID

			case caller != nil && caller.SubjectID != "":
				home, err := lookup.HomeTenant(r.Context(), caller.SubjectID)
				if err != nil {
					if tenantID == "" {
						respondDomainError(w, r, err)
						return
					}
					slog.WarnContext(r.Context(), "home tenant lookup failed, cross-tenant check skipped",
						logger.UserID(caller.SubjectID),
						logger.Error(err),
					)
				}
				home = normalizeTenantID(home)
				if tenantID == "" {
					tenantID = home
				} else if home != "" && tenantID != home {
					auditCrossTenant(r, auditLogger, tenantID, home, source, false)
				}
			}

			ctx := r.Context()
			if tenantID != "" {
				ctx = WithTenantID(ctx, tenantID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// explicitTenant returns the first tenant id the request names and where it came from.
func explicitTenant(r *http.Request) (string, string, error) {
	if id := normalizeTenantID(r.Header.Get(tenantHeader)); id != "" {
		return id, "header", nil
	}
	if id := normalizeTenantID(r.URL.Query().Get(tenantQueryParam)); id != "" {
		return id, "query", nil
	}
	id, err := tenantFromBody(r)
	if err != nil || id == "" {
		return "", "", err
	}
	return id, "body", nil
}

func auditCrossTenant(r *http.Request, auditLogger audit.Logger, requested, home, source string, denied bool) {
	slog.InfoContext(r.Context(), "cross-tenant request",
		logger.UserID(GetUserID(r.Context())),
		logger.TenantID(requested),
		logger.String("home_tenant_id", home),
		slog.Bool("denied", denied),
	)
	auditLogger.Log(r.Context(), audit.Event{
		Type:      audit.TypeCrossTenantAccess,
		TenantID:  requested,
		ActorID:   GetUserID(r.Context()),
		Resource:  "tenant",
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
		Metadata: map[string]any{
			"home_tenant_id": home,
			"source":         source,
			"denied":         denied,
			"path":           r.URL.Path,
		},
	})
}

// tenantFromBody reads the tenant field from a JSON body and restores the body for the handler.
// Non-JSON or malformed bodies simply carry no tenant.
func tenantFromBody(r *http.Request) (string, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return "", nil
	}
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "json") {
		return "", nil
	}

	peek, err := io.ReadAll(io.LimitReader(r.Body, maxTenantBodyPeek))
	if err != nil {
		return "", err
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(peek), r.Body), r.Body}

	var body map[string]any
	if err := json.Unmarshal(peek, &body); err != nil {
		return "", nil
	}
	s, ok := body[tenantBodyField].(string)
	if !ok {
		return "", nil
	}
	return normalizeTenantID(s), nil
}

// normalizeTenantID trims a candidate and strips one stray leading and one
// stray trailing quote, which double-encoding clients leave behind.
func normalizeTenantID(s string) string {
	s = strings.TrimSpace(s)
	if s != "" && (s[0] == '"' || s[0] == '\'') {
		s = s[1:]
	}
	if s != "" && (s[len(s)-1] == '"' || s[len(s)-1] == '\'') {
		s = s[:len(s)-1]
	}
	return strings.TrimSpace(s)
}

// AdmitTenant loads the resolved tenant and rejects requests for missing or non-servable tenants.
func AdmitTenant(admitter TenantAdmitter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, err := admitter.Admit(r.Context(), GetTenantID(r.Context()))
			if err != nil {
				respondDomainError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), t)))
		})
	}
}

// RequireOwnership checks that the resource named by the URL parameter belongs to the admitted tenant.
func RequireOwnership(checker OwnershipChecker, auditLogger audit.Logger, kind ownership.Kind, urlParam string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t := GetTenant(r.Context())
			if t == nil {
				respondDomainError(w, r, tenant.ErrTenantRequired)
				return
			}

			resourceID := chi.URLParam(r, urlParam)
			if err := checker.Check(r.Context(), kind, resourceID, t.ID); err != nil {
				status, _ := statusFor(err)
				if status != http.StatusInternalServerError {
					slog.InfoContext(r.Context(), "ownership check failed",
						logger.TenantID(t.ID),
						logger.UserID(GetUserID(r.Context())),
						logger.ResourceKind(string(kind)),
						logger.ResourceID(resourceID),
						logger.Error(err),
					)
					auditLogger.Log(r.Context(), audit.Event{
						Type:      audit.TypeAccessDenied,
						TenantID:  t.ID,
						ActorID:   GetUserID(r.Context()),
						Resource:  string(kind),
						IPAddress: getClientIP(r),
						UserAgent: r.UserAgent(),
						Metadata:  map[string]any{"resource_id": resourceID, "reason": err.Error()},
					})
				}
				respondDomainError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
