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
	"errors"
	"log/slog"
	"net/http"

	"github.com/propdesk/propdesk/internal/apikey"
	"github.com/propdesk/propdesk/internal/auth"
	"github.com/propdesk/propdesk/internal/billing"
	"github.com/propdesk/propdesk/internal/observability/logger"
	"github.com/propdesk/propdesk/internal/ownership"
	"github.com/propdesk/propdesk/internal/tenant"
)

// Error codes returned in {"error": code} bodies
const (
	codeTokenMissing    = "token_missing"
	codeTokenInvalid    = "token_invalid"
	codeUnauthenticated = "unauthenticated"
	codeForbidden       = "forbidden"
	codeTenantMissing   = "tenant_missing"
	codeTenantNotFound  = "tenant_not_found"
	codeTenantInactive  = "tenant_inactive"
	codeNotFound        = "not_found"
	codeServerError     = "server_error"
	codeInvalidRequest  = "invalid_request"
	codeRateLimited     = "rate_limited"
)

var errInvalidRequest = errors.New("invalid request")

// errorMapping is matched in order with errors.Is; the first hit wins.
var errorMapping = []struct {
	target error
	status int
	code   string
}{
	{auth.ErrTokenMissing, http.StatusUnauthorized, codeTokenMissing},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, codeTokenInvalid},
	{apikey.ErrKeyRejected, http.StatusUnauthorized, codeTokenInvalid},
	{auth.ErrUnauthenticated, http.StatusUnauthorized, codeUnauthenticated},
	{auth.ErrForbidden, http.StatusForbidden, codeForbidden},
	{tenant.ErrTenantRequired, http.StatusBadRequest, codeTenantMissing},
	{tenant.ErrTenantNotFound, http.StatusNotFound, codeTenantNotFound},
	{tenant.ErrTenantInactive, http.StatusForbidden, codeTenantInactive},
	{ownership.ErrResourceNotFound, http.StatusNotFound, codeNotFound},
	{ownership.ErrForbidden, http.StatusForbidden, codeForbidden},
	{billing.ErrInvoiceNotFound, http.StatusNotFound, codeNotFound},
	{apikey.ErrKeyNotFound, http.StatusNotFound, codeNotFound},
	{tenant.ErrInvalidTenant, http.StatusBadRequest, codeInvalidRequest},
	{billing.ErrInvalidInvoice, http.StatusBadRequest, codeInvalidRequest},
	{apikey.ErrInvalidKey, http.StatusBadRequest, codeInvalidRequest},
	{errInvalidRequest, http.StatusBadRequest, codeInvalidRequest},
}

// statusFor maps an error to its HTTP status and stable code.
func statusFor(err error) (int, string) {
	for _, m := range errorMapping {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, codeServerError
}

// respondDomainError writes the mapped error body. Unmapped errors are logged
// and reported as server_error without detail.
func respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			logger.Method(r.Method),
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
	}
	respondError(w, status, code)
}
