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
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/propdesk/propdesk/internal/tenant"
)

// Tenant list paging bounds
const (
	defaultTenantPage = 50
	maxTenantPage     = 500
)

// CreateTenantRequest represents tenant creation data
type CreateTenantRequest struct {
	Name             string `json:"name" example:"Acme Realty"`
	PaymentGatewayID string `json:"paymentGatewayId" example:"cus_000123"`
	TrialDays        int    `json:"trialDays" example:"14"`
}

// CreateTenant handles tenant creation
// @Summary Create Tenant
// @Description Create a tenant; a positive trialDays starts it in TRIAL
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateTenantRequest true "Tenant Data"
// @Success 201 {object} tenant.Tenant
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /admin/tenants [post]
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}

	t, err := h.tenantService.CreateTenant(r.Context(), tenant.CreateTenantInput{
		Name:             req.Name,
		PaymentGatewayID: req.PaymentGatewayID,
		TrialDays:        req.TrialDays,
	}, GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, t)
}

// ListTenants handles listing all tenants
// @Summary List Tenants
// @Description List platform tenants ordered by id (Platform Admin Only)
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size, at most 500" default(50)
// @Param offset query int false "Rows to skip" default(0)
// @Success 200 {array} tenant.Tenant
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /admin/tenants [get]
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultTenantPage)
	if err != nil || limit < 1 || limit > maxTenantPage {
		respondDomainError(w, r, errInvalidRequest)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil || offset < 0 {
		respondDomainError(w, r, errInvalidRequest)
		return
	}

	tenants, err := h.tenantService.ListTenants(r.Context(), limit, offset)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if tenants == nil {
		tenants = []*tenant.Tenant{}
	}

	respondJSON(w, http.StatusOK, tenants)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// ActivateTenant manually activates a tenant
// @Summary Activate Tenant
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} tenant.Tenant
// @Failure 404 {object} map[string]string
// @Router /admin/tenants/{tenantID}/activate [post]
func (h *Handler) ActivateTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenantService.Activate(r.Context(), chi.URLParam(r, "tenantID"), GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// DeactivateTenant manually deactivates a tenant
// @Summary Deactivate Tenant
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Success 200 {object} tenant.Tenant
// @Failure 404 {object} map[string]string
// @Router /admin/tenants/{tenantID}/deactivate [post]
func (h *Handler) DeactivateTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.tenantService.Deactivate(r.Context(), chi.URLParam(r, "tenantID"), GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// GetCurrentTenant returns the admitted tenant
// @Summary Current Tenant
// @Tags Tenant
// @Produce json
// @Security BearerAuth
// @Param x-tenant-id header string false "Tenant ID"
// @Success 200 {object} tenant.Tenant
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /tenant [get]
func (h *Handler) GetCurrentTenant(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, GetTenant(r.Context()))
}
