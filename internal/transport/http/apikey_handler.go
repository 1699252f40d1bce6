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

	"github.com/go-chi/chi/v5"
	"github.com/propdesk/propdesk/internal/apikey"
)

// CreateAPIKeyRequest represents API key creation data
type CreateAPIKeyRequest struct {
	Name string `json:"name" example:"CRM sync"`
}

// CreateAPIKeyResponse carries the plaintext key, shown only once
type CreateAPIKeyResponse struct {
	*apikey.Key
	Secret string `json:"secret"`
}

// ListAPIKeys lists the admitted tenant's API keys
// @Summary List API Keys
// @Tags API Keys
// @Produce json
// @Security BearerAuth
// @Success 200 {array} apikey.Key
// @Router /api-keys [get]
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.apiKeyService.List(r.Context(), GetTenant(r.Context()).ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if keys == nil {
		keys = []*apikey.Key{}
	}
	respondJSON(w, http.StatusOK, keys)
}

// CreateAPIKey issues a new API key for the admitted tenant
// @Summary Create API Key
// @Tags API Keys
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateAPIKeyRequest true "Key Data"
// @Success 201 {object} CreateAPIKeyResponse
// @Failure 400 {object} map[string]string
// @Router /api-keys [post]
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	var req CreateAPIKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}

	key, secret, err := h.apiKeyService.Create(r.Context(), GetTenant(r.Context()).ID, req.Name, GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, CreateAPIKeyResponse{Key: key, Secret: secret})
}

// RevokeAPIKey revokes one of the admitted tenant's API keys
// @Summary Revoke API Key
// @Tags API Keys
// @Security BearerAuth
// @Param apiKeyID path string true "API Key ID"
// @Success 204
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api-keys/{apiKeyID} [delete]
func (h *Handler) RevokeAPIKey(w http.ResponseWriter, r *http.Request) {
	err := h.apiKeyService.Revoke(r.Context(), GetTenant(r.Context()).ID, chi.URLParam(r, "apiKeyID"), GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
