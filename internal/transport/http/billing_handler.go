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
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/propdesk/propdesk/internal/billing"
	"github.com/propdesk/propdesk/internal/observability/logger"
)

const webhookTokenHeader = "X-Webhook-Token"

// webhookResponse is the body returned to the payment gateway
type webhookResponse struct {
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	InvoiceID string         `json:"invoiceId,omitempty"`
	Status    billing.Status `json:"status,omitempty"`
}

// PaymentWebhook reconciles a payment gateway notification
// @Summary Payment Webhook
// @Description Applies a gateway payment event to the referenced invoice. Unknown invoices yield 204.
// @Tags Billing
// @Accept json
// @Produce json
// @Param X-Webhook-Token header string false "Shared webhook token"
// @Success 200 {object} webhookResponse
// @Success 204
// @Failure 400 {object} webhookResponse
// @Failure 500 {object} webhookResponse
// @Router /webhooks/payments [post]
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if h.webhookToken != "" {
		got := r.Header.Get(webhookTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookToken)) != 1 {
			respondJSON(w, http.StatusUnauthorized, webhookResponse{Error: codeUnauthenticated})
			return
		}
	}

	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&payload); err != nil || payload == nil {
		respondJSON(w, http.StatusBadRequest, webhookResponse{Error: codeInvalidRequest})
		return
	}

	result, err := h.billingService.ApplyWebhook(r.Context(), payload)
	if err != nil {
		slog.ErrorContext(r.Context(), "payment webhook failed", logger.Error(err))
		respondJSON(w, http.StatusInternalServerError, webhookResponse{Error: codeServerError})
		return
	}

	if !result.Matched {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	respondJSON(w, http.StatusOK, webhookResponse{
		Success:   true,
		InvoiceID: result.InvoiceID,
		Status:    result.Status,
	})
}

// CreateInvoiceRequest represents invoice creation data
type CreateInvoiceRequest struct {
	Amount            int64     `json:"amount" example:"19900"`
	DueDate           time.Time `json:"dueDate" example:"2026-04-01T00:00:00Z"`
	GatewayExternalID string    `json:"gatewayExternalId" example:"pay_8f2k1"`
}

// CreateInvoice issues an invoice to a tenant
// @Summary Create Invoice
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param tenantID path string true "Tenant ID"
// @Param request body CreateInvoiceRequest true "Invoice Data"
// @Success 201 {object} billing.Invoice
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /admin/tenants/{tenantID}/invoices [post]
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req CreateInvoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondDomainError(w, r, err)
		return
	}

	inv, err := h.billingService.CreateInvoice(r.Context(), billing.CreateInvoiceInput{
		TenantID:          chi.URLParam(r, "tenantID"),
		Amount:            req.Amount,
		DueDate:           req.DueDate,
		GatewayExternalID: req.GatewayExternalID,
	}, GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, inv)
}

// MarkInvoicePaid records a payment settled outside the gateway
// @Summary Mark Invoice Paid
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param invoiceID path string true "Invoice ID"
// @Success 200 {object} billing.Invoice
// @Failure 404 {object} map[string]string
// @Router /admin/invoices/{invoiceID}/mark-paid [post]
func (h *Handler) MarkInvoicePaid(w http.ResponseWriter, r *http.Request) {
	inv, err := h.billingService.MarkPaid(r.Context(), chi.URLParam(r, "invoiceID"), GetUserID(r.Context()))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

// RecomputeBilling recomputes every tenant's billing status now
// @Summary Recompute Billing
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} billing.RecomputeReport
// @Failure 500 {object} map[string]string
// @Router /admin/billing/recompute [post]
func (h *Handler) RecomputeBilling(w http.ResponseWriter, r *http.Request) {
	report, err := h.billingService.RecomputeAll(r.Context())
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// ListInvoices lists the admitted tenant's invoices
// @Summary List Invoices
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Success 200 {array} billing.Invoice
// @Router /invoices [get]
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.billingService.ListInvoices(r.Context(), GetTenant(r.Context()).ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if invoices == nil {
		invoices = []*billing.Invoice{}
	}
	respondJSON(w, http.StatusOK, invoices)
}

// GetInvoice returns one invoice of the admitted tenant
// @Summary Get Invoice
// @Tags Billing
// @Produce json
// @Security BearerAuth
// @Param invoiceID path string true "Invoice ID"
// @Success 200 {object} billing.Invoice
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /invoices/{invoiceID} [get]
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.billingService.GetInvoice(r.Context(), chi.URLParam(r, "invoiceID"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}
