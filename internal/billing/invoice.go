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

package billing

import (
	"context"
	"errors"
	"time"
)

// Domain errors
var (
	ErrInvoiceNotFound = errors.New("invoice not found")
	ErrInvalidInvoice  = errors.New("invalid invoice")
)

// Status is the payment state of an invoice
type Status string

// Status constants
const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
	StatusOverdue Status = "OVERDUE"
)

// LastWebhookKey is the GatewayData key holding the most recent raw gateway payload.
const LastWebhookKey = "lastWebhook"

// Invoice is a bill issued to a tenant.
// PaidDate is set if and only if Status is PAID.
type Invoice struct {
	ID                string         `json:"id"`
	TenantID          string         `json:"tenant_id"`
	Amount            int64          `json:"amount"`
	DueDate           time.Time      `json:"due_date"`
	PaidDate          *time.Time     `json:"paid_date,omitempty"`
	Status            Status         `json:"status"`
	GatewayExternalID *string        `json:"gateway_external_id,omitempty"`
	GatewayData       map[string]any `json:"gateway_data,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// IsOverdueAt reports whether the invoice is past due and unpaid at now.
func (i *Invoice) IsOverdueAt(now time.Time) bool {
	return i.DueDate.Before(now) && i.Status != StatusPaid
}

// InvoiceRepository defines the interface for invoice persistence
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *Invoice) error
	GetByID(ctx context.Context, id string) (*Invoice, error)
	GetByGatewayExternalID(ctx context.Context, externalID string) (*Invoice, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Invoice, error)

	// Mutate loads the invoice under a row lock, applies fn and persists the
	// result in the same transaction. fn may be invoked on a fresh copy only.
	Mutate(ctx context.Context, id string, fn func(*Invoice) error) (*Invoice, error)
}
