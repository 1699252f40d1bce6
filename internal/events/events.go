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

package events

import (
	"context"
	"time"
)

// Subjects
const (
	SubjectTenantStatusChanged = "tenant.billing.status_changed"
	SubjectInvoicePaid         = "invoice.paid"
)

// Event is a message published to the event bus
type Event interface {
	Subject() string
}

// Publisher delivers events to downstream consumers.
// Publishing is best effort; callers log failures and continue.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// TenantStatusChanged is published when reconciliation changes a tenant's status
type TenantStatusChanged struct {
	TenantID        string     `json:"tenant_id"`
	PreviousStatus  string     `json:"previous_status"`
	Status          string     `json:"status"`
	NextBillingDate *time.Time `json:"next_billing_date,omitempty"`
	Timestamp       time.Time  `json:"timestamp"`
}

func (TenantStatusChanged) Subject() string { return SubjectTenantStatusChanged }

// InvoicePaid is published the first time an invoice moves to PAID
type InvoicePaid struct {
	InvoiceID string    `json:"invoice_id"`
	TenantID  string    `json:"tenant_id"`
	Amount    int64     `json:"amount"`
	PaidDate  time.Time `json:"paid_date"`
	Source    string    `json:"source"` // webhook, manual
	Timestamp time.Time `json:"timestamp"`
}

func (InvoicePaid) Subject() string { return SubjectInvoicePaid }

// NoopPublisher discards events. Used when no event bus is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
