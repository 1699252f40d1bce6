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
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/propdesk/propdesk/internal/audit"
	"github.com/propdesk/propdesk/internal/events"
	"github.com/propdesk/propdesk/internal/observability/logger"
	"github.com/propdesk/propdesk/internal/observability/metrics"
	"github.com/propdesk/propdesk/internal/observability/tracing"
	"github.com/propdesk/propdesk/internal/tenant"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	defaultPageSize = 100

	// bound on re-derivations when the tenant status races a billing write
	maxRecomputeAttempts = 3
)

// Webhook outcomes, used as the metric attribute
const (
	outcomeUnmatched = "unmatched"
	outcomeApplied   = "applied"
	outcomeUnchanged = "unchanged"
	outcomeFailed    = "failed"
)

// Service reconciles invoice and tenant billing state
type Service struct {
	invoices    InvoiceRepository
	tenants     tenant.Repository
	publisher   events.Publisher
	auditLogger audit.Logger
	tracer      *tracing.Tracer

	webhooks          metric.Int64Counter
	webhookDuration   metric.Float64Histogram
	recomputed        metric.Int64Counter
	recomputeDuration metric.Float64Histogram

	now      func() time.Time
	pageSize int
}

// NewService creates a new billing service
func NewService(
	invoices InvoiceRepository,
	tenants tenant.Repository,
	publisher events.Publisher,
	auditLogger audit.Logger,
	meter *metrics.Meter,
	tracer *tracing.Tracer,
) (*Service, error) {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if meter == nil {
		meter = metrics.NewNoop()
	}
	if tracer == nil {
		tracer = tracing.NewNoop()
	}

	webhooks, err := meter.CreateCounter("billing.webhooks", "Payment webhooks received, by outcome")
	if err != nil {
		return nil, err
	}
	webhookDuration, err := meter.CreateHistogram("billing.webhook.duration", "Payment webhook handling time, by outcome", "s")
	if err != nil {
		return nil, err
	}
	recomputed, err := meter.CreateCounter("billing.tenants.recomputed", "Tenant billing recomputations, by outcome")
	if err != nil {
		return nil, err
	}
	recomputeDuration, err := meter.CreateHistogram("billing.recompute.duration", "Full billing recomputation time", "s")
	if err != nil {
		return nil, err
	}

	return &Service{
		invoices:    invoices,
		tenants:     tenants,
		publisher:   publisher,
		auditLogger: auditLogger,
		tracer:      tracer,
		now:         time.Now,
		pageSize:    defaultPageSize,

		webhooks:          webhooks,
		webhookDuration:   webhookDuration,
		recomputed:        recomputed,
		recomputeDuration: recomputeDuration,
	}, nil
}

// CreateInvoiceInput carries the attributes of a new invoice
type CreateInvoiceInput struct {
	TenantID          string
	Amount            int64
	DueDate           time.Time
	GatewayExternalID string
}

// CreateInvoice issues a PENDING invoice to an existing tenant
func (s *Service) CreateInvoice(ctx context.Context, in CreateInvoiceInput, actorID string) (*Invoice, error) {
	if in.TenantID == "" {
		return nil, tenant.ErrTenantRequired
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInvoice)
	}
	if in.DueDate.IsZero() {
		return nil, fmt.Errorf("%w: due date is required", ErrInvalidInvoice)
	}

	if _, err := s.tenants.GetByID(ctx, in.TenantID); err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate invoice id: %w", err)
	}

	now := s.now().UTC()
	inv := &Invoice{
		ID:        id.String(),
		TenantID:  in.TenantID,
		Amount:    in.Amount,
		DueDate:   in.DueDate.UTC(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.GatewayExternalID != "" {
		ext := in.GatewayExternalID
		inv.GatewayExternalID = &ext
	}

	if err := s.invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeInvoiceCreated,
		TenantID: inv.TenantID,
		ActorID:  actorID,
		Resource: "invoice",
		Metadata: map[string]any{"invoice_id": inv.ID, "amount": inv.Amount},
	})

	s.recomputeBestEffort(ctx, inv.TenantID)

	return inv, nil
}

// GetInvoice retrieves an invoice by ID
func (s *Service) GetInvoice(ctx context.Context, id string) (*Invoice, error) {
	if id == "" {
		return nil, ErrInvoiceNotFound
	}
	return s.invoices.GetByID(ctx, id)
}

// ListInvoices lists the invoices of one tenant
func (s *Service) ListInvoices(ctx context.Context, tenantID string) ([]*Invoice, error) {
	if tenantID == "" {
		return nil, tenant.ErrTenantRequired
	}
	return s.invoices.ListByTenant(ctx, tenantID)
}

// WebhookResult describes what a payment webhook did
type WebhookResult struct {
	Matched   bool         `json:"matched"`
	Event     WebhookEvent `json:"event"`
	InvoiceID string       `json:"invoice_id,omitempty"`
	Status    Status       `json:"status,omitempty"`
	Changed   bool         `json:"changed"`
}

// ApplyWebhook reconciles one gateway notification against the invoice it refers to.
//
// Payloads that match no invoice are not an error: gateways retry and also
// deliver events for objects this service never issued.
func (s *Service) ApplyWebhook(ctx context.Context, payload map[string]any) (result *WebhookResult, err error) {
	ctx, span := s.tracer.Start(ctx, "billing.ApplyWebhook")
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	outcome := outcomeFailed
	defer func() {
		attrs := metric.WithAttributes(attribute.String("outcome", outcome))
		s.webhooks.Add(ctx, 1, attrs)
		s.webhookDuration.Record(ctx, time.Since(start).Seconds(), attrs)
	}()

	event := ExtractWebhookEvent(payload)
	result = &WebhookResult{Event: event}

	inv, err := s.locate(ctx, event)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		outcome = outcomeUnmatched
		slog.InfoContext(ctx, "webhook matched no invoice",
			logger.PaymentID(event.PaymentID),
			slog.String("external_reference", event.ExternalReference),
		)
		return result, nil
	}

	if !isKnownGatewayStatus(event.StatusText) {
		slog.WarnContext(ctx, "unrecognised gateway status, treating as pending",
			logger.InvoiceID(inv.ID),
			slog.String("status_text", event.StatusText),
		)
	}
	target := MapGatewayStatus(event.StatusText)

	var (
		changed  bool
		wasPaid  bool
		observed time.Time
	)
	updated, err := s.invoices.Mutate(ctx, inv.ID, func(cur *Invoice) error {
		observed = s.now().UTC()
		wasPaid = cur.PaidDate != nil
		changed = applyWebhook(cur, target, payload, observed)
		cur.UpdatedAt = observed
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply webhook to invoice %s: %w", inv.ID, err)
	}

	result.Matched = true
	result.InvoiceID = updated.ID
	result.Status = updated.Status
	result.Changed = changed

	if !changed {
		outcome = outcomeUnchanged
		return result, nil
	}
	outcome = outcomeApplied

	slog.InfoContext(ctx, "invoice reconciled from webhook",
		logger.InvoiceID(updated.ID),
		logger.TenantID(updated.TenantID),
		logger.InvoiceStatus(string(updated.Status)),
		logger.PaymentID(event.PaymentID),
	)

	if !wasPaid && updated.Status == StatusPaid {
		s.invoicePaid(ctx, updated, audit.TypeInvoicePaid, "gateway", "webhook")
	}

	s.recomputeBestEffort(ctx, updated.TenantID)

	return result, nil
}

// locate finds the invoice by gateway payment id, then by external reference as invoice id.
func (s *Service) locate(ctx context.Context, event WebhookEvent) (*Invoice, error) {
	if event.PaymentID != "" {
		inv, err := s.invoices.GetByGatewayExternalID(ctx, event.PaymentID)
		switch {
		case err == nil && inv != nil:
			return inv, nil
		case err != nil && !errors.Is(err, ErrInvoiceNotFound):
			return nil, fmt.Errorf("failed to look up invoice by payment id: %w", err)
		}
	}

	if event.ExternalReference != "" {
		inv, err := s.invoices.GetByID(ctx, event.ExternalReference)
		switch {
		case err == nil && inv != nil:
			return inv, nil
		case err != nil && !errors.Is(err, ErrInvoiceNotFound):
			return nil, fmt.Errorf("failed to look up invoice by reference: %w", err)
		}
	}

	return nil, nil
}

// MarkPaid is the administrator path for payments settled outside the gateway.
func (s *Service) MarkPaid(ctx context.Context, invoiceID, actorID string) (*Invoice, error) {
	if invoiceID == "" {
		return nil, ErrInvoiceNotFound
	}

	var wasPaid bool
	updated, err := s.invoices.Mutate(ctx, invoiceID, func(cur *Invoice) error {
		now := s.now().UTC()
		wasPaid = cur.PaidDate != nil
		if transition(cur, StatusPaid, now) {
			cur.UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to mark invoice paid: %w", err)
	}

	if !wasPaid {
		s.invoicePaid(ctx, updated, audit.TypeInvoiceMarkedPaid, actorID, "manual")
		s.recomputeBestEffort(ctx, updated.TenantID)
	}

	return updated, nil
}

func (s *Service) invoicePaid(ctx context.Context, inv *Invoice, auditType, actorID, source string) {
	s.auditLogger.Log(ctx, audit.Event{
		Type:     auditType,
		TenantID: inv.TenantID,
		ActorID:  actorID,
		Resource: "invoice",
		Metadata: map[string]any{"invoice_id": inv.ID, "amount": inv.Amount},
	})

	if inv.PaidDate == nil {
		return
	}
	err := s.publisher.Publish(ctx, events.InvoicePaid{
		InvoiceID: inv.ID,
		TenantID:  inv.TenantID,
		Amount:    inv.Amount,
		PaidDate:  *inv.PaidDate,
		Source:    source,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to publish invoice paid event", logger.InvoiceID(inv.ID), logger.Error(err))
	}
}

// DeriveBillingState computes a tenant's status and next billing date from its invoices.
//
// An unpaid invoice due before now makes the tenant PAST_DUE; a PAST_DUE
// tenant with nothing overdue returns to ACTIVE. Any other status is left
// alone, and INACTIVE is never changed since it is an administrator decision.
// The next billing date is the soonest due date strictly after now.
func DeriveBillingState(prev tenant.Status, invoices []*Invoice, now time.Time) (tenant.Status, *time.Time) {
	var (
		next    *time.Time
		overdue bool
	)
	for _, inv := range invoices {
		if inv == nil {
			continue
		}
		if inv.DueDate.After(now) && (next == nil || inv.DueDate.Before(*next)) {
			due := inv.DueDate
			next = &due
		}
		if inv.IsOverdueAt(now) {
			overdue = true
		}
	}

	status := prev
	switch {
	case prev == tenant.StatusInactive:
	case overdue:
		status = tenant.StatusPastDue
	case prev == tenant.StatusPastDue:
		status = tenant.StatusActive
	}

	return status, next
}

// TenantRecompute is the outcome of recomputing one tenant
type TenantRecompute struct {
	TenantID        string        `json:"tenant_id"`
	PreviousStatus  tenant.Status `json:"previous_status"`
	Status          tenant.Status `json:"status"`
	NextBillingDate *time.Time    `json:"next_billing_date,omitempty"`
	Updated         bool          `json:"updated"`
}

// RecomputeTenant brings one tenant's billing state in line with its invoices.
// Nothing is written when the derived state equals the stored state.
func (s *Service) RecomputeTenant(ctx context.Context, tenantID string) (*TenantRecompute, error) {
	if tenantID == "" {
		return nil, tenant.ErrTenantRequired
	}

	t, err := s.tenants.GetByID(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return s.recompute(ctx, t)
}

func (s *Service) recompute(ctx context.Context, t *tenant.Tenant) (*TenantRecompute, error) {
	for attempt := 1; ; attempt++ {
		out, err := s.recomputeOnce(ctx, t)
		if !errors.Is(err, tenant.ErrStatusConflict) || attempt == maxRecomputeAttempts {
			return out, err
		}
		// status moved underneath us (admin override); derive again from the fresh row
		slog.DebugContext(ctx, "tenant status changed during recompute, retrying",
			logger.TenantID(t.ID),
			slog.Int("attempt", attempt),
		)
		t, err = s.tenants.GetByID(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload tenant: %w", err)
		}
	}
}

func (s *Service) recomputeOnce(ctx context.Context, t *tenant.Tenant) (*TenantRecompute, error) {
	invoices, err := s.invoices.ListByTenant(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	status, next := DeriveBillingState(t.Status, invoices, s.now().UTC())
	out := &TenantRecompute{
		TenantID:        t.ID,
		PreviousStatus:  t.Status,
		Status:          status,
		NextBillingDate: next,
	}

	if status == t.Status && sameTime(next, t.NextBillingDate) {
		return out, nil
	}

	if err := s.tenants.UpdateBillingState(ctx, t.ID, t.Status, status, next); err != nil {
		return nil, fmt.Errorf("failed to update billing state: %w", err)
	}
	out.Updated = true

	if status != t.Status {
		slog.InfoContext(ctx, "tenant billing status changed",
			logger.TenantID(t.ID),
			slog.String("previous_status", string(t.Status)),
			logger.TenantStatus(string(status)),
		)
		s.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeTenantStatusChanged,
			TenantID: t.ID,
			ActorID:  "billing",
			Resource: "tenant",
			Metadata: map[string]any{"previous_status": string(t.Status), "status": string(status)},
		})
		err := s.publisher.Publish(ctx, events.TenantStatusChanged{
			TenantID:        t.ID,
			PreviousStatus:  string(t.Status),
			Status:          string(status),
			NextBillingDate: next,
			Timestamp:       s.now().UTC(),
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to publish tenant status event", logger.TenantID(t.ID), logger.Error(err))
		}
	}

	return out, nil
}

// recomputeBestEffort refreshes a tenant after one of its invoices changed.
// Failures are logged only; the scheduled run converges the state later.
func (s *Service) recomputeBestEffort(ctx context.Context, tenantID string) {
	if _, err := s.RecomputeTenant(ctx, tenantID); err != nil {
		slog.WarnContext(ctx, "tenant recompute after invoice change failed",
			logger.TenantID(tenantID),
			logger.Error(err),
		)
	}
}

// RecomputeFailure records a tenant the batch could not update
type RecomputeFailure struct {
	TenantID string `json:"tenant_id"`
	Error    string `json:"error"`
}

// RecomputeReport summarises a batch recomputation
type RecomputeReport struct {
	Checked       int                `json:"checked"`
	Updated       int                `json:"updated"`
	StatusChanged int                `json:"status_changed"`
	Failed        int                `json:"failed"`
	Failures      []RecomputeFailure `json:"failures,omitempty"`
	StartedAt     time.Time          `json:"started_at"`
	Duration      string             `json:"duration"`
}

// RecomputeAll recomputes every tenant one at a time.
// A failing tenant is logged and counted and the batch continues; only a
// failure to page through tenants or a cancelled context ends it early.
func (s *Service) RecomputeAll(ctx context.Context) (report *RecomputeReport, err error) {
	ctx, span := s.tracer.Start(ctx, "billing.RecomputeAll")
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	started := s.now()
	report = &RecomputeReport{StartedAt: started.UTC()}
	defer func() {
		report.Duration = s.now().Sub(started).String()
		s.recomputeDuration.Record(ctx, time.Since(start).Seconds(),
			metric.WithAttributes(attribute.Bool("completed", err == nil)))
	}()

	for offset := 0; ; offset += s.pageSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		page, err := s.tenants.List(ctx, s.pageSize, offset)
		if err != nil {
			return report, fmt.Errorf("failed to list tenants: %w", err)
		}

		for _, t := range page {
			report.Checked++

			res, err := s.recompute(ctx, t)
			if err != nil {
				report.Failed++
				report.Failures = append(report.Failures, RecomputeFailure{TenantID: t.ID, Error: err.Error()})
				s.recomputed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcomeFailed)))
				slog.ErrorContext(ctx, "tenant recompute failed", logger.TenantID(t.ID), logger.Error(err))
				continue
			}

			outcome := outcomeUnchanged
			if res.Updated {
				outcome = outcomeApplied
				report.Updated++
			}
			if res.Status != res.PreviousStatus {
				report.StatusChanged++
			}
			s.recomputed.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		}

		if len(page) < s.pageSize {
			break
		}
	}

	slog.InfoContext(ctx, "billing recompute finished",
		slog.Int("checked", report.Checked),
		slog.Int("updated", report.Updated),
		slog.Int("status_changed", report.StatusChanged),
		slog.Int("failed", report.Failed),
	)

	return report, nil
}

// sameTime compares optional timestamps at second precision, which is what the store keeps.
func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Truncate(time.Second).Equal(b.Truncate(time.Second))
}
