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

package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/propdesk/propdesk/internal/audit"
)

// Service provides tenant management and admission logic
type Service struct {
	repo        Repository
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new tenant service
func NewService(repo Repository, auditLogger audit.Logger) *Service {
	return &Service{
		repo:        repo,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// CreateTenantInput carries the administrator-supplied tenant attributes
type CreateTenantInput struct {
	Name             string
	PaymentGatewayID string
	TrialDays        int
}

// CreateTenant creates a new tenant. A positive trial length starts the
// tenant in TRIAL with TrialEndsAt set; otherwise it starts ACTIVE.
func (s *Service) CreateTenant(ctx context.Context, in CreateTenantInput, actorID string) (*Tenant, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidTenant)
	}
	if in.TrialDays < 0 {
		return nil, fmt.Errorf("%w: trial days must not be negative", ErrInvalidTenant)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate tenant id: %w", err)
	}

	now := s.now().UTC()
	t := &Tenant{
		ID:               id.String(),
		Name:             name,
		Status:           InitialStatus(in.TrialDays),
		PaymentGatewayID: in.PaymentGatewayID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if t.Status == StatusTrial {
		ends := now.AddDate(0, 0, in.TrialDays)
		t.TrialEndsAt = &ends
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("failed to create tenant: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTenantCreated,
		TenantID: t.ID,
		ActorID:  actorID,
		Resource: "tenant",
		Metadata: map[string]any{"status": string(t.Status), "trial_days": in.TrialDays},
	})

	return t, nil
}

// GetTenant retrieves a tenant by ID
func (s *Service) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	if id == "" {
		return nil, ErrTenantRequired
	}
	return s.repo.GetByID(ctx, id)
}

// ListTenants lists tenants with pagination
func (s *Service) ListTenants(ctx context.Context, limit, offset int) ([]*Tenant, error) {
	return s.repo.List(ctx, limit, offset)
}

// Admit loads the tenant a request resolved to and decides whether it may be served.
// Only ACTIVE and TRIAL tenants are admitted.
func (s *Service) Admit(ctx context.Context, id string) (*Tenant, error) {
	if id == "" {
		return nil, ErrTenantRequired
	}

	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrTenantNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("failed to load tenant: %w", err)
	}
	if t == nil {
		return nil, ErrTenantNotFound
	}

	if !t.Status.Servable() {
		return nil, fmt.Errorf("%w: status %s", ErrTenantInactive, t.Status)
	}

	return t, nil
}

// Activate manually moves a tenant to ACTIVE regardless of its invoices.
func (s *Service) Activate(ctx context.Context, id, actorID string) (*Tenant, error) {
	return s.setStatus(ctx, id, StatusActive, audit.TypeTenantActivated, actorID)
}

// Deactivate manually moves a tenant to INACTIVE.
func (s *Service) Deactivate(ctx context.Context, id, actorID string) (*Tenant, error) {
	return s.setStatus(ctx, id, StatusInactive, audit.TypeTenantDeactivated, actorID)
}

func (s *Service) setStatus(ctx context.Context, id string, status Status, eventType, actorID string) (*Tenant, error) {
	t, err := s.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := t.Status
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("failed to update tenant status: %w", err)
	}
	t.Status = status
	t.UpdatedAt = s.now().UTC()

	s.auditLogger.Log(ctx, audit.Event{
		Type:     eventType,
		TenantID: id,
		ActorID:  actorID,
		Resource: "tenant",
		Metadata: map[string]any{"previous_status": string(previous), "status": string(status)},
	})

	return t, nil
}
