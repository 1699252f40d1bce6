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
	"time"
)

var (
	ErrTenantRequired = errors.New("tenant id is required")
	ErrTenantNotFound = errors.New("tenant not found")
	ErrTenantInactive = errors.New("tenant is not active")
	ErrInvalidTenant  = errors.New("invalid tenant")

	// ErrStatusConflict reports that a tenant's status changed since it was read.
	ErrStatusConflict = errors.New("tenant status changed concurrently")
)

// Repository defines the interface for tenant storage
type Repository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	List(ctx context.Context, limit, offset int) ([]*Tenant, error)

	// UpdateStatus is the administrator override path.
	UpdateStatus(ctx context.Context, id string, status Status) error

	// UpdateBillingState writes the fields owned by billing reconciliation,
	// provided the stored status still equals expected. Otherwise it returns
	// ErrStatusConflict and writes nothing.
	UpdateBillingState(ctx context.Context, id string, expected, status Status, nextBillingDate *time.Time) error
}
