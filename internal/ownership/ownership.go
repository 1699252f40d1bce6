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

package ownership

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors
var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrForbidden        = errors.New("resource belongs to another tenant")
)

// Kind identifies a tenant-scoped resource type.
// The set is closed: only the constants below are valid.
type Kind string

const (
	KindProperty    Kind = "property"
	KindLead        Kind = "lead"
	KindOpportunity Kind = "opportunity"
	KindVisit       Kind = "visit"
	KindInvoice     Kind = "invoice"
	KindAPIKey      Kind = "api_key"
	KindWebhook     Kind = "webhook"
)

// Kinds lists every guarded resource kind.
var Kinds = []Kind{
	KindProperty,
	KindLead,
	KindOpportunity,
	KindVisit,
	KindInvoice,
	KindAPIKey,
	KindWebhook,
}

// Loader returns the tenant id owning the resource with the given id.
// It must return ErrResourceNotFound when no such resource exists and
// must not load more than the tenant reference.
type Loader func(ctx context.Context, id string) (string, error)

// Guard decides whether a resource may be touched by an admitted tenant.
type Guard struct {
	loaders     map[Kind]Loader
	hideForeign bool
}

// NewGuard creates a guard over the given per-kind loaders.
// With hideForeign set, a resource owned by another tenant is reported
// as ErrResourceNotFound instead of ErrForbidden.
func NewGuard(loaders map[Kind]Loader, hideForeign bool) *Guard {
	l := make(map[Kind]Loader, len(loaders))
	for k, fn := range loaders {
		l[k] = fn
	}
	return &Guard{loaders: l, hideForeign: hideForeign}
}

// Check verifies that the resource of the given kind and id belongs to tenantID.
func (g *Guard) Check(ctx context.Context, kind Kind, id, tenantID string) error {
	load, ok := g.loaders[kind]
	if !ok {
		return fmt.Errorf("no ownership loader registered for %q", kind)
	}
	if id == "" {
		return ErrResourceNotFound
	}

	owner, err := load(ctx, id)
	if err != nil {
		if errors.Is(err, ErrResourceNotFound) {
			return ErrResourceNotFound
		}
		return fmt.Errorf("failed to load %s owner: %w", kind, err)
	}

	if tenantID == "" || owner != tenantID {
		if g.hideForeign {
			return ErrResourceNotFound
		}
		return ErrForbidden
	}
	return nil
}
