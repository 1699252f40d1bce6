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
	"context"

	"github.com/propdesk/propdesk/internal/auth"
	"github.com/propdesk/propdesk/internal/tenant"
)

type contextKey string

const (
	identityKey contextKey = "identity"
	tenantIDKey contextKey = "tenant_id"
	tenantKey   contextKey = "tenant"
)

// WithIdentity returns a context carrying the verified caller.
func WithIdentity(ctx context.Context, id *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity retrieves the verified caller from context.
func GetIdentity(ctx context.Context) *auth.Identity {
	if val, ok := ctx.Value(identityKey).(*auth.Identity); ok {
		return val
	}
	return nil
}

// GetUserID retrieves the authenticated subject ID from context.
func GetUserID(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.SubjectID
	}
	return ""
}

// WithTenantID returns a context carrying the resolved, not yet admitted, tenant id.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// GetTenantID retrieves the resolved Tenant ID from context.
func GetTenantID(ctx context.Context) string {
	if val, ok := ctx.Value(tenantIDKey).(string); ok {
		return val
	}
	return ""
}

// WithTenant returns a context carrying the admitted tenant.
func WithTenant(ctx context.Context, t *tenant.Tenant) context.Context {
	return context.WithValue(ctx, tenantKey, t)
}

// GetTenant retrieves the admitted tenant from context.
func GetTenant(ctx context.Context) *tenant.Tenant {
	if val, ok := ctx.Value(tenantKey).(*tenant.Tenant); ok {
		return val
	}
	return nil
}
