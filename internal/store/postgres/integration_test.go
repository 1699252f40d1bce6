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

//go:build integration
// +build integration

package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/propdesk/propdesk/internal/apikey"
	"github.com/propdesk/propdesk/internal/audit"
	"github.com/propdesk/propdesk/internal/auth"
	"github.com/propdesk/propdesk/internal/billing"
	"github.com/propdesk/propdesk/internal/identity"
	"github.com/propdesk/propdesk/internal/ownership"
	"github.com/propdesk/propdesk/internal/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()

	cfg := Config{
		Host:         envOr("DB_HOST", "localhost"),
		Port:         envOr("DB_PORT", "5432"),
		User:         envOr("DB_USER", "propdesk"),
		Password:     envOr("DB_PASSWORD", "propdesk_dev_password"),
		Database:     envOr("DB_NAME", "propdesk"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 1,
	}

	ctx := context.Background()
	db, err := New(ctx, cfg)
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to database: %v", err)
	}
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	return db
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func seedTenant(t *testing.T, repo *TenantRepository, status tenant.Status) *tenant.Tenant {
	t.Helper()
	tn := &tenant.Tenant{ID: newID(), Name: "Tenant " + string(status), Status: status}
	require.NoError(t, repo.Create(context.Background(), tn))
	return tn
}

// TestPurpose: Validates that ownership loaders return the owning tenant and fail cleanly on unknown ids.
// Scope: Database Integration Test
// Security: Multi-tenant Data Separation (CWE-284)
// Expected: A tenant B guard check on a tenant A invoice is rejected; malformed ids are not found.
// Test Case ID: ISO-01
func TestOwnership_TenantIsolation(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tenants := NewTenantRepository(db)
	invoices := NewInvoiceRepository(db)

	a := seedTenant(t, tenants, tenant.StatusActive)
	b := seedTenant(t, tenants, tenant.StatusActive)

	inv := &billing.Invoice{ID: newID(), TenantID: a.ID, Amount: 1000, DueDate: time.Now().Add(24 * time.Hour), Status: billing.StatusPending}
	require.NoError(t, invoices.Create(ctx, inv))

	guard := ownership.NewGuard(OwnershipLoaders(db), false)

	assert.NoError(t, guard.Check(ctx, ownership.KindInvoice, inv.ID, a.ID))
	assert.ErrorIs(t, guard.Check(ctx, ownership.KindInvoice, inv.ID, b.ID), ownership.ErrForbidden)
	assert.ErrorIs(t, guard.Check(ctx, ownership.KindInvoice, "not-a-uuid", a.ID), ownership.ErrResourceNotFound)
}

// TestPurpose: Validates that concurrent webhook deliveries serialise on the invoice row lock.
// Scope: Database Integration Test
// Expected: PaidDate is stamped once and the final state equals a single application.
// Test Case ID: DB-02
func TestInvoiceRepository_MutateSerialises(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tenants := NewTenantRepository(db)
	invoices := NewInvoiceRepository(db)
	tn := seedTenant(t, tenants, tenant.StatusActive)

	inv := &billing.Invoice{ID: newID(), TenantID: tn.ID, Amount: 2500, DueDate: time.Now().Add(-time.Hour), Status: billing.StatusPending}
	require.NoError(t, invoices.Create(ctx, inv))

	svc, err := billing.NewService(invoices, tenants, nil, audit.NewSlogLogger(), nil, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyWebhook(ctx, map[string]any{"externalReference": inv.ID, "status": "PAID"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := invoices.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, billing.StatusPaid, got.Status)
	require.NotNil(t, got.PaidDate)
	assert.NotNil(t, got.GatewayData[billing.LastWebhookKey])

	updated, err := tenants.GetByID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusActive, updated.Status)
}

// TestPurpose: Validates the user to tenant lookup used by the tenant resolver.
// Scope: Database Integration Test
// Expected: Tenant users return their tenant, operators return nil, unknown users are not found.
// Test Case ID: DB-03
func TestUserRepository_TenantIDForUser(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tn := seedTenant(t, NewTenantRepository(db), tenant.StatusTrial)
	users := NewUserRepository(db)

	member := &identity.User{ID: newID(), Email: newID() + "@example.com", Role: auth.RoleBroker, TenantID: &tn.ID}
	operator := &identity.User{ID: newID(), Email: newID() + "@example.com", Role: auth.RoleSuperAdmin}
	require.NoError(t, users.Create(ctx, member))
	require.NoError(t, users.Create(ctx, operator))

	got, err := users.TenantIDForUser(ctx, member.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, tn.ID, *got)

	got, err = users.TenantIDForUser(ctx, operator.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = users.TenantIDForUser(ctx, "missing")
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}

// TestPurpose: Validates that the billing write only lands on the status it was derived from.
// Scope: Database Integration Test
// Security: Admin overrides are not lifted by reconciliation
// Expected: A matching expected status writes; a stale one returns ErrStatusConflict and leaves the row; unknown ids are not found.
// Test Case ID: DB-04
func TestTenantRepository_UpdateBillingStateGuarded(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tenants := NewTenantRepository(db)
	tn := seedTenant(t, tenants, tenant.StatusPastDue)
	next := time.Now().Add(7 * 24 * time.Hour).UTC().Truncate(time.Second)

	require.NoError(t, tenants.UpdateStatus(ctx, tn.ID, tenant.StatusInactive))

	err := tenants.UpdateBillingState(ctx, tn.ID, tenant.StatusPastDue, tenant.StatusActive, &next)
	assert.ErrorIs(t, err, tenant.ErrStatusConflict)

	got, err := tenants.GetByID(ctx, tn.ID)
	require.NoError(t, err)
	assert.Equal(t, tenant.StatusInactive, got.Status)
	assert.Nil(t, got.NextBillingDate)

	require.NoError(t, tenants.UpdateBillingState(ctx, tn.ID, tenant.StatusInactive, tenant.StatusInactive, &next))
	got, err = tenants.GetByID(ctx, tn.ID)
	require.NoError(t, err)
	require.NotNil(t, got.NextBillingDate)
	assert.True(t, next.Equal(*got.NextBillingDate))

	err = tenants.UpdateBillingState(ctx, newID(), tenant.StatusActive, tenant.StatusActive, nil)
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)
}

// TestPurpose: Validates API key lookup by its public prefix.
// Scope: Database Integration Test
// Expected: The stored key comes back with its hash; unknown prefixes are not found.
// Test Case ID: DB-05
func TestAPIKeyRepository_GetByPrefix(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	tn := seedTenant(t, NewTenantRepository(db), tenant.StatusActive)
	keys := NewAPIKeyRepository(db)

	k := &apikey.Key{
		ID:        newID(),
		TenantID:  tn.ID,
		Name:      "portal",
		Prefix:    newID(),
		Hash:      "$argon2id$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		CreatedBy: "setup",
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, keys.Create(ctx, k))

	got, err := keys.GetByPrefix(ctx, k.Prefix)
	require.NoError(t, err)
	assert.Equal(t, k.ID, got.ID)
	assert.Equal(t, k.Hash, got.Hash)

	_, err = keys.GetByPrefix(ctx, "nope")
	assert.ErrorIs(t, err, apikey.ErrKeyNotFound)
}
