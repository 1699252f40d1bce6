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

package apikey

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/propdesk/propdesk/internal/audit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) Create(ctx context.Context, key *Key) error {
	return m.Called(ctx, key).Error(0)
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*Key, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Key), args.Error(1)
}

func (m *mockRepo) GetByPrefix(ctx context.Context, prefix string) (*Key, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Key), args.Error(1)
}

func (m *mockRepo) ListByTenant(ctx context.Context, tenantID string) ([]*Key, error) {
	args := m.Called(ctx, tenantID)
	return args.Get(0).([]*Key), args.Error(1)
}

func (m *mockRepo) Revoke(ctx context.Context, id string, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

type mockAudit struct {
	mock.Mock
}

func (m *mockAudit) Log(ctx context.Context, event audit.Event) {
	m.Called(ctx, event)
}

// TestPurpose: Validates Argon2id hashing of key secrets.
// Scope: Unit Test
// Security: Credential storage
// Expected: Correct secret verifies, wrong secret and corrupt hashes do not.
// Test Case ID: KEY-01
func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(8*1024, 1, 1, 16, 32)

	encoded, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=8192,t=1,p=1$"))

	ok, err := h.Verify("s3cret", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("other", encoded)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, encoded, again, "salt must differ per hash")

	_, err = h.Verify("s3cret", "$bcrypt$whatever")
	assert.Error(t, err)
}

// TestPurpose: Validates that a created key returns its plaintext once and persists only the hash.
// Scope: Unit Test
// Security: Secret exposure
// Expected: Stored record has no plaintext; the plaintext verifies against the stored hash.
// Test Case ID: KEY-02
func TestService_Create(t *testing.T) {
	repo := new(mockRepo)
	auditLog := new(mockAudit)
	svc := NewService(repo, NewHasher(8*1024, 1, 1, 16, 32), auditLog)

	var stored *Key
	repo.On("Create", mock.Anything, mock.AnythingOfType("*apikey.Key")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*Key) }).
		Return(nil)
	auditLog.On("Log", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypeAPIKeyCreated && e.TenantID == "tnt_1"
	})).Return()

	key, plaintext, err := svc.Create(context.Background(), "tnt_1", "  CRM sync  ", "user-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "CRM sync", key.Name)
	assert.True(t, key.Active())

	parts := strings.Split(plaintext, "_")
	require.Len(t, parts, 3)
	assert.Equal(t, "pdk", parts[0])
	assert.Equal(t, key.Prefix, parts[1])
	assert.NotContains(t, stored.Hash, parts[2])

	ok, err := svc.hasher.Verify(parts[2], stored.Hash)
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = svc.Create(context.Background(), "tnt_1", " ", "user-1")
	assert.ErrorIs(t, err, ErrInvalidKey)

	repo.AssertExpectations(t)
	auditLog.AssertExpectations(t)
}

// TestPurpose: Validates that revocation is idempotent and audited once.
// Scope: Unit Test
// Expected: Active keys are revoked; revoked keys are left alone; missing keys surface ErrKeyNotFound.
// Test Case ID: KEY-03
func TestService_Revoke(t *testing.T) {
	repo := new(mockRepo)
	auditLog := new(mockAudit)
	svc := NewService(repo, nil, auditLog)
	ctx := context.Background()

	revokedAt := time.Now()
	repo.On("GetByID", ctx, "k1").Return(&Key{ID: "k1", TenantID: "tnt_1"}, nil)
	repo.On("GetByID", ctx, "k2").Return(&Key{ID: "k2", TenantID: "tnt_1", RevokedAt: &revokedAt}, nil)
	repo.On("GetByID", ctx, "k3").Return(nil, ErrKeyNotFound)
	repo.On("Revoke", ctx, "k1", mock.AnythingOfType("time.Time")).Return(nil).Once()
	auditLog.On("Log", ctx, mock.MatchedBy(func(e audit.Event) bool {
		return e.Type == audit.TypeAPIKeyRevoked
	})).Return().Once()

	require.NoError(t, svc.Revoke(ctx, "tnt_1", "k1", "user-1"))
	require.NoError(t, svc.Revoke(ctx, "tnt_1", "k2", "user-1"))
	assert.ErrorIs(t, svc.Revoke(ctx, "tnt_1", "k3", "user-1"), ErrKeyNotFound)

	repo.AssertExpectations(t)
	auditLog.AssertExpectations(t)
}

// TestPurpose: Validates that a presented plaintext key resolves only to its own active record.
// Scope: Unit Test
// Security: Machine client authentication
// Expected: The issued plaintext authenticates; malformed, unknown, wrong-secret and revoked keys are rejected alike.
// Test Case ID: KEY-04
func TestService_Authenticate(t *testing.T) {
	repo := new(mockRepo)
	auditLog := new(mockAudit)
	svc := NewService(repo, NewHasher(8*1024, 1, 1, 16, 32), auditLog)
	ctx := context.Background()

	var stored *Key
	repo.On("Create", mock.Anything, mock.AnythingOfType("*apikey.Key")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*Key) }).
		Return(nil)
	auditLog.On("Log", mock.Anything, mock.Anything).Return()

	_, plaintext, err := svc.Create(ctx, "tnt_1", "portal", "user-1")
	require.NoError(t, err)
	repo.On("GetByPrefix", mock.Anything, stored.Prefix).Return(stored, nil)
	repo.On("GetByPrefix", mock.Anything, "ffffff").Return(nil, ErrKeyNotFound)

	key, err := svc.Authenticate(ctx, plaintext)
	require.NoError(t, err)
	assert.Equal(t, "tnt_1", key.TenantID)

	for _, bad := range []string{
		"",
		"pdk_only",
		"bearer_" + stored.Prefix + "_abc",
		"pdk_ffffff_abc",
		"pdk_" + stored.Prefix + "_wrongsecret",
	} {
		_, err := svc.Authenticate(ctx, bad)
		assert.ErrorIs(t, err, ErrKeyRejected, bad)
	}

	revokedAt := time.Now()
	stored.RevokedAt = &revokedAt
	_, err = svc.Authenticate(ctx, plaintext)
	assert.ErrorIs(t, err, ErrKeyRejected)
}
