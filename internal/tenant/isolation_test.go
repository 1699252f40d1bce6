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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates that tenant-scoped operations strictly require a resolved tenant id.
// Scope: Unit Test
// Security: Multi-tenant boundary enforcement
// Expected: Admit returns ErrTenantRequired for an empty id without querying storage.
// Test Case ID: ADM-01
func TestTenant_Admit_TenantIDMustBePresent(t *testing.T) {
	repo := new(mockRepo)
	service := NewService(repo, new(mockAudit))

	_, err := service.Admit(context.Background(), "")
	assert.ErrorIs(t, err, ErrTenantRequired)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

// TestPurpose: Validates admission by tenant status.
// Scope: Unit Test
// Security: Suspended and delinquent tenants are served nothing
// Expected: ACTIVE and TRIAL are admitted; INACTIVE and PAST_DUE fail with ErrTenantInactive.
// Test Case ID: ADM-02
func TestTenant_Admit_ByStatus(t *testing.T) {
	tests := []struct {
		status  Status
		wantErr error
	}{
		{StatusActive, nil},
		{StatusTrial, nil},
		{StatusInactive, ErrTenantInactive},
		{StatusPastDue, ErrTenantInactive},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			repo := new(mockRepo)
			service := NewService(repo, new(mockAudit))
			ctx := context.Background()

			repo.On("GetByID", ctx, "t-1").Return(&Tenant{ID: "t-1", Status: tt.status}, nil)

			ten, err := service.Admit(ctx, "t-1")
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "t-1", ten.ID)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, ten)
		})
	}
}

// TestPurpose: Validates the distinction between a missing tenant and a storage failure.
// Scope: Unit Test
// Expected: Missing rows map to ErrTenantNotFound; other errors are wrapped and are not admission failures.
// Test Case ID: ADM-03
func TestTenant_Admit_LookupFailures(t *testing.T) {
	repo := new(mockRepo)
	service := NewService(repo, new(mockAudit))
	ctx := context.Background()

	repo.On("GetByID", ctx, "missing").Return(nil, ErrTenantNotFound)
	boom := errors.New("connection reset")
	repo.On("GetByID", ctx, "broken").Return(nil, boom)

	_, err := service.Admit(ctx, "missing")
	assert.ErrorIs(t, err, ErrTenantNotFound)

	_, err = service.Admit(ctx, "broken")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTenantNotFound)
	assert.NotErrorIs(t, err, ErrTenantInactive)
}
