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

package identity

import (
	"context"
	"errors"
	"fmt"
)

// Service resolves caller identities to their home tenant
type Service struct {
	repo UserRepository
}

// NewService creates a new identity service
func NewService(repo UserRepository) *Service {
	return &Service{repo: repo}
}

// HomeTenant returns the tenant id of the user with the given subject id.
// Unknown users and platform operators yield an empty id and no error;
// the caller decides whether a tenant-less request is acceptable.
func (s *Service) HomeTenant(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", nil
	}

	tenantID, err := s.repo.TenantIDForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to look up user tenant: %w", err)
	}
	if tenantID == nil {
		return "", nil
	}
	return *tenantID, nil
}
