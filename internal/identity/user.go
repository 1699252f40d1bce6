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
	"time"

	"github.com/propdesk/propdesk/internal/auth"
)

// Domain errors
var (
	ErrUserNotFound = errors.New("user not found")
)

// User represents a platform user.
//
// A user without TenantID is a platform-level operator; a user with
// TenantID belongs to exactly that tenant.
type User struct {
	ID        string
	Email     string
	Role      auth.Role
	TenantID  *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRepository defines the interface for user lookups needed by request authorization
type UserRepository interface {
	// TenantIDForUser returns the tenant a user belongs to, or nil for platform operators
	TenantIDForUser(ctx context.Context, userID string) (*string, error)
}
