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
	"errors"
	"time"
)

// Domain errors
var (
	ErrKeyNotFound = errors.New("api key not found")
	ErrInvalidKey  = errors.New("invalid api key")

	// ErrKeyRejected covers every failed presentation: malformed, unknown,
	// wrong secret or revoked. Callers cannot tell these apart.
	ErrKeyRejected = errors.New("api key rejected")
)

// Key is a tenant-scoped credential for machine clients.
// Only the Argon2id hash of the secret is stored.
type Key struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenant_id"`
	Name      string     `json:"name"`
	Prefix    string     `json:"prefix"`
	Hash      string     `json:"-"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Active reports whether the key has not been revoked
func (k *Key) Active() bool {
	return k.RevokedAt == nil
}

// Repository defines the interface for API key persistence
type Repository interface {
	Create(ctx context.Context, key *Key) error
	GetByID(ctx context.Context, id string) (*Key, error)
	GetByPrefix(ctx context.Context, prefix string) (*Key, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*Key, error)
	Revoke(ctx context.Context, id string, at time.Time) error
}
