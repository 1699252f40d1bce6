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
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/propdesk/propdesk/internal/audit"
)

const (
	keyScheme    = "pdk"
	prefixBytes  = 6
	secretBytes  = 24
	maxNameChars = 100
)

// Service manages tenant API keys
type Service struct {
	repo        Repository
	hasher      *Hasher
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new API key service
func NewService(repo Repository, hasher *Hasher, auditLogger audit.Logger) *Service {
	if hasher == nil {
		hasher = DefaultHasher()
	}
	return &Service{
		repo:        repo,
		hasher:      hasher,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// Create issues a key for tenantID. The plaintext is returned once and never stored.
// Plaintext keys look like pdk_<prefix>_<secret>.
func (s *Service) Create(ctx context.Context, tenantID, name, actorID string) (*Key, string, error) {
	name = strings.TrimSpace(name)
	if tenantID == "" {
		return nil, "", fmt.Errorf("%w: tenant is required", ErrInvalidKey)
	}
	if name == "" || len(name) > maxNameChars {
		return nil, "", fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidKey, maxNameChars)
	}

	prefix, err := randomHex(prefixBytes)
	if err != nil {
		return nil, "", err
	}
	secret, err := randomHex(secretBytes)
	if err != nil {
		return nil, "", err
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash api key: %w", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate api key id: %w", err)
	}

	key := &Key{
		ID:        id.String(),
		TenantID:  tenantID,
		Name:      name,
		Prefix:    prefix,
		Hash:      hash,
		CreatedBy: actorID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, key); err != nil {
		return nil, "", fmt.Errorf("failed to create api key: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAPIKeyCreated,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: "api_key",
		Metadata: map[string]any{"api_key_id": key.ID, "prefix": prefix, "name": name},
	})

	return key, fmt.Sprintf("%s_%s_%s", keyScheme, prefix, secret), nil
}

// Authenticate resolves a presented plaintext key to the active key it belongs to.
func (s *Service) Authenticate(ctx context.Context, plaintext string) (*Key, error) {
	prefix, secret, ok := parsePlaintext(plaintext)
	if !ok {
		return nil, fmt.Errorf("%w: malformed key", ErrKeyRejected)
	}

	key, err := s.repo.GetByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: unknown prefix", ErrKeyRejected)
		}
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}

	match, err := s.hasher.Verify(secret, key.Hash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify api key: %w", err)
	}
	if !match {
		return nil, fmt.Errorf("%w: secret mismatch", ErrKeyRejected)
	}
	if !key.Active() {
		return nil, fmt.Errorf("%w: revoked", ErrKeyRejected)
	}
	return key, nil
}

// parsePlaintext splits pdk_<prefix>_<secret>
func parsePlaintext(plaintext string) (prefix, secret string, ok bool) {
	parts := strings.Split(strings.TrimSpace(plaintext), "_")
	if len(parts) != 3 || parts[0] != keyScheme || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// List returns the keys of one tenant, revoked ones included
func (s *Service) List(ctx context.Context, tenantID string) ([]*Key, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}

// Revoke disables a key. Ownership is checked upstream; tenantID is recorded for audit.
func (s *Service) Revoke(ctx context.Context, tenantID, id, actorID string) error {
	key, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !key.Active() {
		return nil
	}

	if err := s.repo.Revoke(ctx, id, s.now().UTC()); err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAPIKeyRevoked,
		TenantID: tenantID,
		ActorID:  actorID,
		Resource: "api_key",
		Metadata: map[string]any{"api_key_id": id},
	})
	return nil
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}
