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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/propdesk/propdesk/internal/apikey"
)

// APIKeyRepository implements apikey.Repository
type APIKeyRepository struct {
	db *DB
}

// NewAPIKeyRepository creates a new API key repository
func NewAPIKeyRepository(db *DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

const apiKeyColumns = `id, tenant_id, name, prefix, hash, created_by, created_at, revoked_at`

func scanAPIKey(row pgx.Row) (*apikey.Key, error) {
	var k apikey.Key
	if err := row.Scan(&k.ID, &k.TenantID, &k.Name, &k.Prefix, &k.Hash, &k.CreatedBy, &k.CreatedAt, &k.RevokedAt); err != nil {
		return nil, err
	}
	return &k, nil
}

// Create inserts a new key
func (r *APIKeyRepository) Create(ctx context.Context, k *apikey.Key) error {
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO api_keys (`+apiKeyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, k.ID, k.TenantID, k.Name, k.Prefix, k.Hash, k.CreatedBy, k.CreatedAt, k.RevokedAt)
	if err != nil {
		return fmt.Errorf("failed to insert api key: %w", err)
	}
	return nil
}

// GetByID retrieves a key by ID
func (r *APIKeyRepository) GetByID(ctx context.Context, id string) (*apikey.Key, error) {
	k, err := scanAPIKey(r.db.pool.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apikey.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return k, nil
}

// GetByPrefix retrieves a key by its public prefix
func (r *APIKeyRepository) GetByPrefix(ctx context.Context, prefix string) (*apikey.Key, error) {
	k, err := scanAPIKey(r.db.pool.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE prefix = $1`, prefix))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apikey.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get api key: %w", err)
	}
	return k, nil
}

// ListByTenant returns a tenant's keys, newest first
func (r *APIKeyRepository) ListByTenant(ctx context.Context, tenantID string) ([]*apikey.Key, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+apiKeyColumns+`
		FROM api_keys
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	keys := []*apikey.Key{}
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// Revoke marks a key revoked; already revoked keys keep their original timestamp
func (r *APIKeyRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.pool.Exec(ctx, `
		UPDATE api_keys SET revoked_at = COALESCE(revoked_at, $2)
		WHERE id = $1
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apikey.ErrKeyNotFound
	}
	return nil
}
