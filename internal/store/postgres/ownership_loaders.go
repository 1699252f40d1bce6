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

	"github.com/jackc/pgx/v5"
	"github.com/propdesk/propdesk/internal/ownership"
)

// ownerQueries maps each resource kind to the query returning only its tenant reference.
// Table names are fixed here and never taken from input.
var ownerQueries = map[ownership.Kind]string{
	ownership.KindProperty:    `SELECT tenant_id FROM properties WHERE id = $1`,
	ownership.KindLead:        `SELECT tenant_id FROM leads WHERE id = $1`,
	ownership.KindOpportunity: `SELECT tenant_id FROM opportunities WHERE id = $1`,
	ownership.KindVisit:       `SELECT tenant_id FROM visits WHERE id = $1`,
	ownership.KindInvoice:     `SELECT tenant_id FROM invoices WHERE id = $1`,
	ownership.KindAPIKey:      `SELECT tenant_id FROM api_keys WHERE id = $1`,
	ownership.KindWebhook:     `SELECT tenant_id FROM webhooks WHERE id = $1`,
}

// OwnershipLoaders returns one tenant-reference loader per resource kind
func OwnershipLoaders(db *DB) map[ownership.Kind]ownership.Loader {
	loaders := make(map[ownership.Kind]ownership.Loader, len(ownerQueries))
	for kind, query := range ownerQueries {
		loaders[kind] = ownerLoader(db, kind, query)
	}
	return loaders
}

func ownerLoader(db *DB, kind ownership.Kind, query string) ownership.Loader {
	return func(ctx context.Context, id string) (string, error) {
		var tenantID string
		if err := db.pool.QueryRow(ctx, query, id).Scan(&tenantID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return "", ownership.ErrResourceNotFound
			}
			return "", fmt.Errorf("failed to load %s tenant: %w", kind, err)
		}
		return tenantID, nil
	}
}
