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
	"github.com/propdesk/propdesk/internal/billing"
)

// InvoiceRepository implements billing.InvoiceRepository
type InvoiceRepository struct {
	db *DB
}

// NewInvoiceRepository creates a new invoice repository
func NewInvoiceRepository(db *DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `id, tenant_id, amount, due_date, paid_date, status, gateway_external_id, gateway_data, created_at, updated_at`

func scanInvoice(row pgx.Row) (*billing.Invoice, error) {
	var inv billing.Invoice
	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.Amount, &inv.DueDate, &inv.PaidDate, &inv.Status,
		&inv.GatewayExternalID, &inv.GatewayData, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func gatewayData(inv *billing.Invoice) map[string]any {
	if inv.GatewayData == nil {
		return map[string]any{}
	}
	return inv.GatewayData
}

// Create inserts a new invoice
func (r *InvoiceRepository) Create(ctx context.Context, inv *billing.Invoice) error {
	now := time.Now()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	if inv.UpdatedAt.IsZero() {
		inv.UpdatedAt = now
	}

	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`,
		inv.ID, inv.TenantID, inv.Amount, inv.DueDate, inv.PaidDate, inv.Status,
		inv.GatewayExternalID, gatewayData(inv), inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

// GetByID retrieves an invoice by ID
func (r *InvoiceRepository) GetByID(ctx context.Context, id string) (*billing.Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
}

// GetByGatewayExternalID retrieves an invoice by the payment gateway's identifier
func (r *InvoiceRepository) GetByGatewayExternalID(ctx context.Context, externalID string) (*billing.Invoice, error) {
	return r.getOne(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE gateway_external_id = $1`, externalID)
}

func (r *InvoiceRepository) getOne(ctx context.Context, query string, arg string) (*billing.Invoice, error) {
	inv, err := scanInvoice(r.db.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, billing.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return inv, nil
}

// ListByTenant returns a tenant's invoices, earliest due first
func (r *InvoiceRepository) ListByTenant(ctx context.Context, tenantID string) ([]*billing.Invoice, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE tenant_id = $1
		ORDER BY due_date, id
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*billing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate invoices: %w", err)
	}
	return invoices, nil
}

// Mutate applies fn to the invoice while holding its row lock.
// Concurrent deliveries for the same invoice are serialised here.
func (r *InvoiceRepository) Mutate(ctx context.Context, id string, fn func(*billing.Invoice) error) (*billing.Invoice, error) {
	var out *billing.Invoice

	err := r.db.withTx(ctx, func(tx pgx.Tx) error {
		inv, err := scanInvoice(tx.QueryRow(ctx, `
			SELECT `+invoiceColumns+`
			FROM invoices
			WHERE id = $1
			FOR UPDATE
		`, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return billing.ErrInvoiceNotFound
			}
			return fmt.Errorf("failed to lock invoice: %w", err)
		}

		if err := fn(inv); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE invoices SET
				status = $2,
				paid_date = $3,
				gateway_data = $4,
				updated_at = $5
			WHERE id = $1
		`, inv.ID, inv.Status, inv.PaidDate, gatewayData(inv), inv.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}

		out = inv
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
