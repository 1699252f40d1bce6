package billing

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/propdesk/propdesk/internal/audit"
	"github.com/propdesk/propdesk/internal/events"
	"github.com/propdesk/propdesk/internal/tenant"
	"github.com/stretchr/testify/mock"
)

// memInvoices is an in-memory InvoiceRepository with the same copy semantics as the store.
type memInvoices struct {
	mu   sync.Mutex
	rows map[string]*Invoice

	// onList runs before ListByTenant reads, outside the lock
	onList func(tenantID string)
}

func newMemInvoices(invoices ...*Invoice) *memInvoices {
	m := &memInvoices{rows: make(map[string]*Invoice)}
	for _, inv := range invoices {
		m.rows[inv.ID] = cloneInvoice(inv)
	}
	return m
}

func cloneInvoice(inv *Invoice) *Invoice {
	c := *inv
	if inv.PaidDate != nil {
		p := *inv.PaidDate
		c.PaidDate = &p
	}
	if inv.GatewayData != nil {
		c.GatewayData = make(map[string]any, len(inv.GatewayData))
		for k, v := range inv.GatewayData {
			c.GatewayData[k] = v
		}
	}
	return &c
}

func (m *memInvoices) Create(_ context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[inv.ID] = cloneInvoice(inv)
	return nil
}

func (m *memInvoices) GetByID(_ context.Context, id string) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.rows[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	return cloneInvoice(inv), nil
}

func (m *memInvoices) GetByGatewayExternalID(_ context.Context, externalID string) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, inv := range m.rows {
		if inv.GatewayExternalID != nil && *inv.GatewayExternalID == externalID {
			return cloneInvoice(inv), nil
		}
	}
	return nil, ErrInvoiceNotFound
}

func (m *memInvoices) ListByTenant(_ context.Context, tenantID string) ([]*Invoice, error) {
	if m.onList != nil {
		m.onList(tenantID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Invoice
	for _, inv := range m.rows {
		if inv.TenantID == tenantID {
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (m *memInvoices) Mutate(_ context.Context, id string, fn func(*Invoice) error) (*Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.rows[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	c := cloneInvoice(inv)
	if err := fn(c); err != nil {
		return nil, err
	}
	m.rows[id] = cloneInvoice(c)
	return c, nil
}

// memTenants is an in-memory tenant.Repository
type memTenants struct {
	mu        sync.Mutex
	rows      map[string]*tenant.Tenant
	writes    int
	conflicts int
	failOn    map[string]error
}

func newMemTenants(tenants ...*tenant.Tenant) *memTenants {
	m := &memTenants{rows: make(map[string]*tenant.Tenant), failOn: make(map[string]error)}
	for _, t := range tenants {
		c := *t
		m.rows[t.ID] = &c
	}
	return m
}

func (m *memTenants) Create(_ context.Context, t *tenant.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *t
	m.rows[t.ID] = &c
	return nil
}

func (m *memTenants) GetByID(_ context.Context, id string) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	c := *t
	return &c, nil
}

func (m *memTenants) List(_ context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []*tenant.Tenant
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		c := *m.rows[ids[i]]
		out = append(out, &c)
	}
	return out, nil
}

func (m *memTenants) UpdateStatus(_ context.Context, id string, status tenant.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.rows[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	t.Status = status
	return nil
}

func (m *memTenants) UpdateBillingState(_ context.Context, id string, expected, status tenant.Status, next *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failOn[id]; ok {
		return err
	}
	t, ok := m.rows[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	if t.Status != expected {
		m.conflicts++
		return tenant.ErrStatusConflict
	}
	m.writes++
	t.Status = status
	t.NextBillingDate = next
	return nil
}

func (m *memTenants) status(id string) tenant.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Status
}

// recordingAudit captures audit events
type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingAudit) count(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

// mockPublisher is a testify mock for events.Publisher
type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, e events.Event) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

var errStore = errors.New("store unavailable")
