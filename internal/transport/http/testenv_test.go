package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/propdesk/propdesk/internal/apikey"
	"github.com/propdesk/propdesk/internal/audit"
	"github.com/propdesk/propdesk/internal/auth"
	"github.com/propdesk/propdesk/internal/billing"
	"github.com/propdesk/propdesk/internal/identity"
	"github.com/propdesk/propdesk/internal/ownership"
	"github.com/propdesk/propdesk/internal/tenant"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "http-test-secret-0123456789abcdef"

// store is an in-memory backing for every repository the router needs
type store struct {
	mu       sync.Mutex
	tenants  map[string]*tenant.Tenant
	users    map[string]*identity.User
	invoices map[string]*billing.Invoice
	keys     map[string]*apikey.Key
	owners   map[ownership.Kind]map[string]string

	// invoiceErr, when set, fails every invoice lookup
	invoiceErr error
}

func newStore() *store {
	return &store{
		tenants:  map[string]*tenant.Tenant{},
		users:    map[string]*identity.User{},
		invoices: map[string]*billing.Invoice{},
		keys:     map[string]*apikey.Key{},
		owners:   map[ownership.Kind]map[string]string{},
	}
}

type tenantRepo struct{ s *store }

func (r tenantRepo) Create(_ context.Context, t *tenant.Tenant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *t
	r.s.tenants[t.ID] = &c
	return nil
}

func (r tenantRepo) GetByID(_ context.Context, id string) (*tenant.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return nil, tenant.ErrTenantNotFound
	}
	c := *t
	return &c, nil
}

func (r tenantRepo) List(_ context.Context, limit, offset int) ([]*tenant.Tenant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]string, 0, len(r.s.tenants))
	for id := range r.s.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var out []*tenant.Tenant
	for i := offset; i < len(ids) && len(out) < limit; i++ {
		c := *r.s.tenants[ids[i]]
		out = append(out, &c)
	}
	return out, nil
}

func (r tenantRepo) UpdateStatus(_ context.Context, id string, status tenant.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	t.Status = status
	return nil
}

func (r tenantRepo) UpdateBillingState(_ context.Context, id string, expected, status tenant.Status, next *time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tenants[id]
	if !ok {
		return tenant.ErrTenantNotFound
	}
	if t.Status != expected {
		return tenant.ErrStatusConflict
	}
	t.Status = status
	t.NextBillingDate = next
	return nil
}

type userRepo struct{ s *store }

func (r userRepo) GetByID(_ context.Context, id string) (*identity.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, identity.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r userRepo) TenantIDForUser(ctx context.Context, id string) (*string, error) {
	u, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.TenantID, nil
}

type invoiceRepo struct{ s *store }

func (r invoiceRepo) Create(_ context.Context, inv *billing.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *inv
	r.s.invoices[inv.ID] = &c
	return nil
}

func (r invoiceRepo) GetByID(_ context.Context, id string) (*billing.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.invoiceErr != nil {
		return nil, r.s.invoiceErr
	}
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, billing.ErrInvoiceNotFound
	}
	c := *inv
	return &c, nil
}

func (r invoiceRepo) GetByGatewayExternalID(_ context.Context, externalID string) (*billing.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.invoiceErr != nil {
		return nil, r.s.invoiceErr
	}
	for _, inv := range r.s.invoices {
		if inv.GatewayExternalID != nil && *inv.GatewayExternalID == externalID {
			c := *inv
			return &c, nil
		}
	}
	return nil, billing.ErrInvoiceNotFound
}

func (r invoiceRepo) ListByTenant(_ context.Context, tenantID string) ([]*billing.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*billing.Invoice
	for _, inv := range r.s.invoices {
		if inv.TenantID == tenantID {
			c := *inv
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r invoiceRepo) Mutate(_ context.Context, id string, fn func(*billing.Invoice) error) (*billing.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.invoices[id]
	if !ok {
		return nil, billing.ErrInvoiceNotFound
	}
	c := *inv
	if inv.GatewayData != nil {
		c.GatewayData = map[string]any{}
		for k, v := range inv.GatewayData {
			c.GatewayData[k] = v
		}
	}
	if err := fn(&c); err != nil {
		return nil, err
	}
	stored := c
	r.s.invoices[id] = &stored
	return &c, nil
}

type keyRepo struct{ s *store }

func (r keyRepo) Create(_ context.Context, k *apikey.Key) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c := *k
	r.s.keys[k.ID] = &c
	return nil
}

func (r keyRepo) GetByID(_ context.Context, id string) (*apikey.Key, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k, ok := r.s.keys[id]
	if !ok {
		return nil, apikey.ErrKeyNotFound
	}
	c := *k
	return &c, nil
}

func (r keyRepo) GetByPrefix(_ context.Context, prefix string) (*apikey.Key, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, k := range r.s.keys {
		if k.Prefix == prefix {
			c := *k
			return &c, nil
		}
	}
	return nil, apikey.ErrKeyNotFound
}

func (r keyRepo) ListByTenant(_ context.Context, tenantID string) ([]*apikey.Key, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*apikey.Key
	for _, k := range r.s.keys {
		if k.TenantID == tenantID {
			c := *k
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r keyRepo) Revoke(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k, ok := r.s.keys[id]
	if !ok {
		return apikey.ErrKeyNotFound
	}
	if k.RevokedAt == nil {
		k.RevokedAt = &at
	}
	return nil
}

// loaders resolves owners from the fake tables, invoices and keys included
func (s *store) loaders() map[ownership.Kind]ownership.Loader {
	out := map[ownership.Kind]ownership.Loader{}
	for _, kind := range ownership.Kinds {
		kind := kind
		out[kind] = func(_ context.Context, id string) (string, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			switch kind {
			case ownership.KindInvoice:
				if inv, ok := s.invoices[id]; ok {
					return inv.TenantID, nil
				}
			case ownership.KindAPIKey:
				if k, ok := s.keys[id]; ok {
					return k.TenantID, nil
				}
			default:
				if owner, ok := s.owners[kind][id]; ok {
					return owner, nil
				}
			}
			return "", ownership.ErrResourceNotFound
		}
	}
	return out
}

func (s *store) addTenant(id string, status tenant.Status) {
	s.tenants[id] = &tenant.Tenant{ID: id, Name: "Tenant " + id, Status: status}
}

func (s *store) addUser(id string, role auth.Role, tenantID string) {
	u := &identity.User{ID: id, Email: id + "@example.com", Role: role}
	if tenantID != "" {
		u.TenantID = &tenantID
	}
	s.users[id] = u
}

func (s *store) addInvoice(id, tenantID, externalID string, due time.Time) {
	inv := &billing.Invoice{ID: id, TenantID: tenantID, Amount: 10000, DueDate: due, Status: billing.StatusPending}
	if externalID != "" {
		inv.GatewayExternalID = &externalID
	}
	s.invoices[id] = inv
}

func (s *store) invoice(id string) billing.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.invoices[id]
}

func (s *store) tenantStatus(id string) tenant.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tenants[id].Status
}

// recordingAudit keeps every audit event for inspection
type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (a *recordingAudit) Log(_ context.Context, e audit.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, e)
}

func (a *recordingAudit) ofType(eventType string) []audit.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []audit.Event
	for _, e := range a.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

// testEnv wires the real services over the in-memory store
type testEnv struct {
	t       *testing.T
	store   *store
	handler *Handler
	router  http.Handler
	issuer  *auth.Issuer
	audit   *recordingAudit
}

func newTestEnv(t *testing.T, hideForeign bool, webhookToken string) *testEnv {
	t.Helper()
	s := newStore()
	a := &recordingAudit{}

	billingService, err := billing.NewService(invoiceRepo{s}, tenantRepo{s}, nil, a, nil, nil)
	require.NoError(t, err)

	h := NewHandler(
		auth.NewVerifier(testJWTSecret, "propdesk", 0),
		identity.NewService(userRepo{s}),
		tenant.NewService(tenantRepo{s}, a),
		ownership.NewGuard(s.loaders(), hideForeign),
		billingService,
		apikey.NewService(keyRepo{s}, apikey.NewHasher(8*1024, 1, 1, 16, 32), a),
		a,
		nil,
		webhookToken,
	)

	return &testEnv{
		t:       t,
		store:   s,
		handler: h,
		router:  NewRouter(h, RouterOptions{}),
		issuer:  auth.NewIssuer(testJWTSecret, "propdesk"),
		audit:   a,
	}
}

func (e *testEnv) token(userID string, role auth.Role) string {
	e.t.Helper()
	tok, err := e.issuer.Issue(userID, role, time.Hour)
	require.NoError(e.t, err)
	return "Bearer " + tok
}

type requestOpt func(*http.Request)

func withAuth(header string) requestOpt {
	return func(r *http.Request) { r.Header.Set("Authorization", header) }
}

// issueKey creates a real API key for tenantID and returns its plaintext
func (e *testEnv) issueKey(tenantID string) (*apikey.Key, string) {
	e.t.Helper()
	key, plaintext, err := e.handler.apiKeyService.Create(context.Background(), tenantID, "integration", "setup")
	require.NoError(e.t, err)
	return key, plaintext
}

func withHeader(key, value string) requestOpt {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

func (e *testEnv) do(method, path string, body any, opts ...requestOpt) *httptest.ResponseRecorder {
	e.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(e.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	code, _ := body["error"].(string)
	return code
}
