package v1

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docseries/internal/core/numerator"
	"docseries/internal/domain/documents/sales"
	"docseries/internal/domain/numbering"
	"docseries/internal/infrastructure/http/v1/handlers"
	"docseries/internal/infrastructure/http/v1/middleware"
	"docseries/internal/infrastructure/storage/memory"
	"docseries/internal/infrastructure/storage/postgres"
	"docseries/pkg/logger"
)

type testAPI struct {
	store  *memory.Store
	router http.Handler
}

func newTestAPI(t *testing.T, idem middleware.IdempotencyStore) *testAPI {
	t.Helper()

	store := memory.New()
	alloc := numbering.NewAllocator(numbering.AllocatorConfig{Series: store, MaxAttempts: 5})
	svc := numbering.NewService(numbering.ServiceConfig{
		Resolver:  numbering.NewResolver(store),
		Allocator: alloc,
		Series:    store,
		Documents: store,
		Settings:  store,
	})
	admin := numbering.NewAdmin(numbering.AdminConfig{
		Series:    store,
		Configs:   store,
		Settings:  store,
		Documents: store,
		Allocator: alloc,
		Audit:     store,
		TxManager: store,
	})

	reg := prometheus.NewRegistry()
	router := NewRouter(RouterConfig{
		Logger:      logger.Nop(),
		Numbering:   svc,
		Admin:       admin,
		Sales:       sales.NewService(store, svc, store),
		Idempotency: idem,
		Version:     "test",
		HealthChecks: map[string]handlers.Check{
			"storage": func(context.Context) error { return nil },
		},
		Registry: reg,
		Gatherer: reg,
	})
	return &testAPI{store: store, router: router}
}

func (a *testAPI) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (a *testAPI) configureInvoice(t *testing.T) {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/v1/numbering/configurations", map[string]any{
		"documentType":  numerator.SalesInvoice,
		"numberingMode": "Automatic",
		"displayPrefix": "INV",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestRouter_Health(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(t, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"storage":"healthy"`)

	w = api.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_PreviewReserveReconcile(t *testing.T) {
	api := newTestAPI(t, nil)
	api.configureInvoice(t)

	w := api.do(t, http.MethodGet, "/api/v1/numbering/SalesInvoice/preview", nil)
	require.Equal(t, http.StatusOK, w.Code)
	preview := decode[map[string]string](t, w)
	assert.Equal(t, "INV-1001", preview["number"])

	w = api.do(t, http.MethodPost, "/api/v1/numbering/SalesInvoice/reserve", map[string]string{"proposed": "INV-1001"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	r := decode[numerator.Reservation](t, w)
	assert.Equal(t, "INV-1001", r.Number)

	api.store.InsertNumber(numerator.SalesInvoice, "INV-1010")
	w = api.do(t, http.MethodPost, "/api/v1/numbering/SalesInvoice/reconcile", map[string]string{"number": "INV-1010"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[map[string]any](t, w)["reconciled"].(bool))

	w = api.do(t, http.MethodGet, "/api/v1/numbering/SalesInvoice/preview", nil)
	assert.Equal(t, "INV-1011", decode[map[string]string](t, w)["number"])
}

func TestRouter_ReconcileSkipped(t *testing.T) {
	api := newTestAPI(t, nil)
	api.store.InsertNumber(numerator.SalesOrder, "SO-7")

	w := api.do(t, http.MethodPost, "/api/v1/numbering/SalesOrder/reconcile", map[string]string{"number": "SO-7"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.False(t, body["reconciled"].(bool))
	assert.Equal(t, "no numbering configuration", body["reason"])
}

func TestRouter_ReconcileIgnoresUnstoredNumber(t *testing.T) {
	api := newTestAPI(t, nil)
	api.configureInvoice(t)

	w := api.do(t, http.MethodPost, "/api/v1/numbering/SalesInvoice/reconcile", map[string]string{"number": "INV-999999"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.False(t, body["reconciled"].(bool))
	assert.Equal(t, "not stored", body["reason"])

	w = api.do(t, http.MethodGet, "/api/v1/numbering/SalesInvoice/preview", nil)
	assert.Equal(t, "INV-1001", decode[map[string]string](t, w)["number"])
}

func TestRouter_CreateSalesInvoice(t *testing.T) {
	api := newTestAPI(t, nil)
	api.configureInvoice(t)

	w := api.do(t, http.MethodGet, "/api/v1/documents/SalesInvoice/new", nil)
	require.Equal(t, http.StatusOK, w.Code)
	draft := decode[map[string]any](t, w)
	assert.Equal(t, "INV-1001", draft["number"])
	assert.Equal(t, string(numerator.StatePreviewed), draft["numberingState"])

	req := map[string]any{
		"number": "INV-1001",
		"party":  "Acme Ltd",
		"lines":  []map[string]any{{"itemCode": "W-1", "quantity": "2", "rate": "10.50"}},
	}
	w = api.do(t, http.MethodPost, "/api/v1/documents/SalesInvoice", req, middleware.HeaderOperator, "alice")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	assert.Equal(t, "INV-1001", created["number"])
	assert.Equal(t, "21", created["grandTotal"])
	assert.Equal(t, "alice", created["createdBy"])

	// A second save with the same stale preview gets the next number.
	w = api.do(t, http.MethodPost, "/api/v1/documents/SalesInvoice", req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "INV-1002", decode[map[string]any](t, w)["number"])

	w = api.do(t, http.MethodGet, "/api/v1/documents/SalesInvoice/"+created["id"].(string), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(t, http.MethodGet, "/api/v1/documents/SalesInvoice?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["totalCount"])
}

func TestRouter_UnknownDocumentType(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(t, http.MethodGet, "/api/v1/documents/Payment/new", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_ValidationError(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(t, http.MethodPost, "/api/v1/numbering/series", map[string]any{"start": 5})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestRouter_AdminFlow(t *testing.T) {
	api := newTestAPI(t, nil)

	w := api.do(t, http.MethodPost, "/api/v1/numbering/configurations/seed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 3)

	w = api.do(t, http.MethodGet, "/api/v1/numbering/configurations/SalesQuote/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	seriesID := decode[map[string]any](t, w)["seriesId"].(string)

	w = api.do(t, http.MethodGet, "/api/v1/numbering/series/"+seriesID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, seriesID+"1001", decode[map[string]any](t, w)["next"])

	api.store.InsertNumber(numerator.SalesQuote, seriesID+"1040")
	w = api.do(t, http.MethodGet, "/api/v1/numbering/diagnostics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[map[string]any](t, w)["healthy"].(bool))

	w = api.do(t, http.MethodPost, "/api/v1/numbering/resync", map[string]string{"documentType": numerator.SalesQuote})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["advanced"])

	w = api.do(t, http.MethodPut, "/api/v1/numbering/settings", map[string]any{"invoiceNumberPrefix": "FB-"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "FB-", decode[map[string]any](t, w)["invoiceNumberPrefix"])
}

type memIdempotency struct {
	mu   sync.Mutex
	done map[string]*postgres.IdempotencyReplay
}

func (m *memIdempotency) AcquireKey(_ context.Context, key, _, _, _ string) (*postgres.IdempotencyReplay, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done[key], nil
}

func (m *memIdempotency) CompleteKey(_ context.Context, key string, status int, ct string, response any) error {
	body, err := json.Marshal(response)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done[key] = &postgres.IdempotencyReplay{StatusCode: status, ContentType: ct, Body: body}
	return nil
}

func (m *memIdempotency) FailKey(ctx context.Context, key string, status int, ct string, response any) error {
	return m.CompleteKey(ctx, key, status, ct, response)
}

func TestRouter_IdempotentReserve(t *testing.T) {
	api := newTestAPI(t, &memIdempotency{done: map[string]*postgres.IdempotencyReplay{}})
	api.configureInvoice(t)

	first := api.do(t, http.MethodPost, "/api/v1/numbering/SalesInvoice/reserve", nil, middleware.HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusOK, first.Code)
	second := api.do(t, http.MethodPost, "/api/v1/numbering/SalesInvoice/reserve", nil, middleware.HeaderIdempotencyKey, "k-1")
	require.Equal(t, http.StatusOK, second.Code)

	assert.Equal(t, decode[numerator.Reservation](t, first).Number, decode[numerator.Reservation](t, second).Number)

	w := api.do(t, http.MethodGet, "/api/v1/numbering/SalesInvoice/preview", nil)
	assert.Equal(t, "INV-1002", decode[map[string]string](t, w)["number"])
}
