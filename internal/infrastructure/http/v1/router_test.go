package v1_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clinicledger/internal/app"
	"clinicledger/internal/config"
	v1 "clinicledger/internal/infrastructure/http/v1"
	"clinicledger/internal/infrastructure/http/v1/handlers"
	"clinicledger/internal/infrastructure/http/v1/middleware"
	"clinicledger/pkg/logger"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	cfg := &config.Config{
		Database:  config.DatabaseConfig{Driver: config.DriverMemory},
		Inventory: config.InventoryConfig{StockPolicy: "clamp"},
		Billing:   config.BillingConfig{FolioScope: "invoice", FolioPrefix: "FAC", FolioPadWidth: 6},
	}
	st := app.NewMemoryStorage()
	svc, err := app.NewServices(st, cfg)
	require.NoError(t, err)

	return v1.NewRouter(v1.RouterConfig{
		Logger:      logger.Nop(),
		Health:      handlers.NewHealthHandler("test", st.Driver, nil, nil),
		Inventory:   svc.Inventory,
		Procedures:  svc.Procedures,
		Billing:     svc.Billing,
		Audit:       st.Audit,
		Idempotency: st.Idempotency,
	})
}

type request struct {
	method  string
	path    string
	body    any
	headers map[string]string
}

func send(t *testing.T, r *gin.Engine, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if req.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(req.body))
	}
	httpReq := httptest.NewRequest(req.method, req.path, &body)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(middleware.HeaderActorID, "nurse-1")
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httpReq)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func createItem(t *testing.T, r *gin.Engine, body map[string]any) string {
	t.Helper()
	w := send(t, r, request{method: http.MethodPost, path: "/api/v1/inventory/items", body: body})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode(t, w)["id"].(string)
}

func TestHealthLive(t *testing.T) {
	r := newTestRouter(t)

	w := send(t, r, request{method: http.MethodGet, path: "/health/live"})

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestInventoryFlow(t *testing.T) {
	r := newTestRouter(t)
	itemID := createItem(t, r, map[string]any{
		"name": "Gloves", "sku": "GLV-M", "unit": "box",
		"minStock": 5, "openingStock": 10, "openingCost": 500,
	})

	w := send(t, r, request{method: http.MethodPost, path: "/api/v1/inventory/movements", body: map[string]any{
		"itemId": itemID, "type": "PURCHASE", "quantity": 10, "unitCost": 800,
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	item := decode(t, w)["item"].(map[string]any)
	assert.EqualValues(t, 20, item["stock"])
	assert.EqualValues(t, 650, item["avgCost"])
	assert.EqualValues(t, 800, item["lastCost"])

	w = send(t, r, request{method: http.MethodPost, path: "/api/v1/inventory/movements", body: map[string]any{
		"itemId": itemID, "type": "USE", "quantity": 17,
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = send(t, r, request{method: http.MethodGet, path: "/api/v1/inventory/items/low-stock"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	low := decode(t, w)["items"].([]any)
	require.Len(t, low, 1)
	assert.Equal(t, itemID, low[0].(map[string]any)["id"])

	w = send(t, r, request{method: http.MethodGet, path: "/api/v1/inventory/movements?itemId=" + itemID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 3, decode(t, w)["totalCount"])

	w = send(t, r, request{method: http.MethodGet, path: "/api/v1/inventory/items/" + itemID + "/reconcile"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decode(t, w)["diverged"])
}

func TestRecordMovementErrors(t *testing.T) {
	r := newTestRouter(t)
	itemID := createItem(t, r, map[string]any{"name": "Gauze"})

	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{
			name:   "unknown type",
			body:   map[string]any{"itemId": itemID, "type": "THEFT", "quantity": 1},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "zero quantity",
			body:   map[string]any{"itemId": itemID, "type": "USE", "quantity": 0},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "cost on use",
			body:   map[string]any{"itemId": itemID, "type": "USE", "quantity": 1, "unitCost": 10},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "missing item",
			body:   map[string]any{"itemId": "0190a4c4-7f1e-7a3b-9c1d-2e3f4a5b6c7d", "type": "USE", "quantity": 1},
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := send(t, r, request{method: http.MethodPost, path: "/api/v1/inventory/movements", body: tt.body})
			require.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode(t, w)["code"])
		})
	}
}

func TestDuplicateSKU(t *testing.T) {
	r := newTestRouter(t)
	createItem(t, r, map[string]any{"name": "Mask", "sku": "MSK"})

	w := send(t, r, request{method: http.MethodPost, path: "/api/v1/inventory/items", body: map[string]any{
		"name": "Mask 2", "sku": "MSK",
	}})

	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestInvoiceFlow(t *testing.T) {
	r := newTestRouter(t)

	w := send(t, r, request{method: http.MethodPost, path: "/api/v1/procedures", body: map[string]any{
		"code": "CLN", "name": "Cleaning", "pricing": map[string]any{"kind": "fixed", "amount": 60000},
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = send(t, r, request{method: http.MethodGet, path: "/api/v1/procedures/by-code/CLN"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = send(t, r, request{method: http.MethodPost, path: "/api/v1/invoices", body: map[string]any{
		"patientId": "P-1",
		"lines": []map[string]any{
			{"procedureCode": "CLN", "quantity": 2},
			{"procedureCode": "CLN", "tooth": "18", "unitPrice": 45000},
		},
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	inv := decode(t, w)
	assert.Equal(t, fmt.Sprintf("FAC-%d-000001", time.Now().UTC().Year()), inv["folio"])
	assert.EqualValues(t, 165000, inv["total"])
	require.Len(t, inv["lines"], 2)

	invoiceID := inv["id"].(string)
	w = send(t, r, request{method: http.MethodGet, path: "/api/v1/invoices/" + invoiceID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = send(t, r, request{method: http.MethodGet, path: "/api/v1/invoices?patientId=P-1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, decode(t, w)["totalCount"])

	w = send(t, r, request{method: http.MethodDelete, path: "/api/v1/invoices/" + invoiceID})
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = send(t, r, request{method: http.MethodGet, path: "/api/v1/invoices/" + invoiceID})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvoiceUnknownProcedure(t *testing.T) {
	r := newTestRouter(t)

	w := send(t, r, request{method: http.MethodPost, path: "/api/v1/invoices", body: map[string]any{
		"patientId": "P-1",
		"lines":     []map[string]any{{"procedureCode": "NOPE"}},
	}})

	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
}

func TestIdempotentReplay(t *testing.T) {
	r := newTestRouter(t)
	body := map[string]any{"name": "Syringe", "sku": "SYR"}
	headers := map[string]string{middleware.HeaderIdempotencyKey: "key-1"}

	first := send(t, r, request{method: http.MethodPost, path: "/api/v1/inventory/items", body: body, headers: headers})
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())

	second := send(t, r, request{method: http.MethodPost, path: "/api/v1/inventory/items", body: body, headers: headers})
	require.Equal(t, http.StatusCreated, second.Code, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replay"))
	assert.Equal(t, decode(t, first)["id"], decode(t, second)["id"])

	w := send(t, r, request{method: http.MethodGet, path: "/api/v1/inventory/items"})
	assert.EqualValues(t, 1, decode(t, w)["totalCount"])
}

func TestIdempotencyMismatch(t *testing.T) {
	r := newTestRouter(t)
	headers := map[string]string{middleware.HeaderIdempotencyKey: "key-2"}

	w := send(t, r, request{method: http.MethodPost, path: "/api/v1/inventory/items",
		body: map[string]any{"name": "A"}, headers: headers})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = send(t, r, request{method: http.MethodPost, path: "/api/v1/inventory/items",
		body: map[string]any{"name": "B"}, headers: headers})

	assert.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestAuditHistory(t *testing.T) {
	r := newTestRouter(t)
	itemID := createItem(t, r, map[string]any{"name": "Bur"})

	w := send(t, r, request{method: http.MethodPut, path: "/api/v1/inventory/items/" + itemID,
		body: map[string]any{"name": "Diamond bur"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = send(t, r, request{method: http.MethodPost, path: "/api/v1/inventory/items/" + itemID + "/active",
		body: map[string]any{"active": false}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = send(t, r, request{method: http.MethodGet, path: "/api/v1/audit/inventory_item/" + itemID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	entries := decode(t, w)["items"].([]any)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "nurse-1", e.(map[string]any)["actorId"])
	}

	w = send(t, r, request{method: http.MethodGet, path: "/api/v1/audit/invoice/" + itemID})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestValidationReportsFields(t *testing.T) {
	r := newTestRouter(t)

	w := send(t, r, request{method: http.MethodPost, path: "/api/v1/invoices", body: map[string]any{
		"lines": []map[string]any{{"quantity": 1}},
	}})

	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	fields := body["details"].(map[string]any)["fields"].(map[string]any)
	assert.Equal(t, "required", fields["patientId"])
	assert.Equal(t, "required", fields["lines[0].procedureCode"])
}

func TestInvoiceQuantityOutOfRange(t *testing.T) {
	r := newTestRouter(t)

	w := send(t, r, request{method: http.MethodPost, path: "/api/v1/procedures", body: map[string]any{
		"code": "OD020", "name": "Resin filling", "pricing": map[string]any{"kind": "fixed", "amount": 180000},
	}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	for name, qty := range map[string]any{
		"below precision":    "0.00001",
		"subtotal overflows": 100000000000000,
		"scaled overflows":   "1e16",
	} {
		t.Run(name, func(t *testing.T) {
			w := send(t, r, request{method: http.MethodPost, path: "/api/v1/invoices", body: map[string]any{
				"patientId": "P-9",
				"lines":     []map[string]any{{"procedureCode": "OD020", "quantity": qty}},
			}})
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.Equal(t, "VALIDATION_ERROR", decode(t, w)["code"])
		})
	}

	w = send(t, r, request{method: http.MethodGet, path: "/api/v1/invoices"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 0, decode(t, w)["totalCount"])
}

func TestMovementQuantityOverflow(t *testing.T) {
	r := newTestRouter(t)
	itemID := createItem(t, r, map[string]any{"name": "Gauze", "unit": "pack", "openingStock": 10})

	w := send(t, r, request{method: http.MethodPost, path: "/api/v1/inventory/movements", body: map[string]any{
		"itemId": itemID, "type": "PURCHASE", "quantity": int64(math.MaxInt64),
	}})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = send(t, r, request{method: http.MethodGet, path: "/api/v1/inventory/items/" + itemID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 10, decode(t, w)["stock"])
}
