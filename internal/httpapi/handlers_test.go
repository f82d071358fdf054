package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dokon/backend/internal/cache"
	"dokon/backend/internal/service"
	"dokon/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store and real Service so
// handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopProductCache{}, 5*time.Second)
	return New(svc, "*")
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestHandleHealth(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestListProductsRequiresStoreID(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without store_id, got %d", rec.Code)
	}
}

func TestListProducts(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/products?store_id=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	products, ok := body["products"].([]any)
	if !ok || len(products) != 6 {
		t.Fatalf("expected 6 products for store 1, got %v", body["products"])
	}
}

func TestCreateAndGetProduct(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products?store_id=1", map[string]any{
		"name":       "Zarbof gazlama",
		"sku":        "GAZ-ZARI-01",
		"category":   "gazlama",
		"unit":       "meter",
		"base_price": "125000",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	product := body["product"].(map[string]any)
	id := int64(product["id"].(float64))
	if id < 1 {
		t.Fatalf("expected created product id, got %v", product["id"])
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/8?store_id=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/products/999?store_id=1", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rec.Code)
	}
}

func TestPatchProductValidation(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPatch, "/api/v1/products/1?store_id=1", map[string]any{
		"unit": "litr",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad unit, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestToggleProduct(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/products/6/toggle?store_id=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	product := body["product"].(map[string]any)
	if product["active"] != true {
		t.Fatalf("expected product 6 to become active, got %v", product["active"])
	}
}

func TestListInventory(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/inventory?store_id=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	records, ok := body["inventory"].([]any)
	if !ok || len(records) != 4 {
		t.Fatalf("expected 4 inventory records, got %v", body["inventory"])
	}
	first := records[0].(map[string]any)
	if first["product"] == nil {
		t.Fatalf("expected embedded product info, got %v", first)
	}
}

func TestAdjustInventoryCreatesAndRejects(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/inventory/adjust?store_id=1", map[string]any{
		"product_id": 5,
		"delta_qty":  "12.5",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["kind"] != "created" {
		t.Fatalf("expected kind created, got %v", body["kind"])
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/inventory/adjust?store_id=1", map[string]any{
		"product_id": 6,
		"delta_qty":  "-1",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for removal without record, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/inventory/adjust?store_id=1", map[string]any{
		"product_id": 999,
		"delta_qty":  "5",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rec.Code)
	}
}

func TestCreateSaleAndFetch(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales?store_id=1", map[string]any{
		"cashier_id":   1,
		"payment_type": "cash",
		"items": []map[string]any{
			{"product_id": 1, "qty": "2.5", "unit_price": "45000"},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	sale := body["sale"].(map[string]any)
	if sale["receipt_no"] == nil || len(sale["receipt_no"].(string)) != 17 {
		t.Fatalf("expected receipt number, got %v", sale["receipt_no"])
	}
	if sale["total"] != "112500" {
		t.Fatalf("expected total 112500, got %v", sale["total"])
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales/1?store_id=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body = decodeBody(t, rec)
	sale = body["sale"].(map[string]any)
	items, ok := sale["items"].([]any)
	if !ok || len(items) != 1 {
		t.Fatalf("expected 1 sale item, got %v", sale["items"])
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales?store_id=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body = decodeBody(t, rec)
	if sales, ok := body["sales"].([]any); !ok || len(sales) != 1 {
		t.Fatalf("expected 1 sale, got %v", body["sales"])
	}
}

func TestCreateSaleErrorsMapToBadRequest(t *testing.T) {
	handler := newTestAPI(t).Handler()

	// Missing inventory during sale creation is a 400, not a 404.
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales?store_id=1", map[string]any{
		"cashier_id":   1,
		"payment_type": "cash",
		"items": []map[string]any{
			{"product_id": 5, "qty": "1", "unit_price": "72000"},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing inventory, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales?store_id=1", map[string]any{
		"cashier_id":   1,
		"payment_type": "cash",
		"items": []map[string]any{
			{"product_id": 2, "qty": "500", "unit_price": "38000"},
		},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for insufficient stock, got %d", rec.Code)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales?store_id=1", map[string]any{
		"cashier_id":   1,
		"payment_type": "cash",
		"surprise":     true,
		"items":        []map[string]any{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	handler := newTestAPI(t).Handler()

	rec := doJSON(t, handler, http.MethodDelete, "/api/v1/products?store_id=1", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := newTestAPI(t).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/sales", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("expected CORS origin header")
	}
}
