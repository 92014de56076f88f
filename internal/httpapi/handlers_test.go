package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/KairamCabral/terravik-sub002/internal/domain"
	"github.com/KairamCabral/terravik-sub002/internal/metrics"
	"github.com/KairamCabral/terravik-sub002/internal/service"
	"github.com/KairamCabral/terravik-sub002/internal/shipping"
	"github.com/KairamCabral/terravik-sub002/internal/store/memory"
)

type addressStub map[string]*domain.ShippingAddress

func (s addressStub) FetchAddressByCEP(_ context.Context, cep string) *domain.ShippingAddress {
	digits, _ := shipping.CleanCEP(cep)
	return s[digits]
}

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded(nil)
	reg := metrics.New()
	addresses := addressStub{
		"01310100": {CEP: "01310-100", Street: "Avenida Paulista", City: "São Paulo", State: "SP"},
	}
	svc := service.New(repo, addresses, nil, reg)
	auth := NewAuthManager("test-secret-key", time.Hour, repo, nil)

	return New(svc, auth, "*", nil, reg)
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func doJSON(t *testing.T, handler http.Handler, method string, path string, payload any, headers map[string]string) *httptest.ResponseRecorder {
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
	req.Header.Set("Content-Type", "application/json")
	for key, val := range headers {
		req.Header.Set(key, val)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "admin",
		"password": "admin123",
	}, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/auth/login", map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	}, nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProductsIsPublic(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/v1/products", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Products) != 3 {
		t.Fatalf("expected 3 products, got %d", len(body.Products))
	}
}

func TestHandlePlan(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	complete := map[string]any{
		"session_key": "sess-http",
		"input": map[string]any{
			"area_m2":     100,
			"implantando": true,
			"objetivo":    "crescimento",
			"clima_hoje":  "ameno",
			"sol":         "pleno",
			"irrigacao":   "semanal",
			"pisoteio":    "baixo",
			"nivel":       "saudavel",
		},
	}
	rec := doJSON(t, handler, http.MethodPost, "/api/v1/calculator/plan", complete, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var result domain.CalculatorResult
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode plan: %v", err)
	}
	if len(result.Plan) == 0 || result.Plan[0].SKU != domain.ProductSKURooting {
		t.Fatalf("expected rooting product first, got %+v", result.Plan)
	}

	quick := doJSON(t, handler, http.MethodGet, "/api/v1/calculator/quick-purchase?session_key=sess-http", nil, nil)
	if quick.Code != http.StatusOK {
		t.Fatalf("expected stored quick purchase, got %d", quick.Code)
	}

	incomplete := map[string]any{"input": map[string]any{"area_m2": 100}}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/calculator/plan", incomplete, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	var body struct {
		MissingFields []string `json:"missing_fields"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if len(body.MissingFields) != 7 {
		t.Fatalf("expected 7 missing fields, got %v", body.MissingFields)
	}
}

func TestHandleWizardLifecycle(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/calculator/wizard?session_key=w1", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before save, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/v1/calculator/wizard", map[string]any{
		"session_key": "w1",
		"step":        2,
		"answers":     map[string]any{"area_m2": 40},
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on save, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/calculator/wizard?session_key=w1", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"step":2`) {
		t.Fatalf("expected saved step 2, got %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/calculator/wizard?session_key=w1", nil, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 on reset, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/calculator/step-check", map[string]any{
		"step":    1,
		"answers": map[string]any{"area_m2": 40},
	}, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"can_go_next":true`) {
		t.Fatalf("expected first step to pass, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestHandleCEPLookup(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/shipping/cep/01310-100", nil, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"state":"SP"`) {
		t.Fatalf("expected SP address, got %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/shipping/cep/123", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed cep, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/shipping/cep/99999999", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown cep, got %d", rec.Code)
	}
}

func TestHandleShippingQuote(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/shipping/quote", map[string]any{
		"cep":      "01310-100",
		"subtotal": "200.00",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.ShippingQuoteResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	recommended, ok := shipping.RecommendedOption(resp.Options)
	if !ok || !recommended.IsFree {
		t.Fatalf("expected free recommended option, got %+v", resp.Options)
	}
}

func TestHandleCouponApply(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/coupons/apply", map[string]any{"code": "BEMVINDO10", "subtotal": 80}, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"discount_amount":"8"`) {
		t.Fatalf("expected 8 discount, got %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/coupons/apply", map[string]any{"code": "GRAMA20", "subtotal": 80}, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 below minimum, got %d", rec.Code)
	}
}

func TestHandleOrderBumpAndEvents(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/order-bump", map[string]any{"product_ids": []string{"mock-p1"}}, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"id":"mock-p2"`) {
		t.Fatalf("expected mock-p2 bump, got %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/order-bump", map[string]any{"product_ids": []string{}}, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"bump":null`) {
		t.Fatalf("expected null bump, got %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/order-bump/events", map[string]any{"product_id": "mock-p2", "action": "accepted"}, nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/order-bump/events", map[string]any{"product_id": "mock-p2", "action": "clicked"}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", rec.Code)
	}
}

func TestHandleCheckoutSummary(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/checkout/summary", map[string]any{
		"cart": map[string]any{"items": []map[string]any{
			{"variant_id": "variant-p3-2700", "quantity": 1},
		}},
		"cep":         "01310100",
		"coupon_code": "BEMVINDO10",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var summary domain.CheckoutSummary
	if err := json.NewDecoder(rec.Body).Decode(&summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	// 259.90 - 25.99 + free PAC
	if summary.Total.String() != "233.91" {
		t.Fatalf("expected total 233.91, got %s", summary.Total)
	}
}

func TestMetricsEndpointExposesCounters(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	_ = doJSON(t, handler, http.MethodPost, "/api/v1/order-bump", map[string]any{"product_ids": []string{"mock-p1"}}, nil)

	rec := doJSON(t, handler, http.MethodGet, "/metrics", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `terravik_order_bump_events_total{action="shown"} 1`) {
		t.Fatalf("expected bump counter in metrics output")
	}
	if !strings.Contains(body, "terravik_http_requests_total") {
		t.Fatalf("expected http request counter in metrics output")
	}
}

// TestMustHashPassword verifies that the test helper produces valid bcrypt hashes
// (used to confirm test infrastructure is sound).
func TestMustHashPassword(t *testing.T) {
	hash := mustHashPassword(t, "secret")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")); err != nil {
		t.Fatalf("hash verification failed: %v", err)
	}
}
