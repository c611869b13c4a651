package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/temporalmomentaneo2024-hub/BAR/internal/advisory"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/domain"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/service"
	"github.com/temporalmomentaneo2024-hub/BAR/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real services so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo)
	advisor := advisory.NewService(repo, nil, time.Minute, nil)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, advisor, auth, "*")
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

func doJSON(t *testing.T, handler http.Handler, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Reader
	if payload == nil {
		body = bytes.NewReader(nil)
	} else {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v (raw: %s)", err, rec.Body.String())
	}
	return out
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

	body := decodeBody[map[string]any](t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "admin123",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	body := decodeBody[domain.LoginResponse](t, rec)
	if body.AccessToken == "" {
		t.Fatalf("expected access_token in response, got %+v", body)
	}
	if body.Role != domain.RoleAdmin || body.Name != "Administrador" {
		t.Fatalf("unexpected identity in login response: %+v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)

	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/v1/products", "", nil)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsEmployee(t, api)

	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/v1/products", token, nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	body := decodeBody[map[string][]domain.Product](t, rec)
	if len(body["products"]) != 8 {
		t.Fatalf("expected 8 seeded products, got %d", len(body["products"]))
	}
}

func TestAdminRoutesRejectEmployees(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsEmployee(t, api)

	cases := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/v1/shifts/open", domain.ShiftOpenRequest{}},
		{http.MethodPost, "/api/v1/credit/customers", domain.CustomerRequest{Name: "Ana", MaxLimit: 1000}},
		{http.MethodGet, "/api/v1/inventory/stock", nil},
		{http.MethodGet, "/api/v1/advisor/insights", nil},
		{http.MethodPost, "/api/v1/admin/purge", nil},
		{http.MethodPut, "/api/v1/config", domain.AppConfigRequest{}},
	}
	for _, tc := range cases {
		rec := doJSON(t, handler, tc.method, tc.path, token, tc.body)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("%s %s: expected 403, got %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestShiftAndCreditFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	admin := loginAsAdmin(t, api)
	employee := loginAsEmployee(t, api)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/shifts/active", employee, nil)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "null" {
		t.Fatalf("expected null active shift, got %d %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/shifts/open", admin, domain.ShiftOpenRequest{
		InitialInventory: []domain.InventoryCount{{ProductID: "P-AGUILA", Count: 10}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("open shift: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	opened := decodeBody[domain.ShiftSession](t, rec)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/shifts/open", admin, domain.ShiftOpenRequest{})
	if rec.Code != http.StatusConflict {
		t.Fatalf("second open: expected 409, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/credit/customers", admin, domain.CustomerRequest{
		Name:     "Don Jorge",
		MaxLimit: 20000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create customer: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	customer := decodeBody[domain.CustomerView](t, rec)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/credit/customers/"+customer.ID+"/debt", employee, domain.DebtRequest{
		Amount:      8000,
		Observation: "2 cervezas",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("debt: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/credit/customers/"+customer.ID+"/debt", employee, domain.DebtRequest{
		Amount:      15000,
		Observation: "ronda",
	})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("over-limit debt: expected 422, got %d", rec.Code)
	}
	rejected := decodeBody[map[string]any](t, rec)
	if rejected["available"] != float64(12000) {
		t.Fatalf("expected available 12000, got %v", rejected["available"])
	}

	realCash := int64(16000)
	rec = doJSON(t, handler, http.MethodPost, "/api/v1/shifts/"+opened.ID+"/close", employee, domain.ShiftCloseRequest{
		FinalInventory: []domain.InventoryCount{{ProductID: "P-AGUILA", Count: 4}},
		RealCash:       &realCash,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("close shift: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	closed := decodeBody[domain.ShiftSession](t, rec)
	report := closed.SalesReport
	if report == nil {
		t.Fatalf("expected sales report on closed shift")
	}
	if report.TotalRevenue != 24000 || report.TotalCreditSales != 8000 || report.CashToDeliver != 16000 || report.Difference != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/shifts/active", employee, nil)
	if strings.TrimSpace(rec.Body.String()) != "null" {
		t.Fatalf("expected no active shift after close, got %s", rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/credit/customers/"+customer.ID, employee, nil)
	view := decodeBody[domain.CustomerView](t, rec)
	if view.CurrentUsed != 8000 || view.Available != 12000 {
		t.Fatalf("unexpected customer balance: %+v", view)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/shifts/"+opened.ID+"/report.pdf", admin, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("report pdf: got %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/v1/shifts/"+opened.ID, admin, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete shift: expected 204, got %d", rec.Code)
	}
	rec = doJSON(t, handler, http.MethodGet, "/api/v1/shifts/"+opened.ID, admin, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted shift: expected 404, got %d", rec.Code)
	}
}

func TestSalesAndConfigOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	admin := loginAsAdmin(t, api)
	employee := loginAsEmployee(t, api)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/sales", employee, domain.SaleRequest{
		PaymentMethod: domain.PaymentCash,
		Items:         []domain.SaleItemRequest{{ProductID: "P-AGUILA", Quantity: 3}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("record sale: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	sale := decodeBody[domain.Sale](t, rec)
	if sale.Total != 12000 || sale.UserID != "employee" {
		t.Fatalf("unexpected sale: %+v", sale)
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/sales", employee, domain.SaleRequest{
		PaymentMethod: domain.PaymentCash,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty sale: expected 400, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/sales", admin, nil)
	listed := decodeBody[map[string][]domain.Sale](t, rec)
	if len(listed["sales"]) != 1 || listed["sales"][0].ID != sale.ID {
		t.Fatalf("unexpected sales list: %+v", listed)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/config", employee, nil)
	cfg := decodeBody[domain.AppConfig](t, rec)
	if cfg.BarName != domain.DefaultBarName || cfg.LowStockThreshold == nil || *cfg.LowStockThreshold != 3 {
		t.Fatalf("unexpected default config: %+v", cfg)
	}

	name := "La Esquina"
	rec = doJSON(t, handler, http.MethodPut, "/api/v1/config", admin, domain.AppConfigRequest{BarName: &name})
	if rec.Code != http.StatusOK {
		t.Fatalf("update config: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	cfg = decodeBody[domain.AppConfig](t, rec)
	if cfg.BarName != name {
		t.Fatalf("expected bar name %q, got %q", name, cfg.BarName)
	}
}

func TestCloseShiftWithoutRealCashIsBadRequest(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	admin := loginAsAdmin(t, api)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/shifts/open", admin, domain.ShiftOpenRequest{})
	opened := decodeBody[domain.ShiftSession](t, rec)

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/shifts/"+opened.ID+"/close", admin, domain.ShiftCloseRequest{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestTransactionsInRangeParsesDates(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsEmployee(t, api)

	rec := doJSON(t, handler, http.MethodGet, "/api/v1/credit/transactions?start=2026-01-01&end=2026-01-31", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/credit/transactions?start=yesterday&end=2026-01-31", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/credit/transactions?start=2026-02-01&end=2026-01-01", token, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for inverted range, got %d", rec.Code)
	}
}

func TestExportShiftsReturnsWorkbook(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAsAdmin(t, api)

	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/v1/reports/export.xlsx?from=2026-01-01&to=2026-12-31", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "historial.xlsx") {
		t.Fatalf("unexpected content disposition %q", rec.Header().Get("Content-Disposition"))
	}
	if rec.Body.Len() == 0 {
		t.Fatalf("expected workbook bytes")
	}
}

func TestAdvisorInsightsFallBackToBasic(t *testing.T) {
	api := newTestAPI(t)
	admin := loginAsAdmin(t, api)

	rec := doJSON(t, api.Handler(), http.MethodGet, "/api/v1/advisor/insights", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	insight := decodeBody[domain.Insight](t, rec)
	if insight.Source != domain.InsightSourceBasic {
		t.Fatalf("expected basic insight without configured provider, got %q", insight.Source)
	}

	rec = doJSON(t, api.Handler(), http.MethodPost, "/api/v1/advisor/chat", admin, domain.ChatRequest{Message: "que vendo mas?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("chat: expected 200, got %d", rec.Code)
	}
	reply := decodeBody[domain.ChatReply](t, rec)
	if reply.Reply == "" || reply.Source != domain.InsightSourceBasic {
		t.Fatalf("unexpected chat reply: %+v", reply)
	}
}

func TestCreateEmployeeOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	admin := loginAsAdmin(t, api)

	rec := doJSON(t, handler, http.MethodPost, "/api/v1/users/employees", admin, domain.EmployeeCreateRequest{
		Username: "Barman2",
		Name:     "Segundo Barman",
		Password: "barra-segura-1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodPost, "/api/v1/users/employees", admin, domain.EmployeeCreateRequest{
		Username: "barman2",
		Name:     "Duplicado",
		Password: "barra-segura-1",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate username, got %d", rec.Code)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/v1/users/employees", admin, nil)
	body := decodeBody[map[string][]domain.EmployeeUser](t, rec)
	found := false
	for _, e := range body["employees"] {
		if e.Username == "barman2" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected barman2 in employee list, got %+v", body["employees"])
	}
}

func TestMustHashPassword(t *testing.T) {
	hash := mustHashPassword(t, "secret")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")); err != nil {
		t.Fatalf("hash does not match: %v", err)
	}
}
