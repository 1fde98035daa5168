package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"casetrack/internal/auth"
	"casetrack/internal/core"
	"casetrack/internal/derive"
	"casetrack/internal/report"
	"casetrack/internal/storage"
)

type testEnv struct {
	srv    *Server
	store  *storage.Repository
	tokens *auth.Tokens
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store, err := storage.NewRepository(filepath.Join(t.TempDir(), "casetrack.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	tokens := auth.NewTokens("test-secret", time.Hour)
	deriver := derive.NewDeriver(store, nil, decimal.NewFromFloat(0.5))
	aggregator := report.NewAggregator(store, 6)
	dashboards := report.NewDashboards(store)

	srv := NewServer(":0", store, deriver, aggregator, dashboards, tokens)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	return &testEnv{srv: srv, store: store, tokens: tokens}
}

// addUser registers an account directly in storage and returns its token.
func (e *testEnv) addUser(t *testing.T, email string, role core.Role) (int64, string) {
	t.Helper()

	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	id, err := e.store.CreateUser(context.Background(), core.User{
		Username:     strings.Split(email, "@")[0],
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	token, err := e.tokens.Issue(core.User{ID: id, Email: email, Role: role})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return id, token
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Handler.ServeHTTP(rr, req)
	return rr
}

const caseBody = `{
	"product": "Vehicle",
	"date": "2025-01-15",
	"case_book_at": "Pune",
	"customer_name": "Ramesh Kumar",
	"mobile": "9876543210",
	"status": "Approved",
	"amount": 500000,
	"payout_percent": 0.5,
	"co_applicants": [{"name": "Suresh Kumar", "relation": "Brother", "mobile": ""}]
}`

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := env.do(t, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rr.Code)
		}
	}
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "asha@example.com", core.RoleAgent)

	rr := env.do(t, http.MethodPost, "/api/login", "", `{"email":"asha@example.com","password":"password123"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d, body %s", rr.Code, rr.Body)
	}
	var resp struct {
		Token string    `json:"token"`
		User  core.User `json:"user"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Token == "" || resp.User.Email != "asha@example.com" {
		t.Errorf("response = %+v", resp)
	}
	if strings.Contains(rr.Body.String(), "password") && strings.Contains(rr.Body.String(), "hash") {
		t.Error("password material leaked in login response")
	}

	rr = env.do(t, http.MethodPost, "/api/login", "", `{"email":"asha@example.com","password":"wrong"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", rr.Code)
	}
	rr = env.do(t, http.MethodPost, "/api/login", "", `{"email":"nobody@example.com","password":"password123"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("unknown email status = %d, want 401", rr.Code)
	}
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, http.MethodGet, "/api/cases", "", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/cases", "garbage", "")
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d, want 401", rr.Code)
	}
}

func TestCaseLifecycleDerivesPayout(t *testing.T) {
	env := newTestEnv(t)
	_, agentToken := env.addUser(t, "agent@example.com", core.RoleAgent)
	_, adminToken := env.addUser(t, "admin@example.com", core.RoleAdmin)

	// Agent books an approved case.
	rr := env.do(t, http.MethodPost, "/api/cases", agentToken, caseBody)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create case status = %d, body %s", rr.Code, rr.Body)
	}
	var created core.LoanCase
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created case: %v", err)
	}
	if created.Month != "2025-01" {
		t.Errorf("month = %q, want canonical 2025-01", created.Month)
	}

	// No payout yet.
	rr = env.do(t, http.MethodGet, "/api/payouts", adminToken, "")
	if !strings.Contains(rr.Body.String(), `"count":0`) {
		t.Errorf("payouts before disbursement: %s", rr.Body)
	}

	// Disbursement triggers derivation.
	disbursed := strings.Replace(caseBody, `"status": "Approved"`, `"status": "Disbursed", "disbursement_date": "2025-02-01"`, 1)
	path := "/api/cases/vehicle/" + strconv.FormatInt(created.ID, 10)
	rr = env.do(t, http.MethodPut, path, agentToken, disbursed)
	if rr.Code != http.StatusOK {
		t.Fatalf("update case status = %d, body %s", rr.Code, rr.Body)
	}

	rr = env.do(t, http.MethodGet, "/api/payouts", adminToken, "")
	var payoutList struct {
		Payouts []core.Payout `json:"payouts"`
		Count   int           `json:"count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payoutList); err != nil {
		t.Fatalf("decode payouts: %v", err)
	}
	if payoutList.Count != 1 {
		t.Fatalf("payout count = %d, want 1", payoutList.Count)
	}
	p := payoutList.Payouts[0]
	if !p.Gross.Equal(decimal.NewFromInt(2500)) || !p.Net.Equal(decimal.NewFromInt(1925)) {
		t.Errorf("payout = gross %s net %s, want 2500/1925", p.Gross, p.Net)
	}
	if p.Month != "2025-02" {
		t.Errorf("payout month = %q, want disbursement month 2025-02", p.Month)
	}

	// Re-saving the disbursed case must not derive again.
	rr = env.do(t, http.MethodPut, path, agentToken, disbursed)
	if rr.Code != http.StatusOK {
		t.Fatalf("second update status = %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/payouts", adminToken, "")
	if !strings.Contains(rr.Body.String(), `"count":1`) {
		t.Errorf("payouts after resave: %s", rr.Body)
	}

	// Process the payout.
	rr = env.do(t, http.MethodPost, "/api/payouts/"+strconv.FormatInt(p.ID, 10)+"/process", adminToken, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("process status = %d, body %s", rr.Code, rr.Body)
	}
	if !strings.Contains(rr.Body.String(), `"status":"Processed"`) {
		t.Errorf("process response: %s", rr.Body)
	}
}

func TestAgentSeesOnlyOwnCases(t *testing.T) {
	env := newTestEnv(t)
	_, agentA := env.addUser(t, "a@example.com", core.RoleAgent)
	_, agentB := env.addUser(t, "b@example.com", core.RoleAgent)
	_, manager := env.addUser(t, "m@example.com", core.RoleManager)

	if rr := env.do(t, http.MethodPost, "/api/cases", agentA, caseBody); rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d", rr.Code)
	}

	rr := env.do(t, http.MethodGet, "/api/cases", agentB, "")
	if !strings.Contains(rr.Body.String(), `"count":0`) {
		t.Errorf("agent B sees foreign cases: %s", rr.Body)
	}
	rr = env.do(t, http.MethodGet, "/api/cases", agentA, "")
	if !strings.Contains(rr.Body.String(), `"count":1`) {
		t.Errorf("agent A misses own case: %s", rr.Body)
	}
	rr = env.do(t, http.MethodGet, "/api/cases", manager, "")
	if !strings.Contains(rr.Body.String(), `"count":1`) {
		t.Errorf("manager misses cases: %s", rr.Body)
	}

	// Agent B cannot read agent A's case directly.
	rr = env.do(t, http.MethodGet, "/api/cases/vehicle/1", agentB, "")
	if rr.Code != http.StatusForbidden {
		t.Errorf("foreign case read status = %d, want 403", rr.Code)
	}
}

func TestRoleGates(t *testing.T) {
	env := newTestEnv(t)
	agentID, agentToken := env.addUser(t, "agent@example.com", core.RoleAgent)
	_, managerToken := env.addUser(t, "manager@example.com", core.RoleManager)

	adminOnly := []string{"/api/payouts", "/api/expenses", "/api/analytics", "/api/dashboard/admin", "/api/export/payouts"}
	for _, path := range adminOnly {
		rr := env.do(t, http.MethodGet, path, agentToken, "")
		if rr.Code != http.StatusForbidden {
			t.Errorf("agent GET %s status = %d, want 403", path, rr.Code)
		}
		rr = env.do(t, http.MethodGet, path, managerToken, "")
		if rr.Code != http.StatusOK {
			t.Errorf("manager GET %s status = %d, want 200", path, rr.Code)
		}
	}

	// User dashboards: self allowed, others forbidden for agents.
	rr := env.do(t, http.MethodGet, "/api/dashboard/user/"+strconv.FormatInt(agentID, 10), agentToken, "")
	if rr.Code != http.StatusOK {
		t.Errorf("own dashboard status = %d, want 200", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/dashboard/user/999", agentToken, "")
	if rr.Code != http.StatusForbidden {
		t.Errorf("foreign dashboard status = %d, want 403", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/dashboard/user/"+strconv.FormatInt(agentID, 10), managerToken, "")
	if rr.Code != http.StatusOK {
		t.Errorf("manager viewing agent dashboard status = %d, want 200", rr.Code)
	}
}

func TestCreateUserAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	_, agentToken := env.addUser(t, "agent@example.com", core.RoleAgent)
	_, adminToken := env.addUser(t, "admin@example.com", core.RoleAdmin)

	body := `{"username":"new","email":"new@example.com","password":"password123","role":"agent"}`
	rr := env.do(t, http.MethodPost, "/api/users", agentToken, body)
	if rr.Code != http.StatusForbidden {
		t.Errorf("agent create user status = %d, want 403", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/users", adminToken, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("admin create user status = %d, body %s", rr.Code, rr.Body)
	}
	if strings.Contains(rr.Body.String(), "password") {
		t.Error("password material in create-user response")
	}

	rr = env.do(t, http.MethodPost, "/api/users", adminToken, body)
	if rr.Code != http.StatusConflict {
		t.Errorf("duplicate email status = %d, want 409", rr.Code)
	}

	weak := `{"username":"w","email":"w@example.com","password":"short","role":"agent"}`
	rr = env.do(t, http.MethodPost, "/api/users", adminToken, weak)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("weak password status = %d, want 422", rr.Code)
	}
}

func TestManualPayoutAndExport(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.addUser(t, "admin@example.com", core.RoleAdmin)

	body := `{"month":"2025-03","case_book_at":"Pune","customer_name":"Walk-in","principal":100000,"payout_percent":1,"payout_amount":0,"referral_amount":0}`
	rr := env.do(t, http.MethodPost, "/api/payouts", adminToken, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("manual payout status = %d, body %s", rr.Code, rr.Body)
	}
	var p core.Payout
	if err := json.Unmarshal(rr.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode payout: %v", err)
	}
	if !p.Gross.Equal(decimal.NewFromInt(1000)) || !p.Net.Equal(decimal.NewFromInt(770)) {
		t.Errorf("manual payout = gross %s net %s, want 1000/770", p.Gross, p.Net)
	}

	rr = env.do(t, http.MethodPut, "/api/payouts/"+strconv.FormatInt(p.ID, 10), adminToken, `{"status":"Processed"}`)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"status":"Processed"`) {
		t.Errorf("update payout status = %d, body %s", rr.Code, rr.Body)
	}
	rr = env.do(t, http.MethodPut, "/api/payouts/"+strconv.FormatInt(p.ID, 10), adminToken, `{"status":"Lost"}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad payout status code = %d, want 422", rr.Code)
	}

	badMonth := strings.Replace(body, "2025-03", "March 2025", 1)
	rr = env.do(t, http.MethodPost, "/api/payouts", adminToken, badMonth)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad month status = %d, want 422", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/export/payouts", adminToken, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("export status = %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("export content type = %q", ct)
	}
	if !strings.HasPrefix(rr.Body.String(), `"ID","Case Type"`) {
		t.Errorf("export body start: %.60s", rr.Body.String())
	}

	rr = env.do(t, http.MethodGet, "/api/export/bogus", adminToken, "")
	if rr.Code != http.StatusNotFound {
		t.Errorf("bogus export status = %d, want 404", rr.Code)
	}
}

func TestAnalyticsCacheInvalidation(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.addUser(t, "admin@example.com", core.RoleAdmin)

	// Prime the cache.
	rr := env.do(t, http.MethodGet, "/api/analytics", adminToken, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("analytics status = %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/analytics", adminToken, "")
	if !strings.Contains(rr.Body.String(), `"cached":true`) {
		t.Errorf("second read not cached: %.80s", rr.Body.String())
	}

	// A write flushes it.
	if rr := env.do(t, http.MethodPost, "/api/cases", adminToken, caseBody); rr.Code != http.StatusCreated {
		t.Fatalf("create case status = %d", rr.Code)
	}
	rr = env.do(t, http.MethodGet, "/api/analytics", adminToken, "")
	if strings.Contains(rr.Body.String(), `"cached":true`) {
		t.Error("cache served stale data after write")
	}
}

func TestCaseValidationErrors(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.addUser(t, "agent@example.com", core.RoleAgent)

	missingName := strings.Replace(caseBody, `"customer_name": "Ramesh Kumar"`, `"customer_name": ""`, 1)
	rr := env.do(t, http.MethodPost, "/api/cases", token, missingName)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing name status = %d, want 422", rr.Code)
	}

	badDate := strings.Replace(caseBody, "2025-01-15", "15/01/2025", 1)
	rr = env.do(t, http.MethodPost, "/api/cases", token, badDate)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("bad date status = %d, want 422", rr.Code)
	}

	rr = env.do(t, http.MethodPost, "/api/cases", token, "{not json")
	if rr.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d, want 400", rr.Code)
	}

	rr = env.do(t, http.MethodGet, "/api/cases/gold/1", token, "")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("unknown product status = %d, want 422", rr.Code)
	}
}
