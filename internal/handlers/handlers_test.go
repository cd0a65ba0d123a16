package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/elpasominers/bank/internal/auth"
	"github.com/elpasominers/bank/internal/core/ledger"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

// mapCache is an in-process Cacher for exercising statement caching and
// invalidation without Redis.
type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMapCache() *mapCache {
	return &mapCache{data: make(map[string][]byte)}
}

func (m *mapCache) GetJSON(_ context.Context, key string, dest any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (m *mapCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = data
	return nil
}

func (m *mapCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mapCache) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func newTestServer(t *testing.T, c Cacher) *httptest.Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := ledger.NewRegistry()

	seed := func(p ledger.Profile, accounts ...*ledger.Account) {
		cust, err := ledger.NewCustomer(p, ledger.DefaultScorer())
		if err != nil {
			t.Fatalf("seed customer: %v", err)
		}
		if err := reg.Onboard(cust, accounts...); err != nil {
			t.Fatalf("seed onboard: %v", err)
		}
	}

	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }
	mustAcc := func(a *ledger.Account, err error) *ledger.Account {
		if err != nil {
			t.Fatalf("seed account: %v", err)
		}
		return a
	}

	seed(ledger.Profile{
		ID: 1, FirstName: "maria", LastName: "lopez",
		DOB: "1-jan-1990", Address: "123 Main St", Phone: "9155550100",
		Password: "hunter2",
	},
		mustAcc(ledger.NewChecking(101, d("500.00"))),
		mustAcc(ledger.NewSavings(201, d("250.00"))),
		mustAcc(ledger.NewCredit(301, d("40.00"), d("5000"))),
	)
	seed(ledger.Profile{
		ID: 2, FirstName: "juan", LastName: "reyes",
		DOB: "2-feb-1985", Address: "456 Mesa St", Phone: "9155550101",
		Password: "changeme",
	},
		mustAcc(ledger.NewChecking(102, d("100.00"))),
	)

	server := NewServer(log, reg, auth.New("test-secret", time.Minute), nil, c)
	httpServer := httptest.NewServer(APIMux(server, otel.GetTracerProvider().Tracer("")))
	t.Cleanup(httpServer.Close)
	return httpServer
}

func login(t *testing.T, url, customer, password string) string {
	t.Helper()

	body := fmt.Sprintf(`{"customer":%q,"password":%q}`, customer, password)
	resp, err := http.Post(url+"/login", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post login: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login got status %d", resp.StatusCode)
	}
	var lr LoginResp
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	return lr.Token
}

func doJSON(t *testing.T, method, url, token, body string) *http.Response {
	t.Helper()

	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t, nil)

	tests := []struct {
		name       string
		customer   string
		password   string
		wantedCode int
	}{
		{"by name", "Maria Lopez", "hunter2", 200},
		{"by id", "1", "hunter2", 200},
		{"wrong password", "Maria Lopez", "nope", 401},
		{"unknown customer", "Nobody Here", "hunter2", 401},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := fmt.Sprintf(`{"customer":%q,"password":%q}`, tt.customer, tt.password)
			resp, err := http.Post(srv.URL+"/login", "application/json", strings.NewReader(body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantedCode {
				t.Fatalf("got wrong status code: %v, want: %v", resp.StatusCode, tt.wantedCode)
			}
		})
	}
}

func TestOnboard(t *testing.T) {
	srv := newTestServer(t, nil)

	body := `{
		"id": 3, "first_name": "ana", "last_name": "vega",
		"dob": "3-mar-1992", "address": "789 Yandell Dr", "phone": "9155550102",
		"password": "pw",
		"accounts": [
			{"number": 103, "kind": "Checking", "balance": "75.00"},
			{"number": 303, "kind": "Credit", "balance": "0", "credit_limit": "8000"}
		]
	}`
	resp := doJSON(t, http.MethodPost, srv.URL+"/customers", "", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got wrong status code: %v", resp.StatusCode)
	}
	var cr CustomerResp
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if cr.Name != "Ana Vega" {
		t.Errorf("wrong name, got %q want %q", cr.Name, "Ana Vega")
	}
	if len(cr.Accounts) != 2 {
		t.Fatalf("got %d accounts, want %d", len(cr.Accounts), 2)
	}
	if cr.CreditScore < 740 || cr.CreditScore > 799 {
		t.Errorf("credit score %d outside the 8000-limit band", cr.CreditScore)
	}

	// The new customer can log in right away.
	login(t, srv.URL, "Ana Vega", "pw")

	// A second onboarding with the same name must conflict.
	resp = doJSON(t, http.MethodPost, srv.URL+"/customers", "", strings.ReplaceAll(body, `"id": 3`, `"id": 4`))
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("got wrong status code: %v, want: %v", resp.StatusCode, http.StatusConflict)
	}
}

func TestDepositAndWithdraw(t *testing.T) {
	srv := newTestServer(t, nil)
	token := login(t, srv.URL, "Maria Lopez", "hunter2")

	resp := doJSON(t, http.MethodPost, srv.URL+"/accounts/101/deposits", token, `{"amount":"25.00"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got wrong status code: %v", resp.StatusCode)
	}
	var ar AccountResp
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if ar.Balance != "525.00" {
		t.Errorf("wrong balance, got %q want %q", ar.Balance, "525.00")
	}

	tests := []struct {
		name       string
		path       string
		body       string
		wantedCode int
	}{
		{"withdraw ok", "/accounts/101/withdrawals", `{"amount":"25.00"}`, 200},
		{"overdraw", "/accounts/101/withdrawals", `{"amount":"9999.00"}`, 422},
		{"bad amount", "/accounts/101/deposits", `{"amount":"-5"}`, 400},
		{"unknown account", "/accounts/999/deposits", `{"amount":"5.00"}`, 404},
		{"not owned", "/accounts/102/deposits", `{"amount":"5.00"}`, 403},
		{"credit over limit", "/accounts/301/withdrawals", `{"amount":"6000.00"}`, 422},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+tt.path, token, tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantedCode {
				t.Fatalf("got wrong status code: %v, want: %v", resp.StatusCode, tt.wantedCode)
			}
		})
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t, nil)

	resp := doJSON(t, http.MethodPost, srv.URL+"/accounts/101/deposits", "", `{"amount":"25.00"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got wrong status code: %v, want: %v", resp.StatusCode, http.StatusUnauthorized)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/accounts/101/deposits", "garbage", `{"amount":"25.00"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("got wrong status code: %v, want: %v", resp.StatusCode, http.StatusUnauthorized)
	}
}

func TestTransferAndSend(t *testing.T) {
	srv := newTestServer(t, nil)
	token := login(t, srv.URL, "Maria Lopez", "hunter2")

	resp := doJSON(t, http.MethodPost, srv.URL+"/transfers", token, `{"from":101,"to":201,"amount":"100.00"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got wrong status code: %v", resp.StatusCode)
	}
	var mr MoveResp
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if mr.From.Balance != "400.00" || mr.To.Balance != "350.00" {
		t.Errorf("wrong balances, got %q and %q", mr.From.Balance, mr.To.Balance)
	}

	resp = doJSON(t, http.MethodPost, srv.URL+"/sends", token, `{"from":101,"to":102,"to_customer":2,"amount":"50.00"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got wrong status code: %v", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if mr.From.Balance != "350.00" || mr.To.Balance != "150.00" {
		t.Errorf("wrong balances, got %q and %q", mr.From.Balance, mr.To.Balance)
	}

	tests := []struct {
		name       string
		path       string
		body       string
		wantedCode int
	}{
		{"same account", "/transfers", `{"from":101,"to":101,"amount":"1.00"}`, 422},
		{"transfer not owned", "/transfers", `{"from":101,"to":102,"amount":"1.00"}`, 403},
		{"send to own account", "/sends", `{"from":101,"to":201,"to_customer":1,"amount":"1.00"}`, 422},
		{"send unknown customer", "/sends", `{"from":101,"to":102,"to_customer":9,"amount":"1.00"}`, 404},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := doJSON(t, http.MethodPost, srv.URL+tt.path, token, tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantedCode {
				t.Fatalf("got wrong status code: %v, want: %v", resp.StatusCode, tt.wantedCode)
			}
		})
	}
}

func TestStatement(t *testing.T) {
	c := newMapCache()
	srv := newTestServer(t, c)
	token := login(t, srv.URL, "Maria Lopez", "hunter2")

	resp := doJSON(t, http.MethodPost, srv.URL+"/accounts/101/deposits", token, `{"amount":"25.00"}`)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/accounts/101/statement", token, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got wrong status code: %v", resp.StatusCode)
	}
	var sr StatementResp
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(sr.Transactions) != 1 {
		t.Fatalf("got %d transactions, want %d", len(sr.Transactions), 1)
	}
	if sr.Transactions[0].Description != "Deposit of funds" {
		t.Errorf("wrong description, got %q", sr.Transactions[0].Description)
	}
	if sr.Transactions[0].Balance != "525.00" {
		t.Errorf("wrong balance snapshot, got %q", sr.Transactions[0].Balance)
	}

	// The render is now cached, and a mutation must drop it.
	if !c.has("account:statement:101") {
		t.Error("statement should be cached after a read")
	}
	resp = doJSON(t, http.MethodPost, srv.URL+"/accounts/101/withdrawals", token, `{"amount":"5.00"}`)
	resp.Body.Close()
	if c.has("account:statement:101") {
		t.Error("mutation should invalidate the cached statement")
	}

	// Someone else's account is forbidden.
	resp = doJSON(t, http.MethodGet, srv.URL+"/accounts/102/statement", token, "")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("got wrong status code: %v, want: %v", resp.StatusCode, http.StatusForbidden)
	}
}
