package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"duorico/internal/auth"
	"duorico/internal/services"
	"duorico/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo, err := storage.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	authSvc := auth.NewService(repo, "test-secret-test-secret-test-xx", time.Hour)
	txSvc := services.NewTransactionService(repo, nil)

	srv := httptest.NewServer(NewServer(authSvc, txSvc, repo, nil).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, buf)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func signUpAndLogin(t *testing.T, srv *httptest.Server, email string) string {
	t.Helper()

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/signup", "", map[string]string{
		"email": email, "full_name": "Test User", "password": "password123",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("signup status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/auth/login", "", map[string]string{
		"email": email, "password": "password123",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, body %s", resp.StatusCode, body)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return out.Token
}

func txBody(mutate func(map[string]any)) map[string]any {
	body := map[string]any{
		"type":        "expense",
		"description": "Groceries",
		"amount":      "42.50",
		"category":    "groceries",
		"month":       6,
		"year":        2025,
	}
	if mutate != nil {
		mutate(body)
	}
	return body
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/healthz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/readyz", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz status = %d", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/transactions", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list status = %d, want 401", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/transactions", "not-a-token", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token list status = %d, want 401", resp.StatusCode)
	}
}

func TestSignupAndPairErrorStatuses(t *testing.T) {
	srv := newTestServer(t)

	// A blank full name is a validation error, not a server fault.
	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/auth/signup", "", map[string]string{
		"email": "ada@example.com", "full_name": "   ", "password": "password123",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("blank name signup status = %d, want 400, body %s", resp.StatusCode, body)
	}

	token := signUpAndLogin(t, srv, "ada@example.com")

	// A typo'd partner email answers 404, never 500.
	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/couple/pair", token, map[string]string{
		"partner_email": "nobody@example.com",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown partner pair status = %d, want 404, body %s", resp.StatusCode, body)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token := signUpAndLogin(t, srv, "ada@example.com")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", token, txBody(nil))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", resp.StatusCode, body)
	}
	var created struct {
		Transactions []struct {
			ID            string `json:"id"`
			Amount        string `json:"amount"`
			CategoryLabel string `json:"category_label"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if len(created.Transactions) != 1 {
		t.Fatalf("created %d transactions, want 1", len(created.Transactions))
	}
	id := created.Transactions[0].ID
	if created.Transactions[0].Amount != "42.50" {
		t.Errorf("amount = %q, want 42.50", created.Transactions[0].Amount)
	}
	if created.Transactions[0].CategoryLabel == "" {
		t.Error("category_label should not be empty")
	}

	resp, body = doJSON(t, http.MethodPut, srv.URL+"/api/transactions/"+id, token, txBody(func(b map[string]any) {
		b["description"] = "Weekly shop"
		b["amount"] = "55.00"
	}))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d, body %s", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodDelete, srv.URL+"/api/transactions/"+id, token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/"+id, token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestCreateValidationStatus(t *testing.T) {
	srv := newTestServer(t)
	token := signUpAndLogin(t, srv, "ada@example.com")

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"zero amount", func(b map[string]any) { b["amount"] = "0" }},
		{"bad month", func(b map[string]any) { b["month"] = 13 }},
		{"bad type", func(b map[string]any) { b["type"] = "transfer" }},
		{"too many installments", func(b map[string]any) {
			b["is_recurring"] = true
			b["total_installments"] = 49
		}},
		{"shared while unpaired", func(b map[string]any) { b["shared"] = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", token, txBody(tt.mutate))
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400, body %s", resp.StatusCode, body)
			}
		})
	}
}

func TestRecurringSeriesOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	token := signUpAndLogin(t, srv, "ada@example.com")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", token, txBody(func(b map[string]any) {
		b["description"] = "Sofa"
		b["is_recurring"] = true
		b["total_installments"] = 12
		b["month"] = 11
		b["year"] = 2024
	}))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create series status = %d, body %s", resp.StatusCode, body)
	}
	var created struct {
		Transactions []struct {
			ID                string `json:"id"`
			Month             int    `json:"month"`
			Year              int    `json:"year"`
			RecurringGroupID  string `json:"recurring_group_id"`
			InstallmentNumber int    `json:"installment_number"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if len(created.Transactions) != 12 {
		t.Fatalf("created %d installments, want 12", len(created.Transactions))
	}
	group := created.Transactions[0].RecurringGroupID
	// November 2024 + 2 months wraps into January 2025.
	third := created.Transactions[2]
	if third.Month != 1 || third.Year != 2025 {
		t.Errorf("third installment period = %d/%d, want 1/2025", third.Month, third.Year)
	}

	// Drop everything from March 2025 on: Nov, Dec, Jan, Feb stay.
	url := fmt.Sprintf("%s/api/transactions/series/%s?month=3&year=2025", srv.URL, group)
	resp, _ = doJSON(t, http.MethodDelete, url, token, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete future status = %d", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/transactions", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var listed struct {
		Transactions []json.RawMessage `json:"transactions"`
	}
	if err := json.Unmarshal(body, &listed); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
	if len(listed.Transactions) != 4 {
		t.Fatalf("remaining installments = %d, want 4", len(listed.Transactions))
	}
}

func TestListFilters(t *testing.T) {
	srv := newTestServer(t)
	token := signUpAndLogin(t, srv, "ada@example.com")

	for _, b := range []map[string]any{
		txBody(nil), // expense 6/2025
		txBody(func(b map[string]any) { b["type"] = "income"; b["category"] = "salary" }),
		txBody(func(b map[string]any) { b["month"] = 7 }),
		txBody(func(b map[string]any) { b["year"] = 2024 }),
	} {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", token, b)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create status = %d, body %s", resp.StatusCode, body)
		}
	}

	count := func(query string) int {
		resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/transactions"+query, token, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list%s status = %d", query, resp.StatusCode)
		}
		var out struct {
			Transactions []json.RawMessage `json:"transactions"`
		}
		if err := json.Unmarshal(body, &out); err != nil {
			t.Fatalf("decode list response: %v", err)
		}
		return len(out.Transactions)
	}

	if got := count(""); got != 4 {
		t.Errorf("unfiltered count = %d, want 4", got)
	}
	if got := count("?type=income"); got != 1 {
		t.Errorf("type=income count = %d, want 1", got)
	}
	if got := count("?month=6&year=2025"); got != 2 {
		t.Errorf("month=6&year=2025 count = %d, want 2", got)
	}
	if got := count("?year=2024"); got != 1 {
		t.Errorf("year=2024 count = %d, want 1", got)
	}

	resp, _ := doJSON(t, http.MethodGet, srv.URL+"/api/transactions?type=transfer", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad type filter status = %d, want 400", resp.StatusCode)
	}
}

func TestSharedVisibilityOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	adaToken := signUpAndLogin(t, srv, "ada@example.com")
	bobToken := signUpAndLogin(t, srv, "bob@example.com")
	eveToken := signUpAndLogin(t, srv, "eve@example.com")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/couple/pair", adaToken, map[string]string{
		"partner_email": "bob@example.com",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pair status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/api/transactions", adaToken, txBody(func(b map[string]any) {
		b["shared"] = true
	}))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create shared status = %d, body %s", resp.StatusCode, body)
	}
	var created struct {
		Transactions []struct {
			ID string `json:"id"`
		} `json:"transactions"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	id := created.Transactions[0].ID

	// The partner sees the shared record; a third account does not.
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/"+id, bobToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("partner get status = %d, want 200", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/transactions/"+id, eveToken, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("stranger get status = %d, want 404", resp.StatusCode)
	}
}

func TestDashboard(t *testing.T) {
	srv := newTestServer(t)
	token := signUpAndLogin(t, srv, "ada@example.com")

	for _, b := range []map[string]any{
		txBody(func(b map[string]any) { b["type"] = "income"; b["amount"] = "500.00"; b["category"] = "salary"; b["month"] = 3; b["year"] = 2024 }),
		txBody(func(b map[string]any) { b["amount"] = "100.00"; b["month"] = 3; b["year"] = 2024 }),
		txBody(func(b map[string]any) { b["amount"] = "999.00"; b["month"] = 4; b["year"] = 2024 }),
	} {
		resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", token, b)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create status = %d, body %s", resp.StatusCode, body)
		}
	}

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/dashboard?month=3&year=2024", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status = %d, body %s", resp.StatusCode, body)
	}
	var summary summaryJSON
	if err := json.Unmarshal(body, &summary); err != nil {
		t.Fatalf("decode dashboard response: %v", err)
	}
	if summary.TotalIncome != "500.00" || summary.TotalExpenses != "100.00" || summary.Balance != "400.00" {
		t.Fatalf("summary = %+v", summary)
	}
	if len(summary.RecentExpenses) != 1 {
		t.Fatalf("recent expenses = %d, want 1", len(summary.RecentExpenses))
	}
}

func TestCategoriesEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := signUpAndLogin(t, srv, "ada@example.com")

	resp, body := doJSON(t, http.MethodGet, srv.URL+"/api/categories?type=expense", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("categories status = %d", resp.StatusCode)
	}
	var out struct {
		Expense []struct {
			Code  string `json:"code"`
			Label string `json:"label"`
		} `json:"expense"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode categories response: %v", err)
	}
	if len(out.Expense) == 0 {
		t.Fatal("expense catalog should not be empty")
	}

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/api/categories?type=transfer", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown type status = %d, want 400", resp.StatusCode)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t)
	token := signUpAndLogin(t, srv, "ada@example.com")

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/api/transactions", token, txBody(nil))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, srv.URL+"/api/export", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("export status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("Content-Type = %q", ct)
	}
	if len(body) == 0 {
		t.Fatal("export body should not be empty")
	}
}
