package http

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"orcamento/internal/core"
	"orcamento/internal/events"
	"orcamento/internal/log"
	"orcamento/internal/middleware/trace"
	"orcamento/internal/services"
	"orcamento/internal/sheets/memory"
	"orcamento/internal/storage"
)

type testServer struct {
	*Server
	repo *storage.SQLiteRepository
	hub  *events.Hub
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	hub := events.NewHub()
	svc := Services{
		Planned:    services.NewPlannedService(repo, hub),
		Expenses:   services.NewExpenseService(repo, hub),
		Taxonomy:   services.NewTaxonomyService(repo, hub),
		Reports:    services.NewReportService(repo, time.Minute),
		Imports:    services.NewImportService(repo, hub),
		Activities: services.NewActivityService(repo),
	}
	opts.Hub = hub
	opts.DB = repo
	opts.Logger = log.New(log.Config{Level: slog.LevelError, Format: "text", Output: io.Discard})
	srv := NewServer(svc, opts)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return &testServer{Server: srv, repo: repo, hub: hub}
}

func (ts *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := ts.do(t, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}

	rr := ts.do(t, http.MethodGet, "/readyz", "")
	ready := decode[struct {
		Status string         `json:"status"`
		Checks map[string]any `json:"checks"`
	}](t, rr)
	if ready.Status != "ready" || ready.Checks["database"] != "ok" {
		t.Errorf("readyz = %+v", ready)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	ts := newTestServer(t, Options{})

	rr := ts.do(t, http.MethodGet, "/healthz", "")
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if rr.Header().Get(trace.HeaderRequestID) == "" {
		t.Error("request id missing")
	}

	rr = ts.do(t, http.MethodGet, "/metrics", "")
	if !strings.Contains(rr.Body.String(), "http_requests_total 2") {
		t.Errorf("metrics = %s", rr.Body.String())
	}
}

func TestPlannedPaymentFlow(t *testing.T) {
	ts := newTestServer(t, Options{})

	rr := ts.do(t, http.MethodPost, "/api/people", `{"name": "Bia", "color": "#f97316"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create person status=%d body=%s", rr.Code, rr.Body.String())
	}
	person := decode[personView](t, rr)

	rr = ts.do(t, http.MethodPost, "/api/planned-expenses", `{"name": "Internet", "amount": "99,90", "due_day": 15}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create planned status=%d body=%s", rr.Code, rr.Body.String())
	}
	planned := decode[plannedView](t, rr)
	if planned.Amount.Cents != 9990 || !planned.Active {
		t.Errorf("planned = %+v", planned)
	}

	payments := fmt.Sprintf("/api/planned-expenses/%d/payments", planned.ID)
	confirm := fmt.Sprintf(`{"amount": 89.9, "person_id": %d}`, person.ID)
	rr = ts.do(t, http.MethodPost, payments, confirm)
	if rr.Code != http.StatusCreated {
		t.Fatalf("confirm status=%d body=%s", rr.Code, rr.Body.String())
	}
	trigger := rr.Header().Get("HX-Trigger")
	if !strings.Contains(trigger, `"data:changed"`) || !strings.Contains(trigger, `"show-notification"`) {
		t.Errorf("HX-Trigger = %s", trigger)
	}
	rec := decode[paymentView](t, rr)
	if !rec.Paid || rec.ExpenseID == nil || rec.PaidAmount == nil || rec.PaidAmount.Cents != 8990 {
		t.Errorf("payment = %+v", rec)
	}

	if rr := ts.do(t, http.MethodPost, payments, confirm); rr.Code != http.StatusConflict {
		t.Errorf("second confirm status=%d, want 409", rr.Code)
	}

	mv := decode[monthViewView](t, ts.do(t, http.MethodGet, "/api/month-view", ""))
	if len(mv.Items) != 1 || mv.Items[0].Status != "paid" || !mv.Items[0].AmountDiffers {
		t.Fatalf("month view items = %+v", mv.Items)
	}
	if mv.Stats.Paid.Cents != 8990 || mv.Stats.Planned.Cents != 9990 || mv.Stats.PaidCount != 1 {
		t.Errorf("stats = %+v", mv.Stats)
	}

	ledger := decode[[]expenseView](t, ts.do(t, http.MethodGet, "/api/expenses", ""))
	if len(ledger) != 1 || ledger[0].PersonName != "Bia" || ledger[0].Amount.Cents != 8990 {
		t.Errorf("ledger = %+v", ledger)
	}

	if rr := ts.do(t, http.MethodDelete, payments, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("reverse status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := ts.do(t, http.MethodDelete, payments, ""); rr.Code != http.StatusConflict {
		t.Errorf("second reverse status=%d, want 409", rr.Code)
	}
	ledger = decode[[]expenseView](t, ts.do(t, http.MethodGet, "/api/expenses", ""))
	if len(ledger) != 0 {
		t.Errorf("ledger after reversal = %+v", ledger)
	}

	activities := decode[[]activityView](t, ts.do(t, http.MethodGet, "/api/activities?limit=10", ""))
	if len(activities) < 4 || activities[0].Action != services.ActionUnpay {
		t.Errorf("activities = %+v", activities)
	}
}

func TestDeactivateHidesFromMonthView(t *testing.T) {
	ts := newTestServer(t, Options{})

	planned := decode[plannedView](t, ts.do(t, http.MethodPost, "/api/planned-expenses", `{"name": "Academia", "amount": 120, "due_day": 5}`))
	path := fmt.Sprintf("/api/planned-expenses/%d/deactivate", planned.ID)
	if rr := ts.do(t, http.MethodPost, path, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("deactivate status=%d body=%s", rr.Code, rr.Body.String())
	}

	mv := decode[monthViewView](t, ts.do(t, http.MethodGet, "/api/month-view", ""))
	if len(mv.Items) != 1 {
		t.Errorf("current month lost the deactivated expense: %+v", mv.Items)
	}
	next := core.PeriodOf(time.Now()).Next()
	mv = decode[monthViewView](t, ts.do(t, http.MethodGet, fmt.Sprintf("/api/month-view?year=%d&month=%d", next.Year, int(next.Month)), ""))
	if len(mv.Items) != 0 {
		t.Errorf("deactivated expense still listed next month: %+v", mv.Items)
	}
	all := decode[[]plannedView](t, ts.do(t, http.MethodGet, "/api/planned-expenses?include_inactive=1", ""))
	if len(all) != 1 || all[0].Active {
		t.Errorf("include_inactive = %+v", all)
	}
	active := decode[[]plannedView](t, ts.do(t, http.MethodGet, "/api/planned-expenses", ""))
	if len(active) != 0 {
		t.Errorf("active list = %+v", active)
	}
}

func TestAPIErrors(t *testing.T) {
	ts := newTestServer(t, Options{})
	planned := decode[plannedView](t, ts.do(t, http.MethodPost, "/api/planned-expenses", `{"name": "Água", "amount": "80", "due_day": 20}`))
	payments := fmt.Sprintf("/api/planned-expenses/%d/payments", planned.ID)

	tests := []struct {
		name         string
		method, path string
		body         string
		want         int
	}{
		{"zero amount", http.MethodPost, "/api/planned-expenses", `{"name": "x", "amount": 0, "due_day": 1}`, http.StatusUnprocessableEntity},
		{"due day out of range", http.MethodPost, "/api/planned-expenses", `{"name": "x", "amount": 10, "due_day": 40}`, http.StatusUnprocessableEntity},
		{"empty name", http.MethodPost, "/api/planned-expenses", `{"name": " ", "amount": 10, "due_day": 1}`, http.StatusUnprocessableEntity},
		{"malformed body", http.MethodPost, "/api/planned-expenses", `{"name": `, http.StatusBadRequest},
		{"non-numeric id", http.MethodPut, "/api/planned-expenses/abc", `{"name": "x", "amount": 10, "due_day": 1}`, http.StatusBadRequest},
		{"unknown planned expense", http.MethodPut, "/api/planned-expenses/999", `{"name": "x", "amount": 10, "due_day": 1}`, http.StatusNotFound},
		{"payment without payer", http.MethodPost, payments, `{"amount": 80}`, http.StatusUnprocessableEntity},
		{"payment with unknown payer", http.MethodPost, payments, `{"amount": 80, "person_id": 999}`, http.StatusUnprocessableEntity},
		{"reverse unpaid", http.MethodDelete, payments, "", http.StatusConflict},
		{"month out of range", http.MethodGet, "/api/month-view?month=13", "", http.StatusUnprocessableEntity},
		{"unknown expense", http.MethodGet, "/api/expenses/999", "", http.StatusNotFound},
		{"expense with unknown category", http.MethodPost, "/api/expenses", `{"description": "x", "amount": 5, "category_id": 999}`, http.StatusUnprocessableEntity},
		{"invalid category kind", http.MethodPost, "/api/categories", `{"name": "Pets", "tipo": "mensal"}`, http.StatusUnprocessableEntity},
		{"invalid year", http.MethodGet, "/api/reports/year?year=abc", "", http.StatusUnprocessableEntity},
		{"method not allowed", http.MethodPatch, "/api/expenses", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, tt.method, tt.path, tt.body)
			if rr.Code != tt.want {
				t.Errorf("%s %s status=%d, want %d (body=%s)", tt.method, tt.path, rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestTaxonomyAndReports(t *testing.T) {
	ts := newTestServer(t, Options{})

	cat := decode[categoryView](t, ts.do(t, http.MethodPost, "/api/categories", `{"name": "Pets", "tipo": "fixo", "color": "#22c55e"}`))
	if cat.Kind != "fixo" {
		t.Errorf("category = %+v", cat)
	}
	sub := decode[subcategoryView](t, ts.do(t, http.MethodPost, fmt.Sprintf("/api/categories/%d/subcategories", cat.ID), `{"name": "Ração"}`))
	if sub.CategoryID != cat.ID {
		t.Errorf("subcategory = %+v", sub)
	}
	subs := decode[[]subcategoryView](t, ts.do(t, http.MethodGet, fmt.Sprintf("/api/categories/%d/subcategories", cat.ID), ""))
	if len(subs) != 1 {
		t.Errorf("subcategories = %+v", subs)
	}

	body := fmt.Sprintf(`{"description": "Ração", "amount": "150", "date": "2025-06-02", "category_id": %d, "subcategory_id": %d}`, cat.ID, sub.ID)
	if rr := ts.do(t, http.MethodPost, "/api/expenses", body); rr.Code != http.StatusCreated {
		t.Fatalf("create expense status=%d body=%s", rr.Code, rr.Body.String())
	}

	month := decode[monthReportView](t, ts.do(t, http.MethodGet, "/api/reports/month?year=2025&month=6", ""))
	if month.Total.Cents != 15000 || month.Fixed.Cents != 15000 || month.Variable.Cents != 0 {
		t.Errorf("month report = %+v", month)
	}
	year := decode[yearReportView](t, ts.do(t, http.MethodGet, "/api/reports/year?year=2025", ""))
	if len(year.Months) != 12 || year.Months[5].Amount.Cents != 15000 || year.Total.Cents != 15000 {
		t.Errorf("year report = %+v", year)
	}

	if rr := ts.do(t, http.MethodDelete, fmt.Sprintf("/api/categories/%d", cat.ID), ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete category status=%d", rr.Code)
	}
	ledger := decode[[]expenseView](t, ts.do(t, http.MethodGet, "/api/expenses?year=2025&month=6", ""))
	if len(ledger) != 1 || ledger[0].CategoryID != nil {
		t.Errorf("ledger after category delete = %+v", ledger)
	}
}

func TestImportEndpoint(t *testing.T) {
	ts := newTestServer(t, Options{})

	csv := "Data;Descrição;Valor;Categoria;Pessoa\n02/06/2025;Padaria;\"12,50\";Café;Caio\n;;;;\n31/02/2025;Data ruim;10;;\n"
	req := httptest.NewRequest(http.MethodPost, "/api/import?create_missing=true", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv; charset=utf-8")
	rr := httptest.NewRecorder()
	ts.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}
	res := decode[services.ImportResult](t, rr)
	if res.Imported != 1 || len(res.Skipped) != 1 {
		t.Errorf("import result = %+v", res)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"warning"`) {
		t.Errorf("HX-Trigger = %s", rr.Header().Get("HX-Trigger"))
	}

	if rr := ts.do(t, http.MethodPost, "/api/import", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("import without source status=%d, want 400", rr.Code)
	}
}

func TestImportFromConfiguredSheet(t *testing.T) {
	sheet := memory.New(
		[]string{"Date", "Description", "Amount"},
		[]string{"2025-06-01", "Feira", "45.10"},
	)
	ts := newTestServer(t, Options{Sheet: sheet})

	rr := ts.do(t, http.MethodPost, "/api/import?dry_run=1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("import status=%d body=%s", rr.Code, rr.Body.String())
	}
	res := decode[services.ImportResult](t, rr)
	if res.Imported != 1 || !res.DryRun {
		t.Errorf("import result = %+v", res)
	}
	ledger := decode[[]expenseView](t, ts.do(t, http.MethodGet, "/api/expenses?year=2025&month=6", ""))
	if len(ledger) != 0 {
		t.Errorf("dry run wrote %d expenses", len(ledger))
	}
}

func TestRateLimitOnMutations(t *testing.T) {
	ts := newTestServer(t, Options{RateLimitPerMinute: 2})

	for i := 0; i < 2; i++ {
		if rr := ts.do(t, http.MethodPost, "/api/people", fmt.Sprintf(`{"name": "P%d"}`, i)); rr.Code != http.StatusCreated {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := ts.do(t, http.MethodPost, "/api/people", `{"name": "P3"}`)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Errorf("status=%d Retry-After=%q, want 429", rr.Code, rr.Header().Get("Retry-After"))
	}
	if rr := ts.do(t, http.MethodGet, "/api/people", ""); rr.Code != http.StatusOK {
		t.Errorf("reads must not be limited, status=%d", rr.Code)
	}
}

func TestEventStream(t *testing.T) {
	ts := newTestServer(t, Options{})
	httpSrv := httptest.NewServer(ts.Handler)
	defer httpSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, httpSrv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open stream: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	if !lines.Scan() || lines.Text() != ": connected" {
		t.Fatalf("first line = %q", lines.Text())
	}

	post, err := http.Post(httpSrv.URL+"/api/people", "application/json", strings.NewReader(`{"name": "Davi"}`))
	if err != nil {
		t.Fatal(err)
	}
	post.Body.Close()

	for lines.Scan() {
		line := lines.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		e, err := events.ChangeEventFromJSON([]byte(strings.TrimPrefix(line, "data: ")))
		if err != nil {
			t.Fatalf("bad event %q: %v", line, err)
		}
		if e.Table == events.TablePeople && e.Op == events.OpInsert {
			return
		}
	}
	t.Fatalf("no people insert event received: %v", lines.Err())
}
