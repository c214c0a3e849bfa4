package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	app, err := NewApp(context.Background(), DefaultConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	app.now = func() time.Time {
		return time.Date(2024, time.March, 20, 12, 0, 0, 0, time.UTC)
	}
	return app
}

func authedRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	principal := `{"userId":"u1","userDetails":"octocat","identityProvider":"github","claims":[]}`
	req.Header.Set(PrincipalHeader, base64.StdEncoding.EncodeToString([]byte(principal)))
	return req
}

func doRequest(app *App, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	app.Routes().ServeHTTP(w, req)
	return w
}

func createSale(t *testing.T, app *App, payload SaleCreate) SaleItem {
	t.Helper()
	w := doRequest(app, authedRequest(t, "POST", "/api/sales", payload))
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", w.Code, w.Body.String())
	}
	var sale SaleItem
	if err := json.Unmarshal(w.Body.Bytes(), &sale); err != nil {
		t.Fatalf("decode created sale: %v", err)
	}
	return sale
}

func TestAPIRequiresPrincipal(t *testing.T) {
	app := newTestApp(t)
	w := doRequest(app, httptest.NewRequest("GET", "/api/sales", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["detail"] == "" || body["status_code"] != float64(401) {
		t.Fatalf("error envelope = %v", body)
	}
}

func TestHealthOpenWithoutPrincipal(t *testing.T) {
	app := newTestApp(t)
	w := doRequest(app, httptest.NewRequest("GET", "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestSaleCRUDLifecycle(t *testing.T) {
	app := newTestApp(t)

	created := createSale(t, app, SaleCreate{
		ProductName:  "Air Jordan 1",
		Amount:       180,
		SaleDate:     "2024-03-15T10:30:00Z",
		CustomerName: "John Doe",
		Platform:     PlatformStockX,
	})
	if created.ID == "" {
		t.Fatalf("created sale has no ID")
	}
	if created.UserID != "u1" {
		t.Fatalf("userId = %q", created.UserID)
	}
	if created.CreatedAt != "2024-03-20T12:00:00Z" || created.UpdatedAt != created.CreatedAt {
		t.Fatalf("timestamps = %q / %q", created.CreatedAt, created.UpdatedAt)
	}

	// Read back.
	w := doRequest(app, authedRequest(t, "GET", "/api/sales/"+created.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}

	// Partial update keeps untouched fields.
	newAmount := 185.0
	w = doRequest(app, authedRequest(t, "PUT", "/api/sales/"+created.ID, SaleUpdate{Amount: &newAmount}))
	if w.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", w.Code, w.Body.String())
	}
	var updated SaleItem
	if err := json.Unmarshal(w.Body.Bytes(), &updated); err != nil {
		t.Fatalf("decode updated: %v", err)
	}
	if updated.Amount != 185 || updated.ProductName != "Air Jordan 1" {
		t.Fatalf("updated = %+v", updated)
	}
	if updated.UpdatedAt != "2024-03-20T12:00:00Z" {
		t.Fatalf("updatedAt = %q", updated.UpdatedAt)
	}

	// Delete is 204, then 404.
	w = doRequest(app, authedRequest(t, "DELETE", "/api/sales/"+created.ID, nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d", w.Code)
	}
	w = doRequest(app, authedRequest(t, "GET", "/api/sales/"+created.ID, nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete = %d", w.Code)
	}
}

func TestCreateSaleValidation(t *testing.T) {
	app := newTestApp(t)
	cases := map[string]SaleCreate{
		"missing product": {Amount: 10, SaleDate: "2024-03-01T00:00:00Z", Platform: PlatformEbay},
		"zero amount":     {ProductName: "x", SaleDate: "2024-03-01T00:00:00Z", Platform: PlatformEbay},
		"missing date":    {ProductName: "x", Amount: 10, Platform: PlatformEbay},
		"bad platform":    {ProductName: "x", Amount: 10, SaleDate: "2024-03-01T00:00:00Z", Platform: "amazon"},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			w := doRequest(app, authedRequest(t, "POST", "/api/sales", payload))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestDashboardStatsAggregation(t *testing.T) {
	app := newTestApp(t)

	// Two sales this month (March 2024), one in January.
	createSale(t, app, SaleCreate{ProductName: "a", Amount: 100, SaleDate: "2024-03-01T00:00:00Z", Platform: PlatformEbay})
	createSale(t, app, SaleCreate{ProductName: "b", Amount: 50, SaleDate: "2024-03-10T00:00:00Z", Platform: PlatformGoat})
	createSale(t, app, SaleCreate{ProductName: "c", Amount: 30, SaleDate: "2024-01-05T00:00:00Z", Platform: PlatformManual})

	w := doRequest(app, authedRequest(t, "GET", "/api/dashboard/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var stats DashboardStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalSales != 180 || stats.TotalItems != 3 {
		t.Fatalf("totals = %+v", stats)
	}
	if stats.ThisMonth != 150 {
		t.Fatalf("thisMonth = %v, want 150", stats.ThisMonth)
	}
	if stats.AvgPrice != 60 {
		t.Fatalf("avgPrice = %v, want 60", stats.AvgPrice)
	}
}

func TestDashboardStatsEmpty(t *testing.T) {
	app := newTestApp(t)
	w := doRequest(app, authedRequest(t, "GET", "/api/dashboard/stats", nil))
	var stats DashboardStats
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats != (DashboardStats{}) {
		t.Fatalf("empty stats = %+v", stats)
	}
}

func TestRecentSalesLimit(t *testing.T) {
	app := newTestApp(t)
	for i := 0; i < 25; i++ {
		createSale(t, app, SaleCreate{
			ProductName: "item",
			Amount:      10,
			SaleDate:    time.Date(2024, time.March, i+1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
			Platform:    PlatformManual,
		})
	}

	// Default limit.
	w := doRequest(app, authedRequest(t, "GET", "/api/dashboard/recent", nil))
	var recent []RecentSale
	if err := json.Unmarshal(w.Body.Bytes(), &recent); err != nil {
		t.Fatalf("decode recent: %v", err)
	}
	if len(recent) != defaultRecentLimit {
		t.Fatalf("default limit = %d, want %d", len(recent), defaultRecentLimit)
	}
	if recent[0].SaleDate != "2024-03-25T00:00:00Z" {
		t.Fatalf("newest first expected, got %q", recent[0].SaleDate)
	}

	// Requested limit above the cap.
	w = doRequest(app, authedRequest(t, "GET", "/api/dashboard/recent?limit=100", nil))
	if err := json.Unmarshal(w.Body.Bytes(), &recent); err != nil {
		t.Fatalf("decode recent: %v", err)
	}
	if len(recent) != maxRecentLimit {
		t.Fatalf("capped limit = %d, want %d", len(recent), maxRecentLimit)
	}
}

func TestDashboardDataCombined(t *testing.T) {
	app := newTestApp(t)
	createSale(t, app, SaleCreate{ProductName: "a", Amount: 100, SaleDate: "2024-03-01T00:00:00Z", Platform: PlatformEbay})

	w := doRequest(app, authedRequest(t, "GET", "/api/dashboard", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var data DashboardData
	if err := json.Unmarshal(w.Body.Bytes(), &data); err != nil {
		t.Fatalf("decode dashboard: %v", err)
	}
	if data.Stats.TotalItems != 1 || len(data.RecentSales) != 1 {
		t.Fatalf("combined payload = %+v", data)
	}
}

func TestUserInfoEndpoint(t *testing.T) {
	app := newTestApp(t)
	w := doRequest(app, authedRequest(t, "GET", "/api/user", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var info map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("decode user info: %v", err)
	}
	if info["userId"] != "u1" || info["userDetails"] != "octocat" || info["provider"] != "github" {
		t.Fatalf("user info = %v", info)
	}
}
