package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider satisfies Provider without any network traffic.
type fakeProvider struct {
	user        ProviderUser
	exchangeErr error
	gotCode     string
	gotNonce    string
}

func (f *fakeProvider) AuthCodeURL(state, nonce string) string {
	return "https://idp.example.com/authorize?state=" + url.QueryEscape(state) + "&nonce=" + url.QueryEscape(nonce)
}

func (f *fakeProvider) Exchange(ctx context.Context, code, expectedNonce string) (ProviderUser, error) {
	f.gotCode = code
	f.gotNonce = expectedNonce
	if f.exchangeErr != nil {
		return ProviderUser{}, f.exchangeErr
	}
	return f.user, nil
}

func newTestGateway(t *testing.T) (*App, *fakeProvider) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Session.Secret = "test-secret"
	cfg.Providers.Default = ""

	app, err := NewApp(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	fake := &fakeProvider{user: ProviderUser{Subject: "12345", Name: "The Octocat", Email: "octo@example.com"}}
	app.Providers["github"] = fake
	return app, fake
}

func TestAuthMeAnonymous(t *testing.T) {
	app, _ := newTestGateway(t)

	rec := httptest.NewRecorder()
	app.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/.auth/me", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]*Principal
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	principal, ok := body["clientPrincipal"]
	if !ok {
		t.Fatalf("clientPrincipal key missing: %s", rec.Body.String())
	}
	if principal != nil {
		t.Fatalf("anonymous principal = %+v", principal)
	}
}

func TestLoginRedirectsToProvider(t *testing.T) {
	app, _ := newTestGateway(t)

	rec := httptest.NewRecorder()
	app.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/.auth/login/github", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	loc, err := url.Parse(rec.Header().Get("Location"))
	if err != nil {
		t.Fatalf("parse location: %v", err)
	}
	if loc.Host != "idp.example.com" {
		t.Fatalf("redirect host = %q", loc.Host)
	}
	state := loc.Query().Get("state")
	if state == "" {
		t.Fatalf("state missing from redirect %q", loc)
	}
	if _, ok := app.States.Consume(state); !ok {
		t.Fatalf("state %q not stored", state)
	}
}

func TestLoginDefaultProvider(t *testing.T) {
	app, _ := newTestGateway(t)
	app.Config.Providers.Default = "github"

	rec := httptest.NewRecorder()
	app.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/.auth/login", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
}

func TestLoginUnknownProvider(t *testing.T) {
	app, _ := newTestGateway(t)
	rec := httptest.NewRecorder()
	app.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/.auth/login/entra", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestCallbackEstablishesSession(t *testing.T) {
	app, fake := newTestGateway(t)
	router := app.Routes()

	// Start a login to obtain a live state.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/.auth/login/github?post_login_redirect_uri=/dashboard", nil))
	loc, _ := url.Parse(rec.Header().Get("Location"))
	state := loc.Query().Get("state")
	nonce := loc.Query().Get("nonce")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/.auth/callback/github?code=abc&state="+url.QueryEscape(state), nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != "/dashboard" {
		t.Fatalf("redirect = %q, want /dashboard", got)
	}
	if fake.gotCode != "abc" || fake.gotNonce != nonce {
		t.Fatalf("exchange called with code %q nonce %q", fake.gotCode, fake.gotNonce)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("session cookie not set")
	}

	// The session now answers /.auth/me with the principal.
	req := httptest.NewRequest("GET", "/.auth/me", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var body map[string]*Principal
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	principal := body["clientPrincipal"]
	if principal == nil {
		t.Fatalf("principal missing: %s", rec.Body.String())
	}
	if principal.UserID != "github:12345" {
		t.Fatalf("userId = %q", principal.UserID)
	}
	if principal.UserDetails != "The Octocat" || principal.IdentityProvider != "github" {
		t.Fatalf("principal = %+v", principal)
	}
}

func TestCallbackRejectsUnknownState(t *testing.T) {
	app, _ := newTestGateway(t)
	rec := httptest.NewRecorder()
	app.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/.auth/callback/github?code=abc&state=bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCallbackStateIsSingleUse(t *testing.T) {
	app, _ := newTestGateway(t)
	router := app.Routes()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/.auth/login/github", nil))
	loc, _ := url.Parse(rec.Header().Get("Location"))
	state := loc.Query().Get("state")

	callback := "/.auth/callback/github?code=abc&state=" + url.QueryEscape(state)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", callback, nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("first callback status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", callback, nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("replayed callback status = %d, want 400", rec.Code)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	app, _ := newTestGateway(t)
	rec := httptest.NewRecorder()
	app.Routes().ServeHTTP(rec, httptest.NewRequest("GET", "/.auth/logout", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Fatalf("logout cookies = %+v", cookies)
	}
}

func TestSanitizeReturnTo(t *testing.T) {
	cases := map[string]string{
		"":                          "/",
		"/dashboard":                "/dashboard",
		"/sales?page=2":             "/sales?page=2",
		"https://evil.example.com/": "/",
		"//evil.example.com":        "/",
		"dashboard":                 "/",
	}
	for in, want := range cases {
		if got := sanitizeReturnTo(in); got != want {
			t.Errorf("sanitizeReturnTo(%q) = %q, want %q", in, got, want)
		}
	}
}
