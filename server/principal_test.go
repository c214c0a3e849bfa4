package server

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func encodeTestPrincipal(t *testing.T, raw string) string {
	t.Helper()
	return base64.StdEncoding.EncodeToString([]byte(raw))
}

func principalHandler() (http.Handler, *Principal) {
	captured := &Principal{}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p, ok := PrincipalFromContext(r.Context()); ok {
			*captured = *p
		}
		w.WriteHeader(http.StatusOK)
	})
	return PrincipalMiddleware(testLogger())(inner), captured
}

func TestPrincipalMiddlewareRejectsMissingHeader(t *testing.T) {
	handler, _ := principalHandler()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/api/sales", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestPrincipalMiddlewareRejectsGarbage(t *testing.T) {
	cases := map[string]string{
		"not base64":   "%%%not-base64%%%",
		"not json":     base64.StdEncoding.EncodeToString([]byte("{broken")),
		"empty userId": base64.StdEncoding.EncodeToString([]byte(`{"userId":""}`)),
	}
	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			handler, _ := principalHandler()
			req := httptest.NewRequest("GET", "/api/sales", nil)
			req.Header.Set(PrincipalHeader, value)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
		})
	}
}

func TestPrincipalMiddlewareDecodesAndDefaults(t *testing.T) {
	handler, captured := principalHandler()
	req := httptest.NewRequest("GET", "/api/sales", nil)
	req.Header.Set(PrincipalHeader, encodeTestPrincipal(t, `{"userId":"u42"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if captured.UserID != "u42" {
		t.Fatalf("userId = %q", captured.UserID)
	}
	if captured.UserDetails != "Unknown User" {
		t.Fatalf("userDetails default = %q", captured.UserDetails)
	}
	if captured.IdentityProvider != "unknown" {
		t.Fatalf("provider default = %q", captured.IdentityProvider)
	}
	if captured.Claims == nil {
		t.Fatalf("claims must default to empty, not nil")
	}
}

func TestPrincipalMiddlewarePassesClaimsThrough(t *testing.T) {
	handler, captured := principalHandler()
	req := httptest.NewRequest("GET", "/api/user", nil)
	req.Header.Set(PrincipalHeader, encodeTestPrincipal(t,
		`{"userId":"u1","userDetails":"octocat","identityProvider":"github","claims":[{"typ":"name","val":"Octo Cat"}]}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if len(captured.Claims) != 1 || captured.Claims[0].Type != "name" || captured.Claims[0].Value != "Octo Cat" {
		t.Fatalf("claims = %+v", captured.Claims)
	}
}
