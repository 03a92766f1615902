package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithCORSOrigins(t *testing.T) {
	cases := []struct {
		name        string
		allow       string
		credentials bool
		origin      string
		wantOrigin  string
		wantVary    string
	}{
		{"single origin", "http://localhost:3000", false, "http://localhost:3000", "http://localhost:3000", "Origin"},
		{"csv list", "http://192.168.0.251:3000, http://cbs:3000", false, "http://cbs:3000", "http://cbs:3000", "Origin"},
		{"blocked origin", "http://192.168.0.251:3000,http://cbs:3000", false, "http://evil.example", "", "Origin"},
		{"wildcard", "*", false, "http://any.example", "*", ""},
		{"empty means wildcard", "", false, "", "*", ""},
		{"wildcard with credentials echoes", "*", true, "http://app.example", "http://app.example", "Origin"},
	}
	for _, tc := range cases {
		h := withCORS(newCORSPolicy(tc.allow, tc.credentials), func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		if tc.origin != "" {
			req.Header.Set("Origin", tc.origin)
		}
		w := httptest.NewRecorder()
		h(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != tc.wantOrigin {
			t.Fatalf("%s: unexpected allow origin: %q", tc.name, got)
		}
		if got := w.Header().Get("Vary"); got != tc.wantVary {
			t.Fatalf("%s: unexpected vary: %q", tc.name, got)
		}
		if w.Code != http.StatusOK {
			t.Fatalf("%s: handler not called, status %d", tc.name, w.Code)
		}
	}
}

func TestWithCORSPreflight(t *testing.T) {
	called := false
	h := withCORS(newCORSPolicy("*", true), func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	req := httptest.NewRequest(http.MethodOptions, "/api/users/1", nil)
	req.Header.Set("Origin", "http://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodDelete)
	w := httptest.NewRecorder()
	h(w, req)

	if called {
		t.Fatalf("preflight must not reach the handler")
	}
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got != corsMethods {
		t.Fatalf("unexpected allow methods: %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("unexpected allow credentials: %q", got)
	}
}
