package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"YcrudAPI/internal/auth"
	"YcrudAPI/internal/config"
	"YcrudAPI/internal/crud"
	"YcrudAPI/internal/model"
	"YcrudAPI/internal/store/memstore"

	"github.com/golang-jwt/jwt/v5"
)

func withRegistry(t *testing.T, resources ...*model.Resource) {
	t.Helper()
	saved := model.Registry
	model.Registry = map[string]*model.Resource{}
	for _, r := range resources {
		model.Registry[r.Name] = r
	}
	t.Cleanup(func() { model.Registry = saved })
}

func notesResource() *model.Resource {
	return &model.Resource{
		Name: "notes",
		Schema: model.Schema{
			Name:       "notes",
			Collection: "notes",
			Fields:     []model.Field{{Name: "_id", Type: "id"}, {Name: "text", Type: "string"}},
		},
		Options: model.Options{Routes: model.RoutesOptions{Exclude: []string{"deleteOne", "createMany"}}},
	}
}

func testConfig() *config.Config {
	return &config.Config{CORS: config.CORSConfig{AllowOrigin: "*"}}
}

func TestNewRouterRegistersEnabledRoutes(t *testing.T) {
	withRegistry(t, notesResource())
	mem := memstore.New()
	mem.Seed("notes", crud.Document{"_id": "n1", "text": "hello"})

	h, err := NewRouter(testConfig(), mem)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}

	cases := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/notes", http.StatusOK},
		{http.MethodGet, "/api/notes/n1", http.StatusOK},
		{http.MethodDelete, "/api/notes/n1", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/notes/bulk", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/unknown", http.StatusNotFound},
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodOptions, "/api/notes", http.StatusNoContent},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("%s %s: status = %d, want %d", tc.method, tc.path, w.Code, tc.want)
		}
	}
}

func TestNewRouterCORSMethods(t *testing.T) {
	withRegistry(t, notesResource())
	h, err := NewRouter(testConfig(), memstore.New())
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/notes", nil))
	if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "PATCH") || !strings.Contains(got, "DELETE") {
		t.Fatalf("unexpected allow methods: %q", got)
	}
}

func TestResourcePath(t *testing.T) {
	cases := map[string]string{
		"":                     "/notes",
		"notes/":               "/notes",
		"/users/{userId}/tags": "/users/{userId}/tags",
	}
	for in, want := range cases {
		if got := resourcePath(&model.Resource{Name: "notes", Path: in}); got != want {
			t.Fatalf("resourcePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWithAuth(t *testing.T) {
	cfg := config.JWTConfig{
		ValidationType: "HS256",
		Issuer:         "auth-service",
		Audience:       "ycrud-api",
		HMACSecret:     "super-secret",
		ClockSkewSec:   60,
	}
	v, err := auth.NewJWTValidator(cfg)
	if err != nil {
		t.Fatalf("NewJWTValidator failed: %v", err)
	}
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss": cfg.Issuer,
		"aud": cfg.Audience,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(time.Minute).Unix(),
		"sub": "user-1",
	}).SignedString([]byte(cfg.HMACSecret))
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	var seen any
	h := withAuth(v, func(w http.ResponseWriter, r *http.Request) {
		claims, _ := auth.ClaimsFromContext(r.Context())
		seen = claims["sub"]
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		header string
		want   int
		sub    any
	}{
		{"", http.StatusOK, nil},
		{"Bearer " + token, http.StatusOK, "user-1"},
		{"Bearer not-a-token", http.StatusUnauthorized, nil},
		{"Basic abc", http.StatusUnauthorized, nil},
	}
	for _, tc := range cases {
		seen = nil
		req := httptest.NewRequest(http.MethodGet, "/api/notes", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()
		h(w, req)
		if w.Code != tc.want || seen != tc.sub {
			t.Fatalf("%q: status = %d sub = %v, want %d %v", tc.header, w.Code, seen, tc.want, tc.sub)
		}
	}
}
