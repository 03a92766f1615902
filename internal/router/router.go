package router

import (
	"fmt"
	"net/http"
	"strings"

	"YcrudAPI/internal/auth"
	"YcrudAPI/internal/config"
	"YcrudAPI/internal/crud"
	"YcrudAPI/internal/handler"
	"YcrudAPI/internal/logger"
	"YcrudAPI/internal/model"

	"github.com/gorilla/mux"
)

const apiPrefix = "/api"

// NewRouter registers the routes of every resource in model.Registry.
func NewRouter(cfg *config.Config, store crud.Store) (http.Handler, error) {
	var validator *auth.JWTValidator
	if cfg.Auth.Enabled {
		v, err := auth.NewJWTValidator(cfg.Auth.JWT)
		if err != nil {
			return nil, fmt.Errorf("init jwt validator: %w", err)
		}
		validator = v
	}

	r := mux.NewRouter()
	var pinger handler.Pinger
	if p, ok := store.(handler.Pinger); ok {
		pinger = p
	}
	r.HandleFunc("/healthz", withLogging(handler.HealthHandler(pinger))).Methods(http.MethodGet)

	api := r.PathPrefix(apiPrefix).Subrouter()
	for _, name := range model.ResourceNames() {
		res := model.Registry[name]
		registerResource(api, res, handler.NewResourceHandler(res, store))
	}

	cors := newCORSPolicy(cfg.CORS.AllowOrigin, cfg.CORS.AllowCredentials)
	return withCORS(cors, withAuth(validator, r.ServeHTTP)), nil
}

func registerResource(api *mux.Router, res *model.Resource, h *handler.ResourceHandler) {
	base := resourcePath(res)
	item := base + "/{id}"

	routes := []struct {
		name    string
		method  string
		path    string
		handler http.HandlerFunc
	}{
		{"createMany", http.MethodPost, base + "/bulk", h.CreateMany},
		{"getMany", http.MethodGet, base, h.GetMany},
		{"getOne", http.MethodGet, item, h.GetOne},
		{"createOne", http.MethodPost, base, h.CreateOne},
		{"updateOne", http.MethodPatch, item, h.UpdateOne},
		{"replaceOne", http.MethodPut, item, h.ReplaceOne},
		{"deleteOne", http.MethodDelete, item, h.DeleteOne},
	}
	for _, rt := range routes {
		if !res.RouteEnabled(rt.name) {
			// excluded routes keep their method so the request never
			// falls through to a neighbouring route
			api.HandleFunc(rt.path, withLogging(handler.MethodNotAllowed)).Methods(rt.method)
			continue
		}
		api.HandleFunc(rt.path, withLogging(rt.handler)).Methods(rt.method)
		logger.Debug("route_registered", map[string]any{
			"resource": res.Name,
			"route":    rt.name,
			"method":   rt.method,
			"path":     apiPrefix + rt.path,
		})
	}
}

func resourcePath(res *model.Resource) string {
	p := strings.TrimRight(strings.TrimSpace(res.Path), "/")
	if p == "" {
		return "/" + res.Name
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func withLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		fields := map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
			"status": sw.status,
		}
		switch {
		case sw.status >= 500:
			logger.Error("response", fields)
		case sw.status >= 400:
			logger.Warn("response", fields)
		default:
			logger.Info("response", fields)
		}
	}
}
