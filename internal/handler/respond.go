package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"YcrudAPI/internal/crud"
	"YcrudAPI/internal/logger"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Error      string `json:"error"`
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch crud.KindOf(err) {
	case crud.KindBadRequest, crud.KindUnsupportedOperator, crud.KindInvalidJoinPath:
		return http.StatusBadRequest
	case crud.KindNotFound:
		return http.StatusNotFound
	}
	if errors.Is(err, errUnauthorized) {
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// MethodNotAllowed answers routes a resource excludes.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	status := http.StatusMethodNotAllowed
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Message:    "Cannot " + r.Method + " " + r.URL.Path,
		Error:      http.StatusText(status),
	})
}

func writeError(w http.ResponseWriter, endpoint string, err error) {
	status := StatusFor(err)
	fields := map[string]any{"endpoint": endpoint, "status": status, "error": err.Error()}
	if status >= 500 {
		logger.Error("request_failed", fields)
	} else {
		logger.Warn("request_failed", fields)
	}
	writeJSON(w, status, ErrorResponse{
		StatusCode: status,
		Message:    err.Error(),
		Error:      http.StatusText(status),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode_response_failed", map[string]any{"error": err.Error()})
	}
}

// decodeBody reads a JSON body keeping integers as int64.
func decodeBody(r *http.Request, out any) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return &crud.Error{Kind: crud.KindBadRequest, Message: "Failed to read body", Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &crud.Error{Kind: crud.KindBadRequest, Message: "Invalid JSON body", Err: err}
	}
	normalize(out)
	return nil
}

func normalize(v any) {
	switch t := v.(type) {
	case *crud.Document:
		if *t != nil {
			normalizeMap(*t)
		}
	case *crud.CreateManyDto:
		for _, d := range t.Bulk {
			normalizeMap(d)
		}
	}
}

func normalizeMap(m map[string]any) {
	for k, v := range m {
		m[k] = number(v)
	}
}

func number(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		for i := range t {
			t[i] = number(t[i])
		}
	case map[string]any:
		normalizeMap(t)
	}
	return v
}
