package itests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"
)

var client = &http.Client{Timeout: 5 * time.Second}

// call sends a JSON request and returns the status and the raw body.
func call(t *testing.T, method, rawURL, token string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, rawURL, reader)
	if err != nil {
		t.Fatalf("build request failed: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, rawURL, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, raw
}

// mustCall is call with an expected status and a decoded body.
func mustCall[T any](t *testing.T, want int, method, rawURL, token string, body any) T {
	t.Helper()
	status, raw := call(t, method, rawURL, token, body)
	if status != want {
		t.Fatalf("%s %s: expected %d, got %d. body=%s", method, rawURL, want, status, string(raw))
	}
	var out T
	if len(raw) == 0 {
		return out
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("invalid JSON response: %v; body=%s", err, string(raw))
	}
	return out
}

func withQuery(base string, kv ...string) string {
	q := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		q.Add(kv[i], kv[i+1])
	}
	return base + "?" + q.Encode()
}

type envelope struct {
	Data      []map[string]any `json:"data"`
	Count     int              `json:"count"`
	Total     int              `json:"total"`
	Page      int              `json:"page"`
	PageCount int              `json:"pageCount"`
}
