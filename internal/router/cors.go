package router

import (
	"net/http"
	"strings"
)

const (
	corsMethods = "GET, POST, PATCH, PUT, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Authorization"
)

// corsPolicy is the parsed CORS_ALLOW_ORIGIN setting.
type corsPolicy struct {
	origins     map[string]bool
	wildcard    bool
	credentials bool
}

// newCORSPolicy reads a comma separated origin list. An empty list or "*"
// allows every origin.
func newCORSPolicy(allowOrigin string, credentials bool) corsPolicy {
	p := corsPolicy{origins: map[string]bool{}, credentials: credentials}
	for _, o := range strings.Split(allowOrigin, ",") {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			p.wildcard = true
		default:
			p.origins[o] = true
		}
	}
	if len(p.origins) == 0 {
		p.wildcard = true
	}
	return p
}

// allowOrigin returns the Access-Control-Allow-Origin value for a request
// origin and whether the answer depends on it. Credentials never go out
// with "*", so the request origin is echoed instead.
func (p corsPolicy) allowOrigin(requestOrigin string) (value string, varyOrigin bool) {
	if p.wildcard {
		if p.credentials && requestOrigin != "" {
			return requestOrigin, true
		}
		return "*", false
	}
	if p.origins[requestOrigin] {
		return requestOrigin, true
	}
	return "", true
}

// withCORS adds CORS headers and answers OPTIONS before routing, so
// preflights never reach auth or method matching.
func withCORS(p corsPolicy, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		origin, vary := p.allowOrigin(r.Header.Get("Origin"))
		if origin != "" {
			hdr.Set("Access-Control-Allow-Origin", origin)
		}
		if vary {
			hdr.Add("Vary", "Origin")
		}
		if p.credentials {
			hdr.Set("Access-Control-Allow-Credentials", "true")
		}

		if r.Method != http.MethodOptions {
			h(w, r)
			return
		}
		hdr.Set("Access-Control-Allow-Methods", corsMethods)
		hdr.Set("Access-Control-Allow-Headers", corsHeaders)
		hdr.Set("Access-Control-Max-Age", "86400")
		w.WriteHeader(http.StatusNoContent)
	}
}
