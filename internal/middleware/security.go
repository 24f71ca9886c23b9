package middleware

import "net/http"

// SecurityConfig controls the Security middleware.
type SecurityConfig struct {
	// IsDevelopment disables HSTS so local HTTP setups keep working.
	IsDevelopment bool
}

// baselineHeaders are applied to every response. Cache and content
// policy headers are left to individual handlers, which know whether
// they serve a redirect, JSON, or an HTML fallback page.
var baselineHeaders = map[string]string{
	"X-Content-Type-Options": "nosniff",
	"X-Frame-Options":        "DENY",
	"X-XSS-Protection":       "0",
	"Referrer-Policy":        "strict-origin-when-cross-origin",
	"Permissions-Policy":     "geolocation=(), microphone=(), camera=(), payment=(), usb=()",
}

// Security applies baseline security headers.
func Security(cfg SecurityConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for name, value := range baselineHeaders {
				h.Set(name, value)
			}
			if !cfg.IsDevelopment {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			}
			h.Del("Server")

			next.ServeHTTP(w, r)
		})
	}
}
