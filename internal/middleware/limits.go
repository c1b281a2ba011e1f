package middleware

import (
	"context"
	"net/http"
	"time"
)

// Common size limits
const (
	kb = 1024
	mb = 1024 * kb

	// DefaultMaxBodySize is the default maximum request body size (1MB).
	// Validation and webhook payloads are small; anything bigger is abuse.
	DefaultMaxBodySize = 1 * mb
)

// MaxBodySize limits the size of request bodies.
// If the request body exceeds maxBytes, it returns 413 Request Entity Too Large.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodySize
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.ContentLength > maxBytes {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// DefaultTimeout is the default request timeout. Validation makes two remote
// calls in sequence (Stripe then WooCommerce), so this is generous.
const DefaultTimeout = 30 * time.Second

// Timeout attaches a deadline to the request context. Handlers observe the
// deadline through their outbound HTTP clients and database calls.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
