// Package security holds transport hardening middleware for the validation API.
package security

import (
	"net/http"

	"github.com/noah-isme/toko-priceguard/internal/common"
)

// BodyLimit caps the size of request payloads.
type BodyLimit struct {
	Max int64
}

// Middleware rejects declared oversized payloads with HTTP 413 and wraps the body
// in http.MaxBytesReader so handlers see *http.MaxBytesError on overflow.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}

		if r.ContentLength > b.Max {
			common.WriteError(w, common.TooLarge())
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		next.ServeHTTP(w, r)
	})
}
