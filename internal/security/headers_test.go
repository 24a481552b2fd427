package security

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func serveWithHeaders(h Headers, req *http.Request) http.Header {
	rr := httptest.NewRecorder()
	h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)
	return rr.Result().Header
}

func TestHeadersHardenJSONResponses(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "https://shop.example.com/api/v1/checkout/validate", nil)
	req.TLS = &tls.ConnectionState{}

	headers := serveWithHeaders(Headers{HSTS: true, HSTSIncludeSubdomains: true}, req)
	require.Equal(t, "nosniff", headers.Get("X-Content-Type-Options"))
	require.Equal(t, "no-store", headers.Get("Cache-Control"))
	require.Contains(t, headers.Get("Content-Security-Policy"), "default-src 'none'")
	require.Equal(t, "max-age=31536000; includeSubDomains", headers.Get("Strict-Transport-Security"))
}

func TestHeadersSkipHSTSWithoutTLS(t *testing.T) {
	headers := serveWithHeaders(Headers{HSTS: true, HSTSMaxAge: 60}, httptest.NewRequest(http.MethodGet, "http://example.com/health/live", nil))
	require.Empty(t, headers.Get("Strict-Transport-Security"))
	require.Equal(t, "DENY", headers.Get("X-Frame-Options"))
}
