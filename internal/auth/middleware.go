package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/toko-priceguard/internal/common"
)

var errNoToken = errors.New("auth: token missing")

// TokenParser resolves a bearer token to a buyer id.
type TokenParser interface {
	ParseBuyerToken(token string) (string, error)
}

// Middleware wires buyer identity into HTTP handlers.
type Middleware struct {
	Tokens TokenParser
}

// Authenticate attaches the buyer id when a token is present. Anonymous requests pass
// through and are priced without entitlements; a token that fails validation is refused.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		switch {
		case errors.Is(err, errNoToken):
			next.ServeHTTP(w, r)
		case err != nil:
			writeUnauthorized(w, err)
		default:
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	})
}

// RequireAuth refuses anonymous requests as well as invalid tokens. It is mounted instead
// of Authenticate when AUTH_REQUIRED is set.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := m.authenticateRequest(r)
		if err != nil {
			writeUnauthorized(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m Middleware) authenticateRequest(r *http.Request) (context.Context, error) {
	token := extractToken(r)
	if token == "" {
		return r.Context(), errNoToken
	}
	if m.Tokens == nil {
		return r.Context(), errors.New("auth: token parser not configured")
	}
	buyerID, err := m.Tokens.ParseBuyerToken(token)
	if err != nil {
		return r.Context(), err
	}
	return common.WithBuyerID(r.Context(), buyerID), nil
}

func writeUnauthorized(w http.ResponseWriter, err error) {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) && apiErr.Status != 0 {
		common.WriteError(w, apiErr)
		return
	}
	common.JSONError(w, http.StatusUnauthorized, common.CodeUnauthorized, "missing or invalid token", nil)
}

func extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
