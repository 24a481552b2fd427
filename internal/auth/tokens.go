// Package auth identifies the buyer behind a validation request from a bearer token.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/noah-isme/toko-priceguard/internal/common"
)

// TokenValidator validates structural and contextual properties of buyer tokens.
type TokenValidator struct {
	Issuer    string
	Audience  string
	ClockSkew time.Duration
	Algorithm jwa.SignatureAlgorithm
}

// Validate checks a parsed buyer token against the configured claims. algorithm is the
// one taken from the token's protected header.
func (v TokenValidator) Validate(tok jwt.Token, algorithm jwa.SignatureAlgorithm, now time.Time) error {
	switch {
	case tok == nil:
		return errors.New("auth: no token")
	case algorithm == "" || algorithm == jwa.NoSignature:
		return errors.New("auth: unsigned token")
	case v.Algorithm != "" && algorithm != v.Algorithm:
		return fmt.Errorf("auth: %s tokens are not accepted", algorithm)
	}

	opts := append(v.claimOptions(), jwt.WithClock(jwt.ClockFunc(func() time.Time { return now })))
	if err := jwt.Validate(tok, opts...); err != nil {
		return err
	}
	if strings.TrimSpace(tok.Subject()) == "" {
		return errors.New("auth: token names no buyer")
	}
	return nil
}

func (v TokenValidator) claimOptions() []jwt.ValidateOption {
	var opts []jwt.ValidateOption
	if v.ClockSkew > 0 {
		opts = append(opts, jwt.WithAcceptableSkew(v.ClockSkew))
	}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	if v.Audience != "" {
		opts = append(opts, jwt.WithAudience(v.Audience))
	}
	return opts
}

// Tokens verifies HMAC buyer tokens minted by the storefront.
type Tokens struct {
	secret    []byte
	validator TokenValidator
	now       func() time.Time
}

// NewTokens builds a verifier for secret. HS256 is assumed when no algorithm is set.
func NewTokens(secret string, validator TokenValidator) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: empty signing secret")
	}
	if validator.Algorithm == "" {
		validator.Algorithm = jwa.HS256
	}
	return &Tokens{secret: []byte(secret), validator: validator, now: time.Now}, nil
}

// WithNow replaces the clock.
func (t *Tokens) WithNow(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// ParseBuyerToken verifies token and returns the buyer id carried in its subject.
// Every failure is an unauthorized *common.APIError.
func (t *Tokens) ParseBuyerToken(token string) (string, error) {
	raw := strings.TrimSpace(token)
	if raw == "" {
		return "", common.Unauthorized(errors.New("empty token"))
	}
	alg, err := headerAlgorithm(raw)
	if err != nil {
		return "", common.Unauthorized(err)
	}
	if alg != t.validator.Algorithm {
		return "", common.Unauthorized(fmt.Errorf("%s tokens are not accepted", alg))
	}
	tok, err := jwt.ParseString(raw, jwt.WithKey(alg, t.secret), jwt.WithValidate(false))
	if err != nil {
		return "", common.Unauthorized(err)
	}
	if err := t.validator.Validate(tok, alg, t.now()); err != nil {
		return "", common.Unauthorized(err)
	}
	return tok.Subject(), nil
}

// Sign mints a buyer token valid for ttl. The seeder hands these out for local testing.
func (t *Tokens) Sign(buyerID string, ttl time.Duration) (string, error) {
	issued := t.now()
	b := jwt.NewBuilder().Subject(buyerID).IssuedAt(issued).Expiration(issued.Add(ttl))
	if iss := t.validator.Issuer; iss != "" {
		b = b.Issuer(iss)
	}
	if aud := t.validator.Audience; aud != "" {
		b = b.Audience([]string{aud})
	}
	tok, err := b.Build()
	if err != nil {
		return "", err
	}
	out, err := jwt.Sign(tok, jwt.WithKey(t.validator.Algorithm, t.secret))
	return string(out), err
}

// headerAlgorithm reads alg from a compact token, which carries exactly one signature.
func headerAlgorithm(raw string) (jwa.SignatureAlgorithm, error) {
	msg, err := jws.ParseString(raw)
	if err != nil {
		return "", err
	}
	sigs := msg.Signatures()
	if len(sigs) != 1 {
		return "", fmt.Errorf("auth: expected one signature, got %d", len(sigs))
	}
	hdr := sigs[0].ProtectedHeaders()
	if hdr == nil || hdr.Algorithm() == "" {
		return "", errors.New("auth: token header has no algorithm")
	}
	if hdr.Algorithm() == jwa.NoSignature {
		return "", errors.New("auth: unsigned token")
	}
	return hdr.Algorithm(), nil
}
