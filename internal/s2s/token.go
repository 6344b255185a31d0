// Package s2s implements the service-to-service client: Mirror-backed
// resolver with TTL cache, short-lived JWT minting for every outbound hop,
// and the typed call()/callRaw() request paths.
//
// Grounded in privacy-service/internal/service/portal_auth_service.go for
// HS256 minting (jwt.NewWithClaims(jwt.SigningMethodHS256, claims)) and in
// discovery-service/internal/client.ScannerClient for the small
// interface-backed HTTP client shape (newRequest/doJSON helpers, an
// explicit *http.Client timeout, interface boundary for test doubles).
package s2s

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the required and optional S2S token claims per
// SPEC_FULL.md/spec.md §6.
type Claims struct {
	Issuer    string
	Audience  string
	Subject   string
	Service   string
	Scope     string
	TTL       time.Duration
}

// MaxTTL bounds how far in the future exp may be set, regardless of the
// caller-requested TTL.
const MaxTTL = 5 * time.Minute

// Signer mints a signed S2S token for one hop.
type Signer interface {
	Sign(c Claims, now time.Time) (string, error)
}

// hs256Signer is the default signer: HMAC-SHA256 over a shared secret,
// mirroring privacy-service's portal auth JWT minting.
type hs256Signer struct {
	key []byte
}

// NewHS256Signer constructs the default HS256 Signer.
func NewHS256Signer(secret string) Signer {
	return &hs256Signer{key: []byte(secret)}
}

func (s *hs256Signer) Sign(c Claims, now time.Time) (string, error) {
	ttl := c.TTL
	if ttl <= 0 || ttl > MaxTTL {
		ttl = MaxTTL
	}
	jti, err := newJTI()
	if err != nil {
		return "", fmt.Errorf("s2s: generate jti: %w", err)
	}

	claims := jwt.MapClaims{
		"iss": c.Issuer,
		"aud": c.Audience,
		"sub": c.Subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": jti,
	}
	if c.Service != "" {
		claims["svc"] = c.Service
	}
	if c.Scope != "" {
		claims["scope"] = c.Scope
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("s2s: sign token: %w", err)
	}
	return signed, nil
}

// newJTI generates a random hex token unique enough for replay defense,
// matching portal_auth_service.go's generateSecureToken shape.
func newJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
