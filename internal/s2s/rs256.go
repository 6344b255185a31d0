package s2s

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// rs256Signer signs with an RSA private key, used when a KMS-backed key is
// configured instead of the shared HS256 secret. The key itself is loaded
// through the same Vault-backed SecretManager every app uses for its other
// secrets (see internal/appframework/config) — this package never talks to
// a KMS SDK directly, it only consumes the resulting *rsa.PrivateKey.
type rs256Signer struct {
	keyID string
	key   *rsa.PrivateKey
}

// NewRS256Signer constructs a Signer over an already-loaded RSA private
// key, tagging tokens with keyID via the "kid" header so the verifying side
// can select the right JWKS entry.
func NewRS256Signer(keyID string, key *rsa.PrivateKey) Signer {
	return &rs256Signer{keyID: keyID, key: key}
}

func (s *rs256Signer) Sign(c Claims, now time.Time) (string, error) {
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

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = s.keyID
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("s2s: sign rs256 token: %w", err)
	}
	return signed, nil
}
