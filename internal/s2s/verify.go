package s2s

import (
	"context"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks an inbound S2S token's signature and required claims.
type Verifier interface {
	Verify(ctx context.Context, tokenString, expectedAudience string) (jwt.MapClaims, error)
}

// hs256Verifier checks the shared-secret path.
type hs256Verifier struct {
	key []byte
}

// NewHS256Verifier constructs the default shared-secret Verifier.
func NewHS256Verifier(secret string) Verifier {
	return &hs256Verifier{key: []byte(secret)}
}

func (v *hs256Verifier) Verify(ctx context.Context, tokenString, expectedAudience string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return v.key, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("s2s: token verification failed: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("s2s: invalid token claims")
	}
	return claims, checkAudience(claims, expectedAudience)
}

// jwksVerifier checks the RS256/KMS path against a JWKS endpoint, grounded
// in apisix-go-runner/plugins/authz.go's keyfunc.NewDefault +
// jwt.Parse(tokenString, jwks.KeyfuncCtx(ctx)) pattern.
type jwksVerifier struct {
	jwks keyfunc.Keyfunc
}

// NewJWKSVerifier constructs a Verifier backed by a JWKS endpoint.
func NewJWKSVerifier(jwksURL string) (Verifier, error) {
	k, err := keyfunc.NewDefault([]string{jwksURL})
	if err != nil {
		return nil, fmt.Errorf("s2s: init jwks from %s: %w", jwksURL, err)
	}
	return &jwksVerifier{jwks: k}, nil
}

func (v *jwksVerifier) Verify(ctx context.Context, tokenString, expectedAudience string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, v.jwks.KeyfuncCtx(ctx), jwt.WithValidMethods([]string{"RS256"}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("s2s: jwks token verification failed: %w", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("s2s: invalid token claims")
	}
	return claims, checkAudience(claims, expectedAudience)
}

func checkAudience(claims jwt.MapClaims, expected string) error {
	aud, _ := claims["aud"].(string)
	if expected != "" && aud != expected {
		return fmt.Errorf("s2s: audience mismatch: expected %q got %q", expected, aud)
	}
	return nil
}
