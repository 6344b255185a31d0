package s2s_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arc-self/svcmesh/internal/s2s"
)

func TestHS256Signer_SignAndVerifyRoundTrip(t *testing.T) {
	signer := s2s.NewHS256Signer("top-secret")
	now := time.Now()
	tok, err := signer.Sign(s2s.Claims{Issuer: "gateway", Audience: "internal", Subject: "gateway", TTL: time.Minute}, now)
	require.NoError(t, err)

	verifier := s2s.NewHS256Verifier("top-secret")
	claims, err := verifier.Verify(t.Context(), tok, "internal")
	require.NoError(t, err)
	assert.Equal(t, "gateway", claims["iss"])
	assert.Equal(t, "gateway", claims["sub"])
	assert.NotEmpty(t, claims["jti"])
}

func TestHS256Signer_TTLCappedAtMax(t *testing.T) {
	signer := s2s.NewHS256Signer("top-secret")
	now := time.Now()
	tok, err := signer.Sign(s2s.Claims{Issuer: "gateway", Audience: "internal", Subject: "gateway", TTL: time.Hour}, now)
	require.NoError(t, err)

	parsed, _, err := jwt.NewParser().ParseUnverified(tok, jwt.MapClaims{})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	exp, _ := claims.GetExpirationTime()
	assert.LessOrEqual(t, exp.Sub(now), s2s.MaxTTL+time.Second)
}

func TestHS256Verifier_WrongAudienceRejected(t *testing.T) {
	signer := s2s.NewHS256Signer("top-secret")
	tok, err := signer.Sign(s2s.Claims{Issuer: "gateway", Audience: "internal", Subject: "gateway", TTL: time.Minute}, time.Now())
	require.NoError(t, err)

	verifier := s2s.NewHS256Verifier("top-secret")
	_, err = verifier.Verify(t.Context(), tok, "some-other-audience")
	assert.Error(t, err)
}

func TestHS256Verifier_WrongSecretRejected(t *testing.T) {
	signer := s2s.NewHS256Signer("top-secret")
	tok, err := signer.Sign(s2s.Claims{Issuer: "gateway", Audience: "internal", Subject: "gateway", TTL: time.Minute}, time.Now())
	require.NoError(t, err)

	verifier := s2s.NewHS256Verifier("wrong-secret")
	_, err = verifier.Verify(t.Context(), tok, "internal")
	assert.Error(t, err)
}
