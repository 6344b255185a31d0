package s2s

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"

	"github.com/MicahParks/jwkset"
)

// JWKSPublisher serves this service's own RSA public key as a JWKS document
// so peers can verify RS256-signed S2S tokens minted with NewRS256Signer.
type JWKSPublisher struct {
	store jwkset.Storage
}

// NewJWKSPublisher builds a publisher over a single RSA public key.
func NewJWKSPublisher(ctx context.Context, keyID string, pub *rsa.PublicKey) (*JWKSPublisher, error) {
	store := jwkset.NewMemoryStorage()
	jwk, err := jwkset.NewJWKFromKey(pub, jwkset.JWKOptions{
		Metadata: jwkset.JWKMetadataOptions{KID: keyID},
	})
	if err != nil {
		return nil, fmt.Errorf("s2s: build jwk: %w", err)
	}
	if err := store.KeyWrite(ctx, jwk); err != nil {
		return nil, fmt.Errorf("s2s: write jwk to store: %w", err)
	}
	return &JWKSPublisher{store: store}, nil
}

// JSON renders the public JWKS document for an HTTP GET /.well-known/jwks.json
// handler.
func (p *JWKSPublisher) JSON(ctx context.Context) ([]byte, error) {
	response, err := p.store.JSONPublic(ctx)
	if err != nil {
		return nil, fmt.Errorf("s2s: render jwks: %w", err)
	}
	return json.Marshal(response)
}
