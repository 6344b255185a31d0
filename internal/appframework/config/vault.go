// Package config loads mesh configuration from Vault, mirroring
// packages/go-core/config/vault.go's SecretManager, plus the String and
// StringOr helpers each service's main uses to read its values once at
// boot. There is no shared Config struct; each main keeps the values it
// reads in local variables.
package config

import (
	"fmt"

	"github.com/hashicorp/vault/api"
)

// SecretManager wraps the Vault API client for reading secrets.
type SecretManager struct {
	client *api.Client
}

// NewSecretManager creates a Vault client pointed at the given address and
// authenticated with the provided token.
func NewSecretManager(address, token string) (*SecretManager, error) {
	cfg := api.DefaultConfig()
	cfg.Address = address

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault client initialization failed: %w", err)
	}
	client.SetToken(token)

	return &SecretManager{client: client}, nil
}

// GetSecret reads a secret at the given path and returns the raw data map.
func (s *SecretManager) GetSecret(path string) (map[string]interface{}, error) {
	secret, err := s.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no data found at %s", path)
	}
	return secret.Data, nil
}

// GetKV2 is a convenience wrapper that reads from a KV v2 backend and
// returns the inner "data" map, unwrapping the v2 envelope automatically.
func (s *SecretManager) GetKV2(path string) (map[string]interface{}, error) {
	raw, err := s.GetSecret(path)
	if err != nil {
		return nil, err
	}
	data, ok := raw["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected data format at %s", path)
	}
	return data, nil
}

// String reads key as a string, failing fast if it is absent or the wrong
// type. SPEC_FULL.md §5 requires configuration to be read once and frozen;
// a missing required value must fail boot, not default silently.
func String(secrets map[string]interface{}, key string) (string, error) {
	v, ok := secrets[key]
	if !ok {
		return "", fmt.Errorf("config: required secret %q is missing", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("config: secret %q is not a string", key)
	}
	return s, nil
}

// StringOr reads key as a string, returning fallback if absent.
func StringOr(secrets map[string]interface{}, key, fallback string) string {
	if v, ok := secrets[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
