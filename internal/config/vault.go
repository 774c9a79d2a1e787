package config

import (
	"fmt"

	"github.com/hashicorp/vault/api"
)

// SecretManager wraps the Vault API client for reading secrets.
type SecretManager struct {
	client *api.Client
}

// NewSecretManager creates a Vault client pointed at the given address
// and authenticated with the provided token.
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

// GetKV2 reads from a KV v2 backend and returns the inner "data" map,
// unwrapping the v2 envelope automatically.
func (s *SecretManager) GetKV2(path string) (map[string]interface{}, error) {
	secret, err := s.client.Logical().Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret at %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no data found at %s", path)
	}
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("unexpected data format at %s", path)
	}
	return data, nil
}

// loadVaultSecrets overlays credentials from Vault onto the config.
// Environment values win only when Vault does not hold the key.
func (c *Config) loadVaultSecrets() error {
	sm, err := NewSecretManager(c.VaultAddr, c.VaultToken)
	if err != nil {
		return err
	}
	data, err := sm.GetKV2(c.VaultSecretPath)
	if err != nil {
		return err
	}
	if v, ok := data["github_token"].(string); ok && v != "" {
		c.GitHubToken = v
	}
	if v, ok := data["resend_api_key"].(string); ok && v != "" {
		c.ResendAPIKey = v
	}
	if v, ok := data["mail_from"].(string); ok && v != "" {
		c.MailFrom = v
	}
	return nil
}
