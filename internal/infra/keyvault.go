package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// SecretSource отдаёт секрет по имени.
type SecretSource interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// KeyVaultSource читает секреты из Azure Key Vault через Managed Identity.
type KeyVaultSource struct {
	client *azsecrets.Client
}

func NewKeyVaultSource(vaultURL string) (*KeyVaultSource, error) {
	credential, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("keyvault: failed to create Azure credential: %w", err)
	}
	client, err := azsecrets.NewClient(vaultURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("keyvault: failed to create client: %w", err)
	}
	return &KeyVaultSource{client: client}, nil
}

func (s *KeyVaultSource) GetSecret(ctx context.Context, name string) (string, error) {
	// В Key Vault допустимы только дефисы
	name = strings.ReplaceAll(name, "_", "-")
	resp, err := s.client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return "", fmt.Errorf("keyvault: get secret %s: %w", name, err)
	}
	if resp.Value == nil {
		return "", fmt.Errorf("keyvault: secret %s has no value", name)
	}
	return *resp.Value, nil
}

// ResolveAuthSecret дополняет конфигурацию секретом из хранилища, если он не задан локально.
func ResolveAuthSecret(ctx context.Context, cfg *AuthConfig, src SecretSource) error {
	if cfg.Secret != "" || src == nil || cfg.KeyVaultSecret == "" {
		return nil
	}
	secret, err := src.GetSecret(ctx, cfg.KeyVaultSecret)
	if err != nil {
		return err
	}
	cfg.Secret = strings.TrimSpace(secret)
	return nil
}
