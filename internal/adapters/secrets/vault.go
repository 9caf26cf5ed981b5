package secrets

import (
	"context"
	"fmt"
	"time"

	vault "github.com/hashicorp/vault/api"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// VaultConfig configures the HashiCorp Vault adapter.
type VaultConfig struct {
	Address string
	// AuthMethod is "token" or "approle".
	AuthMethod string
	Token      string
	RoleID     string
	SecretID   string
	// MountPath of the KV v2 engine, default "secret".
	MountPath   string
	CacheTTL    time.Duration
	EnableCache bool
}

// VaultSecretManager implements ports.SecretManager on Vault KV v2.
type VaultSecretManager struct {
	client    *vault.Client
	cache     *secretCache
	logger    ports.Logger
	mountPath string
}

// NewVaultSecretManager creates a Vault adapter and authenticates.
func NewVaultSecretManager(ctx context.Context, cfg VaultConfig, logger ports.Logger) (*VaultSecretManager, error) {
	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = cfg.Address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("create vault client: %w", err)
	}

	switch cfg.AuthMethod {
	case "", "token":
		if cfg.Token == "" {
			return nil, fmt.Errorf("vault token is required for token auth")
		}
		client.SetToken(cfg.Token)
	case "approle":
		if cfg.RoleID == "" || cfg.SecretID == "" {
			return nil, fmt.Errorf("role_id and secret_id are required for approle auth")
		}
		resp, err := client.Logical().WriteWithContext(ctx, "auth/approle/login", map[string]interface{}{
			"role_id":   cfg.RoleID,
			"secret_id": cfg.SecretID,
		})
		if err != nil {
			return nil, fmt.Errorf("approle login: %w", err)
		}
		if resp == nil || resp.Auth == nil {
			return nil, fmt.Errorf("approle login returned no auth info")
		}
		client.SetToken(resp.Auth.ClientToken)
	default:
		return nil, fmt.Errorf("unsupported vault auth method: %s", cfg.AuthMethod)
	}

	mountPath := cfg.MountPath
	if mountPath == "" {
		mountPath = "secret"
	}

	logger.Info("vault adapter initialized",
		ports.String("address", cfg.Address),
		ports.String("mount_path", mountPath),
	)

	return &VaultSecretManager{
		client:    client,
		cache:     newSecretCache(cfg.CacheTTL, cfg.EnableCache),
		logger:    logger,
		mountPath: mountPath,
	}, nil
}

// GetSecret reads a KV v2 secret and returns its "value" field.
func (m *VaultSecretManager) GetSecret(ctx context.Context, name string) (string, error) {
	if value, ok := m.cache.get(name); ok {
		return value, nil
	}

	secret, err := m.client.Logical().ReadWithContext(ctx, fmt.Sprintf("%s/data/%s", m.mountPath, name))
	if err != nil {
		m.logger.Error("failed to read secret from vault", ports.String("name", name), ports.Err(err))
		return "", fmt.Errorf("read vault secret %s: %w", name, err)
	}
	if secret == nil {
		return "", fmt.Errorf("vault secret not found: %s", name)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("unexpected vault secret format for %s", name)
	}
	value, ok := data["value"].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("vault secret %s has no value field", name)
	}

	m.cache.set(name, value)
	return value, nil
}
