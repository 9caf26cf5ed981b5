package main

import (
	"context"
	"fmt"

	"github.com/cokeastorga/underdeskflow-payments/internal/adapters/secrets"
	"github.com/cokeastorga/underdeskflow-payments/internal/config"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// buildSecretManager selects the secret backend from configuration. AWS in
// production, Vault for self-hosted deployments, local files for development.
func buildSecretManager(ctx context.Context, cfg config.SecretsConfig, logger ports.Logger) (ports.SecretManager, error) {
	switch cfg.Backend {
	case "aws":
		return secrets.NewAWSSecretManager(ctx, secrets.AWSConfig{
			Region:      cfg.AWSRegion,
			Profile:     cfg.AWSProfile,
			Endpoint:    cfg.AWSEndpoint,
			CacheTTL:    cfg.CacheTTL,
			EnableCache: cfg.CacheTTL > 0,
		}, logger)
	case "vault":
		authMethod := "token"
		if cfg.VaultRoleID != "" {
			authMethod = "approle"
		}
		return secrets.NewVaultSecretManager(ctx, secrets.VaultConfig{
			Address:     cfg.VaultAddr,
			AuthMethod:  authMethod,
			Token:       cfg.VaultToken,
			RoleID:      cfg.VaultRoleID,
			SecretID:    cfg.VaultSecretID,
			MountPath:   cfg.VaultMount,
			CacheTTL:    cfg.CacheTTL,
			EnableCache: cfg.CacheTTL > 0,
		}, logger)
	case "local":
		return secrets.NewLocalSecretManager(cfg.LocalDir, logger), nil
	default:
		return nil, fmt.Errorf("unknown secrets backend %q", cfg.Backend)
	}
}
