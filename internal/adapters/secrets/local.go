package secrets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// LocalSecretManager implements ports.SecretManager on the local filesystem.
// Development only; production uses AWS Secrets Manager or Vault.
type LocalSecretManager struct {
	basePath string
	logger   ports.Logger
}

// NewLocalSecretManager creates a filesystem-backed secret manager.
func NewLocalSecretManager(basePath string, logger ports.Logger) *LocalSecretManager {
	return &LocalSecretManager{basePath: basePath, logger: logger}
}

// GetSecret reads one secret per file, trailing whitespace stripped.
func (m *LocalSecretManager) GetSecret(ctx context.Context, name string) (string, error) {
	path := filepath.Join(m.basePath, name)

	m.logger.Debug("reading secret from filesystem", ports.String("name", name))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("secret not found: %s", name)
		}
		return "", fmt.Errorf("read secret %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}
