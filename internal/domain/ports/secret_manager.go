package ports

import "context"

// SecretManager fetches sensitive configuration (DB password, provider API
// keys, webhook signing secrets) from a backing store.
type SecretManager interface {
	GetSecret(ctx context.Context, name string) (string, error)
}
