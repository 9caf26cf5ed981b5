package secrets

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"

	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
)

// AWSConfig configures the AWS Secrets Manager adapter.
type AWSConfig struct {
	Region string
	// Optional AWS profile for local development.
	Profile string
	// Optional custom endpoint for LocalStack.
	Endpoint    string
	CacheTTL    time.Duration
	EnableCache bool
}

// AWSSecretManager implements ports.SecretManager on AWS Secrets Manager.
type AWSSecretManager struct {
	client *secretsmanager.Client
	cache  *secretCache
	logger ports.Logger
}

// NewAWSSecretManager creates an AWS Secrets Manager adapter. Credentials
// come from the default chain (IAM role in production, profile locally).
func NewAWSSecretManager(ctx context.Context, cfg AWSConfig, logger ports.Logger) (*AWSSecretManager, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var clientOpts []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	logger.Info("aws secrets manager adapter initialized",
		ports.String("region", cfg.Region),
		ports.Bool("cache_enabled", cfg.EnableCache),
	)

	return &AWSSecretManager{
		client: secretsmanager.NewFromConfig(awsConfig, clientOpts...),
		cache:  newSecretCache(cfg.CacheTTL, cfg.EnableCache),
		logger: logger,
	}, nil
}

// GetSecret retrieves a secret value by name or full ARN.
func (m *AWSSecretManager) GetSecret(ctx context.Context, name string) (string, error) {
	if value, ok := m.cache.get(name); ok {
		return value, nil
	}

	start := time.Now()
	result, err := m.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		m.logger.Error("failed to retrieve secret", ports.String("name", name), ports.Err(err))
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}

	m.logger.Debug("secret retrieved",
		ports.String("name", name),
		ports.Duration("elapsed", time.Since(start)),
	)

	value := aws.ToString(result.SecretString)
	m.cache.set(name, value)
	return value, nil
}
