package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Orders         OrdersConfig
	Providers      ProvidersConfig
	Secrets        SecretsConfig
	Resilience     ResilienceConfig
	Payout         PayoutConfig
	Outbox         OutboxConfig
	Reconciliation ReconciliationConfig
	Publisher      PublisherConfig
	Logger         LoggerConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port        int
	Host        string
	MetricsPort int
	CORSOrigins []string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// OrdersConfig holds the commerce subsystem endpoint used to resolve
// orders server-side.
type OrdersConfig struct {
	BaseURL        string
	APIKeySecret   string
	RequestTimeout time.Duration
}

// ProviderConfig holds one PSP's endpoint and credential names. The values
// behind the secret names are fetched through the secret manager at boot.
type ProviderConfig struct {
	BaseURL           string
	APIKeySecret      string
	WebhookSecretName string
	RequestTimeout    time.Duration
}

// ProvidersConfig holds every configured PSP.
type ProvidersConfig struct {
	Cardnet  ProviderConfig
	Bankpay  ProviderConfig
	Walletio ProviderConfig
}

// SecretsConfig selects and configures the secret backend.
type SecretsConfig struct {
	// Backend is one of "aws", "vault", "local".
	Backend string

	AWSRegion   string
	AWSProfile  string
	AWSEndpoint string

	VaultAddr     string
	VaultToken    string
	VaultMount    string
	VaultRoleID   string
	VaultSecretID string

	LocalDir string

	CacheTTL time.Duration
}

// ResilienceConfig holds circuit breaker and retry settings.
type ResilienceConfig struct {
	CBMaxFailures         uint32
	CBCooldown            time.Duration
	CBMaxRequestsHalfOpen uint32
	LockRetries           int
}

// PayoutConfig holds payout engine settings.
type PayoutConfig struct {
	DailyLimit int64
}

// OutboxConfig holds publisher loop settings.
type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

// ReconciliationConfig holds the reconciliation job settings.
type ReconciliationConfig struct {
	Interval time.Duration
}

// PublisherConfig holds downstream event delivery settings.
type PublisherConfig struct {
	Endpoint          string
	SigningSecretName string
	Timeout           time.Duration
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level       string // debug, info, warn, error
	Development bool
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:        getEnvAsInt("SERVER_PORT", 8080),
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			MetricsPort: getEnvAsInt("METRICS_PORT", 9090),
			CORSOrigins: []string{getEnv("CORS_ORIGIN", "*")},
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "payments"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 5)),
		},
		Orders: OrdersConfig{
			BaseURL:        getEnv("ORDERS_BASE_URL", "http://orders.internal:8080"),
			APIKeySecret:   getEnv("ORDERS_API_KEY_SECRET", "orders/api_key"),
			RequestTimeout: getEnvAsDuration("ORDERS_TIMEOUT", 5*time.Second),
		},
		Providers: ProvidersConfig{
			Cardnet: ProviderConfig{
				BaseURL:           getEnv("CARDNET_BASE_URL", "https://api.cardnet.example"),
				APIKeySecret:      getEnv("CARDNET_API_KEY_SECRET", "cardnet/api_key"),
				WebhookSecretName: getEnv("CARDNET_WEBHOOK_SECRET", "cardnet/webhook_secret"),
				RequestTimeout:    getEnvAsDuration("CARDNET_TIMEOUT", 10*time.Second),
			},
			Bankpay: ProviderConfig{
				BaseURL:           getEnv("BANKPAY_BASE_URL", "https://api.bankpay.example"),
				APIKeySecret:      getEnv("BANKPAY_API_KEY_SECRET", "bankpay/api_key"),
				WebhookSecretName: getEnv("BANKPAY_WEBHOOK_SECRET", "bankpay/webhook_secret"),
				RequestTimeout:    getEnvAsDuration("BANKPAY_TIMEOUT", 10*time.Second),
			},
			Walletio: ProviderConfig{
				BaseURL:           getEnv("WALLETIO_BASE_URL", "https://api.walletio.example"),
				APIKeySecret:      getEnv("WALLETIO_API_KEY_SECRET", "walletio/api_key"),
				WebhookSecretName: getEnv("WALLETIO_WEBHOOK_SECRET", "walletio/webhook_secret"),
				RequestTimeout:    getEnvAsDuration("WALLETIO_TIMEOUT", 10*time.Second),
			},
		},
		Secrets: SecretsConfig{
			Backend:       getEnv("SECRETS_BACKEND", "local"),
			AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
			AWSProfile:    getEnv("AWS_PROFILE", ""),
			AWSEndpoint:   getEnv("AWS_SECRETS_ENDPOINT", ""),
			VaultAddr:     getEnv("VAULT_ADDR", "http://127.0.0.1:8200"),
			VaultToken:    getEnv("VAULT_TOKEN", ""),
			VaultMount:    getEnv("VAULT_MOUNT", "secret"),
			VaultRoleID:   getEnv("VAULT_ROLE_ID", ""),
			VaultSecretID: getEnv("VAULT_SECRET_ID", ""),
			LocalDir:      getEnv("SECRETS_LOCAL_DIR", "./secrets"),
			CacheTTL:      getEnvAsDuration("SECRETS_CACHE_TTL", 5*time.Minute),
		},
		Resilience: ResilienceConfig{
			CBMaxFailures:         uint32(getEnvAsInt("CB_MAX_FAILURES", 5)),
			CBCooldown:            getEnvAsDuration("CB_COOLDOWN", 30*time.Second),
			CBMaxRequestsHalfOpen: uint32(getEnvAsInt("CB_MAX_REQUESTS_HALF_OPEN", 1)),
			LockRetries:           getEnvAsInt("INTENT_LOCK_RETRIES", 3),
		},
		Payout: PayoutConfig{
			DailyLimit: getEnvAsInt64("PAYOUT_DAILY_LIMIT", 5_000_000),
		},
		Outbox: OutboxConfig{
			PollInterval: getEnvAsDuration("OUTBOX_POLL_INTERVAL", 2*time.Second),
			BatchSize:    getEnvAsInt("OUTBOX_BATCH_SIZE", 100),
		},
		Reconciliation: ReconciliationConfig{
			Interval: getEnvAsDuration("RECON_INTERVAL", time.Hour),
		},
		Publisher: PublisherConfig{
			Endpoint:          getEnv("PUBLISHER_ENDPOINT", ""),
			SigningSecretName: getEnv("PUBLISHER_SIGNING_SECRET", "publisher/signing_secret"),
			Timeout:           getEnvAsDuration("PUBLISHER_TIMEOUT", 10*time.Second),
		},
		Logger: LoggerConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	// Validate required fields
	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if cfg.Publisher.Endpoint == "" {
		return nil, fmt.Errorf("PUBLISHER_ENDPOINT is required")
	}
	switch cfg.Secrets.Backend {
	case "aws", "vault", "local":
	default:
		return nil, fmt.Errorf("SECRETS_BACKEND must be aws, vault, or local, got %q", cfg.Secrets.Backend)
	}

	return cfg, nil
}

// ConnectionString returns PostgreSQL connection string
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
