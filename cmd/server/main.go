package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cokeastorga/underdeskflow-payments/internal/adapters/database"
	"github.com/cokeastorga/underdeskflow-payments/internal/adapters/logging"
	"github.com/cokeastorga/underdeskflow-payments/internal/adapters/orders"
	"github.com/cokeastorga/underdeskflow-payments/internal/adapters/postgres"
	"github.com/cokeastorga/underdeskflow-payments/internal/adapters/providers"
	"github.com/cokeastorga/underdeskflow-payments/internal/adapters/publisher"
	"github.com/cokeastorga/underdeskflow-payments/internal/config"
	"github.com/cokeastorga/underdeskflow-payments/internal/domain/ports"
	"github.com/cokeastorga/underdeskflow-payments/internal/handlers"
	intentService "github.com/cokeastorga/underdeskflow-payments/internal/services/intent"
	ledgerService "github.com/cokeastorga/underdeskflow-payments/internal/services/ledger"
	outboxService "github.com/cokeastorga/underdeskflow-payments/internal/services/outbox"
	payoutService "github.com/cokeastorga/underdeskflow-payments/internal/services/payout"
	reconciliationService "github.com/cokeastorga/underdeskflow-payments/internal/services/reconciliation"
	refundService "github.com/cokeastorga/underdeskflow-payments/internal/services/refund"
	"github.com/cokeastorga/underdeskflow-payments/internal/services/routing"
	webhookService "github.com/cokeastorga/underdeskflow-payments/internal/services/webhook"
	"github.com/cokeastorga/underdeskflow-payments/pkg/observability"
	"github.com/cokeastorga/underdeskflow-payments/pkg/resilience"
	"github.com/cokeastorga/underdeskflow-payments/pkg/shutdown"
)

func main() {
	// .env is optional; deployments inject configuration through the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	zapLog, err := logging.NewLogger(cfg.Logger.Level, cfg.Logger.Development)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer zapLog.Sync()
	logger := logging.NewZapLogger(zapLog)

	zapLog.Info("Starting payment orchestrator",
		zap.String("version", "0.1.0"),
		zap.String("secrets_backend", cfg.Secrets.Backend),
	)

	ctx := context.Background()

	db, err := database.NewPostgreSQLAdapter(ctx, &database.PostgreSQLConfig{
		DatabaseURL: cfg.Database.ConnectionString(),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
	}, zapLog)
	if err != nil {
		zapLog.Fatal("Failed to initialize database", zap.Error(err))
	}

	secretManager, err := buildSecretManager(ctx, cfg.Secrets, logger)
	if err != nil {
		zapLog.Fatal("Failed to initialize secret manager", zap.Error(err))
	}

	clock := ports.RealClock{}

	router := routing.NewRouter(resilience.CircuitBreakerConfig{
		MaxFailures:         cfg.Resilience.CBMaxFailures,
		Cooldown:            cfg.Resilience.CBCooldown,
		MaxRequestsHalfOpen: cfg.Resilience.CBMaxRequestsHalfOpen,
	}, logger)
	if err := registerProviders(ctx, router, cfg.Providers, secretManager, clock, logger); err != nil {
		zapLog.Fatal("Failed to initialize provider adapters", zap.Error(err))
	}

	pool := db.Pool()
	intentRepo := postgres.NewIntentRepository(pool)
	eventRepo := postgres.NewEventRepository(pool)
	outboxRepo := postgres.NewOutboxRepository(pool)
	ledgerRepo := postgres.NewLedgerRepository(pool)
	refundRepo := postgres.NewRefundRepository(pool)
	payoutRepo := postgres.NewPayoutRepository(pool)
	storeRepo := postgres.NewStoreRepository(pool)
	reconciliationRepo := postgres.NewReconciliationRepository(pool)

	ordersAPIKey, err := secretManager.GetSecret(ctx, cfg.Orders.APIKeySecret)
	if err != nil {
		zapLog.Fatal("Failed to fetch orders API key", zap.Error(err))
	}
	orderResolver := orders.NewHTTPResolver(cfg.Orders.BaseURL, ordersAPIKey, cfg.Orders.RequestTimeout, logger)

	ledgerSvc := ledgerService.NewService(ledgerRepo, logger)
	intentSvc := intentService.NewService(
		db, intentRepo, eventRepo, outboxRepo, storeRepo, orderResolver,
		ledgerSvc, router, clock, logger, cfg.Resilience.LockRetries,
	)
	refundSvc := refundService.NewService(
		db, refundRepo, storeRepo, outboxRepo, intentSvc, ledgerSvc, router, clock, logger,
	)
	payoutSvc := payoutService.NewService(
		db, payoutRepo, storeRepo, outboxRepo, ledgerSvc, clock, logger, cfg.Payout.DailyLimit,
	)
	webhookSvc := webhookService.NewService(router, intentSvc, logger)

	signingSecret, err := secretManager.GetSecret(ctx, cfg.Publisher.SigningSecretName)
	if err != nil {
		zapLog.Fatal("Failed to fetch publisher signing secret", zap.Error(err))
	}
	eventSink := publisher.NewHTTPPublisher(cfg.Publisher.Endpoint, signingSecret, cfg.Publisher.Timeout, logger)
	outboxPublisher := outboxService.NewPublisher(
		outboxRepo, eventSink, clock, logger, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize,
	)
	reconciliationSvc := reconciliationService.NewService(
		ledgerSvc, reconciliationRepo, clock, logger, cfg.Reconciliation.Interval,
	)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	go outboxPublisher.Run(workerCtx)
	go reconciliationSvc.Run(workerCtx)

	if !cfg.Logger.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins: cfg.Server.CORSOrigins,
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Signature"},
		MaxAge:       12 * time.Hour,
	}))
	handlers.RegisterRoutes(engine, handlers.Services{
		Intents:  handlers.NewIntentHandler(intentSvc, logger),
		Refunds:  handlers.NewRefundHandler(refundSvc, logger),
		Payouts:  handlers.NewPayoutHandler(payoutSvc, logger),
		Webhooks: handlers.NewWebhookHandler(webhookSvc, logger),
		DB:       db,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	metricsServer := observability.NewMetricsServer(cfg.Server.MetricsPort, db, zapLog)
	go metricsServer.Start()

	// LIFO order: workers and servers stop before the pool closes.
	manager := shutdown.NewManager(zapLog, 30*time.Second)
	manager.RegisterNoErr("database", db.Close)
	manager.Register("metrics_server", metricsServer.Shutdown)
	manager.RegisterHTTPServer("http_server", httpServer)
	manager.RegisterNoErr("workers", stopWorkers)
	manager.WaitForShutdown()
}

// registerProviders builds one rate-limited client per PSP and registers its
// adapter on the router. Credentials come from the secret manager, never
// from the environment.
func registerProviders(
	ctx context.Context,
	router *routing.Router,
	cfg config.ProvidersConfig,
	secretManager ports.SecretManager,
	clock ports.Clock,
	logger ports.Logger,
) error {
	build := func(name string, pc config.ProviderConfig) (*providers.Client, string, error) {
		apiKey, err := secretManager.GetSecret(ctx, pc.APIKeySecret)
		if err != nil {
			return nil, "", fmt.Errorf("fetch %s api key: %w", name, err)
		}
		webhookSecret, err := secretManager.GetSecret(ctx, pc.WebhookSecretName)
		if err != nil {
			return nil, "", fmt.Errorf("fetch %s webhook secret: %w", name, err)
		}
		client := providers.NewClient(providers.ClientConfig{
			BaseURL: pc.BaseURL,
			APIKey:  apiKey,
			Timeout: pc.RequestTimeout,
		}, logger)
		return client, webhookSecret, nil
	}

	cardnetClient, cardnetSecret, err := build("cardnet", cfg.Cardnet)
	if err != nil {
		return err
	}
	router.Register(providers.NewCardnetAdapter(cardnetClient, cardnetSecret, clock))

	bankpayClient, bankpaySecret, err := build("bankpay", cfg.Bankpay)
	if err != nil {
		return err
	}
	router.Register(providers.NewBankpayAdapter(bankpayClient, bankpaySecret, 0, clock))

	walletioClient, walletioSecret, err := build("walletio", cfg.Walletio)
	if err != nil {
		return err
	}
	router.Register(providers.NewWalletioAdapter(walletioClient, walletioSecret, clock))

	return nil
}
