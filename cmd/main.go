package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mstgnz/storepay/catalog"
	"github.com/mstgnz/storepay/handler"
	"github.com/mstgnz/storepay/infra/auth"
	"github.com/mstgnz/storepay/infra/broker"
	"github.com/mstgnz/storepay/infra/config"
	"github.com/mstgnz/storepay/infra/conn"
	"github.com/mstgnz/storepay/infra/logger"
	"github.com/mstgnz/storepay/infra/metrics"
	"github.com/mstgnz/storepay/infra/middle"
	"github.com/mstgnz/storepay/infra/opensearch"
	"github.com/mstgnz/storepay/ledger"
	"github.com/mstgnz/storepay/payment"
	"github.com/mstgnz/storepay/provider"
	"github.com/mstgnz/storepay/provider/coinpayments"
	"github.com/mstgnz/storepay/provider/robokassa"
	"github.com/mstgnz/storepay/router"
	v1 "github.com/mstgnz/storepay/router/v1"
)

const version = "1.0.0"

func init() {
	// .env is optional; the environment wins when both are present
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Load Env Error: %v", err)
	}
	_ = config.App()
}

func main() {
	cfg := config.GetAppConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// OpenSearch is optional; without it logs go to the console only
	var (
		sink     logger.Sink
		audit    payment.AuditSink
		searcher handler.AuditSearcher
	)
	if cfg.EnableLogging {
		osClient, err := opensearch.NewClient(ctx, opensearch.Options{
			URL:      cfg.OpenSearchURL,
			Username: cfg.OpenSearchUser,
			Password: cfg.OpenSearchPass,
			Enabled:  true,
		})
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without OpenSearch logging...")
		} else {
			osLogger := opensearch.NewLogger(osClient)
			sink, audit, searcher = osLogger, osLogger, osLogger
		}
	}
	logger.InitGlobalLogger(sink, cfg.Environment, logger.LogLevel(cfg.LoggingLevel))
	defer logger.Sync()

	if err := run(ctx, cfg, sink != nil, audit, searcher); err != nil {
		logger.Fatal("Server stopped with error", err)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, openSearchEnabled bool, audit payment.AuditSink, searcher handler.AuditSearcher) error {
	if cfg.DBDriver == conn.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.DBDSN), 0o755); err != nil {
			return fmt.Errorf("create data directory: %w", err)
		}
	}
	db, err := conn.Open(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		return err
	}

	registry := provider.NewRegistry(
		robokassa.New(robokassa.Options{TestMode: cfg.RobokassaTestMode}),
		coinpayments.New(coinpayments.Options{
			APIURL:  cfg.CoinPaymentsAPIURL,
			IPNURL:  cfg.CoinPaymentsIPNURL,
			Timeout: cfg.ProviderTimeout,
		}),
	)

	products := catalog.NewStore(db)
	orders := ledger.NewStore(db)
	configs := config.NewPaymentConfigStore(db, registry, cfg.ConfigCacheSize, cfg.ConfigCacheTTL)
	m := metrics.New()

	var notifier payment.Notifier = payment.LogNotifier{}
	if cfg.RabbitURL != "" {
		publisher, err := broker.Dial(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			return err
		}
		defer publisher.Close()
		notifier = publisher
		logger.Info("Order paid events are published to " + cfg.RabbitExchange)
	}

	intents := payment.NewIntentService(products, orders, configs, registry, m)
	recon := payment.NewReconciler(orders, configs, registry, notifier, audit, m)

	jwtService := auth.NewJWTService(config.App().SecretKey, cfg.TokenTTL)
	admins := auth.NewAdminService(db, jwtService, products)

	validate := config.App().Validator
	handlers := router.Handlers{
		Handlers: v1.Handlers{
			Payment: handler.NewPaymentHandler(intents, recon, validate),
			Config:  handler.NewConfigHandler(configs, registry, validate),
			Order:   handler.NewOrderHandler(orders, products),
			Product: handler.NewProductHandler(products, validate),
			Audit:   handler.NewAuditHandler(searcher),
		},
		Auth:   handler.NewAuthHandler(admins, validate),
		Health: handler.NewHealthHandler(db, registry, openSearchEnabled, version),
	}

	limiter := middle.NewRateLimiter(cfg.RateLimitPerMinute)
	go limiter.RunCleanup(ctx)

	if cfg.SweepInterval > 0 {
		go orders.RunSweeper(ctx, cfg.SweepInterval, cfg.SweepAge, ledger.ParseSweepPolicy(cfg.SweepPolicy))
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%s", cfg.Port),
		Handler: router.New(handlers, router.Options{
			Tokens:              jwtService,
			RateLimiter:         limiter,
			Metrics:             m,
			CallbackConcurrency: cfg.CallbackConcurrency,
		}),
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Info("API is running on " + cfg.Port)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
