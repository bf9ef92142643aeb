// cmd/registration-api/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"driving-school-api/internal/api"
	commonaws "driving-school-api/internal/common/aws"
	"driving-school-api/internal/common/camunda"
	"driving-school-api/internal/common/config"
	"driving-school-api/internal/common/database"
	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/common/observability"
	"driving-school-api/internal/models"
	"driving-school-api/internal/payments/events"
	"driving-school-api/internal/payments/providers"
	"driving-school-api/internal/payments/reconciler"
	"driving-school-api/internal/payments/reference"
	"driving-school-api/internal/payments/signature"
	"driving-school-api/internal/store"

	initializepayment "driving-school-api/internal/services/payment/initialize-payment"
	processwebhook "driving-school-api/internal/services/payment/process-webhook"
	verifypayment "driving-school-api/internal/services/payment/verify-payment"
	createregistration "driving-school-api/internal/services/registration/create-registration"
	sendpaymentreceipt "driving-school-api/internal/workers/payment/send-payment-receipt"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("info", "console")
		boot.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting registration API...",
		zap.String("environment", cfg.App.Environment),
		zap.Int("port", cfg.App.Port),
	)

	obs, err := observability.New(cfg.App.Name)
	if err != nil {
		zapLog.Warn("otel metrics exporter unavailable", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()
	checks := map[string]api.Check{}

	// --- PostgreSQL ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	checks["postgres"] = pg.Ping
	zapLog.Info("PostgreSQL connected successfully")

	// --- Redis (verify cache) ---
	var verifyCache *redis.Client
	if cfg.Database.Redis.Enabled {
		var rc *database.RedisClient
		err = retryWithBackoff(func() error {
			var err error
			rc, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rc.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rc.Close()
		verifyCache = rc.Client
		checks["redis"] = rc.Ping
		zapLog.Info("Redis connected successfully")
	}

	// --- Elasticsearch (payment events) ---
	var recorder events.Recorder = events.Nop{}
	if cfg.Database.Elasticsearch.Enabled {
		var es *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			es, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return es.Ping(ctx)
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		recorder = events.NewElasticsearchRecorder(es.Client, cfg.Database.Elasticsearch.EventsIndex, log)
		checks["elasticsearch"] = es.Ping
		zapLog.Info("Elasticsearch connected successfully")
	}

	// --- Settlement notifications ---
	var notifier reconciler.Notifier
	if cfg.Camunda.Enabled {
		var zc *camunda.Client
		err = retryWithBackoff(func() error {
			var err error
			zc, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
			return err
		}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zc.Close()
		notifier = camunda.NewSettlementPublisher(zc, cfg.Camunda.SettlementMessage, config.GetDuration(cfg.Camunda.MessageTTLMs))
		checks["zeebe"] = zc.HealthCheck
		zapLog.Info("Zeebe client connected successfully")
	} else if receipts := newReceiptHandler(ctx, cfg, log, zapLog); receipts != nil {
		notifier = receipts
		zapLog.Info("Payment receipts sent directly, camunda disabled")
	}

	// --- Payments ---
	adapters := providers.NewSet(cfg.Payments)
	for _, method := range models.PaymentMethods {
		if _, err := adapters.For(method); err != nil {
			zapLog.Warn("payment provider not configured", zap.String("method", string(method)))
		}
	}

	registrations := store.NewPostgresStore(pg.DB, log)
	rec := reconciler.New(registrations, recorder, notifier, log)
	verifier := signature.NewVerifier(cfg.Payments.WebhookSecret)
	webhookConfig := processwebhook.LoadConfig()

	services := api.Services{
		Registrations: createregistration.NewHandler(createregistration.LoadConfig(), registrations, log),
		Applications:  registrations,
		Payments: initializepayment.NewHandler(
			initializepayment.LoadConfig(cfg),
			registrations, adapters, reference.Default, recorder, log,
		),
		Webhooks: processwebhook.NewHandler(webhookConfig, verifier, rec, log),
		Verifications: verifypayment.NewHandler(
			verifypayment.LoadConfig(cfg),
			registrations, adapters, rec, verifyCache, log,
		),
	}

	if cfg.App.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(services, api.Options{
		FrontendURL:     cfg.App.FrontendURL,
		WebhookMaxBytes: webhookConfig.MaxBodyBytes,
		Checks:          checks,
		Observability:   obs,
	}, log)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLog.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining requests...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error shutting down HTTP server", zap.Error(err))
	}

	zapLog.Info("Registration API stopped gracefully")
}

// newReceiptHandler returns nil when neither receipt channel is enabled.
func newReceiptHandler(ctx context.Context, cfg *config.Config, log logger.Logger, zapLog *zap.Logger) *sendpaymentreceipt.Handler {
	var (
		sesClient commonaws.SESService
		snsClient commonaws.SNSService
	)
	if cfg.Integrations.AWS.SES.Enabled {
		c, err := commonaws.NewSESClient(ctx, cfg.Integrations.AWS)
		if err != nil {
			zapLog.Error("SES client unavailable, email receipts disabled", zap.Error(err))
		} else {
			sesClient = c
		}
	}
	if cfg.Integrations.AWS.SNS.Enabled {
		c, err := commonaws.NewSNSClient(ctx, cfg.Integrations.AWS)
		if err != nil {
			zapLog.Error("SNS client unavailable, SMS receipts disabled", zap.Error(err))
		} else {
			snsClient = c
		}
	}
	if sesClient == nil && snsClient == nil {
		return nil
	}

	rcfg := sendpaymentreceipt.LoadConfig(cfg)
	rcfg.EmailEnabled = sesClient != nil
	rcfg.SMSEnabled = snsClient != nil
	return sendpaymentreceipt.NewHandler(rcfg, sesClient, snsClient, log)
}
