// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	commonaws "driving-school-api/internal/common/aws"
	"driving-school-api/internal/common/camunda"
	"driving-school-api/internal/common/config"
	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/common/observability"

	spr "driving-school-api/internal/workers/payment/send-payment-receipt"
)

const healthAddr = ":8080"

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
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}
	if cfg.Camunda.BrokerAddress == "" {
		zapLog.Fatal("camunda.broker_address is required to run workers")
	}

	obs, err := observability.New("worker-manager")
	if err != nil {
		zapLog.Warn("otel metrics exporter unavailable", zap.Error(err))
	}
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zc *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zc, err = camunda.NewClient(cfg.Camunda.BrokerAddress, config.GetDuration(cfg.Camunda.RequestTimeout))
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init AWS clients ---
	var (
		sesClient commonaws.SESService
		snsClient commonaws.SNSService
	)
	if cfg.Integrations.AWS.SES.Enabled {
		c, err := commonaws.NewSESClient(ctx, cfg.Integrations.AWS)
		if err != nil {
			zapLog.Fatal("failed to create SES client", zap.Error(err))
		}
		sesClient = c
	}
	if cfg.Integrations.AWS.SNS.Enabled {
		c, err := commonaws.NewSNSClient(ctx, cfg.Integrations.AWS)
		if err != nil {
			zapLog.Fatal("failed to create SNS client", zap.Error(err))
		}
		snsClient = c
	}

	// --- Register workers ---
	var workers []*camunda.CamundaWorker

	if wcfg := config.GetWorkerConfig(cfg, spr.TaskType); wcfg.Enabled {
		handler := spr.NewHandler(spr.LoadConfig(cfg), sesClient, snsClient, log)
		workers = append(workers, camunda.NewWorker(
			zc.GetClient(),
			spr.TaskType,
			wcfg.MaxJobsActive,
			config.GetDuration(wcfg.Timeout),
			jobRecorder{handler: handler, obs: obs, taskType: spr.TaskType},
			zapLog,
		))
	} else {
		zapLog.Info("worker disabled", zap.String("taskType", spr.TaskType))
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			writeStatus(w, http.StatusOK, "healthy")
		})
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			if err := zc.HealthCheck(r.Context()); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "not_ready")
				return
			}
			writeStatus(w, http.StatusOK, "ready")
		})
		mux.Handle("/metrics", promhttp.Handler())
		zapLog.Info("Health/Metrics server listening on " + healthAddr)
		if err := http.ListenAndServe(healthAddr, mux); err != nil {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop(shutdownCtx)
	}

	if err := zc.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

// jobRecorder counts handled jobs on the otel meter.
type jobRecorder struct {
	handler  camunda.JobHandler
	obs      *observability.Observability
	taskType string
}

func (j jobRecorder) Handle(client worker.JobClient, job entities.Job) error {
	err := j.handler.Handle(client, job)
	status := "handled"
	if err != nil {
		status = "error"
	}
	j.obs.RecordJobProcessed(context.Background(), j.taskType, status)
	return err
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
