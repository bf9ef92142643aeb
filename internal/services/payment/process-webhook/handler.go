// internal/services/payment/process-webhook/handler.go
package processwebhook

import (
	"context"
	"encoding/json"
	"errors"

	apperrors "driving-school-api/internal/common/errors"
	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/common/metrics"
	"driving-school-api/internal/common/validation"
	"driving-school-api/internal/models"
	"driving-school-api/internal/payments/events"
	"driving-school-api/internal/payments/reconciler"
)

const Operation = "process-webhook"

type Verifier interface {
	Verify(body []byte, signature string) error
}

type Reconciler interface {
	Apply(ctx context.Context, o reconciler.Outcome) (*reconciler.Result, error)
}

type Handler struct {
	config     *Config
	verifier   Verifier
	schema     *validation.Schema
	reconciler Reconciler
	logger     logger.Logger
}

func NewHandler(config *Config, verifier Verifier, rec Reconciler, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		verifier:   verifier,
		schema:     validation.WebhookSchema(),
		reconciler: rec,
		logger:     log.WithFields(map[string]interface{}{"operation": Operation}),
	}
}

// Execute authenticates the callback over its raw bytes, then applies it.
// Nothing is parsed before the signature checks out.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := h.verifier.Verify(input.Body, input.Signature); err != nil {
		metrics.WebhooksReceived.WithLabelValues("rejected").Inc()
		h.logger.Warn("webhook signature rejected", map[string]interface{}{
			"error": err.Error(),
			"bytes": len(input.Body),
		})
		return nil, err
	}

	if result := h.schema.Validate(input.Body); !result.Valid {
		metrics.WebhooksReceived.WithLabelValues("invalid").Inc()
		return nil, result.AsError("invalid webhook payload")
	}

	var payload Payload
	if err := json.Unmarshal(input.Body, &payload); err != nil {
		metrics.WebhooksReceived.WithLabelValues("invalid").Inc()
		return nil, apperrors.NewValidationError("decode webhook payload: " + err.Error())
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.config.Timeout)
	defer cancel()

	res, err := h.reconciler.Apply(ctx, reconciler.Outcome{
		Reference:     payload.Reference,
		Status:        models.PaymentStatus(payload.Status),
		TransactionID: payload.TransactionID,
		Source:        events.SourceWebhook,
	})
	if err != nil {
		label := "failed"
		if errors.Is(err, apperrors.ErrNotFound) {
			label = "unknown_reference"
		}
		metrics.WebhooksReceived.WithLabelValues(label).Inc()
		h.logger.Warn("webhook not applied", map[string]interface{}{
			"reference": payload.Reference,
			"error":     err.Error(),
		})
		return nil, err
	}

	label := "noop"
	switch {
	case res.Applied:
		label = "applied"
	case res.Ignored:
		label = "ignored"
	}
	metrics.WebhooksReceived.WithLabelValues(label).Inc()

	return &Output{
		Reference: payload.Reference,
		Status:    res.Registration.PaymentStatus,
		Applied:   res.Applied,
	}, nil
}
