// internal/services/payment/verify-payment/handler.go
package verifypayment

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	apperrors "driving-school-api/internal/common/errors"
	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/common/metrics"
	"driving-school-api/internal/models"
	"driving-school-api/internal/payments/events"
	"driving-school-api/internal/payments/providers"
	"driving-school-api/internal/payments/reconciler"
	"driving-school-api/internal/payments/reference"

	"github.com/redis/go-redis/v9"
)

const (
	Operation      = "verify-payment"
	cacheKeyPrefix = "verify:"
)

type Store interface {
	FindByReference(ctx context.Context, reference string) (*models.Registration, error)
}

type Adapters interface {
	For(method models.PaymentMethod) (providers.Adapter, error)
	Gateway() (providers.Adapter, error)
}

type Reconciler interface {
	Apply(ctx context.Context, o reconciler.Outcome) (*reconciler.Result, error)
}

type Handler struct {
	config     *Config
	store      Store
	adapters   Adapters
	reconciler Reconciler
	redis      *redis.Client
	logger     logger.Logger
}

// NewHandler builds the handler. redis may be nil, which disables caching.
func NewHandler(config *Config, store Store, adapters Adapters, rec Reconciler, redis *redis.Client, log logger.Logger) *Handler {
	return &Handler{
		config:     config,
		store:      store,
		adapters:   adapters,
		reconciler: rec,
		redis:      redis,
		logger:     log.WithFields(map[string]interface{}{"operation": Operation}),
	}
}

// Execute asks the provider for the current status of a reference and, when
// the reference belongs to a stored registration, applies it the same way a
// webhook would.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ref := strings.TrimSpace(input.Reference)
	if ref == "" || len(ref) > 64 {
		return nil, apperrors.NewValidationError("reference is required",
			apperrors.FieldError{Field: "reference", Message: "is required", Code: "required"})
	}

	if cached, ok := h.cached(ctx, ref); ok {
		return cached, nil
	}

	ctx = context.WithoutCancel(ctx)

	reg, err := h.lookup(ctx, ref)
	if err != nil {
		return nil, err
	}

	adapter, err := h.adapterFor(reg)
	if err != nil {
		if errors.Is(err, providers.ErrNotConfigured) {
			return nil, apperrors.NewPaymentVerificationError("unconfigured", err)
		}
		return nil, err
	}

	verification, err := h.verify(ctx, adapter, ref)
	if err != nil {
		h.logger.Error("payment verification failed", map[string]interface{}{
			"reference": ref,
			"provider":  adapter.Name(),
			"error":     err.Error(),
		})
		return nil, apperrors.NewPaymentVerificationError(adapter.Name(), err)
	}

	output := &Output{
		Reference:     ref,
		Status:        verification.Status,
		TransactionID: verification.TransactionID,
		Provider:      adapter.Name(),
	}

	if reg != nil {
		res, err := h.reconciler.Apply(ctx, reconciler.Outcome{
			Reference:     ref,
			Status:        verification.Status,
			TransactionID: verification.TransactionID,
			Source:        events.SourceVerify,
		})
		if err != nil {
			return nil, err
		}
		// The stored record wins once it is terminal.
		output.Status = res.Registration.PaymentStatus
		if res.Registration.TransactionID != "" {
			output.TransactionID = res.Registration.TransactionID
		}
	} else {
		h.logger.Info("verified reference with no stored registration", map[string]interface{}{
			"reference": ref,
			"status":    string(verification.Status),
		})
	}

	if output.Status.IsTerminal() {
		h.remember(ctx, output)
	}
	return output, nil
}

// lookup returns nil without error for references this service did not
// issue; those are verified against the card gateway and not persisted.
func (h *Handler) lookup(ctx context.Context, ref string) (*models.Registration, error) {
	if !reference.Valid(ref) {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, h.config.StoreTimeout)
	defer cancel()

	reg, err := h.store.FindByReference(ctx, ref)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, nil
	}
	return reg, err
}

func (h *Handler) adapterFor(reg *models.Registration) (providers.Adapter, error) {
	if reg == nil || reg.PaymentMethod == "" {
		return h.adapters.Gateway()
	}
	return h.adapters.For(reg.PaymentMethod)
}

func (h *Handler) verify(ctx context.Context, adapter providers.Adapter, ref string) (*providers.Verification, error) {
	ctx, cancel := providers.Deadline(ctx, h.config.ProviderTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.ProviderCallDuration.WithLabelValues(adapter.Name(), "verify").Observe(time.Since(start).Seconds())
	}()
	return adapter.Verify(ctx, ref)
}

func (h *Handler) cached(ctx context.Context, ref string) (*Output, bool) {
	if h.redis == nil {
		return nil, false
	}
	val, err := h.redis.Get(ctx, cacheKeyPrefix+ref).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			h.logger.Warn("verify cache read failed", map[string]interface{}{"error": err.Error()})
		}
		metrics.VerifyCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	var out Output
	if err := json.Unmarshal([]byte(val), &out); err != nil || !out.Status.IsTerminal() {
		metrics.VerifyCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	}
	metrics.VerifyCacheLookups.WithLabelValues("hit").Inc()
	return &out, true
}

func (h *Handler) remember(ctx context.Context, out *Output) {
	if h.redis == nil || h.config.CacheTTL <= 0 {
		return
	}
	data, _ := json.Marshal(out)
	if err := h.redis.Set(ctx, cacheKeyPrefix+out.Reference, data, h.config.CacheTTL).Err(); err != nil {
		h.logger.Warn("verify cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
