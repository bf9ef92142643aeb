// internal/services/payment/initialize-payment/handler.go
package initializepayment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "driving-school-api/internal/common/errors"
	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/common/metrics"
	"driving-school-api/internal/models"
	"driving-school-api/internal/payments/events"
	"driving-school-api/internal/payments/providers"
	"driving-school-api/internal/payments/reference"
)

const Operation = "initialize-payment"

type Store interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
	UpdateByID(ctx context.Context, id string, patch models.Patch) (*models.Registration, error)
}

type Adapters interface {
	For(method models.PaymentMethod) (providers.Adapter, error)
}

type Handler struct {
	config   *Config
	store    Store
	adapters Adapters
	refs     reference.Generator
	recorder events.Recorder
	logger   logger.Logger
}

func NewHandler(config *Config, store Store, adapters Adapters, refs reference.Generator, recorder events.Recorder, log logger.Logger) *Handler {
	if refs == nil {
		refs = reference.Default
	}
	if recorder == nil {
		recorder = events.Nop{}
	}
	return &Handler{
		config:   config,
		store:    store,
		adapters: adapters,
		refs:     refs,
		recorder: recorder,
		logger:   log.WithFields(map[string]interface{}{"operation": Operation}),
	}
}

// Execute asks the provider to start a payment and only then records the
// reference on the registration, so a failed initiation leaves the record
// untouched. The provider call and the update run to completion even if ctx
// is cancelled.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	method, ok := models.ParsePaymentMethod(input.Method)
	if !ok {
		return nil, apperrors.NewInvalidMethodError(input.Method)
	}
	if input.Amount <= 0 {
		return nil, apperrors.NewValidationError("amount must be positive",
			apperrors.FieldError{Field: "amount", Message: "must be greater than 0", Code: "gt"})
	}
	if strings.TrimSpace(input.ApplicationID) == "" {
		return nil, apperrors.NewValidationError("applicationId is required",
			apperrors.FieldError{Field: "applicationId", Message: "is required", Code: "required"})
	}

	adapter, err := h.adapters.For(method)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidMethod) {
			return nil, err
		}
		h.logger.Error("payment provider unavailable", map[string]interface{}{
			"method": string(method),
			"error":  err.Error(),
		})
		return nil, apperrors.NewPaymentInitiationError(string(method), err)
	}

	detached := context.WithoutCancel(ctx)

	reg, err := h.load(detached, input.ApplicationID)
	if err != nil {
		return nil, err
	}
	if reg.PaymentStatus.IsTerminal() {
		return nil, apperrors.NewAlreadySettledError(reg.ID, string(reg.PaymentStatus))
	}

	ref, err := h.refs.New()
	if err != nil {
		return nil, apperrors.NewPaymentInitiationError(adapter.Name(), fmt.Errorf("generate reference: %w", err))
	}

	log := h.logger.WithFields(map[string]interface{}{
		"applicationId": reg.ID,
		"reference":     ref,
		"method":        string(method),
	})

	phone := strings.TrimSpace(input.PhoneNumber)
	if phone == "" {
		phone = reg.Phone
	}

	handle, err := h.initiate(detached, adapter, providers.Request{
		Reference:   ref,
		Amount:      input.Amount,
		Currency:    h.config.Currency,
		PhoneNumber: phone,
		Email:       reg.Email,
		CallbackURL: h.config.CallbackURL,
		ReturnURL:   h.config.ReturnURL,
	})
	if err != nil {
		metrics.PaymentsInitiated.WithLabelValues(string(method), "failed").Inc()
		log.Error("payment initiation failed", map[string]interface{}{"error": err.Error()})
		return nil, apperrors.NewPaymentInitiationError(adapter.Name(), err)
	}

	status := models.StatusPending
	amount := input.Amount
	updated, err := h.persist(detached, reg.ID, models.Patch{
		PaymentReference: &ref,
		PaymentMethod:    &method,
		PaymentStatus:    &status,
		Amount:           &amount,
		StatusIn:         []models.PaymentStatus{models.StatusUnset, models.StatusPending},
	})
	if err != nil {
		metrics.PaymentsInitiated.WithLabelValues(string(method), "unpersisted").Inc()
		log.Error("provider accepted payment but the registration was not updated", map[string]interface{}{
			"error":             err.Error(),
			"providerReference": handle.ProviderReference,
		})
		return nil, err
	}

	metrics.PaymentsInitiated.WithLabelValues(string(method), "pending").Inc()
	log.Info("payment initiated", map[string]interface{}{
		"amount":            input.Amount,
		"providerReference": handle.ProviderReference,
	})

	if err := h.recorder.Record(detached, events.Event{
		Reference:     ref,
		ApplicationID: reg.ID,
		Method:        method,
		From:          reg.PaymentStatus,
		To:            models.StatusPending,
		Amount:        input.Amount,
		Source:        events.SourceInitiation,
		OccurredAt:    updated.UpdatedAt,
	}); err != nil {
		log.Warn("failed to record payment event", map[string]interface{}{"error": err.Error()})
	}

	return &Output{
		Reference:         ref,
		Status:            updated.PaymentStatus,
		ProviderReference: handle.ProviderReference,
		PaymentURL:        handle.PaymentURL,
	}, nil
}

func (h *Handler) load(ctx context.Context, id string) (*models.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.StoreTimeout)
	defer cancel()
	return h.store.FindByID(ctx, id)
}

func (h *Handler) initiate(ctx context.Context, adapter providers.Adapter, req providers.Request) (*providers.Handle, error) {
	ctx, cancel := providers.Deadline(ctx, h.config.ProviderTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		metrics.ProviderCallDuration.WithLabelValues(adapter.Name(), "initiate").Observe(time.Since(start).Seconds())
	}()
	return adapter.Initiate(ctx, req)
}

// persist writes the pending state. A guard miss means the record settled
// while the provider call was in flight.
func (h *Handler) persist(ctx context.Context, id string, patch models.Patch) (*models.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.StoreTimeout)
	defer cancel()

	updated, err := h.store.UpdateByID(ctx, id, patch)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	latest, reloadErr := h.store.FindByID(ctx, id)
	if reloadErr != nil {
		return nil, reloadErr
	}
	return nil, apperrors.NewAlreadySettledError(latest.ID, string(latest.PaymentStatus))
}
