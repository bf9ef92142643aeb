// Package reconciler applies payment outcomes to stored registrations.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "driving-school-api/internal/common/errors"
	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/common/metrics"
	"driving-school-api/internal/models"
	"driving-school-api/internal/payments/events"
)

type Store interface {
	FindByReference(ctx context.Context, reference string) (*models.Registration, error)
	UpdateByReference(ctx context.Context, reference string, patch models.Patch) (*models.Registration, error)
}

// Notifier is told once per payment that reaches a terminal status.
type Notifier interface {
	PaymentSettled(ctx context.Context, r *models.Registration) error
}

// Outcome is a payment status reported by a webhook or a verify call.
type Outcome struct {
	Reference     string
	Status        models.PaymentStatus
	TransactionID string
	Source        events.Source
}

// Result says what Apply did. Applied and Ignored are never both true; both
// false means the outcome matched the stored state already.
type Result struct {
	Registration *models.Registration
	Applied      bool
	Ignored      bool
}

type Reconciler struct {
	store    Store
	recorder events.Recorder
	notifier Notifier
	logger   logger.Logger
}

// New builds a Reconciler. recorder and notifier may be nil.
func New(store Store, recorder events.Recorder, notifier Notifier, log logger.Logger) *Reconciler {
	if recorder == nil {
		recorder = events.Nop{}
	}
	return &Reconciler{
		store:    store,
		recorder: recorder,
		notifier: notifier,
		logger:   log.WithFields(map[string]interface{}{"component": "reconciler"}),
	}
}

// Apply moves the record holding o.Reference along the payment state machine.
// Unknown references fail with NotFound. Duplicates and attempts to leave a
// terminal status succeed without changing anything.
func (r *Reconciler) Apply(ctx context.Context, o Outcome) (*Result, error) {
	if o.Status == models.StatusUnset || !o.Status.Valid() {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("unsupported payment status %q", o.Status),
			apperrors.FieldError{Field: "status", Message: "must be one of success, failed, pending", Code: "enum"},
		)
	}

	current, err := r.store.FindByReference(ctx, o.Reference)
	if err != nil {
		return nil, err
	}

	log := r.logger.WithFields(map[string]interface{}{
		"reference":     o.Reference,
		"applicationId": current.ID,
		"from":          string(current.PaymentStatus),
		"to":            string(o.Status),
		"source":        string(o.Source),
	})

	if current.PaymentStatus == o.Status {
		if o.TransactionID != "" && current.TransactionID != "" && o.TransactionID != current.TransactionID {
			log.Warn("duplicate outcome carries a different transaction id, keeping stored value", map[string]interface{}{
				"storedTransactionId":   current.TransactionID,
				"receivedTransactionId": o.TransactionID,
			})
		}
		log.Debug("outcome already applied", nil)
		return &Result{Registration: current}, nil
	}

	if !models.CanTransition(current.PaymentStatus, o.Status) {
		log.Warn("ignoring invalid payment status transition", nil)
		return &Result{Registration: current, Ignored: true}, nil
	}

	patch := models.Patch{
		PaymentStatus: &o.Status,
		StatusIn:      []models.PaymentStatus{current.PaymentStatus},
	}
	if o.TransactionID != "" {
		patch.TransactionID = &o.TransactionID
	}

	updated, err := r.store.UpdateByReference(ctx, o.Reference, patch)
	if errors.Is(err, apperrors.ErrNotFound) {
		// Another delivery moved the record between our read and write.
		latest, reloadErr := r.store.FindByReference(ctx, o.Reference)
		if reloadErr != nil {
			return nil, reloadErr
		}
		log.Info("lost update race, keeping concurrent result", map[string]interface{}{
			"stored": string(latest.PaymentStatus),
		})
		return &Result{Registration: latest, Ignored: latest.PaymentStatus != o.Status}, nil
	}
	if err != nil {
		return nil, err
	}

	log.Info("payment status updated", map[string]interface{}{"transactionId": updated.TransactionID})

	if o.Status.IsTerminal() {
		r.settled(ctx, current.PaymentStatus, updated, o.Source)
	}
	return &Result{Registration: updated, Applied: true}, nil
}

// settled runs the side effects of a terminal transition. None of them can
// undo the stored status, so failures are logged only.
func (r *Reconciler) settled(ctx context.Context, from models.PaymentStatus, reg *models.Registration, source events.Source) {
	metrics.PaymentsSettled.WithLabelValues(string(reg.PaymentMethod), string(reg.PaymentStatus), string(source)).Inc()

	err := r.recorder.Record(ctx, events.Event{
		Reference:     reg.PaymentReference,
		ApplicationID: reg.ID,
		Method:        reg.PaymentMethod,
		From:          from,
		To:            reg.PaymentStatus,
		TransactionID: reg.TransactionID,
		Amount:        reg.Amount,
		Source:        source,
		OccurredAt:    time.Now().UTC(),
	})
	if err != nil {
		r.logger.Warn("failed to record payment event", map[string]interface{}{
			"reference": reg.PaymentReference,
			"error":     err.Error(),
		})
	}

	if r.notifier == nil {
		return
	}
	if err := r.notifier.PaymentSettled(ctx, reg); err != nil {
		r.logger.Warn("failed to notify payment settlement", map[string]interface{}{
			"reference": reg.PaymentReference,
			"error":     err.Error(),
		})
	}
}
