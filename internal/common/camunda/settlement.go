package camunda

import (
	"context"
	"errors"
	"time"

	"driving-school-api/internal/models"
)

type MessagePublisher interface {
	PublishMessage(ctx context.Context, msg Message) error
}

// SettlementPublisher tells the broker that a payment reached a terminal
// status. The reference is both the correlation key and the message id.
type SettlementPublisher struct {
	publisher   MessagePublisher
	messageName string
	ttl         time.Duration
}

func NewSettlementPublisher(publisher MessagePublisher, messageName string, ttl time.Duration) *SettlementPublisher {
	return &SettlementPublisher{publisher: publisher, messageName: messageName, ttl: ttl}
}

func (p *SettlementPublisher) PaymentSettled(ctx context.Context, r *models.Registration) error {
	err := p.publisher.PublishMessage(ctx, Message{
		Name:           p.messageName,
		CorrelationKey: r.PaymentReference,
		MessageID:      r.PaymentReference,
		TTL:            p.ttl,
		Variables: map[string]interface{}{
			"applicationId":    r.ID,
			"fullName":         r.FullName,
			"email":            r.Email,
			"phone":            r.Phone,
			"course":           string(r.Course),
			"paymentReference": r.PaymentReference,
			"paymentMethod":    string(r.PaymentMethod),
			"paymentStatus":    string(r.PaymentStatus),
			"amount":           r.Amount,
			"transactionId":    r.TransactionID,
		},
	})
	if errors.Is(err, ErrDuplicate) {
		return nil
	}
	return err
}
