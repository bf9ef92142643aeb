// Package events keeps an append-only audit trail of payment status changes
// in Elasticsearch.
package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// Source says which path moved the payment.
type Source string

const (
	SourceInitiation Source = "initiation"
	SourceWebhook    Source = "webhook"
	SourceVerify     Source = "verify"
)

type Event struct {
	Reference     string               `json:"reference"`
	ApplicationID string               `json:"applicationId"`
	Method        models.PaymentMethod `json:"method,omitempty"`
	From          models.PaymentStatus `json:"from"`
	To            models.PaymentStatus `json:"to"`
	TransactionID string               `json:"transactionId,omitempty"`
	Amount        int64                `json:"amount,omitempty"`
	Source        Source               `json:"source"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// DocumentID makes indexing the same transition twice an overwrite.
func (e Event) DocumentID() string {
	return e.Reference + ":" + string(e.To)
}

type Recorder interface {
	Record(ctx context.Context, event Event) error
}

type ElasticsearchRecorder struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewElasticsearchRecorder(client *elasticsearch.Client, index string, log logger.Logger) *ElasticsearchRecorder {
	return &ElasticsearchRecorder{
		client: client,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "payment-events"}),
	}
}

func (r *ElasticsearchRecorder) Record(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode payment event: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      r.index,
		DocumentID: event.DocumentID(),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, r.client)
	if err != nil {
		return fmt.Errorf("index payment event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("index payment event: %s: %s", res.Status(), msg)
	}

	r.logger.Debug("payment event recorded", map[string]interface{}{
		"reference": event.Reference,
		"to":        string(event.To),
		"source":    string(event.Source),
	})
	return nil
}

// Nop discards events. Used when Elasticsearch is disabled.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }
