package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	method string
	path   string
	body   map[string]interface{}
}

func newESServer(t *testing.T, status int, got *captured) *elasticsearch.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got.body)

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestRecord_IndexesEventByReferenceAndStatus(t *testing.T) {
	var got captured
	rec := NewElasticsearchRecorder(newESServer(t, http.StatusCreated, &got), "payment-events", logger.NewTestLogger(t))

	err := rec.Record(context.Background(), Event{
		Reference:     "PAY-1-0123456789abcdef",
		ApplicationID: "app-1",
		Method:        models.MethodMTN,
		From:          models.StatusPending,
		To:            models.StatusSuccess,
		TransactionID: "TX123",
		Source:        SourceWebhook,
	})

	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/payment-events/_doc/PAY-1-0123456789abcdef:success", got.path)
	assert.Equal(t, "success", got.body["to"])
	assert.Equal(t, "pending", got.body["from"])
	assert.Equal(t, "webhook", got.body["source"])
	assert.NotEmpty(t, got.body["occurredAt"])
}

func TestRecord_ClusterErrorIsReturned(t *testing.T) {
	var got captured
	rec := NewElasticsearchRecorder(newESServer(t, http.StatusBadRequest, &got), "payment-events", logger.NewTestLogger(t))

	err := rec.Record(context.Background(), Event{Reference: "PAY-1-x", To: models.StatusFailed})
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Record(context.Background(), Event{}))
}
