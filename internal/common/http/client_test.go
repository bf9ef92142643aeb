package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoJSON_RoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, float64(10000), in["amount"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"providerReference":"MTN-42"}`))
	}))
	defer server.Close()

	var out struct {
		ProviderReference string `json:"providerReference"`
	}
	err := NewClient(time.Second).DoJSON(context.Background(), http.MethodPost, server.URL,
		map[string]string{"Authorization": "Bearer key"},
		map[string]interface{}{"amount": 10000}, &out)

	require.NoError(t, err)
	assert.Equal(t, "MTN-42", out.ProviderReference)
}

func TestDoJSON_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"message":"maintenance"}`))
	}))
	defer server.Close()

	err := NewClient(time.Second).DoJSON(context.Background(), http.MethodGet, server.URL, nil, nil, nil)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "maintenance")
}

func TestDoJSON_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	err := NewClient(50*time.Millisecond).DoJSON(context.Background(), http.MethodGet, server.URL, nil, nil, nil)

	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestDoJSON_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer server.Close()

	var out map[string]interface{}
	err := NewClient(time.Second).DoJSON(context.Background(), http.MethodGet, server.URL, nil, nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode response")
}
