// internal/common/camunda/client.go
package camunda

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

var (
	ErrUnavailable = errors.New("zeebe broker unavailable")
	ErrTimeout     = errors.New("zeebe request timed out")
	ErrDuplicate   = errors.New("zeebe message already published")
	ErrRejected    = errors.New("zeebe rejected request")
)

// Client wraps the Zeebe gRPC client.
type Client struct {
	client zbc.Client
	config *ClientConfig
}

// ClientConfig holds configuration for the Camunda/Zeebe client.
type ClientConfig struct {
	GatewayAddress         string
	UsePlaintextConnection bool
	ConnectionTimeout      time.Duration
	RequestTimeout         time.Duration
}

// Message is a correlated message published to the broker.
type Message struct {
	Name           string
	CorrelationKey string
	// MessageID lets the broker drop duplicates inside the TTL window.
	MessageID string
	TTL       time.Duration
	Variables map[string]interface{}
}

// NewClient creates a client with local-development defaults.
func NewClient(address string, requestTimeout time.Duration) (*Client, error) {
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return NewClientWithConfig(&ClientConfig{
		GatewayAddress:         address,
		UsePlaintextConnection: true,
		ConnectionTimeout:      10 * time.Second,
		RequestTimeout:         requestTimeout,
	})
}

// NewClientWithConfig dials the gateway and checks the topology once.
func NewClientWithConfig(config *ClientConfig) (*Client, error) {
	zeebeClient, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         config.GatewayAddress,
		UsePlaintextConnection: config.UsePlaintextConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Zeebe client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectionTimeout)
	defer cancel()

	if _, err := zeebeClient.NewTopologyCommand().Send(ctx); err != nil {
		zeebeClient.Close()
		return nil, fmt.Errorf("failed to connect to Zeebe broker at %s: %w", config.GatewayAddress, err)
	}

	return &Client{
		client: zeebeClient,
		config: config,
	}, nil
}

// GetClient returns the raw Zeebe client for job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// PublishMessage publishes msg once. There is no retry; the caller decides
// what a failure means.
func (c *Client) PublishMessage(ctx context.Context, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	cmd := c.client.NewPublishMessageCommand().
		MessageName(msg.Name).
		CorrelationKey(msg.CorrelationKey).
		TimeToLive(msg.TTL)
	if msg.MessageID != "" {
		cmd = cmd.MessageId(msg.MessageID)
	}
	if len(msg.Variables) > 0 {
		withVars, err := cmd.VariablesFromMap(msg.Variables)
		if err != nil {
			return fmt.Errorf("encode message variables: %w", err)
		}
		cmd = withVars
	}

	if _, err := cmd.Send(ctx); err != nil {
		return mapZeebeError(err, "publish message "+msg.Name)
	}
	return nil
}

// HealthCheck performs a topology request against the broker.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectionTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return mapZeebeError(err, "topology")
	}
	return nil
}

// mapZeebeError classifies gRPC failures by message, since the client does
// not expose typed errors.
func mapZeebeError(err error, operation string) error {
	lowerMsg := strings.ToLower(err.Error())

	var kind error
	switch {
	case strings.Contains(lowerMsg, "connection refused") ||
		strings.Contains(lowerMsg, "connection reset") ||
		strings.Contains(lowerMsg, "unavailable") ||
		strings.Contains(lowerMsg, "unreachable"):
		kind = ErrUnavailable
	case strings.Contains(lowerMsg, "timeout") ||
		strings.Contains(lowerMsg, "deadline exceeded"):
		kind = ErrTimeout
	case strings.Contains(lowerMsg, "already exists") ||
		strings.Contains(lowerMsg, "already published"):
		kind = ErrDuplicate
	default:
		kind = ErrRejected
	}
	return fmt.Errorf("zeebe operation '%s' failed: %w: %s", operation, kind, err.Error())
}
