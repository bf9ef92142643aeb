// internal/common/config/config.go
package config

import (
	"fmt"
	"strings"
)

type Config struct {
	App          AppConfig               `mapstructure:"app"`
	Database     DatabaseConfig          `mapstructure:"database"`
	Payments     PaymentsConfig          `mapstructure:"payments"`
	Camunda      CamundaConfig           `mapstructure:"camunda"`
	Workers      map[string]WorkerConfig `mapstructure:"workers"`
	Integrations IntegrationsConfig      `mapstructure:"integrations"`
	Logging      LoggingConfig           `mapstructure:"logging"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	Port        int    `mapstructure:"port"`
	// PublicURL is the externally reachable base URL; provider callbacks
	// are sent to PublicURL + "/payment-webhook".
	PublicURL   string `mapstructure:"public_url"`
	FrontendURL string `mapstructure:"frontend_url"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	URL            string `mapstructure:"url"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
}

type RedisConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Address          string `mapstructure:"address"`
	Password         string `mapstructure:"password"`
	DB               int    `mapstructure:"db"`
	VerifyCacheTTLMs int    `mapstructure:"verify_cache_ttl_ms"`
}

type ElasticsearchConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Addresses   []string `mapstructure:"addresses"`
	URL         string   `mapstructure:"url"`
	Username    string   `mapstructure:"username"`
	Password    string   `mapstructure:"password"`
	EventsIndex string   `mapstructure:"events_index"`
}

type PaymentsConfig struct {
	WebhookSecret     string          `mapstructure:"webhook_secret"`
	Currency          string          `mapstructure:"currency"`
	ProviderTimeoutMs int             `mapstructure:"provider_timeout_ms"`
	Providers         ProvidersConfig `mapstructure:"providers"`
}

type ProvidersConfig struct {
	MTN      ProviderConfig `mapstructure:"mtn"`
	Telecel  ProviderConfig `mapstructure:"telecel"`
	Airtel   ProviderConfig `mapstructure:"airtel"`
	Bank     ProviderConfig `mapstructure:"bank"`
	Paystack ProviderConfig `mapstructure:"paystack"`
}

type ProviderConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	MerchantID string `mapstructure:"merchant_id"`
}

// Configured reports whether the provider can be called at all.
func (p ProviderConfig) Configured() bool {
	return p.BaseURL != ""
}

type CamundaConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	BrokerAddress     string `mapstructure:"broker_address"`
	SettlementMessage string `mapstructure:"settlement_message"`
	MessageTTLMs      int    `mapstructure:"message_ttl_ms"`
	RequestTimeout    int    `mapstructure:"request_timeout"`
}

type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`
}

type IntegrationsConfig struct {
	AWS AWSConfig `mapstructure:"aws"`
}

type AWSConfig struct {
	Region string    `mapstructure:"region"`
	SES    SESConfig `mapstructure:"ses"`
	SNS    SNSConfig `mapstructure:"sns"`
}

type SESConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	FromEmail string `mapstructure:"from_email"`
}

type SNSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SenderID string `mapstructure:"sender_id"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// GetDSN returns the URL when one is configured, otherwise a key/value DSN.
func (p PostgresConfig) GetDSN() string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// WebhookURL is the callback URL handed to every provider.
func (a AppConfig) WebhookURL() string {
	return strings.TrimRight(a.PublicURL, "/") + "/payment-webhook"
}
