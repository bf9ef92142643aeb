// internal/services/payment/initialize-payment/config.go
package initializepayment

import (
	"time"

	"driving-school-api/internal/common/config"
)

type Config struct {
	ProviderTimeout time.Duration
	StoreTimeout    time.Duration
	Currency        string
	// CallbackURL is where providers post status updates.
	CallbackURL string
	// ReturnURL is where redirect-based checkouts send the applicant back.
	ReturnURL string
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		ProviderTimeout: config.GetDuration(cfg.Payments.ProviderTimeoutMs),
		StoreTimeout:    10 * time.Second,
		Currency:        cfg.Payments.Currency,
		CallbackURL:     cfg.App.WebhookURL(),
		ReturnURL:       cfg.App.FrontendURL,
	}
}
