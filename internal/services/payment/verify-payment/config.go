// internal/services/payment/verify-payment/config.go
package verifypayment

import (
	"time"

	"driving-school-api/internal/common/config"
)

type Config struct {
	ProviderTimeout time.Duration
	StoreTimeout    time.Duration
	CacheTTL        time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		ProviderTimeout: config.GetDuration(cfg.Payments.ProviderTimeoutMs),
		StoreTimeout:    10 * time.Second,
		CacheTTL:        config.GetDuration(cfg.Database.Redis.VerifyCacheTTLMs),
	}
}
