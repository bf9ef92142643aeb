// internal/services/payment/process-webhook/config.go
package processwebhook

import "time"

type Config struct {
	// MaxBodyBytes caps what the transport reads before verification.
	MaxBodyBytes int64
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxBodyBytes: 64 << 10,
		Timeout:      15 * time.Second,
	}
}
