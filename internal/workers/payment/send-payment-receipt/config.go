// internal/workers/payment/send-payment-receipt/config.go
package sendpaymentreceipt

import (
	"time"

	"driving-school-api/internal/common/config"
)

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	SenderID     string
	SchoolName   string
	Currency     string
	Timeout      time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	wcfg := config.GetWorkerConfig(cfg, TaskType)
	return &Config{
		EmailEnabled: cfg.Integrations.AWS.SES.Enabled,
		SMSEnabled:   cfg.Integrations.AWS.SNS.Enabled,
		FromEmail:    cfg.Integrations.AWS.SES.FromEmail,
		SenderID:     cfg.Integrations.AWS.SNS.SenderID,
		SchoolName:   cfg.App.Name,
		Currency:     cfg.Payments.Currency,
		Timeout:      config.GetDuration(wcfg.Timeout),
	}
}
