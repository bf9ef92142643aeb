// internal/workers/payment/send-payment-receipt/handler.go
package sendpaymentreceipt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	commonaws "driving-school-api/internal/common/aws"
	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/common/metrics"
	"driving-school-api/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-payment-receipt"
)

var (
	ErrInvalidInput  = errors.New("INVALID_INPUT")
	ErrReceiptFailed = errors.New("RECEIPT_SEND_FAILED")
)

var templates = map[models.PaymentStatus]struct{ subject, body, sms string }{
	models.StatusSuccess: {
		subject: "{{school}}: payment received",
		body: "Hello {{name}},\n\n" +
			"We have received your payment of {{amount}} for the {{course}} course.\n" +
			"Reference: {{reference}}\nTransaction: {{transaction}}\n\n" +
			"Thank you for registering with {{school}}.",
		sms: "{{school}}: payment of {{amount}} received. Ref {{reference}}.",
	},
	models.StatusFailed: {
		subject: "{{school}}: payment not completed",
		body: "Hello {{name}},\n\n" +
			"Your payment of {{amount}} for the {{course}} course did not go through.\n" +
			"Reference: {{reference}}\n\n" +
			"This payment is closed and cannot be retried online. " +
			"Please contact {{school}} to complete your registration.",
		sms: "{{school}}: payment {{reference}} failed. Please contact us to complete your registration.",
	},
}

type Handler struct {
	config    *Config
	logger    logger.Logger
	sesClient commonaws.SESService
	snsClient commonaws.SNSService
}

// NewHandler builds the worker. Either client may be nil when its channel
// is disabled.
func NewHandler(config *Config, ses commonaws.SESService, sns commonaws.SNSService, log logger.Logger) *Handler {
	return &Handler{
		config:    config,
		logger:    log.WithFields(map[string]interface{}{"taskType": TaskType}),
		sesClient: ses,
		snsClient: sns,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	input, err := parseInput(job)
	if err != nil {
		return h.failJob(client, job, "PARSE_ERROR", err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.Execute(ctx, input)
	if err != nil {
		code := "UNKNOWN_ERROR"
		if errors.Is(err, ErrInvalidInput) {
			code = ErrInvalidInput.Error()
		}
		metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
		return h.failJob(client, job, code, err.Error())
	}

	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	return h.completeJob(client, job, output)
}

func parseInput(job entities.Job) (*Input, error) {
	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	return &input, nil
}

// Execute sends the receipt on every enabled channel. Channel failures are
// reported in Output, not as an error, so the process can carry on.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	start := time.Now()
	defer func() {
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	tmpl, ok := templates[models.PaymentStatus(input.PaymentStatus)]
	if !ok {
		return nil, fmt.Errorf("%w: no receipt for payment status %q", ErrInvalidInput, input.PaymentStatus)
	}
	if input.PaymentReference == "" {
		return nil, fmt.Errorf("%w: paymentReference is required", ErrInvalidInput)
	}

	data := map[string]string{
		"school":      h.config.SchoolName,
		"name":        input.FullName,
		"course":      input.Course,
		"reference":   input.PaymentReference,
		"transaction": input.TransactionID,
		"amount":      formatAmount(h.config.Currency, input.Amount),
	}

	output := &Output{
		ReceiptID: uuid.New().String(),
		Status:    StatusDisabled,
		SentAt:    time.Now().UTC().Format(time.RFC3339),
	}
	log := h.logger.WithFields(map[string]interface{}{
		"applicationId": input.ApplicationID,
		"reference":     input.PaymentReference,
	})

	if h.config.EmailEnabled && h.sesClient != nil && input.Email != "" {
		msg := commonaws.TextEmail(h.config.FromEmail, input.Email,
			renderTemplate(tmpl.subject, data), renderTemplate(tmpl.body, data))
		if _, err := h.sesClient.SendEmail(ctx, msg); err != nil {
			log.Error("receipt email failed", map[string]interface{}{"error": err.Error()})
			output.FailedChannels = append(output.FailedChannels, ChannelEmail)
		} else {
			output.Channels = append(output.Channels, ChannelEmail)
		}
	}

	if h.config.SMSEnabled && h.snsClient != nil && input.Phone != "" {
		msg := commonaws.SMS(input.Phone, h.config.SenderID, renderTemplate(tmpl.sms, data))
		if _, err := h.snsClient.Publish(ctx, msg); err != nil {
			log.Error("receipt sms failed", map[string]interface{}{"error": err.Error()})
			output.FailedChannels = append(output.FailedChannels, ChannelSMS)
		} else {
			output.Channels = append(output.Channels, ChannelSMS)
		}
	}

	// One delivered channel is enough for the receipt to count as sent.
	switch {
	case len(output.Channels) > 0:
		output.Status = StatusSent
	case len(output.FailedChannels) > 0:
		output.Status = StatusFailed
	}
	log.Info("receipt processed", map[string]interface{}{
		"status":   output.Status,
		"channels": strings.Join(output.Channels, ","),
		"failed":   strings.Join(output.FailedChannels, ","),
	})
	return output, nil
}

// PaymentSettled sends the receipt directly, for deployments without a
// workflow engine.
func (h *Handler) PaymentSettled(ctx context.Context, r *models.Registration) error {
	output, err := h.Execute(ctx, &Input{
		ApplicationID:    r.ID,
		FullName:         r.FullName,
		Email:            r.Email,
		Phone:            r.Phone,
		Course:           string(r.Course),
		PaymentReference: r.PaymentReference,
		PaymentMethod:    string(r.PaymentMethod),
		PaymentStatus:    string(r.PaymentStatus),
		Amount:           r.Amount,
		TransactionID:    r.TransactionID,
	})
	if err != nil {
		return err
	}
	if output.Status == StatusFailed {
		return ErrReceiptFailed
	}
	return nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		return fmt.Errorf("create complete job command: %w", err)
	}
	if _, err := cmd.Send(context.Background()); err != nil {
		return fmt.Errorf("send complete job command: %w", err)
	}
	return nil
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) error {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		return fmt.Errorf("throw error: %w", err)
	}
	return nil
}

func renderTemplate(tmpl string, data map[string]string) string {
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// formatAmount renders minor units, e.g. 10000 -> "GHS 100.00".
func formatAmount(currency string, minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return strings.TrimSpace(fmt.Sprintf("%s %s%d.%02d", currency, sign, minor/100, minor%100))
}
