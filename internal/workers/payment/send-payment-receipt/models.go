// internal/workers/payment/send-payment-receipt/models.go
package sendpaymentreceipt

// Input matches the variables of the payment-settled message.
type Input struct {
	ApplicationID    string `json:"applicationId"`
	FullName         string `json:"fullName"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Course           string `json:"course"`
	PaymentReference string `json:"paymentReference"`
	PaymentMethod    string `json:"paymentMethod"`
	PaymentStatus    string `json:"paymentStatus"`
	Amount           int64  `json:"amount"`
	TransactionID    string `json:"transactionId,omitempty"`
}

type Output struct {
	ReceiptID      string   `json:"receiptId"`
	Status         string   `json:"receiptStatus"` // "sent", "failed", "disabled"
	Channels       []string `json:"receiptChannels,omitempty"`
	FailedChannels []string `json:"receiptFailedChannels,omitempty"`
	SentAt         string   `json:"receiptSentAt"` // ISO 8601
}

const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)
