// internal/services/payment/process-webhook/models.go
package processwebhook

import "driving-school-api/internal/models"

// Input is the callback exactly as received. Body must be the raw bytes the
// provider signed.
type Input struct {
	Body      []byte
	Signature string
}

// Payload is the webhook body after authentication.
type Payload struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
}

type Output struct {
	Reference string               `json:"reference"`
	Status    models.PaymentStatus `json:"status"`
	Applied   bool                 `json:"applied"`
}
