// internal/services/payment/verify-payment/models.go
package verifypayment

import "driving-school-api/internal/models"

type Input struct {
	Reference string `json:"reference"`
}

type Output struct {
	Reference     string               `json:"reference"`
	Status        models.PaymentStatus `json:"status"`
	TransactionID string               `json:"transactionId,omitempty"`
	Provider      string               `json:"provider,omitempty"`
}
