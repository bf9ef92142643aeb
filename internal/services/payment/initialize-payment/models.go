// internal/services/payment/initialize-payment/models.go
package initializepayment

import "driving-school-api/internal/models"

type Input struct {
	Method        string `json:"method"`
	ApplicationID string `json:"applicationId"`
	Amount        int64  `json:"amount"`
	PhoneNumber   string `json:"phoneNumber"`
}

// Output carries a providerReference for direct charges (mobile money) or a
// paymentUrl for redirect checkouts (bank, card).
type Output struct {
	Reference         string               `json:"reference"`
	Status            models.PaymentStatus `json:"status"`
	ProviderReference string               `json:"providerReference,omitempty"`
	PaymentURL        string               `json:"paymentUrl,omitempty"`
}
