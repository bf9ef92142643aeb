package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"driving-school-api/internal/common/config"
)

// Bank redirects the payer to a hosted bank payment page.
type Bank struct {
	cfg    config.ProviderConfig
	client jsonDoer
}

func NewBank(cfg config.ProviderConfig, client jsonDoer) *Bank {
	return &Bank{cfg: cfg, client: client}
}

type bankPaymentRequest struct {
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callbackUrl"`
	MerchantID  string `json:"merchantId"`
}

type bankPaymentResponse struct {
	PaymentURL string `json:"paymentUrl"`
}

func (b *Bank) Name() string { return "bank" }

func (b *Bank) Initiate(ctx context.Context, req Request) (*Handle, error) {
	var resp bankPaymentResponse
	err := b.client.DoJSON(ctx, http.MethodPost, joinURL(b.cfg.BaseURL, "/create-payment"), bearer(b.cfg.APIKey), bankPaymentRequest{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
		MerchantID:  b.cfg.MerchantID,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("bank initiate: %w", err)
	}
	if resp.PaymentURL == "" {
		return nil, fmt.Errorf("bank initiate: response missing paymentUrl")
	}
	return &Handle{PaymentURL: resp.PaymentURL}, nil
}

func (b *Bank) Verify(ctx context.Context, reference string) (*Verification, error) {
	var resp paymentStatusResponse
	err := b.client.DoJSON(ctx, http.MethodGet, joinURL(b.cfg.BaseURL, "/payments/"+url.PathEscape(reference)),
		bearer(b.cfg.APIKey), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("bank verify: %w", err)
	}
	return &Verification{
		Reference:     reference,
		Status:        NormalizeStatus(resp.Status),
		TransactionID: resp.TransactionID,
		ProviderState: resp.Status,
	}, nil
}
