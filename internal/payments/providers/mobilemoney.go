package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"driving-school-api/internal/common/config"
)

// MobileMoney serves the whole mobile-money family. Operators differ only in
// base URL and credentials.
type MobileMoney struct {
	name   string
	cfg    config.ProviderConfig
	client jsonDoer
}

func NewMobileMoney(name string, cfg config.ProviderConfig, client jsonDoer) *MobileMoney {
	return &MobileMoney{name: name, cfg: cfg, client: client}
}

type mobileMoneyPaymentRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callbackUrl"`
}

type mobileMoneyPaymentResponse struct {
	ProviderReference string `json:"providerReference"`
	Status            string `json:"status"`
}

type paymentStatusResponse struct {
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
}

func (m *MobileMoney) Name() string { return m.name }

func (m *MobileMoney) Initiate(ctx context.Context, req Request) (*Handle, error) {
	if req.PhoneNumber == "" {
		return nil, errors.New("phone number is required for mobile money")
	}

	headers := bearer(m.cfg.APIKey)
	headers["X-Reference"] = req.Reference
	if m.cfg.APISecret != "" {
		headers["X-Api-Secret"] = m.cfg.APISecret
	}

	var resp mobileMoneyPaymentResponse
	err := m.client.DoJSON(ctx, http.MethodPost, joinURL(m.cfg.BaseURL, "/payments"), headers, mobileMoneyPaymentRequest{
		PhoneNumber: req.PhoneNumber,
		Amount:      req.Amount,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: req.CallbackURL,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("%s initiate: %w", m.name, err)
	}
	if resp.ProviderReference == "" {
		return nil, fmt.Errorf("%s initiate: response missing providerReference", m.name)
	}
	return &Handle{ProviderReference: resp.ProviderReference}, nil
}

func (m *MobileMoney) Verify(ctx context.Context, reference string) (*Verification, error) {
	var resp paymentStatusResponse
	err := m.client.DoJSON(ctx, http.MethodGet, joinURL(m.cfg.BaseURL, "/payments/"+url.PathEscape(reference)),
		bearer(m.cfg.APIKey), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("%s verify: %w", m.name, err)
	}
	return &Verification{
		Reference:     reference,
		Status:        NormalizeStatus(resp.Status),
		TransactionID: resp.TransactionID,
		ProviderState: resp.Status,
	}, nil
}
