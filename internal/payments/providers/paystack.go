package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"driving-school-api/internal/common/config"
)

// Paystack is the card gateway. Amounts are in the currency's minor unit.
type Paystack struct {
	cfg      config.ProviderConfig
	currency string
	client   jsonDoer
}

func NewPaystack(cfg config.ProviderConfig, currency string, client jsonDoer) *Paystack {
	return &Paystack{cfg: cfg, currency: currency, client: client}
}

type paystackInitializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	Currency    string `json:"currency,omitempty"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type paystackEnvelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type paystackInitializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackVerifyData struct {
	ID              int64  `json:"id"`
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	GatewayResponse string `json:"gateway_response"`
}

func (p *Paystack) Name() string { return "paystack" }

func (p *Paystack) Initiate(ctx context.Context, req Request) (*Handle, error) {
	if req.Email == "" {
		return nil, errors.New("email is required for card payments")
	}
	currency := req.Currency
	if currency == "" {
		currency = p.currency
	}

	// callback_url is where Paystack sends the browser, not a server webhook.
	var resp paystackEnvelope[paystackInitializeData]
	err := p.client.DoJSON(ctx, http.MethodPost, joinURL(p.cfg.BaseURL, "/transaction/initialize"), bearer(p.cfg.APIKey),
		paystackInitializeRequest{
			Email:       req.Email,
			Amount:      req.Amount,
			Reference:   req.Reference,
			Currency:    currency,
			CallbackURL: req.ReturnURL,
		}, &resp)
	if err != nil {
		return nil, fmt.Errorf("paystack initialize: %w", err)
	}
	if !resp.Status || resp.Data.AuthorizationURL == "" {
		return nil, fmt.Errorf("paystack initialize rejected: %s", resp.Message)
	}
	return &Handle{
		ProviderReference: resp.Data.AccessCode,
		PaymentURL:        resp.Data.AuthorizationURL,
	}, nil
}

func (p *Paystack) Verify(ctx context.Context, reference string) (*Verification, error) {
	var resp paystackEnvelope[paystackVerifyData]
	err := p.client.DoJSON(ctx, http.MethodGet, joinURL(p.cfg.BaseURL, "/transaction/verify/"+url.PathEscape(reference)),
		bearer(p.cfg.APIKey), nil, &resp)
	if err != nil {
		return nil, fmt.Errorf("paystack verify: %w", err)
	}
	if !resp.Status {
		return nil, fmt.Errorf("paystack verify rejected: %s", resp.Message)
	}

	v := &Verification{
		Reference:     reference,
		Status:        NormalizeStatus(resp.Data.Status),
		ProviderState: resp.Data.Status,
	}
	if resp.Data.ID != 0 {
		v.TransactionID = strconv.FormatInt(resp.Data.ID, 10)
	}
	return v, nil
}
