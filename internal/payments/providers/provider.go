// Package providers translates payment requests into provider API calls.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"driving-school-api/internal/common/config"
	apperrors "driving-school-api/internal/common/errors"
	commonhttp "driving-school-api/internal/common/http"
	"driving-school-api/internal/models"
)

// ErrNotConfigured is returned for a supported method whose provider has no
// base URL configured.
var ErrNotConfigured = errors.New("provider not configured")

// Request is the provider-neutral initiation request.
type Request struct {
	Reference   string
	Amount      int64
	Currency    string
	PhoneNumber string
	Email       string
	CallbackURL string
	ReturnURL   string
}

// Handle is what a provider hands back on initiation: a direct-charge token
// (mobile money) or a redirect URL (bank, card).
type Handle struct {
	ProviderReference string
	PaymentURL        string
}

// Verification is a provider's answer to a status query.
type Verification struct {
	Reference     string
	Status        models.PaymentStatus
	TransactionID string
	ProviderState string
}

type Adapter interface {
	Name() string
	Initiate(ctx context.Context, req Request) (*Handle, error)
	Verify(ctx context.Context, reference string) (*Verification, error)
}

type jsonDoer interface {
	DoJSON(ctx context.Context, method, url string, headers map[string]string, in, out interface{}) error
}

// Set is the closed collection of adapters, one per payment method.
type Set struct {
	mtn     Adapter
	telecel Adapter
	airtel  Adapter
	bank    Adapter
	card    Adapter
}

// NewSet builds adapters for every configured provider.
func NewSet(cfg config.PaymentsConfig) *Set {
	client := commonhttp.NewClient(config.GetDuration(cfg.ProviderTimeoutMs))
	return newSet(cfg, client)
}

func newSet(cfg config.PaymentsConfig, client jsonDoer) *Set {
	s := &Set{}
	p := cfg.Providers
	if p.MTN.Configured() {
		s.mtn = NewMobileMoney(string(models.MethodMTN), p.MTN, client)
	}
	if p.Telecel.Configured() {
		s.telecel = NewMobileMoney(string(models.MethodTelecel), p.Telecel, client)
	}
	if p.Airtel.Configured() {
		s.airtel = NewMobileMoney(string(models.MethodAirtel), p.Airtel, client)
	}
	if p.Bank.Configured() {
		s.bank = NewBank(p.Bank, client)
	}
	if p.Paystack.Configured() {
		s.card = NewPaystack(p.Paystack, cfg.Currency, client)
	}
	return s
}

// NewSetFromAdapters is used where adapters are built elsewhere (tests, tools).
func NewSetFromAdapters(adapters map[models.PaymentMethod]Adapter) *Set {
	return &Set{
		mtn:     adapters[models.MethodMTN],
		telecel: adapters[models.MethodTelecel],
		airtel:  adapters[models.MethodAirtel],
		bank:    adapters[models.MethodBank],
		card:    adapters[models.MethodCard],
	}
}

// For selects the adapter for method. Unknown methods fail with an
// InvalidMethod error; known but unconfigured ones with ErrNotConfigured.
func (s *Set) For(method models.PaymentMethod) (Adapter, error) {
	var a Adapter
	switch method {
	case models.MethodMTN:
		a = s.mtn
	case models.MethodTelecel:
		a = s.telecel
	case models.MethodAirtel:
		a = s.airtel
	case models.MethodBank:
		a = s.bank
	case models.MethodCard:
		a = s.card
	default:
		return nil, apperrors.NewInvalidMethodError(string(method))
	}
	if a == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, method)
	}
	return a, nil
}

// Gateway is the adapter used for references this service did not issue:
// the card gateway, matching the inline checkout on the front-end.
func (s *Set) Gateway() (Adapter, error) {
	return s.For(models.MethodCard)
}

// NormalizeStatus maps provider vocabularies onto the payment state machine.
// Anything unrecognised is treated as still pending.
func NormalizeStatus(raw string) models.PaymentStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "success", "successful", "succeeded", "completed", "paid":
		return models.StatusSuccess
	case "failed", "failure", "declined", "cancelled", "canceled", "abandoned", "reversed", "expired", "rejected":
		return models.StatusFailed
	default:
		return models.StatusPending
	}
}

func bearer(token string) map[string]string {
	h := map[string]string{}
	if token != "" {
		h["Authorization"] = "Bearer " + token
	}
	return h
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}

// Deadline bounds a single provider call.
func Deadline(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}
