// Package signature authenticates provider callbacks with a shared-secret
// HMAC-SHA256 over the raw request body.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	apperrors "driving-school-api/internal/common/errors"
)

// Header carries the hex-encoded signature on webhook deliveries.
const Header = "X-Payment-Signature"

type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign returns the hex HMAC-SHA256 of body.
func (v *Verifier) Sign(body []byte) string {
	return hex.EncodeToString(v.mac(body))
}

// Verify checks the supplied hex signature against body. Body must be the
// bytes exactly as received.
func (v *Verifier) Verify(body []byte, supplied string) error {
	if len(v.secret) == 0 {
		return apperrors.NewSignatureError("webhook secret not configured")
	}
	supplied = strings.TrimSpace(supplied)
	if supplied == "" {
		return apperrors.NewSignatureError("missing signature header")
	}
	got, err := hex.DecodeString(supplied)
	if err != nil {
		return apperrors.NewSignatureError("signature is not hex")
	}
	if len(got) != sha256.Size {
		return apperrors.NewSignatureError("signature has wrong length")
	}
	if !hmac.Equal(got, v.mac(body)) {
		return apperrors.NewSignatureError("signature mismatch")
	}
	return nil
}

// Valid is the boolean form of Verify.
func (v *Verifier) Valid(body []byte, supplied string) bool {
	return v.Verify(body, supplied) == nil
}

func (v *Verifier) mac(body []byte) []byte {
	m := hmac.New(sha256.New, v.secret)
	m.Write(body)
	return m.Sum(nil)
}
