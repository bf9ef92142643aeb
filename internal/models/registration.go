// internal/models/registration.go
package models

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the wire format for dob and preferredDate.
const DateLayout = "2006-01-02"

type Course string

const (
	CourseLearners    Course = "learners"
	CourseProvisional Course = "provisional"
	CourseFull        Course = "full"
)

func (c Course) Valid() bool {
	switch c {
	case CourseLearners, CourseProvisional, CourseFull:
		return true
	}
	return false
}

type PaymentMethod string

const (
	MethodMTN     PaymentMethod = "mtn"
	MethodTelecel PaymentMethod = "telecel"
	MethodAirtel  PaymentMethod = "airtel"
	MethodBank    PaymentMethod = "bank"
	MethodCard    PaymentMethod = "card"
)

// PaymentMethods lists the supported methods in display order.
var PaymentMethods = []PaymentMethod{MethodMTN, MethodTelecel, MethodAirtel, MethodBank, MethodCard}

// ParsePaymentMethod is case-insensitive and rejects anything outside the set.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range PaymentMethods {
		if m == known {
			return m, true
		}
	}
	return "", false
}

// IsMobileMoney reports whether the method belongs to the mobile-money family.
func (m PaymentMethod) IsMobileMoney() bool {
	return m == MethodMTN || m == MethodTelecel || m == MethodAirtel
}

type PaymentStatus string

const (
	StatusUnset   PaymentStatus = ""
	StatusPending PaymentStatus = "pending"
	StatusSuccess PaymentStatus = "success"
	StatusFailed  PaymentStatus = "failed"
)

func (s PaymentStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case StatusUnset, StatusPending, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// CanTransition encodes the payment state machine:
//
//	unset -> pending -> success | failed
//
// pending -> pending is a re-initiation. Terminal states never move.
func CanTransition(from, to PaymentStatus) bool {
	switch from {
	case StatusUnset:
		return to == StatusPending
	case StatusPending:
		return to == StatusPending || to == StatusSuccess || to == StatusFailed
	default:
		return false
	}
}

// Registration is the single canonical application record.
type Registration struct {
	ID               string        `json:"id"`
	FullName         string        `json:"fullName"`
	Email            string        `json:"email"`
	Phone            string        `json:"phone"`
	DateOfBirth      string        `json:"dob"`
	Course           Course        `json:"course"`
	PreferredDate    string        `json:"preferredDate"`
	PaymentReference string        `json:"paymentReference,omitempty"`
	PaymentMethod    PaymentMethod `json:"paymentMethod,omitempty"`
	PaymentStatus    PaymentStatus `json:"paymentStatus,omitempty"`
	Amount           int64         `json:"amount,omitempty"`
	TransactionID    string        `json:"transactionId,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

var phonePattern = regexp.MustCompile(`^\+?[\d\s-]+$`)

// ValidPhone matches digits, spaces and dashes with an optional leading +.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}

// ValidDate accepts YYYY-MM-DD.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// FieldViolation is a single failed applicant-field rule.
type FieldViolation struct {
	Field string
	Rule  string
}

func (v FieldViolation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Rule)
}

// Validate checks the applicant fields. The payment fields are owned by the
// payment flow and are not inspected here.
func (r *Registration) Validate() []FieldViolation {
	var out []FieldViolation

	name := strings.TrimSpace(r.FullName)
	if n := utf8.RuneCountInString(name); n < 2 || n > 50 {
		out = append(out, FieldViolation{"fullName", "length"})
	}
	if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email {
		out = append(out, FieldViolation{"email", "email"})
	}
	if !ValidPhone(r.Phone) {
		out = append(out, FieldViolation{"phone", "phone"})
	}
	if !ValidDate(r.DateOfBirth) {
		out = append(out, FieldViolation{"dob", "date"})
	}
	if !r.Course.Valid() {
		out = append(out, FieldViolation{"course", "oneof"})
	}
	if !ValidDate(r.PreferredDate) {
		out = append(out, FieldViolation{"preferredDate", "date"})
	}
	return out
}

// Patch is a partial update. Nil fields are left untouched. StatusIn, when
// non-empty, restricts the update to rows currently in one of those states.
type Patch struct {
	PaymentReference *string
	PaymentMethod    *PaymentMethod
	PaymentStatus    *PaymentStatus
	Amount           *int64
	TransactionID    *string
	StatusIn         []PaymentStatus
}

func (p Patch) Empty() bool {
	return p.PaymentReference == nil && p.PaymentMethod == nil && p.PaymentStatus == nil &&
		p.Amount == nil && p.TransactionID == nil
}
