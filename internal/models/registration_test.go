package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func validRegistration() *Registration {
	return &Registration{
		FullName:      "Ama Owusu",
		Email:         "ama@example.com",
		Phone:         "+233501234567",
		DateOfBirth:   "1998-04-12",
		Course:        CourseLearners,
		PreferredDate: "2025-03-01",
	}
}

func TestRegistration_Validate(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(r *Registration)
		wantFields []string
	}{
		{name: "valid", mutate: func(r *Registration) {}},
		{name: "phone with spaces and dashes", mutate: func(r *Registration) { r.Phone = "050 123-4567" }},
		{name: "short name", mutate: func(r *Registration) { r.FullName = "A" }, wantFields: []string{"fullName"}},
		{name: "bad email", mutate: func(r *Registration) { r.Email = "ama@" }, wantFields: []string{"email"}},
		{name: "email with display name", mutate: func(r *Registration) { r.Email = "Ama <ama@example.com>" }, wantFields: []string{"email"}},
		{name: "letters in phone", mutate: func(r *Registration) { r.Phone = "call-me" }, wantFields: []string{"phone"}},
		{name: "bad dob", mutate: func(r *Registration) { r.DateOfBirth = "12/04/1998" }, wantFields: []string{"dob"}},
		{name: "unknown course", mutate: func(r *Registration) { r.Course = "motorbike" }, wantFields: []string{"course"}},
		{
			name: "everything missing",
			mutate: func(r *Registration) {
				*r = Registration{}
			},
			wantFields: []string{"fullName", "email", "phone", "dob", "course", "preferredDate"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRegistration()
			tt.mutate(r)

			var got []string
			for _, v := range r.Validate() {
				got = append(got, v.Field)
			}
			assert.Equal(t, tt.wantFields, got)
		})
	}
}

func TestCanTransition(t *testing.T) {
	all := []PaymentStatus{StatusUnset, StatusPending, StatusSuccess, StatusFailed}
	allowed := map[[2]PaymentStatus]bool{
		{StatusUnset, StatusPending}:   true,
		{StatusPending, StatusPending}: true,
		{StatusPending, StatusSuccess}: true,
		{StatusPending, StatusFailed}:  true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]PaymentStatus{from, to}], CanTransition(from, to), "%q -> %q", from, to)
		}
	}
}

func TestParsePaymentMethod(t *testing.T) {
	m, ok := ParsePaymentMethod(" MTN ")
	assert.True(t, ok)
	assert.Equal(t, MethodMTN, m)
	assert.True(t, m.IsMobileMoney())

	m, ok = ParsePaymentMethod("card")
	assert.True(t, ok)
	assert.False(t, m.IsMobileMoney())

	_, ok = ParsePaymentMethod("crypto")
	assert.False(t, ok)
	_, ok = ParsePaymentMethod("")
	assert.False(t, ok)
}

func TestPatch_Empty(t *testing.T) {
	assert.True(t, Patch{StatusIn: []PaymentStatus{StatusPending}}.Empty())
	status := StatusSuccess
	assert.False(t, Patch{PaymentStatus: &status}.Empty())
}
