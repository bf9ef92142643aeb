// internal/services/registration/create-registration/models.go
package createregistration

import "driving-school-api/internal/models"

// Input is an applicant's form submission.
type Input struct {
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	DateOfBirth   string `json:"dob"`
	Course        string `json:"course"`
	PreferredDate string `json:"preferredDate"`
}

type Output struct {
	ApplicationID string               `json:"applicationId"`
	Registration  *models.Registration `json:"-"`
}
