// internal/api/handlers.go
package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "driving-school-api/internal/common/errors"
	"driving-school-api/internal/common/validation"
	"driving-school-api/internal/payments/signature"
	createregistration "driving-school-api/internal/services/registration/create-registration"
	initializepayment "driving-school-api/internal/services/payment/initialize-payment"
	processwebhook "driving-school-api/internal/services/payment/process-webhook"
	verifypayment "driving-school-api/internal/services/payment/verify-payment"

	"github.com/gin-gonic/gin"
)

// ==========================
// Registration
// ==========================

type registrationRequest struct {
	FullName      string `json:"fullName" binding:"required,min=2,max=50"`
	Email         string `json:"email" binding:"required,email"`
	Phone         string `json:"phone" binding:"required,phone"`
	DateOfBirth   string `json:"dob" binding:"required,datetime=2006-01-02"`
	Course        string `json:"course" binding:"required,course"`
	PreferredDate string `json:"preferredDate" binding:"required,datetime=2006-01-02"`
}

// UnmarshalJSON accepts the older form field names, name and licenseType,
// and trims every value before validation runs.
func (r *registrationRequest) UnmarshalJSON(data []byte) error {
	type plain registrationRequest
	var aux struct {
		plain
		Name        string `json:"name"`
		LicenseType string `json:"licenseType"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	*r = registrationRequest(aux.plain)
	if strings.TrimSpace(r.FullName) == "" {
		r.FullName = aux.Name
	}
	if strings.TrimSpace(r.Course) == "" {
		r.Course = aux.LicenseType
	}

	r.FullName = strings.TrimSpace(r.FullName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.DateOfBirth = strings.TrimSpace(r.DateOfBirth)
	r.Course = strings.ToLower(strings.TrimSpace(r.Course))
	r.PreferredDate = strings.TrimSpace(r.PreferredDate)
	return nil
}

func (s *Server) createRegistration(c *gin.Context) {
	var req registrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, validation.BindError(err), "Error submitting application")
		return
	}

	out, err := s.services.Registrations.Execute(c.Request.Context(), &createregistration.Input{
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		DateOfBirth:   req.DateOfBirth,
		Course:        req.Course,
		PreferredDate: req.PreferredDate,
	})
	if err != nil {
		s.fail(c, err, "Error submitting application")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"applicationId": out.ApplicationID,
	})
}

func (s *Server) getApplication(c *gin.Context) {
	reg, err := s.services.Applications.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err, "Error loading application")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"application": reg,
	})
}

// ==========================
// Payments
// ==========================

type initializePaymentRequest struct {
	Method        string `json:"method" binding:"required"`
	ApplicationID string `json:"applicationId" binding:"required"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	PhoneNumber   string `json:"phoneNumber"`
}

func (s *Server) initializePayment(c *gin.Context) {
	var req initializePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, validation.BindError(err), "Payment initialization failed")
		return
	}

	out, err := s.services.Payments.Execute(c.Request.Context(), &initializepayment.Input{
		Method:        req.Method,
		ApplicationID: req.ApplicationID,
		Amount:        req.Amount,
		PhoneNumber:   req.PhoneNumber,
	})
	if err != nil {
		s.fail(c, err, "Payment initialization failed")
		return
	}

	body := gin.H{
		"success":   true,
		"reference": out.Reference,
		"status":    out.Status,
	}
	if out.ProviderReference != "" {
		body["providerReference"] = out.ProviderReference
	}
	if out.PaymentURL != "" {
		body["paymentUrl"] = out.PaymentURL
	}
	c.JSON(http.StatusOK, body)
}

// processWebhook hands the raw body to the processor untouched; the
// signature covers those exact bytes.
func (s *Server) processWebhook(c *gin.Context) {
	limit := s.options.WebhookMaxBytes
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	if err != nil {
		s.fail(c, apperrors.NewValidationError("read webhook body: "+err.Error()), "Webhook processing failed")
		return
	}
	if int64(len(body)) > limit {
		s.fail(c, apperrors.NewValidationError("webhook body exceeds limit",
			apperrors.FieldError{Field: "body", Message: "is too large", Code: "max"}), "Webhook processing failed")
		return
	}

	_, err = s.services.Webhooks.Execute(c.Request.Context(), &processwebhook.Input{
		Body:      body,
		Signature: c.GetHeader(signature.Header),
	})
	if err != nil {
		s.fail(c, err, "Webhook processing failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type verifyPaymentRequest struct {
	Reference string `json:"reference" binding:"required"`
}

func (s *Server) verifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, validation.BindError(err), "Payment verification failed")
		return
	}

	out, err := s.services.Verifications.Execute(c.Request.Context(), &verifypayment.Input{
		Reference: req.Reference,
	})
	if err != nil {
		s.fail(c, err, "Payment verification failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"reference":     out.Reference,
		"status":        out.Status,
		"transactionId": out.TransactionID,
		"provider":      out.Provider,
	})
}

// ==========================
// Health
// ==========================

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.options.CheckTimeout)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.options.Checks))
	for name, check := range s.options.Checks {
		if err := check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks[name] = "unavailable"
			s.logger.Warn("readiness check failed", map[string]interface{}{
				"dependency": name,
				"error":      err.Error(),
			})
			continue
		}
		checks[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	c.JSON(status, gin.H{
		"status": state,
		"checks": checks,
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
