// internal/services/registration/create-registration/handler.go
package createregistration

import (
	"context"
	"strings"

	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/common/metrics"
	"driving-school-api/internal/models"
)

const Operation = "create-registration"

type Store interface {
	Create(ctx context.Context, r *models.Registration) (string, error)
}

type Handler struct {
	config *Config
	store  Store
	logger logger.Logger
}

func NewHandler(config *Config, store Store, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		store:  store,
		logger: log.WithFields(map[string]interface{}{"operation": Operation}),
	}
}

// Execute stores a new registration with its payment fields unset.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	reg := &models.Registration{
		FullName:      strings.TrimSpace(input.FullName),
		Email:         strings.TrimSpace(input.Email),
		Phone:         strings.TrimSpace(input.Phone),
		DateOfBirth:   strings.TrimSpace(input.DateOfBirth),
		Course:        models.Course(strings.ToLower(strings.TrimSpace(input.Course))),
		PreferredDate: strings.TrimSpace(input.PreferredDate),
	}

	id, err := h.store.Create(ctx, reg)
	if err != nil {
		h.logger.Warn("registration rejected", map[string]interface{}{
			"error": err.Error(),
		})
		return nil, err
	}

	metrics.RegistrationsCreated.Inc()
	h.logger.Info("registration created", map[string]interface{}{
		"applicationId": id,
		"course":        string(reg.Course),
	})

	return &Output{ApplicationID: id, Registration: reg}, nil
}
