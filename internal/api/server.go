// internal/api/server.go
package api

import (
	"context"
	"strings"
	"time"

	"driving-school-api/internal/common/logger"
	"driving-school-api/internal/common/observability"
	"driving-school-api/internal/common/validation"
	"driving-school-api/internal/models"
	createregistration "driving-school-api/internal/services/registration/create-registration"
	initializepayment "driving-school-api/internal/services/payment/initialize-payment"
	processwebhook "driving-school-api/internal/services/payment/process-webhook"
	verifypayment "driving-school-api/internal/services/payment/verify-payment"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RegistrationCreator interface {
	Execute(ctx context.Context, input *createregistration.Input) (*createregistration.Output, error)
}

type ApplicationFinder interface {
	FindByID(ctx context.Context, id string) (*models.Registration, error)
}

type PaymentInitializer interface {
	Execute(ctx context.Context, input *initializepayment.Input) (*initializepayment.Output, error)
}

type WebhookProcessor interface {
	Execute(ctx context.Context, input *processwebhook.Input) (*processwebhook.Output, error)
}

type PaymentVerifier interface {
	Execute(ctx context.Context, input *verifypayment.Input) (*verifypayment.Output, error)
}

// Services groups the operations exposed over HTTP.
type Services struct {
	Registrations RegistrationCreator
	Applications  ApplicationFinder
	Payments      PaymentInitializer
	Webhooks      WebhookProcessor
	Verifications PaymentVerifier
}

// Check is a readiness check for one dependency.
type Check func(ctx context.Context) error

type Options struct {
	// FrontendURL is the only origin allowed by CORS. Empty disables CORS.
	FrontendURL     string
	WebhookMaxBytes int64
	Checks          map[string]Check
	CheckTimeout    time.Duration
	Observability   *observability.Observability
}

type Server struct {
	services Services
	options  Options
	logger   logger.Logger
}

// NewRouter builds the gin engine with middleware and all routes registered.
func NewRouter(services Services, options Options, log logger.Logger) *gin.Engine {
	if options.WebhookMaxBytes <= 0 {
		options.WebhookMaxBytes = 64 << 10
	}
	if options.CheckTimeout <= 0 {
		options.CheckTimeout = 3 * time.Second
	}

	s := &Server{
		services: services,
		options:  options,
		logger:   log.WithFields(map[string]interface{}{"component": "api"}),
	}

	validation.RegisterBindingRules()

	router := gin.New()
	router.Use(requestID())
	router.Use(accessLog(s.logger))
	router.Use(gin.CustomRecovery(s.recovered))
	if options.Observability != nil {
		router.Use(requestMetrics(options.Observability))
	}
	if origin, ok := allowedOrigin(options.FrontendURL); ok {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     []string{origin},
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", requestIDHeader},
			ExposeHeaders:    []string{"Content-Length", requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	} else if options.FrontendURL != "" {
		s.logger.Warn("frontend url is not a valid origin, cors disabled", map[string]interface{}{
			"frontendUrl": options.FrontendURL,
		})
	}

	router.GET("/health", s.health)
	router.GET("/ready", s.ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/payment-webhook", s.processWebhook)

	api := router.Group("/api")
	{
		api.POST("/applications", s.createRegistration)
		api.POST("/register", s.createRegistration)
		api.GET("/applications/:id", s.getApplication)
		api.POST("/initialize-payment", s.initializePayment)
		api.POST("/payment/verify", s.verifyPayment)
	}

	return router
}

func allowedOrigin(raw string) (string, bool) {
	origin := strings.TrimRight(strings.TrimSpace(raw), "/")
	if strings.HasPrefix(origin, "http://") || strings.HasPrefix(origin, "https://") {
		return origin, true
	}
	return "", false
}
