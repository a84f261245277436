// Package agents provides the agent bounded context: onboarding, identity
// verification, and paid access management.
package agents

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"yaadmarket_backend/internal/adapters/storage"
	"yaadmarket_backend/internal/agents/handler"
	"yaadmarket_backend/internal/agents/repository"
	"yaadmarket_backend/internal/agents/service"
	"yaadmarket_backend/internal/events"
	apphttp "yaadmarket_backend/internal/http"
	"yaadmarket_backend/platform/logger"
	"yaadmarket_backend/platform/validator"
)

// Module is the agents bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the agents module. store may be nil
// when MinIO is not configured.
func NewModule(pool *pgxpool.Pool, store storage.Service, users service.UserDirectory, cfg service.StorageConfig, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, store, users, cfg, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "agents"
}

// Service returns the service layer; it doubles as the agent directory for
// other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts public, agent, and admin routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public pricing page.
	ctx.V1.GET("/plans", m.handler.Plans)

	// Agent surface.
	agentGroup := ctx.Protected.Group("/agent")
	agentGroup.POST("/profile", m.handler.Register)
	agentGroup.GET("/profile", m.handler.GetMe)
	agentGroup.GET("/payment-instructions/:tier", m.handler.PaymentInstructions)
	agentGroup.POST("/verification/upload-url", m.handler.RequestVerificationUpload)
	agentGroup.POST("/verification/confirm", m.handler.ConfirmVerificationDoc)
	agentGroup.POST("/payment/upload-url", m.handler.RequestPaymentProofUpload)
	agentGroup.POST("/payment/confirm", m.handler.ConfirmPaymentProof)

	// Admin surface.
	adminGroup := ctx.Admin.Group("/agents")
	adminGroup.GET("", m.handler.List)
	adminGroup.GET("/:id", m.handler.GetByID)
	adminGroup.GET("/:id/verification-doc", m.handler.DocumentURL)
	adminGroup.POST("/:id/verification", m.handler.ReviewVerification)
	adminGroup.POST("/:id/payment", m.handler.RecordPayment)
	adminGroup.DELETE("/:id", m.handler.Remove)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
