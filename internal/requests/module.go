// Package requests provides the service request bounded context: public
// intake, the agent marketplace feed and actions, and admin management.
package requests

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"yaadmarket_backend/internal/events"
	apphttp "yaadmarket_backend/internal/http"
	"yaadmarket_backend/internal/requests/handler"
	"yaadmarket_backend/internal/requests/repository"
	"yaadmarket_backend/internal/requests/service"
	"yaadmarket_backend/platform/logger"
	"yaadmarket_backend/platform/validator"
)

// Module is the requests bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the requests module. The allocator and
// agent directory come from the allocation and agents modules.
func NewModule(pool *pgxpool.Pool, allocator service.Allocator, agents service.AgentDirectory, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, allocator, agents, bus, log)
	h := handler.New(svc, val)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "requests"
}

// Service returns the service layer for external use.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts public intake, agent, and admin routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public intake, behind the stricter limiter to slow down spam.
	ctx.V1.POST("/requests", ctx.AuthRateLimiter.RateLimit(), m.handler.Create)

	// Agent surface.
	agentGroup := ctx.Protected.Group("/agent/requests")
	agentGroup.GET("", m.handler.ListMine)
	agentGroup.GET("/feed", m.handler.Feed)
	agentGroup.GET("/:id", m.handler.GetMine)
	agentGroup.POST("/:id/contacted", m.handler.ToggleContacted)
	agentGroup.POST("/:id/progress", m.handler.StartProgress)
	agentGroup.POST("/:id/complete", m.handler.Complete)
	agentGroup.POST("/:id/release", m.handler.Release)
	agentGroup.PUT("/:id/comment", m.handler.Comment)

	// Admin surface.
	adminGroup := ctx.Admin.Group("/requests")
	adminGroup.GET("", m.handler.ListAdmin)
	adminGroup.GET("/:id", m.handler.GetByID)
	adminGroup.POST("/:id/remove", m.handler.Remove)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
