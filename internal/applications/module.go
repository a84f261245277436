// Package applications lets agents volunteer for open requests and admins
// turn approvals into assignments.
package applications

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"yaadmarket_backend/internal/applications/handler"
	"yaadmarket_backend/internal/applications/repository"
	"yaadmarket_backend/internal/applications/service"
	apphttp "yaadmarket_backend/internal/http"
	"yaadmarket_backend/platform/events"
	"yaadmarket_backend/platform/logger"
	"yaadmarket_backend/platform/validator"
)

// Module wires the applications bounded context.
type Module struct {
	service *service.Service
	handler *handler.Handler
}

var _ apphttp.Module = (*Module)(nil)

// NewModule constructs the applications module with its dependencies.
func NewModule(pool *pgxpool.Pool, assigner service.Assigner, agents service.AgentDirectory, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, assigner, agents, bus, log)
	return &Module{
		service: svc,
		handler: handler.New(svc, val),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "applications"
}

// RegisterRoutes mounts the application endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	agent := ctx.Protected.Group("/agent")
	agent.POST("/requests/:id/applications", m.handler.Apply)
	agent.GET("/applications", m.handler.ListMine)

	admin := ctx.Admin.Group("/applications")
	admin.GET("", m.handler.List)
	admin.POST("/:id/review", m.handler.Review)
}
