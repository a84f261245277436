// Package allocation provides the lead allocation bounded context: the
// round-robin engine that distributes open service requests across eligible
// agents, plus the admin surface for inspecting and steering it.
package allocation

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"yaadmarket_backend/internal/allocation/handler"
	"yaadmarket_backend/internal/allocation/repository"
	"yaadmarket_backend/internal/allocation/service"
	"yaadmarket_backend/internal/events"
	apphttp "yaadmarket_backend/internal/http"
	"yaadmarket_backend/platform/logger"
	"yaadmarket_backend/platform/validator"
)

// Module is the allocation bounded context module implementing http.Module.
type Module struct {
	handler   *handler.Handler
	allocator *service.Allocator
	log       *logger.Logger
}

// NewModule creates and initializes the allocation module.
func NewModule(pool *pgxpool.Pool, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	allocator := service.New(repo, bus, log)
	h := handler.New(allocator, val)

	return &Module{
		handler:   h,
		allocator: allocator,
		log:       log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "allocation"
}

// Allocator exposes the engine to other modules and the scheduler worker.
func (m *Module) Allocator() *service.Allocator {
	return m.allocator
}

// RegisterRoutes mounts the admin allocation routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	adminGroup := ctx.Admin.Group("/allocation")
	adminGroup.GET("/dashboard", m.handler.Dashboard)
	adminGroup.GET("/queue", m.handler.Queue)
	adminGroup.POST("/sweep", m.handler.Sweep)
	adminGroup.POST("/requests/:id/auto-assign", m.handler.AutoAssign)
	adminGroup.POST("/requests/:id/assign", m.handler.ManualAssign)
	adminGroup.POST("/requests/:id/release", m.handler.Release)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
