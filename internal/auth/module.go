// Package auth provides account signup, login, and token lifecycle.
package auth

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"yaadmarket_backend/internal/auth/handler"
	"yaadmarket_backend/internal/auth/repository"
	"yaadmarket_backend/internal/auth/service"
	"yaadmarket_backend/internal/auth/token"
	apphttp "yaadmarket_backend/internal/http"
	"yaadmarket_backend/platform/config"
	"yaadmarket_backend/platform/events"
	"yaadmarket_backend/platform/logger"
	"yaadmarket_backend/platform/validator"
)

// Module wires the auth bounded context.
type Module struct {
	service *service.Service
	handler *handler.Handler
}

var _ apphttp.Module = (*Module)(nil)

// NewModule constructs the auth module with its dependencies.
func NewModule(pool *pgxpool.Pool, cfg config.AuthServiceConfig, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.New(pool)
	svc := service.New(repo, token.NewIssuer(cfg), bus, log)
	return &Module{
		service: svc,
		handler: handler.New(svc, val),
	}
}

// Service exposes the auth service for cross-module wiring.
func (m *Module) Service() *service.Service {
	return m.service
}

// Name returns the module name.
func (m *Module) Name() string {
	return "auth"
}

// RegisterRoutes mounts the auth endpoints.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	grp := ctx.V1.Group("/auth")
	grp.POST("/signup", ctx.AuthRateLimiter.RateLimit(), m.handler.Signup)
	grp.POST("/login", ctx.AuthRateLimiter.RateLimit(), m.handler.Login)
	grp.POST("/refresh", ctx.AuthRateLimiter.RateLimit(), m.handler.Refresh)

	protected := ctx.Protected.Group("/auth")
	protected.POST("/logout", m.handler.Logout)
	protected.GET("/me", m.handler.Me)
}
