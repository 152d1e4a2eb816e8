// Package auth provides the authentication bounded context module: the
// auth facade and its HTTP surface.
package auth

import (
	"ionizer_portal/internal/auth/handler"
	"ionizer_portal/internal/auth/service"
	"ionizer_portal/internal/events"
	apphttp "ionizer_portal/internal/http"
	"ionizer_portal/platform/logger"
)

// Module is the auth bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the auth module with all its dependencies.
func NewModule(cfg service.Config, homes handler.Homes, loginPath string, eventBus events.Bus, log *logger.Logger) *Module {
	svc := service.New(cfg, eventBus, log)
	h := handler.New(svc, homes, loginPath)

	return &Module{
		handler: h,
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "auth"
}

// Service returns the auth facade.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts auth routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Public auth routes with stricter rate limiting
	authGroup := ctx.V1.Group("/auth")
	authGroup.Use(ctx.AuthRateLimiter.RateLimit())
	m.handler.RegisterRoutes(authGroup)

	ctx.V1.GET("/session", m.handler.Session)
	ctx.Pages.GET(service.CallbackPath, m.handler.OAuthCallback)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
