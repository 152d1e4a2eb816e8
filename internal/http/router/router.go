// Package router assembles the Gin engine from the application's modules.
package router

import (
	"context"
	"net/http"
	"time"

	apphttp "ionizer_portal/internal/http"
	"ionizer_portal/platform/httpkit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// New builds the engine: global middleware, health check, session-bound
// API and page groups, module routes, and the page fallback.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestID())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	engine.Use(cors.New(corsConfig(app.Config)))

	engine.GET("/api/health", func(c *gin.Context) {
		if app.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := app.Health.Ping(ctx); err != nil {
				httpkit.Error(c, http.StatusServiceUnavailable, "unhealthy", nil)
				return
			}
		}
		httpkit.OK(c, gin.H{"status": "ok"})
	})

	if dir := app.Config.GetStaticDir(); dir != "" {
		engine.Static("/assets", dir+"/assets")
	}

	v1 := engine.Group("/api/v1")
	pages := engine.Group("/")
	if app.SessionMiddleware != nil {
		v1.Use(app.SessionMiddleware)
		pages.Use(app.SessionMiddleware)
	}

	protected := v1.Group("")
	if app.RequireAuthenticated != nil {
		protected.Use(app.RequireAuthenticated)
	}
	admin := protected.Group("/admin")
	if app.RequireAdmin != nil {
		admin.Use(app.RequireAdmin)
	}

	rc := &apphttp.RouterContext{
		Engine:          engine,
		V1:              v1,
		Pages:           pages,
		Protected:       protected,
		Admin:           admin,
		AuthRateLimiter: httpkit.NewAuthRateLimiter(app.Logger),
	}
	for _, m := range app.Modules {
		m.RegisterRoutes(rc)
		app.Logger.Debug("module routes registered", "module", m.Name())
	}

	if app.PageHandler != nil {
		handlers := []gin.HandlerFunc{app.PageHandler}
		if app.SessionMiddleware != nil {
			handlers = append([]gin.HandlerFunc{app.SessionMiddleware}, handlers...)
		}
		engine.NoRoute(handlers...)
	}

	return engine
}

func corsConfig(cfg apphttp.RouterConfig) cors.Config {
	c := cors.DefaultConfig()
	c.AllowOrigins = cfg.GetCORSOrigins()
	c.AllowCredentials = cfg.GetCORSAllowCreds()
	c.AllowHeaders = append(c.AllowHeaders, "Authorization", httpkit.RequestIDHeader)
	c.ExposeHeaders = []string{httpkit.RequestIDHeader, "Retry-After"}
	c.MaxAge = 12 * time.Hour
	return c
}
