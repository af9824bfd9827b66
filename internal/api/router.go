package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lvidal/pricealert/internal/app"
	iauth "github.com/lvidal/pricealert/internal/auth"
	"github.com/lvidal/pricealert/internal/handlers"
	"github.com/lvidal/pricealert/internal/middleware"
)

// Handlers bundles the request handlers mounted by the router.
type Handlers struct {
	Auth        *handlers.AuthHandler
	Products    *handlers.ProductHandler
	Alerts      *handlers.AlertHandler
	VerifyEmail *handlers.VerifyEmailHandler
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
func NewRouter(cfg *app.Config, jwt *iauth.JWTService, h Handlers) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if h.Auth == nil || h.Products == nil || h.Alerts == nil || h.VerifyEmail == nil {
		return nil, fmt.Errorf("all handlers must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.NoRoute(middleware.NotFoundHandler)

	// Public endpoints
	if cfg.Monitoring.Health.Enabled {
		r.GET("/health", handlers.Health())
	}
	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := cfg.Monitoring.Prometheus.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// Verification links arrive from email clients without credentials.
	r.GET("/verifyEmail", h.VerifyEmail.Verify)

	// Public auth routes
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
	}

	// Protected routes
	api := r.Group("/api")
	api.Use(middleware.Auth(jwt))

	api.GET("/auth/me", h.Auth.Me)

	registerProductRoutes(api, h.Products)
	registerAlertRoutes(api, h.Alerts)

	return r, nil
}
