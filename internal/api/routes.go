package api

import (
	"net/http"

	"tern/internal/api/middleware"
	"tern/internal/api/registry"
	"tern/internal/handlers"
	"tern/internal/monitoring"
	"tern/internal/routes"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "tern/internal/docs"
)

func (s *Server) registerRoutes() {
	s.echo.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "Hello, World!")
	})
	// Health check
	s.echo.GET("/health", s.healthCheck)
	s.echo.GET("/metrics", echo.WrapHandler(monitoring.MetricsHandler()))
	s.echo.GET("/swagger/*", echoSwagger.WrapHandler)

	rateLimit := middleware.RateLimiter(middleware.CreateDefaultRateLimitConfig(s.deps.Redis.Client))

	// Public beacon endpoints. No auth: these are opened by mail clients.
	tracking := handlers.NewTrackingHandler(s.deps.Tracking, s.deps.Analytics)
	routes.RegisterBeaconRoutes(s.echo, tracking, rateLimit)

	// Public auth endpoints
	auth := handlers.NewAuthHandler(s.db, s.config)
	routes.RegisterPublicAuthRoutes(s.echo, auth, rateLimit)

	// API v1 group
	api := s.echo.Group("/api/v1")
	authmw := middleware.NewAuthMiddleware(s.db, s.config.JWT.Secret)
	api.Use(authmw.Middleware())
	api.Use(rateLimit)

	// Register CRUD routes for all models
	registry.RegisterCRUDRoutes(api, s.db)

	routes.RegisterProtectedAuthRoutes(api, auth, s.db)
	routes.RegisterAnalyticsRoutes(api, tracking, s.db)

	campaigns := handlers.NewCampaignHandler(s.deps.Campaigns, s.deps.Pipeline, s.deps.Analytics, s.deps.Tasks)
	routes.RegisterCampaignRoutes(api, campaigns, s.db)

	contacts := handlers.NewContactHandler(s.db, s.deps.Contacts)
	routes.RegisterContactRoutes(api, contacts, s.db)

	smtp := handlers.NewSMTPHandler(s.config, s.deps.SMTP, s.deps.Plans)
	routes.RegisterSMTPRoutes(api, smtp, s.db)

	deliverability := handlers.NewDeliverabilityHandler(s.deps.Deliverability)
	routes.RegisterDeliverabilityRoutes(api, deliverability, s.db)

	uploads := handlers.NewUploadHandler(s.db, s.deps.Storage)
	routes.RegisterUploadRoutes(api, uploads, s.db)

	plans := handlers.NewPlanHandler(s.db, s.deps.Plans, s.deps.Redis)
	routes.RegisterPlanRoutes(api, plans, s.db)

	alerts := handlers.NewAlertHandler(s.deps.Alerts)
	routes.RegisterAlertRoutes(api, alerts, s.db)
}
