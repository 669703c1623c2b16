package api

import (
	"context"
	"fmt"
	"net/http"

	"tern/internal/config"
	"tern/internal/services"
	"tern/internal/tasks"
	"tern/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"
)

// Dependencies carries the wired services the HTTP layer exposes.
type Dependencies struct {
	Campaigns      *services.CampaignService
	Pipeline       *services.SendPipeline
	Contacts       *services.ContactService
	SMTP           *services.SMTPService
	Plans          *services.PlanService
	Tracking       *services.TrackingService
	Analytics      *services.AnalyticsService
	Deliverability *services.DeliverabilityService
	Alerts         *services.AlertService
	Storage        *services.StorageService
	Tasks          *tasks.TaskClient
	Redis          *utils.RedisClient
}

// Server wraps the echo instance and everything route handlers need.
type Server struct {
	echo   *echo.Echo
	config *config.Config
	db     *gorm.DB
	deps   Dependencies
}

// CustomValidator adapts go-playground/validator to echo's Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// NewServer builds the HTTP server and registers every route.
func NewServer(cfg *config.Config, db *gorm.DB, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization, "X-API-Key"},
	}))

	s := &Server{
		echo:   e,
		config: cfg,
		db:     db,
		deps:   deps,
	}
	s.registerRoutes()
	return s
}

// Start blocks serving HTTP until the listener fails or is shut down.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// healthCheck godoc
// @Summary Health check
// @Description Reports server and database health
// @Produce json
// @Success 200 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /health [get]
func (s *Server) healthCheck(c echo.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(c.Request().Context()) != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded",
			"db":     "unreachable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
