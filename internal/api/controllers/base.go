package controllers

import (
	"net/http"
	"reflect"
	"regexp"
	"strconv"

	"tern/internal/api/middleware"
	"tern/internal/services"

	"github.com/labstack/echo/v4"
)

// Filter keys come straight from the query string and end up in SQL, so
// only plain column identifiers pass.
var filterKeyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// BaseController provides generic CRUD operations for any model
type BaseController[T any] struct {
	service    services.BaseService[T]
	teamScoped bool
}

// NewBaseController creates a new base controller
func NewBaseController[T any](service services.BaseService[T]) *BaseController[T] {
	return &BaseController[T]{
		service: service,
	}
}

// TeamScoped confines every operation to the authenticated team. Creates are
// stamped with the caller's team and reads refuse rows owned by other teams.
func (c *BaseController[T]) TeamScoped() *BaseController[T] {
	c.teamScoped = true
	return c
}

// Create handles creation of new entities
func (c *BaseController[T]) Create(ctx echo.Context) error {
	var entity T
	if err := ctx.Bind(&entity); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if c.teamScoped {
		stampTeamID(&entity, middleware.GetTeamID(ctx))
		stampUserID(&entity, middleware.GetUserID(ctx))
	}

	if err := ctx.Validate(&entity); err != nil {
		return err
	}

	if err := c.service.Create(ctx.Request().Context(), &entity); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ctx.JSON(http.StatusCreated, entity)
}

// Get handles retrieval of a single entity
func (c *BaseController[T]) Get(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing id parameter")
	}

	entity, err := c.service.Get(ctx.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "entity not found")
	}

	// A row owned by another team looks identical to a missing one
	if c.teamScoped && entityTeamID(entity) != middleware.GetTeamID(ctx) {
		return echo.NewHTTPError(http.StatusNotFound, "entity not found")
	}

	return ctx.JSON(http.StatusOK, entity)
}

// List handles retrieval of multiple entities with pagination and filtering
func (c *BaseController[T]) List(ctx echo.Context) error {
	// Parse pagination parameters
	page, _ := strconv.Atoi(ctx.QueryParam("page"))
	limit, _ := strconv.Atoi(ctx.QueryParam("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	// Parse filters from query parameters
	filters := make(map[string]interface{})
	for key, values := range ctx.QueryParams() {
		if key == "page" || key == "limit" || len(values) == 0 {
			continue
		}
		if !filterKeyPattern.MatchString(key) {
			continue
		}
		filters[key] = values[0]
	}

	if c.teamScoped {
		filters["team_id"] = middleware.GetTeamID(ctx)
	}

	entities, total, err := c.service.List(ctx.Request().Context(), page, limit, filters)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ctx.JSON(http.StatusOK, map[string]interface{}{
		"data":  entities,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

// Update handles updating an existing entity
func (c *BaseController[T]) Update(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing id parameter")
	}

	if c.teamScoped {
		existing, err := c.service.Get(ctx.Request().Context(), id)
		if err != nil || entityTeamID(existing) != middleware.GetTeamID(ctx) {
			return echo.NewHTTPError(http.StatusNotFound, "entity not found")
		}
	}

	var entity T
	if err := ctx.Bind(&entity); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if c.teamScoped {
		// An update never moves a row to another team
		stampTeamID(&entity, middleware.GetTeamID(ctx))
	}

	if err := ctx.Validate(&entity); err != nil {
		return err
	}

	if err := c.service.Update(ctx.Request().Context(), id, &entity); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ctx.JSON(http.StatusOK, entity)
}

// Delete handles deletion of an entity
func (c *BaseController[T]) Delete(ctx echo.Context) error {
	id := ctx.Param("id")
	if id == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing id parameter")
	}

	if c.teamScoped {
		existing, err := c.service.Get(ctx.Request().Context(), id)
		if err != nil || entityTeamID(existing) != middleware.GetTeamID(ctx) {
			return echo.NewHTTPError(http.StatusNotFound, "entity not found")
		}
	}

	if err := c.service.Delete(ctx.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return ctx.NoContent(http.StatusNoContent)
}

// RegisterRoutes registers CRUD routes for the controller
func (c *BaseController[T]) RegisterRoutes(g *echo.Group, path string, methods ...string) {
	if len(methods) == 0 {
		methods = []string{"POST", "GET", "PUT", "DELETE"}
	}

	for _, method := range methods {
		switch method {
		case "POST":
			g.POST(path, c.Create)
		case "GET":
			g.GET(path+"/:id", c.Get)
			g.GET(path, c.List)
		case "PUT":
			g.PUT(path+"/:id", c.Update)
		case "DELETE":
			g.DELETE(path+"/:id", c.Delete)
		}
	}
}

// teamIDField returns the TeamID string field of entity, if it has one.
func teamIDField(entity any) (reflect.Value, bool) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, false
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, false
	}
	f := v.FieldByName("TeamID")
	if !f.IsValid() || f.Kind() != reflect.String {
		return reflect.Value{}, false
	}
	return f, true
}

func stampTeamID(entity any, teamID string) {
	if f, ok := teamIDField(entity); ok && f.CanSet() {
		f.SetString(teamID)
	}
}

// stampUserID records the creating user on models that track one, without
// overwriting an explicit value.
func stampUserID(entity any, userID string) {
	v := reflect.ValueOf(entity)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return
	}
	f := v.FieldByName("UserID")
	if f.IsValid() && f.Kind() == reflect.String && f.CanSet() && f.String() == "" {
		f.SetString(userID)
	}
}

func entityTeamID(entity any) string {
	if f, ok := teamIDField(entity); ok {
		return f.String()
	}
	return ""
}
