package middleware

import (
	"net/http"
	"strings"

	"tern/internal/models"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// Permission scopes
const (
	ScopeRead  = "read"
	ScopeWrite = "write"
)

// GetRequiredPermissionForMethod returns the required permission scope for a given HTTP method
func GetRequiredPermissionForMethod(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead:
		return ScopeRead
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return ScopeWrite
	default:
		return ""
	}
}

// roleAllows reports whether a role satisfies a permission scope. Admin roles
// hold every scope; members hold read on everything their team owns.
func roleAllows(role string, scope string) bool {
	switch models.UserRole(role) {
	case models.UserRoleSuperAdmin, models.UserRoleAdmin:
		return true
	case models.UserRoleMember:
		return scope == ScopeRead
	default:
		return false
	}
}

// RequirePermissions middleware checks if the user or API key holds the
// required permissions. API keys act with full access to their team's
// resources; JWT sessions are checked against the user's role.
func RequirePermissions(db *gorm.DB, requiredPermissions ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IsAPIKey(c) {
				return next(c)
			}

			role := GetUserRole(c)
			for _, required := range requiredPermissions {
				parts := strings.Split(required, ":")
				if len(parts) != 2 {
					continue
				}
				if !roleAllows(role, parts[1]) {
					return echo.NewHTTPError(http.StatusForbidden, "insufficient permissions")
				}
			}

			return next(c)
		}
	}
}

// RequireAdmin restricts a route to admin users. API keys are rejected so
// that destructive team operations always trace back to a person.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if IsAPIKey(c) {
				return echo.NewHTTPError(http.StatusForbidden, "admin access requires a user session")
			}
			switch models.UserRole(GetUserRole(c)) {
			case models.UserRoleSuperAdmin, models.UserRoleAdmin:
				return next(c)
			default:
				return echo.NewHTTPError(http.StatusForbidden, "admin access required")
			}
		}
	}
}
