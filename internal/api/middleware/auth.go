package middleware

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"tern/internal/models"
	"tern/internal/utils"

	"github.com/golang-jwt/jwt/v4"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// AuthMiddleware authenticates requests with either an API key or a JWT.
type AuthMiddleware struct {
	db        *gorm.DB
	jwtSecret string
}

func NewAuthMiddleware(db *gorm.DB, jwtSecret string) *AuthMiddleware {
	return &AuthMiddleware{
		db:        db,
		jwtSecret: jwtSecret,
	}
}

func (m *AuthMiddleware) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// Check API Key first
			apiKey := c.Request().Header.Get("X-API-Key")
			if apiKey != "" {
				return m.validateAPIKey(c, apiKey, next)
			}

			// Check JWT Token
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization header")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			return m.validateJWT(c, tokenParts[1], next)
		}
	}
}

func (m *AuthMiddleware) validateAPIKey(c echo.Context, key string, next echo.HandlerFunc) error {
	apiKey := &models.APIKey{}
	if err := m.db.Where("key = ?", key).First(apiKey).Error; err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid API key")
	}

	if apiKey.Expired(time.Now()) {
		return echo.NewHTTPError(http.StatusUnauthorized, "API key has expired")
	}

	// Stamp usage without blocking the request on failure
	m.db.Model(apiKey).UpdateColumn("last_used_at", time.Now())

	// Set context values
	c.Set("teamID", apiKey.TeamID)
	c.Set("userID", apiKey.UserID)
	c.Set("apiKeyID", apiKey.ID)
	c.Set("isAPIKey", true)

	return next(c)
}

func (m *AuthMiddleware) validateJWT(c echo.Context, tokenString string, next echo.HandlerFunc) error {
	claims := &utils.AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.jwtSecret), nil
	})

	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
	}

	if !token.Valid {
		return echo.NewHTTPError(http.StatusUnauthorized, "Token is not valid")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return echo.NewHTTPError(http.StatusUnauthorized, "Token has expired")
	}

	// Set context values
	c.Set("userID", claims.UserID)
	c.Set("teamID", claims.TeamID)
	c.Set("email", claims.Email)
	c.Set("role", claims.Role)
	c.Set("isAPIKey", false)

	return next(c)
}

// Helper functions to get values from context
func GetUserID(c echo.Context) string {
	if id, ok := c.Get("userID").(string); ok {
		return id
	}
	return ""
}

func GetTeamID(c echo.Context) string {
	if id, ok := c.Get("teamID").(string); ok {
		return id
	}
	return ""
}

func GetUserRole(c echo.Context) string {
	if role, ok := c.Get("role").(string); ok {
		return role
	}
	return ""
}

func IsAPIKey(c echo.Context) bool {
	if isAPIKey, ok := c.Get("isAPIKey").(bool); ok {
		return isAPIKey
	}
	return false
}
