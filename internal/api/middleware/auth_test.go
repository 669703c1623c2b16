package middleware

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"tern/internal/models"
	"tern/internal/utils"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "tern.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.Team{}, &models.TeamStats{}, &models.MailingList{},
		&models.User{}, &models.APIKey{},
	))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, role models.UserRole) *models.User {
	t.Helper()
	team := &models.Team{Name: "Acme", PlanTier: models.PlanTierPremium}
	require.NoError(t, db.Create(team).Error)
	user := &models.User{
		Email:    "ops@example.com",
		Password: "stored-hash",
		Role:     role,
		TeamID:   team.ID,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func requestContext(method, target string, headers map[string]string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func passthrough(called *bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		*called = true
		return c.NoContent(http.StatusOK)
	}
}

func requireAuthError(t *testing.T, err error, code int, message string) {
	t.Helper()
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	require.Equal(t, code, httpErr.Code)
	require.Equal(t, message, httpErr.Message)
}

func TestAuthMiddlewareAcceptsBearerToken(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, models.UserRoleMember)
	token, err := utils.GenerateToken(user, "test-secret", time.Hour)
	require.NoError(t, err)

	c, _ := requestContext(http.MethodGet, "/api/v1/contacts", map[string]string{
		"Authorization": "Bearer " + token,
	})
	called := false
	err = NewAuthMiddleware(db, "test-secret").Middleware()(passthrough(&called))(c)
	require.NoError(t, err)
	require.True(t, called)

	require.Equal(t, user.ID, GetUserID(c))
	require.Equal(t, user.TeamID, GetTeamID(c))
	require.Equal(t, string(models.UserRoleMember), GetUserRole(c))
	require.False(t, IsAPIKey(c))
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	db := testDB(t)

	c, _ := requestContext(http.MethodGet, "/api/v1/contacts", nil)
	called := false
	err := NewAuthMiddleware(db, "test-secret").Middleware()(passthrough(&called))(c)

	requireAuthError(t, err, http.StatusUnauthorized, "Missing authorization header")
	require.False(t, called)
}

func TestAuthMiddlewareRejectsMalformedHeader(t *testing.T) {
	db := testDB(t)
	mw := NewAuthMiddleware(db, "test-secret").Middleware()

	for _, header := range []string{"Bearer", "Token abc", "Bearer a b"} {
		c, _ := requestContext(http.MethodGet, "/api/v1/contacts", map[string]string{
			"Authorization": header,
		})
		called := false
		err := mw(passthrough(&called))(c)
		requireAuthError(t, err, http.StatusUnauthorized, "Invalid authorization header format")
		require.False(t, called)
	}
}

func TestAuthMiddlewareRejectsForgedToken(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, models.UserRoleAdmin)
	token, err := utils.GenerateToken(user, "another-secret", time.Hour)
	require.NoError(t, err)

	c, _ := requestContext(http.MethodGet, "/api/v1/contacts", map[string]string{
		"Authorization": "Bearer " + token,
	})
	called := false
	err = NewAuthMiddleware(db, "test-secret").Middleware()(passthrough(&called))(c)

	requireAuthError(t, err, http.StatusUnauthorized, "Invalid token")
	require.False(t, called)
}

func TestAuthMiddlewareRejectsExpiredToken(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, models.UserRoleAdmin)
	token, err := utils.GenerateToken(user, "test-secret", -time.Hour)
	require.NoError(t, err)

	c, _ := requestContext(http.MethodGet, "/api/v1/contacts", map[string]string{
		"Authorization": "Bearer " + token,
	})
	called := false
	err = NewAuthMiddleware(db, "test-secret").Middleware()(passthrough(&called))(c)

	// Expiry is enforced during parsing, so the caller sees a generic rejection.
	requireAuthError(t, err, http.StatusUnauthorized, "Invalid token")
	require.False(t, called)
}

func TestAuthMiddlewareAcceptsAPIKey(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, models.UserRoleMember)
	key := &models.APIKey{Name: "ci", UserID: user.ID, TeamID: user.TeamID}
	require.NoError(t, db.Create(key).Error)

	c, _ := requestContext(http.MethodGet, "/api/v1/contacts", map[string]string{
		"X-API-Key": key.Key,
	})
	called := false
	err := NewAuthMiddleware(db, "test-secret").Middleware()(passthrough(&called))(c)
	require.NoError(t, err)
	require.True(t, called)

	require.Equal(t, user.ID, GetUserID(c))
	require.Equal(t, user.TeamID, GetTeamID(c))
	require.True(t, IsAPIKey(c))

	var stored models.APIKey
	require.NoError(t, db.First(&stored, "id = ?", key.ID).Error)
	require.NotNil(t, stored.LastUsedAt)
	require.WithinDuration(t, time.Now(), *stored.LastUsedAt, time.Minute)
}

func TestAuthMiddlewareRejectsUnknownAPIKey(t *testing.T) {
	db := testDB(t)

	c, _ := requestContext(http.MethodGet, "/api/v1/contacts", map[string]string{
		"X-API-Key": "tern_deadbeef",
	})
	called := false
	err := NewAuthMiddleware(db, "test-secret").Middleware()(passthrough(&called))(c)

	requireAuthError(t, err, http.StatusUnauthorized, "Invalid API key")
	require.False(t, called)
}

func TestAuthMiddlewareRejectsExpiredAPIKey(t *testing.T) {
	db := testDB(t)
	user := seedUser(t, db, models.UserRoleMember)
	key := &models.APIKey{Name: "ci", UserID: user.ID, TeamID: user.TeamID}
	require.NoError(t, db.Create(key).Error)
	require.NoError(t, db.Model(key).Update("expires_at", time.Now().Add(-time.Hour)).Error)

	c, _ := requestContext(http.MethodGet, "/api/v1/contacts", map[string]string{
		"X-API-Key": key.Key,
	})
	called := false
	err := NewAuthMiddleware(db, "test-secret").Middleware()(passthrough(&called))(c)

	requireAuthError(t, err, http.StatusUnauthorized, "API key has expired")
	require.False(t, called)
}

func TestContextHelpersWithEmptyContext(t *testing.T) {
	c, _ := requestContext(http.MethodGet, "/", nil)

	require.Empty(t, GetUserID(c))
	require.Empty(t, GetTeamID(c))
	require.Empty(t, GetUserRole(c))
	require.False(t, IsAPIKey(c))
}
