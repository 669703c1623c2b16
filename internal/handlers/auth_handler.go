package handlers

import (
	"net/http"
	"time"

	"tern/internal/api/middleware"
	"tern/internal/config"
	"tern/internal/models"
	"tern/internal/utils"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg}
}

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	TeamName  string `json:"teamName" validate:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type CreateUserRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

func (h *AuthHandler) tokenPair(user *models.User) (string, string, error) {
	expiry := time.Duration(h.cfg.JWT.ExpiryHours) * time.Hour
	token, err := utils.GenerateToken(user, h.cfg.JWT.Secret, expiry)
	if err != nil {
		return "", "", err
	}
	refresh, err := utils.GenerateRefreshToken(user.ID, h.cfg.JWT.Secret)
	if err != nil {
		return "", "", err
	}
	return token, refresh, nil
}

// Register creates a team and its first admin user in one transaction.
// @Summary Register a new account
// @Description Creates a team and its first user. The first user is always
// @Description an admin; further users are invited through the users API.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration details"
// @Success 201 {object} map[string]string "Account created"
// @Failure 400 {object} map[string]string "Validation error or email exists"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to hash password"})
	}

	// Start a transaction
	tx := h.db.Begin()
	if tx.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to start transaction"})
	}

	team := models.Team{Name: req.TeamName}
	if err := tx.Create(&team).Error; err != nil {
		tx.Rollback()
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create team"})
	}

	user := models.User{
		Email:     req.Email,
		Password:  string(hashedPassword),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      models.UserRoleAdmin,
		TeamID:    team.ID,
	}

	if err := tx.Create(&user).Error; err != nil {
		tx.Rollback()
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Email already exists"})
	}

	// Commit the transaction
	if err := tx.Commit().Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to commit transaction"})
	}

	return c.JSON(http.StatusCreated, map[string]string{
		"message": "Account created successfully",
		"teamId":  team.ID,
	})
}

// Login validates credentials and returns a token pair.
// @Summary Login user
// @Description Authenticate user and return JWT and refresh tokens
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} map[string]string "Token pair"
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 401 {object} map[string]string "Invalid credentials"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	}

	token, refresh, err := h.tokenPair(&user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate token"})
	}

	now := time.Now()
	h.db.Model(&user).UpdateColumn("last_login_at", now)

	return c.JSON(http.StatusOK, map[string]string{
		"token":         token,
		"refresh_token": refresh,
	})
}

// RefreshToken exchanges a valid refresh token for a fresh pair.
// @Summary Refresh tokens
// @Description Exchange a refresh token for a new token pair
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RefreshRequest true "Refresh token"
// @Success 200 {object} map[string]string "Token pair"
// @Failure 401 {object} map[string]string "Invalid refresh token"
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c echo.Context) error {
	var req RefreshRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	claims, err := utils.ValidateRefreshToken(req.RefreshToken, h.cfg.JWT.Secret)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid refresh token"})
	}

	// Reload so a role change or deletion takes effect on refresh
	var user models.User
	if err := h.db.First(&user, "id = ?", claims.Subject).Error; err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Invalid refresh token"})
	}

	token, refresh, err := h.tokenPair(&user)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to generate token"})
	}

	return c.JSON(http.StatusOK, map[string]string{
		"token":         token,
		"refresh_token": refresh,
	})
}

// GetMe returns the authenticated user.
// @Summary Get current user
// @Description Returns the authenticated user with their team
// @Tags auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 404 {object} map[string]string "User not found"
// @Router /api/v1/auth/me [get]
func (h *AuthHandler) GetMe(c echo.Context) error {
	var user models.User
	if err := h.db.Preload("Team").First(&user, "id = ?", middleware.GetUserID(c)).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "User not found"})
	}
	return c.JSON(http.StatusOK, user)
}

// ListUsers returns all users of the caller's team.
// @Summary List team users
// @Description Get all users belonging to the caller's team
// @Tags users
// @Produce json
// @Success 200 {array} models.User
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /api/v1/users [get]
func (h *AuthHandler) ListUsers(c echo.Context) error {
	var users []models.User
	if err := h.db.Where("team_id = ?", middleware.GetTeamID(c)).Find(&users).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch users"})
	}
	return c.JSON(http.StatusOK, users)
}

// CreateUser adds a user to the caller's team (admin only).
// @Summary Create user
// @Description Create a user in the caller's team
// @Tags users
// @Accept json
// @Produce json
// @Param request body CreateUserRequest true "User details"
// @Success 201 {object} models.User
// @Failure 400 {object} map[string]string "Validation error or email exists"
// @Router /api/v1/users [post]
func (h *AuthHandler) CreateUser(c echo.Context) error {
	var req CreateUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := c.Validate(req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	role := models.UserRole(req.Role)
	switch role {
	case models.UserRoleAdmin, models.UserRoleMember:
	case "":
		role = models.UserRoleMember
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid role"})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to hash password"})
	}

	user := models.User{
		Email:     req.Email,
		Password:  string(hashedPassword),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      role,
		TeamID:    middleware.GetTeamID(c),
	}

	if err := h.db.Create(&user).Error; err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Email already exists"})
	}

	return c.JSON(http.StatusCreated, user)
}

// UpdateUser updates a team member's details (admin only).
// @Summary Update user
// @Description Update name or role of a user in the caller's team
// @Tags users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} map[string]string "User not found"
// @Router /api/v1/users/{id} [put]
func (h *AuthHandler) UpdateUser(c echo.Context) error {
	var user models.User
	if err := h.db.Where("id = ? AND team_id = ?", c.Param("id"), middleware.GetTeamID(c)).First(&user).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "User not found"})
	}

	// Only update allowed fields
	var updateData struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Role      string `json:"role"`
	}
	if err := c.Bind(&updateData); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	updates := map[string]interface{}{}
	if updateData.FirstName != "" {
		updates["first_name"] = updateData.FirstName
	}
	if updateData.LastName != "" {
		updates["last_name"] = updateData.LastName
	}
	if updateData.Role != "" {
		role := models.UserRole(updateData.Role)
		if role != models.UserRoleAdmin && role != models.UserRoleMember {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid role"})
		}
		updates["role"] = role
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update user"})
		}
	}

	return c.JSON(http.StatusOK, user)
}

// DeleteUser removes a team member (admin only).
// @Summary Delete user
// @Description Delete a user from the caller's team
// @Tags users
// @Param id path string true "User ID"
// @Success 204 "No content"
// @Failure 400 {object} map[string]string "Cannot delete self"
// @Failure 404 {object} map[string]string "User not found"
// @Router /api/v1/users/{id} [delete]
func (h *AuthHandler) DeleteUser(c echo.Context) error {
	if c.Param("id") == middleware.GetUserID(c) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "You cannot delete your own account"})
	}

	var user models.User
	if err := h.db.Where("id = ? AND team_id = ?", c.Param("id"), middleware.GetTeamID(c)).First(&user).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "User not found"})
	}

	if err := h.db.Delete(&user).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to delete user"})
	}

	return c.NoContent(http.StatusNoContent)
}

// GetMyTeam returns the caller's team.
// @Summary Get team
// @Description Returns the caller's team profile
// @Tags teams
// @Produce json
// @Success 200 {object} models.Team
// @Router /api/v1/teams/me [get]
func (h *AuthHandler) GetMyTeam(c echo.Context) error {
	var team models.Team
	if err := h.db.First(&team, "id = ?", middleware.GetTeamID(c)).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Team not found"})
	}
	return c.JSON(http.StatusOK, team)
}

// UpdateMyTeam renames the caller's team (admin only).
// @Summary Update team
// @Description Update the caller's team profile
// @Tags teams
// @Accept json
// @Produce json
// @Success 200 {object} models.Team
// @Router /api/v1/teams/me [put]
func (h *AuthHandler) UpdateMyTeam(c echo.Context) error {
	var team models.Team
	if err := h.db.First(&team, "id = ?", middleware.GetTeamID(c)).Error; err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Team not found"})
	}

	var updateData struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&updateData); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if updateData.Name != "" {
		if err := h.db.Model(&team).Update("name", updateData.Name).Error; err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to update team"})
		}
	}

	return c.JSON(http.StatusOK, team)
}
