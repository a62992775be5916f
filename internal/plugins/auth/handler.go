package auth

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ovenlight/mealboard/internal/apperror"
)

// Handler serves the auth, user search, and settings endpoints.
type Handler struct {
	service AuthService
}

// NewHandler creates a new auth handler.
func NewHandler(service AuthService) *Handler {
	return &Handler{service: service}
}

// Register creates a new account.
// POST /api/v1/auth/register
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	user, err := h.service.Register(c.Request().Context(), RegisterInput{
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

// Login authenticates and returns a bearer token.
// POST /api/v1/auth/login
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}

	token, user, err := h.service.Login(c.Request().Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"token": token,
		"user":  user,
	})
}

// Logout destroys the current session.
// POST /api/v1/auth/logout
func (h *Handler) Logout(c echo.Context) error {
	session := SessionFrom(c)
	if session != nil {
		if err := h.service.DestroySession(c.Request().Context(), session.Token); err != nil {
			return apperror.NewInternal(err)
		}
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user.
// GET /api/v1/auth/me
func (h *Handler) Me(c echo.Context) error {
	user, err := h.service.GetUser(c.Request().Context(), UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// SearchUsers finds share candidates.
// GET /api/v1/users?q=alice&limit=10
func (h *Handler) SearchUsers(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	users, err := h.service.SearchUsers(c.Request().Context(), UserID(c), c.QueryParam("q"), limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data":  users,
		"total": len(users),
	})
}

// GetSettings returns the user's planner settings.
// GET /api/v1/settings
func (h *Handler) GetSettings(c echo.Context) error {
	settings, err := h.service.GetSettings(c.Request().Context(), UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settings)
}

// UpdateSettings stores new planner settings.
// PUT /api/v1/settings
func (h *Handler) UpdateSettings(c echo.Context) error {
	var req UpdateSettingsRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	settings, err := h.service.UpdateSettings(c.Request().Context(), UserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, settings)
}
