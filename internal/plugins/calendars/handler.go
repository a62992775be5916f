package calendars

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ovenlight/mealboard/internal/apperror"
	"github.com/ovenlight/mealboard/internal/plugins/auth"
)

// Handler serves the calendar and sharing endpoints.
type Handler struct {
	service CalendarService
}

// NewHandler creates a new calendar handler.
func NewHandler(service CalendarService) *Handler {
	return &Handler{service: service}
}

// Create makes a new calendar owned by the caller.
// POST /api/v1/calendars
func (h *Handler) Create(c echo.Context) error {
	var req CreateCalendarRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	cal, err := h.service.Create(c.Request().Context(), auth.UserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, cal)
}

// List returns all calendars the caller can access.
// GET /api/v1/calendars
func (h *Handler) List(c echo.Context) error {
	calendars, err := h.service.List(c.Request().Context(), auth.UserID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data":  calendars,
		"total": len(calendars),
	})
}

// Get returns a single calendar.
// GET /api/v1/calendars/:id
func (h *Handler) Get(c echo.Context) error {
	cal, err := h.service.Get(c.Request().Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cal)
}

// Rename updates a calendar's name and color.
// PUT /api/v1/calendars/:id
func (h *Handler) Rename(c echo.Context) error {
	var req RenameCalendarRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	cal, err := h.service.Rename(c.Request().Context(), auth.UserID(c), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, cal)
}

// Delete removes a calendar.
// DELETE /api/v1/calendars/:id
func (h *Handler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), auth.UserID(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// ListShares returns the grants on a calendar.
// GET /api/v1/calendars/:id/shares
func (h *Handler) ListShares(c echo.Context) error {
	grants, err := h.service.ListShares(c.Request().Context(), auth.UserID(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data":  grants,
		"total": len(grants),
	})
}

// Grant shares a calendar with another user.
// POST /api/v1/calendars/:id/shares
func (h *Handler) Grant(c echo.Context) error {
	var req ShareRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	if err := h.service.Grant(c.Request().Context(), auth.UserID(c), c.Param("id"), req); err != nil {
		return err
	}
	return c.NoContent(http.StatusCreated)
}

// UpdateShare changes an existing grant's role.
// PUT /api/v1/calendars/:id/shares/:userId
func (h *Handler) UpdateShare(c echo.Context) error {
	var req ShareRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	req.UserID = c.Param("userId")
	if err := h.service.UpdateShare(c.Request().Context(), auth.UserID(c), c.Param("id"), req); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Revoke removes a grant.
// DELETE /api/v1/calendars/:id/shares/:userId
func (h *Handler) Revoke(c echo.Context) error {
	if err := h.service.Revoke(c.Request().Context(), auth.UserID(c), c.Param("id"), c.Param("userId")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Leave removes the caller's own grant on a shared calendar.
// POST /api/v1/calendars/:id/leave
func (h *Handler) Leave(c echo.Context) error {
	if err := h.service.Leave(c.Request().Context(), auth.UserID(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
