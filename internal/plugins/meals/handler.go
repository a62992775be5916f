package meals

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ovenlight/mealboard/internal/apperror"
	"github.com/ovenlight/mealboard/internal/dateutil"
	"github.com/ovenlight/mealboard/internal/plugins/auth"
)

// Handler serves the meal entry endpoints.
type Handler struct {
	service EntryService
}

// NewHandler creates a new meals handler.
func NewHandler(service EntryService) *Handler {
	return &Handler{service: service}
}

// List returns entries for a date range across one or more calendars.
// GET /api/v1/entries?calendars=a,b&from=2024-03-11&to=2024-03-17
func (h *Handler) List(c echo.Context) error {
	from, err := dateutil.ParseDayKey(c.QueryParam("from"))
	if err != nil {
		return apperror.NewValidation(err.Error())
	}
	to, err := dateutil.ParseDayKey(c.QueryParam("to"))
	if err != nil {
		return apperror.NewValidation(err.Error())
	}

	var calendarIDs []string
	for _, id := range strings.Split(c.QueryParam("calendars"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			calendarIDs = append(calendarIDs, id)
		}
	}

	entries, err := h.service.ListRange(c.Request().Context(), auth.UserID(c), calendarIDs, from, to)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"data":  entries,
		"total": len(entries),
	})
}

// Create inserts one entry.
// POST /api/v1/entries
func (h *Handler) Create(c echo.Context) error {
	var req CreateEntryRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	entry, err := h.service.Create(c.Request().Context(), auth.UserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, entry)
}

// Move relocates an entry to another slot.
// PATCH /api/v1/entries/:id/move
func (h *Handler) Move(c echo.Context) error {
	var req MoveEntryRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	entry, err := h.service.Move(c.Request().Context(), auth.UserID(c), c.Param("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entry)
}

// UpdateServings changes an entry's serving count.
// PATCH /api/v1/entries/:id/servings
func (h *Handler) UpdateServings(c echo.Context) error {
	var req UpdateServingsRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	entry, err := h.service.UpdateServings(c.Request().Context(), auth.UserID(c), c.Param("id"), req.Servings)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entry)
}

// Delete removes an entry.
// DELETE /api/v1/entries/:id
func (h *Handler) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), auth.UserID(c), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// BulkCopy duplicates a week of entries onto another week.
// POST /api/v1/entries/bulk-copy
func (h *Handler) BulkCopy(c echo.Context) error {
	var req BulkCopyRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	result, err := h.service.BulkCopy(c.Request().Context(), auth.UserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, result)
}

// CreateRecurring expands a weekly repeat into dated entries.
// POST /api/v1/entries/recurring
func (h *Handler) CreateRecurring(c echo.Context) error {
	var req RecurringRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request body")
	}
	result, err := h.service.CreateRecurring(c.Request().Context(), auth.UserID(c), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, result)
}
