package meals

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the meal entry routes. The group must already
// carry the auth middleware.
func RegisterRoutes(authed *echo.Group, h *Handler) {
	authed.GET("/entries", h.List)
	authed.POST("/entries", h.Create)
	authed.POST("/entries/bulk-copy", h.BulkCopy)
	authed.POST("/entries/recurring", h.CreateRecurring)
	authed.PATCH("/entries/:id/move", h.Move)
	authed.PATCH("/entries/:id/servings", h.UpdateServings)
	authed.DELETE("/entries/:id", h.Delete)
}
