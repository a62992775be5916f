package calendars

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up calendar and sharing routes. The group must
// already carry the auth middleware.
func RegisterRoutes(authed *echo.Group, h *Handler) {
	authed.POST("/calendars", h.Create)
	authed.GET("/calendars", h.List)
	authed.GET("/calendars/:id", h.Get)
	authed.PUT("/calendars/:id", h.Rename)
	authed.DELETE("/calendars/:id", h.Delete)

	authed.GET("/calendars/:id/shares", h.ListShares)
	authed.POST("/calendars/:id/shares", h.Grant)
	authed.PUT("/calendars/:id/shares/:userId", h.UpdateShare)
	authed.DELETE("/calendars/:id/shares/:userId", h.Revoke)
	authed.POST("/calendars/:id/leave", h.Leave)
}
