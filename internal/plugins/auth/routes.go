package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ovenlight/mealboard/internal/middleware"
)

// RegisterRoutes sets up auth, user search, and settings routes.
// Login and register are rate limited per IP to slow credential stuffing.
func RegisterRoutes(api *echo.Group, h *Handler, service AuthService) {
	limited := api.Group("/auth", middleware.RateLimit(10, time.Minute))
	limited.POST("/register", h.Register)
	limited.POST("/login", h.Login)

	authed := api.Group("", RequireAuth(service))
	authed.POST("/auth/logout", h.Logout)
	authed.GET("/auth/me", h.Me)
	authed.GET("/users", h.SearchUsers)
	authed.GET("/settings", h.GetSettings)
	authed.PUT("/settings", h.UpdateSettings)
}
