package app

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ovenlight/mealboard/internal/plugins/auth"
	"github.com/ovenlight/mealboard/internal/plugins/calendars"
	"github.com/ovenlight/mealboard/internal/plugins/meals"
)

// RegisterRoutes wires up every plugin: repositories over the shared DB
// pool, services on top, handlers on top of those, and finally the routes.
// This is the single place where all routes are aggregated.
func (a *App) RegisterRoutes() {
	e := a.Echo

	// Health check endpoint for container orchestration. Pings both
	// backing stores so a wedged dependency flips the probe.
	e.GET("/healthz", a.healthz)

	api := e.Group("/api/v1")

	// --- auth plugin ---
	userRepo := auth.NewUserRepository(a.DB)
	authService := auth.NewAuthService(userRepo, a.Redis, a.Config.Session.TTL)
	auth.RegisterRoutes(api, auth.NewHandler(authService), authService)

	// Everything below requires a valid session.
	authed := api.Group("", auth.RequireAuth(authService))

	// --- calendars plugin ---
	calendarRepo := calendars.NewCalendarRepository(a.DB)
	calendarService := calendars.NewCalendarService(calendarRepo)
	calendars.RegisterRoutes(authed, calendars.NewHandler(calendarService))

	// --- meals plugin ---
	// The calendars service doubles as the permission oracle for entries.
	entryRepo := meals.NewEntryRepository(a.DB)
	entryService := meals.NewEntryService(entryRepo, calendarService)
	meals.RegisterRoutes(authed, meals.NewHandler(entryService))
}

// healthz reports liveness of the server and its backing stores.
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	if err := a.DB.PingContext(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded", "database": err.Error(),
		})
	}
	if err := a.Redis.Ping(ctx).Err(); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status": "degraded", "redis": err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
