package auth

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ovenlight/mealboard/internal/apperror"
)

// Context keys for storing session data in Echo context. Other plugins
// use these via the exported getter functions below.
const (
	contextKeySession = "auth_session"
	contextKeyUserID  = "auth_user_id"
)

// RequireAuth returns middleware that validates the bearer token and
// injects the session into the request context. Invalid or missing
// tokens get a 401 via the central error handler.
func RequireAuth(service AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := bearerToken(c)
			if token == "" {
				return apperror.NewUnauthorized("authentication required")
			}

			session, err := service.ValidateSession(c.Request().Context(), token)
			if err != nil {
				return err
			}

			c.Set(contextKeySession, session)
			c.Set(contextKeyUserID, session.UserID)

			return next(c)
		}
	}
}

// bearerToken extracts the token from the Authorization header.
func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// UserID returns the authenticated user's ID from the Echo context, or ""
// if RequireAuth did not run.
func UserID(c echo.Context) string {
	id, _ := c.Get(contextKeyUserID).(string)
	return id
}

// SessionFrom returns the session from the Echo context, or nil.
func SessionFrom(c echo.Context) *Session {
	session, _ := c.Get(contextKeySession).(*Session)
	return session
}
