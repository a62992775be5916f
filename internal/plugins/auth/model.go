// Package auth handles user accounts, session tokens, user search, and
// per-user planner settings for mealboard. Sessions are random bearer
// tokens stored in Redis with a TTL; there is no server-side session
// state beyond the token-to-user mapping.
package auth

import (
	"time"
)

// User represents a registered mealboard user.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	PasswordHash string    `json:"-"` // Never expose in JSON responses.
	CreatedAt    time.Time `json:"created_at"`
}

// UserSummary is the trimmed user shape returned by search, used when
// picking a collaborator to share a calendar with.
type UserSummary struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
}

// Session is the resolved identity behind a bearer token.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Settings holds per-user planner defaults. DefaultServings seeds the
// servings field of every new add-entry interaction; DefaultCalendarID is
// the calendar preselected when the board opens.
type Settings struct {
	UserID            string  `json:"user_id"`
	DefaultServings   int     `json:"default_servings"`
	DefaultCalendarID *string `json:"default_calendar_id,omitempty"`
}

// --- Request DTOs (bound from HTTP requests) ---

// RegisterRequest holds the data submitted to create an account.
type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

// LoginRequest holds the data submitted to log in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateSettingsRequest holds a settings update.
type UpdateSettingsRequest struct {
	DefaultServings   int     `json:"default_servings"`
	DefaultCalendarID *string `json:"default_calendar_id"`
}

// --- Service Input DTOs ---

// RegisterInput is the validated input for creating a new user.
type RegisterInput struct {
	Email       string
	DisplayName string
	Password    string
}

// LoginInput is the validated input for authentication.
type LoginInput struct {
	Email    string
	Password string
}
