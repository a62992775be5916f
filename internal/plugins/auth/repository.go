package auth

import (
	"context"
	"database/sql"
	"fmt"
)

// UserRepository defines persistence operations for users and settings.
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	Search(ctx context.Context, query, excludeUserID string, limit int) ([]UserSummary, error)

	GetSettings(ctx context.Context, userID string) (*Settings, error)
	UpsertSettings(ctx context.Context, settings *Settings) error
}

// userRepo is the MariaDB implementation of UserRepository.
type userRepo struct {
	db *sql.DB
}

// NewUserRepository creates a new MariaDB-backed user repository.
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepo{db: db}
}

// userCols is the column list for user queries.
const userCols = `id, email, display_name, password_hash, created_at`

// scanUser reads a row into a User struct.
func scanUser(scanner interface{ Scan(...any) error }) (*User, error) {
	u := &User{}
	err := scanner.Scan(&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// Create inserts a new user.
func (r *userRepo) Create(ctx context.Context, user *User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, display_name, password_hash) VALUES (?, ?, ?, ?)`,
		user.ID, user.Email, user.DisplayName, user.PasswordHash,
	)
	return err
}

// FindByID returns a user by ID, or nil if not found.
func (r *userRepo) FindByID(ctx context.Context, id string) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ?`, id))
}

// FindByEmail returns a user by email, or nil if not found.
func (r *userRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE email = ?`, email))
}

// EmailExists reports whether an account with the email already exists.
func (r *userRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ?`, email).Scan(&count)
	return count > 0, err
}

// Search returns users whose email or display name contains the query,
// excluding the requesting user. Ordered by display name for stable results.
func (r *userRepo) Search(ctx context.Context, query, excludeUserID string, limit int) ([]UserSummary, error) {
	pattern := "%" + query + "%"
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, display_name FROM users
		 WHERE (email LIKE ? OR display_name LIKE ?) AND id != ?
		 ORDER BY display_name LIMIT ?`,
		pattern, pattern, excludeUserID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []UserSummary
	for rows.Next() {
		var u UserSummary
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// GetSettings returns the user's planner settings, or defaults if none
// have been stored yet.
func (r *userRepo) GetSettings(ctx context.Context, userID string) (*Settings, error) {
	s := &Settings{UserID: userID}
	err := r.db.QueryRowContext(ctx,
		`SELECT default_servings, default_calendar_id FROM user_settings WHERE user_id = ?`,
		userID).Scan(&s.DefaultServings, &s.DefaultCalendarID)
	if err == sql.ErrNoRows {
		s.DefaultServings = 2
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return s, nil
}

// UpsertSettings inserts or replaces the user's planner settings.
func (r *userRepo) UpsertSettings(ctx context.Context, settings *Settings) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, default_servings, default_calendar_id)
		 VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE default_servings = VALUES(default_servings),
		                         default_calendar_id = VALUES(default_calendar_id)`,
		settings.UserID, settings.DefaultServings, settings.DefaultCalendarID,
	)
	return err
}
