package calendars

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CalendarRepository defines data access for calendars and share grants.
type CalendarRepository interface {
	Create(ctx context.Context, cal *Calendar) error
	FindByID(ctx context.Context, id string) (*Calendar, error)
	// ListAccessible returns calendars the user owns or has a grant on,
	// with Role populated.
	ListAccessible(ctx context.Context, userID string) ([]Calendar, error)
	Update(ctx context.Context, cal *Calendar) error
	Delete(ctx context.Context, id string) error
	CountOwned(ctx context.Context, userID string) (int, error)

	GetGrant(ctx context.Context, calendarID, userID string) (Role, error)
	ListGrants(ctx context.Context, calendarID string) ([]ShareGrant, error)
	UpsertGrant(ctx context.Context, calendarID, userID string, role Role) error
	DeleteGrant(ctx context.Context, calendarID, userID string) error
}

// mysqlCalendarRepository implements CalendarRepository against MariaDB.
type mysqlCalendarRepository struct {
	db *sql.DB
}

// NewCalendarRepository creates a MariaDB-backed calendar repository.
func NewCalendarRepository(db *sql.DB) CalendarRepository {
	return &mysqlCalendarRepository{db: db}
}

func (r *mysqlCalendarRepository) Create(ctx context.Context, cal *Calendar) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO calendars (id, owner_id, name, color, is_default, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cal.ID, cal.OwnerID, cal.Name, cal.Color, cal.IsDefault, cal.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting calendar: %w", err)
	}
	return nil
}

func (r *mysqlCalendarRepository) FindByID(ctx context.Context, id string) (*Calendar, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, color, is_default, created_at
		 FROM calendars WHERE id = ?`, id)

	var cal Calendar
	err := row.Scan(&cal.ID, &cal.OwnerID, &cal.Name, &cal.Color, &cal.IsDefault, &cal.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning calendar: %w", err)
	}
	return &cal, nil
}

func (r *mysqlCalendarRepository) ListAccessible(ctx context.Context, userID string) ([]Calendar, error) {
	// Owned calendars first, then grants. The role column distinguishes
	// the two sources.
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.owner_id, c.name, c.color, c.is_default, c.created_at, 'owner' AS role
		 FROM calendars c
		 WHERE c.owner_id = ?
		 UNION ALL
		 SELECT c.id, c.owner_id, c.name, c.color, c.is_default, c.created_at, s.role
		 FROM calendars c
		 JOIN calendar_shares s ON s.calendar_id = c.id
		 WHERE s.user_id = ?
		 ORDER BY created_at ASC`,
		userID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying calendars: %w", err)
	}
	defer rows.Close()

	var calendars []Calendar
	for rows.Next() {
		var cal Calendar
		if err := rows.Scan(&cal.ID, &cal.OwnerID, &cal.Name, &cal.Color, &cal.IsDefault, &cal.CreatedAt, &cal.Role); err != nil {
			return nil, fmt.Errorf("scanning calendar row: %w", err)
		}
		calendars = append(calendars, cal)
	}
	return calendars, rows.Err()
}

func (r *mysqlCalendarRepository) Update(ctx context.Context, cal *Calendar) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE calendars SET name = ?, color = ?, is_default = ? WHERE id = ?`,
		cal.Name, cal.Color, cal.IsDefault, cal.ID,
	)
	if err != nil {
		return fmt.Errorf("updating calendar: %w", err)
	}
	return nil
}

func (r *mysqlCalendarRepository) Delete(ctx context.Context, id string) error {
	// Shares and entries cascade via foreign keys.
	_, err := r.db.ExecContext(ctx, `DELETE FROM calendars WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting calendar: %w", err)
	}
	return nil
}

func (r *mysqlCalendarRepository) CountOwned(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM calendars WHERE owner_id = ?`, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting calendars: %w", err)
	}
	return count, nil
}

func (r *mysqlCalendarRepository) GetGrant(ctx context.Context, calendarID, userID string) (Role, error) {
	var roleName string
	err := r.db.QueryRowContext(ctx,
		`SELECT role FROM calendar_shares WHERE calendar_id = ? AND user_id = ?`,
		calendarID, userID,
	).Scan(&roleName)
	if errors.Is(err, sql.ErrNoRows) {
		return RoleNone, nil
	}
	if err != nil {
		return RoleNone, fmt.Errorf("reading grant: %w", err)
	}
	role, ok := RoleFromString(roleName)
	if !ok {
		return RoleNone, fmt.Errorf("unknown role in database: %q", roleName)
	}
	return role, nil
}

func (r *mysqlCalendarRepository) ListGrants(ctx context.Context, calendarID string) ([]ShareGrant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT s.calendar_id, s.user_id, s.role, u.display_name, u.email, s.created_at
		 FROM calendar_shares s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.calendar_id = ?
		 ORDER BY s.created_at ASC`,
		calendarID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying grants: %w", err)
	}
	defer rows.Close()

	var grants []ShareGrant
	for rows.Next() {
		var g ShareGrant
		if err := rows.Scan(&g.CalendarID, &g.UserID, &g.Role, &g.DisplayName, &g.Email, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning grant row: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (r *mysqlCalendarRepository) UpsertGrant(ctx context.Context, calendarID, userID string, role Role) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO calendar_shares (calendar_id, user_id, role)
		 VALUES (?, ?, ?)
		 ON DUPLICATE KEY UPDATE role = VALUES(role)`,
		calendarID, userID, role.String(),
	)
	if err != nil {
		return fmt.Errorf("upserting grant: %w", err)
	}
	return nil
}

func (r *mysqlCalendarRepository) DeleteGrant(ctx context.Context, calendarID, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM calendar_shares WHERE calendar_id = ? AND user_id = ?`,
		calendarID, userID,
	)
	if err != nil {
		return fmt.Errorf("deleting grant: %w", err)
	}
	return nil
}
