package meals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ovenlight/mealboard/internal/dateutil"
)

// EntryRepository defines data access for meal entries.
type EntryRepository interface {
	Create(ctx context.Context, entry *Entry) error
	FindByID(ctx context.Context, id string) (*Entry, error)
	// ListRange returns entries across the given calendars whose planned
	// date falls in [start, end], ordered by creation time so slot
	// stacking is stable.
	ListRange(ctx context.Context, calendarIDs []string, start, end dateutil.DayKey) ([]Entry, error)
	Move(ctx context.Context, id string, date dateutil.DayKey, mealType MealType) error
	UpdateServings(ctx context.Context, id string, servings int) error
	Delete(ctx context.Context, id string) error
}

const entryColumns = `id, calendar_id, planned_date, meal_type, payload_kind,
	recipe_id, recipe_title, recipe_image, recipe_author,
	custom_title, custom_description, servings, created_by, created_at, updated_at`

// mysqlEntryRepository implements EntryRepository against MariaDB.
type mysqlEntryRepository struct {
	db *sql.DB
}

// NewEntryRepository creates a MariaDB-backed entry repository.
func NewEntryRepository(db *sql.DB) EntryRepository {
	return &mysqlEntryRepository{db: db}
}

func (r *mysqlEntryRepository) Create(ctx context.Context, entry *Entry) error {
	p := entry.Payload
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO meal_entries (`+entryColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.CalendarID, string(entry.PlannedDate), string(entry.MealType), string(p.Kind),
		nullable(p.RecipeID), nullable(p.RecipeTitle), nullable(p.RecipeImage), nullable(p.RecipeAuthor),
		nullable(p.Title), nullable(p.Description),
		entry.Servings, entry.CreatedBy, entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}
	return nil
}

func (r *mysqlEntryRepository) FindByID(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM meal_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *mysqlEntryRepository) ListRange(ctx context.Context, calendarIDs []string, start, end dateutil.DayKey) ([]Entry, error) {
	if len(calendarIDs) == 0 {
		return []Entry{}, nil
	}

	placeholders := strings.Repeat("?,", len(calendarIDs)-1) + "?"
	args := make([]any, 0, len(calendarIDs)+2)
	for _, id := range calendarIDs {
		args = append(args, id)
	}
	args = append(args, string(start), string(end))

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM meal_entries
		 WHERE calendar_id IN (`+placeholders+`)
		   AND planned_date BETWEEN ? AND ?
		 ORDER BY created_at ASC, id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func (r *mysqlEntryRepository) Move(ctx context.Context, id string, date dateutil.DayKey, mealType MealType) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE meal_entries SET planned_date = ?, meal_type = ?, updated_at = NOW() WHERE id = ?`,
		string(date), string(mealType), id,
	)
	if err != nil {
		return fmt.Errorf("moving entry: %w", err)
	}
	return requireRow(res)
}

func (r *mysqlEntryRepository) UpdateServings(ctx context.Context, id string, servings int) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE meal_entries SET servings = ?, updated_at = NOW() WHERE id = ?`,
		servings, id,
	)
	if err != nil {
		return fmt.Errorf("updating servings: %w", err)
	}
	return requireRow(res)
}

func (r *mysqlEntryRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM meal_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}
	return requireRow(res)
}

// requireRow converts a zero-row update into sql.ErrNoRows so the service
// can map it to a 404.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(s scanner) (*Entry, error) {
	var (
		entry                                            Entry
		plannedDate                                      time.Time
		mealType, payloadKind                            string
		recipeID, recipeTitle, recipeImage, recipeAuthor sql.NullString
		customTitle, customDescription                   sql.NullString
		createdBy                                        sql.NullString
	)
	err := s.Scan(
		&entry.ID, &entry.CalendarID, &plannedDate, &mealType, &payloadKind,
		&recipeID, &recipeTitle, &recipeImage, &recipeAuthor,
		&customTitle, &customDescription,
		&entry.Servings, &createdBy, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	entry.PlannedDate = dateutil.KeyOf(plannedDate)
	entry.CreatedBy = createdBy.String
	entry.MealType = MealType(mealType)
	entry.Payload = Payload{
		Kind:         PayloadKind(payloadKind),
		RecipeID:     recipeID.String,
		RecipeTitle:  recipeTitle.String,
		RecipeImage:  recipeImage.String,
		RecipeAuthor: recipeAuthor.String,
		Title:        customTitle.String,
		Description:  customDescription.String,
	}
	return &entry, nil
}

// nullable maps empty strings to SQL NULL so unused payload columns stay
// NULL instead of empty.
func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
