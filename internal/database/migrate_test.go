// Package database provides connection setup for MariaDB and Redis.
// This file validates migration SQL files to catch schema mismatches early.
package database

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"
)

// validMealTypes must match the ENUM values on meal_entries.meal_type and
// the MealType constants in the meals plugin. Update both together.
var validMealTypes = map[string]bool{
	"breakfast": true,
	"lunch":     true,
	"dinner":    true,
	"snack":     true,
}

// validPayloadKinds must match the ENUM values on meal_entries.payload_kind.
var validPayloadKinds = map[string]bool{
	"recipe": true,
	"custom": true,
}

// validShareRoles must match the ENUM values on calendar_shares.role.
// The owner role is implicit and never stored, so it must NOT appear here.
var validShareRoles = map[string]bool{
	"viewer": true,
	"editor": true,
}

// migrationsDir returns the absolute path to db/migrations/ from the project root.
func migrationsDir(t *testing.T) string {
	t.Helper()
	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file path")
	}
	// thisFile is internal/database/migrate_test.go, project root is two dirs up.
	projectRoot := filepath.Join(filepath.Dir(thisFile), "..", "..")
	dir := filepath.Join(projectRoot, "db", "migrations")
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("migrations directory not found at %s: %v", dir, err)
	}
	return dir
}

// enumValues extracts the quoted values of every ENUM(...) whose column name
// matches the given column, across all .up.sql files.
func enumValues(t *testing.T, column string) map[string]bool {
	t.Helper()

	re := regexp.MustCompile(column + `\s+ENUM\(([^)]*)\)`)
	valRe := regexp.MustCompile(`'([^']*)'`)

	found := map[string]bool{}
	files, err := filepath.Glob(filepath.Join(migrationsDir(t), "*.up.sql"))
	if err != nil {
		t.Fatalf("globbing migrations: %v", err)
	}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("reading %s: %v", f, err)
		}
		for _, m := range re.FindAllStringSubmatch(string(data), -1) {
			for _, v := range valRe.FindAllStringSubmatch(m[1], -1) {
				found[v[1]] = true
			}
		}
	}
	if len(found) == 0 {
		t.Fatalf("no ENUM definition found for column %q", column)
	}
	return found
}

func assertEnumMatches(t *testing.T, column string, want map[string]bool) {
	t.Helper()
	got := enumValues(t, column)
	for v := range got {
		if !want[v] {
			t.Errorf("migrations define %s value %q not known to the Go code", column, v)
		}
	}
	for v := range want {
		if !got[v] {
			t.Errorf("Go code expects %s value %q missing from migrations", column, v)
		}
	}
}

func TestMigrations_MealTypeValues(t *testing.T) {
	assertEnumMatches(t, "meal_type", validMealTypes)
}

func TestMigrations_PayloadKindValues(t *testing.T) {
	assertEnumMatches(t, "payload_kind", validPayloadKinds)
}

func TestMigrations_ShareRoleValues(t *testing.T) {
	assertEnumMatches(t, "role", validShareRoles)
}

// repositoryColumns lists every column the repository SQL references, per
// table. A column named here but missing from the DDL would only surface
// at runtime as an unknown-column error on the first query.
var repositoryColumns = map[string][]string{
	"users":           {"id", "email", "display_name", "password_hash", "created_at"},
	"user_settings":   {"user_id", "default_servings", "default_calendar_id"},
	"calendars":       {"id", "owner_id", "name", "color", "is_default", "created_at"},
	"calendar_shares": {"calendar_id", "user_id", "role", "created_at"},
	"meal_entries": {
		"id", "calendar_id", "planned_date", "meal_type", "payload_kind",
		"recipe_id", "recipe_title", "recipe_image", "recipe_author",
		"custom_title", "custom_description", "servings", "created_by",
		"created_at", "updated_at",
	},
}

// tableColumns parses the column names out of a CREATE TABLE block across
// all .up.sql files.
func tableColumns(t *testing.T, table string) map[string]bool {
	t.Helper()

	re := regexp.MustCompile(`(?s)CREATE TABLE ` + table + `\s*\((.*?)\n\)`)
	colRe := regexp.MustCompile(`(?m)^\s*([a-z_]+)\s`)

	files, err := filepath.Glob(filepath.Join(migrationsDir(t), "*.up.sql"))
	if err != nil {
		t.Fatalf("globbing migrations: %v", err)
	}
	cols := map[string]bool{}
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("reading %s: %v", f, err)
		}
		m := re.FindStringSubmatch(string(data))
		if m == nil {
			continue
		}
		for _, c := range colRe.FindAllStringSubmatch(m[1], -1) {
			cols[c[1]] = true
		}
	}
	if len(cols) == 0 {
		t.Fatalf("no CREATE TABLE found for %q", table)
	}
	return cols
}

func TestMigrations_RepositoryColumnsExist(t *testing.T) {
	for table, want := range repositoryColumns {
		ddl := tableColumns(t, table)
		for _, col := range want {
			if !ddl[col] {
				t.Errorf("%s: repository references column %q missing from migrations", table, col)
			}
		}
	}
}

// TestMigrations_PairedUpDown ensures every up migration has a matching down.
func TestMigrations_PairedUpDown(t *testing.T) {
	ups, _ := filepath.Glob(filepath.Join(migrationsDir(t), "*.up.sql"))
	for _, up := range ups {
		down := strings.TrimSuffix(up, ".up.sql") + ".down.sql"
		if _, err := os.Stat(down); err != nil {
			t.Errorf("missing down migration for %s", filepath.Base(up))
		}
	}
}
