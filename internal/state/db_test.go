package state

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// tempDBPath returns a path to a temp database file.
func tempDBPath(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	return filepath.Join(dir, "test.db")
}

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(tempDBPath(t), "")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestOpen(t *testing.T) {
	path := tempDBPath(t)
	db, err := Open(path, "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if db.Path() != path {
		t.Errorf("Path() = %q, want %q", db.Path(), path)
	}
	if db.Driver() != DriverModernc {
		t.Errorf("Driver() = %q, want %q", db.Driver(), DriverModernc)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("database file does not exist at %s", path)
	}
}

func TestOpen_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c")
	path := filepath.Join(nested, "test.db")

	db, err := Open(path, DriverModernc)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(nested); os.IsNotExist(err) {
		t.Errorf("parent directories not created: %s", nested)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open(tempDBPath(t), "postgres"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestOpen_CgoDriver(t *testing.T) {
	db, err := Open(tempDBPath(t), DriverMattn)
	if err != nil {
		if strings.Contains(err.Error(), "CGO_ENABLED") || strings.Contains(err.Error(), "cgo") {
			t.Skipf("cgo driver unavailable: %v", err)
		}
		t.Fatalf("Open failed: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if db.Driver() != DriverMattn {
		t.Errorf("Driver() = %q, want %q", db.Driver(), DriverMattn)
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// Files cannot be created under /proc.
	_, err := Open("/proc/nonexistent/test.db", "")
	if err == nil {
		t.Error("expected error opening db at invalid path")
	}
}

func TestClose(t *testing.T) {
	db, err := Open(tempDBPath(t), "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := db.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if _, err := db.query("SELECT 1"); err == nil {
		t.Error("expected error after close, got nil")
	}
}

func TestMigrate(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"schema_version", "runs", "step_results"} {
		var count int
		row := db.queryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table)
		if err := row.Scan(&count); err != nil {
			t.Errorf("failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("table %s does not exist", table)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	for i := 0; i < 3; i++ {
		if err := db.Migrate(); err != nil {
			t.Fatalf("Migrate (iteration %d) failed: %v", i, err)
		}
	}

	var version int
	if err := db.queryRow("SELECT MAX(version) FROM schema_version").Scan(&version); err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != 2 {
		t.Errorf("schema version = %d, want 2", version)
	}
}

func TestTransaction_Rollback(t *testing.T) {
	db := setupTestDB(t)

	err := db.transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO runs (id, plan_id, mode, prompt, plan_json, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
			"tx-fail", "p", "single", "x", "{}", formatTime(time.Now()))
		if err != nil {
			return err
		}
		return fmt.Errorf("simulated error")
	})
	if err == nil {
		t.Error("expected error from Transaction")
	}

	var count int
	if err := db.queryRow("SELECT COUNT(*) FROM runs WHERE id = ?", "tx-fail").Scan(&count); err != nil {
		t.Fatalf("failed to verify: %v", err)
	}
	if count != 0 {
		t.Error("transaction was not rolled back")
	}
}

func TestProjectDBPath(t *testing.T) {
	path := ProjectDBPath("/my/project")
	expected := "/my/project/.quorum/state.db"
	if path != expected {
		t.Errorf("ProjectDBPath() = %q, want %q", path, expected)
	}
}

func TestFormatAndParseTime(t *testing.T) {
	now := time.Now()
	parsed, err := parseTime(formatTime(now))
	if err != nil {
		t.Fatalf("parseTime failed: %v", err)
	}
	if !now.Equal(parsed) {
		t.Errorf("time round-trip failed: got %v, want %v", parsed, now.UTC())
	}

	early := formatTime(time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC))
	late := formatTime(time.Date(2024, 1, 1, 0, 0, 5, 100, time.UTC))
	if !(early < late) {
		t.Errorf("stored times should sort lexically: %q >= %q", early, late)
	}
}

func TestParseNullableTime(t *testing.T) {
	valid := sql.NullString{String: formatTime(time.Now()), Valid: true}
	if parseNullableTime(valid).IsZero() {
		t.Error("expected a time for valid input")
	}
	if !parseNullableTime(sql.NullString{}).IsZero() {
		t.Error("expected zero time for NULL")
	}
	if !parseNullableTime(sql.NullString{String: "not a time", Valid: true}).IsZero() {
		t.Error("expected zero time for invalid format")
	}
}
