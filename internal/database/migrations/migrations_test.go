package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestMigrateUp_FreshDatabase(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	tables := []string{"recorded_sessions", "interest_points", "sync_attempts", "schema_migrations"}
	for _, table := range tables {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s was not created: %v", table, err)
		}
	}
}

func TestCheckDBMigrationStatus(t *testing.T) {
	t.Run("fresh database needs migration", func(t *testing.T) {
		db := openTestDB(t)

		err := CheckDBMigrationStatus(db)
		if !errors.Is(err, ErrNoSchema) {
			t.Errorf("CheckDBMigrationStatus() error = %v, want ErrNoSchema", err)
		}
	})

	t.Run("ok after migration", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateUp(db); err != nil {
			t.Fatalf("MigrateUp() failed: %v", err)
		}

		if err := CheckDBMigrationStatus(db); err != nil {
			t.Errorf("CheckDBMigrationStatus() after migration returned error: %v", err)
		}
	})

	t.Run("behind after partial migration", func(t *testing.T) {
		db := openTestDB(t)
		if err := MigrateTo(db, 1); err != nil {
			t.Fatalf("MigrateTo(1) failed: %v", err)
		}

		if err := CheckDBMigrationStatus(db); err == nil {
			t.Error("CheckDBMigrationStatus() at version 1 returned nil, want error")
		}
	})
}

func TestMigrateUp_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := MigrateUp(db); err != nil {
		t.Fatalf("First MigrateUp() failed: %v", err)
	}
	if err := MigrateUp(db); err != nil {
		t.Errorf("Second MigrateUp() failed: %v (should be idempotent)", err)
	}
	if err := CheckDBMigrationStatus(db); err != nil {
		t.Errorf("CheckDBMigrationStatus() after double migration returned error: %v", err)
	}
}

func TestMigrate_SyncStateUpgradeKeepsRows(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateTo(db, 1); err != nil {
		t.Fatalf("MigrateTo(1) failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO recorded_sessions (start_time, route_data, name, difficulty)
		VALUES ('2024-01-15T10:30:00Z', '[]', 'old walk', 'Easy')`)
	if err != nil {
		t.Fatalf("insert at version 1: %v", err)
	}

	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	var version int
	var remoteID sql.NullString
	err = db.QueryRow("SELECT route_data_version, remote_id FROM recorded_sessions WHERE name = 'old walk'").Scan(&version, &remoteID)
	if err != nil {
		t.Fatalf("reading upgraded row: %v", err)
	}
	if version != 1 {
		t.Errorf("route_data_version = %d, want 1", version)
	}
	if remoteID.Valid {
		t.Errorf("remote_id = %q, want NULL", remoteID.String)
	}
}

func TestLatestVersion(t *testing.T) {
	got, err := LatestVersion()
	if err != nil {
		t.Fatalf("LatestVersion() error = %v", err)
	}
	if got != 3 {
		t.Errorf("LatestVersion() = %d, want 3", got)
	}
}

func TestForeignKeyConstraints(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	_, err := db.Exec(`INSERT INTO interest_points (session_id, latitude, longitude, type, created_at)
		VALUES (999, 1.0, 2.0, 'hazard', '2024-01-15T10:30:00Z')`)
	if err == nil {
		t.Error("Expected foreign key constraint violation, but insert succeeded")
	}
}

func TestSchema_InterestPointTypeCheck(t *testing.T) {
	db := openTestDB(t)
	if err := MigrateUp(db); err != nil {
		t.Fatalf("MigrateUp() failed: %v", err)
	}

	res, err := db.Exec(`INSERT INTO recorded_sessions (start_time, route_data) VALUES ('2024-01-15T10:30:00Z', '[]')`)
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}
	sessionID, _ := res.LastInsertId()

	tests := []struct {
		kind    string
		wantErr bool
	}{
		{"hazard", false},
		{"drop", false},
		{"viewpoint", false},
		{"general", false},
		{"campsite", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			_, err := db.Exec(`INSERT INTO interest_points (session_id, latitude, longitude, type, created_at)
				VALUES (?, 1.0, 2.0, ?, '2024-01-15T10:30:00Z')`, sessionID, tt.kind)
			if (err != nil) != tt.wantErr {
				t.Errorf("insert type %q error = %v, wantErr %v", tt.kind, err, tt.wantErr)
			}
		})
	}
}

// openTestDB opens an in-memory SQLite database for testing.
// A single connection keeps every statement on the same in-memory database.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}
