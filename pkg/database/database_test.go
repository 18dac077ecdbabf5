package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DatabasePath = filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := ApplyPragmas(db); err != nil {
		t.Fatalf("pragmas: %v", err)
	}
	return db
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.DatabasePath != "./data/freshershub.db" {
		t.Errorf("Expected DatabasePath './data/freshershub.db', got %s", config.DatabasePath)
	}
	if config.MaxConnections != 10 {
		t.Errorf("Expected MaxConnections 10, got %d", config.MaxConnections)
	}
	if config.ConnMaxLifetime != time.Hour {
		t.Errorf("Expected ConnMaxLifetime 1 hour, got %v", config.ConnMaxLifetime)
	}
	if config.RetryDelay != 5*time.Second {
		t.Errorf("Expected RetryDelay 5s, got %v", config.RetryDelay)
	}
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid config", func(*Config) {}, false},
		{"empty database path", func(c *Config) { c.DatabasePath = "" }, true},
		{"zero max connections", func(c *Config) { c.MaxConnections = 0 }, true},
		{"zero lifetime", func(c *Config) { c.ConnMaxLifetime = 0 }, true},
		{"zero idle time", func(c *Config) { c.ConnMaxIdleTime = 0 }, true},
		{"negative retry delay", func(c *Config) { c.RetryDelay = -time.Second }, true},
		{"zero retry delay", func(c *Config) { c.RetryDelay = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMigrationManager_ApplyEmbedded(t *testing.T) {
	db := openTestDB(t)
	mm := NewMigrationManager(db, Migrations())

	if err := mm.ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}
	if err := mm.ValidateSchema(); err != nil {
		t.Fatalf("ValidateSchema: %v", err)
	}

	versions, err := mm.AppliedVersions()
	if err != nil {
		t.Fatalf("AppliedVersions: %v", err)
	}
	if len(versions) != 2 || versions[0] != "001" || versions[1] != "002" {
		t.Errorf("unexpected versions %v", versions)
	}

	// second run is a no-op
	if err := mm.ApplyMigrations(); err != nil {
		t.Fatalf("re-apply: %v", err)
	}
}

func TestMigrationManager_OrdersAndSkipsNonSQL(t *testing.T) {
	db := openTestDB(t)
	src := fstest.MapFS{
		"002_second.sql": {Data: []byte("INSERT INTO t (v) VALUES ('second');")},
		"001_first.sql":  {Data: []byte("CREATE TABLE t (v TEXT);")},
		"README.md":      {Data: []byte("not a migration")},
	}

	if err := NewMigrationManager(db, src).ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	var v string
	if err := db.QueryRow("SELECT v FROM t").Scan(&v); err != nil {
		t.Fatalf("query: %v", err)
	}
	if v != "second" {
		t.Errorf("expected 'second', got %q", v)
	}
}

func TestMigrationManager_FailedMigrationRollsBack(t *testing.T) {
	db := openTestDB(t)
	src := fstest.MapFS{
		"001_broken.sql": {Data: []byte("CREATE TABLE ok (v TEXT); THIS IS NOT SQL;")},
	}
	mm := NewMigrationManager(db, src)

	if err := mm.ApplyMigrations(); err == nil {
		t.Fatal("expected error from broken migration")
	}
	versions, err := mm.AppliedVersions()
	if err != nil {
		t.Fatalf("AppliedVersions: %v", err)
	}
	if len(versions) != 0 {
		t.Errorf("broken migration must not be recorded, got %v", versions)
	}
}

func TestSchemaValidator_MissingTable(t *testing.T) {
	db := openTestDB(t)
	if err := NewSchemaValidator(db).ValidateTablesExist(); err == nil {
		t.Error("expected error on empty database")
	}
}

func TestSchemaValidator_ChatCheckConstraint(t *testing.T) {
	db := openTestDB(t)
	if err := NewMigrationManager(db, Migrations()).ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations: %v", err)
	}

	_, err := db.Exec(`INSERT INTO chat_messages (id, room_id, sender_id, message, message_type, timestamp)
		VALUES ('m1', 'r1', 'u1', 'hi', 'video', CURRENT_TIMESTAMP)`)
	if err == nil {
		t.Error("check constraint not enforced: message_type")
	}
}
