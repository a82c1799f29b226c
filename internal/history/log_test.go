package history

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer l.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		l, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		var count int
		if err := l.db.QueryRow("SELECT COUNT(*) FROM actions").Scan(&count); err != nil {
			t.Errorf("query failed: %v", err)
		}
		l.Close()
	}
}

func TestOpen_Pragmas(t *testing.T) {
	l := createTestLog(t)

	tests := []struct {
		name     string
		expected string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"},
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
		{"user_version", "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := l.verifyPragma(tt.name, tt.expected); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestOpen_TypeIndex(t *testing.T) {
	l := createTestLog(t)

	var name string
	err := l.db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_actions_type'`).Scan(&name)
	if err != nil {
		t.Fatalf("index missing: %v", err)
	}
}

func TestOpen_UpgradesVersionZeroLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := l.db.Exec(`DROP INDEX idx_actions_type`); err != nil {
		t.Fatalf("drop index: %v", err)
	}
	if _, err := l.db.Exec(`PRAGMA user_version = 0`); err != nil {
		t.Fatalf("reset user_version: %v", err)
	}
	l.Close()

	l, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer l.Close()

	if err := l.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
	var name string
	err = l.db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_actions_type'`).Scan(&name)
	if err != nil {
		t.Errorf("index not recreated: %v", err)
	}
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "x.db"))
	if err == nil {
		t.Fatal("expected error for unwritable path")
	}
}

func TestClose_NilDB(t *testing.T) {
	var l Log
	if err := l.Close(); err != nil {
		t.Errorf("Close() on empty log: %v", err)
	}
}
