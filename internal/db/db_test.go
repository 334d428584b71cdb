package db

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesAndMigrates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.db")

	database, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = database.Close() }()

	version, err := CurrentVersion(database.SQL())
	if err != nil {
		t.Fatalf("CurrentVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}

	// outcomes table must exist with the stage column from migration 2.
	if _, err := database.SQL().Exec(
		`INSERT INTO outcomes (task_id, snapshot, result, success, stage, created_at)
		 VALUES ('t1', '{}', '', 1, 'on_queue', CURRENT_TIMESTAMP)`,
	); err != nil {
		t.Errorf("inserting outcome: %v", err)
	}
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dispatch.db")

	first, err := Open(path)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}

	second, err := Open(path)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer func() { _ = second.Close() }()

	version, err := CurrentVersion(second.SQL())
	if err != nil {
		t.Fatal(err)
	}
	if version != len(migrations) {
		t.Errorf("version after reopen = %d, want %d", version, len(migrations))
	}
}

func TestExpandPath(t *testing.T) {
	if got := expandPath("/abs/path"); got != "/abs/path" {
		t.Errorf("expandPath(/abs/path) = %s", got)
	}
	if got := expandPath("~/data"); got == "~/data" {
		t.Error("expandPath did not expand ~/")
	}
}
