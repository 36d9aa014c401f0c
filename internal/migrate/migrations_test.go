package migrate

import (
	"path/filepath"
	"testing"

	"workobs/internal/db"
)

func TestMigrateCreatesSchema(t *testing.T) {
	conn, err := db.Open(db.Config{Path: filepath.Join(t.TempDir(), "test.sqlite")})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()

	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	var version int
	if err := conn.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		t.Fatalf("read user_version: %v", err)
	}
	if version != 1 {
		t.Errorf("user_version = %d, want 1", version)
	}
	if _, err := conn.Exec(
		`INSERT INTO event_log(id,ts,type,payload_json) VALUES ('a','2023-10-27T09:00:00Z','daily_intents_set','{}')`,
	); err != nil {
		t.Fatalf("insert into event_log: %v", err)
	}

	// A second run skips the applied step and leaves data intact.
	if err := Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var n int
	if err := conn.QueryRow(`SELECT COUNT(*) FROM event_log`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("event_log rows = %d, want 1", n)
	}
}
