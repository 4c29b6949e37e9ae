package store

import (
	"encoding/json"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/athif-irshad/the-magic-eye/internal/models"
)

// exerciseStore runs the full contract against any backend.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()

	// Properties: absent, set, overwrite.
	if _, ok, err := s.GetProperty("processed_wiki_changes"); err != nil || ok {
		t.Fatalf("expected absent property, got ok=%v err=%v", ok, err)
	}
	if err := s.SetProperty("processed_wiki_changes", `["a","b"]`); err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}
	if err := s.SetProperty("processed_wiki_changes", `["a","b","c"]`); err != nil {
		t.Fatalf("SetProperty overwrite failed: %v", err)
	}
	value, ok, err := s.GetProperty("processed_wiki_changes")
	if err != nil || !ok {
		t.Fatalf("GetProperty failed: ok=%v err=%v", ok, err)
	}
	if value != `["a","b","c"]` {
		t.Errorf("property value = %q, want latest write", value)
	}

	// Subreddit settings: absent, wholesale replace.
	if settings, err := s.GetSubredditSettings("testsub"); err != nil || settings != nil {
		t.Fatalf("expected absent settings, got %v err=%v", settings, err)
	}
	if err := s.SetSubredditSettings(models.SubredditSettings{
		SubredditName: "testsub",
		Settings:      json.RawMessage(`{"remove_reposts":true}`),
		UpdatedAt:     time.Now().UTC(),
	}); err != nil {
		t.Fatalf("SetSubredditSettings failed: %v", err)
	}
	if err := s.SetSubredditSettings(models.SubredditSettings{
		SubredditName: "testsub",
		Settings:      json.RawMessage(`{"remove_reposts":false}`),
		UpdatedAt:     time.Now().UTC(),
	}); err != nil {
		t.Fatalf("SetSubredditSettings replace failed: %v", err)
	}
	settings, err := s.GetSubredditSettings("testsub")
	if err != nil || settings == nil {
		t.Fatalf("GetSubredditSettings failed: %v", err)
	}
	if string(settings.Settings) != `{"remove_reposts":false}` {
		t.Errorf("settings blob = %s, want the replacement", settings.Settings)
	}

	// Magic submissions: save, fetch, delete, delete-absent.
	if record, err := s.GetMagicSubmission("feedbeef"); err != nil || record != nil {
		t.Fatalf("expected absent record, got %v err=%v", record, err)
	}
	if err := s.SaveMagicSubmission(models.MagicSubmission{
		Dhash:          "feedbeef",
		Duplicates:     []string{"t3_a", "t3_b"},
		ExactMatchOnly: true,
		Author:         "someuser",
		CreatedAt:      1700000000,
	}); err != nil {
		t.Fatalf("SaveMagicSubmission failed: %v", err)
	}
	record, err := s.GetMagicSubmission("feedbeef")
	if err != nil || record == nil {
		t.Fatalf("GetMagicSubmission failed: %v", err)
	}
	if len(record.Duplicates) != 2 || record.Duplicates[0] != "t3_a" || !record.ExactMatchOnly {
		t.Errorf("record roundtrip mismatch: %+v", record)
	}
	if err := s.DeleteMagicSubmission("feedbeef"); err != nil {
		t.Fatalf("DeleteMagicSubmission failed: %v", err)
	}
	if record, err := s.GetMagicSubmission("feedbeef"); err != nil || record != nil {
		t.Fatalf("record must be gone after delete, got %v err=%v", record, err)
	}
	if err := s.DeleteMagicSubmission("feedbeef"); err != nil {
		t.Errorf("deleting an absent record must not error: %v", err)
	}
}

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	exerciseStore(t, s)
}

func TestInMemoryStoreCopiesDuplicates(t *testing.T) {
	s := NewInMemoryStore()
	if err := s.SaveMagicSubmission(models.MagicSubmission{Dhash: "h", Duplicates: []string{"a", "b"}}); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	first, _ := s.GetMagicSubmission("h")
	first.Duplicates[0] = "mutated"
	second, _ := s.GetMagicSubmission("h")
	if second.Duplicates[0] != "a" {
		t.Error("caller mutation leaked into the store")
	}
}

func TestSQLiteStore(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "magiceye.db")
	s, err := NewSQLiteStore(WithDSN(dsn))
	if err != nil {
		t.Fatalf("failed to open SQLite store: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Error("expected an error when DSN is not set")
	}
}

func TestPostgresStore(t *testing.T) {
	// This test requires a running PostgreSQL instance.
	// Set the DATABASE_URL environment variable for the connection string.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	s, err := NewPostgresStore(WithDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer s.Close()
	// Clean up tables before test
	s.db.Exec("DELETE FROM properties")
	s.db.Exec("DELETE FROM subreddit_settings")
	s.db.Exec("DELETE FROM magic_submissions")
	exerciseStore(t, s)
}

func TestDetectDSNType(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://user:pw@localhost/db", "postgres"},
		{"postgresql://user:pw@localhost/db", "postgres"},
		{"host=localhost user=bot dbname=magiceye", "postgres"},
		{"/var/lib/magiceye/magiceye.db", "sqlite"},
		{"magiceye.db", "sqlite"},
	}
	for _, tc := range tests {
		if got := DetectDSNType(tc.dsn); got != tc.want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", tc.dsn, got, tc.want)
		}
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
