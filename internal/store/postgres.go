// Package store provides storage backends for the magic-eye bot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/athif-irshad/the-magic-eye/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	// Apply options
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	// Determine DSN (required)
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	slog.Debug("Opening Postgres database connection")
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}
	slog.Debug("Postgres database opened")

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}
	slog.Debug("Postgres ping successful")
	// Run migrations to ensure tables exist
	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) GetProperty(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM properties WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetProperty not found", "key", key)
		return "", false, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetProperty failed", "error", err, "key", key)
		return "", false, fmt.Errorf("failed to query property %s: %w", key, err)
	}
	slog.Debug("PostgresStore GetProperty succeeded", "key", key)
	return value, true, nil
}

func (s *PostgresStore) SetProperty(key, value string) error {
	_, err := s.db.Exec(`INSERT INTO properties (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`, key, value)
	if err != nil {
		slog.Error("PostgresStore SetProperty failed", "error", err, "key", key)
		return fmt.Errorf("failed to set property %s: %w", key, err)
	}
	slog.Debug("PostgresStore SetProperty succeeded", "key", key)
	return nil
}

func (s *PostgresStore) GetSubredditSettings(name string) (*models.SubredditSettings, error) {
	var settings models.SubredditSettings
	var blob string
	err := s.db.QueryRow(`SELECT subreddit_name, settings, updated_at FROM subreddit_settings WHERE subreddit_name = $1`, name).
		Scan(&settings.SubredditName, &blob, &settings.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSubredditSettings not found", "subreddit", name)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSubredditSettings failed", "error", err, "subreddit", name)
		return nil, fmt.Errorf("failed to query settings for %s: %w", name, err)
	}
	settings.Settings = json.RawMessage(blob)
	slog.Debug("PostgresStore GetSubredditSettings succeeded", "subreddit", name)
	return &settings, nil
}

func (s *PostgresStore) SetSubredditSettings(settings models.SubredditSettings) error {
	_, err := s.db.Exec(`INSERT INTO subreddit_settings (subreddit_name, settings, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (subreddit_name) DO UPDATE SET settings = EXCLUDED.settings, updated_at = EXCLUDED.updated_at`,
		settings.SubredditName, string(settings.Settings), settings.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SetSubredditSettings failed", "error", err, "subreddit", settings.SubredditName)
		return fmt.Errorf("failed to set settings for %s: %w", settings.SubredditName, err)
	}
	slog.Debug("PostgresStore SetSubredditSettings succeeded", "subreddit", settings.SubredditName)
	return nil
}

func (s *PostgresStore) GetMagicSubmission(dhash string) (*models.MagicSubmission, error) {
	var sub models.MagicSubmission
	var duplicatesJSON string
	err := s.db.QueryRow(`SELECT dhash, duplicates, exact_match_only, author, created_at FROM magic_submissions WHERE dhash = $1`, dhash).
		Scan(&sub.Dhash, &duplicatesJSON, &sub.ExactMatchOnly, &sub.Author, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetMagicSubmission not found", "dhash", dhash)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetMagicSubmission failed", "error", err, "dhash", dhash)
		return nil, fmt.Errorf("failed to query magic submission %s: %w", dhash, err)
	}
	if err := json.Unmarshal([]byte(duplicatesJSON), &sub.Duplicates); err != nil {
		slog.Error("PostgresStore GetMagicSubmission duplicates unmarshal failed", "error", err, "dhash", dhash)
		return nil, fmt.Errorf("failed to decode duplicates for %s: %w", dhash, err)
	}
	slog.Debug("PostgresStore GetMagicSubmission succeeded", "dhash", dhash, "duplicates", len(sub.Duplicates))
	return &sub, nil
}

func (s *PostgresStore) SaveMagicSubmission(sub models.MagicSubmission) error {
	duplicatesJSON, err := json.Marshal(sub.Duplicates)
	if err != nil {
		slog.Error("PostgresStore SaveMagicSubmission duplicates marshal failed", "error", err, "dhash", sub.Dhash)
		return fmt.Errorf("failed to encode duplicates for %s: %w", sub.Dhash, err)
	}
	_, err = s.db.Exec(`INSERT INTO magic_submissions (dhash, duplicates, exact_match_only, author, created_at) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (dhash) DO UPDATE SET duplicates = EXCLUDED.duplicates, exact_match_only = EXCLUDED.exact_match_only,
		author = EXCLUDED.author, created_at = EXCLUDED.created_at`,
		sub.Dhash, string(duplicatesJSON), sub.ExactMatchOnly, sub.Author, sub.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveMagicSubmission failed", "error", err, "dhash", sub.Dhash)
		return fmt.Errorf("failed to save magic submission %s: %w", sub.Dhash, err)
	}
	slog.Debug("PostgresStore SaveMagicSubmission succeeded", "dhash", sub.Dhash)
	return nil
}

func (s *PostgresStore) DeleteMagicSubmission(dhash string) error {
	_, err := s.db.Exec(`DELETE FROM magic_submissions WHERE dhash = $1`, dhash)
	if err != nil {
		slog.Error("PostgresStore DeleteMagicSubmission failed", "error", err, "dhash", dhash)
		return fmt.Errorf("failed to delete magic submission %s: %w", dhash, err)
	}
	slog.Debug("PostgresStore DeleteMagicSubmission succeeded", "dhash", dhash)
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	return s.db.Close()
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)
