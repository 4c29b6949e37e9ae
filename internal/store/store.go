// Package store provides storage backends for the magic-eye bot.
//
// It persists three things: master key/value properties (including the
// processed-change-event cursor), per-subreddit settings documents, and
// per-image-hash magic submission records. Backends: in-memory (tests),
// SQLite, and PostgreSQL.
package store

import (
	"sync"

	"github.com/athif-irshad/the-magic-eye/internal/models"
)

// PropertyProcessedChanges is the well-known property key holding the
// JSON-encoded ordered list of already-processed change-event ids.
const PropertyProcessedChanges = "processed_wiki_changes"

// Store is the persistence boundary consumed by the bot core.
// Implementations only need single-writer durability: a Set must be
// observable by the caller's next Get. No transactions are required; the
// core serializes its own read-modify-write cycles.
type Store interface {
	// GetProperty returns the value stored under key. ok is false when the
	// key has never been set.
	GetProperty(key string) (value string, ok bool, err error)

	// SetProperty stores value under key, replacing any previous value.
	SetProperty(key, value string) error

	// GetSubredditSettings returns the settings record for a subreddit, or
	// nil when none exists.
	GetSubredditSettings(name string) (*models.SubredditSettings, error)

	// SetSubredditSettings stores a settings record, replacing the previous
	// record wholesale.
	SetSubredditSettings(settings models.SubredditSettings) error

	// GetMagicSubmission returns the record keyed by a perceptual image
	// hash, or nil when none exists.
	GetMagicSubmission(dhash string) (*models.MagicSubmission, error)

	// SaveMagicSubmission stores a record, replacing any record with the
	// same hash.
	SaveMagicSubmission(sub models.MagicSubmission) error

	// DeleteMagicSubmission removes the record for a hash. Deleting an
	// absent record is not an error.
	DeleteMagicSubmission(dhash string) error

	// Close releases the backend's resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string (file path for SQLite,
// connection URL for Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// InMemoryStore is a map-backed Store for tests.
type InMemoryStore struct {
	mu         sync.Mutex
	properties map[string]string
	settings   map[string]models.SubredditSettings
	records    map[string]models.MagicSubmission
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		properties: make(map[string]string),
		settings:   make(map[string]models.SubredditSettings),
		records:    make(map[string]models.MagicSubmission),
	}
}

func (s *InMemoryStore) GetProperty(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.properties[key]
	return v, ok, nil
}

func (s *InMemoryStore) SetProperty(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[key] = value
	return nil
}

func (s *InMemoryStore) GetSubredditSettings(name string) (*models.SubredditSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if settings, ok := s.settings[name]; ok {
		return &settings, nil
	}
	return nil, nil
}

func (s *InMemoryStore) SetSubredditSettings(settings models.SubredditSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.SubredditName] = settings
	return nil
}

func (s *InMemoryStore) GetMagicSubmission(dhash string) (*models.MagicSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record, ok := s.records[dhash]; ok {
		// Copy the slice so callers can mutate their copy freely.
		record.Duplicates = append([]string(nil), record.Duplicates...)
		return &record, nil
	}
	return nil, nil
}

func (s *InMemoryStore) SaveMagicSubmission(sub models.MagicSubmission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub.Duplicates = append([]string(nil), sub.Duplicates...)
	s.records[sub.Dhash] = sub
	return nil
}

func (s *InMemoryStore) DeleteMagicSubmission(dhash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, dhash)
	return nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

// Compile-time check that InMemoryStore implements Store.
var _ Store = (*InMemoryStore)(nil)
