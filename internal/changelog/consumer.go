// Package changelog implements the idempotent moderation-log consumer.
//
// The consumer turns a raw batch of moderation-log entries into an ordered
// sequence of change events that have never been seen before. Dedup state
// (the cursor) is a bounded, ordered list of processed event ids persisted
// through the store's property interface.
//
// Crash ordering: the cursor is persisted before control returns to the
// caller that executes side effects. A crash mid-handler therefore never
// replays an event (at-most-once delivery to handlers); the matching
// at-least-once guarantee is deliberately not provided in the crash case.
package changelog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/athif-irshad/the-magic-eye/internal/models"
	"github.com/athif-irshad/the-magic-eye/internal/store"
)

const (
	// MaxCheck caps the number of entries examined per run. A backlog larger
	// than this is treated as lost history, not an error.
	MaxCheck = 500

	// ProcessedCacheSize bounds the processed-id cursor. Oldest-appended ids
	// are evicted first on overflow.
	ProcessedCacheSize = MaxCheck * 5

	// EligibilityWindow is the replay-safety window: entries older than this
	// are never emitted, even if never seen before. Protects against a
	// stalled cursor silently replaying very old history.
	EligibilityWindow = 3 * time.Hour

	// WikiReviseAction is the moderation-log action recorded for wiki edits.
	WikiReviseAction = "wikirevise"
)

// Eligible reports whether a raw moderation-log entry is a settings-page
// edit the consumer should consider: a wiki revision whose details mention
// the settings page, made by someone other than the bot's own account.
// Actor self-filtering is an eligibility rule applied before dedup, not a
// dedup rule.
func Eligible(entry models.ChangeEvent, botUser, page string) bool {
	if entry.Action != WikiReviseAction {
		return false
	}
	if !strings.Contains(entry.Details, page) {
		return false
	}
	return !strings.EqualFold(entry.Actor, botUser)
}

// Consumer filters, orders, and deduplicates change events against the
// persisted cursor.
type Consumer struct {
	store store.Store
	now   func() time.Time
}

// NewConsumer creates a Consumer backed by the given store.
func NewConsumer(st store.Store) *Consumer {
	return &Consumer{store: st, now: time.Now}
}

// Consume returns the eligible entries that have not been processed before,
// ordered oldest first, and persists the updated cursor before returning.
//
// When the cursor is absent (first run or reset) the current batch's ids
// seed the cursor and no events are emitted, so a fresh deploy does not
// reprocess unknown history.
func (c *Consumer) Consume(ctx context.Context, entries []models.ChangeEvent) ([]models.ChangeEvent, error) {
	// Oldest first; stable so ties keep arrival order.
	sorted := make([]models.ChangeEvent, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt < sorted[j].CreatedAt
	})

	// Keep only the most recent MaxCheck entries.
	if len(sorted) > MaxCheck {
		dropped := len(sorted) - MaxCheck
		slog.Warn("Change-log batch exceeds per-run cap, dropping oldest entries", "dropped", dropped, "cap", MaxCheck)
		sorted = sorted[dropped:]
	}

	// Drop entries at or beyond the eligibility window. The boundary is
	// strict: an entry exactly 3h old is excluded.
	cutoff := c.now().Add(-EligibilityWindow).Unix()
	recent := sorted[:0]
	for _, e := range sorted {
		if e.CreatedAt > cutoff {
			recent = append(recent, e)
		}
	}
	sorted = recent

	processed, found, err := c.loadCursor()
	if err != nil {
		return nil, err
	}

	if !found {
		// Bootstrap: seed the cursor with the current batch and emit nothing.
		seed := make([]string, 0, len(sorted))
		for _, e := range sorted {
			seed = append(seed, e.ID)
		}
		if err := c.saveCursor(seed); err != nil {
			return nil, err
		}
		slog.Info("Processed-id cursor absent, seeded with current batch", "seeded", len(seed))
		return nil, nil
	}

	seen := make(map[string]struct{}, len(processed))
	for _, id := range processed {
		seen[id] = struct{}{}
	}

	var fresh []models.ChangeEvent
	for _, e := range sorted {
		if _, ok := seen[e.ID]; ok {
			continue
		}
		fresh = append(fresh, e)
	}

	if len(fresh) == 0 {
		slog.Debug("No new change events", "batch", len(sorted), "cursor", len(processed))
		return nil, nil
	}

	for _, e := range fresh {
		processed = append(processed, e.ID)
	}
	if len(processed) > ProcessedCacheSize {
		processed = processed[len(processed)-ProcessedCacheSize:]
	}

	// Persist before handlers run: a crash during side-effect execution
	// must not cause the same event to be replayed.
	if err := c.saveCursor(processed); err != nil {
		return nil, err
	}

	slog.Info("New change events ready", "count", len(fresh), "cursor", len(processed))
	return fresh, nil
}

// loadCursor reads the processed-id list from the property store.
func (c *Consumer) loadCursor() ([]string, bool, error) {
	raw, ok, err := c.store.GetProperty(store.PropertyProcessedChanges)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load processed-id cursor: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, false, fmt.Errorf("failed to decode processed-id cursor: %w", err)
	}
	return ids, true, nil
}

// saveCursor writes the processed-id list to the property store.
func (c *Consumer) saveCursor(ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode processed-id cursor: %w", err)
	}
	if err := c.store.SetProperty(store.PropertyProcessedChanges, string(raw)); err != nil {
		return fmt.Errorf("failed to persist processed-id cursor: %w", err)
	}
	return nil
}
