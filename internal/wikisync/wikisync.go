// Package wikisync applies settings wiki edits to the persisted settings store.
//
// For each new change event the service fetches the settings wiki page,
// parses and validates it, and replaces the stored settings wholesale. The
// triggering actor is notified of the outcome by private message. Events are
// processed strictly in ascending time order, one at a time.
package wikisync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/athif-irshad/the-magic-eye/internal/models"
	"github.com/athif-irshad/the-magic-eye/internal/reddit"
	"github.com/athif-irshad/the-magic-eye/internal/store"
)

// SettingsPage is the wiki page holding each subreddit's configuration.
const SettingsPage = "magic_eye"

// Notification subjects and bodies sent to the actor who edited the page.
const (
	successSubject = "Settings update succeeded"
	successBody    = "Your settings update for r/%s has been applied."
	failureSubject = "Settings update failed"
	failureBody    = "Your settings edit for r/%s could not be applied: %s\n\nThe previous settings remain in effect. Please fix the wiki page and save it again."
)

// Validator checks a parsed settings blob against the configuration schema.
// It runs after parsing and before persistence and the success notification.
// A failed validation follows the same path as a parse failure: the actor is
// notified and the stored settings stay untouched.
type Validator func(blob json.RawMessage) (ok bool, diagnostic string)

// AcceptAll is the default validator. Real schema validation plugs in here
// without touching the sync flow.
func AcceptAll(json.RawMessage) (bool, string) {
	return true, ""
}

// Service syncs settings wiki edits into the store.
type Service struct {
	client    reddit.Client
	store     store.Store
	validator Validator
}

// NewService creates a sync service. A nil validator defaults to AcceptAll.
func NewService(client reddit.Client, st store.Store, validator Validator) *Service {
	if validator == nil {
		validator = AcceptAll
	}
	return &Service{client: client, store: st, validator: validator}
}

// ProcessEvents applies each event in order. A failure on one event is
// logged and reported to its actor but never aborts the rest of the batch.
// Events are already marked processed by the change-log consumer, so a bad
// edit is not retried; the actor must re-edit to trigger a new event.
func (s *Service) ProcessEvents(ctx context.Context, events []models.ChangeEvent) {
	for _, event := range events {
		if err := s.syncOne(ctx, event); err != nil {
			slog.Error("Settings sync failed", "error", err, "subreddit", event.Subreddit, "actor", event.Actor, "event_id", event.ID)
		}
	}
}

// syncOne applies a single settings edit.
func (s *Service) syncOne(ctx context.Context, event models.ChangeEvent) error {
	slog.Debug("Syncing settings edit", "subreddit", event.Subreddit, "actor", event.Actor, "event_id", event.ID)

	content, err := s.client.GetWikiPage(ctx, event.Subreddit, SettingsPage)
	if err != nil {
		return fmt.Errorf("failed to fetch settings wiki page for %s: %w", event.Subreddit, err)
	}

	blob, parseErr := parseSettings(content)
	if parseErr == nil {
		if ok, diagnostic := s.validator(blob); !ok {
			parseErr = fmt.Errorf("settings failed validation: %s", diagnostic)
		}
	}
	if parseErr != nil {
		slog.Warn("Settings edit rejected, previous settings remain authoritative",
			"error", parseErr, "subreddit", event.Subreddit, "actor", event.Actor, "event_id", event.ID)
		s.notify(ctx, event, failureSubject, fmt.Sprintf(failureBody, event.Subreddit, parseErr))
		return nil
	}

	settings := models.SubredditSettings{
		SubredditName: event.Subreddit,
		Settings:      blob,
		UpdatedAt:     time.Now(),
	}
	if err := s.store.SetSubredditSettings(settings); err != nil {
		return fmt.Errorf("failed to persist settings for %s: %w", event.Subreddit, err)
	}

	slog.Info("Settings updated", "subreddit", event.Subreddit, "actor", event.Actor, "event_id", event.ID)
	s.notify(ctx, event, successSubject, fmt.Sprintf(successBody, event.Subreddit))
	return nil
}

// notify sends the outcome to the triggering actor. Notification failures
// are logged only; the sync outcome stands.
func (s *Service) notify(ctx context.Context, event models.ChangeEvent, subject, body string) {
	if err := s.client.ComposeMessage(ctx, event.Actor, subject, body); err != nil {
		slog.Error("Failed to notify actor of sync outcome", "error", err, "actor", event.Actor, "subreddit", event.Subreddit)
	}
}

// EnsureDefaultSettings bootstraps a subreddit on first association.
// Pre-existing valid wiki content is adopted as-is; otherwise the given
// defaults are written to the wiki page (pretty-printed) and the page is
// made unlisted and moderator-only.
func (s *Service) EnsureDefaultSettings(ctx context.Context, subreddit string, defaults json.RawMessage) error {
	existing, err := s.store.GetSubredditSettings(subreddit)
	if err != nil {
		return fmt.Errorf("failed to read settings for %s: %w", subreddit, err)
	}
	if existing != nil {
		slog.Debug("Settings already present, bootstrap skipped", "subreddit", subreddit)
		return nil
	}

	content, err := s.client.GetWikiPage(ctx, subreddit, SettingsPage)
	if err != nil {
		return fmt.Errorf("failed to fetch settings wiki page for %s: %w", subreddit, err)
	}

	blob, parseErr := parseSettings(content)
	if parseErr == nil {
		// Adopt the page's pre-existing configuration; never overwrite it.
		slog.Info("Adopting pre-existing wiki settings", "subreddit", subreddit)
	} else {
		pretty, err := json.MarshalIndent(json.RawMessage(defaults), "", "    ")
		if err != nil {
			return fmt.Errorf("failed to render default settings: %w", err)
		}
		if err := s.client.EditWikiPage(ctx, subreddit, SettingsPage, string(pretty), "Initial magic-eye settings"); err != nil {
			return fmt.Errorf("failed to write default settings for %s: %w", subreddit, err)
		}
		if err := s.client.SetWikiPageVisibility(ctx, subreddit, SettingsPage, false, reddit.WikiPermModOnly); err != nil {
			return fmt.Errorf("failed to restrict settings page for %s: %w", subreddit, err)
		}
		blob = defaults
		slog.Info("Wrote default settings to wiki page", "subreddit", subreddit)
	}

	settings := models.SubredditSettings{
		SubredditName: subreddit,
		Settings:      blob,
		UpdatedAt:     time.Now(),
	}
	if err := s.store.SetSubredditSettings(settings); err != nil {
		return fmt.Errorf("failed to persist bootstrap settings for %s: %w", subreddit, err)
	}
	return nil
}

// parseSettings parses wiki page content as a JSON settings document.
func parseSettings(content string) (json.RawMessage, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("settings page is not valid JSON: %w", err)
	}
	return json.RawMessage(content), nil
}
