// Package runner orchestrates one polling cycle of the bot: draining the
// inbox, then consuming the moderation scope's change log.
//
// A cycle is strictly sequential: one inbox item at a time, then one
// change-log batch covering every configured subreddit. The whole scope is
// consumed as a single batch against a single cursor, so a fresh deployment
// bootstraps exactly once for all subreddits. Cycles never overlap within a
// process; an invocation that arrives while a cycle is running is skipped,
// not queued.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/athif-irshad/the-magic-eye/internal/changelog"
	"github.com/athif-irshad/the-magic-eye/internal/inbox"
	"github.com/athif-irshad/the-magic-eye/internal/models"
	"github.com/athif-irshad/the-magic-eye/internal/reddit"
	"github.com/athif-irshad/the-magic-eye/internal/wikisync"
)

// Config carries the runner's identity and scope.
type Config struct {
	// BotUser is the bot's own account name, used for actor self-filtering.
	BotUser string
	// Subreddits is the moderation scope polled for change events.
	Subreddits []string
}

// Runner drives one invocation cycle of the bot core.
type Runner struct {
	client    reddit.Client
	consumer  *changelog.Consumer
	sync      *wikisync.Service
	processor *inbox.Processor
	cfg       Config

	mu      sync.Mutex
	running bool
}

// New creates a Runner.
func New(client reddit.Client, consumer *changelog.Consumer, syncService *wikisync.Service, processor *inbox.Processor, cfg Config) *Runner {
	return &Runner{
		client:    client,
		consumer:  consumer,
		sync:      syncService,
		processor: processor,
		cfg:       cfg,
	}
}

// RunCycle executes one full cycle. Returns an error only when a whole
// pipeline could not run; per-item failures are logged and isolated.
func (r *Runner) RunCycle(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		slog.Warn("Previous cycle still running, skipping this invocation")
		return nil
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	runID := uuid.NewString()
	slog.Info("Cycle starting", "run_id", runID, "subreddits", len(r.cfg.Subreddits))

	// An inbox failure must not keep the change log from being consumed;
	// the pipelines share nothing but the platform client.
	var errs []error
	if err := r.runInbox(ctx, runID); err != nil {
		errs = append(errs, err)
	}
	if err := r.runChangeLog(ctx, runID); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		slog.Error("Cycle finished with errors", "run_id", runID, "error", err)
		return err
	}
	slog.Info("Cycle finished", "run_id", runID)
	return nil
}

// runInbox drains the inbox, processing items one at a time. A failing item
// is logged and skipped; it must not abort the rest of the batch.
func (r *Runner) runInbox(ctx context.Context, runID string) error {
	items, err := r.client.GetInbox(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch inbox: %w", err)
	}
	slog.Debug("Inbox fetched", "run_id", runID, "items", len(items))

	for _, item := range items {
		if err := r.processor.ProcessItem(ctx, item); err != nil {
			slog.Error("Inbox item failed", "error", err, "run_id", runID, "item_id", item.ID, "author", item.Author)
		}
	}
	return nil
}

// runChangeLog consumes the moderation scope as one batch. All subreddits'
// eligible entries feed a single Consume call against the shared cursor:
// split per-subreddit calls would let the first subreddit's bootstrap seed
// the cursor and every later subreddit replay its pre-deploy history.
func (r *Runner) runChangeLog(ctx context.Context, runID string) error {
	var eligible []models.ChangeEvent
	for _, subreddit := range r.cfg.Subreddits {
		entries, err := r.client.GetModerationLog(ctx, subreddit, reddit.ModLogFilter{
			Action: changelog.WikiReviseAction,
			Limit:  changelog.MaxCheck,
		})
		if err != nil {
			// A broken subreddit is skipped, not fatal: its entries stay in
			// the platform's log and are retried next cycle.
			slog.Error("Failed to fetch moderation log", "error", err, "run_id", runID, "subreddit", subreddit)
			continue
		}

		// Eligibility (settings-page edits not made by the bot itself) is
		// applied before dedup: ineligible entries never enter the cursor.
		kept := 0
		for _, e := range entries {
			if changelog.Eligible(e, r.cfg.BotUser, wikisync.SettingsPage) {
				eligible = append(eligible, e)
				kept++
			}
		}
		slog.Debug("Moderation log fetched", "run_id", runID, "subreddit", subreddit, "entries", len(entries), "eligible", kept)
	}

	events, err := r.consumer.Consume(ctx, eligible)
	if err != nil {
		return fmt.Errorf("failed to consume change log: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	// The cursor already covers these events. A crash below never replays.
	r.sync.ProcessEvents(ctx, events)
	return nil
}
