// Package command maps moderator comment replies to record-mutation handlers.
//
// Recognized commands form a closed set resolved once through a name-to-
// handler map; unknown names get an explicit rejection reply rather than
// falling through. For the record-mutating commands a shared resolution
// procedure locates the target record (triggering comment -> root submission
// -> perceptual image hash -> stored record) before any handler runs, so a
// failed resolution can never leave a partial mutation behind.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/athif-irshad/the-magic-eye/internal/models"
	"github.com/athif-irshad/the-magic-eye/internal/reddit"
	"github.com/athif-irshad/the-magic-eye/internal/store"
)

// HandlerFunc applies one command's mutation to the resolved record.
// It returns true when the mutation was applied (or was an idempotent
// no-op), false when it could not be applied.
type HandlerFunc func(ctx context.Context, submission *models.Submission, record *models.MagicSubmission, st store.Store) (bool, error)

// Reply texts. All dispatcher replies are distinguished as official
// moderator responses.
const (
	helpText = "Magic-eye moderator commands (reply to one of my comments):\n\n" +
		"* `help` - show this message\n" +
		"* `clear` - forget this image entirely\n" +
		"* `wrong` - this post is not a repost, remove it from the match list\n" +
		"* `avoid` - only act on exact matches of this image from now on\n"
	unknownCommandText  = "I don't recognize that command. Reply `help` for the list of commands."
	noImageText         = "I couldn't read the image on the original post (it may have been deleted), so I can't process that command."
	nothingToDoText     = "I have no record for that image - nothing to do."
	successText         = "Done."
	failureText         = "Sorry, that command failed. Check the logs for details."
	rootSubmissionError = "I couldn't find the submission this thread belongs to."
)

// Dispatcher routes classified mod commands to handlers.
type Dispatcher struct {
	client   reddit.Client
	store    store.Store
	handlers map[string]HandlerFunc
}

// NewDispatcher creates a Dispatcher with the built-in command set.
func NewDispatcher(client reddit.Client, st store.Store) *Dispatcher {
	return &Dispatcher{
		client: client,
		store:  st,
		handlers: map[string]HandlerFunc{
			"clear": handleClear,
			"wrong": handleWrong,
			"avoid": handleAvoid,
		},
	}
}

// Dispatch executes the command carried by a moderator's comment reply.
// Caller guarantees the author is a moderator; authorization mismatches
// never reach this point.
func (d *Dispatcher) Dispatch(ctx context.Context, item models.InboundItem) error {
	name := strings.ToLower(strings.TrimSpace(item.Body))
	slog.Debug("Dispatching mod command", "command", name, "item_id", item.ID, "author", item.Author, "subreddit", item.Subreddit)

	if name == "help" {
		return d.reply(ctx, item.ID, helpText)
	}

	handler, ok := d.handlers[name]
	if !ok {
		slog.Info("Unrecognized mod command", "command", name, "item_id", item.ID, "author", item.Author)
		return d.reply(ctx, item.ID, unknownCommandText)
	}

	submission, record, outcome, err := d.resolveTarget(ctx, item)
	if err != nil {
		return err
	}
	if outcome != "" {
		// Resolution terminated early: failure reply or idempotent no-op.
		return d.reply(ctx, item.ID, outcome)
	}

	applied, err := handler(ctx, submission, record, d.store)
	if err != nil {
		slog.Error("Mod command handler failed", "error", err, "command", name, "item_id", item.ID, "dhash", record.Dhash)
		return d.reply(ctx, item.ID, failureText)
	}
	if !applied {
		return d.reply(ctx, item.ID, failureText)
	}

	slog.Info("Mod command applied", "command", name, "item_id", item.ID, "author", item.Author, "dhash", record.Dhash)
	return d.reply(ctx, item.ID, successText)
}

// resolveTarget runs the shared resolution procedure for record-mutating
// commands. A non-empty outcome means resolution stopped before any handler:
// either a benign no-op (no stored record) or a failure (image unreadable).
// No store mutation happens in either case.
func (d *Dispatcher) resolveTarget(ctx context.Context, item models.InboundItem) (*models.Submission, *models.MagicSubmission, string, error) {
	comment, err := d.client.GetComment(ctx, item.ID)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to fetch triggering comment %s: %w", item.ID, err)
	}
	if comment == nil {
		return nil, nil, rootSubmissionError, nil
	}

	// The thread's original post, not the submission a reply links to.
	submission, err := d.client.GetSubmission(ctx, comment.LinkID)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to fetch root submission %s: %w", comment.LinkID, err)
	}
	if submission == nil {
		return nil, nil, rootSubmissionError, nil
	}

	details, err := d.client.GetImageDetails(ctx, submission.URL)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to extract image details for %s: %w", submission.ID, err)
	}
	if details == nil {
		slog.Warn("Image hash unavailable for mod command", "submission_id", submission.ID, "url", submission.URL)
		return nil, nil, noImageText, nil
	}

	record, err := d.store.GetMagicSubmission(details.Dhash)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to look up record for hash %s: %w", details.Dhash, err)
	}
	if record == nil {
		// Already-successful idempotent no-op, not an error.
		slog.Debug("No stored record for hash", "dhash", details.Dhash, "submission_id", submission.ID)
		return nil, nil, nothingToDoText, nil
	}

	return submission, record, "", nil
}

// reply sends a distinguished response to the triggering item.
func (d *Dispatcher) reply(ctx context.Context, itemID, text string) error {
	if err := d.client.ReplyTo(ctx, itemID, text, true); err != nil {
		return fmt.Errorf("failed to reply to %s: %w", itemID, err)
	}
	return nil
}

// handleClear deletes the stored record entirely.
func handleClear(ctx context.Context, submission *models.Submission, record *models.MagicSubmission, st store.Store) (bool, error) {
	if err := st.DeleteMagicSubmission(record.Dhash); err != nil {
		return false, err
	}
	slog.Info("Cleared magic submission record", "dhash", record.Dhash, "author", record.Author)
	return true, nil
}

// handleWrong removes the triggering submission from the record's duplicates
// list. Absence of the id is a harmless no-op that still persists.
func handleWrong(ctx context.Context, submission *models.Submission, record *models.MagicSubmission, st store.Store) (bool, error) {
	record.RemoveDuplicate(submission.ID)
	if err := st.SaveMagicSubmission(*record); err != nil {
		return false, err
	}
	slog.Info("Removed submission from duplicates", "dhash", record.Dhash, "submission_id", submission.ID, "remaining", len(record.Duplicates))
	return true, nil
}

// handleAvoid flags the record as exact-match-only. Idempotent.
func handleAvoid(ctx context.Context, submission *models.Submission, record *models.MagicSubmission, st store.Store) (bool, error) {
	record.ExactMatchOnly = true
	if err := st.SaveMagicSubmission(*record); err != nil {
		return false, err
	}
	slog.Info("Record set to exact-match-only", "dhash", record.Dhash)
	return true, nil
}
