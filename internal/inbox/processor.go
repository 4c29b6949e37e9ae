package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/athif-irshad/the-magic-eye/internal/models"
	"github.com/athif-irshad/the-magic-eye/internal/reddit"
)

// Canned reply for generic private messages from regular users.
const automatedReply = "I am a robot. Please contact the moderators of the subreddit if you need assistance."

// Report reason attached to user comment replies flagged for moderators.
const userReplyReportReason = "Moderator attention: user replied to a magic-eye comment"

// Dispatcher executes a moderator command carried by a comment reply.
// Implemented by the command package.
type Dispatcher interface {
	Dispatch(ctx context.Context, item models.InboundItem) error
}

// Config carries the environment-provided identity and toggles.
type Config struct {
	// SelfUser is the bot's own account name.
	SelfUser string
	// Maintainer is an optional contact notified when an invite is accepted.
	Maintainer string
	// AllowInvites enables accepting moderator invitations.
	AllowInvites bool
}

// Processor classifies inbox items and applies the per-class action.
type Processor struct {
	client     reddit.Client
	dispatcher Dispatcher
	cfg        Config
}

// NewProcessor creates an inbox processor.
func NewProcessor(client reddit.Client, dispatcher Dispatcher, cfg Config) *Processor {
	return &Processor{client: client, dispatcher: dispatcher, cfg: cfg}
}

// ProcessItem handles one inbox item to completion. Errors are returned for
// logging by the caller; they never affect other items in the batch.
func (p *Processor) ProcessItem(ctx context.Context, item models.InboundItem) error {
	// Classify without a role first: only the mod/user split needs the
	// moderator list, so self-authored items and mentions are settled
	// without a platform call.
	classification := Classify(item, p.cfg.SelfUser, false)
	if classification == models.ClassificationUserComment {
		isMod, err := p.isModerator(ctx, item.Subreddit, item.Author)
		if err != nil {
			return fmt.Errorf("failed to resolve moderator status for %s in %s: %w", item.Author, item.Subreddit, err)
		}
		if isMod {
			classification = models.ClassificationModComment
		}
	}
	slog.Debug("Inbox item classified", "item_id", item.ID, "author", item.Author, "classification", classification)

	switch classification {
	case models.ClassificationSelf:
		return nil

	case models.ClassificationMention:
		slog.Info("Username mention received", "item_id", item.ID, "author", item.Author)
		return nil

	case models.ClassificationModComment:
		return p.dispatcher.Dispatch(ctx, item)

	case models.ClassificationUserComment:
		// Flag for manual moderator attention; no reply is sent.
		if err := p.client.ReportComment(ctx, item.ID, userReplyReportReason); err != nil {
			return fmt.Errorf("failed to report user comment %s: %w", item.ID, err)
		}
		slog.Info("User comment reported for moderator attention", "item_id", item.ID, "author", item.Author, "subreddit", item.Subreddit)
		return nil

	case models.ClassificationModInvite:
		return p.handleModInvite(ctx, item)

	case models.ClassificationDemodNotice:
		slog.Info("Removed as moderator", "item_id", item.ID, "subject", item.Subject)
		return nil

	default:
		return p.handlePrivateMessage(ctx, item)
	}
}

// handleModInvite accepts a moderator invitation when invites are enabled.
// Acceptance failures are logged and never retried: the invite may already
// have been acted on, which is a benign outcome.
func (p *Processor) handleModInvite(ctx context.Context, item models.InboundItem) error {
	subreddit := inviteSubreddit(item.Subject)
	if !p.cfg.AllowInvites {
		slog.Warn("Moderator invite ignored, invites disabled", "item_id", item.ID, "subreddit", subreddit)
		return nil
	}
	if subreddit == "" {
		slog.Warn("Moderator invite subject carries no subreddit", "item_id", item.ID, "subject", item.Subject)
		return nil
	}

	if err := p.client.AcceptModInvite(ctx, subreddit); err != nil {
		slog.Error("Failed to accept moderator invite", "error", err, "subreddit", subreddit, "item_id", item.ID)
		return nil
	}
	slog.Info("Accepted moderator invite", "subreddit", subreddit)

	if p.cfg.Maintainer != "" {
		body := fmt.Sprintf("The bot was invited to moderate r/%s and accepted.", subreddit)
		if err := p.client.ComposeMessage(ctx, p.cfg.Maintainer, "New subreddit", body); err != nil {
			slog.Error("Failed to notify maintainer of accepted invite", "error", err, "maintainer", p.cfg.Maintainer, "subreddit", subreddit)
		}
	}
	return nil
}

// handlePrivateMessage sends the canned automation notice unless the message
// belongs to a moderator-distinguished thread, where a reply would add noise.
func (p *Processor) handlePrivateMessage(ctx context.Context, item models.InboundItem) error {
	if item.Distinguished == models.DistinguishedModerator {
		slog.Debug("Skipping reply inside moderator-distinguished thread", "item_id", item.ID)
		return nil
	}
	if err := p.client.ReplyTo(ctx, item.ID, automatedReply, false); err != nil {
		return fmt.Errorf("failed to reply to private message %s: %w", item.ID, err)
	}
	slog.Debug("Sent automated reply to private message", "item_id", item.ID, "author", item.Author)
	return nil
}

// isModerator reports whether author moderates the subreddit.
func (p *Processor) isModerator(ctx context.Context, subreddit, author string) (bool, error) {
	mods, err := p.client.GetModerators(ctx, subreddit)
	if err != nil {
		return false, err
	}
	for _, mod := range mods {
		if strings.EqualFold(mod, author) {
			return true, nil
		}
	}
	return false, nil
}
