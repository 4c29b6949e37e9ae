// Package reddit defines the platform boundary consumed by the bot core.
//
// The core never talks to the social platform directly; every capability it
// needs is expressed on the Client interface and supplied by the bot runner.
package reddit

import (
	"context"

	"github.com/athif-irshad/the-magic-eye/internal/models"
)

// ModLogFilter narrows a moderation-log fetch to a single action type.
type ModLogFilter struct {
	// Action restricts entries to one moderation action (e.g. "wikirevise").
	// Empty means no restriction.
	Action string
	// Limit caps the number of entries returned. Zero means the platform default.
	Limit int
}

// Client is the narrow platform interface the bot core consumes.
// Implementations wrap the real social-platform API; tests use MockClient.
type Client interface {
	// GetInbox returns unread private messages and comment replies.
	GetInbox(ctx context.Context) ([]models.InboundItem, error)

	// GetModerationLog returns raw moderation-log entries for a subreddit
	// group, newest first or oldest first as the platform returns them;
	// callers must not rely on ordering.
	GetModerationLog(ctx context.Context, subreddit string, filter ModLogFilter) ([]models.ChangeEvent, error)

	// GetWikiPage returns the raw content of a subreddit wiki page.
	GetWikiPage(ctx context.Context, subreddit, page string) (string, error)

	// EditWikiPage overwrites a wiki page's content with an edit reason.
	EditWikiPage(ctx context.Context, subreddit, page, content, reason string) error

	// SetWikiPageVisibility controls whether a page is listed and who may edit it.
	SetWikiPageVisibility(ctx context.Context, subreddit, page string, listed bool, permLevel int) error

	// GetSubmission fetches a link post by id.
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)

	// GetComment fetches a comment by id.
	GetComment(ctx context.Context, id string) (*models.Comment, error)

	// ReportComment flags a comment for moderator attention.
	ReportComment(ctx context.Context, commentID, reason string) error

	// ReplyTo replies to an inbox item or comment. When distinguish is true
	// the reply is marked as an official moderator response.
	ReplyTo(ctx context.Context, itemID, text string, distinguish bool) error

	// ComposeMessage sends a private message.
	ComposeMessage(ctx context.Context, to, subject, text string) error

	// GetModerators returns the moderator usernames of a subreddit.
	GetModerators(ctx context.Context, subreddit string) ([]string, error)

	// AcceptModInvite accepts a pending moderator invitation.
	AcceptModInvite(ctx context.Context, subreddit string) error

	// GetImageDetails extracts the perceptual hash of the image behind a URL.
	// Returns nil (no error) when the image cannot be fetched or decoded.
	GetImageDetails(ctx context.Context, url string) (*models.ImageDetails, error)
}

// Wiki page permission levels accepted by SetWikiPageVisibility.
const (
	// WikiPermAnyone allows anyone permitted by subreddit settings to edit.
	WikiPermAnyone = 0
	// WikiPermApproved restricts editing to approved contributors.
	WikiPermApproved = 1
	// WikiPermModOnly restricts editing to moderators.
	WikiPermModOnly = 2
)
