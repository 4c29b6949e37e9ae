// Package inbox classifies and processes inbound private messages and
// comment replies, routing moderator commands to the command dispatcher.
package inbox

import (
	"strings"

	"github.com/athif-irshad/the-magic-eye/internal/models"
)

// Subject fragments the platform uses for system-generated messages.
const (
	mentionSubject     = "username mention"
	modInviteSubject   = "invitation to moderate"
	demodNoticeSubject = "has been removed as a moderator"
)

// Classify inspects a single inbox item and decides how it must be handled.
// selfUser is the bot's own account name; isMod reports whether the item's
// author moderates the item's subreddit (only consulted for comments).
//
// A username-mention subject short-circuits before the mod/user split:
// mentions are logged only, regardless of the author's role.
func Classify(item models.InboundItem, selfUser string, isMod bool) models.Classification {
	if strings.EqualFold(item.Author, selfUser) {
		return models.ClassificationSelf
	}

	subject := strings.ToLower(item.Subject)
	if strings.Contains(subject, mentionSubject) {
		return models.ClassificationMention
	}

	if item.WasComment {
		if isMod {
			return models.ClassificationModComment
		}
		return models.ClassificationUserComment
	}

	if strings.Contains(subject, modInviteSubject) {
		return models.ClassificationModInvite
	}
	if strings.Contains(subject, demodNoticeSubject) {
		return models.ClassificationDemodNotice
	}
	return models.ClassificationPrivateMessage
}

// inviteSubreddit extracts the subreddit name from a mod-invite subject
// such as "invitation to moderate /r/somesubreddit". Returns "" when the
// subject carries no subreddit reference.
func inviteSubreddit(subject string) string {
	lower := strings.ToLower(subject)
	idx := strings.Index(lower, "/r/")
	if idx < 0 {
		return ""
	}
	name := subject[idx+len("/r/"):]
	if end := strings.IndexAny(name, " \t\n"); end >= 0 {
		name = name[:end]
	}
	return strings.TrimSuffix(name, ".")
}
