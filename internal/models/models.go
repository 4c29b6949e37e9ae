// Package models defines the core data structures for the magic-eye bot.
//
// It includes types for moderation-log change events, inbox items, persisted
// subreddit settings, and per-image-hash submission records, which are shared
// across modules.
package models

import (
	"encoding/json"
	"time"
)

// Distinguished describes how an inbox item's thread is marked.
type Distinguished string

const (
	// DistinguishedNone marks an ordinary item.
	DistinguishedNone Distinguished = ""
	// DistinguishedModerator marks an item in a moderator-distinguished thread.
	DistinguishedModerator Distinguished = "moderator"
	// DistinguishedAdmin marks an item distinguished by a site admin.
	DistinguishedAdmin Distinguished = "admin"
)

// Classification is the result of inspecting a single inbox item.
type Classification string

const (
	// ClassificationSelf is an item authored by the bot's own account.
	ClassificationSelf Classification = "self"
	// ClassificationModComment is a comment reply from a subreddit moderator.
	ClassificationModComment Classification = "mod_comment"
	// ClassificationUserComment is a comment reply from a regular user.
	ClassificationUserComment Classification = "user_comment"
	// ClassificationMention is a username-mention notification.
	ClassificationMention Classification = "mention"
	// ClassificationModInvite is an invitation to moderate a subreddit.
	ClassificationModInvite Classification = "mod_invite"
	// ClassificationDemodNotice is a notice that the bot was removed as moderator.
	ClassificationDemodNotice Classification = "demod_notice"
	// ClassificationPrivateMessage is any other private message.
	ClassificationPrivateMessage Classification = "private_message"
)

// ChangeEvent is a single moderation-log entry representing one wiki page edit.
type ChangeEvent struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"` // epoch seconds
	Actor     string `json:"actor"`
	Subreddit string `json:"subreddit"`
	Action    string `json:"action"`
	Details   string `json:"details"`
}

// CreatedTime returns the event creation time as a time.Time.
func (e ChangeEvent) CreatedTime() time.Time {
	return time.Unix(e.CreatedAt, 0)
}

// InboundItem is a private message or comment reply from the inbox.
// Items are transient: classified and consumed within one dispatch cycle,
// never persisted.
type InboundItem struct {
	ID            string        `json:"id"`
	Author        string        `json:"author"`
	Subject       string        `json:"subject"`
	Body          string        `json:"body"`
	Subreddit     string        `json:"subreddit"`
	WasComment    bool          `json:"was_comment"`
	Distinguished Distinguished `json:"distinguished"`
}

// SubredditSettings holds one subreddit's configuration blob. The blob is
// opaque to this core and replaced wholesale on each successful sync.
type SubredditSettings struct {
	SubredditName string          `json:"subreddit_name"`
	Settings      json.RawMessage `json:"settings"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// MagicSubmission is the stored per-image-hash duplicate-tracking record.
// Author and CreatedAt are provenance only, used for logging.
type MagicSubmission struct {
	Dhash          string   `json:"dhash"`
	Duplicates     []string `json:"duplicates"`
	ExactMatchOnly bool     `json:"exact_match_only"`
	Author         string   `json:"author"`
	CreatedAt      int64    `json:"created_at"`
}

// RemoveDuplicate removes a submission id from the record's duplicates list.
// Removing an id that is not present is a harmless no-op.
func (m *MagicSubmission) RemoveDuplicate(submissionID string) {
	kept := m.Duplicates[:0]
	for _, id := range m.Duplicates {
		if id != submissionID {
			kept = append(kept, id)
		}
	}
	m.Duplicates = kept
}

// Submission is a link post on the platform.
type Submission struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	URL       string `json:"url"`
	Permalink string `json:"permalink"`
	CreatedAt int64  `json:"created_at"`
}

// Comment is a single comment on a submission. LinkID references the
// root submission the comment thread is attached to.
type Comment struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Body      string `json:"body"`
	LinkID    string `json:"link_id"`
	Subreddit string `json:"subreddit"`
}

// ImageDetails is the perceptual-hash extraction result for a submission image.
type ImageDetails struct {
	Dhash  string `json:"dhash"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
