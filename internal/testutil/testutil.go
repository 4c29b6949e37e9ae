// Package testutil provides common test fixtures and helpers for magic-eye tests.
package testutil

import (
	"testing"
	"time"

	"github.com/athif-irshad/the-magic-eye/internal/models"
	"github.com/athif-irshad/the-magic-eye/internal/reddit"
)

// ChangeEvent builds a moderation-log fixture for the settings page with a
// given age relative to now.
func ChangeEvent(id, actor string, age time.Duration) models.ChangeEvent {
	return models.ChangeEvent{
		ID:        id,
		CreatedAt: time.Now().Add(-age).Unix(),
		Actor:     actor,
		Subreddit: "testsub",
		Action:    "wikirevise",
		Details:   "Page magic_eye edited",
	}
}

// ModComment builds an inbox comment-reply fixture carrying a command body.
func ModComment(id, author, body string) models.InboundItem {
	return models.InboundItem{
		ID:         id,
		Author:     author,
		Subject:    "comment reply",
		Body:       body,
		Subreddit:  "testsub",
		WasComment: true,
	}
}

// AssertReplied fails the test unless the mock client recorded exactly one
// reply to itemID, returning it for further checks.
func AssertReplied(t *testing.T, client *reddit.MockClient, itemID string) reddit.MockReply {
	t.Helper()
	var matches []reddit.MockReply
	for _, r := range client.Replies {
		if r.ItemID == itemID {
			matches = append(matches, r)
		}
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly one reply to %s, got %d (all replies: %v)", itemID, len(matches), client.Replies)
	}
	return matches[0]
}

// AssertNoReplies fails the test if the mock client recorded any reply.
func AssertNoReplies(t *testing.T, client *reddit.MockClient) {
	t.Helper()
	if len(client.Replies) != 0 {
		t.Fatalf("expected no replies, got %v", client.Replies)
	}
}
