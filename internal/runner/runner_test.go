package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/athif-irshad/the-magic-eye/internal/changelog"
	"github.com/athif-irshad/the-magic-eye/internal/command"
	"github.com/athif-irshad/the-magic-eye/internal/inbox"
	"github.com/athif-irshad/the-magic-eye/internal/models"
	"github.com/athif-irshad/the-magic-eye/internal/reddit"
	"github.com/athif-irshad/the-magic-eye/internal/store"
	"github.com/athif-irshad/the-magic-eye/internal/testutil"
	"github.com/athif-irshad/the-magic-eye/internal/wikisync"
)

func newTestRunner(client *reddit.MockClient, st store.Store, subreddits ...string) *Runner {
	if len(subreddits) == 0 {
		subreddits = []string{"testsub"}
	}
	syncService := wikisync.NewService(client, st, nil)
	dispatcher := command.NewDispatcher(client, st)
	processor := inbox.NewProcessor(client, dispatcher, inbox.Config{SelfUser: "magic_eye_bot"})
	return New(client, changelog.NewConsumer(st), syncService, processor, Config{
		BotUser:    "magic_eye_bot",
		Subreddits: subreddits,
	})
}

func TestRunCycleAppliesSettingsEdit(t *testing.T) {
	client := reddit.NewMockClient()
	client.ModLog["testsub"] = []models.ChangeEvent{testutil.ChangeEvent("evt1", "somemod", time.Minute)}
	client.WikiPages["testsub/magic_eye"] = `{"remove_reposts": true}`
	st := store.NewInMemoryStore()
	// Pre-seed the cursor so the edit is not swallowed by bootstrap.
	if err := st.SetProperty(store.PropertyProcessedChanges, "[]"); err != nil {
		t.Fatalf("failed to seed cursor: %v", err)
	}

	r := newTestRunner(client, st)
	if err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	settings, err := st.GetSubredditSettings("testsub")
	if err != nil || settings == nil {
		t.Fatalf("settings edit must be applied: %v", err)
	}

	// Cycle again: the same entry must not be reapplied or re-notified.
	if err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.Messages) != 1 {
		t.Errorf("expected exactly one actor notification across cycles, got %d", len(client.Messages))
	}
}

func TestRunCycleBootstrapCoversWholeScope(t *testing.T) {
	client := reddit.NewMockClient()
	// suba has no history; subb has a pre-deploy edit well inside the
	// eligibility window. The first cycle must seed the cursor for the whole
	// scope and emit nothing for either subreddit.
	client.ModLog["subb"] = []models.ChangeEvent{testutil.ChangeEvent("evt1", "somemod", 30*time.Minute)}
	client.WikiPages["subb/magic_eye"] = `{"remove_reposts": true}`
	st := store.NewInMemoryStore()

	r := newTestRunner(client, st, "suba", "subb")
	if err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings, _ := st.GetSubredditSettings("subb"); settings != nil {
		t.Error("bootstrap must not sync pre-deploy history for any subreddit")
	}
	if len(client.Messages) != 0 {
		t.Errorf("bootstrap must not notify actors, got %v", client.Messages)
	}

	// The seeded cursor must hold across cycles for the whole scope.
	if err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.Messages) != 0 {
		t.Errorf("seeded entries must never be replayed, got %v", client.Messages)
	}

	// A genuinely new edit after bootstrap is processed normally.
	evt2 := testutil.ChangeEvent("evt2", "somemod", time.Minute)
	evt2.Subreddit = "suba"
	client.ModLog["suba"] = []models.ChangeEvent{evt2}
	client.WikiPages["suba/magic_eye"] = `{"remove_reposts": false}`
	if err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings, _ := st.GetSubredditSettings("suba"); settings == nil {
		t.Error("post-bootstrap edits must be synced")
	}
}

func TestRunCycleSkipsBotsOwnEdits(t *testing.T) {
	client := reddit.NewMockClient()
	client.ModLog["testsub"] = []models.ChangeEvent{testutil.ChangeEvent("evt1", "magic_eye_bot", time.Minute)}
	client.WikiPages["testsub/magic_eye"] = `{"remove_reposts": true}`
	st := store.NewInMemoryStore()
	if err := st.SetProperty(store.PropertyProcessedChanges, "[]"); err != nil {
		t.Fatalf("failed to seed cursor: %v", err)
	}

	r := newTestRunner(client, st)
	if err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings, _ := st.GetSubredditSettings("testsub"); settings != nil {
		t.Error("the bot's own wiki edits must never trigger a sync")
	}
}

func TestRunCycleProcessesInbox(t *testing.T) {
	client := reddit.NewMockClient()
	client.Inbox = []models.InboundItem{
		{ID: "t4_pm", Author: "someuser", Subject: "hello"},
	}
	st := store.NewInMemoryStore()

	r := newTestRunner(client, st)
	if err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.Replies) != 1 || client.Replies[0].ItemID != "t4_pm" {
		t.Errorf("inbox item must be processed, got %v", client.Replies)
	}
}

func TestRunCycleIsolatesInboxItemFailures(t *testing.T) {
	client := reddit.NewMockClient()
	client.ModeratorsErr = errors.New("upstream down")
	client.Inbox = []models.InboundItem{
		// The comment fails at moderator resolution; the message after it
		// must still be processed.
		{ID: "t1_cmt", Author: "someuser", Subreddit: "testsub", WasComment: true, Body: "clear"},
		{ID: "t4_pm", Author: "someuser", Subject: "hello"},
	}
	st := store.NewInMemoryStore()

	r := newTestRunner(client, st)
	if err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.Replies) != 1 || client.Replies[0].ItemID != "t4_pm" {
		t.Errorf("the failing item must not starve the rest of the batch, got %v", client.Replies)
	}
}

func TestRunCycleReportsInboxFetchFailure(t *testing.T) {
	client := reddit.NewMockClient()
	client.InboxErr = errors.New("upstream down")
	st := store.NewInMemoryStore()

	r := newTestRunner(client, st)
	if err := r.RunCycle(context.Background()); err == nil {
		t.Fatal("a whole-pipeline failure must surface as an error")
	}

	// The change-log pipeline still runs after the inbox failure: the
	// bootstrap cycle must have seeded the cursor.
	if _, ok, err := st.GetProperty(store.PropertyProcessedChanges); err != nil || !ok {
		t.Errorf("change log must still be consumed when the inbox fails (ok=%v, err=%v)", ok, err)
	}
}

func TestRunCycleModLogFailureDoesNotAffectInbox(t *testing.T) {
	client := reddit.NewMockClient()
	client.ModLogErr = errors.New("upstream down")
	client.Inbox = []models.InboundItem{{ID: "t4_pm", Author: "someuser", Subject: "hello"}}
	st := store.NewInMemoryStore()

	r := newTestRunner(client, st)
	// Per-subreddit failures are logged and isolated, not propagated.
	if err := r.RunCycle(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.Replies) != 1 {
		t.Errorf("inbox must still be processed, got %v", client.Replies)
	}
}
