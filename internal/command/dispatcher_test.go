package command

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/athif-irshad/the-magic-eye/internal/models"
	"github.com/athif-irshad/the-magic-eye/internal/reddit"
	"github.com/athif-irshad/the-magic-eye/internal/store"
	"github.com/athif-irshad/the-magic-eye/internal/testutil"
)

// fixture wires a dispatcher around a comment thread whose root submission
// hashes to a stored record with duplicates [a, sub1, c].
func fixture(t *testing.T) (*Dispatcher, *reddit.MockClient, *store.InMemoryStore) {
	t.Helper()
	client := reddit.NewMockClient()
	client.Comments["t1_cmd"] = &models.Comment{ID: "t1_cmd", Author: "somemod", Body: "wrong", LinkID: "t3_sub1", Subreddit: "testsub"}
	client.Submissions["t3_sub1"] = &models.Submission{ID: "t3_sub1", Author: "someuser", URL: "https://img.example/cat.jpg"}
	client.Images["https://img.example/cat.jpg"] = &models.ImageDetails{Dhash: "feedbeef", Width: 800, Height: 600}

	st := store.NewInMemoryStore()
	if err := st.SaveMagicSubmission(models.MagicSubmission{
		Dhash:      "feedbeef",
		Duplicates: []string{"t3_a", "t3_sub1", "t3_c"},
		Author:     "someuser",
	}); err != nil {
		t.Fatalf("failed to seed record: %v", err)
	}
	return NewDispatcher(client, st), client, st
}

func TestHelpRepliesWithUsage(t *testing.T) {
	d, client, _ := fixture(t)
	item := testutil.ModComment("t1_cmd", "somemod", "help")

	if err := d.Dispatch(context.Background(), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reply := testutil.AssertReplied(t, client, "t1_cmd")
	if !strings.Contains(reply.Text, "clear") || !strings.Contains(reply.Text, "wrong") || !strings.Contains(reply.Text, "avoid") {
		t.Errorf("help text should list all commands, got %q", reply.Text)
	}
	if !reply.Distinguish {
		t.Error("help reply must be distinguished")
	}
}

func TestUnknownCommandRejected(t *testing.T) {
	d, client, st := fixture(t)
	item := testutil.ModComment("t1_cmd", "somemod", "destroy everything")

	if err := d.Dispatch(context.Background(), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reply := testutil.AssertReplied(t, client, "t1_cmd")
	if !strings.Contains(reply.Text, "help") {
		t.Errorf("rejection should point to help, got %q", reply.Text)
	}
	record, err := st.GetMagicSubmission("feedbeef")
	if err != nil || record == nil {
		t.Fatalf("record must be untouched: %v", err)
	}
	if len(record.Duplicates) != 3 {
		t.Errorf("unknown command must not mutate the record, duplicates=%v", record.Duplicates)
	}
}

func TestWrongRemovesCurrentSubmission(t *testing.T) {
	d, client, st := fixture(t)
	item := testutil.ModComment("t1_cmd", "somemod", "wrong")

	if err := d.Dispatch(context.Background(), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	record, err := st.GetMagicSubmission("feedbeef")
	if err != nil || record == nil {
		t.Fatalf("record vanished: %v", err)
	}
	want := []string{"t3_a", "t3_c"}
	if len(record.Duplicates) != 2 || record.Duplicates[0] != want[0] || record.Duplicates[1] != want[1] {
		t.Errorf("duplicates = %v, want %v", record.Duplicates, want)
	}
	reply := testutil.AssertReplied(t, client, "t1_cmd")
	if !reply.Distinguish {
		t.Error("success reply must be distinguished")
	}
}

func TestWrongToleratesAbsentID(t *testing.T) {
	d, client, st := fixture(t)
	// Remove the current submission from the record first so the second
	// removal is a no-op.
	record, _ := st.GetMagicSubmission("feedbeef")
	record.RemoveDuplicate("t3_sub1")
	if err := st.SaveMagicSubmission(*record); err != nil {
		t.Fatalf("failed to reseed record: %v", err)
	}

	item := testutil.ModComment("t1_cmd", "somemod", "wrong")
	if err := d.Dispatch(context.Background(), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reply := testutil.AssertReplied(t, client, "t1_cmd")
	if reply.Text != successText {
		t.Errorf("absent id removal is still a success, got %q", reply.Text)
	}
}

func TestClearDeletesRecord(t *testing.T) {
	d, _, st := fixture(t)
	item := testutil.ModComment("t1_cmd", "somemod", "clear")

	if err := d.Dispatch(context.Background(), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	record, err := st.GetMagicSubmission("feedbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record != nil {
		t.Errorf("record must be deleted, got %+v", record)
	}
}

func TestAvoidSetsExactMatchOnlyIdempotently(t *testing.T) {
	d, _, st := fixture(t)
	item := testutil.ModComment("t1_cmd", "somemod", "avoid")

	for i := 0; i < 2; i++ {
		if err := d.Dispatch(context.Background(), item); err != nil {
			t.Fatalf("pass %d: unexpected error: %v", i, err)
		}
		record, err := st.GetMagicSubmission("feedbeef")
		if err != nil || record == nil {
			t.Fatalf("pass %d: record vanished: %v", i, err)
		}
		if !record.ExactMatchOnly {
			t.Errorf("pass %d: exact_match_only must be true", i)
		}
	}
}

func TestCommandIsCaseInsensitive(t *testing.T) {
	d, _, st := fixture(t)
	item := testutil.ModComment("t1_cmd", "somemod", "  CLEAR  ")

	if err := d.Dispatch(context.Background(), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	record, _ := st.GetMagicSubmission("feedbeef")
	if record != nil {
		t.Error("CLEAR should behave exactly like clear")
	}
}

func TestUnfetchableImageAbortsWithoutMutation(t *testing.T) {
	d, client, st := fixture(t)
	delete(client.Images, "https://img.example/cat.jpg")

	item := testutil.ModComment("t1_cmd", "somemod", "clear")
	if err := d.Dispatch(context.Background(), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reply := testutil.AssertReplied(t, client, "t1_cmd")
	if reply.Text != noImageText {
		t.Errorf("expected image-failure reply, got %q", reply.Text)
	}
	record, _ := st.GetMagicSubmission("feedbeef")
	if record == nil || len(record.Duplicates) != 3 {
		t.Error("store must be left unmodified when the image cannot be fetched")
	}
}

func TestMissingRecordIsBenignNoop(t *testing.T) {
	d, client, st := fixture(t)
	if err := st.DeleteMagicSubmission("feedbeef"); err != nil {
		t.Fatalf("failed to clear record: %v", err)
	}

	item := testutil.ModComment("t1_cmd", "somemod", "avoid")
	if err := d.Dispatch(context.Background(), item); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reply := testutil.AssertReplied(t, client, "t1_cmd")
	if reply.Text != nothingToDoText {
		t.Errorf("expected nothing-to-do reply, got %q", reply.Text)
	}
}

func TestUpstreamFailurePropagates(t *testing.T) {
	d, client, _ := fixture(t)
	client.SubmissionErr = errors.New("gateway timeout")

	item := testutil.ModComment("t1_cmd", "somemod", "clear")
	if err := d.Dispatch(context.Background(), item); err == nil {
		t.Fatal("expected an error when the platform call fails")
	}
	testutil.AssertNoReplies(t, client)
}
