package reddit

import (
	"context"
	"sync"

	"github.com/athif-irshad/the-magic-eye/internal/models"
)

// MockClient implements Client in memory for tests.
// In tests, use reddit.NewMockClient() instead of a real platform client so
// no network calls are made; populate the exported maps/slices directly and
// inspect the recorded outbound calls after exercising the code under test.
type MockClient struct {
	mu sync.Mutex

	// Fixture data.
	Inbox       []models.InboundItem
	ModLog      map[string][]models.ChangeEvent // subreddit -> entries
	WikiPages   map[string]string               // subreddit/page -> content
	Submissions map[string]*models.Submission
	Comments    map[string]*models.Comment
	Moderators  map[string][]string // subreddit -> usernames
	Images      map[string]*models.ImageDetails

	// Injected failures.
	InboxErr      error
	ModLogErr     error
	WikiErr       error
	AcceptErr     error
	SubmissionErr error
	ModeratorsErr error

	// Recorded outbound calls.
	Replies         []MockReply
	Messages        []MockMessage
	Reports         []MockReport
	WikiEdits       []MockWikiEdit
	VisibilityCalls []MockVisibility
	AcceptedInvites []string
}

// MockReply records one ReplyTo call.
type MockReply struct {
	ItemID      string
	Text        string
	Distinguish bool
}

// MockMessage records one ComposeMessage call.
type MockMessage struct {
	To      string
	Subject string
	Text    string
}

// MockReport records one ReportComment call.
type MockReport struct {
	CommentID string
	Reason    string
}

// MockWikiEdit records one EditWikiPage call.
type MockWikiEdit struct {
	Subreddit string
	Page      string
	Content   string
	Reason    string
}

// MockVisibility records one SetWikiPageVisibility call.
type MockVisibility struct {
	Subreddit string
	Page      string
	Listed    bool
	PermLevel int
}

// NewMockClient creates an empty MockClient ready for fixtures.
func NewMockClient() *MockClient {
	return &MockClient{
		ModLog:      make(map[string][]models.ChangeEvent),
		WikiPages:   make(map[string]string),
		Submissions: make(map[string]*models.Submission),
		Comments:    make(map[string]*models.Comment),
		Moderators:  make(map[string][]string),
		Images:      make(map[string]*models.ImageDetails),
	}
}

func (m *MockClient) GetInbox(ctx context.Context) ([]models.InboundItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InboxErr != nil {
		return nil, m.InboxErr
	}
	items := make([]models.InboundItem, len(m.Inbox))
	copy(items, m.Inbox)
	return items, nil
}

func (m *MockClient) GetModerationLog(ctx context.Context, subreddit string, filter ModLogFilter) ([]models.ChangeEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ModLogErr != nil {
		return nil, m.ModLogErr
	}
	var entries []models.ChangeEvent
	for _, e := range m.ModLog[subreddit] {
		if filter.Action != "" && e.Action != filter.Action {
			continue
		}
		entries = append(entries, e)
		if filter.Limit > 0 && len(entries) == filter.Limit {
			break
		}
	}
	return entries, nil
}

func (m *MockClient) GetWikiPage(ctx context.Context, subreddit, page string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WikiErr != nil {
		return "", m.WikiErr
	}
	return m.WikiPages[subreddit+"/"+page], nil
}

func (m *MockClient) EditWikiPage(ctx context.Context, subreddit, page, content, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WikiErr != nil {
		return m.WikiErr
	}
	m.WikiPages[subreddit+"/"+page] = content
	m.WikiEdits = append(m.WikiEdits, MockWikiEdit{Subreddit: subreddit, Page: page, Content: content, Reason: reason})
	return nil
}

func (m *MockClient) SetWikiPageVisibility(ctx context.Context, subreddit, page string, listed bool, permLevel int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.VisibilityCalls = append(m.VisibilityCalls, MockVisibility{Subreddit: subreddit, Page: page, Listed: listed, PermLevel: permLevel})
	return nil
}

func (m *MockClient) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubmissionErr != nil {
		return nil, m.SubmissionErr
	}
	return m.Submissions[id], nil
}

func (m *MockClient) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Comments[id], nil
}

func (m *MockClient) ReportComment(ctx context.Context, commentID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reports = append(m.Reports, MockReport{CommentID: commentID, Reason: reason})
	return nil
}

func (m *MockClient) ReplyTo(ctx context.Context, itemID, text string, distinguish bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Replies = append(m.Replies, MockReply{ItemID: itemID, Text: text, Distinguish: distinguish})
	return nil
}

func (m *MockClient) ComposeMessage(ctx context.Context, to, subject, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Messages = append(m.Messages, MockMessage{To: to, Subject: subject, Text: text})
	return nil
}

func (m *MockClient) GetModerators(ctx context.Context, subreddit string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ModeratorsErr != nil {
		return nil, m.ModeratorsErr
	}
	return m.Moderators[subreddit], nil
}

func (m *MockClient) AcceptModInvite(ctx context.Context, subreddit string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AcceptErr != nil {
		return m.AcceptErr
	}
	m.AcceptedInvites = append(m.AcceptedInvites, subreddit)
	return nil
}

func (m *MockClient) GetImageDetails(ctx context.Context, url string) (*models.ImageDetails, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Images[url], nil
}

// Compile-time check that MockClient satisfies the platform boundary.
var _ Client = (*MockClient)(nil)
