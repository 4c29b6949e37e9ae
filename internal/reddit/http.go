// Package reddit: HTTP implementation of the platform boundary.
//
// This is a deliberately thin wrapper over the platform's OAuth JSON API;
// everything the bot core does goes through the Client interface, so tests
// never touch this file. Perceptual image hashing is not performed here:
// a hasher is injected, and without one every image is reported unavailable.
package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/athif-irshad/the-magic-eye/internal/models"
)

// Default endpoints for the public API.
const (
	DefaultBaseURL  = "https://oauth.reddit.com"
	DefaultTokenURL = "https://www.reddit.com/api/v1/access_token"
)

// ImageHasher extracts a perceptual hash for the image behind a URL.
// A nil result with a nil error means the image is unavailable.
type ImageHasher func(ctx context.Context, url string) (*models.ImageDetails, error)

// HTTPOpts holds configuration options for the HTTP client.
type HTTPOpts struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	UserAgent    string
	Hasher       ImageHasher
	HTTPClient   *http.Client
}

// HTTPOption defines a configuration option for the HTTP client.
type HTTPOption func(*HTTPOpts)

// WithCredentials sets the OAuth script-app credentials.
func WithCredentials(clientID, clientSecret, username, password string) HTTPOption {
	return func(o *HTTPOpts) {
		o.ClientID = clientID
		o.ClientSecret = clientSecret
		o.Username = username
		o.Password = password
	}
}

// WithUserAgent sets the user agent sent on every request.
func WithUserAgent(ua string) HTTPOption {
	return func(o *HTTPOpts) {
		o.UserAgent = ua
	}
}

// WithImageHasher sets the perceptual-hash extractor used by GetImageDetails.
func WithImageHasher(hasher ImageHasher) HTTPOption {
	return func(o *HTTPOpts) {
		o.Hasher = hasher
	}
}

// WithBaseURL overrides the API base URL (tests).
func WithBaseURL(base string) HTTPOption {
	return func(o *HTTPOpts) {
		o.BaseURL = base
	}
}

// WithTokenURL overrides the token endpoint (tests).
func WithTokenURL(tokenURL string) HTTPOption {
	return func(o *HTTPOpts) {
		o.TokenURL = tokenURL
	}
}

// HTTPClient implements Client against the platform's OAuth JSON API.
type HTTPClient struct {
	opts HTTPOpts
	http *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewHTTPClient creates an HTTP platform client based on provided options.
func NewHTTPClient(opts ...HTTPOption) (*HTTPClient, error) {
	cfg := HTTPOpts{
		BaseURL:   DefaultBaseURL,
		TokenURL:  DefaultTokenURL,
		UserAgent: "the-magic-eye",
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.ClientID == "" || cfg.Username == "" {
		slog.Error("HTTPClient credentials not set")
		return nil, fmt.Errorf("platform credentials not set")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	slog.Debug("HTTPClient created", "base_url", cfg.BaseURL, "username", cfg.Username, "hasher_set", cfg.Hasher != nil)
	return &HTTPClient{opts: cfg, http: cfg.HTTPClient}, nil
}

// thing is one element of an API listing.
type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// listing is the standard API listing envelope.
type listing struct {
	Data struct {
		Children []thing `json:"children"`
	} `json:"data"`
}

func (c *HTTPClient) GetInbox(ctx context.Context) ([]models.InboundItem, error) {
	var lst listing
	if err := c.get(ctx, "/message/unread?limit=100&raw_json=1", &lst); err != nil {
		return nil, fmt.Errorf("failed to fetch inbox: %w", err)
	}

	var items []models.InboundItem
	for _, child := range lst.Data.Children {
		var data struct {
			Name          string `json:"name"`
			Author        string `json:"author"`
			Subject       string `json:"subject"`
			Body          string `json:"body"`
			Subreddit     string `json:"subreddit"`
			WasComment    bool   `json:"was_comment"`
			Distinguished string `json:"distinguished"`
		}
		if err := json.Unmarshal(child.Data, &data); err != nil {
			slog.Warn("Skipping undecodable inbox item", "error", err, "kind", child.Kind)
			continue
		}
		items = append(items, models.InboundItem{
			ID:            data.Name,
			Author:        data.Author,
			Subject:       data.Subject,
			Body:          data.Body,
			Subreddit:     data.Subreddit,
			WasComment:    data.WasComment,
			Distinguished: models.Distinguished(data.Distinguished),
		})
	}

	// Mark the batch read so the next poll does not redeliver it.
	if len(items) > 0 {
		if err := c.post(ctx, "/api/read_all_messages", url.Values{}, nil); err != nil {
			slog.Error("Failed to mark inbox read", "error", err)
		}
	}
	slog.Debug("Inbox fetched", "items", len(items))
	return items, nil
}

func (c *HTTPClient) GetModerationLog(ctx context.Context, subreddit string, filter ModLogFilter) ([]models.ChangeEvent, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	path := fmt.Sprintf("/r/%s/about/log?limit=%d&raw_json=1", subreddit, limit)
	if filter.Action != "" {
		path += "&type=" + url.QueryEscape(filter.Action)
	}

	var lst listing
	if err := c.get(ctx, path, &lst); err != nil {
		return nil, fmt.Errorf("failed to fetch moderation log for %s: %w", subreddit, err)
	}

	var entries []models.ChangeEvent
	for _, child := range lst.Data.Children {
		var data struct {
			ID         string  `json:"id"`
			CreatedUTC float64 `json:"created_utc"`
			Mod        string  `json:"mod"`
			Subreddit  string  `json:"subreddit"`
			Action     string  `json:"action"`
			Details    string  `json:"details"`
		}
		if err := json.Unmarshal(child.Data, &data); err != nil {
			slog.Warn("Skipping undecodable moderation-log entry", "error", err)
			continue
		}
		entries = append(entries, models.ChangeEvent{
			ID:        data.ID,
			CreatedAt: int64(data.CreatedUTC),
			Actor:     data.Mod,
			Subreddit: data.Subreddit,
			Action:    data.Action,
			Details:   data.Details,
		})
	}
	slog.Debug("Moderation log fetched", "subreddit", subreddit, "entries", len(entries))
	return entries, nil
}

func (c *HTTPClient) GetWikiPage(ctx context.Context, subreddit, page string) (string, error) {
	var resp struct {
		Data struct {
			ContentMD string `json:"content_md"`
		} `json:"data"`
	}
	path := fmt.Sprintf("/r/%s/wiki/%s?raw_json=1", subreddit, page)
	if err := c.get(ctx, path, &resp); err != nil {
		// A page that was never created comes back 404. Callers treat empty
		// content as "no configuration yet" and bootstrap defaults onto it.
		var se *StatusError
		if errors.As(err, &se) && se.Status == http.StatusNotFound {
			slog.Debug("Wiki page does not exist", "subreddit", subreddit, "page", page)
			return "", nil
		}
		return "", fmt.Errorf("failed to fetch wiki page %s/%s: %w", subreddit, page, err)
	}
	return resp.Data.ContentMD, nil
}

func (c *HTTPClient) EditWikiPage(ctx context.Context, subreddit, page, content, reason string) error {
	form := url.Values{
		"page":    {page},
		"content": {content},
		"reason":  {reason},
	}
	if err := c.post(ctx, fmt.Sprintf("/r/%s/api/wiki/edit", subreddit), form, nil); err != nil {
		return fmt.Errorf("failed to edit wiki page %s/%s: %w", subreddit, page, err)
	}
	return nil
}

func (c *HTTPClient) SetWikiPageVisibility(ctx context.Context, subreddit, page string, listed bool, permLevel int) error {
	form := url.Values{
		"listed":    {strconv.FormatBool(listed)},
		"permlevel": {strconv.Itoa(permLevel)},
	}
	if err := c.post(ctx, fmt.Sprintf("/r/%s/wiki/settings/%s", subreddit, page), form, nil); err != nil {
		return fmt.Errorf("failed to set wiki visibility for %s/%s: %w", subreddit, page, err)
	}
	return nil
}

func (c *HTTPClient) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	var lst listing
	if err := c.get(ctx, "/api/info?raw_json=1&id="+url.QueryEscape(fullname("t3", id)), &lst); err != nil {
		return nil, fmt.Errorf("failed to fetch submission %s: %w", id, err)
	}
	if len(lst.Data.Children) == 0 {
		return nil, nil
	}
	var data struct {
		Name       string  `json:"name"`
		Author     string  `json:"author"`
		URL        string  `json:"url"`
		Permalink  string  `json:"permalink"`
		CreatedUTC float64 `json:"created_utc"`
	}
	if err := json.Unmarshal(lst.Data.Children[0].Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode submission %s: %w", id, err)
	}
	return &models.Submission{
		ID:        data.Name,
		Author:    data.Author,
		URL:       data.URL,
		Permalink: data.Permalink,
		CreatedAt: int64(data.CreatedUTC),
	}, nil
}

func (c *HTTPClient) GetComment(ctx context.Context, id string) (*models.Comment, error) {
	var lst listing
	if err := c.get(ctx, "/api/info?raw_json=1&id="+url.QueryEscape(fullname("t1", id)), &lst); err != nil {
		return nil, fmt.Errorf("failed to fetch comment %s: %w", id, err)
	}
	if len(lst.Data.Children) == 0 {
		return nil, nil
	}
	var data struct {
		Name      string `json:"name"`
		Author    string `json:"author"`
		Body      string `json:"body"`
		LinkID    string `json:"link_id"`
		Subreddit string `json:"subreddit"`
	}
	if err := json.Unmarshal(lst.Data.Children[0].Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode comment %s: %w", id, err)
	}
	return &models.Comment{
		ID:        data.Name,
		Author:    data.Author,
		Body:      data.Body,
		LinkID:    data.LinkID,
		Subreddit: data.Subreddit,
	}, nil
}

func (c *HTTPClient) ReportComment(ctx context.Context, commentID, reason string) error {
	form := url.Values{
		"thing_id": {fullname("t1", commentID)},
		"reason":   {reason},
		"api_type": {"json"},
	}
	if err := c.post(ctx, "/api/report", form, nil); err != nil {
		return fmt.Errorf("failed to report comment %s: %w", commentID, err)
	}
	return nil
}

func (c *HTTPClient) ReplyTo(ctx context.Context, itemID, text string, distinguish bool) error {
	form := url.Values{
		"thing_id": {itemID},
		"text":     {text},
		"api_type": {"json"},
	}
	var resp struct {
		JSON struct {
			Data struct {
				Things []thing `json:"things"`
			} `json:"data"`
		} `json:"json"`
	}
	if err := c.post(ctx, "/api/comment", form, &resp); err != nil {
		return fmt.Errorf("failed to reply to %s: %w", itemID, err)
	}
	if !distinguish {
		return nil
	}
	if len(resp.JSON.Data.Things) == 0 {
		slog.Warn("Reply created but id missing, cannot distinguish", "item_id", itemID)
		return nil
	}
	var created struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(resp.JSON.Data.Things[0].Data, &created); err != nil || created.Name == "" {
		slog.Warn("Reply created but id undecodable, cannot distinguish", "item_id", itemID)
		return nil
	}
	distForm := url.Values{
		"id":       {created.Name},
		"how":      {"yes"},
		"api_type": {"json"},
	}
	if err := c.post(ctx, "/api/distinguish", distForm, nil); err != nil {
		return fmt.Errorf("failed to distinguish reply %s: %w", created.Name, err)
	}
	return nil
}

func (c *HTTPClient) ComposeMessage(ctx context.Context, to, subject, text string) error {
	form := url.Values{
		"to":       {to},
		"subject":  {subject},
		"text":     {text},
		"api_type": {"json"},
	}
	if err := c.post(ctx, "/api/compose", form, nil); err != nil {
		return fmt.Errorf("failed to compose message to %s: %w", to, err)
	}
	return nil
}

func (c *HTTPClient) GetModerators(ctx context.Context, subreddit string) ([]string, error) {
	var resp struct {
		Data struct {
			Children []struct {
				Name string `json:"name"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := c.get(ctx, fmt.Sprintf("/r/%s/about/moderators?raw_json=1", subreddit), &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch moderators for %s: %w", subreddit, err)
	}
	names := make([]string, 0, len(resp.Data.Children))
	for _, child := range resp.Data.Children {
		names = append(names, child.Name)
	}
	return names, nil
}

func (c *HTTPClient) AcceptModInvite(ctx context.Context, subreddit string) error {
	form := url.Values{"api_type": {"json"}}
	if err := c.post(ctx, fmt.Sprintf("/r/%s/api/accept_moderator_invite", subreddit), form, nil); err != nil {
		return fmt.Errorf("failed to accept moderator invite for %s: %w", subreddit, err)
	}
	return nil
}

func (c *HTTPClient) GetImageDetails(ctx context.Context, imageURL string) (*models.ImageDetails, error) {
	if c.opts.Hasher == nil {
		slog.Debug("No image hasher configured, treating image as unavailable", "url", imageURL)
		return nil, nil
	}
	return c.opts.Hasher(ctx, imageURL)
}

// StatusError is a non-2xx platform API response.
type StatusError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request %s %s returned status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// fullname prefixes a bare id with its thing-type kind when missing.
func fullname(kind, id string) string {
	if strings.HasPrefix(id, kind+"_") {
		return id
	}
	return kind + "_" + id
}

// get performs an authenticated GET and decodes the JSON response into out.
func (c *HTTPClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// post performs an authenticated form POST, decoding into out when non-nil.
func (c *HTTPClient) post(ctx context.Context, path string, form url.Values, out any) error {
	return c.do(ctx, http.MethodPost, path, form, out)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, form url.Values, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request %s %s: %w", method, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", c.opts.UserAgent)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		slog.Error("Platform API error", "method", method, "path", path, "status", resp.StatusCode)
		return &StatusError{Status: resp.StatusCode, Method: method, Path: path, Body: string(snippet)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response for %s %s: %w", method, path, err)
	}
	return nil
}

// accessToken returns a cached OAuth token, fetching a fresh one when expired.
func (c *HTTPClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.opts.Username},
		"password":   {c.opts.Password},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.opts.ClientID, c.opts.ClientSecret)
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token response carried no access token")
	}

	c.token = tok.AccessToken
	// Refresh one minute early so in-flight requests never race expiry.
	c.expires = time.Now().Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	slog.Debug("Fetched platform access token", "expires_in", tok.ExpiresIn)
	return c.token, nil
}

// Compile-time check that HTTPClient satisfies the platform boundary.
var _ Client = (*HTTPClient)(nil)
