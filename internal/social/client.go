// Package social talks to the X API v2 on behalf of the monitored account.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/tidwall/gjson"

	"github.com/ashureev/mention-launcher/internal/domain"
)

const (
	// DefaultBaseURL is the public X API host.
	DefaultBaseURL = "https://api.twitter.com"

	defaultTimeout   = 20 * time.Second
	maxResults       = 100
	maxResponseBytes = 4 << 20
)

// ErrAPI is returned for any non-2xx answer from the API.
var ErrAPI = errors.New("social api error")

// Config holds OAuth 1.0a user-context credentials.
type Config struct {
	BaseURL      string
	APIKey       string
	APISecret    string
	AccessToken  string
	AccessSecret string
	Timeout      time.Duration
}

// Client is a minimal X API v2 client: identity, mention search, replies.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a client whose requests are signed with the configured credentials.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	hc := oauth1.NewConfig(cfg.APIKey, cfg.APISecret).
		Client(oauth1.NoContext, oauth1.NewToken(cfg.AccessToken, cfg.AccessSecret))
	hc.Timeout = cfg.Timeout

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		logger:  logger,
	}
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (domain.Account, error) {
	body, err := c.do(ctx, http.MethodGet, "/2/users/me", nil, nil)
	if err != nil {
		return domain.Account{}, fmt.Errorf("get me: %w", err)
	}

	data := gjson.GetBytes(body, "data")
	acct := domain.Account{
		ID:       data.Get("id").String(),
		Username: data.Get("username").String(),
	}
	if acct.ID == "" || acct.Username == "" {
		return domain.Account{}, fmt.Errorf("get me: response missing id or username")
	}
	return acct, nil
}

// SearchMentions runs a recent search for query, limited to posts created
// after since. Results are returned oldest first.
func (c *Client) SearchMentions(ctx context.Context, query string, since time.Time) ([]domain.Mention, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("start_time", since.UTC().Format(time.RFC3339))
	params.Set("max_results", fmt.Sprint(maxResults))
	params.Set("tweet.fields", "author_id,created_at,attachments")
	params.Set("expansions", "attachments.media_keys,author_id")
	params.Set("media.fields", "url,type,preview_image_url")
	params.Set("user.fields", "username")

	body, err := c.do(ctx, http.MethodGet, "/2/tweets/search/recent", params, nil)
	if err != nil {
		return nil, fmt.Errorf("search mentions: %w", err)
	}
	return parseMentions(body), nil
}

func parseMentions(body []byte) []domain.Mention {
	mediaURLs := make(map[string]string)
	gjson.GetBytes(body, "includes.media").ForEach(func(_, m gjson.Result) bool {
		u := m.Get("url").String()
		if u == "" {
			u = m.Get("preview_image_url").String()
		}
		if u != "" {
			mediaURLs[m.Get("media_key").String()] = u
		}
		return true
	})

	handles := make(map[string]string)
	gjson.GetBytes(body, "includes.users").ForEach(func(_, u gjson.Result) bool {
		handles[u.Get("id").String()] = u.Get("username").String()
		return true
	})

	var mentions []domain.Mention
	gjson.GetBytes(body, "data").ForEach(func(_, t gjson.Result) bool {
		m := domain.Mention{
			ID:       t.Get("id").String(),
			Text:     t.Get("text").String(),
			AuthorID: t.Get("author_id").String(),
		}
		m.AuthorHandle = handles[m.AuthorID]
		if ts, err := time.Parse(time.RFC3339, t.Get("created_at").String()); err == nil {
			m.CreatedAt = ts
		}
		for _, key := range t.Get("attachments.media_keys").Array() {
			if u, ok := mediaURLs[key.String()]; ok {
				m.MediaURLs = append(m.MediaURLs, u)
			}
		}
		if m.ID != "" {
			mentions = append(mentions, m)
		}
		return true
	})

	// The API answers newest first.
	for i, j := 0, len(mentions)-1; i < j; i, j = i+1, j-1 {
		mentions[i], mentions[j] = mentions[j], mentions[i]
	}
	return mentions
}

type replyRequest struct {
	Text  string      `json:"text"`
	Reply replyTarget `json:"reply"`
}

type replyTarget struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

// Reply posts text as a reply to parentID and returns the new post id.
func (c *Client) Reply(ctx context.Context, parentID, text string) (string, error) {
	payload, err := json.Marshal(replyRequest{
		Text:  text,
		Reply: replyTarget{InReplyToTweetID: parentID},
	})
	if err != nil {
		return "", fmt.Errorf("encode reply: %w", err)
	}

	body, err := c.do(ctx, http.MethodPost, "/2/tweets", nil, payload)
	if err != nil {
		return "", fmt.Errorf("reply to %s: %w", parentID, err)
	}
	return gjson.GetBytes(body, "data.id").String(), nil
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload []byte) ([]byte, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Social API error", "method", method, "path", path, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d: %s", ErrAPI, resp.StatusCode, apiDetail(body))
	}
	return body, nil
}

// apiDetail extracts the most specific message from an API problem document.
func apiDetail(body []byte) string {
	for _, path := range []string{"detail", "title", "errors.0.message"} {
		if v := gjson.GetBytes(body, path).String(); v != "" {
			return v
		}
	}
	return strings.TrimSpace(string(body))
}
