package social

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL:      srv.URL,
		APIKey:       "key",
		APISecret:    "secret",
		AccessToken:  "token",
		AccessSecret: "token-secret",
	}, nil)
}

func TestMe(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/users/me", r.URL.Path)
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "OAuth "), "request not signed")
		_, _ = w.Write([]byte(`{"data":{"id":"42","name":"Launcher","username":"launchbot"}}`))
	})

	acct, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "42", acct.ID)
	assert.Equal(t, "launchbot", acct.Username)
}

func TestMeRejectsIncompleteResponse(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	})

	_, err := c.Me(context.Background())
	require.Error(t, err)
}

const searchResponse = `{
  "data": [
    {"id":"3","text":"@launchbot Third + THREE","author_id":"u2","created_at":"2026-10-19T12:00:30.000Z"},
    {"id":"2","text":"@launchbot Pic + PIC","author_id":"u1","created_at":"2026-10-19T12:00:20.000Z",
     "attachments":{"media_keys":["m1","m2"]}},
    {"id":"1","text":"@launchbot hello","author_id":"u1","created_at":"2026-10-19T12:00:10.000Z"}
  ],
  "includes": {
    "media": [
      {"media_key":"m1","type":"photo","url":"https://pbs.example/m1.jpg"},
      {"media_key":"m2","type":"video","preview_image_url":"https://pbs.example/m2.jpg"}
    ],
    "users": [
      {"id":"u1","username":"alice"},
      {"id":"u2","username":"bob"}
    ]
  },
  "meta": {"result_count": 3}
}`

func TestSearchMentions(t *testing.T) {
	t.Parallel()
	since := time.Date(2026, 10, 19, 11, 58, 0, 0, time.UTC)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2/tweets/search/recent", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "@launchbot -is:retweet", q.Get("query"))
		assert.Equal(t, "2026-10-19T11:58:00Z", q.Get("start_time"))
		assert.Equal(t, "100", q.Get("max_results"))
		assert.Equal(t, "attachments.media_keys,author_id", q.Get("expansions"))
		_, _ = w.Write([]byte(searchResponse))
	})

	mentions, err := c.SearchMentions(context.Background(), "@launchbot -is:retweet", since)
	require.NoError(t, err)
	require.Len(t, mentions, 3)

	assert.Equal(t, []string{"1", "2", "3"}, []string{mentions[0].ID, mentions[1].ID, mentions[2].ID})

	pic := mentions[1]
	assert.Equal(t, "alice", pic.AuthorHandle)
	assert.Equal(t, "u1", pic.AuthorID)
	assert.Equal(t, []string{"https://pbs.example/m1.jpg", "https://pbs.example/m2.jpg"}, pic.MediaURLs)
	assert.Equal(t, time.Date(2026, 10, 19, 12, 0, 20, 0, time.UTC), pic.CreatedAt.UTC())

	assert.Equal(t, "bob", mentions[2].AuthorHandle)
	assert.Empty(t, mentions[0].MediaURLs)
}

func TestSearchMentionsEmpty(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"meta":{"result_count":0}}`))
	})

	mentions, err := c.SearchMentions(context.Background(), "@x", time.Now())
	require.NoError(t, err)
	assert.Empty(t, mentions)
}

func TestReply(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/2/tweets", r.URL.Path)

		var req replyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "@alice working on it", req.Text)
		assert.Equal(t, "99", req.Reply.InReplyToTweetID)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"id":"100","text":"@alice working on it"}}`))
	})

	id, err := c.Reply(context.Background(), "99", "@alice working on it")
	require.NoError(t, err)
	assert.Equal(t, "100", id)
}

func TestAPIErrorCarriesDetail(t *testing.T) {
	t.Parallel()
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"title":"Too Many Requests","detail":"Too Many Requests","status":429}`))
	})

	_, err := c.Reply(context.Background(), "1", "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAPI))
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "Too Many Requests")
}
