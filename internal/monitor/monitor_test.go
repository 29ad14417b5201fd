package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/mention-launcher/internal/domain"
	"github.com/ashureev/mention-launcher/internal/events"
	"github.com/ashureev/mention-launcher/internal/launch"
	"github.com/ashureev/mention-launcher/internal/media"
)

type sentReply struct {
	parentID string
	text     string
}

type searchCall struct {
	query string
	since time.Time
}

type fakeFeed struct {
	mu        sync.Mutex
	account   domain.Account
	batches   [][]domain.Mention
	searches  []searchCall
	replies   []sentReply
	meCalls   int
	searchErr error
	replyErr  error
	panicMsg  string
	// Reply panics when the text contains replyPanic.
	replyPanic string
}

func (f *fakeFeed) Me(context.Context) (domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	return f.account, nil
}

func (f *fakeFeed) SearchMentions(_ context.Context, query string, since time.Time) ([]domain.Mention, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	f.searches = append(f.searches, searchCall{query: query, since: since})
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return batch, nil
}

func (f *fakeFeed) Reply(_ context.Context, parentID, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, sentReply{parentID: parentID, text: text})
	if f.replyPanic != "" && strings.Contains(text, f.replyPanic) {
		panic("reply client failed")
	}
	if f.replyErr != nil {
		return "", f.replyErr
	}
	return "r" + parentID, nil
}

func (f *fakeFeed) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches)
}

func (f *fakeFeed) repliesTo(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, r := range f.replies {
		if r.parentID == id {
			out = append(out, r.text)
		}
	}
	return out
}

type fakeLauncher struct {
	mu       sync.Mutex
	requests []launch.Request
	devBuys  []decimal.Decimal
	outcome  domain.LaunchOutcome
}

func (f *fakeLauncher) CreateToken(_ context.Context, req launch.Request, devBuy decimal.Decimal) domain.LaunchOutcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	f.devBuys = append(f.devBuys, devBuy)
	return f.outcome
}

func (f *fakeLauncher) calls() []launch.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]launch.Request(nil), f.requests...)
}

// blockingLauncher holds CreateToken until release is closed.
type blockingLauncher struct {
	*fakeLauncher
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingLauncher(inner *fakeLauncher) *blockingLauncher {
	return &blockingLauncher{
		fakeLauncher: inner,
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
}

func (b *blockingLauncher) CreateToken(ctx context.Context, req launch.Request, devBuy decimal.Decimal) domain.LaunchOutcome {
	b.once.Do(func() { close(b.entered) })
	<-b.release
	return b.fakeLauncher.CreateToken(ctx, req, devBuy)
}

func waitClosed(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for launch to begin")
	}
}

type fakeImages struct {
	img *media.Image
	err error
	got []string
}

func (f *fakeImages) Fetch(_ context.Context, url string) (*media.Image, error) {
	f.got = append(f.got, url)
	return f.img, f.err
}

type fakeJournal struct {
	mu      sync.Mutex
	records []domain.LaunchRecord
}

func (f *fakeJournal) Append(_ context.Context, rec *domain.LaunchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeJournal) Recent(context.Context, int) ([]domain.LaunchRecord, error) { return nil, nil }

func (f *fakeJournal) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

func (f *fakeJournal) Ping(context.Context) error { return nil }

func (f *fakeJournal) Close() error { return nil }

type fakeObserver struct {
	mu     sync.Mutex
	states []bool
}

func (f *fakeObserver) SetMonitoring(running bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, running)
}

var testNow = time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

type fixture struct {
	m        *Monitor
	feed     *fakeFeed
	launcher *fakeLauncher
	journal  *fakeJournal
	hub      *events.Hub
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	f := &fixture{
		feed:     &fakeFeed{account: domain.Account{ID: "100", Username: "launchbot"}},
		launcher: &fakeLauncher{outcome: domain.LaunchSucceeded("ABC123", "SIG456")},
		journal:  &fakeJournal{},
		hub:      events.NewHub(100, nil),
	}
	f.m = New(cfg, Deps{
		Feed:     f.feed,
		Launcher: f.launcher,
		Journal:  f.journal,
		Events:   f.hub,
	})
	f.m.now = func() time.Time { return testNow }
	return f
}

func mention(id, text string) domain.Mention {
	return domain.Mention{ID: id, Text: text, AuthorID: "u1", AuthorHandle: "alice", CreatedAt: testNow}
}

func TestPollSuccessScenario(t *testing.T) {
	f := newFixture(t, Config{})
	f.feed.batches = [][]domain.Mention{{mention("1850", "@launchbot Moon Rocket + MOON")}}

	require.NoError(t, f.m.poll(context.Background()))

	replies := f.feed.repliesTo("1850")
	require.Len(t, replies, 2)
	assert.Contains(t, replies[0], "Moon Rocket")
	assert.Contains(t, replies[0], "$MOON")
	assert.Contains(t, replies[1], "ABC123")
	assert.Contains(t, replies[1], "https://pump.fun/coin/ABC123")
	assert.Contains(t, replies[1], "https://solscan.io/tx/SIG456")
	assert.True(t, strings.HasPrefix(replies[1], "@alice "))

	calls := f.launcher.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Moon Rocket", calls[0].Name)
	assert.Equal(t, "MOON", calls[0].Ticker)
	assert.Equal(t, "Launched by @alice via tweet", calls[0].Description)
	assert.Equal(t, "https://x.com/alice/status/1850", calls[0].SocialLink)
	assert.Nil(t, calls[0].Image)
	assert.True(t, decimal.RequireFromString("0.01").Equal(f.launcher.devBuys[0]))

	assert.True(t, f.m.hasSeen("1850"))
	assert.Equal(t, 1, f.m.Status().ProcessedTweetsCount)

	require.Len(t, f.journal.records, 1)
	assert.Equal(t, domain.LaunchSourceMention, f.journal.records[0].Source)
	assert.Equal(t, "ABC123", f.journal.records[0].Mint)
	assert.Equal(t, "1850", f.journal.records[0].MentionID)
}

func TestPollFailureScenario(t *testing.T) {
	f := newFixture(t, Config{})
	f.launcher.outcome = domain.LaunchFailed("insufficient funds")
	f.feed.batches = [][]domain.Mention{
		{mention("1850", "@launchbot Moon Rocket + MOON")},
		{mention("1850", "@launchbot Moon Rocket + MOON")},
	}

	require.NoError(t, f.m.poll(context.Background()))
	require.NoError(t, f.m.poll(context.Background()))

	replies := f.feed.repliesTo("1850")
	require.Len(t, replies, 2)
	assert.Contains(t, replies[1], "insufficient funds")
	assert.True(t, f.m.hasSeen("1850"))
	assert.Len(t, f.launcher.calls(), 1)
	require.Len(t, f.journal.records, 1)
	assert.False(t, f.journal.records[0].Success)
	assert.Equal(t, "insufficient funds", f.journal.records[0].Error)
}

func TestPollQueriesOwnMentionsWithinLookback(t *testing.T) {
	f := newFixture(t, Config{Lookback: 2 * time.Minute})

	require.NoError(t, f.m.poll(context.Background()))
	require.NoError(t, f.m.poll(context.Background()))

	require.Len(t, f.feed.searches, 2)
	assert.Equal(t, "@launchbot -is:retweet", f.feed.searches[0].query)
	assert.Equal(t, testNow.Add(-2*time.Minute), f.feed.searches[0].since)
	assert.Equal(t, 1, f.feed.meCalls, "account should be resolved once")
}

func TestPollUnparsedMentionGetsHelp(t *testing.T) {
	f := newFixture(t, Config{})
	f.feed.batches = [][]domain.Mention{{mention("7", "@launchbot just a friendly hello")}}

	require.NoError(t, f.m.poll(context.Background()))

	replies := f.feed.repliesTo("7")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "Moon Rocket + MOON")
	assert.Empty(t, f.launcher.calls())
	assert.Empty(t, f.journal.records)
	assert.True(t, f.m.hasSeen("7"))
}

func TestPollDeduplicatesOverlappingWindows(t *testing.T) {
	f := newFixture(t, Config{})
	a := mention("1", "@launchbot Alpha + AAA")
	b := mention("2", "@launchbot Beta + BBB")
	c := mention("3", "@launchbot Gamma + CCC")
	f.feed.batches = [][]domain.Mention{{a, b}, {b, c}, {a, b, c}}

	for i := 0; i < 3; i++ {
		require.NoError(t, f.m.poll(context.Background()))
	}

	calls := f.launcher.calls()
	var tickers []string
	for _, call := range calls {
		tickers = append(tickers, call.Ticker)
	}
	assert.Equal(t, []string{"AAA", "BBB", "CCC"}, tickers)
	for _, id := range []string{"1", "2", "3"} {
		assert.Len(t, f.feed.repliesTo(id), 2, "mention %s", id)
	}
	assert.Equal(t, 3, f.m.Status().ProcessedTweetsCount)
}

func TestReplyFailureStillMarksSeen(t *testing.T) {
	f := newFixture(t, Config{})
	f.feed.replyErr = errors.New("429 too many requests")
	f.feed.batches = [][]domain.Mention{
		{mention("9", "@launchbot Moon Rocket + MOON")},
		{mention("9", "@launchbot Moon Rocket + MOON")},
	}

	require.NoError(t, f.m.poll(context.Background()))
	require.NoError(t, f.m.poll(context.Background()))

	assert.True(t, f.m.hasSeen("9"))
	assert.Len(t, f.launcher.calls(), 1)
	assert.Len(t, f.feed.repliesTo("9"), 2, "both replies attempted despite failures")

	var failed int
	for _, e := range f.hub.Recent() {
		if e.Type == domain.EventReplyFailed {
			failed++
		}
	}
	assert.Equal(t, 2, failed)
}

func TestPollAttachesFirstMedia(t *testing.T) {
	f := newFixture(t, Config{})
	images := &fakeImages{img: &media.Image{Bytes: []byte("img"), Filename: "image_1.png"}}
	f.m.images = images

	m := mention("5", "@launchbot Pic + PIC")
	m.MediaURLs = []string{"https://pbs.example/a.jpg", "https://pbs.example/b.jpg"}
	f.feed.batches = [][]domain.Mention{{m}}

	require.NoError(t, f.m.poll(context.Background()))

	assert.Equal(t, []string{"https://pbs.example/a.jpg"}, images.got)
	calls := f.launcher.calls()
	require.Len(t, calls, 1)
	require.NotNil(t, calls[0].Image)
	assert.Equal(t, []byte("img"), calls[0].Image.Bytes)
}

func TestPollLaunchesWithoutMediaWhenFetchFails(t *testing.T) {
	f := newFixture(t, Config{})
	f.m.images = &fakeImages{err: media.ErrStatus}

	m := mention("6", "@launchbot Pic + PIC")
	m.MediaURLs = []string{"https://pbs.example/gone.jpg"}
	f.feed.batches = [][]domain.Mention{{m}}

	require.NoError(t, f.m.poll(context.Background()))

	calls := f.launcher.calls()
	require.Len(t, calls, 1)
	assert.Nil(t, calls[0].Image)
	assert.Len(t, f.feed.repliesTo("6"), 2)
}

func TestPollSkipsOwnPosts(t *testing.T) {
	f := newFixture(t, Config{})
	own := mention("8", "@alice Launching Moon Rocket ($MOON) now")
	own.AuthorID = "100"
	f.feed.batches = [][]domain.Mention{{own}}

	require.NoError(t, f.m.poll(context.Background()))

	assert.Empty(t, f.feed.repliesTo("8"))
	assert.Empty(t, f.launcher.calls())
	assert.True(t, f.m.hasSeen("8"))
}

func TestPollFeedErrorLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, Config{})
	f.feed.searchErr = errors.New("503 service unavailable")

	err := f.m.poll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Zero(t, f.m.Status().ProcessedTweetsCount)
}

func TestSafePollRecoversPanics(t *testing.T) {
	f := newFixture(t, Config{})
	f.feed.panicMsg = "boom"

	err := f.m.safePoll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestPanicAfterLaunchStillMarksSeen(t *testing.T) {
	f := newFixture(t, Config{})
	f.feed.replyPanic = "is live"
	m := mention("1", "@launchbot Moon Rocket + MOON")
	f.feed.batches = [][]domain.Mention{{m}, {m}, {m}}

	for i := 0; i < 3; i++ {
		err := f.m.safePoll(context.Background())
		if i == 0 {
			require.Error(t, err)
			assert.Contains(t, err.Error(), "reply client failed")
		} else {
			require.NoError(t, err)
		}
	}

	assert.True(t, f.m.hasSeen("1"))
	assert.Len(t, f.launcher.calls(), 1, "a mention is launched at most once")
}

func TestStopDuringLaunchFinishesIteration(t *testing.T) {
	f := newFixture(t, Config{PollInterval: time.Hour})
	bl := newBlockingLauncher(f.launcher)
	f.m.launcher = bl
	f.feed.batches = [][]domain.Mention{{mention("7", "@launchbot Moon Rocket + MOON")}}

	f.m.Start()
	waitClosed(t, bl.entered)

	f.m.Stop()
	assert.False(t, f.m.Status().IsMonitoring)
	assert.False(t, f.m.hasSeen("7"))

	close(bl.release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.m.Wait(ctx))

	replies := f.feed.repliesTo("7")
	require.Len(t, replies, 2)
	assert.Contains(t, replies[1], "is live")
	assert.True(t, f.m.hasSeen("7"))
	assert.Len(t, f.launcher.calls(), 1)
	assert.Equal(t, 1, f.feed.searchCount())
}

func TestRestartDuringLaunchKeepsPollInterval(t *testing.T) {
	f := newFixture(t, Config{PollInterval: time.Hour})
	bl := newBlockingLauncher(f.launcher)
	f.m.launcher = bl
	f.feed.batches = [][]domain.Mention{{mention("8", "@launchbot Moon Rocket + MOON")}}

	f.m.Start()
	waitClosed(t, bl.entered)

	f.m.Stop()
	f.m.Start()
	close(bl.release)

	require.Eventually(t, func() bool { return f.m.hasSeen("8") }, 2*time.Second, 5*time.Millisecond)
	assert.Never(t, func() bool { return f.feed.searchCount() > 1 }, 100*time.Millisecond, 5*time.Millisecond,
		"the restarted loop sleeps the full interval")

	f.m.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.m.Wait(ctx))
}

func TestStartStopLifecycle(t *testing.T) {
	f := newFixture(t, Config{PollInterval: 5 * time.Millisecond})
	obs := &fakeObserver{}
	f.m.observer = obs
	f.feed.batches = [][]domain.Mention{{mention("1", "@launchbot Moon Rocket + MOON")}}

	assert.False(t, f.m.Status().IsMonitoring)

	status := f.m.Start()
	assert.True(t, status.IsMonitoring)
	assert.True(t, f.m.Start().IsMonitoring, "second start is a no-op")

	require.Eventually(t, func() bool { return f.m.hasSeen("1") }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return f.feed.searchCount() >= 3 }, 2*time.Second, 5*time.Millisecond)

	f.m.Stop()
	f.m.Stop()
	assert.False(t, f.m.Status().IsMonitoring)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.m.Wait(ctx))

	after := f.feed.searchCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, f.feed.searchCount(), "no polling after stop")

	// Restart keeps the dedup set.
	f.feed.mu.Lock()
	f.feed.batches = [][]domain.Mention{{mention("1", "@launchbot Moon Rocket + MOON")}}
	f.feed.mu.Unlock()
	f.m.Start()
	require.Eventually(t, func() bool { return f.feed.searchCount() > after+1 }, 2*time.Second, 5*time.Millisecond)
	f.m.Stop()
	require.NoError(t, f.m.Wait(ctx))

	assert.Len(t, f.launcher.calls(), 1)
	assert.Equal(t, 1, f.m.Status().ProcessedTweetsCount)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	assert.Equal(t, []bool{true, false, true, false}, obs.states)
}

func TestLoopBacksOffAfterFeedError(t *testing.T) {
	f := newFixture(t, Config{PollInterval: time.Millisecond, ErrorBackoff: time.Hour})
	f.feed.searchErr = errors.New("feed down")

	f.m.Start()
	require.Eventually(t, func() bool { return f.feed.searchCount() == 1 }, 2*time.Second, time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, f.feed.searchCount(), "loop should be in backoff")
	assert.True(t, f.m.Status().IsMonitoring, "loop survives a failed iteration")

	// Stop interrupts the backoff sleep.
	f.m.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.m.Wait(ctx))

	var pollFailed bool
	for _, e := range f.hub.Recent() {
		if e.Type == domain.EventPollFailed {
			pollFailed = true
		}
	}
	assert.True(t, pollFailed)
}

func TestWaitWithoutLoop(t *testing.T) {
	f := newFixture(t, Config{})
	require.NoError(t, f.m.Wait(context.Background()))
}
