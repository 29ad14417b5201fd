// Package monitor runs the mention poll loop: it watches the feed for posts
// addressed to the account, launches the requested tokens and replies with
// the outcome. Each mention id is handled at most once per process.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ashureev/mention-launcher/internal/domain"
	"github.com/ashureev/mention-launcher/internal/events"
	"github.com/ashureev/mention-launcher/internal/launch"
	"github.com/ashureev/mention-launcher/internal/media"
	"github.com/ashureev/mention-launcher/internal/metrics"
	"github.com/ashureev/mention-launcher/internal/parser"
	"github.com/ashureev/mention-launcher/internal/store"
)

// Defaults for Config fields left zero.
const (
	DefaultPollInterval = 30 * time.Second
	DefaultLookback     = 2 * time.Minute
	DefaultErrorBackoff = 60 * time.Second
)

// Feed is the social service the monitor reads from and replies to.
type Feed interface {
	Me(ctx context.Context) (domain.Account, error)
	SearchMentions(ctx context.Context, query string, since time.Time) ([]domain.Mention, error)
	Reply(ctx context.Context, parentID, text string) (string, error)
}

// Launcher creates tokens. Implementations report every failure in the outcome.
type Launcher interface {
	CreateToken(ctx context.Context, req launch.Request, devBuy decimal.Decimal) domain.LaunchOutcome
}

// ImageFetcher downloads mention media.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) (*media.Image, error)
}

// StateObserver is told whenever polling starts or stops.
type StateObserver interface {
	SetMonitoring(running bool)
}

// Config tunes the poll loop.
type Config struct {
	PollInterval time.Duration
	Lookback     time.Duration
	ErrorBackoff time.Duration
	DevBuy       decimal.Decimal
}

// Deps are the collaborators of a Monitor. Feed and Launcher are required.
type Deps struct {
	Feed     Feed
	Launcher Launcher
	Images   ImageFetcher
	Journal  store.Journal
	Events   events.Publisher
	Metrics  *metrics.Metrics
	Observer StateObserver
	Logger   *slog.Logger
}

// Monitor owns the poll loop and the dedup set.
type Monitor struct {
	cfg      Config
	feed     Feed
	launcher Launcher
	images   ImageFetcher
	journal  store.Journal
	events   events.Publisher
	metrics  *metrics.Metrics
	observer StateObserver
	logger   *slog.Logger
	now      func() time.Time

	running     atomic.Bool
	lifecycleMu sync.Mutex
	loopDone    chan struct{} // non-nil while a loop goroutine exists
	wake        chan struct{}

	accountMu sync.Mutex
	account   *domain.Account

	seenMu sync.RWMutex
	seen   map[string]struct{}
}

// New creates a stopped monitor.
func New(cfg Config, deps Deps) *Monitor {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.DevBuy.IsZero() {
		cfg.DevBuy = decimal.RequireFromString(launch.DefaultDevBuy)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Journal == nil {
		deps.Journal = store.Nop{}
	}
	if deps.Events == nil {
		deps.Events = events.Nop{}
	}

	return &Monitor{
		cfg:      cfg,
		feed:     deps.Feed,
		launcher: deps.Launcher,
		images:   deps.Images,
		journal:  deps.Journal,
		events:   deps.Events,
		metrics:  deps.Metrics,
		observer: deps.Observer,
		logger:   deps.Logger.With("component", "monitor"),
		now:      time.Now,
		wake:     make(chan struct{}, 1),
		seen:     make(map[string]struct{}),
	}
}

// Start begins polling. Calling Start while already polling does nothing.
func (m *Monitor) Start() domain.MonitorStatus {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.running.Load() {
		return m.Status()
	}
	m.running.Store(true)

	// Drop a wake left by a Stop that landed mid-iteration.
	select {
	case <-m.wake:
	default:
	}

	// A loop that saw Stop but has not yet exited picks the flag back up.
	if m.loopDone == nil {
		m.loopDone = make(chan struct{})
		go m.run(m.loopDone)
	}

	m.logger.Info("Monitoring started", "poll_interval", m.cfg.PollInterval, "lookback", m.cfg.Lookback)
	m.events.Publish(domain.Event{Type: domain.EventMonitorStarted, Message: "monitoring started"})
	if m.observer != nil {
		m.observer.SetMonitoring(true)
	}
	return m.Status()
}

// Stop asks the loop to exit. An iteration already in progress runs to
// completion, including any launch it has started. Safe to call when stopped.
func (m *Monitor) Stop() {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if !m.running.Load() {
		return
	}
	m.running.Store(false)

	select {
	case m.wake <- struct{}{}:
	default:
	}

	m.logger.Info("Monitoring stop requested")
	m.events.Publish(domain.Event{Type: domain.EventMonitorStopped, Message: "monitoring stopped"})
	if m.observer != nil {
		m.observer.SetMonitoring(false)
	}
}

// Wait blocks until the loop goroutine has exited or ctx is done.
func (m *Monitor) Wait(ctx context.Context) error {
	m.lifecycleMu.Lock()
	done := m.loopDone
	m.lifecycleMu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status reports whether the loop is polling and how many mentions it has handled.
func (m *Monitor) Status() domain.MonitorStatus {
	return domain.MonitorStatus{
		IsMonitoring:         m.running.Load(),
		ProcessedTweetsCount: m.seenCount(),
	}
}

// continueOrExit is checked at the top of every iteration. When polling has
// been stopped it retires the loop under the lifecycle lock, so a concurrent
// Start either revives this loop or spawns a fresh one, never both.
func (m *Monitor) continueOrExit(done chan struct{}) bool {
	m.lifecycleMu.Lock()
	defer m.lifecycleMu.Unlock()

	if m.running.Load() {
		return true
	}
	if m.loopDone == done {
		m.loopDone = nil
	}
	close(done)
	m.logger.Info("Monitoring loop exited")
	return false
}

func (m *Monitor) run(done chan struct{}) {
	// Iterations are not tied to any request; Stop is cooperative.
	ctx := context.Background()

	for m.continueOrExit(done) {
		started := m.now()
		err := m.safePoll(ctx)
		m.metrics.ObservePoll(m.now().Sub(started))

		delay := m.cfg.PollInterval
		if err != nil {
			delay = m.cfg.ErrorBackoff
			m.logger.Error("Poll iteration failed, backing off", "error", err, "backoff", delay)
			m.metrics.PollFailed()
			m.events.Publish(domain.Event{Type: domain.EventPollFailed, Message: err.Error()})
		}
		m.sleep(delay)
	}
}

// sleep waits for d or until Stop wakes the loop.
func (m *Monitor) sleep(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-m.wake:
	}
}

func (m *Monitor) safePoll(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("poll panicked: %v", r)
		}
	}()
	return m.poll(ctx)
}

// poll runs one iteration: query the feed and handle each mention in order.
func (m *Monitor) poll(ctx context.Context) error {
	acct, err := m.me(ctx)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("@%s -is:retweet", acct.Username)
	since := m.now().Add(-m.cfg.Lookback)
	mentions, err := m.feed.SearchMentions(ctx, query, since)
	if err != nil {
		return fmt.Errorf("search mentions: %w", err)
	}
	if len(mentions) > 0 {
		m.logger.Debug("Fetched mentions", "count", len(mentions), "since", since)
	}

	for _, mention := range mentions {
		m.handle(ctx, acct, mention)
	}
	return nil
}

// me resolves the account once and caches it.
func (m *Monitor) me(ctx context.Context) (domain.Account, error) {
	m.accountMu.Lock()
	defer m.accountMu.Unlock()

	if m.account != nil {
		return *m.account, nil
	}
	acct, err := m.feed.Me(ctx)
	if err != nil {
		return domain.Account{}, fmt.Errorf("resolve account: %w", err)
	}
	m.account = &acct
	m.logger.Info("Monitoring account", "account_id", acct.ID, "username", acct.Username)
	return acct, nil
}

func (m *Monitor) handle(ctx context.Context, acct domain.Account, mention domain.Mention) {
	if m.hasSeen(mention.ID) {
		m.metrics.MentionHandled(metrics.ResultDuplicate)
		return
	}
	// Seen even if a later step panics, so a launched mention is never retried.
	defer m.markSeen(mention.ID)

	log := m.logger.With("mention_id", mention.ID, "author", mention.AuthorHandle)
	handle := mention.AuthorHandle

	// Our own replies quote the author and can match the search.
	if mention.AuthorID != "" && mention.AuthorID == acct.ID {
		m.events.Publish(domain.Event{Type: domain.EventMentionSkipped, MentionID: mention.ID, Message: "own post"})
		return
	}

	log.Info("Processing mention", "text", mention.Text)
	m.events.Publish(domain.Event{
		Type:      domain.EventMentionReceived,
		MentionID: mention.ID,
		Message:   mention.Text,
		Data:      map[string]any{"author": handle},
	})

	req, ok := parser.Parse(mention.Text)
	if !ok {
		log.Info("Mention is not a launch request")
		m.reply(ctx, log, mention, metrics.ReplyHelp, helpReply(handle))
		m.metrics.MentionHandled(metrics.ResultUnparsed)
		m.events.Publish(domain.Event{Type: domain.EventMentionSkipped, MentionID: mention.ID, Message: "no token request found"})
		return
	}

	log = log.With("name", req.Name, "ticker", req.Ticker)
	m.reply(ctx, log, mention, metrics.ReplyInProgress, inProgressReply(handle, req))

	outcome := m.launcher.CreateToken(ctx, launch.Request{
		Name:        req.Name,
		Ticker:      req.Ticker,
		Description: fmt.Sprintf("Launched by @%s via tweet", handle),
		SocialLink:  mention.URL(),
		Image:       m.fetchImage(ctx, log, mention),
	}, m.cfg.DevBuy)

	m.recordLaunch(ctx, log, mention, req, outcome)

	if outcome.Success {
		log.Info("Launch succeeded", "mint", outcome.MintAddress, "signature", outcome.TransactionSignature)
		m.reply(ctx, log, mention, metrics.ReplySuccess, successReply(handle, req, outcome))
		m.metrics.MentionHandled(metrics.ResultLaunched)
	} else {
		log.Warn("Launch failed", "error", outcome.ErrorMessage)
		m.reply(ctx, log, mention, metrics.ReplyFailure, failureReply(handle, req, outcome))
		m.metrics.MentionHandled(metrics.ResultFailed)
	}
}

// fetchImage is best effort: any failure means launching without an image.
func (m *Monitor) fetchImage(ctx context.Context, log *slog.Logger, mention domain.Mention) *media.Image {
	url, ok := mention.FirstMediaURL()
	if !ok || m.images == nil {
		return nil
	}
	img, err := m.images.Fetch(ctx, url)
	if err != nil {
		log.Warn("Media fetch failed, continuing without image", "media_url", url, "error", err)
		return nil
	}
	return img
}

func (m *Monitor) reply(ctx context.Context, log *slog.Logger, mention domain.Mention, kind, text string) {
	id, err := m.feed.Reply(ctx, mention.ID, text)
	m.metrics.ReplyPosted(kind, err)
	if err != nil {
		log.Error("Reply failed", "kind", kind, "error", err)
		m.events.Publish(domain.Event{
			Type:      domain.EventReplyFailed,
			MentionID: mention.ID,
			Message:   err.Error(),
			Data:      map[string]any{"kind": kind},
		})
		return
	}
	log.Debug("Reply posted", "kind", kind, "reply_id", id)
	m.events.Publish(domain.Event{
		Type:      domain.EventReplySent,
		MentionID: mention.ID,
		Message:   text,
		Data:      map[string]any{"kind": kind, "reply_id": id},
	})
}

func (m *Monitor) recordLaunch(ctx context.Context, log *slog.Logger, mention domain.Mention, req domain.TokenRequest, out domain.LaunchOutcome) {
	m.metrics.LaunchCompleted(domain.LaunchSourceMention, out.Success)

	evt := domain.Event{
		MentionID: mention.ID,
		Data:      map[string]any{"name": req.Name, "ticker": req.Ticker},
	}
	if out.Success {
		evt.Type = domain.EventLaunchSucceeded
		evt.Message = out.MintAddress
		evt.Data["signature"] = out.TransactionSignature
	} else {
		evt.Type = domain.EventLaunchFailed
		evt.Message = out.ErrorMessage
	}
	m.events.Publish(evt)

	rec := &domain.LaunchRecord{
		Source:    domain.LaunchSourceMention,
		MentionID: mention.ID,
		Author:    mention.AuthorHandle,
		Name:      req.Name,
		Ticker:    req.Ticker,
		Success:   out.Success,
		Mint:      out.MintAddress,
		Signature: out.TransactionSignature,
		Error:     out.ErrorMessage,
		CreatedAt: m.now().UTC(),
	}
	if err := m.journal.Append(ctx, rec); err != nil {
		log.Warn("Failed to journal launch", "error", err)
	}
}

func (m *Monitor) hasSeen(id string) bool {
	m.seenMu.RLock()
	defer m.seenMu.RUnlock()
	_, ok := m.seen[id]
	return ok
}

func (m *Monitor) markSeen(id string) {
	m.seenMu.Lock()
	m.seen[id] = struct{}{}
	n := len(m.seen)
	m.seenMu.Unlock()
	m.metrics.SetSeen(n)
}

func (m *Monitor) seenCount() int {
	m.seenMu.RLock()
	defer m.seenMu.RUnlock()
	return len(m.seen)
}
