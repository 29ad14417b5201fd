// Package control is the operator surface over the monitor and the launch
// client: start, stop, status, manual launches and parse diagnostics.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ashureev/mention-launcher/internal/domain"
	"github.com/ashureev/mention-launcher/internal/events"
	"github.com/ashureev/mention-launcher/internal/launch"
	"github.com/ashureev/mention-launcher/internal/metrics"
	"github.com/ashureev/mention-launcher/internal/parser"
	"github.com/ashureev/mention-launcher/internal/store"
)

// ErrValidation is returned when a manual launch lacks a name or ticker.
var ErrValidation = errors.New("name and symbol are required")

// Monitor is the poll loop as seen by the control surface.
type Monitor interface {
	Start() domain.MonitorStatus
	Stop()
	Status() domain.MonitorStatus
	Wait(ctx context.Context) error
}

// Launcher creates tokens.
type Launcher interface {
	CreateToken(ctx context.Context, req launch.Request, devBuy decimal.Decimal) domain.LaunchOutcome
}

// Components are built on first use.
type Components struct {
	Monitor  Monitor
	Launcher Launcher
}

// Factory builds the components. It is called at most once successfully.
type Factory func() (*Components, error)

// Options carries the optional collaborators of a Service.
type Options struct {
	DevBuy  decimal.Decimal
	Journal store.Journal
	Events  events.Publisher
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// ManualRequest is an operator-initiated launch.
type ManualRequest struct {
	Name        string
	Ticker      string
	Description string
	ImageURL    string
}

// ParseResult is the outcome of a parse diagnostic.
type ParseResult struct {
	Input   string
	Parsed  *domain.TokenRequest
	IsValid bool
}

// Service owns the lazily constructed monitor and launch client.
type Service struct {
	factory Factory
	devBuy  decimal.Decimal
	journal store.Journal
	events  events.Publisher
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu    sync.Mutex
	comps *Components
}

// NewService creates a service. Nothing is constructed until the first
// Start or ManualLaunch.
func NewService(factory Factory, opts Options) *Service {
	if opts.DevBuy.IsZero() {
		opts.DevBuy = decimal.RequireFromString(launch.DefaultDevBuy)
	}
	if opts.Journal == nil {
		opts.Journal = store.Nop{}
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		factory: factory,
		devBuy:  opts.DevBuy,
		journal: opts.Journal,
		events:  opts.Events,
		metrics: opts.Metrics,
		logger:  opts.Logger.With("component", "control"),
	}
}

func (s *Service) components() (*Components, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.comps != nil {
		return s.comps, nil
	}
	comps, err := s.factory()
	if err != nil {
		return nil, fmt.Errorf("initialize monitor: %w", err)
	}
	s.logger.Info("Monitor initialized")
	s.comps = comps
	return comps, nil
}

func (s *Service) initialized() *Components {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.comps
}

// Start initializes the components if needed and begins polling.
func (s *Service) Start() (domain.MonitorStatus, error) {
	comps, err := s.components()
	if err != nil {
		return domain.MonitorStatus{}, err
	}
	return comps.Monitor.Start(), nil
}

// Stop requests a cooperative stop. It is a no-op before initialization.
func (s *Service) Stop() {
	if comps := s.initialized(); comps != nil {
		comps.Monitor.Stop()
	}
}

// Status never initializes anything.
func (s *Service) Status() domain.MonitorStatus {
	comps := s.initialized()
	if comps == nil {
		return domain.MonitorStatus{Message: domain.NotInitializedMessage}
	}
	return comps.Monitor.Status()
}

// Shutdown stops polling and waits for the in-flight iteration to finish.
func (s *Service) Shutdown(ctx context.Context) error {
	comps := s.initialized()
	if comps == nil {
		return nil
	}
	comps.Monitor.Stop()
	return comps.Monitor.Wait(ctx)
}

// ManualLaunch launches a token directly, bypassing the feed. A missing name
// or ticker yields ErrValidation before any external call. Every other
// failure is reported in the outcome.
func (s *Service) ManualLaunch(ctx context.Context, req ManualRequest) (domain.LaunchOutcome, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Ticker = strings.TrimSpace(req.Ticker)
	if req.Name == "" || req.Ticker == "" {
		return domain.LaunchOutcome{}, ErrValidation
	}

	comps, err := s.components()
	if err != nil {
		return domain.LaunchOutcome{}, err
	}

	log := s.logger.With("name", req.Name, "ticker", req.Ticker)
	log.Info("Manual launch requested", "image_url", req.ImageURL)

	// A submitted transaction cannot be recalled, so the caller going away
	// must not abort the attempt. The launch client bounds each step itself.
	ctx = context.WithoutCancel(ctx)

	out := comps.Launcher.CreateToken(ctx, launch.Request{
		Name:        req.Name,
		Ticker:      req.Ticker,
		Description: req.Description,
		ImageURL:    strings.TrimSpace(req.ImageURL),
	}, s.devBuy)

	s.record(ctx, log, req, out)
	return out, nil
}

func (s *Service) record(ctx context.Context, log *slog.Logger, req ManualRequest, out domain.LaunchOutcome) {
	s.metrics.LaunchCompleted(domain.LaunchSourceManual, out.Success)

	evt := domain.Event{
		Type:    domain.EventLaunchSucceeded,
		Message: out.MintAddress,
		Data:    map[string]any{"source": string(domain.LaunchSourceManual), "name": req.Name, "ticker": req.Ticker},
	}
	if !out.Success {
		evt.Type = domain.EventLaunchFailed
		evt.Message = out.ErrorMessage
	}
	s.events.Publish(evt)

	if err := s.journal.Append(ctx, &domain.LaunchRecord{
		Source:    domain.LaunchSourceManual,
		Name:      req.Name,
		Ticker:    req.Ticker,
		Success:   out.Success,
		Mint:      out.MintAddress,
		Signature: out.TransactionSignature,
		Error:     out.ErrorMessage,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		log.Warn("Failed to journal launch", "error", err)
	}
}

// TestParse runs the parser without side effects.
func (s *Service) TestParse(text string) ParseResult {
	res := ParseResult{Input: text}
	if req, ok := parser.Parse(text); ok {
		res.Parsed = &req
		res.IsValid = parser.IsValid(req)
	}
	return res
}

// History returns the most recent journaled launches.
func (s *Service) History(ctx context.Context, limit int) ([]domain.LaunchRecord, error) {
	records, err := s.journal.Recent(ctx, store.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("read launch history: %w", err)
	}
	if records == nil {
		records = []domain.LaunchRecord{}
	}
	return records, nil
}
