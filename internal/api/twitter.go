package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/mention-launcher/internal/control"
	"github.com/ashureev/mention-launcher/internal/domain"
)

// Controller is the control surface the handlers drive.
type Controller interface {
	Start() (domain.MonitorStatus, error)
	Stop()
	Status() domain.MonitorStatus
	ManualLaunch(ctx context.Context, req control.ManualRequest) (domain.LaunchOutcome, error)
	TestParse(text string) control.ParseResult
	History(ctx context.Context, limit int) ([]domain.LaunchRecord, error)
}

// EventSource exposes the recent event history.
type EventSource interface {
	Recent() []domain.Event
}

// TwitterHandler serves the /api/twitter endpoints.
type TwitterHandler struct {
	ctrl    Controller
	events  EventSource
	limiter func(http.Handler) http.Handler
	logger  *slog.Logger
}

// NewTwitterHandler creates the handler. limiter, if non-nil, wraps manual launches.
func NewTwitterHandler(ctrl Controller, events EventSource, limiter func(http.Handler) http.Handler, logger *slog.Logger) *TwitterHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TwitterHandler{ctrl: ctrl, events: events, limiter: limiter, logger: logger}
}

// RegisterRoutes registers the monitor control routes.
func (h *TwitterHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/twitter", func(r chi.Router) {
		r.Post("/start-monitoring", h.StartMonitoring)
		r.Post("/stop-monitoring", h.StopMonitoring)
		r.Get("/status", h.Status)
		r.Post("/test-parse", h.TestParse)
		r.Get("/history", h.History)
		r.Get("/events", h.Events)

		if h.limiter != nil {
			r.With(h.limiter).Post("/manual-launch", h.ManualLaunch)
		} else {
			r.Post("/manual-launch", h.ManualLaunch)
		}
	})
}

// StartMonitoring starts the poll loop, initializing it on first use.
func (h *TwitterHandler) StartMonitoring(w http.ResponseWriter, _ *http.Request) {
	status, err := h.ctrl.Start()
	if err != nil {
		h.logger.Error("Failed to start monitoring", "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Twitter monitoring started",
		"status":  status,
	})
}

// StopMonitoring requests a cooperative stop.
func (h *TwitterHandler) StopMonitoring(w http.ResponseWriter, _ *http.Request) {
	h.ctrl.Stop()
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Twitter monitoring stopped",
	})
}

// Status reports the monitor status.
func (h *TwitterHandler) Status(w http.ResponseWriter, _ *http.Request) {
	JSON(w, http.StatusOK, h.ctrl.Status())
}

type manualLaunchRequest struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

// ManualLaunch launches a token directly and returns the launch outcome.
func (h *TwitterHandler) ManualLaunch(w http.ResponseWriter, r *http.Request) {
	var req manualLaunchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.ctrl.ManualLaunch(r.Context(), control.ManualRequest{
		Name:        req.Name,
		Ticker:      req.Symbol,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	switch {
	case errors.Is(err, control.ErrValidation):
		Error(w, http.StatusBadRequest, "Name and symbol are required")
		return
	case err != nil:
		h.logger.Error("Manual launch failed to initialize", "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, out)
}

type testParseRequest struct {
	TweetText *string `json:"tweetText"`
}

// TestParse runs the parser on tweetText without side effects.
func (h *TwitterHandler) TestParse(w http.ResponseWriter, r *http.Request) {
	var req testParseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TweetText == nil {
		Error(w, http.StatusBadRequest, "tweetText is required")
		return
	}

	res := h.ctrl.TestParse(*req.TweetText)
	JSON(w, http.StatusOK, map[string]any{
		"success": true,
		"input":   res.Input,
		"parsed":  res.Parsed,
		"isValid": res.IsValid,
	})
}

// History returns journaled launches, newest first.
func (h *TwitterHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := h.ctrl.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to read launch history", "error", err)
		Error(w, http.StatusInternalServerError, "failed to read history")
		return
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "records": records})
}

// Events returns the recent event history.
func (h *TwitterHandler) Events(w http.ResponseWriter, _ *http.Request) {
	events := []domain.Event{}
	if h.events != nil {
		events = append(events, h.events.Recent()...)
	}
	JSON(w, http.StatusOK, map[string]any{"success": true, "events": events})
}
