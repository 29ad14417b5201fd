package events

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const writeTimeout = 5 * time.Second

// WebSocketHandler streams hub events to websocket clients: first the
// buffered history, then live events until the client goes away.
type WebSocketHandler struct {
	hub           *Hub
	allowedOrigin string
	logger        *slog.Logger
}

// NewWebSocketHandler creates a handler. allowedOrigin "*" or "" accepts any origin.
func NewWebSocketHandler(hub *Hub, allowedOrigin string, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebSocketHandler{hub: hub, allowedOrigin: allowedOrigin, logger: logger}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	replay, live, cancel := h.hub.Subscribe(0)
	defer cancel()

	// The stream is one-way; CloseRead drains control frames and cancels
	// ctx once the client disconnects.
	ctx := ws.CloseRead(r.Context())
	h.logger.Debug("Event stream opened", "ip", r.RemoteAddr, "replay", len(replay))

	for _, e := range replay {
		if err := h.write(ctx, ws, e); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug("Event stream closed", "ip", r.RemoteAddr)
			return
		case e := <-live:
			if err := h.write(ctx, ws, e); err != nil {
				return
			}
		}
	}
}

func (h *WebSocketHandler) write(ctx context.Context, ws *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, ws, v); err != nil {
		if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
			h.logger.Warn("WebSocket write error", "error", err)
		}
		return err
	}
	return nil
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
