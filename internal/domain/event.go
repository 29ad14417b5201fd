package domain

import (
	"time"
)

// EventType categorizes monitor activity events.
type EventType string

const (
	EventMonitorStarted  EventType = "monitor_started"
	EventMonitorStopped  EventType = "monitor_stopped"
	EventMentionReceived EventType = "mention_received"
	EventMentionSkipped  EventType = "mention_skipped"
	EventReplySent       EventType = "reply_sent"
	EventReplyFailed     EventType = "reply_failed"
	EventLaunchSucceeded EventType = "launch_succeeded"
	EventLaunchFailed    EventType = "launch_failed"
	EventPollFailed      EventType = "poll_failed"
)

// Event is a single activity notification published to operators.
type Event struct {
	ID        int64          `json:"id"`
	Type      EventType      `json:"type"`
	Time      time.Time      `json:"time"`
	MentionID string         `json:"mention_id,omitempty"`
	Message   string         `json:"message,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}
