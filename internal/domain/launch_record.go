package domain

import (
	"time"
)

// LaunchSource tells where a launch attempt originated.
type LaunchSource string

const (
	// LaunchSourceMention is a launch triggered by a feed mention.
	LaunchSourceMention LaunchSource = "mention"
	// LaunchSourceManual is a launch triggered through the control surface.
	LaunchSourceManual LaunchSource = "manual"
)

// LaunchRecord is a journal entry for a completed launch attempt.
type LaunchRecord struct {
	ID        string       `json:"id"`
	Source    LaunchSource `json:"source"`
	MentionID string       `json:"mention_id,omitempty"`
	Author    string       `json:"author,omitempty"`
	Name      string       `json:"name"`
	Ticker    string       `json:"ticker"`
	Success   bool         `json:"success"`
	Mint      string       `json:"mint,omitempty"`
	Signature string       `json:"signature,omitempty"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
