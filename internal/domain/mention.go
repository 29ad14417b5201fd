// Package domain contains core domain types for the mention launcher.
package domain

import (
	"time"
)

// Account identifies the social account the monitor listens on.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Mention is a post from the social feed that references the monitored account.
type Mention struct {
	ID           string    `json:"id"`
	Text         string    `json:"text"`
	AuthorID     string    `json:"author_id"`
	AuthorHandle string    `json:"author_handle"`
	CreatedAt    time.Time `json:"created_at"`
	MediaURLs    []string  `json:"media_urls,omitempty"`
}

// FirstMediaURL returns the first attached media URL, if any.
func (m Mention) FirstMediaURL() (string, bool) {
	for _, u := range m.MediaURLs {
		if u != "" {
			return u, true
		}
	}
	return "", false
}

// URL returns the public link to the mention.
func (m Mention) URL() string {
	handle := m.AuthorHandle
	if handle == "" {
		handle = "i"
	}
	return "https://x.com/" + handle + "/status/" + m.ID
}
