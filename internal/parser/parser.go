// Package parser extracts token launch requests from free-form post text.
package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ashureev/mention-launcher/internal/domain"
)

const (
	maxNameLength   = 32
	minTickerLength = 2
	maxTickerLength = 10
)

// Noise removed before matching. URLs go first since they may contain @ or #.
var (
	urlPattern     = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	mentionPattern = regexp.MustCompile(`@\w+`)
	hashtagPattern = regexp.MustCompile(`#\w+`)
	lineBreaks     = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
)

// Request syntaxes, tried in order.
var requestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.+?)\s*\+\s*\$?(\S+)$`), // Name + TICKER
	regexp.MustCompile(`^(.+?)\s+\$(\S+)$`),       // Name $TICKER
	regexp.MustCompile(`^(.+?)\s+([A-Z]+)$`),      // Name TICKER (ticker must be written in capitals)
}

var tickerPattern = regexp.MustCompile(`^[A-Za-z]+$`)

// Clean strips mentions, hashtags and URLs from text and trims the result.
func Clean(text string) string {
	text = urlPattern.ReplaceAllString(text, "")
	text = mentionPattern.ReplaceAllString(text, "")
	text = hashtagPattern.ReplaceAllString(text, "")
	text = lineBreaks.Replace(text)
	return strings.TrimSpace(text)
}

// Parse returns the first name/ticker pair found in text. The ticker is
// upper-cased. ok is false when no syntax yields a valid pair.
func Parse(text string) (domain.TokenRequest, bool) {
	cleaned := Clean(text)
	if cleaned == "" {
		return domain.TokenRequest{}, false
	}

	for _, pattern := range requestPatterns {
		match := pattern.FindStringSubmatch(cleaned)
		if match == nil {
			continue
		}
		req := domain.TokenRequest{
			Name:   strings.TrimSpace(match[1]),
			Ticker: strings.ToUpper(strings.TrimSpace(match[2])),
		}
		if IsValid(req) {
			return req, true
		}
	}
	return domain.TokenRequest{}, false
}

// IsValid reports whether req satisfies the name and ticker length rules.
func IsValid(req domain.TokenRequest) bool {
	nameLen := utf8.RuneCountInString(req.Name)
	if nameLen < 1 || nameLen > maxNameLength {
		return false
	}
	if len(req.Ticker) < minTickerLength || len(req.Ticker) > maxTickerLength {
		return false
	}
	return tickerPattern.MatchString(req.Ticker)
}
