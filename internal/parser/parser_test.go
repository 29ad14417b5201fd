package parser

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ashureev/mention-launcher/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSyntaxes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want domain.TokenRequest
	}{
		{"plus", "Super Sheep + SHEEP", domain.TokenRequest{Name: "Super Sheep", Ticker: "SHEEP"}},
		{"plus lowercase ticker", "Super Sheep + sheep", domain.TokenRequest{Name: "Super Sheep", Ticker: "SHEEP"}},
		{"plus without spaces", "Moon+MOON", domain.TokenRequest{Name: "Moon", Ticker: "MOON"}},
		{"plus with dollar", "Moon Rocket + $moon", domain.TokenRequest{Name: "Moon Rocket", Ticker: "MOON"}},
		{"dollar", "Moon Rocket $moon", domain.TokenRequest{Name: "Moon Rocket", Ticker: "MOON"}},
		{"bare capitals", "Moon Rocket MOON", domain.TokenRequest{Name: "Moon Rocket", Ticker: "MOON"}},
		{"mention stripped", "@meme_bot Moon Rocket + MOON", domain.TokenRequest{Name: "Moon Rocket", Ticker: "MOON"}},
		{"hashtag and url stripped", "Moon Rocket + MOON #launch https://example.com/x?a=#b", domain.TokenRequest{Name: "Moon Rocket", Ticker: "MOON"}},
		{"line break", "@meme_bot\nDoge Two\n+ DOGETWO", domain.TokenRequest{Name: "Doge Two", Ticker: "DOGETWO"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Parse(tt.text)
			require.True(t, ok, "expected %q to parse", tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"@meme_bot",
		"just a friendly hello",
		"Moon + M",
		"Moon + TOOLONGTICKER",
		"Moon + MOON2",
		strings.Repeat("a", 33) + " + MOON",
		"https://example.com/page #MOON",
	}

	for _, in := range inputs {
		_, ok := Parse(in)
		assert.False(t, ok, "expected %q to be rejected", in)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	t.Parallel()

	inputs := []string{"Super Sheep + SHEEP", "just a friendly hello", "@a #b Moon $MOON", ""}
	for _, in := range inputs {
		first, firstOK := Parse(in)
		second, secondOK := Parse(in)
		assert.Equal(t, firstOK, secondOK)
		assert.Equal(t, first, second)
	}
}

func TestParseCanonicalRoundTrip(t *testing.T) {
	t.Parallel()

	names := []string{"A", "Moon Rocket", "Pepe the Frog", "x1", strings.Repeat("n", 32), "Ünïcode Coin", "café"}
	tickers := []string{"AB", "MOON", "ABCDEFGHIJ"}

	for _, name := range names {
		for _, ticker := range tickers {
			text := fmt.Sprintf("%s + %s", name, ticker)
			got, ok := Parse(text)
			require.True(t, ok, "expected %q to parse", text)
			assert.Equal(t, domain.TokenRequest{Name: name, Ticker: ticker}, got)
		}
	}
}

func TestClean(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Moon Rocket + MOON", Clean("  @bot Moon Rocket + MOON #tag www.example.com  "))
	assert.Equal(t, "", Clean("@bot #tag https://t.co/abc"))
}

func TestIsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, IsValid(domain.TokenRequest{Name: "Moon", Ticker: "MO"}))
	assert.False(t, IsValid(domain.TokenRequest{Name: "", Ticker: "MOON"}))
	assert.False(t, IsValid(domain.TokenRequest{Name: "Moon", Ticker: "MO0N"}))
}
