package monitor

import (
	"fmt"
	"strings"

	"github.com/ashureev/mention-launcher/internal/domain"
)

// maxReplyRunes is the post length limit of the social feed.
const maxReplyRunes = 280

func helpReply(handle string) string {
	return compose(handle, `To launch a token, reply with a name and ticker, e.g. "Moon Rocket + MOON", "Moon Rocket $MOON" or "Moon Rocket MOON". Tickers are 2-10 letters.`)
}

func inProgressReply(handle string, req domain.TokenRequest) string {
	return compose(handle, fmt.Sprintf("Launching %s ($%s) now, hang tight...", req.Name, req.Ticker))
}

func successReply(handle string, req domain.TokenRequest, out domain.LaunchOutcome) string {
	return compose(handle, fmt.Sprintf(
		"%s ($%s) is live!\nMint: %s\nhttps://pump.fun/coin/%s\nTx: https://solscan.io/tx/%s",
		req.Name, req.Ticker, out.MintAddress, out.MintAddress, out.TransactionSignature,
	))
}

func failureReply(handle string, req domain.TokenRequest, out domain.LaunchOutcome) string {
	return compose(handle, fmt.Sprintf("Sorry, launching %s ($%s) failed: %s", req.Name, req.Ticker, out.ErrorMessage))
}

// compose prefixes the author handle and clips the result to one post.
func compose(handle, body string) string {
	text := body
	if handle != "" {
		text = "@" + handle + " " + body
	}
	return truncateRunes(text, maxReplyRunes)
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == limit {
			return strings.TrimRight(s[:i], " \n")
		}
		n++
	}
	return s
}
