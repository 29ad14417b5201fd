package domain

// TokenRequest is a parsed name/ticker pair.
type TokenRequest struct {
	Name   string `json:"name"`
	Ticker string `json:"ticker"`
}

// LaunchOutcome is the result of one token-creation attempt.
// A successful outcome always carries both the mint and the signature;
// a failed one only carries the error message.
type LaunchOutcome struct {
	Success              bool   `json:"success"`
	MintAddress          string `json:"mintAddress,omitempty"`
	TransactionSignature string `json:"transactionSignature,omitempty"`
	ErrorMessage         string `json:"errorMessage,omitempty"`
}

// LaunchSucceeded builds a successful outcome.
func LaunchSucceeded(mint, signature string) LaunchOutcome {
	return LaunchOutcome{Success: true, MintAddress: mint, TransactionSignature: signature}
}

// LaunchFailed builds a failed outcome. An empty message is replaced so the
// caller always has something to report.
func LaunchFailed(message string) LaunchOutcome {
	if message == "" {
		message = "unknown error"
	}
	return LaunchOutcome{ErrorMessage: message}
}
