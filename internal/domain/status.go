package domain

// NotInitializedMessage is reported by status before monitoring was ever started.
const NotInitializedMessage = "Monitor not initialized"

// MonitorStatus reports whether the poll loop is active and how many
// mentions it has handled.
type MonitorStatus struct {
	IsMonitoring         bool   `json:"isMonitoring"`
	ProcessedTweetsCount int    `json:"processedTweetsCount"`
	Message              string `json:"message,omitempty"`
}
