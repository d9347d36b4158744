package entities

import "time"

// Auto-chat interval bounds in seconds, matching the server's clamp.
const (
	MinAutoChatIntervalSeconds = 10
	MaxAutoChatIntervalSeconds = 300
)

// DefaultAutoChatTheme is used when the user picks no theme.
const DefaultAutoChatTheme = "casual"

// AutoChatSession is an acknowledged auto-chat session. The identifier is
// issued by the server; the client never fabricates one.
type AutoChatSession struct {
	ID              string    `json:"session_id"`
	Theme           string    `json:"theme"`
	IntervalSeconds int       `json:"interval"`
	StartedAt       time.Time `json:"started_at"`
}

// ClampAutoChatInterval bounds an interval to the supported range.
func ClampAutoChatInterval(seconds int) int {
	if seconds < MinAutoChatIntervalSeconds {
		return MinAutoChatIntervalSeconds
	}
	if seconds > MaxAutoChatIntervalSeconds {
		return MaxAutoChatIntervalSeconds
	}
	return seconds
}
