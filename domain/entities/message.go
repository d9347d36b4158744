package entities

import (
	"sync"
	"time"
)

// MessageRole represents the role of a chat entry's author
type MessageRole string

const (
	MessageRoleUser   MessageRole = "user"
	MessageRoleSystem MessageRole = "system"
	MessageRoleAuto   MessageRole = "auto"
)

// ChatMessage is one permanent entry in the conversation log. Entries are
// never mutated after creation, only appended or bulk-cleared.
type ChatMessage struct {
	Role      MessageRole `json:"role"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
	AudioURL  string      `json:"audio_url,omitempty"`
}

// ConfidenceTier is the visual tier of a transcription confidence value
type ConfidenceTier string

const (
	ConfidenceHigh   ConfidenceTier = "high"
	ConfidenceMedium ConfidenceTier = "medium"
	ConfidenceLow    ConfidenceTier = "low"
)

// TierFor maps a confidence value in [0,1] to its visual tier.
func TierFor(confidence float64) ConfidenceTier {
	switch {
	case confidence > 0.7:
		return ConfidenceHigh
	case confidence >= 0.5:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// ChatLog is the append-only ordered conversation log.
type ChatLog struct {
	mu      sync.RWMutex
	entries []ChatMessage
}

// NewChatLog creates an empty chat log
func NewChatLog() *ChatLog {
	return &ChatLog{entries: make([]ChatMessage, 0)}
}

// Append adds an entry to the end of the log.
func (l *ChatLog) Append(msg ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, msg)
}

// Entries returns a copy of the log in append order.
func (l *ChatLog) Entries() []ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ChatMessage, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *ChatLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Clear removes all entries.
func (l *ChatLog) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = l.entries[:0]
}
