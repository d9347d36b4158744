package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType defines the discriminant of a socket message
type MessageType string

// Outbound message types
const (
	MessageTypeAudio           MessageType = "audio"
	MessageTypeAudioChunk      MessageType = "audio_chunk"
	MessageTypeStartStream     MessageType = "start_stream"
	MessageTypeAutoChatStart   MessageType = "auto_chat_start"
	MessageTypeAutoChatStop    MessageType = "auto_chat_stop"
	MessageTypeAutoChatMessage MessageType = "auto_chat_message"
)

// Inbound message types, conversational channel
const (
	MessageTypeUserMessage             MessageType = "user_message"
	MessageTypeSystemResponse          MessageType = "system_response"
	MessageTypeAutoMessageResponse     MessageType = "auto_message_response"
	MessageTypeAutoChatStarted         MessageType = "auto_chat_started"
	MessageTypeAutoChatStopped         MessageType = "auto_chat_stopped"
	MessageTypeAutoChatSettingsUpdated MessageType = "auto_chat_settings_updated"
)

// Inbound message types, streaming channel
const (
	MessageTypePartialResult MessageType = "partial_result"
	MessageTypeFinalResult   MessageType = "final_result"
	MessageTypeStreamStarted MessageType = "stream_started"
	MessageTypeStreamStopped MessageType = "stream_stopped"
)

// MessageTypeError may arrive on either channel
const MessageTypeError MessageType = "error"

// Envelope is the superset of fields an inbound message can carry. Every
// message is a JSON object discriminated by the type field; handlers read
// only the fields their type defines.
type Envelope struct {
	Type       MessageType `json:"type"`
	Text       string      `json:"text,omitempty"`
	Timestamp  string      `json:"timestamp,omitempty"`
	AudioURL   string      `json:"audio_url,omitempty"`
	SessionID  string      `json:"session_id,omitempty"`
	Theme      string      `json:"theme,omitempty"`
	Interval   int         `json:"interval,omitempty"`
	Confidence float64     `json:"confidence,omitempty"`
	Message    string      `json:"message,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Decode parses an inbound payload into an envelope
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("message missing type field")
	}
	return &env, nil
}

// ErrorText returns the server error text. Some server builds populate
// message, others populate error.
func (e *Envelope) ErrorText() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// ParseTimestamp returns the message timestamp, falling back to now when
// the field is absent or malformed.
func (e *Envelope) ParseTimestamp() time.Time {
	if e.Timestamp == "" {
		return time.Now()
	}
	ts, err := time.Parse(time.RFC3339, e.Timestamp)
	if err != nil {
		return time.Now()
	}
	return ts
}
