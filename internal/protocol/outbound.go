package protocol

import (
	"encoding/base64"
	"time"

	"github.com/google/uuid"
)

// Timestamp formats the current time the way the server expects. Outbound
// messages carry it except where the server is authoritative.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// AudioMessage carries one complete base64-encoded utterance, sent over
// the conversational channel when a batch recording stops.
type AudioMessage struct {
	Type      MessageType `json:"type"`
	Data      string      `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// NewAudioMessage encodes a finalized batch buffer
func NewAudioMessage(audio []byte) AudioMessage {
	return AudioMessage{
		Type:      MessageTypeAudio,
		Data:      base64.StdEncoding.EncodeToString(audio),
		Timestamp: Timestamp(),
	}
}

// AudioChunkMessage carries one base64-encoded streaming frame.
type AudioChunkMessage struct {
	Type      MessageType `json:"type"`
	Data      string      `json:"data"`
	Timestamp string      `json:"timestamp"`
	ChunkID   string      `json:"chunk_id"`
}

// NewAudioChunkMessage encodes a validated frame with a fresh chunk id
func NewAudioChunkMessage(frame []byte) AudioChunkMessage {
	return AudioChunkMessage{
		Type:      MessageTypeAudioChunk,
		Data:      base64.StdEncoding.EncodeToString(frame),
		Timestamp: Timestamp(),
		ChunkID:   uuid.NewString(),
	}
}

// StartStreamMessage tells the server to begin a transcription stream.
// Sent on the streaming channel immediately after it opens.
type StartStreamMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp"`
}

// NewStartStreamMessage creates the stream-open control message
func NewStartStreamMessage() StartStreamMessage {
	return StartStreamMessage{Type: MessageTypeStartStream, Timestamp: Timestamp()}
}

// AutoChatStartMessage requests a new auto-chat session.
type AutoChatStartMessage struct {
	Type     MessageType `json:"type"`
	Theme    string      `json:"theme"`
	Interval int         `json:"interval"`
}

// NewAutoChatStartMessage creates a start request
func NewAutoChatStartMessage(theme string, intervalSeconds int) AutoChatStartMessage {
	return AutoChatStartMessage{
		Type:     MessageTypeAutoChatStart,
		Theme:    theme,
		Interval: intervalSeconds,
	}
}

// AutoChatStopMessage requests the active auto-chat session to stop.
type AutoChatStopMessage struct {
	Type MessageType `json:"type"`
}

// NewAutoChatStopMessage creates a stop request
func NewAutoChatStopMessage() AutoChatStopMessage {
	return AutoChatStopMessage{Type: MessageTypeAutoChatStop}
}

// AutoChatForwardMessage round-trips a server-generated auto-chat turn so
// the server-side synthesis step can attach audio to it.
type AutoChatForwardMessage struct {
	Type      MessageType `json:"type"`
	Text      string      `json:"text"`
	Timestamp string      `json:"timestamp"`
	SessionID string      `json:"session_id"`
	Theme     string      `json:"theme"`
}

// NewAutoChatForwardMessage re-wraps an inbound auto-chat turn
func NewAutoChatForwardMessage(text, sessionID, theme string) AutoChatForwardMessage {
	return AutoChatForwardMessage{
		Type:      MessageTypeAutoChatMessage,
		Text:      text,
		Timestamp: Timestamp(),
		SessionID: sessionID,
		Theme:     theme,
	}
}
