package protocol

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"
)

func TestDecodePartialResult(t *testing.T) {
	payload := `{"type":"partial_result","text":"안녕","confidence":0.4}`

	env, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if env.Type != MessageTypePartialResult {
		t.Errorf("Expected type partial_result, got %s", env.Type)
	}
	if env.Text != "안녕" {
		t.Errorf("Expected text 안녕, got %s", env.Text)
	}
	if env.Confidence != 0.4 {
		t.Errorf("Expected confidence 0.4, got %v", env.Confidence)
	}
}

func TestDecodeAutoChatStarted(t *testing.T) {
	payload := `{"type":"auto_chat_started","session_id":"s1","theme":"casual","interval":30}`

	env, err := Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if env.SessionID != "s1" || env.Theme != "casual" || env.Interval != 30 {
		t.Errorf("Unexpected fields: %+v", env)
	}
}

func TestDecodeRejectsMissingType(t *testing.T) {
	if _, err := Decode([]byte(`{"text":"no type"}`)); err == nil {
		t.Error("Decode should reject a payload without type")
	}
}

func TestDecodeRejectsInvalidJSON(t *testing.T) {
	if _, err := Decode([]byte(`{invalid`)); err == nil {
		t.Error("Decode should reject malformed JSON")
	}
}

func TestDecodeKeepsUnknownType(t *testing.T) {
	env, err := Decode([]byte(`{"type":"something_new"}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.Type != MessageType("something_new") {
		t.Errorf("Unknown types should be preserved for the dispatcher, got %s", env.Type)
	}
}

func TestErrorTextPrefersMessageField(t *testing.T) {
	env := &Envelope{Type: MessageTypeError, Message: "처리 오류", Error: "fallback"}
	if env.ErrorText() != "처리 오류" {
		t.Errorf("Expected message field, got %s", env.ErrorText())
	}

	env = &Envelope{Type: MessageTypeError, Error: "STT 처리 오류"}
	if env.ErrorText() != "STT 처리 오류" {
		t.Errorf("Expected error field fallback, got %s", env.ErrorText())
	}
}

func TestParseTimestampFallsBackToNow(t *testing.T) {
	env := &Envelope{Timestamp: "not-a-time"}
	if time.Since(env.ParseTimestamp()) > time.Second {
		t.Error("Malformed timestamp should fall back to now")
	}

	env = &Envelope{Timestamp: "2024-03-01T12:00:00Z"}
	want := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if !env.ParseTimestamp().Equal(want) {
		t.Errorf("Expected %v, got %v", want, env.ParseTimestamp())
	}
}

func TestNewAudioChunkMessage(t *testing.T) {
	frame := []byte("frame-bytes")
	msg := NewAudioChunkMessage(frame)

	if msg.Type != MessageTypeAudioChunk {
		t.Errorf("Expected type audio_chunk, got %s", msg.Type)
	}
	if msg.ChunkID == "" {
		t.Error("Chunk message should carry a generated chunk id")
	}

	decoded, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		t.Fatalf("Data should be valid base64: %v", err)
	}
	if string(decoded) != "frame-bytes" {
		t.Errorf("Expected round-tripped frame, got %s", decoded)
	}

	if _, err := time.Parse(time.RFC3339, msg.Timestamp); err != nil {
		t.Errorf("Timestamp should be RFC3339: %v", err)
	}

	other := NewAudioChunkMessage(frame)
	if other.ChunkID == msg.ChunkID {
		t.Error("Chunk ids should be unique per message")
	}
}

func TestNewAudioMessageWire(t *testing.T) {
	msg := NewAudioMessage([]byte{0x01, 0x02})

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var wire map[string]interface{}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if wire["type"] != "audio" {
		t.Errorf("Expected wire type audio, got %v", wire["type"])
	}
	if _, ok := wire["chunk_id"]; ok {
		t.Error("Batch audio message must not carry a chunk id")
	}
}

func TestNewAutoChatForwardMessage(t *testing.T) {
	msg := NewAutoChatForwardMessage("오늘 기분이 어때요?", "s1", "casual")

	if msg.Type != MessageTypeAutoChatMessage {
		t.Errorf("Expected type auto_chat_message, got %s", msg.Type)
	}
	if msg.SessionID != "s1" || msg.Theme != "casual" {
		t.Errorf("Session fields not carried: %+v", msg)
	}
	if msg.Timestamp == "" {
		t.Error("Forwarded turn should carry a client timestamp")
	}
}

func TestNewAutoChatStopMessageHasNoPayload(t *testing.T) {
	data, err := json.Marshal(NewAutoChatStopMessage())
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var wire map[string]interface{}
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(wire) != 1 || wire["type"] != "auto_chat_stop" {
		t.Errorf("Stop message should carry only the type field, got %v", wire)
	}
}
