package client

import (
	"testing"

	"github.com/sorivoice/sori/domain/entities"
	"github.com/sorivoice/sori/internal/channel"
	"github.com/sorivoice/sori/internal/protocol"
)

func envelope(t *testing.T, payload string) *protocol.Envelope {
	t.Helper()
	env, err := protocol.Decode([]byte(payload))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	return env
}

func TestDispatchChatMessages(t *testing.T) {
	f := newFixture(t, nil)
	f.openAll()

	f.client.handleConversational([]byte(`{"type":"user_message","text":"안녕하세요","timestamp":"2024-03-01T12:00:00Z"}`))
	f.client.handleConversational([]byte(`{"type":"system_response","text":"반가워요","audio_url":"/audio/r1.wav"}`))

	entries := f.client.Log().Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != entities.MessageRoleUser || entries[0].Text != "안녕하세요" {
		t.Errorf("Unexpected first entry: %+v", entries[0])
	}
	if entries[1].Role != entities.MessageRoleSystem || entries[1].AudioURL != "/audio/r1.wav" {
		t.Errorf("Unexpected second entry: %+v", entries[1])
	}
}

func TestDispatchIgnoresMalformedAndUnknown(t *testing.T) {
	f := newFixture(t, nil)
	f.openAll()

	f.client.handleConversational([]byte(`{broken`))
	f.client.handleConversational([]byte(`{"text":"no type"}`))
	f.client.handleConversational([]byte(`{"type":"future_feature","text":"?"}`))
	f.client.handleStreaming([]byte(`{"type":"future_feature"}`))

	if n := f.client.Log().Len(); n != 0 {
		t.Errorf("Nothing should be appended, got %d entries", n)
	}
}

func TestServerErrorBecomesVerbatimEntry(t *testing.T) {
	f := newFixture(t, nil)
	f.openAll()

	f.client.handleStreaming([]byte(`{"type":"error","message":"STT 처리 중 오류가 발생했습니다"}`))
	f.client.handleConversational([]byte(`{"type":"error","error":"TTS 엔진을 사용할 수 없습니다"}`))

	entries := f.client.Log().Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if entries[0].Role != entities.MessageRoleSystem || entries[0].Text != "STT 처리 중 오류가 발생했습니다" {
		t.Errorf("Error text should be verbatim: %+v", entries[0])
	}
	if entries[1].Text != "TTS 엔진을 사용할 수 없습니다" {
		t.Errorf("Error field fallback should be verbatim: %+v", entries[1])
	}
}

func TestStreamLifecycleEvents(t *testing.T) {
	f := newFixture(t, nil)
	f.openAll()

	f.client.handleStreaming([]byte(`{"type":"stream_started"}`))
	f.client.handleStreaming([]byte(`{"type":"stream_started"}`)) // duplicate
	f.client.handleStreaming([]byte(`{"type":"stream_stopped"}`))

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	if len(f.sink.streaming) != 2 || !f.sink.streaming[0] || f.sink.streaming[1] {
		t.Errorf("Expected [true false], got %v", f.sink.streaming)
	}
}

func TestStreamingStoppedWhenChannelDies(t *testing.T) {
	f := newFixture(t, nil)
	f.openAll()
	f.client.handleStreaming([]byte(`{"type":"stream_started"}`))

	f.stream.setOpen(false)
	f.client.onChannelState("streaming", channel.StateErrored)

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	if len(f.sink.streaming) != 2 || f.sink.streaming[1] {
		t.Errorf("Stream should be reported stopped with its channel, got %v", f.sink.streaming)
	}
}
