package client

import (
	"strings"
	"testing"

	"github.com/sorivoice/sori/domain/entities"
)

func TestPartialThenLowConfidenceFinal(t *testing.T) {
	f := newFixture(t, nil)
	f.openAll()

	f.client.handleStreaming([]byte(`{"type":"partial_result","text":"안녕","confidence":0.4}`))
	f.client.handleStreaming([]byte(`{"type":"final_result","text":"안녕하세요","confidence":0.55}`))

	entries := f.client.Log().Entries()
	if len(entries) != 2 {
		t.Fatalf("Expected user entry plus advisory, got %d entries", len(entries))
	}
	if entries[0].Role != entities.MessageRoleUser || entries[0].Text != "안녕하세요" {
		t.Errorf("Unexpected transcript entry: %+v", entries[0])
	}
	if entries[1].Role != entities.MessageRoleSystem || !strings.Contains(entries[1].Text, "음성 인식") {
		t.Errorf("Unexpected advisory entry: %+v", entries[1])
	}

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	if f.sink.placeholderCleared != 1 {
		t.Errorf("Placeholder should be cleared exactly once, got %d", f.sink.placeholderCleared)
	}
	if len(f.sink.placeholders) != 1 || f.sink.placeholders[0] != "안녕" {
		t.Errorf("Unexpected placeholder updates: %v", f.sink.placeholders)
	}
}

func TestSuccessivePartialsReplaceInPlace(t *testing.T) {
	f := newFixture(t, nil)
	f.openAll()

	f.client.handleStreaming([]byte(`{"type":"partial_result","text":"안","confidence":0.3}`))
	f.client.handleStreaming([]byte(`{"type":"partial_result","text":"안녕","confidence":0.6}`))
	f.client.handleStreaming([]byte(`{"type":"partial_result","text":"안녕하","confidence":0.8}`))

	if n := f.client.Log().Len(); n != 0 {
		t.Errorf("Partials must never produce permanent entries, got %d", n)
	}

	s := f.client.Status()
	if s.Placeholder == nil || s.Placeholder.Text != "안녕하" {
		t.Fatalf("Placeholder should hold the latest partial: %+v", s.Placeholder)
	}
	if s.Placeholder.Tier != entities.ConfidenceHigh {
		t.Errorf("Expected high tier at 0.8, got %s", s.Placeholder.Tier)
	}
}

func TestBlankPartialsAreIgnored(t *testing.T) {
	f := newFixture(t, nil)
	f.openAll()

	f.client.handleStreaming([]byte(`{"type":"partial_result","text":"","confidence":0.4}`))
	f.client.handleStreaming([]byte(`{"type":"partial_result","text":"   ","confidence":0.4}`))

	if s := f.client.Status(); s.Placeholder != nil {
		t.Fatalf("Blank partials must not create a placeholder: %+v", s.Placeholder)
	}

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	if len(f.sink.placeholders) != 0 {
		t.Errorf("No placeholder updates expected, got %v", f.sink.placeholders)
	}
}

func TestConfidentFinalProducesNoAdvisory(t *testing.T) {
	f := newFixture(t, nil)
	f.openAll()

	f.client.handleStreaming([]byte(`{"type":"partial_result","text":"네","confidence":0.9}`))
	f.client.handleStreaming([]byte(`{"type":"final_result","text":"네 맞아요","confidence":0.92}`))

	entries := f.client.Log().Entries()
	if len(entries) != 1 {
		t.Fatalf("Expected exactly one entry, got %d", len(entries))
	}
	if entries[0].Role != entities.MessageRoleUser {
		t.Errorf("Unexpected entry: %+v", entries[0])
	}
}

func TestFinalWithoutPlaceholder(t *testing.T) {
	f := newFixture(t, nil)
	f.openAll()

	f.client.handleStreaming([]byte(`{"type":"final_result","text":"바로 최종","confidence":0.7}`))

	if n := f.client.Log().Len(); n != 1 {
		t.Fatalf("Final without partials should still commit, got %d entries", n)
	}
	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	if f.sink.placeholderCleared != 0 {
		t.Errorf("No placeholder existed, clear fired %d times", f.sink.placeholderCleared)
	}
}

func TestEmptyFinalCommitsNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.openAll()

	f.client.handleStreaming([]byte(`{"type":"partial_result","text":"음","confidence":0.3}`))
	f.client.handleStreaming([]byte(`{"type":"final_result","text":"","confidence":0.9}`))

	if n := f.client.Log().Len(); n != 0 {
		t.Errorf("Empty final text should not be committed, got %d entries", n)
	}

	// Same for a low-confidence empty final: with no transcript entry
	// there is nothing for the advisory to follow.
	f.client.handleStreaming([]byte(`{"type":"partial_result","text":"어","confidence":0.3}`))
	f.client.handleStreaming([]byte(`{"type":"final_result","text":"","confidence":0.3}`))

	if n := f.client.Log().Len(); n != 0 {
		t.Errorf("A low-confidence empty final must not leave an advisory, got %d entries", n)
	}

	f.sink.mu.Lock()
	defer f.sink.mu.Unlock()
	if f.sink.placeholderCleared != 2 {
		t.Errorf("Each final should clear its placeholder, got %d", f.sink.placeholderCleared)
	}
}
