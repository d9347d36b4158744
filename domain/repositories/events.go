package repositories

import "github.com/sorivoice/sori/domain/entities"

// EventSink receives observable state changes from the client core. The
// core never reaches into display elements directly; a UI layer implements
// this interface and renders whatever it is told.
type EventSink interface {
	// ConnectionChanged publishes the derived connected boolean. It fires
	// on every channel state transition.
	ConnectionChanged(connected bool)
	// ChannelStateChanged reports one channel's state by name.
	ChannelStateChanged(channel string, state string)

	// PlaceholderUpdated replaces the in-progress transcription text and
	// its confidence tier in place.
	PlaceholderUpdated(text string, confidence float64, tier entities.ConfidenceTier)
	// PlaceholderCleared removes the in-progress transcription display.
	PlaceholderCleared()

	// MessageAppended reports a new permanent chat entry.
	MessageAppended(msg entities.ChatMessage)
	// Advisory reports a user-visible advisory outside the chat log, such
	// as a microphone failure or a rejected auto-chat request.
	Advisory(text string)

	// AutoChatStateChanged reports the controller state; session is nil
	// unless the state is active.
	AutoChatStateChanged(state string, session *entities.AutoChatSession)
	// AutoChatSettingsUpdated reports the current theme/interval display
	// state after a local change or a server push.
	AutoChatSettingsUpdated(theme string, intervalSeconds int)

	// StreamingStateChanged reports whether the remote transcription
	// stream is running.
	StreamingStateChanged(active bool)
}

// NopEventSink discards every event. Useful for headless runs and tests.
type NopEventSink struct{}

func (NopEventSink) ConnectionChanged(bool)                                          {}
func (NopEventSink) ChannelStateChanged(string, string)                              {}
func (NopEventSink) PlaceholderUpdated(string, float64, entities.ConfidenceTier)     {}
func (NopEventSink) PlaceholderCleared()                                             {}
func (NopEventSink) MessageAppended(entities.ChatMessage)                            {}
func (NopEventSink) Advisory(string)                                                 {}
func (NopEventSink) AutoChatStateChanged(string, *entities.AutoChatSession)          {}
func (NopEventSink) AutoChatSettingsUpdated(string, int)                             {}
func (NopEventSink) StreamingStateChanged(bool)                                      {}

var _ EventSink = NopEventSink{}
