package client

import (
	"go.uber.org/zap"

	"github.com/sorivoice/sori/internal/channel"
	"github.com/sorivoice/sori/internal/protocol"
)

// onChannelState recomputes the derived connection state on every channel
// transition and publishes both the raw and the derived change.
func (c *Client) onChannelState(name string, state channel.State) {
	c.events.ChannelStateChanged(name, string(state))

	c.mu.Lock()

	var wasOpen bool
	switch name {
	case "conversational":
		wasOpen = c.lastConvState == channel.StateOpen
		c.lastConvState = state
	case "streaming":
		wasOpen = c.lastStrState == channel.StateOpen
		c.lastStrState = state
	}
	if wasOpen && state != channel.StateOpen {
		c.metrics.Disconnects.WithLabelValues(name).Inc()
	}

	convOpen := c.lastConvState == channel.StateOpen
	streamOK := !c.cfg.Audio.StreamingEnabled || c.lastStrState == channel.StateOpen
	connected := convOpen && streamOK
	changed := connected != c.connected
	c.connected = connected

	// A dead conversational channel ends the auto chat session locally;
	// the server side is gone with the socket.
	var autoChatEnded bool
	if name == "conversational" && wasOpen && state != channel.StateOpen {
		autoChatEnded = c.autoChat.deactivateLocked()
	}

	// The remote transcription stream does not outlive its socket.
	var streamingStopped bool
	if name == "streaming" && wasOpen && state != channel.StateOpen && c.streamingLive {
		c.streamingLive = false
		streamingStopped = true
	}
	c.mu.Unlock()

	if changed {
		c.events.ConnectionChanged(connected)
	}
	if autoChatEnded {
		c.events.AutoChatStateChanged(autoChatInactive, nil)
	}
	if streamingStopped {
		c.events.StreamingStateChanged(false)
	}

	c.logger.Info("Channel state changed",
		zap.String("channel", name),
		zap.String("state", string(state)),
		zap.Bool("connected", connected))
}

// onStreamOpen asks the server to begin a transcription stream as soon as
// the streaming channel is up.
func (c *Client) onStreamOpen() {
	if err := c.stream.Send(protocol.NewStartStreamMessage()); err != nil {
		c.logger.Warn("Failed to request transcription stream", zap.Error(err))
	}
}
