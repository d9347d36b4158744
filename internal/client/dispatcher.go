package client

import (
	"go.uber.org/zap"

	"github.com/sorivoice/sori/domain/entities"
	"github.com/sorivoice/sori/internal/protocol"
)

// handleConversational routes one inbound conversational payload.
// Malformed payloads are logged and skipped; the channel stays up.
func (c *Client) handleConversational(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		c.logger.Warn("Dropping malformed conversational message", zap.Error(err))
		return
	}
	c.metrics.MessagesIn.WithLabelValues("conversational", string(env.Type)).Inc()

	switch env.Type {
	case protocol.MessageTypeUserMessage:
		c.append(entities.ChatMessage{
			Role:      entities.MessageRoleUser,
			Text:      env.Text,
			Timestamp: env.ParseTimestamp(),
			AudioURL:  env.AudioURL,
		})

	case protocol.MessageTypeSystemResponse:
		c.append(entities.ChatMessage{
			Role:      entities.MessageRoleSystem,
			Text:      env.Text,
			Timestamp: env.ParseTimestamp(),
			AudioURL:  env.AudioURL,
		})

	case protocol.MessageTypeAutoChatMessage:
		c.handleAutoChatTurn(env)

	case protocol.MessageTypeAutoMessageResponse:
		c.append(entities.ChatMessage{
			Role:      entities.MessageRoleSystem,
			Text:      env.Text,
			Timestamp: env.ParseTimestamp(),
			AudioURL:  env.AudioURL,
		})

	case protocol.MessageTypeAutoChatStarted:
		c.handleAutoChatStarted(env)

	case protocol.MessageTypeAutoChatStopped:
		c.handleAutoChatStopped()

	case protocol.MessageTypeAutoChatSettingsUpdated:
		c.handleAutoChatSettingsUpdated(env)

	case protocol.MessageTypeError:
		c.handleServerError(env)

	default:
		c.logger.Warn("Unknown conversational message type",
			zap.String("type", string(env.Type)))
	}
}

// handleStreaming routes one inbound streaming payload
func (c *Client) handleStreaming(data []byte) {
	env, err := protocol.Decode(data)
	if err != nil {
		c.logger.Warn("Dropping malformed streaming message", zap.Error(err))
		return
	}
	c.metrics.MessagesIn.WithLabelValues("streaming", string(env.Type)).Inc()

	switch env.Type {
	case protocol.MessageTypePartialResult:
		c.handlePartialResult(env)

	case protocol.MessageTypeFinalResult:
		c.handleFinalResult(env)

	case protocol.MessageTypeStreamStarted:
		c.setStreamingLive(true)

	case protocol.MessageTypeStreamStopped:
		c.setStreamingLive(false)

	case protocol.MessageTypeError:
		c.handleServerError(env)

	default:
		c.logger.Warn("Unknown streaming message type",
			zap.String("type", string(env.Type)))
	}
}

// handleServerError surfaces a server-reported error verbatim as a system
// entry, from either channel.
func (c *Client) handleServerError(env *protocol.Envelope) {
	text := env.ErrorText()
	c.logger.Warn("Server reported an error", zap.String("message", text))
	c.append(entities.ChatMessage{
		Role:      entities.MessageRoleSystem,
		Text:      text,
		Timestamp: env.ParseTimestamp(),
	})
}

func (c *Client) setStreamingLive(active bool) {
	c.mu.Lock()
	changed := c.streamingLive != active
	c.streamingLive = active
	c.mu.Unlock()

	if changed {
		c.events.StreamingStateChanged(active)
	}
}
