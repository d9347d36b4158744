package client

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sorivoice/sori/domain/entities"
	"github.com/sorivoice/sori/internal/protocol"
)

// lowConfidenceThreshold is the final-result confidence below which the
// user is advised to repeat themselves.
const lowConfidenceThreshold = 0.6

// lowConfidenceAdvisory matches the wording the backend demo UI shows.
const lowConfidenceAdvisory = "음성 인식 정확도가 낮습니다. 다시 한번 말씀해 주세요."

// transcriptionState is the live placeholder for an in-progress
// transcription. Partials replace it in place; a final removes it.
type transcriptionState struct {
	active     bool
	text       string
	confidence float64
}

// handlePartialResult updates the placeholder. Successive partials
// overwrite each other; nothing is ever committed from here. Blank
// partials are ignored outright.
func (c *Client) handlePartialResult(env *protocol.Envelope) {
	if strings.TrimSpace(env.Text) == "" {
		return
	}

	c.mu.Lock()
	c.transcription.active = true
	c.transcription.text = env.Text
	c.transcription.confidence = env.Confidence
	c.mu.Unlock()

	c.events.PlaceholderUpdated(env.Text, env.Confidence, entities.TierFor(env.Confidence))
}

// handleFinalResult commits the utterance. The placeholder is cleared if
// one existed, non-empty text becomes a permanent user entry, and a low
// confidence value earns exactly one advisory after that entry.
func (c *Client) handleFinalResult(env *protocol.Envelope) {
	c.mu.Lock()
	hadPlaceholder := c.transcription.active
	c.transcription = transcriptionState{}
	c.mu.Unlock()

	if hadPlaceholder {
		c.events.PlaceholderCleared()
	}

	if env.Text == "" {
		return
	}
	c.append(entities.ChatMessage{
		Role:      entities.MessageRoleUser,
		Text:      env.Text,
		Timestamp: env.ParseTimestamp(),
	})

	// The advisory follows a transcript entry; an empty final has none.
	if env.Confidence < lowConfidenceThreshold {
		c.logger.Info("Low confidence transcription",
			zap.Float64("confidence", env.Confidence),
			zap.String("text", env.Text))
		c.metrics.Advisories.Inc()
		c.append(entities.ChatMessage{
			Role:      entities.MessageRoleSystem,
			Text:      lowConfidenceAdvisory,
			Timestamp: env.ParseTimestamp(),
		})
	}
}
