package client

import (
	"context"

	"go.uber.org/zap"

	"github.com/sorivoice/sori/domain/entities"
	"github.com/sorivoice/sori/domain/repositories"
	"github.com/sorivoice/sori/internal/protocol"
)

// microphoneAdvisory matches the wording of the backend demo UI.
const microphoneAdvisory = "마이크를 사용할 수 없습니다. 마이크 권한을 확인해 주세요."

type captureState struct {
	session  *entities.RecordingSession
	recorder repositories.RecorderSession
	done     chan struct{}
	cancel   context.CancelFunc
}

// StartRecording acquires the microphone and begins one recording
// session. Already recording, or no channel open for any policy, is a
// no-op. Microphone acquisition failure surfaces an advisory and leaves
// the state unchanged.
func (c *Client) StartRecording() error {
	if c.recorder == nil {
		c.logger.Warn("No recorder configured, ignoring start")
		return nil
	}

	mode, ok := c.pickRecordingMode()
	if !ok {
		c.logger.Info("No channel open for recording, ignoring start")
		return nil
	}

	c.mu.Lock()
	if c.capture.session != nil {
		c.mu.Unlock()
		c.logger.Info("Already recording, ignoring start")
		return nil
	}
	session := entities.NewRecordingSession(mode)
	c.capture.session = session
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	rec, err := c.recorder.Start(ctx, repositories.CaptureConfig{
		SampleRate:       c.cfg.Audio.SampleRate,
		Channels:         c.cfg.Audio.Channels,
		EchoCancellation: c.cfg.Audio.EchoCancellation,
		NoiseSuppression: c.cfg.Audio.NoiseSuppression,
		FrameInterval:    c.cfg.Audio.GetFrameInterval(),
	})
	if err != nil {
		cancel()
		c.mu.Lock()
		c.capture = captureState{}
		c.mu.Unlock()

		c.logger.Error("Microphone acquisition failed", zap.Error(err))
		c.advisory(microphoneAdvisory)
		return err
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.capture.recorder = rec
	c.capture.done = done
	c.capture.cancel = cancel
	c.mu.Unlock()

	go c.consumeFrames(session, rec, done)

	c.logger.Info("Recording started",
		zap.String("sessionId", session.ID),
		zap.String("mode", string(mode)))
	return nil
}

// StopRecording flushes the recorder, sends the batch buffer if one
// exists, and releases the device. A no-op when not recording.
func (c *Client) StopRecording() {
	c.mu.Lock()
	state := c.capture
	c.capture = captureState{}
	c.mu.Unlock()

	if state.session == nil {
		return
	}

	if err := state.recorder.Stop(); err != nil {
		c.logger.Warn("Recorder stop failed", zap.Error(err))
	}
	// Wait for the final flush and, in batch mode, the buffer send.
	<-state.done
	state.cancel()

	state.session.Finish()
	c.logger.Info("Recording stopped",
		zap.String("sessionId", state.session.ID),
		zap.Duration("duration", state.session.Duration()))
}

// pickRecordingMode selects the transmission policy: streaming when the
// streaming channel is open, batch over the conversational channel
// otherwise.
func (c *Client) pickRecordingMode() (entities.RecordingMode, bool) {
	if c.cfg.Audio.StreamingEnabled && c.stream != nil && c.stream.IsOpen() {
		return entities.RecordingModeStreaming, true
	}
	if c.conv.IsOpen() {
		return entities.RecordingModeBatch, true
	}
	return "", false
}

// consumeFrames drains the recorder until it closes, then finalizes the
// session. Runs on its own goroutine; done is closed when everything this
// session will ever send has been handed to a channel.
func (c *Client) consumeFrames(session *entities.RecordingSession, rec repositories.RecorderSession, done chan struct{}) {
	defer close(done)

	for frame := range rec.Frames() {
		switch session.Mode {
		case entities.RecordingModeStreaming:
			if !c.validFrame(frame) {
				c.metrics.ChunksDropped.Inc()
				c.logger.Debug("Dropping undersized frame",
					zap.Int("bytes", len(frame.Data)),
					zap.Int("headerLen", frame.HeaderLen))
				continue
			}
			if err := c.stream.Send(protocol.NewAudioChunkMessage(frame.Data)); err != nil {
				c.logger.Warn("Streaming chunk send failed", zap.Error(err))
				continue
			}
			c.metrics.ChunksSent.Inc()

		case entities.RecordingModeBatch:
			// Batch frames accumulate unvalidated; the whole utterance
			// goes out as one object on stop.
			session.Accumulate(frame.Data)
		}
	}

	if session.Mode == entities.RecordingModeBatch {
		data := session.Concat()
		if len(data) == 0 {
			return
		}
		if err := c.conv.Send(protocol.NewAudioMessage(data)); err != nil {
			c.logger.Warn("Batch audio send failed", zap.Error(err))
			return
		}
		c.metrics.ChunksSent.Inc()
		c.logger.Info("Batch audio sent", zap.Int("bytes", len(data)))
	}
}

// validFrame enforces the minimum chunk size and header length. Frames
// failing validation are dropped, never retried.
func (c *Client) validFrame(frame repositories.Frame) bool {
	return len(frame.Data) >= c.cfg.Audio.MinChunkBytes &&
		frame.HeaderLen >= c.cfg.Audio.MinHeaderBytes
}
