package entities

import (
	"time"

	"github.com/google/uuid"
)

// RecordingMode selects how captured audio leaves the client
type RecordingMode string

const (
	// RecordingModeStreaming sends each frame immediately over the
	// streaming channel as it is captured.
	RecordingModeStreaming RecordingMode = "streaming"
	// RecordingModeBatch accumulates frames and sends one blob over the
	// conversational channel when recording stops.
	RecordingModeBatch RecordingMode = "batch"
)

// RecordingSession represents one user utterance, from start to stop of
// recording. At most one session is active at a time.
type RecordingSession struct {
	ID        string
	Mode      RecordingMode
	StartedAt time.Time
	StoppedAt time.Time

	buffer [][]byte // batch mode only
	size   int
}

// NewRecordingSession creates a session for one utterance
func NewRecordingSession(mode RecordingMode) *RecordingSession {
	return &RecordingSession{
		ID:        uuid.NewString(),
		Mode:      mode,
		StartedAt: time.Now(),
	}
}

// Accumulate buffers a captured frame. Only meaningful in batch mode;
// streaming mode holds nothing after transmission.
func (s *RecordingSession) Accumulate(data []byte) {
	if s.Mode != RecordingModeBatch {
		return
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	s.buffer = append(s.buffer, frame)
	s.size += len(frame)
}

// Concat joins the buffered frames into one audio object in capture order.
func (s *RecordingSession) Concat() []byte {
	out := make([]byte, 0, s.size)
	for _, frame := range s.buffer {
		out = append(out, frame...)
	}
	return out
}

// BufferedBytes returns the total size of the accumulated frames.
func (s *RecordingSession) BufferedBytes() int {
	return s.size
}

// Finish marks the session stopped and releases the buffer.
func (s *RecordingSession) Finish() {
	s.StoppedAt = time.Now()
	s.buffer = nil
}

// Duration returns the utterance length, or time since start while the
// session is still active.
func (s *RecordingSession) Duration() time.Duration {
	if s.StoppedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.StoppedAt.Sub(s.StartedAt)
}
