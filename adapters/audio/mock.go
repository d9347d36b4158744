package audio

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sorivoice/sori/domain/repositories"
)

// MockRecorder is a placeholder implementation that emits synthetic WAV
// frames of a fixed payload size. Used by tests exercising the capture
// pipeline without real audio hardware.
type MockRecorder struct {
	logger *zap.Logger

	// PayloadBytes is the PCM payload size per frame, before the WAV
	// header is added. Defaults to one frame interval of 16kHz mono.
	PayloadBytes int
}

// NewMockRecorder creates a new mock recorder
func NewMockRecorder(logger *zap.Logger) *MockRecorder {
	return &MockRecorder{logger: logger}
}

// Start implements repositories.Recorder
func (m *MockRecorder) Start(ctx context.Context, config repositories.CaptureConfig) (repositories.RecorderSession, error) {
	m.logger.Info("Starting mock capture",
		zap.Int("sampleRate", config.SampleRate),
		zap.Duration("frameInterval", config.FrameInterval))

	payload := m.PayloadBytes
	if payload <= 0 {
		payload = int(float64(config.SampleRate) * 2 * config.FrameInterval.Seconds())
	}

	s := &mockSession{
		config:  config,
		payload: payload,
		frames:  make(chan repositories.Frame, 8),
		stopCh:  make(chan struct{}),
	}
	go s.run(ctx)
	return s, nil
}

type mockSession struct {
	config  repositories.CaptureConfig
	payload int
	frames  chan repositories.Frame

	stopOnce sync.Once
	stopCh   chan struct{}
}

func (s *mockSession) Frames() <-chan repositories.Frame {
	return s.frames
}

func (s *mockSession) Stop() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	return nil
}

func (s *mockSession) run(ctx context.Context) {
	ticker := time.NewTicker(s.config.FrameInterval)
	defer ticker.Stop()
	defer close(s.frames)

	for {
		select {
		case <-ticker.C:
			data, err := EncodeWAV(make([]byte, s.payload), s.config.SampleRate, s.config.Channels)
			if err != nil {
				return
			}
			select {
			case s.frames <- repositories.Frame{Data: data, HeaderLen: wavHeaderLen, CapturedAt: time.Now()}:
			default:
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}
