// Package audio captures microphone input as raw PCM and frames it into
// WAV fragments on a fixed cadence.
package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"go.uber.org/zap"

	"github.com/sorivoice/sori/domain/repositories"
)

// wavHeaderLen is the canonical RIFF/WAVE header size the encoder emits.
const wavHeaderLen = 44

// SourceFunc acquires a raw PCM byte stream (signed 16-bit little-endian)
// for the given capture settings. Closing the reader releases the device.
type SourceFunc func(ctx context.Context, config repositories.CaptureConfig) (io.ReadCloser, error)

// WavRecorder frames a PCM source into standalone WAV fragments, one per
// CaptureConfig.FrameInterval. It satisfies repositories.Recorder.
type WavRecorder struct {
	open   SourceFunc
	logger *zap.Logger
}

// NewWavRecorder creates a recorder over the given PCM source
func NewWavRecorder(open SourceFunc, logger *zap.Logger) *WavRecorder {
	return &WavRecorder{open: open, logger: logger}
}

// Start implements repositories.Recorder
func (r *WavRecorder) Start(ctx context.Context, config repositories.CaptureConfig) (repositories.RecorderSession, error) {
	src, err := r.open(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("open audio source: %w", err)
	}

	s := &wavSession{
		config: config,
		src:    src,
		frames: make(chan repositories.Frame, 8),
		stopCh: make(chan struct{}),
		logger: r.logger,
	}

	go s.readLoop()
	go s.frameLoop()

	// A cancelled context releases the device the same way Stop does.
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.stopCh:
		}
	}()

	return s, nil
}

type wavSession struct {
	config repositories.CaptureConfig
	src    io.ReadCloser
	frames chan repositories.Frame
	logger *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}

	mu      sync.Mutex
	pending []byte
}

// Frames implements repositories.RecorderSession
func (s *wavSession) Frames() <-chan repositories.Frame {
	return s.frames
}

// Stop implements repositories.RecorderSession. Closing the source
// unblocks the read loop; the frame loop flushes what remains and closes
// the frame channel.
func (s *wavSession) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.stopCh)
		err = s.src.Close()
	})
	return err
}

func (s *wavSession) readLoop() {
	buf := make([]byte, 4096)
	for {
		n, err := s.src.Read(buf)
		if n > 0 {
			s.mu.Lock()
			s.pending = append(s.pending, buf[:n]...)
			s.mu.Unlock()
		}
		if err != nil {
			if err != io.EOF {
				s.logger.Warn("Audio source read failed", zap.Error(err))
			}
			s.Stop()
			return
		}
	}
}

func (s *wavSession) frameLoop() {
	ticker := time.NewTicker(s.config.FrameInterval)
	defer ticker.Stop()
	defer close(s.frames)

	for {
		select {
		case <-ticker.C:
			s.flush(false)
		case <-s.stopCh:
			s.flush(true)
			return
		}
	}
}

// flush drains the pending PCM into one WAV frame. A trailing odd byte is
// kept for the next frame so samples are never split.
func (s *wavSession) flush(final bool) {
	s.mu.Lock()
	n := len(s.pending) &^ 1
	pcm := s.pending[:n]
	s.pending = append([]byte(nil), s.pending[n:]...)
	s.mu.Unlock()

	if len(pcm) == 0 {
		return
	}

	data, err := EncodeWAV(pcm, s.config.SampleRate, s.config.Channels)
	if err != nil {
		s.logger.Error("WAV encoding failed", zap.Error(err))
		return
	}

	frame := repositories.Frame{
		Data:       data,
		HeaderLen:  wavHeaderLen,
		CapturedAt: time.Now(),
	}

	if final {
		// Blocking send so the last partial frame is never lost.
		s.frames <- frame
		return
	}
	select {
	case s.frames <- frame:
	default:
		s.logger.Warn("Frame buffer full, dropping capture frame",
			zap.Int("bytes", len(data)))
	}
}

// EncodeWAV wraps signed 16-bit little-endian PCM in a WAV container
func EncodeWAV(pcm []byte, sampleRate, channels int) ([]byte, error) {
	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[2*i:])))
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}

	ws := &bufferSeeker{}
	enc := wav.NewEncoder(ws, sampleRate, 16, channels, 1)
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("write WAV samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize WAV container: %w", err)
	}
	return ws.Bytes(), nil
}

// bufferSeeker is an in-memory io.WriteSeeker. The WAV encoder seeks back
// to patch chunk sizes on Close, which an io.Writer cannot support.
type bufferSeeker struct {
	data []byte
	pos  int
}

func (b *bufferSeeker) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.data) {
		grown := make([]byte, need)
		copy(grown, b.data)
		b.data = grown
	}
	copy(b.data[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *bufferSeeker) Seek(offset int64, whence int) (int64, error) {
	var pos int64
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = int64(b.pos) + offset
	case io.SeekEnd:
		pos = int64(len(b.data)) + offset
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	if pos < 0 {
		return 0, fmt.Errorf("negative seek position %d", pos)
	}
	b.pos = int(pos)
	return pos, nil
}

func (b *bufferSeeker) Bytes() []byte {
	return b.data
}
