package repositories

import (
	"context"
	"time"
)

// CaptureConfig represents how the microphone should be acquired
type CaptureConfig struct {
	SampleRate       int           `json:"sample_rate"`
	Channels         int           `json:"channels"`
	EchoCancellation bool          `json:"echo_cancellation"`
	NoiseSuppression bool          `json:"noise_suppression"`
	FrameInterval    time.Duration `json:"frame_interval"`
}

// Frame is one encoded audio fragment emitted by a recorder session.
// HeaderLen is the size of the container header inside Data; the capture
// pipeline drops frames whose header is too short to be playable.
type Frame struct {
	Data       []byte
	HeaderLen  int
	CapturedAt time.Time
}

// RecorderSession is a live microphone capture session. Frames are emitted
// on the returned channel every CaptureConfig.FrameInterval until Stop.
type RecorderSession interface {
	// Frames returns the frame stream. The channel is closed after Stop
	// has flushed the final partial frame.
	Frames() <-chan Frame
	// Stop flushes the recorder and releases the device.
	Stop() error
}

// Recorder abstracts microphone acquisition
type Recorder interface {
	// Start acquires the device and begins emitting frames. The device is
	// always released again, on both normal stop and error paths.
	Start(ctx context.Context, config CaptureConfig) (RecorderSession, error)
}
