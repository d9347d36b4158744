package audio

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/sorivoice/sori/domain/repositories"
)

// ARecord captures from the default ALSA device via the arecord binary.
// Echo cancellation and noise suppression are properties of the ALSA
// device profile; the flags in CaptureConfig document the expectation but
// cannot be enforced from here.
func ARecord() SourceFunc {
	return func(ctx context.Context, config repositories.CaptureConfig) (io.ReadCloser, error) {
		args := []string{
			"-q",
			"-f", "S16_LE",
			"-r", strconv.Itoa(config.SampleRate),
			"-c", strconv.Itoa(config.Channels),
			"-t", "raw",
		}
		return Command("arecord", args...)(ctx, config)
	}
}

// Command runs an external capture process and streams its stdout.
// Closing the returned reader kills the process.
func Command(name string, args ...string) SourceFunc {
	return func(ctx context.Context, config repositories.CaptureConfig) (io.ReadCloser, error) {
		cmd := exec.CommandContext(ctx, name, args...)
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("pipe %s stdout: %w", name, err)
		}
		if err := cmd.Start(); err != nil {
			return nil, fmt.Errorf("start %s: %w", name, err)
		}
		return &processSource{cmd: cmd, stdout: stdout}, nil
	}
}

type processSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	once   sync.Once
}

func (p *processSource) Read(b []byte) (int, error) {
	return p.stdout.Read(b)
}

func (p *processSource) Close() error {
	var err error
	p.once.Do(func() {
		p.stdout.Close()
		if p.cmd.Process != nil {
			p.cmd.Process.Kill()
		}
		err = p.cmd.Wait()
	})
	return err
}

// Stdin streams raw PCM from standard input, for piping capture tools:
//
//	arecord -q -f S16_LE -r 16000 -c 1 -t raw | sori
func Stdin() SourceFunc {
	return func(ctx context.Context, config repositories.CaptureConfig) (io.ReadCloser, error) {
		return io.NopCloser(os.Stdin), nil
	}
}

// Tone generates a 440Hz sine paced to real time, for demos and tests on
// machines without a microphone.
func Tone() SourceFunc {
	return func(ctx context.Context, config repositories.CaptureConfig) (io.ReadCloser, error) {
		return &toneSource{
			sampleRate: config.SampleRate,
			channels:   config.Channels,
		}, nil
	}
}

type toneSource struct {
	sampleRate int
	channels   int

	mu     sync.Mutex
	closed bool
	phase  float64
}

// Read produces 100ms worth of samples per call, sleeping to hold the
// stream at real-time rate.
func (t *toneSource) Read(b []byte) (int, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return 0, io.EOF
	}
	t.mu.Unlock()

	time.Sleep(100 * time.Millisecond)

	samples := t.sampleRate / 10 * t.channels
	if max := len(b) / 2; samples > max {
		samples = max
	}
	step := 2 * math.Pi * 440 / float64(t.sampleRate)
	n := 0
	for i := 0; i < samples; i++ {
		t.mu.Lock()
		v := int16(math.Sin(t.phase) * 8000)
		t.phase += step
		t.mu.Unlock()
		b[n] = byte(v)
		b[n+1] = byte(v >> 8)
		n += 2
	}
	return n, nil
}

func (t *toneSource) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}
