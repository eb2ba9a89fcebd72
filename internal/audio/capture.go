package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Capture is the microphone capture capability. Acquiring it is
// permission-gated and has real-world failure modes (permission denied,
// no device); implementations surface those from Start.
type Capture interface {
	// Start acquires the device and begins delivering audio chunks.
	// The channel closes when the capture is stopped or the device is lost.
	Start(ctx context.Context) (<-chan []byte, error)

	// Stop releases the device. Safe to call when not started.
	Stop() error
}

// Sink receives captured audio chunks while the recorder is running
type Sink func(chunk []byte)

// Recorder owns the capture device lifecycle for one session: start, pause
// and stop, buffering captured audio and forwarding it to an optional sink.
type Recorder struct {
	capture Capture
	buffer  *RingBuffer
	logger  zerolog.Logger

	mu      sync.Mutex
	started bool
	paused  bool
	cancel  context.CancelFunc
	done    chan struct{}
	sink    Sink
}

// NewRecorder creates a recorder over the given capture capability
func NewRecorder(capture Capture, bufferSize int, logger zerolog.Logger) *Recorder {
	return &Recorder{
		capture: capture,
		buffer:  NewRingBuffer(bufferSize),
		logger:  logger,
	}
}

// SetSink installs the chunk sink. Must be set before Start.
func (r *Recorder) SetSink(sink Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

// Start acquires the microphone and begins recording. Device and permission
// failures are returned to the caller rather than handled here.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("recorder is already started")
	}
	if r.capture == nil {
		return fmt.Errorf("no microphone capture capability available")
	}

	captureCtx, cancel := context.WithCancel(ctx)
	chunks, err := r.capture.Start(captureCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to acquire microphone: %w", err)
	}

	r.cancel = cancel
	r.started = true
	r.paused = false
	r.done = make(chan struct{})

	go r.pump(chunks, r.done)
	return nil
}

func (r *Recorder) pump(chunks <-chan []byte, done chan struct{}) {
	defer close(done)
	for chunk := range chunks {
		r.mu.Lock()
		paused := r.paused
		sink := r.sink
		r.mu.Unlock()

		if paused {
			// Paused recording discards audio but keeps the device open
			continue
		}

		if written := r.buffer.Write(chunk); written < len(chunk) {
			r.logger.Warn().
				Int("dropped", len(chunk)-written).
				Msg("Capture buffer full, dropping audio")
		}
		if sink != nil {
			sink(chunk)
		}
	}
}

// Pause suspends recording without releasing the device. Idempotent.
func (r *Recorder) Pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = true
}

// Resume re-enables recording after a pause. Idempotent.
func (r *Recorder) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paused = false
}

// Drain returns buffered audio captured since the last drain
func (r *Recorder) Drain() []byte {
	return r.buffer.Drain()
}

// Stop releases the microphone. Safe to call multiple times and from any
// state.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	cancel := r.cancel
	done := r.done
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	err := r.capture.Stop()
	if done != nil {
		<-done
	}
	r.buffer.Clear()
	return err
}

// IsStarted reports whether the recorder currently owns the device
func (r *Recorder) IsStarted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}
