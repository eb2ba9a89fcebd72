package audio

import (
	"sync"
	"time"
)

// AnalysisSource exposes a frequency-domain sample buffer for the microphone
// stream, one byte per bin. Injected so the engine is testable without a
// real audio device.
type AnalysisSource interface {
	FrequencyData() []byte
}

// VolumeMonitor samples an analysis source at frame cadence and reports a
// normalized volume level in [0,1]: the mean of the frequency bins divided
// by the maximum byte value.
type VolumeMonitor struct {
	source   AnalysisSource
	interval time.Duration
	onLevel  func(level float64)

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewVolumeMonitor creates a monitor sampling source every interval
func NewVolumeMonitor(source AnalysisSource, interval time.Duration, onLevel func(level float64)) *VolumeMonitor {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &VolumeMonitor{
		source:   source,
		interval: interval,
		onLevel:  onLevel,
	}
}

// NormalizedLevel computes the [0,1] volume level of one frequency buffer
func NormalizedLevel(bins []byte) float64 {
	if len(bins) == 0 {
		return 0
	}
	sum := 0
	for _, b := range bins {
		sum += int(b)
	}
	return float64(sum) / float64(len(bins)) / 255.0
}

// Start begins the sampling loop. No-op if already running.
func (m *VolumeMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running || m.source == nil {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.loop(m.stop, m.done)
}

func (m *VolumeMonitor) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			level := NormalizedLevel(m.source.FrequencyData())
			if m.onLevel != nil {
				m.onLevel(level)
			}
		case <-stop:
			return
		}
	}
}

// Stop halts the sampling loop and waits for it to exit, so no level
// callback fires after Stop returns. Safe to call multiple times.
func (m *VolumeMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop := m.stop
	done := m.done
	m.mu.Unlock()

	close(stop)
	<-done
}

// IsRunning reports whether the sampling loop is active
func (m *VolumeMonitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
