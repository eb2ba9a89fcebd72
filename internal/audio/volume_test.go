package audio

import (
	"sync"
	"testing"
	"time"
)

type fakeAnalysis struct {
	mu   sync.Mutex
	bins []byte
}

func (f *fakeAnalysis) FrequencyData() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]byte, len(f.bins))
	copy(out, f.bins)
	return out
}

func (f *fakeAnalysis) set(bins []byte) {
	f.mu.Lock()
	f.bins = bins
	f.mu.Unlock()
}

func TestNormalizedLevel(t *testing.T) {
	if level := NormalizedLevel(nil); level != 0 {
		t.Errorf("Expected 0 for empty buffer, got %f", level)
	}

	// All-max bins normalize to 1.0
	bins := []byte{255, 255, 255, 255}
	if level := NormalizedLevel(bins); level != 1.0 {
		t.Errorf("Expected 1.0, got %f", level)
	}

	// Uniform mid-range bins
	bins = []byte{51, 51, 51}
	expected := 51.0 / 255.0
	if level := NormalizedLevel(bins); level != expected {
		t.Errorf("Expected %f, got %f", expected, level)
	}
}

func TestVolumeMonitor_ReportsLevels(t *testing.T) {
	source := &fakeAnalysis{}
	source.set([]byte{128, 128})

	var mu sync.Mutex
	var levels []float64
	monitor := NewVolumeMonitor(source, time.Millisecond, func(level float64) {
		mu.Lock()
		levels = append(levels, level)
		mu.Unlock()
	})

	monitor.Start()
	time.Sleep(20 * time.Millisecond)
	monitor.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(levels) == 0 {
		t.Fatal("Expected at least one volume sample")
	}
	for _, level := range levels {
		if level < 0 || level > 1 {
			t.Errorf("Expected level in [0,1], got %f", level)
		}
	}
}

func TestVolumeMonitor_StopHaltsCallbacks(t *testing.T) {
	source := &fakeAnalysis{}
	source.set([]byte{200})

	var mu sync.Mutex
	count := 0
	monitor := NewVolumeMonitor(source, time.Millisecond, func(level float64) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	monitor.Start()
	time.Sleep(10 * time.Millisecond)
	monitor.Stop()

	mu.Lock()
	after := count
	mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != after {
		t.Errorf("Expected no callbacks after Stop, got %d more", count-after)
	}

	// Stop again must not panic
	monitor.Stop()
}

func TestVolumeMonitor_StartIdempotent(t *testing.T) {
	source := &fakeAnalysis{}
	monitor := NewVolumeMonitor(source, time.Millisecond, nil)

	monitor.Start()
	monitor.Start() // Second start is a no-op
	if !monitor.IsRunning() {
		t.Error("Expected monitor to be running")
	}
	monitor.Stop()
	if monitor.IsRunning() {
		t.Error("Expected monitor to be stopped")
	}
}
