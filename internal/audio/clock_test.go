package audio

import (
	"sync"
	"testing"
	"time"
)

func TestPlaybackClock_PlaysToEnd(t *testing.T) {
	clock := NewPlaybackClock(30*time.Millisecond, 5*time.Millisecond)

	var mu sync.Mutex
	var progressCalls int
	endedCh := make(chan struct{})

	clock.OnProgress(func(current, total time.Duration) {
		mu.Lock()
		progressCalls++
		mu.Unlock()
		if current > total {
			t.Errorf("Progress current %v exceeds total %v", current, total)
		}
	})
	clock.OnEnded(func() { close(endedCh) })

	clock.Play()

	select {
	case <-endedCh:
	case <-time.After(time.Second):
		t.Fatal("Clock never ended")
	}

	mu.Lock()
	defer mu.Unlock()
	if progressCalls == 0 {
		t.Error("Expected progress callbacks during playback")
	}
	if clock.CurrentTime() != clock.Duration() {
		t.Errorf("Expected current time to equal duration after end, got %v", clock.CurrentTime())
	}
}

func TestPlaybackClock_EndedIsObservableAndFinal(t *testing.T) {
	clock := NewPlaybackClock(10*time.Millisecond, 2*time.Millisecond)
	endedCh := make(chan struct{})
	clock.OnEnded(func() { close(endedCh) })

	if clock.Ended() {
		t.Fatal("Expected Ended() false before playback")
	}

	clock.Play()
	select {
	case <-endedCh:
	case <-time.After(time.Second):
		t.Fatal("Clock never ended")
	}

	if !clock.Ended() {
		t.Error("Expected Ended() true after playback completed")
	}

	// Play on an ended clock is a no-op; the position stays at the end
	clock.Play()
	if clock.IsPlaying() {
		t.Error("Expected an ended clock to refuse Play")
	}
	if clock.CurrentTime() != clock.Duration() {
		t.Errorf("Expected position pinned at duration, got %v", clock.CurrentTime())
	}
}

func TestPlaybackClock_PauseFreezesPosition(t *testing.T) {
	clock := NewPlaybackClock(time.Second, 2*time.Millisecond)
	clock.Play()
	time.Sleep(20 * time.Millisecond)
	clock.Pause()

	frozen := clock.CurrentTime()
	if frozen == 0 {
		t.Fatal("Expected playback to have advanced before pause")
	}

	time.Sleep(20 * time.Millisecond)
	if clock.CurrentTime() != frozen {
		t.Errorf("Expected position frozen at %v, got %v", frozen, clock.CurrentTime())
	}

	// Resume continues from the same position
	clock.Play()
	time.Sleep(10 * time.Millisecond)
	if clock.CurrentTime() <= frozen {
		t.Error("Expected playback to advance after resume")
	}
	clock.Stop()
}

func TestPlaybackClock_StopIsTerminal(t *testing.T) {
	clock := NewPlaybackClock(50*time.Millisecond, 2*time.Millisecond)

	var mu sync.Mutex
	ended := false
	clock.OnEnded(func() {
		mu.Lock()
		ended = true
		mu.Unlock()
	})

	clock.Play()
	clock.Stop()
	clock.Stop() // Second stop must not panic

	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if ended {
		t.Error("Expected no ended callback after Stop")
	}
	if clock.IsPlaying() {
		t.Error("Expected clock to not be playing after Stop")
	}
}

func TestPlaybackClock_PauseWhenNotPlaying(t *testing.T) {
	clock := NewPlaybackClock(time.Second, time.Millisecond)
	clock.Pause() // No-op, must not panic or block
	if clock.CurrentTime() != 0 {
		t.Errorf("Expected position 0, got %v", clock.CurrentTime())
	}
}
