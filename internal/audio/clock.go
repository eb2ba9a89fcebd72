package audio

import (
	"sync"
	"time"
)

// PlaybackClock drives playback progress for one audio clip. It is an
// explicit timer object with the shape of an audio element (play, pause,
// current time, duration, progress and ended callbacks), so a clip with only
// a known duration, such as a timed-silence placeholder, plays exactly like
// a real one.
type PlaybackClock struct {
	duration time.Duration
	tick     time.Duration

	onProgress func(current, total time.Duration)
	onEnded    func()

	mu       sync.Mutex
	playing  bool
	ended    bool
	stopped  bool
	elapsed  time.Duration // Accumulated play time up to the last pause
	playedAt time.Time     // Wall-clock instant of the current Play
	stop     chan struct{}
	done     chan struct{}
}

// NewPlaybackClock creates a clock for a clip of the given duration,
// emitting progress every tick.
func NewPlaybackClock(duration, tick time.Duration) *PlaybackClock {
	if tick <= 0 {
		tick = 250 * time.Millisecond
	}
	return &PlaybackClock{
		duration: duration,
		tick:     tick,
	}
}

// OnProgress registers the progress callback. Must be set before Play.
func (c *PlaybackClock) OnProgress(fn func(current, total time.Duration)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onProgress = fn
}

// OnEnded registers the end-of-playback callback. Fires exactly once.
func (c *PlaybackClock) OnEnded(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEnded = fn
}

// Play starts or resumes playback. No-op when already playing, ended or
// stopped.
func (c *PlaybackClock) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playing || c.ended || c.stopped {
		return
	}
	c.playing = true
	c.playedAt = time.Now()
	c.stop = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(c.stop, c.done)
}

func (c *PlaybackClock) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			if !c.playing {
				// Paused or stopped between ticks; no late callbacks
				c.mu.Unlock()
				return
			}
			current := c.elapsed + time.Since(c.playedAt)
			finished := current >= c.duration
			if finished {
				current = c.duration
				c.playing = false
				c.ended = true
			}
			onProgress := c.onProgress
			onEnded := c.onEnded
			total := c.duration
			c.mu.Unlock()

			if onProgress != nil {
				onProgress(current, total)
			}
			if finished {
				if onEnded != nil {
					onEnded()
				}
				return
			}
		case <-stop:
			return
		}
	}
}

// Pause freezes playback, retaining the current position. No-op when not
// playing.
func (c *PlaybackClock) Pause() {
	c.mu.Lock()
	if !c.playing {
		c.mu.Unlock()
		return
	}
	c.playing = false
	c.elapsed += time.Since(c.playedAt)
	stop := c.stop
	done := c.done
	c.mu.Unlock()

	close(stop)
	<-done
}

// Stop cancels playback permanently; no further callbacks fire
func (c *PlaybackClock) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	wasPlaying := c.playing
	c.playing = false
	stop := c.stop
	done := c.done
	c.mu.Unlock()

	if wasPlaying {
		close(stop)
		<-done
	}
}

// CurrentTime returns the playback position
func (c *PlaybackClock) CurrentTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ended {
		return c.duration
	}
	if c.playing {
		return c.elapsed + time.Since(c.playedAt)
	}
	return c.elapsed
}

// Duration returns the clip duration
func (c *PlaybackClock) Duration() time.Duration {
	return c.duration
}

// IsPlaying reports whether the clock is advancing
func (c *PlaybackClock) IsPlaying() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Ended reports whether the clip has played to completion. An ended clock
// cannot be resumed with Play.
func (c *PlaybackClock) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}
