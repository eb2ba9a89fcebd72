package synth

import (
	"context"
	"time"
)

// Clip is a playable audio resource for one question
type Clip struct {
	Audio       []byte        // Raw PCM audio data (LINEAR16)
	SampleRate  int           // Sample rate in Hz
	Duration    time.Duration // Known before playback begins (real or estimated)
	Text        string        // Original question text, retained for on-screen display
	Placeholder bool          // True when this is a timed-silence fallback
}

// Synthesizer converts question text into playable audio.
// Implementations may be absent or fail per call; callers fall back to
// a timed-silence placeholder so the interview never stalls on synthesis.
type Synthesizer interface {
	// Synthesize converts text to a playable clip using the given voice
	Synthesize(ctx context.Context, text, voice string) (*Clip, error)

	// Close closes the synthesizer and cleans up resources
	Close() error
}
