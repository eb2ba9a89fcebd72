package synth

import (
	"math"
	"strings"
	"time"
)

const (
	// speechRateWPM is the assumed speech rate for duration estimation
	speechRateWPM = 150

	// minClipSeconds floors every estimate so no clip has zero duration
	minClipSeconds = 3
)

// EstimateDuration estimates how long spoken text lasts at a 150 words/minute
// speech rate, floored at 3 seconds. Used whenever real synthesis timing is
// unavailable.
func EstimateDuration(text string) time.Duration {
	words := len(strings.Fields(text))
	seconds := math.Ceil(float64(words) / speechRateWPM * 60)
	if seconds < minClipSeconds {
		seconds = minClipSeconds
	}
	return time.Duration(seconds) * time.Second
}

// PlaceholderClip produces a silent, timed stand-in for text whose synthesis
// failed or is unavailable. The PCM payload is zero-filled silence sized to
// the estimated duration so downstream playback needs no special casing.
func PlaceholderClip(text string, sampleRate int) *Clip {
	d := EstimateDuration(text)

	// LINEAR16 mono: 2 bytes per sample
	samples := int(d.Seconds()) * sampleRate
	return &Clip{
		Audio:       make([]byte, samples*2),
		SampleRate:  sampleRate,
		Duration:    d,
		Text:        text,
		Placeholder: true,
	}
}
