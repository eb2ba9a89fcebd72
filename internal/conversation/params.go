package conversation

import (
	"time"

	"github.com/jobcraftai/interview-engine/internal/config"
)

// Params are the caller-supplied timing parameters for one session. The
// engine assumes nothing about their values: zero disables a delay, a very
// large MaxResponseTime effectively disables the listening timeout.
type Params struct {
	// ResponseDelay is the pause after end-of-turn before advancing
	ResponseDelay time.Duration

	// ListeningStartDelay is the gap between playback end and listening
	// start, so the tail of the question audio is not clipped as speech
	ListeningStartDelay time.Duration

	// SilenceThreshold is the normalized volume below which a frame counts
	// as silence
	SilenceThreshold float64

	// SilenceWindow is the continuous silence after detected speech that
	// ends the turn naturally
	SilenceWindow time.Duration

	// MaxResponseTime bounds the listening phase; when it fires, silence is
	// treated as the response
	MaxResponseTime time.Duration

	// PreparingNextDelay is the brief pause between turns
	PreparingNextDelay time.Duration

	// VolumeFrameInterval is the volume sampling cadence
	VolumeFrameInterval time.Duration

	// PlaybackTick is the audio progress reporting cadence
	PlaybackTick time.Duration
}

// DefaultParams returns the stock timing parameters
func DefaultParams() Params {
	return Params{
		ResponseDelay:       2 * time.Second,
		ListeningStartDelay: 1 * time.Second,
		SilenceThreshold:    0.01,
		SilenceWindow:       1500 * time.Millisecond,
		MaxResponseTime:     120 * time.Second,
		PreparingNextDelay:  250 * time.Millisecond,
		VolumeFrameInterval: 16 * time.Millisecond,
		PlaybackTick:        250 * time.Millisecond,
	}
}

// ParamsFromConfig maps service configuration to session parameters
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		ResponseDelay:       time.Duration(cfg.ResponseDelayMs) * time.Millisecond,
		ListeningStartDelay: time.Duration(cfg.ListeningStartDelayMs) * time.Millisecond,
		SilenceThreshold:    cfg.SilenceThreshold,
		SilenceWindow:       time.Duration(cfg.SilenceWindowMs) * time.Millisecond,
		MaxResponseTime:     time.Duration(cfg.MaxResponseTimeMs) * time.Millisecond,
		PreparingNextDelay:  time.Duration(cfg.PreparingNextDelayMs) * time.Millisecond,
		VolumeFrameInterval: time.Duration(cfg.VolumeFrameIntervalMs) * time.Millisecond,
		PlaybackTick:        250 * time.Millisecond,
	}
}
