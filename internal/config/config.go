package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration for the interview engine service
type Config struct {
	// Server configuration
	Port string `envconfig:"PORT" default:"8080"`

	// Public base URL for this service (e.g. https://xxx.ngrok-free.dev when behind a tunnel).
	// Used for logging the WebSocket endpoint; hosts connect to wss://<this-host>/sessions/interview.
	// Optional; if unset, logs ws://localhost:PORT/sessions/interview.
	PublicURL string `envconfig:"PUBLIC_URL" default:""`

	// Turn-taking timing (milliseconds). All of these are caller-tunable:
	// zero disables the delay, very large values effectively disable the timeout.
	ResponseDelayMs       int     `envconfig:"RESPONSE_DELAY_MS" default:"2000"`        // Pause after end-of-turn before advancing
	ListeningStartDelayMs int     `envconfig:"LISTENING_START_DELAY_MS" default:"1000"` // Gap between playback end and listening start
	MaxResponseTimeMs     int     `envconfig:"MAX_RESPONSE_TIME_MS" default:"120000"`   // Listening timeout; fires end-of-turn
	PreparingNextDelayMs  int     `envconfig:"PREPARING_NEXT_DELAY_MS" default:"250"`   // Pause between turns
	SilenceThreshold      float64 `envconfig:"SILENCE_THRESHOLD" default:"0.01"`        // Normalized volume below which a frame is silent
	SilenceWindowMs       int     `envconfig:"SILENCE_WINDOW_MS" default:"1500"`        // Continuous silence after speech that ends a turn
	VolumeFrameIntervalMs int     `envconfig:"VOLUME_FRAME_INTERVAL_MS" default:"16"`   // Volume sampling cadence

	// Speech synthesis (TTS) API configuration
	TTSAPIKey     string `envconfig:"TTS_API_KEY" default:""`
	TTSAPIURL     string `envconfig:"TTS_API_URL" default:"https://api.cartesia.ai/v1/tts"`
	TTSVoiceID    string `envconfig:"TTS_VOICE_ID" default:"sonic-english"`
	TTSModelID    string `envconfig:"TTS_MODEL_ID" default:"sonic"`
	TTSSampleRate int    `envconfig:"TTS_SAMPLE_RATE" default:"16000"`

	// Deepgram answer-transcription configuration (optional capability)
	DeepgramAPIKey   string `envconfig:"DEEPGRAM_API_KEY" default:""`
	DeepgramModel    string `envconfig:"DEEPGRAM_MODEL" default:"nova-2"`
	DeepgramLanguage string `envconfig:"DEEPGRAM_LANGUAGE" default:"en"`

	// Realtime conversation session configuration
	RealtimeURL          string `envconfig:"REALTIME_URL" default:""`
	RealtimeAPIKey       string `envconfig:"REALTIME_API_KEY" default:""`
	RealtimeSilenceGapMs int    `envconfig:"REALTIME_SILENCE_GAP_MS" default:"1000"` // Silence gap before audioStreamEnd
	RealtimeWarmupMs     int    `envconfig:"REALTIME_WARMUP_MS" default:"500"`       // Delay before the synthetic opening instruction

	// Audio processing configuration
	AudioBufferSize int `envconfig:"AUDIO_BUFFER_SIZE" default:"8192"` // Ring buffer size in bytes

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"5"`   // Failures before opening circuit
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before attempting recovery
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Maximum retry attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"100"`        // Initial backoff in milliseconds
	ReconnectMaxAttempts       int `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`         // Maximum reconnection attempts
	ReconnectBackoff           int `envconfig:"RECONNECT_BACKOFF" default:"1000"`           // Reconnection backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`       // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"false"`     // Pretty print logs (for development)
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"true"` // Enable Prometheus metrics
}

// Load reads configuration from environment variables
// It first attempts to load from .env file if it exists, then from environment
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration directly from environment variables
// without attempting to load .env file (useful for containerized deployments)
func LoadFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MaxResponseTimeMs <= 0 {
		return fmt.Errorf("MAX_RESPONSE_TIME_MS must be positive")
	}
	if c.SilenceThreshold < 0 || c.SilenceThreshold > 1 {
		return fmt.Errorf("SILENCE_THRESHOLD must be within [0,1]")
	}
	if c.RealtimeSilenceGapMs <= 0 {
		return fmt.Errorf("REALTIME_SILENCE_GAP_MS must be positive")
	}
	return nil
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
