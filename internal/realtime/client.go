package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jobcraftai/interview-engine/internal/observability"
	"github.com/jobcraftai/interview-engine/internal/resilience"
)

// EventKind tags events delivered to the session handler
type EventKind string

const (
	EventOpen         EventKind = "open"
	EventAudio        EventKind = "audio"
	EventText         EventKind = "text"
	EventTurnComplete EventKind = "turn_complete"
	EventError        EventKind = "error"
	EventClose        EventKind = "close"
)

// Event is a single occurrence on the realtime session. Open, message,
// error and close all arrive through the same handler so the host reacts
// uniformly.
type Event struct {
	Kind    EventKind
	Audio   []byte
	Text    string
	Message string
}

// Handler receives session events. Called from the client's reader and
// timer goroutines; implementations must be safe for concurrent use.
type Handler func(Event)

// envelope is the JSON wire framing in both directions. Audio payloads are
// base64 strings; the session itself is a black box behind this framing.
type envelope struct {
	Type        string `json:"type"`
	Data        string `json:"data,omitempty"`
	Text        string `json:"text,omitempty"`
	Message     string `json:"message,omitempty"`
	System      string `json:"system,omitempty"`
	InputFormat string `json:"inputFormat,omitempty"`
}

// Options configures a Client
type Options struct {
	URL        string
	APIKey     string
	SilenceGap time.Duration           // Gap after the last audio chunk before audioStreamEnd
	Warmup     time.Duration           // Delay before the synthetic opening instruction
	Retry      *resilience.RetryConfig // Dial retry policy; nil means defaults
	Logger     zerolog.Logger
}

// Client manages one bidirectional streaming session with an external
// speech-to-speech AI interviewer. Microphone audio flows out, spoken AI
// turns flow back through the handler, and end-of-turn is signaled either
// explicitly or after a silence gap with no audio chunks.
type Client struct {
	opts    Options
	handler Handler

	mu           sync.Mutex
	conn         *websocket.Conn
	connected    bool
	silenceTimer *time.Timer
	warmupTimer  *time.Timer

	writeMu sync.Mutex
}

// NewClient builds a disconnected client. The silence gap defaults to one
// second when unset.
func NewClient(opts Options, handler Handler) *Client {
	if opts.SilenceGap <= 0 {
		opts.SilenceGap = time.Second
	}
	if handler == nil {
		handler = func(Event) {}
	}
	return &Client{opts: opts, handler: handler}
}

// Connect opens the session, sends the interviewer briefing, and schedules
// the synthetic opening instruction after the warm-up delay so the AI
// speaks first. Fails if already connected.
func (c *Client) Connect(ctx context.Context, cfg SessionConfig) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return fmt.Errorf("realtime session already connected")
	}
	c.mu.Unlock()

	if c.opts.URL == "" {
		return fmt.Errorf("realtime session is not configured: missing URL")
	}

	header := http.Header{}
	if c.opts.APIKey != "" {
		header.Set("Authorization", "Bearer "+c.opts.APIKey)
	}

	retryCfg := c.opts.Retry
	if retryCfg == nil {
		retryCfg = resilience.DefaultRetryConfig()
	}

	var conn *websocket.Conn
	err := resilience.Retry(func() error {
		dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
		var dialErr error
		conn, _, dialErr = dialer.DialContext(ctx, c.opts.URL, header)
		if dialErr != nil {
			return resilience.NewRetryableError(dialErr)
		}
		return nil
	}, retryCfg, resilience.IsRetryable)
	if err != nil {
		return fmt.Errorf("failed to open realtime session: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.writeJSON(envelope{
		Type:        "session.start",
		System:      BuildSystemPrompt(cfg),
		InputFormat: "audio/pcm;rate=16000",
	}); err != nil {
		c.teardown()
		return fmt.Errorf("failed to start realtime session: %w", err)
	}

	go c.readLoop(conn)

	c.mu.Lock()
	c.warmupTimer = time.AfterFunc(c.opts.Warmup, func() {
		if err := c.SendText(openingInstruction); err != nil {
			c.opts.Logger.Warn().Err(err).Msg("Failed to send opening instruction")
		}
	})
	c.mu.Unlock()

	c.handler(Event{Kind: EventOpen})
	c.opts.Logger.Info().Str("url", c.opts.URL).Msg("Realtime session connected")
	return nil
}

// SendAudio forwards one microphone chunk. Each call re-arms the silence
// timer; only one timer is ever pending, so a quiet gap after the last
// chunk produces exactly one end-of-turn signal.
func (c *Client) SendAudio(chunk []byte) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		c.opts.Logger.Debug().Msg("Dropping audio chunk: realtime session not connected")
		return fmt.Errorf("realtime session not connected")
	}
	if c.silenceTimer != nil {
		c.silenceTimer.Stop()
	}
	c.silenceTimer = time.AfterFunc(c.opts.SilenceGap, c.onSilenceGap)
	c.mu.Unlock()

	observability.RecordAudioBytes("outbound", len(chunk))
	return c.writeJSON(envelope{
		Type: "audio",
		Data: base64.StdEncoding.EncodeToString(chunk),
	})
}

func (c *Client) onSilenceGap() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.silenceTimer = nil
	c.mu.Unlock()

	if err := c.writeJSON(envelope{Type: "audioStreamEnd"}); err != nil {
		c.opts.Logger.Warn().Err(err).Msg("Failed to signal end of turn")
		return
	}
	observability.RecordRealtimeTurnEnd("silence")
}

// SendAudioStreamEnd signals end-of-turn explicitly, independent of the
// silence timer (a host "done speaking" action).
func (c *Client) SendAudioStreamEnd() error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return fmt.Errorf("realtime session not connected")
	}
	if c.silenceTimer != nil {
		c.silenceTimer.Stop()
		c.silenceTimer = nil
	}
	c.mu.Unlock()

	if err := c.writeJSON(envelope{Type: "audioStreamEnd"}); err != nil {
		return err
	}
	observability.RecordRealtimeTurnEnd("explicit")
	return nil
}

// SendText sends a discrete text turn
func (c *Client) SendText(text string) error {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return fmt.Errorf("realtime session not connected")
	}
	c.mu.Unlock()

	return c.writeJSON(envelope{Type: "text", Text: text})
}

// Disconnect cancels any pending silence timer and closes the session.
// Safe to call when not connected, and safe to call more than once.
func (c *Client) Disconnect() {
	if c.teardown() {
		c.handler(Event{Kind: EventClose})
		c.opts.Logger.Info().Msg("Realtime session disconnected")
	}
}

// IsConnected reports whether the session is open
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// teardown closes the connection and cancels timers. Returns false when
// there was nothing to tear down.
func (c *Client) teardown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return false
	}
	c.connected = false
	if c.silenceTimer != nil {
		c.silenceTimer.Stop()
		c.silenceTimer = nil
	}
	if c.warmupTimer != nil {
		c.warmupTimer.Stop()
		c.warmupTimer = nil
	}
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return true
}

func (c *Client) writeJSON(msg envelope) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("realtime session not connected")
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			// A close we initiated is not an error event
			if c.teardown() {
				c.handler(Event{Kind: EventError, Message: err.Error()})
				c.handler(Event{Kind: EventClose})
			}
			return
		}

		var msg envelope
		if err := json.Unmarshal(data, &msg); err != nil {
			c.opts.Logger.Warn().Err(err).Msg("Discarding unparseable session message")
			continue
		}

		switch msg.Type {
		case "audio":
			audio, err := base64.StdEncoding.DecodeString(msg.Data)
			if err != nil {
				c.opts.Logger.Warn().Err(err).Msg("Discarding undecodable audio payload")
				continue
			}
			observability.RecordAudioBytes("inbound", len(audio))
			c.handler(Event{Kind: EventAudio, Audio: audio})
		case "text":
			c.handler(Event{Kind: EventText, Text: msg.Text})
		case "turnComplete":
			c.handler(Event{Kind: EventTurnComplete})
		case "error":
			c.handler(Event{Kind: EventError, Message: msg.Message})
		default:
			c.opts.Logger.Debug().Str("type", msg.Type).Msg("Ignoring unknown session message")
		}
	}
}
