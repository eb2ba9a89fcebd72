package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jobcraftai/interview-engine/internal/config"
	"github.com/jobcraftai/interview-engine/internal/conversation"
	"github.com/jobcraftai/interview-engine/internal/observability"
	"github.com/jobcraftai/interview-engine/internal/question"
	"github.com/jobcraftai/interview-engine/internal/synth"
	"github.com/jobcraftai/interview-engine/internal/transcription"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// In production, validate against the host app's origins
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// clientMessage is a command from the host UI
type clientMessage struct {
	Type      string              `json:"type"`
	Questions []question.Question `json:"questions,omitempty"`
	Payload   string              `json:"payload,omitempty"` // Base64 encoded PCM for media
}

// serverMessage is an event pushed to the host UI
type serverMessage struct {
	Type        string             `json:"type"`
	State       string             `json:"state,omitempty"`
	Index       *int               `json:"index,omitempty"`
	Total       int                `json:"total,omitempty"`
	Question    *question.Question `json:"question,omitempty"`
	Current     float64            `json:"current,omitempty"`
	Duration    float64            `json:"duration,omitempty"`
	Level       float64            `json:"level,omitempty"`
	Text        string             `json:"text,omitempty"`
	Message     string             `json:"message,omitempty"`
	Personality string             `json:"personality,omitempty"`
	Queue       *question.Status   `json:"queue,omitempty"`
}

// wsCapture adapts media frames from the host WebSocket into the engine's
// microphone capture interface. The host owns the real microphone; frames
// arrive base64-encoded over the socket.
type wsCapture struct {
	mu     sync.Mutex
	chunks chan []byte
	open   bool
}

func newWSCapture() *wsCapture {
	return &wsCapture{chunks: make(chan []byte, 100)}
}

func (c *wsCapture) Start(ctx context.Context) (<-chan []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = true
	return c.chunks, nil
}

func (c *wsCapture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		c.open = false
		close(c.chunks)
	}
	return nil
}

// push queues a media frame without blocking the read loop
func (c *wsCapture) push(chunk []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return
	}
	select {
	case c.chunks <- chunk:
	default:
		// Drop rather than stall the socket when the engine lags
	}
}

// wsAnalysis derives a frequency-style sample buffer from the most recent
// media frame so volume monitoring works without a host-side analyser.
type wsAnalysis struct {
	mu   sync.Mutex
	bins []byte
}

func (a *wsAnalysis) FrequencyData() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]byte, len(a.bins))
	copy(out, a.bins)
	return out
}

// observe folds a PCM chunk into amplitude bins. 16-bit little-endian
// samples are mapped to their absolute magnitude's high byte.
func (a *wsAnalysis) observe(chunk []byte) {
	const maxBins = 64
	bins := make([]byte, 0, maxBins)
	for i := 0; i+1 < len(chunk) && len(bins) < maxBins; i += 2 {
		// Widened before negation so -32768 does not overflow int16
		sample := int32(int16(uint16(chunk[i]) | uint16(chunk[i+1])<<8))
		if sample < 0 {
			sample = -sample
		}
		magnitude := sample >> 7
		if magnitude > 255 {
			magnitude = 255
		}
		bins = append(bins, byte(magnitude))
	}
	a.mu.Lock()
	a.bins = bins
	a.mu.Unlock()
}

// Session binds one host UI WebSocket to one interview engine instance
type Session struct {
	conn     *websocket.Conn
	capture  *wsCapture
	analysis *wsAnalysis
	manager  *conversation.Manager

	sessionID string
	logger    zerolog.Logger
	metrics   *observability.Metrics

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

// NewSession wires the engine's dependencies for one connection
func NewSession(conn *websocket.Conn, cfg *config.Config) *Session {
	sessionID := observability.NewSessionID()
	logger := observability.WithSessionID(sessionID)
	metrics := observability.NewSessionMetrics(sessionID)

	s := &Session{
		conn:      conn,
		capture:   newWSCapture(),
		analysis:  &wsAnalysis{},
		sessionID: sessionID,
		logger:    logger,
		metrics:   metrics,
		done:      make(chan struct{}),
	}

	var transcriber transcription.Transcriber
	if cfg.DeepgramAPIKey != "" {
		transcriber = transcription.NewDeepgramTranscriber(cfg, logger)
	}

	s.manager = conversation.NewManager(conversation.Dependencies{
		Synthesizer: synth.NewHTTPClient(cfg),
		Capture:     s.capture,
		Analysis:    s.analysis,
		Transcriber: transcriber,
		Metrics:     metrics,
		Logger:      logger,
		Rand:        rand.New(rand.NewSource(time.Now().UnixNano())),
		SampleRate:  cfg.TTSSampleRate,
		BufferSize:  cfg.AudioBufferSize,
	}, conversation.ParamsFromConfig(cfg), conversation.Callbacks{
		OnStateChange: func(state conversation.State) {
			s.send(serverMessage{Type: "state", State: string(state)})
		},
		OnQuestionChange: func(index, total int) {
			msg := serverMessage{Type: "question", Index: &index, Total: total}
			if q, ok := s.manager.Question(index); ok {
				msg.Question = &q
			}
			s.send(msg)
		},
		OnAudioProgress: func(current, duration float64) {
			s.send(serverMessage{Type: "audio_progress", Current: current, Duration: duration})
		},
		OnVolumeChange: func(level float64) {
			s.send(serverMessage{Type: "volume", Level: level})
		},
		OnTranscript: func(index int, text string) {
			s.send(serverMessage{Type: "transcript", Index: &index, Text: text})
		},
		OnError: func(message string) {
			s.send(serverMessage{Type: "error", Message: message})
		},
		OnComplete: func() {
			s.send(serverMessage{Type: "complete"})
			s.finish()
		},
	})

	return s
}

// HandleInterviewWS is the entry point for host UI connections
func HandleInterviewWS(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger := observability.GetLogger()
			logger.Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		defer conn.Close()

		session := NewSession(conn, cfg)
		session.logger.Info().Msg("Interview session connected")

		go session.readLoop()

		<-session.done
		session.manager.Destroy()
		session.logger.Info().Msg("Interview session ended")
	}
}

func (s *Session) readLoop() {
	defer s.finish()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Error().Err(err).Msg("Failed to parse client message")
			continue
		}

		switch msg.Type {
		case "init":
			s.handleInit(msg.Questions)

		case "start":
			if err := s.manager.StartConversation(); err != nil {
				s.send(serverMessage{Type: "error", Message: err.Error()})
			}

		case "pause":
			s.manager.Pause()

		case "resume":
			s.manager.Resume()

		case "skip":
			s.manager.SkipQuestion()

		case "media":
			s.handleMedia(msg.Payload)

		case "stop":
			s.logger.Info().Msg("Host requested stop")
			return

		default:
			s.logger.Debug().Str("type", msg.Type).Msg("Unknown client message type")
		}
	}
}

func (s *Session) handleInit(questions []question.Question) {
	if err := s.manager.Initialize(questions); err != nil {
		// Initialize already routed the failure through OnError
		s.logger.Warn().Err(err).Msg("Initialization failed")
		return
	}

	personality := s.manager.GetPersonality()
	status := s.manager.GetQueueStatus()
	s.send(serverMessage{
		Type:        "ready",
		Personality: string(personality.Voice) + "/" + string(personality.Tone),
		Queue:       &status,
	})
}

func (s *Session) handleMedia(payload string) {
	if payload == "" {
		return
	}
	chunk, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to decode media payload")
		return
	}
	s.analysis.observe(chunk)
	s.capture.push(chunk)
}

func (s *Session) send(msg serverMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		s.logger.Debug().Err(err).Str("type", msg.Type).Msg("Failed to push event")
	}
}

func (s *Session) finish() {
	s.closeOnce.Do(func() { close(s.done) })
}
