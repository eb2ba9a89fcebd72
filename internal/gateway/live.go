package gateway

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jobcraftai/interview-engine/internal/config"
	"github.com/jobcraftai/interview-engine/internal/observability"
	"github.com/jobcraftai/interview-engine/internal/realtime"
	"github.com/jobcraftai/interview-engine/internal/resilience"
)

// liveClientMessage is a command from the host UI in live mode
type liveClientMessage struct {
	Type           string   `json:"type"`
	JobTitle       string   `json:"jobTitle,omitempty"`
	Company        string   `json:"company,omitempty"`
	JobDescription string   `json:"jobDescription,omitempty"`
	Resume         string   `json:"resume,omitempty"`
	Technical      []string `json:"technical,omitempty"`
	Behavioral     []string `json:"behavioral,omitempty"`
	Payload        string   `json:"payload,omitempty"` // Base64 encoded PCM for media
	Text           string   `json:"text,omitempty"`
}

// liveServerMessage is an event pushed to the host UI in live mode
type liveServerMessage struct {
	Type    string `json:"type"`
	Payload string `json:"payload,omitempty"` // Base64 encoded PCM for audio
	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`
}

// LiveSession proxies one host UI WebSocket onto a realtime AI-interviewer
// session: microphone frames flow out, spoken AI turns flow back, and the
// client's silence timer hands turns to the AI when the candidate stops
// talking.
type LiveSession struct {
	conn   *websocket.Conn
	client *realtime.Client
	logger zerolog.Logger

	writeMu sync.Mutex
}

// HandleLiveWS is the entry point for live (non-scripted) interview mode
func HandleLiveWS(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger := observability.GetLogger()
			logger.Error().Err(err).Msg("WebSocket upgrade failed")
			return
		}
		defer conn.Close()

		sessionID := observability.NewSessionID()
		s := &LiveSession{
			conn:   conn,
			logger: observability.WithSessionID(sessionID),
		}
		retryCfg := resilience.DefaultRetryConfig()
		retryCfg.MaxAttempts = cfg.RetryMaxAttempts
		retryCfg.InitialBackoff = time.Duration(cfg.RetryInitialBackoff) * time.Millisecond

		s.client = realtime.NewClient(realtime.Options{
			URL:        cfg.RealtimeURL,
			APIKey:     cfg.RealtimeAPIKey,
			SilenceGap: time.Duration(cfg.RealtimeSilenceGapMs) * time.Millisecond,
			Warmup:     time.Duration(cfg.RealtimeWarmupMs) * time.Millisecond,
			Retry:      retryCfg,
			Logger:     s.logger,
		}, s.handleEvent)

		s.logger.Info().Msg("Live session connected")
		s.readLoop(r)
		s.client.Disconnect()
		s.logger.Info().Msg("Live session ended")
	}
}

func (s *LiveSession) readLoop(r *http.Request) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		var msg liveClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Error().Err(err).Msg("Failed to parse client message")
			continue
		}

		switch msg.Type {
		case "connect":
			cfg := realtime.SessionConfig{
				JobTitle:            msg.JobTitle,
				Company:             msg.Company,
				JobDescription:      msg.JobDescription,
				Resume:              msg.Resume,
				TechnicalQuestions:  msg.Technical,
				BehavioralQuestions: msg.Behavioral,
			}
			if err := s.client.Connect(r.Context(), cfg); err != nil {
				s.push(liveServerMessage{Type: "error", Message: err.Error()})
			}

		case "media":
			chunk, err := base64.StdEncoding.DecodeString(msg.Payload)
			if err != nil {
				s.logger.Warn().Err(err).Msg("Failed to decode media payload")
				continue
			}
			if err := s.client.SendAudio(chunk); err != nil {
				s.push(liveServerMessage{Type: "error", Message: err.Error()})
			}

		case "endTurn":
			if err := s.client.SendAudioStreamEnd(); err != nil {
				s.push(liveServerMessage{Type: "error", Message: err.Error()})
			}

		case "text":
			if err := s.client.SendText(msg.Text); err != nil {
				s.push(liveServerMessage{Type: "error", Message: err.Error()})
			}

		case "disconnect":
			s.client.Disconnect()
			return

		default:
			s.logger.Debug().Str("type", msg.Type).Msg("Unknown client message type")
		}
	}
}

// handleEvent forwards realtime session events to the host UI
func (s *LiveSession) handleEvent(e realtime.Event) {
	switch e.Kind {
	case realtime.EventOpen:
		s.push(liveServerMessage{Type: "open"})
	case realtime.EventAudio:
		s.push(liveServerMessage{Type: "audio", Payload: base64.StdEncoding.EncodeToString(e.Audio)})
	case realtime.EventText:
		s.push(liveServerMessage{Type: "text", Text: e.Text})
	case realtime.EventTurnComplete:
		s.push(liveServerMessage{Type: "turn_complete"})
	case realtime.EventError:
		s.push(liveServerMessage{Type: "error", Message: e.Message})
	case realtime.EventClose:
		s.push(liveServerMessage{Type: "close"})
	}
}

func (s *LiveSession) push(msg liveServerMessage) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteJSON(msg); err != nil {
		s.logger.Debug().Err(err).Str("type", msg.Type).Msg("Failed to push event")
	}
}
