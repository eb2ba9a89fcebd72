package gateway

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jobcraftai/interview-engine/internal/config"
	"github.com/jobcraftai/interview-engine/internal/question"
)

func testConfig() *config.Config {
	return &config.Config{
		ResponseDelayMs:       0,
		ListeningStartDelayMs: 0,
		MaxResponseTimeMs:     100,
		PreparingNextDelayMs:  0,
		SilenceThreshold:      0.01,
		SilenceWindowMs:       50,
		VolumeFrameIntervalMs: 5,
		TTSSampleRate:         16000,
		AudioBufferSize:       8192,
	}
}

func dialSession(t *testing.T) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(HandleInterviewWS(testConfig()))
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		server.Close()
		t.Fatalf("Dial failed: %v", err)
	}
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

// readUntil reads events until one of the given type arrives
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) serverMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Read failed waiting for %q: %v", msgType, err)
		}
		if msg.Type == msgType {
			return msg
		}
	}
}

func TestHandlers_RejectNonWebSocketRequest(t *testing.T) {
	for name, handler := range map[string]http.HandlerFunc{
		"interview": HandleInterviewWS(testConfig()),
		"live":      HandleLiveWS(testConfig()),
	} {
		server := httptest.NewServer(handler)
		resp, err := http.Get(server.URL)
		if err != nil {
			server.Close()
			t.Fatalf("%s: GET failed: %v", name, err)
		}
		resp.Body.Close()
		server.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s: expected 400 for a plain HTTP request, got %d", name, resp.StatusCode)
		}
	}
}

func TestSession_InitReportsReady(t *testing.T) {
	conn, teardown := dialSession(t)
	defer teardown()

	err := conn.WriteJSON(clientMessage{
		Type: "init",
		Questions: []question.Question{
			{Type: question.TypeIntroduction, Text: "Hello, are you ready?", Index: 0},
			{Type: question.TypeClosing, Text: "Thanks for your time.", Index: 1},
		},
	})
	if err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	// Initialization walks through its loading states before settling
	var ready serverMessage
	states := 0
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for ready.Type != "ready" {
		var msg serverMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Read failed waiting for ready: %v", err)
		}
		if msg.Type == "state" {
			states++
		}
		if msg.Type == "ready" {
			ready = msg
		}
	}

	if states == 0 {
		t.Error("Expected state events during initialization")
	}
	if ready.Queue == nil || ready.Queue.Total != 2 {
		t.Fatalf("Unexpected queue status: %+v", ready.Queue)
	}
	if !strings.Contains(ready.Personality, "/") {
		t.Errorf("Expected voice/tone personality, got %q", ready.Personality)
	}
}

func TestSession_EmptyAgendaReportsError(t *testing.T) {
	conn, teardown := dialSession(t)
	defer teardown()

	if err := conn.WriteJSON(clientMessage{Type: "init"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	msg := readUntil(t, conn, "error")
	if msg.Message == "" {
		t.Error("Expected a descriptive error message")
	}
}

func TestSession_StartBeforeInitReportsError(t *testing.T) {
	conn, teardown := dialSession(t)
	defer teardown()

	if err := conn.WriteJSON(clientMessage{Type: "start"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	msg := readUntil(t, conn, "error")
	if msg.Message == "" {
		t.Error("Expected an invalid-state error message")
	}
}

func TestWSCapture_PushAndStop(t *testing.T) {
	capture := newWSCapture()
	chunks, err := capture.Start(context.Background())
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	capture.push([]byte{1, 2, 3})
	select {
	case chunk := <-chunks:
		if len(chunk) != 3 {
			t.Errorf("Unexpected chunk length %d", len(chunk))
		}
	case <-time.After(time.Second):
		t.Fatal("Chunk not delivered")
	}

	if err := capture.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if _, open := <-chunks; open {
		t.Error("Expected channel closed after Stop")
	}

	// Push after stop is ignored, stop twice is safe
	capture.push([]byte{4})
	if err := capture.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
}

func TestWSCapture_DropsWhenFull(t *testing.T) {
	capture := newWSCapture()
	if _, err := capture.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer capture.Stop()

	// Filling well past the channel capacity must not block
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			capture.push([]byte{byte(i)})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("push blocked on a full channel")
	}
}

func TestWSAnalysis_Observe(t *testing.T) {
	analysis := &wsAnalysis{}
	if len(analysis.FrequencyData()) != 0 {
		t.Error("Expected no data before any frame")
	}

	// A loud 16-bit sample maps to a high amplitude byte
	loud := []byte{0xFF, 0x7F, 0xFF, 0x7F} // Two samples of 32767
	analysis.observe(loud)
	bins := analysis.FrequencyData()
	if len(bins) != 2 {
		t.Fatalf("Expected 2 bins, got %d", len(bins))
	}
	for _, b := range bins {
		if b < 250 {
			t.Errorf("Expected near-max amplitude, got %d", b)
		}
	}

	// Silence maps to zero
	analysis.observe([]byte{0, 0, 0, 0})
	for _, b := range analysis.FrequencyData() {
		if b != 0 {
			t.Errorf("Expected zero amplitude for silence, got %d", b)
		}
	}

	// The most negative 16-bit sample has no positive counterpart; it must
	// still map to maximum amplitude rather than wrapping
	analysis.observe([]byte{0x00, 0x80}) // One sample of -32768
	bins = analysis.FrequencyData()
	if len(bins) != 1 {
		t.Fatalf("Expected 1 bin, got %d", len(bins))
	}
	if bins[0] != 255 {
		t.Errorf("Expected amplitude 255 for -32768, got %d", bins[0])
	}
}

func TestSession_MediaPayloadRoundTrip(t *testing.T) {
	conn, teardown := dialSession(t)
	defer teardown()

	payload := base64.StdEncoding.EncodeToString([]byte{0x00, 0x10, 0x00, 0x20})
	if err := conn.WriteJSON(clientMessage{Type: "media", Payload: payload}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	// Malformed base64 is logged and dropped, not fatal to the session
	if err := conn.WriteJSON(clientMessage{Type: "media", Payload: "!!!not-base64!!!"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	// The session is still serving commands afterwards
	if err := conn.WriteJSON(clientMessage{Type: "start"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	if msg := readUntil(t, conn, "error"); msg.Message == "" {
		t.Error("Expected an invalid-state error message")
	}
}
