package realtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jobcraftai/interview-engine/internal/resilience"
)

// sessionServer is a fake realtime endpoint that records inbound messages
type sessionServer struct {
	mu       sync.Mutex
	upgrader websocket.Upgrader
	byType   map[string][]envelope
}

func newSessionServer() *sessionServer {
	return &sessionServer{byType: make(map[string][]envelope)}
}

func (s *sessionServer) handler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		var msg envelope
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		s.mu.Lock()
		s.byType[msg.Type] = append(s.byType[msg.Type], msg)
		s.mu.Unlock()
	}
}

func (s *sessionServer) count(msgType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byType[msgType])
}

func (s *sessionServer) first(msgType string) (envelope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.byType[msgType]
	if len(msgs) == 0 {
		return envelope{}, false
	}
	return msgs[0], true
}

func startSession(t *testing.T, opts Options, handler Handler) (*Client, *sessionServer, func()) {
	t.Helper()
	server := newSessionServer()
	ts := httptest.NewServer(http.HandlerFunc(server.handler))
	opts.URL = "ws" + strings.TrimPrefix(ts.URL, "http")
	opts.Logger = zerolog.Nop()

	client := NewClient(opts, handler)
	cfg := SessionConfig{
		JobTitle:           "Backend Engineer",
		Company:            "Acme",
		JobDescription:     "Build services.",
		TechnicalQuestions: []string{"What is a mutex?"},
	}
	if err := client.Connect(context.Background(), cfg); err != nil {
		ts.Close()
		t.Fatalf("Connect() failed: %v", err)
	}
	return client, server, func() {
		client.Disconnect()
		ts.Close()
	}
}

func waitForCount(t *testing.T, server *sessionServer, msgType string, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if server.count(msgType) >= want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d %q messages, have %d", want, msgType, server.count(msgType))
}

func TestClient_SilenceTimerCoalescing(t *testing.T) {
	client, server, teardown := startSession(t, Options{
		SilenceGap: 80 * time.Millisecond,
		Warmup:     time.Hour, // Keep the opening instruction out of the way
	}, nil)
	defer teardown()

	// Chunks arriving inside the gap keep re-arming the timer: no
	// audioStreamEnd while the stream is active
	for i := 0; i < 5; i++ {
		if err := client.SendAudio([]byte{1, 2, 3}); err != nil {
			t.Fatalf("SendAudio() failed: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if n := server.count("audioStreamEnd"); n != 0 {
		t.Fatalf("Expected no audioStreamEnd during active streaming, got %d", n)
	}

	// A quiet gap after the last chunk triggers exactly one
	waitForCount(t, server, "audioStreamEnd", 1, time.Second)
	time.Sleep(150 * time.Millisecond)
	if n := server.count("audioStreamEnd"); n != 1 {
		t.Fatalf("Expected exactly one audioStreamEnd, got %d", n)
	}
}

func TestClient_ExplicitStreamEndCancelsTimer(t *testing.T) {
	client, server, teardown := startSession(t, Options{
		SilenceGap: 50 * time.Millisecond,
		Warmup:     time.Hour,
	}, nil)
	defer teardown()

	if err := client.SendAudio([]byte{1}); err != nil {
		t.Fatalf("SendAudio() failed: %v", err)
	}
	if err := client.SendAudioStreamEnd(); err != nil {
		t.Fatalf("SendAudioStreamEnd() failed: %v", err)
	}

	// The silence timer was canceled, so no second signal follows
	time.Sleep(120 * time.Millisecond)
	if n := server.count("audioStreamEnd"); n != 1 {
		t.Fatalf("Expected exactly one audioStreamEnd, got %d", n)
	}
}

func TestClient_RejectsSendsWhenDisconnected(t *testing.T) {
	client := NewClient(Options{URL: "ws://127.0.0.1:1", Logger: zerolog.Nop()}, nil)

	if err := client.SendAudio([]byte{1}); err == nil {
		t.Error("Expected SendAudio to be rejected while disconnected")
	}
	if err := client.SendText("hello"); err == nil {
		t.Error("Expected SendText to be rejected while disconnected")
	}
	if err := client.SendAudioStreamEnd(); err == nil {
		t.Error("Expected SendAudioStreamEnd to be rejected while disconnected")
	}
	if client.IsConnected() {
		t.Error("Expected IsConnected() to be false")
	}

	// Disconnect when never connected is safe
	client.Disconnect()
	client.Disconnect()
}

func TestClient_WarmupSendsOpeningInstruction(t *testing.T) {
	var mu sync.Mutex
	var opened bool
	client, server, teardown := startSession(t, Options{
		SilenceGap: time.Second,
		Warmup:     10 * time.Millisecond,
	}, func(e Event) {
		if e.Kind == EventOpen {
			mu.Lock()
			opened = true
			mu.Unlock()
		}
	})
	defer teardown()
	_ = client

	waitForCount(t, server, "text", 1, time.Second)
	msg, _ := server.first("text")
	if msg.Text != openingInstruction {
		t.Errorf("Unexpected opening instruction: %q", msg.Text)
	}

	mu.Lock()
	defer mu.Unlock()
	if !opened {
		t.Error("Expected an open event on connect")
	}
}

func TestClient_SessionStartCarriesPrompt(t *testing.T) {
	_, server, teardown := startSession(t, Options{
		SilenceGap: time.Second,
		Warmup:     time.Hour,
	}, nil)
	defer teardown()

	waitForCount(t, server, "session.start", 1, time.Second)
	msg, _ := server.first("session.start")
	if !strings.Contains(msg.System, "Backend Engineer") || !strings.Contains(msg.System, "Acme") {
		t.Error("Expected the system prompt to embed the job title and company")
	}
	if !strings.Contains(msg.System, `"What is a mutex?"`) {
		t.Error("Expected questions quoted verbatim in the prompt")
	}
	if msg.InputFormat != "audio/pcm;rate=16000" {
		t.Errorf("Unexpected input format: %q", msg.InputFormat)
	}
}

func TestClient_DialHonorsRetryPolicy(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	server := newSessionServer()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		// The first handshake is refused; the retry succeeds
		if n == 1 {
			http.Error(w, "not yet", http.StatusServiceUnavailable)
			return
		}
		server.handler(w, r)
	}))
	defer ts.Close()

	client := NewClient(Options{
		URL:    "ws" + strings.TrimPrefix(ts.URL, "http"),
		Warmup: time.Hour,
		Retry: &resilience.RetryConfig{
			MaxAttempts:       3,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        10 * time.Millisecond,
			BackoffMultiplier: 2.0,
		},
		Logger: zerolog.Nop(),
	}, nil)
	if err := client.Connect(context.Background(), SessionConfig{}); err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	defer client.Disconnect()

	mu.Lock()
	n := attempts
	mu.Unlock()
	if n != 2 {
		t.Errorf("Expected 2 dial attempts, got %d", n)
	}
}

func TestClient_DialFailsFastWithSingleAttempt(t *testing.T) {
	var mu sync.Mutex
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		attempts++
		mu.Unlock()
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	client := NewClient(Options{
		URL: "ws" + strings.TrimPrefix(ts.URL, "http"),
		Retry: &resilience.RetryConfig{
			MaxAttempts:       1,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        time.Millisecond,
			BackoffMultiplier: 1.0,
		},
		Logger: zerolog.Nop(),
	}, nil)
	if err := client.Connect(context.Background(), SessionConfig{}); err == nil {
		t.Fatal("Expected Connect() to fail")
	}

	mu.Lock()
	defer mu.Unlock()
	if attempts != 1 {
		t.Errorf("Expected exactly 1 dial attempt, got %d", attempts)
	}
}

func TestClient_ConnectTwiceFails(t *testing.T) {
	client, _, teardown := startSession(t, Options{
		SilenceGap: time.Second,
		Warmup:     time.Hour,
	}, nil)
	defer teardown()

	if err := client.Connect(context.Background(), SessionConfig{}); err == nil {
		t.Error("Expected second Connect() to fail while connected")
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	prompt := BuildSystemPrompt(SessionConfig{
		JobTitle:            "SRE",
		Company:             "Globex",
		JobDescription:      "Keep the lights on.",
		Resume:              "Ten years of on-call.",
		TechnicalQuestions:  []string{"Explain CAP."},
		BehavioralQuestions: []string{"Describe an outage you led."},
	})

	for _, want := range []string{
		"SRE", "Globex", "Keep the lights on.", "Ten years of on-call.",
		`[technical 1] "Explain CAP."`,
		`[behavioral 1] "Describe an outage you led."`,
		"one question at a time",
		"complete sentences",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Prompt missing %q", want)
		}
	}

	withoutResume := BuildSystemPrompt(SessionConfig{JobTitle: "SRE", Company: "Globex"})
	if strings.Contains(withoutResume, "CANDIDATE RESUME") {
		t.Error("Prompt should omit the resume section when no resume is supplied")
	}
}
