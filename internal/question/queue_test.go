package question

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobcraftai/interview-engine/internal/synth"
)

type stubSynthesizer struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (s *stubSynthesizer) Synthesize(ctx context.Context, text, voice string) (*synth.Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &synth.Clip{
		Audio:      []byte{1, 2, 3, 4},
		SampleRate: 16000,
		Duration:   2 * time.Second,
		Text:       text,
	}, nil
}

func (s *stubSynthesizer) Close() error { return nil }

func (s *stubSynthesizer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func agenda() []Question {
	return []Question{
		{Type: TypeIntroduction, Text: "Tell me about yourself.", Index: 0},
		{Type: TypeTechnical, Text: "What is a goroutine?", Index: 1},
		{Type: TypeBehavioral, Text: "Describe a conflict you resolved.", Index: 2},
	}
}

func TestNewQueue_EmptyAgenda(t *testing.T) {
	if _, err := NewQueue(nil, &stubSynthesizer{}, "voice", 16000, zerolog.Nop()); err == nil {
		t.Fatal("Expected error for empty agenda")
	}
	if _, err := NewQueue([]Question{}, &stubSynthesizer{}, "voice", 16000, zerolog.Nop()); err == nil {
		t.Fatal("Expected error for zero-length agenda")
	}
}

func TestNewQueue_MisorderedAgenda(t *testing.T) {
	questions := agenda()
	questions[1].Index = 5
	if _, err := NewQueue(questions, &stubSynthesizer{}, "voice", 16000, zerolog.Nop()); err == nil {
		t.Fatal("Expected error for misordered indices")
	}
}

func TestQueue_LoadAndCache(t *testing.T) {
	stub := &stubSynthesizer{}
	q, err := NewQueue(agenda(), stub, "voice", 16000, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewQueue() failed: %v", err)
	}

	clip, err := q.Load(context.Background(), 0)
	if err != nil {
		t.Fatalf("Load(0) failed: %v", err)
	}
	if clip.Text != "Tell me about yourself." {
		t.Errorf("Unexpected clip text: %q", clip.Text)
	}
	if clip.Placeholder {
		t.Error("Expected real synthesis, got placeholder")
	}

	// Second load returns the cached entry
	if _, err := q.Load(context.Background(), 0); err != nil {
		t.Fatalf("Second Load(0) failed: %v", err)
	}
	if stub.callCount() != 1 {
		t.Errorf("Expected 1 synthesis call, got %d", stub.callCount())
	}
}

func TestQueue_LoadOutOfRange(t *testing.T) {
	q, err := NewQueue(agenda(), &stubSynthesizer{}, "voice", 16000, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewQueue() failed: %v", err)
	}
	if _, err := q.Load(context.Background(), -1); err == nil {
		t.Error("Expected error for negative index")
	}
	if _, err := q.Load(context.Background(), 3); err == nil {
		t.Error("Expected error for index past the agenda")
	}
}

func TestQueue_SynthesisFailureFallsBackToPlaceholder(t *testing.T) {
	stub := &stubSynthesizer{err: errors.New("upstream unavailable")}
	q, err := NewQueue(agenda(), stub, "voice", 16000, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewQueue() failed: %v", err)
	}

	clip, err := q.Load(context.Background(), 1)
	if err != nil {
		t.Fatalf("Load(1) should not error on synthesis failure: %v", err)
	}
	if !clip.Placeholder {
		t.Fatal("Expected a placeholder clip")
	}
	if clip.Text != "What is a goroutine?" {
		t.Errorf("Placeholder should keep the question text, got %q", clip.Text)
	}
	if want := synth.EstimateDuration(clip.Text); clip.Duration != want {
		t.Errorf("Placeholder duration %v, expected estimate %v", clip.Duration, want)
	}
	if len(clip.Audio) == 0 {
		t.Error("Placeholder should carry timed-silence audio")
	}
}

func TestQueue_Preload(t *testing.T) {
	stub := &stubSynthesizer{}
	q, err := NewQueue(agenda(), stub, "voice", 16000, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewQueue() failed: %v", err)
	}

	select {
	case <-q.Preload(context.Background()):
	case <-time.After(time.Second):
		t.Fatal("Preload did not finish")
	}

	status := q.Status(0)
	if status.Total != 3 || status.Ready != 3 || status.Loading != 0 {
		t.Errorf("Unexpected status after preload: %+v", status)
	}
	for i := 0; i < 3; i++ {
		if _, ok := q.Entry(i); !ok {
			t.Errorf("Expected entry for question %d", i)
		}
	}
}

func TestQueue_PreloadHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q, err := NewQueue(agenda(), &stubSynthesizer{}, "voice", 16000, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewQueue() failed: %v", err)
	}

	select {
	case <-q.Preload(ctx):
	case <-time.After(time.Second):
		t.Fatal("Preload did not return on canceled context")
	}
}

func TestQueue_Accessors(t *testing.T) {
	q, err := NewQueue(agenda(), &stubSynthesizer{}, "voice", 16000, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewQueue() failed: %v", err)
	}

	if q.Len() != 3 {
		t.Errorf("Len() = %d, want 3", q.Len())
	}

	question, ok := q.Question(2)
	if !ok || question.Type != TypeBehavioral {
		t.Errorf("Question(2) = %+v, %v", question, ok)
	}
	if _, ok := q.Question(9); ok {
		t.Error("Question(9) should report not found")
	}
	if _, ok := q.Entry(0); ok {
		t.Error("Entry(0) should be absent before any load")
	}
}

func TestQueue_Destroy(t *testing.T) {
	q, err := NewQueue(agenda(), &stubSynthesizer{}, "voice", 16000, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewQueue() failed: %v", err)
	}
	if _, err := q.Load(context.Background(), 0); err != nil {
		t.Fatalf("Load(0) failed: %v", err)
	}

	q.Destroy()
	if _, ok := q.Entry(0); ok {
		t.Error("Expected entries released after Destroy")
	}
	q.Destroy() // Safe to call again
}
