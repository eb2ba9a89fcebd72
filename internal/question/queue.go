package question

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jobcraftai/interview-engine/internal/observability"
	"github.com/jobcraftai/interview-engine/internal/synth"
)

// Queue holds the ordered interview agenda and the preloaded audio per
// question. Loading proceeds incrementally: callers are never blocked on the
// full set, and a failed synthesis for one question falls back to a
// timed-silence placeholder without aborting the rest.
type Queue struct {
	mu        sync.RWMutex
	questions []Question
	entries   map[int]*synth.Clip
	loading   map[int]bool

	synthesizer synth.Synthesizer
	voice       string
	sampleRate  int
	logger      zerolog.Logger
}

// NewQueue builds a queue from a non-empty ordered agenda
func NewQueue(questions []Question, synthesizer synth.Synthesizer, voice string, sampleRate int, logger zerolog.Logger) (*Queue, error) {
	if len(questions) == 0 {
		return nil, fmt.Errorf("interview agenda is empty: at least one question is required")
	}
	for i, q := range questions {
		if q.Index != i {
			return nil, fmt.Errorf("question at position %d has index %d: agenda must be ordered", i, q.Index)
		}
	}

	return &Queue{
		questions:   questions,
		entries:     make(map[int]*synth.Clip),
		loading:     make(map[int]bool),
		synthesizer: synthesizer,
		voice:       voice,
		sampleRate:  sampleRate,
		logger:      logger,
	}, nil
}

// Load ensures audio exists for the question at index and returns it.
// Synthesis failure is recovered locally with a placeholder clip; Load only
// errors on an out-of-range index.
func (q *Queue) Load(ctx context.Context, index int) (*synth.Clip, error) {
	q.mu.Lock()
	if index < 0 || index >= len(q.questions) {
		q.mu.Unlock()
		return nil, fmt.Errorf("question index %d out of range [0,%d)", index, len(q.questions))
	}
	if clip, ok := q.entries[index]; ok {
		q.mu.Unlock()
		return clip, nil
	}
	q.loading[index] = true
	text := q.questions[index].Text
	q.mu.Unlock()

	clip := q.synthesize(ctx, index, text)

	q.mu.Lock()
	// A concurrent Load may have won; keep the first entry so a clip is
	// never replaced mid-session.
	if existing, ok := q.entries[index]; ok {
		clip = existing
	} else {
		q.entries[index] = clip
	}
	delete(q.loading, index)
	q.mu.Unlock()

	return clip, nil
}

func (q *Queue) synthesize(ctx context.Context, index int, text string) *synth.Clip {
	if q.synthesizer != nil {
		clip, err := q.synthesizer.Synthesize(ctx, text, q.voice)
		if err == nil {
			observability.RecordSynthesisResult("success")
			return clip
		}
		// Reduced fidelity, not a user-facing error: the question still
		// plays as timed silence with its text retained for display.
		q.logger.Warn().
			Err(err).
			Int("question_index", index).
			Msg("Synthesis failed, using timed-silence placeholder")
	}
	observability.RecordSynthesisResult("fallback")
	return synth.PlaceholderClip(text, q.sampleRate)
}

// Preload loads every question's audio in the background, in agenda order.
// The returned channel closes when the pass is complete.
func (q *Queue) Preload(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := range q.questions {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if _, err := q.Load(ctx, i); err != nil {
				return
			}
		}
	}()
	return done
}

// Question returns the agenda item at index
func (q *Queue) Question(index int) (Question, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if index < 0 || index >= len(q.questions) {
		return Question{}, false
	}
	return q.questions[index], true
}

// Entry returns the preloaded clip for index, if any
func (q *Queue) Entry(index int) (*synth.Clip, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	clip, ok := q.entries[index]
	return clip, ok
}

// Len returns the agenda length
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.questions)
}

// Status derives readiness counts for the given current index
func (q *Queue) Status(current int) Status {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return Status{
		Total:   len(q.questions),
		Ready:   len(q.entries),
		Loading: len(q.loading),
		Current: current,
	}
}

// Destroy releases all audio entries. Safe to call multiple times.
func (q *Queue) Destroy() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = make(map[int]*synth.Clip)
	q.loading = make(map[int]bool)
}
