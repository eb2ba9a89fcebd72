package conversation

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jobcraftai/interview-engine/internal/audio"
	"github.com/jobcraftai/interview-engine/internal/observability"
	"github.com/jobcraftai/interview-engine/internal/question"
	"github.com/jobcraftai/interview-engine/internal/synth"
	"github.com/jobcraftai/interview-engine/internal/transcription"
)

// Callbacks is the host-registered event surface. All fields are optional.
// After Destroy no callback fires, even for work scheduled before teardown.
type Callbacks struct {
	OnStateChange    func(state State)
	OnQuestionChange func(index, total int)
	OnAudioProgress  func(currentSeconds, durationSeconds float64)
	OnError          func(message string)
	OnComplete       func()
	OnVolumeChange   func(level float64)
	OnTranscript     func(index int, text string)
}

// Dependencies are the injected capabilities the manager drives. Synthesizer,
// Analysis and Transcriber may be nil; the session degrades rather than
// fails when they are absent.
type Dependencies struct {
	Synthesizer synth.Synthesizer
	Capture     audio.Capture
	Analysis    audio.AnalysisSource
	Transcriber transcription.Transcriber
	Metrics     *observability.Metrics
	Logger      zerolog.Logger
	Rand        *rand.Rand
	SampleRate  int
	BufferSize  int
}

// Manager drives one interview session from agenda to completion: play the
// current question, listen for the response, detect end-of-turn by silence
// or timeout, advance, and terminate. It owns the microphone, the playback
// clock and the volume loop for the session, and funnels every internal
// failure through OnError instead of letting it escape.
type Manager struct {
	params    Params
	callbacks Callbacks
	logger    zerolog.Logger
	metrics   *observability.Metrics

	synthesizer synth.Synthesizer
	analysis    audio.AnalysisSource
	transcriber transcription.Transcriber
	recorder    *audio.Recorder
	sampleRate  int

	ctx       context.Context
	cancelCtx context.CancelFunc

	mu          sync.Mutex
	state       State
	pausedFrom  State
	destroyed   bool
	gen         int // Bumped on pause/destroy/error to invalidate pending timers
	rng         *rand.Rand
	personality Personality
	queue       *question.Queue
	current     int
	total       int
	answers     map[int]string
	sessionLive bool

	clock   *audio.PlaybackClock
	monitor *audio.VolumeMonitor

	speechSeen   bool
	silenceSince time.Time

	startListenTimer *time.Timer
	maxResponseTimer *time.Timer
	advanceTimer     *time.Timer
	nextTimer        *time.Timer
}

// NewManager creates a manager over the injected capabilities
func NewManager(deps Dependencies, params Params, callbacks Callbacks) *Manager {
	if deps.SampleRate <= 0 {
		deps.SampleRate = 16000
	}
	if deps.BufferSize <= 0 {
		deps.BufferSize = 8192
	}
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Manager{
		params:      params,
		callbacks:   callbacks,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		synthesizer: deps.Synthesizer,
		analysis:    deps.Analysis,
		transcriber: deps.Transcriber,
		recorder:    audio.NewRecorder(deps.Capture, deps.BufferSize, deps.Logger),
		sampleRate:  deps.SampleRate,
		ctx:         ctx,
		cancelCtx:   cancel,
		state:       StateInitializing,
		rng:         rng,
		answers:     make(map[int]string),
	}

	// Captured audio only flows while the recorder is unpaused, which the
	// manager confines to the listening phase.
	m.recorder.SetSink(func(chunk []byte) {
		if m.metrics != nil {
			m.metrics.RecordAudioBytes("in", int64(len(chunk)))
		}
		if m.transcriber != nil {
			if err := m.transcriber.SendAudio(chunk); err != nil {
				m.logger.Debug().Err(err).Msg("Transcriber rejected audio chunk")
			}
		}
	})

	return m
}

// Initialize accepts a non-empty ordered agenda, assigns the session
// personality and starts preloading audio. Failures transition to error and
// are reported through OnError; the returned error mirrors that report for
// Go callers.
func (m *Manager) Initialize(questions []question.Question) error {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return fmt.Errorf("manager is destroyed")
	}
	m.state = StateAssigningPersonality
	m.personality = assignPersonality(m.rng)
	voice := m.personality.VoiceID()
	cbState := m.callbacks.OnStateChange
	m.mu.Unlock()

	if cbState != nil {
		cbState(StateAssigningPersonality)
	}

	queue, err := question.NewQueue(questions, m.synthesizer, voice, m.sampleRate, m.logger)
	if err != nil {
		m.failSession("initialization", err)
		return err
	}

	m.setState(StateLoadingIntro)
	if _, err := queue.Load(m.ctx, 0); err != nil {
		m.failSession("initialization", err)
		return err
	}

	m.setState(StatePreloadingQuestions)
	queue.Preload(m.ctx)

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		queue.Destroy()
		return fmt.Errorf("manager is destroyed")
	}
	m.queue = queue
	m.total = queue.Len()
	m.mu.Unlock()

	m.setState(StateReadyForQuestion)

	m.logger.Info().
		Int("questions", len(questions)).
		Str("voice", string(m.personality.Voice)).
		Str("tone", string(m.personality.Tone)).
		Msg("Interview session initialized")
	return nil
}

// StartConversation acquires the microphone and begins playback of question
// index 0. Valid only from ready_for_question. Microphone failures surface
// through OnError and move the session to error.
func (m *Manager) StartConversation() error {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return fmt.Errorf("manager is destroyed")
	}
	if m.state != StateReadyForQuestion {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("cannot start conversation in state %q", state)
	}
	gen := m.gen
	m.sessionLive = true
	m.mu.Unlock()

	if err := m.recorder.Start(m.ctx); err != nil {
		m.failSession("microphone", err)
		return err
	}
	// Keep the device but discard audio until the first listening phase
	m.recorder.Pause()

	if m.metrics != nil {
		m.metrics.RecordSessionStart()
	}

	if m.transcriber != nil {
		if err := m.transcriber.Start(); err != nil {
			// Reduced fidelity only: the interview proceeds untranscribed
			m.logger.Warn().Err(err).Msg("Answer transcription unavailable")
		} else {
			go m.pumpTranscripts()
		}
	}

	m.playQuestion(gen, 0)
	return nil
}

// Pause freezes playback and suspends recording without discarding queue
// state. Pausing when already paused, or outside an active turn, is a no-op.
func (m *Manager) Pause() {
	m.mu.Lock()
	if m.destroyed || !m.state.inTurn() {
		m.mu.Unlock()
		return
	}
	m.pausedFrom = m.state
	m.state = StatePaused
	m.gen++
	m.cancelTimersLocked()
	clock := m.clock
	monitor := m.monitor
	m.monitor = nil
	cbState := m.callbacks.OnStateChange
	m.mu.Unlock()

	if clock != nil {
		clock.Pause()
	}
	if monitor != nil {
		// Stop asynchronously: Pause may be invoked from a callback on the
		// monitor's own sampling goroutine
		go monitor.Stop()
	}
	m.recorder.Pause()

	if cbState != nil {
		cbState(StatePaused)
	}
}

// Resume continues from the same question index and re-enters
// playing_question. Resuming when not paused is a no-op.
func (m *Manager) Resume() {
	m.mu.Lock()
	if m.destroyed || m.state != StatePaused {
		m.mu.Unlock()
		return
	}
	gen := m.gen
	index := m.current

	if m.pausedFrom == StatePlayingQuestion && m.clock != nil && !m.clock.Ended() {
		// The question was audibly playing: continue from the frozen position
		m.state = StatePlayingQuestion
		clock := m.clock
		cbState := m.callbacks.OnStateChange
		m.mu.Unlock()

		if cbState != nil {
			cbState(StatePlayingQuestion)
		}
		clock.Play()
		return
	}
	m.mu.Unlock()

	// Any other phase replays the current question from the start
	m.playQuestion(gen, index)
}

// SkipQuestion forces immediate end-of-turn processing, as if silence had
// been detected. Only meaningful while listening; a no-op otherwise.
func (m *Manager) SkipQuestion() {
	m.mu.Lock()
	if m.destroyed || m.state != StateListeningForResponse {
		m.mu.Unlock()
		return
	}
	gen := m.gen
	m.mu.Unlock()

	m.endOfTurn(gen, "skip")
}

// Destroy tears down all audio handles, recording and pending timers. Safe
// to call multiple times and from any state; afterwards no callbacks fire.
func (m *Manager) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.gen++
	m.cancelTimersLocked()
	clock := m.clock
	m.clock = nil
	monitor := m.monitor
	m.monitor = nil
	queue := m.queue
	live := m.sessionLive
	m.sessionLive = false
	m.mu.Unlock()

	if clock != nil {
		clock.Stop()
	}
	if monitor != nil {
		monitor.Stop()
	}
	if err := m.recorder.Stop(); err != nil {
		m.logger.Debug().Err(err).Msg("Recorder stop during destroy")
	}
	if m.transcriber != nil {
		if err := m.transcriber.Close(); err != nil {
			m.logger.Debug().Err(err).Msg("Transcriber close during destroy")
		}
	}
	if queue != nil {
		queue.Destroy()
	}
	m.cancelCtx()

	if live && m.metrics != nil {
		m.metrics.RecordSessionEnd()
	}
	m.logger.Info().Msg("Interview session destroyed")
}

// GetPersonality returns the session personality. Pure read accessor.
func (m *Manager) GetPersonality() Personality {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.personality
}

// GetQueueStatus derives queue readiness counts. Pure read accessor.
func (m *Manager) GetQueueStatus() question.Status {
	m.mu.Lock()
	queue := m.queue
	current := m.current
	m.mu.Unlock()

	if queue == nil {
		return question.Status{}
	}
	return queue.Status(current)
}

// Question returns the agenda item at index, if the agenda is loaded
func (m *Manager) Question(index int) (question.Question, bool) {
	m.mu.Lock()
	queue := m.queue
	m.mu.Unlock()

	if queue == nil {
		return question.Question{}, false
	}
	return queue.Question(index)
}

// State returns the current conversation state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// AnswerTranscript returns the accumulated transcript for a question, if
// answer transcription is enabled.
func (m *Manager) AnswerTranscript(index int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answers[index]
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	if m.destroyed || m.state == s {
		m.mu.Unlock()
		return
	}
	m.state = s
	cb := m.callbacks.OnStateChange
	m.mu.Unlock()

	if cb != nil {
		cb(s)
	}
}

// --- Turn cycle ---

func (m *Manager) playQuestion(gen, index int) {
	m.mu.Lock()
	if m.destroyed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.current = index
	m.state = StatePlayingQuestion
	total := m.total
	queue := m.queue
	cbState := m.callbacks.OnStateChange
	cbQuestion := m.callbacks.OnQuestionChange
	m.mu.Unlock()

	if cbState != nil {
		cbState(StatePlayingQuestion)
	}
	if cbQuestion != nil {
		cbQuestion(index, total)
	}
	if m.metrics != nil {
		m.metrics.RecordQuestionAsked()
	}

	clip, err := queue.Load(m.ctx, index)
	if err != nil {
		m.failSession("playback", err)
		return
	}

	// Placeholder clips play as timed silence on the same clock, so a failed
	// preload never stalls the turn cycle.
	clock := audio.NewPlaybackClock(clip.Duration, m.params.PlaybackTick)
	clock.OnProgress(func(current, total time.Duration) {
		m.emitProgress(clock, current, total)
	})
	clock.OnEnded(func() {
		m.afterPlayback(clock)
	})

	m.mu.Lock()
	if m.destroyed || gen != m.gen || m.state != StatePlayingQuestion {
		m.mu.Unlock()
		clock.Stop()
		return
	}
	m.clock = clock
	m.mu.Unlock()

	m.logger.Debug().
		Int("question_index", index).
		Dur("duration", clip.Duration).
		Bool("placeholder", clip.Placeholder).
		Msg("Playing question")
	clock.Play()
}

func (m *Manager) emitProgress(clock *audio.PlaybackClock, current, total time.Duration) {
	m.mu.Lock()
	if m.destroyed || m.clock != clock || m.state != StatePlayingQuestion {
		m.mu.Unlock()
		return
	}
	cb := m.callbacks.OnAudioProgress
	m.mu.Unlock()

	if cb != nil {
		cb(current.Seconds(), total.Seconds())
	}
}

func (m *Manager) afterPlayback(clock *audio.PlaybackClock) {
	m.mu.Lock()
	if m.destroyed || m.clock != clock || m.state != StatePlayingQuestion {
		m.mu.Unlock()
		return
	}
	gen := m.gen
	m.clock = nil
	m.state = StateWaitingToListen
	// The listening start delay keeps the question's audio tail from being
	// picked up as candidate speech
	m.startListenTimer = time.AfterFunc(m.params.ListeningStartDelay, func() {
		m.beginListening(gen)
	})
	cbState := m.callbacks.OnStateChange
	m.mu.Unlock()

	if cbState != nil {
		cbState(StateWaitingToListen)
	}
}

func (m *Manager) beginListening(gen int) {
	m.mu.Lock()
	if m.destroyed || gen != m.gen || m.state != StateWaitingToListen {
		m.mu.Unlock()
		return
	}
	m.state = StateListeningForResponse
	m.speechSeen = false
	m.silenceSince = time.Time{}

	monitor := audio.NewVolumeMonitor(m.analysis, m.params.VolumeFrameInterval, func(level float64) {
		m.handleVolume(gen, level)
	})
	m.monitor = monitor
	// MaxResponseTime bounds the listening phase; if it fires first, silence
	// is treated as the response
	m.maxResponseTimer = time.AfterFunc(m.params.MaxResponseTime, func() {
		m.endOfTurn(gen, "timeout")
	})
	cbState := m.callbacks.OnStateChange
	m.mu.Unlock()

	m.recorder.Resume()
	monitor.Start()

	if cbState != nil {
		cbState(StateListeningForResponse)
	}
}

func (m *Manager) handleVolume(gen int, level float64) {
	m.mu.Lock()
	if m.destroyed || gen != m.gen || m.state != StateListeningForResponse {
		m.mu.Unlock()
		return
	}
	cb := m.callbacks.OnVolumeChange

	endTurn := false
	if level >= m.params.SilenceThreshold {
		m.speechSeen = true
		m.silenceSince = time.Time{}
	} else if m.speechSeen {
		if m.silenceSince.IsZero() {
			m.silenceSince = time.Now()
		} else if time.Since(m.silenceSince) >= m.params.SilenceWindow {
			endTurn = true
		}
	}
	m.mu.Unlock()

	if cb != nil {
		cb(level)
	}
	if endTurn {
		m.endOfTurn(gen, "silence")
	}
}

func (m *Manager) endOfTurn(gen int, reason string) {
	m.mu.Lock()
	if m.destroyed || gen != m.gen || m.state != StateListeningForResponse {
		m.mu.Unlock()
		return
	}
	m.state = StateProcessingSilence
	if m.maxResponseTimer != nil {
		m.maxResponseTimer.Stop()
		m.maxResponseTimer = nil
	}
	monitor := m.monitor
	m.monitor = nil
	m.advanceTimer = time.AfterFunc(m.params.ResponseDelay, func() {
		m.advance(gen)
	})
	cbState := m.callbacks.OnStateChange
	m.mu.Unlock()

	m.recorder.Pause()
	if monitor != nil {
		// Stop asynchronously: silence detection ends the turn from the
		// monitor's own sampling goroutine
		go monitor.Stop()
	}

	m.logger.Debug().
		Str("reason", reason).
		Int("question_index", m.CurrentIndex()).
		Msg("End of turn")

	if cbState != nil {
		cbState(StateProcessingSilence)
	}
}

func (m *Manager) advance(gen int) {
	m.mu.Lock()
	if m.destroyed || gen != m.gen || m.state != StateProcessingSilence {
		m.mu.Unlock()
		return
	}

	next := m.current + 1
	if next >= m.total {
		m.state = StateInterviewComplete
		m.sessionLive = false
		cbState := m.callbacks.OnStateChange
		cbComplete := m.callbacks.OnComplete
		m.mu.Unlock()

		if err := m.recorder.Stop(); err != nil {
			m.logger.Debug().Err(err).Msg("Recorder stop at completion")
		}
		if m.transcriber != nil {
			if err := m.transcriber.Stop(); err != nil {
				m.logger.Debug().Err(err).Msg("Transcriber stop at completion")
			}
		}
		if m.metrics != nil {
			m.metrics.RecordSessionEnd()
		}

		if cbState != nil {
			cbState(StateInterviewComplete)
		}
		if cbComplete != nil {
			cbComplete()
		}
		m.logger.Info().Msg("Interview complete")
		return
	}

	m.state = StatePreparingNext
	m.nextTimer = time.AfterFunc(m.params.PreparingNextDelay, func() {
		m.playQuestion(gen, next)
	})
	cbState := m.callbacks.OnStateChange
	m.mu.Unlock()

	if cbState != nil {
		cbState(StatePreparingNext)
	}
}

// CurrentIndex returns the current question index
func (m *Manager) CurrentIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) pumpTranscripts() {
	for result := range m.transcriber.Results() {
		if result == nil || !result.IsFinal || result.Text == "" {
			continue
		}
		m.mu.Lock()
		if m.destroyed {
			m.mu.Unlock()
			return
		}
		index := m.current
		if existing := m.answers[index]; existing != "" {
			m.answers[index] = existing + " " + result.Text
		} else {
			m.answers[index] = result.Text
		}
		cb := m.callbacks.OnTranscript
		m.mu.Unlock()

		if m.metrics != nil {
			m.metrics.RecordTranscription(true)
		}
		if cb != nil {
			cb(index, result.Text)
		}
	}
}

// failSession funnels an internal failure to OnError and the error state.
// Nothing above the manager's boundary receives the failure any other way.
func (m *Manager) failSession(component string, err error) {
	m.mu.Lock()
	if m.destroyed || m.state == StateError {
		m.mu.Unlock()
		return
	}
	m.state = StateError
	m.gen++
	m.cancelTimersLocked()
	clock := m.clock
	m.clock = nil
	monitor := m.monitor
	m.monitor = nil
	cbState := m.callbacks.OnStateChange
	cbError := m.callbacks.OnError
	m.mu.Unlock()

	if clock != nil {
		clock.Stop()
	}
	if monitor != nil {
		go monitor.Stop()
	}
	m.recorder.Pause()

	m.logger.Error().Err(err).Str("component", component).Msg("Interview session failed")
	if m.metrics != nil {
		m.metrics.RecordError("session_failure", component)
	}

	if cbState != nil {
		cbState(StateError)
	}
	if cbError != nil {
		cbError(err.Error())
	}
}

func (m *Manager) cancelTimersLocked() {
	for _, t := range []*time.Timer{m.startListenTimer, m.maxResponseTimer, m.advanceTimer, m.nextTimer} {
		if t != nil {
			t.Stop()
		}
	}
	m.startListenTimer = nil
	m.maxResponseTimer = nil
	m.advanceTimer = nil
	m.nextTimer = nil
}
