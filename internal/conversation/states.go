package conversation

// State is the conversation flow state. Exactly one value is active at any
// time; transitions inside the Manager are the only mutation path.
type State string

const (
	StateInitializing         State = "initializing"
	StateAssigningPersonality State = "assigning_personality"
	StateLoadingIntro         State = "loading_intro"
	StatePreloadingQuestions  State = "preloading_questions"
	StateReadyForQuestion     State = "ready_for_question"
	StatePlayingQuestion      State = "playing_question"
	StateWaitingToListen      State = "waiting_to_listen"
	StateListeningForResponse State = "listening_for_response"
	StateProcessingSilence    State = "processing_silence"
	StatePreparingNext        State = "preparing_next"
	StateInterviewComplete    State = "interview_complete"
	StatePaused               State = "paused"
	StateError                State = "error"
)

// Terminal reports whether the session cannot proceed from this state
// without a manual restart.
func (s State) Terminal() bool {
	return s == StateInterviewComplete || s == StateError
}

// inTurn reports whether the state is part of the active turn cycle, where
// pausing is meaningful.
func (s State) inTurn() bool {
	switch s {
	case StatePlayingQuestion, StateWaitingToListen, StateListeningForResponse,
		StateProcessingSilence, StatePreparingNext:
		return true
	}
	return false
}
