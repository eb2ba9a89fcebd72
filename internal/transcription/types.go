package transcription

// Result is one transcription result for the candidate's answer
type Result struct {
	// Text is the transcribed text
	Text string

	// IsFinal indicates if this is a final transcription (true) or interim (false)
	IsFinal bool

	// Confidence is the confidence score (0.0 to 1.0) if available
	Confidence float64
}

// Transcriber is the interface for answer-transcription clients. The
// capability is optional: a nil Transcriber means answers are not
// transcribed, and failures here never block the interview turn cycle.
type Transcriber interface {
	// Start begins a new transcription session
	Start() error

	// SendAudio sends an audio chunk to the transcription service
	SendAudio(audioData []byte) error

	// Results returns the channel of transcription results
	Results() <-chan *Result

	// Stop stops the transcription session
	Stop() error

	// Close closes the client and cleans up resources
	Close() error
}
