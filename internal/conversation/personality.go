package conversation

import (
	"math/rand"
)

// Voice is the interviewer voice style
type Voice string

const (
	VoiceProfessional Voice = "Professional"
	VoiceFriendly     Voice = "Friendly"
	VoiceAnalytical   Voice = "Analytical"
	VoiceSupportive   Voice = "Supportive"
)

// Tone is the interviewer speaking tone
type Tone string

const (
	ToneFormal         Tone = "Formal"
	ToneConversational Tone = "Conversational"
	ToneDirect         Tone = "Direct"
	ToneEncouraging    Tone = "Encouraging"
)

// Personality biases voice and style selection for one session. Assigned
// once at initialization and immutable afterwards.
type Personality struct {
	Voice Voice `json:"voice"`
	Tone  Tone  `json:"tone"`
}

var voices = []Voice{VoiceProfessional, VoiceFriendly, VoiceAnalytical, VoiceSupportive}
var tones = []Tone{ToneFormal, ToneConversational, ToneDirect, ToneEncouraging}

// voiceIDs maps each interviewer voice to a synthesis voice ID
var voiceIDs = map[Voice]string{
	VoiceProfessional: "sonic-english",
	VoiceFriendly:     "sonic-english-warm",
	VoiceAnalytical:   "sonic-english-neutral",
	VoiceSupportive:   "sonic-english-soft",
}

// assignPersonality draws a random personality from the injected source
func assignPersonality(rng *rand.Rand) Personality {
	return Personality{
		Voice: voices[rng.Intn(len(voices))],
		Tone:  tones[rng.Intn(len(tones))],
	}
}

// VoiceID returns the synthesis voice ID for this personality
func (p Personality) VoiceID() string {
	if id, ok := voiceIDs[p.Voice]; ok {
		return id
	}
	return voiceIDs[VoiceProfessional]
}
