package realtime

import (
	"fmt"
	"strings"
)

// SessionConfig carries everything needed to brief the AI interviewer for a
// live session. Questions are embedded verbatim so the interviewer asks them
// word for word rather than paraphrasing.
type SessionConfig struct {
	JobTitle            string
	Company             string
	JobDescription      string
	Resume              string
	TechnicalQuestions  []string
	BehavioralQuestions []string
}

// BuildSystemPrompt renders the interviewer briefing for a session
func BuildSystemPrompt(cfg SessionConfig) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a professional interviewer conducting a mock interview for the position of %s at %s.\n\n", cfg.JobTitle, cfg.Company)

	b.WriteString("JOB DESCRIPTION:\n")
	b.WriteString(cfg.JobDescription)
	b.WriteString("\n\n")

	if cfg.Resume != "" {
		b.WriteString("CANDIDATE RESUME:\n")
		b.WriteString(cfg.Resume)
		b.WriteString("\n\n")
	}

	b.WriteString("QUESTION BANK (ask these exactly as written):\n")
	for i, q := range cfg.TechnicalQuestions {
		fmt.Fprintf(&b, "[technical %d] \"%s\"\n", i+1, q)
	}
	for i, q := range cfg.BehavioralQuestions {
		fmt.Fprintf(&b, "[behavioral %d] \"%s\"\n", i+1, q)
	}
	b.WriteString("\n")

	b.WriteString("INTERVIEWER RULES:\n")
	b.WriteString("- Ask exactly one question at a time and wait for the candidate's full answer.\n")
	b.WriteString("- Speak in complete sentences.\n")
	b.WriteString("- Briefly acknowledge each answer before moving to the next question.\n")
	b.WriteString("- Never leave a question unfinished or skip ahead mid-question.\n")
	b.WriteString("- Keep a professional, encouraging tone throughout.\n")

	return b.String()
}

// openingInstruction is the synthetic first turn sent after the warm-up
// delay so the interviewer speaks first.
const openingInstruction = "Please greet the candidate and begin the interview with your first question."
