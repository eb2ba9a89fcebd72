package question

// Type classifies a question within the interview agenda
type Type string

const (
	TypeIntroduction Type = "introduction"
	TypeTechnical    Type = "technical"
	TypeBehavioral   Type = "behavioral"
	TypeClosing      Type = "closing"
)

// Question is one item of the interview agenda. Immutable once the agenda
// is built.
type Question struct {
	Type  Type   `json:"type"`
	Text  string `json:"text"`
	Index int    `json:"index"`
}

// Status reports queue readiness, derived on demand
type Status struct {
	Total   int `json:"total"`
	Ready   int `json:"ready"`
	Loading int `json:"loading"`
	Current int `json:"current"`
}
