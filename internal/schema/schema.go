// Package schema defines the typed records exchanged between the three
// council stages. All records are created once per deliberation run and
// never mutated afterwards.
package schema

// Sentiment values an agent may express.
const (
	SentimentBullish = "BULLISH"
	SentimentBearish = "BEARISH"
	SentimentNeutral = "NEUTRAL"
)

// Final verdicts the chairman may issue.
const (
	VerdictBuy   = "BUY"
	VerdictHold  = "HOLD"
	VerdictSell  = "SELL"
	VerdictPanic = "PANIC"
)

// Opinion is one agent's structured judgment from Stage 1.
// Confidence 0 marks a degraded (failed) opinion: it is excluded from the
// Stage 2 reviewer panel but still shown to the chairman.
type Opinion struct {
	AgentName    string   `json:"agent_name"`
	Role         string   `json:"role"`
	Sentiment    string   `json:"sentiment"`
	Confidence   int      `json:"confidence"`    // 0-100
	KeyArguments []string `json:"key_arguments"` // may be empty
	RiskScore    int      `json:"risk_score"`    // 0=안전, 10=위험
}

// Degraded reports whether this opinion is a failure placeholder.
func (o Opinion) Degraded() bool {
	return o.Confidence == 0
}

// SingleRanking is one reviewer's score for one anonymized peer opinion.
type SingleRanking struct {
	TargetAgentID string `json:"target_agent_id"` // anonymized label, e.g. "Response A"
	Score         int    `json:"score"`           // 0-10
	Critique      string `json:"critique"`
}

// PeerReview is one reviewer's full set of rankings from Stage 2.
// Rankings is empty when the reviewer's invocation failed.
type PeerReview struct {
	ReviewerName string          `json:"reviewer_name"`
	Rankings     []SingleRanking `json:"rankings"`
}

// AggregateRanking is the derived per-agent mean peer score.
// Higher average score = better. Never persisted.
type AggregateRanking struct {
	Model         string  `json:"model"`
	AverageScore  float64 `json:"average_score"`
	RankingsCount int     `json:"rankings_count"`
}

// ChairmanSynthesis is the final verdict closing a deliberation run.
type ChairmanSynthesis struct {
	FinalVerdict     string   `json:"final_verdict"`
	ConsensusScore   int      `json:"consensus_score"` // 0-100
	ExecutiveSummary string   `json:"executive_summary"`
	ActionableSteps  []string `json:"actionable_steps"`
	RiskWarning      string   `json:"risk_warning"`
	TutorExplanation string   `json:"tutor_explanation,omitempty"`
}

// Field descriptors consumed by the extractor's validation pass.
// A missing or mistyped field is recorded in _validation_errors, never fatal.
var (
	OpinionFields = []Field{
		{Name: "sentiment", Kind: KindString},
		{Name: "confidence", Kind: KindNumber},
		{Name: "key_arguments", Kind: KindArray},
		{Name: "risk_score", Kind: KindNumber},
	}

	ReviewFields = []Field{
		{Name: "rankings", Kind: KindArray},
	}

	SynthesisFields = []Field{
		{Name: "final_verdict", Kind: KindString},
		{Name: "consensus_score", Kind: KindNumber},
		{Name: "executive_summary", Kind: KindString},
		{Name: "actionable_steps", Kind: KindArray},
		{Name: "risk_warning", Kind: KindString},
	}
)

// Field describes one required field for schema validation.
type Field struct {
	Name string
	Kind Kind
}

// Kind is the expected JSON type of a field.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindArray
)
