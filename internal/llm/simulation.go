package llm

import (
	"context"
	"strings"
	"time"
)

// Canned structured payloads keyed by role hint. Deterministic, offline,
// and shaped exactly like live model output so the extraction and staging
// code paths are exercised unchanged.
var simulatedPayloads = map[string]string{
	"quant": `{
		"sentiment": "BULLISH",
		"confidence": 85,
		"key_arguments": ["SMA 200 in ascending regime", "RSI at 45 leaves statistical edge", "Volatility contraction favors continuation"],
		"risk_score": 3
	}`,
	"risk": `{
		"sentiment": "NEUTRAL",
		"confidence": 60,
		"key_arguments": ["High correlation with the tech sector", "Historical drawdown of 15%", "Rate decisions remain a tail risk"],
		"risk_score": 6
	}`,
	"macro": `{
		"sentiment": "BEARISH",
		"confidence": 70,
		"key_arguments": ["Persistent inflation narrative", "Semiconductor sector saturation", "Geopolitical headwinds"],
		"risk_score": 7
	}`,
	"generalist": `{
		"sentiment": "NEUTRAL",
		"confidence": 55,
		"key_arguments": ["Valuation stretched against peers", "Earnings momentum intact"],
		"risk_score": 5
	}`,
	"reviewer": `{
		"rankings": [
			{"target_agent_id": "Response A", "score": 8, "critique": "Solid statistical framing."},
			{"target_agent_id": "Response B", "score": 5, "critique": "Pessimism not backed by data."}
		]
	}`,
	"chairman": `{
		"final_verdict": "HOLD",
		"consensus_score": 55,
		"executive_summary": "The council is split. The quant sees a technical opportunity while the macro strategist flags economic headwinds. The risk manager urges caution.",
		"actionable_steps": ["Do not open new long positions now", "Set a 5% stop loss", "Wait for the next inflation print"],
		"risk_warning": "Elevated volatility expected over the coming week.",
		"tutor_explanation": "Imagine planning a boat trip: the local weather looks fine (technicals) but a storm is visible on the horizon (macro). Stay in the harbor for now."
	}`,
}

// Simulator is an offline Invoker returning canned structured payloads.
// The role is inferred from a hint in the first (system) message, mirroring
// how live role prompts open.
type Simulator struct {
	// Delay approximates model latency so fan-out joins are exercised.
	Delay time.Duration
}

// NewSimulator returns a Simulator with a short synthetic delay.
func NewSimulator() *Simulator {
	return &Simulator{Delay: 100 * time.Millisecond}
}

// Invoke returns the canned payload matching the role hint in the prompt.
func (s *Simulator) Invoke(ctx context.Context, model string, messages []Message, timeout time.Duration) (Result, error) {
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	var prompt string
	if len(messages) > 0 {
		prompt = messages[0].Content
	}

	return Result{Content: simulatedPayloads[roleHint(prompt)]}, nil
}

// roleHint classifies a prompt by its opening role marker.
// Chairman is checked first: its report embeds the other roles' output.
func roleHint(prompt string) string {
	lower := strings.ToLower(prompt)
	switch {
	case strings.Contains(lower, "chairman"):
		return "chairman"
	case strings.Contains(lower, "reviewer"):
		return "reviewer"
	case strings.Contains(lower, "quantitative"):
		return "quant"
	case strings.Contains(lower, "risk officer"):
		return "risk"
	case strings.Contains(lower, "macro"):
		return "macro"
	default:
		return "generalist"
	}
}
