package council

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/quorum/backend/internal/extract"
	"github.com/wonny/quorum/backend/internal/schema"
)

// fallbackSummary is the fixed apology used when the chairman fails.
// The pipeline "fails soft" here: the caller always gets a well-formed
// synthesis, never an error.
const fallbackSummary = "The council was unable to produce a final synthesis. The individual opinions above remain valid; please retry shortly."

// Synthesize runs Stage 3: the designated chairman receives the composite
// report of all opinions and reviews and returns the structured verdict.
func (c *Council) Synthesize(ctx context.Context, query string, opinions []schema.Opinion, reviews []schema.PeerReview, tutorMode bool) schema.ChairmanSynthesis {
	prompt := chairmanPrompt
	if tutorMode {
		prompt += tutorAddendum
	}

	report := chairmanReport(query, opinions, reviews)

	c.logger.WithFields(map[string]interface{}{
		"chairman":   c.cfg.ChairmanModel,
		"tutor_mode": tutorMode,
	}).Info("Stage 3: invoking chairman")

	result, err := c.inv.Invoke(ctx, c.cfg.ChairmanModel, exchange(prompt, report), c.timeout)
	if err != nil {
		c.logger.WithError(err).Error("Stage 3 chairman invocation failed")
		return degradedSynthesis()
	}

	parsed := extract.JSONWithSchema(result.Content, schema.SynthesisFields)
	if _, failed := parsed["error"]; failed {
		c.logger.Error("Stage 3 response extraction failed")
		return degradedSynthesis()
	}
	if errs, ok := parsed["_validation_errors"]; ok {
		c.logger.WithField("errors", errs).Warn("Stage 3 response failed schema validation")
	}

	verdict, _ := parsed["final_verdict"].(string)
	switch verdict {
	case schema.VerdictBuy, schema.VerdictHold, schema.VerdictSell, schema.VerdictPanic:
	default:
		verdict = schema.VerdictHold
	}

	summary, _ := parsed["executive_summary"].(string)
	riskWarning, _ := parsed["risk_warning"].(string)
	tutor, _ := parsed["tutor_explanation"].(string)
	if !tutorMode {
		// The explanation only appears when explicitly requested.
		tutor = ""
	}

	return schema.ChairmanSynthesis{
		FinalVerdict:     verdict,
		ConsensusScore:   extract.ParseInt(parsed["consensus_score"], 50, 0, 100),
		ExecutiveSummary: summary,
		ActionableSteps:  extract.Strings(parsed["actionable_steps"]),
		RiskWarning:      riskWarning,
		TutorExplanation: tutor,
	}
}

// degradedSynthesis is the fixed fallback verdict.
func degradedSynthesis() schema.ChairmanSynthesis {
	return schema.ChairmanSynthesis{
		FinalVerdict:     schema.VerdictHold,
		ConsensusScore:   0,
		ExecutiveSummary: fallbackSummary,
		ActionableSteps:  []string{"Retry the deliberation"},
		RiskWarning:      "No synthesis available; treat this turn as inconclusive.",
	}
}

// Render turns a synthesis into the fixed-section human-readable document.
// Pure and order-preserving: the output depends only on the record, and the
// verdict and risk warning appear verbatim.
func Render(s schema.ChairmanSynthesis) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# COUNCIL VERDICT: %s\n\n", s.FinalVerdict)
	fmt.Fprintf(&b, "Consensus score: %d/100\n\n", s.ConsensusScore)

	b.WriteString("## Executive Summary\n")
	b.WriteString(s.ExecutiveSummary)
	b.WriteString("\n\n")

	b.WriteString("## Actionable Steps\n")
	for i, step := range s.ActionableSteps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	b.WriteString("\n")

	b.WriteString("## Risk Warning\n")
	b.WriteString(s.RiskWarning)
	b.WriteString("\n")

	if s.TutorExplanation != "" {
		b.WriteString("\n## 🎓 The Tutor: Plain-Language Explanation\n")
		b.WriteString(s.TutorExplanation)
		b.WriteString("\n")
	}

	return b.String()
}
