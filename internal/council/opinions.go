package council

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/quorum/backend/internal/extract"
	"github.com/wonny/quorum/backend/internal/llm"
	"github.com/wonny/quorum/backend/internal/schema"
	"github.com/wonny/quorum/backend/pkg/config"
	"github.com/wonny/quorum/backend/pkg/logger"
)

// Council runs the three deliberation stages against a panel of agents.
// ⭐ SSOT: 패널 구성과 스테이지 실행은 여기서만
type Council struct {
	inv     llm.Invoker
	cfg     config.CouncilConfig
	timeout time.Duration
	logger  *logger.Logger
}

// New creates a Council over the given invoker.
func New(inv llm.Invoker, cfg *config.Config, log *logger.Logger) *Council {
	return &Council{
		inv:     inv,
		cfg:     cfg.Council,
		timeout: cfg.OpenRouter.Timeout,
		logger:  log,
	}
}

// member is one Stage 1 panel seat.
type member struct {
	Name   string // agent identity, unique within a run
	Role   string
	Model  string
	Prompt string
}

// panel assembles the Stage 1 panel: the specialist trio always sits;
// generalists join only when the reduced flag is off.
func (c *Council) panel(reduced bool) []member {
	var panel []member

	specialists := []member{
		{Name: "Quant", Role: "Quant", Model: c.cfg.QuantModel, Prompt: quantPrompt},
		{Name: "Risk Manager", Role: "Risk Manager", Model: c.cfg.RiskModel, Prompt: riskPrompt},
		{Name: "Macro Strategist", Role: "Macro Strategist", Model: c.cfg.MacroModel, Prompt: macroPrompt},
	}
	for _, m := range specialists {
		if m.Model != "" {
			panel = append(panel, m)
		}
	}

	if !reduced {
		for i, model := range c.cfg.GeneralistModels {
			if model == "" {
				continue
			}
			role := fmt.Sprintf("Analyst %d", i+1)
			panel = append(panel, member{Name: role, Role: role, Model: model, Prompt: generalistPrompt})
		}
	}

	return panel
}

// modelFor resolves an agent identity back to its model for Stage 2.
func (c *Council) modelFor(agentName string) string {
	for _, m := range c.panel(false) {
		if m.Name == agentName {
			return m.Model
		}
	}
	return c.cfg.ChairmanModel
}

// CollectOpinions runs Stage 1: every panel member is invoked concurrently
// against the same context. Per-agent failure degrades to a neutral
// placeholder, so the result always has one entry per panel member.
// An empty panel (misconfiguration) yields an empty slice.
func (c *Council) CollectOpinions(ctx context.Context, query, marketContext string, reduced bool, priorSummary string) []schema.Opinion {
	panel := c.panel(reduced)
	if len(panel) == 0 {
		c.logger.Warn("Stage 1 panel is empty")
		return nil
	}

	shared := deliberationContext(query, marketContext, priorSummary)

	calls := make([]llm.Call, len(panel))
	for i, m := range panel {
		calls[i] = llm.Call{
			Name:     m.Name,
			Model:    m.Model,
			Messages: exchange(m.Prompt, shared),
			Timeout:  c.timeout,
		}
	}

	c.logger.WithField("panel_size", len(panel)).Info("Stage 1: collecting opinions")
	outcomes := llm.FanOut(ctx, c.inv, calls)

	opinions := make([]schema.Opinion, len(panel))
	for i, out := range outcomes {
		opinions[i] = c.toOpinion(panel[i], out)
	}
	return opinions
}

// toOpinion converts one fan-out outcome into an Opinion. Transport errors,
// timeouts and extraction failures all collapse into the same degraded
// placeholder carrying confidence 0.
func (c *Council) toOpinion(m member, out llm.Outcome) schema.Opinion {
	if out.Err != nil {
		c.logger.WithError(out.Err).WithField("agent", m.Name).Warn("Stage 1 agent failed")
		return degradedOpinion(m, fmt.Sprintf("%s unavailable: %v", m.Role, out.Err))
	}

	parsed := extract.JSONWithSchema(out.Content, schema.OpinionFields)
	if _, failed := parsed["error"]; failed {
		c.logger.WithField("agent", m.Name).Warn("Stage 1 response extraction failed")
		return degradedOpinion(m, fmt.Sprintf("%s returned unparseable output", m.Role))
	}

	// Validation errors are diagnostic, not fatal: keep what parsed.
	if errs, ok := parsed["_validation_errors"]; ok {
		c.logger.WithFields(map[string]interface{}{
			"agent":  m.Name,
			"errors": errs,
		}).Warn("Stage 1 response failed schema validation")
	}

	sentiment, _ := parsed["sentiment"].(string)
	switch sentiment {
	case schema.SentimentBullish, schema.SentimentBearish, schema.SentimentNeutral:
	default:
		sentiment = schema.SentimentNeutral
	}

	return schema.Opinion{
		AgentName:    m.Name,
		Role:         m.Role,
		Sentiment:    sentiment,
		Confidence:   extract.ParseInt(parsed["confidence"], 0, 0, 100),
		KeyArguments: extract.Strings(parsed["key_arguments"]),
		RiskScore:    extract.ParseInt(parsed["risk_score"], 5, 0, 10),
	}
}

// degradedOpinion is the fixed placeholder for a failed panel seat.
func degradedOpinion(m member, reason string) schema.Opinion {
	return schema.Opinion{
		AgentName:    m.Name,
		Role:         m.Role,
		Sentiment:    schema.SentimentNeutral,
		Confidence:   0,
		KeyArguments: []string{reason},
		RiskScore:    5,
	}
}
