package council

import (
	"context"
	"fmt"

	"github.com/wonny/quorum/backend/internal/extract"
	"github.com/wonny/quorum/backend/internal/llm"
	"github.com/wonny/quorum/backend/internal/schema"
)

// anonymizedLabel returns the deterministic label for an opinion at the
// given input position: "Response A", "Response B", ...
func anonymizedLabel(i int) string {
	return fmt.Sprintf("Response %c", 'A'+rune(i))
}

// CollectReviews runs Stage 2: opinions are anonymized in input order and
// every agent that produced a usable opinion (confidence > 0) reviews the
// full set. The returned map resolves labels back to real identities; it is
// needed for aggregation and display only and never reaches a reviewer.
func (c *Council) CollectReviews(ctx context.Context, query string, opinions []schema.Opinion) ([]schema.PeerReview, map[string]string) {
	labels := make([]string, len(opinions))
	labelToAgent := make(map[string]string, len(opinions))
	for i, op := range opinions {
		labels[i] = anonymizedLabel(i)
		labelToAgent[labels[i]] = op.AgentName
	}

	// Degraded opinions are shown to reviewers but do not review.
	var reviewers []schema.Opinion
	for _, op := range opinions {
		if !op.Degraded() {
			reviewers = append(reviewers, op)
		}
	}
	if len(reviewers) == 0 {
		c.logger.Warn("Stage 2: no usable opinions, skipping peer review")
		return nil, labelToAgent
	}

	shared := reviewContext(query, labels, opinions)

	calls := make([]llm.Call, len(reviewers))
	for i, reviewer := range reviewers {
		calls[i] = llm.Call{
			Name:     reviewer.AgentName,
			Model:    c.modelFor(reviewer.AgentName),
			Messages: exchange(reviewerPrompt, shared),
			Timeout:  c.timeout,
		}
	}

	c.logger.WithField("reviewers", len(reviewers)).Info("Stage 2: collecting peer reviews")
	outcomes := llm.FanOut(ctx, c.inv, calls)

	reviews := make([]schema.PeerReview, len(outcomes))
	for i, out := range outcomes {
		reviews[i] = c.toReview(out)
	}
	return reviews, labelToAgent
}

// toReview converts one reviewer outcome. A failed reviewer yields a review
// with an empty ranking list, never a stage error.
func (c *Council) toReview(out llm.Outcome) schema.PeerReview {
	review := schema.PeerReview{
		ReviewerName: out.Name,
		Rankings:     []schema.SingleRanking{},
	}

	if out.Err != nil {
		c.logger.WithError(out.Err).WithField("reviewer", out.Name).Warn("Stage 2 reviewer failed")
		return review
	}

	parsed := extract.JSONWithSchema(out.Content, schema.ReviewFields)
	if _, failed := parsed["error"]; failed {
		c.logger.WithField("reviewer", out.Name).Warn("Stage 2 response extraction failed")
		return review
	}

	rankings, ok := parsed["rankings"].([]interface{})
	if !ok {
		return review
	}

	for _, item := range rankings {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		target, _ := entry["target_agent_id"].(string)
		if target == "" {
			continue
		}
		critique, _ := entry["critique"].(string)
		review.Rankings = append(review.Rankings, schema.SingleRanking{
			TargetAgentID: target,
			Score:         extract.ParseInt(entry["score"], 0, 0, 10),
			Critique:      critique,
		})
	}

	return review
}
