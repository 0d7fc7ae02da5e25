package council

import (
	"sort"

	"github.com/wonny/quorum/backend/internal/schema"
)

// AggregateRankings reduces all peer reviews into one ordered list of agents
// by mean peer score. Scores are bucketed by resolved identity, never by
// arrival order, so permuting the review sequence cannot change the result.
// Agents never reviewed get no entry. Higher average score = better;
// ties break on agent name for determinism.
func AggregateRankings(reviews []schema.PeerReview, labelToAgent map[string]string) []schema.AggregateRanking {
	scores := make(map[string][]int)

	for _, review := range reviews {
		for _, r := range review.Rankings {
			agent, known := labelToAgent[r.TargetAgentID]
			if !known {
				// Reviewer invented a label; nothing to attribute it to.
				continue
			}
			scores[agent] = append(scores[agent], r.Score)
		}
	}

	aggregate := make([]schema.AggregateRanking, 0, len(scores))
	for agent, agentScores := range scores {
		sum := 0
		for _, s := range agentScores {
			sum += s
		}
		aggregate = append(aggregate, schema.AggregateRanking{
			Model:         agent,
			AverageScore:  float64(sum) / float64(len(agentScores)),
			RankingsCount: len(agentScores),
		})
	}

	sort.Slice(aggregate, func(i, j int) bool {
		if aggregate[i].AverageScore != aggregate[j].AverageScore {
			return aggregate[i].AverageScore > aggregate[j].AverageScore
		}
		return aggregate[i].Model < aggregate[j].Model
	})

	return aggregate
}
