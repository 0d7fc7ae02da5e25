package council

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quorum/backend/internal/llm"
	"github.com/wonny/quorum/backend/internal/schema"
	"github.com/wonny/quorum/backend/pkg/config"
	"github.com/wonny/quorum/backend/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		OpenRouter: config.OpenRouterConfig{Timeout: 2 * time.Second},
		Council: config.CouncilConfig{
			QuantModel:       "test/quant",
			RiskModel:        "test/risk",
			MacroModel:       "test/macro",
			ChairmanModel:    "test/chairman",
			TitleModel:       "test/title",
			GeneralistModels: []string{"test/generalist"},
		},
	}
}

func simulatedCouncil() *Council {
	return New(&llm.Simulator{}, testConfig(), logger.Nop())
}

// scriptedInvoker replays fixed payloads or errors keyed by model.
type scriptedInvoker struct {
	responses map[string]string
	errs      map[string]error
}

func (s *scriptedInvoker) Invoke(_ context.Context, model string, _ []llm.Message, _ time.Duration) (llm.Result, error) {
	if err, ok := s.errs[model]; ok {
		return llm.Result{}, err
	}
	if payload, ok := s.responses[model]; ok {
		return llm.Result{Content: payload}, nil
	}
	return llm.Result{}, fmt.Errorf("no scripted response for model %s", model)
}

const opinionPayload = `{
	"sentiment": "BULLISH",
	"confidence": %d,
	"key_arguments": ["argument one", "argument two"],
	"risk_score": 4
}`

func TestCollectOpinionsFullPanel(t *testing.T) {
	c := simulatedCouncil()

	opinions := c.CollectOpinions(context.Background(), "Should I buy NVDA?", "", false, "")

	require.Len(t, opinions, 4) // quant + risk + macro + 1 generalist
	assert.Equal(t, "Quant", opinions[0].AgentName)
	assert.Equal(t, "Risk Manager", opinions[1].AgentName)
	assert.Equal(t, "Macro Strategist", opinions[2].AgentName)
	assert.Equal(t, "Analyst 1", opinions[3].AgentName)

	for _, op := range opinions {
		assert.False(t, op.Degraded(), "agent %s should not be degraded", op.AgentName)
		assert.NotEmpty(t, op.KeyArguments)
	}
}

func TestCollectOpinionsReducedPanel(t *testing.T) {
	c := simulatedCouncil()

	opinions := c.CollectOpinions(context.Background(), "Quick take on AAPL", "", true, "")

	require.Len(t, opinions, 3)
	for _, op := range opinions {
		assert.NotContains(t, op.AgentName, "Analyst")
	}
}

func TestCollectOpinionsPartialFailure(t *testing.T) {
	// Quant answers strongly, risk times out, macro answers weakly.
	inv := &scriptedInvoker{
		responses: map[string]string{
			"test/quant": fmt.Sprintf(opinionPayload, 80),
			"test/macro": fmt.Sprintf(opinionPayload, 60),
		},
		errs: map[string]error{
			"test/risk": context.DeadlineExceeded,
		},
	}
	c := New(inv, testConfig(), logger.Nop())

	opinions := c.CollectOpinions(context.Background(), "question", "", true, "")

	require.Len(t, opinions, 3, "failed seats still produce an entry")
	assert.Equal(t, 80, opinions[0].Confidence)
	assert.True(t, opinions[1].Degraded())
	assert.Equal(t, schema.SentimentNeutral, opinions[1].Sentiment)
	assert.Equal(t, 5, opinions[1].RiskScore)
	assert.Equal(t, 60, opinions[2].Confidence)
}

func TestCollectOpinionsUnparseableOutput(t *testing.T) {
	inv := &scriptedInvoker{
		responses: map[string]string{
			"test/quant": "I refuse to answer in JSON.",
			"test/risk":  fmt.Sprintf(opinionPayload, 50),
			"test/macro": fmt.Sprintf(opinionPayload, 50),
		},
	}
	c := New(inv, testConfig(), logger.Nop())

	opinions := c.CollectOpinions(context.Background(), "question", "", true, "")

	require.Len(t, opinions, 3)
	assert.True(t, opinions[0].Degraded())
	assert.Contains(t, opinions[0].KeyArguments[0], "unparseable")
}

func TestCollectOpinionsEmptyPanel(t *testing.T) {
	cfg := testConfig()
	cfg.Council.QuantModel = ""
	cfg.Council.RiskModel = ""
	cfg.Council.MacroModel = ""
	cfg.Council.GeneralistModels = nil
	c := New(llm.NewSimulator(), cfg, logger.Nop())

	opinions := c.CollectOpinions(context.Background(), "question", "", false, "")
	assert.Empty(t, opinions)
}

func TestCollectReviewsOnlyUsableOpinionsReview(t *testing.T) {
	c := simulatedCouncil()

	opinions := []schema.Opinion{
		{AgentName: "Quant", Role: "Quant", Sentiment: schema.SentimentBullish, Confidence: 80, RiskScore: 3},
		{AgentName: "Risk Manager", Role: "Risk Manager", Sentiment: schema.SentimentNeutral, Confidence: 0, RiskScore: 5},
		{AgentName: "Macro Strategist", Role: "Macro Strategist", Sentiment: schema.SentimentBearish, Confidence: 60, RiskScore: 7},
	}

	reviews, labelToAgent := c.CollectReviews(context.Background(), "question", opinions)

	// Degraded risk manager is reviewed but does not review.
	require.Len(t, reviews, 2)
	assert.Equal(t, "Quant", reviews[0].ReviewerName)
	assert.Equal(t, "Macro Strategist", reviews[1].ReviewerName)

	// Every opinion gets exactly one label, in input order.
	require.Len(t, labelToAgent, 3)
	assert.Equal(t, "Quant", labelToAgent["Response A"])
	assert.Equal(t, "Risk Manager", labelToAgent["Response B"])
	assert.Equal(t, "Macro Strategist", labelToAgent["Response C"])
}

func TestCollectReviewsAllDegraded(t *testing.T) {
	c := simulatedCouncil()

	opinions := []schema.Opinion{
		{AgentName: "Quant", Confidence: 0},
		{AgentName: "Macro Strategist", Confidence: 0},
	}

	reviews, labelToAgent := c.CollectReviews(context.Background(), "question", opinions)
	assert.Empty(t, reviews)
	assert.Len(t, labelToAgent, 2)
}

func TestCollectReviewsFailedReviewerYieldsEmptyRankings(t *testing.T) {
	inv := &scriptedInvoker{
		responses: map[string]string{
			"test/quant": `{"rankings": [{"target_agent_id": "Response B", "score": 7, "critique": "fine"}]}`,
		},
		errs: map[string]error{
			"test/macro": errors.New("upstream 502"),
		},
	}
	c := New(inv, testConfig(), logger.Nop())

	opinions := []schema.Opinion{
		{AgentName: "Quant", Confidence: 80},
		{AgentName: "Macro Strategist", Confidence: 60},
	}

	reviews, _ := c.CollectReviews(context.Background(), "question", opinions)

	require.Len(t, reviews, 2)
	assert.Len(t, reviews[0].Rankings, 1)
	assert.Empty(t, reviews[1].Rankings, "failed reviewer keeps its seat with no rankings")
}

func TestAnonymizedLabels(t *testing.T) {
	assert.Equal(t, "Response A", anonymizedLabel(0))
	assert.Equal(t, "Response B", anonymizedLabel(1))
	assert.Equal(t, "Response E", anonymizedLabel(4))
}

func TestAggregateRankings(t *testing.T) {
	labelToAgent := map[string]string{
		"Response A": "Quant",
		"Response B": "Macro Strategist",
	}
	reviews := []schema.PeerReview{
		{ReviewerName: "Quant", Rankings: []schema.SingleRanking{
			{TargetAgentID: "Response A", Score: 8},
			{TargetAgentID: "Response B", Score: 4},
		}},
		{ReviewerName: "Macro Strategist", Rankings: []schema.SingleRanking{
			{TargetAgentID: "Response A", Score: 6},
			{TargetAgentID: "Response B", Score: 6},
			{TargetAgentID: "Response Z", Score: 10}, // invented label, dropped
		}},
	}

	aggregate := AggregateRankings(reviews, labelToAgent)

	require.Len(t, aggregate, 2)
	assert.Equal(t, "Quant", aggregate[0].Model)
	assert.InDelta(t, 7.0, aggregate[0].AverageScore, 1e-9)
	assert.Equal(t, 2, aggregate[0].RankingsCount)
	assert.Equal(t, "Macro Strategist", aggregate[1].Model)
	assert.InDelta(t, 5.0, aggregate[1].AverageScore, 1e-9)

	// Permuting review order cannot change the aggregate.
	reversed := []schema.PeerReview{reviews[1], reviews[0]}
	assert.Equal(t, aggregate, AggregateRankings(reversed, labelToAgent))
}

func TestAggregateRankingsTieBreak(t *testing.T) {
	labelToAgent := map[string]string{"Response A": "Zeta", "Response B": "Alpha"}
	reviews := []schema.PeerReview{
		{ReviewerName: "r", Rankings: []schema.SingleRanking{
			{TargetAgentID: "Response A", Score: 5},
			{TargetAgentID: "Response B", Score: 5},
		}},
	}

	aggregate := AggregateRankings(reviews, labelToAgent)
	require.Len(t, aggregate, 2)
	assert.Equal(t, "Alpha", aggregate[0].Model)
	assert.Equal(t, "Zeta", aggregate[1].Model)
}

func TestSynthesizeInvalidVerdictDefaultsToHold(t *testing.T) {
	inv := &scriptedInvoker{
		responses: map[string]string{
			"test/chairman": `{
				"final_verdict": "MAYBE",
				"consensus_score": 72,
				"executive_summary": "Summary.",
				"actionable_steps": ["Step one"],
				"risk_warning": "Warning.",
				"tutor_explanation": "Plain words."
			}`,
		},
	}
	c := New(inv, testConfig(), logger.Nop())

	s := c.Synthesize(context.Background(), "q", nil, nil, false)

	assert.Equal(t, schema.VerdictHold, s.FinalVerdict)
	assert.Equal(t, 72, s.ConsensusScore)
	assert.Empty(t, s.TutorExplanation, "tutor text is dropped when tutor mode is off")
}

func TestSynthesizeTutorMode(t *testing.T) {
	c := simulatedCouncil()

	s := c.Synthesize(context.Background(), "q", nil, nil, true)
	assert.NotEmpty(t, s.TutorExplanation)

	s = c.Synthesize(context.Background(), "q", nil, nil, false)
	assert.Empty(t, s.TutorExplanation)
}

func TestSynthesizeChairmanFailure(t *testing.T) {
	inv := &scriptedInvoker{errs: map[string]error{"test/chairman": errors.New("boom")}}
	c := New(inv, testConfig(), logger.Nop())

	s := c.Synthesize(context.Background(), "q", nil, nil, false)

	assert.Equal(t, schema.VerdictHold, s.FinalVerdict)
	assert.Equal(t, 0, s.ConsensusScore)
	assert.Equal(t, fallbackSummary, s.ExecutiveSummary)
	assert.NotEmpty(t, s.ActionableSteps)
}

func TestRender(t *testing.T) {
	s := schema.ChairmanSynthesis{
		FinalVerdict:     schema.VerdictSell,
		ConsensusScore:   81,
		ExecutiveSummary: "Exit the position.",
		ActionableSteps:  []string{"Sell half now", "Sell the rest on strength"},
		RiskWarning:      "Liquidity is thin before the print.",
	}

	doc := Render(s)

	assert.Contains(t, doc, "# COUNCIL VERDICT: SELL")
	assert.Contains(t, doc, "Consensus score: 81/100")
	assert.Contains(t, doc, "1. Sell half now")
	assert.Contains(t, doc, "2. Sell the rest on strength")
	assert.Contains(t, doc, "Liquidity is thin before the print.")
	assert.NotContains(t, doc, "The Tutor")

	s.TutorExplanation = "Think of it like leaving a party before the lights come on."
	withTutor := Render(s)
	assert.Contains(t, withTutor, "## 🎓 The Tutor: Plain-Language Explanation")
	assert.Contains(t, withTutor, "leaving a party")
}

// recordingStore captures the persisted run.
type recordingStore struct {
	conversationID string
	run            *RunResult
	err            error
}

func (r *recordingStore) SaveRun(_ context.Context, conversationID string, run *RunResult) error {
	if r.err != nil {
		return r.err
	}
	r.conversationID = conversationID
	r.run = run
	return nil
}

type staticProvider struct {
	blob string
	err  error
}

func (p *staticProvider) Context(context.Context) (string, error) {
	return p.blob, p.err
}

func TestDeliberate(t *testing.T) {
	store := &recordingStore{}
	o := NewOrchestrator(simulatedCouncil(), &staticProvider{blob: "NVDA: $900"}, store, nil, logger.Nop())

	run, err := o.Deliberate(context.Background(), "conv-1", "Should I buy NVDA?", RunOptions{})
	require.NoError(t, err)

	assert.Equal(t, 4, run.Metadata.OpinionsCount)
	assert.Equal(t, 4, run.Metadata.ReviewsCount)
	assert.Len(t, run.Metadata.LabelToAgent, 4)
	assert.NotEmpty(t, run.Metadata.AggregateRankings)
	assert.Contains(t, run.Rendered, "# COUNCIL VERDICT:")

	require.NotNil(t, store.run)
	assert.Equal(t, "conv-1", store.conversationID)
}

func TestDeliberateProviderFailureIsTolerated(t *testing.T) {
	o := NewOrchestrator(simulatedCouncil(), &staticProvider{err: errors.New("quote feed down")}, nil, nil, logger.Nop())

	run, err := o.Deliberate(context.Background(), "conv-1", "question", RunOptions{ReducedPanel: true})
	require.NoError(t, err)
	assert.Equal(t, 3, run.Metadata.OpinionsCount)
}

func TestDeliberateAllAgentsFailed(t *testing.T) {
	inv := &scriptedInvoker{errs: map[string]error{
		"test/quant": errors.New("down"),
		"test/risk":  errors.New("down"),
		"test/macro": errors.New("down"),
	}}
	o := NewOrchestrator(New(inv, testConfig(), logger.Nop()), nil, nil, nil, logger.Nop())

	_, err := o.Deliberate(context.Background(), "conv-1", "question", RunOptions{ReducedPanel: true})
	assert.ErrorIs(t, err, ErrNoOpinions)
}

func TestDeliberateStoreFailureSurfaces(t *testing.T) {
	store := &recordingStore{err: errors.New("postgres is away")}
	o := NewOrchestrator(simulatedCouncil(), nil, store, nil, logger.Nop())

	_, err := o.Deliberate(context.Background(), "conv-1", "question", RunOptions{})
	assert.ErrorContains(t, err, "postgres is away")
}

// fakeMemory records verdicts and replays a fixed prior summary.
type fakeMemory struct {
	prior    string
	recorded []schema.ChairmanSynthesis
}

func (m *fakeMemory) RelevantContext(context.Context, int) (string, error) {
	return m.prior, nil
}

func (m *fakeMemory) Record(_ context.Context, _ string, s schema.ChairmanSynthesis) error {
	m.recorded = append(m.recorded, s)
	return nil
}

func TestDeliberateRecordsVerdictMemory(t *testing.T) {
	mem := &fakeMemory{prior: "Previous council verdicts: HOLD on NVDA"}
	o := NewOrchestrator(simulatedCouncil(), nil, nil, mem, logger.Nop())

	run, err := o.Deliberate(context.Background(), "conv-1", "question", RunOptions{ReducedPanel: true})
	require.NoError(t, err)

	require.Len(t, mem.recorded, 1)
	assert.Equal(t, run.Synthesis.FinalVerdict, mem.recorded[0].FinalVerdict)
}

func TestDeliberateStreamOrdering(t *testing.T) {
	o := NewOrchestrator(simulatedCouncil(), nil, nil, nil, logger.Nop())

	var events []Event
	for ev := range o.DeliberateStream(context.Background(), "conv-1", "question", RunOptions{ReducedPanel: true}) {
		events = append(events, ev)
	}

	require.Len(t, events, 6)
	assert.Equal(t, EventStatus, events[0].Type)
	assert.Equal(t, 1, events[0].Stage)
	assert.Equal(t, EventData, events[1].Type)
	assert.Equal(t, 1, events[1].Stage)
	assert.Equal(t, EventStatus, events[2].Type)
	assert.Equal(t, 2, events[2].Stage)
	assert.Equal(t, EventData, events[3].Type)
	assert.Equal(t, 2, events[3].Stage)
	assert.Equal(t, EventStatus, events[4].Type)
	assert.Equal(t, 3, events[4].Stage)
	assert.Equal(t, EventResult, events[5].Type)

	rendered, ok := events[5].Content.(string)
	require.True(t, ok)
	assert.Contains(t, rendered, "# COUNCIL VERDICT:")
}

func TestDeliberateStreamAllAgentsFailed(t *testing.T) {
	inv := &scriptedInvoker{errs: map[string]error{
		"test/quant": errors.New("down"),
		"test/risk":  errors.New("down"),
		"test/macro": errors.New("down"),
	}}
	o := NewOrchestrator(New(inv, testConfig(), logger.Nop()), nil, nil, nil, logger.Nop())

	var events []Event
	for ev := range o.DeliberateStream(context.Background(), "conv-1", "question", RunOptions{ReducedPanel: true}) {
		events = append(events, ev)
	}

	require.Len(t, events, 2)
	assert.Equal(t, EventStatus, events[0].Type)
	assert.Equal(t, EventError, events[1].Type)
	assert.Equal(t, ErrNoOpinions.Error(), events[1].Message)
}

func TestGenerateTitle(t *testing.T) {
	inv := &scriptedInvoker{responses: map[string]string{
		"test/title": `"NVDA Entry Timing"` + "\n",
	}}
	o := NewOrchestrator(New(inv, testConfig(), logger.Nop()), nil, nil, nil, logger.Nop())

	title := o.GenerateTitle(context.Background(), "Should I buy NVDA now or wait?")
	assert.Equal(t, "NVDA Entry Timing", title)
}

func TestGenerateTitleFallback(t *testing.T) {
	inv := &scriptedInvoker{errs: map[string]error{"test/title": errors.New("down")}}
	o := NewOrchestrator(New(inv, testConfig(), logger.Nop()), nil, nil, nil, logger.Nop())

	title := o.GenerateTitle(context.Background(), "question")
	assert.Equal(t, "New Conversation", title)
}

func TestGenerateTitleTruncation(t *testing.T) {
	long := strings.Repeat("Very Long Title ", 10)
	inv := &scriptedInvoker{responses: map[string]string{"test/title": long}}
	o := NewOrchestrator(New(inv, testConfig(), logger.Nop()), nil, nil, nil, logger.Nop())

	title := o.GenerateTitle(context.Background(), "question")
	assert.Len(t, title, 50)
	assert.True(t, strings.HasSuffix(title, "..."))
}

func TestGenerateTitleTruncationMultibyte(t *testing.T) {
	long := strings.Repeat("엔비디아 매수 시점 판단 ", 10)
	inv := &scriptedInvoker{responses: map[string]string{"test/title": long}}
	o := NewOrchestrator(New(inv, testConfig(), logger.Nop()), nil, nil, nil, logger.Nop())

	title := o.GenerateTitle(context.Background(), "question")
	assert.True(t, utf8.ValidString(title))
	assert.Len(t, []rune(title), 50)
	assert.True(t, strings.HasSuffix(title, "..."))
}

func TestDeliberationContext(t *testing.T) {
	full := deliberationContext("the question", "SNAPSHOT", "last time we said HOLD")
	assert.Contains(t, full, "[REAL-TIME MARKET DATA SNAPSHOT]")
	assert.Contains(t, full, "SNAPSHOT")
	assert.Contains(t, full, "[PRIOR TURN SUMMARY]")
	assert.Contains(t, full, "the question")

	bare := deliberationContext("the question", "", "")
	assert.NotContains(t, bare, "[REAL-TIME MARKET DATA SNAPSHOT]")
	assert.NotContains(t, bare, "[PRIOR TURN SUMMARY]")
}

func TestReviewContextHidesIdentities(t *testing.T) {
	opinions := []schema.Opinion{
		{AgentName: "Quant", Role: "Quant", Sentiment: schema.SentimentBullish, Confidence: 80, RiskScore: 3, KeyArguments: []string{"momentum"}},
		{AgentName: "Risk Manager", Role: "Risk Manager", Sentiment: schema.SentimentBearish, Confidence: 70, RiskScore: 8},
	}
	labels := []string{"Response A", "Response B"}

	ctx := reviewContext("q", labels, opinions)

	assert.Contains(t, ctx, "Response A")
	assert.Contains(t, ctx, "Response B")
	assert.NotContains(t, ctx, "Quant")
	assert.NotContains(t, ctx, "Risk Manager")
}
