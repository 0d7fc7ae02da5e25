package council

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wonny/quorum/backend/internal/llm"
	"github.com/wonny/quorum/backend/internal/schema"
	"github.com/wonny/quorum/backend/pkg/logger"
)

// ErrNoOpinions is the terminal stage-exhaustion failure: the Stage 1 panel
// was empty or every invocation degraded. Stages 2 and 3 never run.
var ErrNoOpinions = errors.New("all council agents failed to respond, please try again")

// ContextProvider supplies the pre-formatted market/context blob Stage 1
// consumes. The orchestrator treats it as opaque text.
type ContextProvider interface {
	Context(ctx context.Context) (string, error)
}

// RunStore receives the completed run as an opaque triple.
type RunStore interface {
	SaveRun(ctx context.Context, conversationID string, run *RunResult) error
}

// VerdictMemory is the episodic memory: past verdicts replayed into new
// deliberations and new verdicts recorded after synthesis.
type VerdictMemory interface {
	RelevantContext(ctx context.Context, limit int) (string, error)
	Record(ctx context.Context, query string, synthesis schema.ChairmanSynthesis) error
}

// RunOptions is the per-request configuration surface.
type RunOptions struct {
	ReducedPanel bool
	TutorMode    bool
	PriorSummary string // prior-turn summary, empty on a first turn
}

// Metadata accompanies the blocking result.
type Metadata struct {
	OpinionsCount     int                       `json:"opinions_count"`
	ReviewsCount      int                       `json:"reviews_count"`
	AggregateRankings []schema.AggregateRanking `json:"aggregate_rankings"`
	LabelToAgent      map[string]string         `json:"label_to_agent"`
}

// RunResult is the completed deliberation triple plus metadata.
type RunResult struct {
	Opinions  []schema.Opinion         `json:"stage1"`
	Reviews   []schema.PeerReview      `json:"stage2"`
	Synthesis schema.ChairmanSynthesis `json:"-"`
	Rendered  string                   `json:"stage3"`
	Metadata  Metadata                 `json:"metadata"`
}

// Orchestrator sequences the three stages. It is the only component that
// touches the external collaborators (market context, persistence).
// ⭐ SSOT: 스테이지 순서는 여기서만 결정
type Orchestrator struct {
	council  *Council
	provider ContextProvider // nil: deliberate without market context
	store    RunStore        // nil: do not persist
	memory   VerdictMemory   // nil: no episodic memory
	logger   *logger.Logger
}

// NewOrchestrator wires the council to its collaborators.
func NewOrchestrator(c *Council, provider ContextProvider, store RunStore, memory VerdictMemory, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		council:  c,
		provider: provider,
		store:    store,
		memory:   memory,
		logger:   log,
	}
}

// marketContext fetches the context blob. A collaborator failure is
// tolerated: the deliberation proceeds on the bare query.
func (o *Orchestrator) marketContext(ctx context.Context) string {
	if o.provider == nil {
		return ""
	}
	blob, err := o.provider.Context(ctx)
	if err != nil {
		o.logger.WithError(err).Warn("Market context unavailable, proceeding without it")
		return ""
	}
	return blob
}

// priorSummary prefers the caller-supplied summary; otherwise replays the
// latest remembered verdicts. Memory failures are tolerated.
func (o *Orchestrator) priorSummary(ctx context.Context, opts RunOptions) string {
	if opts.PriorSummary != "" || o.memory == nil {
		return opts.PriorSummary
	}
	summary, err := o.memory.RelevantContext(ctx, o.council.cfg.MemoryLimit)
	if err != nil {
		o.logger.WithError(err).Warn("Verdict memory unavailable, proceeding without it")
		return ""
	}
	return summary
}

// remember records the verdict, best effort.
func (o *Orchestrator) remember(ctx context.Context, query string, synthesis schema.ChairmanSynthesis) {
	if o.memory == nil {
		return
	}
	if err := o.memory.Record(ctx, query, synthesis); err != nil {
		o.logger.WithError(err).Warn("Failed to record verdict memory")
	}
}

func allDegraded(opinions []schema.Opinion) bool {
	for _, op := range opinions {
		if !op.Degraded() {
			return false
		}
	}
	return true
}

// Deliberate runs Stage 1 → Stage 2 → Stage 3 to completion and returns the
// full triple. Stage N+1 never starts before stage N has fully joined.
func (o *Orchestrator) Deliberate(ctx context.Context, conversationID, query string, opts RunOptions) (*RunResult, error) {
	marketContext := o.marketContext(ctx)
	prior := o.priorSummary(ctx, opts)

	opinions := o.council.CollectOpinions(ctx, query, marketContext, opts.ReducedPanel, prior)
	if len(opinions) == 0 || allDegraded(opinions) {
		return nil, ErrNoOpinions
	}

	reviews, labelToAgent := o.council.CollectReviews(ctx, query, opinions)
	aggregate := AggregateRankings(reviews, labelToAgent)

	synthesis := o.council.Synthesize(ctx, query, opinions, reviews, opts.TutorMode)
	o.remember(ctx, query, synthesis)

	run := &RunResult{
		Opinions:  opinions,
		Reviews:   reviews,
		Synthesis: synthesis,
		Rendered:  Render(synthesis),
		Metadata: Metadata{
			OpinionsCount:     len(opinions),
			ReviewsCount:      len(reviews),
			AggregateRankings: aggregate,
			LabelToAgent:      labelToAgent,
		},
	}

	if o.store != nil {
		if err := o.store.SaveRun(ctx, conversationID, run); err != nil {
			// Persistence is not ours to recover; surface it.
			return nil, err
		}
	}

	return run, nil
}

// Event types on the streaming form.
const (
	EventStatus = "status"
	EventData   = "data"
	EventResult = "result"
	EventError  = "error"
)

// Event is one discrete message on the deliberation stream. The sequence is
// append-only; the channel closing is the sole completion signal.
type Event struct {
	Type    string      `json:"type"`
	Stage   int         `json:"stage,omitempty"`
	Message string      `json:"message,omitempty"`
	Content interface{} `json:"content,omitempty"`
}

// DeliberateStream runs the same three stages and emits ordered events:
// a status event before each stage, a data event after Stage 1 and Stage 2
// carrying their full payload, and a terminal result event carrying the
// rendered document.
func (o *Orchestrator) DeliberateStream(ctx context.Context, conversationID, query string, opts RunOptions) <-chan Event {
	events := make(chan Event, 8)

	go func() {
		defer close(events)

		marketContext := o.marketContext(ctx)
		prior := o.priorSummary(ctx, opts)

		events <- Event{Type: EventStatus, Stage: 1, Message: "Collecting opinions from the council panel"}
		opinions := o.council.CollectOpinions(ctx, query, marketContext, opts.ReducedPanel, prior)
		if len(opinions) == 0 || allDegraded(opinions) {
			events <- Event{Type: EventError, Message: ErrNoOpinions.Error()}
			return
		}
		events <- Event{Type: EventData, Stage: 1, Content: opinions}

		events <- Event{Type: EventStatus, Stage: 2, Message: "Running anonymized peer review"}
		reviews, labelToAgent := o.council.CollectReviews(ctx, query, opinions)
		events <- Event{Type: EventData, Stage: 2, Content: reviews}

		events <- Event{Type: EventStatus, Stage: 3, Message: "Chairman is synthesizing the verdict"}
		synthesis := o.council.Synthesize(ctx, query, opinions, reviews, opts.TutorMode)
		o.remember(ctx, query, synthesis)
		rendered := Render(synthesis)

		if o.store != nil {
			run := &RunResult{
				Opinions:  opinions,
				Reviews:   reviews,
				Synthesis: synthesis,
				Rendered:  rendered,
				Metadata: Metadata{
					OpinionsCount:     len(opinions),
					ReviewsCount:      len(reviews),
					AggregateRankings: AggregateRankings(reviews, labelToAgent),
					LabelToAgent:      labelToAgent,
				},
			}
			if err := o.store.SaveRun(ctx, conversationID, run); err != nil {
				events <- Event{Type: EventError, Message: err.Error()}
				return
			}
		}

		events <- Event{Type: EventResult, Content: rendered}
	}()

	return events
}

// titleTimeout is the short budget for title generation.
const titleTimeout = 30 * time.Second

// GenerateTitle asks the title model for a 3-5 word conversation title.
// Any failure falls back to a generic title.
func (o *Orchestrator) GenerateTitle(ctx context.Context, query string) string {
	result, err := o.council.inv.Invoke(ctx, o.council.cfg.TitleModel,
		[]llm.Message{{Role: "user", Content: titlePrompt(query)}}, titleTimeout)
	if err != nil {
		o.logger.WithError(err).Warn("Title generation failed")
		return "New Conversation"
	}

	title := strings.Trim(strings.TrimSpace(result.Content), `"'`)
	if title == "" {
		return "New Conversation"
	}
	// Truncate on runes: model titles can be multibyte (Korean, CJK).
	if runes := []rune(title); len(runes) > 50 {
		title = string(runes[:47]) + "..."
	}
	return title
}
