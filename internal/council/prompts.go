package council

import (
	"fmt"
	"strings"

	"github.com/wonny/quorum/backend/internal/llm"
	"github.com/wonny/quorum/backend/internal/schema"
)

// Prompt assembly is pure string building, kept apart from invocation and
// parsing so content can be tested without any network behavior.

const jsonInstruction = `
ANSWER ONLY IN JSON. No introduction, no markdown.
Required format:
`

const opinionFormat = `{
    "sentiment": "BULLISH" | "BEARISH" | "NEUTRAL",
    "confidence": <0-100>,
    "key_arguments": ["argument 1", "argument 2", "argument 3"],
    "risk_score": <0-10>
}`

// quantPrompt drives the quantitative specialist.
const quantPrompt = `You are the lead Quantitative analyst of an elite hedge fund.
Your job is not to describe the data but to compute PROBABILITIES.

GUIDELINES:
1. Do not say "the price is below the SMA200". Say "the asset is in a bearish mean-reversion regime" or "structural breakdown".
2. Analyze the velocity of the move. Is the decline accelerating (panic) or decelerating (accumulation)?
3. Use terms like: standard deviation, inefficiency, overextension, statistical edge.
4. If the Sharpe ratio is low (< 0.5), call the asset "mathematically inefficient".

GOAL: determine whether the trade has positive mathematical expectancy.
` + jsonInstruction + opinionFormat

// riskPrompt drives the risk specialist.
const riskPrompt = `You are the Chief Risk Officer (CRO). You are paranoid and pessimistic.
Your job is mental STRESS TESTING.

GUIDELINES:
1. Ignore potential gains. Look only at what can go wrong.
2. High debt plus negative cash flow means "solvency/dilution risk". Say so.
3. Volatility above 50% means "volatility drag", the mathematical erosion of capital.
4. Hunt for false diversification: an asset that crashes with SPY offers no protection.
5. Ask yourself: "If a recession starts tomorrow, does this position survive?"

GOAL: protect capital at all costs.
` + jsonInstruction + opinionFormat

// macroPrompt drives the macro specialist.
const macroPrompt = `You are the global Macro strategist.
Your job is to connect NEWS, SECTOR and FUNDAMENTALS.
IGNORE technical analysis (SMA, RSI) - that belongs to the quant.

GUIDELINES:
1. Read the provided news. What is the dominant narrative? (turnaround, growth trap, sector rotation)
2. Analyze the multiples (P/E, PEG). Is the market pricing growth that does not exist?
3. Look at the business: are margins sustainable? Is debt a problem at current rates?
4. Use institutional language: repricing, catalysts, headwinds/tailwinds.

GOAL: decide whether the underlying business justifies a long-term position.
` + jsonInstruction + opinionFormat

// generalistPrompt drives the unnamed analysts added on the full panel.
const generalistPrompt = `Act as a senior financial analyst.
Distill the data into actionable insight. Be direct and professional.
` + jsonInstruction + opinionFormat

// reviewerPrompt drives Stage 2 scoring of anonymized opinions.
const reviewerPrompt = `You are a senior financial Reviewer.
Evaluate the anonymized analyses you receive. Be ruthless.

EVALUATION CRITERIA:
- Depth: did they merely read the numbers or understand the context?
- Logic: do the conclusions follow from the premises?
- Prudence: did they underweight obvious risks (high debt, broken trend)?

If an analysis is shallow (e.g. it only lists SMA and RSI), score it below 5
and write in the critique: "Shallow analysis, no insight".
` + jsonInstruction + `{
    "rankings": [
        { "target_agent_id": "Response A", "score": <0-10>, "critique": "Sharp, specific critique" }
    ]
}`

// chairmanPrompt drives the Stage 3 synthesis.
const chairmanPrompt = `You are the Chairman of the financial council.
Your job is not to summarize but to DECIDE.

GUIDELINES:
1. Synthesize the conflict. (e.g. "The quant sees a technical bounce, but macro fears insolvency.")
2. Weigh the opinions. If the risk officer flags mortal danger (risk score > 8), you MUST override the optimists.
3. Deliver an operational strategy, not just buy/sell. (e.g. "Accumulate only above X", "Hedge with options".)
4. Use an authoritative, final, professional tone.
` + jsonInstruction + `{
    "final_verdict": "BUY" | "HOLD" | "SELL" | "PANIC",
    "consensus_score": <0-100>,
    "executive_summary": "Deep strategic synthesis...",
    "actionable_steps": ["Operational step 1", "Operational step 2", "Operational step 3"],
    "risk_warning": "Tail-risk analysis...",
    "tutor_explanation": "Plain-language explanation (optional)"
}`

// tutorAddendum is appended to the chairman prompt when tutor mode is on.
const tutorAddendum = `

[TUTOR PROTOCOL ACTIVE]
The user asked for the teaching mode. In "tutor_explanation" you MUST:
1. Translate the jargon above (drawdown, volatility, RSI) using everyday analogies (weather, cars, health).
2. Give an immediate visual judgment (green/yellow/red light).
3. Close with one takeaway sentence for someone who knows nothing about finance.`

// exchange builds the two-message exchange every agent receives.
func exchange(rolePrompt, context string) []llm.Message {
	return []llm.Message{
		{Role: "system", Content: rolePrompt},
		{Role: "user", Content: context},
	}
}

// deliberationContext concatenates the opaque market/context blob, the prior
// turn summary and the user query into the shared Stage 1 context.
func deliberationContext(query, marketContext, priorSummary string) string {
	var b strings.Builder
	if marketContext != "" {
		b.WriteString("[REAL-TIME MARKET DATA SNAPSHOT]\n")
		b.WriteString("Use this data as the only source of truth for prices and metrics.\n\n")
		b.WriteString(marketContext)
		b.WriteString("\n\n")
	}
	if priorSummary != "" {
		b.WriteString("[PRIOR TURN SUMMARY]\n")
		b.WriteString(priorSummary)
		b.WriteString("\n\n")
	}
	b.WriteString("USER QUESTION:\n")
	b.WriteString(query)
	return b.String()
}

// reviewContext renders the anonymized opinion set one reviewer receives.
// Only anonymized labels appear; real identities never reach a reviewer.
func reviewContext(query string, labels []string, opinions []schema.Opinion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original question:\n%s\n\nAnonymized analyses:\n", query)
	for i, op := range opinions {
		fmt.Fprintf(&b, "\n%s:\n", labels[i])
		fmt.Fprintf(&b, "- Sentiment: %s\n", op.Sentiment)
		fmt.Fprintf(&b, "- Confidence: %d/100\n", op.Confidence)
		fmt.Fprintf(&b, "- Risk score: %d/10\n", op.RiskScore)
		for _, arg := range op.KeyArguments {
			fmt.Fprintf(&b, "- Argument: %s\n", arg)
		}
	}
	b.WriteString("\nScore each analysis by its label.")
	return b.String()
}

// chairmanReport renders the composite Stage 3 report: every opinion with
// its role, sentiment, confidence, risk and arguments, then every peer
// review with its per-target scores and critiques.
func chairmanReport(query string, opinions []schema.Opinion, reviews []schema.PeerReview) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Original question:\n%s\n", query)

	b.WriteString("\nSTAGE 1 - Individual opinions:\n")
	for _, op := range opinions {
		fmt.Fprintf(&b, "\nAgent: %s (%s)\n", op.AgentName, op.Role)
		fmt.Fprintf(&b, "Sentiment: %s | Confidence: %d/100 | Risk: %d/10\n",
			op.Sentiment, op.Confidence, op.RiskScore)
		for _, arg := range op.KeyArguments {
			fmt.Fprintf(&b, "- %s\n", arg)
		}
	}

	b.WriteString("\nSTAGE 2 - Peer reviews:\n")
	for _, review := range reviews {
		fmt.Fprintf(&b, "\nReviewer: %s\n", review.ReviewerName)
		for _, r := range review.Rankings {
			fmt.Fprintf(&b, "- %s: %d/10 (%s)\n", r.TargetAgentID, r.Score, r.Critique)
		}
	}

	return b.String()
}

// titlePrompt asks for a short conversation title.
func titlePrompt(query string) string {
	return fmt.Sprintf(`Generate a very short title (3-5 words maximum) that summarizes the following question.
The title should be concise and descriptive. Do not use quotes or punctuation in the title.

Question: %s

Title:`, query)
}
