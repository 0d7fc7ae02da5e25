package llm

import (
	"context"
	"sync"
	"time"
)

// Call describes one agent invocation in a fan-out.
type Call struct {
	Name     string // caller-assigned slot identity (role or model name)
	Model    string
	Messages []Message
	Timeout  time.Duration
}

// Outcome is the uniform per-slot result of a fan-out. Exactly one of
// Content/Err is meaningful; a non-nil Err marks a degraded slot.
type Outcome struct {
	Name    string
	Content string
	Err     error
}

// FanOut launches every call concurrently and joins when all have either
// completed or exhausted their individual timeout. Partial failure is
// tolerated: a failed slot carries its error, it never cancels siblings.
// Outcomes preserve input order regardless of completion order.
func FanOut(ctx context.Context, inv Invoker, calls []Call) []Outcome {
	outcomes := make([]Outcome, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(slot int, c Call) {
			defer wg.Done()
			result, err := inv.Invoke(ctx, c.Model, c.Messages, c.Timeout)
			outcomes[slot] = Outcome{
				Name:    c.Name,
				Content: result.Content,
				Err:     err,
			}
		}(i, call)
	}
	wg.Wait()

	return outcomes
}
