package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quorum/backend/internal/extract"
)

func TestSimulatorRoleHints(t *testing.T) {
	sim := &Simulator{Delay: 0}
	ctx := context.Background()

	tests := []struct {
		prompt  string
		wantKey string
	}{
		{"You are the lead Quantitative analyst of a hedge fund.", "sentiment"},
		{"You are the Chief Risk Officer (CRO).", "sentiment"},
		{"You are the global Macro strategist.", "sentiment"},
		{"You are a senior financial Reviewer scoring anonymized analyses.", "rankings"},
		{"You are the Chairman of the financial council.", "final_verdict"},
		{"Act as a senior financial analyst.", "sentiment"},
	}

	for _, tt := range tests {
		result, err := sim.Invoke(ctx, "any/model", []Message{{Role: "system", Content: tt.prompt}}, time.Second)
		require.NoError(t, err)

		parsed := extract.JSON(result.Content)
		assert.Contains(t, parsed, tt.wantKey, "prompt: %s", tt.prompt)
	}
}

func TestSimulatorChairmanWinsOverEmbeddedRoles(t *testing.T) {
	sim := &Simulator{Delay: 0}

	// The chairman report embeds quant/risk/macro output; the hint must
	// still resolve to the chairman payload.
	prompt := "You are the Chairman. STAGE 1: Quant said X, Risk Manager said Y, Macro said Z."
	result, err := sim.Invoke(context.Background(), "m", []Message{{Role: "system", Content: prompt}}, time.Second)
	require.NoError(t, err)

	parsed := extract.JSON(result.Content)
	assert.Equal(t, "HOLD", parsed["final_verdict"])
}

func TestSimulatorHonorsContextCancellation(t *testing.T) {
	sim := &Simulator{Delay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sim.Invoke(ctx, "m", nil, time.Second)
	assert.Error(t, err)
}

// flakyInvoker fails for configured slot names.
type flakyInvoker struct {
	fail map[string]bool
}

func (f *flakyInvoker) Invoke(ctx context.Context, model string, messages []Message, timeout time.Duration) (Result, error) {
	if f.fail[model] {
		return Result{}, errors.New("simulated transport error")
	}
	return Result{Content: `{"ok": true}`}, nil
}

func TestFanOutPartialFailure(t *testing.T) {
	inv := &flakyInvoker{fail: map[string]bool{"bad/model": true}}

	calls := []Call{
		{Name: "a", Model: "good/model"},
		{Name: "b", Model: "bad/model"},
		{Name: "c", Model: "good/model"},
	}

	outcomes := FanOut(context.Background(), inv, calls)
	require.Len(t, outcomes, 3)

	// Input order preserved, one degraded slot, siblings unaffected
	assert.Equal(t, "a", outcomes[0].Name)
	assert.Equal(t, "b", outcomes[1].Name)
	assert.Equal(t, "c", outcomes[2].Name)
	assert.NoError(t, outcomes[0].Err)
	assert.Error(t, outcomes[1].Err)
	assert.NoError(t, outcomes[2].Err)
	assert.Equal(t, `{"ok": true}`, outcomes[2].Content)
}

func TestFanOutEmpty(t *testing.T) {
	outcomes := FanOut(context.Background(), &flakyInvoker{}, nil)
	assert.Empty(t, outcomes)
}
