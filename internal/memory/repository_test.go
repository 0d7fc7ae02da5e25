package memory

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestFormatEntries(t *testing.T) {
	entries := []Entry{
		{
			Query:          "Should I buy NVDA now?",
			FinalVerdict:   "HOLD",
			ConsensusScore: 55,
			DecidedAt:      time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
		},
		{
			Query:          "Is VOO still a safe core holding?",
			FinalVerdict:   "BUY",
			ConsensusScore: 82,
			DecidedAt:      time.Date(2026, 8, 18, 9, 0, 0, 0, time.UTC),
		},
	}

	out := FormatEntries(entries)

	assert.Contains(t, out, "Previous council verdicts")
	assert.Contains(t, out, "[2026-08-20] HOLD (consensus 55/100)")
	assert.Contains(t, out, "[2026-08-18] BUY (consensus 82/100)")
	assert.Contains(t, out, "Should I buy NVDA now?")
}

func TestFormatEntriesEmpty(t *testing.T) {
	assert.Empty(t, FormatEntries(nil))
}

func TestFormatEntriesTruncatesLongQueries(t *testing.T) {
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'q'
	}

	out := FormatEntries([]Entry{{
		Query:        string(long),
		FinalVerdict: "SELL",
		DecidedAt:    time.Now(),
	}})

	assert.Contains(t, out, "...")
	assert.NotContains(t, out, string(long))
}

func TestFormatEntriesTruncatesMultibyteQueries(t *testing.T) {
	long := strings.Repeat("엔비디아를 지금 사야 할까요? ", 20)

	out := FormatEntries([]Entry{{
		Query:        long,
		FinalVerdict: "HOLD",
		DecidedAt:    time.Now(),
	}})

	assert.True(t, utf8.ValidString(out))
	assert.Contains(t, out, "...")
	assert.NotContains(t, out, long)
}
