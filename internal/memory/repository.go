package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/quorum/backend/internal/schema"
)

// Entry is one remembered verdict.
type Entry struct {
	Query          string    `json:"query"`
	FinalVerdict   string    `json:"final_verdict"`
	ConsensusScore int       `json:"consensus_score"`
	Summary        string    `json:"summary"`
	DecidedAt      time.Time `json:"decided_at"`
}

// Repository is the council's episodic memory: past verdicts that get
// replayed into later deliberations as prior context.
// ⭐ SSOT: 과거 판정 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new memory repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record stores a completed verdict.
func (r *Repository) Record(ctx context.Context, query string, synthesis schema.ChairmanSynthesis) error {
	insert := `
		INSERT INTO council.verdicts (query, final_verdict, consensus_score, summary, decided_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.pool.Exec(ctx, insert,
		query, synthesis.FinalVerdict, synthesis.ConsensusScore,
		synthesis.ExecutiveSummary, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record verdict: %w", err)
	}

	return nil
}

// Recent returns the latest verdicts, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT query, final_verdict, consensus_score, summary, decided_at
		FROM council.verdicts
		ORDER BY decided_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query verdicts: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)

	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Query, &e.FinalVerdict, &e.ConsensusScore, &e.Summary, &e.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verdict: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return entries, nil
}

// RelevantContext renders the latest verdicts as the prior-summary block
// injected into a new deliberation. Empty string when nothing is remembered.
func (r *Repository) RelevantContext(ctx context.Context, limit int) (string, error) {
	entries, err := r.Recent(ctx, limit)
	if err != nil {
		return "", err
	}
	return FormatEntries(entries), nil
}

// FormatEntries renders memory entries into the prior-summary text.
func FormatEntries(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Previous council verdicts (newest first):\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "- [%s] %s (consensus %d/100) on: %s\n",
			e.DecidedAt.Format("2006-01-02"), e.FinalVerdict, e.ConsensusScore, truncate(e.Query, 120))
	}
	return b.String()
}

// truncate shortens s to max runes, never cutting mid-rune.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
