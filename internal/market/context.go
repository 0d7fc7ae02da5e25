package market

import (
	"context"
	"fmt"
	"strings"
)

// Context renders the watchlist snapshots into the text block the council
// receives. A single failing ticker is skipped; the call fails only when
// every ticker fails.
func (s *Service) Context(ctx context.Context) (string, error) {
	if len(s.cfg.Watchlist) == 0 {
		return "", nil
	}

	var b strings.Builder
	rendered := 0
	for _, ticker := range s.cfg.Watchlist {
		snapshot, err := s.Snapshot(ctx, ticker)
		if err != nil {
			s.logger.WithError(err).WithField("ticker", ticker).Warn("Skipping ticker in market context")
			continue
		}
		writeSnapshot(&b, snapshot)
		rendered++
	}

	if rendered == 0 {
		return "", fmt.Errorf("no market data available for watchlist %v", s.cfg.Watchlist)
	}
	return b.String(), nil
}

// writeSnapshot renders one ticker block.
func writeSnapshot(b *strings.Builder, snapshot *Snapshot) {
	q := snapshot.Quote

	fmt.Fprintf(b, "=== %s", q.Ticker)
	if q.Name != "" {
		fmt.Fprintf(b, " (%s)", q.Name)
	}
	b.WriteString(" ===\n")

	fmt.Fprintf(b, "Price: $%.2f (%+.2f%%)\n", q.Price, q.ChangePercent)
	if q.Volume > 0 {
		fmt.Fprintf(b, "Volume: %d\n", q.Volume)
	}
	if q.MarketCap > 0 {
		fmt.Fprintf(b, "Market cap: %d\n", q.MarketCap)
	}
	if q.TrailingPE > 0 {
		fmt.Fprintf(b, "Trailing P/E: %.2f\n", q.TrailingPE)
	}
	if q.FiftyDayAverage > 0 {
		fmt.Fprintf(b, "SMA 50: $%.2f\n", q.FiftyDayAverage)
	}
	if q.TwoHundredDayAverage > 0 {
		fmt.Fprintf(b, "SMA 200: $%.2f\n", q.TwoHundredDayAverage)
	}
	if q.FiftyTwoWeekHigh > 0 {
		fmt.Fprintf(b, "52-week range: $%.2f - $%.2f\n", q.FiftyTwoWeekLow, q.FiftyTwoWeekHigh)
	}

	if len(snapshot.Headlines) > 0 {
		b.WriteString("Recent headlines:\n")
		for _, h := range snapshot.Headlines {
			fmt.Fprintf(b, "- %s\n", h)
		}
	}
	b.WriteString("\n")
}
