package market

import "time"

// Quote is a single-ticker market quote with the trend fields the
// deliberation context needs.
type Quote struct {
	Ticker               string  `json:"ticker"`
	Name                 string  `json:"name,omitempty"`
	Price                float64 `json:"price"`
	ChangePercent        float64 `json:"change_percent"`
	Volume               int64   `json:"volume"`
	MarketCap            int64   `json:"market_cap,omitempty"`
	TrailingPE           float64 `json:"trailing_pe,omitempty"`
	FiftyDayAverage      float64 `json:"fifty_day_average,omitempty"`
	TwoHundredDayAverage float64 `json:"two_hundred_day_average,omitempty"`
	FiftyTwoWeekHigh     float64 `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow      float64 `json:"fifty_two_week_low,omitempty"`
}

// Snapshot is a quote plus recent headlines, stamped at fetch time.
type Snapshot struct {
	Quote     Quote     `json:"quote"`
	Headlines []string  `json:"headlines"`
	FetchedAt time.Time `json:"fetched_at"`
}
