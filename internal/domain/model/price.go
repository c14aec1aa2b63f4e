package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceEntry is one price record from the bulk feed. A single
// market_hash_name may carry several entries: the feed does not
// guarantee key uniqueness.
type PriceEntry struct {
	MarketHashName string
	Latest         decimal.Decimal
	Min            decimal.Decimal
	Max            decimal.Decimal
	Sold24H        int
	Sold7D         int
	Sold30D        int
	FirstSeen      int64
	UpdatedAt      int64
}

// PriceSnapshot is the latest bulk feed state. It is replaced as a
// whole on every successful fetch, never merged.
type PriceSnapshot struct {
	Source    string
	Currency  string
	FetchedAt time.Time
	Entries   map[string][]PriceEntry
}

// Lookup returns every entry recorded for a market hash name.
func (s *PriceSnapshot) Lookup(marketHashName string) []PriceEntry {
	if s == nil {
		return nil
	}
	return s.Entries[marketHashName]
}

// Age reports how long ago the snapshot was fetched.
func (s *PriceSnapshot) Age(now time.Time) time.Duration {
	if s == nil || s.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(s.FetchedAt)
}
