package service

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
)

// PriceCache holds the active bulk price snapshot. The snapshot is
// swapped as a whole on every successful fetch; readers always see a
// complete, self-consistent state.
type PriceCache struct {
	mu   sync.RWMutex
	snap *model.PriceSnapshot
}

func NewPriceCache() *PriceCache {
	return &PriceCache{}
}

// Replace installs a new snapshot. A snapshot older than the current
// one is ignored, keeping the fetch timestamp monotonic.
func (c *PriceCache) Replace(snap *model.PriceSnapshot) {
	if snap == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.snap != nil && snap.FetchedAt.Before(c.snap.FetchedAt) {
		return
	}
	c.snap = snap
}

// Snapshot returns the active snapshot, nil before the first fetch.
func (c *PriceCache) Snapshot() *model.PriceSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Lookup returns every price entry recorded for a market hash name.
// The feed may carry duplicate names, so zero or more entries come back.
func (c *PriceCache) Lookup(marketHashName string) []model.PriceEntry {
	return c.Snapshot().Lookup(marketHashName)
}

// FirstPrice returns the latest price of the first entry for a name.
// Taking the first entry is the documented selection rule for
// ambiguous duplicate feed keys.
func (c *PriceCache) FirstPrice(marketHashName string) *decimal.Decimal {
	entries := c.Lookup(marketHashName)
	if len(entries) == 0 {
		return nil
	}
	price := entries[0].Latest
	return &price
}

// Age reports the staleness of the active snapshot at the given time.
// It is zero before the first successful fetch.
func (c *PriceCache) Age(now time.Time) time.Duration {
	return c.Snapshot().Age(now)
}
