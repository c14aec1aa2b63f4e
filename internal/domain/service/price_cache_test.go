package service_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/service"
)

func snapshotAt(fetchedAt time.Time, entries map[string][]model.PriceEntry) *model.PriceSnapshot {
	return &model.PriceSnapshot{
		Source:    "test-feed",
		Currency:  "RUB",
		FetchedAt: fetchedAt,
		Entries:   entries,
	}
}

func TestPriceCacheEmpty(t *testing.T) {
	cache := service.NewPriceCache()

	if cache.Snapshot() != nil {
		t.Error("expected nil snapshot before the first fetch")
	}
	if entries := cache.Lookup("AK-47 | Redline (Field-Tested)"); entries != nil {
		t.Errorf("expected nil entries, got %v", entries)
	}
	if price := cache.FirstPrice("AK-47 | Redline (Field-Tested)"); price != nil {
		t.Errorf("expected nil price, got %v", price)
	}
	if age := cache.Age(time.Now()); age != 0 {
		t.Errorf("expected zero age, got %v", age)
	}
}

func TestPriceCacheWholeSnapshotReplace(t *testing.T) {
	cache := service.NewPriceCache()
	now := time.Now()

	cache.Replace(snapshotAt(now, map[string][]model.PriceEntry{
		"AK-47 | Redline (Field-Tested)": {{Latest: decimal.NewFromInt(1500)}},
		"AWP | Asiimov (Minimal Wear)":   {{Latest: decimal.NewFromInt(9000)}},
	}))

	// The next snapshot drops the AWP row entirely: no merging.
	cache.Replace(snapshotAt(now.Add(time.Minute), map[string][]model.PriceEntry{
		"AK-47 | Redline (Field-Tested)": {{Latest: decimal.NewFromInt(1600)}},
	}))

	price := cache.FirstPrice("AK-47 | Redline (Field-Tested)")
	if price == nil || !price.Equal(decimal.NewFromInt(1600)) {
		t.Errorf("expected updated price 1600, got %v", price)
	}
	if entries := cache.Lookup("AWP | Asiimov (Minimal Wear)"); len(entries) != 0 {
		t.Errorf("expected dropped row to disappear, got %v", entries)
	}
}

func TestPriceCacheKeepsStateOnFailedFetch(t *testing.T) {
	cache := service.NewPriceCache()
	fetchedAt := time.Now().Add(-time.Minute)

	cache.Replace(snapshotAt(fetchedAt, map[string][]model.PriceEntry{
		"Glock-18 | Fade (Factory New)": {{Latest: decimal.NewFromInt(400)}},
	}))

	// A failed fetch replaces nothing; age keeps growing.
	cache.Replace(nil)

	price := cache.FirstPrice("Glock-18 | Fade (Factory New)")
	if price == nil || !price.Equal(decimal.NewFromInt(400)) {
		t.Errorf("expected price to survive a failed fetch, got %v", price)
	}
	age := cache.Age(fetchedAt.Add(2 * time.Minute))
	if age != 2*time.Minute {
		t.Errorf("expected age to keep growing, got %v", age)
	}
}

func TestPriceCacheIgnoresOlderSnapshot(t *testing.T) {
	cache := service.NewPriceCache()
	now := time.Now()

	cache.Replace(snapshotAt(now, map[string][]model.PriceEntry{
		"AK-47 | Redline (Field-Tested)": {{Latest: decimal.NewFromInt(1500)}},
	}))
	cache.Replace(snapshotAt(now.Add(-time.Hour), map[string][]model.PriceEntry{
		"AK-47 | Redline (Field-Tested)": {{Latest: decimal.NewFromInt(100)}},
	}))

	price := cache.FirstPrice("AK-47 | Redline (Field-Tested)")
	if price == nil || !price.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected newer snapshot to win, got %v", price)
	}
}

func TestPriceCacheFirstMatchOnDuplicates(t *testing.T) {
	cache := service.NewPriceCache()

	// The feed does not guarantee unique market hash names. The first
	// entry is the documented pick.
	cache.Replace(snapshotAt(time.Now(), map[string][]model.PriceEntry{
		"AK-47 | Redline (Field-Tested)": {
			{Latest: decimal.NewFromInt(1500)},
			{Latest: decimal.NewFromInt(1750)},
		},
	}))

	if entries := cache.Lookup("AK-47 | Redline (Field-Tested)"); len(entries) != 2 {
		t.Fatalf("expected both duplicate entries kept, got %d", len(entries))
	}
	price := cache.FirstPrice("AK-47 | Redline (Field-Tested)")
	if price == nil || !price.Equal(decimal.NewFromInt(1500)) {
		t.Errorf("expected first duplicate entry, got %v", price)
	}
}
