package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/service"
)

func TestHeldMarketHashNamesDeduplicates(t *testing.T) {
	assets := []model.Asset{
		{AssetID: "1", MarketHashName: "AK-47 | Redline (Field-Tested)"},
		{AssetID: "2", MarketHashName: "AK-47 | Redline (Field-Tested)"},
		{AssetID: "3", MarketHashName: "AWP | Asiimov (Minimal Wear)"},
		{AssetID: "4", MarketHashName: ""}, // untradable filler
	}

	names := service.HeldMarketHashNames(assets)

	if len(names) != 2 {
		t.Fatalf("expected 2 distinct names, got %v", names)
	}
	if names[0] != "AK-47 | Redline (Field-Tested)" || names[1] != "AWP | Asiimov (Minimal Wear)" {
		t.Errorf("unexpected names: %v", names)
	}
}

func TestReconcileAppliesSingleVolumeWrite(t *testing.T) {
	catalog := newFakeCatalog(
		model.CatalogItem{AssetID: 1, MarketHashName: "AK-47 | Redline (Field-Tested)", BotVolume: 0},
		model.CatalogItem{AssetID: 2, MarketHashName: "AWP | Asiimov (Minimal Wear)", BotVolume: 1},
	)
	client := &fakeTradeClient{inventory: []model.Asset{
		{AssetID: "1", MarketHashName: "AK-47 | Redline (Field-Tested)"},
		{AssetID: "2", MarketHashName: "AK-47 | Redline (Field-Tested)"},
	}}
	reconciler := service.NewInventoryReconciler(
		zap.NewNop(), client, catalog, "76561198000000000", time.Minute)

	reconciler.Reconcile(context.Background())

	// One write carries the whole assignment: the held item is flagged
	// and the no-longer-held one is cleared in the same call.
	if len(catalog.volumes) != 1 {
		t.Fatalf("expected exactly one volume write, got %d", len(catalog.volumes))
	}
	if len(catalog.volumes[0]) != 1 || catalog.volumes[0][0] != "AK-47 | Redline (Field-Tested)" {
		t.Errorf("unexpected held names: %v", catalog.volumes[0])
	}
	if catalog.items[1].BotVolume != 1 {
		t.Error("expected held item flagged")
	}
	if catalog.items[2].BotVolume != 0 {
		t.Error("expected released item cleared")
	}
}

func TestReconcileKeepsFlagsOnInventoryFailure(t *testing.T) {
	catalog := newFakeCatalog(
		model.CatalogItem{AssetID: 1, MarketHashName: "AK-47 | Redline (Field-Tested)", BotVolume: 1},
	)
	client := &fakeTradeClient{loadErr: errors.New("inventory unavailable")}
	reconciler := service.NewInventoryReconciler(
		zap.NewNop(), client, catalog, "76561198000000000", time.Minute)

	reconciler.Reconcile(context.Background())

	if len(catalog.volumes) != 0 {
		t.Fatalf("a failed load must not touch the catalog, got %d writes", len(catalog.volumes))
	}
	if catalog.items[1].BotVolume != 1 {
		t.Error("expected previous flags to survive a failed cycle")
	}
}

func TestReconcileClearsFlagsOnEmptyInventory(t *testing.T) {
	catalog := newFakeCatalog(
		model.CatalogItem{AssetID: 1, MarketHashName: "AK-47 | Redline (Field-Tested)", BotVolume: 1},
	)
	client := &fakeTradeClient{}
	reconciler := service.NewInventoryReconciler(
		zap.NewNop(), client, catalog, "76561198000000000", time.Minute)

	// An empty but successful load is a real state: the bot holds
	// nothing, so every flag is cleared in one write.
	reconciler.Reconcile(context.Background())

	if len(catalog.volumes) != 1 {
		t.Fatalf("expected one volume write, got %d", len(catalog.volumes))
	}
	if len(catalog.volumes[0]) != 0 {
		t.Errorf("expected empty held set, got %v", catalog.volumes[0])
	}
	if catalog.items[1].BotVolume != 0 {
		t.Error("expected flag cleared when the bot holds nothing")
	}
}
