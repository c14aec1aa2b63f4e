package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/repository"
	"github.com/mih4lev/steam-bot-server/internal/domain/useCases"
)

// InventoryReconciler periodically marks which catalog rows the bot
// currently holds. The whole desired bot_volume assignment is applied
// in one write, so readers never observe a half-reset catalog.
type InventoryReconciler struct {
	log      *zap.Logger
	client   useCases.TradeClient
	catalog  repository.CatalogRepository
	steamID  string
	interval time.Duration
}

func NewInventoryReconciler(
	log *zap.Logger,
	client useCases.TradeClient,
	catalog repository.CatalogRepository,
	steamID string,
	interval time.Duration,
) *InventoryReconciler {
	return &InventoryReconciler{
		log:      log,
		client:   client,
		catalog:  catalog,
		steamID:  steamID,
		interval: interval,
	}
}

// Run reconciles on a fixed period until the context ends. A failed
// cycle keeps the previous flags; the next tick is the retry.
func (r *InventoryReconciler) Run(ctx context.Context) error {
	r.Reconcile(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.Reconcile(ctx)
		}
	}
}

// Reconcile runs one pass: load the bot inventory and apply the full
// flag assignment.
func (r *InventoryReconciler) Reconcile(ctx context.Context) {
	assets, err := r.client.LoadInventory(ctx, r.steamID)
	if err != nil {
		r.log.Warn("bot inventory load failed", zap.Error(err))
		return
	}
	names := HeldMarketHashNames(assets)
	if err := r.catalog.SetBotVolumes(ctx, names); err != nil {
		r.log.Warn("bot volume update failed", zap.Error(err))
		return
	}
	r.log.Debug("inventory reconciled",
		zap.Int("assets", len(assets)), zap.Int("names", len(names)))
}

// HeldMarketHashNames deduplicates the market hash names of held assets.
func HeldMarketHashNames(assets []model.Asset) []string {
	seen := make(map[string]struct{}, len(assets))
	names := make([]string, 0, len(assets))
	for _, a := range assets {
		if a.MarketHashName == "" {
			continue
		}
		if _, dup := seen[a.MarketHashName]; dup {
			continue
		}
		seen[a.MarketHashName] = struct{}{}
		names = append(names, a.MarketHashName)
	}
	return names
}
