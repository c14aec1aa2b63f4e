package service

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/repository"
	"github.com/mih4lev/steam-bot-server/internal/domain/useCases"
)

// DetailDenylist keeps non-skin categories out of the per-item refresh
// loop: their listing pages carry none of the taxonomy fields.
var DetailDenylist = []string{
	"Case", "Graffiti", "Sticker", "Operation", "Package",
	"Pin", "Music Kit", "Patch", "Challengers", "Capsule",
}

// CatalogSyncScheduler keeps the price cache and the persisted catalog
// in step with the external sources. It runs two independent perpetual
// loops: a fixed-period bulk refresh and a self-throttled per-item
// detail refresh.
type CatalogSyncScheduler struct {
	log     *zap.Logger
	feed    useCases.PriceFeed
	details useCases.DetailSource
	catalog repository.CatalogRepository
	mirror  repository.PriceMirror
	cache   *PriceCache

	bulkInterval time.Duration
	sleepMin     time.Duration
	sleepJitter  time.Duration

	// Remainder of the oldest-first batch the detail loop is walking.
	detailQueue []model.CatalogItem
}

// detailBatchSize bounds one oldest-first walk of the catalog. A failed
// item reappears at the front of a later batch instead of being
// re-selected immediately, so it cannot block the items behind it.
const detailBatchSize = 50

func NewCatalogSyncScheduler(
	log *zap.Logger,
	feed useCases.PriceFeed,
	details useCases.DetailSource,
	catalog repository.CatalogRepository,
	mirror repository.PriceMirror,
	cache *PriceCache,
	bulkInterval, sleepMin, sleepJitter time.Duration,
) *CatalogSyncScheduler {
	return &CatalogSyncScheduler{
		log:          log,
		feed:         feed,
		details:      details,
		catalog:      catalog,
		mirror:       mirror,
		cache:        cache,
		bulkInterval: bulkInterval,
		sleepMin:     sleepMin,
		sleepJitter:  sleepJitter,
	}
}

// RunBulk refreshes the whole price feed on a fixed period until the
// context ends. A failed fetch keeps the previous snapshot; the next
// tick is the retry.
func (s *CatalogSyncScheduler) RunBulk(ctx context.Context) error {
	s.RefreshBulk(ctx)
	ticker := time.NewTicker(s.bulkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RefreshBulk(ctx)
		}
	}
}

// RefreshBulk runs one bulk feed pass: fetch, swap the snapshot as a
// whole, seed new catalog rows, mirror the snapshot best-effort.
func (s *CatalogSyncScheduler) RefreshBulk(ctx context.Context) {
	snap, items, err := s.feed.FetchAll(ctx)
	if err != nil {
		s.log.Warn("bulk price fetch failed, keeping previous snapshot", zap.Error(err))
		return
	}
	s.cache.Replace(snap)
	s.log.Info("price snapshot replaced",
		zap.Int("names", len(snap.Entries)), zap.Int("items", len(items)))

	if err := s.catalog.UpsertFeedItems(ctx, items); err != nil {
		s.log.Warn("catalog seed from feed failed", zap.Error(err))
	}
	if s.mirror != nil {
		if err := s.mirror.SaveSnapshot(ctx, snap); err != nil {
			s.log.Warn("price mirror write failed", zap.Error(err))
		}
	}
}

// RunDetail perpetually walks the catalog oldest-first in bounded
// batches, throttled by a randomized sleep so the remote side never
// sees bursts. Failed items keep their timestamp and the walk moves on
// to the next item in the batch, so a persistently failing item never
// starves the rest of the catalog; it is retried at the head of a
// later batch.
func (s *CatalogSyncScheduler) RunDetail(ctx context.Context) error {
	for {
		if err := s.sleepThrottle(ctx); err != nil {
			return err
		}
		s.RefreshDetailOnce(ctx)
	}
}

// RefreshDetailOnce refreshes the next eligible item of the current
// batch, fetching a fresh batch when the previous one is exhausted.
func (s *CatalogSyncScheduler) RefreshDetailOnce(ctx context.Context) {
	if len(s.detailQueue) == 0 {
		batch, err := s.catalog.DetailCandidates(ctx, DetailDenylist, detailBatchSize)
		if err != nil {
			s.log.Warn("detail candidate query failed", zap.Error(err))
			return
		}
		s.detailQueue = batch
	}
	if len(s.detailQueue) == 0 {
		return
	}
	item := s.detailQueue[0]
	s.detailQueue = s.detailQueue[1:]

	detail, err := s.details.FetchDetail(ctx, item.MarketHashName)
	if err != nil {
		s.log.Warn("detail fetch failed, skipping item",
			zap.Uint64("assetid", item.AssetID),
			zap.String("name", item.MarketHashName), zap.Error(err))
		return
	}
	if detail == nil || detail.FullName == "" {
		// Nothing extractable; leave steam_update untouched so the item
		// is retried on a later batch.
		return
	}

	taxonomy := ClassifyItem(detail.FullName, detail.TypeDescriptor)
	update := model.ItemDetails{
		FullNameRU:  detail.FullName,
		ItemTypeRU:  detail.TypeDescriptor,
		PriceRU:     detail.Price,
		Taxonomy:    taxonomy,
		SteamUpdate: time.Now().Unix(),
	}
	if err := s.catalog.UpdateDetails(ctx, item.AssetID, update); err != nil {
		s.log.Warn("detail persist failed",
			zap.Uint64("assetid", item.AssetID), zap.Error(err))
		return
	}
	s.log.Debug("item detail refreshed",
		zap.Uint64("assetid", item.AssetID), zap.String("name", item.MarketHashName))
}

// sleepThrottle waits between 7.5 and 12.5 seconds by default, drawn
// uniformly, honoring context cancellation.
func (s *CatalogSyncScheduler) sleepThrottle(ctx context.Context) error {
	delay := s.sleepMin
	if s.sleepJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(s.sleepJitter)))
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
