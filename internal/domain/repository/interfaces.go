// Package repository defines the storage-facing interfaces used by domain
// services. Domain logic depends on these interfaces; infrastructure
// packages provide the concrete implementations.
package repository

import (
	"context"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
)

// CatalogRepository is the persisted catalog of tradable items.
type CatalogRepository interface {
	// UpsertFeedItems inserts or refreshes catalog rows from a bulk feed
	// snapshot, keyed by assetid.
	UpsertFeedItems(ctx context.Context, items []model.CatalogItem) error

	// DetailCandidates returns up to limit items ordered by oldest
	// steam_update whose market names contain none of the denylist
	// keywords. An empty slice means the catalog holds no eligible item.
	DetailCandidates(ctx context.Context, denylist []string, limit int) ([]model.CatalogItem, error)

	// UpdateDetails persists one merged detail refresh for an item.
	// The whole field set is written in a single statement.
	UpdateDetails(ctx context.Context, assetID uint64, details model.ItemDetails) error

	// SetBotVolumes applies the full desired bot_volume assignment in one
	// write: rows matching a held market_hash_name get 1, all others 0.
	SetBotVolumes(ctx context.Context, heldNames []string) error

	// ItemsByMarketHashNames returns the catalog rows for the given names.
	ItemsByMarketHashNames(ctx context.Context, names []string) ([]model.CatalogItem, error)

	// ListItems returns catalog rows ordered by market name.
	ListItems(ctx context.Context, limit, offset int) ([]model.CatalogItem, error)
}

// PriceMirror is a best-effort external copy of the active price
// snapshot. Mirror failures never affect the in-memory snapshot.
type PriceMirror interface {
	SaveSnapshot(ctx context.Context, snap *model.PriceSnapshot) error
}

// TradeArchive is durable append-only storage for completed exchanges.
type TradeArchive interface {
	SaveExchange(ctx context.Context, ex model.TradeExchange) error
}
