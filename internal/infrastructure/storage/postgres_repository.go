package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/repository"
)

// PostgresCatalogRepository implements the CatalogRepository interface
// on a Postgres market_items table, one row per catalog item.
type PostgresCatalogRepository struct {
	db *sql.DB
}

func NewPostgresCatalogRepository(dsn string) (*PostgresCatalogRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}
	repo := &PostgresCatalogRepository{db: db}
	if err := repo.createTableIfNotExists(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return repo, nil
}

// Ensure PostgresCatalogRepository implements the repository interface
var _ repository.CatalogRepository = (*PostgresCatalogRepository)(nil)

func (r *PostgresCatalogRepository) createTableIfNotExists() error {
	_, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS market_items (
			assetid          BIGINT PRIMARY KEY,
			market_name      TEXT NOT NULL,
			market_hash_name TEXT NOT NULL,
			border_color     TEXT NOT NULL DEFAULT '',
			image            TEXT NOT NULL DEFAULT '',
			price_latest     NUMERIC(12,2) NOT NULL DEFAULT 0,
			price_min        NUMERIC(12,2) NOT NULL DEFAULT 0,
			price_max        NUMERIC(12,2) NOT NULL DEFAULT 0,
			sold_24h         INTEGER NOT NULL DEFAULT 0,
			sold_7d          INTEGER NOT NULL DEFAULT 0,
			sold_30d         INTEGER NOT NULL DEFAULT 0,
			first_seen       BIGINT NOT NULL DEFAULT 0,
			updated_at       BIGINT NOT NULL DEFAULT 0,
			fullname_ru      TEXT NOT NULL DEFAULT '',
			name_ru          TEXT NOT NULL DEFAULT '',
			skin_ru          TEXT NOT NULL DEFAULT '',
			exterior_ru      TEXT NOT NULL DEFAULT '',
			exterior_num     SMALLINT,
			item_type_ru     TEXT NOT NULL DEFAULT '',
			price_ru         NUMERIC(12,2),
			strange          BOOLEAN NOT NULL DEFAULT FALSE,
			unusual          BOOLEAN NOT NULL DEFAULT FALSE,
			tournament       BOOLEAN NOT NULL DEFAULT FALSE,
			rarity           TEXT NOT NULL DEFAULT '',
			weapon_group     SMALLINT NOT NULL DEFAULT 0,
			rarity_num       SMALLINT NOT NULL DEFAULT 0,
			bot_volume       SMALLINT NOT NULL DEFAULT 0,
			steam_update     BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_market_items_steam_update
			ON market_items (steam_update);
		CREATE INDEX IF NOT EXISTS idx_market_items_hash_name
			ON market_items (market_hash_name);
	`)
	return err
}

// UpsertFeedItems inserts new feed rows and refreshes the feed-owned
// columns of existing ones. Detail columns are never touched here.
func (r *PostgresCatalogRepository) UpsertFeedItems(ctx context.Context, items []model.CatalogItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO market_items (
			assetid, market_name, market_hash_name, border_color, image,
			price_latest, price_min, price_max, sold_24h, sold_7d, sold_30d,
			first_seen, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (assetid) DO UPDATE SET
			market_name = EXCLUDED.market_name,
			market_hash_name = EXCLUDED.market_hash_name,
			border_color = EXCLUDED.border_color,
			image = EXCLUDED.image,
			price_latest = EXCLUDED.price_latest,
			price_min = EXCLUDED.price_min,
			price_max = EXCLUDED.price_max,
			sold_24h = EXCLUDED.sold_24h,
			sold_7d = EXCLUDED.sold_7d,
			sold_30d = EXCLUDED.sold_30d,
			first_seen = EXCLUDED.first_seen,
			updated_at = EXCLUDED.updated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, item := range items {
		if _, err := stmt.ExecContext(ctx,
			item.AssetID, item.MarketName, item.MarketHashName, item.BorderColor, item.Image,
			item.PriceLatest, item.PriceMin, item.PriceMax,
			item.Sold24H, item.Sold7D, item.Sold30D,
			item.FirstSeen, item.UpdatedAt,
		); err != nil {
			return fmt.Errorf("upsert item %d: %w", item.AssetID, err)
		}
	}
	return tx.Commit()
}

const catalogColumns = `
	assetid, market_name, market_hash_name, border_color, image,
	price_latest, price_min, price_max, sold_24h, sold_7d, sold_30d,
	first_seen, updated_at, fullname_ru, name_ru, skin_ru, exterior_ru,
	exterior_num, item_type_ru, price_ru, strange, unusual, tournament,
	rarity, weapon_group, rarity_num, bot_volume, steam_update`

// DetailCandidates picks the rows with the oldest steam_update whose
// market names carry none of the denylist keywords, oldest first.
func (r *PostgresCatalogRepository) DetailCandidates(ctx context.Context, denylist []string, limit int) ([]model.CatalogItem, error) {
	var predicates []string
	var args []any
	for i, keyword := range denylist {
		predicates = append(predicates, fmt.Sprintf("market_name NOT LIKE '%%' || $%d || '%%'", i+1))
		args = append(args, keyword)
	}
	query := "SELECT" + catalogColumns + " FROM market_items"
	if len(predicates) > 0 {
		query += " WHERE " + strings.Join(predicates, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY steam_update ASC LIMIT $%d", len(args)+1)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCatalogItems(rows)
}

// UpdateDetails writes one merged detail refresh as a single statement.
// The listed price and type descriptor keep their previous values when
// the refresh did not yield them.
func (r *PostgresCatalogRepository) UpdateDetails(ctx context.Context, assetID uint64, details model.ItemDetails) error {
	var priceRU any
	if details.PriceRU != nil {
		priceRU = *details.PriceRU
	}
	var exteriorNum any
	if details.Taxonomy.ExteriorNum != nil {
		exteriorNum = *details.Taxonomy.ExteriorNum
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE market_items SET
			fullname_ru = $2,
			name_ru = $3,
			skin_ru = $4,
			exterior_ru = $5,
			exterior_num = $6,
			item_type_ru = COALESCE(NULLIF($7, ''), item_type_ru),
			price_ru = COALESCE($8, price_ru),
			strange = $9,
			unusual = $10,
			tournament = $11,
			rarity = $12,
			weapon_group = $13,
			rarity_num = $14,
			steam_update = $15
		WHERE assetid = $1
	`,
		assetID, details.FullNameRU, details.Taxonomy.Name, details.Taxonomy.Skin,
		details.Taxonomy.Exterior, exteriorNum, details.ItemTypeRU, priceRU,
		details.Taxonomy.Strange, details.Taxonomy.Unusual, details.Taxonomy.Tournament,
		details.Taxonomy.Rarity, details.Taxonomy.WeaponGroup, details.Taxonomy.RarityNum,
		details.SteamUpdate,
	)
	if err != nil {
		return fmt.Errorf("update details %d: %w", assetID, err)
	}
	return nil
}

// SetBotVolumes applies the full desired flag assignment in one write,
// so concurrent readers never see a transient all-zero window.
func (r *PostgresCatalogRepository) SetBotVolumes(ctx context.Context, heldNames []string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE market_items SET bot_volume =
			CASE WHEN market_hash_name = ANY($1) THEN 1 ELSE 0 END
	`, pq.Array(heldNames))
	if err != nil {
		return fmt.Errorf("set bot volumes: %w", err)
	}
	return nil
}

// ItemsByMarketHashNames returns the catalog rows for the given names.
func (r *PostgresCatalogRepository) ItemsByMarketHashNames(ctx context.Context, names []string) ([]model.CatalogItem, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT"+catalogColumns+" FROM market_items WHERE market_hash_name = ANY($1)",
		pq.Array(names))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCatalogItems(rows)
}

// ListItems returns catalog rows ordered by market name.
func (r *PostgresCatalogRepository) ListItems(ctx context.Context, limit, offset int) ([]model.CatalogItem, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT"+catalogColumns+" FROM market_items ORDER BY market_name LIMIT $1 OFFSET $2",
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCatalogItems(rows)
}

// Close releases the underlying connection pool.
func (r *PostgresCatalogRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCatalogItem(row rowScanner) (*model.CatalogItem, error) {
	var item model.CatalogItem
	var exteriorNum sql.NullInt64
	var priceRU decimal.NullDecimal
	err := row.Scan(
		&item.AssetID, &item.MarketName, &item.MarketHashName, &item.BorderColor, &item.Image,
		&item.PriceLatest, &item.PriceMin, &item.PriceMax,
		&item.Sold24H, &item.Sold7D, &item.Sold30D,
		&item.FirstSeen, &item.UpdatedAt,
		&item.FullNameRU, &item.NameRU, &item.SkinRU, &item.ExteriorRU,
		&exteriorNum, &item.ItemTypeRU, &priceRU,
		&item.Strange, &item.Unusual, &item.Tournament,
		&item.Rarity, &item.WeaponGroup, &item.RarityNum,
		&item.BotVolume, &item.SteamUpdate,
	)
	if err != nil {
		return nil, err
	}
	if exteriorNum.Valid {
		n := int(exteriorNum.Int64)
		item.ExteriorNum = &n
	}
	if priceRU.Valid {
		p := priceRU.Decimal
		item.PriceRU = &p
	}
	return &item, nil
}

func collectCatalogItems(rows *sql.Rows) ([]model.CatalogItem, error) {
	var items []model.CatalogItem
	for rows.Next() {
		item, err := scanCatalogItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}
