package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/repository"
)

// ClickHouseArchive implements the TradeArchive interface using
// ClickHouse as the backend: completed exchanges are append-only
// analytical data, never updated in place.
type ClickHouseArchive struct {
	conn driver.Conn
}

type ClickHouseConfig struct {
	Addr     string
	Username string
	Password string
	Timeout  int
}

func NewClickHouseArchive(cfg ClickHouseConfig) (*ClickHouseArchive, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{cfg.Addr},
		Auth: clickhouse.Auth{
			Database: "default",
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: time.Duration(cfg.Timeout) * time.Second,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
	})
	if err != nil {
		return nil, err
	}

	// Check the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	if err := createTablesIfNotExist(conn); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &ClickHouseArchive{conn: conn}, nil
}

// Ensure ClickHouseArchive implements the required interface
var _ repository.TradeArchive = (*ClickHouseArchive)(nil)

func createTablesIfNotExist(conn driver.Conn) error {
	return conn.Exec(context.Background(), `
		CREATE TABLE IF NOT EXISTS trade_exchanges (
			offer_id UInt64,
			partner String,
			direction String,
			status String,
			sent_asset_ids Array(String),
			received_asset_ids Array(String),
			completed_at DateTime,
			recorded_at DateTime DEFAULT now()
		) ENGINE = MergeTree()
		ORDER BY (completed_at, offer_id)
	`)
}

// SaveExchange appends one completed exchange to the archive.
func (a *ClickHouseArchive) SaveExchange(ctx context.Context, ex model.TradeExchange) error {
	err := a.conn.Exec(ctx, `
		INSERT INTO trade_exchanges (
			offer_id, partner, direction, status,
			sent_asset_ids, received_asset_ids, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		ex.OfferID, ex.Partner, string(ex.Direction), ex.Status,
		ex.SentAssetIDs, ex.ReceivedAssetIDs, ex.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save exchange: %w", err)
	}
	return nil
}

// Close terminates the ClickHouse connection.
func (a *ClickHouseArchive) Close() error {
	return a.conn.Close()
}
