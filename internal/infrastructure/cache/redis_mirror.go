package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/repository"
)

const (
	snapshotKey    = "prices:snapshot"
	snapshotAgeKey = "prices:fetched_at"
)

// RedisMirror keeps a best-effort external copy of the active price
// snapshot so other processes can observe prices and staleness. The
// in-memory snapshot stays authoritative; mirror errors are the
// caller's to log and ignore.
type RedisMirror struct {
	client *redis.Client
}

func NewRedisMirror(addr, password string, db int) *RedisMirror {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisMirror{client: client}
}

// Ensure RedisMirror implements the PriceMirror interface
var _ repository.PriceMirror = (*RedisMirror)(nil)

// SaveSnapshot overwrites the mirrored snapshot and its fetch moment.
func (m *RedisMirror) SaveSnapshot(ctx context.Context, snap *model.PriceSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	pipe := m.client.Pipeline()
	pipe.Set(ctx, snapshotKey, data, 0)
	pipe.Set(ctx, snapshotAgeKey, strconv.FormatInt(snap.FetchedAt.Unix(), 10), 0)
	_, err = pipe.Exec(ctx)
	return err
}

// Close terminates the Redis connection.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
