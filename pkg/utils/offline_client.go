package utils

import (
	"context"
	"sync"
	"time"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/useCases"
)

// OfflineTradeClient is an in-memory stand-in for the Steam trade API,
// used for local runs without credentials. Every call succeeds.
type OfflineTradeClient struct {
	gen *OfferGenerator

	mu     sync.Mutex
	nextID uint64
	sent   map[uint64][]string
}

// NewOfflineTradeClient creates an offline trade client
func NewOfflineTradeClient() *OfflineTradeClient {
	return &OfflineTradeClient{
		gen:    NewOfferGenerator(),
		nextID: 8_000_000_000,
		sent:   make(map[uint64][]string),
	}
}

var _ useCases.TradeClient = (*OfflineTradeClient)(nil)

func (c *OfflineTradeClient) SendOffer(ctx context.Context, partner string, assetIDs []string) (string, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	c.sent[c.nextID] = assetIDs
	return "sent", c.nextID, nil
}

func (c *OfflineTradeClient) AcceptOffer(ctx context.Context, offerID uint64) (string, error) {
	return model.AcceptStatusComplete, nil
}

func (c *OfflineTradeClient) DeclineOffer(ctx context.Context, offerID uint64) error {
	return nil
}

func (c *OfflineTradeClient) GetExchangeDetails(ctx context.Context, offerID uint64) (*model.TradeExchange, error) {
	c.mu.Lock()
	assetIDs := c.sent[offerID]
	c.mu.Unlock()
	return &model.TradeExchange{
		OfferID:          offerID,
		Partner:          "76561198000000000",
		Direction:        model.DirectionIncoming,
		ReceivedAssetIDs: assetIDs,
		CompletedAt:      time.Now(),
	}, nil
}

func (c *OfflineTradeClient) LoadInventory(ctx context.Context, steamID string) ([]model.Asset, error) {
	ev := c.gen.GenerateIncomingOffer(len(sampleItems))
	return ev.Offer.ItemsToReceive, nil
}
