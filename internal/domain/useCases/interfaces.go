package useCases

import (
	"context"
	"errors"
	"net/http"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
)

// ErrUnauthorized marks a credential or session failure from the
// trading backend. There is no automated recovery path: callers are
// expected to terminate the process.
var ErrUnauthorized = errors.New("steam: unauthorized")

// EventBus fans domain events out to in-process subscribers.
type EventBus interface {
	Publish(event model.DomainEvent)
	Subscribe(kind model.EventKind, handler func(model.DomainEvent))
}

// Broadcaster pushes serialized domain events to live transport
// observers (WebSocket clients).
type Broadcaster interface {
	BroadcastEvent(event model.DomainEvent)
	Handler() func(http.ResponseWriter, *http.Request)
}

// TradeClient is the command surface of the external trading SDK.
// The wire protocol behind it is out of scope here.
type TradeClient interface {
	// SendOffer creates an offer asking the partner for the listed assets
	// and returns the SDK send status and assigned offer id.
	SendOffer(ctx context.Context, partner string, assetIDs []string) (string, uint64, error)

	// AcceptOffer accepts an incoming offer and reports the accept status
	// (model.AcceptStatusComplete or model.AcceptStatusPending).
	AcceptOffer(ctx context.Context, offerID uint64) (string, error)

	DeclineOffer(ctx context.Context, offerID uint64) error

	// GetExchangeDetails returns the item movement of a completed offer.
	GetExchangeDetails(ctx context.Context, offerID uint64) (*model.TradeExchange, error)

	// LoadInventory lists the tradable items held by a Steam identity.
	LoadInventory(ctx context.Context, steamID string) ([]model.Asset, error)
}

// ConfirmationClient exposes the second-factor confirmation queue.
type ConfirmationClient interface {
	FetchPending(ctx context.Context) ([]model.Confirmation, error)
	Accept(ctx context.Context, conf model.Confirmation) error
}

// PriceFeed is the bulk price source covering the whole catalog. One
// fetch yields both the price snapshot and the catalog rows seen in it.
type PriceFeed interface {
	FetchAll(ctx context.Context) (*model.PriceSnapshot, []model.CatalogItem, error)
}

// DetailSource yields the localized listing detail for one item.
type DetailSource interface {
	FetchDetail(ctx context.Context, marketHashName string) (*model.ListingDetail, error)
}
