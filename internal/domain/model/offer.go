package model

import "time"

// Direction tells which side created a trade offer.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
)

// OfferState is the local lifecycle state of a tracked trade offer.
type OfferState string

const (
	OfferCreated                OfferState = "created"
	OfferSent                   OfferState = "sent"
	OfferActive                 OfferState = "active"
	OfferNeedsConfirmation      OfferState = "needs_confirmation"
	OfferAccepted               OfferState = "accepted"
	OfferConfirmed              OfferState = "confirmed"
	OfferCountered              OfferState = "countered"
	OfferExpired                OfferState = "expired"
	OfferCanceled               OfferState = "canceled"
	OfferCanceledBySecondFactor OfferState = "canceled_by_second_factor"
	OfferDeclined               OfferState = "declined"
	OfferInvalidItems           OfferState = "invalid_items"
	OfferInEscrow               OfferState = "in_escrow"
)

// IsTerminal reports whether no further transition can leave the state.
func (s OfferState) IsTerminal() bool {
	switch s {
	case OfferConfirmed, OfferCountered, OfferExpired, OfferCanceled,
		OfferCanceledBySecondFactor, OfferDeclined, OfferInvalidItems, OfferInEscrow:
		return true
	}
	return false
}

// RemoteOfferState is the numeric trade offer state reported by the Steam SDK.
type RemoteOfferState int

const (
	RemoteInvalid                  RemoteOfferState = 1
	RemoteActive                   RemoteOfferState = 2
	RemoteAccepted                 RemoteOfferState = 3
	RemoteCountered                RemoteOfferState = 4
	RemoteExpired                  RemoteOfferState = 5
	RemoteCanceled                 RemoteOfferState = 6
	RemoteDeclined                 RemoteOfferState = 7
	RemoteInvalidItems             RemoteOfferState = 8
	RemoteCreatedNeedsConfirmation RemoteOfferState = 9
	RemoteCanceledBySecondFactor   RemoteOfferState = 10
	RemoteInEscrow                 RemoteOfferState = 11
)

// Accept call statuses reported by the trading SDK.
const (
	AcceptStatusComplete = "complete"
	AcceptStatusPending  = "pending"
)

// TradeOffer is a proposed exchange tracked through its lifecycle.
// Owned by the trade offer manager; mutated only on SDK event delivery.
type TradeOffer struct {
	ID             uint64
	Direction      Direction
	Partner        string // SteamID64 of the counterparty
	ItemsToGive    []Asset
	ItemsToReceive []Asset
	State          OfferState
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TradeExchange records the item movement of a completed offer.
type TradeExchange struct {
	OfferID          uint64
	Partner          string
	Direction        Direction
	Status           string
	SentAssetIDs     []string
	ReceivedAssetIDs []string
	CompletedAt      time.Time
}

// Confirmation is one pending entry of the second-factor confirmation queue.
type Confirmation struct {
	ID          string
	Key         string
	OfferID     uint64
	SubmittedAt time.Time
}

// TradeEvent is a notification delivered by the external trading SDK.
// Concrete kinds are dispatched with a type switch; delivery order is
// processing order.
type TradeEvent interface {
	tradeEvent()
}

// OfferReceivedEvent signals a new incoming offer from a counterparty.
type OfferReceivedEvent struct {
	Offer TradeOffer
}

// OfferChangedEvent signals that the remote state of a known offer moved.
type OfferChangedEvent struct {
	OfferID  uint64
	OldState RemoteOfferState
	NewState RemoteOfferState
}

// OfferSendResultEvent reports the outcome of a local send call.
type OfferSendResultEvent struct {
	OfferID uint64
	Status  string
	Err     error
}

func (OfferReceivedEvent) tradeEvent()   {}
func (OfferChangedEvent) tradeEvent()    {}
func (OfferSendResultEvent) tradeEvent() {}
