package model

import "time"

// EventKind tags the concrete type of a domain event.
type EventKind string

const (
	EventOfferStateChanged EventKind = "offer-state-changed"
	EventConfirmationStuck EventKind = "confirmation-stuck"
)

// DomainEvent is a transient notification published through the event
// bus. Events are never persisted; their lifetime ends at delivery to
// the subscribers registered at publish time.
type DomainEvent interface {
	Kind() EventKind
	OccurredAt() time.Time
}

// OfferStateChangedEvent is published on every local offer transition.
type OfferStateChangedEvent struct {
	OfferID       uint64        `json:"offer_id"`
	Direction     Direction     `json:"direction"`
	Partner       string        `json:"partner"`
	OldState      OfferState    `json:"old_state"`
	NewState      OfferState    `json:"new_state"`
	ItemsGiven    []ItemPayload `json:"items_given"`
	ItemsReceived []ItemPayload `json:"items_received"`
	At            time.Time     `json:"at"`
}

func (e OfferStateChangedEvent) Kind() EventKind       { return EventOfferStateChanged }
func (e OfferStateChangedEvent) OccurredAt() time.Time { return e.At }

// ConfirmationStuckEvent is published when an offer has stayed in the
// confirmation queue past the configured cycle budget.
type ConfirmationStuckEvent struct {
	OfferID uint64    `json:"offer_id"`
	Cycles  int       `json:"cycles"`
	At      time.Time `json:"at"`
}

func (e ConfirmationStuckEvent) Kind() EventKind       { return EventConfirmationStuck }
func (e ConfirmationStuckEvent) OccurredAt() time.Time { return e.At }
