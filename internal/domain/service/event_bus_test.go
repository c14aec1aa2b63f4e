package service_test

import (
	"testing"
	"time"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/service"
)

func TestEventBusDeliversByKind(t *testing.T) {
	bus := service.NewEventBus()

	var stateChanges []model.DomainEvent
	var stuck []model.DomainEvent
	bus.Subscribe(model.EventOfferStateChanged, func(ev model.DomainEvent) {
		stateChanges = append(stateChanges, ev)
	})
	bus.Subscribe(model.EventConfirmationStuck, func(ev model.DomainEvent) {
		stuck = append(stuck, ev)
	})

	bus.Publish(model.OfferStateChangedEvent{OfferID: 1, At: time.Now()})
	bus.Publish(model.ConfirmationStuckEvent{OfferID: 2, Cycles: 15, At: time.Now()})
	bus.Publish(model.OfferStateChangedEvent{OfferID: 3, At: time.Now()})

	if len(stateChanges) != 2 {
		t.Fatalf("expected 2 state change deliveries, got %d", len(stateChanges))
	}
	if len(stuck) != 1 {
		t.Fatalf("expected 1 stuck delivery, got %d", len(stuck))
	}
	if stuck[0].(model.ConfirmationStuckEvent).OfferID != 2 {
		t.Errorf("wrong event routed to the stuck subscriber: %+v", stuck[0])
	}
}

func TestEventBusSubscriptionOrder(t *testing.T) {
	bus := service.NewEventBus()

	var order []string
	bus.Subscribe(model.EventOfferStateChanged, func(model.DomainEvent) {
		order = append(order, "first")
	})
	bus.Subscribe(model.EventOfferStateChanged, func(model.DomainEvent) {
		order = append(order, "second")
	})

	bus.Publish(model.OfferStateChangedEvent{OfferID: 1, At: time.Now()})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("expected handlers to run in subscription order, got %v", order)
	}
}

func TestEventBusNoSubscribers(t *testing.T) {
	bus := service.NewEventBus()
	// Publishing with nobody listening must not panic or block.
	bus.Publish(model.ConfirmationStuckEvent{OfferID: 7, Cycles: 1, At: time.Now()})
}
