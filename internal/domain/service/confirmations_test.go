package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/service"
	"github.com/mih4lev/steam-bot-server/internal/domain/useCases"
)

// fakeResolver tracks which offers await confirmation and records every
// resolution.
type fakeResolver struct {
	awaiting   []uint64
	resolved   map[uint64]bool
	forgetOnOK bool
}

func newFakeResolver(awaiting ...uint64) *fakeResolver {
	return &fakeResolver{awaiting: awaiting, resolved: make(map[uint64]bool), forgetOnOK: true}
}

func (r *fakeResolver) AwaitingConfirmation() []uint64 { return r.awaiting }

func (r *fakeResolver) ResolveConfirmation(ctx context.Context, offerID uint64, confirmed bool) {
	r.resolved[offerID] = confirmed
	if r.forgetOnOK {
		remaining := r.awaiting[:0]
		for _, id := range r.awaiting {
			if id != offerID {
				remaining = append(remaining, id)
			}
		}
		r.awaiting = remaining
	}
}

type fakeConfirmationClient struct {
	pending   []model.Confirmation
	fetchErr  error
	acceptErr map[uint64]error
	accepted  []uint64
}

func (c *fakeConfirmationClient) FetchPending(ctx context.Context) ([]model.Confirmation, error) {
	if c.fetchErr != nil {
		return nil, c.fetchErr
	}
	return c.pending, nil
}

func (c *fakeConfirmationClient) Accept(ctx context.Context, conf model.Confirmation) error {
	if err := c.acceptErr[conf.OfferID]; err != nil {
		return err
	}
	c.accepted = append(c.accepted, conf.OfferID)
	return nil
}

func TestConfirmationCycleResolvesPendingOffer(t *testing.T) {
	resolver := newFakeResolver(100)
	client := &fakeConfirmationClient{pending: []model.Confirmation{
		{ID: "c1", Key: "k1", OfferID: 100, SubmittedAt: time.Now()},
		{ID: "c2", Key: "k2", OfferID: 999, SubmittedAt: time.Now()}, // untracked
	}}
	coordinator := service.NewConfirmationCoordinator(
		zap.NewNop(), client, resolver, service.NewEventBus(), 20*time.Second, 15)

	if err := coordinator.Cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if confirmed, ok := resolver.resolved[100]; !ok || !confirmed {
		t.Errorf("expected offer 100 resolved as confirmed, got %v", resolver.resolved)
	}
	if _, touched := resolver.resolved[999]; touched {
		t.Error("confirmation for an untracked offer must be left alone")
	}
	if len(client.accepted) != 1 || client.accepted[0] != 100 {
		t.Errorf("expected a single accept for offer 100, got %v", client.accepted)
	}
}

func TestConfirmationCycleNothingAwaiting(t *testing.T) {
	resolver := newFakeResolver()
	client := &fakeConfirmationClient{fetchErr: errors.New("queue must not be fetched")}
	coordinator := service.NewConfirmationCoordinator(
		zap.NewNop(), client, resolver, service.NewEventBus(), 20*time.Second, 15)

	// With nothing awaiting, the queue is not polled at all.
	if err := coordinator.Cycle(context.Background()); err != nil {
		t.Fatalf("expected idle cycle to succeed, got %v", err)
	}
}

func TestConfirmationAcceptFailureCancelsOffer(t *testing.T) {
	resolver := newFakeResolver(200)
	client := &fakeConfirmationClient{
		pending:   []model.Confirmation{{ID: "c1", Key: "k1", OfferID: 200}},
		acceptErr: map[uint64]error{200: errors.New("confirmation rejected")},
	}
	coordinator := service.NewConfirmationCoordinator(
		zap.NewNop(), client, resolver, service.NewEventBus(), 20*time.Second, 15)

	if err := coordinator.Cycle(context.Background()); err != nil {
		t.Fatalf("per-offer failure must not fail the cycle: %v", err)
	}
	if confirmed, ok := resolver.resolved[200]; !ok || confirmed {
		t.Errorf("expected offer 200 resolved as not confirmed, got %v", resolver.resolved)
	}
}

func TestConfirmationUnauthorizedSurfaces(t *testing.T) {
	resolver := newFakeResolver(300)
	client := &fakeConfirmationClient{
		fetchErr: fmt.Errorf("status 401: %w", useCases.ErrUnauthorized),
	}
	coordinator := service.NewConfirmationCoordinator(
		zap.NewNop(), client, resolver, service.NewEventBus(), 20*time.Second, 15)

	err := coordinator.Cycle(context.Background())
	if !errors.Is(err, useCases.ErrUnauthorized) {
		t.Fatalf("expected unauthorized error to surface, got %v", err)
	}
}

func TestConfirmationStuckAlertRaisedOnce(t *testing.T) {
	resolver := newFakeResolver(400)
	resolver.forgetOnOK = false
	// The confirmation never shows up in the queue, so the offer stays
	// in the awaiting set cycle after cycle.
	client := &fakeConfirmationClient{pending: nil}

	bus := service.NewEventBus()
	var alerts []model.ConfirmationStuckEvent
	bus.Subscribe(model.EventConfirmationStuck, func(ev model.DomainEvent) {
		alerts = append(alerts, ev.(model.ConfirmationStuckEvent))
	})

	stuckCycles := 3
	coordinator := service.NewConfirmationCoordinator(
		zap.NewNop(), client, resolver, bus, 20*time.Second, stuckCycles)

	for i := 0; i < stuckCycles+4; i++ {
		if err := coordinator.Cycle(context.Background()); err != nil {
			t.Fatalf("cycle %d failed: %v", i, err)
		}
	}

	if len(alerts) != 1 {
		t.Fatalf("expected exactly one stuck alert, got %d", len(alerts))
	}
	if alerts[0].OfferID != 400 {
		t.Errorf("expected alert for offer 400, got %d", alerts[0].OfferID)
	}
	if alerts[0].Cycles < stuckCycles {
		t.Errorf("expected at least %d cycles reported, got %d", stuckCycles, alerts[0].Cycles)
	}
}

func TestConfirmationStuckCounterResetsOnResolution(t *testing.T) {
	resolver := newFakeResolver(500)
	// Resolved on the first pass, then re-submitted later under the
	// same id: the cycle counter must start over.
	client := &fakeConfirmationClient{pending: []model.Confirmation{
		{ID: "c1", Key: "k1", OfferID: 500},
	}}

	bus := service.NewEventBus()
	var alerts []model.ConfirmationStuckEvent
	bus.Subscribe(model.EventConfirmationStuck, func(ev model.DomainEvent) {
		alerts = append(alerts, ev.(model.ConfirmationStuckEvent))
	})

	coordinator := service.NewConfirmationCoordinator(
		zap.NewNop(), client, resolver, bus, 20*time.Second, 3)

	if err := coordinator.Cycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	resolver.awaiting = []uint64{500}
	client.pending = nil
	for i := 0; i < 2; i++ {
		if err := coordinator.Cycle(context.Background()); err != nil {
			t.Fatalf("cycle failed: %v", err)
		}
	}

	if len(alerts) != 0 {
		t.Fatalf("expected no stuck alert after counter reset, got %d", len(alerts))
	}
}
