package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/useCases"
)

// OfferResolver is the slice of the trade offer manager the coordinator
// needs: which offers wait for a confirmation, and how to finish one.
type OfferResolver interface {
	AwaitingConfirmation() []uint64
	ResolveConfirmation(ctx context.Context, offerID uint64, confirmed bool)
}

type confirmationState struct {
	submittedAt time.Time
	cycles      int
	alerted     bool
}

// ConfirmationCoordinator polls the external confirmation queue and
// resolves every pending confirmation whose offer is tracked in
// NeedsConfirmation. Cycle errors only stretch the poll interval; a
// confirmation that stays unresolved past the cycle budget raises a
// stuck alert on the event bus and keeps being retried.
type ConfirmationCoordinator struct {
	log         *zap.Logger
	client      useCases.ConfirmationClient
	offers      OfferResolver
	bus         useCases.EventBus
	interval    time.Duration
	stuckCycles int

	mu      sync.Mutex
	pending map[uint64]*confirmationState
}

func NewConfirmationCoordinator(
	log *zap.Logger,
	client useCases.ConfirmationClient,
	offers OfferResolver,
	bus useCases.EventBus,
	interval time.Duration,
	stuckCycles int,
) *ConfirmationCoordinator {
	return &ConfirmationCoordinator{
		log:         log,
		client:      client,
		offers:      offers,
		bus:         bus,
		interval:    interval,
		stuckCycles: stuckCycles,
		pending:     make(map[uint64]*confirmationState),
	}
}

// Run polls until the context ends. Transient cycle errors widen the
// interval exponentially and the next successful cycle resets it; an
// authorization failure is returned to the caller.
func (c *ConfirmationCoordinator) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.interval
	bo.MaxInterval = 8 * c.interval
	wait := c.interval

	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		if err := c.Cycle(ctx); err != nil {
			if errors.Is(err, useCases.ErrUnauthorized) {
				return err
			}
			wait = bo.NextBackOff()
			c.log.Warn("confirmation cycle failed",
				zap.Error(err), zap.Duration("retry_in", wait))
		} else {
			bo.Reset()
			wait = c.interval
		}
		timer.Reset(wait)
	}
}

// Cycle runs one poll pass. Exported so one pass can be driven directly
// in tests and tooling.
func (c *ConfirmationCoordinator) Cycle(ctx context.Context) error {
	awaiting := make(map[uint64]struct{})
	for _, id := range c.offers.AwaitingConfirmation() {
		awaiting[id] = struct{}{}
	}
	c.trackCycle(awaiting)
	if len(awaiting) == 0 {
		return nil
	}

	confirmations, err := c.client.FetchPending(ctx)
	if err != nil {
		return fmt.Errorf("fetch pending confirmations: %w", err)
	}

	for _, conf := range confirmations {
		if _, wanted := awaiting[conf.OfferID]; !wanted {
			continue
		}
		if err := c.client.Accept(ctx, conf); err != nil {
			if errors.Is(err, useCases.ErrUnauthorized) {
				return err
			}
			// A failed resolution routes the offer to the second-factor
			// cancel state instead of crashing the process.
			c.log.Error("confirmation failed",
				zap.Uint64("offer", conf.OfferID), zap.Error(err))
			c.offers.ResolveConfirmation(ctx, conf.OfferID, false)
			c.forget(conf.OfferID)
			continue
		}
		c.log.Info("offer confirmed", zap.Uint64("offer", conf.OfferID))
		c.offers.ResolveConfirmation(ctx, conf.OfferID, true)
		c.forget(conf.OfferID)
	}
	return nil
}

// trackCycle advances the per-offer cycle counters and raises a single
// stuck alert for any offer past the budget.
func (c *ConfirmationCoordinator) trackCycle(awaiting map[uint64]struct{}) {
	var stuck []model.ConfirmationStuckEvent

	c.mu.Lock()
	for id := range c.pending {
		if _, still := awaiting[id]; !still {
			delete(c.pending, id)
		}
	}
	for id := range awaiting {
		state, ok := c.pending[id]
		if !ok {
			state = &confirmationState{submittedAt: time.Now()}
			c.pending[id] = state
			continue
		}
		state.cycles++
		if state.cycles >= c.stuckCycles && !state.alerted {
			state.alerted = true
			stuck = append(stuck, model.ConfirmationStuckEvent{
				OfferID: id,
				Cycles:  state.cycles,
				At:      time.Now(),
			})
		}
	}
	c.mu.Unlock()

	for _, ev := range stuck {
		c.log.Warn("confirmation stuck",
			zap.Uint64("offer", ev.OfferID), zap.Int("cycles", ev.Cycles))
		c.bus.Publish(ev)
	}
}

func (c *ConfirmationCoordinator) forget(offerID uint64) {
	c.mu.Lock()
	delete(c.pending, offerID)
	c.mu.Unlock()
}
