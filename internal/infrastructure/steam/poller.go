package steam

import (
	"context"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/useCases"
)

// OfferPoller turns the polled trade offer listing into the ordered
// event stream the trade manager consumes: new incoming offers and
// state changes, in the order they are observed.
type OfferPoller struct {
	log      *zap.Logger
	client   *TradeAPIClient
	interval time.Duration
	events   chan model.TradeEvent
	known    map[uint64]model.RemoteOfferState
}

func NewOfferPoller(log *zap.Logger, client *TradeAPIClient, interval time.Duration, buffer int) *OfferPoller {
	return &OfferPoller{
		log:      log,
		client:   client,
		interval: interval,
		events:   make(chan model.TradeEvent, buffer),
		known:    make(map[uint64]model.RemoteOfferState),
	}
}

// Events is the stream consumed by the trade manager.
func (p *OfferPoller) Events() <-chan model.TradeEvent {
	return p.events
}

// Run polls until the context ends, then closes the event stream.
// Transient poll failures are retried on the next tick; a rejected
// credential has no recovery path and is returned to the caller.
func (p *OfferPoller) Run(ctx context.Context) error {
	defer close(p.events)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				if errors.Is(err, useCases.ErrUnauthorized) {
					return err
				}
				p.log.Warn("trade offer poll failed", zap.Error(err))
			}
		}
	}
}

func (p *OfferPoller) poll(ctx context.Context) error {
	offers, err := p.client.getTradeOffers(ctx, true)
	if err != nil {
		return err
	}

	descriptions := make(map[string]econDescription, len(offers.Response.Descriptions))
	for _, d := range offers.Response.Descriptions {
		descriptions[d.ClassID+"_"+d.InstanceID] = d
	}

	for _, offer := range offers.Response.Received {
		p.observe(ctx, offer, descriptions, model.DirectionIncoming)
	}
	for _, offer := range offers.Response.Sent {
		p.observe(ctx, offer, descriptions, model.DirectionOutgoing)
	}
	return nil
}

func (p *OfferPoller) observe(ctx context.Context, offer econOffer, descriptions map[string]econDescription, direction model.Direction) {
	id, err := strconv.ParseUint(offer.TradeOfferID, 10, 64)
	if err != nil {
		p.log.Warn("bad trade offer id", zap.String("id", offer.TradeOfferID))
		return
	}
	state := model.RemoteOfferState(offer.State)

	old, seen := p.known[id]
	if seen && old == state {
		return
	}
	p.known[id] = state

	if seen {
		p.emit(ctx, model.OfferChangedEvent{OfferID: id, OldState: old, NewState: state})
		return
	}

	switch {
	case direction == model.DirectionIncoming && state == model.RemoteActive:
		p.emit(ctx, model.OfferReceivedEvent{Offer: model.TradeOffer{
			ID:             id,
			Direction:      direction,
			Partner:        accountIDToSteamID64(offer.AccountIDOther),
			ItemsToGive:    p.client.assetsFromEcon(offer.ItemsToGive, descriptions),
			ItemsToReceive: p.client.assetsFromEcon(offer.ItemsToReceive, descriptions),
			State:          model.OfferActive,
			CreatedAt:      time.Unix(offer.TimeCreated, 0),
			UpdatedAt:      time.Unix(offer.TimeUpdated, 0),
		}})
	case direction == model.DirectionOutgoing:
		// First sight of a locally created offer is the acknowledgment
		// that the send went through.
		status := "sent"
		if state == model.RemoteCreatedNeedsConfirmation {
			status = model.AcceptStatusPending
		}
		p.emit(ctx, model.OfferSendResultEvent{OfferID: id, Status: status})
		if state != model.RemoteActive {
			p.emit(ctx, model.OfferChangedEvent{OfferID: id, OldState: model.RemoteActive, NewState: state})
		}
	}
}

func (p *OfferPoller) emit(ctx context.Context, ev model.TradeEvent) {
	select {
	case p.events <- ev:
	case <-ctx.Done():
	}
}
