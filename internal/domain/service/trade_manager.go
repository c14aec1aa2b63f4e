package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/repository"
	"github.com/mih4lev/steam-bot-server/internal/domain/useCases"
)

// OfferPolicy validates an incoming offer before it is accepted. A nil
// return accepts the offer; an error declines it with the given reason.
//
// The default policy accepts everything, preserving the historical
// behavior of the bot. Whether unconditional acceptance is actually
// intended is unsettled, which is why the hook exists at all.
type OfferPolicy func(offer model.TradeOffer) error

// AcceptAllPolicy accepts every incoming offer without inspecting its
// item sets.
func AcceptAllPolicy(model.TradeOffer) error { return nil }

// TradeOfferManager owns every tracked trade offer and applies state
// transitions as events arrive from the trading SDK. Offers are mutated
// only here, one event at a time, in delivery order.
type TradeOfferManager struct {
	log     *zap.Logger
	client  useCases.TradeClient
	bus     useCases.EventBus
	prices  *PriceCache
	archive repository.TradeArchive
	policy  OfferPolicy

	mu       sync.Mutex
	offers   map[uint64]*model.TradeOffer
	declined map[uint64]struct{}
}

func NewTradeOfferManager(
	log *zap.Logger,
	client useCases.TradeClient,
	bus useCases.EventBus,
	prices *PriceCache,
	archive repository.TradeArchive,
	policy OfferPolicy,
) *TradeOfferManager {
	if policy == nil {
		policy = AcceptAllPolicy
	}
	return &TradeOfferManager{
		log:      log,
		client:   client,
		bus:      bus,
		prices:   prices,
		archive:  archive,
		policy:   policy,
		offers:   make(map[uint64]*model.TradeOffer),
		declined: make(map[uint64]struct{}),
	}
}

// Run consumes SDK events until the context ends or the channel closes.
// SDK command failures during accept/decline have no recovery path and
// are returned to the caller, which terminates the process.
func (m *TradeOfferManager) Run(ctx context.Context, events <-chan model.TradeEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := m.handleEvent(ctx, ev); err != nil {
				return err
			}
		}
	}
}

func (m *TradeOfferManager) handleEvent(ctx context.Context, ev model.TradeEvent) error {
	switch ev := ev.(type) {
	case model.OfferReceivedEvent:
		return m.handleIncoming(ctx, ev.Offer)
	case model.OfferChangedEvent:
		return m.handleChanged(ctx, ev)
	case model.OfferSendResultEvent:
		m.handleSendResult(ev)
		return nil
	default:
		m.log.Warn("unknown trade event", zap.Any("event", ev))
		return nil
	}
}

func (m *TradeOfferManager) handleIncoming(ctx context.Context, offer model.TradeOffer) error {
	offer.Direction = model.DirectionIncoming
	offer.State = model.OfferActive
	now := time.Now()
	if offer.CreatedAt.IsZero() {
		offer.CreatedAt = now
	}
	offer.UpdatedAt = now

	m.mu.Lock()
	stored := offer
	m.offers[offer.ID] = &stored
	m.mu.Unlock()

	m.log.Info("new offer received",
		zap.Uint64("offer", offer.ID), zap.String("partner", offer.Partner))

	if err := m.policy(offer); err != nil {
		m.log.Warn("incoming offer rejected by policy",
			zap.Uint64("offer", offer.ID), zap.Error(err))
		if err := m.client.DeclineOffer(ctx, offer.ID); err != nil {
			return fmt.Errorf("decline offer %d: %w", offer.ID, err)
		}
		m.transition(offer.ID, model.OfferDeclined)
		return nil
	}

	status, err := m.client.AcceptOffer(ctx, offer.ID)
	if err != nil {
		return fmt.Errorf("accept offer %d: %w", offer.ID, err)
	}
	m.log.Info("offer accepted", zap.Uint64("offer", offer.ID), zap.String("status", status))

	if status == model.AcceptStatusPending {
		m.transition(offer.ID, model.OfferNeedsConfirmation)
		return nil
	}
	m.transition(offer.ID, model.OfferConfirmed)
	m.archiveExchange(ctx, offer.ID, status)
	return nil
}

func (m *TradeOfferManager) handleChanged(ctx context.Context, ev model.OfferChangedEvent) error {
	m.mu.Lock()
	offer, tracked := m.offers[ev.OfferID]
	var direction model.Direction
	if tracked {
		direction = offer.Direction
	}
	m.mu.Unlock()

	if !tracked {
		m.log.Debug("state change for untracked offer", zap.Uint64("offer", ev.OfferID))
		return nil
	}

	// Safety guard for agent-created offers: any observed state other
	// than a full acceptance gets an immediate decline, exactly once.
	if direction == model.DirectionOutgoing && ev.NewState != model.RemoteAccepted {
		if m.markDeclined(ev.OfferID) {
			m.log.Warn("outgoing offer left accepted path, declining",
				zap.Uint64("offer", ev.OfferID), zap.Int("remote_state", int(ev.NewState)))
			if err := m.client.DeclineOffer(ctx, ev.OfferID); err != nil {
				return fmt.Errorf("decline offer %d: %w", ev.OfferID, err)
			}
		}
	}

	if direction == model.DirectionOutgoing && ev.NewState == model.RemoteAccepted {
		m.archiveExchange(ctx, ev.OfferID, "accepted")
	}

	if local, ok := localOfferState(ev.NewState); ok {
		m.transition(ev.OfferID, local)
	}
	return nil
}

func (m *TradeOfferManager) handleSendResult(ev model.OfferSendResultEvent) {
	if ev.Err != nil {
		m.log.Error("offer send failed", zap.Uint64("offer", ev.OfferID), zap.Error(ev.Err))
		return
	}
	m.mu.Lock()
	offer, ok := m.offers[ev.OfferID]
	sent := ok && offer.State == model.OfferSent
	m.mu.Unlock()
	if sent {
		m.transition(ev.OfferID, model.OfferActive)
	}
}

// CreateSellOffer loads the partner inventory, picks the requested
// assets and sends an offer asking for them. The returned status is the
// SDK send status.
func (m *TradeOfferManager) CreateSellOffer(ctx context.Context, partner string, assetIDs []string) (model.TradeOffer, string, error) {
	inventory, err := m.client.LoadInventory(ctx, partner)
	if err != nil {
		return model.TradeOffer{}, "", fmt.Errorf("load partner inventory: %w", err)
	}

	wanted := make(map[string]struct{}, len(assetIDs))
	for _, id := range assetIDs {
		wanted[id] = struct{}{}
	}
	var picked []model.Asset
	var pickedIDs []string
	for _, asset := range inventory {
		if _, ok := wanted[asset.AssetID]; !ok {
			continue
		}
		picked = append(picked, asset)
		pickedIDs = append(pickedIDs, asset.AssetID)
	}
	if len(picked) == 0 {
		return model.TradeOffer{}, "", fmt.Errorf("no requested assets found in partner inventory")
	}

	status, offerID, err := m.client.SendOffer(ctx, partner, pickedIDs)
	if err != nil {
		return model.TradeOffer{}, "", fmt.Errorf("send offer: %w", err)
	}

	now := time.Now()
	offer := model.TradeOffer{
		ID:             offerID,
		Direction:      model.DirectionOutgoing,
		Partner:        partner,
		ItemsToReceive: picked,
		State:          model.OfferCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.mu.Lock()
	stored := offer
	m.offers[offerID] = &stored
	m.mu.Unlock()

	m.transition(offerID, model.OfferSent)
	offer.State = model.OfferSent
	return offer, status, nil
}

// ResolveConfirmation finishes the second-factor step for an offer in
// NeedsConfirmation. Calls for offers already resolved, unknown or in
// any other state are no-ops, so duplicate resolutions cannot double
// apply.
func (m *TradeOfferManager) ResolveConfirmation(ctx context.Context, offerID uint64, confirmed bool) {
	m.mu.Lock()
	offer, ok := m.offers[offerID]
	pending := ok && offer.State == model.OfferNeedsConfirmation
	m.mu.Unlock()
	if !pending {
		return
	}
	if confirmed {
		m.transition(offerID, model.OfferConfirmed)
		m.archiveExchange(ctx, offerID, "confirmed")
		return
	}
	m.transition(offerID, model.OfferCanceledBySecondFactor)
}

// AwaitingConfirmation lists the offers currently in NeedsConfirmation.
func (m *TradeOfferManager) AwaitingConfirmation() []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uint64
	for id, offer := range m.offers {
		if offer.State == model.OfferNeedsConfirmation {
			ids = append(ids, id)
		}
	}
	return ids
}

// Offer returns a copy of a tracked offer.
func (m *TradeOfferManager) Offer(id uint64) (model.TradeOffer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	offer, ok := m.offers[id]
	if !ok {
		return model.TradeOffer{}, false
	}
	return *offer, true
}

// markDeclined records the one allowed decline for an offer and reports
// whether this call claimed it.
func (m *TradeOfferManager) markDeclined(offerID uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, done := m.declined[offerID]; done {
		return false
	}
	m.declined[offerID] = struct{}{}
	return true
}

// transition moves an offer to a new state and publishes the change.
func (m *TradeOfferManager) transition(offerID uint64, next model.OfferState) {
	m.mu.Lock()
	offer, ok := m.offers[offerID]
	if !ok {
		m.mu.Unlock()
		return
	}
	old := offer.State
	offer.State = next
	offer.UpdatedAt = time.Now()
	snapshot := *offer
	m.mu.Unlock()

	if old == next {
		return
	}
	m.log.Info("offer state changed",
		zap.Uint64("offer", offerID),
		zap.String("from", string(old)), zap.String("to", string(next)))

	m.bus.Publish(model.OfferStateChangedEvent{
		OfferID:       snapshot.ID,
		Direction:     snapshot.Direction,
		Partner:       snapshot.Partner,
		OldState:      old,
		NewState:      next,
		ItemsGiven:    m.formatAssets(snapshot.ItemsToGive),
		ItemsReceived: m.formatAssets(snapshot.ItemsToReceive),
		At:            snapshot.UpdatedAt,
	})
}

func (m *TradeOfferManager) formatAssets(assets []model.Asset) []model.ItemPayload {
	payloads := make([]model.ItemPayload, 0, len(assets))
	for _, a := range assets {
		payloads = append(payloads, model.FormatItem(a, m.prices.FirstPrice(a.MarketHashName)))
	}
	return payloads
}

func (m *TradeOfferManager) archiveExchange(ctx context.Context, offerID uint64, status string) {
	if m.archive == nil {
		return
	}
	details, err := m.client.GetExchangeDetails(ctx, offerID)
	if err != nil {
		m.log.Warn("exchange details unavailable", zap.Uint64("offer", offerID), zap.Error(err))
		return
	}
	details.Status = status
	if details.CompletedAt.IsZero() {
		details.CompletedAt = time.Now()
	}
	if err := m.archive.SaveExchange(ctx, *details); err != nil {
		m.log.Warn("exchange archive write failed", zap.Uint64("offer", offerID), zap.Error(err))
	}
}

// localOfferState maps a remote SDK state to the local lifecycle state.
func localOfferState(remote model.RemoteOfferState) (model.OfferState, bool) {
	switch remote {
	case model.RemoteActive:
		return model.OfferActive, true
	case model.RemoteAccepted:
		return model.OfferAccepted, true
	case model.RemoteCountered:
		return model.OfferCountered, true
	case model.RemoteExpired:
		return model.OfferExpired, true
	case model.RemoteCanceled:
		return model.OfferCanceled, true
	case model.RemoteDeclined:
		return model.OfferDeclined, true
	case model.RemoteInvalidItems:
		return model.OfferInvalidItems, true
	case model.RemoteCreatedNeedsConfirmation:
		return model.OfferNeedsConfirmation, true
	case model.RemoteCanceledBySecondFactor:
		return model.OfferCanceledBySecondFactor, true
	case model.RemoteInEscrow:
		return model.OfferInEscrow, true
	}
	return "", false
}
