package steam_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/useCases"
	"github.com/mih4lev/steam-bot-server/internal/infrastructure/steam"
)

// offerFeed serves GetTradeOffers responses whose offer state can be
// swapped between polls. The offer appears under the received or the
// sent listing depending on the sent flag.
type offerFeed struct {
	mu    sync.Mutex
	state int
	sent  bool
}

func (f *offerFeed) setState(state int) {
	f.mu.Lock()
	f.state = state
	f.mu.Unlock()
}

func (f *offerFeed) handler(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	state := f.state
	sent := f.sent
	f.mu.Unlock()
	offer := map[string]any{
		"tradeofferid":      "5001",
		"accountid_other":   1,
		"trade_offer_state": state,
		"time_created":      1700000000,
		"time_updated":      1700000000,
		"items_to_receive": []map[string]any{
			{"assetid": "111", "classid": "10", "instanceid": "0"},
		},
	}
	listing := "trade_offers_received"
	if sent {
		listing = "trade_offers_sent"
	}
	json.NewEncoder(w).Encode(map[string]any{
		"response": map[string]any{
			listing: []map[string]any{offer},
			"descriptions": []map[string]any{
				{
					"classid": "10", "instanceid": "0",
					"market_hash_name": "AK-47 | Redline (Field-Tested)",
					"marketable":       1,
				},
			},
		},
	})
}

func TestPollerEmitsReceivedThenChanged(t *testing.T) {
	feed := &offerFeed{state: int(model.RemoteActive)}
	server := httptest.NewServer(http.HandlerFunc(feed.handler))
	defer server.Close()

	client := steam.NewTradeAPIClient("key", "session-1", 730, 2, "russian").
		WithBaseURLs(server.URL, server.URL)
	poller := steam.NewOfferPoller(zap.NewNop(), client, 10*time.Millisecond, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	var first model.TradeEvent
	select {
	case first = <-poller.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the received event")
	}
	received, ok := first.(model.OfferReceivedEvent)
	require.True(t, ok, "expected OfferReceivedEvent, got %T", first)
	assert.Equal(t, uint64(5001), received.Offer.ID)
	assert.Equal(t, model.DirectionIncoming, received.Offer.Direction)
	assert.Equal(t, "76561197960265729", received.Offer.Partner)
	require.Len(t, received.Offer.ItemsToReceive, 1)
	assert.Equal(t, "AK-47 | Redline (Field-Tested)", received.Offer.ItemsToReceive[0].MarketHashName)

	// An unchanged poll emits nothing; flipping the state emits one
	// change event.
	feed.setState(int(model.RemoteAccepted))

	var second model.TradeEvent
	select {
	case second = <-poller.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the change event")
	}
	changed, ok := second.(model.OfferChangedEvent)
	require.True(t, ok, "expected OfferChangedEvent, got %T", second)
	assert.Equal(t, uint64(5001), changed.OfferID)
	assert.Equal(t, model.RemoteActive, changed.OldState)
	assert.Equal(t, model.RemoteAccepted, changed.NewState)

	select {
	case ev := <-poller.Events():
		t.Fatalf("unexpected extra event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPollerAcknowledgesSentOffer(t *testing.T) {
	feed := &offerFeed{state: int(model.RemoteActive), sent: true}
	server := httptest.NewServer(http.HandlerFunc(feed.handler))
	defer server.Close()

	client := steam.NewTradeAPIClient("key", "session-1", 730, 2, "russian").
		WithBaseURLs(server.URL, server.URL)
	poller := steam.NewOfferPoller(zap.NewNop(), client, 10*time.Millisecond, 16)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Run(ctx)

	// The first poll that shows a locally created offer acknowledges
	// the send.
	var first model.TradeEvent
	select {
	case first = <-poller.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the send acknowledgment")
	}
	ack, ok := first.(model.OfferSendResultEvent)
	require.True(t, ok, "expected OfferSendResultEvent, got %T", first)
	assert.Equal(t, uint64(5001), ack.OfferID)
	assert.Equal(t, "sent", ack.Status)
	assert.NoError(t, ack.Err)

	feed.setState(int(model.RemoteCountered))

	var second model.TradeEvent
	select {
	case second = <-poller.Events():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the change event")
	}
	changed, ok := second.(model.OfferChangedEvent)
	require.True(t, ok, "expected OfferChangedEvent, got %T", second)
	assert.Equal(t, uint64(5001), changed.OfferID)
	assert.Equal(t, model.RemoteCountered, changed.NewState)
}

func TestPollerStopsOnAuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "access denied", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := steam.NewTradeAPIClient("key", "session-1", 730, 2, "russian").
		WithBaseURLs(server.URL, server.URL)
	poller := steam.NewOfferPoller(zap.NewNop(), client, time.Millisecond, 16)

	done := make(chan error, 1)
	go func() { done <- poller.Run(context.Background()) }()

	// A rejected credential ends the loop instead of being retried.
	select {
	case err := <-done:
		assert.ErrorIs(t, err, useCases.ErrUnauthorized)
	case <-time.After(2 * time.Second):
		t.Fatal("poller kept retrying a rejected credential")
	}
}

func TestPollerClosesStreamOnCancel(t *testing.T) {
	feed := &offerFeed{state: int(model.RemoteActive)}
	server := httptest.NewServer(http.HandlerFunc(feed.handler))
	defer server.Close()

	client := steam.NewTradeAPIClient("key", "session-1", 730, 2, "russian").
		WithBaseURLs(server.URL, server.URL)
	poller := steam.NewOfferPoller(zap.NewNop(), client, time.Millisecond, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop on cancel")
	}

	for range poller.Events() {
		// drain until the close
	}
}
