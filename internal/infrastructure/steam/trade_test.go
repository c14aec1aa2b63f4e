package steam_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/useCases"
	"github.com/mih4lev/steam-bot-server/internal/infrastructure/steam"
)

func TestSteamID64ToAccountID(t *testing.T) {
	accountID, err := steam.SteamID64ToAccountID("76561197960265729")
	require.NoError(t, err)
	assert.Equal(t, "1", accountID)

	_, err = steam.SteamID64ToAccountID("not-a-number")
	require.Error(t, err)
}

func TestSendOfferStatuses(t *testing.T) {
	var gotForm map[string]string
	needsConfirmation := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"sessionid":       r.PostFormValue("sessionid"),
			"partner":         r.PostFormValue("partner"),
			"json_tradeoffer": r.PostFormValue("json_tradeoffer"),
		}
		json.NewEncoder(w).Encode(map[string]any{
			"tradeofferid":              "7001",
			"needs_mobile_confirmation": needsConfirmation,
		})
	}))
	defer server.Close()

	client := steam.NewTradeAPIClient("key", "session-1", 730, 2, "russian").
		WithBaseURLs(server.URL, server.URL)

	status, offerID, err := client.SendOffer(context.Background(), "76561198000000001", []string{"111", "222"})
	require.NoError(t, err)
	assert.Equal(t, "sent", status)
	assert.Equal(t, uint64(7001), offerID)
	assert.Equal(t, "session-1", gotForm["sessionid"])
	assert.Equal(t, "76561198000000001", gotForm["partner"])

	var offer struct {
		Them struct {
			Assets []struct {
				AssetID string `json:"assetid"`
			} `json:"assets"`
		} `json:"them"`
	}
	require.NoError(t, json.Unmarshal([]byte(gotForm["json_tradeoffer"]), &offer))
	require.Len(t, offer.Them.Assets, 2)
	assert.Equal(t, "111", offer.Them.Assets[0].AssetID)

	needsConfirmation = true
	status, _, err = client.SendOffer(context.Background(), "76561198000000001", []string{"111"})
	require.NoError(t, err)
	assert.Equal(t, model.AcceptStatusPending, status)
}

func TestAcceptOfferStatuses(t *testing.T) {
	needsConfirmation := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tradeoffer/5001/accept", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"tradeid":                   "900",
			"needs_mobile_confirmation": needsConfirmation,
		})
	}))
	defer server.Close()

	client := steam.NewTradeAPIClient("key", "session-1", 730, 2, "russian").
		WithBaseURLs(server.URL, server.URL)

	status, err := client.AcceptOffer(context.Background(), 5001)
	require.NoError(t, err)
	assert.Equal(t, model.AcceptStatusPending, status)

	needsConfirmation = false
	status, err = client.AcceptOffer(context.Background(), 5001)
	require.NoError(t, err)
	assert.Equal(t, model.AcceptStatusComplete, status)
}

func TestTradeClientUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session expired", http.StatusForbidden)
	}))
	defer server.Close()

	client := steam.NewTradeAPIClient("key", "session-1", 730, 2, "russian").
		WithBaseURLs(server.URL, server.URL)

	_, err := client.AcceptOffer(context.Background(), 5001)
	require.Error(t, err)
	assert.True(t, errors.Is(err, useCases.ErrUnauthorized))
}

func TestLoadInventoryJoinsDescriptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inventory/76561198000000001/730/2", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"assets": []map[string]any{
				{"assetid": "111", "classid": "10", "instanceid": "0"},
				{"assetid": "112", "classid": "10", "instanceid": "0"},
				{"assetid": "113", "classid": "20", "instanceid": "0"},
			},
			"descriptions": []map[string]any{
				{
					"classid": "10", "instanceid": "0",
					"name":             "AK-47 | Редлайн",
					"market_hash_name": "AK-47 | Redline (Field-Tested)",
					"marketable":       1,
				},
				{
					"classid": "20", "instanceid": "0",
					"name":             "Граффити",
					"market_hash_name": "Sealed Graffiti | Popdog",
					"marketable":       0,
				},
			},
		})
	}))
	defer server.Close()

	client := steam.NewTradeAPIClient("key", "session-1", 730, 2, "russian").
		WithBaseURLs(server.URL, server.URL)

	assets, err := client.LoadInventory(context.Background(), "76561198000000001")
	require.NoError(t, err)
	require.Len(t, assets, 3)

	// Two asset instances share one description.
	assert.Equal(t, "111", assets[0].AssetID)
	assert.Equal(t, "AK-47 | Redline (Field-Tested)", assets[0].MarketHashName)
	assert.Equal(t, assets[0].MarketHashName, assets[1].MarketHashName)
	assert.True(t, assets[0].Marketable)
	assert.False(t, assets[2].Marketable)
}

func TestGetExchangeDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{
				"offer": map[string]any{
					"tradeofferid":      "5001",
					"accountid_other":   1,
					"trade_offer_state": 3,
					"is_our_offer":      true,
					"time_updated":      1700000000,
					"items_to_give":     []map[string]any{{"assetid": "111"}},
					"items_to_receive":  []map[string]any{{"assetid": "222"}, {"assetid": "223"}},
				},
			},
		})
	}))
	defer server.Close()

	client := steam.NewTradeAPIClient("key", "session-1", 730, 2, "russian").
		WithBaseURLs(server.URL, server.URL)

	exchange, err := client.GetExchangeDetails(context.Background(), 5001)
	require.NoError(t, err)
	assert.Equal(t, uint64(5001), exchange.OfferID)
	assert.Equal(t, "76561197960265729", exchange.Partner)
	assert.Equal(t, model.DirectionOutgoing, exchange.Direction)
	assert.Equal(t, []string{"111"}, exchange.SentAssetIDs)
	assert.Equal(t, []string{"222", "223"}, exchange.ReceivedAssetIDs)
	assert.Equal(t, int64(1700000000), exchange.CompletedAt.Unix())
}
