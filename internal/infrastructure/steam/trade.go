package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/useCases"
)

const defaultAPIBaseURL = "https://api.steampowered.com"

// steamID64Base converts between SteamID64 and the 32-bit account id
// used by the trade offer endpoints.
const steamID64Base = 76561197960265728

// TradeAPIClient is a thin request/response adapter over the Steam
// trade offer endpoints. Session establishment lives with the external
// identity provider; this client only carries the resulting cookies.
type TradeAPIClient struct {
	httpClient   *http.Client
	apiBaseURL   string
	communityURL string
	apiKey       string
	sessionID    string
	appID        int
	contextID    int
	language     string
}

func NewTradeAPIClient(apiKey, sessionID string, appID, contextID int, language string) *TradeAPIClient {
	return &TradeAPIClient{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		apiBaseURL:   defaultAPIBaseURL,
		communityURL: defaultCommunityBaseURL,
		apiKey:       apiKey,
		sessionID:    sessionID,
		appID:        appID,
		contextID:    contextID,
		language:     language,
	}
}

// WithBaseURLs points the client at different hosts. Used by tests.
func (c *TradeAPIClient) WithBaseURLs(apiBaseURL, communityURL string) *TradeAPIClient {
	c.apiBaseURL = apiBaseURL
	c.communityURL = communityURL
	return c
}

var _ useCases.TradeClient = (*TradeAPIClient)(nil)

type tradeOfferAsset struct {
	AppID     int    `json:"appid"`
	ContextID string `json:"contextid"`
	AssetID   string `json:"assetid"`
	Amount    int    `json:"amount"`
}

// SendOffer creates an offer asking the partner for the listed assets.
func (c *TradeAPIClient) SendOffer(ctx context.Context, partner string, assetIDs []string) (string, uint64, error) {
	them := make([]tradeOfferAsset, 0, len(assetIDs))
	for _, id := range assetIDs {
		them = append(them, tradeOfferAsset{
			AppID:     c.appID,
			ContextID: strconv.Itoa(c.contextID),
			AssetID:   id,
			Amount:    1,
		})
	}
	offer := map[string]any{
		"newversion": true,
		"version":    2,
		"me":         map[string]any{"assets": []tradeOfferAsset{}, "currency": []any{}, "ready": false},
		"them":       map[string]any{"assets": them, "currency": []any{}, "ready": false},
	}
	offerJSON, err := json.Marshal(offer)
	if err != nil {
		return "", 0, err
	}

	form := url.Values{
		"sessionid":                 {c.sessionID},
		"serverid":                  {"1"},
		"partner":                   {partner},
		"tradeoffermessage":         {""},
		"json_tradeoffer":           {string(offerJSON)},
		"trade_offer_create_params": {"{}"},
	}
	var result struct {
		TradeOfferID            string `json:"tradeofferid"`
		NeedsMobileConfirmation bool   `json:"needs_mobile_confirmation"`
	}
	if err := c.postForm(ctx, c.communityURL+"/tradeoffer/new/send", form, &result); err != nil {
		return "", 0, fmt.Errorf("send offer: %w", err)
	}
	offerID, err := strconv.ParseUint(result.TradeOfferID, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("send offer: bad offer id %q", result.TradeOfferID)
	}
	status := "sent"
	if result.NeedsMobileConfirmation {
		status = model.AcceptStatusPending
	}
	return status, offerID, nil
}

// AcceptOffer accepts an incoming offer. The returned status is
// "complete" once items moved, "pending" when a second-factor
// confirmation is still required.
func (c *TradeAPIClient) AcceptOffer(ctx context.Context, offerID uint64) (string, error) {
	id := strconv.FormatUint(offerID, 10)
	form := url.Values{
		"sessionid":    {c.sessionID},
		"serverid":     {"1"},
		"tradeofferid": {id},
	}
	var result struct {
		TradeID                 string `json:"tradeid"`
		NeedsMobileConfirmation bool   `json:"needs_mobile_confirmation"`
	}
	if err := c.postForm(ctx, c.communityURL+"/tradeoffer/"+id+"/accept", form, &result); err != nil {
		return "", fmt.Errorf("accept offer %d: %w", offerID, err)
	}
	if result.NeedsMobileConfirmation {
		return model.AcceptStatusPending, nil
	}
	return model.AcceptStatusComplete, nil
}

// DeclineOffer declines an offer through the web API.
func (c *TradeAPIClient) DeclineOffer(ctx context.Context, offerID uint64) error {
	form := url.Values{
		"key":          {c.apiKey},
		"tradeofferid": {strconv.FormatUint(offerID, 10)},
	}
	if err := c.postForm(ctx, c.apiBaseURL+"/IEconService/DeclineTradeOffer/v1/", form, &struct{}{}); err != nil {
		return fmt.Errorf("decline offer %d: %w", offerID, err)
	}
	return nil
}

type econOffer struct {
	TradeOfferID   string           `json:"tradeofferid"`
	AccountIDOther int64            `json:"accountid_other"`
	State          int              `json:"trade_offer_state"`
	IsOurOffer     bool             `json:"is_our_offer"`
	TimeCreated    int64            `json:"time_created"`
	TimeUpdated    int64            `json:"time_updated"`
	ItemsToGive    []econOfferAsset `json:"items_to_give"`
	ItemsToReceive []econOfferAsset `json:"items_to_receive"`
}

type econOfferAsset struct {
	AssetID    string `json:"assetid"`
	ClassID    string `json:"classid"`
	InstanceID string `json:"instanceid"`
}

type econDescription struct {
	ClassID        string `json:"classid"`
	InstanceID     string `json:"instanceid"`
	Name           string `json:"name"`
	NameColor      string `json:"name_color"`
	Type           string `json:"type"`
	MarketName     string `json:"market_name"`
	MarketHashName string `json:"market_hash_name"`
	Marketable     int    `json:"marketable"`
	IconURL        string `json:"icon_url"`
	IconURLLarge   string `json:"icon_url_large"`
}

type tradeOffersResponse struct {
	Response struct {
		Sent         []econOffer       `json:"trade_offers_sent"`
		Received     []econOffer       `json:"trade_offers_received"`
		Descriptions []econDescription `json:"descriptions"`
	} `json:"response"`
}

// getTradeOffers queries IEconService for the current offer sets.
func (c *TradeAPIClient) getTradeOffers(ctx context.Context, activeOnly bool) (*tradeOffersResponse, error) {
	params := url.Values{
		"key":                    {c.apiKey},
		"get_sent_offers":        {"1"},
		"get_received_offers":    {"1"},
		"get_descriptions":       {"1"},
		"language":               {c.language},
		"active_only":            {boolParam(activeOnly)},
		"historical_only":        {"0"},
		"time_historical_cutoff": {strconv.FormatInt(time.Now().Add(-time.Hour).Unix(), 10)},
	}
	var result tradeOffersResponse
	if err := c.getJSON(ctx, c.apiBaseURL+"/IEconService/GetTradeOffers/v1/?"+params.Encode(), &result); err != nil {
		return nil, fmt.Errorf("get trade offers: %w", err)
	}
	return &result, nil
}

// GetExchangeDetails reports the item movement of a completed offer.
func (c *TradeAPIClient) GetExchangeDetails(ctx context.Context, offerID uint64) (*model.TradeExchange, error) {
	params := url.Values{
		"key":          {c.apiKey},
		"tradeofferid": {strconv.FormatUint(offerID, 10)},
		"language":     {c.language},
	}
	var result struct {
		Response struct {
			Offer econOffer `json:"offer"`
		} `json:"response"`
	}
	if err := c.getJSON(ctx, c.apiBaseURL+"/IEconService/GetTradeOffer/v1/?"+params.Encode(), &result); err != nil {
		return nil, fmt.Errorf("get trade offer %d: %w", offerID, err)
	}
	offer := result.Response.Offer

	ex := &model.TradeExchange{
		OfferID:     offerID,
		Partner:     accountIDToSteamID64(offer.AccountIDOther),
		Direction:   model.DirectionIncoming,
		CompletedAt: time.Unix(offer.TimeUpdated, 0),
	}
	if offer.IsOurOffer {
		ex.Direction = model.DirectionOutgoing
	}
	for _, a := range offer.ItemsToGive {
		ex.SentAssetIDs = append(ex.SentAssetIDs, a.AssetID)
	}
	for _, a := range offer.ItemsToReceive {
		ex.ReceivedAssetIDs = append(ex.ReceivedAssetIDs, a.AssetID)
	}
	return ex, nil
}

type inventoryResponse struct {
	Assets []struct {
		AssetID    string `json:"assetid"`
		ClassID    string `json:"classid"`
		InstanceID string `json:"instanceid"`
	} `json:"assets"`
	Descriptions []econDescription `json:"descriptions"`
}

// LoadInventory lists the tradable items held by a Steam identity,
// joining asset instances with their shared descriptions.
func (c *TradeAPIClient) LoadInventory(ctx context.Context, steamID string) ([]model.Asset, error) {
	link := fmt.Sprintf("%s/inventory/%s/%d/%d?l=%s&count=5000",
		c.communityURL, steamID, c.appID, c.contextID, url.QueryEscape(c.language))
	var result inventoryResponse
	if err := c.getJSON(ctx, link, &result); err != nil {
		return nil, fmt.Errorf("load inventory %s: %w", steamID, err)
	}

	byClass := make(map[string]econDescription, len(result.Descriptions))
	for _, d := range result.Descriptions {
		byClass[d.ClassID+"_"+d.InstanceID] = d
	}
	assets := make([]model.Asset, 0, len(result.Assets))
	for _, a := range result.Assets {
		d := byClass[a.ClassID+"_"+a.InstanceID]
		assets = append(assets, model.Asset{
			AssetID:        a.AssetID,
			Name:           d.Name,
			NameColor:      d.NameColor,
			Type:           d.Type,
			MarketName:     d.MarketName,
			MarketHashName: d.MarketHashName,
			Marketable:     d.Marketable == 1,
			IconURL:        d.IconURL,
			IconURLLarge:   d.IconURLLarge,
		})
	}
	return assets, nil
}

func (c *TradeAPIClient) assetsFromEcon(items []econOfferAsset, descriptions map[string]econDescription) []model.Asset {
	assets := make([]model.Asset, 0, len(items))
	for _, item := range items {
		d := descriptions[item.ClassID+"_"+item.InstanceID]
		assets = append(assets, model.Asset{
			AssetID:        item.AssetID,
			Name:           d.Name,
			NameColor:      d.NameColor,
			Type:           d.Type,
			MarketName:     d.MarketName,
			MarketHashName: d.MarketHashName,
			Marketable:     d.Marketable == 1,
			IconURL:        d.IconURL,
			IconURLLarge:   d.IconURLLarge,
		})
	}
	return assets
}

func (c *TradeAPIClient) getJSON(ctx context.Context, link string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *TradeAPIClient) postForm(ctx context.Context, link string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, link, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.communityURL+"/tradeoffer/new")
	return c.do(req, out)
}

func (c *TradeAPIClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("status %d: %w", resp.StatusCode, useCases.ErrUnauthorized)
	default:
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func boolParam(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func accountIDToSteamID64(accountID int64) string {
	return strconv.FormatInt(accountID+steamID64Base, 10)
}

// SteamID64ToAccountID converts a 64-bit id to the short account id the
// trade offer form expects.
func SteamID64ToAccountID(steamID string) (string, error) {
	id, err := strconv.ParseInt(steamID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("bad steam id %q", steamID)
	}
	return strconv.FormatInt(id-steamID64Base, 10), nil
}
