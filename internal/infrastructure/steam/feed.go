package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
)

const defaultFeedBaseURL = "https://api.steamapis.com"

// BulkFeedClient fetches the whole bulk price feed in one request.
type BulkFeedClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	appID      int
	currency   string
}

func NewBulkFeedClient(apiKey string, appID int, currency string) *BulkFeedClient {
	return &BulkFeedClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultFeedBaseURL,
		apiKey:     apiKey,
		appID:      appID,
		currency:   currency,
	}
}

// WithBaseURL points the client at a different feed host. Used by tests.
func (c *BulkFeedClient) WithBaseURL(baseURL string) *BulkFeedClient {
	c.baseURL = baseURL
	return c
}

type feedSold struct {
	Last24H int `json:"last_24h"`
	Last7D  int `json:"last_7d"`
	Last30D int `json:"last_30d"`
}

type feedPrices struct {
	Latest    decimal.Decimal `json:"latest"`
	Min       decimal.Decimal `json:"min"`
	Max       decimal.Decimal `json:"max"`
	Sold      feedSold        `json:"sold"`
	FirstSeen int64           `json:"first_seen"`
}

type feedItem struct {
	NameID         uint64     `json:"nameID"`
	MarketName     string     `json:"market_name"`
	MarketHashName string     `json:"market_hash_name"`
	BorderColor    string     `json:"border_color"`
	Image          string     `json:"image"`
	Prices         feedPrices `json:"prices"`
	UpdatedAt      int64      `json:"updated_at"`
}

type feedResponse struct {
	Data []feedItem `json:"data"`
}

// FetchAll downloads the feed and returns both the price snapshot and
// the catalog rows seen in it. Feed rows without a stable id or market
// name are dropped from the catalog but kept in the snapshot.
func (c *BulkFeedClient) FetchAll(ctx context.Context) (*model.PriceSnapshot, []model.CatalogItem, error) {
	url := fmt.Sprintf("%s/market/items/%d?api_key=%s", c.baseURL, c.appID, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("bulk feed request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("bulk feed status %d", resp.StatusCode)
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, nil, fmt.Errorf("bulk feed decode: %w", err)
	}

	snap := &model.PriceSnapshot{
		Source:    "steamapis",
		Currency:  c.currency,
		FetchedAt: time.Now(),
		Entries:   make(map[string][]model.PriceEntry, len(feed.Data)),
	}
	items := make([]model.CatalogItem, 0, len(feed.Data))
	for _, row := range feed.Data {
		entry := model.PriceEntry{
			MarketHashName: row.MarketHashName,
			Latest:         row.Prices.Latest,
			Min:            row.Prices.Min,
			Max:            row.Prices.Max,
			Sold24H:        row.Prices.Sold.Last24H,
			Sold7D:         row.Prices.Sold.Last7D,
			Sold30D:        row.Prices.Sold.Last30D,
			FirstSeen:      row.Prices.FirstSeen,
			UpdatedAt:      row.UpdatedAt,
		}
		// Duplicate names are kept side by side; callers pick by rule.
		snap.Entries[row.MarketHashName] = append(snap.Entries[row.MarketHashName], entry)

		if row.NameID == 0 || row.MarketName == "" {
			continue
		}
		items = append(items, model.CatalogItem{
			AssetID:        row.NameID,
			MarketName:     row.MarketName,
			MarketHashName: row.MarketHashName,
			BorderColor:    row.BorderColor,
			Image:          row.Image,
			PriceLatest:    row.Prices.Latest,
			PriceMin:       row.Prices.Min,
			PriceMax:       row.Prices.Max,
			Sold24H:        row.Prices.Sold.Last24H,
			Sold7D:         row.Prices.Sold.Last7D,
			Sold30D:        row.Prices.Sold.Last30D,
			FirstSeen:      row.Prices.FirstSeen,
			UpdatedAt:      row.UpdatedAt,
		})
	}
	return snap, items, nil
}
