package steam

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
)

const defaultCommunityBaseURL = "https://steamcommunity.com"

// ListingDetailClient fetches the localized market listing detail for a
// single item: display name, type descriptor and the first listed
// with-fee price.
type ListingDetailClient struct {
	httpClient *http.Client
	baseURL    string
	appID      int
	contextID  int
	country    string
	language   string
	currency   int
}

func NewListingDetailClient(appID, contextID int, country, language string, currency int) *ListingDetailClient {
	return &ListingDetailClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultCommunityBaseURL,
		appID:      appID,
		contextID:  contextID,
		country:    country,
		language:   language,
		currency:   currency,
	}
}

// WithBaseURL points the client at a different host. Used by tests.
func (c *ListingDetailClient) WithBaseURL(baseURL string) *ListingDetailClient {
	c.baseURL = baseURL
	return c
}

type renderAsset struct {
	Type string `json:"type"`
}

type renderResponse struct {
	Success     bool                                          `json:"success"`
	ResultsHTML string                                        `json:"results_html"`
	Assets      map[string]map[string]map[string]renderAsset `json:"assets"`
}

// FetchDetail requests the listing render endpoint and extracts the
// fields the catalog needs. The HTML structure beyond the two selectors
// is not part of any contract here.
func (c *ListingDetailClient) FetchDetail(ctx context.Context, marketHashName string) (*model.ListingDetail, error) {
	link := fmt.Sprintf(
		"%s/market/listings/%d/%s/render/?query=&start=0&count=10&country=%s&language=%s&currency=%d",
		c.baseURL, c.appID, url.PathEscape(marketHashName), c.country, c.language, c.currency,
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing status %d", resp.StatusCode)
	}

	var render renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&render); err != nil {
		return nil, fmt.Errorf("listing decode: %w", err)
	}

	detail := &model.ListingDetail{}
	if contexts, ok := render.Assets[strconv.Itoa(c.appID)]; ok {
		if assets, ok := contexts[strconv.Itoa(c.contextID)]; ok {
			for _, asset := range assets {
				detail.TypeDescriptor = asset.Type
			}
		}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(render.ResultsHTML))
	if err != nil {
		return nil, fmt.Errorf("listing html parse: %w", err)
	}
	detail.FullName = strings.TrimSpace(doc.Find(".market_listing_item_name").First().Text())

	doc.Find(".market_listing_price.market_listing_price_with_fee").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		price, ok := parseListingPrice(sel.Text())
		if !ok {
			return true
		}
		detail.Price = &price
		return false
	})

	return detail, nil
}

var nonPriceChars = regexp.MustCompile(`[^\d.]`)

// parseListingPrice turns a localized price string like "1 234,56 pуб."
// into a decimal value. The currency suffix can carry its own dot, so
// stray dots at either end are dropped after the digit filter.
func parseListingPrice(raw string) (decimal.Decimal, bool) {
	cleaned := nonPriceChars.ReplaceAllString(strings.Replace(raw, ",", ".", 1), "")
	cleaned = strings.Trim(cleaned, ".")
	if cleaned == "" {
		return decimal.Decimal{}, false
	}
	price, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return price, true
}
