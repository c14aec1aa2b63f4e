package model

import (
	"github.com/shopspring/decimal"
)

// EconImageBase is the CDN prefix for economy item icons.
const EconImageBase = "http://cdn.steamcommunity.com/economy/image/"

// Asset is one item instance held in a Steam inventory.
type Asset struct {
	AssetID        string
	Name           string
	NameColor      string
	Type           string
	MarketName     string
	MarketHashName string
	Marketable     bool
	IconURL        string
	IconURLLarge   string
}

// ItemIcons holds CDN links for an item image in two sizes.
type ItemIcons struct {
	Thumb string `json:"thumb"`
	Image string `json:"image"`
}

// ItemPayload is the wire shape of an item in API responses and events.
type ItemPayload struct {
	AssetID        string           `json:"assetid"`
	Name           string           `json:"name"`
	NameColor      string           `json:"name_color"`
	Type           string           `json:"type"`
	MarketName     string           `json:"market_name"`
	MarketHashName string           `json:"market_hash_name"`
	Marketable     bool             `json:"marketable"`
	Price          *decimal.Decimal `json:"price"`
	Icons          ItemIcons        `json:"icons"`
}

// FormatItem builds the wire payload for an asset. Price is in major
// currency units, nil when unknown.
func FormatItem(a Asset, price *decimal.Decimal) ItemPayload {
	return ItemPayload{
		AssetID:        a.AssetID,
		Name:           a.Name,
		NameColor:      a.NameColor,
		Type:           a.Type,
		MarketName:     a.MarketName,
		MarketHashName: a.MarketHashName,
		Marketable:     a.Marketable,
		Price:          price,
		Icons: ItemIcons{
			Thumb: EconImageBase + a.IconURL,
			Image: EconImageBase + a.IconURLLarge,
		},
	}
}

// Taxonomy is the structured classification extracted from localized
// display strings. Zero values mean the field was not detected.
type Taxonomy struct {
	Strange     bool
	Unusual     bool
	Tournament  bool
	Rarity      string
	WeaponGroup int // 1..6, 0 when undetected
	RarityNum   int // 1..5, 0 when undetected
	Name        string
	Skin        string
	Exterior    string
	ExteriorNum *int // 0..4 wear scale, nil when undetected
}

// CatalogItem is one persisted row of the local item catalog.
type CatalogItem struct {
	AssetID        uint64 // stable item identifier (feed nameID)
	MarketName     string
	MarketHashName string
	BorderColor    string
	Image          string

	// Bulk feed fields
	PriceLatest decimal.Decimal
	PriceMin    decimal.Decimal
	PriceMax    decimal.Decimal
	Sold24H     int
	Sold7D      int
	Sold30D     int
	FirstSeen   int64
	UpdatedAt   int64

	// Detail refresh fields
	FullNameRU  string
	NameRU      string
	SkinRU      string
	ExteriorRU  string
	ExteriorNum *int
	ItemTypeRU  string
	PriceRU     *decimal.Decimal
	Strange     bool
	Unusual     bool
	Tournament  bool
	Rarity      string
	WeaponGroup int
	RarityNum   int

	BotVolume   int   // 1 when the bot currently holds this item
	SteamUpdate int64 // unix seconds of the last detail refresh
}

// ItemDetails is the merged field set written by one detail refresh.
type ItemDetails struct {
	FullNameRU  string
	ItemTypeRU  string
	PriceRU     *decimal.Decimal
	Taxonomy    Taxonomy
	SteamUpdate int64
}

// ListingDetail is what the per-item detail source yields for one
// market_hash_name.
type ListingDetail struct {
	FullName       string
	TypeDescriptor string
	Price          *decimal.Decimal
}
