package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/repository"
	"github.com/mih4lev/steam-bot-server/internal/domain/service"
	"github.com/mih4lev/steam-bot-server/internal/domain/useCases"
)

// Server exposes the bot API: inventory and price lookups, offer
// creation, the bulk catalog query and the event push channel.
type Server struct {
	log         *zap.Logger
	manager     *service.TradeOfferManager
	client      useCases.TradeClient
	prices      *service.PriceCache
	catalog     repository.CatalogRepository
	broadcaster useCases.Broadcaster
	router      chi.Router
	server      *http.Server
}

// NewServer creates a new HTTP server with configured routes
func NewServer(
	addr string,
	log *zap.Logger,
	manager *service.TradeOfferManager,
	client useCases.TradeClient,
	prices *service.PriceCache,
	catalog repository.CatalogRepository,
	broadcaster useCases.Broadcaster,
) *Server {
	router := chi.NewRouter()
	s := &Server{
		log:         log,
		manager:     manager,
		client:      client,
		prices:      prices,
		catalog:     catalog,
		broadcaster: broadcaster,
		router:      router,
		server: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
	s.registerRoutes()
	return s
}

// Router returns the configured route tree. Used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.Get("/api/health", s.handleHealth)
	s.router.Get("/api/inventory/{steamID}", s.handleInventory)
	s.router.Get("/api/inventory/{steamID}/price", s.handleInventoryWithPrice)
	s.router.Get("/api/item/{marketName}/price", s.handleItemPrice)
	s.router.Post("/api/trade/sell", s.handleSellOffer)
	s.router.Get("/api/trade/buy", s.handleCatalog)
	s.router.Get("/api/messages", s.broadcaster.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respond(w, map[string]any{
		"status":                 "ok",
		"price_snapshot_age_sec": int(s.prices.Age(time.Now()).Seconds()),
	})
}

func (s *Server) handleInventory(w http.ResponseWriter, r *http.Request) {
	steamID := chi.URLParam(r, "steamID")
	assets, err := s.client.LoadInventory(r.Context(), steamID)
	if err != nil {
		s.respondEmpty(w, "inventory lookup failed", err)
		return
	}
	s.respond(w, s.formatAssets(assets))
}

func (s *Server) handleInventoryWithPrice(w http.ResponseWriter, r *http.Request) {
	steamID := chi.URLParam(r, "steamID")
	assets, err := s.client.LoadInventory(r.Context(), steamID)
	if err != nil {
		s.respondEmpty(w, "inventory lookup failed", err)
		return
	}
	s.respond(w, s.formatAssetsWithPrices(r.Context(), assets))
}

func (s *Server) handleItemPrice(w http.ResponseWriter, r *http.Request) {
	marketName, err := url.PathUnescape(chi.URLParam(r, "marketName"))
	if err != nil {
		s.respondEmpty(w, "bad market name", err)
		return
	}
	price := s.prices.FirstPrice(marketName)
	if price == nil {
		s.respondEmpty(w, "no price for item", nil)
		return
	}
	s.respond(w, map[string]decimal.Decimal{"price": *price})
}

type sellOfferRequest struct {
	SteamID string   `json:"steamID"`
	Items   []string `json:"items"`
}

func (s *Server) handleSellOffer(w http.ResponseWriter, r *http.Request) {
	var req sellOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondEmpty(w, "bad sell offer body", err)
		return
	}
	offer, status, err := s.manager.CreateSellOffer(r.Context(), req.SteamID, req.Items)
	if err != nil {
		s.respondEmpty(w, "sell offer failed", err)
		return
	}
	s.respond(w, map[string]any{
		"status":  status,
		"offerID": strconv.FormatUint(offer.ID, 10),
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)
	items, err := s.catalog.ListItems(r.Context(), limit, offset)
	if err != nil {
		s.respondEmpty(w, "catalog query failed", err)
		return
	}
	s.respond(w, items)
}

func (s *Server) formatAssets(assets []model.Asset) []model.ItemPayload {
	payloads := make([]model.ItemPayload, 0, len(assets))
	for _, a := range assets {
		payloads = append(payloads, model.FormatItem(a, nil))
	}
	return payloads
}

// formatAssetsWithPrices prices each asset from the live snapshot,
// falling back to the catalog's last listed price for names the feed
// does not carry.
func (s *Server) formatAssetsWithPrices(ctx context.Context, assets []model.Asset) []model.ItemPayload {
	var missing []string
	seen := make(map[string]struct{})
	for _, a := range assets {
		if a.MarketHashName == "" || s.prices.FirstPrice(a.MarketHashName) != nil {
			continue
		}
		if _, ok := seen[a.MarketHashName]; ok {
			continue
		}
		seen[a.MarketHashName] = struct{}{}
		missing = append(missing, a.MarketHashName)
	}

	fallback := make(map[string]*decimal.Decimal, len(missing))
	if len(missing) > 0 {
		items, err := s.catalog.ItemsByMarketHashNames(ctx, missing)
		if err != nil {
			s.log.Warn("catalog price fallback failed", zap.Error(err))
		}
		for i := range items {
			item := &items[i]
			if item.PriceRU == nil {
				continue
			}
			if _, ok := fallback[item.MarketHashName]; !ok {
				fallback[item.MarketHashName] = item.PriceRU
			}
		}
	}

	payloads := make([]model.ItemPayload, 0, len(assets))
	for _, a := range assets {
		price := s.prices.FirstPrice(a.MarketHashName)
		if price == nil {
			price = fallback[a.MarketHashName]
		}
		payloads = append(payloads, model.FormatItem(a, price))
	}
	return payloads
}

func (s *Server) respond(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("failed to encode response", zap.Error(err))
	}
}

// respondEmpty logs the failure internally and answers with an empty
// object: no error detail crosses the transport boundary.
func (s *Server) respondEmpty(w http.ResponseWriter, msg string, err error) {
	s.log.Warn(msg, zap.Error(err))
	s.respond(w, struct{}{})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return defaultVal
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
