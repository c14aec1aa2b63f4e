package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mih4lev/steam-bot-server/config"
	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	"github.com/mih4lev/steam-bot-server/internal/domain/repository"
	"github.com/mih4lev/steam-bot-server/internal/domain/service"
	"github.com/mih4lev/steam-bot-server/internal/domain/useCases"
	ws "github.com/mih4lev/steam-bot-server/internal/handlers/websocket"
	"github.com/mih4lev/steam-bot-server/internal/infrastructure/cache"
	"github.com/mih4lev/steam-bot-server/internal/infrastructure/queue"
	"github.com/mih4lev/steam-bot-server/internal/infrastructure/steam"
	"github.com/mih4lev/steam-bot-server/internal/infrastructure/storage"
	"github.com/mih4lev/steam-bot-server/pkg/utils"
)

// AppContext holds all app dependencies
type AppContext struct {
	Config        *config.Config
	Log           *zap.Logger
	PriceCache    *service.PriceCache
	Bus           *service.EventBus
	Catalog       *storage.PostgresCatalogRepository
	Broadcaster   *ws.WebSocketBroadcaster
	KafkaProducer *queue.KafkaProducer

	// Trade is the client the services run against. Offline marks the
	// credential-less debug mode where it is an in-memory stand-in and
	// the poller must not be started.
	Trade              useCases.TradeClient
	Offline            bool
	SteamAPI           *steam.TradeAPIClient
	ConfirmationClient *steam.ConfirmationQueueClient
	Poller             *steam.OfferPoller

	Manager     *service.TradeOfferManager
	Coordinator *service.ConfirmationCoordinator
	CatalogSync *service.CatalogSyncScheduler
	Reconciler  *service.InventoryReconciler

	archive *storage.ClickHouseArchive
	mirror  *cache.RedisMirror
}

// NewApp initializes the app context with all dependencies
func NewApp(ctx context.Context, log *zap.Logger, cfg *config.Config) (*AppContext, error) {
	app := &AppContext{Config: cfg, Log: log}

	app.PriceCache = service.NewPriceCache()
	app.Bus = service.NewEventBus()

	// Catalog storage is the one hard dependency.
	catalog, err := storage.NewPostgresCatalogRepository(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres catalog: %w", err)
	}
	app.Catalog = catalog
	log.Info("Postgres catalog storage initialized")

	// Exchange archive is optional: without it completed trades are
	// only visible in logs and events.
	var tradeArchive repository.TradeArchive
	if cfg.ClickhouseAddr != "" {
		archive, err := storage.NewClickHouseArchive(storage.ClickHouseConfig{
			Addr:     cfg.ClickhouseAddr,
			Username: cfg.ClickhouseUsername,
			Password: cfg.ClickhousePassword,
			Timeout:  cfg.ClickhouseTimeout,
		})
		if err != nil {
			log.Warn("ClickHouse unavailable, trade archive disabled", zap.Error(err))
		} else {
			app.archive = archive
			tradeArchive = archive
			log.Info("ClickHouse trade archive initialized")
		}
	}

	// Snapshot mirror is best-effort: the authoritative copy stays in
	// process memory.
	var mirror repository.PriceMirror
	if cfg.RedisAddr != "" {
		app.mirror = cache.NewRedisMirror(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		mirror = app.mirror
		log.Info("Redis price mirror initialized")
	}

	app.Broadcaster = ws.NewWebSocketBroadcaster(log)
	app.Bus.Subscribe(model.EventOfferStateChanged, app.Broadcaster.BroadcastEvent)
	app.Bus.Subscribe(model.EventConfirmationStuck, app.Broadcaster.BroadcastEvent)

	app.KafkaProducer = queue.NewKafkaProducer(queue.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	})
	if app.KafkaProducer != nil {
		producer := app.KafkaProducer
		publish := func(event model.DomainEvent) {
			if err := producer.PublishEvent(ctx, event); err != nil {
				log.Warn("kafka event publish failed", zap.Error(err))
			}
		}
		app.Bus.Subscribe(model.EventOfferStateChanged, publish)
		app.Bus.Subscribe(model.EventConfirmationStuck, publish)
		log.Info("Kafka event export initialized")
	} else {
		log.Info("Kafka not configured, events stay in-process")
	}

	app.SteamAPI = steam.NewTradeAPIClient(
		cfg.SteamAPIKey, cfg.SteamSessionID,
		cfg.SteamAppID, cfg.SteamContextID, cfg.SteamLanguage,
	)
	app.ConfirmationClient = steam.NewConfirmationQueueClient(
		cfg.SteamID, cfg.SteamDeviceID,
		steam.KeyProviderFromSecret(cfg.SteamIdentitySecret),
	)
	app.Poller = steam.NewOfferPoller(log, app.SteamAPI, cfg.OfferPollInterval, cfg.EventBufferSize)

	app.Trade = app.SteamAPI
	if cfg.Debug && cfg.SteamAPIKey == "" {
		app.Offline = true
		app.Trade = utils.NewOfflineTradeClient()
		log.Info("No Steam credentials in debug mode, using offline trade client")
	}

	app.Manager = service.NewTradeOfferManager(log, app.Trade, app.Bus, app.PriceCache, tradeArchive, nil)
	app.Coordinator = service.NewConfirmationCoordinator(
		log, app.ConfirmationClient, app.Manager, app.Bus,
		cfg.ConfirmationInterval, cfg.ConfirmationStuckCycles,
	)

	feed := steam.NewBulkFeedClient(cfg.SteamAPIKey, cfg.SteamAppID, currencyCode(cfg.SteamCurrency))
	details := steam.NewListingDetailClient(cfg.SteamAppID, cfg.SteamContextID, "RU", cfg.SteamLanguage, cfg.SteamCurrency)
	app.CatalogSync = service.NewCatalogSyncScheduler(
		log, feed, details, app.Catalog, mirror, app.PriceCache,
		cfg.BulkRefreshInterval, cfg.DetailSleepMin, cfg.DetailSleepJitter,
	)

	app.Reconciler = service.NewInventoryReconciler(log, app.Trade, app.Catalog, cfg.SteamID, cfg.InventoryInterval)

	return app, nil
}

// Cleanup performs graceful shutdown of all components
func (a *AppContext) Cleanup() {
	if a.KafkaProducer != nil {
		if err := a.KafkaProducer.Close(); err != nil {
			a.Log.Warn("closing Kafka producer", zap.Error(err))
		}
	}
	if a.mirror != nil {
		if err := a.mirror.Close(); err != nil {
			a.Log.Warn("closing Redis mirror", zap.Error(err))
		}
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			a.Log.Warn("closing ClickHouse archive", zap.Error(err))
		}
	}
	if a.Catalog != nil {
		if err := a.Catalog.Close(); err != nil {
			a.Log.Warn("closing Postgres catalog", zap.Error(err))
		}
	}
	a.Log.Info("All resources cleaned up")
}

// currencyCode maps the numeric Steam currency id to the feed's
// textual code. Only the currencies the bot actually runs with are
// listed; anything else falls back to USD.
func currencyCode(id int) string {
	switch id {
	case 5:
		return "RUB"
	case 3:
		return "EUR"
	default:
		return "USD"
	}
}
