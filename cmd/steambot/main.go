package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mih4lev/steam-bot-server/config"
	"github.com/mih4lev/steam-bot-server/internal/app"
	"github.com/mih4lev/steam-bot-server/internal/domain/model"
	httphandlers "github.com/mih4lev/steam-bot-server/internal/handlers/http"
	"github.com/mih4lev/steam-bot-server/pkg/utils"
)

func main() {
	cfg := config.LoadConfig()
	log := setupLogger(cfg.Debug)
	defer log.Sync()

	// Create cancellable context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutting down...")
		cancel()
	}()

	log.Info("Initializing app...")
	application, err := app.NewApp(ctx, log, cfg)
	if err != nil {
		log.Fatal("Failed to initialize app", zap.Error(err))
	}

	// Pick the offer event source: the real poller, or a generator
	// when running offline.
	var events <-chan model.TradeEvent
	if application.Offline {
		events = runOfferGenerator(ctx, log)
	} else {
		go func() {
			if err := application.Poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Fatal("Offer poller failed", zap.Error(err))
			}
		}()
		events = application.Poller.Events()
	}

	log.Info("Starting trade offer manager...")
	go func() {
		if err := application.Manager.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal("Trade offer manager failed", zap.Error(err))
		}
	}()

	log.Info("Starting confirmation coordinator...")
	go func() {
		if err := application.Coordinator.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Fatal("Confirmation coordinator failed", zap.Error(err))
		}
	}()

	log.Info("Starting catalog sync loops...")
	go func() {
		if err := application.CatalogSync.RunBulk(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Bulk refresh loop stopped", zap.Error(err))
		}
	}()
	go func() {
		if err := application.CatalogSync.RunDetail(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Detail refresh loop stopped", zap.Error(err))
		}
	}()

	log.Info("Starting inventory reconciler...")
	go func() {
		if err := application.Reconciler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Inventory reconciler stopped", zap.Error(err))
		}
	}()

	// Set up HTTP server
	httpAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	httpServer := httphandlers.NewServer(
		httpAddr, log,
		application.Manager, application.Trade,
		application.PriceCache, application.Catalog, application.Broadcaster,
	)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", httpAddr))
		if err := httpServer.Start(); err != nil {
			log.Info("HTTP server stopped", zap.Error(err))
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	log.Info("Shutting down HTTP server...")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", zap.Error(err))
	}

	log.Info("Cleaning up app resources...")
	application.Cleanup()

	log.Info("Service stopped.")
}

// runOfferGenerator emits synthetic incoming offers so the full event
// path can be exercised without Steam credentials.
func runOfferGenerator(ctx context.Context, log *zap.Logger) <-chan model.TradeEvent {
	events := make(chan model.TradeEvent, 16)
	gen := utils.NewOfferGenerator()
	go func() {
		defer close(events)
		log.Info("Starting offer generator...")
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info("Offer generator stopped")
				return
			case <-ticker.C:
				select {
				case events <- gen.GenerateIncomingOffer(2):
				case <-ctx.Done():
				}
			}
		}
	}()
	return events
}

func setupLogger(debug bool) *zap.Logger {
	if debug {
		log, err := zap.NewDevelopment()
		if err != nil {
			panic(err)
		}
		return log
	}
	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	return log
}
