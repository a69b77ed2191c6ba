package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shipping-gateway/internal/core/cache"
	"shipping-gateway/internal/core/config"
	"shipping-gateway/internal/core/logger"
	"shipping-gateway/internal/core/proxy"
	"shipping-gateway/internal/core/server"
	courieradapters "shipping-gateway/internal/features/couriers/adapters"
	cports "shipping-gateway/internal/features/couriers/ports"
	courierservice "shipping-gateway/internal/features/couriers/service"
	labeladapters "shipping-gateway/internal/features/labels/adapters"
	labelhandler "shipping-gateway/internal/features/labels/handler"
	labelservice "shipping-gateway/internal/features/labels/service"
	quotingadapters "shipping-gateway/internal/features/quoting/adapters"
	qdomain "shipping-gateway/internal/features/quoting/domain"
	quotinghandler "shipping-gateway/internal/features/quoting/handler"
	quotingservice "shipping-gateway/internal/features/quoting/service"
	trackingadapters "shipping-gateway/internal/features/tracking/adapters"
	trackinghandler "shipping-gateway/internal/features/tracking/handler"
	tports "shipping-gateway/internal/features/tracking/ports"
	trackingservice "shipping-gateway/internal/features/tracking/service"

	"go.uber.org/zap"
)

// @title Shipping Gateway API
// @version 1.0
// @description Multi-carrier shipping quotation, label lifecycle, and tracking normalization for Indonesian logistics.
// @contact.name API Support
// @contact.email support@flockstore.com
// @license.name MIT
// @host localhost:8080
// @BasePath /
func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Environment, cfg.LogLevel); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	l := logger.Get()
	l.Info("Application starting",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.LogLevel),
	)

	redisAdapter, err := cache.NewRedisAdapter(cfg.RedisURL)
	if err != nil {
		l.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisAdapter.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisAdapter.Ping(pingCtx); err != nil {
		cancelPing()
		l.Fatal("Redis health check failed", zap.Error(err))
	}
	cancelPing()
	l.Info("Redis connection verified")

	// Repositories
	rateRepo := quotingadapters.NewRedisRateRepository(redisAdapter)
	labelRepo := labeladapters.NewRedisLabelRepository(redisAdapter.Client())
	eventRepo := trackingadapters.NewRedisEventRepository(redisAdapter.Client())

	// Instant-courier provider adapters
	registry := cports.NewRegistry(
		courieradapters.NewGoSendAdapter(cfg.Couriers.GoSend),
		courieradapters.NewGrabExpressAdapter(cfg.Couriers.GrabExpress),
		courieradapters.NewLalamoveAdapter(cfg.Couriers.Lalamove),
		courieradapters.NewBorzoAdapter(cfg.Couriers.Borzo),
	)

	// Collaborator clients
	orderClient := labeladapters.NewOrderHTTPClient(cfg.Orders)
	if err := orderClient.HealthCheck(); err != nil {
		l.Fatal("Order API health check failed", zap.Error(err))
	}
	l.Info("Order API connection verified")
	var notifier tports.NotificationClient
	if cfg.Notifications.Enabled {
		notifier = trackingadapters.NewHTTPNotificationClient(cfg.Notifications)
	} else {
		notifier = trackingadapters.NewLogNotificationClient()
	}

	// Services
	rankingPolicy := qdomain.RankingPolicy{
		CostWeight: cfg.Ranking.CostWeight,
		TimeWeight: cfg.Ranking.TimeWeight,
	}
	staticEngine := quotingservice.NewStaticEngine(rateRepo, rankingPolicy)
	aggregator := courierservice.NewAggregator(registry, rankingPolicy, cfg.Aggregator)
	labelService := labelservice.NewLabelService(labelRepo, orderClient, registry)
	normalizer := trackingservice.NewNormalizer(eventRepo, labelService, notifier)

	// Polling source: provider APIs plus the scraper for the carrier whose
	// only tracking surface is its web page.
	kurirlokal := trackingadapters.NewKurirLokalScraper(cfg.Couriers.KurirLokal.TrackingURL, proxy.Settings{
		Enabled:  cfg.Proxy.Enabled,
		Hostname: cfg.Proxy.Hostname,
		Port:     cfg.Proxy.Port,
		Username: cfg.Proxy.Username,
		Password: cfg.Proxy.Password,
	})
	scheduler := trackingadapters.NewCronScheduler()
	defer scheduler.Stop()

	poller := trackingservice.NewPoller(labelService, registry,
		map[string]trackingservice.TimelineSource{"kurirlokal": kurirlokal},
		normalizer, scheduler)
	pollInterval := time.Duration(cfg.Tracking.PollIntervalMinutes) * time.Minute
	if err := poller.Start(pollInterval); err != nil {
		l.Fatal("Failed to start tracking poller", zap.Error(err))
	}
	l.Info("Tracking poller scheduled", zap.Duration("interval", pollInterval))

	// Handlers
	quoteHandler := quotinghandler.NewQuoteHandler(staticEngine, aggregator)
	labelHandler := labelhandler.NewLabelHandler(labelService)
	trackingHandler := trackinghandler.NewTrackingHandler(normalizer, registry)

	srv := server.New(cfg)

	srv.App.Post("/quotes/static", quoteHandler.QuoteStatic)
	srv.App.Post("/quotes/instant", quoteHandler.QuoteInstant)

	srv.App.Post("/labels", labelHandler.Create)
	srv.App.Get("/labels/:id", labelHandler.Get)
	srv.App.Post("/labels/:id/generate", labelHandler.Generate)
	srv.App.Post("/labels/:id/print", labelHandler.Print)
	srv.App.Post("/labels/:id/attach", labelHandler.Attach)
	srv.App.Post("/labels/:id/cancel", labelHandler.Cancel)

	srv.App.Get("/tracking/:number", trackingHandler.GetTimeline)
	srv.App.Post("/tracking/webhooks/:provider", trackingHandler.ReceiveWebhook)

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		if err := srv.Shutdown(); err != nil {
			l.Error("Server shutdown failed", zap.Error(err))
		}
	}()

	if err := srv.Run(); err != nil {
		l.Fatal("Server failed to start", zap.Error(err))
	}
}
