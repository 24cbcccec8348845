package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"safezone-alert-service/internal/alerts"
	"safezone-alert-service/internal/api"
	"safezone-alert-service/internal/config"
	"safezone-alert-service/internal/db"
	"safezone-alert-service/internal/geofence"
	"safezone-alert-service/internal/kafka"
	"safezone-alert-service/internal/logging"
	"safezone-alert-service/internal/notification"
	"safezone-alert-service/internal/providers"
	"safezone-alert-service/internal/ratelimit"
	"safezone-alert-service/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Close()

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		logger.Errorf("Failed to connect to database: %v", err)
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()

	if cfg.DB.Migrate {
		if err := dbConn.Migrate(context.Background()); err != nil {
			log.Fatalf("Database migration failed: %v", err)
		}
	}

	pingers := map[string]api.Pinger{"postgres": dbConn}
	loc := cfg.Location()

	// Quotas and cooldowns are shared through Redis when it is configured
	var quotas ratelimit.Limiter
	ingestStore := memory.NewStore()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		quotas = ratelimit.NewRedisLimiter(rdb, loc)
		ingestStore, err = sredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: "safezone:ingest"})
		if err != nil {
			log.Fatalf("Failed to create rate limit store: %v", err)
		}
		pingers["redis"] = api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	} else {
		logger.Warnf("REDIS_ADDR not set, quotas are kept in process memory")
		quotas = ratelimit.NewLocalLimiter(loc)
	}

	gateways, err := providers.New(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to init notification providers: %v", err)
	}

	// Initialize notification dispatcher
	dispatcher := notification.New(dbConn, quotas, gateways, notification.Settings{
		QueueSize:      cfg.Notification.QueueSize,
		MaxWorkers:     cfg.Notification.MaxWorkers,
		SMSDailyCap:    cfg.SMS.DailyCap,
		EmailDailyCap:  cfg.Email.DailyCap,
		SensorCooldown: cfg.Notification.SensorCooldown,
		GatewayTimeout: cfg.Notification.GatewayTimeout,
		PhoneRegion:    cfg.SMS.DefaultRegion,
	}, logger)
	var wg sync.WaitGroup
	dispatcher.Start(&wg)

	feed := services.NewLiveFeed(dbConn, logger)
	manager := alerts.NewManager(dbConn, dispatcher, feed, alerts.Settings{
		DailyLimit:        cfg.Alert.DailyLimit,
		DedupWindow:       cfg.Alert.DedupWindow,
		UrgentDedupWindow: cfg.Alert.UrgentDedupWindow,
		Location:          loc,
	}, logger)
	tracker := geofence.NewTracker(dbConn, logger)
	pipeline := services.NewPipeline(dbConn, tracker, manager, logger)

	ctx, cancel := context.WithCancel(context.Background())

	// Initialize Kafka consumer
	var consumer *kafka.Consumer
	if cfg.Kafka.Broker != "" {
		consumer = kafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID, pipeline, logger)
		consumer.Start(ctx, &wg)
		logger.Infof("Kafka consumer initialized with topic: %s", cfg.Kafka.Topic)
	}

	var sweep *services.InactivitySweep
	if cfg.Inactivity.Enabled {
		sweep = services.NewInactivitySweep(dbConn, manager, cfg.Inactivity.Window, cfg.Inactivity.Lookback, loc, logger)
		if err := sweep.Schedule(cfg.Inactivity.Schedule); err != nil {
			log.Fatalf("Invalid INACTIVITY_SCHEDULE: %v", err)
		}
		sweep.Start()
	}

	rate, err := limiter.NewRateFromFormatted(cfg.API.IngestRate)
	if err != nil {
		log.Fatalf("Invalid API_INGEST_RATE %q: %v", cfg.API.IngestRate, err)
	}
	handler := api.NewHandler(api.Deps{
		Store:         dbConn,
		Pipeline:      pipeline,
		Tracker:       tracker,
		Alerts:        manager,
		Notifications: dispatcher,
		Feed:          feed,
		Pingers:       pingers,
	}, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		BasePath:      cfg.API.BasePath,
		APIKey:        cfg.API.Key,
		IngestLimiter: limiter.New(ingestStore, rate),
	}, logger)

	srv := &http.Server{Addr: cfg.API.Port, Handler: router}
	go func() {
		logger.Infof("Starting API server on %s", cfg.API.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	logger.Infof("Shutting down...")

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("API server forced to shutdown: %v", err)
	}

	cancel()
	if sweep != nil {
		sweep.Stop()
	}
	dispatcher.Stop()
	wg.Wait()
	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Errorf("Failed to close Kafka consumer: %v", err)
		}
	}
	logger.Infof("Service stopped")
}
