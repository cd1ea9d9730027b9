package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/TadashiJei/ICP-QikCard-sub000/internal/analytics"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/checkin"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/config"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/httpapi"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/jobs"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/ledger"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/notify"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/realtime"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/registry"
	"github.com/TadashiJei/ICP-QikCard-sub000/internal/repository"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using process environment")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()
	store := repository.NewStore(pool)

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatalf("redis ping failed: %v", err)
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Printf("redis close error: %v", err)
			}
		}()
	}

	var anchorer checkin.Anchorer
	if cfg.LedgerRPCURL != "" && cfg.LedgerContractAddr != "" && cfg.LedgerPrivateKey != "" {
		ledgerClient, err := ledger.Dial(cfg.LedgerRPCURL, cfg.LedgerContractAddr, cfg.LedgerPrivateKey, cfg.LedgerChainID, cfg.LedgerTimeout)
		if err != nil {
			log.Fatalf("ledger dial failed: %v", err)
		}
		defer ledgerClient.Close()
		anchorer = ledgerClient
		log.Printf("ledger anchoring enabled against %s", cfg.LedgerRPCURL)
	}

	hub := realtime.NewHub(64)
	hub.OnDrop(httpapi.MessagesDroppedTotal.Inc)
	defer hub.Close()

	var pusher registry.Pusher
	if cfg.DevicePushEndpoint != "" {
		pusher = registry.NewHTTPPusher(cfg.DevicePushEndpoint, cfg.DevicePushAPIKey)
	}

	emitter := notify.NewEmitter(store)
	reg := registry.New(store, hub, pusher, emitter, cfg.DeviceOfflineThreshold, cfg.DevicePushTimeout)
	coordinator := checkin.NewCoordinator(store, emitter, hub, anchorer)
	aggregator := analytics.New(store)
	notifications := notify.NewService(store)

	var limiter httpapi.PingLimiter
	if redisClient != nil {
		limiter = httpapi.NewRedisLimiter(redisClient, cfg.PingRateLimit, cfg.PingRateWindow)
	} else {
		limiter = httpapi.NewMemoryLimiter(cfg.PingRateLimit, cfg.PingRateWindow)
	}

	jobs.StartHeartbeatSweep(ctx, store, emitter, hub, cfg.DeviceSweepInterval, cfg.DeviceOfflineThreshold)

	server := httpapi.NewServer(cfg, reg, coordinator, notifications, aggregator, hub, store, limiter)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("qikhub http listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
