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

	"fleet-monitor/tracker/internal/auth"
	"fleet-monitor/tracker/internal/config"
	"fleet-monitor/tracker/internal/domain"
	"fleet-monitor/tracker/internal/fanout"
	"fleet-monitor/tracker/internal/normalize"
	"fleet-monitor/tracker/internal/pipeline"
	"fleet-monitor/tracker/internal/store"
	"fleet-monitor/tracker/internal/track"
	transporthttp "fleet-monitor/tracker/internal/transport/http"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}
	cfg := config.Load()

	ctx := context.Background()
	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()

	pg, err := store.NewPostgresStore(ctx, cfg)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pg.Close()

	redisStore, err := store.NewRedisStore(ctx, cfg)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisStore.Close()

	assignments := store.NewAssignmentCache(pg, time.Duration(cfg.AssignmentRefreshSeconds)*time.Second)
	if err := assignments.Refresh(ctx); err != nil {
		log.Printf("initial geofence assignment load failed, starting empty: %v", err)
	}
	go assignments.Run(workerCtx)

	tracker := track.NewTracker(trackConfig(cfg), assignments)
	hub := fanout.NewHub(cfg.SubscriberBufferSize)

	publisher := pipeline.NewPublisher(redisStore, cfg.ShardQueueSize)
	go publisher.Run(workerCtx)

	writer := pipeline.NewEventWriter(pg, cfg.ShardQueueSize, cfg.WriteBatchSize, cfg.WriteFlushIntervalMS)
	go writer.Run(workerCtx)

	process := func(sample *domain.LocationSample) {
		snapshot, events := tracker.Process(sample)
		if len(events) == 0 {
			// Stale or duplicate sample, absorbed without effect.
			return
		}
		update := &fanout.Update{Snapshot: snapshot, Events: events}
		hub.Publish(update)
		publisher.Enqueue(update)
		writer.Enqueue(events...)
	}
	dispatcher := pipeline.NewDispatcher(cfg.ShardCount, cfg.ShardQueueSize, process)

	liveness := pipeline.NewLivenessChecker(
		tracker, hub, writer, redisStore,
		time.Duration(cfg.LivenessIntervalSeconds)*time.Second,
		time.Duration(cfg.OfflineThresholdSeconds)*time.Second,
	)
	go liveness.Run(workerCtx)

	authenticator := auth.NewAuthenticator(cfg, redisStore)
	server := transporthttp.NewServer(
		normalize.New(time.Duration(cfg.ClockSkewToleranceSeconds)*time.Second),
		dispatcher,
		tracker,
		hub,
		transporthttp.NewAuthMiddleware(authenticator),
	)

	httpServer := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: server.Router(),
	}

	go func() {
		log.Printf("tracker listening on :%s (shards=%d)", cfg.HTTPPort, cfg.ShardCount)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("shutting down")

	// Stop accepting samples, drain in-flight per-vehicle pipelines,
	// then let the async workers flush.
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	dispatcher.Close()
	stopWorkers()
	time.Sleep(200 * time.Millisecond)
	log.Println("bye")
}

func trackConfig(cfg *config.Config) track.Config {
	return track.Config{
		MovingSpeedKmh:      cfg.MovingSpeedKmh,
		MovingStreakSamples: cfg.MovingStreakSamples,
		MovingStreakWindow:  time.Duration(cfg.MovingStreakWindowSec) * time.Second,
		IdleStreakSamples:   cfg.IdleStreakSamples,
		IdleStreakWindow:    time.Duration(cfg.IdleStreakWindowSec) * time.Second,
		MinTripDuration:     time.Duration(cfg.MinTripDurationSeconds) * time.Second,
		OverspeedLimitKmh:   cfg.OverspeedLimitKmh,
		OverspeedDebounce:   time.Duration(cfg.OverspeedDebounceSeconds) * time.Second,
		IdleAlertWindow:     time.Duration(cfg.IdleAlertWindowSeconds) * time.Second,
		IdleJitterMeters:    cfg.IdleJitterMeters,
		OfflineThreshold:    time.Duration(cfg.OfflineThresholdSeconds) * time.Second,
	}
}
