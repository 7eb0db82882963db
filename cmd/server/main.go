package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"campustransit/internal/config"
	"campustransit/internal/db"
	"campustransit/internal/httpapi"
	"campustransit/internal/hub"
	"campustransit/internal/positions"
	"campustransit/internal/repository"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connection failed: %v", err)
	}
	defer pool.Close()

	var cache *positions.Cache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
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
		cache = positions.NewCache(redisClient, cfg.PositionTTL)
	} else {
		log.Printf("redis not configured, live vehicle positions disabled")
	}

	store := repository.NewStore(pool)
	eventHub := hub.New(cache)
	server := httpapi.NewServer(cfg, store, cache, eventHub)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("campustransit listening on %s", cfg.HTTPAddr)
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
