package main

import (
	"context"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"pairchat/internal/repository"
	"pairchat/internal/service/cache"
	"pairchat/internal/service/objectstore"
	"pairchat/internal/service/presence"
	redisSvc "pairchat/internal/service/redis"
	"pairchat/internal/service/server"
	"pairchat/internal/utils/log"
)

func main() {
	defer log.Sync()

	dbURL := envOr("DATABASE_URL", "postgres://localhost/pairchat?sslmode=disable")
	store, err := repository.New("postgres", dbURL)
	if err != nil {
		log.Fatal("connect to database failed", zap.Error(err))
	}
	defer store.Close()

	rdb := goredis.NewClient(&goredis.Options{
		Addr: envOr("REDIS_URL", "localhost:6379"),
	})
	notificationCache := cache.New(redisSvc.NewRedis(rdb))

	objects := initObjectStore()

	registry := presence.NewRegistry()

	addr := envOr("LISTEN_ADDR", "localhost:9090")
	srv := server.NewHttpServer(store, notificationCache, registry, objects, addr)

	log.Info("server starting", zap.String("addr", addr))
	if err := srv.Run(); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

// initObjectStore is optional wiring: without MINIO_HOST the server runs with
// attachment and avatar upload disabled.
func initObjectStore() *objectstore.ObjectStore {
	endpoint := os.Getenv("MINIO_HOST")
	if endpoint == "" {
		log.Info("object storage disabled: MINIO_HOST not set")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	objects, err := objectstore.New(ctx, objectstore.Config{
		Endpoint:  endpoint,
		AccessKey: envOr("MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey: envOr("MINIO_SECRET_KEY", "minioadmin"),
		Bucket:    envOr("MINIO_BUCKET", "pairchat"),
		UseSSL:    os.Getenv("MINIO_USE_SSL") == "true",
	})
	if err != nil {
		log.Fatal("init object storage failed", zap.Error(err))
	}
	return objects
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
