package main

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"pinforge/internal/cache"
	"pinforge/internal/httpapi"
	"pinforge/internal/httpapi/util"
	"pinforge/internal/pkg/logger"
	"pinforge/internal/pkg/shutdown"
	"pinforge/internal/render"
	"pinforge/internal/render/fontpack"
	"pinforge/internal/repositories"
	"pinforge/internal/storage"
	"pinforge/internal/worker/queue"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	log := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Format:      getEnv("LOG_FORMAT", "json"),
		ServiceName: "pinforge-api",
		AddSource:   getEnv("LOG_SOURCE", "false") == "true",
	})

	log.Info("starting PinForge API",
		"version", "0.1.0",
	)

	httpPort := getEnv("HTTP_PORT", "8080")
	dbURL := mustEnv(log, "DATABASE_URL")
	redisAddr := mustEnv(log, "REDIS_ADDR")
	queueName := getEnv("CAMPAIGN_QUEUE_NAME", "pinforge:campaigns")

	ctx := context.Background()

	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("failed to ping PostgreSQL", err)
	}
	log.Info("PostgreSQL connected")

	log.Info("connecting to Redis")
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}
	log.Info("Redis connected")

	log.Info("initializing storage provider")
	sp, err := storage.NewProvider()
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	fonts := fontpack.NewRegistry(getEnv("FONT_DIR", ""), log)
	renderer := render.New(render.Options{
		Fonts: fonts,
		Log:   log,
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Store:          repositories.NewStore(pool),
		Cache:          cache.NewRedis(rdb),
		Queue:          queue.NewRedisQueue(rdb, queueName),
		Renderer:       renderer,
		Storage:        sp,
		Log:            log,
		RequestTimeout: util.DurationEnv("HTTP_REQUEST_TIMEOUT", 30*time.Second),
		TriggerLimit:   util.IntEnv("GENERATE_RATE_LIMIT", 10),
	})

	server := &http.Server{
		Addr:         "0.0.0.0:" + httpPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening",
			"addr", server.Addr,
			"port", httpPort,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}

// getEnv gets an environment variable with a default value.
func getEnv(key, defaultValue string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultValue
	}
	return v
}

// mustEnv gets a required environment variable or exits.
func mustEnv(log *logger.Logger, key string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		log.Error("missing required environment variable", "key", key)
		os.Exit(1)
	}
	return v
}
