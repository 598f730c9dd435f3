package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"pinforge/internal/cache"
	"pinforge/internal/pkg/logger"
	"pinforge/internal/render"
	"pinforge/internal/render/fontpack"
	"pinforge/internal/repositories"
	"pinforge/internal/storage"
	"pinforge/internal/worker"
	"pinforge/internal/worker/pipeline"
	"pinforge/internal/worker/util"
)

func main() {
	_ = godotenv.Load()

	log := logger.New(logger.Config{
		Level:       util.Env("LOG_LEVEL", "info"),
		Format:      util.Env("LOG_FORMAT", "json"),
		ServiceName: "pinforge-worker",
		AddSource:   util.BoolEnv("LOG_SOURCE", false),
	})

	log.Info("starting PinForge worker",
		"version", "0.1.0",
	)

	dbURL := util.MustEnv("DATABASE_URL")
	redisAddr := util.MustEnv("REDIS_ADDR")
	queueName := util.Env("CAMPAIGN_QUEUE_NAME", "pinforge:campaigns")

	// A signal cancels the context; the pipeline notices, persists the
	// cursor of the in-flight campaign and returns before resources close.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("failed to ping PostgreSQL", err)
	}
	log.Info("PostgreSQL connected")

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}
	log.Info("Redis connected")

	sp, err := storage.NewProvider()
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	fonts := fontpack.NewRegistry(util.Env("FONT_DIR", ""), log)
	renderer := render.New(render.Options{
		Fonts: fonts,
		Log:   log,
	})

	deps := worker.Deps{
		Store:    repositories.NewStore(pool),
		Cache:    cache.NewRedis(rdb),
		Renderer: renderer,
		Storage:  sp,
		Rows:     pipeline.NewRowFetcher(nil),
		RDB:      rdb,
		Log:      log,

		QueueName:  queueName,
		BatchSize:  util.IntEnv("BATCH_SIZE", 10),
		BatchDelay: util.DurationEnv("BATCH_DELAY", 200*time.Millisecond),
		LockTTL:    util.DurationEnv("CAMPAIGN_LOCK_TTL", 5*time.Minute),
	}

	if err := worker.Run(ctx, deps); err != nil && !errors.Is(err, context.Canceled) {
		log.LogFatal("worker stopped with error", err)
	}
	log.Info("worker stopped")
}
