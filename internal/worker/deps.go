package worker

import (
	"time"

	"github.com/redis/go-redis/v9"

	"pinforge/internal/cache"
	"pinforge/internal/pkg/logger"
	"pinforge/internal/ports"
	"pinforge/internal/worker/pipeline"
)

type Deps struct {
	Store    ports.Store
	Cache    cache.Service
	Renderer pipeline.RowRenderer
	Storage  ports.StorageProvider
	Rows     *pipeline.RowFetcher
	RDB      *redis.Client
	Log      *logger.Logger

	QueueName  string
	BatchSize  int
	BatchDelay time.Duration
	LockTTL    time.Duration
}
