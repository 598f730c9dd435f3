package worker

import (
	"context"
	"errors"
	"time"

	"pinforge/internal/pkg/logger"
	"pinforge/internal/worker/pipeline"
	"pinforge/internal/worker/queue"
)

// Run is the worker loop: pop campaign ids off the queue and hand each one
// to the pipeline. It returns when the context is canceled.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	q := queue.NewRedisQueue(d.RDB, d.QueueName)
	p := pipeline.New(pipeline.Deps{
		Store:      d.Store,
		Cache:      d.Cache,
		Renderer:   d.Renderer,
		Storage:    d.Storage,
		Rows:       d.Rows,
		Log:        log,
		BatchSize:  d.BatchSize,
		BatchDelay: d.BatchDelay,
		LockTTL:    d.LockTTL,
	})

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		// Bound each blocking pop so shutdown never waits on Redis.
		popCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		campaignID, err := q.Pop(popCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				// Idle poll, nothing queued.
				continue
			}
			log.Warn("queue pop error, retrying",
				"error", err.Error(),
			)
			time.Sleep(1 * time.Second)
			continue
		}

		if campaignID == "" {
			continue
		}

		campCtx := logger.ContextWithCampaignID(ctx, campaignID)
		campLog := log.WithCampaignID(campaignID)

		campLog.Info("campaign picked up")
		startTime := time.Now()

		outcome, err := p.Run(campCtx, campaignID)
		elapsed := time.Since(startTime).Milliseconds()

		switch {
		case err != nil && outcome == pipeline.OutcomePaused:
			// Shutdown mid-run; the cursor is persisted and a later
			// invocation resumes.
			campLog.Info("campaign interrupted",
				"duration_ms", elapsed,
			)
		case err != nil:
			campLog.Error("campaign run failed",
				"error", err.Error(),
				"duration_ms", elapsed,
			)
		default:
			campLog.Info("campaign run finished",
				"outcome", string(outcome),
				"duration_ms", elapsed,
			)
		}
	}
}
