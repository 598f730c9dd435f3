// Package pipeline turns one campaign into pins: acquire the campaign lock,
// load and validate the configuration, render rows in fixed-size concurrent
// batches, persist every outcome and keep the distributed progress record
// current. The terminal status is derived from completed+failed reaching
// total after every increment and settled exactly once.
//
// Every distributed-state operation fails open: when the cache service is
// unreachable the run continues on local counters and rendering never blocks.
package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"pinforge/internal/cache"
	"pinforge/internal/models"
	"pinforge/internal/pkg/errors"
	"pinforge/internal/pkg/logger"
	"pinforge/internal/ports"
	"pinforge/internal/worker/util"
)

// RowRenderer produces one pin image from a resolved template+row pair.
// *render.Renderer satisfies it.
type RowRenderer interface {
	RenderRow(ctx context.Context, tpl *models.Template, row models.Row, mapping map[string]string) ([]byte, error)
}

// Outcome is how a Run invocation ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomePaused    Outcome = "paused"
	// OutcomeSkipped means another worker holds the campaign lock; this
	// invocation exited without side effects.
	OutcomeSkipped Outcome = "skipped"
)

const (
	defaultBatchSize  = 10
	defaultBatchDelay = 200 * time.Millisecond
	defaultLockTTL    = 5 * time.Minute

	// doneMarkerTTL bounds the exactly-once finalize guard. Re-finalizing
	// after it expires writes the same terminal state again, which is
	// idempotent.
	doneMarkerTTL = 24 * time.Hour

	maxErrorLen = 2000
)

type Deps struct {
	Store    ports.Store
	Cache    cache.Service
	Renderer RowRenderer
	Storage  ports.StorageProvider
	Rows     *RowFetcher
	Log      *logger.Logger

	BatchSize  int
	BatchDelay time.Duration
	LockTTL    time.Duration
}

type Pipeline struct {
	store    ports.Store
	cache    cache.Service
	renderer RowRenderer
	storage  ports.StorageProvider
	rows     *RowFetcher
	log      *logger.Logger

	batchSize  int
	batchDelay time.Duration
	lockTTL    time.Duration
}

func New(d Deps) *Pipeline {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	c := d.Cache
	if c == nil {
		c = cache.NewNoop()
	}
	rf := d.Rows
	if rf == nil {
		rf = NewRowFetcher(nil)
	}
	batchSize := d.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	batchDelay := d.BatchDelay
	if batchDelay <= 0 {
		batchDelay = defaultBatchDelay
	}
	lockTTL := d.LockTTL
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	return &Pipeline{
		store:      d.Store,
		cache:      c,
		renderer:   d.Renderer,
		storage:    d.Storage,
		rows:       rf,
		log:        log.WithComponent("pipeline"),
		batchSize:  batchSize,
		batchDelay: batchDelay,
		lockTTL:    lockTTL,
	}
}

// runState is one invocation's local view of the counters. It seeds from the
// distributed record on resume and stays authoritative whenever the cache is
// unreachable.
type runState struct {
	campaignID string
	total      int
	completed  int
	failed     int
	finalized  bool
}

// Run processes one campaign end to end. Lock contention is not an error:
// the second invocation returns OutcomeSkipped and touches nothing.
func (p *Pipeline) Run(ctx context.Context, campaignID string) (Outcome, error) {
	ctx = logger.ContextWithCampaignID(ctx, campaignID)
	log := p.log.WithCampaignID(campaignID)

	lockKey := cache.LockKey(campaignID)
	token, ok, err := p.cache.AcquireLock(ctx, lockKey, p.lockTTL)
	if err != nil {
		log.Warn("lock service unavailable, proceeding unlocked", "error", err.Error())
		token = ""
	} else if !ok {
		log.Info("campaign already processing, skipping")
		return OutcomeSkipped, nil
	}
	if token != "" {
		defer func() {
			releaseCtx := context.WithoutCancel(ctx)
			if rerr := p.cache.ReleaseLock(releaseCtx, lockKey, token); rerr != nil {
				log.Warn("lock release failed", "error", rerr.Error())
			}
		}()
	}

	camp, tpls, rows, err := p.load(ctx, campaignID)
	if err != nil {
		p.markConfigFailure(ctx, campaignID, err)
		return OutcomeFailed, err
	}

	st := &runState{campaignID: campaignID, total: len(rows)}
	start := p.seedProgress(ctx, st)

	// Re-triggering a finished campaign is a no-op: settle the terminal
	// state if anything is left to settle, never flip it back to processing.
	if st.total > 0 && start >= st.total && st.completed+st.failed >= st.total {
		status := models.StatusCompleted
		if st.failed > 0 {
			status = models.StatusFailed
		}
		log.Info("campaign already finished", "status", string(status))
		p.finalize(ctx, st, status)
		if status == models.StatusFailed {
			return OutcomeFailed, nil
		}
		return OutcomeCompleted, nil
	}

	if start > 0 {
		log.Info("resuming campaign", "cursor", start, "total", st.total)
	} else {
		log.Info("starting campaign", "total", st.total, "batch_size", p.batchSize)
	}
	if err := p.store.UpdateCampaignStatus(ctx, campaignID, models.StatusProcessing); err != nil {
		log.Warn("status update failed", "error", err.Error())
	}
	if err := p.cache.SetFields(ctx, cache.ProgressKey(campaignID), map[string]any{
		cache.FieldStatus: string(models.StatusProcessing),
	}); err != nil {
		log.Warn("progress status write failed", "error", err.Error())
	}

	if st.total == 0 {
		p.finalize(ctx, st, models.StatusCompleted)
		return OutcomeCompleted, nil
	}

	for batchStart := start; batchStart < st.total; batchStart += p.batchSize {
		if ctx.Err() != nil {
			p.yield(ctx, st, batchStart)
			return OutcomePaused, ctx.Err()
		}
		if p.pauseRequested(ctx, campaignID) {
			log.Info("pause requested, yielding", "cursor", batchStart)
			p.yield(ctx, st, batchStart)
			return OutcomePaused, nil
		}
		if token != "" {
			if _, err := p.cache.RefreshLock(ctx, lockKey, token, p.lockTTL); err != nil {
				log.Warn("lock refresh failed", "error", err.Error())
			}
		}

		batchEnd := min(batchStart+p.batchSize, st.total)
		results := p.renderBatch(ctx, camp, tpls, rows, batchStart, batchEnd)
		for _, res := range results {
			field := p.persistRow(ctx, st, res)
			p.recordOutcome(ctx, st, field)
		}
		p.persistCursor(ctx, campaignID, batchEnd)

		if batchEnd < st.total {
			select {
			case <-ctx.Done():
			case <-time.After(p.batchDelay):
			}
		}
	}

	status := models.StatusCompleted
	if st.failed > 0 {
		status = models.StatusFailed
	}
	if !st.finalized {
		p.finalize(ctx, st, status)
	}
	if status == models.StatusFailed {
		return OutcomeFailed, nil
	}
	return OutcomeCompleted, nil
}

// load fetches the campaign, every template it references and the row table.
// Any failure here is a configuration failure: fatal for this campaign only.
func (p *Pipeline) load(ctx context.Context, campaignID string) (*models.Campaign, map[string]*models.Template, []models.Row, error) {
	camp, err := p.store.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, nil, nil, errors.WrapWithCode(err, errors.CodeConfiguration, "pipeline.load", "loading campaign")
	}
	if err := camp.Validate(); err != nil {
		return nil, nil, nil, errors.WrapWithCode(err, errors.CodeConfiguration, "pipeline.load", "invalid campaign")
	}

	tpls := make(map[string]*models.Template, len(camp.TemplateIDs))
	for _, id := range camp.TemplateIDs {
		if _, ok := tpls[id]; ok {
			continue
		}
		tpl, err := p.store.GetTemplate(ctx, id)
		if err != nil {
			return nil, nil, nil, errors.WrapWithCode(err, errors.CodeConfiguration, "pipeline.load", "loading template "+id)
		}
		if err := tpl.Validate(); err != nil {
			return nil, nil, nil, errors.WrapWithCode(err, errors.CodeConfiguration, "pipeline.load", "invalid template "+id)
		}
		tpls[id] = tpl
	}

	rows, err := p.rows.Rows(ctx, camp)
	if err != nil {
		return nil, nil, nil, errors.WrapWithCode(err, errors.CodeConfiguration, "pipeline.load", "loading data rows")
	}
	return camp, tpls, rows, nil
}

// seedProgress initializes the distributed record (or adopts an existing one
// on resume) and returns the cursor to start from. Cursor and counters are
// read from the same snapshot: a wiped cache resets both together, so a full
// reprocess counts from zero instead of double-counting resumed rows.
func (p *Pipeline) seedProgress(ctx context.Context, st *runState) int {
	key := cache.ProgressKey(st.campaignID)
	cursor := 0
	if fields, err := p.cache.GetFields(ctx, key); err == nil {
		cursor = intField(fields, cache.FieldCursor, 0)
		st.completed = intField(fields, cache.FieldCompleted, 0)
		st.failed = intField(fields, cache.FieldFailed, 0)
	} else {
		p.log.WithCampaignID(st.campaignID).Warn("progress read failed, starting fresh", "error", err.Error())
	}
	if cursor > st.total {
		cursor = st.total
	}
	err := p.cache.SetFields(ctx, key, map[string]any{
		cache.FieldTotal:  st.total,
		cache.FieldCursor: cursor,
	})
	if err != nil {
		p.log.WithCampaignID(st.campaignID).Warn("progress seed failed, continuing", "error", err.Error())
	}
	return cursor
}

func (p *Pipeline) renderBatch(ctx context.Context, camp *models.Campaign, tpls map[string]*models.Template, rows []models.Row, start, end int) []models.RenderResult {
	results := make([]models.RenderResult, end-start)
	var wg sync.WaitGroup
	for i := start; i < end; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			tpl := tpls[camp.TemplateFor(idx)]
			png, err := p.renderer.RenderRow(ctx, tpl, rows[idx], camp.FieldMapping)
			if err != nil {
				results[idx-start] = models.RenderResult{RowIndex: idx, Err: err}
				return
			}
			results[idx-start] = models.RenderResult{RowIndex: idx, PNG: png}
		}(i)
	}
	wg.Wait()
	return results
}

// persistRow stores one row's outcome and reports which counter it feeds.
// A stored object without a pin record counts as failed: the pin row is the
// product record, not a log line.
func (p *Pipeline) persistRow(ctx context.Context, st *runState, res models.RenderResult) string {
	log := p.log.WithCampaignID(st.campaignID).WithRowIndex(res.RowIndex)

	if res.Err == nil {
		key := fmt.Sprintf("pins/%s/row-%05d.png", st.campaignID, res.RowIndex)
		out, err := p.storage.PutObject(ctx, ports.PutObjectInput{
			ObjectKey:   key,
			ContentType: "image/png",
			Reader:      bytes.NewReader(res.PNG),
			Size:        int64(len(res.PNG)),
		})
		if err != nil {
			res.Err = errors.Wrap(err, "pipeline.persist", "storing pin object")
		} else {
			pin := &models.Pin{
				ID:         util.NewID("pin"),
				CampaignID: st.campaignID,
				RowIndex:   res.RowIndex,
				ObjectKey:  out.ObjectKey,
				Status:     models.PinStatusDone,
			}
			if err := p.store.SavePin(ctx, pin); err != nil {
				res.Err = errors.Wrap(err, "pipeline.persist", "recording pin")
			}
		}
	}

	if res.Err != nil {
		msg := res.Err.Error()
		if len(msg) > maxErrorLen {
			msg = msg[:maxErrorLen]
		}
		log.Warn("row failed", "error", msg)
		failedPin := &models.Pin{
			ID:         util.NewID("pin"),
			CampaignID: st.campaignID,
			RowIndex:   res.RowIndex,
			Status:     models.PinStatusFailed,
			Error:      msg,
		}
		if err := p.store.SavePin(ctx, failedPin); err != nil {
			log.Warn("failed pin record not saved", "error", err.Error())
		}
		if err := p.store.SaveRowError(ctx, st.campaignID, models.RowError{RowIndex: res.RowIndex, Message: msg}); err != nil {
			log.Warn("row error not saved", "error", err.Error())
		}
		return cache.FieldFailed
	}
	return cache.FieldCompleted
}

// recordOutcome bumps one counter locally and in the distributed record,
// then re-derives the terminal condition. Finalization happens here, on the
// increment that closes the gap, never on a separate signal.
func (p *Pipeline) recordOutcome(ctx context.Context, st *runState, field string) {
	if field == cache.FieldFailed {
		st.failed++
	} else {
		st.completed++
	}
	key := cache.ProgressKey(st.campaignID)
	if _, err := p.cache.IncrField(ctx, key, field, 1); err != nil {
		p.log.WithCampaignID(st.campaignID).Warn("progress increment failed, using local counters", "error", err.Error())
	}

	completed, failed := p.counters(ctx, st)
	if completed+failed >= st.total && st.total > 0 {
		st.completed = completed
		st.failed = failed
		status := models.StatusCompleted
		if failed > 0 {
			status = models.StatusFailed
		}
		p.finalize(ctx, st, status)
	}
}

// counters blends the distributed view with the local one, taking the max
// per field: distributed may run ahead when other workers increment, local
// runs ahead when increments failed open.
func (p *Pipeline) counters(ctx context.Context, st *runState) (completed, failed int) {
	completed, failed = st.completed, st.failed
	fields, err := p.cache.GetFields(ctx, cache.ProgressKey(st.campaignID))
	if err != nil {
		return completed, failed
	}
	completed = max(completed, intField(fields, cache.FieldCompleted, 0))
	failed = max(failed, intField(fields, cache.FieldFailed, 0))
	return completed, failed
}

// finalize settles the terminal status exactly once across workers via a
// set-if-not-exists marker. Losing the race is fine: the winner already
// wrote the same derived state.
func (p *Pipeline) finalize(ctx context.Context, st *runState, status models.CampaignStatus) {
	if st.finalized {
		return
	}
	st.finalized = true
	log := p.log.WithCampaignID(st.campaignID)

	_, won, err := p.cache.AcquireLock(ctx, cache.DoneKey(st.campaignID), doneMarkerTTL)
	if err == nil && !won {
		log.Debug("campaign already finalized elsewhere")
		return
	}

	if err := p.cache.SetFields(ctx, cache.ProgressKey(st.campaignID), map[string]any{
		cache.FieldStatus: string(status),
		cache.FieldCursor: st.total,
	}); err != nil {
		log.Warn("terminal progress write failed", "error", err.Error())
	}
	if err := p.store.UpdateCampaignProgress(ctx, st.campaignID, st.total, st.completed, st.failed); err != nil {
		log.Warn("progress mirror failed", "error", err.Error())
	}
	if err := p.store.UpdateCampaignStatus(ctx, st.campaignID, status); err != nil {
		log.Warn("terminal status write failed", "error", err.Error())
	}
	_ = p.cache.Delete(ctx, cache.PauseKey(st.campaignID))
	log.Info("campaign finished",
		"status", string(status),
		"completed", st.completed,
		"failed", st.failed,
		"total", st.total,
	)
}

// yield persists the cursor and marks the run paused so a later invocation
// resumes from the next unprocessed row.
func (p *Pipeline) yield(ctx context.Context, st *runState, cursor int) {
	ctx = context.WithoutCancel(ctx)
	p.persistCursor(ctx, st.campaignID, cursor)
	if err := p.cache.SetFields(ctx, cache.ProgressKey(st.campaignID), map[string]any{
		cache.FieldStatus: string(models.StatusPaused),
	}); err != nil {
		p.log.WithCampaignID(st.campaignID).Warn("pause status write failed", "error", err.Error())
	}
	if err := p.store.UpdateCampaignProgress(ctx, st.campaignID, st.total, st.completed, st.failed); err != nil {
		p.log.WithCampaignID(st.campaignID).Warn("progress mirror failed", "error", err.Error())
	}
	if err := p.store.UpdateCampaignStatus(ctx, st.campaignID, models.StatusPaused); err != nil {
		p.log.WithCampaignID(st.campaignID).Warn("pause status mirror failed", "error", err.Error())
	}
}

func (p *Pipeline) pauseRequested(ctx context.Context, campaignID string) bool {
	v, ok, err := p.cache.Get(ctx, cache.PauseKey(campaignID))
	return err == nil && ok && v == "1"
}

func (p *Pipeline) persistCursor(ctx context.Context, campaignID string, cursor int) {
	err := p.cache.SetFields(ctx, cache.ProgressKey(campaignID), map[string]any{
		cache.FieldCursor: cursor,
	})
	if err != nil {
		p.log.WithCampaignID(campaignID).Warn("cursor write failed", "error", err.Error())
	}
}

func (p *Pipeline) markConfigFailure(ctx context.Context, campaignID string, cause error) {
	log := p.log.WithCampaignID(campaignID)
	log.LogError(ctx, "campaign configuration failure", cause)
	if err := p.store.UpdateCampaignStatus(ctx, campaignID, models.StatusFailed); err != nil {
		log.Warn("failure status write failed", "error", err.Error())
	}
	if err := p.cache.SetFields(ctx, cache.ProgressKey(campaignID), map[string]any{
		cache.FieldStatus: string(models.StatusFailed),
	}); err != nil {
		log.Warn("failure progress write failed", "error", err.Error())
	}
}

func intField(fields map[string]string, name string, fallback int) int {
	v, ok := fields[name]
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
