// Package retention reclaims storage. Each cycle deletes expired artifacts,
// then, while the storage directories exceed the quota, deletes the oldest
// artifacts until usage is back under 90% of it.
package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/logging"
	"github.com/dmitrijs2005/vidkeeper/internal/models"
)

// targetRatio is the fraction of the ceiling eviction brings usage down to.
const targetRatio = 0.9

// Catalog is the part of catalog.Service the engine needs.
type Catalog interface {
	Expired(ctx context.Context, now time.Time) ([]*models.Artifact, error)
	OldestFirst(ctx context.Context) ([]*models.Artifact, error)
	Destroy(ctx context.Context, a *models.Artifact) (int64, error)
}

// UsageFunc measures the bytes currently stored. filex.Layout.Usage fits.
type UsageFunc func() (int64, error)

// Config tunes the engine.
type Config struct {
	MaxStorageBytes int64
	Interval        time.Duration
	ErrorInterval   time.Duration
}

// Result summarizes one cycle.
type Result struct {
	Expired     int
	Evicted     int
	Errors      int
	Freed       int64
	UsageBefore int64
	UsageAfter  int64
	Duration    time.Duration
}

// Engine runs retention cycles. Cycles never overlap.
type Engine struct {
	catalog Catalog
	usage   UsageFunc
	cfg     Config
	logger  logging.Logger
	now     func() time.Time

	mu sync.Mutex

	lifeMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cat Catalog, usage UsageFunc, cfg Config, logger logging.Logger) *Engine {
	return &Engine{
		catalog: cat,
		usage:   usage,
		cfg:     cfg,
		logger:  logger.With("module", "retention"),
		now:     time.Now,
	}
}

// Start runs the engine in the background until Stop or ctx cancellation.
// Starting a running engine is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	if e.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	e.cancel, e.done = cancel, done
	go func() {
		defer close(done)
		e.Run(ctx)
	}()
}

// Stop cancels a Start-ed engine and waits for the current cycle to end.
func (e *Engine) Stop() {
	e.lifeMu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.lifeMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run executes a cycle immediately and then one per Interval, or per
// ErrorInterval after a failed cycle, until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	e.logger.Info(ctx, "retention engine started",
		"interval", e.cfg.Interval, "max_storage", e.cfg.MaxStorageBytes)
	for {
		next := e.cfg.Interval
		if _, err := e.RunOnce(ctx); err != nil {
			e.logger.Error(ctx, "retention cycle failed", "error", err, "retry_in", e.cfg.ErrorInterval)
			next = e.cfg.ErrorInterval
		}

		t := time.NewTimer(next)
		select {
		case <-ctx.Done():
			t.Stop()
			e.logger.Info(context.Background(), "retention engine stopped")
			return
		case <-t.C:
		}
	}
}

// RunOnce performs one full cycle. Per-artifact failures are counted in
// Result.Errors and do not stop the cycle; the returned error reports a
// cycle that could not list the catalog or measure storage.
func (e *Engine) RunOnce(ctx context.Context) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := e.now()
	res := &Result{}
	e.logger.Info(ctx, "starting retention cycle")

	var errs []error
	if err := e.sweepExpired(ctx, res); err != nil {
		errs = append(errs, err)
	}
	if err := e.enforceQuota(ctx, res); err != nil {
		errs = append(errs, err)
	}
	res.Duration = e.now().Sub(start)
	err := errors.Join(errs...)

	status := "ok"
	if err != nil {
		status = "error"
	}
	cyclesTotal.WithLabelValues(status).Inc()
	freedBytesTotal.Add(float64(res.Freed))
	cycleDuration.Observe(res.Duration.Seconds())

	e.logger.Info(ctx, "retention cycle complete",
		"expired", res.Expired, "evicted", res.Evicted, "errors", res.Errors,
		"freed", res.Freed, "usage_before", res.UsageBefore, "usage_after", res.UsageAfter,
		"duration", res.Duration)
	return res, err
}

func (e *Engine) sweepExpired(ctx context.Context, res *Result) error {
	expired, err := e.catalog.Expired(ctx, e.now())
	if err != nil {
		return fmt.Errorf("list expired: %w", err)
	}
	if len(expired) == 0 {
		e.logger.Info(ctx, "no expired artifacts")
		return nil
	}
	e.logger.Info(ctx, "found expired artifacts", "count", len(expired))

	for _, a := range expired {
		freed, ok := e.destroy(ctx, a, res)
		if !ok {
			continue
		}
		res.Expired++
		removedTotal.WithLabelValues("expired").Inc()
		e.logger.Info(ctx, "removed expired artifact", "artifact", a.ID, "title", a.Title, "freed", freed)
	}
	return nil
}

func (e *Engine) enforceQuota(ctx context.Context, res *Result) error {
	used, err := e.usage()
	if err != nil {
		return fmt.Errorf("measure storage: %w", err)
	}
	res.UsageBefore, res.UsageAfter = used, used
	defer func() { storageUsedBytes.Set(float64(res.UsageAfter)) }()

	ceiling := e.cfg.MaxStorageBytes
	if used <= ceiling {
		e.logger.Info(ctx, "storage usage within quota", "used", used, "max", ceiling)
		return nil
	}
	e.logger.Warn(ctx, "storage quota exceeded", "used", used, "max", ceiling)

	all, err := e.catalog.OldestFirst(ctx)
	if err != nil {
		return fmt.Errorf("list artifacts: %w", err)
	}
	if len(all) == 0 {
		e.logger.Warn(ctx, "storage over quota but catalog is empty; manual cleanup may be needed")
		return nil
	}

	target := int64(float64(ceiling) * targetRatio)
	var evictedBytes int64
	for _, a := range all {
		if used-evictedBytes <= target {
			break
		}
		freed, ok := e.destroy(ctx, a, res)
		evictedBytes += freed
		if !ok {
			continue
		}
		res.Evicted++
		removedTotal.WithLabelValues("quota").Inc()
		e.logger.Info(ctx, "evicted artifact to free space", "artifact", a.ID, "title", a.Title, "freed", freed)
	}

	if after, err := e.usage(); err == nil {
		res.UsageAfter = after
	} else {
		res.UsageAfter = used - evictedBytes
	}
	return nil
}

// destroy removes one artifact, recording its freed bytes. A row that is
// already gone counts as neither a removal nor an error.
func (e *Engine) destroy(ctx context.Context, a *models.Artifact, res *Result) (int64, bool) {
	freed, err := e.catalog.Destroy(ctx, a)
	res.Freed += freed
	switch {
	case errors.Is(err, common.ErrNotFound):
		e.logger.Debug(ctx, "artifact already removed", "artifact", a.ID)
		return freed, false
	case err != nil:
		res.Errors++
		e.logger.Error(ctx, "failed to remove artifact", "artifact", a.ID, "error", err)
		return freed, false
	}
	return freed, true
}
