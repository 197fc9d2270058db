// Package worker consumes the job queue: each job is extracted, recorded in
// the catalog and delivered to its requester.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/extract"
	"github.com/dmitrijs2005/vidkeeper/internal/logging"
	"github.com/dmitrijs2005/vidkeeper/internal/models"
	"github.com/dmitrijs2005/vidkeeper/internal/queue"
	"github.com/google/uuid"
)

// Extractor produces an artifact for a request.
type Extractor interface {
	Extract(ctx context.Context, url, quality string) (*extract.Result, error)
}

// Catalog is the part of catalog.Service the worker writes to.
type Catalog interface {
	Ingest(ctx context.Context, a *models.Artifact) error
	Preferences(ctx context.Context, ownerID int64) (*models.Preferences, error)
}

// Delivery reports job outcomes. delivery.Dispatcher implements it.
type Delivery interface {
	Completion(ctx context.Context, chatID int64, a *models.Artifact) error
	Transfer(ctx context.Context, chatID int64, a *models.Artifact) error
	Description(ctx context.Context, chatID int64, title, desc string)
	Failure(ctx context.Context, chatID int64, reason string) error
	Error(ctx context.Context, chatID int64, cause error) error
}

// Config tunes the pool.
type Config struct {
	Workers         int
	MaxRetries      int
	RetryBackoff    time.Duration
	RetentionWindow time.Duration
	ReconnectSleep  time.Duration
	SendDescription bool
}

// Pool runs Config.Workers consumers against one queue.
type Pool struct {
	queue     queue.Queue
	extractor Extractor
	catalog   Catalog
	delivery  Delivery
	cfg       Config
	logger    logging.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration)

	healthy atomic.Bool
}

func New(q queue.Queue, ex Extractor, cat Catalog, d Delivery, cfg Config, logger logging.Logger) *Pool {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Pool{
		queue:     q,
		extractor: ex,
		catalog:   cat,
		delivery:  d,
		cfg:       cfg,
		logger:    logger.With("module", "worker"),
		now:       time.Now,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Healthy reports whether the last broker check succeeded.
func (p *Pool) Healthy() bool {
	return p.healthy.Load()
}

// Run blocks until ctx is cancelled and every consumer has finished its
// current job.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info(ctx, "worker pool started, waiting for jobs", "workers", p.cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for ctx.Err() == nil {
				p.Tick(ctx)
			}
		}(i)
	}
	wg.Wait()

	p.logger.Info(context.Background(), "worker pool stopped")
	return nil
}

// Tick performs one loop iteration: broker check, delayed-job promotion,
// one bounded pop and, if a job arrived, its processing.
func (p *Pool) Tick(ctx context.Context) {
	if err := p.queue.EnsureConnection(ctx); err != nil {
		p.setHealthy(false)
		if ctx.Err() != nil {
			return
		}
		p.logger.Error(ctx, "queue unavailable, sleeping", "error", err, "sleep", p.cfg.ReconnectSleep)
		p.sleep(ctx, p.cfg.ReconnectSleep)
		return
	}
	p.setHealthy(true)

	if n, err := p.queue.PromoteDue(ctx, p.now()); err != nil {
		p.logger.Warn(ctx, "delayed job promotion failed", "error", err)
	} else if n > 0 {
		p.logger.Debug(ctx, "delayed jobs promoted", "count", n)
	}

	payload, err := p.queue.Pop(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn(ctx, "queue pop failed", "error", err)
		}
		return
	}
	if payload == nil {
		return
	}

	job, err := models.DecodeJob(payload)
	if err != nil {
		jobsTotal.WithLabelValues("malformed").Inc()
		p.logger.Error(ctx, "dropping malformed job", "error", err, "payload", string(payload))
		return
	}

	// a job in flight is finished even when shutdown begins
	p.Process(context.WithoutCancel(ctx), job)
}

func (p *Pool) setHealthy(ok bool) {
	p.healthy.Store(ok)
	if ok {
		queueUp.Set(1)
	} else {
		queueUp.Set(0)
	}
}

// Process runs one job to completion. It never returns an error: every
// outcome ends in the catalog, the queue or a notice to the requester.
func (p *Pool) Process(ctx context.Context, job *models.Job) {
	started := p.now()
	logger := p.logger.With("run", uuid.NewString(), "url", job.URL, "quality", job.Quality, "user", job.UserID)
	logger.Info(ctx, "processing job", "attempt", job.Attempt)
	defer func() { jobDuration.Observe(p.now().Sub(started).Seconds()) }()

	res, err := p.extractor.Extract(ctx, job.URL, job.Quality)
	if err != nil {
		p.extractFailed(ctx, logger, job, err)
		return
	}

	if err := p.complete(ctx, logger, job, res, started); err != nil {
		jobsTotal.WithLabelValues("error").Inc()
		logger.Error(ctx, "error processing job", "error", err)
		if job.Notifiable() {
			if nerr := p.delivery.Error(ctx, job.ChatID, err); nerr != nil {
				logger.Error(ctx, "error notice not delivered", "error", nerr)
			}
		}
		return
	}
	jobsTotal.WithLabelValues("completed").Inc()
}

func (p *Pool) extractFailed(ctx context.Context, logger logging.Logger, job *models.Job, err error) {
	if extract.IsRetryable(err) && job.Attempt < p.cfg.MaxRetries {
		delay := p.cfg.RetryBackoff << job.Attempt
		retry := *job
		retry.Attempt++
		qerr := p.queue.EnqueueAt(ctx, &retry, p.now().Add(delay))
		if qerr == nil {
			jobsTotal.WithLabelValues("retried").Inc()
			logger.Warn(ctx, "extraction failed, retry scheduled", "error", err, "attempt", retry.Attempt, "delay", delay)
			return
		}
		logger.Error(ctx, "retry not scheduled", "error", qerr)
	}

	jobsTotal.WithLabelValues("failed").Inc()
	logger.Error(ctx, "extraction failed", "error", err)
	if !job.Notifiable() {
		return
	}
	reason := err.Error()
	var xerr *extract.Error
	if errors.As(err, &xerr) {
		reason = xerr.Reason
	}
	if nerr := p.delivery.Failure(ctx, job.ChatID, reason); nerr != nil {
		logger.Error(ctx, "failure notice not delivered", "error", nerr)
	}
}

func (p *Pool) complete(ctx context.Context, logger logging.Logger, job *models.Job, res *extract.Result, started time.Time) error {
	now := p.now()
	a := &models.Artifact{
		ID:               res.ID,
		OwnerID:          job.UserID,
		SourceURL:        job.URL,
		Title:            res.Title,
		RequestedQuality: job.Quality,
		ResolvedQuality:  res.ResolvedQuality,
		Format:           res.Format,
		Codec:            res.Codec,
		SourcePlatform:   res.Platform,
		FileSize:         res.FileSize,
		ProcessingTime:   now.Sub(started).Truncate(time.Second),
		FilePath:         res.FilePath,
		ThumbnailPath:    res.ThumbnailPath,
		CreatedAt:        now,
		ExpiresAt:        now.Add(p.cfg.RetentionWindow),
	}
	if err := p.catalog.Ingest(ctx, a); err != nil {
		return err
	}

	source := "web"
	if job.Notifiable() {
		source = "telegram"
		if err := p.deliver(ctx, job, a, res); err != nil {
			return err
		}
	}
	logger.Info(ctx, "job complete", "artifact", a.ID, "size", a.FileSize, "took", a.ProcessingTime, "source", source)
	return nil
}

func (p *Pool) deliver(ctx context.Context, job *models.Job, a *models.Artifact, res *extract.Result) error {
	if err := p.delivery.Completion(ctx, job.ChatID, a); err != nil {
		return err
	}
	if err := p.delivery.Transfer(ctx, job.ChatID, a); err != nil {
		return err
	}

	prefs, err := p.catalog.Preferences(ctx, job.UserID)
	if err != nil {
		return err
	}
	if prefs.SendDescriptionOr(p.cfg.SendDescription) {
		p.delivery.Description(ctx, job.ChatID, a.Title, res.Description)
	}
	return nil
}
