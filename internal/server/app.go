// Package server assembles the vidkeeper processes from configuration: the
// worker with its ops listeners, the retention engine and the one-shot
// maintenance operations used by the command-line tools.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/vidkeeper/internal/catalog"
	"github.com/dmitrijs2005/vidkeeper/internal/common"
	"github.com/dmitrijs2005/vidkeeper/internal/config"
	"github.com/dmitrijs2005/vidkeeper/internal/delivery"
	"github.com/dmitrijs2005/vidkeeper/internal/extract"
	"github.com/dmitrijs2005/vidkeeper/internal/filex"
	"github.com/dmitrijs2005/vidkeeper/internal/logging"
	"github.com/dmitrijs2005/vidkeeper/internal/models"
	"github.com/dmitrijs2005/vidkeeper/internal/offload"
	"github.com/dmitrijs2005/vidkeeper/internal/queue"
	"github.com/dmitrijs2005/vidkeeper/internal/ratelimit"
	"github.com/dmitrijs2005/vidkeeper/internal/repositories/repomanager"
	"github.com/dmitrijs2005/vidkeeper/internal/retention"
	"github.com/dmitrijs2005/vidkeeper/internal/worker"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/vidkeeper/internal/server/grpc"
	ms "github.com/dmitrijs2005/vidkeeper/internal/server/metrics"
)

// healthInterval is how often the gRPC health status is refreshed.
const healthInterval = 5 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	rm      *repomanager.SQLRepositoryManager
	catalog *catalog.Service
	layout  filex.Layout
	redis   *redis.Client
}

// NewApp opens and migrates the catalog. The S3 mirror, when configured, is
// attached so destroyed artifacts also leave the bucket.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	db, dialect, err := repomanager.Open(ctx, c.DatabaseDriver, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	rm := repomanager.NewSQLRepositoryManager(dialect)
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	app := &App{config: c, logger: logger, db: db, rm: rm, layout: filex.NewLayout(c.StoragePath)}

	opts := []catalog.Option{catalog.WithPreferenceCache(c.PreferenceCacheSize, c.PreferenceCacheTTL)}
	if c.OffloadEnabled() {
		store, err := app.s3Store(ctx)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		opts = append(opts, catalog.WithMirror(store))
	}
	app.catalog = catalog.NewService(db, rm, logger, opts...)
	return app, nil
}

// Close releases the catalog and broker connections.
func (app *App) Close() error {
	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	errs = append(errs, app.db.Close())
	return errors.Join(errs...)
}

// Catalog exposes the catalog service to the command-line tools.
func (app *App) Catalog() *catalog.Service {
	return app.catalog
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) redisClient() *redis.Client {
	if app.redis == nil {
		app.redis = queue.NewRedisClient(app.config.RedisAddr, app.config.RedisPassword, app.config.RedisDB)
	}
	return app.redis
}

func (app *App) queue() *queue.RedisQueue {
	return queue.NewRedisQueue(app.redisClient(), queue.Options{
		Name:             app.config.QueueName,
		PopTimeout:       app.config.QueuePopTimeout,
		ReconnectTries:   app.config.QueueReconnectAttempts,
		ReconnectBackoff: app.config.QueueReconnectBackoff,
	}, app.logger.With("module", "queue"))
}

func (app *App) s3Store(ctx context.Context) (*offload.S3Store, error) {
	return offload.NewS3Store(ctx, offload.S3Config{
		Bucket:       app.config.S3Bucket,
		Region:       app.config.S3Region,
		AccessKey:    app.config.S3RootUser,
		SecretKey:    app.config.S3RootPassword,
		BaseEndpoint: app.config.S3BaseEndpoint,
		PresignTTL:   app.config.PresignTTL,
	})
}

// linker picks the alternate retrieval path for oversized artifacts: the S3
// mirror first, then signed web links, otherwise none.
func (app *App) linker(ctx context.Context) (offload.Linker, error) {
	switch {
	case app.config.OffloadEnabled():
		return app.s3Store(ctx)
	case app.config.PublicBaseURL != "":
		return offload.NewSignedLinks(app.config.PublicBaseURL, app.config.LinkSecret), nil
	}
	return nil, nil
}

func (app *App) notifier(ctx context.Context) (delivery.Notifier, error) {
	tg, err := delivery.NewTelegram(app.config.TelegramToken, app.config.TelegramAPIEndpoint,
		app.config.DeliveryTimeout, app.config.ConnectTimeout)
	if errors.Is(err, common.ErrDeliveryDisabled) {
		app.logger.Warn(ctx, "no telegram token configured, notifications are dropped")
		return delivery.Discard{}, nil
	}
	if err != nil {
		return nil, err
	}
	return tg, nil
}

func (app *App) extractor() *extract.Adapter {
	return extract.NewAdapter(extract.Config{
		Layout:           app.layout,
		Cookies:          extract.Cookies{Dir: app.config.CookiesPath},
		Runner:           &extract.YtDlp{Executable: app.config.YtDlpPath},
		Transcoder:       &extract.FFmpeg{Path: app.config.FFmpegPath},
		ExtractTimeout:   app.config.ExtractTimeout,
		TranscodeTimeout: app.config.TranscodeTimeout,
		Logger:           app.logger,
	})
}

// RunWorker consumes the queue until a termination signal, serving gRPC
// health and metrics alongside. In-flight jobs finish before it returns.
func (app *App) RunWorker(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	app.initSignalHandler(cancelFunc)

	if err := app.layout.Ensure(); err != nil {
		return err
	}
	notifier, err := app.notifier(ctx)
	if err != nil {
		return err
	}
	linker, err := app.linker(ctx)
	if err != nil {
		return err
	}

	q := app.queue()
	pool := worker.New(q, app.extractor(), app.catalog,
		delivery.NewDispatcher(notifier, linker, app.config.DeliveryMaxBytes, app.logger),
		worker.Config{
			Workers:         app.config.Workers,
			MaxRetries:      app.config.JobMaxRetries,
			RetryBackoff:    app.config.RetryBackoff,
			RetentionWindow: app.config.RetentionWindow,
			ReconnectSleep:  app.config.QueueReconnectSleep,
			SendDescription: app.config.SendDescription,
		}, app.logger)

	app.logger.Info(ctx, "Starting worker...", "queue", app.config.QueueName, "storage", app.config.StoragePath)

	var wg sync.WaitGroup
	app.serveOps(ctx, cancelFunc, &wg, "worker", pool.Healthy, map[string]ms.ReadinessCheck{
		"catalog": app.db.PingContext,
		"queue":   func(ctx context.Context) error { return app.redisClient().Ping(ctx).Err() },
	})

	err = pool.Run(ctx)
	cancelFunc()
	wg.Wait()
	return err
}

// RunRetention runs the retention engine until a termination signal, or a
// single cycle when once is set.
func (app *App) RunRetention(ctx context.Context, once bool) (*retention.Result, error) {
	engine := retention.New(app.catalog, app.layout.Usage, retention.Config{
		MaxStorageBytes: app.config.MaxStorageBytes,
		Interval:        app.config.RetentionInterval,
		ErrorInterval:   app.config.RetentionErrorInterval,
	}, app.logger)

	if once {
		return engine.RunOnce(ctx)
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	app.serveOps(ctx, cancelFunc, &wg, "retention", nil, map[string]ms.ReadinessCheck{
		"catalog": app.db.PingContext,
	})
	engine.Run(ctx)
	cancelFunc()
	wg.Wait()
	return nil, nil
}

// serveOps starts the gRPC health and metrics listeners. A listener that
// fails to start takes the process down with it.
func (app *App) serveOps(ctx context.Context, cancelFunc context.CancelFunc, wg *sync.WaitGroup,
	service string, healthy gs.Checker, checks map[string]ms.ReadinessCheck) {
	if app.config.GRPCAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := gs.NewHealthServer(app.config.GRPCAddr, app.logger, healthy, healthInterval)
			if err := s.Run(ctx); err != nil {
				app.logger.Error(ctx, err.Error())
				cancelFunc()
			}
		}()
	}
	if app.config.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := ms.New(app.config.MetricsAddr, service, app.logger, checks)
			if err := s.Run(ctx); err != nil {
				app.logger.Error(ctx, err.Error())
				cancelFunc()
			}
		}()
	}
}

// Enqueue is the producer path: it refuses requests over the owner's hourly
// rate or while storage is over quota, then pushes the job.
func (app *App) Enqueue(ctx context.Context, j *models.Job) error {
	limiter := ratelimit.NewRedis(app.redisClient(), app.config.QueueName+":ratelimit",
		app.config.RateLimitPerHour, time.Hour)
	return app.enqueue(ctx, app.queue(), limiter, j)
}

func (app *App) enqueue(ctx context.Context, q queue.Queue, limiter ratelimit.Limiter, j *models.Job) error {
	ok, err := limiter.Allow(ctx, j.UserID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: maximum %d downloads per hour", common.ErrRateLimited, app.config.RateLimitPerHour)
	}

	used, err := app.layout.Usage()
	if err != nil {
		return err
	}
	if used >= app.config.MaxStorageBytes {
		return fmt.Errorf("%w: %s used", common.ErrStorageFull, delivery.HumanSize(used))
	}

	if err := q.Enqueue(ctx, j); err != nil {
		return err
	}
	app.logger.Info(ctx, "job enqueued", "url", j.URL, "quality", j.Quality, "user", j.UserID)
	return nil
}
