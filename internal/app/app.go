// Package app wires long-lived services from configuration, acting as the
// dependency injection container for the CLI and HTTP server.
package app

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/trends-scraper/internal/archive"
	"github.com/JakeFAU/trends-scraper/internal/clock/system"
	"github.com/JakeFAU/trends-scraper/internal/config"
	"github.com/JakeFAU/trends-scraper/internal/feed"
	collyfetcher "github.com/JakeFAU/trends-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/trends-scraper/internal/fetcher/headless"
	"github.com/JakeFAU/trends-scraper/internal/headless/detector"
	"github.com/JakeFAU/trends-scraper/internal/id/uuid"
	"github.com/JakeFAU/trends-scraper/internal/parser"
	"github.com/JakeFAU/trends-scraper/internal/policy/ratelimit"
	pubsubpublisher "github.com/JakeFAU/trends-scraper/internal/publisher/pubsub"
	"github.com/JakeFAU/trends-scraper/internal/storage/gcs"
	"github.com/JakeFAU/trends-scraper/internal/storage/local"
	"github.com/JakeFAU/trends-scraper/internal/storage/memory"
	"github.com/JakeFAU/trends-scraper/internal/storage/postgres"
	"github.com/JakeFAU/trends-scraper/internal/trends"
)

// App holds the shared services for one process.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	service trends.Service
	closers []func()
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config {
	return a.cfg
}

// Service returns the trends service, archived when sinks are configured.
func (a *App) Service() trends.Service {
	return a.service
}

// New builds every service cfg enables. It fails fast when an enabled
// dependency cannot be initialized.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	deps := trends.Collaborators{
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent: cfg.Scraper.UserAgent,
			Timeout:   seconds(cfg.Scraper.TimeoutSeconds),
		}),
		Feed: feed.New(feed.Config{
			URL:     cfg.Scraper.FeedURL,
			Timeout: seconds(cfg.Scraper.FeedTimeoutSeconds),
		}),
		Extractor: parser.New(logger.Named("parser")),
		Detector:  detector.NewHeuristic(cfg.Scraper.ShellThreshold),
		Limiter: ratelimit.New(ratelimit.Config{
			RPS:   cfg.Scraper.RateLimitRPS,
			Burst: cfg.Scraper.RateLimitBurst,
		}),
		Clock: system.New(),
	}

	if cfg.Headless.Enabled {
		renderer, err := headless.NewChromedp(headless.Config{
			MaxParallel:       cfg.Headless.MaxParallel,
			UserAgent:         cfg.Scraper.UserAgent,
			ExecPath:          cfg.Headless.ExecPath,
			NavigationTimeout: seconds(cfg.Headless.NavTimeoutSec),
			MarkerTimeout:     seconds(cfg.Headless.MarkerTimeoutSec),
			QuietPeriod:       millis(cfg.Headless.QuietPeriodMs),
			ScrollSettle:      millis(cfg.Headless.ScrollSettleMs),
		}, logger.Named("renderer"))
		if err != nil {
			return nil, fmt.Errorf("init headless renderer: %w", err)
		}
		deps.Renderer = renderer
		a.closers = append(a.closers, renderer.Close)
		logger.Info("headless renderer enabled", zap.Int("max_parallel", cfg.Headless.MaxParallel))
	} else {
		logger.Info("headless renderer disabled; raw HTTP is the first acquisition step")
	}

	if cfg.Storage.SaveSnapshots {
		store, err := a.snapshotStore(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		deps.Snapshots = store
	}

	scraper, err := trends.New(trends.Config{
		BaseURL:        cfg.Scraper.BaseURL,
		FeedLimit:      cfg.Scraper.FeedLimit,
		SaveSnapshots:  cfg.Storage.SaveSnapshots,
		SnapshotPrefix: cfg.Storage.Prefix,
	}, deps, logger.Named("scraper"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init scraper: %w", err)
	}
	a.service = scraper

	opts, err := a.archiveOptions(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	if opts.Store != nil || opts.Publisher != nil {
		a.service = archive.NewRecorder(scraper, opts, logger.Named("archive"))
	}
	return a, nil
}

func (a *App) snapshotStore(ctx context.Context) (trends.BlobStore, error) {
	switch a.cfg.Storage.Backend {
	case config.BackendLocal:
		store, err := local.New(local.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("init local snapshot store: %w", err)
		}
		a.logger.Info("saving snapshots to local disk", zap.String("dir", a.cfg.Storage.BaseDir))
		return store, nil
	case config.BackendGCS:
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: a.cfg.Storage.Bucket})
		if err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("init gcs snapshot store: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("error closing gcs client", zap.Error(err))
			}
		})
		a.logger.Info("saving snapshots to gcs", zap.String("bucket", a.cfg.Storage.Bucket))
		return store, nil
	default:
		a.logger.Info("saving snapshots in memory",
			zap.Int("max_objects", a.cfg.Storage.MemoryMaxObjects),
		)
		return memory.NewBoundedBlobStore(a.cfg.Storage.MemoryMaxObjects), nil
	}
}

func (a *App) archiveOptions(ctx context.Context) (archive.Options, error) {
	opts := archive.Options{IDs: uuid.New()}

	if a.cfg.DB.DSN != "" {
		store, err := postgres.New(ctx, postgres.Config{
			DSN:      a.cfg.DB.DSN,
			Table:    a.cfg.DB.Table,
			MaxConns: a.cfg.DB.MaxConns,
		})
		if err != nil {
			return opts, fmt.Errorf("init postgres archive: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		if a.cfg.DB.EnsureSchema {
			if err := store.EnsureSchema(ctx); err != nil {
				return opts, fmt.Errorf("ensure archive schema: %w", err)
			}
		}
		opts.Store = store
		a.logger.Info("archiving collections to postgres", zap.String("table", a.cfg.DB.Table))
	}

	if a.cfg.PubSub.ProjectID != "" {
		client, err := pubsub.NewClient(ctx, a.cfg.PubSub.ProjectID)
		if err != nil {
			return opts, fmt.Errorf("init pubsub client: %w", err)
		}
		pub := pubsubpublisher.New(client.Topic(a.cfg.PubSub.TopicName))
		a.closers = append(a.closers, pub.Close, func() {
			if err := client.Close(); err != nil {
				a.logger.Warn("error closing pubsub client", zap.Error(err))
			}
		})
		opts.Publisher = pub
		a.logger.Info("announcing collections on pubsub", zap.String("topic", a.cfg.PubSub.TopicName))
	}
	return opts, nil
}

// Close releases services in reverse construction order and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
	_ = a.logger.Sync()
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
