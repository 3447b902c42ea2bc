// Package app builds the crawl engine and its long-lived services from
// configuration, acting as the dependency injection container for the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/bank-content-crawler/internal/api"
	"github.com/JakeFAU/bank-content-crawler/internal/clock"
	"github.com/JakeFAU/bank-content-crawler/internal/config"
	"github.com/JakeFAU/bank-content-crawler/internal/crawler"
	collyfetcher "github.com/JakeFAU/bank-content-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/bank-content-crawler/internal/fetcher/headless"
	"github.com/JakeFAU/bank-content-crawler/internal/id/uuid"
	"github.com/JakeFAU/bank-content-crawler/internal/langdetect"
	"github.com/JakeFAU/bank-content-crawler/internal/output"
	"github.com/JakeFAU/bank-content-crawler/internal/pdf"
	"github.com/JakeFAU/bank-content-crawler/internal/publisher"
	pubsubpublisher "github.com/JakeFAU/bank-content-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/bank-content-crawler/internal/storage/gcs"
	"github.com/JakeFAU/bank-content-crawler/internal/storage/local"
	"github.com/JakeFAU/bank-content-crawler/internal/storage/postgres"
	"github.com/JakeFAU/bank-content-crawler/internal/textnorm"
)

// RecordSink is a dataset mirror backed by a database.
type RecordSink interface {
	crawler.DatasetSink
	EnsureSchema(ctx context.Context) error
	Close()
}

// NotificationPublisher publishes completion events and owns a client.
type NotificationPublisher interface {
	publisher.Publisher
	io.Closer
}

// Providers construct the external services. Tests replace individual
// entries; DefaultProviders returns the production set.
type Providers struct {
	Renderer  func(cfg headless.Config) (crawler.Renderer, error)
	Fetcher   func(cfg collyfetcher.Config) crawler.Fetcher
	Archive   func(ctx context.Context, cfg gcs.Config) (crawler.BlobStore, io.Closer, error)
	Records   func(ctx context.Context, cfg postgres.RecordStoreConfig) (RecordSink, error)
	Publisher func(ctx context.Context, projectID, topic string) (NotificationPublisher, error)
	Clock     crawler.Clock
	IDs       crawler.IDGenerator
}

// DefaultProviders wires chromedp, colly, GCS, Postgres and Pub/Sub.
func DefaultProviders() Providers {
	return Providers{
		Renderer: func(cfg headless.Config) (crawler.Renderer, error) {
			return headless.New(cfg)
		},
		Fetcher: func(cfg collyfetcher.Config) crawler.Fetcher {
			return collyfetcher.New(cfg)
		},
		Archive: func(ctx context.Context, cfg gcs.Config) (crawler.BlobStore, io.Closer, error) {
			return gcs.Open(ctx, cfg)
		},
		Records: func(ctx context.Context, cfg postgres.RecordStoreConfig) (RecordSink, error) {
			return postgres.NewRecordStore(ctx, cfg)
		},
		Publisher: func(ctx context.Context, projectID, topic string) (NotificationPublisher, error) {
			return pubsubpublisher.Open(ctx, projectID, topic)
		},
		Clock: clock.System{},
		IDs:   uuid.NewUUIDGenerator(),
	}
}

type closer struct {
	name  string
	close func() error
}

// App holds the engine plus the optional status server and the clients that
// must be released after the run.
type App struct {
	cfg     config.Config
	logger  *zap.Logger
	engine  *crawler.Engine
	output  *output.JSONFile
	server  *api.Server
	closers []closer
}

// New builds an App with DefaultProviders.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	return NewWithProviders(ctx, cfg, logger, DefaultProviders())
}

// NewWithProviders builds an App. Optional services (GCS archive, Postgres
// mirror, Pub/Sub notification, status server) are only created when their
// configuration is present, and a failure to reach one is fatal so that a
// misconfigured run fails before crawling.
func NewWithProviders(ctx context.Context, cfg config.Config, logger *zap.Logger, p Providers) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if p.Clock == nil {
		p.Clock = clock.System{}
	}
	a := &App{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	logger.Info("Initializing application services")

	renderer, err := p.Renderer(headless.Config{
		UserAgent:         cfg.Crawler.UserAgent,
		NavigationTimeout: cfg.NavigationTimeout(),
		MaxParallel:       cfg.Crawler.MaxConcurrent,
		NoSandbox:         cfg.Headless.NoSandbox,
		ExecPath:          cfg.Headless.ExecPath,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init renderer: %w", err)
	}

	store, err := local.New(local.Config{BaseDir: cfg.PDF.Dir})
	if err != nil {
		return nil, fmt.Errorf("init pdf store: %w", err)
	}
	var archive crawler.BlobStore
	if cfg.PDF.GCSBucket != "" {
		bucketStore, client, archiveErr := p.Archive(ctx, gcs.Config{Bucket: cfg.PDF.GCSBucket, Prefix: cfg.PDF.Prefix})
		if archiveErr != nil {
			return nil, fmt.Errorf("init pdf archive: %w", archiveErr)
		}
		archive = bucketStore
		a.closers = append(a.closers, closer{name: "gcs", close: client.Close})
		logger.Info("Archiving PDFs to GCS", zap.String("bucket", cfg.PDF.GCSBucket))
	}

	extractor, err := pdf.New(pdf.Config{
		Fetcher: p.Fetcher(collyfetcher.Config{
			UserAgent:   cfg.Crawler.UserAgent,
			Timeout:     cfg.DownloadTimeout(),
			MaxBodySize: cfg.Crawler.MaxDownloadBytes,
		}),
		Store:   store,
		Archive: archive,
		Timeout: cfg.DownloadTimeout(),
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init pdf extractor: %w", err)
	}

	out, err := output.NewJSONFile(cfg.Output.File)
	if err != nil {
		return nil, fmt.Errorf("init output: %w", err)
	}
	a.output = out

	var mirrors []crawler.DatasetSink
	if cfg.DB.DSN != "" {
		records, recErr := p.Records(ctx, postgres.RecordStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: cfg.DB.MaxConns,
		})
		if recErr != nil {
			return nil, fmt.Errorf("init record store: %w", recErr)
		}
		a.closers = append(a.closers, closer{name: "postgres", close: func() error {
			records.Close()
			return nil
		}})
		if err := records.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("init record store: %w", err)
		}
		mirrors = append(mirrors, records)
		logger.Info("Mirroring dataset to Postgres", zap.String("table", cfg.DB.Table))
	}
	if cfg.PubSub.TopicName != "" {
		pub, pubErr := p.Publisher(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
		if pubErr != nil {
			return nil, fmt.Errorf("init publisher: %w", pubErr)
		}
		a.closers = append(a.closers, closer{name: "pubsub", close: pub.Close})
		notifier, nErr := publisher.NewNotifier(pub, out.Path(), p.Clock)
		if nErr != nil {
			return nil, fmt.Errorf("init notifier: %w", nErr)
		}
		mirrors = append(mirrors, notifier)
		logger.Info("Publishing completion to Pub/Sub", zap.String("topic", cfg.PubSub.TopicName))
	}

	engine, err := crawler.NewEngine(crawler.EngineConfig{
		Domain:           cfg.Target.Domain,
		BaseURL:          cfg.Target.BaseURL,
		MaxConcurrent:    cfg.Crawler.MaxConcurrent,
		MaxPages:         cfg.Crawler.MaxPages,
		RequestDelay:     cfg.RequestDelay(),
		ChunkSize:        cfg.Content.ChunkSize,
		MinContentLength: cfg.Content.MinContentLength,
		PDFExtensions:    cfg.Crawler.PDFExtensions,
		SaveOnInterrupt:  cfg.Output.SaveOnInterrupt,
	}, crawler.EngineDeps{
		Renderer:   renderer,
		PDFs:       extractor,
		Normalizer: textnorm.New(cfg.Content.RemoveSelectors),
		Classifier: langdetect.New(),
		Output:     out,
		Mirrors:    mirrors,
		Clock:      p.Clock,
		IDs:        p.IDs,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init engine: %w", err)
	}
	a.engine = engine

	if cfg.Server.Port > 0 {
		server, srvErr := api.NewServer(engine, logger)
		if srvErr != nil {
			return nil, fmt.Errorf("init status server: %w", srvErr)
		}
		a.server = server
	}

	logger.Info("Application services initialized")
	return a, nil
}

// Engine exposes the crawl engine.
func (a *App) Engine() *crawler.Engine {
	return a.engine
}

// Run executes one crawl. The status server, when configured, runs for the
// duration of the crawl. An interrupted crawl is not an error: Run returns
// the (possibly empty) dataset and nil.
func (a *App) Run(ctx context.Context) (crawler.Dataset, error) {
	var (
		dataset crawler.Dataset
		runErr  error
	)
	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()

	var g errgroup.Group
	if a.server != nil {
		addr := net.JoinHostPort("", strconv.Itoa(a.cfg.Server.Port))
		g.Go(func() error {
			if err := a.server.ListenAndServe(serverCtx, addr); err != nil {
				a.logger.Error("Status server failed", zap.Error(err))
			}
			return nil
		})
	}
	g.Go(func() error {
		defer stopServer()
		dataset, runErr = a.engine.Run(ctx)
		return nil
	})
	_ = g.Wait()

	switch {
	case runErr == nil:
		a.logger.Info("Crawl finished", zap.String("output", a.output.Path()))
		return dataset, nil
	case errors.Is(runErr, context.Canceled) && ctx.Err() != nil:
		if a.cfg.Output.SaveOnInterrupt {
			a.logger.Info("Crawl interrupted; partial dataset saved", zap.String("output", a.output.Path()))
		} else {
			a.logger.Info("Crawl interrupted; no output written")
		}
		if errors.Is(runErr, crawler.ErrFileSystem) {
			return dataset, fmt.Errorf("save partial dataset: %w", runErr)
		}
		return dataset, nil
	default:
		return dataset, fmt.Errorf("run crawl: %w", runErr)
	}
}

// Close releases the optional clients in reverse order of creation and
// flushes the logger.
func (a *App) Close() {
	a.logger.Info("Shutting down application services")
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("Error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
	// Best effort: Sync fails on some terminals.
	_ = a.logger.Sync()
}
