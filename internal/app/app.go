// Package app builds and holds the long-lived ingest services. It is the
// dependency injection container shared by the serve and ingest commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/collection-ingest/internal/api"
	"github.com/JakeFAU/collection-ingest/internal/auth"
	"github.com/JakeFAU/collection-ingest/internal/catalog"
	"github.com/JakeFAU/collection-ingest/internal/clock/system"
	"github.com/JakeFAU/collection-ingest/internal/config"
	"github.com/JakeFAU/collection-ingest/internal/export"
	"github.com/JakeFAU/collection-ingest/internal/extract"
	"github.com/JakeFAU/collection-ingest/internal/hash/sha256"
	"github.com/JakeFAU/collection-ingest/internal/headless/detector"
	"github.com/JakeFAU/collection-ingest/internal/id/uuid"
	"github.com/JakeFAU/collection-ingest/internal/ingest"
	"github.com/JakeFAU/collection-ingest/internal/mapping"
	"github.com/JakeFAU/collection-ingest/internal/metrics"
	"github.com/JakeFAU/collection-ingest/internal/policy/ratelimit"
	"github.com/JakeFAU/collection-ingest/internal/progress"
	"github.com/JakeFAU/collection-ingest/internal/progress/sinks"
	pubsubpublisher "github.com/JakeFAU/collection-ingest/internal/publisher/pubsub"
	"github.com/JakeFAU/collection-ingest/internal/render"
	"github.com/JakeFAU/collection-ingest/internal/snapshot"
	"github.com/JakeFAU/collection-ingest/internal/storage/gcs"
	"github.com/JakeFAU/collection-ingest/internal/storage/local"
	"github.com/JakeFAU/collection-ingest/internal/storage/memory"
	"github.com/JakeFAU/collection-ingest/internal/storage/postgres"
	"github.com/JakeFAU/collection-ingest/internal/store"
)

// Option adjusts how New builds the App.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	renderer   render.Renderer
}

// WithRegisterer registers the job collectors on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithRenderer replaces the configured renderer. Pacing still applies.
func WithRenderer(r render.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// App holds the shared services.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	clock catalog.Clock
	ids   *uuid.Generator

	// Memory is set when no database is configured, so callers can seed collections.
	Memory *memory.CatalogStore

	Items        catalog.ItemStore
	Collections  catalog.CollectionStore
	Jobs         store.JobRepository
	Exports      *export.Store
	Hub          *progress.Hub
	Scraper      *extract.Scraper
	Service      *ingest.Service
	QuickBatch   *ingest.QuickBatch
	Orchestrator *ingest.Orchestrator

	ready   func(ctx context.Context) error
	closers []closer
}

type closer struct {
	name string
	fn   func(ctx context.Context) error
}

// New wires every service from cfg. It fails fast when a configured backend
// cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	metrics.Init()
	a := &App{
		cfg:    cfg,
		logger: logger,
		clock:  system.New(),
		ids:    uuid.New(),
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	logger.Info("initializing ingest services")

	if err = a.initStores(ctx); err != nil {
		return nil, err
	}
	a.Exports = export.NewStore(a.ids)

	renderer, err := a.initRenderer(o.renderer)
	if err != nil {
		return nil, err
	}
	archiver, err := a.initSnapshots(ctx)
	if err != nil {
		return nil, err
	}
	var arch extract.Archiver
	if archiver != nil {
		arch = archiver
	}
	adapters := extract.DefaultRegistry()
	a.Scraper, err = extract.NewScraper(renderer, extract.NewExtractor(adapters, logger), arch, logger)
	if err != nil {
		return nil, fmt.Errorf("build scraper: %w", err)
	}

	if err = a.initHub(ctx, o.registerer); err != nil {
		return nil, err
	}

	a.Service = ingest.NewService(a.Scraper, a.Items, a.Collections)
	a.QuickBatch = ingest.NewQuickBatch(a.Scraper, a.Items, ingest.QuickBatchConfig{
		Concurrency: cfg.Ingest.QuickBatchConcurrency,
		MaxURLs:     cfg.Ingest.QuickBatchMaxURLs,
	}, logger)
	a.Orchestrator = ingest.NewOrchestrator(a.Scraper, a.Items, a.Exports, a.clock, logger)

	logger.Info("ingest services initialized",
		zap.String("render_mode", cfg.Render.Mode),
		zap.Bool("postgres", a.Memory == nil),
		zap.Bool("snapshots", archiver != nil),
		zap.Bool("notify", cfg.Notify.Enabled),
		zap.Strings("site_adapters", adapters.Names()),
	)
	return a, nil
}

func (a *App) initStores(ctx context.Context) error {
	ttl := a.cfg.MappingCacheTTL()
	if a.cfg.DB.DSN == "" {
		a.logger.Info("no database configured, using in-memory stores")
		a.Memory = memory.NewCatalogStore(a.clock, a.ids)
		a.Items = a.Memory
		a.Collections = mapping.NewCache(a.Memory, a.clock, ttl)
		a.Jobs = memory.NewJobStore()
		return nil
	}

	a.logger.Info("connecting to postgres")
	pool, err := postgres.Open(ctx, postgres.Config{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.MaxConnLifetime(),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	a.addCloser("postgres", func(context.Context) error {
		pool.Close()
		return nil
	})
	a.ready = pool.Ping

	catalogStore, err := postgres.NewCatalogStore(pool, postgres.Tables{}, a.clock, a.ids)
	if err != nil {
		return fmt.Errorf("build catalog store: %w", err)
	}
	jobStore, err := postgres.NewJobStore(pool, postgres.Tables{})
	if err != nil {
		return fmt.Errorf("build job store: %w", err)
	}
	a.Items = catalogStore
	a.Collections = mapping.NewCache(catalogStore, a.clock, ttl)
	a.Jobs = jobStore
	return nil
}

func (a *App) initRenderer(override render.Renderer) (render.Renderer, error) {
	var base render.Renderer
	switch {
	case override != nil:
		base = override
	case a.cfg.Render.Mode == config.RenderAuto:
		headless, err := a.newHeadless()
		if err != nil {
			return nil, err
		}
		auto, err := render.NewAuto(a.newStatic(), headless, detector.NewHeuristic(a.cfg.Render.PromotionThreshold), a.logger)
		if err != nil {
			return nil, fmt.Errorf("build auto renderer: %w", err)
		}
		base = auto
	case a.cfg.Render.Mode == config.RenderStatic:
		base = a.newStatic()
	default:
		headless, err := a.newHeadless()
		if err != nil {
			return nil, err
		}
		base = headless
	}
	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   a.cfg.Render.DomainQPS,
		DefaultBurst: a.cfg.Render.DomainBurst,
	})
	return render.NewPaced(base, limiter, a.logger), nil
}

func (a *App) newStatic() *render.Static {
	return render.NewStatic(render.StaticConfig{
		UserAgent: a.cfg.Render.UserAgent,
		Timeout:   a.cfg.NavTimeout(),
	})
}

func (a *App) newHeadless() (*render.Headless, error) {
	headless, err := render.NewHeadless(render.HeadlessConfig{
		MaxParallel:       a.cfg.Render.MaxParallel,
		UserAgent:         a.cfg.Render.UserAgent,
		NavigationTimeout: a.cfg.NavTimeout(),
		ExecPath:          a.cfg.Render.ExecPath,
	})
	if err != nil {
		return nil, fmt.Errorf("start headless renderer: %w", err)
	}
	a.addCloser("headless", func(context.Context) error {
		headless.Close()
		return nil
	})
	return headless, nil
}

func (a *App) initSnapshots(ctx context.Context) (*snapshot.Archiver, error) {
	cfg := a.cfg.Snapshot
	if !cfg.Enabled {
		return nil, nil
	}
	var blobs snapshot.BlobStore
	switch cfg.Backend {
	case config.SnapshotLocal:
		bs, err := local.New(local.Config{BaseDir: cfg.BaseDir})
		if err != nil {
			return nil, fmt.Errorf("open local snapshot store: %w", err)
		}
		blobs = bs
	case config.SnapshotGCS:
		bs, err := gcs.Dial(ctx, gcs.Config{Bucket: cfg.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("open gcs snapshot store: %w", err)
		}
		a.addCloser("gcs", func(context.Context) error { return bs.Close() })
		blobs = bs
	default:
		blobs = memory.NewBlobStore()
	}
	archiver, err := snapshot.New(blobs, sha256.New(), cfg.Prefix, a.logger)
	if err != nil {
		return nil, fmt.Errorf("build snapshot archiver: %w", err)
	}
	return archiver, nil
}

func (a *App) initHub(ctx context.Context, reg prometheus.Registerer) error {
	promSink, err := sinks.NewPrometheusSink(reg)
	if err != nil {
		return fmt.Errorf("build prometheus sink: %w", err)
	}
	hubSinks := []progress.Sink{
		sinks.NewLogSink(a.logger),
		promSink,
		sinks.NewStoreSink(a.Jobs, a.logger.Named("jobs")),
	}
	if a.cfg.Notify.Enabled {
		pub, err := pubsubpublisher.Dial(ctx, a.cfg.Notify.ProjectID)
		if err != nil {
			return fmt.Errorf("connect pubsub: %w", err)
		}
		a.addCloser("pubsub", func(context.Context) error { return pub.Close() })
		hubSinks = append(hubSinks, sinks.NewNotifySink(pub, a.cfg.Notify.Topic))
	}
	a.Hub = progress.NewHub(progress.Config{Logger: a.logger}, hubSinks...)
	// The hub flushes into the sinks above, so it must close before them.
	a.closers = append([]closer{{name: "progress hub", fn: a.Hub.Close}}, a.closers...)
	return nil
}

func (a *App) addCloser(name string, fn func(ctx context.Context) error) {
	a.closers = append(a.closers, closer{name: name, fn: fn})
}

// IDs exposes the id generator used for items and jobs.
func (a *App) IDs() catalog.IDGenerator {
	return a.ids
}

// Handler builds the HTTP API over the App's services.
func (a *App) Handler() http.Handler {
	server := api.NewServer(api.Deps{
		Scraper:      a.Service,
		Batch:        a.QuickBatch,
		Orchestrator: a.Orchestrator,
		Collections:  a.Collections,
		Exports:      a.Exports,
		Jobs:         a.Jobs,
		Hub:          a.Hub,
		IDs:          a.ids,
		Guard:        auth.NewGuard(a.cfg.Auth, a.logger),
		Ready:        a.ready,
	}, a.cfg, a.logger)
	return server.Handler()
}

// Close shuts the services down in order, flushing the progress hub first.
func (a *App) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var errs []error
	for _, c := range a.closers {
		if err := c.fn(ctx); err != nil {
			a.logger.Warn("close failed", zap.String("service", c.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("close %s: %w", c.name, err))
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
