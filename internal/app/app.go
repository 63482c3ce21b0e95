// Package app initializes and holds long-lived collector services, acting as a
// dependency injection container.
package app

import (
	"context"
	"fmt"
	"time"

	sb "github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"github.com/JakeFAU/dealfeed-collector/internal/browser"
	"github.com/JakeFAU/dealfeed-collector/internal/clock/system"
	"github.com/JakeFAU/dealfeed-collector/internal/collector"
	"github.com/JakeFAU/dealfeed-collector/internal/config"
	"github.com/JakeFAU/dealfeed-collector/internal/extract"
	"github.com/JakeFAU/dealfeed-collector/internal/feed/telegram"
	"github.com/JakeFAU/dealfeed-collector/internal/hash/md5"
	"github.com/JakeFAU/dealfeed-collector/internal/hash/sha256"
	"github.com/JakeFAU/dealfeed-collector/internal/humanize"
	"github.com/JakeFAU/dealfeed-collector/internal/id/uuid"
	"github.com/JakeFAU/dealfeed-collector/internal/ingest"
	"github.com/JakeFAU/dealfeed-collector/internal/media"
	"github.com/JakeFAU/dealfeed-collector/internal/ops"
	"github.com/JakeFAU/dealfeed-collector/internal/pipeline"
	"github.com/JakeFAU/dealfeed-collector/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/dealfeed-collector/internal/publisher/memory"
	"github.com/JakeFAU/dealfeed-collector/internal/publisher/pubsub"
	"github.com/JakeFAU/dealfeed-collector/internal/random"
	"github.com/JakeFAU/dealfeed-collector/internal/resolver"
	"github.com/JakeFAU/dealfeed-collector/internal/storage/gcs"
	"github.com/JakeFAU/dealfeed-collector/internal/storage/local"
	"github.com/JakeFAU/dealfeed-collector/internal/storage/memory"
	"github.com/JakeFAU/dealfeed-collector/internal/storage/mongo"
	"github.com/JakeFAU/dealfeed-collector/internal/storage/postgres"
	"github.com/JakeFAU/dealfeed-collector/internal/storage/supabase"
)

// App holds the shared, long-lived services for one collector process.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	clock        collector.Clock
	ids          collector.IDGenerator
	objects      collector.ObjectStore
	records      collector.RecordStore
	publisher    collector.Publisher
	orchestrator *pipeline.Orchestrator
	ops          *ops.Server
	closers      []namedCloser
}

type namedCloser struct {
	name string
	fn   func() error
}

type options struct {
	feed  collector.Feed
	clock collector.Clock
}

// Option customises New, mostly for tests and local runs.
type Option func(*options)

// WithFeed replaces the telegram feed.
func WithFeed(feed collector.Feed) Option {
	return func(o *options) { o.feed = feed }
}

// WithClock replaces the system clock.
func WithClock(clock collector.Clock) Option {
	return func(o *options) { o.clock = clock }
}

// New builds every service named by cfg. It fails fast when a backend cannot be
// initialised and releases whatever was already opened.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (_ *App, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.clock == nil {
		o.clock = system.New()
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		clock:  o.clock,
		ids:    uuid.New(),
		ops:    ops.NewServer(logger.Named("ops")),
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	logger.Info("initializing collector services",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("records", cfg.Records.Backend),
		zap.String("channel", cfg.Feed.Channel),
	)

	var sbClient *sb.Client
	if cfg.Storage.Backend == "supabase" || cfg.Records.Backend == "supabase" {
		sbClient, err = supabase.NewClient(supabase.Config{URL: cfg.Supabase.URL, Key: cfg.Supabase.Key})
		if err != nil {
			return nil, err
		}
	}
	if a.objects, err = a.newObjectStore(ctx, sbClient); err != nil {
		return nil, fmt.Errorf("init object store: %w", err)
	}
	if a.records, err = a.newRecordStore(ctx, sbClient); err != nil {
		return nil, fmt.Errorf("init record store: %w", err)
	}
	if a.publisher, err = a.newPublisher(ctx); err != nil {
		return nil, fmt.Errorf("init publisher: %w", err)
	}
	hasher, err := newHasher(cfg.Hash.Algorithm)
	if err != nil {
		return nil, err
	}

	feed := o.feed
	if feed == nil {
		downloader := media.New(media.Config{
			Timeout:  time.Duration(cfg.Media.TimeoutSeconds) * time.Second,
			Retries:  cfg.Media.Retries,
			MaxBytes: cfg.Media.MaxBytes,
		}, logger.Named("media"))
		feed, err = telegram.New(telegram.Config{
			Channel:   cfg.Feed.Channel,
			BaseURL:   cfg.Feed.BaseURL,
			Limit:     cfg.Feed.Limit,
			UserAgent: cfg.Feed.UserAgent,
			Timeout:   time.Duration(cfg.Feed.TimeoutSeconds) * time.Second,
		}, downloader, logger.Named("feed"))
		if err != nil {
			return nil, fmt.Errorf("init feed: %w", err)
		}
	}

	res, err := a.newResolver()
	if err != nil {
		return nil, err
	}
	ingestor := ingest.New(ingest.Config{
		Namespace:   cfg.Storage.Prefix,
		Extension:   ".jpg",
		ContentType: cfg.Storage.ContentType,
	}, a.objects, hasher, logger.Named("ingest"))

	delayMin, delayMax := cfg.CandidateDelay()
	a.orchestrator = pipeline.New(
		feed,
		res,
		extract.New(extract.DefaultConfig(), logger.Named("extract")),
		ingestor,
		a.records,
		a.publisher,
		a.clock,
		newRand(cfg.Browser.Seed, 3),
		pipeline.Config{
			Table:             cfg.Records.Table,
			Patterns:          cfg.Target.Patterns,
			CandidateDelayMin: delayMin,
			CandidateDelayMax: delayMax,
			Topic:             cfg.PubSub.Topic,
			ExportPath:        cfg.Export.Path,
		},
		logger.Named("pipeline"),
	)

	logger.Info("collector services initialized")
	return a, nil
}

func (a *App) newResolver() (*resolver.Resolver, error) {
	cfg := a.cfg
	engines := make([]collector.Engine, 0, len(cfg.Browser.Engines))
	for _, e := range cfg.Browser.Engines {
		engines = append(engines, collector.Engine(e))
	}
	execPaths := make(map[collector.Engine]string, len(cfg.Browser.ExecPaths))
	for e, p := range cfg.Browser.ExecPaths {
		execPaths[collector.Engine(e)] = p
	}
	factory, err := browser.NewFactory(browser.Config{
		Engines:   engines,
		ExecPaths: execPaths,
		Headless:  cfg.Browser.Headless,
		Stealth:   cfg.Browser.Stealth,
		Proxy: collector.ProxyConfig{
			Server:   cfg.Proxy.Server,
			Username: cfg.Proxy.Username,
			Password: cfg.Proxy.Password,
		},
	}, newRand(cfg.Browser.Seed, 1), a.logger.Named("browser"))
	if err != nil {
		return nil, fmt.Errorf("init browser factory: %w", err)
	}
	engine := humanize.New(newRand(cfg.Browser.Seed, 2), a.logger.Named("humanize"),
		humanize.WithPauseScale(cfg.Humanize.PauseScale))
	limiter := ratelimit.New(ratelimit.Config{
		DomainQPS: cfg.Resolver.DomainQPS,
		Burst:     cfg.Resolver.DomainBurst,
	})
	return resolver.New(resolver.Config{
		NavigationTimeout: cfg.NavigationTimeout(),
		CaptchaSelector:   cfg.Resolver.CaptchaSelector,
		Interactions:      cfg.Humanize.Interactions,
	}, factory, engine, limiter, a.logger.Named("resolver")), nil
}

func (a *App) newObjectStore(ctx context.Context, sbClient *sb.Client) (collector.ObjectStore, error) {
	cfg := a.cfg.Storage
	switch cfg.Backend {
	case "supabase":
		return supabase.NewObjectStore(sbClient.Storage, cfg.Bucket)
	case "gcs":
		store, closeFn, err := gcs.Open(ctx, gcs.Config{Bucket: cfg.Bucket, PublicBaseURL: cfg.PublicBaseURL}, a.logger)
		if err != nil {
			return nil, err
		}
		a.addCloser("gcs", closeFn)
		return store, nil
	case "local":
		return local.New(local.Config{BaseDir: cfg.BaseDir, PublicBaseURL: cfg.PublicBaseURL})
	case "memory":
		return memory.NewObjectStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func (a *App) newRecordStore(ctx context.Context, sbClient *sb.Client) (collector.RecordStore, error) {
	cfg := a.cfg.Records
	switch cfg.Backend {
	case "supabase":
		return supabase.NewRecordStore(sbClient)
	case "postgres":
		store, err := postgres.NewRecordStore(ctx, postgres.Config{DSN: cfg.DSN, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, err
		}
		a.addCloser("postgres", func() error { store.Close(); return nil })
		return store, nil
	case "mongo":
		store, err := mongo.NewRecordStore(ctx, mongo.Config{URI: cfg.MongoURI, Database: cfg.MongoDatabase})
		if err != nil {
			return nil, err
		}
		a.addCloser("mongo", func() error { return store.Close(context.Background()) })
		return store, nil
	case "local":
		return local.NewRecordStore(local.Config{BaseDir: cfg.BaseDir})
	case "memory":
		return memory.NewRecordStore(), nil
	default:
		return nil, fmt.Errorf("unknown records backend %q", cfg.Backend)
	}
}

func (a *App) newPublisher(ctx context.Context) (collector.Publisher, error) {
	cfg := a.cfg.PubSub
	if cfg.Topic == "" {
		return nil, nil
	}
	if cfg.Backend == "memory" {
		return memorypublisher.New(), nil
	}
	pub, err := pubsub.Open(ctx, cfg.ProjectID, a.logger)
	if err != nil {
		return nil, err
	}
	a.addCloser("pubsub", pub.Close)
	if err := pub.EnsureTopic(ctx, cfg.Topic); err != nil {
		return nil, err
	}
	return pub, nil
}

func newHasher(algorithm string) (collector.Hasher, error) {
	switch algorithm {
	case "", "md5":
		return md5.New(), nil
	case "sha256":
		return sha256.New(), nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", algorithm)
	}
}

// newRand derives an independent stream per component. A zero seed means
// non-deterministic.
func newRand(seed, stream uint64) random.Source {
	if seed == 0 {
		return random.NewDefault()
	}
	return random.New(seed + stream)
}

func (a *App) addCloser(name string, fn func() error) {
	a.closers = append(a.closers, namedCloser{name: name, fn: fn})
}

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the configuration the app was built from.
func (a *App) Config() config.Config { return a.cfg }

// Clock returns the clock shared by the services.
func (a *App) Clock() collector.Clock { return a.clock }

// Orchestrator returns the message pipeline.
func (a *App) Orchestrator() *pipeline.Orchestrator { return a.orchestrator }

// Ops returns the health/metrics server.
func (a *App) Ops() *ops.Server { return a.ops }

// Records returns the configured record store.
func (a *App) Records() collector.RecordStore { return a.records }

// Objects returns the configured object store.
func (a *App) Objects() collector.ObjectStore { return a.objects }

// NewRunID returns a fresh run identifier.
func (a *App) NewRunID() (string, error) {
	id, err := a.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id, nil
}

// Close shuts down services in reverse order of creation.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("error closing service", zap.String("service", c.name), zap.Error(err))
		}
	}
	a.closers = nil
}

// Run executes one pass over the feed.
func (a *App) Run(ctx context.Context, runID string) (pipeline.Summary, error) {
	return a.orchestrator.Run(ctx, runID)
}
