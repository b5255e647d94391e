// Package app builds the long-lived services behind the crawl, index and
// serve commands and owns their shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/topic-corpus/internal/api"
	rediscache "github.com/JakeFAU/topic-corpus/internal/cache/redis"
	"github.com/JakeFAU/topic-corpus/internal/chat"
	"github.com/JakeFAU/topic-corpus/internal/clock/system"
	"github.com/JakeFAU/topic-corpus/internal/config"
	"github.com/JakeFAU/topic-corpus/internal/coordinator"
	"github.com/JakeFAU/topic-corpus/internal/corpus"
	"github.com/JakeFAU/topic-corpus/internal/crawler"
	"github.com/JakeFAU/topic-corpus/internal/fetcher/wiki"
	"github.com/JakeFAU/topic-corpus/internal/hash/sha256"
	"github.com/JakeFAU/topic-corpus/internal/id/uuid"
	"github.com/JakeFAU/topic-corpus/internal/policy/ratelimit"
	"github.com/JakeFAU/topic-corpus/internal/progress"
	progresssinks "github.com/JakeFAU/topic-corpus/internal/progress/sinks"
	memorypublisher "github.com/JakeFAU/topic-corpus/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/topic-corpus/internal/publisher/pubsub"
	"github.com/JakeFAU/topic-corpus/internal/retrieval"
	"github.com/JakeFAU/topic-corpus/internal/search"
	gcsstorage "github.com/JakeFAU/topic-corpus/internal/storage/gcs"
	localstorage "github.com/JakeFAU/topic-corpus/internal/storage/local"
	memorystorage "github.com/JakeFAU/topic-corpus/internal/storage/memory"
	pgstore "github.com/JakeFAU/topic-corpus/internal/storage/postgres"
	"github.com/JakeFAU/topic-corpus/internal/telemetry"
)

// registerer receives the progress collectors; tests swap it for a fresh registry.
var registerer prometheus.Registerer = prometheus.DefaultRegisterer

// App contains the application's dependencies.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	store           corpus.Store
	localCorpusPath string
	fetcher         crawler.PageFetcher
	resolver        crawler.SeedResolver
	publisher       crawler.Publisher
	cache           retrieval.Cache
	progressHub     *progress.Hub

	gcsClient      *storage.Client
	pgStore        *pgstore.DocumentStore
	pubsub         *gcppublisher.Publisher
	redis          *rediscache.Cache
	tracerShutdown func(context.Context) error
}

// Build creates the application's dependencies. Optional collaborators that
// fail to connect (the answer cache) are logged and skipped; required ones
// return an error.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	tp, err := telemetry.InitTracerProvider(ctx, telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     cfg.Telemetry.Enabled,
		Exporter:    cfg.Telemetry.Exporter,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	a.tracerShutdown = tp.Shutdown

	if err := a.setupStore(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.setupPublisher(ctx); err != nil {
		a.Close(ctx)
		return nil, err
	}
	if err := a.setupProgress(); err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.setupCache(ctx)

	limiter := ratelimit.New(ratelimit.Config{
		RequestsPerSecond: cfg.Crawler.RequestsPerSecond,
		Burst:             cfg.Crawler.Burst,
	})
	client := wiki.New(wiki.Config{
		APIURL:    cfg.Wiki.APIURL,
		UserAgent: cfg.Crawler.UserAgent,
		Timeout:   cfg.WikiTimeout(),
	}, limiter, logger)
	a.fetcher, a.resolver = client, client

	logger.Info("application dependencies built",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.Int("topics", len(cfg.Crawler.Topics)),
		zap.Bool("answer_cache", a.cache != nil),
	)
	return a, nil
}

func (a *App) setupStore(ctx context.Context) error {
	hasher := sha256.New()
	prefix := a.cfg.Storage.Prefix
	switch a.cfg.Storage.Backend {
	case config.BackendGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return fmt.Errorf("gcs client init failed: %w", err)
		}
		a.gcsClient = client
		blobs, err := gcsstorage.New(client, gcsstorage.Config{Bucket: a.cfg.Storage.GCSBucket})
		if err != nil {
			return fmt.Errorf("gcs blob store init failed: %w", err)
		}
		a.store = corpus.NewBlobStore(blobs, hasher, prefix)
		a.logger.Info("using GCS corpus store", zap.String("bucket", a.cfg.Storage.GCSBucket))
	case config.BackendLocal:
		blobs, err := localstorage.New(localstorage.Config{BaseDir: a.cfg.Storage.BaseDir})
		if err != nil {
			return fmt.Errorf("local blob store init failed: %w", err)
		}
		a.localCorpusPath, err = blobs.LocalPath(corpus.ObjectPath(prefix))
		if err != nil {
			return fmt.Errorf("local corpus path: %w", err)
		}
		a.store = corpus.NewBlobStore(blobs, hasher, prefix)
		a.logger.Info("using local corpus store", zap.String("path", a.localCorpusPath))
	case config.BackendPostgres:
		st, err := pgstore.NewDocumentStore(ctx, pgstore.Config{DSN: a.cfg.Storage.DSN, Table: a.cfg.Storage.Table})
		if err != nil {
			return fmt.Errorf("postgres store init failed: %w", err)
		}
		a.pgStore = st
		if err := st.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
		a.store = st
		a.logger.Info("using postgres corpus store", zap.String("table", a.cfg.Storage.Table))
	default:
		a.store = corpus.NewBlobStore(memorystorage.NewBlobStore(), hasher, prefix)
		a.logger.Info("using in-memory corpus store")
	}
	return nil
}

func (a *App) setupPublisher(ctx context.Context) error {
	if a.cfg.PubSub.TopicName == "" {
		a.logger.Info("no Pub/Sub topic configured, using in-memory publisher")
		a.publisher = memorypublisher.New()
		return nil
	}
	pub, err := gcppublisher.New(ctx, a.cfg.PubSub.ProjectID)
	if err != nil {
		return fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	a.pubsub = pub
	a.publisher = pub
	a.logger.Info("Pub/Sub publisher initialized",
		zap.String("project", a.cfg.PubSub.ProjectID),
		zap.String("topic", a.cfg.PubSub.TopicName),
	)
	return nil
}

func (a *App) setupProgress() error {
	promSink, err := progresssinks.NewPrometheusSink(registerer)
	if err != nil {
		return fmt.Errorf("progress metrics: %w", err)
	}
	a.progressHub = progress.NewHub(progress.Config{Logger: a.logger.Named("progress_hub")},
		progresssinks.NewLogSink(a.logger.Named("progress")),
		promSink,
	)
	return nil
}

func (a *App) setupCache(ctx context.Context) {
	if a.cfg.Cache.RedisAddr == "" {
		return
	}
	c, err := rediscache.New(ctx, rediscache.Config{Addr: a.cfg.Cache.RedisAddr, KeyPrefix: a.cfg.Cache.KeyPrefix})
	if err != nil {
		a.logger.Warn("answer cache unavailable, continuing without it", zap.Error(err))
		return
	}
	a.redis = c
	a.cache = c
}

// BuildResult is the outcome of one crawl command.
type BuildResult struct {
	Report   coordinator.Report
	Artifact corpus.Artifact
}

// BuildNotification is published after a corpus is stored.
type BuildNotification struct {
	BuildID   string         `json:"build_id"`
	Documents int            `json:"documents"`
	Topics    map[string]int `json:"topics"`
	CorpusURI string         `json:"corpus_uri"`
	SHA256    string         `json:"sha256"`
	BuiltAt   time.Time      `json:"built_at"`
}

// Crawl builds the corpus for every configured topic, stores it and
// publishes a notification. An interrupted crawl is not stored, so the last
// complete corpus stays in place.
func (a *App) Crawl(ctx context.Context) (BuildResult, error) {
	clock := system.New()
	tc := crawler.NewTopicCrawler(a.fetcher, a.resolver, a.progressHub, clock, a.logger)
	coord := coordinator.New(tc, coordinator.Options{
		IDs:     uuid.New(),
		Emitter: a.progressHub,
		Clock:   clock,
		Logger:  a.logger,
	})

	docs, report := coord.CrawlAll(ctx, a.cfg.TopicSeeds(), a.cfg.Crawler.MinDocsPerTopic, a.cfg.Crawler.Concurrency)
	result := BuildResult{Report: report}
	for _, f := range report.Failures {
		a.logger.Error("topic crawl failed", zap.String("topic", f.Topic), zap.Error(f.Err))
	}
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("crawl interrupted: %w", err)
	}

	artifact, err := a.store.Save(ctx, docs)
	if err != nil {
		return result, fmt.Errorf("save corpus: %w", err)
	}
	result.Artifact = artifact
	a.logger.Info("corpus stored",
		zap.String("build_id", report.BuildID),
		zap.String("uri", artifact.URI),
		zap.Int("documents", artifact.Documents),
		zap.Duration("duration", report.Duration),
		zap.Int64("progress_events_dropped", a.progressHub.Dropped()),
	)

	a.notify(ctx, report, artifact, clock.Now())
	return result, nil
}

func (a *App) notify(ctx context.Context, report coordinator.Report, artifact corpus.Artifact, builtAt time.Time) {
	topic := a.cfg.PubSub.TopicName
	if topic == "" {
		topic = "corpus-built"
	}
	counts := make(map[string]int, len(report.Topics))
	for _, tr := range report.Topics {
		counts[tr.Topic] = tr.Documents
	}
	id, err := a.publisher.Publish(ctx, topic, BuildNotification{
		BuildID:   report.BuildID,
		Documents: artifact.Documents,
		Topics:    counts,
		CorpusURI: artifact.URI,
		SHA256:    artifact.SHA256,
		BuiltAt:   builtAt,
	})
	if err != nil {
		a.logger.Warn("build notification failed", zap.Error(err))
		return
	}
	a.logger.Info("build notification published", zap.String("message_id", id), zap.String("topic", topic))
}

// BuildIndex loads the stored corpus into a fresh index.
func (a *App) BuildIndex(ctx context.Context) (*search.Index, error) {
	ix := search.NewIndex()
	if err := ix.Reset(a.schema()); err != nil {
		return nil, err
	}
	if err := a.reload(ctx, ix); err != nil {
		return nil, err
	}
	st := ix.Stats()
	a.logger.Info("index built", zap.Int("documents", st.Documents), zap.Any("topics", st.Topics))
	return ix, nil
}

func (a *App) schema() search.Schema {
	s := a.cfg.Search
	return search.DefaultSchema().WithWeights(s.TitleWeight, s.SummaryWeight, s.TieBreaker)
}

func (a *App) reload(ctx context.Context, ix *search.Index) error {
	docs, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	if err := ix.Replace(docs); err != nil {
		return fmt.Errorf("index corpus: %w", err)
	}
	return nil
}

// Handler wires the HTTP surface over ix.
func (a *App) Handler(ix *search.Index) http.Handler {
	timeout := time.Duration(a.cfg.Chat.TimeoutSeconds) * time.Second
	var classifier chat.Classifier
	if a.cfg.Chat.ClassifierURL != "" {
		classifier = chat.NewRemoteClassifier(a.cfg.Chat.ClassifierURL, timeout)
	}
	var responder chat.Responder
	if a.cfg.Chat.ResponderURL != "" {
		responder = chat.NewRemoteResponder(a.cfg.Chat.ResponderURL, timeout)
	}
	svc := retrieval.New(ix, retrieval.Options{
		TopK:     a.cfg.Retrieval.TopK,
		Cache:    a.cache,
		CacheTTL: a.cfg.CacheTTL(),
		Logger:   a.logger,
	})
	router := chat.NewRouter(svc, classifier, responder, a.logger)
	return api.NewServer(ix, router, api.Options{
		RequestTimeout: a.cfg.RequestTimeout(),
		Logger:         a.logger,
	}).Handler()
}

// Serve builds the index and serves HTTP on the configured port until ctx
// ends.
func (a *App) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", a.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	ix, err := a.BuildIndex(ctx)
	if err != nil {
		_ = ln.Close()
		return err
	}
	return a.serve(ctx, ix, ln)
}

func (a *App) serve(ctx context.Context, ix *search.Index, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler(ix),
		ReadHeaderTimeout: 5 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("http server started",
			zap.String("addr", ln.Addr().String()),
			zap.Strings("topics", a.cfg.TopicNames()),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})
	if a.localCorpusPath != "" {
		debounce := time.Duration(a.cfg.Storage.WatchDebounceMillis) * time.Millisecond
		g.Go(func() error {
			err := corpus.Watch(gctx, a.localCorpusPath, debounce, func(ctx context.Context) error {
				return a.reload(ctx, ix)
			}, a.logger.Named("corpus_watch"))
			if err != nil {
				a.logger.Warn("corpus watch disabled", zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// Close releases every client the App opened.
func (a *App) Close(ctx context.Context) {
	if a.progressHub != nil {
		if err := a.progressHub.Close(ctx); err != nil {
			a.logger.Warn("progress hub close failed", zap.Error(err))
		}
	}
	if a.pubsub != nil {
		if err := a.pubsub.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.gcsClient != nil {
		if err := a.gcsClient.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.pgStore != nil {
		a.pgStore.Close()
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}
