// Package app wires every subsystem of the bibliographic discovery service
// into a running application.
//
// The App struct owns the full lifecycle: New connects to the three logical
// PostgreSQL databases (index, session, enrichment), runs each subsystem's
// startup checks, and assembles the Dialogue Engine; Run serves HTTP and
// WebSocket traffic until its context is cancelled; Shutdown tears everything
// down in reverse-init order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hagaybar/biblioplan/internal/aggregate"
	"github.com/hagaybar/biblioplan/internal/config"
	"github.com/hagaybar/biblioplan/internal/dialogue"
	"github.com/hagaybar/biblioplan/internal/enrich"
	"github.com/hagaybar/biblioplan/internal/health"
	"github.com/hagaybar/biblioplan/internal/index"
	"github.com/hagaybar/biblioplan/internal/observe"
	"github.com/hagaybar/biblioplan/internal/planner/cache"
	"github.com/hagaybar/biblioplan/internal/planner/llmplan"
	"github.com/hagaybar/biblioplan/internal/query"
	"github.com/hagaybar/biblioplan/internal/resilience"
	"github.com/hagaybar/biblioplan/internal/schema"
	"github.com/hagaybar/biblioplan/internal/session"
	transporthttp "github.com/hagaybar/biblioplan/internal/transport/http"
	transportws "github.com/hagaybar/biblioplan/internal/transport/ws"
	"github.com/hagaybar/biblioplan/pkg/provider/llm"
)

// Environment variable names for the three logical database connections.
// DSNs are intentionally never read from YAML — spec.md §6.4 keeps
// credentials out of the config file entirely.
const (
	envIndexDSN      = "BIBLIOGRAPHIC_DB_PATH"
	envSessionDSN    = "SESSIONS_DB_PATH"
	envEnrichmentDSN = "ENRICHMENT_DB_DSN"
)

// Providers holds the NL provider instances constructed by main.go via the
// config [config.Registry]. FallbackNL is nil when no fallback is configured.
type Providers struct {
	NL         llm.Provider
	FallbackNL llm.Provider
}

// App owns every subsystem's lifetime and serves the chat/WS transport.
type App struct {
	cfg *config.Config

	indexPool      *pgxpool.Pool
	sessionPool    *pgxpool.Pool
	enrichmentPool *pgxpool.Pool

	engine    *dialogue.Engine
	enrichSvc *enrich.Service
	metrics   *observe.Metrics
	health    *health.Handler

	httpServer *http.Server

	otelShutdown func(context.Context) error

	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*options)

type options struct {
	listenAddr string
}

// WithListenAddr overrides the listen address taken from cfg.Server.ListenAddr.
func WithListenAddr(addr string) Option {
	return func(o *options) { o.listenAddr = addr }
}

// New builds an App: it connects the three database pools from environment
// variables, runs the Schema Contract's live check and every subsystem's
// migration, assembles the NL provider fallback group, and wires the
// Dialogue Engine behind the HTTP and WebSocket transports.
func New(ctx context.Context, cfg *config.Config, providers Providers, opts ...Option) (*App, error) {
	o := &options{listenAddr: cfg.Server.ListenAddr}
	for _, opt := range opts {
		opt(o)
	}
	if o.listenAddr == "" {
		o.listenAddr = ":8080"
	}

	a := &App{cfg: cfg}

	if err := a.initDatabases(ctx); err != nil {
		return nil, err
	}

	if err := a.initObservability(ctx); err != nil {
		return nil, fmt.Errorf("app: init observability: %w", err)
	}

	if err := a.initEngine(ctx, providers); err != nil {
		return nil, fmt.Errorf("app: init dialogue engine: %w", err)
	}

	a.initHealth()

	if err := a.initTransport(o.listenAddr); err != nil {
		return nil, fmt.Errorf("app: init transport: %w", err)
	}

	return a, nil
}

// initDatabases opens the three logical PostgreSQL pools and runs every
// package's migration/live-check against them.
func (a *App) initDatabases(ctx context.Context) error {
	indexDSN := os.Getenv(envIndexDSN)
	if indexDSN == "" {
		return fmt.Errorf("app: %s is not set", envIndexDSN)
	}
	sessionDSN := os.Getenv(envSessionDSN)
	if sessionDSN == "" {
		return fmt.Errorf("app: %s is not set", envSessionDSN)
	}
	enrichmentDSN := os.Getenv(envEnrichmentDSN)
	if enrichmentDSN == "" {
		return fmt.Errorf("app: %s is not set", envEnrichmentDSN)
	}

	indexPool, err := pgxpool.New(ctx, indexDSN)
	if err != nil {
		return fmt.Errorf("app: connect bibliographic db: %w", err)
	}
	a.indexPool = indexPool
	a.closers = append(a.closers, func() error { indexPool.Close(); return nil })

	if err := index.Migrate(ctx, indexPool); err != nil {
		return fmt.Errorf("app: migrate bibliographic db: %w", err)
	}
	if err := schema.CheckLive(ctx, indexPool); err != nil {
		return fmt.Errorf("app: schema contract check failed: %w", err)
	}

	sessionPool, err := pgxpool.New(ctx, sessionDSN)
	if err != nil {
		return fmt.Errorf("app: connect sessions db: %w", err)
	}
	a.sessionPool = sessionPool
	a.closers = append(a.closers, func() error { sessionPool.Close(); return nil })

	if err := session.Migrate(ctx, sessionPool); err != nil {
		return fmt.Errorf("app: migrate sessions db: %w", err)
	}

	enrichmentPool, err := pgxpool.New(ctx, enrichmentDSN)
	if err != nil {
		return fmt.Errorf("app: connect enrichment db: %w", err)
	}
	a.enrichmentPool = enrichmentPool
	a.closers = append(a.closers, func() error { enrichmentPool.Close(); return nil })

	if err := enrich.Migrate(ctx, enrichmentPool); err != nil {
		return fmt.Errorf("app: migrate enrichment db: %w", err)
	}

	return nil
}

// initObservability starts the OTel SDK and the package-level metrics
// instance used throughout the request path.
func (a *App) initObservability(ctx context.Context) error {
	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "biblioplan"})
	if err != nil {
		return err
	}
	a.otelShutdown = shutdown

	metrics := observe.DefaultMetrics()
	a.metrics = metrics
	return nil
}

// initEngine assembles the NL provider fallback group, the Plan Cache, the
// Executor/Aggregator/MetadataAnswerer over the index database, the
// Enrichment service over the enrichment database, and finally the Dialogue
// Engine itself.
func (a *App) initEngine(ctx context.Context, providers Providers) error {
	if providers.NL == nil {
		return fmt.Errorf("app: no NL provider configured — plan compilation requires one")
	}

	nlGroup := resilience.NewFallbackGroup[llm.Provider](providers.NL, a.cfg.Providers.NL.Name, resilience.FallbackConfig{})
	if providers.FallbackNL != nil {
		nlGroup.AddFallback(a.cfg.Planner.FallbackNL.Name, providers.FallbackNL)
	}

	interpreter := llmplan.New(nlGroup)
	classifier := dialogue.NewClassifier(nlGroup)

	cachePath := a.cfg.Planner.CachePath
	if cachePath == "" {
		cachePath = config.DefaultPlanCachePath
	}
	planCache, err := cache.Open(cachePath)
	if err != nil {
		return fmt.Errorf("open plan cache %q: %w", cachePath, err)
	}

	sessions := session.New(a.sessionPool)
	executor := query.New(a.indexPool)
	aggregator := aggregate.New(a.indexPool)
	metadata := dialogue.NewMetadataAnswerer(a.indexPool)

	enrichSvc, err := a.buildEnrichmentService(ctx)
	if err != nil {
		return err
	}
	a.enrichSvc = enrichSvc

	a.engine = dialogue.New(
		sessions,
		interpreter,
		classifier,
		planCache,
		a.cfg.Providers.NL.Name,
		executor,
		aggregator,
		metadata,
		enrichSvc,
	)

	return nil
}

// buildEnrichmentService constructs every configured enrichment source and
// the Service that fronts them, and starts its background TTL reaper.
func (a *App) buildEnrichmentService(ctx context.Context) (*enrich.Service, error) {
	sourceConfigs := make([]enrich.SourceConfig, len(a.cfg.Enrichment.Sources))
	for i, s := range a.cfg.Enrichment.Sources {
		sourceConfigs[i] = enrich.SourceConfig{Name: s.Name, BaseURL: s.BaseURL}
	}
	sources, err := enrich.BuildSources(sourceConfigs, nil)
	if err != nil {
		return nil, fmt.Errorf("build enrichment sources: %w", err)
	}

	ttl := time.Duration(a.cfg.Enrichment.TTLHours) * time.Hour
	reapInterval := time.Duration(a.cfg.Enrichment.ReapIntervalMinutes) * time.Minute

	svc := enrich.New(a.enrichmentPool, sources, enrich.Config{
		TTL:                      ttl,
		RequestsPerSecondPerHost: a.cfg.Enrichment.RequestsPerSecondPerHost,
		ReapInterval:             reapInterval,
	})
	svc.Start(ctx)
	a.closers = append(a.closers, func() error { svc.Stop(); return nil })

	return svc, nil
}

// initHealth builds the /healthz and /readyz handler with one checker per
// logical database.
func (a *App) initHealth() {
	a.health = health.New(
		health.Checker{Name: "bibliographic_db", Check: pingChecker(a.indexPool)},
		health.Checker{Name: "sessions_db", Check: pingChecker(a.sessionPool)},
		health.Checker{Name: "enrichment_db", Check: pingChecker(a.enrichmentPool)},
	)
}

func pingChecker(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		return pool.Ping(ctx)
	}
}

// initTransport registers the HTTP and WebSocket handlers and builds the
// http.Server that serves them.
func (a *App) initTransport(listenAddr string) error {
	mux := http.NewServeMux()
	a.health.Register(mux)

	rateLimit := a.cfg.RateLimit.RequestsPerMinute
	if rateLimit <= 0 {
		rateLimit = 10
	}

	chatServer := transporthttp.New(a.engine, transporthttp.Config{
		RequestsPerMinute: rateLimit,
		DatabaseConnected: func(ctx context.Context) bool {
			return a.indexPool.Ping(ctx) == nil
		},
		SessionStoreOK: func(ctx context.Context) bool {
			return a.sessionPool.Ping(ctx) == nil
		},
		Metrics: a.metrics,
	})
	chatServer.Register(mux)

	wsServer := transportws.New(a.engine, a.metrics)
	wsServer.Register(mux)

	a.httpServer = &http.Server{
		Addr:    listenAddr,
		Handler: observe.Middleware(a.metrics)(mux),
	}
	return nil
}

// Run serves HTTP and WebSocket traffic until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	slog.Info("server listening", "addr", a.httpServer.Addr)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// Shutdown stops the HTTP server and tears down every subsystem in
// reverse-init order, respecting ctx's deadline.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		var errs []error

		if err := a.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}

		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				errs = append(errs, err)
			}
		}

		if a.otelShutdown != nil {
			if err := a.otelShutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("otel shutdown: %w", err))
			}
		}

		shutdownErr = errors.Join(errs...)
	})
	return shutdownErr
}
