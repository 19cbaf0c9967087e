package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/hashicorp/go-multierror"

	"github.com/vyrodovalexey/avafields/internal/cache"
	"github.com/vyrodovalexey/avafields/internal/config"
	"github.com/vyrodovalexey/avafields/internal/fields"
	"github.com/vyrodovalexey/avafields/internal/filter"
	"github.com/vyrodovalexey/avafields/internal/observability"
	"github.com/vyrodovalexey/avafields/internal/server"
)

// application holds all application components.
type application struct {
	server  *server.Server
	backend cache.Cache
	metrics *observability.Metrics
	tracer  *observability.Tracer
	config  *config.Config
	logger  observability.Logger
}

// newApplication wires the server from cfg.
func newApplication(cfg *config.Config, logger observability.Logger) (*application, error) {
	metrics := newMetrics()

	tracer, err := observability.NewTracer(observability.TracerConfig{
		ServiceName:  cfg.Tracing.ServiceName,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SamplingRate: cfg.Tracing.SamplingRate,
		Enabled:      cfg.Tracing.Enabled,
		Insecure:     cfg.Tracing.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	backend, err := cache.New(&cfg.Cache, logger.Named("cache"))
	if err != nil {
		_ = tracer.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	state, err := server.LoadState(cfg, backend, logger)
	if err != nil {
		_ = backend.Close()
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}

	srv, err := server.New(cfg, state,
		server.WithLogger(logger.Named("server")),
		server.WithMetrics(metrics),
		server.WithCache(backend),
		server.WithVersion(version),
	)
	if err != nil {
		_ = backend.Close()
		_ = tracer.Shutdown(context.Background())
		return nil, err
	}

	logger.Info("configuration loaded",
		observability.String("schemas", cfg.Schemas.Path),
		observability.String("data", cfg.Data.Path),
		observability.Int("schemaCount", state.Registry.Len()),
		observability.Int("objects", state.Store.Len()),
		observability.Int("presets", len(cfg.Fields.Presets)),
		observability.String("cache", cacheDescription(&cfg.Cache)),
		observability.Bool("tracing", tracer.Enabled()),
	)

	return &application{
		server:  srv,
		backend: backend,
		metrics: metrics,
		tracer:  tracer,
		config:  cfg,
		logger:  logger,
	}, nil
}

// newMetrics creates the server registry and registers the package
// collectors onto it.
func newMetrics() *observability.Metrics {
	metrics := observability.NewMetrics("avafields")
	metrics.SetBuildInfo(version, gitCommit)

	parseMetrics := fields.GetMetrics()
	parseMetrics.MustRegister(metrics.Registry())
	parseMetrics.Init()

	filterMetrics := filter.GetMetrics()
	filterMetrics.MustRegister(metrics.Registry())
	filterMetrics.Init()

	cacheMetrics := cache.GetCacheMetrics()
	cacheMetrics.MustRegister(metrics.Registry())
	cacheMetrics.Init()

	return metrics
}

func cacheDescription(cfg *config.CacheConfig) string {
	if !cfg.Enabled {
		return "disabled"
	}
	if cfg.Type == "" {
		return config.CacheTypeMemory
	}
	return cfg.Type
}

// run serves until ctx is done, reloading on configuration changes, then
// shuts down gracefully.
func run(ctx context.Context, app *application, configPath string) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- app.server.Start(ctx)
	}()

	watcher := startConfigWatcher(ctx, app, configPath)

	var serveErr error
	select {
	case <-ctx.Done():
		app.logger.Info("received shutdown signal")
	case serveErr = <-errCh:
	}

	shutdownErr := app.shutdown(watcher)
	if serveErr != nil {
		return serveErr
	}
	return shutdownErr
}

// shutdown stops the watcher and server, then releases the cache and
// flushes traces.
func (a *application) shutdown(watcher *config.Watcher) error {
	timeout := a.config.Server.ShutdownTimeout.Duration()
	if timeout <= 0 {
		timeout = config.DefaultShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if watcher != nil {
		_ = watcher.Stop()
	}

	var errs *multierror.Error
	if err := a.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("failed to stop server gracefully", observability.Error(err))
		errs = multierror.Append(errs, err)
	}

	if err := a.backend.Close(); err != nil {
		a.logger.Error("failed to close cache", observability.Error(err))
		errs = multierror.Append(errs, err)
	}

	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Error("failed to shutdown tracer", observability.Error(err))
		errs = multierror.Append(errs, err)
	}

	a.logger.Info("avafields stopped", observability.Duration("shutdownTimeout", timeout))
	return errs.ErrorOrNil()
}

