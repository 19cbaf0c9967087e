package main

import (
	"context"
	"reflect"
	"time"

	"github.com/vyrodovalexey/avafields/internal/config"
	"github.com/vyrodovalexey/avafields/internal/observability"
	"github.com/vyrodovalexey/avafields/internal/server"
)

// Reload results.
const (
	reloadSuccess = "success"
	reloadError   = "error"
)

// startConfigWatcher watches the configuration and the files it names. A
// watcher that cannot start is logged and the server keeps running without
// hot reload.
func startConfigWatcher(ctx context.Context, app *application, configPath string) *config.Watcher {
	watcher, err := config.NewWatcher(configPath, app.reload,
		config.WithLogger(app.logger.Named("watcher")),
		config.WithErrorCallback(func(error) {
			app.metrics.RecordReload(reloadError)
		}),
	)
	if err != nil {
		app.logger.Warn("failed to create config watcher", observability.Error(err))
		return nil
	}

	if err := watcher.Start(ctx); err != nil {
		app.logger.Warn("failed to start config watcher", observability.Error(err))
		_ = watcher.Stop()
		return nil
	}

	app.logger.Info("watching configuration", observability.Strings("files", watcher.WatchedFiles()))
	return watcher
}

// reload rebuilds the served state from newCfg. On failure the current
// state keeps serving.
func (a *application) reload(newCfg *config.Config) {
	start := time.Now()
	a.logger.Info("configuration changed, reloading")

	a.warnRestartRequired(newCfg)

	state, err := server.LoadState(newCfg, a.backend, a.logger)
	if err != nil {
		a.metrics.RecordReload(reloadError)
		a.logger.Error("failed to reload configuration", observability.Error(err))
		return
	}

	a.server.SetState(state)
	a.metrics.RecordReload(reloadSuccess)
	a.logger.Info("configuration reloaded",
		observability.String("generation", state.Generation),
		observability.Duration("duration", time.Since(start)),
	)
}

// warnRestartRequired logs sections that only take effect on restart.
func (a *application) warnRestartRequired(newCfg *config.Config) {
	sections := map[string][2]interface{}{
		"server":  {a.config.Server, newCfg.Server},
		"logging": {a.config.Logging, newCfg.Logging},
		"tracing": {a.config.Tracing, newCfg.Tracing},
		"metrics": {a.config.Metrics, newCfg.Metrics},
		"cache":   {a.config.Cache, newCfg.Cache},
	}

	for name, pair := range sections {
		if !reflect.DeepEqual(pair[0], pair[1]) {
			a.logger.Warn("configuration section changed; restart to apply",
				observability.String("section", name))
		}
	}
}
