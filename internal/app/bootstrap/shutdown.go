// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown runs after the HTTP server has drained. Jobs stop first, then
// dashboard sessions (cancelling in-flight upstream fetches), then the
// usage recorder flushes before MongoDB goes away.
//
// The first error is returned; later steps still run.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if taskRunner != nil {
		logger.Info("stopping background task runner")
		if err := taskRunner.Stop(ctx); err != nil {
			logger.Warn("background task runner did not stop cleanly", zap.Error(err))
			keep(err)
		}
	}

	if dashboards != nil {
		logger.Info("closing dashboard sessions", zap.Int("open", dashboards.Len()))
		dashboards.Close()
	}

	if recorder != nil {
		if err := recorder.Close(ctx); err != nil {
			logger.Warn("usage recorder did not flush", zap.Error(err),
				zap.Int64("dropped", recorder.Dropped()))
			keep(err)
		}
	}

	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			keep(err)
		}
	}

	return firstErr
}
