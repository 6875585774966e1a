// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/stratacovid/internal/app/resources"
	"github.com/dalemusser/stratacovid/internal/app/store/usage"
	"github.com/dalemusser/stratacovid/internal/app/system/dashsession"
	"github.com/dalemusser/stratacovid/internal/app/system/dashstate"
	"github.com/dalemusser/stratacovid/internal/app/system/gateway"
	"github.com/dalemusser/stratacovid/internal/app/system/tasks"
	"github.com/dalemusser/stratacovid/internal/app/system/timeouts"
	"github.com/dalemusser/stratacovid/internal/app/system/usagestats"
	"github.com/dalemusser/stratacovid/internal/app/system/viewdata"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Process-wide runtime objects, created in Startup and released in Shutdown.
var (
	recorder   *usagestats.Recorder
	dashboards *dashsession.Manager
	taskRunner *tasks.Runner
)

// Startup runs once after the database is connected and usage_stats is
// ready, before the HTTP handler is built.
//
// It builds the upstream gateway, the in-memory dashboard session manager
// and the usage recorder, then starts the background jobs. Returning an
// error aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	resources.LoadSharedTemplates()
	viewdata.Init(appCfg.SiteName)

	timeouts.Configure(timeouts.Config{
		Poll:     appCfg.PollTimeout,
		Query:    appCfg.QueryTimeout,
		Upstream: appCfg.UpstreamTimeout,
	})

	defaultRange, err := appCfg.DefaultRange()
	if err != nil {
		return err
	}

	usageStore := usagestore.New(deps.MongoDatabase)
	recorder = usagestats.NewRecorder(usageStore, logger, appCfg.UsageBuffer)

	client := gateway.New(gateway.Config{
		CountriesURL:  appCfg.CountriesURL,
		HistoricalURL: appCfg.HistoricalURL,
		Timeout:       appCfg.UpstreamTimeout,
	}, logger, gateway.WithObserver(recorder.Upstream))

	dashboards = dashsession.NewManager(client, dashsession.Config{
		Defaults: dashstate.Defaults{
			Country: appCfg.DefaultCountry,
			Range:   defaultRange,
		},
		LastDays:     appCfg.HistoricalLastDays,
		FetchTimeout: appCfg.UpstreamTimeout,
	}, logger, dashsession.WithEvents(recorder.Event))

	logger.Info("dashboard ready",
		zap.String("default_country", appCfg.DefaultCountry),
		zap.String("default_from", defaultRange.From.String()),
		zap.String("default_to", defaultRange.To.String()),
		zap.Int("last_days", appCfg.HistoricalLastDays))

	startTaskRunner(usageStore, appCfg, logger)
	return nil
}

func startTaskRunner(pruner tasks.Pruner, appCfg AppConfig, logger *zap.Logger) {
	taskRunner = tasks.New(logger)
	taskRunner.Register(tasks.SessionSweepJob(dashboards, appCfg.SessionIdleTTL, logger))
	taskRunner.Register(tasks.UsageRetentionJob(pruner, appCfg.UsageRetention, logger))
	taskRunner.Start()
}
