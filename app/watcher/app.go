package watcher

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/idena-watch/flipwatch/app/watcher/controller"
	"github.com/idena-watch/flipwatch/app/watcher/types"
	"github.com/idena-watch/flipwatch/pkg/logging"
	"github.com/idena-watch/flipwatch/pkg/notify"
	"github.com/idena-watch/flipwatch/pkg/rpc"
	"github.com/idena-watch/flipwatch/pkg/scan"
	"github.com/idena-watch/flipwatch/pkg/store"
	"github.com/idena-watch/flipwatch/pkg/utils"
)

// Initialize builds the watcher from environment configuration:
//   - IDENA_API_URLS: comma-separated indexer API endpoints
//   - IDENA_API_RPS: request rate against the API
//   - SCAN_WORKERS: concurrent flip-flag fetches
//   - WINDOW_EPOCHS: rolling window size in completed epochs
//   - WATCH_CRON: rescan schedule (cron with seconds field)
//   - STORE_PATH: sqlite file for persisted reports
//   - REDIS_ENABLED: "true" to publish repeat offenders to a Redis stream
//   - ADDR: HTTP listen address
func Initialize(ctx context.Context) *types.App {
	logger, err := logging.New()
	if err != nil {
		// nothing else to do here, we'll just log to stderr
		panic(err)
	}

	endpoints := strings.Split(utils.Env("IDENA_API_URLS", rpc.DefaultBaseURL), ",")
	client := rpc.NewHTTPWithOpts(rpc.Opts{
		Endpoints: endpoints,
		RPS:       utils.EnvInt("IDENA_API_RPS", 10),
	})

	runner := scan.NewRunner(client, logger)
	runner.Workers = utils.EnvInt("SCAN_WORKERS", scan.DefaultWorkers)

	st, err := store.Open(utils.Env("STORE_PATH", "flipwatch.db"), logger)
	if err != nil {
		logger.Fatal("Unable to open report store", zap.Error(err))
	}

	app := &types.App{
		Runner:     runner,
		Store:      st,
		Cache:      xsync.NewMap[uint64, *scan.EpochReport](),
		CronSpec:   utils.Env("WATCH_CRON", "0 0 */6 * * *"),
		WindowSize: utils.EnvInt("WINDOW_EPOCHS", scan.DefaultWindowSize),
		Logger:     logger,
	}

	if utils.Env("REDIS_ENABLED", "false") == "true" {
		pub, pubErr := notify.NewPublisher(ctx, logger)
		if pubErr != nil {
			logger.Fatal("Unable to connect to Redis", zap.Error(pubErr))
		}
		app.Publisher = pub
	}

	ctrl := controller.NewController(app)
	addr := utils.Env("ADDR", ":3001")
	app.Server = &http.Server{Addr: addr, Handler: ctrl.NewRouter()}

	app.Cron = cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	if _, err := app.Cron.AddFunc(app.CronSpec, func() {
		// Keep each rescan bounded so a stuck upstream cannot pile runs up.
		rctx, cancel := context.WithTimeout(ctx, 2*time.Hour)
		defer cancel()
		if rescanErr := Rescan(rctx, app); rescanErr != nil {
			logger.Warn("rescan failed", zap.Error(rescanErr))
		}
	}); err != nil {
		logger.Fatal("Unable to schedule rescan", zap.Error(err))
	}

	return app
}

// Rescan scans every epoch of the current rolling window that has no stored
// report yet. Verdicts are immutable once an epoch completes, so finished
// epochs are never refetched. Epochs that fail to list are left for the next
// run.
func Rescan(ctx context.Context, app *types.App) error {
	start, end, err := app.Runner.DefaultWindow(ctx, app.WindowSize)
	if err != nil {
		return err
	}

	scanned, err := app.Store.ScannedEpochs(ctx)
	if err != nil {
		return err
	}
	have := make(map[uint64]bool, len(scanned))
	for _, e := range scanned {
		have[e] = true
	}

	app.Logger.Info("rescan window",
		zap.Uint64("start", start),
		zap.Uint64("end", end),
		zap.Int("already_scanned", len(scanned)))

	// Newest epochs first: they are the ones consumers wait for.
	for epoch := end; ; epoch-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !have[epoch] {
			report, scanErr := app.Runner.ScanEpoch(ctx, epoch)
			if scanErr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				app.Logger.Warn("epoch skipped",
					zap.Uint64("epoch", epoch),
					zap.Error(scanErr))
			} else {
				if saveErr := app.Store.SaveEpochReport(ctx, report); saveErr != nil {
					return saveErr
				}
				app.Cache.Store(epoch, report)
				if app.Publisher != nil {
					app.Publisher.PublishRepeatOffenders(ctx, report)
				}
			}
		}
		if epoch == start {
			return nil
		}
	}
}
