package types

import (
	"context"
	"net/http"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/idena-watch/flipwatch/pkg/notify"
	"github.com/idena-watch/flipwatch/pkg/scan"
	"github.com/idena-watch/flipwatch/pkg/store"
)

// App is the long-running watcher: it rescans the rolling window on a cron
// schedule, persists reports, and serves them over HTTP.
type App struct {
	Runner *scan.Runner
	Store  *store.Store

	// Cache keeps the most recently produced report per epoch so the HTTP
	// handlers rarely touch sqlite.
	Cache *xsync.Map[uint64, *scan.EpochReport]

	// Publisher is nil unless Redis notifications are enabled.
	Publisher *notify.Publisher

	// Cron triggers the rolling rescan, according to CronSpec.
	Cron     *cron.Cron
	CronSpec string

	// WindowSize is how many completed epochs each rescan covers.
	WindowSize int

	Logger *zap.Logger

	// Server is the HTTP server that serves the API.
	Server *http.Server
}

// CachedReport returns the report for an epoch, preferring the in-memory
// cache and falling back to the store.
func (a *App) CachedReport(ctx context.Context, epoch uint64) (*scan.EpochReport, bool, error) {
	if r, ok := a.Cache.Load(epoch); ok {
		return r, true, nil
	}
	r, ok, err := a.Store.EpochReport(ctx, epoch)
	if err != nil || !ok {
		return nil, ok, err
	}
	a.Cache.Store(epoch, r)
	return r, true, nil
}

// Start starts the application and blocks until the context is canceled.
func (a *App) Start(ctx context.Context) {
	go func() { _ = a.Server.ListenAndServe() }()
	a.Cron.Start()
	a.Logger.Info("watcher started",
		zap.String("addr", a.Server.Addr),
		zap.String("cronSpec", a.CronSpec))

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = a.Server.Shutdown(shutdownCtx)

	<-a.Cron.Stop().Done()

	if a.Publisher != nil {
		_ = a.Publisher.Close()
	}
	if err := a.Store.Close(); err != nil {
		a.Logger.Error("Failed to close store", zap.Error(err))
	}
	time.Sleep(200 * time.Millisecond)
	a.Logger.Info("watcher stopped")
}
