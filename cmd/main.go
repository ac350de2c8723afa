package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/chunisync/internal/adapters/http/api"
	"github.com/okian/chunisync/internal/adapters/http/swagger"
	"github.com/okian/chunisync/internal/adapters/repository"
	"github.com/okian/chunisync/internal/adapters/submit"
	app "github.com/okian/chunisync/internal/app"
	"github.com/okian/chunisync/internal/config"
	"github.com/okian/chunisync/internal/domain/scoring"
	"github.com/okian/chunisync/pkg/logger"
	"github.com/okian/chunisync/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 10 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "chunisync exited", logger.Error(err))
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: logger flushed above
	}
}

func run(ctx context.Context) error {
	log := logger.Get()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	applyLogging(ctx, cfg)

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}

	srv := newHTTPServer(cfg, svc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(gctx, "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		}
		svc.Stop(shutdownCtx)
		return nil
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

// applyLogging applies the configured level and format, falling back to
// info and text on invalid input.
func applyLogging(ctx context.Context, cfg *config.Config) {
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	if err := logger.SetFormat(cfg.LogFormat); err != nil {
		log.Warn(ctx, "invalid log_format; falling back to text", logger.String("log_format", cfg.LogFormat), logger.Error(err))
		_ = logger.SetFormat("text")
	}
}

// newService builds the sync service from configuration. Charts are loaded
// from cfg.ChartsFile when set.
func newService(ctx context.Context, cfg *config.Config) (*app.Service, error) {
	log := logger.Get()

	region, err := app.ParseRegion(cfg.PayloadRegion)
	if err != nil {
		return nil, err
	}

	opts := []app.Option{
		app.WithLogger(log),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.QueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithPayloadRegion(region),
		app.WithMissingLevelPolicy(scoring.ParsePolicy(cfg.MissingLevelPolicy)),
	}

	if cfg.ChartsFile != "" {
		charts, err := repository.LoadChartsFile(cfg.ChartsFile)
		if err != nil {
			return nil, err
		}
		log.Info(ctx, "charts loaded", logger.String("file", cfg.ChartsFile), logger.Int("count", len(charts)))
		opts = append(opts, app.WithCharts(charts...))
	}

	if cfg.DryRun {
		log.Warn(ctx, "dry run: payloads are assembled but not submitted")
	} else {
		opts = append(opts, app.WithSubmitter(submit.NewHTTPSubmitter(cfg.SubmitBaseURL,
			submit.WithRegion(cfg.SubmitRegion),
			submit.WithTimeout(time.Duration(cfg.SubmitTimeoutMS)*time.Millisecond),
			submit.WithRatePerMinute(cfg.SubmitRatePerMinute),
			submit.WithLogger(log.Named("submit")),
		)))
	}

	return app.New(opts...), nil
}

func newHTTPServer(cfg *config.Config, svc *app.Service) *http.Server {
	mux := http.NewServeMux()
	swagger.Register(mux)
	api.NewServer(svc, svc, cfg.MaxBestLimit).Register(mux)

	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
}
