// Command matchpool serves wager group sessions over HTTP and, when enabled,
// applies the live match feed to them.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/matchpool/internal/adapters/feed/livews"
	"github.com/okian/matchpool/internal/adapters/http/api"
	"github.com/okian/matchpool/internal/adapters/http/swagger"
	"github.com/okian/matchpool/internal/adapters/repository"
	app "github.com/okian/matchpool/internal/app"
	"github.com/okian/matchpool/internal/config"
	"github.com/okian/matchpool/internal/domain/replay"
	"github.com/okian/matchpool/pkg/logger"
	"github.com/okian/matchpool/pkg/metrics"
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
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		os.Stderr.WriteString("matchpool: " + err.Error() + "\n")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	if err := logger.InitWithFormat(logger.Format(cfg.LogFormat), os.Stdout); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()
	log := logger.Get()

	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error(ctx, "close store", logger.Error(err))
		}
	}()

	svc, err := newService(cfg, store, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	mux := http.NewServeMux()
	api.NewServer(svc, svc).Register(ctx, mux)
	swagger.Register(ctx, mux)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info(ctx, "shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(ctx, "server shutdown failed", logger.Error(err))
		}
		if err := svc.Stop(shutdownCtx); err != nil {
			log.Error(ctx, "service stop failed", logger.Error(err))
		}
		return nil
	})

	if cfg.FeedEnabled {
		feed := livews.NewClient(cfg.FeedURL, svc,
			livews.WithDeduper(svc),
			livews.WithLogger(logger.Named("livews")),
		)
		g.Go(func() error { return feed.Run(gctx) })
	}

	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})

	err = g.Wait()
	log.Info(ctx, "server stopped")
	return err
}

func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	opts := []repository.Option{repository.WithLogger(logger.Named("store"))}
	switch strings.ToLower(cfg.StoreDriver) {
	case config.StoreSQLite:
		return repository.OpenSQLiteStore(ctx, cfg.StorePath, opts...)
	default:
		return repository.NewMemoryStore(opts...), nil
	}
}

func newService(cfg *config.Config, store repository.Store, log logger.Logger) (*app.Service, error) {
	policy, err := replay.ParsePolicy(cfg.ReplayPolicy)
	if err != nil {
		return nil, err
	}
	return app.New(
		app.WithLogger(log),
		app.WithStore(store),
		app.WithAutosave(cfg.Autosave),
		app.WithQueueSize(cfg.FeedQueueSize),
		app.WithDedupeSize(cfg.FeedDedupeSize),
		app.WithSubstitutionLimit(cfg.SubstitutionLimit),
		app.WithReplayPolicy(policy),
	), nil
}

// startSystemMetricsUpdater refreshes process metrics until ctx is done.
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
