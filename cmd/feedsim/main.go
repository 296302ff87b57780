// Command feedsim serves a scripted live match feed over a websocket.
//
// Usage:
//
//	go run ./cmd/feedsim -addr :9200 -match demo-1
//
// Then start matchpool with MATCHPOOL_FEED_ENABLED=true and
// MATCHPOOL_FEED_URL=ws://localhost:9200/feed.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/matchpool/internal/feedsim"
	"github.com/okian/matchpool/pkg/logger"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

func main() {
	var (
		addr       = flag.String("addr", ":9200", "Listen address")
		matchID    = flag.String("match", "demo-1", "Match id used by the built-in script")
		scriptPath = flag.String("script", "", "YAML script file (default: built-in match)")
		speed      = flag.Float64("speed", 1, "Replay speed factor")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}
	log := logger.Named("feedsim")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	script := feedsim.DefaultScript(*matchID)
	if *scriptPath != "" {
		var err error
		if script, err = feedsim.LoadScript(*scriptPath); err != nil {
			log.Fatal(ctx, "load script", logger.Error(err))
		}
	}

	sim, err := feedsim.NewServer(script, feedsim.WithSpeed(*speed), feedsim.WithLogger(log))
	if err != nil {
		log.Fatal(ctx, "build server", logger.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/feed", sim)

	srv := &http.Server{Addr: *addr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	go func() {
		log.Info(ctx, "feed simulator listening",
			logger.String("addr", *addr),
			logger.String("match", script.MatchID),
			logger.Int("steps", len(script.Steps)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "listen", logger.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "shutdown", logger.Error(err))
	}
}
