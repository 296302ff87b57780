// Command loadtest pushes generated scoring notifications to a running
// matchpool service and verifies the settled balances.
package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/matchpool/internal/loadtest"
	"github.com/okian/matchpool/pkg/logger"
)

// Default configuration constants.
const (
	defaultNumEvents    = 10000
	defaultParticipants = 6
	defaultPlayers      = 3
	defaultDuplicates   = 0.1
	defaultWorkers      = 2 // multiplier for runtime.NumCPU()
	defaultTimeout      = 30 * time.Second
	defaultSettle       = time.Minute
	defaultTestTimeout  = 10 * time.Minute
)

func main() {
	var (
		baseURL      = flag.String("url", "http://localhost:9080", "Base URL of the service")
		matchID      = flag.String("match", "", "Match id for the session (default: generated)")
		participants = flag.Int("participants", defaultParticipants, "Participants in the wager group")
		players      = flag.Int("players", defaultPlayers, "Players selected per participant")
		numEvents    = flag.Int("events", defaultNumEvents, "Unique scoring notifications to push")
		duplicates   = flag.Float64("duplicates", defaultDuplicates, "Share of extra redeliveries")
		workers      = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Number of concurrent submitters")
		timeout      = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle       = flag.Duration("settle", defaultSettle, "How long to wait for notifications to be applied")
		seed         = flag.Uint64("seed", 0, "Generator seed (default: random)")
		outputFile   = flag.String("output", "", "Write pushed messages to this JSON file")
		keep         = flag.Bool("keep", false, "Keep the session after the run")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &loadtest.Config{
		BaseURL:               *baseURL,
		MatchID:               *matchID,
		Participants:          *participants,
		PlayersPerParticipant: *players,
		NumEvents:             *numEvents,
		DuplicateRatio:        *duplicates,
		Workers:               *workers,
		Timeout:               *timeout,
		SettleTimeout:         *settle,
		Seed:                  *seed,
		OutputFile:            *outputFile,
		Keep:                  *keep,
		Verbose:               *verbose,
	}

	if _, err := loadtest.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		os.Exit(1)
	}
}
