package loadtest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/okian/matchpool/internal/adapters/feed/livews"
	"github.com/okian/matchpool/internal/adapters/http/api"
	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/pkg/logger"
)

const (
	directoryPermission = 0o750
	pollInterval        = 50 * time.Millisecond
)

// Run executes a complete load run and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if cfg.Participants < 2 {
		return nil, fmt.Errorf("need at least 2 participants, got %d", cfg.Participants)
	}
	if cfg.PlayersPerParticipant < 1 || cfg.NumEvents < 1 || cfg.Workers < 1 {
		return nil, fmt.Errorf("players, events and workers must be positive")
	}
	if cfg.MatchID == "" {
		cfg.MatchID = "load-" + uuid.NewString()[:8]
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()
	log.Info(ctx, "starting matchpool load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.String("match", cfg.MatchID),
		logger.Int("participants", cfg.Participants),
		logger.Int("events", cfg.NumEvents),
		logger.Float64("duplicateRatio", cfg.DuplicateRatio),
		logger.Int("workers", cfg.Workers),
		logger.Any("seed", seed),
	)

	c := newHTTPClient(cfg.BaseURL, cfg.Timeout)

	if _, err := c.do(ctx, http.MethodGet, "/healthz", nil, nil); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	req, players := sessionRequest(cfg)
	if _, err := c.do(ctx, http.MethodPost, "/sessions", req, nil); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	stats.SessionID = req.ID
	if !cfg.Keep {
		defer func() {
			if _, err := c.do(context.WithoutCancel(ctx), http.MethodDelete, "/sessions/"+req.ID, nil, nil); err != nil {
				log.Warn(ctx, "failed to delete load session", logger.Error(err))
			}
		}()
	}

	msgs := generateMessages(cfg, players, rand.New(rand.NewPCG(seed, seed>>1)))
	stats.EventsGenerated = len(msgs)

	if err := submitMessages(ctx, cfg, c, msgs, stats); err != nil {
		return stats, fmt.Errorf("submission failed: %w", err)
	}

	snap, err := waitApplied(ctx, cfg, c, req.ID, stats.EventsAccepted)
	if err != nil {
		return stats, err
	}
	stats.EventsApplied = len(snap.Events)

	var standings api.StandingsResponse
	if _, err := c.do(ctx, http.MethodGet, "/sessions/"+req.ID+"/standings", nil, &standings); err != nil {
		return stats, fmt.Errorf("fetch standings: %w", err)
	}

	if err := verifyResults(snap, standings, stats); err != nil {
		return stats, err
	}

	if cfg.OutputFile != "" {
		if err := saveMessages(cfg.OutputFile, msgs); err != nil {
			log.Warn(ctx, "failed to save messages", logger.Error(err))
		}
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)
	return stats, nil
}

// waitApplied polls the session until want events are on its timeline.
func waitApplied(ctx context.Context, cfg *Config, c *HTTPClient, id string, want int) (model.Snapshot, error) {
	deadline := time.Now().Add(cfg.SettleTimeout)
	for {
		var snap model.Snapshot
		if _, err := c.do(ctx, http.MethodGet, "/sessions/"+id, nil, &snap); err != nil {
			return snap, fmt.Errorf("fetch session: %w", err)
		}
		if len(snap.Events) >= want {
			return snap, nil
		}
		if time.Now().After(deadline) {
			return snap, fmt.Errorf("%w: %d of %d events applied after %s",
				ErrVerification, len(snap.Events), want, cfg.SettleTimeout)
		}
		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

func saveMessages(filename string, msgs []livews.ScoreMessage) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}
	raw, err := json.MarshalIndent(msgs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal messages: %w", err)
	}
	return os.WriteFile(filename, raw, 0o600)
}

func displayFinalStats(ctx context.Context, stats *Stats) {
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}
	logger.Get().Info(ctx, "final statistics",
		logger.String("session", stats.SessionID),
		logger.Int("generated", stats.EventsGenerated),
		logger.Int("submitted", stats.EventsSubmitted),
		logger.Int("accepted", stats.EventsAccepted),
		logger.Int("duplicate", stats.EventsDuplicate),
		logger.Int("rejected", stats.EventsRejected),
		logger.Int("failed", stats.EventsFailed),
		logger.Int("applied", stats.EventsApplied),
		logger.Duration("duration", stats.Duration),
		logger.Float64("messagesPerSecond", perSecond),
	)
}
