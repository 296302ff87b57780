package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/matchpool/internal/adapters/feed/livews"
	"github.com/okian/matchpool/pkg/logger"
)

const (
	backpressureRetries = 5
	backpressureDelay   = 50 * time.Millisecond
)

// HTTPClient wraps http.Client with JSON helpers.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

// do sends body as JSON when non-nil and decodes a 2xx reply into out.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(raw))
	}
	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

type submitResult int

const (
	resultAccepted submitResult = iota
	resultDuplicate
	resultRejected
	resultFailed
)

// submitMessages pushes messages to POST /feed with a bounded number of
// concurrent submitters.
func submitMessages(ctx context.Context, cfg *Config, c *HTTPClient, msgs []livews.ScoreMessage, stats *Stats) error {
	log := logger.Get()
	log.Info(ctx, "submitting feed messages",
		logger.Int("messages", len(msgs)),
		logger.Int("workers", cfg.Workers),
	)

	var counts [4]atomic.Int64
	var submitted atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, m := range msgs {
		g.Go(func() error {
			r := submitOne(gctx, c, m)
			counts[r].Add(1)
			if n := submitted.Add(1); cfg.Verbose && n%500 == 0 {
				log.Info(gctx, "progress",
					logger.Int("submitted", int(n)),
					logger.Int("total", len(msgs)),
				)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stats.EventsSubmitted = int(submitted.Load())
	stats.EventsAccepted = int(counts[resultAccepted].Load())
	stats.EventsDuplicate = int(counts[resultDuplicate].Load())
	stats.EventsRejected = int(counts[resultRejected].Load())
	stats.EventsFailed = int(counts[resultFailed].Load())
	return nil
}

func submitOne(ctx context.Context, c *HTTPClient, m livews.ScoreMessage) submitResult {
	for attempt := 0; ; attempt++ {
		var ack struct {
			Duplicate bool `json:"duplicate"`
		}
		status, err := c.do(ctx, http.MethodPost, "/feed", m, &ack)
		switch {
		case status == http.StatusTooManyRequests && attempt < backpressureRetries:
			select {
			case <-ctx.Done():
				return resultFailed
			case <-time.After(backpressureDelay << attempt):
			}
			continue
		case status == http.StatusTooManyRequests:
			return resultRejected
		case err != nil:
			logger.Get().Debug(ctx, "submit failed", logger.String("id", m.ID), logger.Error(err))
			return resultFailed
		case ack.Duplicate:
			return resultDuplicate
		default:
			return resultAccepted
		}
	}
}
