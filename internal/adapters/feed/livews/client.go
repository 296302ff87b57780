package livews

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/matchpool/internal/domain/dedupe"
	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/pkg/logger"
	"github.com/okian/matchpool/pkg/metrics"
)

const (
	defaultMinBackoff  = 1 * time.Second
	defaultMaxBackoff  = 30 * time.Second
	defaultReadTimeout = 90 * time.Second
	pongWriteTimeout   = 5 * time.Second

	// a connection that stayed up this long resets the backoff
	stableConnection = time.Minute
)

// Sink accepts decoded notifications. It reports false when a notification
// was not accepted.
type Sink interface {
	Enqueue(ctx context.Context, n model.FeedNotification) bool
}

// Client reads the live match feed and forwards unique notifications to a Sink.
type Client struct {
	url    string
	sink   Sink
	dedupe dedupe.Deduper
	dialer *websocket.Dialer
	logger logger.Logger
	now    func() time.Time

	minBackoff  time.Duration
	maxBackoff  time.Duration
	readTimeout time.Duration
}

// NewClient creates a feed client for the websocket at url.
func NewClient(url string, sink Sink, opts ...Option) *Client {
	c := &Client{
		url:         url,
		sink:        sink,
		dialer:      websocket.DefaultDialer,
		logger:      logger.NewNop(),
		now:         time.Now,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		readTimeout: defaultReadTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dedupe == nil {
		c.dedupe = dedupe.NewInMemoryDeduper()
	}
	return c
}

// Run connects and reconnects with exponential backoff until ctx is done.
func (c *Client) Run(ctx context.Context) error {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		started := time.Now()
		err := c.connect(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > stableConnection {
			attempt = 0
		}

		attempt++
		metrics.RecordFeedReconnect()
		backoff := c.backoff(attempt)
		c.logger.Warn(ctx, "live feed connection lost",
			logger.Int("attempt", attempt),
			logger.Duration("retry_in", backoff),
			logger.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := time.Duration(float64(c.minBackoff) * math.Pow(2, float64(min(attempt-1, 5))))
	return min(d, c.maxBackoff)
}

func (c *Client) connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	// unblock ReadMessage on shutdown
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(pongWriteTimeout))
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		return err
	})

	c.logger.Info(ctx, "live feed connected", logger.String("url", c.url))

	for {
		_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.handle(ctx, raw)
	}
}

func (c *Client) handle(ctx context.Context, raw []byte) {
	n, err := Parse(raw, c.now())
	if errors.Is(err, ErrUnknownType) {
		metrics.RecordFeedMessage("unknown")
		c.logger.Debug(ctx, "skipping live feed message", logger.Error(err))
		return
	}
	if err != nil {
		metrics.RecordFeedParseError()
		c.logger.Warn(ctx, "bad live feed message", logger.Error(err))
		return
	}
	metrics.RecordFeedMessage(string(n.Kind))

	if c.dedupe.SeenAndRecord(ctx, n.ID) {
		metrics.RecordFeedDuplicate()
		c.logger.Debug(ctx, "duplicate live feed message", logger.String("id", n.ID))
		return
	}
	if !c.sink.Enqueue(ctx, n) {
		// allow a redelivery to be accepted later
		c.dedupe.Unrecord(ctx, n.ID)
		c.logger.Warn(ctx, "live feed notification dropped",
			logger.String("id", n.ID),
			logger.String("match", n.MatchID),
		)
	}
}
