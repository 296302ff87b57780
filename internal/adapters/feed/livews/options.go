package livews

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/matchpool/internal/domain/dedupe"
	"github.com/okian/matchpool/pkg/logger"
)

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithDeduper replaces the default notification dedupe window.
func WithDeduper(d dedupe.Deduper) Option {
	return func(c *Client) {
		if d != nil {
			c.dedupe = d
		}
	}
}

// WithBackoff sets the reconnect delay bounds.
func WithBackoff(lo, hi time.Duration) Option {
	return func(c *Client) {
		if lo > 0 && hi >= lo {
			c.minBackoff, c.maxBackoff = lo, hi
		}
	}
}

// WithReadTimeout sets how long a quiet connection is kept before reconnecting.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.readTimeout = d
		}
	}
}

// WithDialer overrides the websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) {
		if d != nil {
			c.dialer = d
		}
	}
}

// WithClock overrides the receive timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}
