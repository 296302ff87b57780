package feedsim

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/matchpool/pkg/logger"
)

const (
	defaultPingInterval = 30 * time.Second
	writeTimeout        = 5 * time.Second
)

// Server replays a script to each websocket client.
type Server struct {
	frames       []any
	after        []time.Duration
	matchID      string
	speed        float64
	pingInterval time.Duration
	logger       logger.Logger
	upgrader     websocket.Upgrader
}

// Option configures a Server.
type Option func(*Server)

// WithSpeed divides every step delay by factor.
func WithSpeed(factor float64) Option {
	return func(s *Server) {
		if factor > 0 {
			s.speed = factor
		}
	}
}

// WithPingInterval sets the keepalive ping period.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer validates script and returns a handler serving it.
func NewServer(script Script, opts ...Option) (*Server, error) {
	frames, err := script.Frames()
	if err != nil {
		return nil, err
	}
	s := &Server{
		frames:       frames,
		matchID:      script.MatchID,
		speed:        1,
		pingInterval: defaultPingInterval,
		logger:       logger.NewNop(),
		upgrader:     websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.after = make([]time.Duration, len(script.Steps))
	for i, st := range script.Steps {
		s.after[i] = time.Duration(float64(st.After) / s.speed)
	}
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn(ctx, "upgrade failed", logger.Error(err))
		return
	}
	defer conn.Close()

	// the reader notices client hangups and answers control frames
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Info(ctx, "feed client connected",
		logger.String("remote", r.RemoteAddr),
		logger.String("match", s.matchID),
	)

	ping := time.NewTicker(s.pingInterval)
	defer ping.Stop()

	for i, frame := range s.frames {
		timer := time.NewTimer(s.after[i])
	wait:
		for {
			select {
			case <-gone:
				timer.Stop()
				return
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
					timer.Stop()
					return
				}
			case <-timer.C:
				break wait
			}
		}

		raw, err := json.Marshal(frame)
		if err != nil {
			s.logger.Error(ctx, "encode frame", logger.Error(err))
			return
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
			s.logger.Warn(ctx, "write failed", logger.Error(err))
			return
		}
	}

	s.logger.Info(ctx, "script finished", logger.String("match", s.matchID))
	for {
		select {
		case <-gone:
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
