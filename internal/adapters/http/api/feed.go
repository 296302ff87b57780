package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/matchpool/internal/adapters/feed/livews"
	"github.com/okian/matchpool/pkg/logger"
	"github.com/okian/matchpool/pkg/metrics"
)

const maxFeedBody = 64 << 10

// FeedHandler accepts live feed messages pushed over HTTP. It shares the
// dedupe window and the apply queue with the websocket client.
type FeedHandler struct {
	deps FeedDependencies
	now  func() time.Time
}

func NewFeedHandler(deps FeedDependencies) *FeedHandler {
	return &FeedHandler{deps: deps, now: time.Now}
}

// HandlePush handles POST /feed. The body is one feed message in the same
// JSON shape the websocket carries. Duplicates are acknowledged and dropped.
func (h *FeedHandler) HandlePush(w http.ResponseWriter, r *http.Request) {
	const op = "api.feed.push"
	ctx := r.Context()

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFeedBody))
	if err != nil {
		fail(w, WrapKind(op, ErrBadRequest, fmt.Errorf("read body: %w", err)))
		return
	}
	n, err := livews.Parse(raw, h.now())
	if err != nil {
		if errors.Is(err, livews.ErrUnknownType) {
			metrics.RecordFeedMessage("unknown")
		} else {
			metrics.RecordFeedParseError()
		}
		fail(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	metrics.RecordFeedMessage(string(n.Kind))

	if h.deps.SeenAndRecord(ctx, n.ID) {
		metrics.RecordFeedDuplicate()
		writeJSON(w, http.StatusOK, map[string]any{"id": n.ID, "duplicate": true})
		return
	}
	if !h.deps.Enqueue(ctx, n) {
		h.deps.Unrecord(ctx, n.ID)
		logger.Get().Warn(ctx, "feed push rejected",
			logger.String("id", n.ID),
			logger.String("match", n.MatchID),
		)
		fail(w, NewKind(op, ErrBackpressure))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"id": n.ID, "duplicate": false})
}
