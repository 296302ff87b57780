package repository

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/pkg/logger"
	"github.com/okian/matchpool/pkg/metrics"
)

type memRow struct {
	summary Summary
	raw     []byte
}

// MemoryStore keeps encoded snapshots in a map. Callers never share memory
// with the store.
type MemoryStore struct {
	settings
	mu     sync.RWMutex
	rows   map[string]memRow
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{settings: newSettings(opts), rows: make(map[string]memRow)}
}

func (m *MemoryStore) Save(ctx context.Context, snap model.Snapshot) error {
	raw, err := encode(snap)
	if err != nil {
		metrics.RecordStoreOperation("save", "error")
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if cur, ok := m.rows[snap.ID]; ok && cur.summary.Version > snap.Version {
		metrics.RecordStoreOperation("save", "stale")
		return fmt.Errorf("%w: %s stored=%d got=%d", ErrStale, snap.ID, cur.summary.Version, snap.Version)
	}
	m.rows[snap.ID] = memRow{
		summary: Summary{ID: snap.ID, MatchID: snap.MatchID, Version: snap.Version, UpdatedAt: m.now()},
		raw:     raw,
	}
	metrics.RecordStoreOperation("save", "ok")
	m.logger.Debug(ctx, "snapshot saved", logger.String("session", snap.ID))
	return nil
}

func (m *MemoryStore) Load(_ context.Context, id string) (model.Snapshot, error) {
	m.mu.RLock()
	row, ok := m.rows[id]
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return model.Snapshot{}, ErrClosed
	}
	if !ok {
		metrics.RecordStoreOperation("load", "not_found")
		return model.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	metrics.RecordStoreOperation("load", "ok")
	return decode(id, row.raw)
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.rows[id]; !ok {
		metrics.RecordStoreOperation("delete", "not_found")
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.rows, id)
	metrics.RecordStoreOperation("delete", "ok")
	return nil
}

func (m *MemoryStore) List(_ context.Context) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	out := make([]Summary, 0, len(m.rows))
	for _, row := range m.rows {
		out = append(out, row.summary)
	}
	slices.SortFunc(out, func(a, b Summary) int { return strings.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
