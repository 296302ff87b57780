// Package repository persists session snapshots.
//
// Snapshots are stored whole as JSON documents keyed by session id. A save
// carrying an older version than the stored one is refused, so out-of-order
// autosaves never roll a session back.
package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/matchpool/internal/domain/model"
)

// Summary describes one stored snapshot without decoding it.
type Summary struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id,omitempty"`
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store provides read/write access to session snapshots.
type Store interface {
	// Save inserts or replaces the snapshot. It returns ErrStale if a newer
	// version is already stored.
	Save(ctx context.Context, snap model.Snapshot) error

	// Load returns ErrNotFound if the session is unknown.
	Load(ctx context.Context, id string) (model.Snapshot, error)

	// Delete returns ErrNotFound if the session is unknown.
	Delete(ctx context.Context, id string) error

	// List returns summaries ordered by id.
	List(ctx context.Context) ([]Summary, error)

	Close() error
}

func encode(snap model.Snapshot) ([]byte, error) {
	if snap.ID == "" {
		return nil, ErrInvalidID
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot %s: %w", snap.ID, err)
	}
	return raw, nil
}

func decode(id string, raw []byte) (model.Snapshot, error) {
	var snap model.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return model.Snapshot{}, fmt.Errorf("%w: %s: %w", ErrCorrupt, id, err)
	}
	return snap, nil
}
