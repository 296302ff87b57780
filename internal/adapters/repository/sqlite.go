package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/okian/matchpool/internal/domain/model"
	"github.com/okian/matchpool/pkg/logger"
	"github.com/okian/matchpool/pkg/metrics"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS sessions (
	id         TEXT    PRIMARY KEY,
	match_id   TEXT    NOT NULL DEFAULT '',
	version    INTEGER NOT NULL,
	updated_at TEXT    NOT NULL,
	snapshot   BLOB    NOT NULL
)`

// SQLiteStore keeps one row per session in an embedded SQLite database.
type SQLiteStore struct {
	settings
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path in WAL mode.
func OpenSQLiteStore(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serializes writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	s := &SQLiteStore{settings: newSettings(opts), db: db}
	s.logger.Info(ctx, "snapshot store opened", logger.String("path", path))
	return s, nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap model.Snapshot) error {
	raw, err := encode(snap)
	if err != nil {
		metrics.RecordStoreOperation("save", "error")
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, match_id, version, updated_at, snapshot) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			match_id = excluded.match_id,
			version = excluded.version,
			updated_at = excluded.updated_at,
			snapshot = excluded.snapshot
		WHERE excluded.version >= sessions.version`,
		snap.ID, snap.MatchID, int64(snap.Version), s.now().UTC().Format(time.RFC3339Nano), raw,
	)
	if err != nil {
		metrics.RecordStoreOperation("save", "error")
		return fmt.Errorf("save snapshot %s: %w", snap.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		metrics.RecordStoreOperation("save", "error")
		return fmt.Errorf("save snapshot %s: %w", snap.ID, err)
	}
	if n == 0 {
		metrics.RecordStoreOperation("save", "stale")
		return fmt.Errorf("%w: %s version=%d", ErrStale, snap.ID, snap.Version)
	}

	metrics.RecordStoreOperation("save", "ok")
	s.logger.Debug(ctx, "snapshot saved",
		logger.String("session", snap.ID),
		logger.Int("bytes", len(raw)),
	)
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, id string) (model.Snapshot, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT snapshot FROM sessions WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		metrics.RecordStoreOperation("load", "not_found")
		return model.Snapshot{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		metrics.RecordStoreOperation("load", "error")
		return model.Snapshot{}, fmt.Errorf("load snapshot %s: %w", id, err)
	}
	metrics.RecordStoreOperation("load", "ok")
	return decode(id, raw)
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		metrics.RecordStoreOperation("delete", "error")
		return fmt.Errorf("delete snapshot %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		metrics.RecordStoreOperation("delete", "not_found")
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	metrics.RecordStoreOperation("delete", "ok")
	return nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, match_id, version, updated_at FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			sum     Summary
			version int64
			updated string
		)
		if err := rows.Scan(&sum.ID, &sum.MatchID, &version, &updated); err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}
		sum.Version = uint64(version)
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			sum.UpdatedAt = t
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
