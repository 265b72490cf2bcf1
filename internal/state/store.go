package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/srcfl/srcful-gateway-sub001/internal/blackboard"
	"github.com/srcfl/srcful-gateway-sub001/internal/device"
	"github.com/srcfl/srcful-gateway-sub001/internal/settings"
)

// Store persists gateway state in SQLite. It implements
// blackboard.ConnectionStore and Sink.
//
// The schema lives in the top-level migrations package.
type Store struct {
	db  *sql.DB
	now func() int64
}

// NewStore creates a store on a migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: func() int64 { return time.Now().UnixMilli() }}
}

var (
	_ blackboard.ConnectionStore = (*Store)(nil)
	_ Sink                       = (*Store)(nil)
)

// ===== Connections =====

// SaveConnection inserts or replaces the connection with cfg's serial number.
func (s *Store) SaveConnection(ctx context.Context, cfg device.Config) error {
	sn := cfg.SerialNumber()
	if sn == "" {
		return ErrInvalidConnection
	}

	doc, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding connection %s: %w", sn, err)
	}

	const query = `INSERT INTO connections (sn, config, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(sn) DO UPDATE SET config = excluded.config, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, sn, string(doc), s.now()); err != nil {
		return fmt.Errorf("saving connection %s: %w", sn, err)
	}
	return nil
}

// RemoveConnection deletes the connection for sn. Removing an unknown serial
// is not an error.
func (s *Store) RemoveConnection(ctx context.Context, sn string) error {
	const query = `DELETE FROM connections WHERE sn = ?`
	if _, err := s.db.ExecContext(ctx, query, sn); err != nil {
		return fmt.Errorf("removing connection %s: %w", sn, err)
	}
	return nil
}

// Connections returns every stored connection, oldest update first.
func (s *Store) Connections(ctx context.Context) ([]device.Config, error) {
	const query = `SELECT sn, config FROM connections ORDER BY updated_at, sn`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	defer rows.Close()

	var conns []device.Config
	for rows.Next() {
		var sn, doc string
		if err := rows.Scan(&sn, &doc); err != nil {
			return nil, fmt.Errorf("scanning connection: %w", err)
		}
		var cfg device.Config
		if err := json.Unmarshal([]byte(doc), &cfg); err != nil {
			return nil, fmt.Errorf("decoding connection %s: %w", sn, err)
		}
		conns = append(conns, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connections: %w", err)
	}
	return conns, nil
}

// ===== State snapshots =====

// SaveState replaces the stored snapshot.
func (s *Store) SaveState(ctx context.Context, st blackboard.State) error {
	doc, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	const query = `INSERT INTO state_snapshots (id, snapshot, saved_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET snapshot = excluded.snapshot, saved_at = excluded.saved_at`
	if _, err := s.db.ExecContext(ctx, query, string(doc), s.now()); err != nil {
		return fmt.Errorf("saving state: %w", err)
	}
	return nil
}

// LoadState returns the last saved snapshot and when it was saved (unix ms).
func (s *Store) LoadState(ctx context.Context) (blackboard.State, int64, error) {
	const query = `SELECT snapshot, saved_at FROM state_snapshots WHERE id = 1`

	var doc string
	var savedAt int64
	err := s.db.QueryRowContext(ctx, query).Scan(&doc, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return blackboard.State{}, 0, ErrNotFound
	}
	if err != nil {
		return blackboard.State{}, 0, fmt.Errorf("loading state: %w", err)
	}

	var st blackboard.State
	if err := json.Unmarshal([]byte(doc), &st); err != nil {
		return blackboard.State{}, 0, fmt.Errorf("decoding state: %w", err)
	}
	return st, savedAt, nil
}

// ===== Settings =====

// SaveSettings stores the full settings document.
func (s *Store) SaveSettings(ctx context.Context, st *settings.Settings) error {
	doc, err := st.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}

	const query = `INSERT INTO settings (id, document, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`
	if _, err := s.db.ExecContext(ctx, query, string(doc), s.now()); err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// LoadSettings applies the stored document to st as a local change. It
// returns ErrNotFound when nothing was saved yet.
func (s *Store) LoadSettings(ctx context.Context, st *settings.Settings) error {
	const query = `SELECT document FROM settings WHERE id = 1`

	var doc string
	err := s.db.QueryRowContext(ctx, query).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	if err := st.UpdateFromJSON([]byte(doc), settings.SourceLocal); err != nil {
		return fmt.Errorf("applying stored settings: %w", err)
	}
	return nil
}

// PersistSettings saves st to the store after every local change. Backend
// changes are not persisted; the backend pushes them again on reconnect.
// Load stored settings before calling it, or the load is written back.
func PersistSettings(st *settings.Settings, store *Store, logger Logger) (remove func()) {
	if logger == nil {
		logger = noopLogger{}
	}
	return st.AddListener(func(source settings.ChangeSource) {
		if source != settings.SourceLocal {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := store.SaveSettings(ctx, st); err != nil {
			logger.Error("persisting settings", "error", err)
		}
	})
}
