package store

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/pierrec/lz4/v4"
	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/example/starhold/internal/game"
)

// snapshotVersion is written alongside every persisted blob so a future
// schema change can migrate or reject old rows explicitly.
const snapshotVersion = 1

const watchPollInterval = 500 * time.Millisecond

// SQLite persists snapshots and the lobby listing in a local database file.
// Snapshots are stored as lz4-compressed msgpack blobs keyed by session.
type SQLite struct {
	db     *sql.DB
	logger *log.Logger
}

// OpenSQLite opens (creating if needed) the store at path and runs
// migrations.
func OpenSQLite(path string, logger *log.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	s := &SQLite{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		round INTEGER NOT NULL DEFAULT 0,
		player_count INTEGER NOT NULL DEFAULT 0,
		max_players INTEGER NOT NULL DEFAULT 0,
		started INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS snapshots (
		session_id TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		round INTEGER NOT NULL,
		blob BLOB NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func encodeSnapshot(state *game.GameState) ([]byte, error) {
	body, err := msgpack.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("store: marshal snapshot: %w", err)
	}
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	if _, err := zw.Write(body); err != nil {
		return nil, fmt.Errorf("store: compress snapshot: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("store: compress snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeSnapshot(version int, blob []byte) (*game.GameState, error) {
	if version != snapshotVersion {
		return nil, fmt.Errorf("store: unsupported snapshot version %d", version)
	}
	zr := lz4.NewReader(bytes.NewReader(blob))
	body, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("store: decompress snapshot: %w", err)
	}
	var state game.GameState
	if err := msgpack.Unmarshal(body, &state); err != nil {
		return nil, fmt.Errorf("store: unmarshal snapshot: %w", err)
	}
	return &state, nil
}

func (s *SQLite) PutState(ctx context.Context, sessionID string, state *game.GameState) error {
	blob, err := encodeSnapshot(state)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (session_id, version, round, blob, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			version = excluded.version,
			round = excluded.round,
			blob = excluded.blob,
			updated_at = excluded.updated_at`,
		sessionID, snapshotVersion, state.Round, blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: put state: %w", err)
	}
	return nil
}

func (s *SQLite) GetState(ctx context.Context, sessionID string) (*game.GameState, error) {
	var version, round int
	var blob []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT version, round, blob FROM snapshots WHERE session_id = ?`, sessionID).
		Scan(&version, &round, &blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get state: %w", err)
	}
	return decodeSnapshot(version, blob)
}

// Watch polls the snapshot row and emits whenever the stored round advances.
func (s *SQLite) Watch(ctx context.Context, sessionID string) (<-chan *game.GameState, error) {
	ch := make(chan *game.GameState, 4)
	go func() {
		defer close(ch)
		lastRound := -1
		ticker := time.NewTicker(watchPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			state, err := s.GetState(ctx, sessionID)
			if err != nil {
				continue
			}
			if state.Round == lastRound {
				continue
			}
			lastRound = state.Round
			select {
			case ch <- state:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (s *SQLite) UpsertSession(ctx context.Context, info SessionInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, round, player_count, max_players, started, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			round = excluded.round,
			player_count = excluded.player_count,
			max_players = excluded.max_players,
			started = excluded.started,
			updated_at = excluded.updated_at`,
		info.ID, info.Name, info.Round, info.PlayerCount, info.MaxPlayers,
		info.Started, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: upsert session: %w", err)
	}
	return nil
}

func (s *SQLite) RemoveSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return fmt.Errorf("store: remove session: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("store: remove snapshot: %w", err)
	}
	return nil
}

func (s *SQLite) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, round, player_count, max_players, started, updated_at
		FROM sessions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: list sessions: %w", err)
	}
	defer rows.Close()
	var out []SessionInfo
	for rows.Next() {
		var info SessionInfo
		if err := rows.Scan(&info.ID, &info.Name, &info.Round, &info.PlayerCount,
			&info.MaxPlayers, &info.Started, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan session: %w", err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	if s.logger != nil {
		s.logger.Printf("closing store")
	}
	return s.db.Close()
}
