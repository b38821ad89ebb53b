// Package store provides the SQLite record store for memories, entities,
// open loops, conversations, and prepared contexts.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/cortexmem/cortex/internal/model"
)

// SQLiteStore is the relational half of the memory system. Each logical
// operation executes and commits on its own; there is no multi-operation
// transaction. Update races are handled with single-statement conditional
// updates guarded by expected prior state, not read-then-write sequences.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{db: db}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// newID returns a fresh ULID. ulid.Make is safe for concurrent callers,
// which matters once the store sits behind the HTTP service.
func (s *SQLiteStore) newID() string {
	return ulid.Make().String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id                TEXT PRIMARY KEY,
		content           TEXT NOT NULL,
		memory_type       TEXT NOT NULL DEFAULT 'observation',
		source            TEXT,
		importance        REAL NOT NULL DEFAULT 0.5,
		decay_factor      REAL,
		metadata          TEXT,
		archived          INTEGER NOT NULL DEFAULT 0,
		consolidated_into TEXT,
		created_at        TEXT NOT NULL,
		updated_at        TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_memories_archived ON memories(archived);
	CREATE INDEX IF NOT EXISTS idx_memories_type ON memories(memory_type);
	CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at DESC);

	CREATE TABLE IF NOT EXISTS entities (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		entity_type     TEXT NOT NULL DEFAULT 'person',
		summary         TEXT,
		metadata        TEXT,
		last_referenced TEXT NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_entities_name ON entities(LOWER(name));

	CREATE TABLE IF NOT EXISTS entity_mentions (
		id        TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
		memory_id TEXT NOT NULL REFERENCES memories(id) ON DELETE CASCADE,
		context   TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_mentions_entity ON entity_mentions(entity_id);
	CREATE INDEX IF NOT EXISTS idx_mentions_memory ON entity_mentions(memory_id);

	CREATE TABLE IF NOT EXISTS open_loops (
		id                 TEXT PRIMARY KEY,
		summary            TEXT NOT NULL,
		priority           TEXT NOT NULL DEFAULT 'medium',
		follow_up_question TEXT,
		source_memory_id   TEXT,
		created_at         TEXT NOT NULL,
		resolved_at        TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_loops_resolved ON open_loops(resolved_at);

	CREATE TABLE IF NOT EXISTS conversations (
		id          TEXT PRIMARY KEY,
		session_key TEXT,
		channel     TEXT,
		started_at  TEXT NOT NULL,
		ended_at    TEXT,
		summary     TEXT,
		analyzed    INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_analyzed ON conversations(analyzed, ended_at);

	CREATE TABLE IF NOT EXISTS prepared_contexts (
		id                     TEXT PRIMARY KEY,
		conversation_id        TEXT NOT NULL,
		context_summary        TEXT,
		open_loops_json        TEXT,
		selected_memories_json TEXT,
		topic_index            TEXT,
		priority_topics        TEXT,
		prepared_prompt        TEXT,
		created_at             TEXT NOT NULL,
		expires_at             TEXT NOT NULL,
		used_at                TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_contexts_active ON prepared_contexts(used_at, expires_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// timeFormat keeps the fractional second fixed-width so the TEXT columns
// sort lexicographically in timestamp order under ORDER BY. RFC3339Nano
// trims trailing zeros and would not.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, s)
	}
	return t
}

func marshalMeta(m model.Metadata) string {
	if len(m) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func unmarshalMeta(s sql.NullString) model.Metadata {
	if !s.Valid || s.String == "" {
		return model.Metadata{}
	}
	var m model.Metadata
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return model.Metadata{}
	}
	return m
}

type scanner interface {
	Scan(dest ...any) error
}
