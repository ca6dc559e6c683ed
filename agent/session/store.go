// Package session persists conversations and derived memory facts, and
// serializes all access per session so concurrent requests against the same
// conversation cannot interleave their reads and writes.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	contractx "sellerpilot/agent/contract"
)

// Config selects the backing store. Driver is sqlite or postgres; DSN is the
// sqlite file path or the Postgres connection string.
type Config struct {
	Driver      string        `envconfig:"DRIVER" default:"sqlite"`
	DSN         string        `envconfig:"DSN" default:"./data/sessions.db"`
	LockTimeout time.Duration `envconfig:"LOCK_TIMEOUT" default:"5s"`
}

// Store is the persistence boundary beneath the session memory. Memory owns
// locking and fact extraction; a Store only reads and writes rows.
type Store interface {
	EnsureSession(ctx context.Context, sessionID, sellerID string) error
	SessionExists(ctx context.Context, sessionID string) (bool, error)
	AppendMessages(ctx context.Context, sessionID string, msgs []contractx.Message) error
	Messages(ctx context.Context, sessionID string) ([]contractx.Message, error)
	UpsertFacts(ctx context.Context, sessionID string, facts map[string]string) error
	Facts(ctx context.Context, sessionID string) (map[string]string, error)
	Close() error
}

// OpenStore builds the configured store.
func OpenStore(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return OpenSQLite(cfg.DSN)
	case "postgres":
		return OpenPostgres(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown session store driver %q", cfg.Driver)
	}
}

// SQLiteStore keeps sessions in a single local database file. WAL mode keeps
// readers from blocking the append path.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	seller_id  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(session_id),
	role       TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
	content    TEXT NOT NULL,
	request_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);
CREATE TABLE IF NOT EXISTS facts (
	session_id TEXT NOT NULL REFERENCES sessions(session_id),
	fact_key   TEXT NOT NULL,
	fact_value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL,
	PRIMARY KEY (session_id, fact_key)
);
`

// OpenSQLite opens (and migrates) the sqlite session database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) EnsureSession(ctx context.Context, sessionID, sellerID string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (session_id, seller_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id) DO UPDATE SET
			seller_id  = CASE WHEN excluded.seller_id != '' THEN excluded.seller_id ELSE sessions.seller_id END,
			updated_at = excluded.updated_at`,
		sessionID, sellerID, now, now)
	return err
}

// AppendMessages writes the turn's messages in a single transaction, so a
// failure never leaves a user message without its assistant reply.
func (s *SQLiteStore) AppendMessages(ctx context.Context, sessionID string, msgs []contractx.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, msg := range msgs {
		created := msg.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (session_id, role, content, request_id, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			sessionID, msg.Role, msg.Content, msg.RequestID, created); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Messages(ctx context.Context, sessionID string) ([]contractx.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, request_id, created_at
		FROM messages WHERE session_id = ? ORDER BY id ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []contractx.Message
	for rows.Next() {
		var m contractx.Message
		if err := rows.Scan(&m.Role, &m.Content, &m.RequestID, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *SQLiteStore) UpsertFacts(ctx context.Context, sessionID string, facts map[string]string) error {
	if len(facts) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, key := range contractx.SortedFactKeys(facts) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO facts (session_id, fact_key, fact_value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (session_id, fact_key) DO UPDATE SET
				fact_value = excluded.fact_value,
				updated_at = excluded.updated_at`,
			sessionID, key, facts[key], now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Facts(ctx context.Context, sessionID string) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT fact_key, fact_value FROM facts WHERE session_id = ?`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	facts := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		facts[k] = v
	}
	return facts, rows.Err()
}

// SessionExists reports whether a session row is present.
func (s *SQLiteStore) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM sessions WHERE session_id = ?`, sessionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
