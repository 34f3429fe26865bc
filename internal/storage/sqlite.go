package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/project-89/Quantum-Veil/internal/shifter"
)

const fragmentSchemaSQL = `
CREATE TABLE IF NOT EXISTS fragments (
	id         TEXT PRIMARY KEY,
	timeline   TEXT NOT NULL,
	data       BLOB NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_fragments_timeline ON fragments(timeline);
`

// SQLiteStore is the durable local archive backend. It suits the
// permanent-archive timeline where fragments must survive restarts
// without an external service.
type SQLiteStore struct {
	conn *sql.DB
}

// OpenSQLiteStore opens (or creates) the database and applies the schema.
func OpenSQLiteStore(dsn string) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping sqlite: %w", err)
	}
	if _, err := conn.Exec(fragmentSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLiteStore{conn: conn}, nil
}

func (s *SQLiteStore) Store(ctx context.Context, f *shifter.Fragment) (string, error) {
	b, err := encodeFragment(f)
	if err != nil {
		return "", err
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO fragments (id, timeline, data) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET timeline = excluded.timeline, data = excluded.data`,
		f.ID, string(f.Timeline), b)
	if err != nil {
		return "", fmt.Errorf("storage: insert fragment: %w", err)
	}
	return "sqlite://" + f.ID, nil
}

func (s *SQLiteStore) Retrieve(ctx context.Context, id string) (*shifter.Fragment, error) {
	var b []byte
	err := s.conn.QueryRowContext(ctx,
		`SELECT data FROM fragments WHERE id = ?`, id).Scan(&b)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: select fragment: %w", err)
	}
	return decodeFragment(b)
}

func (s *SQLiteStore) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.conn.QueryRowContext(ctx,
		`SELECT 1 FROM fragments WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	_, err := s.conn.ExecContext(ctx, `DELETE FROM fragments WHERE id = ?`, id)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}
