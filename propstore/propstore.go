// Package propstore holds the durable per-page properties behind the
// coherency.PropertyStore interface: SQLite for real deployments, Memory for
// tests and single-process demos.
package propstore

import (
	"context"
	"database/sql"
	"sync"

	"github.com/unkn0wn-root/randselect/coherency"
)

// PropName is the property row written for pages whose last render used
// randomization. Pages without it read as not randomized.
const PropName = "randselect"

const pagePropsSchema = `
CREATE TABLE IF NOT EXISTS page_props (
    page_id    INTEGER NOT NULL,
    name       TEXT NOT NULL,
    value      TEXT NOT NULL DEFAULT '',
    updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
    PRIMARY KEY (page_id, name)
);
`

// SQLite stores properties in a page_props table.
type SQLite struct {
	db *sql.DB
}

var _ coherency.PropertyStore = (*SQLite)(nil)

// NewSQLite creates the page_props table if needed.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	if _, err := db.ExecContext(ctx, pagePropsSchema); err != nil {
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Randomized(ctx context.Context, page coherency.PageID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM page_props WHERE page_id = ? AND name = ?`,
		int64(page), PropName,
	).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, err
	}
	return true, nil
}

// SetRandomized inserts the property row for true and removes it for false.
func (s *SQLite) SetRandomized(ctx context.Context, page coherency.PageID, randomized bool) error {
	if !randomized {
		_, err := s.db.ExecContext(ctx,
			`DELETE FROM page_props WHERE page_id = ? AND name = ?`,
			int64(page), PropName)
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO page_props (page_id, name, value)
		VALUES (?, ?, '')
		ON CONFLICT (page_id, name) DO UPDATE SET
		    updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		int64(page), PropName)
	return err
}

// Memory is an in-process PropertyStore.
type Memory struct {
	mu    sync.RWMutex
	pages map[coherency.PageID]bool
}

var _ coherency.PropertyStore = (*Memory)(nil)

func NewMemory() *Memory { return &Memory{pages: make(map[coherency.PageID]bool)} }

func (m *Memory) Randomized(_ context.Context, page coherency.PageID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pages[page], nil
}

func (m *Memory) SetRandomized(_ context.Context, page coherency.PageID, randomized bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if randomized {
		m.pages[page] = true
	} else {
		delete(m.pages, page)
	}
	return nil
}
