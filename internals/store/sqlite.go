package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
)

// SQLiteStore keeps items in a single database file, for the CLI and
// single node deployments.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// sqlite serializes writers anyway
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize item store: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		parent_id TEXT REFERENCES items(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		extra TEXT NOT NULL DEFAULT '{}',
		settings TEXT NOT NULL DEFAULT '{}',
		creator TEXT NOT NULL,
		is_public BOOLEAN NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id, seq);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) GetItem(ctx context.Context, id uuid.UUID) (models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE id = ?`

	item, err := scanItem(s.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Item{}, ErrItemNotFound
	}
	if err != nil {
		return models.Item{}, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, nil
}

func (s *SQLiteStore) GetPublicItem(ctx context.Context, id uuid.UUID) (models.Item, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return models.Item{}, err
	}
	if !item.IsPublic {
		return models.Item{}, ErrItemNotFound
	}
	return item, nil
}

func (s *SQLiteStore) GetChildren(ctx context.Context, parentID uuid.UUID) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE parent_id = ? ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, parentID.String())
	if err != nil {
		return nil, fmt.Errorf("get children of %s: %w", parentID, err)
	}
	defer rows.Close()

	var children []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan child of %s: %w", parentID, err)
		}
		children = append(children, item)
	}
	return children, rows.Err()
}

func (s *SQLiteStore) CreateItems(ctx context.Context, creator uuid.UUID, parentID *uuid.UUID, items []models.Item) ([]models.Item, error) {
	prepared, err := prepare(creator, parentID, items)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO items (`+itemColumns+`)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range prepared {
		p, err := encodePayload(item)
		if err != nil {
			return nil, err
		}
		var parent any
		if item.ParentID != nil {
			parent = item.ParentID.String()
		}
		_, err = stmt.ExecContext(ctx,
			item.ID.String(), parent, item.Name, string(item.Type), item.Description,
			p.extra, p.settings, item.Creator.String(), item.IsPublic, item.CreatedAt, item.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert item %q: %w", item.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit items: %w", err)
	}
	return prepared, nil
}

func (s *SQLiteStore) UpdateDescription(ctx context.Context, id uuid.UUID, description string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		description, id.String())
	if err != nil {
		return fmt.Errorf("update description of %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update description of %s: %w", id, err)
	}
	if n == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *SQLiteStore) SetPublic(ctx context.Context, id uuid.UUID, public bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE items SET is_public = ? WHERE id = ?`, public, id.String())
	if err != nil {
		return fmt.Errorf("set visibility of %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
