package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
)

// PostgresStore keeps items in the items table created by
// database.Migrations.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) GetItem(ctx context.Context, id uuid.UUID) (models.Item, error) {
	item, err := scanItem(s.pool.QueryRow(ctx, `
	SELECT `+itemColumns+`
	FROM items
	WHERE id = $1 AND deleted_at IS NULL`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Item{}, ErrItemNotFound
	}
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return item, nil
}

func (s *PostgresStore) GetPublicItem(ctx context.Context, id uuid.UUID) (models.Item, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return models.Item{}, err
	}
	if !item.IsPublic {
		return models.Item{}, ErrItemNotFound
	}
	return item, nil
}

func (s *PostgresStore) GetChildren(ctx context.Context, parentID uuid.UUID) ([]models.Item, error) {
	rows, err := s.pool.Query(ctx, `
	SELECT `+itemColumns+`
	FROM items
	WHERE parent_id = $1 AND deleted_at IS NULL
	ORDER BY seq`, parentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get children of %s: %w", parentID, err)
	}
	defer rows.Close()

	var children []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan child of %s: %w", parentID, err)
		}
		children = append(children, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get children of %s: %w", parentID, err)
	}
	return children, nil
}

// CreateItems sends one batch per call inside a single transaction.
func (s *PostgresStore) CreateItems(ctx context.Context, creator uuid.UUID, parentID *uuid.UUID, items []models.Item) ([]models.Item, error) {
	prepared, err := prepare(creator, parentID, items)
	if err != nil {
		return nil, err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, item := range prepared {
		p, err := encodePayload(item)
		if err != nil {
			return nil, err
		}
		batch.Queue(`
		INSERT INTO items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, $9, $10, $11)`,
			item.ID, item.ParentID, item.Name, string(item.Type), item.Description,
			p.extra, p.settings, item.Creator, item.IsPublic, item.CreatedAt, item.UpdatedAt)
	}

	br := tx.SendBatch(ctx, batch)
	for _, item := range prepared {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return nil, fmt.Errorf("failed to insert item %q: %w", item.Name, err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("failed to insert items: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit items: %w", err)
	}
	return prepared, nil
}

func (s *PostgresStore) UpdateDescription(ctx context.Context, id uuid.UUID, description string) error {
	tag, err := s.pool.Exec(ctx, `
	UPDATE items
	SET description = $1, updated_at = now()
	WHERE id = $2 AND deleted_at IS NULL`, description, id)
	if err != nil {
		return fmt.Errorf("failed to update description of %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *PostgresStore) SetPublic(ctx context.Context, id uuid.UUID, public bool) error {
	tag, err := s.pool.Exec(ctx, `
	UPDATE items
	SET is_public = $1, updated_at = now()
	WHERE id = $2 AND deleted_at IS NULL`, public, id)
	if err != nil {
		return fmt.Errorf("failed to set visibility of %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
