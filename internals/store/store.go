// Package store persists items. Every backend keeps children in creation
// order so that exports are stable.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
)

var ErrItemNotFound = errors.New("item not found")

type ItemStore interface {
	GetItem(ctx context.Context, id uuid.UUID) (models.Item, error)
	// GetPublicItem returns ErrItemNotFound for items that are not public.
	GetPublicItem(ctx context.Context, id uuid.UUID) (models.Item, error)
	GetChildren(ctx context.Context, parentID uuid.UUID) ([]models.Item, error)
	// CreateItems stores items under parentID, nil meaning the root, all or
	// nothing. The returned items carry their ids and are in input order.
	CreateItems(ctx context.Context, creator uuid.UUID, parentID *uuid.UUID, items []models.Item) ([]models.Item, error)
	UpdateDescription(ctx context.Context, id uuid.UUID, description string) error
	// SetPublic controls whether an item can be exported without a member.
	SetPublic(ctx context.Context, id uuid.UUID, public bool) error
	Close() error
}

// prepare stamps new items with ids, ownership and timestamps.
func prepare(creator uuid.UUID, parentID *uuid.UUID, items []models.Item) ([]models.Item, error) {
	// microseconds survive every backend
	now := time.Now().UTC().Truncate(time.Microsecond)

	prepared := make([]models.Item, len(items))
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("invalid item: %w", err)
		}
		item.ID = uuid.New()
		item.ParentID = nil
		if parentID != nil {
			p := *parentID
			item.ParentID = &p
		}
		item.Creator = creator
		item.CreatedAt = now
		item.UpdatedAt = now
		prepared[i] = item
	}
	return prepared, nil
}

// payload is the JSON encoding of the columns SQL backends store as text.
type payload struct {
	extra    string
	settings string
}

func encodePayload(item models.Item) (payload, error) {
	extra, err := json.Marshal(item.Extra)
	if err != nil {
		return payload{}, fmt.Errorf("failed to marshal extra: %w", err)
	}
	settings, err := json.Marshal(item.Settings)
	if err != nil {
		return payload{}, fmt.Errorf("failed to marshal settings: %w", err)
	}
	return payload{extra: string(extra), settings: string(settings)}, nil
}

func decodePayload(item *models.Item, extra, settings []byte) error {
	if len(extra) > 0 {
		if err := json.Unmarshal(extra, &item.Extra); err != nil {
			return fmt.Errorf("failed to unmarshal extra of %s: %w", item.ID, err)
		}
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &item.Settings); err != nil {
			return fmt.Errorf("failed to unmarshal settings of %s: %w", item.ID, err)
		}
	}
	return nil
}

const itemColumns = `id, parent_id, name, type, description, extra, settings, creator, is_public, created_at, updated_at`

// rowScanner is satisfied by both pgx.Row and *sql.Row.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (models.Item, error) {
	var (
		item            models.Item
		extra, settings []byte
	)
	err := row.Scan(
		&item.ID, &item.ParentID, &item.Name, &item.Type, &item.Description,
		&extra, &settings, &item.Creator, &item.IsPublic, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return models.Item{}, err
	}
	if err := decodePayload(&item, extra, settings); err != nil {
		return models.Item{}, err
	}
	return item, nil
}
