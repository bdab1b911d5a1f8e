package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
)

var ErrNotFolder = errors.New("item is not a folder")

// Member is a store seen by one member. It implements the capabilities the
// archive pipelines run against.
type Member struct {
	store ItemStore
	id    uuid.UUID
}

func ForMember(s ItemStore, member uuid.UUID) *Member {
	return &Member{store: s, id: member}
}

// Public is a read only view used for public exports.
func Public(s ItemStore) *Member {
	return &Member{store: s}
}

// GetItem returns an item the member created or that is public. Other items
// are reported as missing.
func (m *Member) GetItem(ctx context.Context, id uuid.UUID) (models.Item, error) {
	if m.id == uuid.Nil {
		return m.store.GetPublicItem(ctx, id)
	}
	item, err := m.store.GetItem(ctx, id)
	if err != nil {
		return models.Item{}, err
	}
	if item.Creator != m.id && !item.IsPublic {
		return models.Item{}, ErrItemNotFound
	}
	return item, nil
}

// GetChildren lists a folder's children. Access was checked on the root of
// the walk, descendants are not checked again.
func (m *Member) GetChildren(ctx context.Context, folder models.Item) ([]models.Item, error) {
	return m.store.GetChildren(ctx, folder.ID)
}

// GetWritableFolder returns a folder the member created. Public visibility
// grants read access only, so public folders of other members are missing.
func (m *Member) GetWritableFolder(ctx context.Context, id uuid.UUID) (models.Item, error) {
	item, err := m.owned(ctx, id)
	if err != nil {
		return models.Item{}, err
	}
	if item.Type != models.ItemTypeFolder {
		return models.Item{}, fmt.Errorf("%s: %w", id, ErrNotFolder)
	}
	return item, nil
}

func (m *Member) CreateItems(ctx context.Context, parentID *uuid.UUID, items []models.Item) ([]models.Item, error) {
	if m.id == uuid.Nil {
		return nil, errors.New("anonymous members cannot create items")
	}
	if parentID != nil {
		if _, err := m.GetWritableFolder(ctx, *parentID); err != nil {
			return nil, err
		}
	}
	return m.store.CreateItems(ctx, m.id, parentID, items)
}

func (m *Member) UpdateDescription(ctx context.Context, itemID uuid.UUID, description string) error {
	if m.id == uuid.Nil {
		return errors.New("anonymous members cannot update items")
	}
	if _, err := m.owned(ctx, itemID); err != nil {
		return err
	}
	return m.store.UpdateDescription(ctx, itemID, description)
}

// owned returns the item when the member created it. Anything else is
// reported as missing.
func (m *Member) owned(ctx context.Context, id uuid.UUID) (models.Item, error) {
	if m.id == uuid.Nil {
		return models.Item{}, ErrItemNotFound
	}
	item, err := m.store.GetItem(ctx, id)
	if err != nil {
		return models.Item{}, err
	}
	if item.Creator != m.id {
		return models.Item{}, ErrItemNotFound
	}
	return item, nil
}
