package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
)

const rootKey = "root"

// BadgerStore keeps items in an embedded key value store.
//
//	item:<id>                      item JSON
//	children:<parent>:<seq>:<id>   empty, lists children in creation order
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

func NewBadgerStore(dataDir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dataDir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB: %w", err)
	}

	seq, err := db.GetSequence([]byte("seq:children"), 128)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open child sequence: %w", err)
	}

	return &BadgerStore{db: db, seq: seq}, nil
}

func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		s.db.Close()
		return fmt.Errorf("failed to release child sequence: %w", err)
	}
	return s.db.Close()
}

func itemKey(id uuid.UUID) []byte {
	return []byte("item:" + id.String())
}

func childrenPrefix(parentID *uuid.UUID) []byte {
	parent := rootKey
	if parentID != nil {
		parent = parentID.String()
	}
	return []byte("children:" + parent + ":")
}

func childKey(parentID *uuid.UUID, seq uint64, id uuid.UUID) []byte {
	// fixed width keeps lexical order equal to numeric order
	return append(childrenPrefix(parentID), []byte(fmt.Sprintf("%020d:%s", seq, id))...)
}

func getItem(txn *badger.Txn, id uuid.UUID) (models.Item, error) {
	var item models.Item
	entry, err := txn.Get(itemKey(id))
	if err != nil {
		return item, err
	}
	err = entry.Value(func(val []byte) error {
		return json.Unmarshal(val, &item)
	})
	return item, err
}

func (s *BadgerStore) GetItem(_ context.Context, id uuid.UUID) (models.Item, error) {
	var item models.Item
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		item, err = getItem(txn, id)
		return err
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return models.Item{}, ErrItemNotFound
	}
	if err != nil {
		return models.Item{}, fmt.Errorf("failed to get item %s: %w", id, err)
	}
	return item, nil
}

func (s *BadgerStore) GetPublicItem(ctx context.Context, id uuid.UUID) (models.Item, error) {
	item, err := s.GetItem(ctx, id)
	if err != nil {
		return models.Item{}, err
	}
	if !item.IsPublic {
		return models.Item{}, ErrItemNotFound
	}
	return item, nil
}

func (s *BadgerStore) GetChildren(_ context.Context, parentID uuid.UUID) ([]models.Item, error) {
	var children []models.Item

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		iter := txn.NewIterator(opts)
		defer iter.Close()

		prefix := childrenPrefix(&parentID)
		for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
			key := iter.Item().Key()
			id, err := uuid.ParseBytes(key[len(key)-36:])
			if err != nil {
				return fmt.Errorf("corrupt child key %q: %w", key, err)
			}
			item, err := getItem(txn, id)
			if err != nil {
				return fmt.Errorf("failed to load child %s: %w", id, err)
			}
			children = append(children, item)
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to get children of %s: %w", parentID, err)
	}
	return children, nil
}

// CreateItems writes the whole batch in one transaction.
func (s *BadgerStore) CreateItems(_ context.Context, creator uuid.UUID, parentID *uuid.UUID, items []models.Item) ([]models.Item, error) {
	prepared, err := prepare(creator, parentID, items)
	if err != nil {
		return nil, err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if parentID != nil {
			if _, err := getItem(txn, *parentID); err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("parent %s: %w", parentID, ErrItemNotFound)
				}
				return err
			}
		}

		for _, item := range prepared {
			data, err := json.Marshal(item)
			if err != nil {
				return fmt.Errorf("failed to marshal item: %w", err)
			}
			seq, err := s.seq.Next()
			if err != nil {
				return fmt.Errorf("failed to allocate sequence: %w", err)
			}
			if err := txn.Set(itemKey(item.ID), data); err != nil {
				return err
			}
			if err := txn.Set(childKey(parentID, seq, item.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to create items: %w", err)
	}
	return prepared, nil
}

func (s *BadgerStore) update(id uuid.UUID, mutate func(*models.Item)) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := getItem(txn, id)
		if err != nil {
			return err
		}
		mutate(&item)
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("failed to marshal item: %w", err)
		}
		return txn.Set(itemKey(id), data)
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrItemNotFound
	}
	return err
}

func (s *BadgerStore) UpdateDescription(_ context.Context, id uuid.UUID, description string) error {
	if err := s.update(id, func(item *models.Item) { item.Description = description }); err != nil {
		return fmt.Errorf("failed to update description of %s: %w", id, err)
	}
	return nil
}

func (s *BadgerStore) SetPublic(_ context.Context, id uuid.UUID, public bool) error {
	if err := s.update(id, func(item *models.Item) { item.IsPublic = public }); err != nil {
		return fmt.Errorf("failed to set visibility of %s: %w", id, err)
	}
	return nil
}
