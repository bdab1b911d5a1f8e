// Package archive converts item trees to zip archives and extracted archives
// back to item trees.
package archive

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
)

// ChildFetcher lists the immediate children of a folder.
type ChildFetcher interface {
	GetChildren(ctx context.Context, folder models.Item) ([]models.Item, error)
}

// ContentRetriever opens the stored bytes of a file item. The returned stream
// is read once and closed by the caller.
type ContentRetriever interface {
	Download(ctx context.Context, file models.FileExtra) (io.ReadCloser, error)
}

// Uploader stores bytes and returns the storage path to reference them by.
// Every call stores a new object.
type Uploader interface {
	Upload(ctx context.Context, r io.Reader, size int64, mimetype string) (string, error)
}

// ItemCreator persists one batch of items under parentID, nil meaning the
// root. Returned items are in input order.
type ItemCreator interface {
	CreateItems(ctx context.Context, parentID *uuid.UUID, items []models.Item) ([]models.Item, error)
}

type DescriptionUpdater interface {
	UpdateDescription(ctx context.Context, itemID uuid.UUID, description string) error
}
