// Package blob stores file item bytes, on local disk or in an S3 compatible
// bucket.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
)

var ErrObjectNotFound = errors.New("object not found")

type Storage interface {
	// ItemType is the file item type whose payload points into this storage.
	ItemType() models.ItemType
	Upload(ctx context.Context, r io.Reader, size int64, mimetype string) (string, error)
	Download(ctx context.Context, file models.FileExtra) (io.ReadCloser, error)
}

// NewKey returns a fresh object key, <prefix>/<yyyy>/<mm>/<dd>/<uuid>.
func NewKey(prefix string, now time.Time) string {
	now = now.UTC()
	return path.Join(prefix, fmt.Sprintf("%04d", now.Year()), fmt.Sprintf("%02d", now.Month()), fmt.Sprintf("%02d", now.Day()), uuid.NewString())
}
