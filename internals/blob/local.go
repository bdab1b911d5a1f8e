package blob

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
)

// LocalStorage keeps objects as files below a root directory.
type LocalStorage struct {
	root   string
	prefix string
	now    func() time.Time
}

func NewLocalStorage(root, prefix string) (*LocalStorage, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root %s: %w", root, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root %s: %w", abs, err)
	}
	return &LocalStorage{root: abs, prefix: prefix, now: time.Now}, nil
}

func (s *LocalStorage) ItemType() models.ItemType {
	return models.ItemTypeLocalFile
}

func (s *LocalStorage) Upload(ctx context.Context, r io.Reader, size int64, _ string) (key string, err error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key = NewKey(s.prefix, s.now())
	target, err := s.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create object %s: %w", key, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close object %s: %w", key, closeErr)
		}
		if err != nil {
			os.Remove(target)
			key = ""
		}
	}()

	written, err := io.Copy(f, r)
	if err != nil {
		return "", fmt.Errorf("failed to write object %s: %w", key, err)
	}
	if size >= 0 && written != size {
		return "", fmt.Errorf("object %s: wrote %d bytes, expected %d", key, written, size)
	}
	return key, nil
}

func (s *LocalStorage) Download(_ context.Context, file models.FileExtra) (io.ReadCloser, error) {
	target, err := s.resolve(file.Path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: %w", file.Path, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object %s: %w", file.Path, err)
	}
	return f, nil
}

// resolve maps a key to a path, refusing keys that leave the root.
func (s *LocalStorage) resolve(key string) (string, error) {
	target := filepath.Join(s.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object key %q is outside the storage root", key)
	}
	return target, nil
}
