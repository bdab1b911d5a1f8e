package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Akshdhiwar/simpledocs-archive/internals/apperrors"
	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
	"github.com/Akshdhiwar/simpledocs-archive/internals/naming"
)

const (
	DefaultMaxDepth    = 128
	DefaultConcurrency = 4
)

type BuilderOptions struct {
	// MaxDepth bounds folder nesting, deeper trees are rejected.
	MaxDepth int
	// Concurrency bounds how many siblings are retrieved at once.
	Concurrency int
}

// Builder writes an item and all of its descendants into a zip archive.
type Builder struct {
	children ChildFetcher
	content  ContentRetriever
	log      logrus.FieldLogger
	opts     BuilderOptions
}

func NewBuilder(children ChildFetcher, content ContentRetriever, log logrus.FieldLogger, opts BuilderOptions) *Builder {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	return &Builder{children: children, content: content, log: log, opts: opts}
}

// BuildFile writes the archive of root to a new file at dest. The file is
// removed when the build fails.
func (b *Builder) BuildFile(ctx context.Context, root models.Item, dest string) (err error) {
	f, err := os.Create(dest)
	if err != nil {
		return apperrors.New(apperrors.KindExportFailure, "failed to create archive file", dest, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = apperrors.New(apperrors.KindExportFailure, "failed to close archive file", dest, closeErr)
		}
		if err != nil {
			_ = os.Remove(dest)
		}
	}()

	return b.Build(ctx, root, f)
}

// Build streams the archive of root into w. Nothing usable is written when
// an error is returned, callers must discard w.
func (b *Builder) Build(ctx context.Context, root models.Item, w io.Writer) error {
	entry, err := naming.EntryFor(root)
	if err != nil {
		return apperrors.New(apperrors.KindExportFailure, "failed to name item", root.Name, err)
	}

	zw := &zipAppender{zw: zip.NewWriter(w)}
	if err := b.addItem(ctx, zw, root, entry, "", 0); err != nil {
		_ = zw.close()
		return err
	}
	if err := zw.close(); err != nil {
		return apperrors.New(apperrors.KindExportFailure, "failed to finalize archive", root.Name, err)
	}
	return nil
}

func (b *Builder) addItem(ctx context.Context, zw *zipAppender, item models.Item, entry naming.Entry, dir string, depth int) error {
	if err := ctx.Err(); err != nil {
		return apperrors.New(apperrors.KindExportFailure, "export cancelled", dir, err)
	}

	entryPath := joinEntry(dir, entry.Name())
	log := b.log.WithFields(logrus.Fields{"item_id": item.ID, "path": entryPath})
	modified := modTime(item)

	switch item.Type {
	case models.ItemTypeFolder:
		return b.addFolder(ctx, zw, item, entry, entryPath, depth)

	case models.ItemTypeDocument, models.ItemTypeLink, models.ItemTypeApp:
		content, err := naming.EntryContent(item)
		if err != nil {
			return apperrors.New(apperrors.KindExportFailure, "failed to encode item", entryPath, err)
		}
		if err := zw.appendBytes(entryPath, content, modified); err != nil {
			return apperrors.New(apperrors.KindExportFailure, "failed to write entry", entryPath, err)
		}

	case models.ItemTypeLocalFile, models.ItemTypeS3File:
		file, ok := item.FileExtra()
		if !ok || file.Path == "" {
			return apperrors.New(apperrors.KindExportFailure, "file item has no stored content", entryPath, nil)
		}
		// retrieval runs outside the writer lock, only the copy is serialized
		rc, err := b.content.Download(ctx, *file)
		if err != nil {
			return apperrors.New(apperrors.KindExportFailure, "failed to retrieve file", entryPath, err)
		}
		err = zw.appendStream(entryPath, rc, modified)
		_ = rc.Close()
		if err != nil {
			return apperrors.New(apperrors.KindExportFailure, "failed to write entry", entryPath, err)
		}

	default:
		return apperrors.New(apperrors.KindExportFailure, "unsupported item type "+string(item.Type), entryPath, nil)
	}

	if item.Description != "" {
		descPath := joinEntry(dir, naming.DescriptionName(entry))
		if err := zw.appendBytes(descPath, []byte(item.Description), modified); err != nil {
			return apperrors.New(apperrors.KindExportFailure, "failed to write description", descPath, err)
		}
	}

	log.Debug("item added to archive")
	return nil
}

// addFolder writes the folder entry and its description, then its children.
// Children are named in fetch order before any of them is written so that
// names do not depend on retrieval timing.
func (b *Builder) addFolder(ctx context.Context, zw *zipAppender, folder models.Item, entry naming.Entry, folderPath string, depth int) error {
	if depth >= b.opts.MaxDepth {
		return apperrors.New(apperrors.KindStructure, fmt.Sprintf("folder nesting exceeds %d levels", b.opts.MaxDepth), folderPath, nil)
	}

	modified := modTime(folder)
	if err := zw.appendDir(folderPath+"/", modified); err != nil {
		return apperrors.New(apperrors.KindExportFailure, "failed to write folder", folderPath, err)
	}

	siblings := naming.NewSiblings()
	ownDescription := naming.DescriptionName(entry)
	siblings.Reserve(naming.Entry{Base: ownDescription})

	if folder.Description != "" {
		descPath := joinEntry(folderPath, ownDescription)
		if err := zw.appendBytes(descPath, []byte(folder.Description), modified); err != nil {
			return apperrors.New(apperrors.KindExportFailure, "failed to write description", descPath, err)
		}
	}

	children, err := b.children.GetChildren(ctx, folder)
	if err != nil {
		return apperrors.New(apperrors.KindExportFailure, "failed to get children", folderPath, err)
	}

	entries := make([]naming.Entry, len(children))
	for i, child := range children {
		childEntry, err := naming.EntryFor(child)
		if err != nil {
			return apperrors.New(apperrors.KindExportFailure, "failed to name item", joinEntry(folderPath, child.Name), err)
		}
		if child.Type == models.ItemTypeFolder {
			entries[i] = siblings.ReserveFolder(childEntry)
		} else {
			entries[i] = siblings.Reserve(childEntry)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.opts.Concurrency)
	for i, child := range children {
		childEntry := entries[i]
		g.Go(func() error {
			return b.addItem(gctx, zw, child, childEntry, folderPath, depth+1)
		})
	}
	return g.Wait()
}

func joinEntry(dir, name string) string {
	if dir == "" {
		return name
	}
	return path.Join(dir, name)
}

func modTime(item models.Item) time.Time {
	if !item.UpdatedAt.IsZero() {
		return item.UpdatedAt.UTC()
	}
	return time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
}

// zipAppender serializes appends to a zip.Writer, which only supports one
// open entry at a time.
type zipAppender struct {
	mu sync.Mutex
	zw *zip.Writer
}

func (a *zipAppender) appendDir(name string, modified time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	_, err := a.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store, Modified: modified})
	return err
}

func (a *zipAppender) appendBytes(name string, data []byte, modified time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	w, err := a.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate, Modified: modified})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// appendStream stores blobs without compression, most of them are already
// compressed formats.
func (a *zipAppender) appendStream(name string, r io.Reader, modified time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	w, err := a.zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Store, Modified: modified})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, r)
	return err
}

func (a *zipAppender) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.zw.Close()
}
