package archive

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Akshdhiwar/simpledocs-archive/internals/apperrors"
)

// DefaultMaxExtractedSize caps the uncompressed size of one archive.
const DefaultMaxExtractedSize int64 = 1 << 30

type ExtractOptions struct {
	// MaxTotalSize bounds the sum of uncompressed entry sizes.
	MaxTotalSize int64
}

// Extract unpacks the zip archive at src into dest, creating it if needed.
// Entries escaping dest are rejected, symlinks and macOS resource forks are
// skipped.
func Extract(ctx context.Context, src, dest string, opts ExtractOptions, log logrus.FieldLogger) error {
	if opts.MaxTotalSize <= 0 {
		opts.MaxTotalSize = DefaultMaxExtractedSize
	}

	r, err := zip.OpenReader(src)
	if err != nil {
		return apperrors.New(apperrors.KindInvalidArchive, "failed to open zip archive", filepath.Base(src), err)
	}
	defer r.Close()

	absDest, err := filepath.Abs(dest)
	if err != nil {
		return apperrors.New(apperrors.KindImportFailure, "failed to resolve extraction directory", dest, err)
	}
	if err := os.MkdirAll(absDest, 0o755); err != nil {
		return apperrors.New(apperrors.KindImportFailure, "failed to create extraction directory", dest, err)
	}

	remaining := opts.MaxTotalSize
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return apperrors.New(apperrors.KindImportFailure, "extraction cancelled", "", err)
		}

		// some Windows tools write backslash separators
		name := strings.ReplaceAll(f.Name, "\\", "/")
		if name == "__MACOSX" || strings.HasPrefix(name, "__MACOSX/") {
			continue
		}

		target, err := entryTarget(absDest, name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir() || strings.HasSuffix(name, "/"):
			if err := os.MkdirAll(target, 0o755); err != nil {
				return apperrors.New(apperrors.KindImportFailure, "failed to create directory", f.Name, err)
			}
		case mode&os.ModeSymlink != 0:
			log.WithField("entry", f.Name).Warn("skipping symlink in archive")
		case mode.IsRegular():
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return apperrors.New(apperrors.KindImportFailure, "failed to create directory", f.Name, err)
			}
			written, err := extractFile(f, target, remaining)
			if err != nil {
				return err
			}
			remaining -= written
		default:
			log.WithFields(logrus.Fields{"entry": f.Name, "mode": mode.String()}).Warn("skipping irregular entry in archive")
		}
	}

	return nil
}

// entryTarget resolves the extraction path of an entry, rejecting names
// that would land outside dest.
func entryTarget(dest, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "/") {
		return "", apperrors.New(apperrors.KindInvalidArchive, "invalid entry path", name, nil)
	}

	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", apperrors.New(apperrors.KindInvalidArchive, "entry escapes extraction directory", name, err)
	}
	return target, nil
}

func extractFile(f *zip.File, target string, budget int64) (written int64, err error) {
	rc, err := f.Open()
	if err != nil {
		return 0, apperrors.New(apperrors.KindInvalidArchive, "failed to open entry", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, apperrors.New(apperrors.KindImportFailure, "failed to create file", f.Name, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = apperrors.New(apperrors.KindImportFailure, "failed to close file", f.Name, closeErr)
		}
	}()

	// one byte past the budget tells an exact fit from an overflow
	written, err = io.CopyN(out, rc, budget+1)
	if err != nil && !errors.Is(err, io.EOF) {
		return written, apperrors.New(apperrors.KindInvalidArchive, "failed to read entry", f.Name, err)
	}
	if written > budget {
		return written, apperrors.New(apperrors.KindTooLarge, "archive expands past the size limit", f.Name, nil)
	}
	return written, nil
}
