// Package mediatype sniffs media types from file content and maps them back
// to file extensions.
package mediatype

import (
	"fmt"
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const fallbackMediaType = "application/octet-stream"

// zipMediaTypes are the types browsers and tools declare for zip uploads.
var zipMediaTypes = map[string]bool{
	"application/zip":              true,
	"application/x-zip-compressed": true,
	"multipart/x-zip":              true,
	"application/x-zip":            true,
}

// Detector returns the media type of a file by looking at its bytes.
type Detector interface {
	DetectFile(path string) (string, error)
}

// MagicDetector detects media types from magic numbers. It holds no state.
type MagicDetector struct{}

func NewMagicDetector() MagicDetector {
	return MagicDetector{}
}

func (MagicDetector) DetectFile(path string) (string, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to detect media type of %s: %w", path, err)
	}
	return Essence(m.String()), nil
}

// Essence strips parameters such as charset from a media type.
func Essence(mediaType string) string {
	if mediaType == "" {
		return fallbackMediaType
	}
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		return parsed
	}
	essence, _, _ := strings.Cut(mediaType, ";")
	return strings.ToLower(strings.TrimSpace(essence))
}

// Extension returns the preferred extension, dot included, for a media type.
// It returns an empty string when the type is unknown.
func Extension(mediaType string) string {
	mediaType = Essence(mediaType)
	if m := mimetype.Lookup(mediaType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// IsImage reports whether media type is an image, used to flag thumbnails.
func IsImage(mediaType string) bool {
	return strings.HasPrefix(Essence(mediaType), "image/")
}

// IsZip reports whether a declared media type is one of the zip types.
func IsZip(mediaType string) bool {
	return zipMediaTypes[Essence(mediaType)]
}
