// Package naming maps items to archive entry names and back.
//
// Export goes through EntryFor / EntryContent / DescriptionName, import goes
// through Classify / ItemName / ParseShortcut / DescriptionTarget. Both sides
// must agree on the suffixes declared here.
package naming

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/Akshdhiwar/simpledocs-archive/internals/mediatype"
	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
	"golang.org/x/text/unicode/norm"
)

const (
	DescriptionExtension = ".description.html"
	DocumentExtension    = ".graasp"
	LinkExtension        = ".url"

	ShortcutHeader = "[InternetShortcut]"
	URLPrefix      = "URL="
	AppURLPrefix   = "AppURL="

	// DefaultNameLimit is the maximum length, in runes, of an imported file name.
	DefaultNameLimit = 100

	maxExtensionLength = 10
)

var ErrMalformedShortcut = errors.New("shortcut has no URL line")

// EntryKind is what an extracted filesystem entry decodes to.
type EntryKind int

const (
	EntryHidden EntryKind = iota
	EntryFolder
	EntryDescription
	EntryLink
	EntryDocument
	EntryFile
)

func (k EntryKind) String() string {
	switch k {
	case EntryHidden:
		return "hidden"
	case EntryFolder:
		return "folder"
	case EntryDescription:
		return "description"
	case EntryLink:
		return "link"
	case EntryDocument:
		return "document"
	case EntryFile:
		return "file"
	}
	return "unknown"
}

// Entry is an archive entry name split around its suffix so that collisions
// can be resolved without touching the extension.
type Entry struct {
	Base   string
	Suffix string
}

func (e Entry) Name() string {
	return e.Base + e.Suffix
}

// EntryFor returns the archive entry name of an item, escaped but not yet
// deduplicated against its siblings.
func EntryFor(item models.Item) (Entry, error) {
	name := Escape(item.Name)

	switch item.Type {
	case models.ItemTypeFolder:
		return Entry{Base: name}, nil
	case models.ItemTypeDocument:
		return Entry{Base: name, Suffix: DocumentExtension}, nil
	case models.ItemTypeLink, models.ItemTypeApp:
		return Entry{Base: name, Suffix: LinkExtension}, nil
	case models.ItemTypeLocalFile, models.ItemTypeS3File:
		file, ok := item.FileExtra()
		if !ok {
			return Entry{}, fmt.Errorf("file item %s has no file payload", item.ID)
		}
		return fileEntry(name, file.MimeType), nil
	}
	return Entry{}, fmt.Errorf("item %s has unsupported type %q", item.ID, item.Type)
}

// fileEntry reuses the extension of the stored name, or derives one from the
// media type when the name has none.
func fileEntry(name, mimetype string) Entry {
	if ext := extension(name); ext != "" {
		return Entry{Base: strings.TrimSuffix(name, ext), Suffix: ext}
	}
	ext := mediatype.Extension(mimetype)
	if ext == "" && reservedSuffix(name) {
		ext = ".bin"
	}
	return Entry{Base: name, Suffix: ext}
}

// extension returns the extension of name when it looks like a real one.
// "1.5 Report" has no extension, "report.pdf" has ".pdf". Suffixes that would
// be decoded as another kind are not accepted as file extensions.
func extension(name string) string {
	if reservedSuffix(name) {
		return ""
	}
	ext := path.Ext(name)
	if len(ext) < 2 || len(ext) > maxExtensionLength+1 || ext == name {
		return ""
	}
	for _, r := range ext[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return ""
		}
	}
	return ext
}

func reservedSuffix(name string) bool {
	return hasSuffixFold(name, DescriptionExtension) ||
		hasSuffixFold(name, DocumentExtension) ||
		hasSuffixFold(name, LinkExtension)
}

// EntryContent returns the bytes written for items that have no blob.
func EntryContent(item models.Item) ([]byte, error) {
	switch item.Type {
	case models.ItemTypeDocument:
		if item.Extra.Document == nil {
			return nil, fmt.Errorf("document %s has no content", item.ID)
		}
		return []byte(item.Extra.Document.Content), nil
	case models.ItemTypeLink, models.ItemTypeApp:
		url, ok := item.URL()
		if !ok {
			return nil, fmt.Errorf("%s %s has no url", item.Type, item.ID)
		}
		return []byte(BuildShortcut(url, item.Type == models.ItemTypeApp)), nil
	}
	return nil, fmt.Errorf("item %s of type %s has no inline content", item.ID, item.Type)
}

// DescriptionName returns the sidecar name holding the description of an
// entry. A folder keeps its description inside itself, so the sidecar is
// named after the folder and written in the folder's own path.
func DescriptionName(entry Entry) string {
	return entry.Name() + DescriptionExtension
}

func BuildShortcut(url string, app bool) string {
	if app {
		return ShortcutHeader + "\n" + URLPrefix + url + "\n" + AppURLPrefix + "1\n"
	}
	return ShortcutHeader + "\n" + URLPrefix + url + "\n"
}

// ParseShortcut reads an internet shortcut. Lines may end with CRLF and
// may carry extra keys, only URL and AppURL are read.
func ParseShortcut(content string) (url string, app bool, err error) {
	found := false
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, URLPrefix):
			if !found {
				url = strings.TrimSpace(line[len(URLPrefix):])
				found = true
			}
		case strings.HasPrefix(line, AppURLPrefix):
			app = strings.Contains(line[len(AppURLPrefix):], "1")
		}
	}
	if !found {
		return "", false, ErrMalformedShortcut
	}
	return url, app, nil
}

// Classify decides what an extracted entry becomes, from its name alone.
func Classify(name string, isDir bool) EntryKind {
	switch {
	case strings.HasPrefix(name, "."):
		return EntryHidden
	case isDir:
		return EntryFolder
	case hasSuffixFold(name, DescriptionExtension):
		return EntryDescription
	case hasSuffixFold(name, LinkExtension):
		return EntryLink
	case hasSuffixFold(name, DocumentExtension):
		return EntryDocument
	}
	return EntryFile
}

// ItemName recovers the item name by stripping the known suffix of kind.
// Only the suffix is removed: "1.5 Report.graasp" gives "1.5 Report".
func ItemName(filename string, kind EntryKind) string {
	var name string
	switch kind {
	case EntryLink:
		name = filename[:len(filename)-len(LinkExtension)]
	case EntryDocument:
		name = filename[:len(filename)-len(DocumentExtension)]
	default:
		name = filename
	}
	return Normalize(name)
}

// DescriptionTarget returns the item name a sidecar refers to, and the kind
// of item expected. EntryFile means any kind matches.
func DescriptionTarget(filename string) (string, EntryKind) {
	rest := filename[:len(filename)-len(DescriptionExtension)]
	switch {
	case hasSuffixFold(rest, LinkExtension):
		return ItemName(rest, EntryLink), EntryLink
	case hasSuffixFold(rest, DocumentExtension):
		return ItemName(rest, EntryDocument), EntryDocument
	}
	return Normalize(rest), EntryFile
}

// IsFolderDescription reports whether filename is the sidecar of the folder
// it was found in.
func IsFolderDescription(filename, folderName string) bool {
	return filename == folderName+DescriptionExtension
}

// TruncateName cuts name to limit runes.
func TruncateName(name string, limit int) string {
	if limit <= 0 {
		return name
	}
	runes := []rune(name)
	if len(runes) <= limit {
		return name
	}
	return string(runes[:limit])
}

// Escape makes a display name usable as a single archive path segment.
func Escape(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
	if name == "" {
		return "_"
	}
	if strings.HasPrefix(name, ".") {
		name = "_" + name[1:]
	}
	return name
}

// Normalize puts decoded names in NFC, archives written on macOS use NFD.
func Normalize(name string) string {
	return norm.NFC.String(name)
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}
