package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ItemType string

const (
	ItemTypeFolder    ItemType = "folder"
	ItemTypeDocument  ItemType = "document"
	ItemTypeLink      ItemType = "embeddedLink"
	ItemTypeApp       ItemType = "app"
	ItemTypeLocalFile ItemType = "file"
	ItemTypeS3File    ItemType = "s3File"
)

// IsFile reports whether the type is backed by a stored blob, local or remote.
func (t ItemType) IsFile() bool {
	return t == ItemTypeLocalFile || t == ItemTypeS3File
}

func (t ItemType) Valid() bool {
	switch t {
	case ItemTypeFolder, ItemTypeDocument, ItemTypeLink, ItemTypeApp, ItemTypeLocalFile, ItemTypeS3File:
		return true
	}
	return false
}

type Item struct {
	ID          uuid.UUID  `json:"id"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	Name        string     `json:"name"`
	Type        ItemType   `json:"type"`
	Description string     `json:"description,omitempty"`
	Extra       Extra      `json:"extra"`
	Settings    Settings   `json:"settings"`
	Creator     uuid.UUID  `json:"creator"`
	IsPublic    bool       `json:"is_public"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Extra holds the kind specific payload. Exactly one field is set and it
// must match the item type, the JSON keys follow the item type names.
type Extra struct {
	Document *DocumentExtra `json:"document,omitempty"`
	Link     *LinkExtra     `json:"embeddedLink,omitempty"`
	App      *LinkExtra     `json:"app,omitempty"`
	File     *FileExtra     `json:"file,omitempty"`
	S3File   *FileExtra     `json:"s3File,omitempty"`
}

type DocumentExtra struct {
	Content string `json:"content"`
}

type LinkExtra struct {
	URL string `json:"url"`
}

type FileExtra struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	MimeType string `json:"mimetype"`
	Size     int64  `json:"size"`
}

type Settings struct {
	HasThumbnail bool `json:"hasThumbnail,omitempty"`
}

// FileExtra returns the blob reference of a file item regardless of which
// storage backend it belongs to.
func (i Item) FileExtra() (*FileExtra, bool) {
	switch i.Type {
	case ItemTypeLocalFile:
		return i.Extra.File, i.Extra.File != nil
	case ItemTypeS3File:
		return i.Extra.S3File, i.Extra.S3File != nil
	}
	return nil, false
}

// URL returns the target of a link or app item.
func (i Item) URL() (string, bool) {
	switch i.Type {
	case ItemTypeLink:
		if i.Extra.Link != nil {
			return i.Extra.Link.URL, true
		}
	case ItemTypeApp:
		if i.Extra.App != nil {
			return i.Extra.App.URL, true
		}
	}
	return "", false
}

// Validate checks that the payload is consistent with the item type.
func (i Item) Validate() error {
	if i.Name == "" {
		return fmt.Errorf("item %s has an empty name", i.ID)
	}

	set := 0
	for _, present := range []bool{
		i.Extra.Document != nil,
		i.Extra.Link != nil,
		i.Extra.App != nil,
		i.Extra.File != nil,
		i.Extra.S3File != nil,
	} {
		if present {
			set++
		}
	}

	var ok bool
	switch i.Type {
	case ItemTypeFolder:
		ok = set == 0
	case ItemTypeDocument:
		ok = set == 1 && i.Extra.Document != nil
	case ItemTypeLink:
		ok = set == 1 && i.Extra.Link != nil
	case ItemTypeApp:
		ok = set == 1 && i.Extra.App != nil
	case ItemTypeLocalFile:
		ok = set == 1 && i.Extra.File != nil
	case ItemTypeS3File:
		ok = set == 1 && i.Extra.S3File != nil
	default:
		return fmt.Errorf("item %q has unknown type %q", i.Name, i.Type)
	}

	if !ok {
		return fmt.Errorf("item %q of type %s has an inconsistent payload", i.Name, i.Type)
	}
	return nil
}

// NewFileExtra builds the payload of a file item for the given storage type.
func NewFileExtra(t ItemType, file FileExtra) Extra {
	if t == ItemTypeS3File {
		return Extra{S3File: &file}
	}
	return Extra{File: &file}
}
