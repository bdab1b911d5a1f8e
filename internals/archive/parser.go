package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Akshdhiwar/simpledocs-archive/internals/apperrors"
	"github.com/Akshdhiwar/simpledocs-archive/internals/mediatype"
	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
	"github.com/Akshdhiwar/simpledocs-archive/internals/naming"
)

type ParserOptions struct {
	// NameLimit truncates imported file names, in runes.
	NameLimit int
	// MaxDepth bounds folder nesting of the extracted tree.
	MaxDepth int
}

// ParserDeps are the capabilities an import runs against.
type ParserDeps struct {
	Uploader     Uploader
	Creator      ItemCreator
	Descriptions DescriptionUpdater
	Detector     mediatype.Detector
	// FileType is the item type of uploaded files, it depends on where the
	// uploader stores them.
	FileType models.ItemType
}

// Parser turns an extracted archive back into items, one directory level at
// a time.
type Parser struct {
	deps ParserDeps
	log  logrus.FieldLogger
	opts ParserOptions
}

func NewParser(deps ParserDeps, log logrus.FieldLogger, opts ParserOptions) (*Parser, error) {
	if deps.Uploader == nil || deps.Creator == nil || deps.Descriptions == nil || deps.Detector == nil {
		return nil, fmt.Errorf("parser requires an uploader, a creator, a description updater and a detector")
	}
	if !deps.FileType.IsFile() {
		return nil, fmt.Errorf("parser file type must be a file type, got %q", deps.FileType)
	}
	if opts.NameLimit <= 0 {
		opts.NameLimit = naming.DefaultNameLimit
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	return &Parser{deps: deps, log: log, opts: opts}, nil
}

// level is one directory still to be imported.
type level struct {
	dir      string
	parentID *uuid.UUID
	depth    int
}

// pendingItem is a decoded entry waiting for its level's creation batch.
type pendingItem struct {
	item   models.Item
	source string
	kind   naming.EntryKind
	// name before truncation, sidecars refer to it
	decoded string
}

// ValidateStructure checks that dir holds exactly one item producing entry.
// Hidden files and description sidecars are not counted.
func (p *Parser) ValidateStructure(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return apperrors.New(apperrors.KindImportFailure, "failed to read extracted archive", filepath.Base(dir), err)
	}

	count := 0
	for _, e := range entries {
		switch naming.Classify(e.Name(), e.IsDir()) {
		case naming.EntryHidden, naming.EntryDescription:
			continue
		}
		count++
	}
	if count != 1 {
		return apperrors.InvalidStructure(filepath.Base(dir), count)
	}
	return nil
}

// Import creates the items found in dir under parentID, nil meaning the
// root, and returns the top-level items created. Levels are walked depth
// first from an explicit stack.
func (p *Parser) Import(ctx context.Context, dir string, parentID *uuid.UUID) ([]models.Item, error) {
	if err := p.ValidateStructure(dir); err != nil {
		return nil, err
	}

	var top []models.Item
	stack := []level{{dir: dir, parentID: parentID}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.New(apperrors.KindImportFailure, "import cancelled", "", err)
		}

		lv := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		created, next, err := p.importLevel(ctx, lv)
		if err != nil {
			return nil, err
		}
		if lv.depth == 0 {
			top = created
		}
		for i := len(next) - 1; i >= 0; i-- {
			stack = append(stack, next[i])
		}
	}
	return top, nil
}

func (p *Parser) importLevel(ctx context.Context, lv level) ([]models.Item, []level, error) {
	log := p.log.WithFields(logrus.Fields{"path": lv.dir, "depth": lv.depth})
	if lv.parentID != nil {
		log = log.WithField("parent_id", *lv.parentID)
	}

	entries, err := os.ReadDir(lv.dir)
	if err != nil {
		return nil, nil, apperrors.New(apperrors.KindImportFailure, "failed to read directory", filepath.Base(lv.dir), err)
	}

	var (
		pending  []pendingItem
		sidecars []string
	)
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && !e.Type().IsRegular() {
			log.WithField("entry", name).Warn("skipping irregular entry")
			continue
		}

		kind := naming.Classify(name, e.IsDir())
		switch kind {
		case naming.EntryHidden:
			continue
		case naming.EntryDescription:
			sidecars = append(sidecars, name)
			continue
		}

		pi, err := p.decode(ctx, filepath.Join(lv.dir, name), name, kind)
		if err != nil {
			return nil, nil, err
		}
		pending = append(pending, pi)
	}

	for _, sidecar := range sidecars {
		if err := p.attachDescription(ctx, lv, sidecar, pending, log); err != nil {
			return nil, nil, err
		}
	}

	if len(pending) == 0 {
		return nil, nil, nil
	}

	items := make([]models.Item, len(pending))
	for i, pi := range pending {
		if pi.kind == naming.EntryFolder && lv.depth >= p.opts.MaxDepth {
			return nil, nil, apperrors.New(apperrors.KindStructure,
				fmt.Sprintf("folder nesting exceeds %d levels", p.opts.MaxDepth), pi.source, nil)
		}
		items[i] = pi.item
	}
	created, err := p.deps.Creator.CreateItems(ctx, lv.parentID, items)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.KindImportFailure, "failed to create items", filepath.Base(lv.dir), err)
	}
	if len(created) != len(pending) {
		return nil, nil, apperrors.New(apperrors.KindImportFailure,
			fmt.Sprintf("created %d items for %d entries", len(created), len(pending)), filepath.Base(lv.dir), nil)
	}
	log.WithField("count", len(created)).Debug("created items")

	var next []level
	for i, item := range created {
		if pending[i].kind != naming.EntryFolder {
			continue
		}
		id := item.ID
		next = append(next, level{
			dir:      filepath.Join(lv.dir, pending[i].source),
			parentID: &id,
			depth:    lv.depth + 1,
		})
	}
	return created, next, nil
}

// decode turns one entry into a pending item. Files are uploaded here so
// that the stored reference exists before the batch is created.
func (p *Parser) decode(ctx context.Context, path, name string, kind naming.EntryKind) (pendingItem, error) {
	decoded := naming.ItemName(name, kind)
	pi := pendingItem{source: name, kind: kind, decoded: decoded}

	switch kind {
	case naming.EntryFolder:
		pi.item = models.Item{Name: decoded, Type: models.ItemTypeFolder}

	case naming.EntryDocument:
		content, err := os.ReadFile(path)
		if err != nil {
			return pi, apperrors.New(apperrors.KindImportFailure, "failed to read document", name, err)
		}
		pi.item = models.Item{
			Name:  decoded,
			Type:  models.ItemTypeDocument,
			Extra: models.Extra{Document: &models.DocumentExtra{Content: string(content)}},
		}

	case naming.EntryLink:
		content, err := os.ReadFile(path)
		if err != nil {
			return pi, apperrors.New(apperrors.KindImportFailure, "failed to read shortcut", name, err)
		}
		url, app, err := naming.ParseShortcut(string(content))
		if err != nil {
			return pi, apperrors.New(apperrors.KindInvalidInput, "malformed shortcut", name, err)
		}
		if app {
			pi.item = models.Item{Name: decoded, Type: models.ItemTypeApp, Extra: models.Extra{App: &models.LinkExtra{URL: url}}}
		} else {
			pi.item = models.Item{Name: decoded, Type: models.ItemTypeLink, Extra: models.Extra{Link: &models.LinkExtra{URL: url}}}
		}

	case naming.EntryFile:
		item, err := p.uploadFile(ctx, path, name, decoded)
		if err != nil {
			return pi, err
		}
		pi.item = item

	default:
		return pi, apperrors.New(apperrors.KindImportFailure, "unexpected entry kind "+kind.String(), name, nil)
	}
	return pi, nil
}

func (p *Parser) uploadFile(ctx context.Context, path, name, decoded string) (models.Item, error) {
	mimetype, err := p.deps.Detector.DetectFile(path)
	if err != nil {
		return models.Item{}, apperrors.New(apperrors.KindImportFailure, "failed to detect media type", name, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return models.Item{}, apperrors.New(apperrors.KindImportFailure, "failed to open file", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return models.Item{}, apperrors.New(apperrors.KindImportFailure, "failed to stat file", name, err)
	}

	storagePath, err := p.deps.Uploader.Upload(ctx, f, info.Size(), mimetype)
	if err != nil {
		return models.Item{}, apperrors.Wrap(apperrors.KindImportFailure, "failed to upload file", name, err)
	}

	itemName := naming.TruncateName(decoded, p.opts.NameLimit)
	return models.Item{
		Name: itemName,
		Type: p.deps.FileType,
		Extra: models.NewFileExtra(p.deps.FileType, models.FileExtra{
			Name:     decoded,
			Path:     storagePath,
			MimeType: mimetype,
			Size:     info.Size(),
		}),
		Settings: models.Settings{HasThumbnail: mediatype.IsImage(mimetype)},
	}, nil
}

// attachDescription routes a sidecar either to the folder being imported or
// to the pending sibling it names. A sidecar without a target is dropped.
func (p *Parser) attachDescription(ctx context.Context, lv level, sidecar string, pending []pendingItem, log logrus.FieldLogger) error {
	path := filepath.Join(lv.dir, sidecar)

	if lv.depth > 0 && naming.IsFolderDescription(sidecar, filepath.Base(lv.dir)) {
		content, err := os.ReadFile(path)
		if err != nil {
			return apperrors.New(apperrors.KindImportFailure, "failed to read description", sidecar, err)
		}
		if lv.parentID == nil {
			log.WithField("entry", sidecar).Warn("folder description has no folder to attach to")
			return nil
		}
		if err := p.deps.Descriptions.UpdateDescription(ctx, *lv.parentID, string(content)); err != nil {
			return apperrors.Wrap(apperrors.KindImportFailure, "failed to update description", sidecar, err)
		}
		return nil
	}

	target, hint := naming.DescriptionTarget(sidecar)
	idx := matchSidecar(pending, target, hint)
	if idx < 0 {
		log.WithFields(logrus.Fields{"entry": sidecar, "target": target}).Warn("description has no matching item, skipping")
		return nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return apperrors.New(apperrors.KindImportFailure, "failed to read description", sidecar, err)
	}
	pending[idx].item.Description = string(content)
	return nil
}

// matchSidecar finds the pending item a sidecar describes. Link and document
// hints only match their kind, a plain name prefers folders and files.
func matchSidecar(pending []pendingItem, target string, hint naming.EntryKind) int {
	switch hint {
	case naming.EntryLink, naming.EntryDocument:
		for i, pi := range pending {
			if pi.kind == hint && pi.decoded == target {
				return i
			}
		}
		return -1
	}

	fallback := -1
	for i, pi := range pending {
		if pi.decoded != target {
			continue
		}
		if pi.kind == naming.EntryFolder || pi.kind == naming.EntryFile {
			return i
		}
		if fallback < 0 {
			fallback = i
		}
	}
	return fallback
}
