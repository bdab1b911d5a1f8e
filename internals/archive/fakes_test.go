package archive

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
)

// memTree is an in-memory item store. Children keep insertion order.
type memTree struct {
	mu          sync.Mutex
	items       map[uuid.UUID]models.Item
	children    map[uuid.UUID][]uuid.UUID
	createCalls int
	createErr   error
}

func newMemTree() *memTree {
	return &memTree{
		items:    make(map[uuid.UUID]models.Item),
		children: make(map[uuid.UUID][]uuid.UUID),
	}
}

// add stores item under parent, uuid.Nil being the root.
func (m *memTree) add(parent uuid.UUID, item models.Item) models.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	item.ID = uuid.New()
	if parent != uuid.Nil {
		p := parent
		item.ParentID = &p
	}
	m.items[item.ID] = item
	m.children[parent] = append(m.children[parent], item.ID)
	return item
}

func (m *memTree) GetChildren(_ context.Context, folder models.Item) ([]models.Item, error) {
	return m.childrenOf(folder.ID), nil
}

func (m *memTree) CreateItems(_ context.Context, parentID *uuid.UUID, items []models.Item) ([]models.Item, error) {
	m.mu.Lock()
	m.createCalls++
	err := m.createErr
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	parent := uuid.Nil
	if parentID != nil {
		parent = *parentID
	}
	created := make([]models.Item, len(items))
	for i, item := range items {
		if err := item.Validate(); err != nil {
			return nil, err
		}
		created[i] = m.add(parent, item)
	}
	return created, nil
}

func (m *memTree) UpdateDescription(_ context.Context, itemID uuid.UUID, description string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return fmt.Errorf("item %s not found", itemID)
	}
	item.Description = description
	m.items[itemID] = item
	return nil
}

func (m *memTree) childrenOf(id uuid.UUID) []models.Item {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Item
	for _, childID := range m.children[id] {
		out = append(out, m.items[childID])
	}
	return out
}

func (m *memTree) get(id uuid.UUID) models.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.items[id]
}

func (m *memTree) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

var errObjectMissing = errors.New("object not found")

// memBlobs stores uploaded bytes by generated path.
type memBlobs struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (b *memBlobs) put(data []byte) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := "files/" + uuid.NewString()
	b.objects[key] = data
	return key
}

func (b *memBlobs) Upload(_ context.Context, r io.Reader, _ int64, _ string) (string, error) {
	if b.uploadErr != nil {
		return "", b.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return b.put(data), nil
}

func (b *memBlobs) Download(_ context.Context, file models.FileExtra) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, ok := b.objects[file.Path]
	if !ok {
		return nil, errObjectMissing
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBlobs) get(path string) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[path]
}

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1, 0, 0, 0, 1, 8, 6, 0, 0, 0}

func folder(name string) models.Item {
	return models.Item{Name: name, Type: models.ItemTypeFolder}
}

func document(name, content string) models.Item {
	return models.Item{Name: name, Type: models.ItemTypeDocument, Extra: models.Extra{Document: &models.DocumentExtra{Content: content}}}
}

func link(name, url string) models.Item {
	return models.Item{Name: name, Type: models.ItemTypeLink, Extra: models.Extra{Link: &models.LinkExtra{URL: url}}}
}

func app(name, url string) models.Item {
	return models.Item{Name: name, Type: models.ItemTypeApp, Extra: models.Extra{App: &models.LinkExtra{URL: url}}}
}

func storedFile(blobs *memBlobs, name, mimetype string, data []byte) models.Item {
	return models.Item{
		Name: name,
		Type: models.ItemTypeS3File,
		Extra: models.NewFileExtra(models.ItemTypeS3File, models.FileExtra{
			Name:     name,
			Path:     blobs.put(data),
			MimeType: mimetype,
			Size:     int64(len(data)),
		}),
	}
}

// readZip returns entry contents by name and the entry names in write order.
func readZip(t *testing.T, data []byte) (map[string]string, []string) {
	t.Helper()

	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	contents := make(map[string]string)
	var order []string
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		b, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		contents[f.Name] = string(b)
		order = append(order, f.Name)
	}
	return contents, order
}

// writeZip writes entries to a zip file in dir. Names ending in "/" are
// directories.
func writeZip(t *testing.T, dir string, entries map[string]string) string {
	t.Helper()

	path := filepath.Join(dir, "upload.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

// writeTree creates files under root. Names ending in "/" are directories.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if name[len(name)-1] == '/' {
			require.NoError(t, os.MkdirAll(path, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}
