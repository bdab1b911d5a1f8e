package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestItemValidate(t *testing.T) {
	tests := []struct {
		name    string
		item    Item
		wantErr bool
	}{
		{"folder", Item{Name: "Demo", Type: ItemTypeFolder}, false},
		{"folder with payload", Item{Name: "Demo", Type: ItemTypeFolder, Extra: Extra{Document: &DocumentExtra{}}}, true},
		{"document", Item{Name: "Notes", Type: ItemTypeDocument, Extra: Extra{Document: &DocumentExtra{Content: "hi"}}}, false},
		{"document missing payload", Item{Name: "Notes", Type: ItemTypeDocument}, true},
		{"link", Item{Name: "l", Type: ItemTypeLink, Extra: Extra{Link: &LinkExtra{URL: "https://example.org"}}}, false},
		{"app with link payload", Item{Name: "a", Type: ItemTypeApp, Extra: Extra{Link: &LinkExtra{URL: "https://example.org"}}}, true},
		{"s3 file", Item{Name: "f", Type: ItemTypeS3File, Extra: NewFileExtra(ItemTypeS3File, FileExtra{Path: "p"})}, false},
		{"local file with two payloads", Item{Name: "f", Type: ItemTypeLocalFile, Extra: Extra{File: &FileExtra{}, S3File: &FileExtra{}}}, true},
		{"empty name", Item{Type: ItemTypeFolder}, true},
		{"unknown type", Item{Name: "x", Type: "h5p"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.item.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExtraJSONKeysFollowItemType(t *testing.T) {
	item := Item{Name: "a", Type: ItemTypeApp, Extra: Extra{App: &LinkExtra{URL: "https://example.org"}}}

	data, err := json.Marshal(item.Extra)
	require.NoError(t, err)
	assert.JSONEq(t, `{"app":{"url":"https://example.org"}}`, string(data))

	url, ok := item.URL()
	assert.True(t, ok)
	assert.Equal(t, "https://example.org", url)
}

func TestFileExtraForBothStorages(t *testing.T) {
	local := Item{Type: ItemTypeLocalFile, Extra: NewFileExtra(ItemTypeLocalFile, FileExtra{Path: "a"})}
	remote := Item{Type: ItemTypeS3File, Extra: NewFileExtra(ItemTypeS3File, FileExtra{Path: "b"})}

	f, ok := local.FileExtra()
	require.True(t, ok)
	assert.Equal(t, "a", f.Path)

	f, ok = remote.FileExtra()
	require.True(t, ok)
	assert.Equal(t, "b", f.Path)

	_, ok = Item{Type: ItemTypeFolder}.FileExtra()
	assert.False(t, ok)
}
