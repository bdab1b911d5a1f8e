package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akshdhiwar/simpledocs-archive/internals/apperrors"
)

func TestExtract(t *testing.T) {
	src := writeZip(t, t.TempDir(), map[string]string{
		"Demo/":                        "",
		"Demo/Notes.graasp":            "hello",
		"Demo/Sub/site.url":            "[InternetShortcut]\nURL=https://example.org\n",
		"__MACOSX/Demo/._Notes.graasp": "resource fork",
	})
	dest := t.TempDir()
	log, _ := test.NewNullLogger()

	require.NoError(t, Extract(context.Background(), src, dest, ExtractOptions{}, log))

	content, err := os.ReadFile(filepath.Join(dest, "Demo", "Notes.graasp"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
	assert.FileExists(t, filepath.Join(dest, "Demo", "Sub", "site.url"))
	assert.NoDirExists(t, filepath.Join(dest, "__MACOSX"))
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	for _, name := range []string{"../evil.txt", "Demo/../../evil.txt", "..\\evil.txt"} {
		t.Run(name, func(t *testing.T) {
			work := t.TempDir()
			src := writeZip(t, work, map[string]string{name: "x"})
			dest := filepath.Join(work, "out")
			require.NoError(t, os.Mkdir(dest, 0o755))
			log, _ := test.NewNullLogger()

			err := Extract(context.Background(), src, dest, ExtractOptions{}, log)

			assert.ErrorIs(t, err, apperrors.ErrInvalidArchive)
			assert.NoFileExists(t, filepath.Join(work, "evil.txt"))
		})
	}
}

func TestExtractAcceptsBackslashSeparators(t *testing.T) {
	src := writeZip(t, t.TempDir(), map[string]string{
		"Demo\\":                  "",
		"Demo\\Sub\\Notes.graasp": "hello",
	})
	dest := t.TempDir()
	log, _ := test.NewNullLogger()

	require.NoError(t, Extract(context.Background(), src, dest, ExtractOptions{}, log))

	assert.DirExists(t, filepath.Join(dest, "Demo"))
	content, err := os.ReadFile(filepath.Join(dest, "Demo", "Sub", "Notes.graasp"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))
}

func TestExtractEnforcesSizeLimit(t *testing.T) {
	src := writeZip(t, t.TempDir(), map[string]string{
		"Demo/big.txt": strings.Repeat("x", 64),
	})
	log, _ := test.NewNullLogger()

	err := Extract(context.Background(), src, t.TempDir(), ExtractOptions{MaxTotalSize: 32}, log)
	assert.ErrorIs(t, err, apperrors.ErrTooLarge)

	err = Extract(context.Background(), src, t.TempDir(), ExtractOptions{MaxTotalSize: 64}, log)
	assert.NoError(t, err)
}

func TestExtractRejectsNonZip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "notes.zip")
	require.NoError(t, os.WriteFile(src, []byte("not a zip"), 0o644))
	log, _ := test.NewNullLogger()

	err := Extract(context.Background(), src, t.TempDir(), ExtractOptions{}, log)
	assert.ErrorIs(t, err, apperrors.ErrInvalidArchive)
}
