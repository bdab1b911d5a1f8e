package controller

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Akshdhiwar/simpledocs-archive/internals/blob"
	"github.com/Akshdhiwar/simpledocs-archive/internals/middleware"
	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
	"github.com/Akshdhiwar/simpledocs-archive/internals/store"
	"github.com/Akshdhiwar/simpledocs-archive/internals/utils"
)

const testUploadLimit = 64 << 10

type harness struct {
	router *gin.Engine
	items  store.ItemStore
	blobs  *blob.LocalStorage
	tmp    string
	member uuid.UUID
	token  string
	auth   *middleware.Authenticator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, _ := test.NewNullLogger()

	items, err := store.NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { items.Close() })

	blobs, err := blob.NewLocalStorage(t.TempDir(), "files")
	require.NoError(t, err)

	tmp := filepath.Join(t.TempDir(), "tmp")
	workspaces, err := utils.NewWorkspaces(tmp, log)
	require.NoError(t, err)

	auth, err := middleware.NewAuthenticator("secret", log)
	require.NoError(t, err)

	c := NewZipController(items, blobs, workspaces, log, ZipOptions{
		MaxUploadSize:    testUploadLimit,
		MaxExtractedSize: 1 << 20,
		MaxDepth:         16,
		Concurrency:      2,
		NameLimit:        100,
	})

	router := gin.New()
	router.Use(middleware.RequestLogger(log))
	group := router.Group("/api/v1/items")
	group.GET("/public/zip-export/:itemId", c.ExportPublicItem)
	authed := group.Group("", auth.Middleware())
	authed.POST("/zip-import", c.ImportZip)
	authed.GET("/zip-export/:itemId", c.ExportItem)

	member := uuid.New()
	token, err := auth.Sign(member, time.Hour)
	require.NoError(t, err)

	return &harness{router: router, items: items, blobs: blobs, tmp: tmp, member: member, token: token, auth: auth}
}

func (h *harness) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) create(t *testing.T, parent *uuid.UUID, items ...models.Item) []models.Item {
	t.Helper()
	created, err := h.items.CreateItems(context.Background(), h.member, parent, items)
	require.NoError(t, err)
	return created
}

func (h *harness) assertWorkspacesRemoved(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func folderItem(name string) models.Item {
	return models.Item{Name: name, Type: models.ItemTypeFolder}
}

func documentItem(name, content string) models.Item {
	return models.Item{Name: name, Type: models.ItemTypeDocument, Extra: models.Extra{Document: &models.DocumentExtra{Content: content}}}
}

func unzip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	out := map[string]string{}
	for _, f := range r.File {
		rc, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		rc.Close()
		out[f.Name] = string(content)
	}
	return out
}

func zipOf(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

type formPart struct {
	field       string
	filename    string
	contentType string
	data        []byte
}

func uploadRequest(t *testing.T, target string, parts ...formPart) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		header := textproto.MIMEHeader{}
		disposition := fmt.Sprintf(`form-data; name=%q`, p.field)
		if p.filename != "" {
			disposition += fmt.Sprintf(`; filename=%q`, p.filename)
		}
		header.Set("Content-Disposition", disposition)
		if p.contentType != "" {
			header.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func zipPart(data []byte) formPart {
	return formPart{field: "file", filename: "demo.zip", contentType: "application/zip", data: data}
}

func TestExportItem(t *testing.T) {
	h := newHarness(t)
	root := h.create(t, nil, folderItem("Demo"))[0]
	h.create(t, &root.ID, documentItem("Notes", "hello"))

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/items/zip-export/"+root.ID.String(), nil), h.token)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=Demo.zip", w.Header().Get("Content-Disposition"))

	entries := unzip(t, w.Body.Bytes())
	assert.Contains(t, entries, "Demo/")
	assert.Equal(t, "hello", entries["Demo/Notes.graasp"])
	h.assertWorkspacesRemoved(t)
}

func TestExportItemErrors(t *testing.T) {
	h := newHarness(t)
	root := h.create(t, nil, folderItem("Demo"))[0]

	stranger, err := h.auth.Sign(uuid.New(), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		id     string
		token  string
		status int
		code   string
	}{
		{"missing token", root.ID.String(), "", http.StatusUnauthorized, "ZIPERR006"},
		{"malformed id", "not-a-uuid", h.token, http.StatusBadRequest, "ZIPERR003"},
		{"unknown item", uuid.NewString(), h.token, http.StatusNotFound, "ZIPERR005"},
		{"item of another member", root.ID.String(), stranger, http.StatusNotFound, "ZIPERR005"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/items/zip-export/"+tt.id, nil), tt.token)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestExportItemMissingContent(t *testing.T) {
	h := newHarness(t)
	root := h.create(t, nil, folderItem("Demo"))[0]
	h.create(t, &root.ID, models.Item{
		Name:  "report.pdf",
		Type:  models.ItemTypeLocalFile,
		Extra: models.NewFileExtra(models.ItemTypeLocalFile, models.FileExtra{Name: "report.pdf", Path: "files/missing", MimeType: "application/pdf", Size: 4}),
	})

	w := h.do(httptest.NewRequest(http.MethodGet, "/api/v1/items/zip-export/"+root.ID.String(), nil), h.token)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "ZIPERR007")
	assert.NotContains(t, w.Body.String(), "files/missing")
	h.assertWorkspacesRemoved(t)
}

func TestExportPublicItem(t *testing.T) {
	h := newHarness(t)
	root := h.create(t, nil, documentItem("Readme", "public text"))[0]
	target := "/api/v1/items/public/zip-export/" + root.ID.String()

	w := h.do(httptest.NewRequest(http.MethodGet, target, nil), "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.NoError(t, h.items.SetPublic(context.Background(), root.ID, true))

	w = h.do(httptest.NewRequest(http.MethodGet, target, nil), "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "public text", unzip(t, w.Body.Bytes())["Readme.graasp"])
}

func TestImportZip(t *testing.T) {
	h := newHarness(t)
	data := zipOf(t, map[string]string{
		"Demo/":                 "",
		"Demo/Notes.graasp":     "hello",
		"Demo/Sub/":             "",
		"Demo/Sub/Inner.graasp": "inner",
	})

	w := h.do(uploadRequest(t, "/api/v1/items/zip-import", zipPart(data)), h.token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var created []models.Item
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.Len(t, created, 1)
	assert.Equal(t, "Demo", created[0].Name)
	assert.Equal(t, models.ItemTypeFolder, created[0].Type)
	assert.Equal(t, h.member, created[0].Creator)

	ctx := context.Background()
	children, err := h.items.GetChildren(ctx, created[0].ID)
	require.NoError(t, err)
	require.Len(t, children, 2)

	names := []string{children[0].Name, children[1].Name}
	assert.ElementsMatch(t, []string{"Notes", "Sub"}, names)
	h.assertWorkspacesRemoved(t)
}

func TestImportZipUnderParent(t *testing.T) {
	h := newHarness(t)
	parent := h.create(t, nil, folderItem("Inbox"))[0]
	data := zipOf(t, map[string]string{"Notes.graasp": "hello"})

	w := h.do(uploadRequest(t, "/api/v1/items/zip-import?parentId="+parent.ID.String(), zipPart(data)), h.token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	children, err := h.items.GetChildren(context.Background(), parent.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, "Notes", children[0].Name)
	assert.Equal(t, "hello", children[0].Extra.Document.Content)
}

func TestImportZipRejects(t *testing.T) {
	h := newHarness(t)
	doc := h.create(t, nil, documentItem("Readme", "x"))[0]
	valid := zipOf(t, map[string]string{"Notes.graasp": "hello"})

	tests := []struct {
		name   string
		query  string
		parts  []formPart
		status int
		code   string
	}{
		{
			name:   "not a zip",
			parts:  []formPart{{field: "file", filename: "a.pdf", contentType: "application/pdf", data: []byte("%PDF")}},
			status: http.StatusBadRequest,
			code:   "ZIPERR001",
		},
		{
			name:   "two files",
			parts:  []formPart{zipPart(valid), zipPart(valid)},
			status: http.StatusBadRequest,
			code:   "ZIPERR003",
		},
		{
			name:   "value field",
			parts:  []formPart{{field: "name", data: []byte("x")}, zipPart(valid)},
			status: http.StatusBadRequest,
			code:   "ZIPERR003",
		},
		{
			name:   "no file",
			status: http.StatusBadRequest,
			code:   "ZIPERR003",
		},
		{
			name:   "too large",
			parts:  []formPart{zipPart(bytes.Repeat([]byte("a"), 2*testUploadLimit))},
			status: http.StatusRequestEntityTooLarge,
			code:   "ZIPERR004",
		},
		{
			name:   "corrupt archive",
			parts:  []formPart{zipPart([]byte("not really a zip"))},
			status: http.StatusBadRequest,
			code:   "ZIPERR001",
		},
		{
			name:   "two top level entries",
			parts:  []formPart{zipPart(zipOf(t, map[string]string{"a.graasp": "a", "b.graasp": "b"}))},
			status: http.StatusBadRequest,
			code:   "ZIPERR002",
		},
		{
			name:   "malformed parent",
			query:  "?parentId=nope",
			parts:  []formPart{zipPart(valid)},
			status: http.StatusBadRequest,
			code:   "ZIPERR003",
		},
		{
			name:   "parent is not a folder",
			query:  "?parentId=" + doc.ID.String(),
			parts:  []formPart{zipPart(valid)},
			status: http.StatusBadRequest,
			code:   "ZIPERR003",
		},
		{
			name:   "unknown parent",
			query:  "?parentId=" + uuid.NewString(),
			parts:  []formPart{zipPart(valid)},
			status: http.StatusNotFound,
			code:   "ZIPERR005",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(uploadRequest(t, "/api/v1/items/zip-import"+tt.query, tt.parts...), h.token)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), tt.code)
			h.assertWorkspacesRemoved(t)
		})
	}
}

func TestImportZipIntoPublicFolderOfAnotherMember(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	shared, err := h.items.CreateItems(ctx, uuid.New(), nil, []models.Item{folderItem("Shared")})
	require.NoError(t, err)
	require.NoError(t, h.items.SetPublic(ctx, shared[0].ID, true))

	data := zipOf(t, map[string]string{"Intruder/": ""})
	w := h.do(uploadRequest(t, "/api/v1/items/zip-import?parentId="+shared[0].ID.String(), zipPart(data)), h.token)

	assert.Equal(t, http.StatusNotFound, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "ZIPERR005")

	children, err := h.items.GetChildren(ctx, shared[0].ID)
	require.NoError(t, err)
	assert.Empty(t, children)
}

func TestImportZipRequiresMember(t *testing.T) {
	h := newHarness(t)
	data := zipOf(t, map[string]string{"Notes.graasp": "hello"})

	w := h.do(uploadRequest(t, "/api/v1/items/zip-import", zipPart(data)), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
