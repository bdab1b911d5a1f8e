package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Akshdhiwar/simpledocs-archive/internals/apperrors"
	"github.com/Akshdhiwar/simpledocs-archive/internals/archive"
	"github.com/Akshdhiwar/simpledocs-archive/internals/blob"
	"github.com/Akshdhiwar/simpledocs-archive/internals/mediatype"
	"github.com/Akshdhiwar/simpledocs-archive/internals/middleware"
	"github.com/Akshdhiwar/simpledocs-archive/internals/models"
	"github.com/Akshdhiwar/simpledocs-archive/internals/store"
	"github.com/Akshdhiwar/simpledocs-archive/internals/utils"
)

const (
	archiveFileName = "archive.zip"
	extractDirName  = "extracted"
)

type ZipOptions struct {
	MaxUploadSize    int64
	MaxExtractedSize int64
	MaxDepth         int
	Concurrency      int
	NameLimit        int
}

// ZipController serves zip exports of item trees and imports of uploaded
// archives. Every request works inside its own workspace.
type ZipController struct {
	items      store.ItemStore
	blobs      blob.Storage
	detector   mediatype.Detector
	workspaces *utils.Workspaces
	opts       ZipOptions
	log        logrus.FieldLogger
}

func NewZipController(items store.ItemStore, blobs blob.Storage, workspaces *utils.Workspaces, log logrus.FieldLogger, opts ZipOptions) *ZipController {
	return &ZipController{
		items:      items,
		blobs:      blobs,
		detector:   mediatype.NewMagicDetector(),
		workspaces: workspaces,
		opts:       opts,
		log:        log,
	}
}

// ExportItem streams the tree under :itemId as a zip archive.
func (c *ZipController) ExportItem(ctx *gin.Context) {
	member, ok := middleware.MemberID(ctx)
	if !ok {
		c.respondError(ctx, apperrors.New(apperrors.KindUnauthorized, "member is not authenticated", "", nil))
		return
	}
	c.exportItem(ctx, store.ForMember(c.items, member))
}

// ExportPublicItem is ExportItem for anonymous callers, restricted to public
// items.
func (c *ZipController) ExportPublicItem(ctx *gin.Context) {
	c.exportItem(ctx, store.Public(c.items))
}

func (c *ZipController) exportItem(ctx *gin.Context, view *store.Member) {
	id, err := uuid.Parse(ctx.Param("itemId"))
	if err != nil {
		c.respondError(ctx, apperrors.New(apperrors.KindInvalidInput, "item id is not a valid uuid", ctx.Param("itemId"), err))
		return
	}

	dir, err := c.workspaces.Create()
	if err != nil {
		c.respondError(ctx, apperrors.New(apperrors.KindExportFailure, "failed to prepare export", "", err))
		return
	}
	defer c.workspaces.Remove(dir)

	dest := filepath.Join(dir, archiveFileName)
	root, err := c.Export(ctx.Request.Context(), view, id, dest, middleware.Logger(ctx, c.log))
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	f, err := os.Open(dest)
	if err != nil {
		c.respondError(ctx, apperrors.New(apperrors.KindExportFailure, "failed to open archive", "", err))
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		c.respondError(ctx, apperrors.New(apperrors.KindExportFailure, "failed to stat archive", "", err))
		return
	}

	ctx.DataFromReader(http.StatusOK, info.Size(), "application/zip", f, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": root.Name + ".zip"}),
	})
}

// Export writes the archive of item id, as seen by view, to dest and returns
// the root item.
func (c *ZipController) Export(ctx context.Context, view *store.Member, id uuid.UUID, dest string, log logrus.FieldLogger) (models.Item, error) {
	root, err := view.GetItem(ctx, id)
	if err != nil {
		return models.Item{}, err
	}

	builder := archive.NewBuilder(view, c.blobs, log.WithField("item_id", root.ID), archive.BuilderOptions{
		MaxDepth:    c.opts.MaxDepth,
		Concurrency: c.opts.Concurrency,
	})
	if err := builder.BuildFile(ctx, root, dest); err != nil {
		return models.Item{}, err
	}
	return root, nil
}

// ImportZip accepts a multipart upload holding exactly one zip file and
// recreates its tree under the optional parentId folder.
func (c *ZipController) ImportZip(ctx *gin.Context) {
	member, ok := middleware.MemberID(ctx)
	if !ok {
		c.respondError(ctx, apperrors.New(apperrors.KindUnauthorized, "member is not authenticated", "", nil))
		return
	}
	view := store.ForMember(c.items, member)
	log := middleware.Logger(ctx, c.log)

	parentID, err := c.parentFolder(ctx, view)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	dir, err := c.workspaces.Create()
	if err != nil {
		c.respondError(ctx, apperrors.New(apperrors.KindImportFailure, "failed to prepare import", "", err))
		return
	}
	defer c.workspaces.Remove(dir)

	ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, c.opts.MaxUploadSize)
	src := filepath.Join(dir, archiveFileName)
	if err := receiveArchive(ctx.Request, src); err != nil {
		c.respondError(ctx, err)
		return
	}

	created, err := c.Import(ctx.Request.Context(), view, src, filepath.Join(dir, extractDirName), parentID, log)
	if err != nil {
		c.respondError(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, created)
}

// Import extracts the archive at src into workdir and creates its items under
// parentID.
func (c *ZipController) Import(ctx context.Context, view *store.Member, src, workdir string, parentID *uuid.UUID, log logrus.FieldLogger) ([]models.Item, error) {
	if err := archive.Extract(ctx, src, workdir, archive.ExtractOptions{MaxTotalSize: c.opts.MaxExtractedSize}, log); err != nil {
		return nil, err
	}

	parser, err := archive.NewParser(archive.ParserDeps{
		Uploader:     c.blobs,
		Creator:      view,
		Descriptions: view,
		Detector:     c.detector,
		FileType:     c.blobs.ItemType(),
	}, log, archive.ParserOptions{
		NameLimit: c.opts.NameLimit,
		MaxDepth:  c.opts.MaxDepth,
	})
	if err != nil {
		return nil, err
	}
	return parser.Import(ctx, workdir, parentID)
}

func (c *ZipController) parentFolder(ctx *gin.Context, view *store.Member) (*uuid.UUID, error) {
	raw := ctx.Query("parentId")
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInvalidInput, "parent id is not a valid uuid", raw, err)
	}
	parent, err := view.GetWritableFolder(ctx.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	return &parent.ID, nil
}

// receiveArchive copies the single file field of a multipart body to dest.
// Value fields and additional files are rejected.
func receiveArchive(req *http.Request, dest string) error {
	reader, err := req.MultipartReader()
	if err != nil {
		return apperrors.New(apperrors.KindInvalidInput, "request is not a multipart upload", "", err)
	}

	files := 0
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return uploadError(err)
		}

		if part.FileName() == "" {
			part.Close()
			return apperrors.New(apperrors.KindInvalidInput, "unexpected form field", part.FormName(), nil)
		}
		files++
		if files > 1 {
			part.Close()
			return apperrors.New(apperrors.KindInvalidInput, "only one file can be uploaded", part.FileName(), nil)
		}

		declared := part.Header.Get("Content-Type")
		if !mediatype.IsZip(declared) {
			part.Close()
			return apperrors.InvalidArchive(declared)
		}

		err = savePart(part, dest)
		part.Close()
		if err != nil {
			return err
		}
	}

	if files == 0 {
		return apperrors.New(apperrors.KindInvalidInput, "no file uploaded", "", nil)
	}
	return nil
}

func savePart(part *multipart.Part, dest string) error {
	f, err := os.Create(dest)
	if err != nil {
		return apperrors.New(apperrors.KindImportFailure, "failed to store upload", "", err)
	}
	if _, err := io.Copy(f, part); err != nil {
		f.Close()
		return uploadError(err)
	}
	if err := f.Close(); err != nil {
		return apperrors.New(apperrors.KindImportFailure, "failed to store upload", "", err)
	}
	return nil
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperrors.New(apperrors.KindTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit), "", nil)
	}
	return apperrors.New(apperrors.KindInvalidInput, "failed to read upload", "", err)
}

func classify(err error) apperrors.Kind {
	if kind := apperrors.KindOf(err); kind != apperrors.KindUnknown {
		return kind
	}
	switch {
	case errors.Is(err, store.ErrItemNotFound):
		return apperrors.KindNotFound
	case errors.Is(err, store.ErrNotFolder):
		return apperrors.KindInvalidInput
	}
	return apperrors.KindUnknown
}

// respondError logs err and writes the error body for its kind. Server side
// causes are logged but not sent to the client.
func (c *ZipController) respondError(ctx *gin.Context, err error) {
	kind := classify(err)
	log := middleware.Logger(ctx, c.log).WithError(err).WithField("code", kind.Code())

	message := err.Error()
	switch kind {
	case apperrors.KindInvalidInput, apperrors.KindInvalidArchive, apperrors.KindStructure,
		apperrors.KindTooLarge, apperrors.KindNotFound, apperrors.KindUnauthorized, apperrors.KindRateLimited:
		log.Warn("zip request rejected")
	case apperrors.KindExportFailure:
		log.Error("zip export failed")
		message = "Failed to export the item"
	case apperrors.KindImportFailure:
		log.Error("zip import failed")
		message = "Failed to import the archive"
	default:
		log.Error("zip request failed")
		message = "Internal server error"
	}

	ctx.AbortWithStatusJSON(kind.HTTPStatus(), gin.H{
		"message": message,
		"code":    kind.Code(),
	})
}
