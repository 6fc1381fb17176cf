package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/middleware"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/model"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/pkg/logger"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/service"
)

// SourceDocumentHeader returns the archive key of an uploaded declaration
const SourceDocumentHeader = "X-Source-Document"

type DocumentExtractor interface {
	Extract(ctx context.Context, doc service.SourceDocument) (*model.LegalData, error)
}

type DocumentInspector interface {
	Inspect(data []byte) (int, error)
}

// DocumentHandler turns uploaded declarations of division into property data
type DocumentHandler struct {
	extractor DocumentExtractor
	inspector DocumentInspector
	archive   DocumentArchive
	store     service.PropertyStore
	maxBytes  int64
}

func NewDocumentHandler(extractor DocumentExtractor, inspector DocumentInspector, archive DocumentArchive, store service.PropertyStore, maxBytes int64) *DocumentHandler {
	return &DocumentHandler{
		extractor: extractor,
		inspector: inspector,
		archive:   archive,
		store:     store,
		maxBytes:  maxBytes,
	}
}

// Upload extracts the declaration in the multipart field "file" and returns the LegalData
func (h *DocumentHandler) Upload(c *gin.Context) {
	ctx, doc, key, ok := h.receive(c)
	if !ok {
		return
	}

	data, ok := h.extract(ctx, c, doc, key)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, data)
}

// Import extracts the declaration and stores the result as a new property
func (h *DocumentHandler) Import(c *gin.Context) {
	ctx, doc, key, ok := h.receive(c)
	if !ok {
		return
	}

	data, ok := h.extract(ctx, c, doc, key)
	if !ok {
		return
	}

	in, err := data.ToPropertyInput()
	if err != nil {
		logger.Warn(ctx, "extracted data cannot be imported", "error", err)
		h.discard(ctx, c, key)
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	if key != "" {
		in.SourceDocument = &key
	}

	p, err := h.store.CreateProperty(ctx, middleware.GetTenant(c), in)
	if err != nil {
		h.discard(ctx, c, key)
		writeStoreError(c, "", err)
		return
	}

	logger.Info(ctx, "property imported", "property_id", p.ID, "buildings", len(p.Buildings), "units", p.UnitCount())
	c.JSON(http.StatusCreated, p)
}

// receive validates the upload and archives it. It writes the error response itself.
func (h *DocumentHandler) receive(c *gin.Context) (context.Context, service.SourceDocument, string, bool) {
	var doc service.SourceDocument
	ctx := c.Request.Context()

	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		}
		return ctx, doc, "", false
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if strings.ToLower(filepath.Ext(filename)) != ".pdf" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only PDF files are allowed"})
		return ctx, doc, "", false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return ctx, doc, "", false
	}

	pages, err := h.inspector.Inspect(data)
	if err != nil {
		logger.Info(ctx, "upload rejected", "filename", filename, "error", err)
		if errors.Is(err, service.ErrTooManyPages) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Document has too many pages"})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid PDF document"})
		}
		return ctx, doc, "", false
	}

	doc = service.SourceDocument{
		Data:        data,
		Filename:    filename,
		ContentType: "application/pdf",
	}
	ctx = logger.With(ctx, "filename", filename, "pages", pages, "size", len(data))

	var key string
	if h.archive != nil {
		// archiving is best effort, extraction does not depend on it
		key, err = h.archive.ArchiveDocument(ctx, middleware.GetTenant(c), doc)
		if err != nil {
			logger.Warn(ctx, "failed to archive document", "error", err)
			key = ""
		} else {
			c.Header(SourceDocumentHeader, key)
		}
	}

	return ctx, doc, key, true
}

func (h *DocumentHandler) extract(ctx context.Context, c *gin.Context, doc service.SourceDocument, key string) (*model.LegalData, bool) {
	data, err := h.extractor.Extract(ctx, doc)
	if err != nil {
		var extractErr *service.ExtractionError
		kind := "transport"
		if errors.As(err, &extractErr) {
			kind = string(extractErr.Kind)
		}
		logger.Error(ctx, "document extraction failed", "kind", kind, "error", err)

		h.discard(ctx, c, key)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Failed to extract data from document",
			"request_id": middleware.GetRequestID(c),
		})
		return nil, false
	}

	logger.Info(ctx, "document extracted", "buildings", len(data.Buildings), "units", len(data.Units))
	return data, true
}

// discard removes an archived upload whose request failed
func (h *DocumentHandler) discard(ctx context.Context, c *gin.Context, key string) {
	if key == "" {
		return
	}
	if err := h.archive.DeleteDocument(context.WithoutCancel(ctx), key); err != nil {
		logger.Warn(ctx, "failed to delete archived document", "key", key, "error", err)
	}
	c.Writer.Header().Del(SourceDocumentHeader)
}
