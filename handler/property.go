package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/middleware"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/model"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/pkg/logger"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/service"
)

const (
	maxPayloadBytes = 1 << 20
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// DocumentArchive stores uploaded declarations. A nil archive disables archiving.
type DocumentArchive interface {
	ArchiveDocument(ctx context.Context, tenant string, doc service.SourceDocument) (string, error)
	PresignedURL(ctx context.Context, key string) (string, error)
	DeleteDocument(ctx context.Context, key string) error
}

type PropertyHandler struct {
	store   service.PropertyStore
	archive DocumentArchive
}

func NewPropertyHandler(store service.PropertyStore, archive DocumentArchive) *PropertyHandler {
	return &PropertyHandler{store: store, archive: archive}
}

// Create stores a new property tree from a JSON payload
func (h *PropertyHandler) Create(c *gin.Context) {
	raw, ok := readPayload(c)
	if !ok {
		return
	}

	in, err := model.DecodeCreatePayload(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property payload", "details": err.Error()})
		return
	}
	if !checkSourceDocument(c, in) {
		return
	}

	p, err := h.store.CreateProperty(c.Request.Context(), middleware.GetTenant(c), in)
	if err != nil {
		writeStoreError(c, "", err)
		return
	}

	logger.Info(c.Request.Context(), "property created", "property_id", p.ID, "buildings", len(p.Buildings), "units", p.UnitCount())
	c.JSON(http.StatusCreated, p)
}

// List returns the tenant's properties, newest first
func (h *PropertyHandler) List(c *gin.Context) {
	properties, err := h.store.ListProperties(c.Request.Context(), middleware.GetTenant(c))
	if err != nil {
		writeStoreError(c, "", err)
		return
	}
	if properties == nil {
		properties = []model.PropertySummary{}
	}

	c.JSON(http.StatusOK, properties)
}

// Get returns a single property with buildings and units
func (h *PropertyHandler) Get(c *gin.Context) {
	id := c.Param("id")

	p, err := h.store.GetProperty(c.Request.Context(), middleware.GetTenant(c), id)
	if err != nil {
		writeStoreError(c, id, err)
		return
	}

	c.JSON(http.StatusOK, p)
}

// Update changes the top-level fields. A buildings list in the payload
// replaces every building and unit of the property.
func (h *PropertyHandler) Update(c *gin.Context) {
	id := c.Param("id")

	raw, ok := readPayload(c)
	if !ok {
		return
	}

	in, err := model.DecodeUpdatePayload(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property payload", "details": err.Error()})
		return
	}
	if !checkSourceDocument(c, in) {
		return
	}

	p, err := h.store.UpdateProperty(c.Request.Context(), middleware.GetTenant(c), id, in)
	if err != nil {
		writeStoreError(c, id, err)
		return
	}

	logger.Info(c.Request.Context(), "property updated", "property_id", p.ID, "buildings_replaced", in.Buildings != nil)
	c.JSON(http.StatusOK, p)
}

// Delete removes a property with its buildings and units and returns the deleted record
func (h *PropertyHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	ctx := c.Request.Context()

	p, err := h.store.DeleteProperty(ctx, middleware.GetTenant(c), id)
	if err != nil {
		writeStoreError(c, id, err)
		return
	}

	if h.archive != nil && p.SourceDocument != nil {
		if err := h.archive.DeleteDocument(ctx, *p.SourceDocument); err != nil {
			logger.Warn(ctx, "failed to delete archived document", "property_id", id, "key", *p.SourceDocument, "error", err)
		}
	}

	logger.Info(ctx, "property deleted", "property_id", id)
	c.JSON(http.StatusOK, p)
}

// Export downloads the property as an XLSX workbook
func (h *PropertyHandler) Export(c *gin.Context) {
	id := c.Param("id")

	p, err := h.store.GetProperty(c.Request.Context(), middleware.GetTenant(c), id)
	if err != nil {
		writeStoreError(c, id, err)
		return
	}

	data, err := service.PropertyWorkbook(p)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to build workbook", "property_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export property"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, exportName(p.PropertyNumber)))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// Document redirects to a short-lived download URL of the archived declaration
func (h *PropertyHandler) Document(c *gin.Context) {
	id := c.Param("id")

	p, err := h.store.GetProperty(c.Request.Context(), middleware.GetTenant(c), id)
	if err != nil {
		writeStoreError(c, id, err)
		return
	}
	if h.archive == nil || p.SourceDocument == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No source document archived for this property"})
		return
	}

	url, err := h.archive.PresignedURL(c.Request.Context(), *p.SourceDocument)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to sign document url", "property_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate document URL"})
		return
	}

	c.Redirect(http.StatusTemporaryRedirect, url)
}

func readPayload(c *gin.Context) ([]byte, bool) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxPayloadBytes))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		}
		return nil, false
	}
	return raw, true
}

// checkSourceDocument rejects archive keys outside the caller's tenant
func checkSourceDocument(c *gin.Context, in *model.PropertyInput) bool {
	if in.SourceDocument == nil || service.OwnsDocument(middleware.GetTenant(c), *in.SourceDocument) {
		return true
	}

	logger.Warn(c.Request.Context(), "source document outside tenant rejected", "key", *in.SourceDocument)
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid property payload",
		"details": "sourceDocument does not name a document of this tenant",
	})
	return false
}

// writeStoreError maps store errors to responses; id names the property for 404s
func writeStoreError(c *gin.Context, id string, err error) {
	switch {
	case errors.Is(err, service.ErrPropertyNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Property with ID %q not found", id)})
	case errors.Is(err, service.ErrDuplicatePropertyNumber):
		c.JSON(http.StatusConflict, gin.H{"error": "A property with this number already exists"})
	case errors.Is(err, service.ErrDocumentInUse):
		c.JSON(http.StatusConflict, gin.H{"error": "The source document is already attached to another property"})
	case errors.Is(err, model.ErrBuildingIndexOutOfRange):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		logger.Error(c.Request.Context(), "property store failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":      "Internal server error",
			"request_id": middleware.GetRequestID(c),
		})
	}
}

var exportNameReplacer = strings.NewReplacer("/", "-", "\\", "-", `"`, "", "\r", "", "\n", "")

func exportName(propertyNumber string) string {
	name := exportNameReplacer.Replace(strings.TrimSpace(propertyNumber))
	if name == "" {
		return "property"
	}
	return "property-" + name
}
