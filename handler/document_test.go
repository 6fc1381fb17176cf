package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/middleware"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/model"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/service"
)

type stubExtractor struct {
	data  *model.LegalData
	err   error
	calls int
	got   service.SourceDocument
}

func (s *stubExtractor) Extract(ctx context.Context, doc service.SourceDocument) (*model.LegalData, error) {
	s.calls++
	s.got = doc
	if s.err != nil {
		return nil, s.err
	}
	return s.data, nil
}

type stubInspector struct {
	pages int
	err   error
}

func (s stubInspector) Inspect(data []byte) (int, error) {
	return s.pages, s.err
}

func sampleLegalData() *model.LegalData {
	year := 1998
	return &model.LegalData{
		Property: model.LegalProperty{
			Name:            "Wohnanlage Lindenstraße",
			PropertyNumber:  "WEG-2024-001",
			ManagementType:  model.ManagementWEG,
			PropertyManager: "Hausverwaltung Schmidt",
			Accountant:      "Anna Becker",
		},
		Buildings: []model.LegalBuilding{
			{Name: "Haus A", Street: "Lindenstraße", HouseNumber: "12", ZipCode: "10115", City: "Berlin"},
			{Name: "Haus B", Street: "Lindenstraße", HouseNumber: "14", ZipCode: "10115", City: "Berlin"},
		},
		Units: []model.LegalUnit{
			{UnitNumber: "1", UnitType: model.UnitApartment, Floor: "EG", Entrance: "Haupteingang",
				SizeM2: 78.5, CoOwnershipShare: "125/1000", RoomCount: 3, ConstructionYear: &year, BuildingIndex: 0},
			{UnitNumber: "2", UnitType: model.UnitParking, Floor: "UG",
				SizeM2: 12.5, CoOwnershipShare: "5/1000", BuildingIndex: 1},
		},
	}
}

var pdfBytes = []byte("%PDF-1.4\n%stub\n")

func setupDocumentRouter(t *testing.T, extractor DocumentExtractor, inspector DocumentInspector, archive DocumentArchive) *gin.Engine {
	t.Helper()

	handler := NewDocumentHandler(extractor, inspector, archive, newTestStore(t), 1<<20)

	router := gin.New()
	router.Use(middleware.RequestID())
	api := router.Group("/properties", withTenant("tenant1"))
	api.POST("/upload", handler.Upload)
	api.POST("/import", handler.Import)
	return router
}

func TestDocumentHandlerUpload(t *testing.T) {
	extractor := &stubExtractor{data: sampleLegalData()}
	archive := newFakeArchive()
	router := setupDocumentRouter(t, extractor, stubInspector{pages: 3}, archive)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/properties/upload", "file", "Teilungserklaerung.PDF", pdfBytes))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var data model.LegalData
	if err := json.Unmarshal(w.Body.Bytes(), &data); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if data.Property.PropertyNumber != "WEG-2024-001" || len(data.Units) != 2 {
		t.Errorf("Unexpected extraction result %+v", data)
	}
	if data.Units[0].BuildingIndex != 0 || data.Units[1].BuildingIndex != 1 {
		t.Error("Expected flat units with building indexes")
	}

	if extractor.got.Filename != "Teilungserklaerung.PDF" || string(extractor.got.Data) != string(pdfBytes) {
		t.Errorf("Extractor received %q (%d bytes)", extractor.got.Filename, len(extractor.got.Data))
	}
	if extractor.got.ContentType != "application/pdf" {
		t.Errorf("Expected application/pdf, got %q", extractor.got.ContentType)
	}

	key := w.Header().Get(SourceDocumentHeader)
	if key != "declarations/tenant1/doc-1/Teilungserklaerung.PDF" {
		t.Errorf("Unexpected source document header %q", key)
	}
	if _, ok := archive.objects[key]; !ok {
		t.Error("Expected document to be archived")
	}
}

func TestDocumentHandlerUploadWithoutArchive(t *testing.T) {
	router := setupDocumentRouter(t, &stubExtractor{data: sampleLegalData()}, stubInspector{pages: 1}, nil)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/properties/upload", "file", "decl.pdf", pdfBytes))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if w.Header().Get(SourceDocumentHeader) != "" {
		t.Error("Expected no source document header without archive")
	}
}

func TestDocumentHandlerUploadArchiveFailure(t *testing.T) {
	archive := newFakeArchive()
	archive.archiveErr = errors.New("bucket unavailable")
	router := setupDocumentRouter(t, &stubExtractor{data: sampleLegalData()}, stubInspector{pages: 1}, archive)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/properties/upload", "file", "decl.pdf", pdfBytes))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected extraction to proceed without archive, got %d", w.Code)
	}
	if w.Header().Get(SourceDocumentHeader) != "" {
		t.Error("Expected no source document header after archive failure")
	}
}

func TestDocumentHandlerUploadRejected(t *testing.T) {
	tests := []struct {
		name           string
		field          string
		filename       string
		data           []byte
		inspector      stubInspector
		expectedStatus int
	}{
		{"no file", "", "", nil, stubInspector{}, http.StatusBadRequest},
		{"wrong field", "document", "decl.pdf", pdfBytes, stubInspector{}, http.StatusBadRequest},
		{"not a pdf extension", "file", "decl.docx", pdfBytes, stubInspector{}, http.StatusBadRequest},
		{"unreadable pdf", "file", "decl.pdf", []byte("hello"), stubInspector{err: service.ErrNotPDF}, http.StatusBadRequest},
		{"too many pages", "file", "decl.pdf", pdfBytes,
			stubInspector{pages: 900, err: fmt.Errorf("%w: 900 pages", service.ErrTooManyPages)}, http.StatusBadRequest},
		{"too large", "file", "decl.pdf", []byte(strings.Repeat("x", 2<<20)), stubInspector{}, http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := &stubExtractor{data: sampleLegalData()}
			archive := newFakeArchive()
			router := setupDocumentRouter(t, extractor, tt.inspector, archive)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, multipartRequest(t, "/properties/upload", tt.field, tt.filename, tt.data))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if extractor.calls != 0 {
				t.Error("Expected no extraction for a rejected upload")
			}
			if len(archive.objects) != 0 {
				t.Error("Expected nothing archived for a rejected upload")
			}
		})
	}
}

func TestDocumentHandlerExtractionFailure(t *testing.T) {
	failures := []error{
		&service.ExtractionError{Kind: service.KindRunFailed, Detail: "failed - rate limited"},
		&service.ExtractionError{Kind: service.KindMalformedJSON, Err: errors.New("unexpected end of JSON input")},
		errors.New("dial tcp: connection refused"),
	}

	for _, failure := range failures {
		t.Run(failure.Error(), func(t *testing.T) {
			archive := newFakeArchive()
			router := setupDocumentRouter(t, &stubExtractor{err: failure}, stubInspector{pages: 1}, archive)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, multipartRequest(t, "/properties/upload", "file", "decl.pdf", pdfBytes))

			if w.Code != http.StatusInternalServerError {
				t.Fatalf("Expected status 500, got %d", w.Code)
			}

			var response map[string]string
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("Failed to parse response: %v", err)
			}
			if response["error"] != "Failed to extract data from document" {
				t.Errorf("Unexpected error message %q", response["error"])
			}
			if response["request_id"] == "" || response["request_id"] != w.Header().Get(middleware.RequestIDHeader) {
				t.Errorf("Expected request_id %q, got %q", w.Header().Get(middleware.RequestIDHeader), response["request_id"])
			}
			if strings.Contains(w.Body.String(), failure.Error()) {
				t.Error("Expected internal error details to stay out of the response")
			}

			if len(archive.objects) != 0 || len(archive.deleted) != 1 {
				t.Errorf("Expected archived upload to be removed, objects=%d deleted=%v", len(archive.objects), archive.deleted)
			}
			if w.Header().Get(SourceDocumentHeader) != "" {
				t.Error("Expected no source document header on failure")
			}
		})
	}
}

func TestDocumentHandlerImport(t *testing.T) {
	archive := newFakeArchive()
	router := setupDocumentRouter(t, &stubExtractor{data: sampleLegalData()}, stubInspector{pages: 2}, archive)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, multipartRequest(t, "/properties/import", "file", "decl.pdf", pdfBytes))

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var p model.Property
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if p.ID == "" || p.PropertyNumber != "WEG-2024-001" {
		t.Errorf("Unexpected property %+v", p)
	}
	if len(p.Buildings) != 2 || len(p.Buildings[0].Units) != 1 || len(p.Buildings[1].Units) != 1 {
		t.Fatalf("Expected units grouped under their buildings, got %+v", p.Buildings)
	}
	if p.Buildings[1].Units[0].Entrance != nil {
		t.Error("Expected empty entrance to become null")
	}
	if p.SourceDocument == nil || *p.SourceDocument != w.Header().Get(SourceDocumentHeader) {
		t.Errorf("Expected source document to be stored, got %v", p.SourceDocument)
	}
}

func TestDocumentHandlerImportErrors(t *testing.T) {
	badIndex := sampleLegalData()
	badIndex.Units[1].BuildingIndex = 5

	tests := []struct {
		name           string
		data           *model.LegalData
		twice          bool
		expectedStatus int
	}{
		{"building index out of range", badIndex, false, http.StatusUnprocessableEntity},
		{"duplicate property number", sampleLegalData(), true, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			archive := newFakeArchive()
			router := setupDocumentRouter(t, &stubExtractor{data: tt.data}, stubInspector{pages: 1}, archive)

			if tt.twice {
				w := httptest.NewRecorder()
				router.ServeHTTP(w, multipartRequest(t, "/properties/import", "file", "decl.pdf", pdfBytes))
				if w.Code != http.StatusCreated {
					t.Fatalf("Expected first import to succeed, got %d", w.Code)
				}
				// the stub archive reuses one key per filename
				archive.objects = make(map[string][]byte)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, multipartRequest(t, "/properties/import", "file", "decl.pdf", pdfBytes))

			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d: %s", tt.expectedStatus, w.Code, w.Body.String())
			}
			if len(archive.objects) != 0 {
				t.Error("Expected archived upload of a failed import to be removed")
			}
		})
	}
}
