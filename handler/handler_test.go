package handler

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/config"
	"github.com/D4N005H/Property-Management-Dashboard-FullStack-WebApp/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestStore(t *testing.T) service.PropertyStore {
	t.Helper()

	db, err := service.OpenDatabase(context.Background(), &config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "handler.db"),
	})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return service.NewSQLStore(db)
}

// withTenant stands in for the auth middleware
func withTenant(tenant string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("tenant", tenant)
		c.Set("username", "testuser")
		c.Next()
	}
}

type fakeArchive struct {
	mu         sync.Mutex
	archiveErr error
	presignErr error
	objects    map[string][]byte
	deleted    []string
}

func newFakeArchive() *fakeArchive {
	return &fakeArchive{objects: make(map[string][]byte)}
}

func (a *fakeArchive) ArchiveDocument(ctx context.Context, tenant string, doc service.SourceDocument) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.archiveErr != nil {
		return "", a.archiveErr
	}
	key := service.DocumentKey(tenant, "doc-1", doc.Filename)
	a.objects[key] = doc.Data
	return key, nil
}

func (a *fakeArchive) PresignedURL(ctx context.Context, key string) (string, error) {
	if a.presignErr != nil {
		return "", a.presignErr
	}
	return "https://archive.example/" + key + "?X-Amz-Signature=abc", nil
}

func (a *fakeArchive) DeleteDocument(ctx context.Context, key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.objects[key]; !ok {
		return errors.New("no such object")
	}
	delete(a.objects, key)
	a.deleted = append(a.deleted, key)
	return nil
}

func multipartRequest(t *testing.T, path, field, filename string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if field != "" {
		part, err := writer.CreateFormFile(field, filename)
		if err != nil {
			t.Fatalf("Failed to create form file: %v", err)
		}
		part.Write(data)
	} else {
		writer.WriteField("note", "no file here")
	}
	writer.Close()

	req := httptest.NewRequest("POST", path, &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
