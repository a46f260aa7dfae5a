package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pixelle-ai/mcp-broker/internal/db"
	"github.com/pixelle-ai/mcp-broker/internal/repository"
	"github.com/pixelle-ai/mcp-broker/internal/storage"
)

func newFileRouter(t *testing.T) *gin.Engine {
	t.Helper()
	dir := t.TempDir()

	database, err := db.Open(filepath.Join(dir, "files.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	backend, err := storage.NewLocal(filepath.Join(dir, "files"), "http://localhost:9004", repository.NewFileRepository(database), zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewFileHandler(backend).RegisterRoutes(r.Group("/api"))
	return r
}

func uploadFile(t *testing.T, r *gin.Engine, filename, contentType string, content []byte) storage.FileInfo {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("failed to build form: %v", err)
	}
	fw.Write(content)
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/files", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var info storage.FileInfo
	if err := json.Unmarshal(w.Body.Bytes(), &info); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return info
}

func TestFileUploadAndDownload(t *testing.T) {
	r := newFileRouter(t)
	content := []byte("attachment body")

	info := uploadFile(t, r, "doc.txt", "text/plain", content)
	if info.FileID == "" || info.Filename != "doc.txt" {
		t.Fatalf("unexpected upload response: %+v", info)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files/"+info.FileID, nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), content) {
		t.Errorf("downloaded content differs: %s", w.Body.String())
	}
}

func TestFileUploadMissingField(t *testing.T) {
	r := newFileRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/files", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestFileInfoEndpoint(t *testing.T) {
	r := newFileRouter(t)
	info := uploadFile(t, r, "img.png", "image/png", []byte{1, 2, 3})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files/"+info.FileID+"/info", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got storage.FileInfo
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Filename != "img.png" || got.Size != 3 {
		t.Errorf("unexpected info: %+v", got)
	}
}

func TestFileDownloadMissing(t *testing.T) {
	r := newFileRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files/nope.txt", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Error.Code != "FILE_NOT_FOUND" {
		t.Errorf("expected FILE_NOT_FOUND, got %s", resp.Error.Code)
	}
}

func TestFileDelete(t *testing.T) {
	r := newFileRouter(t)
	info := uploadFile(t, r, "bye.txt", "text/plain", []byte("x"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/files/"+info.FileID, nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}

	// Deleted files 404 on every route
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/files/"+info.FileID, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/files/"+info.FileID, nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 on download after delete, got %d", w.Code)
	}
}
