package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pixelle-ai/mcp-broker/internal/config"
	"github.com/pixelle-ai/mcp-broker/internal/genai"
	"github.com/pixelle-ai/mcp-broker/internal/model"
)

func newGenerateRouter(t *testing.T, upstream http.Handler) *gin.Engine {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	client, err := genai.NewClient(config.GenAIConfig{APIKey: "test-key", BaseURL: srv.URL}, zerolog.Nop())
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewGenerateHandler(client, nil).RegisterRoutes(r.Group("/api"))
	return r
}

func TestGenerateSubmit(t *testing.T) {
	r := newGenerateRouter(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/v1/text_to_image" {
			t.Errorf("unexpected upstream path: %s", req.URL.Path)
		}
		json.NewEncoder(w).Encode(genai.SubmitResult{TaskID: "task-1"})
	}))

	w := postJSON(t, r, "/api/generate", `{"kind":"image","params":{"prompt":"a lighthouse"}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body genai.SubmitResult
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.TaskID != "task-1" {
		t.Errorf("expected task-1, got %s", body.TaskID)
	}
}

func TestGenerateInlineResult(t *testing.T) {
	r := newGenerateRouter(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		json.NewEncoder(w).Encode(genai.SubmitResult{ResultURL: "https://cdn.example.com/now.png"})
	}))

	// wait is ignored when the task completed inline
	w := postJSON(t, r, "/api/generate", `{"kind":"image","wait":true}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body genai.SubmitResult
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.ResultURL != "https://cdn.example.com/now.png" {
		t.Errorf("unexpected result url: %s", body.ResultURL)
	}
}

func TestGenerateUpstreamFailure(t *testing.T) {
	r := newGenerateRouter(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		http.Error(w, "model offline", http.StatusServiceUnavailable)
	}))

	w := postJSON(t, r, "/api/generate", `{"kind":"speech"}`)

	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
}

func TestGenerateValidation(t *testing.T) {
	r := newGenerateRouter(t, http.NotFoundHandler())

	w := postJSON(t, r, "/api/generate", `{"params":{}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing kind, got %d", w.Code)
	}
}

func TestGenerateNotConfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewGenerateHandler(nil, model.ErrAPIKeyRequired).RegisterRoutes(r.Group("/api"))

	for _, path := range []string{"/api/generate", "/api/caption"} {
		w := postJSON(t, r, path, `{"kind":"image","image_url":"https://x/y.png"}`)
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s: expected 503, got %d", path, w.Code)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if resp.Error.Code != "NOT_CONFIGURED" {
			t.Errorf("%s: expected NOT_CONFIGURED, got %s", path, resp.Error.Code)
		}
	}
}

func TestCaptionEndpoint(t *testing.T) {
	r := newGenerateRouter(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/v1/image_caption" {
			t.Errorf("unexpected upstream path: %s", req.URL.Path)
		}
		json.NewEncoder(w).Encode(genai.CaptionResult{Caption: "a harbor at dusk"})
	}))

	w := postJSON(t, r, "/api/caption", `{"image_url":"https://cdn.example.com/h.png"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "a harbor at dusk") {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}
