package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/pixelle-ai/mcp-broker/internal/protocol"
	"github.com/pixelle-ai/mcp-broker/internal/session"
)

func newMessageRouter(registry *session.Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewMessageHandler(registry).RegisterRoutes(r.Group("/api"))
	return r
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// receiveEnvelope reads one queued frame off the session's outbound channel.
func receiveEnvelope(t *testing.T, s *session.Session) protocol.Envelope {
	t.Helper()
	select {
	case data, ok := <-s.SendChan():
		if !ok {
			t.Fatal("send channel closed")
		}
		e, err := protocol.Decode(data)
		if err != nil {
			t.Fatalf("queued frame is not a valid envelope: %v", err)
		}
		return e
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for envelope")
		return protocol.Envelope{}
	}
}

func TestSendMessage(t *testing.T) {
	registry := session.NewRegistry(16, zerolog.Nop())
	s := registry.Register(nil)
	r := newMessageRouter(registry)

	w := postJSON(t, r, "/api/send_message", `{"client_id":"`+s.ID()+`","content":"from the api"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	e := receiveEnvelope(t, s)
	if e.Type != protocol.MessageTypeChatMessage {
		t.Errorf("expected chat_message, got %s", e.Type)
	}
	if content, _ := e.StringField("content"); content != "from the api" {
		t.Errorf("unexpected content: %s", content)
	}
	if fromAPI, ok := e.Data["from_api"].(bool); !ok || !fromAPI {
		t.Error("expected from_api flag set")
	}
}

func TestSendMessageUnknownClient(t *testing.T) {
	r := newMessageRouter(session.NewRegistry(16, zerolog.Nop()))

	w := postJSON(t, r, "/api/send_message", `{"client_id":"ghost","content":"hi"}`)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Error.Code != "CLIENT_NOT_FOUND" {
		t.Errorf("expected CLIENT_NOT_FOUND, got %s", resp.Error.Code)
	}
}

func TestSendMessageValidation(t *testing.T) {
	registry := session.NewRegistry(16, zerolog.Nop())
	r := newMessageRouter(registry)

	for _, body := range []string{`{}`, `{"client_id":"x"}`, `{"content":"y"}`, `not json`} {
		w := postJSON(t, r, "/api/send_message", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: expected 400, got %d", body, w.Code)
		}
	}
}

func TestCallTool(t *testing.T) {
	registry := session.NewRegistry(16, zerolog.Nop())
	s := registry.Register(nil)
	r := newMessageRouter(registry)

	w := postJSON(t, r, "/api/call_tool", `{"client_id":"`+s.ID()+`","tool_name":"search","params":{"q":"go"}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	e := receiveEnvelope(t, s)
	if e.Type != protocol.MessageTypeToolCall {
		t.Errorf("expected tool_call, got %s", e.Type)
	}
	if name, _ := e.StringField("tool_name"); name != "search" {
		t.Errorf("expected tool_name search, got %s", name)
	}
	if params, ok := e.MapField("params"); !ok || params["q"] != "go" {
		t.Errorf("unexpected params: %v", params)
	}
}

func TestCallToolOmittedParams(t *testing.T) {
	registry := session.NewRegistry(16, zerolog.Nop())
	s := registry.Register(nil)
	r := newMessageRouter(registry)

	w := postJSON(t, r, "/api/call_tool", `{"client_id":"`+s.ID()+`","tool_name":"noop"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	e := receiveEnvelope(t, s)
	if params, ok := e.MapField("params"); !ok || len(params) != 0 {
		t.Errorf("expected empty params object, got %v (ok=%v)", params, ok)
	}
}

func TestBroadcastEndpoint(t *testing.T) {
	registry := session.NewRegistry(16, zerolog.Nop())
	s1 := registry.Register(nil)
	s2 := registry.Register(nil)
	r := newMessageRouter(registry)

	w := postJSON(t, r, "/api/broadcast", `{"message_type":"notice","data":{"text":"maintenance at noon"}}`)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["delivered"] != float64(2) {
		t.Errorf("expected delivered=2, got %v", body["delivered"])
	}

	for _, s := range []*session.Session{s1, s2} {
		e := receiveEnvelope(t, s)
		if e.Type != "notice" {
			t.Errorf("expected type notice, got %s", e.Type)
		}
		if text, _ := e.StringField("text"); text != "maintenance at noon" {
			t.Errorf("unexpected text: %s", text)
		}
	}
}
