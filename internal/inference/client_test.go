package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestChat(t *testing.T) {
	var gotReq struct {
		Model    string    `json:"model"`
		Messages []Message `json:"messages"`
		Stream   bool      `json:"stream"`
		Format   *Schema   `json:"format"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": `{"table": "ercot_settlement_prices"}`},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	schema := &Schema{
		Type:       "object",
		Properties: map[string]SchemaProperty{"table": {Type: "string"}},
		Required:   []string{"table"},
	}
	got, err := c.Chat(context.Background(), "test-model", []Message{{Role: "user", Content: "pick"}}, schema)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if got != `{"table": "ercot_settlement_prices"}` {
		t.Errorf("content = %q", got)
	}

	if gotReq.Model != "test-model" || gotReq.Stream {
		t.Errorf("request = %+v", gotReq)
	}
	if gotReq.Format == nil || gotReq.Format.Type != "object" {
		t.Errorf("schema not forwarded: %+v", gotReq.Format)
	}
}

func TestChatSendsBearerWhenKeySet(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"message": map[string]string{"content": "ok"}})
	}))
	defer srv.Close()

	c := New(srv.URL, "sk-test")
	if _, err := c.Chat(context.Background(), "m", []Message{{Role: "user", Content: "x"}}, nil); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("auth header = %q", gotAuth)
	}
}

func TestChatNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if _, err := c.Chat(context.Background(), "m", nil, nil); err == nil {
		t.Error("expected error for 404")
	}
}

func TestIsRunning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/version" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))

	c := New(srv.URL, "")
	if !c.IsRunning(context.Background()) {
		t.Error("IsRunning = false against healthy server")
	}

	srv.Close()
	if c.IsRunning(context.Background()) {
		t.Error("IsRunning = true against closed server")
	}
}
