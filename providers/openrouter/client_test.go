package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aurora-ops/dmbridge/llm"
)

func TestChatRotatesModelOn404(t *testing.T) {
	t.Parallel()
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		models = append(models, req.Model)
		if req.Model == "gone/model" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "ok"}}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", []string{"backup/model"})
	c.sleep = func(context.Context, time.Duration) {}

	res, err := c.Chat(context.Background(), llm.Request{Model: "gone/model"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Text != "ok" {
		t.Fatalf("Chat() text = %q, want ok", res.Text)
	}
	want := []string{"gone/model", "backup/model"}
	if len(models) != len(want) {
		t.Fatalf("models tried = %v, want %v", models, want)
	}
	for i := range want {
		if models[i] != want[i] {
			t.Fatalf("models tried = %v, want %v", models, want)
		}
	}
}

func TestChatRetriesTransientErrors(t *testing.T) {
	t.Parallel()
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": "late"}}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", nil)
	c.sleep = func(context.Context, time.Duration) {}

	res, err := c.Chat(context.Background(), llm.Request{Model: "main/model"})
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if res.Text != "late" {
		t.Fatalf("Chat() text = %q, want late", res.Text)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}
