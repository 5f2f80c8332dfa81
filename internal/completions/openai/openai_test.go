package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openlot/openlot/core/internal/completions"
	"github.com/openlot/openlot/core/internal/model"
)

func TestComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("auth = %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.Model != "gpt-test" || len(req.Messages) != 2 {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "Try the Corolla."}},
			},
		})
	}))
	defer srv.Close()

	p := New(srv.URL, "sk-test", "gpt-test", 5*time.Second)
	out, err := p.Complete(context.Background(), []completions.Message{
		{Role: completions.RoleSystem, Content: "You help people buy cars."},
		{Role: completions.RoleUser, Content: "cheap reliable sedan"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if out != "Try the Corolla." {
		t.Fatalf("out = %q", out)
	}
}

func TestComplete_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := New(srv.URL, "", "gpt-test", 5*time.Second)
	_, err := p.Complete(context.Background(), []completions.Message{{Role: completions.RoleUser, Content: "hi"}})
	if !errors.Is(err, model.ErrCompletionUnavailable) {
		t.Fatalf("want CompletionUnavailable, got %v", err)
	}
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	p := New(srv.URL, "", "gpt-test", 5*time.Second)
	_, err := p.Complete(context.Background(), []completions.Message{{Role: completions.RoleUser, Content: "hi"}})
	if !errors.Is(err, model.ErrCompletionUnavailable) {
		t.Fatalf("want CompletionUnavailable, got %v", err)
	}
}
