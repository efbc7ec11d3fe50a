package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/id-photo/pkg/client"
)

const photo = "data:image/jpeg;base64,/9j/4AAQSkZJRg=="

func TestNewClient(t *testing.T) {
	if _, err := NewClient("", nil); err != nil {
		t.Errorf("Expected default URL to work, got %v", err)
	}
	if _, err := NewClient("localhost", nil); err == nil {
		t.Error("Expected error for URL without scheme")
	}
	if _, err := NewClient("http://localhost:11434/api/chat", nil); err != nil {
		t.Errorf("Expected path to be ignored, got %v", err)
	}
}

func TestTransformImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req api.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("invalid body: %v", err)
			return
		}
		if req.Model != "qwen2.5vl" || len(req.Messages) != 1 || len(req.Messages[0].Images) != 1 {
			t.Errorf("unexpected request %+v", req)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Write([]byte(`{"model":"qwen2.5vl","message":{"role":"assistant","content":"data:image/png;base64,iVBORw0KGgo="},"done":true}` + "\n"))
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	got, err := c.TransformImage(context.Background(), client.Request{ImageDataURL: photo, Prompt: "white background", Model: "qwen2.5vl"})
	if err != nil {
		t.Fatalf("TransformImage failed: %v", err)
	}
	if got != "data:image/png;base64,iVBORw0KGgo=" {
		t.Errorf("unexpected data url %q", got)
	}
}

func TestTransformImageNoImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"m","message":{"role":"assistant","content":"A person in front of a wall."},"done":true}` + "\n"))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, srv.Client())
	_, err := c.TransformImage(context.Background(), client.Request{ImageDataURL: photo, Prompt: "p", Model: "m"})
	if !errors.Is(err, client.ErrNoImage) {
		t.Errorf("Expected ErrNoImage, got %v", err)
	}
}

func TestTransformImageServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"server busy"}` + "\n"))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, srv.Client())
	_, err := c.TransformImage(context.Background(), client.Request{ImageDataURL: photo, Prompt: "p", Model: "m"})
	if !errors.Is(err, client.ErrUpstream) {
		t.Errorf("Expected ErrUpstream, got %v", err)
	}
}

func TestTransformImageBadInput(t *testing.T) {
	c, _ := NewClient(DefaultURL, nil)
	if _, err := c.TransformImage(context.Background(), client.Request{ImageDataURL: "%%%"}); err == nil {
		t.Error("Expected error for invalid image payload")
	}
}
