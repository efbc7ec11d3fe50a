package dashscope

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/menta2k/id-photo/pkg/client"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestNewClient(t *testing.T) {
	if _, err := NewClient("", "", nil); !errors.Is(err, client.ErrUnauthorized) {
		t.Errorf("Expected ErrUnauthorized without key, got %v", err)
	}
	c, err := NewClient("", "sk", nil)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.baseURL != DefaultBaseURL {
		t.Errorf("Expected default base URL, got %s", c.baseURL)
	}
}

func TestTransformImageDownloadsResult(t *testing.T) {
	result := pngBytes(t)
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc(generationPath, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected Authorization %q", got)
		}
		var req GenerationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("invalid body: %v", err)
			return
		}
		if req.Model != DefaultModel {
			t.Errorf("Expected default model, got %s", req.Model)
		}
		content := req.Input.Messages[0].Content
		if len(content) != 2 || content[0].Image == "" || content[1].Text != "blue please" {
			t.Errorf("unexpected content %+v", content)
		}
		if req.Parameters.N != 1 || !req.Parameters.PromptExtend || req.Parameters.Watermark {
			t.Errorf("unexpected parameters %+v", req.Parameters)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"request_id":"r1","output":{"choices":[{"finish_reason":"stop","message":{"role":"assistant","content":[{"image":"` + srv.URL + `/result.png"}]}}]}}`))
	})
	mux.HandleFunc("/result.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(result)
	})

	c, _ := NewClient(srv.URL, "sk-test", srv.Client())
	got, err := c.TransformImage(context.Background(), client.Request{ImageDataURL: "data:image/jpeg;base64,AAAA", Prompt: "blue please"})
	if err != nil {
		t.Fatalf("TransformImage failed: %v", err)
	}
	if !strings.HasPrefix(got, "data:image/png;base64,") {
		t.Errorf("Expected png data url, got %.40s", got)
	}
}

func TestTransformImageErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"code":"InvalidApiKey"}`, client.ErrUnauthorized},
		{"rate limited", http.StatusTooManyRequests, `{}`, client.ErrRateLimited},
		{"server error", http.StatusInternalServerError, `{}`, client.ErrUpstream},
		{"no image", http.StatusOK, `{"output":{"choices":[{"message":{"role":"assistant","content":[{"text":"no"}]}}]}}`, client.ErrNoImage},
	}

	for _, test := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(test.status)
			w.Write([]byte(test.body))
		}))
		c, _ := NewClient(srv.URL, "sk", srv.Client())
		_, err := c.TransformImage(context.Background(), client.Request{ImageDataURL: "data:image/jpeg;base64,AAAA"})
		if !errors.Is(err, test.want) {
			t.Errorf("%s: expected %v, got %v", test.name, test.want, err)
		}
		srv.Close()
	}
}

func TestTransformImageAPICode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"request_id":"r9","code":"DataInspectionFailed","message":"input rejected"}`))
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "sk", srv.Client())
	_, err := c.TransformImage(context.Background(), client.Request{ImageDataURL: "data:image/jpeg;base64,AAAA"})
	if err == nil || !strings.Contains(err.Error(), "DataInspectionFailed") {
		t.Errorf("Expected API code in error, got %v", err)
	}
}
