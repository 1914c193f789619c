package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOllamaEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req ollamaEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "nomic-embed-text" || req.Prompt != "hello" {
			t.Errorf("unexpected body: %+v", req)
		}
		_, _ = w.Write([]byte(`{"embedding":[0.5,-1,2]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL+"/", "nomic-embed-text", 3, time.Second)
	defer e.Close()
	v, err := e.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(v) != 3 || v[0] != 0.5 || v[1] != -1 || v[2] != 2 {
		t.Errorf("Embed = %v", v)
	}
}

func TestOllamaEmbedder_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "missing", 0, time.Second)
	_, err := e.Embed(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "status 404") || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOllamaEmbedder_DimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[1,2]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m", 768, time.Second)
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestOllamaEmbedder_EmptyEmbedding(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[]}`))
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL, "m", 0, time.Second)
	if _, err := e.Embed(context.Background(), "x"); err == nil {
		t.Error("expected error for empty embedding")
	}
}
