package embedding

import (
	"testing"

	"github.com/hyperjump/docqa/internal/config"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EmbeddingConfig
		want    string
		wantErr bool
	}{
		{"ollama", config.EmbeddingConfig{Provider: "ollama", BaseURL: "http://x", Model: "m"}, "*embedding.OllamaEmbedder", false},
		{"hash", config.EmbeddingConfig{Provider: "hash", Dimensions: 16}, "*embedding.HashEmbedder", false},
		{"cached", config.EmbeddingConfig{Provider: "hash", CacheSize: 10}, "*embedding.CachedEmbedder", false},
		{"limited", config.EmbeddingConfig{Provider: "hash", RequestsPerSecond: 2}, "*embedding.RateLimitedEmbedder", false},
		{"onnx without model falls back", config.EmbeddingConfig{Provider: "onnx", Dimensions: 8}, "*embedding.HashEmbedder", false},
		{"unknown", config.EmbeddingConfig{Provider: "bogus"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := New(tt.cfg, nil)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			defer e.Close()
			if got := typeName(e); got != tt.want {
				t.Errorf("New() = %s, want %s", got, tt.want)
			}
		})
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case *OllamaEmbedder:
		return "*embedding.OllamaEmbedder"
	case *HashEmbedder:
		return "*embedding.HashEmbedder"
	case *CachedEmbedder:
		return "*embedding.CachedEmbedder"
	case *RateLimitedEmbedder:
		return "*embedding.RateLimitedEmbedder"
	default:
		return "unknown"
	}
}
