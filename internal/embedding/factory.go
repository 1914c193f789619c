package embedding

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/config"
	"github.com/hyperjump/docqa/pkg/utils"
)

// New builds the embedder selected by cfg.Provider and applies the configured wrappers:
// a rate limiter when requests_per_second is set and an LRU cache when cache_size is positive.
// The onnx provider falls back to the hash embedder when the runtime or model is unavailable.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	logger = utils.OrNop(logger)

	var base Embedder
	switch cfg.Provider {
	case config.ProviderOllama, "":
		base = NewOllamaEmbedder(cfg.BaseURL, cfg.Model, cfg.Dimensions, cfg.Timeout())
	case config.ProviderONNX:
		onnx, err := NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, using hash embedder", zap.Error(err))
			base = NewHashEmbedder(cfg.Dimensions)
		} else {
			base = onnx
		}
	case config.ProviderHash, config.ProviderMock:
		base = NewHashEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: ollama, onnx, hash)", cfg.Provider)
	}

	if cfg.RequestsPerSecond > 0 {
		base = NewRateLimitedEmbedder(base, cfg.RequestsPerSecond, 1)
	}
	if cfg.CacheSize > 0 {
		base = NewCachedEmbedder(base, cfg.CacheSize)
	}
	return base, nil
}
