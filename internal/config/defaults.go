package config

// Provider names accepted by embedding.provider and llm.provider.
const (
	ProviderOllama = "ollama"
	ProviderONNX   = "onnx"
	ProviderHash   = "hash"
	ProviderMock   = "mock"
)

const defaultOllamaURL = "http://localhost:11434"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3001
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 50
	}
	if cfg.Server.Burst == 0 {
		cfg.Server.Burst = 10
	}
	if cfg.Storage.SnapshotPath == "" {
		cfg.Storage.SnapshotPath = "./vector_store.json"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = ProviderOllama
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = defaultOllamaURL
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "nomic-embed-text"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 768
	}
	if cfg.Embedding.TimeoutSeconds == 0 {
		cfg.Embedding.TimeoutSeconds = 60
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = ProviderOllama
	}
	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = defaultOllamaURL
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "llama3.2:3b"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 300
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.2
	}

	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 300
	}
	if cfg.Ingest.ChunkOverlap >= cfg.Ingest.ChunkSize {
		cfg.Ingest.ChunkOverlap = cfg.Ingest.ChunkSize / 4
	}
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 25
	}
	if cfg.Query.KeywordWeight == 0 && cfg.Query.SemanticWeight == 0 {
		cfg.Query.KeywordWeight = 0.5
		cfg.Query.SemanticWeight = 0.5
	}

	if cfg.Watch.Patterns == nil {
		cfg.Watch.Patterns = []string{"**/*.pdf", "**/*.txt", "**/*.md", "**/*.docx", "**/*.xlsx", "**/*.pptx"}
	}
}
