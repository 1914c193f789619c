package llm

import (
	"fmt"

	"github.com/hyperjump/docqa/internal/config"
)

// New builds the language model selected by cfg.Provider.
func New(cfg config.LLMConfig) (LanguageModel, error) {
	switch cfg.Provider {
	case config.ProviderOllama, "":
		return NewOllamaModel(cfg.BaseURL, cfg.Model, cfg.Temperature, cfg.Timeout()), nil
	case config.ProviderMock:
		return &MockModel{Response: "This is a mock answer.", Tokens: []string{"This ", "is ", "a ", "mock ", "answer."}}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s (supported: ollama, mock)", cfg.Provider)
	}
}
