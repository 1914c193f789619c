package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxLineSize bounds one NDJSON line of a streamed response.
const maxLineSize = 1024 * 1024

// OllamaModel calls the Ollama /api/generate endpoint.
type OllamaModel struct {
	client      *http.Client
	baseURL     string
	model       string
	temperature float64
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error,omitempty"`
}

// NewOllamaModel creates a client for model served at baseURL.
func NewOllamaModel(baseURL, model string, temperature float64, timeout time.Duration) *OllamaModel {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &OllamaModel{
		client:      &http.Client{Timeout: timeout},
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		temperature: temperature,
	}
}

// Generate returns the complete response for prompt.
func (m *OllamaModel) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := m.post(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("ollama error: %s", out.Error)
	}
	return out.Response, nil
}

// Stream sends prompt with streaming enabled and forwards each response fragment. The request
// is bound to ctx, so cancelling ctx aborts generation on the server.
func (m *OllamaModel) Stream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	resp, err := m.post(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	chunks := make(chan Chunk, 16)
	go m.readStream(ctx, resp.Body, chunks)
	return chunks, nil
}

func (m *OllamaModel) readStream(ctx context.Context, body io.ReadCloser, chunks chan<- Chunk) {
	defer body.Close()
	defer close(chunks)

	send := func(c Chunk) bool {
		select {
		case chunks <- c:
			return true
		case <-ctx.Done():
			return false
		}
	}

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var part generateResponse
		if err := json.Unmarshal(line, &part); err != nil {
			send(Chunk{Err: fmt.Errorf("decode stream: %w", err)})
			return
		}
		if part.Error != "" {
			send(Chunk{Err: fmt.Errorf("ollama error: %s", part.Error)})
			return
		}
		if part.Response != "" && !send(Chunk{Text: part.Response}) {
			return
		}
		if part.Done {
			return
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		send(Chunk{Err: fmt.Errorf("read stream: %w", err)})
	}
}

func (m *OllamaModel) post(ctx context.Context, prompt string, stream bool) (*http.Response, error) {
	body, err := json.Marshal(generateRequest{
		Model:   m.model,
		Prompt:  prompt,
		Stream:  stream,
		Options: generateOptions{Temperature: m.temperature},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("ollama error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}

// Close releases idle connections.
func (m *OllamaModel) Close() error {
	m.client.CloseIdleConnections()
	return nil
}
