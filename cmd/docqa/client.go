package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hyperjump/docqa/internal/models"
)

// apiClient talks to a running docqa server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{base: strings.TrimRight(base, "/"), http: &http.Client{}}
}

type apiError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// answerSources is the payload of the "sources" stream event.
type answerSources struct {
	Mode            string            `json:"mode"`
	SourceDocuments []models.Document `json:"sourceDocuments"`
}

func (c *apiClient) do(req *http.Request, want int, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var e apiError
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func (c *apiClient) upload(ctx context.Context, path string) (*models.IngestResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/upload", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var res models.IngestResult
	if err := c.do(req, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *apiClient) ask(ctx context.Context, question string) (*models.AnswerResponse, error) {
	req, err := c.askRequest(ctx, question, false)
	if err != nil {
		return nil, err
	}
	var res models.AnswerResponse
	if err := c.do(req, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// askStream posts question with streaming on and calls onToken for every fragment. The returned
// sources arrive before the first token.
func (c *apiClient) askStream(ctx context.Context, question string, onToken func(string)) (*answerSources, error) {
	req, err := c.askRequest(ctx, question, true)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	sources := &answerSources{}
	err = readEvents(resp.Body, func(event string, data []byte) (bool, error) {
		switch event {
		case "sources":
			return false, json.Unmarshal(data, sources)
		case "token":
			var t struct {
				Text string `json:"text"`
			}
			if err := json.Unmarshal(data, &t); err != nil {
				return false, err
			}
			onToken(t.Text)
			return false, nil
		case "error":
			var e apiError
			_ = json.Unmarshal(data, &e)
			return true, fmt.Errorf("answer failed: %s", e.Error)
		case "done":
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return sources, ctx.Err()
		}
		return sources, err
	}
	return sources, nil
}

// readEvents parses a server-sent event stream and hands each event to fn until fn reports done.
func readEvents(r io.Reader, fn func(event string, data []byte) (done bool, err error)) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var event string
	var data bytes.Buffer
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if event == "" && data.Len() == 0 {
				continue
			}
			done, err := fn(event, data.Bytes())
			if err != nil || done {
				return err
			}
			event = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil {
		return err
	}
	return errors.New("stream ended before completion")
}

func (c *apiClient) askRequest(ctx context.Context, question string, stream bool) (*http.Request, error) {
	body, err := json.Marshal(models.AskRequest{Question: question, Stream: stream})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/api/ask", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *apiClient) status(ctx context.Context) (*models.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/status", nil)
	if err != nil {
		return nil, err
	}
	var s models.Status
	if err := c.do(req, http.StatusOK, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *apiClient) search(ctx context.Context, query string, limit int, fuzzy, semantic bool) (*models.PassageResult, error) {
	v := url.Values{}
	v.Set("q", query)
	v.Set("limit", strconv.Itoa(limit))
	if fuzzy {
		v.Set("fuzzy", "true")
	}
	if semantic {
		v.Set("semantic", "true")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/api/search?"+v.Encode(), nil)
	if err != nil {
		return nil, err
	}
	var res models.PassageResult
	if err := c.do(req, http.StatusOK, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *apiClient) clear(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.base+"/api/corpus", nil)
	if err != nil {
		return err
	}
	return c.do(req, http.StatusOK, nil)
}
