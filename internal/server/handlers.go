package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/internal/rag"
	"github.com/hyperjump/docqa/internal/search"
)

// uploadFields are the multipart fields accepted for the document, in order of preference.
var uploadFields = []string{"pdf", "file"}

type uploadResponse struct {
	Success    bool   `json:"success"`
	Filename   string `json:"filename"`
	PageCount  int    `json:"pageCount"`
	ChunkCount int    `json:"chunkCount"`
}

type sourcesEvent struct {
	Mode            string            `json:"mode"`
	SourceDocuments []models.Document `json:"sourceDocuments"`
}

type tokenEvent struct {
	Text string `json:"text"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d MB", s.config.MaxUploadMB))
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := formFile(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "no file uploaded")
		return
	}
	defer file.Close()
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	filename := filepath.Base(header.Filename)
	s.logger.Debug("upload request", zap.String("filename", filename), zap.Int("bytes", len(content)))

	// Ingestion replaces the corpus; finish it even if the client goes away.
	res, err := s.indexer.ProcessDocument(context.WithoutCancel(r.Context()), content, filename)
	if err != nil {
		s.logger.Error("ingestion failed", zap.String("filename", filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "failed to process document: "+err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, uploadResponse{
		Success:    true,
		Filename:   res.Filename,
		PageCount:  res.PageCount,
		ChunkCount: res.ChunkCount,
	})
}

func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	var lastErr error
	for _, field := range uploadFields {
		file, header, err := r.FormFile(field)
		if err == nil {
			return file, header, nil
		}
		lastErr = err
	}
	return nil, nil, lastErr
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		req.Stream = true
	}

	ans, err := s.engine.AskQuestion(r.Context(), req.Question)
	if err != nil {
		s.respondAskError(w, err)
		return
	}
	defer ans.Tokens.Close()

	if req.Stream {
		s.streamAnswer(w, ans)
		return
	}
	text, err := ans.Tokens.Collect()
	if err != nil {
		s.respondAskError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, models.AnswerResponse{
		Success:         true,
		Answer:          text,
		Mode:            string(ans.Mode),
		SourceDocuments: ans.SourceDocuments(),
	})
}

// streamAnswer writes the answer as server-sent events: one "sources" event, a "token" event per
// fragment, then "done", or "error" when the model fails. A cancelled request just ends.
func (s *Server) streamAnswer(w http.ResponseWriter, ans *rag.Answer) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	send := func(event string, data interface{}) bool {
		if err := writeEvent(w, event, data); err != nil {
			s.logger.Debug("SSE write failed", zap.Error(err))
			return false
		}
		flusher.Flush()
		return true
	}

	if !send("sources", sourcesEvent{Mode: string(ans.Mode), SourceDocuments: ans.SourceDocuments()}) {
		return
	}
	for {
		fragment, ok := ans.Tokens.Next()
		if !ok {
			break
		}
		if !send("token", tokenEvent{Text: fragment}) {
			return
		}
	}
	switch {
	case ans.Tokens.Err() != nil:
		s.logger.Error("answer stream failed", zap.Error(ans.Tokens.Err()))
		send("error", map[string]interface{}{"success": false, "error": ans.Tokens.Err().Error()})
	case ans.Tokens.Cancelled():
		s.logger.Debug("answer stream cancelled by client")
	default:
		send("done", map[string]bool{"success": true})
	}
}

func writeEvent(w io.Writer, event string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}

func (s *Server) respondAskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, rag.ErrCancelled):
		s.logger.Debug("ask cancelled by client")
	case errors.Is(err, rag.ErrEmptyKnowledgeBase):
		s.respondError(w, http.StatusConflict, "please upload a document first")
	default:
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.indexer.Clear(r.Context()); err != nil {
		s.logger.Error("clear failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.searcher == nil {
		s.respondError(w, http.StatusNotImplemented, "passage search not enabled")
		return
	}
	params := r.URL.Query()
	q := models.PassageQuery{Query: params.Get("q")}
	if l := params.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		q.Limit = n
	}
	opts := search.Options{
		Fuzzy:    params.Get("fuzzy") == "true",
		Semantic: params.Get("semantic") == "true",
	}
	res, err := s.searcher.Search(r.Context(), q, opts)
	if err != nil {
		var invalid *models.ValidationError
		if errors.As(err, &invalid) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) maxUploadBytes() int64 {
	mb := s.config.MaxUploadMB
	if mb <= 0 {
		mb = 50
	}
	return int64(mb) << 20
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]interface{}{"success": false, "error": message})
}
