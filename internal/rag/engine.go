// Package rag answers questions from the active corpus: retrieval, prompt assembly, streamed or
// buffered generation, and quiz post-processing.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/llm"
	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/internal/quiz"
	"github.com/hyperjump/docqa/internal/vector"
	"github.com/hyperjump/docqa/pkg/utils"
)

// DefaultTopK is the number of chunks retrieved as context for a question.
const DefaultTopK = 25

var (
	// ErrEmptyKnowledgeBase is returned when a question arrives before any document was ingested.
	ErrEmptyKnowledgeBase = errors.New("no document has been uploaded yet")
	// ErrCancelled is returned when the caller's context ended at a checkpoint.
	ErrCancelled = errors.New("request cancelled")
)

// Mode selects the prompt and generation style.
type Mode string

const (
	ModeQA   Mode = "qa"
	ModeQuiz Mode = "quiz"
)

// SelectMode returns ModeQuiz when question mentions "quiz" in any case.
func SelectMode(question string) Mode {
	if strings.Contains(strings.ToLower(question), "quiz") {
		return ModeQuiz
	}
	return ModeQA
}

// Answer is the result of AskQuestion. Tokens must be drained or closed by the caller.
type Answer struct {
	Mode    Mode
	Sources []models.ScoredDocument
	Tokens  *TokenStream
}

// SourceDocuments returns the retrieved chunks in rank order.
func (a *Answer) SourceDocuments() []models.Document {
	docs := make([]models.Document, len(a.Sources))
	for i, s := range a.Sources {
		docs[i] = s.Document
	}
	return docs
}

// Engine orchestrates question answering over a Store.
type Engine struct {
	store     *vector.Store
	embedder  vector.Embedder
	model     llm.LanguageModel
	validator *quiz.Validator
	topK      int
	logger    *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithTopK sets the number of retrieved chunks. Non-positive values keep the default.
func WithTopK(k int) EngineOption {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// NewEngine creates an engine reading from store.
func NewEngine(store *vector.Store, embedder vector.Embedder, model llm.LanguageModel, opts ...EngineOption) *Engine {
	e := &Engine{
		store:    store,
		embedder: embedder,
		model:    model,
		topK:     DefaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.OrNop(e.logger)
	e.validator = quiz.NewValidator(e.logger)
	return e
}

// AskQuestion retrieves context for question and starts generation. ctx is the cancellation
// signal: it is checked before retrieval, before the model call and before every fragment.
// In QA mode the answer streams from the model; in quiz mode the full output is awaited,
// validated and returned as a single fragment.
func (e *Engine) AskQuestion(ctx context.Context, question string) (*Answer, error) {
	opID := uuid.New().String()
	mode := SelectMode(question)
	done := utils.StartTimer(e.logger, "ask",
		zap.String("op_id", opID),
		zap.String("mode", string(mode)))

	if ctx.Err() != nil {
		return nil, ErrCancelled
	}
	if e.store.DocumentCount() == 0 {
		return nil, ErrEmptyKnowledgeBase
	}

	sources, err := e.store.Search(ctx, question, e.topK, e.embedder)
	if err != nil {
		switch {
		case errors.Is(err, vector.ErrEmptyStore):
			return nil, ErrEmptyKnowledgeBase
		case ctx.Err() != nil:
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	e.logger.Debug("Retrieved context", zap.String("op_id", opID), zap.Int("chunks", len(sources)))

	if ctx.Err() != nil {
		return nil, ErrCancelled
	}
	contextText := joinContext(sources)

	if mode == ModeQuiz {
		raw, err := e.model.Generate(ctx, QuizPrompt(contextText, question))
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrCancelled
			}
			return nil, fmt.Errorf("failed to generate quiz: %w", err)
		}
		text := e.validator.ValidateOrRaw(raw)
		done("Quiz generated", zap.Int("sources", len(sources)))
		return &Answer{Mode: mode, Sources: sources, Tokens: staticStream(ctx, text)}, nil
	}

	streamCtx, cancel := context.WithCancel(ctx)
	chunks, err := e.model.Stream(streamCtx, QAPrompt(contextText, question))
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("failed to start answer stream: %w", err)
	}
	done("Answer stream started", zap.Int("sources", len(sources)))
	return &Answer{Mode: mode, Sources: sources, Tokens: newTokenStream(streamCtx, cancel, chunks)}, nil
}

// Ask answers question and waits for the full text.
func (e *Engine) Ask(ctx context.Context, question string) (*models.AnswerResponse, error) {
	ans, err := e.AskQuestion(ctx, question)
	if err != nil {
		return nil, err
	}
	defer ans.Tokens.Close()
	text, err := ans.Tokens.Collect()
	if err != nil {
		return nil, err
	}
	return &models.AnswerResponse{
		Success:         true,
		Answer:          text,
		Mode:            string(ans.Mode),
		SourceDocuments: ans.SourceDocuments(),
	}, nil
}

// Status reports whether a corpus is loaded and describes it.
func (e *Engine) Status() models.Status {
	c := e.store.Snapshot()
	status := models.Status{Ready: c.Len() > 0, DocumentCount: c.Len()}
	if c.Metadata != nil {
		m := *c.Metadata
		status.Metadata = &m
	}
	return status
}

func joinContext(sources []models.ScoredDocument) string {
	parts := make([]string, len(sources))
	for i, s := range sources {
		parts[i] = s.Document.Content
	}
	return strings.Join(parts, "\n\n")
}
