package models

import (
	"fmt"
	"strings"
)

// MaxQuestionLength bounds the question text accepted at the boundary.
const MaxQuestionLength = 4000

// ValidationError reports input rejected before any work is done.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// AskRequest is a question posted to the boundary.
type AskRequest struct {
	Question string `json:"question"`
	Stream   bool   `json:"stream,omitempty"`
}

// Validate trims the question and rejects empty or oversized input.
func (r *AskRequest) Validate() error {
	r.Question = strings.TrimSpace(r.Question)
	if r.Question == "" {
		return &ValidationError{Message: "question cannot be empty"}
	}
	if len(r.Question) > MaxQuestionLength {
		return &ValidationError{Message: fmt.Sprintf("question exceeds %d bytes", MaxQuestionLength)}
	}
	return nil
}

// PassageQuery is a keyword search over the active corpus.
type PassageQuery struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// Validate ensures the query is non-empty and normalizes the limit.
func (q *PassageQuery) Validate() error {
	q.Query = strings.TrimSpace(q.Query)
	if q.Query == "" {
		return &ValidationError{Message: "query cannot be empty"}
	}
	if q.Limit <= 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}
