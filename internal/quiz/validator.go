// Package quiz checks model-generated multiple-choice quizzes and repairs answer indices that
// contradict their own explanations.
package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/docqa/internal/models"
	"github.com/hyperjump/docqa/pkg/utils"
)

// ErrMalformedQuiz is returned when the model output is not a JSON array of questions.
var ErrMalformedQuiz = errors.New("malformed quiz")

var (
	codeFence = regexp.MustCompile("(?s)^```[A-Za-z]*\\s*(.*?)\\s*```$")

	// "Option B", "answer (C)", "CORRECT OPTION: B.", "answer is: D", "(A)"
	letterRefs = []*regexp.Regexp{
		regexp.MustCompile(`\b(?i:option|choice|answer)\s+\(?([A-Z])\)?(?:[^A-Za-z0-9]|$)`),
		regexp.MustCompile(`\b(?i:option|choice|answer)(?:\s+is)?\s*:\s*\(?([A-Z])\)?(?:[).,;:!?]|\s*$)`),
		regexp.MustCompile(`\(([A-Z])\)`),
	}
)

// Validator parses quiz output and corrects answer indices.
type Validator struct {
	logger *zap.Logger
}

// NewValidator creates a validator that logs corrections to logger.
func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{logger: utils.OrNop(logger)}
}

// Validate parses raw (optionally wrapped in a markdown code fence) as a JSON array of questions.
// For each question, when exactly one option is corroborated by the explanation and it is not the
// declared answer, the answer index is replaced. The result is re-encoded with two-space
// indentation. Unparseable input yields an error wrapping ErrMalformedQuiz.
func (v *Validator) Validate(raw string) (string, error) {
	body := stripCodeFence(raw)
	if !strings.HasPrefix(body, "[") {
		return "", fmt.Errorf("%w: expected a JSON array", ErrMalformedQuiz)
	}
	var questions []models.QuizQuestion
	if err := json.Unmarshal([]byte(body), &questions); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedQuiz, err)
	}

	for i := range questions {
		v.correct(i, &questions[i])
	}

	out, err := json.MarshalIndent(questions, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode quiz: %w", err)
	}
	return string(out), nil
}

// ValidateOrRaw returns the validated quiz, or raw unchanged when it cannot be parsed.
func (v *Validator) ValidateOrRaw(raw string) string {
	out, err := v.Validate(raw)
	if err != nil {
		v.logger.Warn("Quiz output is not valid JSON, returning raw text", zap.Error(err))
		return raw
	}
	return out
}

func (v *Validator) correct(n int, q *models.QuizQuestion) {
	matches := MatchingOptions(q)
	switch {
	case len(matches) == 1 && matches[0] != q.AnswerIndex:
		v.logger.Info("Corrected quiz answer index",
			zap.Int("question", n),
			zap.Int("declared", q.AnswerIndex),
			zap.Int("corrected", matches[0]))
		q.AnswerIndex = matches[0]
	case len(matches) > 1:
		v.logger.Debug("Explanation matches several options, keeping declared answer",
			zap.Int("question", n),
			zap.Ints("matches", matches),
			zap.Int("declared", q.AnswerIndex))
	}
}

// MatchingOptions returns, in option order, the indices of options the explanation corroborates:
// the option text appears in it (case-insensitive) or it names the option's letter.
func MatchingOptions(q *models.QuizQuestion) []int {
	explanation := strings.ToLower(q.Explanation)
	letters := referencedLetters(q.Explanation)
	var matches []int
	for i, opt := range q.Options {
		text := strings.ToLower(strings.TrimSpace(opt))
		if (text != "" && strings.Contains(explanation, text)) || letters[i] {
			matches = append(matches, i)
		}
	}
	return matches
}

// referencedLetters maps option positions (A=0) named by letter in s.
func referencedLetters(s string) map[int]bool {
	refs := make(map[int]bool)
	for _, re := range letterRefs {
		for _, m := range re.FindAllStringSubmatch(s, -1) {
			refs[int(m[1][0]-'A')] = true
		}
	}
	return refs
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}
