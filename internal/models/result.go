package models

// ScoredDocument is a retrieved chunk with its cosine similarity to the query.
type ScoredDocument struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Passage is a search hit against the active corpus.
type Passage struct {
	ChunkIndex int     `json:"chunk_index"`
	Page       int     `json:"page,omitempty"`
	Score      float64 `json:"score"`
	// KeywordScore and SemanticScore are the fused components of Score in hybrid search.
	KeywordScore  float64 `json:"keyword_score,omitempty"`
	SemanticScore float64 `json:"semantic_score,omitempty"`
	Content       string  `json:"content"`
	Snippet       string  `json:"snippet,omitempty"`
}

// PassageResult is the outcome of a keyword search. Suggestion holds a spelling-corrected
// query when nothing matched and a close alternative exists.
type PassageResult struct {
	Query      string    `json:"query"`
	Passages   []Passage `json:"passages"`
	Suggestion string    `json:"suggestion,omitempty"`
}

// AnswerResponse is the buffered answer returned by the boundary.
type AnswerResponse struct {
	Success         bool       `json:"success"`
	Answer          string     `json:"answer"`
	Mode            string     `json:"mode"`
	SourceDocuments []Document `json:"sourceDocuments"`
}

// QuizQuestion is one multiple-choice question produced in quiz mode.
// AnswerIndex travels as "answer", the key the quiz prompt asks the model for.
type QuizQuestion struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	AnswerIndex int      `json:"answer"`
	Explanation string   `json:"explanation"`
}
