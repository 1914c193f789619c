package search

import (
	"sort"

	"github.com/hyperjump/docqa/internal/models"
)

// FusedResult holds a chunk index and its fused keyword/semantic scores.
type FusedResult struct {
	ChunkIndex    int
	Score         float64
	KeywordScore  float64
	SemanticScore float64
}

// NormalizeKeywordScores maps chunk index to BM25 score divided by the best score, so the top
// keyword hit scores 1.
func NormalizeKeywordScores(passages []models.Passage) map[int]float64 {
	normalized := make(map[int]float64, len(passages))
	if len(passages) == 0 {
		return normalized
	}
	maxScore := passages[0].Score
	for _, p := range passages {
		if p.Score > maxScore {
			maxScore = p.Score
		}
	}
	for _, p := range passages {
		if maxScore > 0 {
			normalized[p.ChunkIndex] = p.Score / maxScore
		} else {
			normalized[p.ChunkIndex] = 0
		}
	}
	return normalized
}

// SemanticScores maps chunk index to cosine similarity. Non-positive similarities carry no signal
// and are dropped.
func SemanticScores(scored []models.ScoredDocument) map[int]float64 {
	out := make(map[int]float64, len(scored))
	for _, sd := range scored {
		idx, ok := sd.Document.MetaInt(models.MetaChunkIndex)
		if !ok || sd.Score <= 0 {
			continue
		}
		if s, seen := out[idx]; !seen || sd.Score > s {
			out[idx] = sd.Score
		}
	}
	return out
}

// Fuse merges keyword and semantic score maps with weights. Results are sorted by fused score,
// then by chunk index so ties read in document order.
func Fuse(keywordScores, semanticScores map[int]float64, keywordWeight, semanticWeight float64) []FusedResult {
	scoreMap := make(map[int]*FusedResult, len(keywordScores)+len(semanticScores))
	for idx, score := range keywordScores {
		scoreMap[idx] = &FusedResult{ChunkIndex: idx, KeywordScore: score}
	}
	for idx, score := range semanticScores {
		if r, ok := scoreMap[idx]; ok {
			r.SemanticScore = score
		} else {
			scoreMap[idx] = &FusedResult{ChunkIndex: idx, SemanticScore: score}
		}
	}
	results := make([]FusedResult, 0, len(scoreMap))
	for _, r := range scoreMap {
		r.Score = keywordWeight*r.KeywordScore + semanticWeight*r.SemanticScore
		results = append(results, *r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
	return results
}
