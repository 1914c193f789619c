package keyword

import (
	"sort"
	"strings"
)

// Suggestion is a dictionary term close to a query term.
type Suggestion struct {
	Term      string
	Distance  int
	Frequency int
	Score     float64
}

// Speller suggests corrections for query terms using the corpus term dictionary.
type Speller struct {
	terms       map[string]int
	maxDistance int
	minFreq     int
}

// NewSpeller builds a speller over terms (term -> document frequency).
func NewSpeller(terms map[string]int) *Speller {
	if terms == nil {
		terms = map[string]int{}
	}
	return &Speller{terms: terms, maxDistance: 2, minFreq: 1}
}

// Known reports whether term appears in the corpus.
func (s *Speller) Known(term string) bool {
	_, ok := s.terms[strings.ToLower(term)]
	return ok
}

// Suggest returns up to n dictionary terms within the edit budget of term, best first.
// Closer terms rank higher; frequency breaks ties in closeness.
func (s *Speller) Suggest(term string, n int) []Suggestion {
	term = strings.ToLower(term)
	var out []Suggestion
	for cand, freq := range s.terms {
		if cand == term || freq < s.minFreq {
			continue
		}
		if abs(len([]rune(cand))-len([]rune(term))) > s.maxDistance {
			continue
		}
		d := editDistance(term, cand)
		if d > s.maxDistance {
			continue
		}
		out = append(out, Suggestion{
			Term:      cand,
			Distance:  d,
			Frequency: freq,
			Score:     float64(freq) / float64(d+1),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Term < out[j].Term
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Correct replaces each unknown term of query with its best suggestion. ok is false when no
// term changed.
func (s *Speller) Correct(query string) (corrected string, ok bool) {
	terms := tokenizeQuery(query)
	for i, term := range terms {
		if s.Known(term) {
			continue
		}
		if best := s.Suggest(term, 1); len(best) > 0 {
			terms[i] = best[0].Term
			ok = true
		}
	}
	return strings.Join(terms, " "), ok
}

// editDistance is the optimal string alignment distance between a and b: insertions,
// deletions, substitutions and adjacent transpositions each cost one.
func editDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	d := make([][]int, len(ra)+1)
	for i := range d {
		d[i] = make([]int, len(rb)+1)
		d[i][0] = i
	}
	for j := range d[0] {
		d[0][j] = j
	}
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			d[i][j] = min(d[i-1][j]+1, d[i][j-1]+1, d[i-1][j-1]+cost)
			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				d[i][j] = min(d[i][j], d[i-2][j-2]+1)
			}
		}
	}
	return d[len(ra)][len(rb)]
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
