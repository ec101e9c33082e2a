// Package search provides the token-overlap similarity used to detect
// duplicate bullets.
package search

import (
	"sort"
	"strings"
	"unicode"

	"github.com/jonathan-kellerai/cass-memory-system-sub003/internal/types"
)

// Comparator scores how alike two texts are, in [0, 1].
// Embedding-backed similarity plugs in here.
type Comparator interface {
	Similarity(a, b string) float64
}

// TokenComparator is the default Comparator: Jaccard over Tokenize output.
type TokenComparator struct{}

// Similarity implements Comparator.
func (TokenComparator) Similarity(a, b string) float64 {
	return Jaccard(a, b)
}

// ComparatorFunc adapts a plain function to a Comparator.
type ComparatorFunc func(a, b string) float64

// Similarity implements Comparator.
func (f ComparatorFunc) Similarity(a, b string) float64 { return f(a, b) }

// isTokenSeparator returns true for characters that split words during tokenization.
func isTokenSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_'
}

// Tokenize lowercases text, splits it into words and drops tokens shorter
// than two runes. Duplicates are removed, order preserved.
func Tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), isTokenSeparator)
	result := make([]string, 0, len(words))
	seen := make(map[string]bool, len(words))
	for _, w := range words {
		if len([]rune(w)) < 2 || seen[w] {
			continue
		}
		seen[w] = true
		result = append(result, w)
	}
	return result
}

// Jaccard returns |A∩B| / |A∪B| over the token sets of a and b.
// Two texts without tokens are identical only if the strings are equal.
func Jaccard(a, b string) float64 {
	ta, tb := Tokenize(a), Tokenize(b)
	if len(ta) == 0 && len(tb) == 0 {
		if strings.TrimSpace(strings.ToLower(a)) == strings.TrimSpace(strings.ToLower(b)) {
			return 1
		}
		return 0
	}

	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}
	inter := 0
	for _, t := range tb {
		if set[t] {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	return float64(inter) / float64(union)
}

// Max returns the highest similarity between text and any candidate, and
// the candidate's index. With no candidates it returns (0, -1).
func Max(c Comparator, text string, candidates []string) (float64, int) {
	if c == nil {
		c = TokenComparator{}
	}
	best, idx := 0.0, -1
	for i, cand := range candidates {
		if s := c.Similarity(text, cand); idx < 0 || s > best {
			best, idx = s, i
		}
	}
	return best, idx
}

// Match is a bullet that resembles a query text.
type Match struct {
	Bullet     *types.Bullet `json:"bullet" yaml:"bullet"`
	Similarity float64       `json:"similarity" yaml:"similarity"`
}

// FindSimilar returns live bullets whose similarity to text is at least
// threshold, most similar first. Ties keep playbook order.
func FindSimilar(c Comparator, bullets []*types.Bullet, text string, threshold float64) []Match {
	if c == nil {
		c = TokenComparator{}
	}
	var matches []Match
	for _, b := range bullets {
		if !b.IsLive() {
			continue
		}
		if s := c.Similarity(text, b.Content); s >= threshold {
			matches = append(matches, Match{Bullet: b, Similarity: s})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	return matches
}
