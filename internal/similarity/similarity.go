// Package similarity computes normalized pairwise similarity between
// candidate texts. Scores are in [0, 1], symmetric, and 1 for identical
// inputs; the consensus filter consumes them as agreement evidence.
package similarity

import (
	"github.com/antzucaro/matchr"
)

// Score returns 1 minus the normalized Levenshtein distance between a and
// b. Candidate counts are small (typically 3), so the quadratic edit
// distance cost is irrelevant.
func Score(a, b string) float64 {
	if a == b {
		return 1.0
	}

	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 1.0
	}

	s := 1.0 - float64(matchr.Levenshtein(a, b))/float64(maxLen)
	if s < 0 {
		return 0
	}
	return s
}

// Matrix is a symmetric candidate-by-candidate similarity matrix with a
// unit diagonal.
type Matrix struct {
	n    int
	vals [][]float64
}

// NewMatrix computes the full pairwise matrix for texts. Only the upper
// triangle is computed; the lower is mirrored.
func NewMatrix(texts []string) Matrix {
	n := len(texts)
	vals := make([][]float64, n)
	for i := range vals {
		vals[i] = make([]float64, n)
		vals[i][i] = 1.0
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			s := Score(texts[i], texts[j])
			vals[i][j] = s
			vals[j][i] = s
		}
	}
	return Matrix{n: n, vals: vals}
}

// Len returns the number of candidates in the matrix.
func (m Matrix) Len() int { return m.n }

// At returns the similarity between candidates i and j.
func (m Matrix) At(i, j int) float64 { return m.vals[i][j] }

// MeanOthers returns the mean similarity of candidate i to every other
// candidate: the consensus coefficient. For a single-candidate matrix it
// returns 1, matching the unverified-by-peers convention.
func (m Matrix) MeanOthers(i int) float64 {
	if m.n <= 1 {
		return 1.0
	}
	total := 0.0
	for j := 0; j < m.n; j++ {
		if j == i {
			continue
		}
		total += m.vals[i][j]
	}
	return total / float64(m.n-1)
}
