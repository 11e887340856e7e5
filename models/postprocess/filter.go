// Package postprocess - Confidence filtering and ranking.
package postprocess

import "sort"

// FilterByConfidence keeps candidates whose score is at least threshold.
//
// A score exactly equal to the threshold is kept; NaN scores are dropped.
func FilterByConfidence(candidates []Candidate, threshold float32) []Candidate {
	kept := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= threshold {
			kept = append(kept, c)
		}
	}
	return kept
}

// SortByScore orders candidates by descending score, then by extraction index.
func SortByScore(candidates []Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Index < candidates[j].Index
	})
}

// TopK returns the k highest-scoring candidates in descending score order.
//
// Arguments:
//   - candidates: The candidates; not modified.
//   - k: The cap; k <= 0 keeps everything.
//
// Returns:
//   - []Candidate: A sorted copy of at most k candidates.
func TopK(candidates []Candidate, k int) []Candidate {
	sorted := append([]Candidate(nil), candidates...)
	SortByScore(sorted)
	if k > 0 && len(sorted) > k {
		sorted = sorted[:k]
	}
	return sorted
}
