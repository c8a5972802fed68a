package retrieval

import (
	"math"
)

// MMRLambda is the Maximal Marginal Relevance trade-off weight: 1.0 is pure
// relevance to the query, 0.0 is pure diversity. Tunable; the default leans
// toward relevance.
const MMRLambda = 0.7

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched or zero-length vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// MMR greedily selects up to k candidate indices maximizing
//
//	lambda*sim(query, i) - (1-lambda)*max_{j in selected} sim(i, j)
//
// so the selection stays relevant to the query while penalizing redundancy.
// The first pick is always the single most query-similar candidate. Equal
// scores prefer the lower pool index, i.e. the candidate ranked earlier by
// fusion search. An empty pool yields an empty selection.
func MMR(queryVec []float32, docVecs [][]float32, k int, lambda float64) []int {
	if len(docVecs) == 0 || k <= 0 {
		return []int{}
	}
	if k > len(docVecs) {
		k = len(docVecs)
	}

	querySim := make([]float64, len(docVecs))
	for i, vec := range docVecs {
		querySim[i] = CosineSimilarity(queryVec, vec)
	}

	selected := make([]int, 0, k)
	remaining := make(map[int]bool, len(docVecs))
	for i := range docVecs {
		remaining[i] = true
	}

	for len(selected) < k && len(remaining) > 0 {
		best := -1
		bestScore := math.Inf(-1)
		for i := range docVecs {
			if !remaining[i] {
				continue
			}
			redundancy := 0.0
			for _, j := range selected {
				if sim := CosineSimilarity(docVecs[i], docVecs[j]); sim > redundancy {
					redundancy = sim
				}
			}
			score := lambda*querySim[i] - (1-lambda)*redundancy
			// Strict > keeps the lower index on ties.
			if score > bestScore {
				bestScore = score
				best = i
			}
		}
		selected = append(selected, best)
		delete(remaining, best)
	}
	return selected
}
