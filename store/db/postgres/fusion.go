package postgres

import (
	"sort"

	"github.com/memoraai/memora/store"
)

const (
	// rrfRankConstant smooths the reciprocal-rank contribution. It matches
	// the rank constant the elastic driver configures for native fusion so
	// both backends rank comparably.
	rrfRankConstant = 20

	// Lexical relevance is weighted 2x over vector relevance, mirroring the
	// boost applied on the single-request elastic path.
	lexicalWeight = 2.0
	vectorWeight  = 1.0
)

// fuseRRF merges two ranked hit lists using weighted Reciprocal Rank Fusion:
// score(d) = Σ weight_i / (c + rank_i(d)). Hits are keyed by text, since a
// chunk surfacing on both legs is the same stored document.
func fuseRRF(lexical, vector []store.SearchHit, wLexical, wVector float64) []store.SearchHit {
	scores := make(map[string]float64)
	order := make(map[string]int)

	accumulate := func(hits []store.SearchHit, weight float64) {
		for rank, hit := range hits {
			if _, seen := scores[hit.Text]; !seen {
				order[hit.Text] = len(order)
			}
			scores[hit.Text] += weight / float64(rrfRankConstant+rank+1)
		}
	}
	accumulate(lexical, wLexical)
	accumulate(vector, wVector)

	fused := make([]store.SearchHit, 0, len(scores))
	for text, score := range scores {
		fused = append(fused, store.SearchHit{Text: text, Score: score})
	}
	// Equal fused scores keep first-seen order for a stable result.
	sort.SliceStable(fused, func(i, j int) bool {
		if fused[i].Score != fused[j].Score {
			return fused[i].Score > fused[j].Score
		}
		return order[fused[i].Text] < order[fused[j].Text]
	})
	return fused
}
