package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memoraai/memora/store"
)

func TestFuseRRFPrefersDocsOnBothLegs(t *testing.T) {
	lexical := []store.SearchHit{
		{Text: "shared", Score: 3.0},
		{Text: "lexical only", Score: 2.0},
	}
	vector := []store.SearchHit{
		{Text: "vector only", Score: 0.9},
		{Text: "shared", Score: 0.8},
	}

	fused := fuseRRF(lexical, vector, lexicalWeight, vectorWeight)
	require.Len(t, fused, 3)
	assert.Equal(t, "shared", fused[0].Text, "a hit on both legs outranks single-leg hits")

	for i := 1; i < len(fused); i++ {
		assert.LessOrEqual(t, fused[i].Score, fused[i-1].Score)
	}
}

func TestFuseRRFLexicalWeightDominates(t *testing.T) {
	lexical := []store.SearchHit{{Text: "lex", Score: 1.0}}
	vector := []store.SearchHit{{Text: "vec", Score: 1.0}}

	fused := fuseRRF(lexical, vector, lexicalWeight, vectorWeight)
	require.Len(t, fused, 2)
	assert.Equal(t, "lex", fused[0].Text, "same rank, but lexical carries 2x weight")
}

func TestFuseRRFEmptyLegs(t *testing.T) {
	assert.Empty(t, fuseRRF(nil, nil, lexicalWeight, vectorWeight))

	vector := []store.SearchHit{{Text: "v1", Score: 0.7}, {Text: "v2", Score: 0.4}}
	fused := fuseRRF(nil, vector, lexicalWeight, vectorWeight)
	require.Len(t, fused, 2)
	assert.Equal(t, "v1", fused[0].Text)
}
