package vector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeRankOrdersByScoreDescending(t *testing.T) {
	lists := [][]Match{
		{
			{DocID: "a", ChunkIndex: 0, Score: 0.42},
			{DocID: "a", ChunkIndex: 1, Score: 0.91},
		},
		{
			{DocID: "b", ChunkIndex: 0, Score: 0.77},
		},
	}

	got := MergeRank(lists, 8)
	require.Len(t, got, 3)
	assert.Equal(t, 0.91, got[0].Score)
	assert.Equal(t, 0.77, got[1].Score)
	assert.Equal(t, 0.42, got[2].Score)
}

func TestMergeRankCapsAtLimit(t *testing.T) {
	lists := make([][]Match, 3)
	for i := range lists {
		for j := 0; j < 5; j++ {
			lists[i] = append(lists[i], Match{DocID: "d", ChunkIndex: i*5 + j, Score: float64(i*5+j) / 100})
		}
	}

	got := MergeRank(lists, 8)
	require.Len(t, got, 8)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Score, got[i].Score)
	}
}

func TestMergeRankTieBreakIsDeterministic(t *testing.T) {
	lists := [][]Match{
		{{DocID: "doc-b", ChunkIndex: 3, Score: 0.5}},
		{{DocID: "doc-a", ChunkIndex: 7, Score: 0.5}},
		{{DocID: "doc-a", ChunkIndex: 2, Score: 0.5}},
	}

	got := MergeRank(lists, 8)
	require.Len(t, got, 3)
	assert.Equal(t, "doc-a", got[0].DocID)
	assert.Equal(t, 2, got[0].ChunkIndex)
	assert.Equal(t, "doc-a", got[1].DocID)
	assert.Equal(t, 7, got[1].ChunkIndex)
	assert.Equal(t, "doc-b", got[2].DocID)
}

func TestMergeRankEmptyInput(t *testing.T) {
	assert.Empty(t, MergeRank(nil, 8))
	assert.Empty(t, MergeRank([][]Match{{}, {}}, 8))
}

func TestToLiteral(t *testing.T) {
	assert.Equal(t, "[1,0.5,-2]", ToLiteral([]float32{1, 0.5, -2}))
	assert.Equal(t, "[]", ToLiteral(nil))
}
