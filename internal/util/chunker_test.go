package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChunkTextCountAndReassembly(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		size  int
		count int
	}{
		{"exact multiple", strings.Repeat("a", 3000), 1000, 3},
		{"remainder", strings.Repeat("b", 2500), 1000, 3},
		{"single short", "hello", 1000, 1},
		{"unicode", strings.Repeat("é", 1500), 1000, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := ChunkText(tc.text, tc.size)
			require.Len(t, chunks, tc.count)
			require.Equal(t, tc.text, strings.Join(chunks, ""))
			for _, c := range chunks {
				require.LessOrEqual(t, len([]rune(c)), tc.size)
			}
		})
	}
}

func TestChunkTextEmpty(t *testing.T) {
	require.Empty(t, ChunkText("", 1000))
}

func TestChunkTextDefaultSize(t *testing.T) {
	chunks := ChunkText(strings.Repeat("x", 1001), 0)
	require.Len(t, chunks, 2)
	require.Len(t, chunks[0], 1000)
}
