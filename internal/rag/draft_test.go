package rag

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MohiuddinKhanTushar/merge-point-software/internal/providers"
	"github.com/MohiuddinKhanTushar/merge-point-software/internal/vector"
)

type fakeLister struct {
	namespaces []string
}

func (f *fakeLister) ListNamespaces(ctx context.Context, ownerID string) ([]string, error) {
	return f.namespaces, nil
}

type fakeSearcher struct {
	matches []vector.Match
}

func (f *fakeSearcher) SearchNamespaces(ctx context.Context, namespaces []string, queryVec []float32, topK, topN int) ([]vector.Match, error) {
	return f.matches, nil
}

func newTestDrafter(t *testing.T, lister NamespaceLister, searcher NamespaceSearcher) *Drafter {
	t.Helper()
	m, err := providers.NewManager("mock", "mock", 8)
	require.NoError(t, err)
	return NewDrafter(m, lister, searcher, 8, 5, 8)
}

func TestDraftWithContext(t *testing.T) {
	searcher := &fakeSearcher{matches: []vector.Match{
		{DocID: "d1", ChunkIndex: 0, Text: "We hold ISO 9001.", Score: 0.88},
		{DocID: "d1", ChunkIndex: 3, Text: "Audited annually.", Score: 0.61},
	}}
	d := newTestDrafter(t, &fakeLister{namespaces: []string{"u1-d1"}}, searcher)

	res, err := d.Draft(context.Background(), "u1", "What is your ISO status?")
	require.NoError(t, err)
	assert.True(t, res.ContextFound)
	assert.NotEmpty(t, res.Answer)
	assert.Len(t, res.Matches, 2)
	// mock self-rating is 7, topScore 0.88: 0.7*70 + 0.3*88 = 75.4
	assert.Equal(t, 75, res.Confidence)
}

func TestDraftWithoutNamespaces(t *testing.T) {
	d := newTestDrafter(t, &fakeLister{}, &fakeSearcher{})

	res, err := d.Draft(context.Background(), "u1", "Describe your delivery plan.")
	require.NoError(t, err)
	assert.False(t, res.ContextFound)
	assert.NotEmpty(t, res.Answer)
	// rating-only path: 0.7*70 = 49, below the with-context floor.
	assert.Equal(t, 49, res.Confidence)
}

func TestScoreBounds(t *testing.T) {
	for rating := 0; rating <= 10; rating++ {
		for _, top := range []float64{0, 0.5, 1} {
			s := Score(rating, top, true)
			assert.GreaterOrEqual(t, s, 40)
			assert.LessOrEqual(t, s, 95)
		}
		s := Score(rating, 0, false)
		assert.GreaterOrEqual(t, s, 0)
		assert.LessOrEqual(t, s, 95)
	}
}

func TestScoreFloorAndCap(t *testing.T) {
	// Weak answer with context still floors at 40.
	assert.Equal(t, 40, Score(0, 0, true))
	// Perfect answer with perfect retrieval caps at 95.
	assert.Equal(t, 95, Score(10, 1, true))
	// No context, no floor.
	assert.Equal(t, 0, Score(0, 0, false))
	assert.Equal(t, 70, Score(10, 0, false))
}

func TestScoreNoContextNeverBeatsStrongContext(t *testing.T) {
	for rating := 0; rating <= 10; rating++ {
		assert.Less(t, Score(rating, 0, false), Score(rating, 0.9, true)+1)
	}
}

func TestParseRating(t *testing.T) {
	assert.Equal(t, 7, parseRating("7"))
	assert.Equal(t, 8, parseRating("I would rate this 8 out of 10."))
	assert.Equal(t, 10, parseRating("42"))
	assert.Equal(t, 0, parseRating("no idea"))
	assert.Equal(t, 3, parseRating("```\n3\n```"))
}
