package search

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/topic-corpus/internal/crawler"
)

func newTestIndex(t *testing.T, docs ...crawler.Document) *Index {
	t.Helper()
	ix := NewIndex()
	require.NoError(t, ix.Reset(DefaultSchema()))
	require.NoError(t, ix.Ingest(docs))
	return ix
}

func photosynthesis() crawler.Document {
	return crawler.Document{
		Title:      "Photosynthesis",
		RevisionID: "1",
		Summary:    "plants convert light energy",
		URL:        "https://en.wikipedia.org/wiki/Photosynthesis",
		Topic:      "Science",
	}
}

func TestSearchMatchesTitleCaseInsensitively(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t, photosynthesis())

	results, err := ix.Search(context.Background(), "photosynthesis", []string{"Science"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "Photosynthesis", results[0].Title)
	require.Greater(t, results[0].Score, 0.0)
}

func TestSearchTopicFilterIsExclusionary(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t, photosynthesis())

	results, err := ix.Search(context.Background(), "photosynthesis", []string{"Sports"}, 5)
	require.NoError(t, err)
	require.Empty(t, results)

	results, err = ix.Search(context.Background(), "photosynthesis", nil, 5)
	require.NoError(t, err)
	require.Empty(t, results, "empty topic list matches nothing")

	results, err = ix.Search(context.Background(), "photosynthesis", []string{"Sports", "Science"}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearchSummaryWeightBeatsTitle(t *testing.T) {
	t.Parallel()

	inSummary := crawler.Document{Title: "alpha beta", Summary: "gamma delta zeta", Topic: "Science"}
	inTitle := crawler.Document{Title: "gamma beta", Summary: "alpha delta zeta", Topic: "Science"}
	// Insert the title match first so insertion order cannot explain the ranking.
	ix := newTestIndex(t, inTitle, inSummary)

	results, err := ix.Search(context.Background(), "gamma", []string{"Science"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "alpha beta", results[0].Title)
	require.InDelta(t, 3*results[1].Score, results[0].Score, 1e-9)
}

func TestSearchIDFCountsDocumentsWithField(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t,
		crawler.Document{Title: "alpha", Summary: "solar", Topic: "Science"},
		crawler.Document{Title: "beta", Topic: "Science"},
		crawler.Document{Title: "gamma", Topic: "Science"},
	)

	results, err := ix.Search(context.Background(), "solar", []string{"Science"}, 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	// One summary among one summarized document: idf = ln(1 + 0.5/1.5).
	require.InDelta(t, 3*math.Log(4.0/3.0), results[0].Score, 1e-9)
}

func TestSearchWeightOverride(t *testing.T) {
	t.Parallel()

	inSummary := crawler.Document{Title: "alpha beta", Summary: "gamma delta zeta", Topic: "Science"}
	inTitle := crawler.Document{Title: "gamma beta", Summary: "alpha delta zeta", Topic: "Science"}
	ix := newTestIndex(t, inSummary, inTitle)

	results, err := ix.Query(context.Background(), Query{
		Text:    "gamma",
		Topics:  []string{"Science"},
		K:       1,
		Weights: map[string]float64{"title": 5},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "gamma beta", results[0].Title)

	_, err = ix.Query(context.Background(), Query{Text: "gamma", Topics: []string{"Science"}, K: 1, Weights: map[string]float64{"title": -1}})
	require.ErrorIs(t, err, ErrQueryFailed)
}

func TestSearchTiesKeepInsertionOrder(t *testing.T) {
	t.Parallel()

	a := crawler.Document{Title: "Plant", Summary: "green organism", Topic: "Science"}
	b := crawler.Document{Title: "Plant", Summary: "green organism", Topic: "Environment"}
	ix := newTestIndex(t, a, b)

	for i := 0; i < 5; i++ {
		results, err := ix.Search(context.Background(), "plant", []string{"Science", "Environment"}, 2)
		require.NoError(t, err)
		require.Len(t, results, 2)
		require.Equal(t, "Science", results[0].Topic)
		require.Equal(t, "Environment", results[1].Topic)
		require.Equal(t, results[0].Score, results[1].Score)
	}
}

func TestSearchTopKAndScoreOrder(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t,
		crawler.Document{Title: "Solar power", Summary: "energy from the sun", Topic: "Technology"},
		crawler.Document{Title: "Solar panel", Summary: "solar cells convert solar energy", Topic: "Technology"},
		crawler.Document{Title: "Wind power", Summary: "energy from wind", Topic: "Technology"},
		crawler.Document{Title: "Hydroelectricity", Summary: "energy from water", Topic: "Technology"},
	)

	results, err := ix.Search(context.Background(), "solar energy", []string{"Technology"}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "Solar panel", results[0].Title)
	require.GreaterOrEqual(t, results[0].Score, results[1].Score)

	none, err := ix.Search(context.Background(), "solar", []string{"Technology"}, 0)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestSearchNoMatchingTerms(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t, photosynthesis())

	for _, text := range []string{"", "the of and", "volcano"} {
		results, err := ix.Search(context.Background(), text, []string{"Science"}, 1)
		require.NoError(t, err)
		require.Empty(t, results, text)
	}
}

func TestIngestAccumulatesDuplicates(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t, photosynthesis())
	dup := photosynthesis()
	dup.Topic = "Environment"
	require.NoError(t, ix.Ingest([]crawler.Document{dup}))
	require.NoError(t, ix.Ingest([]crawler.Document{photosynthesis()}))

	st := ix.Stats()
	require.Equal(t, 3, st.Documents)
	require.Equal(t, map[string]int{"Science": 2, "Environment": 1}, st.Topics)

	results, err := ix.Search(context.Background(), "photosynthesis", []string{"Science", "Environment"}, 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
}

func TestResetAndReplace(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t, photosynthesis())

	bad := DefaultSchema()
	bad.Fields = bad.Fields[:1]
	require.ErrorIs(t, ix.Reset(bad), ErrIndexSetup)
	require.Equal(t, 1, ix.Stats().Documents, "failed reset leaves index untouched")

	require.NoError(t, ix.Replace([]crawler.Document{
		{Title: "Football", Summary: "team sport", Topic: "Sports"},
	}))
	results, err := ix.Search(context.Background(), "photosynthesis", []string{"Science"}, 1)
	require.NoError(t, err)
	require.Empty(t, results)
	results, err = ix.Search(context.Background(), "football", []string{"Sports"}, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, ix.Reset(DefaultSchema()))
	require.Zero(t, ix.Stats().Documents)
}

func TestQueryErrors(t *testing.T) {
	t.Parallel()

	ix := NewIndex()
	_, err := ix.Search(context.Background(), "x", []string{"Science"}, 1)
	require.ErrorIs(t, err, ErrQueryFailed)
	require.ErrorIs(t, ix.Ingest([]crawler.Document{photosynthesis()}), ErrIndexSetup)
	require.False(t, ix.Ready())

	ready := newTestIndex(t, photosynthesis())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ready.Search(ctx, "photosynthesis", []string{"Science"}, 1)
	require.ErrorIs(t, err, ErrQueryFailed)
}

func TestConcurrentSearchAndIngest(t *testing.T) {
	t.Parallel()

	ix := newTestIndex(t, photosynthesis())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				doc := photosynthesis()
				doc.RevisionID = fmt.Sprintf("%d-%d", i, j)
				assert.NoError(t, ix.Ingest([]crawler.Document{doc}))
			}
		}(i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				results, err := ix.Search(context.Background(), "light", []string{"Science"}, 1)
				assert.NoError(t, err)
				assert.Len(t, results, 1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 101, ix.Stats().Documents)
}
