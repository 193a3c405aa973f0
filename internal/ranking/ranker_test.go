package ranking

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"woningwaarde/server/internal/models"
)

var anchor = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func scoredCandidate(id string, composite, price, area float64, saleDate time.Time) models.ScoredCandidate {
	return models.ScoredCandidate{
		Candidate: models.CandidateProperty{
			ID:        id,
			SalePrice: price,
			FloorArea: area,
			SaleDate:  saleDate,
		},
		Composite: composite,
	}
}

func TestRankOrdering(t *testing.T) {
	pool := []models.ScoredCandidate{
		scoredCandidate("b", 0.80, 450000, 100, anchor),
		scoredCandidate("a", 0.90, 500000, 100, anchor),
		scoredCandidate("c", 0.85, 400000, 100, anchor),
	}

	sel := Rank(pool, Filters{Now: anchor, TopN: 15})

	require.Len(t, sel.Selected, 3)
	assert.Equal(t, "a", sel.Selected[0].Candidate.ID)
	assert.Equal(t, "c", sel.Selected[1].Candidate.ID)
	assert.Equal(t, "b", sel.Selected[2].Candidate.ID)
	assert.True(t, sel.Shortfall)
}

func TestRankTieBreaks(t *testing.T) {
	t.Run("Equal composite orders by price-per-area ascending", func(t *testing.T) {
		pool := []models.ScoredCandidate{
			scoredCandidate("expensive", 0.80, 600000, 100, anchor),
			scoredCandidate("cheap", 0.80, 400000, 100, anchor),
		}

		sel := Rank(pool, Filters{Now: anchor, TopN: 15})
		assert.Equal(t, "cheap", sel.Selected[0].Candidate.ID)
		assert.Equal(t, "expensive", sel.Selected[1].Candidate.ID)
	})

	t.Run("Equal composite and price-per-area orders by identifier", func(t *testing.T) {
		pool := []models.ScoredCandidate{
			scoredCandidate("z-9", 0.80, 400000, 100, anchor),
			scoredCandidate("a-1", 0.80, 400000, 100, anchor),
		}

		sel := Rank(pool, Filters{Now: anchor, TopN: 15})
		assert.Equal(t, "a-1", sel.Selected[0].Candidate.ID)
		assert.Equal(t, "z-9", sel.Selected[1].Candidate.ID)
	})
}

func TestRankDeterminism(t *testing.T) {
	var pool []models.ScoredCandidate
	for i := 0; i < 30; i++ {
		// Deliberately many score ties.
		pool = append(pool, scoredCandidate(
			fmt.Sprintf("cand-%02d", i),
			0.5+float64(i%3)*0.1,
			400000+float64(i%5)*10000,
			90+float64(i%7),
			anchor.AddDate(0, -(i%10), 0),
		))
	}

	first := Rank(pool, Filters{Now: anchor, TopN: 15, RecencyMonths: 12})
	second := Rank(pool, Filters{Now: anchor, TopN: 15, RecencyMonths: 12})

	require.Equal(t, len(first.Selected), len(second.Selected))
	for i := range first.Selected {
		assert.Equal(t, first.Selected[i].Candidate.ID, second.Selected[i].Candidate.ID)
	}
}

func TestRecencyFilter(t *testing.T) {
	pool := []models.ScoredCandidate{
		scoredCandidate("recent", 0.5, 400000, 100, anchor.AddDate(0, -3, 0)),
		scoredCandidate("stale", 0.9, 400000, 100, anchor.AddDate(0, -24, 0)),
	}

	sel := Rank(pool, Filters{Now: anchor, RecencyMonths: 12, TopN: 15})

	require.Len(t, sel.Selected, 1)
	assert.Equal(t, "recent", sel.Selected[0].Candidate.ID)
	assert.Equal(t, 1, sel.FilteredOut[ReasonRecency])
}

func TestSizeBandFilter(t *testing.T) {
	pool := []models.ScoredCandidate{
		scoredCandidate("close", 0.5, 400000, 110, anchor),
		scoredCandidate("huge", 0.9, 900000, 220, anchor),
	}

	sel := Rank(pool, Filters{Now: anchor, SizeBand: 0.3, SubjectArea: 100, TopN: 15})

	require.Len(t, sel.Selected, 1)
	assert.Equal(t, "close", sel.Selected[0].Candidate.ID)
	assert.Equal(t, 1, sel.FilteredOut[ReasonSizeBand])
}

func TestOutlierFilter(t *testing.T) {
	// Ten candidates around €4000-4500/m² and one entry error at 3x median.
	var pool []models.ScoredCandidate
	for i := 0; i < 10; i++ {
		pool = append(pool, scoredCandidate(
			fmt.Sprintf("normal-%d", i), 0.7, 400000+float64(i)*5000, 100, anchor))
	}
	pool = append(pool, scoredCandidate("outlier", 0.9, 1300000, 100, anchor))

	t.Run("Outlier excluded when filter on", func(t *testing.T) {
		sel := Rank(pool, Filters{Now: anchor, OutlierIQR: true, TopN: 15})
		for _, sc := range sel.Selected {
			assert.NotEqual(t, "outlier", sc.Candidate.ID)
		}
		assert.Equal(t, 1, sel.FilteredOut[ReasonOutlier])
	})

	t.Run("Filter affects membership not scores", func(t *testing.T) {
		with := Rank(pool, Filters{Now: anchor, OutlierIQR: true, TopN: 15})
		without := Rank(pool, Filters{Now: anchor, TopN: 15})

		// Same candidates keep the same composite either way.
		scores := make(map[string]float64)
		for _, sc := range without.Selected {
			scores[sc.Candidate.ID] = sc.Composite
		}
		for _, sc := range with.Selected {
			assert.Equal(t, scores[sc.Candidate.ID], sc.Composite)
		}
		assert.Len(t, without.Selected, len(with.Selected)+1)
	})
}

func TestTopNRespected(t *testing.T) {
	var pool []models.ScoredCandidate
	for i := 0; i < 40; i++ {
		pool = append(pool, scoredCandidate(
			fmt.Sprintf("cand-%02d", i), float64(i)/40, 400000, 100, anchor))
	}

	sel := Rank(pool, Filters{Now: anchor, TopN: 15})
	assert.Len(t, sel.Selected, 15)
	assert.False(t, sel.Shortfall)
}

func TestQuantile(t *testing.T) {
	sorted := []float64{1, 2, 3, 4}
	assert.InDelta(t, 1.75, quantile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 3.25, quantile(sorted, 0.75), 1e-9)
	assert.InDelta(t, 4.0, quantile(sorted, 1.0), 1e-9)
}
