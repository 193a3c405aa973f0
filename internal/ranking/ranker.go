package ranking

import (
	"sort"
	"time"

	"woningwaarde/server/internal/models"
)

// Filter reasons recorded in run diagnostics.
const (
	ReasonRecency  = "recency"
	ReasonSizeBand = "size-band"
	ReasonOutlier  = "outlier"
)

const defaultTopN = 15

// Filters control pool membership prior to ranking. Filters never touch the
// composite scores themselves.
type Filters struct {
	// Now anchors the recency window; zero value falls back to time.Now().
	// Callers normally pass the valuation date.
	Now time.Time
	// RecencyMonths excludes candidates sold before Now minus this many
	// months. Zero disables the filter.
	RecencyMonths int
	// SizeBand, when positive, excludes candidates whose area differs from
	// SubjectArea by more than this proportion (e.g. 0.3 keeps ±30%).
	SizeBand    float64
	SubjectArea float64
	// OutlierIQR excludes candidates whose price-per-area lies outside
	// [Q1 - k·IQR, Q3 + k·IQR] over the filtered pool.
	OutlierIQR    bool
	IQRMultiplier float64
	// TopN caps the selection; zero means the default of 15.
	TopN int
}

// Selection is the ordered, filtered top-N with filter diagnostics. If fewer
// than TopN candidates survive, Shortfall is set instead of padding the set
// with lower-quality matches.
type Selection struct {
	Selected    []models.ScoredCandidate
	Shortfall   bool
	FilteredOut map[string]int
}

// Rank filters the scored pool, orders it deterministically and returns the
// top-N. Ordering: composite score descending, then price-per-area ascending
// (ties go to the conservative comparable), then identifier ascending.
func Rank(scored []models.ScoredCandidate, f Filters) Selection {
	sel := Selection{FilteredOut: make(map[string]int)}

	now := f.Now
	if now.IsZero() {
		now = time.Now()
	}

	pool := make([]models.ScoredCandidate, 0, len(scored))
	for _, sc := range scored {
		if f.RecencyMonths > 0 && sc.Candidate.SaleDate.Before(now.AddDate(0, -f.RecencyMonths, 0)) {
			sel.FilteredOut[ReasonRecency]++
			continue
		}
		if f.SizeBand > 0 && f.SubjectArea > 0 {
			diff := sc.Candidate.FloorArea - f.SubjectArea
			if diff < 0 {
				diff = -diff
			}
			if diff/f.SubjectArea > f.SizeBand {
				sel.FilteredOut[ReasonSizeBand]++
				continue
			}
		}
		pool = append(pool, sc)
	}

	if f.OutlierIQR {
		pool = excludeOutliers(pool, f.IQRMultiplier, sel.FilteredOut)
	}

	sort.Slice(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.Composite != b.Composite {
			return a.Composite > b.Composite
		}
		ppaA, ppaB := a.Candidate.PricePerArea(), b.Candidate.PricePerArea()
		if ppaA != ppaB {
			return ppaA < ppaB
		}
		return a.Candidate.ID < b.Candidate.ID
	})

	topN := f.TopN
	if topN <= 0 {
		topN = defaultTopN
	}
	if len(pool) > topN {
		pool = pool[:topN]
	} else if len(pool) < topN {
		sel.Shortfall = true
	}
	sel.Selected = pool
	return sel
}

// excludeOutliers drops candidates whose price-per-area falls outside the
// IQR bound computed over the given pool. Pools too small for meaningful
// quartiles pass through untouched.
func excludeOutliers(pool []models.ScoredCandidate, multiplier float64, filteredOut map[string]int) []models.ScoredCandidate {
	if len(pool) < 4 {
		return pool
	}
	if multiplier <= 0 {
		multiplier = 1.5
	}

	values := make([]float64, len(pool))
	for i, sc := range pool {
		values[i] = sc.Candidate.PricePerArea()
	}
	sort.Float64s(values)

	q1 := quantile(values, 0.25)
	q3 := quantile(values, 0.75)
	iqr := q3 - q1
	lo := q1 - multiplier*iqr
	hi := q3 + multiplier*iqr

	kept := pool[:0]
	for _, sc := range pool {
		ppa := sc.Candidate.PricePerArea()
		if ppa < lo || ppa > hi {
			filteredOut[ReasonOutlier]++
			continue
		}
		kept = append(kept, sc)
	}
	return kept
}

// quantile interpolates linearly between order statistics (the common
// "type 7" estimate). Input must be sorted.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(pos)
	if lower >= len(sorted)-1 {
		return sorted[len(sorted)-1]
	}
	frac := pos - float64(lower)
	return sorted[lower]*(1-frac) + sorted[lower+1]*frac
}
