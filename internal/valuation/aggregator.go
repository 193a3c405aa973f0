package valuation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"woningwaarde/server/internal/models"
)

// Method selects the price-per-area statistic used for the advisory value.
type Method string

const (
	// MethodMean averages the price-per-area of the top K selected
	// comparables; the band follows the standard deviation of that subset.
	MethodMean Method = "mean"
	// MethodMedian uses the median price-per-area for robustness to skew;
	// the band is a fixed percentage.
	MethodMedian Method = "median"
)

// ErrInsufficientData is returned when the surviving pool is too small to
// derive any value. The engine surfaces it as the run failure reason; a value
// is never fabricated from zero evidence.
var ErrInsufficientData = errors.New("insufficient-data")

// Results built from 2-4 comparables are flagged low-confidence rather than
// failing outright.
const lowConfidenceThreshold = 5

type Options struct {
	Method Method
	// TopK caps the subset used by the mean method (default 10).
	TopK int
	// BandPct is the fixed band for the median method (default 0.10).
	BandPct float64
}

func DefaultOptions() Options {
	return Options{Method: MethodMean, TopK: 10, BandPct: 0.10}
}

// Estimate holds the derived advisory value. Monetary fields are decimals
// rounded to whole euros; price-per-area keeps cents.
type Estimate struct {
	Method        Method
	SampleSize    int
	PricePerArea  decimal.Decimal
	AdvisoryValue decimal.Decimal
	AdvisoryLow   decimal.Decimal
	AdvisoryHigh  decimal.Decimal
	LowConfidence bool
}

// Derive computes the advisory value from the selected comparables, in rank
// order. Selected must already be filtered and ordered by the ranker.
func Derive(selected []models.ScoredCandidate, subject models.SubjectProperty, opts Options) (*Estimate, error) {
	if subject.LivingArea <= 0 {
		return nil, fmt.Errorf("subject living area must be positive, got %v", subject.LivingArea)
	}
	if len(selected) < 2 {
		return nil, fmt.Errorf("%w: %d comparables after filtering, need at least 2", ErrInsufficientData, len(selected))
	}

	if opts.Method == "" {
		opts.Method = MethodMean
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.BandPct <= 0 {
		opts.BandPct = DefaultOptions().BandPct
	}

	var statistic, low, high float64
	var sampleSize int

	switch opts.Method {
	case MethodMean:
		subset := selected
		if len(subset) > opts.TopK {
			subset = subset[:opts.TopK]
		}
		values := pricePerArea(subset)
		sampleSize = len(values)
		statistic = mean(values)
		sd := stddev(values, statistic)
		low = statistic - sd
		high = statistic + sd
	case MethodMedian:
		values := pricePerArea(selected)
		sampleSize = len(values)
		statistic = median(values)
		low = statistic * (1 - opts.BandPct)
		high = statistic * (1 + opts.BandPct)
	default:
		return nil, fmt.Errorf("unknown valuation method %q", opts.Method)
	}

	return &Estimate{
		Method:        opts.Method,
		SampleSize:    sampleSize,
		PricePerArea:  decimal.NewFromFloat(statistic).Round(2),
		AdvisoryValue: decimal.NewFromFloat(statistic * subject.LivingArea).Round(0),
		AdvisoryLow:   decimal.NewFromFloat(low * subject.LivingArea).Round(0),
		AdvisoryHigh:  decimal.NewFromFloat(high * subject.LivingArea).Round(0),
		LowConfidence: len(selected) < lowConfidenceThreshold,
	}, nil
}

func pricePerArea(selected []models.ScoredCandidate) []float64 {
	values := make([]float64, len(selected))
	for i, sc := range selected {
		values[i] = sc.Candidate.PricePerArea()
	}
	return values
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation. A subset of fewer than two values
// has no spread; returning 0 keeps TopK=1 from dividing by zero.
func stddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
