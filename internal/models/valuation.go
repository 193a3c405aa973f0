package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ValuationStatus string

const (
	StatusOK            ValuationStatus = "ok"
	StatusLowConfidence ValuationStatus = "low-confidence"
)

// RunDiagnostics carries the row- and candidate-level exclusions absorbed
// during a run. Counts are keyed by reason (e.g. "field:price", "date",
// "subscore:rooms", "recency", "outlier").
type RunDiagnostics struct {
	TotalRows       int            `json:"total_rows"`
	Accepted        int            `json:"accepted"`
	RejectedRows    int            `json:"rejected_rows"`
	RejectReasons   map[string]int `json:"reject_reasons,omitempty"`
	ExcludedScoring int            `json:"excluded_scoring"`
	ExcludeReasons  map[string]int `json:"exclude_reasons,omitempty"`
	FilteredOut     int            `json:"filtered_out"`
	FilterReasons   map[string]int `json:"filter_reasons,omitempty"`
}

// ValuationResult is the final output of a run: the selected comparables in
// rank order plus the derived advisory value. Immutable once created.
type ValuationResult struct {
	RunID           string            `json:"run_id"`
	Status          ValuationStatus   `json:"status"`
	Subject         SubjectProperty   `json:"subject"`
	Selected        []ScoredCandidate `json:"selected"`
	Shortfall       bool              `json:"shortfall"`
	Method          string            `json:"method"`
	SampleSize      int               `json:"sample_size"`
	AvgPricePerArea decimal.Decimal   `json:"avg_price_per_m2"`
	AdvisoryValue   decimal.Decimal   `json:"advisory_value"`
	AdvisoryLow     decimal.Decimal   `json:"advisory_low"`
	AdvisoryHigh    decimal.Decimal   `json:"advisory_high"`
	Diagnostics     RunDiagnostics    `json:"diagnostics"`
	CreatedAt       time.Time         `json:"created_at"`
}
