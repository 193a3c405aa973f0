package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"woningwaarde/server/internal/extract"
	"woningwaarde/server/internal/models"
	"woningwaarde/server/internal/normalize"
	"woningwaarde/server/internal/ranking"
	"woningwaarde/server/internal/scoring"
	"woningwaarde/server/internal/valuation"
)

const defaultWorkers = 4

// Options bundle the tunables of one valuation run. The zero value gets
// sensible defaults; the config package maps environment variables onto it.
type Options struct {
	// Workers is the number of concurrent scoring goroutines.
	Workers int
	// RecencyMonths, SizeBand and the outlier toggle are passed through to
	// the ranking filters.
	RecencyMonths int
	SizeBand      float64
	OutlierFilter bool
	IQRMultiplier float64
	TopN          int
	Valuation     valuation.Options
}

func DefaultOptions() Options {
	return Options{
		Workers:       defaultWorkers,
		RecencyMonths: 12,
		OutlierFilter: true,
		TopN:          15,
		Valuation:     valuation.DefaultOptions(),
	}
}

// Engine runs the full pipeline: raw rows in, valuation result out. It holds
// no per-run state, so a single instance serves concurrent requests.
type Engine struct {
	scorer *scoring.Scorer
	logger *logrus.Logger
	opts   Options
}

func NewEngine(scorer *scoring.Scorer, logger *logrus.Logger, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{scorer: scorer, logger: logger, opts: opts}
}

// Run values the subject against the raw candidate rows. Rows that fail
// extraction or scoring are excluded and tallied in the diagnostics; the run
// itself only fails when no defensible value can be derived.
func (e *Engine) Run(ctx context.Context, subject models.SubjectProperty, rows []map[string]string) (*models.ValuationResult, error) {
	if subject.ValuationDate.IsZero() {
		subject.ValuationDate = time.Now()
	}

	extracted := extract.Extract(rows)
	e.logger.WithFields(logrus.Fields{
		"total_rows": len(rows),
		"accepted":   len(extracted.Accepted),
		"rejected":   extracted.Rejected,
	}).Info("Extracted candidate rows")

	scored, excludeReasons, err := e.scoreAll(ctx, subject, extracted.Accepted)
	if err != nil {
		return nil, err
	}

	sel := ranking.Rank(scored, ranking.Filters{
		Now:           subject.ValuationDate,
		RecencyMonths: e.opts.RecencyMonths,
		SizeBand:      e.opts.SizeBand,
		SubjectArea:   subject.LivingArea,
		OutlierIQR:    e.opts.OutlierFilter,
		IQRMultiplier: e.opts.IQRMultiplier,
		TopN:          e.opts.TopN,
	})

	est, err := valuation.Derive(sel.Selected, subject, e.opts.Valuation)
	if err != nil {
		e.logger.WithError(err).WithField("selected", len(sel.Selected)).Warn("Valuation not derivable")
		return nil, err
	}

	status := models.StatusOK
	if est.LowConfidence {
		status = models.StatusLowConfidence
	}

	excluded := 0
	for _, n := range excludeReasons {
		excluded += n
	}
	filtered := 0
	for _, n := range sel.FilteredOut {
		filtered += n
	}

	result := &models.ValuationResult{
		RunID:           uuid.NewString(),
		Status:          status,
		Subject:         subject,
		Selected:        sel.Selected,
		Shortfall:       sel.Shortfall,
		Method:          string(est.Method),
		SampleSize:      est.SampleSize,
		AvgPricePerArea: est.PricePerArea,
		AdvisoryValue:   est.AdvisoryValue,
		AdvisoryLow:     est.AdvisoryLow,
		AdvisoryHigh:    est.AdvisoryHigh,
		Diagnostics: models.RunDiagnostics{
			TotalRows:       len(rows),
			Accepted:        len(extracted.Accepted),
			RejectedRows:    extracted.Rejected,
			RejectReasons:   extracted.Reasons,
			ExcludedScoring: excluded,
			ExcludeReasons:  excludeReasons,
			FilteredOut:     filtered,
			FilterReasons:   sel.FilteredOut,
		},
		CreatedAt: time.Now(),
	}

	e.logger.WithFields(logrus.Fields{
		"run_id":   result.RunID,
		"status":   result.Status,
		"selected": len(result.Selected),
		"advisory": result.AdvisoryValue.String(),
	}).Info("Completed valuation run")
	return result, nil
}

// scoreAll scores the candidates concurrently. Results land in index-aligned
// slices so the output order never depends on goroutine scheduling.
func (e *Engine) scoreAll(ctx context.Context, subject models.SubjectProperty, candidates []models.CandidateProperty) ([]models.ScoredCandidate, map[string]int, error) {
	results := make([]*models.ScoredCandidate, len(candidates))
	errs := make([]error, len(candidates))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < e.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				sc, err := e.scorer.Score(subject, candidates[i])
				if err != nil {
					errs[i] = err
					continue
				}
				results[i] = &sc
			}
		}()
	}

feed:
	for i := range candidates {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	scored := make([]models.ScoredCandidate, 0, len(candidates))
	excludeReasons := make(map[string]int)
	for i, sc := range results {
		if sc != nil {
			scored = append(scored, *sc)
			continue
		}
		if missing, ok := errs[i].(*scoring.MissingInputError); ok {
			excludeReasons["subscore:"+missing.Component]++
		} else if errs[i] != nil {
			excludeReasons["scoring"]++
			e.logger.WithError(errs[i]).WithField("candidate", candidates[i].ID).Warn("Candidate excluded from scoring")
		}
	}
	return scored, excludeReasons, nil
}

// StreetRanking is one entry of the street shortlist: how well a street's
// sold properties match the subject on average.
type StreetRanking struct {
	Street       string  `json:"street"`
	AverageScore float64 `json:"average_score"`
	Count        int     `json:"count"`
	IsSubject    bool    `json:"is_subject"`
}

// TopStreets builds a shortlist of the subject's own street plus the best
// scoring other streets, each summarised by the mean composite of its
// candidates. Streets with a single sale still appear; buyers searching a
// quiet street should not lose it to a busier one.
func (e *Engine) TopStreets(ctx context.Context, subject models.SubjectProperty, candidates []models.CandidateProperty, n int) ([]StreetRanking, error) {
	if n <= 0 {
		n = 5
	}

	scored, _, err := e.scoreAll(ctx, subject, candidates)
	if err != nil {
		return nil, err
	}
	if len(scored) == 0 {
		return nil, fmt.Errorf("%w: no scorable candidates", valuation.ErrInsufficientData)
	}

	type agg struct {
		name  string
		sum   float64
		count int
	}
	byStreet := make(map[string]*agg)
	for _, sc := range scored {
		key := normalize.StreetKey(sc.Candidate.Street, sc.Candidate.Neighbourhood)
		a, ok := byStreet[key]
		if !ok {
			a = &agg{name: sc.Candidate.Street}
			byStreet[key] = a
		}
		a.sum += sc.Composite
		a.count++
	}

	subjectKey := normalize.StreetKey(subject.Street, subject.Neighbourhood)
	rankings := make([]StreetRanking, 0, len(byStreet))
	for key, a := range byStreet {
		rankings = append(rankings, StreetRanking{
			Street:       a.name,
			AverageScore: a.sum / float64(a.count),
			Count:        a.count,
			IsSubject:    key == subjectKey,
		})
	}

	sort.Slice(rankings, func(i, j int) bool {
		// Subject street first, then by average score, then stable by name.
		if rankings[i].IsSubject != rankings[j].IsSubject {
			return rankings[i].IsSubject
		}
		if rankings[i].AverageScore != rankings[j].AverageScore {
			return rankings[i].AverageScore > rankings[j].AverageScore
		}
		return rankings[i].Street < rankings[j].Street
	})

	if len(rankings) > n {
		rankings = rankings[:n]
	}
	return rankings, nil
}
