package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"woningwaarde/server/internal/engine"
	"woningwaarde/server/internal/models"
	"woningwaarde/server/internal/scoring"
	"woningwaarde/server/internal/storage"
	"woningwaarde/server/internal/valuation"
)

type options struct {
	candidatesPath string
	subjectPath    string
	weightsPath    string
	method         string
	topN           int
	recencyMonths  int
	sizeBand       float64
	noOutliers     bool
	workers        int
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:          "valuate",
		Short:        "Value a property against a table of sold comparables",
		Long:         "Scores every candidate against the subject, selects the best comparables and derives an advisory value from their price per square meter.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.candidatesPath, "candidates", "c", "", "candidate table CSV")
	cmd.Flags().StringVarP(&opts.subjectPath, "subject", "s", "", "subject property JSON")
	cmd.Flags().StringVarP(&opts.weightsPath, "weights", "w", "", "weight configuration JSON (optional)")
	cmd.Flags().StringVarP(&opts.method, "method", "m", "mean", "valuation method: mean or median")
	cmd.Flags().IntVarP(&opts.topN, "top-n", "n", 15, "number of comparables to select")
	cmd.Flags().IntVar(&opts.recencyMonths, "recency-months", 12, "exclude sales older than this many months (0 disables)")
	cmd.Flags().Float64Var(&opts.sizeBand, "size-band", 0, "exclude candidates outside this proportional area band (0 disables)")
	cmd.Flags().BoolVar(&opts.noOutliers, "no-outlier-filter", false, "disable price-per-area outlier exclusion")
	cmd.Flags().IntVar(&opts.workers, "workers", 4, "concurrent scoring workers")
	_ = cmd.MarkFlagRequired("candidates")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

func run(ctx context.Context, opts *options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)

	subject, err := storage.LoadSubjectFile(opts.subjectPath)
	if err != nil {
		return err
	}
	rows, err := storage.LoadCandidateFile(opts.candidatesPath)
	if err != nil {
		return err
	}

	weights := scoring.DefaultWeights()
	if opts.weightsPath != "" {
		weights, err = scoring.LoadWeights(opts.weightsPath)
		if err != nil {
			return err
		}
	}

	scorer, err := scoring.NewScorer(weights, nil, scoring.DefaultParams())
	if err != nil {
		return err
	}

	eng := engine.NewEngine(scorer, logger, engine.Options{
		Workers:       opts.workers,
		RecencyMonths: opts.recencyMonths,
		SizeBand:      opts.sizeBand,
		OutlierFilter: !opts.noOutliers,
		TopN:          opts.topN,
		Valuation:     valuation.Options{Method: valuation.Method(opts.method)},
	})

	result, err := eng.Run(ctx, subject, rows)
	if err != nil {
		return err
	}

	printResult(os.Stdout, result)
	return nil
}

func printResult(out *os.File, result *models.ValuationResult) {
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tID\tSTREET\tSCORE\t€/M²\tPRICE")
	for i, sc := range result.Selected {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.3f\t%.0f\t%.0f\n",
			i+1,
			sc.Candidate.ID,
			sc.Candidate.Street,
			sc.Composite,
			sc.Candidate.PricePerArea(),
			sc.Candidate.SalePrice,
		)
	}
	w.Flush()

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Method:          %s over %d comparables\n", result.Method, result.SampleSize)
	fmt.Fprintf(out, "Avg price/m²:    € %s\n", result.AvgPricePerArea.StringFixed(2))
	fmt.Fprintf(out, "Advisory value:  € %s (range € %s - € %s)\n",
		result.AdvisoryValue.StringFixed(0),
		result.AdvisoryLow.StringFixed(0),
		result.AdvisoryHigh.StringFixed(0),
	)
	if result.Status == models.StatusLowConfidence {
		fmt.Fprintln(out, "Warning: low confidence, fewer than 5 comparables survived filtering")
	}
	if result.Shortfall {
		fmt.Fprintln(out, "Note: fewer comparables available than requested")
	}

	d := result.Diagnostics
	if d.RejectedRows > 0 || d.ExcludedScoring > 0 || d.FilteredOut > 0 {
		fmt.Fprintf(out, "Diagnostics:     %d rows rejected, %d excluded from scoring, %d filtered out\n",
			d.RejectedRows, d.ExcludedScoring, d.FilteredOut)
	}
}
