package simulation

import (
	"permutest/domain/core"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// NullSummary describes the shape of the simulated null distribution.
// Collaborators use it to annotate histograms without re-deriving moments.
type NullSummary struct {
	N            int     `json:"n"`
	Mean         float64 `json:"mean"`
	StdDev       float64 `json:"std_dev"`
	Min          float64 `json:"min"`
	Max          float64 `json:"max"`
	Median       float64 `json:"median"`
	Percentile95 float64 `json:"percentile_95"`
	Percentile99 float64 `json:"percentile_99"`
	Skewness     float64 `json:"skewness"`
}

// Summarize computes the null-distribution summary for a set of simulated
// statistics. Fails on empty input like the p-value estimator.
func Summarize(simulated []float64) (NullSummary, error) {
	if len(simulated) == 0 {
		return NullSummary{}, core.ErrNoSimulatedData
	}

	mean, _ := stats.Mean(simulated)
	stdDev, _ := stats.StandardDeviationSample(simulated)
	min, _ := stats.Min(simulated)
	max, _ := stats.Max(simulated)
	median, _ := stats.Median(simulated)
	p95, _ := stats.Percentile(simulated, 95)
	p99, _ := stats.Percentile(simulated, 99)

	summary := NullSummary{
		N:            len(simulated),
		Mean:         mean,
		StdDev:       stdDev,
		Min:          min,
		Max:          max,
		Median:       median,
		Percentile95: p95,
		Percentile99: p99,
	}
	if len(simulated) > 2 && stdDev > 0 {
		summary.Skewness = stat.Skew(simulated, nil)
	}
	return summary, nil
}
