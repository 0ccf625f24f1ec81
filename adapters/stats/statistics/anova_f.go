package statistics

import (
	"fmt"

	"permutest/domain/core"
	"permutest/domain/experiment"

	"gonum.org/v1/gonum/stat"
)

// AnovaF is the one-way F statistic: between-group mean square over
// within-group mean square of the assignment-selected values. It is the
// registry's multi-arm fallback when a third treatment column appears.
type AnovaF struct{}

// NewAnovaF creates the one-way ANOVA F statistic.
func NewAnovaF() *AnovaF {
	return &AnovaF{}
}

func (a *AnovaF) Name() string        { return "anova_f" }
func (a *AnovaF) DisplayName() string { return "One-way ANOVA F" }

func (a *AnovaF) SupportsMultipleTreatments() bool { return true }

// Compute returns the F ratio across all observed treatment groups.
func (a *AnovaF) Compute(rows []experiment.Row) (float64, error) {
	groups := groupBy(rows, assignedCell)
	k := len(groups)
	if k < 2 {
		return 0, fmt.Errorf("%w: got %d", core.ErrInsufficientGroups, k)
	}

	total := 0
	grandSum := 0.0
	for _, values := range groups {
		total += len(values)
		for _, v := range values {
			grandSum += v
		}
	}
	if total <= k {
		return 0, fmt.Errorf("%w: %d observations across %d groups", core.ErrDegenerateVariance, total, k)
	}
	grandMean := grandSum / float64(total)

	ssBetween := 0.0
	ssWithin := 0.0
	for _, values := range groups {
		groupMean := stat.Mean(values, nil)
		diff := groupMean - grandMean
		ssBetween += float64(len(values)) * diff * diff
		for _, v := range values {
			d := v - groupMean
			ssWithin += d * d
		}
	}

	msWithin := ssWithin / float64(total-k)
	if msWithin == 0 {
		return 0, core.ErrDegenerateVariance
	}
	msBetween := ssBetween / float64(k-1)

	return msBetween / msWithin, nil
}
