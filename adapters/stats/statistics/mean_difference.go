package statistics

import (
	"permutest/domain/experiment"

	"github.com/montanaflynn/stats"
)

// MeanDifference is the classic two-group statistic: the arithmetic mean of
// the treatment group minus the mean of the control group. Each row
// contributes the cell at its own assignment index.
type MeanDifference struct{}

// NewMeanDifference creates the difference-in-means statistic.
func NewMeanDifference() *MeanDifference {
	return &MeanDifference{}
}

func (m *MeanDifference) Name() string        { return "mean_difference" }
func (m *MeanDifference) DisplayName() string { return "Difference in Means" }

func (m *MeanDifference) SupportsMultipleTreatments() bool { return false }

// Compute returns mean(group 1) - mean(group 0). Empty input yields 0.
func (m *MeanDifference) Compute(rows []experiment.Row) (float64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	groups := groupBy(rows, assignedCell)

	return groupMean(groups[1]) - groupMean(groups[0]), nil
}

func groupMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean, _ := stats.Mean(values)
	return mean
}
