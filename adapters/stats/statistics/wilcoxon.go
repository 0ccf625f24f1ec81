package statistics

import (
	"fmt"

	"permutest/domain/core"
	"permutest/domain/experiment"
)

// WilcoxonRankSum is the Mann-Whitney U form of the rank-sum test: both
// groups' column-0 values are ranked together (ties averaged) and the
// statistic is min(U1, U2). Requires exactly two observed groups.
type WilcoxonRankSum struct{}

// NewWilcoxonRankSum creates the rank-sum statistic.
func NewWilcoxonRankSum() *WilcoxonRankSum {
	return &WilcoxonRankSum{}
}

func (w *WilcoxonRankSum) Name() string        { return "wilcoxon_rank_sum" }
func (w *WilcoxonRankSum) DisplayName() string { return "Wilcoxon Rank-Sum" }

func (w *WilcoxonRankSum) SupportsMultipleTreatments() bool { return false }

// Compute partitions rows by assignment on the column-0 value and returns
// min(U1, U2), which is symmetric in the group labels.
func (w *WilcoxonRankSum) Compute(rows []experiment.Row) (float64, error) {
	groups := groupBy(rows, firstCell)
	if len(groups) != 2 {
		return 0, fmt.Errorf("%w: got %d", core.ErrTwoGroupsRequired, len(groups))
	}

	keys := sortedKeys(groups)
	first, second := groups[keys[0]], groups[keys[1]]
	n1, n2 := len(first), len(second)

	combined := make([]float64, 0, n1+n2)
	combined = append(combined, first...)
	combined = append(combined, second...)
	ranks := rankData(combined)

	// Rank sum of the second group; U is symmetric so the choice of group
	// only flips U1 and U2.
	rankSum := 0.0
	for _, r := range ranks[n1:] {
		rankSum += r
	}

	u1 := rankSum - float64(n2*(n2+1))/2
	u2 := float64(n1*n2) - u1

	if u1 < u2 {
		return u1, nil
	}
	return u2, nil
}
