package statistics

import (
	"sort"

	"permutest/domain/core"
	"permutest/domain/experiment"
)

// Statistic maps a set of complete rows to a scalar test statistic.
// Implementations must be pure: the engine recomputes them freely over
// shuffled row sets.
type Statistic interface {
	Name() string
	DisplayName() string
	SupportsMultipleTreatments() bool
	Compute(rows []experiment.Row) (float64, error)
}

// Registry holds the registered statistics in display order.
type Registry struct {
	statistics []Statistic
}

// NewRegistry creates the registry with every built-in statistic.
func NewRegistry() *Registry {
	return &Registry{
		statistics: []Statistic{
			NewMeanDifference(),
			NewWilcoxonRankSum(),
			NewAnovaF(),
		},
	}
}

// Lookup returns the statistic registered under the given name.
func (r *Registry) Lookup(name string) (Statistic, error) {
	for _, s := range r.statistics {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, core.NewUnknownStatisticError(name)
}

// List returns every registered statistic in order.
func (r *Registry) List() []Statistic {
	out := make([]Statistic, len(r.statistics))
	copy(out, r.statistics)
	return out
}

// Names returns every registered statistic name in order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.statistics))
	for i, s := range r.statistics {
		names[i] = s.Name()
	}
	return names
}

// FirstMultiTreatment returns the first statistic that supports more than
// two treatment groups.
func (r *Registry) FirstMultiTreatment() (Statistic, bool) {
	for _, s := range r.statistics {
		if s.SupportsMultipleTreatments() {
			return s, true
		}
	}
	return nil, false
}

// groupBy partitions rows by assignment, picking one value per row.
func groupBy(rows []experiment.Row, value func(experiment.Row) (float64, bool)) map[int][]float64 {
	groups := make(map[int][]float64)
	for _, row := range rows {
		if row.Assignment == nil {
			continue
		}
		v, ok := value(row)
		if !ok {
			continue
		}
		groups[*row.Assignment] = append(groups[*row.Assignment], v)
	}
	return groups
}

// assignedCell selects the cell at the row's own assignment index.
func assignedCell(row experiment.Row) (float64, bool) {
	idx := *row.Assignment
	if idx < 0 || idx >= len(row.Data) || row.Data[idx] == nil {
		return 0, false
	}
	return *row.Data[idx], true
}

// firstCell selects the column-0 cell.
func firstCell(row experiment.Row) (float64, bool) {
	if len(row.Data) == 0 || row.Data[0] == nil {
		return 0, false
	}
	return *row.Data[0], true
}

// sortedKeys returns group labels in ascending order.
func sortedKeys(groups map[int][]float64) []int {
	keys := make([]int, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// rankData assigns ranks to data, handling ties by averaging: every value
// in a tied run receives the mean of the ranks the run spans.
func rankData(data []float64) []float64 {
	n := len(data)
	ranks := make([]float64, n)

	type pair struct {
		value float64
		index int
	}

	pairs := make([]pair, n)
	for i, v := range data {
		pairs[i] = pair{v, i}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].value < pairs[j].value
	})

	i := 0
	for i < n {
		j := i
		for j < n-1 && pairs[j+1].value == pairs[i].value {
			j++
		}

		avgRank := float64(i+j)/2.0 + 1
		for k := i; k <= j; k++ {
			ranks[pairs[k].index] = avgRank
		}

		i = j + 1
	}

	return ranks
}
