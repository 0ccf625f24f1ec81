package simulation

import (
	"fmt"

	"permutest/domain/core"
	"permutest/domain/experiment"
)

// TailType selects which direction of extremity counts toward the p-value.
type TailType string

const (
	TailTwo   TailType = "two"
	TailLeft  TailType = "left"
	TailRight TailType = "right"
)

// ParseTailType parses a tail type string.
func ParseTailType(s string) (TailType, error) {
	switch TailType(s) {
	case TailTwo, TailLeft, TailRight:
		return TailType(s), nil
	}
	return "", fmt.Errorf("%w: unknown tail type %q", core.ErrInvalidSettings, s)
}

// Settings holds the user-tunable simulation parameters.
type Settings struct {
	Speed           int      `json:"speed"`
	StatisticName   string   `json:"statistic"`
	TotalIterations int      `json:"total_iterations"`
	Tail            TailType `json:"tail"`
	BlockingEnabled bool     `json:"blocking_enabled"`
}

// DefaultSettings returns the settings a fresh session starts with.
func DefaultSettings() Settings {
	return Settings{
		Speed:           50,
		StatisticName:   "mean_difference",
		TotalIterations: 1000,
		Tail:            TailTwo,
	}
}

// Validate checks the settings ranges.
func (s Settings) Validate() error {
	if s.Speed < 1 || s.Speed > 100 {
		return fmt.Errorf("%w: speed %d outside [1,100]", core.ErrInvalidSettings, s.Speed)
	}
	if s.TotalIterations < 1 || s.TotalIterations > 10000 {
		return fmt.Errorf("%w: total iterations %d outside [1,10000]", core.ErrInvalidSettings, s.TotalIterations)
	}
	if _, err := ParseTailType(string(s.Tail)); err != nil {
		return err
	}
	if s.StatisticName == "" {
		return fmt.Errorf("%w: statistic name is required", core.ErrInvalidSettings)
	}
	return nil
}

// Result is one simulated trial: the full post-shuffle row set. Statistics
// are recomputed from the rows on demand so a statistic change mid-run never
// reads stale values.
type Result struct {
	ID        core.TrialID     `json:"id"`
	Rows      []experiment.Row `json:"rows"`
	CreatedAt core.Timestamp   `json:"created_at"`
}

// NewResult captures a shuffled row set as an immutable trial record.
func NewResult(rows []experiment.Row) Result {
	return Result{
		ID:        core.TrialID(core.NewID()),
		Rows:      experiment.CloneRows(rows),
		CreatedAt: core.Now(),
	}
}

// Results accumulates simulated trials plus the derived statistics.
type Results struct {
	Simulations []Result `json:"simulations"`
	Observed    *float64 `json:"observed,omitempty"`
	PValue      *float64 `json:"p_value,omitempty"`
}

// Completed returns the number of accumulated trials.
func (r Results) Completed() int { return len(r.Simulations) }

// Clone returns a deep copy of the results: trial row sets and the derived
// pointers are detached so callers cannot write through to live state.
func (r Results) Clone() Results {
	out := Results{Simulations: make([]Result, len(r.Simulations))}
	for i, trial := range r.Simulations {
		out.Simulations[i] = Result{
			ID:        trial.ID,
			Rows:      experiment.CloneRows(trial.Rows),
			CreatedAt: trial.CreatedAt,
		}
	}
	if r.Observed != nil {
		v := *r.Observed
		out.Observed = &v
	}
	if r.PValue != nil {
		v := *r.PValue
		out.PValue = &v
	}
	return out
}

// Control carries the engine's run flag.
type Control struct {
	IsSimulating bool `json:"is_simulating"`
}

// ProgressEvent reports one engine tick to observers. Statistic is the
// trial's simulated value; PValue the running estimate. Done marks the
// final event of a loop (budget reached or paused).
type ProgressEvent struct {
	Completed int      `json:"completed"`
	Total     int      `json:"total"`
	Statistic *float64 `json:"statistic,omitempty"`
	PValue    *float64 `json:"p_value,omitempty"`
	Done      bool     `json:"done"`
}
