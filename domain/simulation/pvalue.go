package simulation

import (
	"fmt"
	"math"

	"permutest/domain/core"
)

// EstimatePValue computes the empirical p-value of an observed statistic
// against a set of simulated statistics: the share of simulated values at
// least as extreme as the observation under the chosen tail.
func EstimatePValue(observed float64, simulated []float64, tail TailType) (float64, error) {
	if len(simulated) == 0 {
		return 0, core.ErrNoSimulatedData
	}

	extreme := 0
	switch tail {
	case TailTwo:
		absObserved := math.Abs(observed)
		for _, s := range simulated {
			if math.Abs(s) >= absObserved {
				extreme++
			}
		}
	case TailLeft:
		for _, s := range simulated {
			if s <= observed {
				extreme++
			}
		}
	case TailRight:
		for _, s := range simulated {
			if s >= observed {
				extreme++
			}
		}
	default:
		return 0, fmt.Errorf("%w: unknown tail type %q", core.ErrInvalidSettings, tail)
	}

	return float64(extreme) / float64(len(simulated)), nil
}
