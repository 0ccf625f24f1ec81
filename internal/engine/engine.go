package engine

import (
	"context"
	"math/rand"
	"time"

	"permutest/domain/experiment"
	"permutest/domain/simulation"
	"permutest/internal"
)

// Snapshot is the engine's per-iteration view of the experiment: the rows
// to shuffle and the loop targets. The source re-derives it before every
// trial, so table and settings edits made while running take effect on the
// next trial without losing accumulated results.
type Snapshot struct {
	Rows      []experiment.Row
	Blocking  bool
	Completed int
	Total     int
	Delay     time.Duration
}

// Source supplies the current snapshot. Sink consumes one shuffled trial.
type (
	Source func() (Snapshot, error)
	Sink   func(trial simulation.Result)
)

// Engine drives the incremental Monte Carlo loop: shuffle the assignment
// vector, emit the trial, suspend for the render delay, repeat until the
// iteration budget is reached or the context is cancelled.
type Engine struct {
	rng *rand.Rand
	log *internal.Logger
}

// New creates an engine over a deterministic rand stream.
func New(rng *rand.Rand, log *internal.Logger) *Engine {
	return &Engine{rng: rng, log: log.With("engine")}
}

// Run executes trials from Completed up to Total. It returns nil when the
// budget is reached and ctx.Err() when cancelled; cancellation stops the
// pending delay before returning so no iteration is left dangling.
func (e *Engine) Run(ctx context.Context, source Source, sink Sink) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		snap, err := source()
		if err != nil {
			e.log.Warn("stopping loop: %v", err)
			return err
		}
		if snap.Completed >= snap.Total {
			e.log.Debug("budget reached at %d/%d trials", snap.Completed, snap.Total)
			return nil
		}

		shuffled := e.Shuffle(snap.Rows, snap.Blocking)
		sink(simulation.NewResult(shuffled))

		timer := time.NewTimer(snap.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Shuffle returns a copy of rows with the assignment vector permuted:
// whole-sample Fisher-Yates, or independently within each block when
// blocking is enabled. Rows without a block id share one pseudo-block.
func (e *Engine) Shuffle(rows []experiment.Row, blocking bool) []experiment.Row {
	out := experiment.CloneRows(rows)

	if !blocking {
		indices := make([]int, len(out))
		for i := range indices {
			indices[i] = i
		}
		e.permuteAssignments(out, indices)
		return out
	}

	blocks := make(map[string][]int)
	order := make([]string, 0)
	for i, r := range out {
		key := ""
		if r.Block != nil {
			key = *r.Block
		}
		if _, seen := blocks[key]; !seen {
			order = append(order, key)
		}
		blocks[key] = append(blocks[key], i)
	}
	// Iterate blocks in first-seen order so the rand stream stays
	// deterministic for a given row set.
	for _, key := range order {
		e.permuteAssignments(out, blocks[key])
	}
	return out
}

// permuteAssignments runs Fisher-Yates over the assignment values at the
// given row indices. Only assignments move; cells and blocks stay put.
func (e *Engine) permuteAssignments(rows []experiment.Row, indices []int) {
	for i := len(indices) - 1; i > 0; i-- {
		j := e.rng.Intn(i + 1)
		a, b := indices[i], indices[j]
		rows[a].Assignment, rows[b].Assignment = rows[b].Assignment, rows[a].Assignment
	}
}

// DelayForSpeed maps the 1..100 speed setting to the inter-trial render
// delay: higher speed, shorter suspension. The delay has no correctness
// semantics; it only lets observers draw intermediate state.
func DelayForSpeed(speed int) time.Duration {
	if speed < 1 {
		speed = 1
	}
	if speed > 100 {
		speed = 100
	}
	return time.Duration(101-speed) * 2 * time.Millisecond
}
