package ports

import (
	"permutest/domain/simulation"
)

// ProgressObserver receives engine progress: one call per completed trial
// and one final call when the loop terminates (budget reached or paused).
type ProgressObserver interface {
	OnProgress(event simulation.ProgressEvent)
}

// ProgressFunc adapts a plain function to ProgressObserver.
type ProgressFunc func(event simulation.ProgressEvent)

func (f ProgressFunc) OnProgress(event simulation.ProgressEvent) { f(event) }
