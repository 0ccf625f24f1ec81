package app

import (
	"math/rand"
	"testing"
	"time"

	"permutest/adapters/stats/statistics"
	"permutest/domain/experiment"
	"permutest/domain/simulation"
	"permutest/internal"
	"permutest/internal/engine"
	apperrors "permutest/internal/errors"
	"permutest/internal/store"
	"permutest/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) *SimulationService {
	t.Helper()
	logger := internal.NewDefaultLogger()
	return NewSimulationService(
		store.New(),
		statistics.NewRegistry(),
		engine.New(rand.New(rand.NewSource(42)), logger),
		logger,
	)
}

// enterRow appends one complete row through the staging-row entry path: the
// first edit claims the staging row for the assigned column, the remaining
// edits fill the other cells so the row becomes complete.
func enterRow(t *testing.T, s *SimulationService, value float64, column int) {
	t.Helper()
	snap := s.Snapshot()
	staging := len(snap.Table.Rows) - 1
	_, err := s.UpdateCell(staging, column, experiment.Float(value))
	require.NoError(t, err)
	for c := range snap.Table.Columns {
		if c == column {
			continue
		}
		_, err := s.UpdateCell(staging, c, experiment.Float(value))
		require.NoError(t, err)
	}
}

func seedRows(t *testing.T, s *SimulationService) {
	t.Helper()
	enterRow(t, s, 3, 0)
	enterRow(t, s, 5, 0)
	enterRow(t, s, 4, 1)
	enterRow(t, s, 6, 1)
}

// subscribeEvents registers a channel-backed observer and returns it.
func subscribeEvents(t *testing.T, s *SimulationService) chan simulation.ProgressEvent {
	t.Helper()
	events := make(chan simulation.ProgressEvent, 64)
	unsubscribe := s.Subscribe(ports.ProgressFunc(func(ev simulation.ProgressEvent) {
		events <- ev
	}))
	t.Cleanup(unsubscribe)
	return events
}

func waitForDone(t *testing.T, events chan simulation.ProgressEvent) simulation.ProgressEvent {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Done {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for the loop to finish")
		}
	}
}

func waitForCompleted(t *testing.T, events chan simulation.ProgressEvent, n int) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Completed >= n {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for trial progress")
		}
	}
}

func runToCompletion(t *testing.T, s *SimulationService) {
	t.Helper()
	events := subscribeEvents(t, s)
	require.NoError(t, s.StartSimulation())
	waitForDone(t, events)
}

func TestNewSimulationService_Defaults(t *testing.T) {
	s := newTestService(t)
	snap := s.Snapshot()

	assert.Equal(t, simulation.DefaultSettings(), snap.Settings)
	assert.False(t, snap.Control.IsSimulating)
	assert.Nil(t, snap.Results.Observed)
	assert.Nil(t, snap.Results.PValue)
	assert.Len(t, snap.Statistics, 3)
	assert.NotEmpty(t, s.SessionID())
}

func TestMutation_RecomputesObservedStatistic(t *testing.T) {
	s := newTestService(t)
	seedRows(t, s)

	snap := s.Snapshot()
	require.NotNil(t, snap.Results.Observed)
	assert.InDelta(t, 1.0, *snap.Results.Observed, 1e-12) // mean 5 - mean 4
	assert.True(t, snap.CanUndo)
}

func TestStartSimulation_RequiresTwoValidRows(t *testing.T) {
	s := newTestService(t)
	enterRow(t, s, 3, 0)

	err := s.StartSimulation()
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeStateError, apperrors.GetCode(err))
	assert.False(t, s.Snapshot().Control.IsSimulating)
}

func TestSimulation_RunsToCompletion(t *testing.T) {
	s := newTestService(t)
	seedRows(t, s)
	require.NoError(t, s.SetSimulationSpeed(100))
	require.NoError(t, s.SetTotalIterations(10))

	runToCompletion(t, s)

	snap := s.Snapshot()
	assert.False(t, snap.Control.IsSimulating)
	assert.Len(t, snap.Results.Simulations, 10)
	require.NotNil(t, snap.Results.PValue)
	assert.GreaterOrEqual(t, *snap.Results.PValue, 0.0)
	assert.LessOrEqual(t, *snap.Results.PValue, 1.0)
	require.NotNil(t, snap.NullSummary)
	assert.Equal(t, 10, snap.NullSummary.N)
}

func TestSimulation_TrialsPreserveAssignmentMultiset(t *testing.T) {
	s := newTestService(t)
	seedRows(t, s)
	require.NoError(t, s.SetSimulationSpeed(100))
	require.NoError(t, s.SetTotalIterations(5))

	runToCompletion(t, s)

	for _, trial := range s.Snapshot().Results.Simulations {
		counts := map[int]int{}
		for _, r := range trial.Rows {
			require.NotNil(t, r.Assignment)
			counts[*r.Assignment]++
		}
		assert.Equal(t, map[int]int{0: 2, 1: 2}, counts)
	}
}

func TestSimulation_MidRunEditsApplyToSubsequentTrials(t *testing.T) {
	s := newTestService(t)
	seedRows(t, s)
	require.NoError(t, s.SetSimulationSpeed(100))
	require.NoError(t, s.SetTotalIterations(10000))

	events := subscribeEvents(t, s)
	require.NoError(t, s.StartSimulation())
	waitForCompleted(t, events, 1)

	// Widen the sample while the loop is running.
	enterRow(t, s, 7, 0)
	countAtEdit := len(s.Snapshot().Results.Simulations)

	waitForCompleted(t, events, countAtEdit+2)
	require.NoError(t, s.PauseSimulation())

	trials := s.Snapshot().Results.Simulations
	require.GreaterOrEqual(t, len(trials), countAtEdit+2)
	// Trials accumulated before the edit survive with the row set they were
	// drawn from; trials after it pick up the extra row.
	assert.Len(t, trials[0].Rows, 4)
	assert.Len(t, trials[len(trials)-1].Rows, 5)
}

func TestStartSimulation_WhileRunningIsStateError(t *testing.T) {
	s := newTestService(t)
	seedRows(t, s)
	// Slow enough that the loop is still going when we poke it again.
	require.NoError(t, s.SetSimulationSpeed(1))
	require.NoError(t, s.SetTotalIterations(10000))

	require.NoError(t, s.StartSimulation())
	countAfterStart := len(s.Snapshot().Results.Simulations)

	err := s.StartSimulation()
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeStateError, apperrors.GetCode(err))
	// The rejected start must not disturb accumulated trials.
	assert.GreaterOrEqual(t, len(s.Snapshot().Results.Simulations), countAfterStart)

	require.NoError(t, s.PauseSimulation())
	assert.False(t, s.Snapshot().Control.IsSimulating)
}

func TestPauseSimulation_NotRunning(t *testing.T) {
	s := newTestService(t)

	err := s.PauseSimulation()
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeStateError, apperrors.GetCode(err))
}

func TestSimulation_ResumeAppendsOnlyTheDifference(t *testing.T) {
	s := newTestService(t)
	seedRows(t, s)
	require.NoError(t, s.SetSimulationSpeed(100))
	require.NoError(t, s.SetTotalIterations(10))

	runToCompletion(t, s)
	require.Len(t, s.Snapshot().Results.Simulations, 10)

	// Restarting with the target already met completes without a trial.
	runToCompletion(t, s)
	assert.Len(t, s.Snapshot().Results.Simulations, 10)

	// Raising the target resumes from where the run left off.
	require.NoError(t, s.SetTotalIterations(15))
	runToCompletion(t, s)
	assert.Len(t, s.Snapshot().Results.Simulations, 15)
}

func TestClearSimulationData(t *testing.T) {
	s := newTestService(t)
	seedRows(t, s)
	require.NoError(t, s.SetSimulationSpeed(100))
	require.NoError(t, s.SetTotalIterations(5))
	runToCompletion(t, s)

	s.ClearSimulationData()

	snap := s.Snapshot()
	assert.Empty(t, snap.Results.Simulations)
	assert.Nil(t, snap.Results.PValue)
	assert.Nil(t, snap.NullSummary)
	// The experiment table is untouched.
	assert.Len(t, snap.Table.Rows, 5)
}

func TestResetTable_WipesResultsToo(t *testing.T) {
	s := newTestService(t)
	seedRows(t, s)
	require.NoError(t, s.SetSimulationSpeed(100))
	require.NoError(t, s.SetTotalIterations(5))
	runToCompletion(t, s)

	_, err := s.ResetTable()
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Empty(t, snap.Results.Simulations)
	assert.Len(t, snap.Table.Rows, 1)
}

func TestSetTailType_RefreshesPValueWithoutNewTrials(t *testing.T) {
	s := newTestService(t)
	seedRows(t, s)
	require.NoError(t, s.SetSimulationSpeed(100))
	require.NoError(t, s.SetTotalIterations(10))
	runToCompletion(t, s)

	before := s.Snapshot()
	require.NotNil(t, before.Results.PValue)

	require.NoError(t, s.SetTailType("left"))

	after := s.Snapshot()
	assert.Len(t, after.Results.Simulations, 10)
	assert.NotNil(t, after.Results.PValue)
	assert.Equal(t, simulation.TailLeft, after.Settings.Tail)
}

func TestSetSelectedStatistic(t *testing.T) {
	s := newTestService(t)
	seedRows(t, s)

	require.NoError(t, s.SetSelectedStatistic("wilcoxon_rank_sum"))
	assert.Equal(t, "wilcoxon_rank_sum", s.Snapshot().Settings.StatisticName)

	err := s.SetSelectedStatistic("bogus")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationError, apperrors.GetCode(err))
}

func TestSetSelectedStatistic_TwoGroupStatRejectedForMultiArm(t *testing.T) {
	s := newTestService(t)
	_, err := s.AddColumn("Group C")
	require.NoError(t, err)

	err = s.SetSelectedStatistic("wilcoxon_rank_sum")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeValidationError, apperrors.GetCode(err))
}

func TestAddColumn_FallsBackToMultiTreatmentStatistic(t *testing.T) {
	s := newTestService(t)
	require.NoError(t, s.SetSelectedStatistic("wilcoxon_rank_sum"))

	_, err := s.AddColumn("Group C")
	require.NoError(t, err)

	snap := s.Snapshot()
	assert.Len(t, snap.Table.Columns, 3)
	assert.Equal(t, "anova_f", snap.Settings.StatisticName)
}

func TestSettings_InvalidValuesRejected(t *testing.T) {
	s := newTestService(t)

	for name, apply := range map[string]func() error{
		"zero speed":      func() error { return s.SetSimulationSpeed(0) },
		"excessive total": func() error { return s.SetTotalIterations(20000) },
		"unknown tail":    func() error { return s.SetTailType("diagonal") },
	} {
		t.Run(name, func(t *testing.T) {
			err := apply()
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeValidationError, apperrors.GetCode(err))
		})
	}

	// Settings are unchanged after the rejections.
	assert.Equal(t, simulation.DefaultSettings(), s.Snapshot().Settings)
}

func TestSubscribe_UnsubscribeStopsDelivery(t *testing.T) {
	s := newTestService(t)
	seedRows(t, s)
	require.NoError(t, s.SetSimulationSpeed(100))
	require.NoError(t, s.SetTotalIterations(3))

	delivered := 0
	unsubscribe := s.Subscribe(ports.ProgressFunc(func(simulation.ProgressEvent) {
		delivered++
	}))
	unsubscribe()

	runToCompletion(t, s)
	assert.Zero(t, delivered)
}

func TestSnapshot_IsDetachedCopy(t *testing.T) {
	s := newTestService(t)
	seedRows(t, s)
	require.NoError(t, s.SetSimulationSpeed(100))
	require.NoError(t, s.SetTotalIterations(3))
	runToCompletion(t, s)

	snap := s.Snapshot()
	snap.Table.Columns[0].Name = "mutated"
	*snap.Table.Rows[0].Data[0] = 999
	*snap.Results.Observed = 42
	*snap.Results.PValue = 2
	*snap.Results.Simulations[0].Rows[0].Data[0] = -5

	fresh := s.Snapshot()
	assert.Equal(t, "Group A", fresh.Table.Columns[0].Name)
	assert.Equal(t, 3.0, *fresh.Table.Rows[0].Data[0])
	assert.InDelta(t, 1.0, *fresh.Results.Observed, 1e-12)
	assert.LessOrEqual(t, *fresh.Results.PValue, 1.0)
	assert.Equal(t, 3.0, *fresh.Results.Simulations[0].Rows[0].Data[0])
}
