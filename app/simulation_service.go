package app

import (
	"context"
	"errors"
	"sync"

	"permutest/adapters/stats/statistics"
	"permutest/domain/core"
	"permutest/domain/experiment"
	"permutest/domain/simulation"
	"permutest/internal"
	"permutest/internal/engine"
	apperrors "permutest/internal/errors"
	"permutest/internal/store"
	"permutest/ports"
)

// StatisticInfo describes one registry entry on the read surface.
type StatisticInfo struct {
	Name                       string `json:"name"`
	DisplayName                string `json:"display_name"`
	SupportsMultipleTreatments bool   `json:"supports_multiple_treatments"`
}

// Snapshot is the immutable read surface handed to collaborators after
// every mutation or progress tick.
type Snapshot struct {
	Table       experiment.Table        `json:"table"`
	Settings    simulation.Settings     `json:"settings"`
	Control     simulation.Control      `json:"control"`
	Results     simulation.Results      `json:"results"`
	NullSummary *simulation.NullSummary `json:"null_summary,omitempty"`
	Statistics  []StatisticInfo         `json:"statistics"`
	CanUndo     bool                    `json:"can_undo"`
	CanRedo     bool                    `json:"can_redo"`
	LastError   string                  `json:"last_error,omitempty"`
}

// SimulationService composes the experiment store, the statistic registry
// and the permutation engine behind one mutex-serialized mutation entry
// point. No iteration ever observes a table mid-mutation.
type SimulationService struct {
	mu         sync.Mutex
	store      *store.Store
	registry   *statistics.Registry
	engine     *engine.Engine
	settings   simulation.Settings
	results    simulation.Results
	running    bool
	cancel     context.CancelFunc
	loopDone   chan struct{}
	observers  map[int]ports.ProgressObserver
	observerID int
	lastErr    error
	sessionID  core.SessionID
	log        *internal.Logger
}

// NewSimulationService wires a fresh session around the default table.
func NewSimulationService(st *store.Store, registry *statistics.Registry, eng *engine.Engine, log *internal.Logger) *SimulationService {
	s := &SimulationService{
		store:     st,
		registry:  registry,
		engine:    eng,
		settings:  simulation.DefaultSettings(),
		sessionID: core.SessionID(core.NewID()),
		observers: make(map[int]ports.ProgressObserver),
		log:       log.With("controller"),
	}
	s.recomputeDerivedLocked()
	return s
}

// SessionID identifies this controller instance.
func (s *SimulationService) SessionID() core.SessionID { return s.sessionID }

// Subscribe registers a progress observer and returns an unsubscribe
// function. Observers get one call per completed trial and one final call
// when a loop terminates.
func (s *SimulationService) Subscribe(observer ports.ProgressObserver) func() {
	s.mu.Lock()
	s.observerID++
	id := s.observerID
	s.observers[id] = observer
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// ---- table operations (write surface) ----

// mutate runs one store operation under the lock and refreshes derived
// state on success. Failures are classified and retained as the last error.
func (s *SimulationService) mutate(op func() ([]string, error)) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	warnings, err := op()
	if err != nil {
		appErr := apperrors.FromDomain(err)
		s.lastErr = appErr
		return warnings, appErr
	}
	s.recomputeDerivedLocked()
	return warnings, nil
}

func (s *SimulationService) SetTable(table *experiment.Table) ([]string, error) {
	return s.mutate(func() ([]string, error) { return s.store.SetTable(table) })
}

// ResetTable restores the default template and wipes simulation data.
func (s *SimulationService) ResetTable() ([]string, error) {
	return s.mutate(func() ([]string, error) {
		warnings, err := s.store.ResetTable()
		if err == nil {
			s.clearResultsLocked()
		}
		return warnings, err
	})
}

func (s *SimulationService) ClearCellValues() ([]string, error) {
	return s.mutate(func() ([]string, error) { return s.store.ClearCellValues() })
}

func (s *SimulationService) AddRow() ([]string, error) {
	return s.mutate(func() ([]string, error) { return s.store.AddRow() })
}

func (s *SimulationService) DeleteRow(index int) ([]string, error) {
	return s.mutate(func() ([]string, error) { return s.store.DeleteRow(index) })
}

func (s *SimulationService) UpdateCell(rowIndex, columnIndex int, value *float64) ([]string, error) {
	return s.mutate(func() ([]string, error) { return s.store.UpdateCell(rowIndex, columnIndex, value) })
}

func (s *SimulationService) SetAssignment(rowIndex int, assignment *int) ([]string, error) {
	return s.mutate(func() ([]string, error) { return s.store.SetAssignment(rowIndex, assignment) })
}

func (s *SimulationService) SetBlock(rowIndex int, block *string) ([]string, error) {
	return s.mutate(func() ([]string, error) { return s.store.SetBlock(rowIndex, block) })
}

func (s *SimulationService) RenameColumn(index int, newName string) ([]string, error) {
	return s.mutate(func() ([]string, error) { return s.store.RenameColumn(index, newName) })
}

// AddColumn appends a treatment group. When the design grows from two to
// three columns and the selected statistic cannot handle multiple
// treatments, the selection falls back to the first registry entry that can.
func (s *SimulationService) AddColumn(newName string) ([]string, error) {
	return s.mutate(func() ([]string, error) {
		before := len(s.store.Table().Columns)
		warnings, err := s.store.AddColumn(newName)
		if err != nil {
			return warnings, err
		}
		if before == 2 {
			selected, lookupErr := s.registry.Lookup(s.settings.StatisticName)
			if lookupErr == nil && !selected.SupportsMultipleTreatments() {
				if multi, ok := s.registry.FirstMultiTreatment(); ok {
					s.log.Info("switching statistic %s -> %s for multi-arm design",
						selected.Name(), multi.Name())
					s.settings.StatisticName = multi.Name()
				}
			}
		}
		return warnings, nil
	})
}

func (s *SimulationService) RemoveColumn(index int) ([]string, error) {
	return s.mutate(func() ([]string, error) { return s.store.RemoveColumn(index) })
}

func (s *SimulationService) Undo() ([]string, error) {
	return s.mutate(func() ([]string, error) { return s.store.Undo() })
}

func (s *SimulationService) Redo() ([]string, error) {
	return s.mutate(func() ([]string, error) { return s.store.Redo() })
}

// ---- settings operations ----

// applySettings validates and installs a settings candidate, then refreshes
// derived state (observed statistic and p-value never consume a trial).
func (s *SimulationService) applySettings(next simulation.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := next.Validate(); err != nil {
		appErr := apperrors.FromDomain(err)
		s.lastErr = appErr
		return appErr
	}
	s.settings = next
	s.recomputeDerivedLocked()
	return nil
}

func (s *SimulationService) SetSimulationSpeed(speed int) error {
	next := s.currentSettings()
	next.Speed = speed
	return s.applySettings(next)
}

// SetSelectedStatistic switches the test statistic. Selecting a two-group
// statistic while the design has more than two columns is rejected up
// front rather than failing on every later evaluation.
func (s *SimulationService) SetSelectedStatistic(name string) error {
	s.mu.Lock()
	stat, err := s.registry.Lookup(name)
	if err != nil {
		appErr := apperrors.FromDomain(err)
		s.lastErr = appErr
		s.mu.Unlock()
		return appErr
	}
	if !stat.SupportsMultipleTreatments() && len(s.store.Table().Columns) > 2 {
		appErr := apperrors.ValidationError(
			stat.DisplayName() + " supports only two treatment groups")
		s.lastErr = appErr
		s.mu.Unlock()
		return appErr
	}
	s.mu.Unlock()

	next := s.currentSettings()
	next.StatisticName = name
	return s.applySettings(next)
}

func (s *SimulationService) SetTotalIterations(total int) error {
	next := s.currentSettings()
	next.TotalIterations = total
	return s.applySettings(next)
}

func (s *SimulationService) SetTailType(tail string) error {
	parsed, err := simulation.ParseTailType(tail)
	if err != nil {
		s.mu.Lock()
		appErr := apperrors.FromDomain(err)
		s.lastErr = appErr
		s.mu.Unlock()
		return appErr
	}
	next := s.currentSettings()
	next.Tail = parsed
	return s.applySettings(next)
}

func (s *SimulationService) SetBlockingEnabled(enabled bool) error {
	next := s.currentSettings()
	next.BlockingEnabled = enabled
	return s.applySettings(next)
}

func (s *SimulationService) currentSettings() simulation.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// ---- engine control ----

// StartSimulation launches the Monte Carlo loop. Accumulated results are
// kept: a restarted loop continues from the trial after the last one.
func (s *SimulationService) StartSimulation() error {
	s.mu.Lock()
	if s.running {
		appErr := apperrors.FromDomain(core.ErrSimulationRunning)
		s.lastErr = appErr
		s.mu.Unlock()
		return appErr
	}
	if len(s.store.ValidRows()) < 2 {
		appErr := apperrors.FromDomain(core.ErrNotEnoughRows)
		s.lastErr = appErr
		s.mu.Unlock()
		return appErr
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.loopDone = done
	s.running = true
	s.mu.Unlock()

	go s.runLoop(ctx, done)
	return nil
}

// PauseSimulation cancels the running loop and waits until it has fully
// unwound, so no delayed continuation can fire afterwards.
func (s *SimulationService) PauseSimulation() error {
	s.mu.Lock()
	if !s.running {
		appErr := apperrors.FromDomain(core.ErrSimulationNotRunning)
		s.lastErr = appErr
		s.mu.Unlock()
		return appErr
	}
	cancel := s.cancel
	done := s.loopDone
	s.mu.Unlock()

	cancel()
	<-done
	return nil
}

// ClearSimulationData wipes trials, the p-value and the observed statistic,
// independent of any table mutation.
func (s *SimulationService) ClearSimulationData() {
	s.mu.Lock()
	s.clearResultsLocked()
	s.mu.Unlock()
}

func (s *SimulationService) runLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	err := s.engine.Run(ctx, s.engineSource, s.engineSink)

	s.mu.Lock()
	s.running = false
	s.cancel = nil
	if err != nil && !errors.Is(err, context.Canceled) {
		s.lastErr = apperrors.FromDomain(err)
	}
	event := s.progressEventLocked(nil, true)
	observers := s.observersLocked()
	s.mu.Unlock()

	for _, o := range observers {
		o.OnProgress(event)
	}
}

// engineSource re-derives the loop snapshot under the lock. Table edits
// made while running therefore apply from the next trial on, with already
// accumulated trials preserved.
func (s *SimulationService) engineSource() (engine.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.store.ValidRows()
	if len(rows) < 2 {
		return engine.Snapshot{}, core.ErrNotEnoughRows
	}
	return engine.Snapshot{
		Rows:      rows,
		Blocking:  s.settings.BlockingEnabled,
		Completed: len(s.results.Simulations),
		Total:     s.settings.TotalIterations,
		Delay:     engine.DelayForSpeed(s.settings.Speed),
	}, nil
}

// engineSink appends one trial, refreshes the running p-value and fans the
// progress event out to observers outside the lock.
func (s *SimulationService) engineSink(trial simulation.Result) {
	s.mu.Lock()
	s.results.Simulations = append(s.results.Simulations, trial)

	var trialStat *float64
	if stat, err := s.registry.Lookup(s.settings.StatisticName); err == nil {
		if v, computeErr := stat.Compute(trial.Rows); computeErr == nil {
			trialStat = &v
		}
		s.refreshPValueLocked(stat)
	}

	event := s.progressEventLocked(trialStat, false)
	observers := s.observersLocked()
	s.mu.Unlock()

	for _, o := range observers {
		o.OnProgress(event)
	}
}

// ---- derived state ----

// recomputeDerivedLocked is the explicit derived-state pass run after any
// mutation that can change the valid rows, the statistic or the tail. The
// observed statistic is computed synchronously, never as a trial.
func (s *SimulationService) recomputeDerivedLocked() {
	rows := s.store.ValidRows()
	stat, err := s.registry.Lookup(s.settings.StatisticName)
	if err != nil {
		s.results.Observed = nil
		s.results.PValue = nil
		s.lastErr = apperrors.FromDomain(err)
		return
	}
	if len(rows) == 0 {
		s.results.Observed = nil
		s.results.PValue = nil
		return
	}
	observed, err := stat.Compute(rows)
	if err != nil {
		// A statistic that cannot be evaluated for this design is a
		// recoverable failure of the evaluation, not of the mutation.
		s.results.Observed = nil
		s.results.PValue = nil
		s.lastErr = apperrors.FromDomain(err)
		return
	}
	s.results.Observed = &observed
	s.refreshPValueLocked(stat)
}

// refreshPValueLocked re-estimates the p-value from the accumulated trials
// without consuming a new one.
func (s *SimulationService) refreshPValueLocked(stat statistics.Statistic) {
	if s.results.Observed == nil || len(s.results.Simulations) == 0 {
		s.results.PValue = nil
		return
	}
	simulated := s.simulatedStatisticsLocked(stat)
	if len(simulated) == 0 {
		s.results.PValue = nil
		return
	}
	p, err := simulation.EstimatePValue(*s.results.Observed, simulated, s.settings.Tail)
	if err != nil {
		s.results.PValue = nil
		return
	}
	s.results.PValue = &p
}

// simulatedStatisticsLocked recomputes the selected statistic over every
// stored trial. Trials are stored as row sets, not cached scalars, so a
// statistic switch mid-run can never read stale values.
func (s *SimulationService) simulatedStatisticsLocked(stat statistics.Statistic) []float64 {
	out := make([]float64, 0, len(s.results.Simulations))
	for _, trial := range s.results.Simulations {
		v, err := stat.Compute(trial.Rows)
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func (s *SimulationService) clearResultsLocked() {
	s.results = simulation.Results{}
}

func (s *SimulationService) progressEventLocked(trialStat *float64, done bool) simulation.ProgressEvent {
	return simulation.ProgressEvent{
		Completed: len(s.results.Simulations),
		Total:     s.settings.TotalIterations,
		Statistic: trialStat,
		PValue:    s.results.PValue,
		Done:      done,
	}
}

func (s *SimulationService) observersLocked() []ports.ProgressObserver {
	out := make([]ports.ProgressObserver, 0, len(s.observers))
	for _, o := range s.observers {
		out = append(out, o)
	}
	return out
}

// ---- read surface ----

// Snapshot returns the immutable state exposed to collaborators.
func (s *SimulationService) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Table:    s.store.Table(),
		Settings: s.settings,
		Control:  simulation.Control{IsSimulating: s.running},
		Results:  s.results.Clone(),
		CanUndo: s.store.CanUndo(),
		CanRedo: s.store.CanRedo(),
	}
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	for _, stat := range s.registry.List() {
		snap.Statistics = append(snap.Statistics, StatisticInfo{
			Name:                       stat.Name(),
			DisplayName:                stat.DisplayName(),
			SupportsMultipleTreatments: stat.SupportsMultipleTreatments(),
		})
	}
	if stat, err := s.registry.Lookup(s.settings.StatisticName); err == nil {
		if simulated := s.simulatedStatisticsLocked(stat); len(simulated) > 0 {
			if summary, err := simulation.Summarize(simulated); err == nil {
				snap.NullSummary = &summary
			}
		}
	}
	return snap
}
