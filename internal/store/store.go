package store

import (
	"fmt"
	"strings"

	"permutest/domain/core"
	"permutest/domain/experiment"
)

// Row-count warning thresholds. Neither blocks the operation.
const (
	rowCountSoftLimit = 50
	rowCountHardLimit = 100
)

// Store owns the experiment table and its linear undo/redo history. Every
// mutation operates on a deep copy and commits atomically: a failed
// operation leaves both the table and the history untouched.
type Store struct {
	table   experiment.Table
	history experiment.History
}

// New creates a store seeded with the default two-column template.
func New() *Store {
	return &Store{table: experiment.DefaultTable()}
}

// Table returns a deep copy of the current table.
func (s *Store) Table() experiment.Table {
	return s.table.Clone()
}

// ValidRows returns deep copies of the complete rows.
func (s *Store) ValidRows() []experiment.Row {
	return s.table.ValidRows()
}

// CanUndo reports whether an undo snapshot exists.
func (s *Store) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether a redo snapshot exists.
func (s *Store) CanRedo() bool { return s.history.CanRedo() }

// commit records the current table on the undo stack and installs next.
func (s *Store) commit(next experiment.Table) {
	s.history.Push(s.table)
	s.table = next
}

// SetTable fully replaces the table.
func (s *Store) SetTable(newTable *experiment.Table) ([]string, error) {
	if newTable == nil {
		return nil, core.ErrNilTable
	}
	if len(newTable.Columns) < 2 {
		return nil, core.ErrMinimumColumns
	}
	s.commit(newTable.Clone())
	return nil, nil
}

// ResetTable replaces the table with the default template. The caller is
// responsible for clearing simulation results alongside.
func (s *Store) ResetTable() ([]string, error) {
	s.commit(experiment.DefaultTable())
	return nil, nil
}

// ClearCellValues blanks every cell value while keeping columns,
// assignments and blocks.
func (s *Store) ClearCellValues() ([]string, error) {
	next := s.table.Clone()
	for i := range next.Rows {
		next.Rows[i].Data = make([]*float64, len(next.Columns))
	}
	s.commit(next)
	return nil, nil
}

// AddRow appends a fresh staging row. The previous staging row stops being
// staging and is finalized toward the second column's group by convention.
func (s *Store) AddRow() ([]string, error) {
	next := s.table.Clone()
	prev := next.StagingIndex()
	next.Rows[prev].Assignment = experiment.Int(1)
	next.Rows = append(next.Rows, experiment.NewRow(len(next.Columns)))
	s.commit(next)

	var warnings []string
	if n := len(s.table.Rows); n > rowCountHardLimit {
		warnings = append(warnings,
			fmt.Sprintf("row count %d exceeds %d; expect degraded stability", n, rowCountHardLimit))
	} else if n > rowCountSoftLimit {
		warnings = append(warnings,
			fmt.Sprintf("row count %d exceeds %d; simulation may slow down", n, rowCountSoftLimit))
	}
	return warnings, nil
}

// DeleteRow removes the row at index. If the staging row itself is removed
// the table is left with a fresh staging row so one is always present.
func (s *Store) DeleteRow(index int) ([]string, error) {
	if index < 0 || index >= len(s.table.Rows) {
		return nil, core.NewRowIndexError(index, len(s.table.Rows))
	}
	next := s.table.Clone()
	next.Rows = append(next.Rows[:index], next.Rows[index+1:]...)
	if len(next.Rows) == 0 {
		next.Rows = append(next.Rows, experiment.NewRow(len(next.Columns)))
	}
	s.commit(next)
	return nil, nil
}

// UpdateCell sets one cell. Editing the staging row assigns the row to the
// edited column and, when the value is present, appends a new staging row
// so an incomplete trailing row is always available for entry.
func (s *Store) UpdateCell(rowIndex, columnIndex int, value *float64) ([]string, error) {
	if rowIndex < 0 || rowIndex >= len(s.table.Rows) {
		return nil, core.NewRowIndexError(rowIndex, len(s.table.Rows))
	}
	if columnIndex < 0 || columnIndex >= len(s.table.Columns) {
		return nil, core.NewColumnIndexError(columnIndex, len(s.table.Columns))
	}

	next := s.table.Clone()
	wasStaging := rowIndex == next.StagingIndex()
	if value != nil {
		next.Rows[rowIndex].Data[columnIndex] = experiment.Float(*value)
	} else {
		next.Rows[rowIndex].Data[columnIndex] = nil
	}
	if wasStaging {
		next.Rows[rowIndex].Assignment = experiment.Int(columnIndex)
		if value != nil {
			next.Rows = append(next.Rows, experiment.NewRow(len(next.Columns)))
		}
	}
	s.commit(next)
	return nil, nil
}

// SetAssignment sets a row's group. A present assignment is taken modulo
// the column count. Assigning the staging row appends a new staging row,
// mirroring UpdateCell.
func (s *Store) SetAssignment(rowIndex int, assignment *int) ([]string, error) {
	if rowIndex < 0 || rowIndex >= len(s.table.Rows) {
		return nil, core.NewRowIndexError(rowIndex, len(s.table.Rows))
	}

	next := s.table.Clone()
	wasStaging := rowIndex == next.StagingIndex()
	if assignment != nil {
		cols := len(next.Columns)
		a := ((*assignment % cols) + cols) % cols
		next.Rows[rowIndex].Assignment = experiment.Int(a)
	} else {
		next.Rows[rowIndex].Assignment = nil
	}
	if wasStaging {
		next.Rows = append(next.Rows, experiment.NewRow(len(next.Columns)))
	}
	s.commit(next)
	return nil, nil
}

// SetBlock sets a row's block identifier. No staging-row side effect.
func (s *Store) SetBlock(rowIndex int, block *string) ([]string, error) {
	if rowIndex < 0 || rowIndex >= len(s.table.Rows) {
		return nil, core.NewRowIndexError(rowIndex, len(s.table.Rows))
	}
	next := s.table.Clone()
	if block != nil {
		next.Rows[rowIndex].Block = experiment.String(*block)
	} else {
		next.Rows[rowIndex].Block = nil
	}
	s.commit(next)
	return nil, nil
}

// RenameColumn renames a treatment group.
func (s *Store) RenameColumn(index int, newName string) ([]string, error) {
	if index < 0 || index >= len(s.table.Columns) {
		return nil, core.NewColumnIndexError(index, len(s.table.Columns))
	}
	if strings.TrimSpace(newName) == "" {
		return nil, core.ErrBlankColumnName
	}
	next := s.table.Clone()
	next.Columns[index].Name = newName
	s.commit(next)
	return nil, nil
}

// AddColumn appends a treatment group, taking the next color from the pool
// and widening every row with an absent cell.
func (s *Store) AddColumn(newName string) ([]string, error) {
	if strings.TrimSpace(newName) == "" {
		return nil, core.ErrBlankColumnName
	}
	if len(s.table.ColorPool) == 0 {
		return nil, fmt.Errorf("%w: color palette exhausted at %d columns",
			core.ErrInvalidSettings, len(s.table.Columns))
	}

	next := s.table.Clone()
	color := next.ColorPool[0]
	next.ColorPool = next.ColorPool[1:]
	next.Columns = append(next.Columns, experiment.Column{Name: newName, Color: color})
	for i := range next.Rows {
		next.Rows[i].Data = append(next.Rows[i].Data, nil)
	}
	s.commit(next)
	return nil, nil
}

// RemoveColumn removes a treatment group, returning its color to the front
// of the pool (so re-adding a column round-trips the same color) and
// re-indexing every assignment at or above the removed index.
func (s *Store) RemoveColumn(index int) ([]string, error) {
	if index < 0 || index >= len(s.table.Columns) {
		return nil, core.NewColumnIndexError(index, len(s.table.Columns))
	}
	if len(s.table.Columns) == 2 {
		return nil, core.ErrMinimumColumns
	}

	next := s.table.Clone()
	color := next.Columns[index].Color
	next.Columns = append(next.Columns[:index], next.Columns[index+1:]...)
	next.ColorPool = append([]experiment.ColorToken{color}, next.ColorPool...)
	for i := range next.Rows {
		row := &next.Rows[i]
		row.Data = append(row.Data[:index], row.Data[index+1:]...)
		if row.Assignment != nil && *row.Assignment >= index {
			a := *row.Assignment - 1
			if a < 0 {
				a = 0
			}
			row.Assignment = experiment.Int(a)
		}
	}
	s.commit(next)
	return nil, nil
}

// Undo restores the table that preceded the last mutation.
func (s *Store) Undo() ([]string, error) {
	prev, err := s.history.Undo(s.table)
	if err != nil {
		return nil, err
	}
	s.table = prev
	return nil, nil
}

// Redo restores the table superseded by the last undo.
func (s *Store) Redo() ([]string, error) {
	next, err := s.history.Redo(s.table)
	if err != nil {
		return nil, err
	}
	s.table = next
	return nil, nil
}
