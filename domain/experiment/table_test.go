package experiment

import (
	"testing"

	"permutest/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	table := DefaultTable()

	require.Len(t, table.Columns, 2)
	assert.Len(t, table.Rows, 1)
	assert.Len(t, table.ColorPool, len(Palette)-2)

	// Columns and pool partition the palette.
	seen := map[ColorToken]bool{}
	for _, c := range table.Columns {
		seen[c.Color] = true
	}
	for _, c := range table.ColorPool {
		assert.False(t, seen[c], "pool color %s also assigned to a column", c)
		seen[c] = true
	}
	assert.Len(t, seen, len(Palette))
}

func TestRow_IsComplete(t *testing.T) {
	complete := Row{Data: []*float64{Float(1), Float(2)}, Assignment: Int(0)}
	assert.True(t, complete.IsComplete())

	missingCell := Row{Data: []*float64{Float(1), nil}, Assignment: Int(0)}
	assert.False(t, missingCell.IsComplete())

	missingAssignment := Row{Data: []*float64{Float(1), Float(2)}}
	assert.False(t, missingAssignment.IsComplete())

	assert.False(t, NewRow(2).IsComplete())
}

func TestTable_CloneIsDeep(t *testing.T) {
	table := DefaultTable()
	table.Rows[0].Data[0] = Float(7)
	table.Rows[0].Assignment = Int(1)
	table.Rows[0].Block = String("b1")

	clone := table.Clone()
	*clone.Rows[0].Data[0] = 99
	*clone.Rows[0].Assignment = 0
	clone.Columns[0].Name = "changed"
	clone.ColorPool[0] = "none"

	assert.Equal(t, 7.0, *table.Rows[0].Data[0])
	assert.Equal(t, 1, *table.Rows[0].Assignment)
	assert.Equal(t, "Group A", table.Columns[0].Name)
	assert.Equal(t, Palette[2], table.ColorPool[0])
}

func TestTable_ValidRows(t *testing.T) {
	table := DefaultTable()
	complete := Row{Data: []*float64{Float(1), Float(2)}, Assignment: Int(0)}
	table.Rows = []Row{complete, NewRow(2)}

	valid := table.ValidRows()
	require.Len(t, valid, 1)

	// Returned rows are copies.
	*valid[0].Data[0] = 42
	assert.Equal(t, 1.0, *table.Rows[0].Data[0])
}

func TestHistory_UndoRedo(t *testing.T) {
	var h History
	v1 := DefaultTable()
	v2 := v1.Clone()
	v2.Columns[0].Name = "Control"

	assert.False(t, h.CanUndo())
	assert.False(t, h.CanRedo())

	_, err := h.Undo(v2)
	assert.ErrorIs(t, err, core.ErrNothingToUndo)
	_, err = h.Redo(v2)
	assert.ErrorIs(t, err, core.ErrNothingToRedo)

	h.Push(v1)
	require.True(t, h.CanUndo())

	restored, err := h.Undo(v2)
	require.NoError(t, err)
	assert.Equal(t, "Group A", restored.Columns[0].Name)
	require.True(t, h.CanRedo())

	redone, err := h.Redo(restored)
	require.NoError(t, err)
	assert.Equal(t, "Control", redone.Columns[0].Name)
}

func TestHistory_PushDiscardsFuture(t *testing.T) {
	var h History
	v1 := DefaultTable()
	v2 := v1.Clone()

	h.Push(v1)
	_, err := h.Undo(v2)
	require.NoError(t, err)
	require.True(t, h.CanRedo())

	h.Push(v1)
	assert.False(t, h.CanRedo())
}
