package experiment

import (
	"permutest/domain/core"
)

// History keeps linear undo/redo snapshots of the table. Any new snapshot
// discards the redo stack (branch-discarding model).
type History struct {
	past   []Table
	future []Table
}

// Push records a pre-mutation snapshot and clears the redo stack.
func (h *History) Push(snapshot Table) {
	h.past = append(h.past, snapshot)
	h.future = nil
}

// Undo exchanges the current table for the most recent snapshot. The
// current table moves onto the redo stack.
func (h *History) Undo(current Table) (Table, error) {
	if len(h.past) == 0 {
		return Table{}, core.ErrNothingToUndo
	}
	prev := h.past[len(h.past)-1]
	h.past = h.past[:len(h.past)-1]
	h.future = append(h.future, current)
	return prev, nil
}

// Redo exchanges the current table for the most recently undone snapshot.
func (h *History) Redo(current Table) (Table, error) {
	if len(h.future) == 0 {
		return Table{}, core.ErrNothingToRedo
	}
	next := h.future[len(h.future)-1]
	h.future = h.future[:len(h.future)-1]
	h.past = append(h.past, current)
	return next, nil
}

// CanUndo reports whether an undo snapshot exists.
func (h *History) CanUndo() bool { return len(h.past) > 0 }

// CanRedo reports whether a redo snapshot exists.
func (h *History) CanRedo() bool { return len(h.future) > 0 }

// Clear drops both stacks.
func (h *History) Clear() {
	h.past = nil
	h.future = nil
}
