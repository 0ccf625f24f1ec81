package experiment

// ColorToken identifies a display color assigned to a column.
type ColorToken string

// Palette is the fixed set of column colors. At any point in time the
// columns' colors and the table's color pool partition this set.
var Palette = []ColorToken{
	"indigo",
	"rose",
	"emerald",
	"amber",
	"sky",
	"violet",
	"lime",
	"fuchsia",
}

// Column describes one treatment group. Its position in the table doubles
// as the group label used by row assignments.
type Column struct {
	Name  string     `json:"name"`
	Color ColorToken `json:"color"`
}

// Row is one observation. Cells and the assignment are optional while the
// row is being entered; Block groups rows for blocked randomization.
type Row struct {
	Data       []*float64 `json:"data"`
	Assignment *int       `json:"assignment,omitempty"`
	Block      *string    `json:"block,omitempty"`
}

// NewRow creates an empty row with one absent cell per column.
func NewRow(width int) Row {
	return Row{Data: make([]*float64, width)}
}

// IsComplete reports whether the row can participate in statistics:
// every cell present and an assignment present.
func (r Row) IsComplete() bool {
	if r.Assignment == nil || len(r.Data) == 0 {
		return false
	}
	for _, v := range r.Data {
		if v == nil {
			return false
		}
	}
	return true
}

// Clone returns a deep copy of the row.
func (r Row) Clone() Row {
	out := Row{Data: make([]*float64, len(r.Data))}
	for i, v := range r.Data {
		if v != nil {
			val := *v
			out.Data[i] = &val
		}
	}
	if r.Assignment != nil {
		a := *r.Assignment
		out.Assignment = &a
	}
	if r.Block != nil {
		b := *r.Block
		out.Block = &b
	}
	return out
}

// CloneRows deep-copies a slice of rows.
func CloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

// Table is the full experiment design: treatment columns, observation rows
// (the last row is always the staging row) and the pool of unused colors.
type Table struct {
	Columns   []Column     `json:"columns"`
	Rows      []Row        `json:"rows"`
	ColorPool []ColorToken `json:"color_pool"`
}

// DefaultTable returns the two-column, one-staging-row template every
// session starts from.
func DefaultTable() Table {
	cols := []Column{
		{Name: "Group A", Color: Palette[0]},
		{Name: "Group B", Color: Palette[1]},
	}
	pool := make([]ColorToken, len(Palette)-2)
	copy(pool, Palette[2:])
	return Table{
		Columns:   cols,
		Rows:      []Row{NewRow(len(cols))},
		ColorPool: pool,
	}
}

// Clone returns a deep copy of the table.
func (t Table) Clone() Table {
	out := Table{
		Columns:   make([]Column, len(t.Columns)),
		Rows:      CloneRows(t.Rows),
		ColorPool: make([]ColorToken, len(t.ColorPool)),
	}
	copy(out.Columns, t.Columns)
	copy(out.ColorPool, t.ColorPool)
	return out
}

// StagingIndex returns the index of the trailing staging row.
func (t Table) StagingIndex() int {
	return len(t.Rows) - 1
}

// ValidRows returns deep copies of every complete row, in table order.
func (t Table) ValidRows() []Row {
	out := make([]Row, 0, len(t.Rows))
	for _, r := range t.Rows {
		if r.IsComplete() {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Value pointer helpers for building rows.
func Float(v float64) *float64 { return &v }
func Int(v int) *int           { return &v }
func String(v string) *string  { return &v }
