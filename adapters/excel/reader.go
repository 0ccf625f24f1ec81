package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"permutest/domain/experiment"

	"github.com/xuri/excelize/v2"
)

// Reserved header names recognized alongside the group columns.
const (
	headerAssignment = "assignment"
	headerBlock      = "block"
)

// TableReader imports an experiment table from an .xlsx or .csv worksheet.
// The header row names the treatment columns; optional "assignment" and
// "block" columns carry the group index and block id per observation. Empty
// cells stay absent. The imported table always ends with a fresh staging row.
type TableReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewTableReader creates a reader that handles both Excel and CSV files.
func NewTableReader(filePath string) *TableReader {
	fileType := "xlsx"
	if strings.ToLower(filepath.Ext(filePath)) == ".csv" {
		fileType = "csv"
	}
	return &TableReader{filePath: filePath, fileType: fileType}
}

// ReadTable reads the worksheet into a table ready for SetTable.
func (r *TableReader) ReadTable(path string) (*experiment.Table, error) {
	if path == "" {
		path = r.filePath
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("import file not found: %s", path)
	}

	var rows [][]string
	var err error
	switch r.fileType {
	case "csv":
		rows, err = readCSVRows(path)
	default:
		rows, err = readSheetRows(path)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 1 {
		return nil, fmt.Errorf("import file must have a header row")
	}

	return buildTable(rows)
}

func readSheetRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, fmt.Errorf("failed to read worksheet: %w", err)
	}
	return rows, nil
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func buildTable(raw [][]string) (*experiment.Table, error) {
	header := raw[0]
	assignmentCol, blockCol := -1, -1
	groupCols := make([]int, 0, len(header))
	names := make([]string, 0, len(header))

	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case headerAssignment:
			assignmentCol = i
		case headerBlock:
			blockCol = i
		case "":
			// skip unnamed columns
		default:
			groupCols = append(groupCols, i)
			names = append(names, strings.TrimSpace(h))
		}
	}

	if len(groupCols) < 2 {
		return nil, fmt.Errorf("import needs at least two group columns, got %d", len(groupCols))
	}
	if len(groupCols) > len(experiment.Palette) {
		return nil, fmt.Errorf("import has %d group columns; at most %d supported",
			len(groupCols), len(experiment.Palette))
	}

	table := experiment.Table{
		Columns:   make([]experiment.Column, len(groupCols)),
		ColorPool: make([]experiment.ColorToken, len(experiment.Palette)-len(groupCols)),
	}
	for i, name := range names {
		table.Columns[i] = experiment.Column{Name: name, Color: experiment.Palette[i]}
	}
	copy(table.ColorPool, experiment.Palette[len(groupCols):])

	for lineNo, record := range raw[1:] {
		row := experiment.NewRow(len(groupCols))
		for target, src := range groupCols {
			if src >= len(record) {
				continue
			}
			cell := strings.TrimSpace(record[src])
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("row %d: cell %q is not numeric", lineNo+2, cell)
			}
			row.Data[target] = experiment.Float(v)
		}
		if assignmentCol >= 0 && assignmentCol < len(record) {
			if cell := strings.TrimSpace(record[assignmentCol]); cell != "" {
				a, err := strconv.Atoi(cell)
				if err != nil || a < 0 || a >= len(groupCols) {
					return nil, fmt.Errorf("row %d: assignment %q out of range", lineNo+2, cell)
				}
				row.Assignment = experiment.Int(a)
			}
		}
		if blockCol >= 0 && blockCol < len(record) {
			if cell := strings.TrimSpace(record[blockCol]); cell != "" {
				row.Block = experiment.String(cell)
			}
		}
		table.Rows = append(table.Rows, row)
	}

	// Trailing staging row for incremental entry.
	table.Rows = append(table.Rows, experiment.NewRow(len(groupCols)))

	return &table, nil
}
