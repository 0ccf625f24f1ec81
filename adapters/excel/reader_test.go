package excel

import (
	"os"
	"path/filepath"
	"testing"

	"permutest/domain/experiment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "import.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadTable_CSV(t *testing.T) {
	path := writeCSV(t, `Control,Treatment,assignment,block
3,,0,site-a
5,,0,site-a
,4,1,site-b
,6,1,
`)

	table, err := NewTableReader(path).ReadTable("")
	require.NoError(t, err)

	require.Len(t, table.Columns, 2)
	assert.Equal(t, "Control", table.Columns[0].Name)
	assert.Equal(t, "Treatment", table.Columns[1].Name)
	assert.Equal(t, experiment.Palette[0], table.Columns[0].Color)
	assert.Len(t, table.ColorPool, len(experiment.Palette)-2)

	// Four data rows plus the trailing staging row.
	require.Len(t, table.Rows, 5)
	assert.Equal(t, 3.0, *table.Rows[0].Data[0])
	assert.Nil(t, table.Rows[0].Data[1])
	assert.Equal(t, 0, *table.Rows[0].Assignment)
	assert.Equal(t, "site-a", *table.Rows[0].Block)
	assert.Equal(t, 1, *table.Rows[2].Assignment)
	assert.Nil(t, table.Rows[3].Block)
	assert.False(t, table.Rows[4].IsComplete())
}

func TestReadTable_MissingFile(t *testing.T) {
	_, err := NewTableReader(filepath.Join(t.TempDir(), "absent.csv")).ReadTable("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestReadTable_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "single group column",
			content: "Control,assignment\n1,0\n",
			wantErr: "at least two group columns",
		},
		{
			name:    "non numeric cell",
			content: "A,B\n1,2\nx,3\n",
			wantErr: "not numeric",
		},
		{
			name:    "assignment out of range",
			content: "A,B,assignment\n1,2,7\n",
			wantErr: "out of range",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTableReader(writeCSV(t, tt.content)).ReadTable("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestReadTable_RaggedRecordsTolerated(t *testing.T) {
	// Short records simply leave trailing cells absent.
	path := writeCSV(t, "A,B,block\n1\n2,3,west\n")

	table, err := NewTableReader(path).ReadTable("")
	require.NoError(t, err)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, 1.0, *table.Rows[0].Data[0])
	assert.Nil(t, table.Rows[0].Data[1])
	assert.Equal(t, "west", *table.Rows[1].Block)
}
