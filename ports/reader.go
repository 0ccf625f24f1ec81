package ports

import (
	"permutest/domain/experiment"
)

// TableReaderPort imports an experiment table from an external worksheet.
// Implementations live on the collaborator side of the core boundary; the
// imported table enters the core through the store's SetTable operation.
type TableReaderPort interface {
	ReadTable(path string) (*experiment.Table, error)
}
