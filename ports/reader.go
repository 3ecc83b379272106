package ports

import (
	"metastats/domain/table"
)

// TableReaderPort parses an uploaded quantification or metadata file into its
// untyped header+rows form. Implementations pick the format from the path.
type TableReaderPort interface {
	ReadData() (*table.RawTable, error)
}

// ReaderFactory builds a reader for one upload path.
type ReaderFactory func(path string) TableReaderPort
