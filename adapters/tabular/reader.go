package tabular

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"metastats/domain/table"
)

// DataReader reads feature quantification and metadata uploads. XLSX, CSV and
// TSV are supported; the format is picked from the file extension.
type DataReader struct {
	filePath string
	fileType string // "xlsx", "csv" or "tsv"
}

// NewDataReader creates a reader for the given upload path.
func NewDataReader(filePath string) *DataReader {
	fileType := "xlsx"
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv":
		fileType = "csv"
	case ".tsv", ".txt":
		fileType = "tsv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// ReadData reads the upload into an untyped header+rows table. Cells are
// trimmed; short rows are padded so every row matches the header width.
func (r *DataReader) ReadData() (*table.RawTable, error) {
	log.Printf("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	switch r.fileType {
	case "csv":
		return r.readDelimited(',')
	case "tsv":
		return r.readDelimited('\t')
	case "xlsx":
		return r.readExcel()
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcel reads the first sheet of an XLSX workbook.
func (r *DataReader) readExcel() (*table.RawTable, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()
	log.Printf("[DataReader] Excel file opened in %.2fms", float64(time.Since(startTime).Nanoseconds())/1e6)

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("Excel file has no sheets")
	}

	readStart := time.Now()
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}
	log.Printf("[DataReader] Sheet %s read in %.2fms (%d rows)",
		sheets[0], float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("Excel file must have at least a header row and one data row")
	}
	return r.processRows(rows)
}

// readDelimited reads CSV or TSV content.
func (r *DataReader) readDelimited(comma rune) (*table.RawTable, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file: %w", strings.ToUpper(r.fileType), err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	readStart := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s file: %w", strings.ToUpper(r.fileType), err)
	}
	log.Printf("[DataReader] %s file read in %.2fms (%d rows)",
		strings.ToUpper(r.fileType), float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))

	if len(rows) < 2 {
		return nil, fmt.Errorf("%s file must have at least a header row and one data row", strings.ToUpper(r.fileType))
	}
	return r.processRows(rows)
}

// processRows converts raw string rows into a RawTable.
func (r *DataReader) processRows(rows [][]string) (*table.RawTable, error) {
	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	dataRows := make([][]string, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		row := make([]string, len(headers))
		for j := range headers {
			if j < len(rows[i]) {
				row[j] = strings.TrimSpace(rows[i][j])
			}
		}
		dataRows = append(dataRows, row)
	}

	name := strings.TrimSuffix(filepath.Base(r.filePath), filepath.Ext(r.filePath))
	log.Printf("[DataReader] %s file processed (%d columns, %d rows)",
		strings.ToUpper(r.fileType), len(headers), len(dataRows))

	return &table.RawTable{
		Name:    name,
		Headers: headers,
		Rows:    dataRows,
	}, nil
}
