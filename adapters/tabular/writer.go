package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"metastats/domain/stats"
	"metastats/domain/table"
)

// Export is a rendered header+rows payload ready for CSV or XLSX download.
type Export struct {
	Sheet   string
	Headers []string
	Rows    [][]string
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// AnovaExport renders an ANOVA battery in its presentation column order.
func AnovaExport(res *stats.AnovaResult) Export {
	e := Export{
		Sheet:   "anova",
		Headers: []string{"metabolite", "p", "F", "p_bonferroni", "significant"},
	}
	for _, row := range res.Rows {
		e.Rows = append(e.Rows, []string{
			row.Feature.String(),
			formatFloat(row.PValue),
			formatFloat(row.FStatistic),
			formatFloat(row.PCorrected),
			strconv.FormatBool(row.Significant),
		})
	}
	return e
}

// TukeyExport renders a Tukey battery in its presentation column order.
func TukeyExport(res *stats.TukeyResult) Export {
	e := Export{
		Sheet:   "tukey",
		Headers: []string{"metabolite", "diff", "p_tukey", "p_bonferroni", "significant", "A", "B", "mean_A", "mean_B"},
	}
	for _, row := range res.Rows {
		e.Rows = append(e.Rows, []string{
			row.Feature.String(),
			formatFloat(row.Diff),
			formatFloat(row.PValue),
			formatFloat(row.PCorrected),
			strconv.FormatBool(row.Significant),
			row.GroupA,
			row.GroupB,
			formatFloat(row.MeanA),
			formatFloat(row.MeanB),
		})
	}
	return e
}

// TTestExport renders a t-test battery in its presentation column order.
func TTestExport(res *stats.TTestResult) Export {
	e := Export{
		Sheet:   "ttest",
		Headers: []string{"metabolite", "T", "p", "p_bonferroni", "significant", "attribute", "A", "B"},
	}
	for _, row := range res.Rows {
		e.Rows = append(e.Rows, []string{
			row.Feature.String(),
			formatFloat(row.Statistic),
			formatFloat(row.PValue),
			formatFloat(row.PCorrected),
			strconv.FormatBool(row.Significant),
			row.Attribute,
			row.GroupA,
			row.GroupB,
		})
	}
	return e
}

// TableExport renders a cleaned feature table, features as rows and samples
// as columns, the shape it arrived in.
func TableExport(ft *table.FeatureTable) Export {
	e := Export{Sheet: "features"}
	e.Headers = append(e.Headers, table.FeatureIDColumn)
	e.Headers = append(e.Headers, ft.Samples...)
	for i, feature := range ft.Features {
		row := make([]string, 0, len(ft.Samples)+1)
		row = append(row, feature.String())
		for _, v := range ft.Data[i] {
			row = append(row, formatFloat(v))
		}
		e.Rows = append(e.Rows, row)
	}
	return e
}

// WriteCSV streams the export as CSV.
func WriteCSV(w io.Writer, e Export) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(e.Headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, row := range e.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX streams the export as a single-sheet XLSX workbook.
func WriteXLSX(w io.Writer, e Export) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := e.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			return fmt.Errorf("failed to name sheet: %w", err)
		}
	}

	header := make([]interface{}, len(e.Headers))
	for i, h := range e.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, row := range e.Rows {
		cells := make([]interface{}, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		ref, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fmt.Errorf("failed to build cell reference: %w", err)
		}
		if err := f.SetSheetRow(sheet, ref, &cells); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
