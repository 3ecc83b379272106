package tabular

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/xuri/excelize/v2"

	"metastats/domain/core"
	"metastats/domain/stats"
	"metastats/domain/table"
)

func sampleAnovaResult() *stats.AnovaResult {
	return &stats.AnovaResult{
		Attribute: "ATTRIBUTE_group",
		Rows: []stats.AnovaRow{
			{Feature: "M1", PValue: 0.001, FStatistic: 25.5, PCorrected: 0.002, Significant: true},
			{Feature: "M2", PValue: 0.2, FStatistic: 1.7, PCorrected: 0.4, Significant: false},
		},
		TestedCount: 2,
	}
}

func TestAnovaExport_ColumnOrder(t *testing.T) {
	e := AnovaExport(sampleAnovaResult())

	want := []string{"metabolite", "p", "F", "p_bonferroni", "significant"}
	for i, h := range want {
		if e.Headers[i] != h {
			t.Errorf("header %d: expected %q, got %q", i, h, e.Headers[i])
		}
	}
	if len(e.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(e.Rows))
	}
	if e.Rows[0][0] != "M1" || e.Rows[0][4] != "true" {
		t.Errorf("unexpected first row: %v", e.Rows[0])
	}
	if e.Rows[1][1] != "0.2" || e.Rows[1][4] != "false" {
		t.Errorf("unexpected second row: %v", e.Rows[1])
	}
}

func TestTTestExport_ColumnOrder(t *testing.T) {
	res := &stats.TTestResult{
		Attribute: "ATTRIBUTE_dose",
		GroupA:    "low",
		GroupB:    "high",
		Rows: []stats.TTestRow{
			{Feature: "M1", Statistic: -2.5, PValue: 0.03, PCorrected: 0.03, Significant: true,
				Attribute: "ATTRIBUTE_dose", GroupA: "low", GroupB: "high"},
		},
		TestedCount: 1,
	}
	e := TTestExport(res)

	want := []string{"metabolite", "T", "p", "p_bonferroni", "significant", "attribute", "A", "B"}
	if len(e.Headers) != len(want) {
		t.Fatalf("expected %d headers, got %v", len(want), e.Headers)
	}
	for i, h := range want {
		if e.Headers[i] != h {
			t.Errorf("header %d: expected %q, got %q", i, h, e.Headers[i])
		}
	}
	if e.Rows[0][1] != "-2.5" || e.Rows[0][6] != "low" || e.Rows[0][7] != "high" {
		t.Errorf("unexpected row: %v", e.Rows[0])
	}
}

func TestTableExport_ShapeMatchesUpload(t *testing.T) {
	ft := &table.FeatureTable{
		Features: []core.FeatureKey{"M1", "M2"},
		Samples:  []string{"A1", "A2", "A3"},
		Data: [][]float64{
			{1, 0, 3},
			{4.5, 5, 0},
		},
	}
	e := TableExport(ft)

	if e.Headers[0] != table.FeatureIDColumn {
		t.Errorf("expected feature id header first, got %q", e.Headers[0])
	}
	if len(e.Headers) != 4 {
		t.Fatalf("expected 4 headers, got %v", e.Headers)
	}
	if e.Rows[0][0] != "M1" || e.Rows[0][2] != "0" {
		t.Errorf("unexpected first row: %v", e.Rows[0])
	}
	if e.Rows[1][1] != "4.5" {
		t.Errorf("unexpected second row: %v", e.Rows[1])
	}
}

func TestWriteCSV_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, AnovaExport(sampleAnovaResult())); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse written csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header + 2 rows, got %d records", len(records))
	}
	if records[0][0] != "metabolite" || records[1][0] != "M1" || records[2][0] != "M2" {
		t.Errorf("unexpected records: %v", records)
	}
}

func TestWriteXLSX_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, AnovaExport(sampleAnovaResult())); err != nil {
		t.Fatalf("WriteXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("anova")
	if err != nil {
		t.Fatalf("read sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "metabolite" || rows[1][0] != "M1" {
		t.Errorf("unexpected sheet content: %v", rows)
	}
	if rows[1][4] != "true" {
		t.Errorf("expected significance cell true, got %q", rows[1][4])
	}
}
