package service

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cvrbackend/internal/model"

	"github.com/xuri/excelize/v2"
)

func writePnLFixture(t *testing.T, sheet string, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("NewSheet: %v", err)
		}
		if err := f.DeleteSheet("Sheet1"); err != nil {
			t.Fatalf("DeleteSheet: %v", err)
		}
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "pnl.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func TestPnLParserParse(t *testing.T) {
	path := writePnLFixture(t, "Profit & Loss by Class", [][]interface{}{
		{"Profit and Loss by Class", "", "", ""},
		{"Account", "JOB001 - Main Road", "SGN-2024-15 Substation", "Total"},
		{"Materials - Cable", 1200.50, 300, 1500.50},
		{"Site Wages", -800, "", -800},
		{"Total Expenses", 2000.50, 300, 2300.50},
		{"Gross Profit", 5000, 1000, 6000},
		{"Equipment Hire", "oops", 150, 150},
	})

	parser := NewPnLParser(NewKeywordClassifier())
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	parser.now = func() time.Time { return fixed }

	report, err := parser.Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if report.SheetUsed != "Profit & Loss by Class" {
		t.Errorf("SheetUsed = %q", report.SheetUsed)
	}
	if report.ProcessedCount != 4 {
		t.Errorf("ProcessedCount = %d, want 4", report.ProcessedCount)
	}
	if report.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, want 1", report.SkippedCount)
	}
	if len(report.Errors) != 1 {
		t.Errorf("Errors = %v, want one entry", report.Errors)
	}

	job1, ok := report.Data["JOB001"]
	if !ok {
		t.Fatalf("missing JOB001, got %v", report.Data)
	}
	if got := job1.TotalExpenses.StringFixed(2); got != "2000.50" {
		t.Errorf("JOB001 total = %s, want 2000.50", got)
	}
	if len(job1.Lines) != 2 {
		t.Fatalf("JOB001 lines = %d, want 2", len(job1.Lines))
	}
	// The negative wages row is stored unsigned.
	wages := job1.Lines[1]
	if got := wages.Amount.StringFixed(2); got != "800.00" {
		t.Errorf("wages amount = %s, want 800.00", got)
	}
	if wages.Category != model.CategoryLabour {
		t.Errorf("wages category = %q", wages.Category)
	}
	if !wages.ExpenseDate.Equal(fixed) {
		t.Errorf("expense date = %v, want %v", wages.ExpenseDate, fixed)
	}

	job2, ok := report.Data["SGN-2024-15"]
	if !ok {
		t.Fatalf("missing SGN-2024-15, got keys %v", report.Data)
	}
	if got := job2.TotalExpenses.StringFixed(2); got != "450.00" {
		t.Errorf("SGN-2024-15 total = %s, want 450.00", got)
	}
}

func TestPnLParserFallsBackToFirstSheet(t *testing.T) {
	path := writePnLFixture(t, "Export", [][]interface{}{
		{"Account", "JOB007"},
		{"Concrete", 100},
	})

	parser := NewPnLParser(NewKeywordClassifier())
	report, err := parser.Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if report.SheetUsed != "Export" {
		t.Errorf("SheetUsed = %q, want Export", report.SheetUsed)
	}
	if _, ok := report.Data["JOB007"]; !ok {
		t.Errorf("missing JOB007")
	}
}

func TestPnLParserNoParsableSheet(t *testing.T) {
	path := writePnLFixture(t, "Sheet1", [][]interface{}{
		{"Nothing", "Useful"},
	})

	parser := NewPnLParser(NewKeywordClassifier())
	_, err := parser.Parse(path)

	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	if len(parseErr.TriedSheets) == 0 {
		t.Errorf("TriedSheets is empty")
	}
}

func TestExtractJobCode(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"JOB001 - Main Road", "JOB001"},
		{"job12 works", "JOB12"},
		{"SGN-2024-15 Substation", "SGN-2024-15"},
		{"HV-2025-3", "HV-2025-3"},
		{"Riverside Depot", "RIVERSIDE DEPOT"},
	}
	for _, tt := range tests {
		if got := ExtractJobCode(tt.header); got != tt.want {
			t.Errorf("ExtractJobCode(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
