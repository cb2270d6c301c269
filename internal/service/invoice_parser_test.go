package service

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func writeInvoiceFixture(t *testing.T, rows [][]interface{}) string {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("SetSheetRow: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "invoices.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	return path
}

func TestInvoiceParserParse(t *testing.T) {
	path := writeInvoiceFixture(t, [][]interface{}{
		{"Type", "Date", "Num", "Name", "Class", "Amount", "Balance", "Due Date"},
		{"Invoice", "01/15/2026", "INV-100", "Acme Ltd", "JOB001 - Main Road", 1000, 0, "02/15/2026"},
		{"Invoice", "01/20/2026", "INV-101", "Acme Ltd", "JOB001 - Main Road", 500, 500, "01/25/2026"},
		{"Invoice", "01/22/2026", "INV-102", "", "", 250, 250, ""},
		{"Invoice", "01/23/2026", "INV-103", "Beta Co", "JOB002", "bad", 0, ""},
	})

	parser := NewInvoiceParser()
	fixed := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	parser.now = func() time.Time { return fixed }

	report, err := parser.Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if report.ProcessedCount != 3 {
		t.Errorf("ProcessedCount = %d, want 3", report.ProcessedCount)
	}
	if report.SkippedCount != 1 {
		t.Errorf("SkippedCount = %d, want 1", report.SkippedCount)
	}
	if len(report.Unassigned) != 1 {
		t.Fatalf("Unassigned = %d, want 1", len(report.Unassigned))
	}
	if report.Unassigned[0].Customer != UnknownCustomer {
		t.Errorf("unassigned customer = %q", report.Unassigned[0].Customer)
	}

	job1, ok := report.Data["JOB001"]
	if !ok {
		t.Fatalf("missing JOB001")
	}
	if len(job1.Lines) != 2 {
		t.Fatalf("JOB001 lines = %d, want 2", len(job1.Lines))
	}
	paid, unpaid := job1.Lines[0], job1.Lines[1]
	if paid.Status != "PAID" {
		t.Errorf("INV-100 status = %q, want PAID", paid.Status)
	}
	if unpaid.Status != "UNPAID" {
		t.Errorf("INV-101 status = %q, want UNPAID", unpaid.Status)
	}
	// INV-101 due 01/25, parsed as-of 03/10: 44 days overdue.
	if unpaid.AgingDays != 44 {
		t.Errorf("INV-101 aging = %d, want 44", unpaid.AgingDays)
	}
	if got := job1.TotalBalance.StringFixed(2); got != "500.00" {
		t.Errorf("JOB001 balance = %s, want 500.00", got)
	}
}

func TestInvoiceParserAdvisories(t *testing.T) {
	path := writeInvoiceFixture(t, [][]interface{}{
		{"Type", "Date", "Num", "Name", "Class", "Amount", "Balance", "Due Date"},
		{"Invoice", "01/01/2026", "INV-1", "Acme", "JOB001", 20000, 15000, "01/10/2026"},
	})

	parser := NewInvoiceParser()
	parser.now = func() time.Time { return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) }

	report, err := parser.Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	wantFragments := []string{
		"Job JOB001 has low payment rate",
		"Job JOB001 has outstanding balance over 10000",
		"Job JOB001 has 1 invoices more than 30 days overdue",
	}
	for _, fragment := range wantFragments {
		found := false
		for _, advisory := range report.Advisories {
			if strings.Contains(advisory, fragment) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("advisories %v missing %q", report.Advisories, fragment)
		}
	}
}

func TestInvoiceParserAdvisoriesPerJob(t *testing.T) {
	// JOB001 collects well; JOB002 does not. The healthy job must not dilute
	// the struggling one out of an advisory, and only JOB002 gets flagged.
	path := writeInvoiceFixture(t, [][]interface{}{
		{"Type", "Date", "Num", "Name", "Class", "Amount", "Balance", "Due Date"},
		{"Invoice", "01/01/2026", "INV-1", "Acme", "JOB001", 100000, 0, "01/10/2026"},
		{"Invoice", "01/05/2026", "INV-2", "Beta", "JOB002", 12000, 12000, "01/15/2026"},
	})

	parser := NewInvoiceParser()
	parser.now = func() time.Time { return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) }

	report, err := parser.Parse(path)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	// Portfolio payment rate is 100000/112000, well above the threshold.
	if report.PaymentRate < 50 {
		t.Fatalf("PaymentRate = %v, want above 50", report.PaymentRate)
	}
	for _, advisory := range report.Advisories {
		if strings.Contains(advisory, "JOB001") {
			t.Errorf("advisory flags healthy job: %q", advisory)
		}
	}
	wantFragments := []string{
		"Job JOB002 has low payment rate: 0.0%",
		"Job JOB002 has outstanding balance over 10000",
		"Job JOB002 has 1 invoices more than 30 days overdue",
	}
	for _, fragment := range wantFragments {
		found := false
		for _, advisory := range report.Advisories {
			if strings.Contains(advisory, fragment) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("advisories %v missing %q", report.Advisories, fragment)
		}
	}
}

func TestInvoiceParserMissingColumns(t *testing.T) {
	path := writeInvoiceFixture(t, [][]interface{}{
		{"Type", "Date", "Num", "Name"},
	})

	_, err := NewInvoiceParser().Parse(path)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("err = %v, want *ParseError", err)
	}
	for _, want := range []string{"Class", "Amount", "Balance"} {
		found := false
		for _, col := range parseErr.MissingColumns {
			if col == want {
				found = true
			}
		}
		if !found {
			t.Errorf("MissingColumns = %v, missing %q", parseErr.MissingColumns, want)
		}
	}
}
