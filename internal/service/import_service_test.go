package service

import (
	"context"
	"testing"
	"time"

	"cvrbackend/internal/model"
)

func newImportFixture(t *testing.T, autoCreate bool, jobs ...*model.Job) (ImportService, *fakeJobRepo, *fakeExpenseRepo, *fakeInvoiceRepo) {
	t.Helper()

	jobRepo := newFakeJobRepo(jobs...)
	expenses := &fakeExpenseRepo{}
	invoices := &fakeInvoiceRepo{}
	budgets := NewBudgetService(&fakeBudgetRepo{}, expenses, invoices, jobRepo, &fakeAlertRepo{}, DefaultThresholds(), nil).(*budgetService)
	budgets.now = func() time.Time { return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) }

	svc := NewImportService(
		NewPnLParser(NewKeywordClassifier()),
		NewInvoiceParser(),
		NewJobProvisioner(jobRepo, autoCreate),
		DefaultUpdateRules().Matcher(),
		expenses,
		invoices,
		budgets,
		fakeTxManager{},
	)
	return svc, jobRepo, expenses, invoices
}

func pnlImportFixture(t *testing.T) string {
	t.Helper()
	return writePnLFixture(t, "Profit & Loss by Class", [][]interface{}{
		{"Profit and Loss by Class", ""},
		{"Account", "JOB001 - Main Road"},
		{"Materials - site", 1200.00},
		{"Subcontract works", 800.00},
		{"Total", 2000.00},
	})
}

func TestImportPnLCreatesJobsAndExpenses(t *testing.T) {
	svc, jobRepo, expenses, _ := newImportFixture(t, true)

	result, err := svc.ImportPnL(context.Background(), pnlImportFixture(t))
	if err != nil {
		t.Fatalf("ImportPnL: %v", err)
	}
	if result.ExpensesImported != 2 {
		t.Errorf("ExpensesImported = %d, want 2", result.ExpensesImported)
	}
	if result.JobsAffected != 1 {
		t.Errorf("JobsAffected = %d, want 1", result.JobsAffected)
	}
	if len(result.JobsCreated) != 1 || result.JobsCreated[0] != "JOB001" {
		t.Errorf("JobsCreated = %v, want [JOB001]", result.JobsCreated)
	}

	job, err := jobRepo.FindByCode(context.Background(), "JOB001")
	if err != nil {
		t.Fatalf("provisioned job not found: %v", err)
	}
	if job.Name != "Auto-created from import: JOB001" {
		t.Errorf("job name = %q", job.Name)
	}
	if job.Client != "Unknown" || job.Status != model.JobActive {
		t.Errorf("placeholder job = %+v", job)
	}

	for _, e := range expenses.expenses {
		if e.JobID != job.ID {
			t.Errorf("expense attached to %s, want %s", e.JobID, job.ID)
		}
		if e.Source != model.SourcePnLImport {
			t.Errorf("expense source = %q, want %q", e.Source, model.SourcePnLImport)
		}
	}
}

func TestImportPnLProvisioningDisabled(t *testing.T) {
	svc, _, expenses, _ := newImportFixture(t, false)

	result, err := svc.ImportPnL(context.Background(), pnlImportFixture(t))
	if err != nil {
		t.Fatalf("ImportPnL: %v", err)
	}
	if len(result.UnknownJobs) != 1 || result.UnknownJobs[0] != "JOB001" {
		t.Errorf("UnknownJobs = %v, want [JOB001]", result.UnknownJobs)
	}
	if result.ExpensesImported != 0 {
		t.Errorf("ExpensesImported = %d, want 0", result.ExpensesImported)
	}
	if len(expenses.expenses) != 0 {
		t.Errorf("persisted expenses = %d, want 0", len(expenses.expenses))
	}
}

func TestImportPnLLedgerBuckets(t *testing.T) {
	svc, _, _, _ := newImportFixture(t, true)

	result, err := svc.ImportPnL(context.Background(), pnlImportFixture(t))
	if err != nil {
		t.Fatalf("ImportPnL: %v", err)
	}
	if got := result.LedgerBuckets["material"]; !got.Equal(dec("1200")) {
		t.Errorf("material bucket = %s, want 1200", got)
	}
	if got := result.LedgerBuckets["subcontract"]; !got.Equal(dec("800")) {
		t.Errorf("subcontract bucket = %s, want 800", got)
	}
}

func TestImportInvoices(t *testing.T) {
	existing := &model.Job{JobCode: "JOB001", Name: "Main Road", Status: model.JobActive}
	svc, _, _, invoices := newImportFixture(t, true, existing)

	path := writeInvoiceFixture(t, [][]interface{}{
		{"Type", "Date", "Num", "Name", "Class", "Amount", "Balance", "Due Date"},
		{"Invoice", "01/15/2026", "INV-100", "Acme Ltd", "JOB001 - Main Road", 1000, 0, "02/15/2026"},
		{"Invoice", "01/20/2026", "INV-101", "Acme Ltd", "JOB001 - Main Road", 500, 500, "01/25/2026"},
	})

	result, err := svc.ImportInvoices(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportInvoices: %v", err)
	}
	if result.InvoicesImported != 2 {
		t.Errorf("InvoicesImported = %d, want 2", result.InvoicesImported)
	}
	if len(result.JobsCreated) != 0 {
		t.Errorf("JobsCreated = %v, want none for a known job", result.JobsCreated)
	}

	byNumber := make(map[string]model.Invoice)
	for _, inv := range invoices.invoices {
		byNumber[inv.InvoiceNumber] = inv
	}
	if inv := byNumber["INV-100"]; !inv.IsPaid || inv.JobID != existing.ID {
		t.Errorf("INV-100 = %+v, want paid and attached to JOB001", inv)
	}
	if inv := byNumber["INV-101"]; inv.IsPaid {
		t.Errorf("INV-101 marked paid with open balance")
	}

	// Overdue check runs after commit against the rows just inserted.
	if len(result.AlertsRaised) != 1 {
		t.Errorf("AlertsRaised = %d, want 1 overdue alert", len(result.AlertsRaised))
	}
}
