package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"cvrbackend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newBudgetFixture(t *testing.T) (*budgetService, *model.Job, *fakeExpenseRepo, *fakeBudgetRepo, *fakeAlertRepo, *fakeInvoiceRepo) {
	t.Helper()

	job := &model.Job{JobCode: "JOB001", Name: "Main Road", Status: model.JobActive}
	jobs := newFakeJobRepo(job)
	expenses := &fakeExpenseRepo{}
	budgets := &fakeBudgetRepo{}
	alerts := &fakeAlertRepo{}
	invoices := &fakeInvoiceRepo{}

	svc := NewBudgetService(budgets, expenses, invoices, jobs, alerts, DefaultThresholds(), nil).(*budgetService)
	svc.now = func() time.Time { return time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC) }
	return svc, job, expenses, budgets, alerts, invoices
}

func TestEvaluateTiers(t *testing.T) {
	svc, _, _, _, _, _ := newBudgetFixture(t)

	tests := []struct {
		name     string
		budgeted string
		actual   string
		want     string
	}{
		{"under warning", "1000", "500", BudgetNormal},
		{"at warning", "1000", "800", BudgetWarning},
		{"at critical", "1000", "950", BudgetCritical},
		{"at limit", "1000", "1000", BudgetExceeded},
		{"over limit", "1000", "1500", BudgetExceeded},
		{"zero budget", "0", "500", BudgetNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := svc.evaluate(model.Budget{
				Category:       model.CategoryMaterial,
				BudgetedAmount: dec(tt.budgeted),
			}, dec(tt.actual))
			if status.Status != tt.want {
				t.Errorf("status = %q, want %q (used %.1f%%)", status.Status, tt.want, status.PercentageUsed)
			}
		})
	}
}

func TestCheckJobBudgetsRaisesAndDeduplicates(t *testing.T) {
	svc, job, expenses, budgets, alerts, _ := newBudgetFixture(t)
	ctx := context.Background()

	budgets.budgets = append(budgets.budgets, model.Budget{
		ID: uuid.New(), JobID: job.ID, Category: model.CategoryMaterial, BudgetedAmount: dec("1000"),
	})
	expenses.expenses = append(expenses.expenses, model.Expense{
		JobID: job.ID, Category: model.CategoryMaterial, Amount: dec("1100"),
	})

	raised, err := svc.CheckJobBudgets(ctx, job.ID)
	if err != nil {
		t.Fatalf("CheckJobBudgets: %v", err)
	}
	if len(raised) != 1 {
		t.Fatalf("raised = %d, want 1", len(raised))
	}
	if raised[0].Severity != model.SeverityMedium {
		t.Errorf("severity = %q, want medium", raised[0].Severity)
	}

	// A second pass with the first alert still open raises nothing.
	raised, err = svc.CheckJobBudgets(ctx, job.ID)
	if err != nil {
		t.Fatalf("CheckJobBudgets: %v", err)
	}
	if len(raised) != 0 {
		t.Errorf("second pass raised = %d, want 0", len(raised))
	}
	if len(alerts.alerts) != 1 {
		t.Errorf("persisted alerts = %d, want 1", len(alerts.alerts))
	}

	// Acknowledging reopens the door for the next check.
	if _, err := alerts.Acknowledge(ctx, alerts.alerts[0].ID, "tester", time.Now()); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	raised, err = svc.CheckJobBudgets(ctx, job.ID)
	if err != nil {
		t.Fatalf("CheckJobBudgets: %v", err)
	}
	if len(raised) != 1 {
		t.Errorf("post-ack pass raised = %d, want 1", len(raised))
	}
}

func TestCheckJobBudgetsSeverityHigh(t *testing.T) {
	svc, job, expenses, budgets, _, _ := newBudgetFixture(t)

	budgets.budgets = append(budgets.budgets, model.Budget{
		ID: uuid.New(), JobID: job.ID, Category: model.CategoryLabour, BudgetedAmount: dec("1000"),
	})
	expenses.expenses = append(expenses.expenses, model.Expense{
		JobID: job.ID, Category: model.CategoryLabour, Amount: dec("1300"),
	})

	raised, err := svc.CheckJobBudgets(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("CheckJobBudgets: %v", err)
	}
	if len(raised) != 1 || raised[0].Severity != model.SeverityHigh {
		t.Fatalf("raised = %+v, want one high severity alert", raised)
	}
}

func TestCheckOverdueInvoices(t *testing.T) {
	svc, job, _, _, alerts, invoices := newBudgetFixture(t)
	ctx := context.Background()

	recent := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)  // 9 days overdue
	ancient := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) // 68 days overdue
	invoices.invoices = append(invoices.invoices,
		model.Invoice{ID: uuid.New(), JobID: job.ID, InvoiceNumber: "INV-1", Amount: dec("500"), DueDate: &recent},
		model.Invoice{ID: uuid.New(), JobID: job.ID, InvoiceNumber: "INV-2", Amount: dec("900"), DueDate: &ancient},
		model.Invoice{ID: uuid.New(), JobID: job.ID, InvoiceNumber: "INV-3", Amount: dec("100"), DueDate: &ancient, IsPaid: true},
	)

	raised, err := svc.CheckOverdueInvoices(ctx, job.ID)
	if err != nil {
		t.Fatalf("CheckOverdueInvoices: %v", err)
	}
	if len(raised) != 2 {
		t.Fatalf("raised = %d, want 2", len(raised))
	}

	severities := map[string]string{}
	for _, a := range raised {
		for _, inv := range []string{"INV-1", "INV-2"} {
			if strings.Contains(a.Message, inv) {
				severities[inv] = a.Severity
			}
		}
	}
	if severities["INV-1"] != model.SeverityMedium {
		t.Errorf("INV-1 severity = %q, want medium", severities["INV-1"])
	}
	if severities["INV-2"] != model.SeverityHigh {
		t.Errorf("INV-2 severity = %q, want high", severities["INV-2"])
	}

	// Idempotent while alerts stay open.
	raised, err = svc.CheckOverdueInvoices(ctx, job.ID)
	if err != nil {
		t.Fatalf("CheckOverdueInvoices: %v", err)
	}
	if len(raised) != 0 {
		t.Errorf("second pass raised = %d, want 0", len(raised))
	}
	if len(alerts.alerts) != 2 {
		t.Errorf("persisted alerts = %d, want 2", len(alerts.alerts))
	}
}

func TestCreateBudgetValidation(t *testing.T) {
	svc, job, _, _, _, _ := newBudgetFixture(t)
	ctx := context.Background()

	if _, err := svc.CreateBudget(ctx, CreateBudgetRequest{
		JobID: uuid.New(), Category: model.CategoryMaterial, BudgetedAmount: dec("100"),
	}); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("unknown job err = %v, want ErrJobNotFound", err)
	}

	if _, err := svc.CreateBudget(ctx, CreateBudgetRequest{
		JobID: job.ID, Category: "catering", BudgetedAmount: dec("100"),
	}); err == nil {
		t.Errorf("unknown category accepted")
	}

	if _, err := svc.CreateBudget(ctx, CreateBudgetRequest{
		JobID: job.ID, Category: model.CategoryMaterial, BudgetedAmount: dec("100"),
	}); err != nil {
		t.Fatalf("CreateBudget: %v", err)
	}

	if _, err := svc.CreateBudget(ctx, CreateBudgetRequest{
		JobID: job.ID, Category: model.CategoryMaterial, BudgetedAmount: dec("200"),
	}); !errors.Is(err, ErrDuplicateBudget) {
		t.Errorf("duplicate err = %v, want ErrDuplicateBudget", err)
	}
}
