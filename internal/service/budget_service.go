package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cvrbackend/internal/model"
	"cvrbackend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Budget evaluation tiers as fractions of the budgeted amount.
const (
	DefaultWarningThreshold  = 0.80
	DefaultCriticalThreshold = 0.95
)

const (
	BudgetNormal   = "normal"
	BudgetWarning  = "warning"
	BudgetCritical = "critical"
	BudgetExceeded = "exceeded"
)

// AlertNotifier pushes a freshly persisted alert to connected clients.
type AlertNotifier interface {
	NotifyAlert(alert *model.Alert)
}

// BudgetThresholds configures the warning and critical tiers. Exceeded is
// always at 100%.
type BudgetThresholds struct {
	Warning  float64
	Critical float64
}

func DefaultThresholds() BudgetThresholds {
	return BudgetThresholds{Warning: DefaultWarningThreshold, Critical: DefaultCriticalThreshold}
}

// BudgetStatus is the evaluated position of one category budget.
type BudgetStatus struct {
	BudgetID       uuid.UUID       `json:"budget_id"`
	Category       string          `json:"category"`
	BudgetedAmount decimal.Decimal `json:"budgeted_amount"`
	ActualAmount   decimal.Decimal `json:"actual_amount"`
	Remaining      decimal.Decimal `json:"remaining"`
	PercentageUsed float64         `json:"percentage_used"`
	Status         string          `json:"status"`
}

// CreateBudgetRequest carries a new category allocation.
type CreateBudgetRequest struct {
	JobID          uuid.UUID       `json:"job_id" binding:"required"`
	Category       string          `json:"category" binding:"required"`
	BudgetedAmount decimal.Decimal `json:"budgeted_amount" binding:"required"`
}

// BudgetService owns budget allocations and the alerting passes that compare
// them against actual spend.
type BudgetService interface {
	CreateBudget(ctx context.Context, req CreateBudgetRequest) (*model.Budget, error)
	UpdateBudget(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*model.Budget, error)
	JobBudgetStatus(ctx context.Context, jobID uuid.UUID) ([]BudgetStatus, error)
	CheckJobBudgets(ctx context.Context, jobID uuid.UUID) ([]model.Alert, error)
	CheckOverdueInvoices(ctx context.Context, jobID uuid.UUID) ([]model.Alert, error)
	CheckAllJobs(ctx context.Context) ([]model.Alert, error)
}

type budgetService struct {
	budgets    repository.BudgetRepository
	expenses   repository.ExpenseRepository
	invoices   repository.InvoiceRepository
	jobs       repository.JobRepository
	alerts     repository.AlertRepository
	thresholds BudgetThresholds
	notifier   AlertNotifier
	now        func() time.Time
}

func NewBudgetService(
	budgets repository.BudgetRepository,
	expenses repository.ExpenseRepository,
	invoices repository.InvoiceRepository,
	jobs repository.JobRepository,
	alerts repository.AlertRepository,
	thresholds BudgetThresholds,
	notifier AlertNotifier,
) BudgetService {
	return &budgetService{
		budgets:    budgets,
		expenses:   expenses,
		invoices:   invoices,
		jobs:       jobs,
		alerts:     alerts,
		thresholds: thresholds,
		notifier:   notifier,
		now:        time.Now,
	}
}

func (s *budgetService) CreateBudget(ctx context.Context, req CreateBudgetRequest) (*model.Budget, error) {
	if !model.ValidExpenseCategory(req.Category) {
		return nil, fmt.Errorf("unknown expense category %q", req.Category)
	}
	if _, err := s.jobs.FindByID(ctx, req.JobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("look up job: %w", err)
	}
	if existing, err := s.budgets.FindByJobAndCategory(ctx, req.JobID, req.Category); err == nil && existing != nil {
		return nil, ErrDuplicateBudget
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("look up budget: %w", err)
	}

	budget := &model.Budget{
		JobID:          req.JobID,
		Category:       req.Category,
		BudgetedAmount: req.BudgetedAmount,
	}
	if err := s.budgets.Create(ctx, budget); err != nil {
		return nil, fmt.Errorf("create budget: %w", err)
	}
	return budget, nil
}

func (s *budgetService) UpdateBudget(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*model.Budget, error) {
	budget, err := s.budgets.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("look up budget: %w", err)
	}
	budget.BudgetedAmount = amount
	if err := s.budgets.Update(ctx, budget); err != nil {
		return nil, fmt.Errorf("update budget: %w", err)
	}
	return budget, nil
}

func (s *budgetService) JobBudgetStatus(ctx context.Context, jobID uuid.UUID) ([]BudgetStatus, error) {
	budgets, err := s.budgets.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	actuals, err := s.expenses.SumByCategory(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("sum expenses: %w", err)
	}

	statuses := make([]BudgetStatus, 0, len(budgets))
	for _, b := range budgets {
		statuses = append(statuses, s.evaluate(b, actuals[b.Category]))
	}
	return statuses, nil
}

// evaluate compares one budget against actual spend. A zero budget always
// evaluates to 0% used; it cannot trip a threshold.
func (s *budgetService) evaluate(b model.Budget, actual decimal.Decimal) BudgetStatus {
	status := BudgetStatus{
		BudgetID:       b.ID,
		Category:       b.Category,
		BudgetedAmount: b.BudgetedAmount,
		ActualAmount:   actual,
		Remaining:      b.BudgetedAmount.Sub(actual),
		Status:         BudgetNormal,
	}
	if b.BudgetedAmount.Sign() <= 0 {
		return status
	}

	pct, _ := actual.Div(b.BudgetedAmount).Mul(decimal.NewFromInt(100)).Float64()
	status.PercentageUsed = pct
	switch {
	case pct >= 100:
		status.Status = BudgetExceeded
	case pct >= s.thresholds.Critical*100:
		status.Status = BudgetCritical
	case pct >= s.thresholds.Warning*100:
		status.Status = BudgetWarning
	}
	return status
}

// CheckJobBudgets evaluates every budget of one job and persists an overrun
// alert per exceeded category. An unacknowledged alert for the same category
// suppresses a new one; re-running the check is idempotent.
func (s *budgetService) CheckJobBudgets(ctx context.Context, jobID uuid.UUID) ([]model.Alert, error) {
	statuses, err := s.JobBudgetStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}

	var raised []model.Alert
	for _, status := range statuses {
		if status.Status != BudgetExceeded {
			continue
		}

		existing, err := s.alerts.FindOpenMatching(ctx, jobID, model.AlertBudgetOverrun, status.Category)
		if err != nil {
			return raised, fmt.Errorf("look up open alerts: %w", err)
		}
		if existing != nil {
			continue
		}

		severity := model.SeverityMedium
		if status.PercentageUsed > 120 {
			severity = model.SeverityHigh
		}
		alert := model.Alert{
			JobID:     jobID,
			AlertType: model.AlertBudgetOverrun,
			Severity:  severity,
			Message: fmt.Sprintf("Budget exceeded for %s: spent %s of %s (%.1f%%)",
				status.Category,
				status.ActualAmount.StringFixed(2),
				status.BudgetedAmount.StringFixed(2),
				status.PercentageUsed),
		}
		if err := s.alerts.Create(ctx, &alert); err != nil {
			return raised, fmt.Errorf("create alert: %w", err)
		}
		s.notify(&alert)
		raised = append(raised, alert)
	}
	return raised, nil
}

// CheckOverdueInvoices raises an alert per unpaid invoice past its due date,
// deduplicated on invoice number while an alert stays unacknowledged.
func (s *budgetService) CheckOverdueInvoices(ctx context.Context, jobID uuid.UUID) ([]model.Alert, error) {
	asOf := s.now()
	overdue, err := s.invoices.ListOverdue(ctx, &jobID, asOf)
	if err != nil {
		return nil, fmt.Errorf("list overdue invoices: %w", err)
	}

	var raised []model.Alert
	for _, inv := range overdue {
		if inv.DueDate == nil {
			continue
		}

		existing, err := s.alerts.FindOpenMatching(ctx, jobID, model.AlertOverdueInvoice, inv.InvoiceNumber)
		if err != nil {
			return raised, fmt.Errorf("look up open alerts: %w", err)
		}
		if existing != nil {
			continue
		}

		days := int(asOf.Sub(*inv.DueDate).Hours() / 24)
		severity := model.SeverityMedium
		if days > 30 {
			severity = model.SeverityHigh
		}
		alert := model.Alert{
			JobID:     jobID,
			AlertType: model.AlertOverdueInvoice,
			Severity:  severity,
			Message: fmt.Sprintf("Invoice %s is %d days overdue, balance %s",
				inv.InvoiceNumber, days, inv.Amount.StringFixed(2)),
		}
		if err := s.alerts.Create(ctx, &alert); err != nil {
			return raised, fmt.Errorf("create alert: %w", err)
		}
		s.notify(&alert)
		raised = append(raised, alert)
	}
	return raised, nil
}

// CheckAllJobs runs both alert passes over every job. Per-job failures are
// logged and skipped so one broken job cannot stall the sweep.
func (s *budgetService) CheckAllJobs(ctx context.Context) ([]model.Alert, error) {
	jobs, err := s.jobs.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	var raised []model.Alert
	for _, job := range jobs {
		alerts, err := s.CheckJobBudgets(ctx, job.ID)
		if err != nil {
			log.Printf("budget check failed for %s: %v", job.JobCode, err)
		}
		raised = append(raised, alerts...)

		alerts, err = s.CheckOverdueInvoices(ctx, job.ID)
		if err != nil {
			log.Printf("overdue check failed for %s: %v", job.JobCode, err)
		}
		raised = append(raised, alerts...)
	}
	return raised, nil
}

func (s *budgetService) notify(alert *model.Alert) {
	if s.notifier != nil {
		s.notifier.NotifyAlert(alert)
	}
}
