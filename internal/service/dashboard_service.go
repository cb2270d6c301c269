package service

import (
	"context"
	"errors"
	"fmt"

	"cvrbackend/internal/model"
	"cvrbackend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Billing headroom factor used to estimate work done but not yet invoiced on
// the portfolio overview.
var pendingInvoiceFactor = decimal.RequireFromString("1.2")

// DashboardService assembles financial metrics from persisted rows. The CVR
// ledger updater reads job details through this service, so spreadsheet and
// API views agree.
type DashboardService interface {
	Overview(ctx context.Context) (*model.DashboardMetrics, error)
	JobDetail(ctx context.Context, jobID uuid.UUID) (*model.JobDetailMetrics, error)
	JobDetailByCode(ctx context.Context, jobCode string) (*model.JobDetailMetrics, error)
	JobSummaries(ctx context.Context) ([]model.JobFinancialSummary, error)
}

type dashboardService struct {
	jobs       repository.JobRepository
	expenses   repository.ExpenseRepository
	invoices   repository.InvoiceRepository
	variations repository.VariationRepository
	budgets    repository.BudgetRepository
}

func NewDashboardService(
	jobs repository.JobRepository,
	expenses repository.ExpenseRepository,
	invoices repository.InvoiceRepository,
	variations repository.VariationRepository,
	budgets repository.BudgetRepository,
) DashboardService {
	return &dashboardService{
		jobs:       jobs,
		expenses:   expenses,
		invoices:   invoices,
		variations: variations,
		budgets:    budgets,
	}
}

func (s *dashboardService) Overview(ctx context.Context) (*model.DashboardMetrics, error) {
	jobs, err := s.jobs.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	metrics := &model.DashboardMetrics{}
	for _, job := range jobs {
		costs, err := s.expenses.TotalByJob(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("sum costs for %s: %w", job.JobCode, err)
		}
		invoiced, err := s.invoices.TotalInvoicedByJob(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("sum invoiced for %s: %w", job.JobCode, err)
		}
		unpaid, err := s.invoices.TotalUnpaidByJob(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("sum unpaid for %s: %w", job.JobCode, err)
		}

		metrics.TotalContractValue = metrics.TotalContractValue.Add(job.ContractValue)
		metrics.TotalCosts = metrics.TotalCosts.Add(costs)
		metrics.TotalInvoiced = metrics.TotalInvoiced.Add(invoiced)
		metrics.UnpaidInvoices = metrics.UnpaidInvoices.Add(unpaid)

		switch job.Status {
		case model.JobCompleted:
			metrics.CompletedJobsCount++
		case model.JobActive, model.JobNearCompletion:
			metrics.ActiveJobsCount++
		}
	}

	metrics.ProjectedMargin = metrics.TotalContractValue.Sub(metrics.TotalCosts)
	// Portfolio-level estimate of work performed but not yet billed.
	pending := metrics.TotalCosts.Mul(pendingInvoiceFactor).Sub(metrics.TotalInvoiced)
	if pending.Sign() < 0 {
		pending = decimal.Zero
	}
	metrics.PendingInvoices = pending

	return metrics, nil
}

func (s *dashboardService) JobDetail(ctx context.Context, jobID uuid.UUID) (*model.JobDetailMetrics, error) {
	job, err := s.jobs.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("look up job: %w", err)
	}
	return s.assembleDetail(ctx, job)
}

func (s *dashboardService) JobDetailByCode(ctx context.Context, jobCode string) (*model.JobDetailMetrics, error) {
	job, err := s.jobs.FindByCode(ctx, jobCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("look up job: %w", err)
	}
	return s.assembleDetail(ctx, job)
}

func (s *dashboardService) assembleDetail(ctx context.Context, job *model.Job) (*model.JobDetailMetrics, error) {
	costs, err := s.expenses.TotalByJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("sum costs: %w", err)
	}
	byCategory, err := s.expenses.SumByCategory(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("sum costs by category: %w", err)
	}
	invoiced, err := s.invoices.TotalInvoicedByJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("sum invoiced: %w", err)
	}
	unpaid, err := s.invoices.TotalUnpaidByJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("sum unpaid: %w", err)
	}
	approved, err := s.variations.ApprovedTotalByJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("sum approved variations: %w", err)
	}
	budgets, err := s.budgets.ListByJob(ctx, job.ID)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}

	amended := job.ContractValue.Add(approved)
	// A maintained forecast takes over from cost-to-date once it is set.
	margin := amended.Sub(costs)
	if job.EstimatedFinalCost.Sign() > 0 {
		margin = amended.Sub(job.EstimatedFinalCost)
	}
	pending := costs.Sub(invoiced)
	if pending.Sign() < 0 {
		pending = decimal.Zero
	}

	detail := &model.JobDetailMetrics{
		JobCode:            job.JobCode,
		JobName:            job.Name,
		Client:             job.Client,
		Status:             job.Status,
		ProgressPercentage: job.ProgressPercentage,
		ContractValue:      job.ContractValue,
		AmendedValue:       amended,
		TotalCosts:         costs,
		TotalInvoiced:      invoiced,
		PendingInvoices:    pending,
		UnpaidInvoices:     unpaid,
		ProjectedMargin:    margin,

		MaterialCosts:      byCategory[model.CategoryMaterial],
		LabourCosts:        byCategory[model.CategoryLabour],
		PlantMachineryCost: byCategory[model.CategoryPlantMachinery],
		OverheadCosts:      byCategory[model.CategoryOverheads],
		SubcontractorCosts: byCategory[model.CategorySubcontractor],
	}
	if amended.Sign() > 0 {
		detail.MarginPercentage, _ = margin.Div(amended).Mul(decimal.NewFromInt(100)).Float64()
	}
	for _, b := range budgets {
		detail.TotalBudget = detail.TotalBudget.Add(b.BudgetedAmount)
	}
	detail.BudgetVariance = detail.TotalBudget.Sub(costs)

	return detail, nil
}

func (s *dashboardService) JobSummaries(ctx context.Context) ([]model.JobFinancialSummary, error) {
	jobs, err := s.jobs.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	summaries := make([]model.JobFinancialSummary, 0, len(jobs))
	for _, job := range jobs {
		costs, err := s.expenses.TotalByJob(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("sum costs for %s: %w", job.JobCode, err)
		}
		invoiced, err := s.invoices.TotalInvoicedByJob(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("sum invoiced for %s: %w", job.JobCode, err)
		}
		approved, err := s.variations.ApprovedTotalByJob(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("sum approved variations for %s: %w", job.JobCode, err)
		}

		amended := job.ContractValue.Add(approved)
		summaries = append(summaries, model.JobFinancialSummary{
			JobCode:            job.JobCode,
			JobName:            job.Name,
			Client:             job.Client,
			Status:             job.Status,
			ProgressPercentage: job.ProgressPercentage,
			ContractValue:      job.ContractValue,
			AmendedValue:       amended,
			TotalCosts:         costs,
			TotalInvoiced:      invoiced,
			ProjectedMargin:    amended.Sub(costs),
		})
	}
	return summaries, nil
}
