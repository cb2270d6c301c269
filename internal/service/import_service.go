package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"cvrbackend/internal/model"
	"cvrbackend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// JobProvisioner resolves import job codes to persisted jobs, creating
// placeholder jobs for codes not seen before. Disabled provisioners report
// unknown codes instead of creating, for dry-run style imports.
type JobProvisioner struct {
	jobs       repository.JobRepository
	autoCreate bool
}

func NewJobProvisioner(jobs repository.JobRepository, autoCreate bool) *JobProvisioner {
	return &JobProvisioner{jobs: jobs, autoCreate: autoCreate}
}

// Resolve returns the job for code, consulting cache first. The second
// return reports whether a placeholder job was created. A nil job with a nil
// error means the code is unknown and provisioning is disabled.
func (p *JobProvisioner) Resolve(ctx context.Context, cache map[string]*model.Job, code string) (*model.Job, bool, error) {
	if job, ok := cache[code]; ok {
		return job, false, nil
	}

	job, err := p.jobs.FindByCode(ctx, code)
	if err == nil {
		cache[code] = job
		return job, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("look up job %s: %w", code, err)
	}
	if !p.autoCreate {
		return nil, false, nil
	}

	job = &model.Job{
		JobCode: code,
		Name:    "Auto-created from import: " + code,
		Client:  "Unknown",
		Status:  model.JobActive,
	}
	if err := p.jobs.Create(ctx, job); err != nil {
		return nil, false, fmt.Errorf("create job %s: %w", code, err)
	}
	cache[code] = job
	return job, true, nil
}

// PnLImportResult reports one P&L import run. LedgerBuckets previews how
// the imported account lines would aggregate under the ledger keyword sets,
// which differ from the expense classifier on purpose.
type PnLImportResult struct {
	SheetUsed        string                     `json:"sheet_used"`
	JobsAffected     int                        `json:"jobs_affected"`
	JobsCreated      []string                   `json:"jobs_created"`
	UnknownJobs      []string                   `json:"unknown_jobs"`
	ExpensesImported int                        `json:"expenses_imported"`
	SkippedRows      int                        `json:"skipped_rows"`
	Errors           []string                   `json:"errors"`
	AlertsRaised     []model.Alert              `json:"alerts_raised"`
	LedgerBuckets    map[string]decimal.Decimal `json:"ledger_buckets"`
	Summary          *PnLReport                 `json:"summary"`
}

// InvoiceImportResult reports one invoice import run.
type InvoiceImportResult struct {
	JobsAffected     int             `json:"jobs_affected"`
	JobsCreated      []string        `json:"jobs_created"`
	UnknownJobs      []string        `json:"unknown_jobs"`
	InvoicesImported int             `json:"invoices_imported"`
	UnassignedRows   int             `json:"unassigned_rows"`
	SkippedRows      int             `json:"skipped_rows"`
	Errors           []string        `json:"errors"`
	Advisories       []string        `json:"advisories"`
	AlertsRaised     []model.Alert   `json:"alerts_raised"`
	Summary          *InvoiceReport  `json:"summary"`
}

// ImportService turns uploaded spreadsheet reports into persisted rows.
// Rows are append-only: re-importing the same report inserts again.
type ImportService interface {
	ImportPnL(ctx context.Context, path string) (*PnLImportResult, error)
	ImportInvoices(ctx context.Context, path string) (*InvoiceImportResult, error)
}

type importService struct {
	pnlParser     *PnLParser
	invoiceParser *InvoiceParser
	provisioner   *JobProvisioner
	aggregator    Categorizer
	expenses      repository.ExpenseRepository
	invoices      repository.InvoiceRepository
	budgets       BudgetService
	txManager     repository.TransactionManager
}

func NewImportService(
	pnlParser *PnLParser,
	invoiceParser *InvoiceParser,
	provisioner *JobProvisioner,
	aggregator Categorizer,
	expenses repository.ExpenseRepository,
	invoices repository.InvoiceRepository,
	budgets BudgetService,
	txManager repository.TransactionManager,
) ImportService {
	return &importService{
		pnlParser:     pnlParser,
		invoiceParser: invoiceParser,
		provisioner:   provisioner,
		aggregator:    aggregator,
		expenses:      expenses,
		invoices:      invoices,
		budgets:       budgets,
		txManager:     txManager,
	}
}

func (s *importService) ImportPnL(ctx context.Context, path string) (*PnLImportResult, error) {
	report, err := s.pnlParser.Parse(path)
	if err != nil {
		return nil, err
	}

	result := &PnLImportResult{
		SheetUsed:     report.SheetUsed,
		SkippedRows:   report.SkippedCount,
		Errors:        append([]string{}, report.Errors...),
		LedgerBuckets: make(map[string]decimal.Decimal),
		Summary:       report,
	}
	for _, data := range report.Data {
		for account, amount := range data.ExpenseBreakdown {
			if bucket := s.aggregator.Categorize(account); bucket != "" {
				result.LedgerBuckets[bucket] = result.LedgerBuckets[bucket].Add(amount)
			}
		}
	}

	cache := make(map[string]*model.Job)
	affected := make(map[uuid.UUID]struct{})

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for _, code := range sortedCodes(report.Data) {
			data := report.Data[code]
			job, created, err := s.provisioner.Resolve(txCtx, cache, code)
			if err != nil {
				return err
			}
			if job == nil {
				result.UnknownJobs = append(result.UnknownJobs, code)
				result.SkippedRows += len(data.Lines)
				continue
			}
			if created {
				result.JobsCreated = append(result.JobsCreated, code)
			}

			expenses := make([]model.Expense, 0, len(data.Lines))
			for _, line := range data.Lines {
				expenses = append(expenses, model.Expense{
					JobID:       job.ID,
					Category:    line.Category,
					Description: line.Description,
					Amount:      line.Amount,
					ExpenseDate: line.ExpenseDate,
					Source:      model.SourcePnLImport,
				})
			}
			if err := s.expenses.CreateBatch(txCtx, expenses); err != nil {
				return fmt.Errorf("insert expenses for %s: %w", code, err)
			}
			result.ExpensesImported += len(expenses)
			affected[job.ID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("P&L import: %w", err)
	}
	result.JobsAffected = len(affected)

	// Budget checks run after the import commits; a failed check never rolls
	// back imported rows.
	for jobID := range affected {
		alerts, err := s.budgets.CheckJobBudgets(ctx, jobID)
		if err != nil {
			log.Printf("budget check after import failed for job %s: %v", jobID, err)
			result.Errors = append(result.Errors, fmt.Sprintf("budget check failed for job %s", jobID))
			continue
		}
		result.AlertsRaised = append(result.AlertsRaised, alerts...)
	}

	return result, nil
}

func (s *importService) ImportInvoices(ctx context.Context, path string) (*InvoiceImportResult, error) {
	report, err := s.invoiceParser.Parse(path)
	if err != nil {
		return nil, err
	}

	result := &InvoiceImportResult{
		UnassignedRows: len(report.Unassigned),
		SkippedRows:    report.SkippedCount,
		Errors:         append([]string{}, report.Errors...),
		Advisories:     report.Advisories,
		Summary:        report,
	}

	cache := make(map[string]*model.Job)
	affected := make(map[uuid.UUID]struct{})

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for _, code := range sortedCodes(report.Data) {
			data := report.Data[code]
			job, created, err := s.provisioner.Resolve(txCtx, cache, code)
			if err != nil {
				return err
			}
			if job == nil {
				result.UnknownJobs = append(result.UnknownJobs, code)
				result.SkippedRows += len(data.Lines)
				continue
			}
			if created {
				result.JobsCreated = append(result.JobsCreated, code)
			}

			invoices := make([]model.Invoice, 0, len(data.Lines))
			for _, line := range data.Lines {
				invoices = append(invoices, model.Invoice{
					JobID:         job.ID,
					InvoiceNumber: line.InvoiceNumber,
					Amount:        line.Amount,
					InvoiceDate:   line.InvoiceDate,
					DueDate:       line.DueDate,
					IsPaid:        line.Status == "PAID",
				})
			}
			if err := s.invoices.CreateBatch(txCtx, invoices); err != nil {
				return fmt.Errorf("insert invoices for %s: %w", code, err)
			}
			result.InvoicesImported += len(invoices)
			affected[job.ID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("invoice import: %w", err)
	}
	result.JobsAffected = len(affected)

	for jobID := range affected {
		alerts, err := s.budgets.CheckOverdueInvoices(ctx, jobID)
		if err != nil {
			log.Printf("overdue check after import failed for job %s: %v", jobID, err)
			result.Errors = append(result.Errors, fmt.Sprintf("overdue check failed for job %s", jobID))
			continue
		}
		result.AlertsRaised = append(result.AlertsRaised, alerts...)
	}

	return result, nil
}

// sortedCodes keeps insert order deterministic across runs.
func sortedCodes[T any](m map[string]T) []string {
	codes := make([]string, 0, len(m))
	for code := range m {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
