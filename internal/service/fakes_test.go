package service

import (
	"context"
	"strings"
	"time"

	"cvrbackend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// In-memory repository fakes shared by the service tests.

type fakeJobRepo struct {
	jobs map[uuid.UUID]*model.Job
}

func newFakeJobRepo(jobs ...*model.Job) *fakeJobRepo {
	r := &fakeJobRepo{jobs: make(map[uuid.UUID]*model.Job)}
	for _, job := range jobs {
		if job.ID == uuid.Nil {
			job.ID = uuid.New()
		}
		r.jobs[job.ID] = job
	}
	return r
}

func (r *fakeJobRepo) Create(_ context.Context, job *model.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeJobRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Job, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return job, nil
}

func (r *fakeJobRepo) FindByCode(_ context.Context, jobCode string) (*model.Job, error) {
	for _, job := range r.jobs {
		if job.JobCode == jobCode {
			return job, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeJobRepo) List(_ context.Context, page, limit int) ([]model.Job, int64, error) {
	all, _ := r.ListAll(context.Background())
	return all, int64(len(all)), nil
}

func (r *fakeJobRepo) ListAll(_ context.Context) ([]model.Job, error) {
	var jobs []model.Job
	for _, job := range r.jobs {
		jobs = append(jobs, *job)
	}
	return jobs, nil
}

func (r *fakeJobRepo) ListByStatus(_ context.Context, status string) ([]model.Job, error) {
	var jobs []model.Job
	for _, job := range r.jobs {
		if job.Status == status {
			jobs = append(jobs, *job)
		}
	}
	return jobs, nil
}

func (r *fakeJobRepo) Update(_ context.Context, job *model.Job) error {
	r.jobs[job.ID] = job
	return nil
}

func (r *fakeJobRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.jobs, id)
	return nil
}

type fakeExpenseRepo struct {
	expenses []model.Expense
}

func (r *fakeExpenseRepo) Create(_ context.Context, expense *model.Expense) error {
	r.expenses = append(r.expenses, *expense)
	return nil
}

func (r *fakeExpenseRepo) CreateBatch(_ context.Context, expenses []model.Expense) error {
	r.expenses = append(r.expenses, expenses...)
	return nil
}

func (r *fakeExpenseRepo) ListByJob(_ context.Context, jobID uuid.UUID) ([]model.Expense, error) {
	var out []model.Expense
	for _, e := range r.expenses {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeExpenseRepo) TotalByJob(_ context.Context, jobID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range r.expenses {
		if e.JobID == jobID {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

func (r *fakeExpenseRepo) SumByCategory(_ context.Context, jobID uuid.UUID) (map[string]decimal.Decimal, error) {
	sums := make(map[string]decimal.Decimal)
	for _, e := range r.expenses {
		if e.JobID == jobID {
			sums[e.Category] = sums[e.Category].Add(e.Amount)
		}
	}
	return sums, nil
}

type fakeInvoiceRepo struct {
	invoices []model.Invoice
}

func (r *fakeInvoiceRepo) Create(_ context.Context, invoice *model.Invoice) error {
	if invoice.ID == uuid.Nil {
		invoice.ID = uuid.New()
	}
	r.invoices = append(r.invoices, *invoice)
	return nil
}

func (r *fakeInvoiceRepo) CreateBatch(_ context.Context, invoices []model.Invoice) error {
	for i := range invoices {
		if err := r.Create(context.Background(), &invoices[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Invoice, error) {
	for i := range r.invoices {
		if r.invoices[i].ID == id {
			return &r.invoices[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeInvoiceRepo) ListByJob(_ context.Context, jobID uuid.UUID) ([]model.Invoice, error) {
	var out []model.Invoice
	for _, inv := range r.invoices {
		if inv.JobID == jobID {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (r *fakeInvoiceRepo) TotalInvoicedByJob(_ context.Context, jobID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, inv := range r.invoices {
		if inv.JobID == jobID {
			total = total.Add(inv.Amount)
		}
	}
	return total, nil
}

func (r *fakeInvoiceRepo) TotalUnpaidByJob(_ context.Context, jobID uuid.UUID) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, inv := range r.invoices {
		if inv.JobID == jobID && !inv.IsPaid {
			total = total.Add(inv.Amount)
		}
	}
	return total, nil
}

func (r *fakeInvoiceRepo) ListOverdue(_ context.Context, jobID *uuid.UUID, asOf time.Time) ([]model.Invoice, error) {
	var out []model.Invoice
	for _, inv := range r.invoices {
		if inv.IsPaid || inv.DueDate == nil || !asOf.After(*inv.DueDate) {
			continue
		}
		if jobID != nil && inv.JobID != *jobID {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (r *fakeInvoiceRepo) MarkPaid(_ context.Context, id uuid.UUID, paymentReference string, paidAt time.Time) (*model.Invoice, error) {
	for i := range r.invoices {
		if r.invoices[i].ID == id {
			r.invoices[i].IsPaid = true
			r.invoices[i].PaidDate = &paidAt
			r.invoices[i].PaymentReference = paymentReference
			return &r.invoices[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeBudgetRepo struct {
	budgets []model.Budget
}

func (r *fakeBudgetRepo) Create(_ context.Context, budget *model.Budget) error {
	if budget.ID == uuid.Nil {
		budget.ID = uuid.New()
	}
	r.budgets = append(r.budgets, *budget)
	return nil
}

func (r *fakeBudgetRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Budget, error) {
	for i := range r.budgets {
		if r.budgets[i].ID == id {
			return &r.budgets[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeBudgetRepo) FindByJobAndCategory(_ context.Context, jobID uuid.UUID, category string) (*model.Budget, error) {
	for i := range r.budgets {
		if r.budgets[i].JobID == jobID && r.budgets[i].Category == category {
			return &r.budgets[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeBudgetRepo) ListByJob(_ context.Context, jobID uuid.UUID) ([]model.Budget, error) {
	var out []model.Budget
	for _, b := range r.budgets {
		if b.JobID == jobID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *fakeBudgetRepo) Update(_ context.Context, budget *model.Budget) error {
	for i := range r.budgets {
		if r.budgets[i].ID == budget.ID {
			r.budgets[i] = *budget
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

type fakeVariationRepo struct {
	variations []model.Variation
}

func (r *fakeVariationRepo) Create(_ context.Context, variation *model.Variation) error {
	if variation.ID == uuid.Nil {
		variation.ID = uuid.New()
	}
	r.variations = append(r.variations, *variation)
	return nil
}

func (r *fakeVariationRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Variation, error) {
	for i := range r.variations {
		if r.variations[i].ID == id {
			return &r.variations[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeVariationRepo) ListByJob(_ context.Context, jobID uuid.UUID) ([]model.Variation, error) {
	var out []model.Variation
	for _, v := range r.variations {
		if v.JobID == jobID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *fakeVariationRepo) ListPending(_ context.Context, jobID *uuid.UUID) ([]model.Variation, error) {
	var out []model.Variation
	for _, v := range r.variations {
		if v.Status != model.VariationPending {
			continue
		}
		if jobID != nil && v.JobID != *jobID {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func (r *fakeVariationRepo) Update(_ context.Context, variation *model.Variation) error {
	for i := range r.variations {
		if r.variations[i].ID == variation.ID {
			r.variations[i] = *variation
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeVariationRepo) ApprovedTotalByJob(_ context.Context, jobID uuid.UUID) (decimal.Decimal, error) {
	return r.totalByStatus(jobID, model.VariationApproved), nil
}

func (r *fakeVariationRepo) PendingTotalByJob(_ context.Context, jobID uuid.UUID) (decimal.Decimal, error) {
	return r.totalByStatus(jobID, model.VariationPending), nil
}

func (r *fakeVariationRepo) totalByStatus(jobID uuid.UUID, status string) decimal.Decimal {
	total := decimal.Zero
	for _, v := range r.variations {
		if v.JobID == jobID && v.Status == status {
			total = total.Add(v.Amount)
		}
	}
	return total
}

type fakeAlertRepo struct {
	alerts []model.Alert
}

func (r *fakeAlertRepo) Create(_ context.Context, alert *model.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	r.alerts = append(r.alerts, *alert)
	return nil
}

func (r *fakeAlertRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Alert, error) {
	for i := range r.alerts {
		if r.alerts[i].ID == id {
			return &r.alerts[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeAlertRepo) ListActive(_ context.Context, jobID *uuid.UUID) ([]model.Alert, error) {
	var out []model.Alert
	for _, a := range r.alerts {
		if a.IsAcknowledged {
			continue
		}
		if jobID != nil && a.JobID != *jobID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *fakeAlertRepo) FindOpenMatching(_ context.Context, jobID uuid.UUID, alertType, subject string) (*model.Alert, error) {
	for i := range r.alerts {
		a := &r.alerts[i]
		if a.JobID == jobID && a.AlertType == alertType && !a.IsAcknowledged && strings.Contains(a.Message, subject) {
			return a, nil
		}
	}
	return nil, nil
}

func (r *fakeAlertRepo) Acknowledge(_ context.Context, id uuid.UUID, acknowledgedBy string, at time.Time) (*model.Alert, error) {
	for i := range r.alerts {
		if r.alerts[i].ID == id {
			r.alerts[i].IsAcknowledged = true
			r.alerts[i].AcknowledgedAt = &at
			r.alerts[i].AcknowledgedBy = acknowledgedBy
			return &r.alerts[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

// fakeTxManager runs the unit of work directly, without a database.
type fakeTxManager struct{}

func (fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return fn(ctx)
}
