package repository

import (
	"context"
	"time"

	"cvrbackend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	CreateBatch(ctx context.Context, invoices []model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Invoice, error)
	TotalInvoicedByJob(ctx context.Context, jobID uuid.UUID) (decimal.Decimal, error)
	TotalUnpaidByJob(ctx context.Context, jobID uuid.UUID) (decimal.Decimal, error)
	ListOverdue(ctx context.Context, jobID *uuid.UUID, asOf time.Time) ([]model.Invoice, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paymentReference string, paidAt time.Time) (*model.Invoice, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return GetDB(ctx, r.db).Create(invoice).Error
}

func (r *invoiceRepository) CreateBatch(ctx context.Context, invoices []model.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&invoices).Error
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

func (r *invoiceRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Invoice, error) {
	var invoices []model.Invoice
	if err := GetDB(ctx, r.db).Where("job_id = ?", jobID).Order("invoice_date desc").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) TotalInvoicedByJob(ctx context.Context, jobID uuid.UUID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("job_id = ?", jobID).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func (r *invoiceRepository) TotalUnpaidByJob(ctx context.Context, jobID uuid.UUID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("job_id = ? AND is_paid = false", jobID).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func (r *invoiceRepository) ListOverdue(ctx context.Context, jobID *uuid.UUID, asOf time.Time) ([]model.Invoice, error) {
	var invoices []model.Invoice
	query := GetDB(ctx, r.db).Where("is_paid = false AND due_date IS NOT NULL AND due_date < ?", asOf)
	if jobID != nil {
		query = query.Where("job_id = ?", *jobID)
	}
	if err := query.Order("due_date asc").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *invoiceRepository) MarkPaid(ctx context.Context, id uuid.UUID, paymentReference string, paidAt time.Time) (*model.Invoice, error) {
	var invoice model.Invoice
	db := GetDB(ctx, r.db)
	if err := db.First(&invoice, "id = ?", id).Error; err != nil {
		return nil, err
	}

	invoice.IsPaid = true
	invoice.PaidDate = &paidAt
	invoice.PaymentReference = paymentReference
	if err := db.Save(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}
