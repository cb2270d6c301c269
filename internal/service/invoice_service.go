package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cvrbackend/internal/model"
	"cvrbackend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrInvoiceNotFound = errors.New("invoice not found")

// CreateInvoiceRequest carries a manually entered invoice.
type CreateInvoiceRequest struct {
	JobID         uuid.UUID       `json:"job_id" binding:"required"`
	InvoiceNumber string          `json:"invoice_number" binding:"required"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	InvoiceDate   *time.Time      `json:"invoice_date"`
	DueDate       *time.Time      `json:"due_date"`
}

type InvoiceService interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*model.Invoice, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Invoice, error)
	ListOverdue(ctx context.Context, jobID *uuid.UUID) ([]model.Invoice, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paymentReference string) (*model.Invoice, error)
}

type invoiceService struct {
	invoices repository.InvoiceRepository
	jobs     repository.JobRepository
	now      func() time.Time
}

func NewInvoiceService(invoices repository.InvoiceRepository, jobs repository.JobRepository) InvoiceService {
	return &invoiceService{invoices: invoices, jobs: jobs, now: time.Now}
}

func (s *invoiceService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*model.Invoice, error) {
	if req.Amount.Sign() < 0 {
		return nil, errors.New("invoice amount cannot be negative")
	}
	if _, err := s.jobs.FindByID(ctx, req.JobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("look up job: %w", err)
	}

	invoice := &model.Invoice{
		JobID:         req.JobID,
		InvoiceNumber: req.InvoiceNumber,
		Amount:        req.Amount,
		InvoiceDate:   req.InvoiceDate,
		DueDate:       req.DueDate,
	}
	if err := s.invoices.Create(ctx, invoice); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	return invoice, nil
}

func (s *invoiceService) ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Invoice, error) {
	return s.invoices.ListByJob(ctx, jobID)
}

func (s *invoiceService) ListOverdue(ctx context.Context, jobID *uuid.UUID) ([]model.Invoice, error) {
	return s.invoices.ListOverdue(ctx, jobID, s.now())
}

func (s *invoiceService) MarkPaid(ctx context.Context, id uuid.UUID, paymentReference string) (*model.Invoice, error) {
	invoice, err := s.invoices.MarkPaid(ctx, id, paymentReference, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("mark invoice paid: %w", err)
	}
	return invoice, nil
}
