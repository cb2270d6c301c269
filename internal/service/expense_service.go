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

// CreateExpenseRequest carries a manually entered cost line.
type CreateExpenseRequest struct {
	JobID       uuid.UUID       `json:"job_id" binding:"required"`
	Category    string          `json:"category" binding:"required"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	ExpenseDate *time.Time      `json:"expense_date"`
	Reference   string          `json:"reference"`
}

type ExpenseService interface {
	CreateExpense(ctx context.Context, req CreateExpenseRequest) (*model.Expense, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Expense, error)
}

type expenseService struct {
	expenses repository.ExpenseRepository
	jobs     repository.JobRepository
	budgets  BudgetService
	now      func() time.Time
}

func NewExpenseService(
	expenses repository.ExpenseRepository,
	jobs repository.JobRepository,
	budgets BudgetService,
) ExpenseService {
	return &expenseService{expenses: expenses, jobs: jobs, budgets: budgets, now: time.Now}
}

func (s *expenseService) CreateExpense(ctx context.Context, req CreateExpenseRequest) (*model.Expense, error) {
	if !model.ValidExpenseCategory(req.Category) {
		return nil, fmt.Errorf("unknown expense category %q", req.Category)
	}
	if req.Amount.Sign() < 0 {
		return nil, errors.New("expense amount cannot be negative")
	}
	if _, err := s.jobs.FindByID(ctx, req.JobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("look up job: %w", err)
	}

	expenseDate := s.now()
	if req.ExpenseDate != nil {
		expenseDate = *req.ExpenseDate
	}
	expense := &model.Expense{
		JobID:       req.JobID,
		Category:    req.Category,
		Description: req.Description,
		Amount:      req.Amount,
		ExpenseDate: expenseDate,
		Reference:   req.Reference,
		Source:      model.SourceManual,
	}
	if err := s.expenses.Create(ctx, expense); err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}

	if _, err := s.budgets.CheckJobBudgets(ctx, req.JobID); err != nil {
		log.Printf("budget check after expense failed for job %s: %v", req.JobID, err)
	}
	return expense, nil
}

func (s *expenseService) ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Expense, error) {
	return s.expenses.ListByJob(ctx, jobID)
}
