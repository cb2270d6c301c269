package repository

import (
	"context"

	"cvrbackend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ExpenseRepository interface {
	Create(ctx context.Context, expense *model.Expense) error
	CreateBatch(ctx context.Context, expenses []model.Expense) error
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Expense, error)
	TotalByJob(ctx context.Context, jobID uuid.UUID) (decimal.Decimal, error)
	SumByCategory(ctx context.Context, jobID uuid.UUID) (map[string]decimal.Decimal, error)
}

type expenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

func (r *expenseRepository) Create(ctx context.Context, expense *model.Expense) error {
	return GetDB(ctx, r.db).Create(expense).Error
}

func (r *expenseRepository) CreateBatch(ctx context.Context, expenses []model.Expense) error {
	if len(expenses) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&expenses).Error
}

func (r *expenseRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Expense, error) {
	var expenses []model.Expense
	if err := GetDB(ctx, r.db).Where("job_id = ?", jobID).Order("expense_date desc").Find(&expenses).Error; err != nil {
		return nil, err
	}
	return expenses, nil
}

func (r *expenseRepository) TotalByJob(ctx context.Context, jobID uuid.UUID) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := GetDB(ctx, r.db).Model(&model.Expense{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("job_id = ?", jobID).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}

func (r *expenseRepository) SumByCategory(ctx context.Context, jobID uuid.UUID) (map[string]decimal.Decimal, error) {
	var rows []struct {
		Category string
		Total    decimal.Decimal
	}
	err := GetDB(ctx, r.db).Model(&model.Expense{}).
		Select("category, COALESCE(SUM(amount), 0) as total").
		Where("job_id = ?", jobID).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		totals[row.Category] = row.Total
	}
	return totals, nil
}
