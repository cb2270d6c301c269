package repository

import (
	"context"

	"cvrbackend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BudgetRepository interface {
	Create(ctx context.Context, budget *model.Budget) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Budget, error)
	FindByJobAndCategory(ctx context.Context, jobID uuid.UUID, category string) (*model.Budget, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Budget, error)
	Update(ctx context.Context, budget *model.Budget) error
}

type budgetRepository struct {
	db *gorm.DB
}

func NewBudgetRepository(db *gorm.DB) BudgetRepository {
	return &budgetRepository{db: db}
}

func (r *budgetRepository) Create(ctx context.Context, budget *model.Budget) error {
	return GetDB(ctx, r.db).Create(budget).Error
}

func (r *budgetRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Budget, error) {
	var budget model.Budget
	if err := GetDB(ctx, r.db).First(&budget, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &budget, nil
}

func (r *budgetRepository) FindByJobAndCategory(ctx context.Context, jobID uuid.UUID, category string) (*model.Budget, error) {
	var budget model.Budget
	if err := GetDB(ctx, r.db).First(&budget, "job_id = ? AND category = ?", jobID, category).Error; err != nil {
		return nil, err
	}
	return &budget, nil
}

func (r *budgetRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Budget, error) {
	var budgets []model.Budget
	if err := GetDB(ctx, r.db).Where("job_id = ?", jobID).Order("category asc").Find(&budgets).Error; err != nil {
		return nil, err
	}
	return budgets, nil
}

func (r *budgetRepository) Update(ctx context.Context, budget *model.Budget) error {
	return GetDB(ctx, r.db).Save(budget).Error
}
