package repository

import (
	"context"

	"cvrbackend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type VariationRepository interface {
	Create(ctx context.Context, variation *model.Variation) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Variation, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Variation, error)
	ListPending(ctx context.Context, jobID *uuid.UUID) ([]model.Variation, error)
	Update(ctx context.Context, variation *model.Variation) error
	ApprovedTotalByJob(ctx context.Context, jobID uuid.UUID) (decimal.Decimal, error)
	PendingTotalByJob(ctx context.Context, jobID uuid.UUID) (decimal.Decimal, error)
}

type variationRepository struct {
	db *gorm.DB
}

func NewVariationRepository(db *gorm.DB) VariationRepository {
	return &variationRepository{db: db}
}

func (r *variationRepository) Create(ctx context.Context, variation *model.Variation) error {
	return GetDB(ctx, r.db).Create(variation).Error
}

func (r *variationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Variation, error) {
	var variation model.Variation
	if err := GetDB(ctx, r.db).First(&variation, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &variation, nil
}

func (r *variationRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Variation, error) {
	var variations []model.Variation
	if err := GetDB(ctx, r.db).Where("job_id = ?", jobID).Order("created_at desc").Find(&variations).Error; err != nil {
		return nil, err
	}
	return variations, nil
}

func (r *variationRepository) ListPending(ctx context.Context, jobID *uuid.UUID) ([]model.Variation, error) {
	var variations []model.Variation
	query := GetDB(ctx, r.db).Where("status = ?", model.VariationPending)
	if jobID != nil {
		query = query.Where("job_id = ?", *jobID)
	}
	if err := query.Order("submitted_date asc").Find(&variations).Error; err != nil {
		return nil, err
	}
	return variations, nil
}

func (r *variationRepository) Update(ctx context.Context, variation *model.Variation) error {
	return GetDB(ctx, r.db).Save(variation).Error
}

func (r *variationRepository) ApprovedTotalByJob(ctx context.Context, jobID uuid.UUID) (decimal.Decimal, error) {
	return r.sumByStatus(ctx, jobID, model.VariationApproved)
}

func (r *variationRepository) PendingTotalByJob(ctx context.Context, jobID uuid.UUID) (decimal.Decimal, error) {
	return r.sumByStatus(ctx, jobID, model.VariationPending)
}

func (r *variationRepository) sumByStatus(ctx context.Context, jobID uuid.UUID, status string) (decimal.Decimal, error) {
	var row struct {
		Total decimal.Decimal
	}
	err := GetDB(ctx, r.db).Model(&model.Variation{}).
		Select("COALESCE(SUM(amount), 0) as total").
		Where("job_id = ? AND status = ?", jobID, status).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	return row.Total, nil
}
