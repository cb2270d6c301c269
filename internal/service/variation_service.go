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

// CreateVariationRequest carries a new contract variation.
type CreateVariationRequest struct {
	JobID           uuid.UUID       `json:"job_id" binding:"required"`
	VariationNumber string          `json:"variation_number" binding:"required"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	SubmittedDate   *time.Time      `json:"submitted_date"`
	CreatedBy       string          `json:"-"`
}

type VariationService interface {
	CreateVariation(ctx context.Context, req CreateVariationRequest) (*model.Variation, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Variation, error)
	ListPending(ctx context.Context, jobID *uuid.UUID) ([]model.Variation, error)
	Approve(ctx context.Context, id uuid.UUID, approvedBy string) (*model.Variation, error)
	Reject(ctx context.Context, id uuid.UUID, rejectedBy string) (*model.Variation, error)
}

type variationService struct {
	variations repository.VariationRepository
	jobs       repository.JobRepository
	txManager  repository.TransactionManager
	now        func() time.Time
}

func NewVariationService(
	variations repository.VariationRepository,
	jobs repository.JobRepository,
	txManager repository.TransactionManager,
) VariationService {
	return &variationService{
		variations: variations,
		jobs:       jobs,
		txManager:  txManager,
		now:        time.Now,
	}
}

func (s *variationService) CreateVariation(ctx context.Context, req CreateVariationRequest) (*model.Variation, error) {
	if _, err := s.jobs.FindByID(ctx, req.JobID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("look up job: %w", err)
	}

	variation := &model.Variation{
		JobID:           req.JobID,
		VariationNumber: req.VariationNumber,
		Description:     req.Description,
		Amount:          req.Amount,
		Status:          model.VariationPending,
		SubmittedDate:   req.SubmittedDate,
		CreatedBy:       req.CreatedBy,
	}
	if err := s.variations.Create(ctx, variation); err != nil {
		return nil, fmt.Errorf("create variation: %w", err)
	}
	return variation, nil
}

func (s *variationService) ListByJob(ctx context.Context, jobID uuid.UUID) ([]model.Variation, error) {
	return s.variations.ListByJob(ctx, jobID)
}

func (s *variationService) ListPending(ctx context.Context, jobID *uuid.UUID) ([]model.Variation, error) {
	return s.variations.ListPending(ctx, jobID)
}

// Approve moves a pending variation to approved, recording who signed it off
// and when. The amount starts counting toward the job's amended value through
// the approved-variations sum.
func (s *variationService) Approve(ctx context.Context, id uuid.UUID, approvedBy string) (*model.Variation, error) {
	var variation *model.Variation
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		v, err := s.variations.FindByID(txCtx, id)
		if err != nil {
			return fmt.Errorf("look up variation: %w", err)
		}
		if v.Status != model.VariationPending {
			return fmt.Errorf("variation %s is already %s", v.VariationNumber, v.Status)
		}

		now := s.now()
		v.Status = model.VariationApproved
		v.ApprovedDate = &now
		v.ApprovedBy = approvedBy
		if err := s.variations.Update(txCtx, v); err != nil {
			return fmt.Errorf("update variation: %w", err)
		}
		variation = v
		return nil
	})
	if err != nil {
		return nil, err
	}
	return variation, nil
}

func (s *variationService) Reject(ctx context.Context, id uuid.UUID, rejectedBy string) (*model.Variation, error) {
	variation, err := s.variations.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("look up variation: %w", err)
	}
	if variation.Status != model.VariationPending {
		return nil, fmt.Errorf("variation %s is already %s", variation.VariationNumber, variation.Status)
	}

	variation.Status = model.VariationRejected
	variation.ApprovedBy = rejectedBy
	if err := s.variations.Update(ctx, variation); err != nil {
		return nil, fmt.Errorf("update variation: %w", err)
	}
	return variation, nil
}
