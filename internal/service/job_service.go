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

// CreateJobRequest carries a new job.
type CreateJobRequest struct {
	JobCode            string          `json:"job_code" binding:"required"`
	Name               string          `json:"name" binding:"required"`
	Client             string          `json:"client"`
	Description        string          `json:"description"`
	ContractValue      decimal.Decimal `json:"contract_value"`
	EstimatedFinalCost decimal.Decimal `json:"estimated_final_cost"`
	StartDate          *time.Time      `json:"start_date"`
	EndDate            *time.Time      `json:"end_date"`
}

// UpdateJobRequest carries a partial job update; nil fields are untouched.
type UpdateJobRequest struct {
	Name               *string          `json:"name"`
	Client             *string          `json:"client"`
	Description        *string          `json:"description"`
	ContractValue      *decimal.Decimal `json:"contract_value"`
	EstimatedFinalCost *decimal.Decimal `json:"estimated_final_cost"`
	Status             *string          `json:"status"`
	StartDate          *time.Time       `json:"start_date"`
	EndDate            *time.Time       `json:"end_date"`
}

type JobService interface {
	CreateJob(ctx context.Context, req CreateJobRequest) (*model.Job, error)
	GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error)
	GetJobByCode(ctx context.Context, jobCode string) (*model.Job, error)
	ListJobs(ctx context.Context, page, limit int) ([]model.Job, int64, error)
	UpdateJob(ctx context.Context, id uuid.UUID, req UpdateJobRequest) (*model.Job, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, percentage float64) (*model.Job, error)
	DeleteJob(ctx context.Context, id uuid.UUID) error
}

type jobService struct {
	jobs repository.JobRepository
}

func NewJobService(jobs repository.JobRepository) JobService {
	return &jobService{jobs: jobs}
}

func (s *jobService) CreateJob(ctx context.Context, req CreateJobRequest) (*model.Job, error) {
	if existing, err := s.jobs.FindByCode(ctx, req.JobCode); err == nil && existing != nil {
		return nil, fmt.Errorf("job code %s already exists", req.JobCode)
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("look up job code: %w", err)
	}

	job := &model.Job{
		JobCode:            req.JobCode,
		Name:               req.Name,
		Client:             req.Client,
		Description:        req.Description,
		ContractValue:      req.ContractValue,
		EstimatedFinalCost: req.EstimatedFinalCost,
		Status:             model.JobActive,
		StartDate:          req.StartDate,
		EndDate:            req.EndDate,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

func (s *jobService) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("look up job: %w", err)
	}
	return job, nil
}

func (s *jobService) GetJobByCode(ctx context.Context, jobCode string) (*model.Job, error) {
	job, err := s.jobs.FindByCode(ctx, jobCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("look up job: %w", err)
	}
	return job, nil
}

func (s *jobService) ListJobs(ctx context.Context, page, limit int) ([]model.Job, int64, error) {
	return s.jobs.List(ctx, page, limit)
}

func (s *jobService) UpdateJob(ctx context.Context, id uuid.UUID, req UpdateJobRequest) (*model.Job, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		job.Name = *req.Name
	}
	if req.Client != nil {
		job.Client = *req.Client
	}
	if req.Description != nil {
		job.Description = *req.Description
	}
	if req.ContractValue != nil {
		job.ContractValue = *req.ContractValue
	}
	if req.EstimatedFinalCost != nil {
		job.EstimatedFinalCost = *req.EstimatedFinalCost
	}
	if req.Status != nil {
		if !model.ValidJobStatus(*req.Status) {
			return nil, fmt.Errorf("unknown job status %q", *req.Status)
		}
		job.Status = *req.Status
	}
	if req.StartDate != nil {
		job.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		job.EndDate = req.EndDate
	}

	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	return job, nil
}

// UpdateProgress records completion percentage and moves the status along:
// 90% puts an active job into near_completion, 100% completes it. On-hold
// jobs keep their status.
func (s *jobService) UpdateProgress(ctx context.Context, id uuid.UUID, percentage float64) (*model.Job, error) {
	if percentage < 0 || percentage > 100 {
		return nil, fmt.Errorf("progress must be between 0 and 100, got %.1f", percentage)
	}

	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	job.ProgressPercentage = percentage
	if job.Status != model.JobOnHold {
		switch {
		case percentage >= 100:
			job.Status = model.JobCompleted
		case percentage >= 90:
			job.Status = model.JobNearCompletion
		default:
			job.Status = model.JobActive
		}
	}

	if err := s.jobs.Update(ctx, job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	return job, nil
}

func (s *jobService) DeleteJob(ctx context.Context, id uuid.UUID) error {
	if _, err := s.GetJob(ctx, id); err != nil {
		return err
	}
	return s.jobs.Delete(ctx, id)
}
