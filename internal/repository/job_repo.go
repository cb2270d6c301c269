package repository

import (
	"context"

	"cvrbackend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type JobRepository interface {
	Create(ctx context.Context, job *model.Job) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Job, error)
	FindByCode(ctx context.Context, jobCode string) (*model.Job, error)
	List(ctx context.Context, page, limit int) ([]model.Job, int64, error)
	ListAll(ctx context.Context) ([]model.Job, error)
	ListByStatus(ctx context.Context, status string) ([]model.Job, error)
	Update(ctx context.Context, job *model.Job) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type jobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) Create(ctx context.Context, job *model.Job) error {
	return GetDB(ctx, r.db).Create(job).Error
}

func (r *jobRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	var job model.Job
	if err := GetDB(ctx, r.db).First(&job, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) FindByCode(ctx context.Context, jobCode string) (*model.Job, error) {
	var job model.Job
	if err := GetDB(ctx, r.db).First(&job, "job_code = ?", jobCode).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) List(ctx context.Context, page, limit int) ([]model.Job, int64, error) {
	var jobs []model.Job
	var total int64

	db := GetDB(ctx, r.db)
	if err := db.Model(&model.Job{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := db.Order("created_at desc").Offset(offset).Limit(limit).Find(&jobs).Error; err != nil {
		return nil, 0, err
	}

	return jobs, total, nil
}

func (r *jobRepository) ListAll(ctx context.Context) ([]model.Job, error) {
	var jobs []model.Job
	if err := GetDB(ctx, r.db).Order("job_code asc").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepository) ListByStatus(ctx context.Context, status string) ([]model.Job, error) {
	var jobs []model.Job
	if err := GetDB(ctx, r.db).Where("status = ?", status).Order("job_code asc").Find(&jobs).Error; err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepository) Update(ctx context.Context, job *model.Job) error {
	return GetDB(ctx, r.db).Save(job).Error
}

func (r *jobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Where("id = ?", id).Delete(&model.Job{}).Error
}
