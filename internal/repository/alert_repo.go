package repository

import (
	"context"
	"time"

	"cvrbackend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AlertRepository interface {
	Create(ctx context.Context, alert *model.Alert) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Alert, error)
	ListActive(ctx context.Context, jobID *uuid.UUID) ([]model.Alert, error)
	// FindOpenMatching returns the newest unacknowledged alert of the given
	// type for the job whose message mentions the subject (category or
	// invoice number), or nil when there is none. This is the dedup query.
	FindOpenMatching(ctx context.Context, jobID uuid.UUID, alertType, subject string) (*model.Alert, error)
	Acknowledge(ctx context.Context, id uuid.UUID, acknowledgedBy string, at time.Time) (*model.Alert, error)
}

type alertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

func (r *alertRepository) Create(ctx context.Context, alert *model.Alert) error {
	return GetDB(ctx, r.db).Create(alert).Error
}

func (r *alertRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Alert, error) {
	var alert model.Alert
	if err := GetDB(ctx, r.db).First(&alert, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) ListActive(ctx context.Context, jobID *uuid.UUID) ([]model.Alert, error) {
	var alerts []model.Alert
	query := GetDB(ctx, r.db).Where("is_acknowledged = false")
	if jobID != nil {
		query = query.Where("job_id = ?", *jobID)
	}
	if err := query.Order("created_at desc").Find(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

func (r *alertRepository) FindOpenMatching(ctx context.Context, jobID uuid.UUID, alertType, subject string) (*model.Alert, error) {
	var alert model.Alert
	err := GetDB(ctx, r.db).
		Where("job_id = ? AND alert_type = ? AND is_acknowledged = false AND message LIKE ?", jobID, alertType, "%"+subject+"%").
		Order("created_at desc").
		First(&alert).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) Acknowledge(ctx context.Context, id uuid.UUID, acknowledgedBy string, at time.Time) (*model.Alert, error) {
	var alert model.Alert
	db := GetDB(ctx, r.db)
	if err := db.First(&alert, "id = ?", id).Error; err != nil {
		return nil, err
	}

	alert.IsAcknowledged = true
	alert.AcknowledgedAt = &at
	alert.AcknowledgedBy = acknowledgedBy
	if err := db.Save(&alert).Error; err != nil {
		return nil, err
	}
	return &alert, nil
}
