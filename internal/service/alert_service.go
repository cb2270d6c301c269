package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cvrbackend/internal/model"
	"cvrbackend/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrAlertNotFound = errors.New("alert not found")

type AlertService interface {
	ListActive(ctx context.Context, jobID *uuid.UUID) ([]model.Alert, error)
	Acknowledge(ctx context.Context, id uuid.UUID, acknowledgedBy string) (*model.Alert, error)
}

type alertService struct {
	alerts repository.AlertRepository
	now    func() time.Time
}

func NewAlertService(alerts repository.AlertRepository) AlertService {
	return &alertService{alerts: alerts, now: time.Now}
}

func (s *alertService) ListActive(ctx context.Context, jobID *uuid.UUID) ([]model.Alert, error) {
	return s.alerts.ListActive(ctx, jobID)
}

// Acknowledge closes an alert. A closed alert no longer suppresses new
// alerts for the same subject, so the next check can re-raise if the
// condition persists.
func (s *alertService) Acknowledge(ctx context.Context, id uuid.UUID, acknowledgedBy string) (*model.Alert, error) {
	alert, err := s.alerts.Acknowledge(ctx, id, acknowledgedBy, s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAlertNotFound
		}
		return nil, fmt.Errorf("acknowledge alert: %w", err)
	}
	return alert, nil
}
