package service

import (
	"context"
	"testing"

	"cvrbackend/internal/model"

	"github.com/google/uuid"
)

func TestUpdateProgressTransitions(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		percentage float64
		want       string
	}{
		{"active stays active", model.JobActive, 50, model.JobActive},
		{"active nears completion", model.JobActive, 90, model.JobNearCompletion},
		{"active completes", model.JobActive, 100, model.JobCompleted},
		{"near completion regresses", model.JobNearCompletion, 70, model.JobActive},
		{"on hold keeps status", model.JobOnHold, 95, model.JobOnHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &model.Job{JobCode: "JOB001", Name: "Main Road", Status: tt.status}
			svc := NewJobService(newFakeJobRepo(job))

			updated, err := svc.UpdateProgress(context.Background(), job.ID, tt.percentage)
			if err != nil {
				t.Fatalf("UpdateProgress: %v", err)
			}
			if updated.Status != tt.want {
				t.Errorf("status = %q, want %q", updated.Status, tt.want)
			}
			if updated.ProgressPercentage != tt.percentage {
				t.Errorf("progress = %v, want %v", updated.ProgressPercentage, tt.percentage)
			}
		})
	}
}

func TestUpdateProgressValidation(t *testing.T) {
	job := &model.Job{JobCode: "JOB001", Name: "Main Road", Status: model.JobActive}
	svc := NewJobService(newFakeJobRepo(job))

	if _, err := svc.UpdateProgress(context.Background(), job.ID, 101); err == nil {
		t.Errorf("accepted progress over 100")
	}
	if _, err := svc.UpdateProgress(context.Background(), job.ID, -1); err == nil {
		t.Errorf("accepted negative progress")
	}
	if _, err := svc.UpdateProgress(context.Background(), uuid.New(), 50); err == nil {
		t.Errorf("accepted unknown job")
	}
}

func TestJobEstimatedFinalCost(t *testing.T) {
	svc := NewJobService(newFakeJobRepo())

	created, err := svc.CreateJob(context.Background(), CreateJobRequest{
		JobCode:            "JOB001",
		Name:               "Main Road",
		ContractValue:      dec("100000"),
		EstimatedFinalCost: dec("80000"),
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if !created.EstimatedFinalCost.Equal(dec("80000")) {
		t.Errorf("EstimatedFinalCost = %s, want 80000", created.EstimatedFinalCost)
	}

	revised := dec("95000")
	updated, err := svc.UpdateJob(context.Background(), created.ID, UpdateJobRequest{EstimatedFinalCost: &revised})
	if err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	if !updated.EstimatedFinalCost.Equal(dec("95000")) {
		t.Errorf("EstimatedFinalCost = %s, want 95000", updated.EstimatedFinalCost)
	}
}

func TestCreateJobRejectsDuplicateCode(t *testing.T) {
	existing := &model.Job{JobCode: "JOB001", Name: "Main Road", Status: model.JobActive}
	svc := NewJobService(newFakeJobRepo(existing))

	if _, err := svc.CreateJob(context.Background(), CreateJobRequest{JobCode: "JOB001", Name: "Duplicate"}); err == nil {
		t.Errorf("accepted duplicate job code")
	}
}
