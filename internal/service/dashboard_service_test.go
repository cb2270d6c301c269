package service

import (
	"context"
	"testing"

	"cvrbackend/internal/model"
)

func newDashboardFixture(job *model.Job, expenses []model.Expense, variations []model.Variation) DashboardService {
	jobs := newFakeJobRepo(job)
	for i := range expenses {
		expenses[i].JobID = job.ID
	}
	for i := range variations {
		variations[i].JobID = job.ID
	}
	variationRepo := &fakeVariationRepo{variations: variations}
	return NewDashboardService(jobs, &fakeExpenseRepo{expenses: expenses}, &fakeInvoiceRepo{}, variationRepo, &fakeBudgetRepo{})
}

func TestJobDetailMarginFromCosts(t *testing.T) {
	job := &model.Job{JobCode: "JOB001", Name: "Main Road", Status: model.JobActive, ContractValue: dec("100000")}
	svc := newDashboardFixture(job,
		[]model.Expense{{Description: "Materials delivery", Amount: dec("40000"), Category: model.CategoryMaterial}},
		[]model.Variation{{VariationNumber: "VO-001", Status: model.VariationApproved, Amount: dec("5000")}},
	)

	detail, err := svc.JobDetail(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("JobDetail: %v", err)
	}
	if !detail.AmendedValue.Equal(dec("105000")) {
		t.Errorf("AmendedValue = %s, want 105000", detail.AmendedValue)
	}
	// No forecast recorded, so cost to date drives the margin.
	if !detail.ProjectedMargin.Equal(dec("65000")) {
		t.Errorf("ProjectedMargin = %s, want 65000", detail.ProjectedMargin)
	}
}

func TestJobDetailMarginFromEstimatedFinalCost(t *testing.T) {
	job := &model.Job{
		JobCode:            "JOB001",
		Name:               "Main Road",
		Status:             model.JobActive,
		ContractValue:      dec("100000"),
		EstimatedFinalCost: dec("90000"),
	}
	svc := newDashboardFixture(job,
		[]model.Expense{{Description: "Materials delivery", Amount: dec("40000"), Category: model.CategoryMaterial}},
		[]model.Variation{{VariationNumber: "VO-001", Status: model.VariationApproved, Amount: dec("5000")}},
	)

	detail, err := svc.JobDetail(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("JobDetail: %v", err)
	}
	// 105000 amended against the 90000 forecast, not the 40000 spent so far.
	if !detail.ProjectedMargin.Equal(dec("15000")) {
		t.Errorf("ProjectedMargin = %s, want 15000", detail.ProjectedMargin)
	}
}
