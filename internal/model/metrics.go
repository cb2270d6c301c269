package model

import (
	"github.com/shopspring/decimal"
)

// DashboardMetrics aggregates the headline numbers across jobs.
type DashboardMetrics struct {
	TotalContractValue decimal.Decimal `json:"total_contract_value"`
	TotalInvoiced      decimal.Decimal `json:"total_invoiced"`
	TotalCosts         decimal.Decimal `json:"total_costs"`
	ProjectedMargin    decimal.Decimal `json:"projected_margin"`
	PendingInvoices    decimal.Decimal `json:"pending_invoices"`
	UnpaidInvoices     decimal.Decimal `json:"unpaid_invoices"`
	ActiveJobsCount    int             `json:"active_jobs_count"`
	CompletedJobsCount int             `json:"completed_jobs_count"`
}

// JobDetailMetrics is the full financial picture of one job, assembled from
// persisted expenses, invoices, variations and budgets. The CVR batch pass
// reads these numbers back into the ledger snapshot.
type JobDetailMetrics struct {
	JobCode            string          `json:"job_code"`
	JobName            string          `json:"job_name"`
	Client             string          `json:"client"`
	Status             string          `json:"status"`
	ProgressPercentage float64         `json:"progress_percentage"`
	ContractValue      decimal.Decimal `json:"contract_value"`
	AmendedValue       decimal.Decimal `json:"amended_value"` // contract + approved variations
	TotalCosts         decimal.Decimal `json:"total_costs"`
	TotalInvoiced      decimal.Decimal `json:"total_invoiced"`
	PendingInvoices    decimal.Decimal `json:"pending_invoices"` // work done but not yet billed
	UnpaidInvoices     decimal.Decimal `json:"unpaid_invoices"`
	ProjectedMargin    decimal.Decimal `json:"projected_margin"`
	MarginPercentage   float64         `json:"margin_percentage"`

	// Cost breakdown by category
	MaterialCosts      decimal.Decimal `json:"material_costs"`
	LabourCosts        decimal.Decimal `json:"labour_costs"`
	PlantMachineryCost decimal.Decimal `json:"plant_machinery_costs"`
	OverheadCosts      decimal.Decimal `json:"overhead_costs"`
	SubcontractorCosts decimal.Decimal `json:"subcontractor_costs"`

	// Budget comparison
	TotalBudget    decimal.Decimal `json:"total_budget"`
	BudgetVariance decimal.Decimal `json:"budget_variance"`
}

// JobFinancialSummary is one row of the jobs listing on the dashboard.
type JobFinancialSummary struct {
	JobCode            string          `json:"job_code"`
	JobName            string          `json:"job_name"`
	Client             string          `json:"client"`
	Status             string          `json:"status"`
	ProgressPercentage float64         `json:"progress_percentage"`
	ContractValue      decimal.Decimal `json:"contract_value"`
	AmendedValue       decimal.Decimal `json:"amended_value"`
	TotalCosts         decimal.Decimal `json:"total_costs"`
	TotalInvoiced      decimal.Decimal `json:"total_invoiced"`
	ProjectedMargin    decimal.Decimal `json:"projected_margin"`
}
