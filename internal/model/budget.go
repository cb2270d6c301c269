package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Budget allocates a spend limit to one expense category of one job.
// At most one row may exist per (job, category) pair; the creation path
// rejects duplicates.
type Budget struct {
	ID             uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	JobID          uuid.UUID       `gorm:"type:uuid;not null;index:idx_budget_job_category,unique" json:"job_id"`
	Category       string          `gorm:"type:varchar(30);not null;index:idx_budget_job_category,unique" json:"category"`
	BudgetedAmount decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"budgeted_amount"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
