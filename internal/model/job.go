package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// JobStatus enum constants. The progress update path moves active jobs to
// near_completion at 90% and completed at 100%.
const (
	JobActive         = "active"
	JobNearCompletion = "near_completion"
	JobCompleted      = "completed"
	JobOnHold         = "on_hold"
)

// Job is one construction contract tracked by the system. JobCode is the
// stable external identity; spreadsheet imports and the CVR ledger key on it.
type Job struct {
	ID                 uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	JobCode            string          `gorm:"type:varchar(50);uniqueIndex;not null" json:"job_code"`
	Name               string          `gorm:"type:varchar(255);not null" json:"name"`
	Client             string          `gorm:"type:varchar(255)" json:"client"`
	Description        string          `gorm:"type:text" json:"description"`
	ContractValue      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"contract_value"`
	EstimatedFinalCost decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"estimated_final_cost"`
	Status             string          `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	ProgressPercentage float64         `gorm:"not null;default:0" json:"progress_percentage"`
	StartDate          *time.Time      `json:"start_date"`
	EndDate            *time.Time      `json:"end_date"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`

	Expenses   []Expense   `gorm:"foreignKey:JobID" json:"-"`
	Invoices   []Invoice   `gorm:"foreignKey:JobID" json:"-"`
	Budgets    []Budget    `gorm:"foreignKey:JobID" json:"-"`
	Variations []Variation `gorm:"foreignKey:JobID" json:"-"`
}

// ValidJobStatus reports whether s is a known job status.
func ValidJobStatus(s string) bool {
	switch s {
	case JobActive, JobNearCompletion, JobCompleted, JobOnHold:
		return true
	}
	return false
}
