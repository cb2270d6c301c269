package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VariationStatus enum constants
const (
	VariationPending  = "pending"
	VariationApproved = "approved"
	VariationRejected = "rejected"
)

// Variation is a client-approved change to contract scope. Approving one
// raises the job's amended value; only approved variations count toward the
// margin calculations.
type Variation struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	JobID           uuid.UUID       `gorm:"type:uuid;not null;index" json:"job_id"`
	VariationNumber string          `gorm:"type:varchar(50);not null" json:"variation_number"`
	Description     string          `gorm:"type:text" json:"description"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	Status          string          `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	SubmittedDate   *time.Time      `json:"submitted_date"`
	ApprovedDate    *time.Time      `json:"approved_date"`
	ApprovedBy      string          `gorm:"type:varchar(255)" json:"approved_by"`
	CreatedBy       string          `gorm:"type:varchar(255)" json:"created_by"`
	CreatedAt       time.Time       `json:"created_at"`
}
