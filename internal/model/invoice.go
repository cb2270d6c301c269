package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice tracks an amount billed to a client for a job and its payment
// state. Imported from QuickBooks invoice-by-class reports or created
// directly.
type Invoice struct {
	ID               uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	JobID            uuid.UUID       `gorm:"type:uuid;not null;index" json:"job_id"`
	InvoiceNumber    string          `gorm:"type:varchar(50);not null;index" json:"invoice_number"`
	Amount           decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	InvoiceDate      *time.Time      `json:"invoice_date"`
	DueDate          *time.Time      `json:"due_date"`
	IsPaid           bool            `gorm:"not null;default:false;index" json:"is_paid"`
	PaidDate         *time.Time      `json:"paid_date"`
	PaymentReference string          `gorm:"type:varchar(255)" json:"payment_reference"`
	CreatedAt        time.Time       `json:"created_at"`

	Job *Job `gorm:"foreignKey:JobID" json:"-"`
}
