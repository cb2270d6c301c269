package model

import (
	"time"

	"github.com/google/uuid"
)

// AlertType enum constants
const (
	AlertBudgetOverrun  = "budget_overrun"
	AlertOverdueInvoice = "overdue_invoice"
)

// AlertSeverity enum constants
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// Alert is a persisted notification for a job. An alert is "live" while
// unacknowledged; the creation path never opens a second live alert of the
// same type for the same subject (category or invoice number), matched as a
// substring of the message.
type Alert struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	JobID          uuid.UUID  `gorm:"type:uuid;not null;index" json:"job_id"`
	AlertType      string     `gorm:"type:varchar(30);not null;index" json:"alert_type"`
	Message        string     `gorm:"type:text;not null" json:"message"`
	Severity       string     `gorm:"type:varchar(10);not null;default:'medium'" json:"severity"`
	IsAcknowledged bool       `gorm:"not null;default:false;index" json:"is_acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`
	AcknowledgedBy string     `gorm:"type:varchar(255)" json:"acknowledged_by"`
	CreatedAt      time.Time  `json:"created_at"`
}
