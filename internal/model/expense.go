package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpenseCategory enum constants. Budgets are allocated
// and overruns evaluated per category.
const (
	CategoryMaterial       = "material"
	CategoryLabour         = "labour"
	CategoryPlantMachinery = "plant_machinery"
	CategoryOverheads      = "overheads"
	CategorySubcontractor  = "subcontractor"
)

// ExpenseSource enum constants
const (
	SourcePnLImport = "P&L Import"
	SourceManual    = "Manual"
)

// Expense is one normalized cost line extracted from a P&L report (or entered
// manually). Rows are append-only: re-importing a report creates new rows.
// Amount is always non-negative; the normalizer strips the source sign.
type Expense struct {
	ID          uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	JobID       uuid.UUID       `gorm:"type:uuid;not null;index" json:"job_id"`
	Category    string          `gorm:"type:varchar(30);not null;index" json:"category"`
	Description string          `gorm:"type:text" json:"description"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"amount"`
	ExpenseDate time.Time       `gorm:"not null" json:"expense_date"`
	Reference   string          `gorm:"type:varchar(255)" json:"reference"`
	Source      string          `gorm:"type:varchar(50);not null;default:'Manual'" json:"source"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ExpenseCategories lists the taxonomy in budget-evaluation order.
func ExpenseCategories() []string {
	return []string{
		CategoryMaterial,
		CategoryLabour,
		CategoryPlantMachinery,
		CategoryOverheads,
		CategorySubcontractor,
	}
}

// ValidExpenseCategory reports whether c belongs to the closed taxonomy.
func ValidExpenseCategory(c string) bool {
	switch c {
	case CategoryMaterial, CategoryLabour, CategoryPlantMachinery, CategoryOverheads, CategorySubcontractor:
		return true
	}
	return false
}
