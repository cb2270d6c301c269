package service

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	// UnassignedClass marks invoice rows whose class column is blank or does
	// not resolve to a job. They are kept in the report but excluded from
	// per-job grouping.
	UnassignedClass = "UNASSIGNED"
	// UnknownCustomer marks rows without a customer name.
	UnknownCustomer = "UNKNOWN"
)

var invoiceRequiredColumns = []string{"Type", "Date", "Num", "Name", "Class", "Amount", "Balance"}

// Date layouts seen in QuickBooks exports, tried in order.
var invoiceDateLayouts = []string{
	"01/02/2006",
	"2006-01-02",
	"02/01/2006",
	"1/2/2006",
	"01-02-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

// InvoiceLine is one normalized row of an open-invoices report.
type InvoiceLine struct {
	Type          string          `json:"type"`
	InvoiceNumber string          `json:"invoice_number"`
	Customer      string          `json:"customer"`
	JobCode       string          `json:"job_code"`
	Amount        decimal.Decimal `json:"amount"`
	Balance       decimal.Decimal `json:"balance"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	Status        string          `json:"status"` // PAID or UNPAID
	InvoiceDate   *time.Time      `json:"invoice_date"`
	DueDate       *time.Time      `json:"due_date"`
	AgingDays     int             `json:"aging_days"`
}

// InvoiceJobData groups an exported job's invoice lines with running totals.
type InvoiceJobData struct {
	JobCode       string          `json:"job_code"`
	TotalInvoiced decimal.Decimal `json:"total_invoiced"`
	TotalPaid     decimal.Decimal `json:"total_paid"`
	TotalBalance  decimal.Decimal `json:"total_balance"`
	Lines         []InvoiceLine   `json:"lines"`
}

// InvoiceReport is the normalized result of an invoice upload, with
// advisory flags derived from the aggregate picture. Advisories are
// informational only; nothing is persisted from them.
type InvoiceReport struct {
	Data           map[string]*InvoiceJobData `json:"data"`
	Unassigned     []InvoiceLine              `json:"unassigned"`
	ProcessedCount int                        `json:"processed_count"`
	SkippedCount   int                        `json:"skipped_count"`
	Errors         []string                   `json:"errors"`
	TotalInvoiced  decimal.Decimal            `json:"total_invoiced"`
	TotalPaid      decimal.Decimal            `json:"total_paid"`
	TotalBalance   decimal.Decimal            `json:"total_balance"`
	PaymentRate    float64                    `json:"payment_rate"` // 0..100
	Advisories     []string                   `json:"advisories"`
	ProcessedAt    time.Time                  `json:"processed_at"`
}

// InvoiceParser normalizes row-oriented invoice exports where each row is one
// invoice and columns are fixed named fields.
type InvoiceParser struct {
	now func() time.Time
}

func NewInvoiceParser() *InvoiceParser {
	return &InvoiceParser{now: time.Now}
}

// Parse opens the workbook at path and normalizes its first sheet. Returns a
// *ParseError naming the missing columns when the header is incomplete.
func (p *InvoiceParser) Parse(path string) (*InvoiceReport, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &LedgerError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{TriedSheets: nil}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &LedgerError{Op: "read", Path: path, Err: err}
	}
	return p.parseRows(rows)
}

func (p *InvoiceParser) parseRows(rows [][]string) (*InvoiceReport, error) {
	if len(rows) == 0 {
		return nil, &ParseError{MissingColumns: invoiceRequiredColumns}
	}

	columns := make(map[string]int)
	for col, header := range rows[0] {
		header = strings.TrimSpace(header)
		if header != "" {
			columns[strings.ToLower(header)] = col
		}
	}
	var missing []string
	for _, required := range invoiceRequiredColumns {
		if _, ok := columns[strings.ToLower(required)]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, &ParseError{MissingColumns: missing}
	}

	col := func(row []string, name string) string {
		idx, ok := columns[strings.ToLower(name)]
		if !ok {
			return ""
		}
		return cellAt(row, idx)
	}

	report := &InvoiceReport{
		Data:        make(map[string]*InvoiceJobData),
		ProcessedAt: p.now(),
	}
	asOf := p.now()

	for i, row := range rows[1:] {
		num := col(row, "Num")
		amountRaw := col(row, "Amount")
		if num == "" && amountRaw == "" {
			continue
		}

		amount, err := parseAmount(amountRaw)
		if err != nil {
			report.SkippedCount++
			report.Errors = append(report.Errors, fmt.Sprintf("row %d: unreadable amount %q", i+2, amountRaw))
			continue
		}
		balance := decimal.Zero
		if raw := col(row, "Balance"); raw != "" {
			balance, err = parseAmount(raw)
			if err != nil {
				report.SkippedCount++
				report.Errors = append(report.Errors, fmt.Sprintf("row %d: unreadable balance %q", i+2, raw))
				continue
			}
		}

		line := InvoiceLine{
			Type:          col(row, "Type"),
			InvoiceNumber: num,
			Customer:      col(row, "Name"),
			Amount:        amount,
			Balance:       balance,
			AmountPaid:    amount.Sub(balance),
			InvoiceDate:   parseDate(col(row, "Date")),
			DueDate:       parseDate(col(row, "Due Date")),
		}
		// An explicit paid column wins over the derived amount minus balance.
		if raw := col(row, "A/R Paid"); raw != "" {
			if paid, err := parseAmount(raw); err == nil {
				line.AmountPaid = paid
			}
		}
		if line.Customer == "" {
			line.Customer = UnknownCustomer
		}
		if class := col(row, "Class"); class != "" {
			line.JobCode = ExtractJobCode(class)
		} else {
			line.JobCode = UnassignedClass
		}
		// A paid status column wins over the balance when present, otherwise
		// a non-positive balance means paid.
		if status := col(row, "Status"); status != "" {
			line.Status = strings.ToUpper(status)
		} else if balance.Sign() <= 0 {
			line.Status = "PAID"
		} else {
			line.Status = "UNPAID"
		}
		if aging := col(row, "Aging"); aging != "" {
			if days, err := strconv.Atoi(strings.TrimSpace(aging)); err == nil {
				line.AgingDays = days
			}
		} else if line.DueDate != nil && asOf.After(*line.DueDate) {
			line.AgingDays = int(asOf.Sub(*line.DueDate).Hours() / 24)
		}

		report.ProcessedCount++
		report.TotalInvoiced = report.TotalInvoiced.Add(amount)
		report.TotalPaid = report.TotalPaid.Add(line.AmountPaid)
		report.TotalBalance = report.TotalBalance.Add(balance)

		if line.JobCode == UnassignedClass {
			report.Unassigned = append(report.Unassigned, line)
			continue
		}
		data, exists := report.Data[line.JobCode]
		if !exists {
			data = &InvoiceJobData{JobCode: line.JobCode}
			report.Data[line.JobCode] = data
		}
		data.Lines = append(data.Lines, line)
		data.TotalInvoiced = data.TotalInvoiced.Add(amount)
		data.TotalPaid = data.TotalPaid.Add(line.AmountPaid)
		data.TotalBalance = data.TotalBalance.Add(balance)
	}

	p.addAdvisories(report)
	return report, nil
}

// addAdvisories evaluates each job's invoice group on its own, so one healthy
// job cannot mask another job's collection problems.
func (p *InvoiceParser) addAdvisories(report *InvoiceReport) {
	if report.TotalInvoiced.Sign() > 0 {
		rate, _ := report.TotalPaid.Div(report.TotalInvoiced).Mul(decimal.NewFromInt(100)).Float64()
		report.PaymentRate = rate
	}
	if report.ProcessedCount == 0 {
		return
	}

	codes := make([]string, 0, len(report.Data))
	for code := range report.Data {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		data := report.Data[code]
		if data.TotalInvoiced.Sign() > 0 {
			rate, _ := data.TotalPaid.Div(data.TotalInvoiced).Mul(decimal.NewFromInt(100)).Float64()
			if rate < 50 {
				report.Advisories = append(report.Advisories,
					fmt.Sprintf("Job %s has low payment rate: %.1f%%", code, rate))
			}
		}
		if data.TotalBalance.GreaterThan(decimal.NewFromInt(10000)) {
			report.Advisories = append(report.Advisories,
				fmt.Sprintf("Job %s has outstanding balance over 10000: %s", code, data.TotalBalance.StringFixed(2)))
		}
		if overdue := countOverdue(data.Lines); overdue > 0 {
			report.Advisories = append(report.Advisories,
				fmt.Sprintf("Job %s has %d invoices more than 30 days overdue", code, overdue))
		}
	}

	if overdue := countOverdue(report.Unassigned); overdue > 0 {
		report.Advisories = append(report.Advisories,
			fmt.Sprintf("%d unassigned invoices more than 30 days overdue", overdue))
	}
}

func countOverdue(lines []InvoiceLine) int {
	overdue := 0
	for _, line := range lines {
		if line.Status != "PAID" && line.AgingDays > 30 {
			overdue++
		}
	}
	return overdue
}

func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range invoiceDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}
