package service

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

// Candidate sheet names QuickBooks uses for P&L-by-class exports, tried in
// order. When none match, the first sheet of the workbook is attempted last.
var pnlCandidateSheets = []string{"Profit & Loss by Class", "P&L by Class", "Sheet1"}

// Rows whose account name contains one of these markers are report headers or
// roll-ups, not cost lines.
var pnlSkipMarkers = []string{"total", "income", "revenue", "gross profit"}

// Job code shapes seen in class column headers, tried in order. A header like
// "JOB001-Main Road Works" yields "JOB001"; an unrecognized header is used
// verbatim (cleaned and upper-cased).
var jobCodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)JOB\d+`),
	regexp.MustCompile(`(?i)SGN-\d{4}-\d+`),
	regexp.MustCompile(`(?i)[A-Z]{2,}-\d{4}-\d+`),
}

// PnLLine is one normalized expense extracted from a P&L cell.
type PnLLine struct {
	JobCode     string          `json:"job_code"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Amount      decimal.Decimal `json:"amount"`
	ExpenseDate time.Time       `json:"expense_date"`
}

// PnLJobData groups the normalized expenses of one job.
type PnLJobData struct {
	JobCode          string                     `json:"job_code"`
	TotalExpenses    decimal.Decimal            `json:"total_expenses"`
	ExpenseBreakdown map[string]decimal.Decimal `json:"expense_breakdown"` // account name -> summed amount
	Lines            []PnLLine                  `json:"lines"`
}

// PnLReport is the normalized result of one P&L upload. Row-level failures
// are skipped and counted; they never abort the parse.
type PnLReport struct {
	Data           map[string]*PnLJobData `json:"data"`
	SheetUsed      string                 `json:"sheet_used"`
	ProcessedCount int                    `json:"processed_count"`
	SkippedCount   int                    `json:"skipped_count"`
	Errors         []string               `json:"errors"`
	ProcessedAt    time.Time              `json:"processed_at"`
}

// PnLParser normalizes class-oriented P&L workbooks: rows are cost accounts,
// columns are job classes, cells are amounts.
type PnLParser struct {
	classifier Categorizer
	now        func() time.Time
}

func NewPnLParser(classifier Categorizer) *PnLParser {
	return &PnLParser{classifier: classifier, now: time.Now}
}

// Parse opens the workbook at path and normalizes it into per-job expense
// lines. Returns a *ParseError when no candidate sheet has the expected
// layout.
func (p *PnLParser) Parse(path string) (*PnLReport, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &LedgerError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	return p.parseWorkbook(f)
}

func (p *PnLParser) parseWorkbook(f *excelize.File) (*PnLReport, error) {
	candidates := append([]string{}, pnlCandidateSheets...)
	if sheets := f.GetSheetList(); len(sheets) > 0 {
		candidates = append(candidates, sheets[0])
	}

	var tried []string
	for _, sheet := range candidates {
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			tried = append(tried, sheet)
			continue
		}
		report, ok := p.parseSheet(sheet, rows)
		if !ok {
			tried = append(tried, sheet)
			continue
		}
		return report, nil
	}

	return nil, &ParseError{TriedSheets: tried}
}

// parseSheet normalizes one sheet. Reports !ok when the sheet has no header
// row with an Account column, meaning the next candidate should be tried.
func (p *PnLParser) parseSheet(sheet string, rows [][]string) (*PnLReport, bool) {
	headerIdx, accountCol := findAccountHeader(rows)
	if headerIdx < 0 {
		return nil, false
	}

	// Every non-Account, non-Total header becomes a job column.
	type jobColumn struct {
		col     int
		jobCode string
	}
	var jobColumns []jobColumn
	for col, header := range rows[headerIdx] {
		header = strings.TrimSpace(header)
		if col == accountCol || header == "" || strings.EqualFold(header, "Total") {
			continue
		}
		jobColumns = append(jobColumns, jobColumn{col: col, jobCode: ExtractJobCode(header)})
	}

	report := &PnLReport{
		Data:        make(map[string]*PnLJobData),
		SheetUsed:   sheet,
		ProcessedAt: p.now(),
	}
	expenseDate := p.now()

	for _, row := range rows[headerIdx+1:] {
		account := cellAt(row, accountCol)
		if account == "" {
			continue
		}
		if isSkippableAccount(account) {
			continue
		}

		for _, jc := range jobColumns {
			raw := cellAt(row, jc.col)
			if raw == "" {
				continue
			}
			amount, err := parseAmount(raw)
			if err != nil {
				report.SkippedCount++
				report.Errors = append(report.Errors, "unreadable amount for "+jc.jobCode+" / "+account+": "+raw)
				continue
			}
			if amount.IsZero() {
				continue
			}

			// Expenses are stored unsigned; QuickBooks signs vary by account type.
			amount = amount.Abs()

			line := PnLLine{
				JobCode:     jc.jobCode,
				Description: account,
				Category:    p.classifier.Categorize(account),
				Amount:      amount,
				ExpenseDate: expenseDate,
			}

			data, exists := report.Data[jc.jobCode]
			if !exists {
				data = &PnLJobData{
					JobCode:          jc.jobCode,
					ExpenseBreakdown: make(map[string]decimal.Decimal),
				}
				report.Data[jc.jobCode] = data
			}
			data.Lines = append(data.Lines, line)
			data.TotalExpenses = data.TotalExpenses.Add(amount)
			data.ExpenseBreakdown[account] = data.ExpenseBreakdown[account].Add(amount)
			report.ProcessedCount++
		}
	}

	return report, true
}

// ExtractJobCode pulls a job code out of a free-form class header.
func ExtractJobCode(classHeader string) string {
	classHeader = strings.TrimSpace(classHeader)
	for _, pattern := range jobCodePatterns {
		if match := pattern.FindString(classHeader); match != "" {
			return strings.ToUpper(match)
		}
	}
	return strings.ToUpper(classHeader)
}

func findAccountHeader(rows [][]string) (rowIdx, colIdx int) {
	// The header is the first row carrying an "Account" cell; some exports
	// put a title row above it.
	for i, row := range rows {
		for j, cell := range row {
			if strings.EqualFold(strings.TrimSpace(cell), "Account") {
				return i, j
			}
		}
		if i >= 10 {
			break
		}
	}
	return -1, -1
}

func isSkippableAccount(account string) bool {
	lower := strings.ToLower(account)
	for _, marker := range pnlSkipMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

func cellAt(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// parseAmount coerces a formatted cell into a decimal. Thousands separators,
// currency signs and accounting-style parentheses are tolerated.
func parseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(raw)
	negative := false
	if strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")") {
		negative = true
		cleaned = cleaned[1 : len(cleaned)-1]
	}
	cleaned = strings.NewReplacer(",", "", "£", "", "$", "", " ", "").Replace(cleaned)

	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, err
	}
	if negative {
		amount = amount.Neg()
	}
	return amount, nil
}
