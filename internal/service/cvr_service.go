package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"cvrbackend/internal/model"
	"cvrbackend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const processedFilePrefix = "cvr_processed_"

// LedgerConfig locates the CVR workbooks on disk.
type LedgerConfig struct {
	LedgerPath  string // master ledger workbook with Template and per-job sheets
	TemplateDir string // uploaded batch templates
	OutputDir   string // timestamped processed outputs
}

// LedgerUpdateResult reports one job sheet update. Preserved cells held a
// formula; skipped cells failed the negative-value guard. Neither is an
// error.
type LedgerUpdateResult struct {
	JobCode        string `json:"job_code"`
	Sheet          string `json:"sheet"`
	SheetCreated   bool   `json:"sheet_created"`
	CellsUpdated   int    `json:"cells_updated"`
	CellsPreserved int    `json:"cells_preserved"`
	CellsSkipped   int    `json:"cells_skipped"`
}

// LedgerUpdateSummary reports a whole-ledger update pass. Success means no
// per-job errors; partial updates are still saved.
type LedgerUpdateSummary struct {
	Results []LedgerUpdateResult `json:"results"`
	Errors  []string             `json:"errors"`
	Success bool                 `json:"success"`
}

// LedgerSnapshot is the financial picture read back from one job sheet,
// including the derived ratios and the payment block. Unreadable or
// formula-backed cells read as zero.
type LedgerSnapshot struct {
	JobCode               string          `json:"job_code"`
	ContractValue         decimal.Decimal `json:"contract_value"`
	TotalInvoiced         decimal.Decimal `json:"total_invoiced"`
	TotalCosts            decimal.Decimal `json:"total_costs"`
	MaterialCosts         decimal.Decimal `json:"material_costs"`
	LabourCosts           decimal.Decimal `json:"labour_costs"`
	PlantCosts            decimal.Decimal `json:"plant_costs"`
	SubcontractCosts      decimal.Decimal `json:"subcontract_costs"`
	ProjectedMargin       decimal.Decimal `json:"projected_margin"`
	VariationsApproved    decimal.Decimal `json:"variations_approved"`
	VariationsPending     decimal.Decimal `json:"variations_pending"`
	MarginPercentage      float64         `json:"margin_percentage"`
	CostPercentage        float64         `json:"cost_percentage"`
	InvoicedPercentage    float64         `json:"invoiced_percentage"`
	GrossMargin           decimal.Decimal `json:"gross_margin"`
	GrossMarginPercentage float64         `json:"gross_margin_percentage"`
	TotalPaid             decimal.Decimal `json:"total_paid"`
	OutstandingBalance    decimal.Decimal `json:"outstanding_balance"`
	PaymentRate           float64         `json:"payment_rate"`
	LastUpdated           string          `json:"last_updated"`
}

// LedgerSummary aggregates every job sheet of the ledger. TotalMargin sums
// the gross margins (invoiced minus costs); the overall percentages use
// guarded division and read as zero when their denominator is zero.
type LedgerSummary struct {
	Jobs                      []LedgerSnapshot `json:"jobs"`
	TotalContractValue        decimal.Decimal  `json:"total_contract_value"`
	TotalInvoiced             decimal.Decimal  `json:"total_invoiced"`
	TotalCosts                decimal.Decimal  `json:"total_costs"`
	TotalMargin               decimal.Decimal  `json:"total_margin"`
	OverallCostPercentage     float64          `json:"overall_cost_percentage"`
	OverallInvoicedPercentage float64          `json:"overall_invoiced_percentage"`
	OverallMarginPercentage   float64          `json:"overall_margin_percentage"`
}

// BatchProcessResult reports one batch pass over a master template.
type BatchProcessResult struct {
	TemplateUsed   string   `json:"template_used"`
	OutputPath     string   `json:"output_path"`
	RowsProcessed  int      `json:"rows_processed"`
	CellsPreserved int      `json:"cells_preserved"`
	CellsSkipped   int      `json:"cells_skipped"`
	MissingJobs    []string `json:"missing_jobs"`
	Errors         []string `json:"errors"`
}

// TemplateValidation reports whether an uploaded workbook is usable, either
// as a master ledger (Template sheet) or as a batch template (Job Code
// header row).
type TemplateValidation struct {
	Path             string   `json:"path"`
	Sheets           []string `json:"sheets"`
	HasTemplateSheet bool     `json:"has_template_sheet"`
	HasBatchHeader   bool     `json:"has_batch_header"`
	MissingHeaders   []string `json:"missing_headers"`
	Issues           []string `json:"issues"`
	Valid            bool     `json:"valid"`
}

// CVRService maintains the spreadsheet side of the system: per-job ledger
// sheets updated from live metrics, whole-book summaries, and the batch
// pass producing timestamped processed workbooks.
type CVRService interface {
	UpdateJob(ctx context.Context, jobCode string) (*LedgerUpdateResult, error)
	UpdateAll(ctx context.Context) (*LedgerUpdateSummary, error)
	JobSnapshot(jobCode string) (*LedgerSnapshot, error)
	SummarizeAll() (*LedgerSummary, error)
	ProcessAllJobs(ctx context.Context) (*BatchProcessResult, error)
	LatestProcessed() (string, error)
	ValidateTemplate(path string) (*TemplateValidation, error)
}

type cvrService struct {
	config     LedgerConfig
	rules      *UpdateRules
	dashboard  DashboardService
	jobs       repository.JobRepository
	expenses   repository.ExpenseRepository
	variations repository.VariationRepository
	locks      pathLocks
	now        func() time.Time
}

func NewCVRService(
	config LedgerConfig,
	rules *UpdateRules,
	dashboard DashboardService,
	jobs repository.JobRepository,
	expenses repository.ExpenseRepository,
	variations repository.VariationRepository,
) CVRService {
	return &cvrService{
		config:     config,
		rules:      rules,
		dashboard:  dashboard,
		jobs:       jobs,
		expenses:   expenses,
		variations: variations,
		now:        time.Now,
	}
}

// ledgerBuckets sums a job's expense lines into the aggregation buckets the
// ledger cost cells use. The keyword matcher runs over free-text
// descriptions and is deliberately independent of the stored expense
// category.
func (s *cvrService) ledgerBuckets(ctx context.Context, jobID uuid.UUID) (map[string]decimal.Decimal, error) {
	lines, err := s.expenses.ListByJob(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	matcher := s.rules.Matcher()
	buckets := make(map[string]decimal.Decimal)
	for _, line := range lines {
		if bucket := matcher.Categorize(line.Description); bucket != "" {
			buckets[bucket] = buckets[bucket].Add(line.Amount)
		}
	}
	return buckets, nil
}

// pathLocks serializes workbook writers per file path. Excel files cannot be
// updated concurrently; readers of a renamed-into-place file are safe.
type pathLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (p *pathLocks) forPath(path string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.locks == nil {
		p.locks = make(map[string]*sync.Mutex)
	}
	lock, ok := p.locks[path]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[path] = lock
	}
	return lock
}

func (s *cvrService) UpdateJob(ctx context.Context, jobCode string) (*LedgerUpdateResult, error) {
	pendingVars := decimal.Zero
	buckets := map[string]decimal.Decimal{}
	metrics, err := s.dashboard.JobDetailByCode(ctx, jobCode)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.FindByCode(ctx, jobCode)
	if err == nil {
		pendingVars, err = s.variations.PendingTotalByJob(ctx, job.ID)
		if err != nil {
			return nil, fmt.Errorf("sum pending variations: %w", err)
		}
		buckets, err = s.ledgerBuckets(ctx, job.ID)
		if err != nil {
			return nil, err
		}
	}

	lock := s.locks.forPath(s.config.LedgerPath)
	lock.Lock()
	defer lock.Unlock()

	f, err := s.openOrCreateLedger()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	result, err := s.updateJobSheet(f, metrics, buckets, pendingVars)
	if err != nil {
		return nil, err
	}
	if err := saveAtomic(f, s.config.LedgerPath); err != nil {
		return nil, err
	}
	return result, nil
}

// UpdateAll refreshes every job sheet in one open-save cycle. Codes come
// from the database union the sheets already in the book; a sheet without a
// matching job record is reported as an error but never blocks the rest.
func (s *cvrService) UpdateAll(ctx context.Context) (*LedgerUpdateSummary, error) {
	jobs, err := s.jobs.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	lock := s.locks.forPath(s.config.LedgerPath)
	lock.Lock()
	defer lock.Unlock()

	f, err := s.openOrCreateLedger()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	codes := make(map[string]struct{}, len(jobs))
	jobsByCode := make(map[string]model.Job, len(jobs))
	for _, job := range jobs {
		codes[job.JobCode] = struct{}{}
		jobsByCode[job.JobCode] = job
	}
	for _, sheet := range f.GetSheetList() {
		if code, ok := strings.CutPrefix(sheet, s.rules.SheetPrefix); ok && code != "" {
			codes[code] = struct{}{}
		}
	}

	summary := &LedgerUpdateSummary{}
	for _, code := range sortedCodes(codes) {
		job, known := jobsByCode[code]
		if !known {
			summary.Errors = append(summary.Errors, fmt.Sprintf("sheet %s has no job record", s.rules.SheetFor(code)))
			continue
		}

		metrics, err := s.dashboard.JobDetail(ctx, job.ID)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("metrics for %s: %v", code, err))
			continue
		}
		pendingVars, err := s.variations.PendingTotalByJob(ctx, job.ID)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("pending variations for %s: %v", code, err))
			continue
		}
		buckets, err := s.ledgerBuckets(ctx, job.ID)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("aggregate expenses for %s: %v", code, err))
			continue
		}
		result, err := s.updateJobSheet(f, metrics, buckets, pendingVars)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Sprintf("update sheet for %s: %v", code, err))
			continue
		}
		summary.Results = append(summary.Results, *result)
	}

	if err := saveAtomic(f, s.config.LedgerPath); err != nil {
		return nil, err
	}
	summary.Success = len(summary.Errors) == 0
	return summary, nil
}

func (s *cvrService) openOrCreateLedger() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.config.LedgerPath)
	if err == nil {
		return f, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, &LedgerError{Op: "open", Path: s.config.LedgerPath, Err: err}
	}
	return excelize.NewFile(), nil
}

// updateJobSheet writes one job's metrics into its sheet, creating the sheet
// first when absent. The cost cells C6-C9 come from the aggregation buckets,
// not the stored expense categories. Every write goes through the same guard
// policy: formula cells are never overwritten, and negative values are
// skipped except for the margin, which may legitimately go below zero.
func (s *cvrService) updateJobSheet(f *excelize.File, metrics *model.JobDetailMetrics, buckets map[string]decimal.Decimal, pendingVars decimal.Decimal) (*LedgerUpdateResult, error) {
	sheet := s.rules.SheetFor(metrics.JobCode)
	result := &LedgerUpdateResult{JobCode: metrics.JobCode, Sheet: sheet}

	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		if err := s.createJobSheet(f, sheet); err != nil {
			return nil, err
		}
		result.SheetCreated = true
	}

	values := []struct {
		metric        string
		value         decimal.Decimal
		allowNegative bool
	}{
		{MetricContractValue, metrics.ContractValue, false},
		{MetricTotalInvoiced, metrics.TotalInvoiced, false},
		{MetricTotalCosts, metrics.TotalCosts, false},
		{MetricMaterialCosts, buckets["material"], false},
		{MetricLabourCosts, buckets["labour"], false},
		{MetricPlantCosts, buckets["plant"], false},
		{MetricSubcontractCosts, buckets["subcontract"], false},
		{MetricProjectedMargin, metrics.ProjectedMargin, true},
		{MetricVariationsApproved, metrics.AmendedValue.Sub(metrics.ContractValue), false},
		{MetricVariationsPending, pendingVars, false},
	}
	for _, v := range values {
		cell, ok := s.rules.CellFor(v.metric)
		if !ok {
			continue
		}
		if err := s.setGuarded(f, sheet, cell, v.value, v.allowNegative, result); err != nil {
			return nil, err
		}
	}

	if err := s.writePaymentBlock(f, sheet, metrics, result); err != nil {
		return nil, err
	}
	if err := f.SetCellValue(sheet, "A1", "Last updated: "+s.now().UTC().Format("2006-01-02 15:04:05")); err != nil {
		return nil, &LedgerError{Op: "write", Path: s.config.LedgerPath, Err: err}
	}

	return result, nil
}

// createJobSheet clones the Template sheet when the book has one, otherwise
// lays out the default row labels.
func (s *cvrService) createJobSheet(f *excelize.File, sheet string) error {
	newIdx, err := f.NewSheet(sheet)
	if err != nil {
		return &LedgerError{Op: "create sheet", Path: s.config.LedgerPath, Err: err}
	}

	if tmplIdx, _ := f.GetSheetIndex(s.rules.TemplateSheet); tmplIdx >= 0 {
		if err := f.CopySheet(tmplIdx, newIdx); err != nil {
			return &LedgerError{Op: "clone template", Path: s.config.LedgerPath, Err: err}
		}
		return nil
	}

	labels := map[string]string{
		"B3":  "Contract Value",
		"B4":  "Total Invoiced",
		"B5":  "Total Costs",
		"B6":  "Materials",
		"B7":  "Labour",
		"B8":  "Plant & Machinery",
		"B9":  "Subcontractors",
		"B10": "Projected Margin",
		"B11": "Variations (Approved)",
		"B12": "Variations (Pending)",
	}
	for cell, label := range labels {
		if err := f.SetCellValue(sheet, cell, label); err != nil {
			return &LedgerError{Op: "write", Path: s.config.LedgerPath, Err: err}
		}
	}
	return nil
}

func (s *cvrService) setGuarded(f *excelize.File, sheet, cell string, value decimal.Decimal, allowNegative bool, result *LedgerUpdateResult) error {
	if s.rules.PreserveFormulas {
		formula, err := f.GetCellFormula(sheet, cell)
		if err != nil {
			return &LedgerError{Op: "read", Path: s.config.LedgerPath, Err: err}
		}
		if formula != "" {
			result.CellsPreserved++
			return nil
		}
	}
	if s.rules.SkipNegative && !allowNegative && value.Sign() < 0 {
		result.CellsSkipped++
		return nil
	}
	if err := f.SetCellValue(sheet, cell, value.InexactFloat64()); err != nil {
		return &LedgerError{Op: "write", Path: s.config.LedgerPath, Err: err}
	}
	result.CellsUpdated++
	return nil
}

// writePaymentBlock fills the E1:F4 payment summary.
func (s *cvrService) writePaymentBlock(f *excelize.File, sheet string, metrics *model.JobDetailMetrics, result *LedgerUpdateResult) error {
	paid := metrics.TotalInvoiced.Sub(metrics.UnpaidInvoices)
	rate := decimal.Zero
	if metrics.TotalInvoiced.Sign() > 0 {
		rate = paid.Div(metrics.TotalInvoiced).Mul(decimal.NewFromInt(100))
	}

	rows := []struct {
		label string
		cell  string
		value decimal.Decimal
	}{
		{"Total Invoiced", "F1", metrics.TotalInvoiced},
		{"Payments Received", "F2", paid},
		{"Outstanding", "F3", metrics.UnpaidInvoices},
		{"Payment Rate %", "F4", rate},
	}
	for i, row := range rows {
		labelCell := fmt.Sprintf("E%d", i+1)
		if err := f.SetCellValue(sheet, labelCell, row.label); err != nil {
			return &LedgerError{Op: "write", Path: s.config.LedgerPath, Err: err}
		}
		if err := s.setGuarded(f, sheet, row.cell, row.value, false, result); err != nil {
			return err
		}
	}
	return nil
}

func (s *cvrService) JobSnapshot(jobCode string) (*LedgerSnapshot, error) {
	f, err := excelize.OpenFile(s.config.LedgerPath)
	if err != nil {
		return nil, &LedgerError{Op: "open", Path: s.config.LedgerPath, Err: err}
	}
	defer f.Close()

	sheet := s.rules.SheetFor(jobCode)
	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, ErrJobNotFound
	}
	return s.readSnapshot(f, sheet, jobCode)
}

func (s *cvrService) readSnapshot(f *excelize.File, sheet, jobCode string) (*LedgerSnapshot, error) {
	read := func(metric string) decimal.Decimal {
		cell, ok := s.rules.CellFor(metric)
		if !ok {
			return decimal.Zero
		}
		raw, err := f.GetCellValue(sheet, cell)
		if err != nil {
			return decimal.Zero
		}
		value, err := parseAmount(raw)
		if err != nil {
			return decimal.Zero
		}
		return value
	}

	readCell := func(cell string) decimal.Decimal {
		raw, err := f.GetCellValue(sheet, cell)
		if err != nil {
			return decimal.Zero
		}
		value, err := parseAmount(raw)
		if err != nil {
			return decimal.Zero
		}
		return value
	}

	snapshot := &LedgerSnapshot{
		JobCode:            jobCode,
		ContractValue:      read(MetricContractValue),
		TotalInvoiced:      read(MetricTotalInvoiced),
		TotalCosts:         read(MetricTotalCosts),
		MaterialCosts:      read(MetricMaterialCosts),
		LabourCosts:        read(MetricLabourCosts),
		PlantCosts:         read(MetricPlantCosts),
		SubcontractCosts:   read(MetricSubcontractCosts),
		ProjectedMargin:    read(MetricProjectedMargin),
		VariationsApproved: read(MetricVariationsApproved),
		VariationsPending:  read(MetricVariationsPending),
		TotalPaid:          readCell("F2"),
		OutstandingBalance: readCell("F3"),
		LastUpdated:        "Unknown",
	}
	snapshot.PaymentRate, _ = readCell("F4").Float64()
	if stamp, err := f.GetCellValue(sheet, "A1"); err == nil {
		if value, ok := strings.CutPrefix(stamp, "Last updated: "); ok {
			snapshot.LastUpdated = value
		}
	}

	snapshot.GrossMargin = snapshot.TotalInvoiced.Sub(snapshot.TotalCosts)
	if snapshot.ContractValue.Sign() > 0 {
		snapshot.MarginPercentage, _ = snapshot.ProjectedMargin.Div(snapshot.ContractValue).Mul(decimal.NewFromInt(100)).Float64()
		snapshot.CostPercentage, _ = snapshot.TotalCosts.Div(snapshot.ContractValue).Mul(decimal.NewFromInt(100)).Float64()
		snapshot.InvoicedPercentage, _ = snapshot.TotalInvoiced.Div(snapshot.ContractValue).Mul(decimal.NewFromInt(100)).Float64()
	}
	if snapshot.TotalInvoiced.Sign() > 0 {
		snapshot.GrossMarginPercentage, _ = snapshot.GrossMargin.Div(snapshot.TotalInvoiced).Mul(decimal.NewFromInt(100)).Float64()
	}
	return snapshot, nil
}

func (s *cvrService) SummarizeAll() (*LedgerSummary, error) {
	f, err := excelize.OpenFile(s.config.LedgerPath)
	if err != nil {
		return nil, &LedgerError{Op: "open", Path: s.config.LedgerPath, Err: err}
	}
	defer f.Close()

	summary := &LedgerSummary{}
	for _, sheet := range f.GetSheetList() {
		code, ok := strings.CutPrefix(sheet, s.rules.SheetPrefix)
		if !ok || code == "" {
			continue
		}
		snapshot, err := s.readSnapshot(f, sheet, code)
		if err != nil {
			return nil, err
		}
		summary.Jobs = append(summary.Jobs, *snapshot)
		summary.TotalContractValue = summary.TotalContractValue.Add(snapshot.ContractValue)
		summary.TotalInvoiced = summary.TotalInvoiced.Add(snapshot.TotalInvoiced)
		summary.TotalCosts = summary.TotalCosts.Add(snapshot.TotalCosts)
		summary.TotalMargin = summary.TotalMargin.Add(snapshot.GrossMargin)
	}
	sort.Slice(summary.Jobs, func(i, j int) bool { return summary.Jobs[i].JobCode < summary.Jobs[j].JobCode })

	if summary.TotalContractValue.Sign() > 0 {
		summary.OverallCostPercentage, _ = summary.TotalCosts.Div(summary.TotalContractValue).Mul(decimal.NewFromInt(100)).Float64()
		summary.OverallInvoicedPercentage, _ = summary.TotalInvoiced.Div(summary.TotalContractValue).Mul(decimal.NewFromInt(100)).Float64()
	}
	if summary.TotalInvoiced.Sign() > 0 {
		summary.OverallMarginPercentage, _ = summary.TotalMargin.Div(summary.TotalInvoiced).Mul(decimal.NewFromInt(100)).Float64()
	}
	return summary, nil
}

// Batch template columns, matched against the header row case-insensitively.
var batchColumns = []string{"Job Code", "Cost to Date", "Invoiced", "Est. Final Cost", "Amended Value", "Margin"}

// ProcessAllJobs fills the newest master template with live metrics for every
// job row it carries and writes a timestamped processed workbook. Rows for
// unknown job codes are left untouched and reported.
func (s *cvrService) ProcessAllJobs(ctx context.Context) (*BatchProcessResult, error) {
	templatePath, err := s.latestFile(s.config.TemplateDir, "", ErrNoTemplate)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(templatePath)
	if err != nil {
		return nil, &LedgerError{Op: "open", Path: templatePath, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &LedgerError{Op: "read", Path: templatePath, Err: errors.New("workbook has no sheets")}
	}
	sheet := sheets[0]
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, &LedgerError{Op: "read", Path: templatePath, Err: err}
	}

	headerIdx, columns := findBatchHeader(rows)
	if headerIdx < 0 {
		return nil, &ParseError{MissingColumns: batchColumns}
	}

	result := &BatchProcessResult{TemplateUsed: filepath.Base(templatePath)}
	updateResult := &LedgerUpdateResult{}

	for i := headerIdx + 1; i < len(rows); i++ {
		code := cellAt(rows[i], columns["job code"])
		if code == "" {
			continue
		}

		metrics, err := s.dashboard.JobDetailByCode(ctx, code)
		if err != nil {
			if errors.Is(err, ErrJobNotFound) {
				result.MissingJobs = append(result.MissingJobs, code)
			} else {
				result.Errors = append(result.Errors, fmt.Sprintf("metrics for %s: %v", code, err))
			}
			continue
		}

		estFinal := metrics.TotalCosts.Add(metrics.PendingInvoices)
		writes := []struct {
			column        string
			value         decimal.Decimal
			allowNegative bool
		}{
			{"cost to date", metrics.TotalCosts, false},
			{"invoiced", metrics.TotalInvoiced, false},
			{"est. final cost", estFinal, false},
			{"amended value", metrics.AmendedValue, false},
			{"margin", metrics.AmendedValue.Sub(estFinal), true},
		}
		for _, w := range writes {
			col, ok := columns[w.column]
			if !ok {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, i+1)
			if err != nil {
				return nil, &LedgerError{Op: "write", Path: templatePath, Err: err}
			}
			if err := s.setGuarded(f, sheet, cell, w.value, w.allowNegative, updateResult); err != nil {
				return nil, err
			}
		}
		result.RowsProcessed++
	}
	result.CellsPreserved = updateResult.CellsPreserved
	result.CellsSkipped = updateResult.CellsSkipped

	if err := os.MkdirAll(s.config.OutputDir, 0o755); err != nil {
		return nil, &LedgerError{Op: "create output dir", Path: s.config.OutputDir, Err: err}
	}
	name := processedFilePrefix + s.now().UTC().Format("20060102_150405") + ".xlsx"
	outputPath := filepath.Join(s.config.OutputDir, name)
	if err := saveAtomic(f, outputPath); err != nil {
		return nil, err
	}
	result.OutputPath = outputPath
	return result, nil
}

// LatestProcessed returns the path of the newest processed workbook.
// Timestamped names sort chronologically, so the lexicographically last file
// wins.
func (s *cvrService) LatestProcessed() (string, error) {
	return s.latestFile(s.config.OutputDir, processedFilePrefix, ErrNoProcessedFile)
}

func (s *cvrService) latestFile(dir, prefix string, notFound error) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", notFound
		}
		return "", &LedgerError{Op: "list", Path: dir, Err: err}
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".xlsx") {
			continue
		}
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
			continue
		}
		if prefix != "" && !strings.HasPrefix(name, prefix) {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", notFound
	}
	sort.Strings(names)
	return filepath.Join(dir, names[len(names)-1]), nil
}

func (s *cvrService) ValidateTemplate(path string) (*TemplateValidation, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &LedgerError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	validation := &TemplateValidation{Path: path, Sheets: f.GetSheetList()}
	if idx, _ := f.GetSheetIndex(s.rules.TemplateSheet); idx >= 0 {
		validation.HasTemplateSheet = true
	}

	missing := append([]string(nil), batchColumns...)
	for _, sheet := range validation.Sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		headerIdx, columns := findBatchHeader(rows)
		if headerIdx < 0 {
			continue
		}
		sheetMissing := missingBatchColumns(columns)
		if len(sheetMissing) < len(missing) {
			missing = sheetMissing
		}
		if len(missing) == 0 {
			break
		}
	}
	validation.MissingHeaders = missing
	validation.HasBatchHeader = len(missing) == 0

	validation.Valid = validation.HasTemplateSheet || validation.HasBatchHeader
	if !validation.Valid {
		if len(missing) < len(batchColumns) {
			validation.Issues = append(validation.Issues,
				fmt.Sprintf("header row is missing required columns: %s", strings.Join(missing, ", ")))
		} else {
			validation.Issues = append(validation.Issues,
				fmt.Sprintf("workbook needs a %q sheet or a header row with the columns %s", s.rules.TemplateSheet, strings.Join(batchColumns, ", ")))
		}
	}
	return validation, nil
}

// missingBatchColumns lists the required batch columns absent from a parsed
// header row.
func missingBatchColumns(columns map[string]int) []string {
	var missing []string
	for _, name := range batchColumns {
		if _, ok := columns[strings.ToLower(name)]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// findBatchHeader locates the row carrying the batch column headers within
// the first rows of a sheet. Returns the lower-cased header-to-column map.
func findBatchHeader(rows [][]string) (int, map[string]int) {
	for i, row := range rows {
		if i >= 10 {
			break
		}
		columns := make(map[string]int)
		for col, header := range row {
			header = strings.ToLower(strings.TrimSpace(header))
			if header != "" {
				columns[header] = col
			}
		}
		if _, ok := columns["job code"]; ok {
			return i, columns
		}
	}
	return -1, nil
}

// saveAtomic writes the workbook to a temp file in the target directory and
// renames it into place, so readers never observe a half-written book.
func saveAtomic(f *excelize.File, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cvr-*.xlsx")
	if err != nil {
		return &LedgerError{Op: "save", Path: path, Err: err}
	}
	tmpPath := tmp.Name()
	tmp.Close()

	if err := f.SaveAs(tmpPath); err != nil {
		os.Remove(tmpPath)
		return &LedgerError{Op: "save", Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return &LedgerError{Op: "save", Path: path, Err: err}
	}
	return nil
}
