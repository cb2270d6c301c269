package service

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Ledger metric keys. Each maps to one cell of a job sheet.
const (
	MetricContractValue      = "total_contract_value"
	MetricTotalInvoiced      = "total_invoiced"
	MetricTotalCosts         = "total_costs"
	MetricMaterialCosts      = "material_costs"
	MetricLabourCosts        = "labour_costs"
	MetricPlantCosts         = "plant_costs"
	MetricSubcontractCosts   = "subcontract_costs"
	MetricProjectedMargin    = "projected_margin"
	MetricVariationsApproved = "variations_approved"
	MetricVariationsPending  = "variations_pending"
)

// UpdateRules drives how the ledger updater writes job sheets: where each
// metric lands, how cost lines aggregate into buckets, and which guards
// apply before a cell is touched. Rules load from a JSON file when one is
// configured; the compiled defaults match the standard CVR workbook layout.
type UpdateRules struct {
	SheetPrefix         string              `json:"sheet_prefix"`
	TemplateSheet       string              `json:"template_sheet"`
	CellMappings        map[string]string   `json:"cell_mappings"`
	AggregationKeywords map[string][]string `json:"aggregation_keywords"`
	PreserveFormulas    bool                `json:"preserve_formulas"`
	SkipNegative        bool                `json:"skip_negative"`
}

// DefaultUpdateRules returns the compiled-in rule set.
func DefaultUpdateRules() *UpdateRules {
	return &UpdateRules{
		SheetPrefix:   "Job_",
		TemplateSheet: "Template",
		CellMappings: map[string]string{
			MetricContractValue:      "C3",
			MetricTotalInvoiced:      "C4",
			MetricTotalCosts:         "C5",
			MetricMaterialCosts:      "C6",
			MetricLabourCosts:        "C7",
			MetricPlantCosts:         "C8",
			MetricSubcontractCosts:   "C9",
			MetricProjectedMargin:    "C10",
			MetricVariationsApproved: "C11",
			MetricVariationsPending:  "C12",
		},
		AggregationKeywords: map[string][]string{
			"material":    {"Material", "Materials", "MAT"},
			"labour":      {"Labour", "Labor", "LAB", "Wages"},
			"plant":       {"Plant", "Equipment", "EQUIP", "Machinery"},
			"subcontract": {"Subcontract", "Subcontractor", "SUB", "SC"},
		},
		PreserveFormulas: true,
		SkipNegative:     true,
	}
}

// LoadUpdateRules reads a JSON rule file. Fields absent from the file keep
// their default values.
func LoadUpdateRules(path string) (*UpdateRules, error) {
	rules := DefaultUpdateRules()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read update rules: %w", err)
	}
	if err := json.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("parse update rules %s: %w", path, err)
	}
	if len(rules.CellMappings) == 0 {
		return nil, fmt.Errorf("update rules %s: no cell mappings", path)
	}
	return rules, nil
}

// CellFor returns the cell a metric maps to.
func (r *UpdateRules) CellFor(metric string) (string, bool) {
	cell, ok := r.CellMappings[metric]
	return cell, ok
}

// SheetFor returns the ledger sheet name for a job code.
func (r *UpdateRules) SheetFor(jobCode string) string {
	return r.SheetPrefix + jobCode
}

// Matcher returns the aggregation categorizer: it buckets ledger cost rows
// by keyword, independently of the expense classifier. Keywords match
// case-insensitively as substrings; an unmatched description yields the
// empty bucket.
func (r *UpdateRules) Matcher() Categorizer {
	return &aggregationMatcher{rules: r}
}

type aggregationMatcher struct {
	rules *UpdateRules
}

// Buckets checked in a fixed order so overlapping keywords stay
// deterministic.
var aggregationOrder = []string{"material", "labour", "plant", "subcontract"}

func (m *aggregationMatcher) Categorize(description string) string {
	lower := strings.ToLower(strings.TrimSpace(description))
	if lower == "" {
		return ""
	}
	for _, bucket := range aggregationOrder {
		for _, keyword := range m.rules.AggregationKeywords[bucket] {
			if strings.Contains(lower, strings.ToLower(keyword)) {
				return bucket
			}
		}
	}
	return ""
}
